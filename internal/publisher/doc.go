// Package publisher talks to the external platform API. The pipeline treats
// it as an opaque collaborator: payload refs in, post id out, failures tagged
// transient or permanent. Session and credential renewal are the platform
// account's concern, not handled here.
package publisher
