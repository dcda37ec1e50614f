// Package generation turns registered briefs into publishable artifacts. The
// driver owns the input and processing stages: it promotes an item to
// processing, invokes the configured generator per artifact kind, and hands
// the item to queued with the full payload locator list. Items interrupted in
// processing are picked up again on the next pass.
package generation
