package publisher

import "context"

// Request describes a publish attempt for one content item.
type Request struct {
	// PayloadRefs are the artifact locators for the post, opaque to the
	// pipeline core (text body first by convention, then media).
	PayloadRefs []string
	// Attempt is the number of previously failed publish attempts for the
	// item, forwarded so the platform client can tag retried uploads.
	Attempt int
}

// Publisher delivers a content item to the external platform and returns the
// platform's post identifier. Failures must be tagged with the services
// taxonomy so the retry coordinator can classify them.
type Publisher interface {
	Publish(ctx context.Context, req Request) (string, error)
}

// Func adapts a bare function to the Publisher interface (used in tests).
type Func func(ctx context.Context, req Request) (string, error)

func (f Func) Publish(ctx context.Context, req Request) (string, error) {
	return f(ctx, req)
}
