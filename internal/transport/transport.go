package transport

import (
	"context"
	"io"
	"net/url"
)

// Transport is the HTTP surface the library service needs.
type Transport interface {
	// GetJSON issues an authenticated GET against the API base URL and decodes the JSON body into out.
	GetJSON(ctx context.Context, path string, query url.Values, token string, out interface{}) error

	// Open starts a streamed GET of an absolute URL. The caller closes the payload body.
	Open(ctx context.Context, rawURL string) (*Payload, error)

	// Close releases idle connections.
	Close() error
}

// Payload is a streamed response body with its declared metadata.
type Payload struct {
	Body          io.ReadCloser
	ContentType   string
	ContentLength int64
	StatusCode    int
}

// Close closes the body.
func (p *Payload) Close() error {
	if p.Body == nil {
		return nil
	}
	return p.Body.Close()
}
