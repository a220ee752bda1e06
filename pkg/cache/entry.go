package cache

import (
	"net/http"
	"time"
)

// Entry is a listing page stored with the validators GitHub sent for it.
// It is only ever served back after GitHub confirms it with a 304.
type Entry struct {
	Body         []byte      `json:"body"`
	ETag         string      `json:"etag,omitempty"`
	LastModified time.Time   `json:"last_modified,omitempty"`
	StatusCode   int         `json:"status_code"`
	Header       http.Header `json:"header"`
	StoredAt     time.Time   `json:"stored_at"`
}

// HasValidator reports whether the entry can back a conditional request.
func (e *Entry) HasValidator() bool {
	return e != nil && (e.ETag != "" || !e.LastModified.IsZero())
}

// Conditional sets If-None-Match on req, or If-Modified-Since when GitHub
// sent no ETag. It is a no-op for a nil entry or request.
func (e *Entry) Conditional(req *http.Request) {
	if !e.HasValidator() || req == nil {
		return
	}
	if req.Header == nil {
		req.Header = http.Header{}
	}

	if e.ETag != "" {
		req.Header.Set("If-None-Match", e.ETag)
		return
	}
	req.Header.Set("If-Modified-Since", e.LastModified.UTC().Format(http.TimeFormat))
}
