package cache

import (
	"bytes"
	"io"
	"net/http"
	"testing"
	"time"
)

func listingResponse(body string, header http.Header) *http.Response {
	return &http.Response{
		StatusCode: http.StatusOK,
		Header:     header,
		Body:       io.NopCloser(bytes.NewReader([]byte(body))),
	}
}

func TestEntry_RoundTrip(t *testing.T) {
	body := `[{"url":"https://api.github.com/repos/octocat/fork-1","fork":true}]`
	resp := listingResponse(body, http.Header{
		"Etag":         []string{`W/"page1"`},
		"Content-Type": []string{"application/json; charset=utf-8"},
		"Link":         []string{`<https://api.github.com/user/1/repos?page=2>; rel="next"`},
	})

	entry, err := ResponseToEntry(resp)
	if err != nil {
		t.Fatalf("ResponseToEntry() error = %v", err)
	}

	req, _ := http.NewRequest(http.MethodGet, "https://api.github.com/users/octocat/repos?page=1", nil)
	rebuilt := EntryToResponse(entry, req)
	defer rebuilt.Body.Close()

	got, _ := io.ReadAll(rebuilt.Body)
	if string(got) != body {
		t.Errorf("Body = %s, want %s", got, body)
	}
	if rebuilt.StatusCode != http.StatusOK || rebuilt.Status != "200 OK" {
		t.Errorf("Status = %q (%d), want 200 OK", rebuilt.Status, rebuilt.StatusCode)
	}
	for _, h := range []string{"ETag", "Content-Type", "Link"} {
		if rebuilt.Header.Get(h) != resp.Header.Get(h) {
			t.Errorf("%s = %q, want %q", h, rebuilt.Header.Get(h), resp.Header.Get(h))
		}
	}
	if rebuilt.ContentLength != int64(len(body)) {
		t.Errorf("ContentLength = %d, want %d", rebuilt.ContentLength, len(body))
	}
	if rebuilt.Request != req {
		t.Error("Request not attached to the rebuilt response")
	}
}

func TestEntryToResponse_FromCacheHeader(t *testing.T) {
	entry := &Entry{
		Body:   []byte(`[]`),
		ETag:   `"abc"`,
		Header: http.Header{"Content-Type": []string{"application/json"}},
	}

	resp := EntryToResponse(entry, nil)
	if resp.Header.Get(FromCacheHeader) != "1" {
		t.Errorf("%s = %q, want 1", FromCacheHeader, resp.Header.Get(FromCacheHeader))
	}
	if entry.Header.Get(FromCacheHeader) != "" {
		t.Error("EntryToResponse must not mutate the stored headers")
	}

	bare := EntryToResponse(&Entry{Body: []byte(`[]`)}, nil)
	if bare.Header.Get(FromCacheHeader) != "1" {
		t.Error("entry without headers should still be marked as cached")
	}
}

func TestEntryToResponse_ZeroStatusIsOK(t *testing.T) {
	resp := EntryToResponse(&Entry{Body: []byte(`[]`)}, nil)
	if resp.StatusCode != http.StatusOK || resp.Status != "200 OK" {
		t.Errorf("Status = %q (%d), want 200 OK", resp.Status, resp.StatusCode)
	}
}

func TestEntry_HasValidator(t *testing.T) {
	tests := []struct {
		name  string
		entry *Entry
		want  bool
	}{
		{"nil entry", nil, false},
		{"etag", &Entry{ETag: `W/"abc"`}, true},
		{"last modified", &Entry{LastModified: time.Now()}, true},
		{"body only", &Entry{Body: []byte(`[]`)}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.entry.HasValidator(); got != tt.want {
				t.Errorf("HasValidator() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEntry_Conditional(t *testing.T) {
	modified := time.Date(2023, 1, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name       string
		entry      *Entry
		wantHeader string
		wantValue  string
	}{
		{"etag", &Entry{ETag: `W/"abc"`}, "If-None-Match", `W/"abc"`},
		{"last modified", &Entry{LastModified: modified}, "If-Modified-Since", "Sun, 01 Jan 2023 12:00:00 GMT"},
		{"etag wins", &Entry{ETag: `W/"abc"`, LastModified: modified}, "If-None-Match", `W/"abc"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, _ := http.NewRequest(http.MethodGet, "https://api.github.com/users/octocat/repos", nil)
			tt.entry.Conditional(req)

			if got := req.Header.Get(tt.wantHeader); got != tt.wantValue {
				t.Errorf("%s = %q, want %q", tt.wantHeader, got, tt.wantValue)
			}
		})
	}
}

func TestEntry_ConditionalWithoutValidator(t *testing.T) {
	req, _ := http.NewRequest(http.MethodGet, "https://api.github.com/users/octocat/repos", nil)
	(&Entry{Body: []byte(`[]`)}).Conditional(req)
	if len(req.Header) != 0 {
		t.Errorf("headers = %v, want none", req.Header)
	}

	// Nil receivers and requests are ignored.
	var entry *Entry
	entry.Conditional(req)
	(&Entry{ETag: "x"}).Conditional(nil)
}
