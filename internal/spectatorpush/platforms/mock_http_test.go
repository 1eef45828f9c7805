package platforms

import (
	"io"
	"net/http"
	"strings"
)

// roundTripFunc stands in for the network so adapters can be exercised
// against canned chat and webhook responses.
type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func newTestHTTPClient(fn roundTripFunc) *HTTPClient {
	return &HTTPClient{inner: &http.Client{Transport: fn}}
}

func reply(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(strings.NewReader(body)),
		Header:     make(http.Header),
	}
}
