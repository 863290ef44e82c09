package async

import (
	"io"
	"net/http"
	"net/url"
	"strings"
)

// trackingBody records whether it was closed.
type trackingBody struct {
	io.Reader
	closed   bool
	closeErr error
}

func (b *trackingBody) Close() error {
	b.closed = true
	return b.closeErr
}

func newBody(s string) *trackingBody {
	return &trackingBody{Reader: strings.NewReader(s)}
}

func newResponse(status int, headers map[string][]string, body *trackingBody) *http.Response {
	h := http.Header{}
	for name, values := range headers {
		for _, v := range values {
			h.Add(name, v)
		}
	}
	if body == nil {
		body = newBody("")
	}
	return &http.Response{
		StatusCode: status,
		Header:     h,
		Body:       body,
	}
}

func mustURL(raw string) *url.URL {
	u, err := url.Parse(raw)
	if err != nil {
		panic(err)
	}
	return u
}

func intPtr(v int) *int {
	return &v
}
