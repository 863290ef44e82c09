package batch

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strconv"
	"strings"

	"github.com/Sternrassler/odata-batch-client/pkg/async"
	"github.com/google/uuid"
)

// Doer sends HTTP requests. *client.Client and *http.Client satisfy it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Stream is a StreamManager that encodes the batch as multipart/mixed and
// posts it to the service's $batch endpoint.
type Stream struct {
	doer    Doer
	request Request
	parts   []SubOperation
	sent    bool
}

// NewStream creates a stream for req that sends through doer.
func NewStream(doer Doer, req Request) (*Stream, error) {
	if doer == nil {
		return nil, fmt.Errorf("doer is required")
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	return &Stream{
		doer:    doer,
		request: req,
	}, nil
}

// AddChangeset implements StreamManager.
func (s *Stream) AddChangeset() *Changeset {
	cs := NewChangeset()
	s.add(cs)
	return cs
}

// AddRetrieve implements StreamManager.
func (s *Stream) AddRetrieve() *Retrieve {
	r := NewRetrieve()
	s.add(r)
	return r
}

// AddOutsideUpdate implements StreamManager.
func (s *Stream) AddOutsideUpdate() *OutsideUpdate {
	o := NewOutsideUpdate()
	s.add(o)
	return o
}

// Parts returns the registered sub-operations in order.
func (s *Stream) Parts() []SubOperation {
	return s.parts
}

// add registers op. Parts added after sending come back frozen so that
// building on them fails.
func (s *Stream) add(op SubOperation) {
	if s.sent {
		op.freeze()
		return
	}
	s.parts = append(s.parts, op)
}

// GetResponse implements StreamManager.
func (s *Stream) GetResponse(ctx context.Context) (*http.Response, error) {
	if s.sent {
		return nil, async.NewError(async.ErrInvalidState, "batch already sent")
	}
	s.sent = true
	for _, op := range s.parts {
		op.freeze()
	}

	body, contentType, err := s.encode()
	if err != nil {
		return nil, fmt.Errorf("encode batch: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.request.URL(), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create batch request: %w", err)
	}
	for name, values := range s.request.Header {
		for _, v := range values {
			req.Header.Add(name, v)
		}
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "multipart/mixed")
	req.Header.Set(async.HeaderODataVersion, string(s.request.version()))
	if prefs := s.request.Preferences(); len(prefs) > 0 {
		req.Header.Set(async.HeaderPrefer, strings.Join(prefs, ", "))
	}

	resp, err := s.doer.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send batch: %w", err)
	}
	return resp, nil
}

// encode writes all parts as a multipart/mixed body. Content-IDs are
// numbered from 1 across all changesets.
func (s *Stream) encode() ([]byte, string, error) {
	if len(s.parts) == 0 {
		return nil, "", fmt.Errorf("batch has no parts")
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if err := mw.SetBoundary("batch_" + uuid.NewString()); err != nil {
		return nil, "", err
	}

	contentID := 0
	for i, op := range s.parts {
		switch part := op.(type) {
		case *Changeset:
			if part.Len() == 0 {
				continue
			}
			var cs bytes.Buffer
			cw := multipart.NewWriter(&cs)
			if err := cw.SetBoundary("changeset_" + uuid.NewString()); err != nil {
				return nil, "", err
			}
			for _, req := range part.requests {
				contentID++
				if err := writeRequestPart(cw, req, strconv.Itoa(contentID)); err != nil {
					return nil, "", fmt.Errorf("part %d: %w", i, err)
				}
			}
			if err := cw.Close(); err != nil {
				return nil, "", err
			}
			w, err := mw.CreatePart(textproto.MIMEHeader{
				"Content-Type": {"multipart/mixed; boundary=" + cw.Boundary()},
			})
			if err != nil {
				return nil, "", err
			}
			if _, err := w.Write(cs.Bytes()); err != nil {
				return nil, "", err
			}
		case *Retrieve, *OutsideUpdate:
			reqs := part.Requests()
			if len(reqs) == 0 {
				return nil, "", fmt.Errorf("part %d: %s has no request", i, part.Kind())
			}
			if err := writeRequestPart(mw, reqs[0], ""); err != nil {
				return nil, "", fmt.Errorf("part %d: %w", i, err)
			}
		}
	}

	if err := mw.Close(); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), "multipart/mixed; boundary=" + mw.Boundary(), nil
}

// writeRequestPart writes req as an application/http part.
func writeRequestPart(mw *multipart.Writer, req *http.Request, contentID string) error {
	h := textproto.MIMEHeader{
		"Content-Type":              {"application/http"},
		"Content-Transfer-Encoding": {"binary"},
	}
	if contentID != "" {
		h["Content-ID"] = []string{contentID}
	}
	w, err := mw.CreatePart(h)
	if err != nil {
		return err
	}

	target := req.URL.RequestURI()
	if req.URL.IsAbs() {
		target = req.URL.String()
	}
	if _, err := fmt.Fprintf(w, "%s %s HTTP/1.1\r\n", req.Method, target); err != nil {
		return err
	}
	if err := req.Header.Write(w); err != nil {
		return err
	}
	if _, err := io.WriteString(w, "\r\n"); err != nil {
		return err
	}

	if req.Body != nil && req.Body != http.NoBody {
		body, err := io.ReadAll(req.Body)
		req.Body.Close()
		if err != nil {
			return fmt.Errorf("read %s %s body: %w", req.Method, target, err)
		}
		if _, err := w.Write(body); err != nil {
			return err
		}
	}
	return nil
}
