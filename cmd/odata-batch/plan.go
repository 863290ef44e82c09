package main

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/Sternrassler/odata-batch-client/pkg/async"
	"github.com/Sternrassler/odata-batch-client/pkg/batch"
	"github.com/Sternrassler/odata-batch-client/pkg/client"
	"gopkg.in/yaml.v3"
)

// Part kinds accepted in a plan.
const (
	kindChangeset     = "changeset"
	kindRetrieve      = "retrieve"
	kindOutsideUpdate = "outside_update"
)

// Plan is a YAML description of one batch.
//
//	service_root: https://host/odata
//	parts:
//	  - kind: changeset
//	    requests:
//	      - method: POST
//	        url: People
//	        body: '{"Name":"A"}'
//	  - kind: retrieve
//	    request: {method: GET, url: "People('a')"}
type Plan struct {
	ServiceRoot     string            `yaml:"service_root"`
	RespondAsync    *bool             `yaml:"respond_async"`
	ContinueOnError bool              `yaml:"continue_on_error"`
	Version         string            `yaml:"version"`
	Headers         map[string]string `yaml:"headers"`
	Parts           []PartSpec        `yaml:"parts"`
}

// PartSpec is one top-level part. Changesets use Requests, the other kinds
// use Request.
type PartSpec struct {
	Kind     string        `yaml:"kind"`
	Request  *RequestSpec  `yaml:"request"`
	Requests []RequestSpec `yaml:"requests"`
}

// RequestSpec is one inner request. URL may be relative to the service root.
type RequestSpec struct {
	Method  string            `yaml:"method"`
	URL     string            `yaml:"url"`
	Headers map[string]string `yaml:"headers"`
	Body    string            `yaml:"body"`
}

// LoadPlan decodes and validates a plan. Unknown fields are rejected.
func LoadPlan(r io.Reader) (*Plan, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var plan Plan
	if err := dec.Decode(&plan); err != nil {
		return nil, fmt.Errorf("decode plan: %w", err)
	}
	if err := plan.Validate(); err != nil {
		return nil, err
	}
	return &plan, nil
}

// Validate checks the plan without building any request.
func (p *Plan) Validate() error {
	if err := p.BatchRequest().Validate(); err != nil {
		return err
	}
	if len(p.Parts) == 0 {
		return fmt.Errorf("plan has no parts")
	}
	for i, part := range p.Parts {
		switch part.Kind {
		case kindChangeset:
			if len(part.Requests) == 0 {
				return fmt.Errorf("part %d: changeset has no requests", i+1)
			}
		case kindRetrieve, kindOutsideUpdate:
			if part.Request == nil {
				return fmt.Errorf("part %d: %s has no request", i+1, part.Kind)
			}
		default:
			return fmt.Errorf("part %d: unknown kind %q", i+1, part.Kind)
		}
	}
	return nil
}

// BatchRequest returns the batch descriptor. RespondAsync defaults to true.
func (p *Plan) BatchRequest() batch.Request {
	respondAsync := true
	if p.RespondAsync != nil {
		respondAsync = *p.RespondAsync
	}

	var header http.Header
	if len(p.Headers) > 0 {
		header = make(http.Header, len(p.Headers))
		for k, v := range p.Headers {
			header.Set(k, v)
		}
	}

	return batch.Request{
		ServiceRoot:     p.ServiceRoot,
		Header:          header,
		RespondAsync:    respondAsync,
		ContinueOnError: p.ContinueOnError,
		Version:         async.Version(p.Version),
	}
}

// Apply adds every part of the plan to b, which must be started.
func (p *Plan) Apply(b *client.AsyncBatch) error {
	for i, part := range p.Parts {
		if err := p.applyPart(b, part); err != nil {
			return fmt.Errorf("part %d: %w", i+1, err)
		}
	}
	return nil
}

func (p *Plan) applyPart(b *client.AsyncBatch, part PartSpec) error {
	switch part.Kind {
	case kindChangeset:
		cs, err := b.AddChangeset()
		if err != nil {
			return err
		}
		for _, spec := range part.Requests {
			req, err := spec.build(p.ServiceRoot)
			if err != nil {
				return err
			}
			if err := cs.AddRequest(req); err != nil {
				return err
			}
		}
		return nil

	case kindRetrieve:
		r, err := b.AddRetrieve()
		if err != nil {
			return err
		}
		req, err := part.Request.build(p.ServiceRoot)
		if err != nil {
			return err
		}
		return r.SetRequest(req)

	case kindOutsideUpdate:
		o, err := b.AddOutsideUpdate()
		if err != nil {
			return err
		}
		req, err := part.Request.build(p.ServiceRoot)
		if err != nil {
			return err
		}
		return o.SetRequest(req)

	default:
		return fmt.Errorf("unknown kind %q", part.Kind)
	}
}

// build creates the inner request, resolving relative URLs against root.
func (s RequestSpec) build(root string) (*http.Request, error) {
	if s.URL == "" {
		return nil, fmt.Errorf("request url is required")
	}
	method := strings.ToUpper(s.Method)
	if method == "" {
		method = http.MethodGet
	}

	target, err := resolveURL(root, s.URL)
	if err != nil {
		return nil, err
	}

	var body io.Reader
	if s.Body != "" {
		body = strings.NewReader(s.Body)
	}
	req, err := http.NewRequest(method, target, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	for k, v := range s.Headers {
		req.Header.Set(k, v)
	}
	if s.Body != "" && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

func resolveURL(root, ref string) (string, error) {
	u, err := url.Parse(ref)
	if err != nil {
		return "", fmt.Errorf("parse request url: %w", err)
	}
	if u.IsAbs() {
		return ref, nil
	}
	return strings.TrimRight(root, "/") + "/" + strings.TrimLeft(ref, "/"), nil
}
