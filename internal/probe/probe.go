// Package probe checks whether the model servers started by the walkthrough
// are answering HTTP requests.
package probe

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/tidwall/gjson"
)

type Kind string

const (
	KindAPI  Kind = "api"
	KindVLLM Kind = "vllm"
)

// Endpoint is one server the walkthrough can start.
type Endpoint struct {
	Kind Kind
	Host string
	Port string
}

func (e Endpoint) URL() string {
	path := "/health"
	if e.Kind == KindVLLM {
		path = "/v1/models"
	}
	return "http://" + net.JoinHostPort(e.Host, e.Port) + path
}

type Status struct {
	Endpoint Endpoint
	URL      string
	Up       bool
	// Detail is the reported status for the API server or the first served
	// model for vLLM.
	Detail  string
	Latency time.Duration
	Err     error
}

type Prober struct {
	client *http.Client
	now    func() time.Time
}

func New(timeout time.Duration) *Prober {
	return &Prober{
		client: &http.Client{Timeout: timeout},
		now:    time.Now,
	}
}

// NewWithClient is used by tests to point at an httptest server.
func NewWithClient(client *http.Client) *Prober {
	return &Prober{client: client, now: time.Now}
}

// Check makes a single request. A server that answers with a non-2xx status
// is reported down.
func (p *Prober) Check(ctx context.Context, e Endpoint) Status {
	st := Status{Endpoint: e, URL: e.URL()}
	start := p.now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, st.URL, nil)
	if err != nil {
		st.Err = err
		return st
	}
	resp, err := p.client.Do(req)
	if err != nil {
		st.Err = err
		return st
	}
	defer resp.Body.Close() //nolint:errcheck
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	st.Latency = p.now().Sub(start)
	if err != nil {
		st.Err = err
		return st
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		st.Err = fmt.Errorf("%s returned %s", st.URL, resp.Status)
		return st
	}

	st.Up = true
	switch e.Kind {
	case KindVLLM:
		st.Detail = gjson.GetBytes(body, "data.0.id").String()
	default:
		st.Detail = gjson.GetBytes(body, "status").String()
	}
	return st
}
