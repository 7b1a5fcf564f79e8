// Package clients holds typed REST clients for the collaborator services the
// warehouse core depends on (catalog, stores, partners, users).
package clients

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/DQHuy2112/BE-QLKH-sub001/internal/shared"
)

// Policy describes how callers treat a collaborator: every call is bounded by
// Timeout, and Fatal tells the caller whether a failure aborts its operation
// or is only advisory.
type Policy struct {
	Timeout time.Duration
	Fatal   bool
}

// DefaultTimeout bounds calls when a policy leaves Timeout unset.
const DefaultTimeout = 5 * time.Second

// Call runs fn under the policy timeout.
func (p Policy) Call(ctx context.Context, fn func(ctx context.Context) error) error {
	timeout := p.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return fn(ctx)
}

// ErrNotFound is returned when a collaborator answers 404.
var ErrNotFound = fmt.Errorf("clients: %w", shared.ErrNotFound)

// StatusError describes a non-2xx or unsuccessful envelope answer.
type StatusError struct {
	Service string
	Status  int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s: unexpected status %d", e.Service, e.Status)
	}
	return fmt.Sprintf("%s: status %d: %s", e.Service, e.Status, e.Message)
}

type envelope[T any] struct {
	Success bool    `json:"success"`
	Message *string `json:"message"`
	Data    T       `json:"data"`
}

type restClient struct {
	service string
	http    *resty.Client
	policy  Policy
}

func newRestClient(service, baseURL string, policy Policy) *restClient {
	httpClient := resty.New().
		SetBaseURL(baseURL).
		SetHeader("Accept", "application/json").
		SetHeader("Content-Type", "application/json")
	return &restClient{service: service, http: httpClient, policy: policy}
}

// Policy returns the call policy configured for the client.
func (c *restClient) Policy() Policy {
	return c.policy
}

func (c *restClient) check(resp *resty.Response, success bool, message *string) error {
	if resp.StatusCode() == http.StatusNotFound {
		return fmt.Errorf("%s %s: %w", c.service, resp.Request.URL, ErrNotFound)
	}
	if resp.StatusCode() >= http.StatusBadRequest || !success {
		msg := ""
		if message != nil {
			msg = *message
		}
		return &StatusError{Service: c.service, Status: resp.StatusCode(), Message: msg}
	}
	return nil
}

func get[T any](ctx context.Context, c *restClient, path string, pathParams map[string]string) (T, error) {
	var out envelope[T]
	var zero T
	err := c.policy.Call(ctx, func(ctx context.Context) error {
		resp, err := c.http.R().
			SetContext(ctx).
			SetPathParams(pathParams).
			SetResult(&out).
			SetError(&out).
			Get(path)
		if err != nil {
			return fmt.Errorf("%s: get %s: %w", c.service, path, err)
		}
		return c.check(resp, out.Success, out.Message)
	})
	if err != nil {
		return zero, err
	}
	return out.Data, nil
}

func post(ctx context.Context, c *restClient, path string, pathParams map[string]string, body any) error {
	var out envelope[any]
	return c.policy.Call(ctx, func(ctx context.Context) error {
		resp, err := c.http.R().
			SetContext(ctx).
			SetPathParams(pathParams).
			SetBody(body).
			SetResult(&out).
			SetError(&out).
			Post(path)
		if err != nil {
			return fmt.Errorf("%s: post %s: %w", c.service, path, err)
		}
		return c.check(resp, out.Success, out.Message)
	})
}

// IsTimeout reports whether err came from a call exceeding its policy timeout.
func IsTimeout(err error) bool {
	return errors.Is(err, context.DeadlineExceeded)
}
