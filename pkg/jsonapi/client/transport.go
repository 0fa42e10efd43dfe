package client

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httputil"

	"github.com/diwise/jsonapi-resource/pkg/jsonapi/errors"
	"github.com/diwise/jsonapi-resource/pkg/jsonapi/types"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/logging"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Transport executes requests on behalf of the client and returns the raw
// response document. Requests that do not succeed are reported as
// *errors.TransportFailure, whether or not the server responded.
type Transport interface {
	FetchJSON(ctx context.Context, url string) ([]byte, error)
	SendRequest(ctx context.Context, method, url string, body io.Reader, contentType string) ([]byte, error)
}

type httpTransport struct {
	headers map[string][]string
	debug   bool
}

func newHTTPTransport(headers map[string][]string, debug bool) Transport {
	return &httpTransport{
		headers: headers,
		debug:   debug,
	}
}

func (t *httpTransport) FetchJSON(ctx context.Context, url string) ([]byte, error) {
	return t.SendRequest(ctx, http.MethodGet, url, nil, "")
}

func (t *httpTransport) SendRequest(ctx context.Context, method, url string, body io.Reader, contentType string) ([]byte, error) {
	resp, respBody, err := t.callResource(ctx, method, url, body, contentType)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, errors.NewErrorFromResponse(resp.StatusCode, resp.Header.Get("Content-Type"), respBody)
	}

	if resp.StatusCode == http.StatusNoContent {
		return nil, nil
	}

	return respBody, nil
}

func (t *httpTransport) callResource(ctx context.Context, method, endpoint string, body io.Reader, contentType string) (*http.Response, []byte, error) {
	httpClient := http.Client{
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create request: %s (%w)", err.Error(), errors.ErrInternal)
	}

	req.Header.Add("Accept", types.MediaType)

	if contentType != "" {
		req.Header.Add("Content-Type", contentType)
	}

	for header, headerValue := range t.headers {
		for _, val := range headerValue {
			req.Header.Add(header, val)
		}
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, nil, errors.NewTransportFailure(0, errors.ErrRequest, err)
	}

	defer resp.Body.Close()
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, errors.NewTransportFailure(resp.StatusCode, errors.ErrBadResponse, err)
	}

	if t.debug {
		if resp.StatusCode == http.StatusPartialContent || resp.StatusCode >= http.StatusBadRequest {
			if resp.StatusCode != http.StatusUnauthorized && resp.StatusCode != http.StatusNotFound {
				reqbytes, _ := httputil.DumpRequest(req, false)
				respbytes, _ := httputil.DumpResponse(resp, false)

				log := logging.GetFromContext(ctx)
				if resp.StatusCode >= http.StatusBadRequest {
					log.Error("request failed", "request", string(reqbytes), "response", string(respbytes))
				} else {
					log.Warn("unexpected response", "request", string(reqbytes), "response", string(respbytes))
				}
			}
		}
	}

	return resp, respBody, nil
}
