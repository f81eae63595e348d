package httpbridge

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/OpenMined/syft-extras/internal/protocol"
	"github.com/OpenMined/syft-extras/internal/rpcclient"
	"github.com/OpenMined/syft-extras/internal/syftpath"
)

// BridgeUpstreamError wraps a non-completed RPC-level outcome observed while
// waiting for a bridged request (as opposed to an HTTP-level failure, which
// the server encodes inside the response envelope itself).
type BridgeUpstreamError struct {
	Status protocol.StatusCode
}

func (e *BridgeUpstreamError) Error() string {
	return fmt.Sprintf("httpbridge: bridged request did not complete: %s", e.Status)
}

// Client implements http.RoundTripper by tunneling requests through an
// rpcclient.Client to a datasite's "/http/..." bridge endpoint.
type Client struct {
	RPC          *rpcclient.Client
	Target       syftpath.URL
	Expiry       string
	WaitTimeout  time.Duration
	PollInterval time.Duration
}

// RoundTrip implements http.RoundTripper.
func (c *Client) RoundTrip(req *http.Request) (*http.Response, error) {
	var body []byte
	if req.Body != nil {
		var err error
		body, err = io.ReadAll(req.Body)
		if err != nil {
			return nil, fmt.Errorf("httpbridge: read request body: %w", err)
		}
		req.Body.Close()
	}

	envelope := protocol.HTTPRequestEnvelope{
		Method:  req.Method,
		URL:     req.URL.String(),
		Headers: pairsFromHeader(req.Header),
		Body:    body,
	}

	future, err := c.RPC.Send(c.Target, protocol.MethodPost, rpcclient.SendOptions{
		Body:   protocol.EncodeHTTPRequest(envelope),
		Expiry: c.Expiry,
	})
	if err != nil {
		return nil, err
	}

	waitTimeout := c.WaitTimeout
	if waitTimeout <= 0 {
		waitTimeout = 30 * time.Second
	}
	pollInterval := c.PollInterval
	if pollInterval <= 0 {
		pollInterval = 100 * time.Millisecond
	}

	resp, err := future.Wait(waitTimeout, pollInterval)
	if err != nil {
		return nil, err
	}
	if resp.Status != protocol.StatusCompleted {
		return nil, &BridgeUpstreamError{Status: resp.Status}
	}

	envelopeResp, err := protocol.DecodeHTTPResponse(resp.Body)
	if err != nil {
		return nil, err
	}

	return &http.Response{
		Status:     envelopeResp.Reason,
		StatusCode: envelopeResp.StatusCode,
		Proto:      "HTTP/1.1",
		ProtoMajor: 1,
		ProtoMinor: 1,
		Header:     headerFromPairs(envelopeResp.Headers),
		Body:       io.NopCloser(bytes.NewReader(envelopeResp.Body)),
		Request:    req,
	}, nil
}

// NewHTTPClient wraps c in a stdlib *http.Client, ready to use like any
// other HTTP client.
func NewHTTPClient(c *Client) *http.Client {
	return &http.Client{Transport: c}
}
