package httpbridge

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/OpenMined/syft-extras/internal/eventserver"
	"github.com/OpenMined/syft-extras/internal/protocol"
)

// ServerConfig configures the bridge's forwarding handler.
type ServerConfig struct {
	AllowedHosts    []string
	UpstreamTimeout time.Duration
}

// Handler returns an eventserver.Handler suitable for registration at the
// "http/**" endpoint. It decodes the request envelope, enforces the host
// allow-list, forwards to the upstream HTTP server, and returns the encoded
// response envelope as the raw response body.
func Handler(cfg ServerConfig) eventserver.Handler {
	timeout := cfg.UpstreamTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	client := &http.Client{Timeout: timeout}

	return func(ctx context.Context, req protocol.Request) (interface{}, error) {
		envelope, err := protocol.DecodeHTTPRequest(req.Body)
		if err != nil {
			return nil, err
		}

		target, err := url.Parse(envelope.URL)
		if err != nil {
			return encodeResponse(http.StatusBadGateway, "Bad Gateway", nil, []byte("BridgeUpstreamError: "+err.Error())), nil
		}
		if !hostAllowed(target.Hostname(), cfg.AllowedHosts) {
			return encodeResponse(http.StatusForbidden, "Forbidden", nil, []byte("NotAllowed")), nil
		}

		upstreamReq, err := http.NewRequestWithContext(ctx, envelope.Method, envelope.URL, bytes.NewReader(envelope.Body))
		if err != nil {
			return encodeResponse(http.StatusBadGateway, "Bad Gateway", nil, []byte("BridgeUpstreamError: "+err.Error())), nil
		}
		upstreamReq.Header = headerFromPairs(envelope.Headers)

		upstreamResp, err := client.Do(upstreamReq)
		if err != nil {
			status, reason := http.StatusBadGateway, "Bad Gateway"
			if urlErr, ok := err.(interface{ Timeout() bool }); ok && urlErr.Timeout() {
				status, reason = http.StatusGatewayTimeout, "Gateway Timeout"
			}
			return encodeResponse(status, reason, nil, []byte("BridgeUpstreamError: "+err.Error())), nil
		}
		defer upstreamResp.Body.Close()

		body, err := io.ReadAll(upstreamResp.Body)
		if err != nil {
			return encodeResponse(http.StatusBadGateway, "Bad Gateway", nil, []byte("BridgeUpstreamError: "+err.Error())), nil
		}

		return protocol.EncodeHTTPResponse(protocol.HTTPResponseEnvelope{
			StatusCode: upstreamResp.StatusCode,
			Reason:     upstreamResp.Status,
			Headers:    pairsFromHeader(upstreamResp.Header),
			Body:       body,
		}), nil
	}
}

func encodeResponse(status int, reason string, headers []protocol.HeaderPair, body []byte) []byte {
	return protocol.EncodeHTTPResponse(protocol.HTTPResponseEnvelope{
		StatusCode: status,
		Reason:     reason,
		Headers:    headers,
		Body:       body,
	})
}

// Register installs the bridge handler on srv at the conventional "http/**"
// endpoint.
func Register(srv *eventserver.Server, cfg ServerConfig) *eventserver.Route {
	return srv.Register("http/**", Handler(cfg))
}
