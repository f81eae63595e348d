// Package rpcclient implements the client half of the RPC fabric: send,
// broadcast, reply_to, and the future/bulk-future handles that observe
// responses landing on disk.
package rpcclient

import (
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/OpenMined/syft-extras/internal/futurestore"
	"github.com/OpenMined/syft-extras/internal/idgen"
	"github.com/OpenMined/syft-extras/internal/permissions"
	"github.com/OpenMined/syft-extras/internal/protocol"
	"github.com/OpenMined/syft-extras/internal/syftpath"
)

// NotAuthorizedError is raised by ReplyTo when the responder lacks write
// permission on the response location.
type NotAuthorizedError struct {
	Principal string
	Path      string
}

func (e *NotAuthorizedError) Error() string {
	return fmt.Sprintf("rpcclient: %s is not authorized to write %s", e.Principal, e.Path)
}

// Client is the local peer's handle onto the RPC fabric: it mints
// requests under Workspace, and resolves futures against the same tree.
// It is safe for concurrent use; the future store serializes its own
// access.
type Client struct {
	Datasite    string
	Workspace   syftpath.Abs
	Store       *futurestore.Store
	Permissions *permissions.Engine
}

// SendOptions configures one send call.
type SendOptions struct {
	Body    interface{}
	Headers http.Header
	Expiry  string // compound duration, e.g. "30s"
	Cache   bool
}

// Send posts a request to url and returns a Future observing its
// response.
func (c *Client) Send(url syftpath.URL, method protocol.Method, opts SendOptions) (*Future, error) {
	if !protocol.ValidMethod(method) {
		return nil, fmt.Errorf("rpcclient: invalid method %q", method)
	}
	expiry, err := protocol.ParseDuration(opts.Expiry)
	if err != nil {
		return nil, err
	}
	if expiry <= 0 {
		return nil, fmt.Errorf("rpcclient: expiry must be strictly positive, got %v", expiry)
	}

	body, err := protocol.SerializeBody(opts.Body)
	if err != nil {
		return nil, err
	}
	headers := opts.Headers
	if headers == nil {
		headers = make(http.Header)
	}

	if opts.Cache {
		key := futurestore.Fingerprint(string(method), url.String(), headers, body)
		if rec, found, ferr := c.Store.LookupByCacheKey(key); ferr == nil && found && time.Now().UTC().Before(rec.Expires) {
			return c.futureFromRecord(rec), nil
		}
	}

	id, err := idgen.New()
	if err != nil {
		return nil, fmt.Errorf("rpcclient: generate id: %w", err)
	}
	now := time.Now().UTC()
	req := protocol.Request{
		ID:      id,
		Sender:  c.Datasite,
		URL:     url.String(),
		Method:  method,
		Headers: headers,
		Body:    body,
		Created: now,
		Expires: now.Add(expiry),
	}

	rpcRoot := url.RPCRoot(c.Workspace.String())
	reqPath := protocol.RequestPath(rpcRoot, url.Endpoint, c.Datasite, id)
	respPath := protocol.ResponsePath(rpcRoot, url.Endpoint, c.Datasite, id)
	rejPath := protocol.RejectionPath(rpcRoot, url.Endpoint, c.Datasite, id)

	if err := protocol.AtomicWriteFile(reqPath.String(), protocol.EncodeRequest(req), 0o644); err != nil {
		return nil, fmt.Errorf("rpcclient: write request: %w", err)
	}

	cacheKey := ""
	if opts.Cache {
		cacheKey = futurestore.Fingerprint(string(method), url.String(), headers, body)
	}
	rec := futurestore.Record{
		ID:            id,
		URL:           url.String(),
		ResponsePath:  respPath.String(),
		RejectionPath: rejPath.String(),
		CacheKey:      cacheKey,
		Created:       now,
		Expires:       req.Expires,
	}
	if err := c.Store.Register(rec); err != nil {
		return nil, fmt.Errorf("rpcclient: register future: %w", err)
	}

	return c.futureFromRecord(rec), nil
}

func (c *Client) futureFromRecord(rec futurestore.Record) *Future {
	return &Future{
		ID:            rec.ID,
		URL:           rec.URL,
		ResponsePath:  rec.ResponsePath,
		RejectionPath: rec.RejectionPath,
		Expires:       rec.Expires,
		store:         c.Store,
	}
}

// ReplyTo writes a response record in the same directory as req, subject
// to the permissions engine authorizing c.Datasite to write there.
func (c *Client) ReplyTo(req protocol.Request, body interface{}, headers http.Header, status protocol.StatusCode) (protocol.Response, error) {
	url, err := syftpath.Parse(req.URL)
	if err != nil {
		return protocol.Response{}, err
	}
	rpcRoot := url.RPCRoot(c.Workspace.String())
	respPath := protocol.ResponsePath(rpcRoot, url.Endpoint, req.Sender, req.ID)

	if c.Permissions != nil {
		perm, err := c.Permissions.Compute(c.Datasite, respPath)
		if err != nil {
			return protocol.Response{}, err
		}
		if !perm.Write {
			return protocol.Response{}, &NotAuthorizedError{Principal: c.Datasite, Path: respPath.String()}
		}
	}

	encodedBody, err := protocol.SerializeBody(body)
	if err != nil {
		return protocol.Response{}, err
	}
	if headers == nil {
		headers = make(http.Header)
	}
	now := time.Now().UTC()
	resp := protocol.Response{
		ID:      req.ID,
		Sender:  c.Datasite,
		URL:     req.URL,
		Status:  status,
		Headers: headers,
		Body:    encodedBody,
		Created: now,
		Expires: req.Expires,
	}
	if err := protocol.AtomicWriteFile(respPath.String(), protocol.EncodeResponse(resp), 0o644); err != nil {
		return protocol.Response{}, fmt.Errorf("rpcclient: write response: %w", err)
	}
	return resp, nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
