package rpcclient

import (
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/OpenMined/syft-extras/internal/futurestore"
	"github.com/OpenMined/syft-extras/internal/protocol"
)

// SyftTimeoutError is raised by Wait when the caller's timeout elapses
// while the future is still pending.
type SyftTimeoutError struct {
	ID string
}

func (e *SyftTimeoutError) Error() string {
	return fmt.Sprintf("rpcclient: wait for %s timed out", e.ID)
}

// Future is a client-side handle for one outstanding send. Its zero value
// is not usable; obtain one from Client.Send.
type Future struct {
	ID            string
	URL           string
	ResponsePath  string
	RejectionPath string
	Expires       time.Time

	store *futurestore.Store
}

// Resolve is the non-blocking variant of Wait: it checks once for a
// terminal state and returns (nil, nil) if the future is still pending.
func (f *Future) Resolve() (*protocol.Response, error) {
	if resp := f.checkRejected(); resp != nil {
		return resp, nil
	}
	if resp, ok, err := f.checkResponse(); err != nil {
		return nil, err
	} else if ok {
		return resp, nil
	}
	if time.Now().UTC().After(f.Expires) {
		resp := f.synthesize(protocol.StatusExpired)
		return &resp, nil
	}
	return nil, nil
}

// Wait polls the response path at pollInterval, returning as soon as a
// terminal state is observed, or raising *SyftTimeoutError if timeout
// elapses while still pending.
func (f *Future) Wait(timeout, pollInterval time.Duration) (protocol.Response, error) {
	deadline := time.Now().Add(timeout)
	for {
		resp, err := f.Resolve()
		if err != nil {
			return protocol.Response{}, err
		}
		if resp != nil {
			if resp.Status != protocol.StatusPending && f.store != nil {
				_ = f.store.MarkResolved(f.ID)
			}
			return *resp, nil
		}
		if time.Now().After(deadline) {
			return protocol.Response{}, &SyftTimeoutError{ID: f.ID}
		}
		time.Sleep(pollInterval)
	}
}

func (f *Future) checkRejected() *protocol.Response {
	if !fileExists(f.RejectionPath) {
		return nil
	}
	resp := f.synthesize(protocol.StatusRejected)
	return &resp
}

func (f *Future) checkResponse() (*protocol.Response, bool, error) {
	raw, err := os.ReadFile(f.ResponsePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("rpcclient: read response: %w", err)
	}
	resp, err := protocol.DecodeResponse(raw)
	if err != nil {
		return nil, false, &DecodeFailureError{ID: f.ID, Err: err}
	}
	return &resp, true, nil
}

func (f *Future) synthesize(status protocol.StatusCode) protocol.Response {
	now := time.Now().UTC()
	return protocol.Response{
		ID:      f.ID,
		URL:     f.URL,
		Status:  status,
		Headers: make(http.Header),
		Created: now,
		Expires: f.Expires,
	}
}

// DecodeFailureError wraps a decode failure observed while waiting; the
// spec treats this the same as any other wait failure.
type DecodeFailureError struct {
	ID  string
	Err error
}

func (e *DecodeFailureError) Error() string {
	return fmt.Sprintf("rpcclient: decode response for %s: %v", e.ID, e.Err)
}

func (e *DecodeFailureError) Unwrap() error {
	return e.Err
}
