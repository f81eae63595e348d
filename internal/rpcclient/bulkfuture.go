package rpcclient

import (
	"sync"
	"time"

	"github.com/OpenMined/syft-extras/internal/protocol"
	"github.com/OpenMined/syft-extras/internal/syftpath"
)

// BulkFuture aggregates the outcome of a broadcast across N targets.
type BulkFuture struct {
	// SendErrors holds, per target url, an error if Send itself failed
	// (not if the remote request later failed or expired).
	SendErrors map[string]error
	futures    []*Future
}

// GatherResult is the terminal classification of a bulk future's targets
// once GatherCompleted returns.
type GatherResult struct {
	Successes []protocol.Response
	Failures  []protocol.Response
	Pending   []*Future
}

// Broadcast sends to every url in parallel and returns the aggregate
// BulkFuture. A send error for one url is recorded on SendErrors and does
// not prevent the others from being attempted.
func (c *Client) Broadcast(urls []syftpath.URL, method protocol.Method, opts SendOptions) *BulkFuture {
	bf := &BulkFuture{SendErrors: make(map[string]error)}
	var mu sync.Mutex
	var wg sync.WaitGroup
	wg.Add(len(urls))
	for _, u := range urls {
		u := u
		go func() {
			defer wg.Done()
			f, err := c.Send(u, method, opts)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				bf.SendErrors[u.String()] = err
				return
			}
			bf.futures = append(bf.futures, f)
		}()
	}
	wg.Wait()
	return bf
}

// GatherCompleted polls every underlying future in one shared loop (each
// pass checks every still-open future once, then sleeps pollInterval),
// returning as soon as all have reached a terminal state or timeout elapses.
// Explicit error status codes (rejected, expired, not_found, error) land
// in Failures; completed (and any unrecognized HTTP-style) status lands
// in Successes; anything still outstanding at timeout lands in Pending.
func (bf *BulkFuture) GatherCompleted(timeout time.Duration, pollInterval time.Duration) GatherResult {
	type outcome struct {
		future *Future
		resp   *protocol.Response
	}
	results := make([]outcome, len(bf.futures))
	deadline := time.Now().Add(timeout)

	for {
		allDone := true
		for i, f := range bf.futures {
			if results[i].resp != nil {
				continue
			}
			resp, err := f.Resolve()
			if err != nil || resp == nil {
				allDone = false
				continue
			}
			results[i] = outcome{future: f, resp: resp}
		}
		if allDone || time.Now().After(deadline) {
			break
		}
		time.Sleep(pollInterval)
	}

	var gr GatherResult
	for i, f := range bf.futures {
		if results[i].resp == nil {
			gr.Pending = append(gr.Pending, f)
			continue
		}
		switch results[i].resp.Status {
		case protocol.StatusRejected, protocol.StatusExpired, protocol.StatusNotFound, protocol.StatusError:
			gr.Failures = append(gr.Failures, *results[i].resp)
		default:
			gr.Successes = append(gr.Successes, *results[i].resp)
		}
	}
	return gr
}
