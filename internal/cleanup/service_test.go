package cleanup

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OpenMined/syft-extras/internal/protocol"
	"github.com/OpenMined/syft-extras/internal/syftpath"
)

func newTestService(t *testing.T, retention time.Duration) (*Service, syftpath.Abs) {
	t.Helper()
	ws := syftpath.NewAbs(t.TempDir())
	svc := NewService(Config{
		Workspace: ws,
		Datasite:  "alice@example.com",
		Interval:  time.Hour, // tests drive sweeps manually
		Retention: retention,
	})
	return svc, ws
}

func rpcDir(ws syftpath.Abs, endpoint, sender string) syftpath.Abs {
	url := syftpath.New("alice@example.com", "app", endpoint)
	return protocol.RecordDir(url.RPCRoot(ws.String()), endpoint, sender)
}

func TestSweepDeletesExpiredRequest(t *testing.T) {
	svc, ws := newTestService(t, 0)
	dir := rpcDir(ws, "ping", "bob@example.com")
	path := dir.Join("req1" + protocol.RequestSuffix)

	req := protocol.Request{
		ID:      "req1",
		Sender:  "bob@example.com",
		URL:     syftpath.New("alice@example.com", "app", "ping").String(),
		Method:  protocol.MethodPost,
		Created: time.Now().UTC().Add(-2 * time.Minute),
		Expires: time.Now().UTC().Add(-2 * time.Second),
	}
	require.NoError(t, protocol.AtomicWriteFile(path.String(), protocol.EncodeRequest(req), 0o644))

	svc.SweepOnce()

	_, err := os.Stat(path.String())
	assert.True(t, os.IsNotExist(err), "expected request file removed, stat err = %v", err)
	assert.EqualValues(t, 1, svc.Stats().RequestsDeleted)
}

func TestSweepKeepsUnexpiredRequest(t *testing.T) {
	svc, ws := newTestService(t, 0)
	dir := rpcDir(ws, "ping", "bob@example.com")
	path := dir.Join("req1" + protocol.RequestSuffix)

	req := protocol.Request{
		ID:      "req1",
		Sender:  "bob@example.com",
		URL:     syftpath.New("alice@example.com", "app", "ping").String(),
		Method:  protocol.MethodPost,
		Created: time.Now().UTC(),
		Expires: time.Now().UTC().Add(time.Hour),
	}
	require.NoError(t, protocol.AtomicWriteFile(path.String(), protocol.EncodeRequest(req), 0o644))

	svc.SweepOnce()

	_, err := os.Stat(path.String())
	assert.NoError(t, err, "expected request file to survive")
	assert.EqualValues(t, 0, svc.Stats().RequestsDeleted)
}

func TestSweepDeletesExpiredResponse(t *testing.T) {
	svc, ws := newTestService(t, 0)
	dir := rpcDir(ws, "ping", "bob@example.com")
	path := dir.Join("req1" + protocol.ResponseSuffix)

	resp := protocol.Response{
		ID:      "req1",
		Sender:  "alice@example.com",
		URL:     syftpath.New("alice@example.com", "app", "ping").String(),
		Status:  protocol.StatusCompleted,
		Created: time.Now().UTC().Add(-2 * time.Minute),
		Expires: time.Now().UTC().Add(-time.Second),
	}
	require.NoError(t, protocol.AtomicWriteFile(path.String(), protocol.EncodeResponse(resp), 0o644))

	svc.SweepOnce()

	_, err := os.Stat(path.String())
	assert.True(t, os.IsNotExist(err), "expected response file removed, stat err = %v", err)
	assert.EqualValues(t, 1, svc.Stats().ResponsesDeleted)
}

func TestSweepDeletesAgedRejectionMarker(t *testing.T) {
	svc, ws := newTestService(t, time.Minute)
	dir := rpcDir(ws, "ping", "bob@example.com")
	path := dir.Join("req1" + protocol.RejectionSuffix)

	require.NoError(t, protocol.AtomicWriteFile(path.String(), nil, 0o644))
	old := time.Now().Add(-2 * time.Minute)
	require.NoError(t, os.Chtimes(path.String(), old, old))

	svc.SweepOnce()

	_, err := os.Stat(path.String())
	assert.True(t, os.IsNotExist(err), "expected rejection marker removed, stat err = %v", err)
	assert.EqualValues(t, 1, svc.Stats().ResponsesDeleted)
}

func TestSweepKeepsFreshRejectionMarker(t *testing.T) {
	svc, ws := newTestService(t, time.Minute)
	dir := rpcDir(ws, "ping", "bob@example.com")
	path := dir.Join("req1" + protocol.RejectionSuffix)

	require.NoError(t, protocol.AtomicWriteFile(path.String(), nil, 0o644))

	svc.SweepOnce()

	_, err := os.Stat(path.String())
	assert.NoError(t, err, "expected rejection marker to survive")
}

// TestSweepLoopRunsOnInterval reproduces the periodic-sweep scenario: with
// expiry=1m, retention=0, and a cleanup interval of 500ms, a request file
// that is already expired by the time the loop starts is deleted within
// one sweep.
func TestSweepLoopRunsOnInterval(t *testing.T) {
	ws := syftpath.NewAbs(t.TempDir())
	svc := NewService(Config{
		Workspace: ws,
		Datasite:  "alice@example.com",
		Interval:  500 * time.Millisecond,
		Retention: 0,
	})

	dir := rpcDir(ws, "ping", "bob@example.com")
	path := dir.Join("req1" + protocol.RequestSuffix)
	req := protocol.Request{
		ID:      "req1",
		Sender:  "bob@example.com",
		URL:     syftpath.New("alice@example.com", "app", "ping").String(),
		Method:  protocol.MethodPost,
		Created: time.Now().UTC().Add(-time.Minute - 2*time.Second),
		Expires: time.Now().UTC().Add(-2 * time.Second),
	}
	require.NoError(t, protocol.AtomicWriteFile(path.String(), protocol.EncodeRequest(req), 0o644))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	svc.Start(ctx)
	defer svc.Stop()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if svc.Stats().RequestsDeleted == 1 {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("expected request deleted within deadline, stats=%+v", svc.Stats())
}
