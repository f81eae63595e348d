package eventserver

import (
	"context"
	"net/http"
	"os"
	"testing"
	"time"

	"github.com/OpenMined/syft-extras/internal/permissions"
	"github.com/OpenMined/syft-extras/internal/protocol"
	"github.com/OpenMined/syft-extras/internal/syftpath"
)

func writeRequest(t *testing.T, rpcDir syftpath.Abs, endpoint, sender, id string, expiresIn time.Duration) syftpath.Abs {
	t.Helper()
	now := time.Now().UTC()
	url := syftpath.New("b@example.com", "ping", endpoint)
	req := protocol.Request{
		ID:      id,
		Sender:  sender,
		URL:     url.String(),
		Method:  protocol.MethodGet,
		Headers: make(http.Header),
		Created: now,
		Expires: now.Add(expiresIn),
	}
	path := protocol.RequestPath(rpcDir, endpoint, sender, id)
	if err := protocol.AtomicWriteFile(path.String(), protocol.EncodeRequest(req), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func waitForFile(t *testing.T, path string, timeout time.Duration) []byte {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if data, err := os.ReadFile(path); err == nil {
			return data
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", path)
	return nil
}

func TestStartupScanDispatchesPreExistingRequest(t *testing.T) {
	ws := syftpath.NewAbs(t.TempDir())
	srv := NewServer(Config{
		Datasite:       "b@example.com",
		Workspace:      ws,
		AppName:        "ping",
		Workers:        2,
		IntakeCapacity: 16,
		PollInterval:   50 * time.Millisecond,
		GracePeriod:    time.Second,
	})
	srv.Register("ping", func(ctx context.Context, req protocol.Request) (interface{}, error) {
		return map[string]string{"reply": "hi from B"}, nil
	})

	writeRequest(t, srv.RPCDir(), "ping", "a@example.com", "id1", time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := srv.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer srv.Stop()

	respPath := protocol.ResponsePath(srv.RPCDir(), "ping", "a@example.com", "id1")
	raw := waitForFile(t, respPath.String(), 2*time.Second)
	resp, err := protocol.DecodeResponse(raw)
	if err != nil {
		t.Fatal(err)
	}
	if resp.Status != protocol.StatusCompleted {
		t.Errorf("expected completed, got %v", resp.Status)
	}
	var body map[string]string
	if err := resp.JSON(&body); err != nil {
		t.Fatal(err)
	}
	if body["reply"] != "hi from B" {
		t.Errorf("got %v", body)
	}
}

func TestDispatchWritesNotFoundOnUnmatchedRoute(t *testing.T) {
	ws := syftpath.NewAbs(t.TempDir())
	srv := NewServer(Config{Datasite: "b@example.com", Workspace: ws, AppName: "ping"})
	reqPath := writeRequest(t, srv.RPCDir(), "nonexistent", "a@example.com", "id1", time.Minute)

	srv.dispatch(context.Background(), reqPath.String())

	respPath := protocol.ResponsePath(srv.RPCDir(), "nonexistent", "a@example.com", "id1")
	raw, err := os.ReadFile(respPath.String())
	if err != nil {
		t.Fatal(err)
	}
	resp, err := protocol.DecodeResponse(raw)
	if err != nil {
		t.Fatal(err)
	}
	if resp.Status != protocol.StatusNotFound {
		t.Errorf("expected not_found, got %v", resp.Status)
	}
}

func TestDispatchIsIdempotentUnderDuplicateDelivery(t *testing.T) {
	ws := syftpath.NewAbs(t.TempDir())
	calls := 0
	srv := NewServer(Config{Datasite: "b@example.com", Workspace: ws, AppName: "ping"})
	srv.Register("ping", func(ctx context.Context, req protocol.Request) (interface{}, error) {
		calls++
		return "pong", nil
	})
	reqPath := writeRequest(t, srv.RPCDir(), "ping", "a@example.com", "id1", time.Minute)

	srv.dispatch(context.Background(), reqPath.String())
	respPath := protocol.ResponsePath(srv.RPCDir(), "ping", "a@example.com", "id1")
	info1, err := os.Stat(respPath.String())
	if err != nil {
		t.Fatal(err)
	}

	// Simulate the watcher observing the same request file event twice.
	srv.dispatch(context.Background(), reqPath.String())
	info2, err := os.Stat(respPath.String())
	if err != nil {
		t.Fatal(err)
	}

	if calls != 1 {
		t.Errorf("expected the handler to be invoked exactly once, got %d", calls)
	}
	if !info1.ModTime().Equal(info2.ModTime()) {
		t.Errorf("response file was rewritten on the duplicate dispatch")
	}
}

func TestDispatchRejectsWhenSenderLacksRead(t *testing.T) {
	ws := syftpath.NewAbs(t.TempDir())
	srv := NewServer(Config{
		Datasite:    "b@example.com",
		Workspace:   ws,
		AppName:     "ping",
		Permissions: permissions.NewEngine(ws, false),
	})
	srv.Register("ping", func(ctx context.Context, req protocol.Request) (interface{}, error) {
		return "pong", nil
	})
	reqPath := writeRequest(t, srv.RPCDir(), "ping", "a@example.com", "id1", time.Minute)

	srv.dispatch(context.Background(), reqPath.String())

	rejPath := protocol.RejectionPath(srv.RPCDir(), "ping", "a@example.com", "id1")
	if !fileExists(rejPath.String()) {
		t.Fatal("expected a rejection marker")
	}
	respPath := protocol.ResponsePath(srv.RPCDir(), "ping", "a@example.com", "id1")
	if fileExists(respPath.String()) {
		t.Error("did not expect a response to be written alongside a rejection")
	}
}

func TestDispatchIgnoresExpiredRequest(t *testing.T) {
	ws := syftpath.NewAbs(t.TempDir())
	calls := 0
	srv := NewServer(Config{Datasite: "b@example.com", Workspace: ws, AppName: "ping"})
	srv.Register("ping", func(ctx context.Context, req protocol.Request) (interface{}, error) {
		calls++
		return "pong", nil
	})
	reqPath := writeRequest(t, srv.RPCDir(), "ping", "a@example.com", "id1", -time.Minute)

	srv.dispatch(context.Background(), reqPath.String())

	if calls != 0 {
		t.Errorf("expected the handler not to run for an already-expired request")
	}
	respPath := protocol.ResponsePath(srv.RPCDir(), "ping", "a@example.com", "id1")
	if fileExists(respPath.String()) {
		t.Error("did not expect a response for an expired request")
	}
}
