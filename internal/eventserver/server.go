// Package eventserver watches an app's RPC directory for incoming request
// files, dispatches them to registered handlers, and writes the responses
// back, with duplicate suppression, permission checks, and a worker pool
// bounding concurrent handler invocations.
package eventserver

import (
	"context"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"

	"github.com/OpenMined/syft-extras/internal/permissions"
	"github.com/OpenMined/syft-extras/internal/protocol"
	"github.com/OpenMined/syft-extras/internal/syftpath"
)

// Config configures one Server instance.
type Config struct {
	Datasite       string
	Workspace      syftpath.Abs
	AppName        string
	Workers        int
	IntakeCapacity int
	PollInterval   time.Duration
	GracePeriod    time.Duration
	Permissions    *permissions.Engine
	Log            logrus.FieldLogger
}

// Server dispatches request files landing in one app's RPC tree.
type Server struct {
	cfg    Config
	rpcDir syftpath.Abs
	router *Router
	log    logrus.FieldLogger

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	watcher *fsnotify.Watcher
	intake  chan string
	wg      sync.WaitGroup
}

// NewServer constructs a Server; it does not start watching until Start is
// called.
func NewServer(cfg Config) *Server {
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.IntakeCapacity <= 0 {
		cfg.IntakeCapacity = 256
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}
	if cfg.GracePeriod <= 0 {
		cfg.GracePeriod = 5 * time.Second
	}
	if cfg.Log == nil {
		cfg.Log = logrus.StandardLogger()
	}
	rpcDir := cfg.Workspace.Join("datasites", cfg.Datasite, "app_data", cfg.AppName, "rpc")
	return &Server{
		cfg:    cfg,
		rpcDir: rpcDir,
		router: &Router{},
		log:    cfg.Log,
	}
}

// Register adds a route for pattern, returning it for further inspection.
func (s *Server) Register(pattern string, h Handler) *Route {
	return s.router.Register(pattern, h)
}

// RPCDir returns the directory this server watches.
func (s *Server) RPCDir() syftpath.Abs {
	return s.rpcDir
}

// IsRunning reports whether Start has been called without a matching Stop.
func (s *Server) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Start spawns the filesystem watcher and the worker pool, performs a
// startup scan of pre-existing request files, and publishes the route
// schema.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("eventserver: already running")
	}
	if err := os.MkdirAll(s.rpcDir.String(), 0o755); err != nil {
		s.mu.Unlock()
		return fmt.Errorf("eventserver: create rpc dir: %w", err)
	}
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.intake = make(chan string, s.cfg.IntakeCapacity)
	s.running = true
	s.mu.Unlock()

	if err := s.publishSchema(); err != nil {
		s.log.WithError(err).Warn("eventserver: failed to publish route schema")
	}

	for i := 0; i < s.cfg.Workers; i++ {
		s.wg.Add(1)
		go s.runWorker(runCtx)
	}

	s.scanOnce()

	s.wg.Add(1)
	go s.superviseWatcher(runCtx)

	return nil
}

// Stop cancels the server's context at once, which stops the watcher and
// the workers and cancels the context of any handler still running, then
// waits up to the configured grace period for them to return before
// closing the watcher. The intake queue is not drained: request files
// still queued are left on disk for the next start's scan.
func (s *Server) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	cancel := s.cancel
	s.mu.Unlock()

	cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(s.cfg.GracePeriod):
		s.log.Warn("eventserver: grace period elapsed, forcing shutdown")
	}

	s.mu.Lock()
	w := s.watcher
	s.watcher = nil
	s.mu.Unlock()
	if w != nil {
		_ = w.Close()
	}
	return nil
}

func (s *Server) publishSchema() error {
	data, err := marshalSchema(s.router.Routes())
	if err != nil {
		return err
	}
	path := s.rpcDir.Join(schemaFileName)
	return protocol.AtomicWriteFile(path.String(), data, 0o644)
}

func (s *Server) runWorker(ctx context.Context) {
	defer s.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case path, ok := <-s.intake:
			if !ok {
				return
			}
			s.dispatch(ctx, path)
		}
	}
}

// superviseWatcher runs the fsnotify-based watcher, restarting it once on
// crash before falling back to poll-only scanning for the rest of the
// server's lifetime.
func (s *Server) superviseWatcher(ctx context.Context) {
	defer s.wg.Done()

	attempts := 0
	for {
		err := s.runWatcher(ctx)
		if ctx.Err() != nil {
			return
		}
		attempts++
		if attempts > 1 {
			s.log.WithError(err).Error("eventserver: watcher crashed twice, falling back to polling-only mode")
			s.pollLoop(ctx)
			return
		}
		serverMetrics.watcherRestart.Add(ctx, 1)
		s.log.WithError(err).Warn("eventserver: watcher crashed, restarting")
		bo := backoff.NewExponentialBackOff()
		bo.MaxElapsedTime = 10 * time.Second
		time.Sleep(bo.NextBackOff())
	}
}

func (s *Server) pollLoop(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.scanOnce()
		}
	}
}

func (s *Server) runWatcher(ctx context.Context) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("eventserver: new watcher: %w", err)
	}
	defer w.Close()

	s.mu.Lock()
	s.watcher = w
	s.mu.Unlock()

	if err := addRecursive(w, s.rpcDir.String()); err != nil {
		return fmt.Errorf("eventserver: watch %s: %w", s.rpcDir.String(), err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-w.Events:
			if !ok {
				return fmt.Errorf("eventserver: watcher events channel closed")
			}
			s.handleEvent(w, event)
		case err, ok := <-w.Errors:
			if !ok {
				return fmt.Errorf("eventserver: watcher errors channel closed")
			}
			return err
		}
	}
}

// handleEvent reacts to both file-created and file-renamed-into-place
// events, since the sync layer may deliver a finished request file either
// way.
func (s *Server) handleEvent(w *fsnotify.Watcher, event fsnotify.Event) {
	if event.Op&(fsnotify.Create|fsnotify.Rename) == 0 {
		return
	}
	info, err := os.Stat(event.Name)
	if err != nil {
		return
	}
	if info.IsDir() {
		_ = addRecursive(w, event.Name)
		return
	}
	s.enqueue(event.Name)
}

func (s *Server) enqueue(path string) {
	if !isCandidateRequest(path) {
		return
	}
	select {
	case s.intake <- path:
	default:
		serverMetrics.intakeDropped.Add(context.Background(), 1)
		s.log.WithField("path", path).Warn("eventserver: intake queue full, dropping request")
	}
}

// scanOnce walks the rpc tree for pre-existing request files, used both at
// startup and as the degraded polling fallback.
func (s *Server) scanOnce() {
	_ = filepath.WalkDir(s.rpcDir.String(), func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		s.enqueue(path)
		return nil
	})
}

func isCandidateRequest(path string) bool {
	return strings.HasSuffix(path, protocol.RequestSuffix) && !strings.HasSuffix(path, protocol.RejectionSuffix)
}

func addRecursive(w *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if d.IsDir() {
			return w.Add(path)
		}
		return nil
	})
}

// dispatch runs the full pipeline from §4.6 for one candidate request file.
func (s *Server) dispatch(ctx context.Context, path string) {
	if !isCandidateRequest(path) {
		return
	}
	endpoint, sender, id, ok := deriveRecord(s.rpcDir, path)
	if !ok {
		return
	}

	respPath := protocol.ResponsePath(s.rpcDir, endpoint, sender, id)
	rejPath := protocol.RejectionPath(s.rpcDir, endpoint, sender, id)
	if fileExists(respPath.String()) || fileExists(rejPath.String()) {
		return
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return
	}
	req, err := protocol.DecodeRequest(raw)
	if err != nil {
		s.writeTerminal(respPath, minimalResponse(id, protocol.StatusError, "decode error: "+err.Error()))
		return
	}
	if req.Expired(time.Now().UTC()) {
		return
	}

	route, params, matched := s.router.Match(endpoint)
	if !matched {
		s.writeTerminal(respPath, s.baseResponse(req, protocol.StatusNotFound, []byte(fmt.Sprintf("no route for %s", endpoint))))
		return
	}

	if s.cfg.Permissions != nil {
		perm, err := s.cfg.Permissions.Compute(req.Sender, respPath)
		if err != nil || !perm.Read {
			s.writeTerminal(rejPath, nil)
			serverMetrics.rejected.Add(ctx, 1)
			return
		}
	}

	handlerCtx := withParams(ctx, params)
	result, herr := route.Handler(handlerCtx, req)
	resp := s.buildResponse(req, result, herr)
	s.writeTerminal(respPath, resp)
	serverMetrics.dispatched.Add(ctx, 1)
}

func (s *Server) baseResponse(req protocol.Request, status protocol.StatusCode, body []byte) *protocol.Response {
	now := time.Now().UTC()
	return &protocol.Response{
		ID:      req.ID,
		Sender:  s.cfg.Datasite,
		URL:     req.URL,
		Status:  status,
		Headers: make(http.Header),
		Body:    body,
		Created: now,
		Expires: req.Expires,
	}
}

// buildResponse turns a handler's (result, err) pair into a response
// record: an error becomes a status "error" response; a *protocol.Response
// result is used as-is with any zero fields backfilled; anything else is
// serialized as the body of a status "completed" response.
func (s *Server) buildResponse(req protocol.Request, result interface{}, herr error) *protocol.Response {
	if herr != nil {
		return s.baseResponse(req, protocol.StatusError, []byte(herr.Error()))
	}
	if p, ok := result.(*protocol.Response); ok && p != nil {
		result = *p
	}
	if resp, ok := result.(protocol.Response); ok {
		if resp.ID == "" {
			resp.ID = req.ID
		}
		if resp.Sender == "" {
			resp.Sender = s.cfg.Datasite
		}
		if resp.URL == "" {
			resp.URL = req.URL
		}
		if resp.Headers == nil {
			resp.Headers = make(http.Header)
		}
		if resp.Created.IsZero() {
			resp.Created = time.Now().UTC()
		}
		if resp.Expires.IsZero() {
			resp.Expires = req.Expires
		}
		return &resp
	}
	body, serr := protocol.SerializeBody(result)
	if serr != nil {
		return s.baseResponse(req, protocol.StatusError, []byte(serr.Error()))
	}
	return s.baseResponse(req, protocol.StatusCompleted, body)
}

func minimalResponse(id string, status protocol.StatusCode, msg string) *protocol.Response {
	now := time.Now().UTC()
	return &protocol.Response{
		ID:      id,
		Status:  status,
		Headers: make(http.Header),
		Body:    []byte(msg),
		Created: now,
		Expires: now,
	}
}

// writeTerminal atomically writes either a response record (resp != nil) or
// a zero-byte rejection marker (resp == nil) at path.
func (s *Server) writeTerminal(path syftpath.Abs, resp *protocol.Response) {
	var data []byte
	if resp != nil {
		data = protocol.EncodeResponse(*resp)
	}
	if err := protocol.AtomicWriteFile(path.String(), data, 0o644); err != nil {
		s.log.WithError(err).WithField("path", path.String()).Error("eventserver: failed to write terminal record")
	}
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// deriveRecord decomposes a record path under rpcDir into its endpoint,
// sender, and id, per the <endpoint>/<sender>/<id><suffix> layout.
func deriveRecord(rpcDir syftpath.Abs, path string) (endpoint, sender, id string, ok bool) {
	full := syftpath.NewAbs(path).Components()
	base := rpcDir.Components()
	if len(full) <= len(base)+1 {
		return "", "", "", false
	}
	rel := full[len(base):]
	if len(rel) < 2 {
		return "", "", "", false
	}
	filename := rel[len(rel)-1]
	sender = rel[len(rel)-2]
	endpoint = strings.Join(rel[:len(rel)-2], "/")
	id = strings.TrimSuffix(filename, protocol.RequestSuffix)
	return endpoint, sender, id, true
}
