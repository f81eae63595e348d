// Package cleanup implements the background sweep that evicts expired
// request/response records and orphan rejection markers from an RPC
// directory tree.
package cleanup

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/OpenMined/syft-extras/internal/protocol"
	"github.com/OpenMined/syft-extras/internal/syftpath"
)

// Stats is a snapshot of a sweep's cumulative counters.
type Stats struct {
	RequestsDeleted  int64
	ResponsesDeleted int64
	Errors           int64
}

// Config configures the cleanup service.
type Config struct {
	// Workspace is the root of the synced directory tree.
	Workspace syftpath.Abs
	// Datasite restricts sweeping to this datasite's own app_data tree,
	// mirroring the event server's one-service-per-datasite granularity.
	Datasite string
	// Interval is the time between sweeps.
	Interval time.Duration
	// Retention is how long past a record's expires timestamp it survives
	// before eviction. Distinct from the per-request expiry itself.
	Retention time.Duration
	Log       logrus.FieldLogger
}

// Service periodically sweeps a datasite's RPC directories for expired
// artifacts.
type Service struct {
	cfg  Config
	root syftpath.Abs
	log  logrus.FieldLogger

	requestsDeleted  int64
	responsesDeleted int64
	errors           int64

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewService constructs a Service from cfg, applying defaults for Interval
// (1m), Retention (0, i.e. evict as soon as expires passes), and Log.
func NewService(cfg Config) *Service {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	if cfg.Log == nil {
		cfg.Log = logrus.StandardLogger()
	}
	root := syftpath.NewAbs(cfg.Workspace.String()).Join("datasites", cfg.Datasite, "app_data")
	return &Service{
		cfg:  cfg,
		root: root,
		log:  cfg.Log.WithField("component", "cleanup"),
	}
}

// Stats returns a snapshot of the service's cumulative counters.
func (s *Service) Stats() Stats {
	return Stats{
		RequestsDeleted:  atomic.LoadInt64(&s.requestsDeleted),
		ResponsesDeleted: atomic.LoadInt64(&s.responsesDeleted),
		Errors:           atomic.LoadInt64(&s.errors),
	}
}

// Start begins the periodic sweep loop. It is idempotent; calling Start on
// an already-running service is a no-op.
func (s *Service) Start(ctx context.Context) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.running = true
	s.mu.Unlock()

	s.wg.Add(1)
	go s.run(runCtx)
}

// Stop cancels the sweep loop and waits for the in-flight sweep to finish.
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	cancel := s.cancel
	s.mu.Unlock()

	cancel()
	s.wg.Wait()
}

func (s *Service) run(ctx context.Context) {
	defer s.wg.Done()
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	s.SweepOnce()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.SweepOnce()
		}
	}
}

// SweepOnce runs one pass over every RPC directory under the service's
// datasite, deleting expired records. Per-file errors are logged and
// counted, never aborting the sweep.
func (s *Service) SweepOnce() {
	now := time.Now().UTC()
	cutoff := now.Add(-s.cfg.Retention)

	_ = filepath.WalkDir(s.root.String(), func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			atomic.AddInt64(&s.errors, 1)
			sweepMetrics.errors.Add(context.Background(), 1)
			s.log.WithError(err).WithField("path", path).Warn("cleanup: walk error")
			return nil
		}
		if d.IsDir() {
			return nil
		}
		s.sweepFile(path, cutoff)
		return nil
	})
}

func (s *Service) sweepFile(path string, cutoff time.Time) {
	switch {
	case strings.HasSuffix(path, protocol.RejectionSuffix):
		s.sweepByModTime(path, cutoff)
	case strings.HasSuffix(path, protocol.RequestSuffix):
		s.sweepRecord(path, cutoff, recordKindRequest)
	case strings.HasSuffix(path, protocol.ResponseSuffix):
		s.sweepRecord(path, cutoff, recordKindResponse)
	}
}

type recordKind int

const (
	recordKindRequest recordKind = iota
	recordKindResponse
)

func (s *Service) sweepRecord(path string, cutoff time.Time, kind recordKind) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return
		}
		s.noteError(path, err)
		return
	}

	var expires time.Time
	switch kind {
	case recordKindRequest:
		req, err := protocol.DecodeRequest(data)
		if err != nil {
			s.noteError(path, err)
			return
		}
		expires = req.Expires
	case recordKindResponse:
		resp, err := protocol.DecodeResponse(data)
		if err != nil {
			s.noteError(path, err)
			return
		}
		expires = resp.Expires
	}

	if expires.After(cutoff) {
		return
	}
	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			return
		}
		s.noteError(path, err)
		return
	}
	if kind == recordKindRequest {
		atomic.AddInt64(&s.requestsDeleted, 1)
		sweepMetrics.requestsDeleted.Add(context.Background(), 1)
	} else {
		atomic.AddInt64(&s.responsesDeleted, 1)
		sweepMetrics.responsesDeleted.Add(context.Background(), 1)
	}
}

// sweepByModTime handles rejection markers, which carry no body and so have
// no expires field to decode; age is judged from the file's own mtime. A
// marker is only removed once it is orphaned, i.e. its .request sibling is
// gone.
func (s *Service) sweepByModTime(path string, cutoff time.Time) {
	reqPath := strings.TrimSuffix(path, protocol.RejectionSuffix) + protocol.RequestSuffix
	if _, err := os.Stat(reqPath); err == nil {
		return
	}
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return
		}
		s.noteError(path, err)
		return
	}
	if info.ModTime().After(cutoff) {
		return
	}
	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			return
		}
		s.noteError(path, err)
		return
	}
	atomic.AddInt64(&s.responsesDeleted, 1)
	sweepMetrics.responsesDeleted.Add(context.Background(), 1)
}

func (s *Service) noteError(path string, err error) {
	atomic.AddInt64(&s.errors, 1)
	sweepMetrics.errors.Add(context.Background(), 1)
	s.log.WithError(err).WithField("path", path).Warn("cleanup: sweep error")
}
