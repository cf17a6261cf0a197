// Package notify is the one-way notification surface the scheduler emits
// terminal transitions through. The scheduler fires and forgets; rendering
// (toasts, modals, ticker lines) belongs to the presentation layer behind
// the Sink.
package notify

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	logx "underlord/pkg/logx"
)

type Severity int

const (
	SeverityInfo Severity = iota
	SeverityWarning
	SeverityAlert
)

func (s Severity) String() string {
	switch s {
	case SeverityWarning:
		return "warning"
	case SeverityAlert:
		return "alert"
	default:
		return "info"
	}
}

// Notification is one externally observable announcement.
// Duration is a display hint; zero means the presenter's default.
type Notification struct {
	Severity Severity
	Title    string
	Text     string
	Duration time.Duration
}

// Sink receives notifications. Implementations must not block; the
// scheduler calls Announce from its tick path.
type Sink interface {
	Announce(ctx context.Context, n Notification)
}

// Discard is a Sink that drops everything. Useful default for tests.
var Discard Sink = discardSink{}

type discardSink struct{}

func (discardSink) Announce(context.Context, Notification) {}

// Config controls the notification service.
type Config struct {
	// RatePerSec throttles forwarded notifications; excess is dropped
	// (never queued, never blocking). Zero means 5/s.
	RatePerSec int
	// HistorySize bounds the kept announcement history. Zero means 100.
	HistorySize int
}

// Service forwards notifications to a presenter, keeps a bounded history,
// and rate-limits bursts so a noisy tick cannot flood the UI.
type Service struct {
	log     logx.Logger
	forward Sink
	limiter *rate.Limiter

	mu          sync.Mutex
	history     []Notification
	historySize int
	dropped     uint64
}

// New wires a Service in front of the presenter sink. A nil presenter is
// allowed; notifications then only reach the log and history.
func New(cfg Config, presenter Sink, log logx.Logger) *Service {
	rps := cfg.RatePerSec
	if rps <= 0 {
		rps = 5
	}
	hs := cfg.HistorySize
	if hs <= 0 {
		hs = 100
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{
		log:         log,
		forward:     presenter,
		limiter:     rate.NewLimiter(rate.Limit(rps), rps),
		historySize: hs,
	}
}

func (s *Service) Announce(ctx context.Context, n Notification) {
	if !s.limiter.Allow() {
		s.mu.Lock()
		s.dropped++
		s.mu.Unlock()
		s.log.Debug("notification dropped (rate)", logx.String("title", n.Title))
		return
	}

	s.log.Info("announce",
		logx.String("severity", n.Severity.String()),
		logx.String("title", n.Title),
		logx.String("text", n.Text),
	)

	if s.forward != nil {
		s.forward.Announce(ctx, n)
	}
	s.appendHistory(n)
}

func (s *Service) appendHistory(n Notification) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = append(s.history, n)
	if len(s.history) > s.historySize {
		s.history = s.history[len(s.history)-s.historySize:]
	}
}

// History returns a copy of the recent announcements, oldest first.
func (s *Service) History() []Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Notification, len(s.history))
	copy(out, s.history)
	return out
}

// Dropped reports how many notifications the limiter discarded.
func (s *Service) Dropped() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dropped
}

// Recorder is a Sink for tests: it counts and keeps every announcement.
type Recorder struct {
	mu   sync.Mutex
	seen []Notification
}

func (r *Recorder) Announce(_ context.Context, n Notification) {
	r.mu.Lock()
	r.seen = append(r.seen, n)
	r.mu.Unlock()
}

func (r *Recorder) All() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Notification, len(r.seen))
	copy(out, r.seen)
	return out
}

func (r *Recorder) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.seen)
}
