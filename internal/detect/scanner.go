package detect

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/notexe/visa-timeline/internal/metrics"
)

const (
	DefaultInitialDelay = 1200 * time.Millisecond
	DefaultInterval     = 7 * time.Second
)

// Scanner periodically extracts the best date from a page source and posts
// a message when it differs from the previous emission.
type Scanner struct {
	source       PageSource
	extractor    Extractor
	initialDelay time.Duration
	interval     time.Duration

	mu       sync.Mutex
	lastHash string
}

// ScannerOption configures a Scanner.
type ScannerOption func(*Scanner)

// WithExtractor overrides DefaultExtractor.
func WithExtractor(e Extractor) ScannerOption {
	return func(s *Scanner) { s.extractor = e }
}

// WithCadence sets the delay before the first scan and the rescan interval.
func WithCadence(initialDelay, interval time.Duration) ScannerOption {
	return func(s *Scanner) {
		if initialDelay >= 0 {
			s.initialDelay = initialDelay
		}
		if interval > 0 {
			s.interval = interval
		}
	}
}

// NewScanner creates a scanner over source.
func NewScanner(source PageSource, opts ...ScannerOption) *Scanner {
	s := &Scanner{
		source:       source,
		extractor:    DefaultExtractor,
		initialDelay: DefaultInitialDelay,
		interval:     DefaultInterval,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Scan runs one cycle. It returns the encoded message and true when there
// is something new to emit.
func (s *Scanner) Scan(ctx context.Context) ([]byte, bool, error) {
	page, err := s.source.Page(ctx)
	if err != nil {
		return nil, false, err
	}

	c, ok := s.extractor.Extract(page.Text)
	if !ok {
		metrics.Detections.WithLabelValues("none").Inc()
		return nil, false, nil
	}

	data, hash, err := NewMessage(page.URL, c).Encode()
	if err != nil {
		return nil, false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if hash == s.lastHash {
		metrics.Detections.WithLabelValues("duplicate").Inc()
		return nil, false, nil
	}
	s.lastHash = hash
	metrics.Detections.WithLabelValues("emitted").Inc()
	return data, true, nil
}

// Run scans once after the initial delay and then on every interval until
// ctx is cancelled, posting new messages to out. It never closes out.
func (s *Scanner) Run(ctx context.Context, out chan<- []byte) error {
	log.Printf("[detect] Started. First scan in %s, then every %s", s.initialDelay, s.interval)

	first := time.NewTimer(s.initialDelay)
	defer first.Stop()

	select {
	case <-ctx.Done():
		return nil
	case <-first.C:
	}
	if err := s.emit(ctx, out); err != nil {
		return nil
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("[detect] Shutting down...")
			return nil
		case <-ticker.C:
			if err := s.emit(ctx, out); err != nil {
				return nil
			}
		}
	}
}

// emit only fails when ctx ended while waiting on out.
func (s *Scanner) emit(ctx context.Context, out chan<- []byte) error {
	data, ok, err := s.Scan(ctx)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			log.Printf("[detect] Error: scan failed: %v", err)
		}
		return nil
	}
	if !ok {
		return nil
	}
	select {
	case out <- data:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
