// Package portal hosts an embedded page session: it receives the scanner's
// messages and turns each detection into a pending item of the timeline.
package portal

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"

	"github.com/notexe/visa-timeline/internal/detect"
	"github.com/notexe/visa-timeline/internal/timeline"
)

// TitlePrefix marks detection titles in the pending queue.
const TitlePrefix = "Detected date: "

// Params identify the case a portal session belongs to.
type Params struct {
	URL       string
	Country   string
	VisaType  string
	Objective string
	Stage     timeline.Stage
}

// Notice tells the UI what to show for a stored detection. Prompt is false
// in silent mode, where only a toast is shown.
type Notice struct {
	DetectionID string
	Title       string
	DateISO     string
	Prompt      bool
}

// Session is one open portal.
type Session struct {
	store  *timeline.Store
	params Params

	mu     sync.Mutex
	caseID string
}

// NewSession prepares a session. The case is created on the first
// detection.
func NewSession(store *timeline.Store, params Params) *Session {
	p := params
	p.Country = strings.TrimSpace(p.Country)
	p.VisaType = strings.TrimSpace(p.VisaType)
	p.Objective = strings.TrimSpace(p.Objective)
	if p.Stage == "" {
		p.Stage = timeline.StageResearch
	}
	return &Session{store: store, params: p}
}

// CaseID returns the session's case, upserting it once.
func (s *Session) CaseID(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.caseID != "" {
		return s.caseID, nil
	}
	id, err := s.store.UpsertCase(ctx, s.params.Country, s.params.VisaType, s.params.Objective, s.params.Stage)
	if err != nil {
		return "", fmt.Errorf("failed to ensure case: %w", err)
	}
	s.caseID = id
	return id, nil
}

// HandleMessage stores one scanner message as a pending detection. Malformed
// payloads and other message types return a nil notice and no error.
func (s *Session) HandleMessage(ctx context.Context, raw []byte) (*Notice, error) {
	msg, err := detect.ParseMessage(raw)
	if err != nil {
		if !errors.Is(err, detect.ErrIgnored) {
			log.Printf("[portal] Dropping message: %v", err)
		}
		return nil, nil
	}

	caseID, err := s.CaseID(ctx)
	if err != nil {
		return nil, err
	}

	id, err := s.store.AddPendingDetection(ctx, timeline.Detection{
		VisaID: caseID,
		Type:   ToEventType(msg.EventType),
		Title:  TitlePrefix + msg.Title,
		DateFields: timeline.DateFields{
			DateISO:      msg.DateISO,
			StartDateISO: msg.StartDateISO,
			EndDateISO:   msg.EndDateISO,
		},
		Snippet:    msg.Snippet,
		Confidence: msg.Confidence,
		SourceURL:  msg.URL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to store detection: %w", err)
	}

	return &Notice{
		DetectionID: id,
		Title:       msg.Title,
		DateISO:     msg.DateISO,
		Prompt:      !s.store.SilentMode(),
	}, nil
}

// Run consumes messages until in is closed or ctx ends. onNotice may be nil.
func (s *Session) Run(ctx context.Context, in <-chan []byte, onNotice func(Notice)) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case raw, ok := <-in:
			if !ok {
				return nil
			}
			n, err := s.HandleMessage(ctx, raw)
			if err != nil {
				log.Printf("[portal] Error: %v", err)
				continue
			}
			if n != nil && onNotice != nil {
				onNotice(*n)
			}
		}
	}
}

// ToEventType maps a scanner event type onto the closed set. Exact members
// pass through; anything else is matched by substring.
func ToEventType(raw string) timeline.EventType {
	if t, err := timeline.ParseEventType(raw); err == nil {
		return t
	}
	x := strings.ToLower(strings.TrimSpace(raw))
	switch {
	case strings.Contains(x, "biometric"):
		return timeline.EventBiometrics
	case strings.Contains(x, "appoint"):
		return timeline.EventAppointment
	case strings.Contains(x, "submi"):
		return timeline.EventSubmission
	case strings.Contains(x, "deadline"):
		return timeline.EventDeadline
	case strings.Contains(x, "pay"):
		return timeline.EventPayment
	case strings.Contains(x, "collect"):
		return timeline.EventPassportCollection
	case strings.Contains(x, "valid"):
		return timeline.EventVisaValidity
	case strings.Contains(x, "entry"):
		return timeline.EventEntryDeadline
	default:
		return timeline.EventOther
	}
}
