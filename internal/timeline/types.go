package timeline

import (
	"fmt"
	"strings"
	"time"
)

// EventType is the closed set of dated obligations a case can carry.
type EventType string

const (
	EventAppointment        EventType = "appointment"
	EventBiometrics         EventType = "biometrics"
	EventSubmission         EventType = "submission"
	EventDeadline           EventType = "deadline"
	EventPayment            EventType = "payment"
	EventPassportCollection EventType = "passport_collection"
	EventVisaValidity       EventType = "visa_validity"
	EventEntryDeadline      EventType = "entry_deadline"
	EventOther              EventType = "other"
)

// EventTypes lists every valid event type in declaration order.
var EventTypes = []EventType{
	EventAppointment,
	EventBiometrics,
	EventSubmission,
	EventDeadline,
	EventPayment,
	EventPassportCollection,
	EventVisaValidity,
	EventEntryDeadline,
	EventOther,
}

// ParseEventType accepts only members of the closed set.
func ParseEventType(s string) (EventType, error) {
	t := EventType(strings.ToLower(strings.TrimSpace(s)))
	for _, v := range EventTypes {
		if t == v {
			return t, nil
		}
	}
	return "", fmt.Errorf("unknown event type: %q", s)
}

// Stage tags where a case currently is.
type Stage string

const (
	StageResearch    Stage = "research"
	StageApplication Stage = "application"
	StageAppointment Stage = "appointment"
	StageBiometrics  Stage = "biometrics"
	StageSubmission  Stage = "submission"
	StageWaiting     Stage = "waiting"
	StageDecision    Stage = "decision"
	StageCompleted   Stage = "completed"
	StageOther       Stage = "other"
)

// Status values for events.
type Status string

const (
	StatusUpcoming  Status = "upcoming"
	StatusCompleted Status = "completed"
	StatusOverdue   Status = "overdue"
)

// Source records how an event entered the timeline.
type Source string

const (
	SourceDetected Source = "detected"
	SourceManual   Source = "manual"
)

// Priority levels for reminders.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// Actor is who caused a history record.
type Actor string

const (
	ActorSystem Actor = "system"
	ActorUser   Actor = "user"
)

// ChangeAction names a history transition.
type ChangeAction string

const (
	ActionCreated         ChangeAction = "created"
	ActionEditedDate      ChangeAction = "edited_date"
	ActionMarkedCompleted ChangeAction = "marked_completed"
	ActionDeleted         ChangeAction = "deleted"
	ActionConfirmed       ChangeAction = "confirmed"
	ActionIgnored         ChangeAction = "ignored"
)

// DateFields is either a single date or a start/end range, all YYYY-MM-DD.
type DateFields struct {
	DateISO      string `json:"dateIso,omitempty"`
	StartDateISO string `json:"startDateIso,omitempty"`
	EndDateISO   string `json:"endDateIso,omitempty"`
}

// Effective returns the date reminders and status attach to: the single
// date, or the start of a range.
func (d DateFields) Effective() string {
	if d.DateISO != "" {
		return d.DateISO
	}
	return d.StartDateISO
}

// Validate rejects set fields that are not real YYYY-MM-DD days.
func (d DateFields) Validate() error {
	for _, v := range []string{d.DateISO, d.StartDateISO, d.EndDateISO} {
		if v == "" {
			continue
		}
		if _, ok := ParseDate(v, 0, time.UTC); !ok {
			return fmt.Errorf("invalid date %q (use YYYY-MM-DD)", v)
		}
	}
	return nil
}

func (d DateFields) IsZero() bool {
	return d.DateISO == "" && d.StartDateISO == "" && d.EndDateISO == ""
}

// VisaCase is one tracked procedure.
type VisaCase struct {
	ID        string    `json:"id"`
	Country   string    `json:"country"`
	VisaType  string    `json:"visaType"`
	Objective string    `json:"objective,omitempty"`
	Stage     Stage     `json:"stage,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Key is the identity used by UpsertCase.
func (c VisaCase) Key() string {
	return caseKey(c.Country, c.VisaType)
}

func caseKey(country, visaType string) string {
	return strings.ToLower(country + "__" + visaType)
}

// Reminder is one offset of an event's schedule. NotificationID is empty
// when the fire time had already passed or registration failed.
type Reminder struct {
	OffsetDays     int      `json:"offsetDays"`
	NotificationID string   `json:"notificationId,omitempty"`
	FireDateISO    string   `json:"fireDateIso"`
	Priority       Priority `json:"priority"`
}

// ChangeRecord is one entry of an event's audit history.
type ChangeRecord struct {
	Timestamp time.Time    `json:"ts"`
	Actor     Actor        `json:"by"`
	Action    ChangeAction `json:"action"`
	From      *DateFields  `json:"from,omitempty"`
	To        *DateFields  `json:"to,omitempty"`
}

// VisaEvent is a dated obligation owned by one case.
type VisaEvent struct {
	ID     string         `json:"id"`
	VisaID string         `json:"visaId"`
	Type   EventType      `json:"type"`
	Title  string         `json:"title"`
	Notes  string         `json:"notes,omitempty"`
	Meta   map[string]any `json:"meta,omitempty"`
	DateFields
	Tentative  bool           `json:"tentative"`
	Source     Source         `json:"source"`
	SourceURL  string         `json:"sourceUrl,omitempty"`
	UserEdited bool           `json:"userEdited"`
	Status     Status         `json:"status"`
	CreatedAt  time.Time      `json:"createdAt"`
	UpdatedAt  time.Time      `json:"updatedAt"`
	History    []ChangeRecord `json:"history"`
	Reminders  []Reminder     `json:"reminders"`
}

// PendingDetection is an unconfirmed candidate awaiting save/edit/ignore.
type PendingDetection struct {
	ID     string    `json:"id"`
	VisaID string    `json:"visaId"`
	Type   EventType `json:"type"`
	Title  string    `json:"title"`
	DateFields
	Snippet    string    `json:"snippet,omitempty"`
	Confidence float64   `json:"confidence,omitempty"`
	SourceURL  string    `json:"sourceUrl,omitempty"`
	DetectedAt time.Time `json:"detectedAt"`
}

// ProcedureProgress is the set of completed step ids of one case.
type ProcedureProgress struct {
	CompletedStepIDs []string  `json:"completedStepIds"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

// Settings holds global switches.
type Settings struct {
	// SilentMode keeps detection UI to a toast; confirmation and reminder
	// logic are unaffected.
	SilentMode bool `json:"silentMode"`
}

// State is the aggregate persisted as one unit.
type State struct {
	Visas     []VisaCase                   `json:"visas"`
	Events    []VisaEvent                  `json:"events"`
	Pending   []PendingDetection           `json:"pending"`
	Procedure map[string]ProcedureProgress `json:"procedure"`
	Settings  Settings                     `json:"settings"`
}
