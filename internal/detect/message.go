package detect

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// TypeDateDetected is the only message type the host acts on.
const TypeDateDetected = "date_detected"

// hashPrefix is how much of an encoded message takes part in dedup.
const hashPrefix = 220

// ErrIgnored marks a well-formed message of a type the host does not handle.
var ErrIgnored = errors.New("message type not handled")

// Message is what the scanner posts to its host, one per emission.
type Message struct {
	Type         string  `json:"type"`
	URL          string  `json:"url"`
	EventType    string  `json:"eventType"`
	Title        string  `json:"title"`
	DateISO      string  `json:"dateIso,omitempty"`
	StartDateISO string  `json:"startDateIso,omitempty"`
	EndDateISO   string  `json:"endDateIso,omitempty"`
	Snippet      string  `json:"snippet,omitempty"`
	Confidence   float64 `json:"confidence,omitempty"`
}

// NewMessage wraps a candidate found on url.
func NewMessage(url string, c Candidate) Message {
	return Message{
		Type:       TypeDateDetected,
		URL:        url,
		EventType:  c.EventType,
		Title:      c.Title,
		DateISO:    c.DateISO,
		Snippet:    c.Snippet,
		Confidence: c.Confidence,
	}
}

// Encode returns the JSON payload and its dedup hash.
func (m Message) Encode() ([]byte, string, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return nil, "", fmt.Errorf("failed to encode message: %w", err)
	}
	return data, payloadHash(data), nil
}

func payloadHash(data []byte) string {
	if len(data) > hashPrefix {
		data = data[:hashPrefix]
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// ParseMessage decodes a raw payload. Anything that is not a JSON object,
// or carries a date that is not a real YYYY-MM-DD day, is an error; other
// message types return ErrIgnored.
func ParseMessage(raw []byte) (Message, error) {
	var m Message
	if err := json.Unmarshal(raw, &m); err != nil {
		return Message{}, fmt.Errorf("malformed message: %w", err)
	}
	if m.Type != TypeDateDetected {
		return Message{}, fmt.Errorf("%w: %q", ErrIgnored, m.Type)
	}
	m.URL = strings.TrimSpace(m.URL)
	m.EventType = strings.TrimSpace(m.EventType)
	m.Title = strings.TrimSpace(m.Title)
	for _, d := range []*string{&m.DateISO, &m.StartDateISO, &m.EndDateISO} {
		*d = strings.TrimSpace(*d)
		if *d == "" {
			continue
		}
		if !isDay(*d) {
			return Message{}, fmt.Errorf("malformed message: invalid date %q", *d)
		}
	}
	return m, nil
}

// isDay reports whether s is a real calendar day in YYYY-MM-DD form.
func isDay(s string) bool {
	if !isoDate.MatchString(s) {
		return false
	}
	_, ok := parseDate(s)
	return ok
}
