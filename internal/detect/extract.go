// Package detect mines a plausible important date out of rendered page
// text. It never fetches anything itself; it only looks at text a page
// source already holds.
package detect

import (
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	DefaultMaxChars = 20000
	DefaultMaxHits  = 18
	DefaultWindow   = 120
)

var patterns = []*regexp.Regexp{
	regexp.MustCompile(`\d{4}-\d{2}-\d{2}`),
	regexp.MustCompile(`\d{1,2}[/.]\d{1,2}[/.]\d{4}`),
	regexp.MustCompile(`[A-Za-zÀ-ÿ.]{3,}\s+\d{1,2},?\s+\d{4}`),
}

var (
	isoDate     = regexp.MustCompile(`^(\d{4})-(\d{2})-(\d{2})$`)
	numericDate = regexp.MustCompile(`^(\d{1,2})[/.](\d{1,2})[/.](\d{4})$`)
	longDate    = regexp.MustCompile(`^([A-Za-zÀ-ÿ.]{3,})\s+(\d{1,2}),?\s+(\d{4})$`)
)

var months = map[string]time.Month{
	"jan": 1, "january": 1, "janvier": 1,
	"feb": 2, "february": 2, "fev": 2, "fevr": 2, "fevrier": 2, "fév": 2, "févr": 2, "février": 2,
	"mar": 3, "march": 3, "mars": 3,
	"apr": 4, "april": 4, "avr": 4, "avril": 4,
	"may": 5, "mai": 5,
	"jun": 6, "june": 6, "juin": 6,
	"jul": 7, "july": 7, "juil": 7, "juillet": 7,
	"aug": 8, "august": 8, "aout": 8, "août": 8,
	"sep": 9, "sept": 9, "september": 9, "septembre": 9,
	"oct": 10, "october": 10, "octobre": 10,
	"nov": 11, "november": 11, "novembre": 11,
	"dec": 12, "december": 12, "decembre": 12, "déc": 12, "décembre": 12,
}

// keywords is checked in order; the first type with a keyword in the
// snippet wins.
var keywords = []struct {
	eventType string
	words     []string
}{
	{"biometrics", []string{"biometrics", "biometric", "biométrie", "biometrie"}},
	{"appointment", []string{"appointment", "rendez-vous"}},
	{"submission", []string{"submission", "soumission", "dépôt"}},
	{"deadline", []string{"deadline", "date limite"}},
	{"payment", []string{"payment", "paiement"}},
	{"passport_collection", []string{"passport_collection", "collect", "retrait"}},
	{"visa_validity", []string{"visa_validity", "valid"}},
	{"entry_deadline", []string{"entry_deadline", "entrée"}},
}

// Candidate is the best date found on a page.
type Candidate struct {
	EventType  string
	Title      string
	DateISO    string
	Snippet    string
	Confidence float64
}

// Extractor holds the bounds of one extraction.
type Extractor struct {
	MaxChars int
	MaxHits  int
	Window   int
}

// DefaultExtractor uses the standard bounds.
var DefaultExtractor = Extractor{
	MaxChars: DefaultMaxChars,
	MaxHits:  DefaultMaxHits,
	Window:   DefaultWindow,
}

// Extract runs DefaultExtractor over text.
func Extract(text string) (Candidate, bool) {
	return DefaultExtractor.Extract(text)
}

type hit struct {
	raw string
	pos int // rune offset in the sample
}

// Extract scans a bounded prefix of text and returns the single highest
// scoring candidate. Ties keep the earliest hit.
func (e Extractor) Extract(text string) (Candidate, bool) {
	sample := []rune(text)
	if e.MaxChars > 0 && len(sample) > e.MaxChars {
		sample = sample[:e.MaxChars]
	}
	s := string(sample)

	var best Candidate
	found := false
	for _, h := range e.hits(s) {
		date, ok := parseDate(h.raw)
		if !ok {
			continue
		}
		snippet := window(sample, h.pos, e.Window)
		et := classify(snippet)
		c := Candidate{
			EventType:  et,
			Title:      strings.ReplaceAll(et, "_", " "),
			DateISO:    date,
			Snippet:    snippet,
			Confidence: score(et, snippet),
		}
		if !found || c.Confidence > best.Confidence {
			best = c
			found = true
		}
	}
	return best, found
}

func (e Extractor) hits(s string) []hit {
	var out []hit
	for _, re := range patterns {
		for _, loc := range re.FindAllStringIndex(s, -1) {
			if e.MaxHits > 0 && len(out) >= e.MaxHits {
				return out
			}
			out = append(out, hit{
				raw: s[loc[0]:loc[1]],
				pos: utf8.RuneCountInString(s[:loc[0]]),
			})
		}
	}
	return out
}

// window returns the runes within radius of pos, starting from the hit.
func window(sample []rune, pos, radius int) string {
	start := max(0, pos-radius)
	end := min(len(sample), pos+radius)
	return string(sample[start:end])
}

func classify(snippet string) string {
	s := strings.ToLower(snippet)
	for _, k := range keywords {
		for _, w := range k.words {
			if strings.Contains(s, w) {
				return k.eventType
			}
		}
	}
	return "other"
}

// score is 0.7 for a classified snippet, 0.4 otherwise, plus up to 0.3 for
// snippet length.
func score(eventType, snippet string) float64 {
	base := 0.4
	if eventType != "other" {
		base = 0.7
	}
	return base + min(0.3, float64(utf8.RuneCountInString(snippet))/400)
}

// parseDate normalizes a raw hit to YYYY-MM-DD. Numeric dates are read day
// first. Hits that are not a real calendar day are rejected.
func parseDate(raw string) (string, bool) {
	t := strings.TrimSpace(raw)
	var y, m, d int
	switch {
	case isoDate.MatchString(t):
		p := isoDate.FindStringSubmatch(t)
		y, m, d = atoi(p[1]), atoi(p[2]), atoi(p[3])
	case numericDate.MatchString(t):
		p := numericDate.FindStringSubmatch(t)
		y, m, d = atoi(p[3]), atoi(p[2]), atoi(p[1])
	case longDate.MatchString(t):
		p := longDate.FindStringSubmatch(t)
		month, ok := months[strings.ReplaceAll(strings.ToLower(p[1]), ".", "")]
		if !ok {
			return "", false
		}
		y, m, d = atoi(p[3]), int(month), atoi(p[2])
	default:
		return "", false
	}

	day := time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC)
	if day.Year() != y || int(day.Month()) != m || day.Day() != d {
		return "", false
	}
	return day.Format("2006-01-02"), true
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}
