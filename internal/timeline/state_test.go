package timeline

import (
	"bytes"
	"context"
	"testing"
	"time"
)

func TestEncodeDecode_RoundTrip(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	caseID := mustCase(t, f.store)
	ev := mustEvent(t, f.store, caseID, daysFromNow(10))
	f.store.EditEventDate(ctx, ev.ID, DateFields{StartDateISO: daysFromNow(12), EndDateISO: daysFromNow(40)})
	mustDetection(t, f.store, caseID, daysFromNow(3))
	f.store.ToggleProcedureStep(ctx, caseID, "passport")
	f.store.SetSilentMode(ctx, false)

	first, err := Encode(f.store.State())
	if err != nil {
		t.Fatal(err)
	}
	decoded, err := Decode(first)
	if err != nil {
		t.Fatal(err)
	}
	second, err := Encode(decoded)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(first, second) {
		t.Errorf("round trip changed the payload:\n%s\n%s", first, second)
	}
}

func TestDecode_ToleratesMalformedFields(t *testing.T) {
	st, err := Decode([]byte(`{"visas": {"not": "a list"}, "events": [{"id": "evt_1", "visaId": "visa_1", "type": "payment", "title": "Fee"}], "settings": {}}`))
	if err != nil {
		t.Fatal(err)
	}
	if len(st.Visas) != 0 {
		t.Errorf("expected malformed visas dropped, got %v", st.Visas)
	}
	if len(st.Events) != 1 || st.Events[0].Title != "Fee" {
		t.Errorf("expected events decoded, got %+v", st.Events)
	}
	if st.Pending == nil || st.Procedure == nil {
		t.Error("expected missing collections to be empty, not nil")
	}
	if !st.Settings.SilentMode {
		t.Error("expected silent mode default when unset")
	}
}

func TestDecode_SilentModeFalseIsKept(t *testing.T) {
	st, err := Decode([]byte(`{"settings": {"silentMode": false}}`))
	if err != nil {
		t.Fatal(err)
	}
	if st.Settings.SilentMode {
		t.Error("expected stored false to be honored")
	}
}

func TestDecode_RejectsNonObject(t *testing.T) {
	if _, err := Decode([]byte(`[1,2,3]`)); err == nil {
		t.Error("expected error for non-object payload")
	}
}

func TestEncode_EmptyStateHasEveryKey(t *testing.T) {
	data, err := Encode(NewState())
	if err != nil {
		t.Fatal(err)
	}
	want := `{"visas":[],"events":[],"pending":[],"procedure":{},"settings":{"silentMode":true}}`
	if string(data) != want {
		t.Errorf("got %s\nwant %s", data, want)
	}
}

func TestComputeStatus(t *testing.T) {
	tests := []struct {
		date  string
		today string
		want  Status
	}{
		{"2026-10-13", "2026-10-14", StatusOverdue},
		{"2026-10-14", "2026-10-14", StatusUpcoming},
		{"2026-10-15", "2026-10-14", StatusUpcoming},
		{"", "2026-10-14", StatusUpcoming},
		{"2026-02-30", "2026-10-14", StatusUpcoming},
		{"soon", "2026-10-14", StatusUpcoming},
	}
	for _, tt := range tests {
		if got := ComputeStatus(tt.date, tt.today); got != tt.want {
			t.Errorf("ComputeStatus(%q, %q) = %s, want %s", tt.date, tt.today, got, tt.want)
		}
	}
}

func TestParseDate(t *testing.T) {
	loc := time.FixedZone("CET", 3600)
	got, ok := ParseDate("2026-03-10", 9, loc)
	if !ok {
		t.Fatal("expected valid date")
	}
	if want := time.Date(2026, 3, 10, 9, 0, 0, 0, loc); !got.Equal(want) {
		t.Errorf("got %v, want %v", got, want)
	}
	for _, bad := range []string{"2026-3-10", "2026-13-01", "2026-02-29", "10/03/2026", ""} {
		if _, ok := ParseDate(bad, 9, loc); ok {
			t.Errorf("expected %q to be rejected", bad)
		}
	}
}

func TestEffectiveDate(t *testing.T) {
	if got := (DateFields{DateISO: "2026-01-02", StartDateISO: "2026-01-01"}).Effective(); got != "2026-01-02" {
		t.Errorf("single date must win, got %s", got)
	}
	if got := (DateFields{StartDateISO: "2026-01-01", EndDateISO: "2026-02-01"}).Effective(); got != "2026-01-01" {
		t.Errorf("range start expected, got %s", got)
	}
}

func TestDateFieldsValidate(t *testing.T) {
	if err := (DateFields{}).Validate(); err != nil {
		t.Errorf("empty fields must be valid, got %v", err)
	}
	if err := (DateFields{StartDateISO: "2026-01-01", EndDateISO: "2026-02-30"}).Validate(); err == nil {
		t.Error("expected impossible end date to be rejected")
	}
}

func TestPriorityAndBody(t *testing.T) {
	cases := map[int]Priority{14: PriorityLow, 7: PriorityMedium, 3: PriorityHigh, 1: PriorityHigh, 0: PriorityHigh}
	for off, want := range cases {
		if got := PriorityForOffset(off); got != want {
			t.Errorf("offset %d: got %s, want %s", off, got, want)
		}
	}
	if got := ReminderBody("Biometrics", 3); got != "Biometrics (D-3)" {
		t.Errorf("unexpected body %q", got)
	}
	if got := ReminderBody("Biometrics", 0); got != "Biometrics" {
		t.Errorf("unexpected D-0 body %q", got)
	}
}
