package model

import "testing"

func TestIsTransitionAllowed(t *testing.T) {
	tests := []struct {
		from, to Status
		want     bool
	}{
		{StatusNew, StatusInterested, true},
		{StatusNew, StatusApplied, true},
		{StatusApplied, StatusResponded, true},
		{StatusInterviewed, StatusOfferReceived, true},
		{StatusOfferReceived, StatusAccepted, true},
		{StatusOfferReceived, StatusDeclinedOffer, true},
		{StatusApplied, StatusRejected, true},
		{StatusPhoneScreen, StatusOnHold, true},
		{StatusOnHold, StatusPhoneScreen, true},
		{StatusFollowUp, StatusOnHold, true},
		{StatusFollowUp, StatusInterviewed, true},

		{StatusApplied, StatusNew, false},
		{StatusInterviewed, StatusApplied, false},
		{StatusNew, StatusAccepted, false},
		{StatusApplied, StatusDeclinedOffer, false},
		{StatusOnHold, StatusOnHold, false},
		{StatusOnHold, StatusAccepted, false},
		{StatusAccepted, StatusRejected, false},
		{StatusRejected, StatusNew, false},
		{StatusDeclinedOffer, StatusOfferReceived, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			if got := IsTransitionAllowed(tt.from, tt.to); got != tt.want {
				t.Errorf("IsTransitionAllowed(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.want)
			}
		})
	}
}

func TestTerminalStates(t *testing.T) {
	for _, s := range []Status{StatusAccepted, StatusDeclinedOffer, StatusRejected} {
		if !IsTerminal(s) {
			t.Errorf("%s should be terminal", s)
		}
	}
	for _, s := range []Status{StatusNew, StatusOnHold, StatusOfferReceived} {
		if IsTerminal(s) {
			t.Errorf("%s should not be terminal", s)
		}
	}
}

func TestParseStatus(t *testing.T) {
	for _, raw := range []string{"new", "phone_screen", "declined_offer", "follow_up"} {
		if _, err := ParseStatus(raw); err != nil {
			t.Errorf("ParseStatus(%q): %v", raw, err)
		}
	}
	if _, err := ParseStatus("hired"); err == nil {
		t.Error("expected error for unknown status")
	}
}

func TestFilterMetricsEfficiency(t *testing.T) {
	m := FilterMetrics{CardsSeen: 20, Tier1Filtered: 6, Tier2Skipped: 3, Tier3Filtered: 1}
	if got := m.Efficiency(); got != 50 {
		t.Errorf("Efficiency = %v, want 50", got)
	}
	if got := (FilterMetrics{}).Efficiency(); got != 0 {
		t.Errorf("empty Efficiency = %v, want 0", got)
	}
}

func TestMatchStatusFactor(t *testing.T) {
	tests := map[string]float64{"yes": 1, "match": 1, "partial": 0.5, "no": 0, "concern": 0}
	for raw, want := range tests {
		st, err := ParseMatchStatus(raw)
		if err != nil {
			t.Fatalf("ParseMatchStatus(%q): %v", raw, err)
		}
		if st.Factor() != want {
			t.Errorf("%s factor = %v, want %v", raw, st.Factor(), want)
		}
	}
}
