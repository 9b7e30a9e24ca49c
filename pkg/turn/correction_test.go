package turn

import "testing"

func TestHasCorrectionMarker_DetectsFixedSet(t *testing.T) {
	cases := []struct {
		text string
		want bool
	}{
		{"Actually, cancel that", true},
		{"wait, let me think", true},
		{"Sorry, I meant Tuesday", true},
		{"no, not that one", true},
		{"book a flight to Norway", false}, // "no" must be word-bounded, not substring
		{"I want to book a flight", false},
		{"NO, STOP", true},
	}
	for _, tc := range cases {
		if got := HasCorrectionMarker(tc.text); got != tc.want {
			t.Errorf("HasCorrectionMarker(%q) = %v, want %v", tc.text, got, tc.want)
		}
	}
}

func TestHasCorrectionMarker_WordBoundedNotSubstring(t *testing.T) {
	if HasCorrectionMarker("waiter please") {
		t.Error("\"waiter\" must not match the \"wait\" marker")
	}
	if HasCorrectionMarker("sorrowful") {
		t.Error("\"sorrowful\" must not match the \"sorry\" marker")
	}
}
