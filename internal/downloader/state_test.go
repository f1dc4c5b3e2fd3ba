package downloader

import "testing"

func TestState_Valid(t *testing.T) {
	for _, s := range []State{StateIdle, StatePending, StateDownloading, StateCompleted, StatePaused, StateFailed, StateCancelled} {
		if !s.Valid() {
			t.Errorf("Valid() = false for %s", s)
		}
	}

	if State("queued").Valid() {
		t.Error("Valid() = true for unknown state")
	}
}

func TestState_Active(t *testing.T) {
	tests := []struct {
		state State
		want  bool
	}{
		{StateIdle, false},
		{StatePending, true},
		{StateDownloading, true},
		{StateCompleted, false},
		{StatePaused, false},
		{StateFailed, false},
		{StateCancelled, false},
	}

	for _, tt := range tests {
		if got := tt.state.Active(); got != tt.want {
			t.Errorf("Active(%s) = %v, want %v", tt.state, got, tt.want)
		}
	}
}

func TestCanTransition(t *testing.T) {
	tests := []struct {
		name string
		from State
		to   State
		want bool
	}{
		{"first download", StateIdle, StatePending, true},
		{"dispatch", StatePending, StateDownloading, true},
		{"finish", StateDownloading, StateCompleted, true},
		{"fail", StateDownloading, StateFailed, true},
		{"pause queued", StatePending, StatePaused, true},
		{"pause in flight", StateDownloading, StatePaused, true},
		{"resume paused", StatePaused, StatePending, true},
		{"retry failed", StateFailed, StatePending, true},
		{"restart cancelled", StateCancelled, StatePending, true},
		{"cancel queued", StatePending, StateCancelled, true},
		{"cancel in flight", StateDownloading, StateCancelled, true},
		{"cancel paused", StatePaused, StateCancelled, true},
		{"shutdown demotion", StateDownloading, StatePending, true},

		{"re-download completed", StateCompleted, StatePending, false},
		{"pause completed", StateCompleted, StatePaused, false},
		{"cancel completed", StateCompleted, StateCancelled, false},
		{"pause idle", StateIdle, StatePaused, false},
		{"cancel idle", StateIdle, StateCancelled, false},
		{"resume downloading", StateDownloading, StateDownloading, false},
		{"complete without dispatch", StatePending, StateCompleted, false},
		{"fail paused", StatePaused, StateFailed, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CanTransition(tt.from, tt.to); got != tt.want {
				t.Errorf("CanTransition(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.want)
			}
		})
	}
}
