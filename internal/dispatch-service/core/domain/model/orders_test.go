package model

import "testing"

func TestCanTransition(t *testing.T) {
	allowed := []struct{ from, to string }{
		{StatusPending, StatusAccepted},
		{StatusPending, StatusCancelled},
		{StatusAccepted, StatusArrived},
		{StatusAccepted, StatusCancelled},
		{StatusArrived, StatusInProgress},
		{StatusArrived, StatusCancelled},
		{StatusInProgress, StatusCompleted},
	}
	for _, c := range allowed {
		if !CanTransition(c.from, c.to) {
			t.Errorf("CanTransition(%s, %s) = false, want true", c.from, c.to)
		}
	}

	denied := []struct{ from, to string }{
		{StatusPending, StatusArrived},
		{StatusPending, StatusInProgress},
		{StatusAccepted, StatusInProgress},
		{StatusInProgress, StatusCancelled},
		{StatusCompleted, StatusCancelled},
		{StatusCancelled, StatusAccepted},
		{"UNKNOWN", StatusAccepted},
	}
	for _, c := range denied {
		if CanTransition(c.from, c.to) {
			t.Errorf("CanTransition(%s, %s) = true, want false", c.from, c.to)
		}
	}
}

func TestTerminalStatuses(t *testing.T) {
	for _, s := range []string{StatusCompleted, StatusCancelled} {
		if !IsTerminalStatus(s) {
			t.Errorf("IsTerminalStatus(%s) = false", s)
		}
	}
	for _, s := range []string{StatusPending, StatusAccepted, StatusArrived, StatusInProgress} {
		if IsTerminalStatus(s) {
			t.Errorf("IsTerminalStatus(%s) = true", s)
		}
	}
}

func TestIsValidStatus(t *testing.T) {
	if !IsValidStatus(StatusPending) {
		t.Error("PENDING must be valid")
	}
	if IsValidStatus("DISPATCHED") {
		t.Error("unknown status must not be valid")
	}
}
