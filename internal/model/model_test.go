package model

import (
	"regexp"
	"testing"
)

// crockfordBase32 matches valid ULID strings (26 chars, Crockford Base32 alphabet).
var crockfordBase32 = regexp.MustCompile(`^[0123456789ABCDEFGHJKMNPQRSTVWXYZ]{26}$`)

func TestNewIDFormat(t *testing.T) {
	id := NewID()
	if !crockfordBase32.MatchString(id) {
		t.Errorf("NewID() = %q, does not match Crockford Base32 ULID format", id)
	}
}

func TestNewIDUniqueness(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		id := NewID()
		if seen[id] {
			t.Fatalf("NewID() produced duplicate: %s", id)
		}
		seen[id] = true
	}
}

func TestRunStateIsTerminal(t *testing.T) {
	tests := []struct {
		lifeCycle string
		want      bool
	}{
		{LifeCyclePending, false},
		{LifeCycleRunning, false},
		{LifeCycleTerminating, false},
		{LifeCycleTerminated, true},
		{LifeCycleSkipped, true},
		{LifeCycleInternalError, true},
	}
	for _, tt := range tests {
		rs := RunState{LifeCycleState: tt.lifeCycle}
		if got := rs.IsTerminal(); got != tt.want {
			t.Errorf("RunState{%s}.IsTerminal() = %v, want %v", tt.lifeCycle, got, tt.want)
		}
	}
}

func TestRunStateIsSuccessful(t *testing.T) {
	tests := []struct {
		name      string
		lifeCycle string
		result    string
		want      bool
	}{
		{"terminated success", LifeCycleTerminated, ResultSuccess, true},
		{"terminated failed", LifeCycleTerminated, ResultFailed, false},
		{"terminated timed out", LifeCycleTerminated, ResultTimedOut, false},
		{"terminated canceled", LifeCycleTerminated, ResultCanceled, false},
		{"internal error", LifeCycleInternalError, "", false},
		{"running with stale result", LifeCycleRunning, ResultSuccess, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rs := RunState{LifeCycleState: tt.lifeCycle, ResultState: tt.result}
			if got := rs.IsSuccessful(); got != tt.want {
				t.Errorf("IsSuccessful() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestValidTransition(t *testing.T) {
	tests := []struct {
		from, to string
		want     bool
	}{
		{StatusPending, StatusRunning, true},
		{StatusPending, StatusCanceled, true},
		{StatusRunning, StatusSucceeded, true},
		{StatusRunning, StatusFailed, true},
		{StatusRunning, StatusCanceled, true},
		{StatusSucceeded, StatusRunning, false},
		{StatusFailed, StatusRunning, false},
		{StatusCanceled, StatusRunning, false},
		{StatusPending, StatusSucceeded, false},
	}
	for _, tt := range tests {
		if got := ValidTransition(tt.from, tt.to); got != tt.want {
			t.Errorf("ValidTransition(%q, %q) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}
