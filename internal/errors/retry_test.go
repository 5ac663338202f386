package errors

import (
	"fmt"
	"testing"
	"time"
)

func TestCalculateBackoff(t *testing.T) {
	config := RetryConfig{
		Delays:       []time.Duration{1 * time.Second, 5 * time.Second, 15 * time.Second},
		JitterFactor: 0, // no jitter for deterministic testing
	}

	tests := []struct {
		attempt  int
		expected time.Duration
	}{
		{attempt: 0, expected: 1 * time.Second},
		{attempt: 1, expected: 5 * time.Second},
		{attempt: 2, expected: 15 * time.Second},
		{attempt: 10, expected: 15 * time.Second}, // past the table, repeats the last delay
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("attempt_%d", tt.attempt), func(t *testing.T) {
			delay := CalculateBackoff(tt.attempt, config)
			if delay != tt.expected {
				t.Errorf("CalculateBackoff(%d) = %v, want %v", tt.attempt, delay, tt.expected)
			}
		})
	}
}

func TestCalculateBackoffWithJitterStaysNonNegative(t *testing.T) {
	config := RetryConfig{
		Delays:       []time.Duration{1 * time.Second, 5 * time.Second, 15 * time.Second},
		JitterFactor: 0.25,
	}

	for attempt := 0; attempt < 3; attempt++ {
		delay := CalculateBackoff(attempt, config)
		if delay < 0 {
			t.Errorf("CalculateBackoff(%d) with jitter = %v, should never be negative", attempt, delay)
		}
	}
}

func TestDefaultRetryConfigMatchesSpecSchedule(t *testing.T) {
	config := DefaultRetryConfig()

	if config.MaxAttempts != 2 {
		t.Errorf("DefaultRetryConfig().MaxAttempts = %d, want 2 (three attempts total)", config.MaxAttempts)
	}

	want := []time.Duration{1 * time.Second, 5 * time.Second, 15 * time.Second}
	if len(config.Delays) != len(want) {
		t.Fatalf("DefaultRetryConfig().Delays = %v, want %v", config.Delays, want)
	}
	for i, d := range want {
		if config.Delays[i] != d {
			t.Errorf("DefaultRetryConfig().Delays[%d] = %v, want %v", i, config.Delays[i], d)
		}
	}
}
