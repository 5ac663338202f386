package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRollupStatus(t *testing.T) {
	cases := []struct {
		name     string
		outcomes []SyncLogStatus
		want     RunStatus
	}{
		{"empty", nil, RunOK},
		{"all success", []SyncLogStatus{StatusSuccess, StatusSuccess}, RunOK},
		{"all failed", []SyncLogStatus{StatusFailed, StatusFailed}, RunError},
		{"failed no success with partial", []SyncLogStatus{StatusFailed, StatusPartial}, RunError},
		{"partial only, no failed", []SyncLogStatus{StatusSuccess, StatusPartial}, RunPartial},
		{"mixed success and failed", []SyncLogStatus{StatusSuccess, StatusFailed}, RunWarning},
		{"success, partial, and failed", []SyncLogStatus{StatusSuccess, StatusPartial, StatusFailed}, RunWarning},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, RollupStatus(tc.outcomes))
		})
	}
}
