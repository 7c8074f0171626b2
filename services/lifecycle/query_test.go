package lifecycle

import (
	"strings"
	"testing"
	"time"
)

func TestLiveElapsed(t *testing.T) {
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	resumed := now.Add(-5 * time.Minute)

	tests := []struct {
		name      string
		status    Status
		elapsed   int64
		resumedAt *time.Time
		want      time.Duration
	}{
		{"running extends open interval", StatusInProgress, 600, &resumed, 15 * time.Minute},
		{"paused stays frozen", StatusPaused, 600, nil, 10 * time.Minute},
		{"running without anchor", StatusInProgress, 600, nil, 10 * time.Minute},
		{"completed", StatusCompleted, 1500, nil, 25 * time.Minute},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := liveElapsed(tt.status, tt.elapsed, tt.resumedAt, now)
			if got != tt.want {
				t.Fatalf("liveElapsed() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestActiveQuery(t *testing.T) {
	tests := []struct {
		name         string
		filter       ActiveFilter
		wantArgs     int
		wantContains []string
		wantAbsent   []string
	}{
		{
			name:         "unfiltered",
			filter:       ActiveFilter{},
			wantArgs:     0,
			wantContains: []string{"o.status IN ('in_progress', 'paused')", "ORDER BY"},
			wantAbsent:   []string{"operation_assignments", "station_id = $"},
		},
		{
			name:         "by worker",
			filter:       ActiveFilter{WorkerID: 9},
			wantArgs:     1,
			wantContains: []string{"JOIN operation_assignments", "a.worker_id = $1"},
		},
		{
			name:         "by station",
			filter:       ActiveFilter{StationID: 2},
			wantArgs:     1,
			wantContains: []string{"o.station_id = $1"},
			wantAbsent:   []string{"operation_assignments"},
		},
		{
			name:         "by worker and station",
			filter:       ActiveFilter{WorkerID: 9, StationID: 2},
			wantArgs:     2,
			wantContains: []string{"a.worker_id = $1", "o.station_id = $2"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			query, args := activeQuery(tt.filter)
			if len(args) != tt.wantArgs {
				t.Fatalf("args = %v, want %d placeholders", args, tt.wantArgs)
			}
			for _, s := range tt.wantContains {
				if !strings.Contains(query, s) {
					t.Fatalf("query missing %q:\n%s", s, query)
				}
			}
			for _, s := range tt.wantAbsent {
				if strings.Contains(query, s) {
					t.Fatalf("query unexpectedly contains %q:\n%s", s, query)
				}
			}
		})
	}
}
