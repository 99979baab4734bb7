package usecase

import (
	"time"

	"fomo/internal/domain"
)

// Elapsed returns whole recorded seconds for state at now. It is always
// recomputed from StartTime; paused time is subtracted, so the value stays
// frozen while the session is paused.
func Elapsed(state domain.RecordingState, now time.Time) int {
	if !state.IsRecording || state.StartTime == 0 {
		return state.Duration
	}

	end := now.UnixMilli()
	if state.IsPaused && state.PausedAt > 0 {
		end = state.PausedAt
	}

	recorded := end - state.StartTime - state.PausedTotal
	if recorded < 0 {
		return 0
	}
	return int(recorded / 1000)
}
