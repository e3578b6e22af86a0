package calendar

import (
	"context"
	"time"

	"github.com/reelforge/reelforge/domains/job"
)

// Entry is a planned job annotated with flags derived at query time.
// The flags are never stored.
type Entry struct {
	job.Video
	IsOverdue      bool   `json:"is_overdue"`
	CanGenerateNow bool   `json:"can_generate_now"`
	PostsIn        string `json:"posts_in,omitempty"`
}

// RangeResult answers one calendar window query. Month and week views use
// the same half-open [start, end) contract.
type RangeResult struct {
	Start   time.Time                  `json:"start"`
	End     time.Time                  `json:"end"`
	Entries []Entry                    `json:"entries"`
	Summary map[job.PlanningStatus]int `json:"summary"`
}

type ICalendarUsecase interface {
	GetRange(ctx context.Context, userID string, start, end time.Time) (RangeResult, error)
}
