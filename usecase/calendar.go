package usecase

import (
	"context"
	"time"

	"github.com/dustin/go-humanize"
	domainCalendar "github.com/reelforge/reelforge/domains/calendar"
	domainJob "github.com/reelforge/reelforge/domains/job"
	pkgError "github.com/reelforge/reelforge/pkg/error"
	"github.com/reelforge/reelforge/repository"
)

type serviceCalendar struct {
	repo repository.IVideoRepository
}

func NewCalendarService(repo repository.IVideoRepository) domainCalendar.ICalendarUsecase {
	return &serviceCalendar{repo: repo}
}

// GetRange aggregates planned jobs in the half-open window [start, end) and
// derives the display flags at query time.
func (s *serviceCalendar) GetRange(ctx context.Context, userID string, start, end time.Time) (domainCalendar.RangeResult, error) {
	if !start.Before(end) {
		return domainCalendar.RangeResult{}, pkgError.ValidationError("range start must be before range end")
	}

	videos, err := s.repo.ListRange(ctx, userID, start, end)
	if err != nil {
		return domainCalendar.RangeResult{}, err
	}

	now := time.Now().UTC()
	result := domainCalendar.RangeResult{
		Start:   start.UTC(),
		End:     end.UTC(),
		Entries: make([]domainCalendar.Entry, 0, len(videos)),
		Summary: make(map[domainJob.PlanningStatus]int),
	}

	for _, v := range videos {
		entry := domainCalendar.Entry{Video: v}
		if v.ScheduledPostTime != nil {
			at := v.ScheduledPostTime.UTC()
			// Overdue only applies while the content is still being
			// produced; a ready or failed job past its slot is a
			// posting problem, not a generation one.
			pending := v.PlanningStatus == domainJob.PlanningPlanned ||
				v.PlanningStatus == domainJob.PlanningGenerating
			entry.IsOverdue = at.Before(now) && pending
			if at.After(now) {
				entry.PostsIn = humanize.Time(at)
			}
		}
		entry.CanGenerateNow = v.PlanningStatus == domainJob.PlanningPlanned

		result.Entries = append(result.Entries, entry)
		result.Summary[v.PlanningStatus]++
	}
	return result, nil
}
