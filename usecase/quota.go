package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/reelforge/reelforge/domains/identity"
	domainQuota "github.com/reelforge/reelforge/domains/quota"
	pkgError "github.com/reelforge/reelforge/pkg/error"
	"github.com/reelforge/reelforge/pkg/timeutils"
	"github.com/reelforge/reelforge/repository"
	"github.com/sirupsen/logrus"
)

type serviceQuota struct {
	repo      repository.IQuotaRepository
	freeLimit int
}

func NewQuotaService(repo repository.IQuotaRepository, freeLimit int) domainQuota.IQuotaUsecase {
	return &serviceQuota{repo: repo, freeLimit: freeLimit}
}

func (s *serviceQuota) CheckAndReserve(ctx context.Context, user identity.User) (domainQuota.Quota, error) {
	now := time.Now().UTC()
	if user.Tier.Unlimited() {
		return unlimitedQuota(now), nil
	}

	day := timeutils.DayKey(now)
	used, err := s.repo.Reserve(ctx, user.ID, day, s.freeLimit)
	if err != nil {
		if errors.Is(err, repository.ErrQuotaExhausted) {
			return domainQuota.Quota{}, pkgError.QuotaExceededError(fmt.Sprintf(
				"daily generation limit of %d reached, resets at %s",
				s.freeLimit, timeutils.NextUTCMidnight(now).Format(time.RFC3339)))
		}
		return domainQuota.Quota{}, err
	}

	logrus.Debugf("[QUOTA] User %s reserved slot %d/%d for %s", user.ID, used, s.freeLimit, day)
	return s.snapshot(now, used), nil
}

func (s *serviceQuota) Release(ctx context.Context, userID string, at time.Time) error {
	return s.repo.Release(ctx, userID, timeutils.DayKey(at))
}

func (s *serviceQuota) Get(ctx context.Context, user identity.User) (domainQuota.Quota, error) {
	now := time.Now().UTC()
	if user.Tier.Unlimited() {
		return unlimitedQuota(now), nil
	}
	used, err := s.repo.Used(ctx, user.ID, timeutils.DayKey(now))
	if err != nil {
		return domainQuota.Quota{}, err
	}
	return s.snapshot(now, used), nil
}

func (s *serviceQuota) snapshot(now time.Time, used int) domainQuota.Quota {
	remaining := s.freeLimit - used
	if remaining < 0 {
		remaining = 0
	}
	return domainQuota.Quota{
		Limit:     s.freeLimit,
		Used:      used,
		Remaining: remaining,
		ResetsAt:  timeutils.NextUTCMidnight(now),
	}
}

func unlimitedQuota(now time.Time) domainQuota.Quota {
	return domainQuota.Quota{Unlimited: true, ResetsAt: timeutils.NextUTCMidnight(now)}
}
