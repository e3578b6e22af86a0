package usecase

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/reelforge/reelforge/domains/identity"
	pkgError "github.com/reelforge/reelforge/pkg/error"
	"github.com/reelforge/reelforge/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeQuotaRepo counts reservations per (user, day) with the same atomicity
// contract as the SQL implementation.
type fakeQuotaRepo struct {
	mu   sync.Mutex
	used map[string]int
}

func newFakeQuotaRepo() *fakeQuotaRepo {
	return &fakeQuotaRepo{used: make(map[string]int)}
}

func (r *fakeQuotaRepo) Init(_ context.Context) error { return nil }

func (r *fakeQuotaRepo) Reserve(_ context.Context, userID, day string, limit int) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := userID + "/" + day
	if r.used[key] >= limit {
		return 0, repository.ErrQuotaExhausted
	}
	r.used[key]++
	return r.used[key], nil
}

func (r *fakeQuotaRepo) Release(_ context.Context, userID, day string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := userID + "/" + day
	if r.used[key] > 0 {
		r.used[key]--
	}
	return nil
}

func (r *fakeQuotaRepo) Used(_ context.Context, userID, day string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.used[userID+"/"+day], nil
}

func TestQuota_ConcurrentReservesNeverOvershoot(t *testing.T) {
	svc := NewQuotaService(newFakeQuotaRepo(), 3)
	user := identity.User{ID: "user-1", Tier: identity.TierFree}

	var wg sync.WaitGroup
	var mu sync.Mutex
	granted, rejected := 0, 0

	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.CheckAndReserve(context.Background(), user)
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				granted++
				return
			}
			var quotaErr pkgError.QuotaExceededError
			require.ErrorAs(t, err, &quotaErr)
			rejected++
		}()
	}
	wg.Wait()

	assert.Equal(t, 3, granted)
	assert.Equal(t, 7, rejected)
}

func TestQuota_ExceededErrorNamesResetTime(t *testing.T) {
	repo := newFakeQuotaRepo()
	svc := NewQuotaService(repo, 1)
	user := identity.User{ID: "user-1", Tier: identity.TierFree}

	_, err := svc.CheckAndReserve(context.Background(), user)
	require.NoError(t, err)

	_, err = svc.CheckAndReserve(context.Background(), user)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "resets at")

	next := time.Now().UTC().Truncate(24 * time.Hour).Add(24 * time.Hour)
	assert.Contains(t, err.Error(), next.Format(time.RFC3339))
}

func TestQuota_UnlimitedTiersBypassTheCounter(t *testing.T) {
	repo := newFakeQuotaRepo()
	svc := NewQuotaService(repo, 1)

	for _, tier := range []identity.Tier{identity.TierPremium, identity.TierAdmin} {
		user := identity.User{ID: "vip", Tier: tier}
		for i := 0; i < 5; i++ {
			q, err := svc.CheckAndReserve(context.Background(), user)
			require.NoError(t, err)
			assert.True(t, q.Unlimited)
		}
	}
	assert.Empty(t, repo.used, "unlimited tiers must not touch the counter")
}

func TestQuota_ReleaseReturnsTheSlot(t *testing.T) {
	repo := newFakeQuotaRepo()
	svc := NewQuotaService(repo, 1)
	user := identity.User{ID: "user-1", Tier: identity.TierFree}

	_, err := svc.CheckAndReserve(context.Background(), user)
	require.NoError(t, err)
	_, err = svc.CheckAndReserve(context.Background(), user)
	require.Error(t, err)

	require.NoError(t, svc.Release(context.Background(), "user-1", time.Now().UTC()))

	q, err := svc.CheckAndReserve(context.Background(), user)
	require.NoError(t, err)
	assert.Equal(t, 1, q.Used)
	assert.Equal(t, 0, q.Remaining)
}

func TestQuota_GetSnapshot(t *testing.T) {
	repo := newFakeQuotaRepo()
	svc := NewQuotaService(repo, 3)
	user := identity.User{ID: "user-1", Tier: identity.TierFree}

	_, err := svc.CheckAndReserve(context.Background(), user)
	require.NoError(t, err)

	q, err := svc.Get(context.Background(), user)
	require.NoError(t, err)
	assert.Equal(t, 3, q.Limit)
	assert.Equal(t, 1, q.Used)
	assert.Equal(t, 2, q.Remaining)
	assert.True(t, q.ResetsAt.After(time.Now().UTC()))
}
