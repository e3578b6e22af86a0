package quota

import (
	"context"
	"time"

	"github.com/reelforge/reelforge/domains/identity"
)

// Quota is the daily generation allowance snapshot for one user.
type Quota struct {
	Limit     int       `json:"limit"`
	Used      int       `json:"used"`
	Remaining int       `json:"remaining"`
	Unlimited bool      `json:"unlimited"`
	ResetsAt  time.Time `json:"resets_at"`
}

type IQuotaUsecase interface {
	// CheckAndReserve atomically consumes one slot of the caller's daily
	// allowance. Exactly one of two concurrent calls for the last slot may
	// succeed. Premium and admin tiers always pass.
	CheckAndReserve(ctx context.Context, user identity.User) (Quota, error)
	// Release returns a reservation, used only when a job fails before its
	// first stage starts. A charge is for an attempted generation, not a
	// completed one.
	Release(ctx context.Context, userID string, at time.Time) error
	Get(ctx context.Context, user identity.User) (Quota, error)
}
