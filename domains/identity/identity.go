package identity

// Tier is supplied by the external identity provider alongside the user id.
type Tier string

const (
	TierFree    Tier = "free"
	TierPremium Tier = "premium"
	TierAdmin   Tier = "admin"
)

// Unlimited reports whether the tier bypasses daily generation quotas.
func (t Tier) Unlimited() bool {
	return t == TierPremium || t == TierAdmin
}

// User is the authenticated caller of every orchestrator operation.
type User struct {
	ID   string `json:"id"`
	Tier Tier   `json:"tier"`
}
