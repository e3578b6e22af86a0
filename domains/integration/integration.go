package integration

import (
	"context"
	"time"
)

// Category is one of the five pipeline stage families a provider can back.
type Category string

const (
	CategoryScript   Category = "script"
	CategoryVoice    Category = "voice"
	CategoryMedia    Category = "media"
	CategoryVideoAI  Category = "video_ai"
	CategoryAssembly Category = "assembly"
)

// Categories lists every pipeline category in stage order.
var Categories = []Category{CategoryScript, CategoryVoice, CategoryMedia, CategoryVideoAI, CategoryAssembly}

func (c Category) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// Integration is a configured third-party capability for one category.
// A category is "configured" only when at least one active and valid
// integration exists for it.
type Integration struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Provider  string    `json:"provider"`
	Category  Category  `json:"category"`
	Valid     bool      `json:"valid"`
	Active    bool      `json:"active"`
	Default   bool      `json:"default"`
	HasAPIKey bool      `json:"has_api_key"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// APIKey is a per-user credential for the provider, encrypted at rest.
	// It overrides the global key from the environment and is never serialized.
	APIKey string `json:"-"`
}

type CreateIntegrationRequest struct {
	Provider string   `json:"provider"`
	Category Category `json:"category"`
	Default  bool     `json:"default"`
	APIKey   string   `json:"api_key,omitempty"`
}

type UpdateIntegrationRequest struct {
	Valid   *bool `json:"valid,omitempty"`
	Active  *bool `json:"active,omitempty"`
	Default *bool `json:"default,omitempty"`
}

type IIntegrationUsecase interface {
	Create(ctx context.Context, userID string, request CreateIntegrationRequest) (Integration, error)
	List(ctx context.Context, userID string) ([]Integration, error)
	Update(ctx context.Context, userID, id string, request UpdateIntegrationRequest) (Integration, error)
	Delete(ctx context.Context, userID, id string) error
	// Resolve returns the provider to use for a category: the user's default
	// when set, otherwise the first active valid integration.
	Resolve(ctx context.Context, userID string, category Category) (Integration, error)
}
