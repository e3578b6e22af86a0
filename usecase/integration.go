package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	domainIntegration "github.com/reelforge/reelforge/domains/integration"
	"github.com/reelforge/reelforge/pkg/crypto"
	pkgError "github.com/reelforge/reelforge/pkg/error"
	"github.com/reelforge/reelforge/repository"
	"github.com/reelforge/reelforge/validations"
)

type serviceIntegration struct {
	repo repository.IIntegrationRepository
}

// NewIntegrationService builds the integration usecase. The returned value
// also satisfies pipeline.ProviderResolver.
func NewIntegrationService(repo repository.IIntegrationRepository) *serviceIntegration {
	return &serviceIntegration{repo: repo}
}

func (s *serviceIntegration) Create(ctx context.Context, userID string, request domainIntegration.CreateIntegrationRequest) (domainIntegration.Integration, error) {
	if err := validations.ValidateCreateIntegration(ctx, request); err != nil {
		return domainIntegration.Integration{}, err
	}

	if request.Default {
		if err := s.repo.ClearDefault(ctx, userID, request.Category); err != nil {
			return domainIntegration.Integration{}, err
		}
	}

	apiKey := ""
	if request.APIKey != "" {
		enc, err := crypto.Encrypt(request.APIKey)
		if err != nil {
			return domainIntegration.Integration{}, err
		}
		apiKey = enc
	}

	now := time.Now().UTC()
	in := domainIntegration.Integration{
		ID:        uuid.NewString(),
		UserID:    userID,
		Provider:  request.Provider,
		Category:  request.Category,
		Valid:     true,
		Active:    true,
		Default:   request.Default,
		HasAPIKey: apiKey != "",
		APIKey:    apiKey,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.Create(ctx, in); err != nil {
		return domainIntegration.Integration{}, err
	}
	return in, nil
}

func (s *serviceIntegration) List(ctx context.Context, userID string) ([]domainIntegration.Integration, error) {
	return s.repo.ListByUser(ctx, userID)
}

func (s *serviceIntegration) Update(ctx context.Context, userID, id string, request domainIntegration.UpdateIntegrationRequest) (domainIntegration.Integration, error) {
	in, err := s.repo.GetForUser(ctx, userID, id)
	if err != nil {
		return domainIntegration.Integration{}, err
	}

	if request.Valid != nil {
		in.Valid = *request.Valid
	}
	if request.Active != nil {
		in.Active = *request.Active
	}
	if request.Default != nil {
		if *request.Default && !in.Default {
			if err := s.repo.ClearDefault(ctx, userID, in.Category); err != nil {
				return domainIntegration.Integration{}, err
			}
		}
		in.Default = *request.Default
	}

	if err := s.repo.Update(ctx, in); err != nil {
		return domainIntegration.Integration{}, err
	}
	return in, nil
}

func (s *serviceIntegration) Delete(ctx context.Context, userID, id string) error {
	return s.repo.Delete(ctx, userID, id)
}

// Resolve picks the integration backing a category: the default first,
// otherwise the oldest active valid one.
func (s *serviceIntegration) Resolve(ctx context.Context, userID string, category domainIntegration.Category) (domainIntegration.Integration, error) {
	configured, err := s.repo.ListConfigured(ctx, userID, category)
	if err != nil {
		return domainIntegration.Integration{}, err
	}
	if len(configured) == 0 {
		return domainIntegration.Integration{}, pkgError.NoProviderConfiguredError(fmt.Sprintf(
			"no provider configured for category %s", category))
	}
	return withDecryptedKey(configured[0])
}

// ResolveNamed pins a specific provider within a category, used by the
// retry-with-swap flow.
func (s *serviceIntegration) ResolveNamed(ctx context.Context, userID string, category domainIntegration.Category, provider string) (domainIntegration.Integration, error) {
	configured, err := s.repo.ListConfigured(ctx, userID, category)
	if err != nil {
		return domainIntegration.Integration{}, err
	}
	for _, in := range configured {
		if in.Provider == provider {
			return withDecryptedKey(in)
		}
	}
	return domainIntegration.Integration{}, pkgError.NoProviderConfiguredError(fmt.Sprintf(
		"provider %q is not configured for category %s", provider, category))
}

// withDecryptedKey makes the per-user credential usable by the invoker.
// Stored values stay encrypted, only resolved copies carry the plaintext.
func withDecryptedKey(in domainIntegration.Integration) (domainIntegration.Integration, error) {
	if in.APIKey == "" {
		return in, nil
	}
	plain, err := crypto.Decrypt(in.APIKey)
	if err != nil {
		return domainIntegration.Integration{}, fmt.Errorf("failed to decrypt credential for integration %s: %w", in.ID, err)
	}
	in.APIKey = plain
	return in, nil
}
