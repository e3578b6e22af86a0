package validations

import (
	"context"
	"fmt"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	domainIntegration "github.com/reelforge/reelforge/domains/integration"
	pkgError "github.com/reelforge/reelforge/pkg/error"
)

func ValidateCreateIntegration(ctx context.Context, request domainIntegration.CreateIntegrationRequest) error {
	err := validation.ValidateStructWithContext(ctx, &request,
		validation.Field(&request.Provider, validation.Required, validation.Length(1, 100)),
		validation.Field(&request.Category, validation.Required),
	)
	if err != nil {
		return pkgError.ValidationError(err.Error())
	}
	if !request.Category.Valid() {
		return pkgError.ValidationError(fmt.Sprintf("unknown category %q", request.Category))
	}
	return nil
}
