package validations

import (
	"context"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	domainJob "github.com/reelforge/reelforge/domains/job"
	pkgError "github.com/reelforge/reelforge/pkg/error"
)

func ValidateCreateJob(ctx context.Context, request domainJob.CreateJobRequest) error {
	err := validation.ValidateStructWithContext(ctx, &request,
		validation.Field(&request.Title, validation.Required.When(request.Suggestion == nil), validation.Length(0, 300)),
		validation.Field(&request.Topic, validation.Length(0, 500)),
		validation.Field(&request.CustomInstructions, validation.Length(0, 4000)),
	)
	if err != nil {
		return pkgError.ValidationError(err.Error())
	}
	if request.Suggestion != nil {
		return validateSuggestion(ctx, *request.Suggestion)
	}
	return nil
}

func ValidateRetryJob(ctx context.Context, request domainJob.RetryJobRequest) error {
	err := validation.ValidateStructWithContext(ctx, &request,
		validation.Field(&request.Stage, validation.In(
			string(domainJob.StatusGeneratingScript),
			string(domainJob.StatusGeneratingVoice),
			string(domainJob.StatusFetchingMedia),
			string(domainJob.StatusGeneratingVideo),
			string(domainJob.StatusAssembling),
		)),
		validation.Field(&request.Provider, validation.Length(0, 100)),
	)
	if err != nil {
		return pkgError.ValidationError(err.Error())
	}
	return nil
}

func validateSuggestion(ctx context.Context, s domainJob.Suggestion) error {
	err := validation.ValidateStructWithContext(ctx, &s,
		validation.Field(&s.Title, validation.Required, validation.Length(1, 300)),
		validation.Field(&s.DurationSeconds, validation.Min(0), validation.Max(600)),
	)
	if err != nil {
		return pkgError.ValidationError(err.Error())
	}
	return nil
}
