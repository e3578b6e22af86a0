package validations

import (
	"context"
	"fmt"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	domainPlanning "github.com/reelforge/reelforge/domains/planning"
	pkgError "github.com/reelforge/reelforge/pkg/error"
)

func ValidateScheduleSingle(ctx context.Context, request domainPlanning.ScheduleSingleRequest) error {
	err := validation.ValidateStructWithContext(ctx, &request,
		validation.Field(&request.ScheduledPostTime, validation.Required),
	)
	if err != nil {
		return pkgError.ValidationError(err.Error())
	}
	return validateSuggestion(ctx, request.Suggestion)
}

func ValidateCreateSeries(ctx context.Context, request domainPlanning.CreateSeriesRequest) error {
	err := validation.ValidateStructWithContext(ctx, &request,
		validation.Field(&request.SeriesName, validation.Required, validation.Length(1, 200)),
		validation.Field(&request.Suggestions, validation.Required, validation.Length(1, 100)),
		validation.Field(&request.Schedule, validation.Required, validation.Length(1, 100)),
	)
	if err != nil {
		return pkgError.ValidationError(err.Error())
	}
	for _, s := range request.Suggestions {
		if err := validateSuggestion(ctx, s); err != nil {
			return err
		}
	}
	return nil
}

func ValidateCreateMonthlyPlan(ctx context.Context, request domainPlanning.CreateMonthlyPlanRequest) error {
	err := validation.ValidateStructWithContext(ctx, &request,
		validation.Field(&request.Name, validation.Required, validation.Length(1, 200)),
		validation.Field(&request.Month, validation.Required, validation.Date("2006-01")),
		validation.Field(&request.PlanType, validation.Required, validation.In(
			domainPlanning.PlanTypeVariety,
			domainPlanning.PlanTypeSingleSeries,
			domainPlanning.PlanTypeMultipleSeries,
		)),
		validation.Field(&request.Suggestions, validation.Required, validation.Length(1, 200)),
		validation.Field(&request.Schedule, validation.Required, validation.Length(1, 200)),
	)
	if err != nil {
		return pkgError.ValidationError(err.Error())
	}
	if request.PlanType == domainPlanning.PlanTypeMultipleSeries {
		for i, item := range request.Schedule {
			if item.SeriesName == "" {
				return pkgError.ValidationError(fmt.Sprintf(
					"schedule item %d is missing series_name required by plan type %s", i, request.PlanType))
			}
		}
	}
	for _, s := range request.Suggestions {
		if err := validateSuggestion(ctx, s); err != nil {
			return err
		}
	}
	return nil
}

// ValidateActionCard enforces the tagged-union contract: exactly one
// payload, and it must match the declared type.
func ValidateActionCard(ctx context.Context, card domainPlanning.ActionCard) error {
	err := validation.ValidateStructWithContext(ctx, &card,
		validation.Field(&card.Type, validation.Required, validation.In(
			domainPlanning.ActionCardSingleVideo,
			domainPlanning.ActionCardSeries,
			domainPlanning.ActionCardMonthlyPlan,
			domainPlanning.ActionCardSchedule,
		)),
	)
	if err != nil {
		return pkgError.ValidationError(err.Error())
	}

	set := 0
	for _, present := range []bool{
		card.SingleVideo != nil,
		card.Series != nil,
		card.MonthlyPlan != nil,
		card.Schedule != nil,
	} {
		if present {
			set++
		}
	}
	if set != 1 {
		return pkgError.ValidationError("action card must carry exactly one payload")
	}

	var matched bool
	switch card.Type {
	case domainPlanning.ActionCardSingleVideo:
		matched = card.SingleVideo != nil
	case domainPlanning.ActionCardSeries:
		matched = card.Series != nil
	case domainPlanning.ActionCardMonthlyPlan:
		matched = card.MonthlyPlan != nil
	case domainPlanning.ActionCardSchedule:
		matched = card.Schedule != nil
	}
	if !matched {
		return pkgError.ValidationError(fmt.Sprintf("action card payload does not match type %q", card.Type))
	}
	return nil
}
