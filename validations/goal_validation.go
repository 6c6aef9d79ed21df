package validations

import (
	"context"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	domainMetrics "github.com/vitalsync/vitalsync/domains/metrics"
	pkgError "github.com/vitalsync/vitalsync/pkg/error"
)

func ValidateGoals(ctx context.Context, goals domainMetrics.Goals) error {
	err := validation.ValidateStructWithContext(ctx, &goals,
		validation.Field(&goals.UserID, validation.Required),
		validation.Field(&goals.DailySteps, validation.Min(0), validation.Max(100000)),
		validation.Field(&goals.SleepHours, validation.Min(0.0), validation.Max(24.0)),
		validation.Field(&goals.ActiveMinutes, validation.Min(0), validation.Max(1440)),
		validation.Field(&goals.DailyCalories, validation.Min(0), validation.Max(20000)),
	)

	if err != nil {
		return pkgError.ValidationError(err.Error())
	}

	return nil
}
