package validations

import (
	"context"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	domainCache "github.com/vitalsync/vitalsync/domains/cache"
	pkgError "github.com/vitalsync/vitalsync/pkg/error"
)

func ValidateInvalidateRequest(ctx context.Context, request domainCache.InvalidateRequest) error {
	sectionNames := make([]interface{}, len(domainCache.SectionNames))
	for i, s := range domainCache.SectionNames {
		sectionNames[i] = s
	}

	err := validation.ValidateStructWithContext(ctx, &request,
		validation.Field(&request.UserIDs, validation.Required, validation.Length(1, 0)),
		validation.Field(&request.Sections, validation.Each(validation.In(sectionNames...))),
	)

	if err != nil {
		return pkgError.ValidationError(err.Error())
	}

	return nil
}

func ValidateUserID(_ context.Context, userID string) error {
	err := validation.Validate(userID, validation.Required, validation.Length(1, 128))

	if err != nil {
		return pkgError.ValidationError("userId: " + err.Error())
	}

	return nil
}
