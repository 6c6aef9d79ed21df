package middleware

import (
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"

	pkgError "github.com/vitalsync/vitalsync/pkg/error"
	"github.com/vitalsync/vitalsync/pkg/utils"
)

// Recovery converts handler panics into JSON error envelopes. Handlers panic
// through utils.PanicIfNeeded; typed errors keep their status and code,
// anything else becomes a 500.
func Recovery() fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		defer func() {
			r := recover()
			if r == nil {
				return
			}

			res := utils.ResponseData{
				Status:  500,
				Code:    "INTERNAL_SERVER_ERROR",
				Message: fmt.Sprintf("%v", r),
			}

			if typed, ok := r.(pkgError.GenericError); ok {
				res.Status = typed.StatusCode()
				res.Code = typed.ErrCode()
				res.Message = typed.Error()
			} else {
				logrus.Errorf("Panic recovered in request handler: %v", r)
			}

			_ = ctx.Status(res.Status).JSON(res)
		}()

		return ctx.Next()
	}
}
