package rest

import (
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"

	domainCache "github.com/vitalsync/vitalsync/domains/cache"
	domainMetrics "github.com/vitalsync/vitalsync/domains/metrics"
	pkgError "github.com/vitalsync/vitalsync/pkg/error"
	"github.com/vitalsync/vitalsync/pkg/utils"
	"github.com/vitalsync/vitalsync/validations"
)

type Dashboard struct {
	Cache  domainCache.ICacheUsecase
	Engine domainMetrics.IMetricsUsecase
}

func InitRestDashboard(app fiber.Router, cache domainCache.ICacheUsecase, engine domainMetrics.IMetricsUsecase) Dashboard {
	rest := Dashboard{Cache: cache, Engine: engine}
	app.Get("/dashboard/:userId", rest.GetDashboard)
	app.Get("/metrics/:userId/daily", rest.GetDailyMetrics)
	app.Get("/metrics/:userId/weekly", rest.GetWeeklyMetrics)
	app.Get("/metrics/:userId/monthly", rest.GetMonthlyMetrics)
	app.Get("/metrics/:userId/lifetime", rest.GetLifetimeMetrics)
	app.Post("/metrics/:userId/recalculate", rest.Recalculate)

	return rest
}

// GetDashboard serves the cached hero view. On a miss it recomputes inline
// and retries the read once; a recompute failure still degrades to 404
// rather than 500 because the dashboard read path stays fail-open.
func (handler *Dashboard) GetDashboard(c *fiber.Ctx) error {
	userID := c.Params("userId")
	utils.PanicIfNeeded(validations.ValidateUserID(c.UserContext(), userID))

	data, err := handler.Cache.GetDashboardCache(c.UserContext(), userID)
	utils.PanicIfNeeded(err)

	if data == nil {
		if err := handler.Engine.CalculateAndCacheUserMetrics(c.UserContext(), userID); err != nil {
			logrus.WithError(err).Warnf("[REST] Inline recalculation failed for user %s", userID)
		}
		data, err = handler.Cache.GetDashboardCache(c.UserContext(), userID)
		utils.PanicIfNeeded(err)
	}
	if data == nil {
		utils.PanicIfNeeded(pkgError.NotFoundError("No dashboard available for this user"))
	}

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Dashboard retrieved",
		Results: data,
	})
}

func (handler *Dashboard) GetDailyMetrics(c *fiber.Ctx) error {
	return serveSection(c, func(userID string) (any, error) {
		data, err := handler.Cache.GetDailyMetrics(c.UserContext(), userID)
		return nilable(data), err
	}, "Daily metrics retrieved")
}

func (handler *Dashboard) GetWeeklyMetrics(c *fiber.Ctx) error {
	return serveSection(c, func(userID string) (any, error) {
		data, err := handler.Cache.GetWeeklyMetrics(c.UserContext(), userID)
		return nilable(data), err
	}, "Weekly metrics retrieved")
}

func (handler *Dashboard) GetMonthlyMetrics(c *fiber.Ctx) error {
	return serveSection(c, func(userID string) (any, error) {
		data, err := handler.Cache.GetMonthlyMetrics(c.UserContext(), userID)
		return nilable(data), err
	}, "Monthly metrics retrieved")
}

func (handler *Dashboard) GetLifetimeMetrics(c *fiber.Ctx) error {
	return serveSection(c, func(userID string) (any, error) {
		data, err := handler.Cache.GetLifetimeMetrics(c.UserContext(), userID)
		return nilable(data), err
	}, "Lifetime metrics retrieved")
}

// Recalculate forces a full recompute of every section for one user.
func (handler *Dashboard) Recalculate(c *fiber.Ctx) error {
	userID := c.Params("userId")
	utils.PanicIfNeeded(validations.ValidateUserID(c.UserContext(), userID))

	err := handler.Engine.CalculateAndCacheUserMetrics(c.UserContext(), userID)
	utils.PanicIfNeeded(err)

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Metrics recalculated successfully",
	})
}

func serveSection(c *fiber.Ctx, read func(userID string) (any, error), message string) error {
	userID := c.Params("userId")
	utils.PanicIfNeeded(validations.ValidateUserID(c.UserContext(), userID))

	data, err := read(userID)
	utils.PanicIfNeeded(err)
	if data == nil {
		utils.PanicIfNeeded(pkgError.NotFoundError("Section not cached for this user"))
	}

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: message,
		Results: data,
	})
}

// nilable flattens a typed nil pointer into an untyped nil so serveSection
// can detect misses through the any return.
func nilable[T any](v *T) any {
	if v == nil {
		return nil
	}
	return v
}
