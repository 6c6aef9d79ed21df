package rest

import (
	"github.com/gofiber/fiber/v2"

	domainCache "github.com/vitalsync/vitalsync/domains/cache"
	domainMetrics "github.com/vitalsync/vitalsync/domains/metrics"
	"github.com/vitalsync/vitalsync/pkg/utils"
	"github.com/vitalsync/vitalsync/validations"
)

type Goals struct {
	Repo  domainMetrics.IGoalRepository
	Cache domainCache.ICacheUsecase
}

func InitRestGoals(app fiber.Router, repo domainMetrics.IGoalRepository, cache domainCache.ICacheUsecase) Goals {
	rest := Goals{Repo: repo, Cache: cache}
	app.Get("/goals/:userId", rest.GetGoals)
	app.Put("/goals/:userId", rest.UpdateGoals)

	return rest
}

func (handler *Goals) GetGoals(c *fiber.Ctx) error {
	userID := c.Params("userId")
	utils.PanicIfNeeded(validations.ValidateUserID(c.UserContext(), userID))

	goals, err := handler.Repo.GetUserGoals(c.UserContext(), userID)
	utils.PanicIfNeeded(err)

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Goals retrieved",
		Results: goals,
	})
}

// UpdateGoals stores new daily targets and drops the windowed sections whose
// goal-progress figures just went stale. The next read recomputes them.
func (handler *Goals) UpdateGoals(c *fiber.Ctx) error {
	userID := c.Params("userId")
	utils.PanicIfNeeded(validations.ValidateUserID(c.UserContext(), userID))

	var goals domainMetrics.Goals
	if err := c.BodyParser(&goals); err != nil {
		return c.Status(400).JSON(utils.ResponseData{
			Status:  400,
			Code:    "BAD_REQUEST",
			Message: err.Error(),
		})
	}
	goals.UserID = userID
	utils.PanicIfNeeded(validations.ValidateGoals(c.UserContext(), goals))

	utils.PanicIfNeeded(handler.Repo.UpsertUserGoals(c.UserContext(), goals))
	utils.PanicIfNeeded(handler.Cache.InvalidateCache(c.UserContext(), userID,
		domainCache.SectionWeekly, domainCache.SectionMonthly, domainCache.SectionDashboard))

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Goals updated successfully",
	})
}
