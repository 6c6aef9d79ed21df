package rest

import (
	"github.com/gofiber/fiber/v2"

	domainCache "github.com/vitalsync/vitalsync/domains/cache"
	pkgError "github.com/vitalsync/vitalsync/pkg/error"
	"github.com/vitalsync/vitalsync/pkg/utils"
	"github.com/vitalsync/vitalsync/validations"
)

type Cache struct {
	Service domainCache.ICacheUsecase
}

func InitRestCache(app fiber.Router, service domainCache.ICacheUsecase) Cache {
	rest := Cache{Service: service}
	app.Get("/cache/stats", rest.GetStats)
	app.Get("/cache/:userId", rest.GetUserCache)
	app.Post("/cache/invalidate", rest.Invalidate)
	app.Delete("/cache/:userId", rest.InvalidateUser)

	return rest
}

func (handler *Cache) GetStats(c *fiber.Ctx) error {
	stats, err := handler.Service.GetCacheStats(c.UserContext())
	utils.PanicIfNeeded(err)

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Cache stats retrieved",
		Results: stats,
	})
}

// GetUserCache exposes the raw composite document, mostly for operators
// debugging staleness. Expired sections are returned as stored.
func (handler *Cache) GetUserCache(c *fiber.Ctx) error {
	userID := c.Params("userId")
	utils.PanicIfNeeded(validations.ValidateUserID(c.UserContext(), userID))

	doc, err := handler.Service.GetUserCache(c.UserContext(), userID)
	utils.PanicIfNeeded(err)
	if doc == nil {
		utils.PanicIfNeeded(pkgError.NotFoundError("No cache document for this user"))
	}

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Cache document retrieved",
		Results: doc,
	})
}

// Invalidate handles selective and bulk invalidation in one endpoint: any
// number of users, optionally narrowed to named sections.
func (handler *Cache) Invalidate(c *fiber.Ctx) error {
	var request domainCache.InvalidateRequest
	if err := c.BodyParser(&request); err != nil {
		return c.Status(400).JSON(utils.ResponseData{
			Status:  400,
			Code:    "BAD_REQUEST",
			Message: err.Error(),
		})
	}
	utils.PanicIfNeeded(validations.ValidateInvalidateRequest(c.UserContext(), request))

	err := handler.Service.BulkInvalidateCache(c.UserContext(), request.UserIDs, request.Sections...)
	utils.PanicIfNeeded(err)

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Cache invalidated successfully",
	})
}

func (handler *Cache) InvalidateUser(c *fiber.Ctx) error {
	userID := c.Params("userId")
	utils.PanicIfNeeded(validations.ValidateUserID(c.UserContext(), userID))

	err := handler.Service.InvalidateCache(c.UserContext(), userID)
	utils.PanicIfNeeded(err)

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Cache document invalidated",
	})
}
