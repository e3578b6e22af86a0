package rest

import (
	"github.com/gofiber/fiber/v2"
	domainIntegration "github.com/reelforge/reelforge/domains/integration"
	"github.com/reelforge/reelforge/pkg/utils"
	"github.com/reelforge/reelforge/ui/rest/middleware"
)

type Integration struct {
	Service domainIntegration.IIntegrationUsecase
}

func InitRestIntegration(app fiber.Router, service domainIntegration.IIntegrationUsecase) Integration {
	rest := Integration{Service: service}

	group := app.Group("/integrations")
	group.Post("/", rest.Create)
	group.Get("/", rest.List)
	group.Put("/:id", rest.Update)
	group.Delete("/:id", rest.Delete)
	return rest
}

func (controller *Integration) Create(c *fiber.Ctx) error {
	var request domainIntegration.CreateIntegrationRequest
	if err := c.BodyParser(&request); err != nil {
		return c.Status(400).JSON(utils.ResponseData{Status: 400, Code: "BAD_REQUEST", Message: err.Error()})
	}

	user := middleware.UserFromCtx(c)
	record, err := controller.Service.Create(c.UserContext(), user.ID, request)
	utils.PanicIfNeeded(err)

	return c.Status(201).JSON(utils.ResponseData{
		Status:  201,
		Code:    "CREATED",
		Message: "Integration created",
		Results: record,
	})
}

func (controller *Integration) List(c *fiber.Ctx) error {
	user := middleware.UserFromCtx(c)
	records, err := controller.Service.List(c.UserContext(), user.ID)
	utils.PanicIfNeeded(err)

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Integrations retrieved",
		Results: records,
	})
}

func (controller *Integration) Update(c *fiber.Ctx) error {
	var request domainIntegration.UpdateIntegrationRequest
	if err := c.BodyParser(&request); err != nil {
		return c.Status(400).JSON(utils.ResponseData{Status: 400, Code: "BAD_REQUEST", Message: err.Error()})
	}

	user := middleware.UserFromCtx(c)
	record, err := controller.Service.Update(c.UserContext(), user.ID, c.Params("id"), request)
	utils.PanicIfNeeded(err)

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Integration updated",
		Results: record,
	})
}

func (controller *Integration) Delete(c *fiber.Ctx) error {
	user := middleware.UserFromCtx(c)
	err := controller.Service.Delete(c.UserContext(), user.ID, c.Params("id"))
	utils.PanicIfNeeded(err)

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Integration deleted",
	})
}
