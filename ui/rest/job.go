package rest

import (
	"github.com/gofiber/fiber/v2"
	domainJob "github.com/reelforge/reelforge/domains/job"
	"github.com/reelforge/reelforge/pkg/utils"
	"github.com/reelforge/reelforge/ui/rest/middleware"
)

type Job struct {
	Service domainJob.IJobUsecase
}

func InitRestJob(app fiber.Router, service domainJob.IJobUsecase) Job {
	rest := Job{Service: service}

	app.Post("/jobs", rest.Create)
	app.Get("/jobs/:id", rest.GetStatus)
	app.Post("/jobs/:id/retry", rest.Retry)
	app.Post("/jobs/:id/cancel", rest.Cancel)
	return rest
}

func (controller *Job) Create(c *fiber.Ctx) error {
	var request domainJob.CreateJobRequest
	if err := c.BodyParser(&request); err != nil {
		return c.Status(400).JSON(utils.ResponseData{Status: 400, Code: "BAD_REQUEST", Message: err.Error()})
	}

	user := middleware.UserFromCtx(c)
	video, err := controller.Service.Create(c.UserContext(), user, request)
	utils.PanicIfNeeded(err)

	return c.Status(201).JSON(utils.ResponseData{
		Status:  201,
		Code:    "CREATED",
		Message: "Generation job created",
		Results: video,
	})
}

func (controller *Job) GetStatus(c *fiber.Ctx) error {
	user := middleware.UserFromCtx(c)
	video, err := controller.Service.GetStatus(c.UserContext(), user.ID, c.Params("id"))
	utils.PanicIfNeeded(err)

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Job status retrieved",
		Results: video,
	})
}

func (controller *Job) Retry(c *fiber.Ctx) error {
	var request domainJob.RetryJobRequest
	if err := c.BodyParser(&request); err != nil {
		return c.Status(400).JSON(utils.ResponseData{Status: 400, Code: "BAD_REQUEST", Message: err.Error()})
	}

	user := middleware.UserFromCtx(c)
	video, err := controller.Service.Retry(c.UserContext(), user, c.Params("id"), request)
	utils.PanicIfNeeded(err)

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Retry started",
		Results: video,
	})
}

func (controller *Job) Cancel(c *fiber.Ctx) error {
	user := middleware.UserFromCtx(c)
	err := controller.Service.Cancel(c.UserContext(), user.ID, c.Params("id"))
	utils.PanicIfNeeded(err)

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Cancellation requested",
	})
}
