package rest

import (
	"time"

	"github.com/gofiber/fiber/v2"
	domainPlanning "github.com/reelforge/reelforge/domains/planning"
	"github.com/reelforge/reelforge/pkg/utils"
	"github.com/reelforge/reelforge/ui/rest/middleware"
)

type Planning struct {
	Service domainPlanning.IPlanningUsecase
}

func InitRestPlanning(app fiber.Router, service domainPlanning.IPlanningUsecase) Planning {
	rest := Planning{Service: service}

	group := app.Group("/planner")
	group.Post("/schedule", rest.ScheduleSingle)
	group.Post("/series", rest.CreateSeries)
	group.Post("/monthly-plan", rest.CreateMonthlyPlan)
	group.Post("/action-card", rest.ApplyActionCard)
	group.Get("/", rest.ListPlanned)
	group.Put("/:id", rest.UpdatePlanned)
	group.Delete("/:id", rest.DeletePlanned)
	group.Post("/:id/generate", rest.TriggerGenerateNow)
	group.Post("/:id/reschedule", rest.Reschedule)
	group.Post("/:id/post-result", rest.ReportPostResult)
	return rest
}

func (controller *Planning) ScheduleSingle(c *fiber.Ctx) error {
	var request domainPlanning.ScheduleSingleRequest
	if err := c.BodyParser(&request); err != nil {
		return c.Status(400).JSON(utils.ResponseData{Status: 400, Code: "BAD_REQUEST", Message: err.Error()})
	}

	user := middleware.UserFromCtx(c)
	video, err := controller.Service.ScheduleSingle(c.UserContext(), user, request)
	utils.PanicIfNeeded(err)

	return c.Status(201).JSON(utils.ResponseData{
		Status:  201,
		Code:    "CREATED",
		Message: "Video scheduled",
		Results: video,
	})
}

func (controller *Planning) CreateSeries(c *fiber.Ctx) error {
	var request domainPlanning.CreateSeriesRequest
	if err := c.BodyParser(&request); err != nil {
		return c.Status(400).JSON(utils.ResponseData{Status: 400, Code: "BAD_REQUEST", Message: err.Error()})
	}

	user := middleware.UserFromCtx(c)
	result, err := controller.Service.CreateSeries(c.UserContext(), user, request)
	utils.PanicIfNeeded(err)

	return c.Status(201).JSON(utils.ResponseData{
		Status:  201,
		Code:    "CREATED",
		Message: "Series planned",
		Results: result,
	})
}

func (controller *Planning) CreateMonthlyPlan(c *fiber.Ctx) error {
	var request domainPlanning.CreateMonthlyPlanRequest
	if err := c.BodyParser(&request); err != nil {
		return c.Status(400).JSON(utils.ResponseData{Status: 400, Code: "BAD_REQUEST", Message: err.Error()})
	}

	user := middleware.UserFromCtx(c)
	result, err := controller.Service.CreateMonthlyPlan(c.UserContext(), user, request)
	utils.PanicIfNeeded(err)

	return c.Status(201).JSON(utils.ResponseData{
		Status:  201,
		Code:    "CREATED",
		Message: "Monthly plan created",
		Results: result,
	})
}

func (controller *Planning) ApplyActionCard(c *fiber.Ctx) error {
	var card domainPlanning.ActionCard
	if err := c.BodyParser(&card); err != nil {
		return c.Status(400).JSON(utils.ResponseData{Status: 400, Code: "BAD_REQUEST", Message: err.Error()})
	}

	user := middleware.UserFromCtx(c)
	result, err := controller.Service.ApplyActionCard(c.UserContext(), user, card)
	utils.PanicIfNeeded(err)

	return c.Status(201).JSON(utils.ResponseData{
		Status:  201,
		Code:    "CREATED",
		Message: "Action card applied",
		Results: result,
	})
}

func (controller *Planning) ListPlanned(c *fiber.Ctx) error {
	var filters domainPlanning.ListFilters
	if err := c.QueryParser(&filters); err != nil {
		return c.Status(400).JSON(utils.ResponseData{Status: 400, Code: "BAD_REQUEST", Message: err.Error()})
	}

	user := middleware.UserFromCtx(c)
	videos, err := controller.Service.ListPlanned(c.UserContext(), user.ID, filters)
	utils.PanicIfNeeded(err)

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Planned videos retrieved",
		Results: videos,
	})
}

func (controller *Planning) UpdatePlanned(c *fiber.Ctx) error {
	var request domainPlanning.UpdatePlannedRequest
	if err := c.BodyParser(&request); err != nil {
		return c.Status(400).JSON(utils.ResponseData{Status: 400, Code: "BAD_REQUEST", Message: err.Error()})
	}

	user := middleware.UserFromCtx(c)
	video, err := controller.Service.UpdatePlanned(c.UserContext(), user.ID, c.Params("id"), request)
	utils.PanicIfNeeded(err)

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Planned video updated",
		Results: video,
	})
}

func (controller *Planning) DeletePlanned(c *fiber.Ctx) error {
	user := middleware.UserFromCtx(c)
	err := controller.Service.DeletePlanned(c.UserContext(), user.ID, c.Params("id"))
	utils.PanicIfNeeded(err)

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Planned video deleted",
	})
}

func (controller *Planning) TriggerGenerateNow(c *fiber.Ctx) error {
	force := c.QueryBool("force", false)

	user := middleware.UserFromCtx(c)
	video, err := controller.Service.TriggerGenerateNow(c.UserContext(), user.ID, c.Params("id"), force)
	utils.PanicIfNeeded(err)

	return c.Status(202).JSON(utils.ResponseData{
		Status:  202,
		Code:    "ACCEPTED",
		Message: "Generation started",
		Results: video,
	})
}

func (controller *Planning) Reschedule(c *fiber.Ctx) error {
	var request struct {
		ScheduledPostTime time.Time `json:"scheduled_post_time"`
	}
	if err := c.BodyParser(&request); err != nil {
		return c.Status(400).JSON(utils.ResponseData{Status: 400, Code: "BAD_REQUEST", Message: err.Error()})
	}

	user := middleware.UserFromCtx(c)
	video, err := controller.Service.Reschedule(c.UserContext(), user.ID, c.Params("id"), request.ScheduledPostTime)
	utils.PanicIfNeeded(err)

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Video rescheduled",
		Results: video,
	})
}

func (controller *Planning) ReportPostResult(c *fiber.Ctx) error {
	var request domainPlanning.PostResultRequest
	if err := c.BodyParser(&request); err != nil {
		return c.Status(400).JSON(utils.ResponseData{Status: 400, Code: "BAD_REQUEST", Message: err.Error()})
	}

	video, err := controller.Service.ReportPostResult(c.UserContext(), c.Params("id"), request)
	utils.PanicIfNeeded(err)

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Post result recorded",
		Results: video,
	})
}
