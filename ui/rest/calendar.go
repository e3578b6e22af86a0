package rest

import (
	"time"

	"github.com/gofiber/fiber/v2"
	domainCalendar "github.com/reelforge/reelforge/domains/calendar"
	"github.com/reelforge/reelforge/pkg/utils"
	"github.com/reelforge/reelforge/ui/rest/middleware"
)

type Calendar struct {
	Service domainCalendar.ICalendarUsecase
}

func InitRestCalendar(app fiber.Router, service domainCalendar.ICalendarUsecase) Calendar {
	rest := Calendar{Service: service}

	app.Get("/calendar", rest.GetRange)
	return rest
}

// GetRange serves both views: ?month=2026-09 for a month and
// ?start=...&end=... (RFC 3339) for an arbitrary window such as a week.
// The window is half-open: start inclusive, end exclusive.
func (controller *Calendar) GetRange(c *fiber.Ctx) error {
	var start, end time.Time

	if month := c.Query("month"); month != "" {
		parsed, err := time.Parse("2006-01", month)
		if err != nil {
			return c.Status(400).JSON(utils.ResponseData{Status: 400, Code: "BAD_REQUEST", Message: "invalid month, want YYYY-MM"})
		}
		start = parsed
		end = parsed.AddDate(0, 1, 0)
	} else {
		var err error
		start, err = time.Parse(time.RFC3339, c.Query("start"))
		if err != nil {
			return c.Status(400).JSON(utils.ResponseData{Status: 400, Code: "BAD_REQUEST", Message: "invalid or missing start, want RFC 3339"})
		}
		end, err = time.Parse(time.RFC3339, c.Query("end"))
		if err != nil {
			return c.Status(400).JSON(utils.ResponseData{Status: 400, Code: "BAD_REQUEST", Message: "invalid or missing end, want RFC 3339"})
		}
	}

	user := middleware.UserFromCtx(c)
	result, err := controller.Service.GetRange(c.UserContext(), user.ID, start, end)
	utils.PanicIfNeeded(err)

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Calendar retrieved",
		Results: result,
	})
}
