package rest

import (
	"github.com/gofiber/fiber/v2"
	domainQuota "github.com/reelforge/reelforge/domains/quota"
	"github.com/reelforge/reelforge/pkg/utils"
	"github.com/reelforge/reelforge/ui/rest/middleware"
)

type Quota struct {
	Service domainQuota.IQuotaUsecase
}

func InitRestQuota(app fiber.Router, service domainQuota.IQuotaUsecase) Quota {
	rest := Quota{Service: service}

	app.Get("/quota", rest.Get)
	return rest
}

func (controller *Quota) Get(c *fiber.Ctx) error {
	user := middleware.UserFromCtx(c)
	snapshot, err := controller.Service.Get(c.UserContext(), user)
	utils.PanicIfNeeded(err)

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Quota retrieved",
		Results: snapshot,
	})
}
