package middleware

import (
	"github.com/gofiber/fiber/v2"
	"github.com/reelforge/reelforge/domains/identity"
	"github.com/reelforge/reelforge/pkg/utils"
)

const userLocalKey = "identity.user"

// Identity reads the authenticated caller from the headers set by the
// upstream identity proxy. Requests without a user id are rejected.
func Identity() fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		userID := ctx.Get("X-User-ID")
		if userID == "" {
			return ctx.Status(401).JSON(utils.ResponseData{
				Status:  401,
				Code:    "UNAUTHORIZED",
				Message: "missing X-User-ID header",
			})
		}

		tier := identity.Tier(ctx.Get("X-User-Tier"))
		switch tier {
		case identity.TierFree, identity.TierPremium, identity.TierAdmin:
		default:
			tier = identity.TierFree
		}

		ctx.Locals(userLocalKey, identity.User{ID: userID, Tier: tier})
		return ctx.Next()
	}
}

// UserFromCtx returns the caller stored by the Identity middleware.
func UserFromCtx(ctx *fiber.Ctx) identity.User {
	user, _ := ctx.Locals(userLocalKey).(identity.User)
	return user
}
