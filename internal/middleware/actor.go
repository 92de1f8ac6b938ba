package middleware

import (
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"
)

const (
	actorHeader = "X-Actor-ID"

	// ActorLocal is the fiber locals key holding the acting staff user id.
	ActorLocal = "actor_user_id"
)

// ActorContext propagates the caller identity supplied by the upstream
// authentication layer. The gateway has already verified the session, so
// the header is trusted as authorized; requests without it are rejected.
func ActorContext() fiber.Handler {
	return func(c *fiber.Ctx) error {
		actor := strings.TrimSpace(c.Get(actorHeader))
		if actor == "" {
			return fiber.NewError(http.StatusUnauthorized, "missing "+actorHeader+" header")
		}
		c.Locals(ActorLocal, actor)
		return c.Next()
	}
}
