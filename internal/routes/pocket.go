package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/schoolyard/pocketledger/internal/pocket"
)

// RegisterPocketRoutes wires the pocket money endpoints. The rate limiter
// applies only to the mutating endpoint.
func RegisterPocketRoutes(r fiber.Router, h *pocket.Handler, rateLimit fiber.Handler) {
	base := "/schools/:schoolId/students/:studentId/pocket"
	r.Post(base+"/transactions", rateLimit, h.Record)
	r.Get(base+"/transactions", h.History)
	r.Get(base+"/summary", h.Summary)
}
