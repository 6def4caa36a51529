package httpapi

import (
	"sort"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/i474232898/weatherbot/internal/scheduler"
)

var validate = validator.New()

// StatusSource exposes the bot's runtime state.
type StatusSource interface {
	Status() scheduler.Status
	Throttles() map[string]time.Time
	Throttle(key string) (time.Time, bool)
}

type throttleEntry struct {
	Key   string    `json:"key"`
	Until time.Time `json:"until"`
}

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, src StatusSource) {
	v1 := app.Group("/api/v1")

	v1.Get("/status", func(c *fiber.Ctx) error {
		return c.JSON(src.Status())
	})

	v1.Get("/throttles", func(c *fiber.Ctx) error {
		entries := src.Throttles()
		out := make([]throttleEntry, 0, len(entries))
		for k, v := range entries {
			out = append(out, throttleEntry{Key: k, Until: v})
		}
		sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
		return c.JSON(out)
	})

	v1.Get("/throttles/:key", func(c *fiber.Ctx) error {
		key := c.Params("key")
		if err := validate.Var(key, "required,max=128,printascii"); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid throttle key")
		}

		until, ok := src.Throttle(key)
		if !ok {
			return fiber.NewError(fiber.StatusNotFound, "no throttle for requested key")
		}
		return c.JSON(throttleEntry{Key: key, Until: until})
	})
}
