package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
)

var validate = validator.New()

// Version is reported by the status endpoint.
const Version = "1.0.0"

const msgEmptyMessage = "Message cannot be empty"

// Responder answers one chat message. Implementations never fail; errors
// are already turned into user-facing text.
type Responder interface {
	Respond(ctx context.Context, query string) string
}

// Options configure the routes.
type Options struct {
	// RequestTimeout bounds one chat request. Zero means no bound.
	RequestTimeout time.Duration
	// Limiter throttles the chat endpoints. Nil disables throttling.
	Limiter *RateLimiter
	// Metrics is mounted at /metrics when set.
	Metrics http.Handler
}

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, responder Responder, opts Options) {
	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "online",
			"message": "Weather assistant is running",
			"version": Version,
			"endpoints": fiber.Map{
				"chat":    "POST /chat",
				"chat_v1": "POST /api/v1/chat",
				"health":  "GET /health",
				"metrics": "GET /metrics",
			},
		})
	})

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "ok",
			"service": "weather-assistant",
		})
	})

	if opts.Metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(opts.Metrics))
	}

	chat := chatHandler(responder, opts.RequestTimeout)
	limit := RateLimit(opts.Limiter)
	app.Post("/chat", limit, chat)
	app.Post("/api/v1/chat", limit, chat)
}

// chatRequest is the body of a chat call.
type chatRequest struct {
	Message string `json:"message" validate:"required"`
}

type chatResponse struct {
	Response string `json:"response"`
}

func chatHandler(responder Responder, timeout time.Duration) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req chatRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body: "+err.Error())
		}
		req.Message = strings.TrimSpace(req.Message)
		if err := validate.Struct(req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, msgEmptyMessage)
		}

		ctx := c.UserContext()
		if timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}

		return c.JSON(chatResponse{Response: responder.Respond(ctx, req.Message)})
	}
}

// ErrorHandler renders every error as {"detail": ...}.
func ErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	detail := "internal server error"
	var e *fiber.Error
	if errors.As(err, &e) {
		code = e.Code
		detail = e.Message
	}
	return c.Status(code).JSON(fiber.Map{"detail": detail})
}
