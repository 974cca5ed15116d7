package handlers

import (
	"errors"
	"log/slog"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/karthikraju391/codecrush/auth"
	"github.com/karthikraju391/codecrush/config"
	"github.com/karthikraju391/codecrush/nats_service"
	"github.com/karthikraju391/codecrush/store"
)

// TokenCookie carries the session token.
const TokenCookie = "token"

const userIDKey = "userID"

// Handler serves the REST API and the chat socket.
type Handler struct {
	cfg    config.RelayConfig
	store  *store.Store
	nats   *nats_service.NatsService
	tokens *auth.Tokens
	log    *slog.Logger
}

func New(cfg config.RelayConfig, st *store.Store, natsSvc *nats_service.NatsService, tokens *auth.Tokens, log *slog.Logger) *Handler {
	return &Handler{cfg: cfg, store: st, nats: natsSvc, tokens: tokens, log: log}
}

// NewApp builds the fiber app with request logging and every route.
func NewApp(h *Handler) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               "codecrush-relay",
		DisableStartupMessage: true,
		ErrorHandler:          ErrorHandler(h.log),
	})
	app.Use(logger.New())
	h.Register(app)
	return app
}

// Register mounts every route on app.
func (h *Handler) Register(app *fiber.App) {
	app.Post("/signup", h.Signup)
	app.Post("/login", h.Login)
	app.Post("/logout", h.Logout)

	app.Get("/profile/view", h.RequireAuth, h.Profile)
	app.Get("/user/connections", h.RequireAuth, h.Connections)
	app.Get("/user/requests/received", h.RequireAuth, h.ReceivedRequests)
	app.Post("/request/send/:status/:toUserId", h.RequireAuth, h.SendRequest)
	app.Post("/request/review/:status/:requestId", h.RequireAuth, h.ReviewRequest)
	app.Get("/chat/:targetUserId", h.RequireAuth, h.History)

	app.Use("/socket", h.RequireAuth, func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/socket", websocket.New(h.HandleWebSocket, websocket.Config{
		ReadBufferSize:  int(h.cfg.MaxMessageSize),
		WriteBufferSize: int(h.cfg.MaxMessageSize),
	}))
}

// RequireAuth validates the token cookie and stores the user id in Locals.
func (h *Handler) RequireAuth(c *fiber.Ctx) error {
	token := c.Cookies(TokenCookie)
	if token == "" {
		return fiber.NewError(fiber.StatusUnauthorized, "please log in")
	}
	userID, err := h.tokens.Validate(token)
	if err != nil {
		return fiber.NewError(fiber.StatusUnauthorized, "invalid or expired token")
	}
	c.Locals(userIDKey, userID)
	return c.Next()
}

func currentUserID(c *fiber.Ctx) string {
	id, _ := c.Locals(userIDKey).(string)
	return id
}

// ErrorHandler maps domain errors to status codes and answers
// {"message": ...}. Server errors are logged and not echoed.
func ErrorHandler(log *slog.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		code := fiber.StatusInternalServerError
		var fe *fiber.Error
		var ve validator.ValidationErrors
		switch {
		case errors.As(err, &fe):
			code = fe.Code
		case errors.As(err, &ve),
			errors.Is(err, auth.ErrWeakPassword),
			errors.Is(err, store.ErrSelfRequest),
			errors.Is(err, store.ErrInvalidStatus):
			code = fiber.StatusBadRequest
		case errors.Is(err, store.ErrNotFound):
			code = fiber.StatusNotFound
		case errors.Is(err, store.ErrEmailTaken), errors.Is(err, store.ErrDuplicateRequest):
			code = fiber.StatusConflict
		}

		msg := err.Error()
		if code >= fiber.StatusInternalServerError {
			log.Error("Request failed", "method", c.Method(), "path", c.Path(), "error", err)
			msg = "internal server error"
		}
		return c.Status(code).JSON(fiber.Map{"message": msg})
	}
}
