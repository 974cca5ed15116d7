package handlers

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/karthikraju391/codecrush/auth"
	"github.com/karthikraju391/codecrush/models"
	"github.com/karthikraju391/codecrush/store"
	"github.com/samber/lo"
)

func (h *Handler) setTokenCookie(c *fiber.Ctx, token string, expires time.Time) {
	c.Cookie(&fiber.Cookie{
		Name:     TokenCookie,
		Value:    token,
		Expires:  expires,
		HTTPOnly: true,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
}

func (h *Handler) issue(c *fiber.Ctx, userID string) error {
	token, err := h.tokens.Issue(userID)
	if err != nil {
		return err
	}
	h.setTokenCookie(c, token, time.Now().Add(h.tokens.TTL()))
	return nil
}

func (h *Handler) Signup(c *fiber.Ctx) error {
	var in auth.SignupRequest
	if err := c.BodyParser(&in); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid body")
	}
	if err := auth.ValidateSignup(in); err != nil {
		return err
	}
	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return err
	}
	u, err := h.store.CreateUser(store.User{
		User: models.User{
			Contact: models.Contact{FirstName: in.FirstName, LastName: in.LastName},
			EmailID: in.EmailID,
		},
		PasswordHash: hash,
	})
	if err != nil {
		return err
	}
	if err := h.issue(c, u.ID); err != nil {
		return err
	}
	h.log.Info("User signed up", "user_id", u.ID)
	return c.JSON(models.DataResponse[models.User]{Message: "User added successfully", Data: u.User})
}

func (h *Handler) Login(c *fiber.Ctx) error {
	var in auth.LoginRequest
	if err := c.BodyParser(&in); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid body")
	}
	if err := auth.ValidateLogin(in); err != nil {
		return err
	}
	invalid := fiber.NewError(fiber.StatusUnauthorized, "invalid credentials")
	u, err := h.store.UserByEmail(in.EmailID)
	if errors.Is(err, store.ErrNotFound) {
		return invalid
	}
	if err != nil {
		return err
	}
	ok, err := auth.ComparePassword(in.Password, u.PasswordHash)
	if err != nil || !ok {
		return invalid
	}
	if err := h.issue(c, u.ID); err != nil {
		return err
	}
	return c.JSON(u.User)
}

func (h *Handler) Logout(c *fiber.Ctx) error {
	h.setTokenCookie(c, "", time.Now())
	return c.JSON(fiber.Map{"message": "Logout successful"})
}

func (h *Handler) Profile(c *fiber.Ctx) error {
	u, err := h.store.UserByID(currentUserID(c))
	if errors.Is(err, store.ErrNotFound) {
		return fiber.NewError(fiber.StatusUnauthorized, "user no longer exists")
	}
	if err != nil {
		return err
	}
	return c.JSON(u.User)
}

func (h *Handler) Connections(c *fiber.Ctx) error {
	contacts, err := h.store.Connections(currentUserID(c))
	if err != nil {
		return err
	}
	return c.JSON(models.DataResponse[[]models.Contact]{Data: lo.Ternary(contacts == nil, []models.Contact{}, contacts)})
}

func (h *Handler) ReceivedRequests(c *fiber.Ctx) error {
	requests, err := h.store.ReceivedRequests(currentUserID(c))
	if err != nil {
		return err
	}
	return c.JSON(models.DataResponse[[]models.ConnectionRequest]{
		Message: "Data fetched successfully",
		Data:    lo.Ternary(requests == nil, []models.ConnectionRequest{}, requests),
	})
}

func (h *Handler) SendRequest(c *fiber.Ctx) error {
	r, err := h.store.SendRequest(currentUserID(c), c.Params("toUserId"), c.Params("status"))
	if err != nil {
		return err
	}
	return c.JSON(models.DataResponse[models.ConnectionRequest]{
		Message: "Connection request " + r.Status,
		Data:    toConnectionRequest(r),
	})
}

func (h *Handler) ReviewRequest(c *fiber.Ctx) error {
	r, err := h.store.ReviewRequest(c.Params("requestId"), currentUserID(c), c.Params("status"))
	if err != nil {
		return err
	}
	return c.JSON(models.DataResponse[models.ConnectionRequest]{
		Message: "Connection request " + r.Status,
		Data:    toConnectionRequest(r),
	})
}

func toConnectionRequest(r store.Request) models.ConnectionRequest {
	return models.ConnectionRequest{
		ID:         r.ID,
		FromUserID: models.Contact{ID: r.FromUserID},
		ToUserID:   r.ToUserID,
		Status:     r.Status,
	}
}

// History returns the persisted conversation with targetUserId. Only
// accepted connections can read it.
func (h *Handler) History(c *fiber.Ctx) error {
	userID, targetID := currentUserID(c), c.Params("targetUserId")
	connected, err := h.store.Connected(userID, targetID)
	if err != nil {
		return err
	}
	if !connected {
		return fiber.NewError(fiber.StatusForbidden, "not connected")
	}
	msgs, err := h.store.History(models.PairID(userID, targetID), h.cfg.HistoryLimit)
	if err != nil {
		return err
	}
	return c.JSON(models.HistoryResponse{
		Messages: lo.Map(msgs, func(m models.Message, _ int) models.HistoryMessage {
			return models.HistoryMessage{
				ID:        m.ID,
				SenderID:  models.Sender{ID: m.SenderID, FirstName: m.FirstName, LastName: m.LastName},
				Text:      m.Text,
				CreatedAt: m.CreatedAt,
				TempID:    m.TempID,
			}
		}),
	})
}
