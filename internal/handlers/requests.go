package handlers

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/serviciocomunal/backend/internal/middleware"
	"github.com/serviciocomunal/backend/internal/models"
	"github.com/serviciocomunal/backend/internal/services"
	"github.com/serviciocomunal/backend/pkg/logger"
	"github.com/serviciocomunal/backend/pkg/utils"
)

type RequestsHandler struct {
	DB       *gorm.DB
	Requests *services.RequestService
}

func NewRequestsHandler(db *gorm.DB, requests *services.RequestService) *RequestsHandler {
	return &RequestsHandler{DB: db, Requests: requests}
}

type createRequestBody struct {
	RecipientID string `json:"recipientID"`
	Type        string `json:"type"`
	GroupID     string `json:"groupID"`
	Message     string `json:"message"`
}

func (h *RequestsHandler) Create(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	var body createRequestBody
	if err := c.BodyParser(&body); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}

	recipientID, err := parseUUID(body.RecipientID)
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid recipient id")
	}

	var groupID *uuid.UUID
	if strings.TrimSpace(body.GroupID) != "" {
		parsed, err := parseUUID(body.GroupID)
		if err != nil {
			return utils.Error(c, fiber.StatusBadRequest, "invalid group id")
		}
		groupID = &parsed
	}

	var message *string
	if trimmed := strings.TrimSpace(body.Message); trimmed != "" {
		message = &trimmed
	}

	request, err := h.Requests.Create(currentUser, services.CreateRequestInput{
		RecipientID: recipientID,
		Type:        models.RequestType(body.Type),
		GroupID:     groupID,
		Message:     message,
	})
	if err != nil {
		return serviceError(c, err)
	}

	logger.InfoWithUser(currentUser.ID.String(), "request_created", map[string]interface{}{
		"request_id": request.ID.String(),
		"type":       string(request.Type),
	})

	return utils.Success(c, fiber.StatusCreated, request)
}

// List returns the caller's inbox by default, or their outbox with ?box=sent.
func (h *RequestsHandler) List(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	p := utils.ParsePagination(c)

	var (
		requests []models.Request
		total    int64
		err      error
	)
	if c.Query("box") == "sent" {
		requests, total, err = h.Requests.ListOutbox(currentUser, p)
	} else {
		requests, total, err = h.Requests.ListInbox(currentUser, p)
	}
	if err != nil {
		return serviceError(c, err)
	}

	return utils.Paginated(c, requests, p.Page, p.Limit, total)
}

type respondBody struct {
	Decision string `json:"decision"`
}

func (h *RequestsHandler) Respond(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	requestID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request id")
	}

	var body respondBody
	if err := c.BodyParser(&body); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}

	decision := services.Decision(strings.ToLower(strings.TrimSpace(body.Decision)))
	if decision != services.DecisionAccept && decision != services.DecisionReject {
		return utils.Error(c, fiber.StatusBadRequest, "decision must be accept or reject")
	}

	if err := h.Requests.Respond(currentUser, requestID, decision); err != nil {
		var rejected *services.AutoRejection
		if errors.As(err, &rejected) {
			// The request really was resolved (rejected); report why the
			// acceptance could not go through.
			logger.InfoWithUser(currentUser.ID.String(), "request_auto_rejected", map[string]interface{}{
				"request_id": requestID.String(),
				"cause":      rejected.Cause.Error(),
			})
			return utils.Error(c, fiber.StatusConflict, rejected.Error())
		}
		return serviceError(c, err)
	}

	logger.InfoWithUser(currentUser.ID.String(), "request_resolved", map[string]interface{}{
		"request_id": requestID.String(),
		"decision":   string(decision),
	})

	return utils.Success(c, fiber.StatusOK, fiber.Map{"message": "request " + string(decision) + "ed"})
}

func (h *RequestsHandler) Cancel(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	requestID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request id")
	}

	if err := h.Requests.Cancel(currentUser, requestID); err != nil {
		return serviceError(c, err)
	}

	return utils.Success(c, fiber.StatusOK, fiber.Map{"message": "request cancelled"})
}
