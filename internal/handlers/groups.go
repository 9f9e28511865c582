package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/serviciocomunal/backend/internal/middleware"
	"github.com/serviciocomunal/backend/internal/models"
	"github.com/serviciocomunal/backend/internal/services"
	"github.com/serviciocomunal/backend/pkg/logger"
	"github.com/serviciocomunal/backend/pkg/utils"
)

type GroupsHandler struct {
	DB     *gorm.DB
	Groups *services.GroupService
}

func NewGroupsHandler(db *gorm.DB, groups *services.GroupService) *GroupsHandler {
	return &GroupsHandler{DB: db, Groups: groups}
}

type createGroupRequest struct {
	Number      int    `json:"number"`
	ProjectName string `json:"projectName"`
}

func (h *GroupsHandler) Create(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	var req createGroupRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}

	var projectName *string
	if trimmed := strings.TrimSpace(req.ProjectName); trimmed != "" {
		projectName = &trimmed
	}

	group, err := h.Groups.CreateGroup(currentUser, req.Number, projectName)
	if err != nil {
		return serviceError(c, err)
	}

	logger.InfoWithUser(currentUser.ID.String(), "group_created", map[string]interface{}{
		"group_id":     group.ID.String(),
		"group_number": group.Number,
	})

	return utils.Success(c, fiber.StatusCreated, group)
}

func (h *GroupsHandler) List(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	var groups []models.Group
	if err := h.DB.
		Preload("Memberships.Student").
		Preload("Leader").
		Order("number ASC").
		Find(&groups).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed listing groups")
	}

	return utils.Success(c, fiber.StatusOK, groups)
}

func (h *GroupsHandler) Get(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	groupID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid group id")
	}

	var group models.Group
	if err := h.DB.
		Preload("Memberships.Student").
		Preload("TutorAssignments.Professor").
		Preload("Leader").
		First(&group, "id = ?", groupID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return utils.Error(c, fiber.StatusNotFound, "group not found")
		}
		return utils.Error(c, fiber.StatusInternalServerError, "failed loading group")
	}

	return utils.Success(c, fiber.StatusOK, group)
}

func (h *GroupsHandler) Delete(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	groupID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid group id")
	}

	if err := h.Groups.DeleteGroup(currentUser, groupID); err != nil {
		return serviceError(c, err)
	}

	logger.InfoWithUser(currentUser.ID.String(), "group_deleted", map[string]interface{}{
		"group_id": groupID.String(),
	})

	return utils.Success(c, fiber.StatusOK, fiber.Map{"message": "group deleted"})
}

type addMemberRequest struct {
	StudentID string `json:"studentID"`
}

func (h *GroupsHandler) AddMember(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	groupID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid group id")
	}

	var req addMemberRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}
	studentID, err := parseUUID(req.StudentID)
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid student id")
	}

	if err := h.Groups.AddMember(currentUser, groupID, studentID); err != nil {
		return serviceError(c, err)
	}

	logger.InfoWithUser(currentUser.ID.String(), "group_member_added", map[string]interface{}{
		"group_id":   groupID.String(),
		"student_id": studentID.String(),
	})

	return utils.Success(c, fiber.StatusCreated, fiber.Map{"message": "member added"})
}

func (h *GroupsHandler) RemoveMember(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	groupID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid group id")
	}
	studentID, err := parseUUID(c.Params("userId"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid student id")
	}

	if err := h.Groups.RemoveMember(currentUser, groupID, studentID); err != nil {
		return serviceError(c, err)
	}

	logger.InfoWithUser(currentUser.ID.String(), "group_member_removed", map[string]interface{}{
		"group_id":   groupID.String(),
		"student_id": studentID.String(),
	})

	return utils.Success(c, fiber.StatusOK, fiber.Map{"message": "member removed"})
}

type changeLeaderRequest struct {
	StudentID string `json:"studentID"`
}

func (h *GroupsHandler) ChangeLeader(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	groupID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid group id")
	}

	var req changeLeaderRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}
	studentID, err := parseUUID(req.StudentID)
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid student id")
	}

	if err := h.Groups.ChangeLeader(currentUser, groupID, studentID); err != nil {
		return serviceError(c, err)
	}

	logger.InfoWithUser(currentUser.ID.String(), "group_leader_changed", map[string]interface{}{
		"group_id":   groupID.String(),
		"student_id": studentID.String(),
	})

	return utils.Success(c, fiber.StatusOK, fiber.Map{"message": "leader changed"})
}

type assignTutorRequest struct {
	ProfessorID string `json:"professorID"`
}

func (h *GroupsHandler) AssignTutor(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	groupID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid group id")
	}

	var req assignTutorRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}
	professorID, err := parseUUID(req.ProfessorID)
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid professor id")
	}

	if err := h.Groups.AssignTutor(currentUser, groupID, professorID); err != nil {
		return serviceError(c, err)
	}

	return utils.Success(c, fiber.StatusCreated, fiber.Map{"message": "tutor assigned"})
}

func (h *GroupsHandler) RemoveTutor(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	groupID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid group id")
	}
	professorID, err := parseUUID(c.Params("userId"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid professor id")
	}

	if err := h.Groups.RemoveTutor(currentUser, groupID, professorID); err != nil {
		return serviceError(c, err)
	}

	return utils.Success(c, fiber.StatusOK, fiber.Map{"message": "tutor removed"})
}

func (h *GroupsHandler) ListSubmissions(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	groupID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid group id")
	}

	var submissions []models.Submission
	if err := h.DB.
		Preload("UploadedBy").
		Where("group_id = ?", groupID).
		Order("created_at DESC").
		Find(&submissions).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed listing submissions")
	}

	return utils.Success(c, fiber.StatusOK, submissions)
}
