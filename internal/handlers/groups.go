package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/learncircle/backend/internal/middleware"
	"github.com/learncircle/backend/internal/models"
	"github.com/learncircle/backend/internal/services"
	"github.com/learncircle/backend/pkg/logger"
	"github.com/learncircle/backend/pkg/utils"
	"gorm.io/gorm"
)

type GroupsHandler struct {
	DB         *gorm.DB
	Membership *services.MembershipService
	Mailer     *services.Mailer
}

func NewGroupsHandler(db *gorm.DB, membership *services.MembershipService, mailer *services.Mailer) *GroupsHandler {
	return &GroupsHandler{DB: db, Membership: membership, Mailer: mailer}
}

type createGroupRequest struct {
	Name        string  `json:"name"`
	Description *string `json:"description"`
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

	group, err := h.Membership.CreateGroup(c.Context(), req.Name, req.Description, currentUser.ID)
	if err != nil {
		return serviceError(c, err)
	}
	return utils.Success(c, fiber.StatusCreated, group)
}

// List returns the groups the current user belongs to, with member counts.
func (h *GroupsHandler) List(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	var groups []models.Group
	err := h.DB.
		Preload("Host").
		Joins("JOIN group_memberships ON group_memberships.group_id = groups.id").
		Where("group_memberships.user_id = ?", currentUser.ID).
		Order("groups.created_at DESC").
		Find(&groups).Error
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed loading groups")
	}

	if err := h.attachMemberCounts(groups); err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed counting members")
	}
	return utils.Success(c, fiber.StatusOK, groups)
}

// Hosted returns the groups the current user hosts.
func (h *GroupsHandler) Hosted(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	var groups []models.Group
	err := h.DB.
		Where("host_id = ?", currentUser.ID).
		Order("created_at DESC").
		Find(&groups).Error
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed loading groups")
	}

	if err := h.attachMemberCounts(groups); err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed counting members")
	}
	return utils.Success(c, fiber.StatusOK, groups)
}

// Get returns a single group with its member list. Only members can see it.
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
	if err := h.DB.Preload("Host").First(&group, "id = ?", groupID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return utils.Error(c, fiber.StatusNotFound, "group not found")
		}
		return utils.Error(c, fiber.StatusInternalServerError, "failed loading group")
	}

	var membership int64
	if err := h.DB.Model(&models.GroupMembership{}).
		Where("group_id = ? AND user_id = ?", groupID, currentUser.ID).
		Count(&membership).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed checking membership")
	}
	if membership == 0 {
		return utils.Error(c, fiber.StatusForbidden, "you are not a member of this group")
	}

	members, err := h.Membership.Members(c.Context(), groupID)
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed loading members")
	}
	group.MemberCount = int64(len(members))

	return utils.Success(c, fiber.StatusOK, fiber.Map{
		"group":   group,
		"members": members,
	})
}

type inviteRequest struct {
	Email string `json:"email"`
}

// Invite creates a pending invitation and sends the notification email as a
// best effort; a delivery failure does not undo the invitation.
func (h *GroupsHandler) Invite(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	groupID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid group id")
	}

	var req inviteRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}

	invitation, err := h.Membership.Invite(c.Context(), groupID, req.Email, currentUser.ID)
	if err != nil {
		return serviceError(c, err)
	}

	var group models.Group
	if err := h.DB.First(&group, "id = ?", groupID).Error; err == nil {
		dispatch := h.Mailer.SendToRecipients(c.Context(), services.KindInvitation, services.NotificationData{
			GroupName: group.Name,
			HostName:  currentUser.Name,
		}, []services.Recipient{{Email: invitation.Email}})
		if !dispatch.Success {
			logger.Warn("invitation_email_skipped", map[string]interface{}{
				"invitation_id": invitation.ID.String(),
				"reason":        dispatch.Message,
			})
		}
	}

	return utils.Success(c, fiber.StatusCreated, invitation)
}

func (h *GroupsHandler) attachMemberCounts(groups []models.Group) error {
	for i := range groups {
		if err := h.DB.Model(&models.GroupMembership{}).
			Where("group_id = ?", groups[i].ID).
			Count(&groups[i].MemberCount).Error; err != nil {
			return err
		}
	}
	return nil
}
