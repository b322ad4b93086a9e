package services

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/learncircle/backend/internal/models"
	"github.com/learncircle/backend/pkg/logger"
	"gorm.io/gorm"
)

// MembershipService owns groups, group membership and the invitation state
// machine.
type MembershipService struct {
	DB *gorm.DB
}

func NewMembershipService(db *gorm.DB) *MembershipService {
	return &MembershipService{DB: db}
}

// CreateGroup creates the group and inserts the host membership in the same
// transaction, so the host is a member from the first instant.
func (s *MembershipService) CreateGroup(ctx context.Context, name string, description *string, hostID uuid.UUID) (*models.Group, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, validationError("group name is required")
	}

	group := models.Group{
		Name:        name,
		Description: description,
		HostID:      hostID,
	}

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&group).Error; err != nil {
			return err
		}
		membership := models.GroupMembership{
			GroupID: group.ID,
			UserID:  hostID,
		}
		return tx.Create(&membership).Error
	})
	if err != nil {
		return nil, err
	}

	logger.InfoWithUser(hostID.String(), "group_created", map[string]interface{}{
		"group_id":   group.ID.String(),
		"group_name": group.Name,
	})
	return &group, nil
}

// Invite records a pending invitation for an email address. Any existing
// invitation for the same (group, email) pair blocks a new one, regardless of
// its status.
func (s *MembershipService) Invite(ctx context.Context, groupID uuid.UUID, email string, invitedBy uuid.UUID) (*models.Invitation, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil, validationError("email is required")
	}

	var group models.Group
	if err := s.DB.WithContext(ctx).First(&group, "id = ?", groupID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, notFoundError("group not found")
		}
		return nil, err
	}
	if group.HostID != invitedBy {
		return nil, ErrNotGroupHost
	}

	var existing int64
	if err := s.DB.WithContext(ctx).Model(&models.Invitation{}).
		Where("group_id = ? AND email = ?", groupID, email).
		Count(&existing).Error; err != nil {
		return nil, err
	}
	if existing > 0 {
		return nil, ErrDuplicateInvitation
	}

	invitation := models.Invitation{
		GroupID:     groupID,
		Email:       email,
		InvitedByID: invitedBy,
		Status:      models.InvitationPending,
	}
	if err := s.DB.WithContext(ctx).Create(&invitation).Error; err != nil {
		return nil, err
	}

	logger.InfoWithUser(invitedBy.String(), "invitation_sent", map[string]interface{}{
		"group_id": groupID.String(),
		"email":    email,
	})
	return &invitation, nil
}

// PendingInvitations returns the pending invitations addressed to an email,
// with group and inviter metadata preloaded.
func (s *MembershipService) PendingInvitations(ctx context.Context, email string) ([]models.Invitation, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	var invitations []models.Invitation
	err := s.DB.WithContext(ctx).
		Preload("Group").
		Preload("InvitedBy").
		Where("email = ? AND status = ?", email, models.InvitationPending).
		Order("created_at DESC").
		Find(&invitations).Error
	if err != nil {
		return nil, err
	}
	return invitations, nil
}

// Accept flips a pending invitation to accepted and inserts the membership in
// one transaction. Only the addressee may accept. If the user is already a
// member the whole operation rolls back and the invitation stays pending.
func (s *MembershipService) Accept(ctx context.Context, invitationID, userID uuid.UUID, userEmail string) (*models.Invitation, error) {
	var invitation models.Invitation
	userEmail = strings.ToLower(strings.TrimSpace(userEmail))

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&invitation, "id = ?", invitationID).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return notFoundError("invitation not found")
			}
			return err
		}
		if invitation.Email != userEmail {
			return notFoundError("invitation not found")
		}
		if invitation.Status != models.InvitationPending {
			return ErrInvitationResolved
		}

		var existing int64
		if err := tx.Model(&models.GroupMembership{}).
			Where("group_id = ? AND user_id = ?", invitation.GroupID, userID).
			Count(&existing).Error; err != nil {
			return err
		}
		if existing > 0 {
			return ErrAlreadyMember
		}

		membership := models.GroupMembership{
			GroupID: invitation.GroupID,
			UserID:  userID,
		}
		if err := tx.Create(&membership).Error; err != nil {
			return err
		}

		invitation.Status = models.InvitationAccepted
		return tx.Model(&models.Invitation{}).
			Where("id = ?", invitation.ID).
			Update("status", models.InvitationAccepted).Error
	})
	if err != nil {
		return nil, err
	}

	logger.InfoWithUser(userID.String(), "invitation_accepted", map[string]interface{}{
		"invitation_id": invitationID.String(),
		"group_id":      invitation.GroupID.String(),
	})
	return &invitation, nil
}

// Decline moves a pending invitation to declined. Only the addressee may
// decline; terminal invitations are left untouched.
func (s *MembershipService) Decline(ctx context.Context, invitationID uuid.UUID, userEmail string) (*models.Invitation, error) {
	var invitation models.Invitation
	if err := s.DB.WithContext(ctx).First(&invitation, "id = ?", invitationID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, notFoundError("invitation not found")
		}
		return nil, err
	}
	if invitation.Email != strings.ToLower(strings.TrimSpace(userEmail)) {
		return nil, notFoundError("invitation not found")
	}

	if invitation.Status != models.InvitationPending {
		return &invitation, nil
	}

	invitation.Status = models.InvitationDeclined
	if err := s.DB.WithContext(ctx).Model(&models.Invitation{}).
		Where("id = ?", invitation.ID).
		Update("status", models.InvitationDeclined).Error; err != nil {
		return nil, err
	}
	return &invitation, nil
}

// Members returns the confirmed members of a group, oldest first.
func (s *MembershipService) Members(ctx context.Context, groupID uuid.UUID) ([]models.User, error) {
	var users []models.User
	err := s.DB.WithContext(ctx).
		Model(&models.User{}).
		Joins("JOIN group_memberships ON group_memberships.user_id = users.id").
		Where("group_memberships.group_id = ?", groupID).
		Order("group_memberships.created_at ASC").
		Find(&users).Error
	if err != nil {
		return nil, err
	}
	return users, nil
}
