package services

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/serviciocomunal/backend/internal/models"
	"github.com/serviciocomunal/backend/pkg/utils"
)

// NotificationService records in-system notifications. No retries, no
// external delivery; rows are written inside the transaction of the state
// change that caused them.
type NotificationService struct {
	DB *gorm.DB
}

func NewNotificationService(db *gorm.DB) *NotificationService {
	return &NotificationService{DB: db}
}

type NotificationInput struct {
	RecipientID  uuid.UUID
	ActorID      *uuid.UUID
	Type         string
	Message      string
	GroupID      *uuid.UUID
	SubmissionID *uuid.UUID
}

// Emit creates one unread notification row. When tx is nil the service's own
// connection is used; engines always pass their transaction so the row commits
// or rolls back with the transition that produced it.
func (s *NotificationService) Emit(tx *gorm.DB, in NotificationInput) error {
	if tx == nil {
		tx = s.DB
	}
	row := models.Notification{
		UserID:       in.RecipientID,
		ActorID:      in.ActorID,
		Type:         in.Type,
		Message:      in.Message,
		GroupID:      in.GroupID,
		SubmissionID: in.SubmissionID,
	}
	return wrapStoreErr(tx.Create(&row).Error)
}

func (s *NotificationService) List(actor *models.User, p utils.PaginationParams) ([]models.Notification, int64, error) {
	var total int64
	if err := s.DB.Model(&models.Notification{}).
		Where("user_id = ?", actor.ID).
		Count(&total).Error; err != nil {
		return nil, 0, wrapStoreErr(err)
	}

	var notifications []models.Notification
	if err := utils.ApplyPagination(
		s.DB.Preload("Actor").Where("user_id = ?", actor.ID).Order("created_at DESC"),
		p,
	).Find(&notifications).Error; err != nil {
		return nil, 0, wrapStoreErr(err)
	}

	return notifications, total, nil
}

func (s *NotificationService) UnreadCount(actor *models.User) (int64, error) {
	var count int64
	err := s.DB.Model(&models.Notification{}).
		Where("user_id = ? AND is_read = ?", actor.ID, false).
		Count(&count).Error
	return count, wrapStoreErr(err)
}

// MarkRead flips the read flag. Only the recipient may do so.
func (s *NotificationService) MarkRead(actor *models.User, notificationID uuid.UUID) error {
	var row models.Notification
	if err := s.DB.First(&row, "id = ?", notificationID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		return wrapStoreErr(err)
	}
	if row.UserID != actor.ID {
		return ErrForbidden
	}
	if row.IsRead {
		return nil
	}

	now := time.Now().UTC()
	return wrapStoreErr(s.DB.Model(&models.Notification{}).
		Where("id = ?", row.ID).
		Updates(map[string]interface{}{"is_read": true, "read_at": now}).Error)
}

func (s *NotificationService) MarkAllRead(actor *models.User) error {
	now := time.Now().UTC()
	return wrapStoreErr(s.DB.Model(&models.Notification{}).
		Where("user_id = ? AND is_read = ?", actor.ID, false).
		Updates(map[string]interface{}{"is_read": true, "read_at": now}).Error)
}
