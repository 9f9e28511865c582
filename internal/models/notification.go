package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	NotificationTypeMemberJoined    = "member_joined"
	NotificationTypeMemberRemoved   = "member_removed"
	NotificationTypeLeaderAssigned  = "leader_assigned"
	NotificationTypeLeaderChanged   = "leader_changed"
	NotificationTypeTutorAssigned   = "tutor_assigned"
	NotificationTypeRequestReceived = "request_received"
	NotificationTypeRequestAccepted = "request_accepted"
	NotificationTypeRequestRejected = "request_rejected"
)

// Notification rows are created only as side effects of engine transitions.
// After creation the only permitted mutation is the recipient flipping IsRead.
type Notification struct {
	BaseModel
	UserID  uuid.UUID  `json:"userID" gorm:"type:uuid;not null;index"`
	ActorID *uuid.UUID `json:"actorID,omitempty" gorm:"type:uuid"`
	Type    string     `json:"type" gorm:"type:varchar(40);not null"`
	Message string     `json:"message" gorm:"type:text;not null"`

	GroupID      *uuid.UUID `json:"groupID,omitempty" gorm:"type:uuid"`
	SubmissionID *uuid.UUID `json:"submissionID,omitempty" gorm:"type:uuid"`

	IsRead bool       `json:"isRead" gorm:"not null;default:false;index"`
	ReadAt *time.Time `json:"readAt,omitempty"`

	Actor *User `json:"actor,omitempty" gorm:"foreignKey:ActorID;references:ID"`
}

func (Notification) TableName() string {
	return "notifications"
}
