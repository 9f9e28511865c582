package models

import (
	"time"

	"github.com/google/uuid"
)

type RequestType string

const (
	RequestTypeJoin       RequestType = "join_request"
	RequestTypeInvitation RequestType = "invitation"
)

type RequestStatus string

const (
	RequestStatusPending   RequestStatus = "pending"
	RequestStatusAccepted  RequestStatus = "accepted"
	RequestStatusRejected  RequestStatus = "rejected"
	RequestStatusCancelled RequestStatus = "cancelled"
)

// Request is a pending social action between two students, optionally scoped
// to a group. It leaves the pending state exactly once; terminal rows are
// never edited again.
type Request struct {
	BaseModel
	SenderID    uuid.UUID  `json:"senderID" gorm:"type:uuid;not null;index;uniqueIndex:idx_request_pending_tuple,where:status = 'pending'"`
	RecipientID uuid.UUID  `json:"recipientID" gorm:"type:uuid;not null;index;uniqueIndex:idx_request_pending_tuple"`
	GroupID     *uuid.UUID `json:"groupID,omitempty" gorm:"type:uuid;index;uniqueIndex:idx_request_pending_tuple"`

	Type   RequestType   `json:"type" gorm:"type:varchar(20);not null;uniqueIndex:idx_request_pending_tuple"`
	Status RequestStatus `json:"status" gorm:"type:varchar(20);not null;default:'pending';index"`

	Message *string `json:"message,omitempty" gorm:"type:varchar(500)"`
	// ResolutionNote carries the system-generated reason when a request is
	// rejected automatically (e.g. the group filled up before acceptance).
	ResolutionNote *string    `json:"resolutionNote,omitempty" gorm:"type:varchar(255)"`
	ResolvedAt     *time.Time `json:"resolvedAt,omitempty"`

	Sender    User   `json:"sender,omitempty" gorm:"foreignKey:SenderID"`
	Recipient User   `json:"recipient,omitempty" gorm:"foreignKey:RecipientID"`
	Group     *Group `json:"group,omitempty" gorm:"foreignKey:GroupID"`
}

func (Request) TableName() string {
	return "requests"
}

func (r *Request) IsPending() bool {
	return r.Status == RequestStatusPending
}
