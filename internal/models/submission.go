package models

import "github.com/google/uuid"

// Submission is a document handed in by a group. The upload pipeline lives
// outside this service; rows are referenced by notifications and the group
// detail view.
type Submission struct {
	BaseModel
	GroupID      uuid.UUID `json:"groupID" gorm:"type:uuid;not null;index"`
	UploadedByID uuid.UUID `json:"uploadedByID" gorm:"type:uuid;not null"`
	FileName     string    `json:"fileName" gorm:"type:varchar(255);not null"`
	Description  *string   `json:"description,omitempty" gorm:"type:text"`

	Group      Group `json:"group,omitempty" gorm:"foreignKey:GroupID"`
	UploadedBy User  `json:"uploadedBy,omitempty" gorm:"foreignKey:UploadedByID"`
}

func (Submission) TableName() string {
	return "submissions"
}
