package models

import "github.com/google/uuid"

type Membership struct {
	BaseModel
	StudentID uuid.UUID `json:"studentID" gorm:"type:uuid;not null;index;uniqueIndex:idx_student_group"`
	GroupID   uuid.UUID `json:"groupID" gorm:"type:uuid;not null;index;uniqueIndex:idx_student_group"`
	IsLeader  bool      `json:"isLeader" gorm:"not null;default:false"`
	Student   User      `json:"student,omitempty" gorm:"foreignKey:StudentID"`
	Group     Group     `json:"group,omitempty" gorm:"foreignKey:GroupID"`
}

func (Membership) TableName() string {
	return "memberships"
}
