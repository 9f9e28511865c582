package models

import "github.com/google/uuid"

// MaxGroupMembers caps community-service groups at four students.
const MaxGroupMembers = 4

type Group struct {
	BaseModel
	Number      int     `json:"number" gorm:"uniqueIndex;not null"`
	ProjectName *string `json:"projectName,omitempty" gorm:"type:varchar(200)"`

	// MemberCount mirrors the number of membership rows and is the
	// serialization point for capacity checks.
	MemberCount int        `json:"memberCount" gorm:"not null;default:0"`
	LeaderID    *uuid.UUID `json:"leaderID,omitempty" gorm:"type:uuid"`
	Leader      *User      `json:"leader,omitempty" gorm:"foreignKey:LeaderID"`

	Memberships      []Membership      `json:"memberships,omitempty" gorm:"foreignKey:GroupID"`
	TutorAssignments []TutorAssignment `json:"tutorAssignments,omitempty" gorm:"foreignKey:GroupID"`
	Submissions      []Submission      `json:"-" gorm:"foreignKey:GroupID"`
}

func (Group) TableName() string {
	return "groups"
}
