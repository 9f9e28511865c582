package models

import "github.com/google/uuid"

type TutorAssignment struct {
	BaseModel
	GroupID     uuid.UUID `json:"groupID" gorm:"type:uuid;not null;index;uniqueIndex:idx_group_professor"`
	ProfessorID uuid.UUID `json:"professorID" gorm:"type:uuid;not null;index;uniqueIndex:idx_group_professor"`
	Group       Group     `json:"group,omitempty" gorm:"foreignKey:GroupID"`
	Professor   User      `json:"professor,omitempty" gorm:"foreignKey:ProfessorID"`
}

func (TutorAssignment) TableName() string {
	return "tutor_assignments"
}
