package models

type UserRole string

const (
	UserRoleStudent   UserRole = "student"
	UserRoleProfessor UserRole = "professor"
	UserRoleAdmin     UserRole = "admin"
)

type User struct {
	BaseModel
	Email        string   `json:"email" gorm:"type:varchar(255);uniqueIndex;not null"`
	PasswordHash string   `json:"-" gorm:"type:text;not null"`
	FirstName    string   `json:"firstName" gorm:"type:varchar(100);not null"`
	LastName     string   `json:"lastName" gorm:"type:varchar(100);not null"`
	Role         UserRole `json:"role" gorm:"type:varchar(20);not null;default:'student'"`

	// Student-only fields. Carnet is the institutional student number and is
	// the tie-break key for leader reassignment.
	Carnet  *int    `json:"carnet,omitempty" gorm:"uniqueIndex"`
	Section *string `json:"section,omitempty" gorm:"type:varchar(20)"`

	Memberships      []Membership      `json:"-" gorm:"foreignKey:StudentID"`
	TutorAssignments []TutorAssignment `json:"-" gorm:"foreignKey:ProfessorID"`
	SentRequests     []Request         `json:"-" gorm:"foreignKey:SenderID"`
}

func (u *User) IsStaff() bool {
	return u.Role == UserRoleProfessor || u.Role == UserRoleAdmin
}
