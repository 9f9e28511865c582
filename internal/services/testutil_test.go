package services

import (
	"database/sql/driver"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	gosqlite "github.com/glebarez/go-sqlite"
	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/serviciocomunal/backend/internal/models"
	"github.com/serviciocomunal/backend/pkg/utils"
)

func defaultPagination() utils.PaginationParams {
	return utils.PaginationParams{Page: 1, Limit: 20, Offset: 0}
}

var serviceTestSetupOnce sync.Once

func setupServiceTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	serviceTestSetupOnce.Do(func() {
		gosqlite.MustRegisterScalarFunction("NOW", 0, func(ctx *gosqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
			return time.Now().UTC(), nil
		})
	})

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed opening in-memory sqlite database: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed getting sql.DB from gorm: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	t.Cleanup(func() {
		_ = sqlDB.Close()
	})

	err = db.AutoMigrate(
		&models.User{},
		&models.Group{},
		&models.Membership{},
		&models.TutorAssignment{},
		&models.Request{},
		&models.Notification{},
		&models.Submission{},
	)
	if err != nil {
		t.Fatalf("failed automigrating models: %v", err)
	}

	return db
}

func newTestServices(t *testing.T) (*gorm.DB, *GroupService, *RequestService, *NotificationService) {
	t.Helper()
	db := setupServiceTestDB(t)
	notifications := NewNotificationService(db)
	groups := NewGroupService(db, notifications)
	requests := NewRequestService(db, groups, notifications)
	return db, groups, requests, notifications
}

var carnetSeq int64 = 1000

func nextCarnet() int {
	return int(atomic.AddInt64(&carnetSeq, 1))
}

func createStudent(t *testing.T, db *gorm.DB, name string, carnet int) *models.User {
	t.Helper()
	section := "A"
	user := &models.User{
		Email:        fmt.Sprintf("%s-%s@test.com", name, uuid.NewString()[:8]),
		PasswordHash: "hash",
		FirstName:    name,
		LastName:     "Student",
		Role:         models.UserRoleStudent,
		Carnet:       &carnet,
		Section:      &section,
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("failed creating student: %v", err)
	}
	return user
}

func createStaff(t *testing.T, db *gorm.DB, name string, role models.UserRole) *models.User {
	t.Helper()
	user := &models.User{
		Email:        fmt.Sprintf("%s-%s@test.com", name, uuid.NewString()[:8]),
		PasswordHash: "hash",
		FirstName:    name,
		LastName:     "Staff",
		Role:         role,
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("failed creating staff user: %v", err)
	}
	return user
}

func createGroup(t *testing.T, db *gorm.DB, number int) *models.Group {
	t.Helper()
	group := &models.Group{Number: number}
	if err := db.Create(group).Error; err != nil {
		t.Fatalf("failed creating group: %v", err)
	}
	return group
}

func mustAddMember(t *testing.T, groups *GroupService, actor *models.User, groupID, studentID uuid.UUID) {
	t.Helper()
	if err := groups.AddMember(actor, groupID, studentID); err != nil {
		t.Fatalf("failed adding member: %v", err)
	}
}

func reloadGroup(t *testing.T, db *gorm.DB, groupID uuid.UUID) *models.Group {
	t.Helper()
	var group models.Group
	if err := db.First(&group, "id = ?", groupID).Error; err != nil {
		t.Fatalf("failed reloading group: %v", err)
	}
	return &group
}

func membershipCount(t *testing.T, db *gorm.DB, groupID uuid.UUID) int64 {
	t.Helper()
	var count int64
	if err := db.Model(&models.Membership{}).Where("group_id = ?", groupID).Count(&count).Error; err != nil {
		t.Fatalf("failed counting memberships: %v", err)
	}
	return count
}

func leaderCount(t *testing.T, db *gorm.DB, groupID uuid.UUID) int64 {
	t.Helper()
	var count int64
	if err := db.Model(&models.Membership{}).
		Where("group_id = ? AND is_leader = ?", groupID, true).
		Count(&count).Error; err != nil {
		t.Fatalf("failed counting leaders: %v", err)
	}
	return count
}

func reloadRequest(t *testing.T, db *gorm.DB, requestID uuid.UUID) *models.Request {
	t.Helper()
	var request models.Request
	if err := db.First(&request, "id = ?", requestID).Error; err != nil {
		t.Fatalf("failed reloading request: %v", err)
	}
	return &request
}

func notificationCount(t *testing.T, db *gorm.DB, userID uuid.UUID, notificationType string) int64 {
	t.Helper()
	var count int64
	if err := db.Model(&models.Notification{}).
		Where("user_id = ? AND type = ?", userID, notificationType).
		Count(&count).Error; err != nil {
		t.Fatalf("failed counting notifications: %v", err)
	}
	return count
}
