package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/serviciocomunal/backend/internal/models"
)

// GroupService owns the membership and leadership rules: the capacity limit,
// the exactly-one-or-zero leader invariant, and leader reassignment when the
// leader is removed. Every mutating operation runs its pre-condition checks
// and writes inside a single transaction; the guarded member_count update on
// the group row serializes competing transitions for the same group.
type GroupService struct {
	DB            *gorm.DB
	Notifications *NotificationService
}

func NewGroupService(db *gorm.DB, notifications *NotificationService) *GroupService {
	return &GroupService{DB: db, Notifications: notifications}
}

func (s *GroupService) CreateGroup(actor *models.User, number int, projectName *string) (*models.Group, error) {
	if !actor.IsStaff() {
		return nil, ErrForbidden
	}
	if number <= 0 {
		return nil, ErrInvalidTarget
	}

	group := models.Group{Number: number, ProjectName: projectName}
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		var existing models.Group
		if err := tx.First(&existing, "number = ?", number).Error; err == nil {
			return ErrGroupExists
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		return tx.Create(&group).Error
	})
	if err != nil {
		return nil, wrapStoreErr(err)
	}
	return &group, nil
}

// DeleteGroup is blocked while memberships exist. Pending requests scoped to
// the group become unservable and are rejected with a system note.
func (s *GroupService) DeleteGroup(actor *models.User, groupID uuid.UUID) error {
	if !actor.IsStaff() {
		return ErrForbidden
	}

	return wrapStoreErr(s.DB.Transaction(func(tx *gorm.DB) error {
		group, err := findGroup(tx, groupID)
		if err != nil {
			return err
		}
		if group.MemberCount > 0 {
			return ErrGroupNotEmpty
		}

		var stale []models.Request
		if err := tx.Where("group_id = ? AND status = ?", group.ID, models.RequestStatusPending).
			Find(&stale).Error; err != nil {
			return err
		}
		for i := range stale {
			if err := resolveRequest(tx, &stale[i], models.RequestStatusRejected, "group was dissolved"); err != nil {
				return err
			}
			if err := s.Notifications.Emit(tx, NotificationInput{
				RecipientID: stale[i].SenderID,
				ActorID:     &actor.ID,
				Type:        models.NotificationTypeRequestRejected,
				Message:     fmt.Sprintf("Your request for group %d was rejected: the group was dissolved.", group.Number),
			}); err != nil {
				return err
			}
		}

		if err := tx.Where("group_id = ?", group.ID).Delete(&models.TutorAssignment{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Group{}, "id = ?", group.ID).Error
	}))
}

// AddMember enrolls a student. The first member of an empty group becomes its
// leader. Capacity is enforced by a guarded update on member_count so that
// two concurrent adds can never push a group past the limit.
func (s *GroupService) AddMember(actor *models.User, groupID, studentID uuid.UUID) error {
	return wrapStoreErr(s.DB.Transaction(func(tx *gorm.DB) error {
		return s.addMember(tx, actor, groupID, studentID)
	}))
}

func (s *GroupService) addMember(tx *gorm.DB, actor *models.User, groupID, studentID uuid.UUID) error {
	group, err := findGroup(tx, groupID)
	if err != nil {
		return err
	}
	student, err := findUser(tx, studentID)
	if err != nil {
		return err
	}
	if student.Role != models.UserRoleStudent {
		return ErrInvalidTarget
	}

	if actor.ID != student.ID {
		ok, err := canManageGroup(tx, actor, group)
		if err != nil {
			return err
		}
		if !ok {
			return ErrForbidden
		}
	}

	var count int64
	if err := tx.Model(&models.Membership{}).
		Where("student_id = ? AND group_id = ?", student.ID, group.ID).
		Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return ErrAlreadyMember
	}
	if err := tx.Model(&models.Membership{}).
		Where("student_id = ?", student.ID).
		Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return ErrAlreadyInGroup
	}

	res := tx.Model(&models.Group{}).
		Where("id = ? AND member_count < ?", group.ID, models.MaxGroupMembers).
		UpdateColumn("member_count", gorm.Expr("member_count + 1"))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrGroupFull
	}

	var updated models.Group
	if err := tx.First(&updated, "id = ?", group.ID).Error; err != nil {
		return err
	}

	membership := models.Membership{
		StudentID: student.ID,
		GroupID:   group.ID,
		IsLeader:  updated.MemberCount == 1,
	}
	if err := tx.Create(&membership).Error; err != nil {
		return err
	}
	if membership.IsLeader {
		if err := tx.Model(&models.Group{}).
			Where("id = ?", group.ID).
			Update("leader_id", student.ID).Error; err != nil {
			return err
		}
	}

	var tutors []models.TutorAssignment
	if err := tx.Where("group_id = ?", group.ID).Find(&tutors).Error; err != nil {
		return err
	}
	for i := range tutors {
		if err := s.Notifications.Emit(tx, NotificationInput{
			RecipientID: tutors[i].ProfessorID,
			ActorID:     &actor.ID,
			Type:        models.NotificationTypeMemberJoined,
			Message:     fmt.Sprintf("%s %s joined group %d.", student.FirstName, student.LastName, group.Number),
			GroupID:     &group.ID,
		}); err != nil {
			return err
		}
	}

	return nil
}

// RemoveMember deletes the membership. Removing the leader reassigns
// leadership to the remaining member with the lowest carnet, or clears it
// when the group empties.
func (s *GroupService) RemoveMember(actor *models.User, groupID, studentID uuid.UUID) error {
	return wrapStoreErr(s.DB.Transaction(func(tx *gorm.DB) error {
		group, err := findGroup(tx, groupID)
		if err != nil {
			return err
		}

		if actor.ID != studentID {
			ok, err := canManageGroup(tx, actor, group)
			if err != nil {
				return err
			}
			if !ok {
				return ErrForbidden
			}
		}

		var membership models.Membership
		if err := tx.First(&membership, "group_id = ? AND student_id = ?", group.ID, studentID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotAMember
			}
			return err
		}

		// The guarded delete is the race arbiter: of two concurrent removals
		// only one sees an affected row, the other reports NotAMember.
		res := tx.Where("group_id = ? AND student_id = ?", group.ID, studentID).Delete(&models.Membership{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotAMember
		}
		if err := tx.Model(&models.Group{}).
			Where("id = ? AND member_count > 0", group.ID).
			UpdateColumn("member_count", gorm.Expr("member_count - 1")).Error; err != nil {
			return err
		}

		if membership.IsLeader {
			if err := s.reassignLeader(tx, actor, group); err != nil {
				return err
			}
		}

		if actor.ID != studentID {
			if err := s.Notifications.Emit(tx, NotificationInput{
				RecipientID: studentID,
				ActorID:     &actor.ID,
				Type:        models.NotificationTypeMemberRemoved,
				Message:     fmt.Sprintf("You were removed from group %d.", group.Number),
				GroupID:     &group.ID,
			}); err != nil {
				return err
			}
		}

		return nil
	}))
}

// reassignLeader promotes the remaining member with the lowest carnet, or
// clears leadership when nobody is left.
func (s *GroupService) reassignLeader(tx *gorm.DB, actor *models.User, group *models.Group) error {
	var successor models.Membership
	err := tx.Joins("JOIN users ON users.id = memberships.student_id").
		Where("memberships.group_id = ?", group.ID).
		Order("users.carnet ASC").
		First(&successor).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return tx.Model(&models.Group{}).
			Where("id = ?", group.ID).
			Update("leader_id", nil).Error
	}
	if err != nil {
		return err
	}

	if err := tx.Model(&models.Membership{}).
		Where("id = ?", successor.ID).
		Update("is_leader", true).Error; err != nil {
		return err
	}
	if err := tx.Model(&models.Group{}).
		Where("id = ?", group.ID).
		Update("leader_id", successor.StudentID).Error; err != nil {
		return err
	}

	return s.Notifications.Emit(tx, NotificationInput{
		RecipientID: successor.StudentID,
		ActorID:     &actor.ID,
		Type:        models.NotificationTypeLeaderAssigned,
		Message:     fmt.Sprintf("You are now the leader of group %d.", group.Number),
		GroupID:     &group.ID,
	})
}

// ChangeLeader atomically demotes the current leader and promotes the target.
func (s *GroupService) ChangeLeader(actor *models.User, groupID, newLeaderID uuid.UUID) error {
	return wrapStoreErr(s.DB.Transaction(func(tx *gorm.DB) error {
		group, err := findGroup(tx, groupID)
		if err != nil {
			return err
		}

		ok, err := canManageGroup(tx, actor, group)
		if err != nil {
			return err
		}
		if !ok {
			return ErrForbidden
		}

		var target models.Membership
		if err := tx.First(&target, "group_id = ? AND student_id = ?", group.ID, newLeaderID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotAMember
			}
			return err
		}
		if target.IsLeader {
			return ErrAlreadyLeader
		}

		previousLeaderID := group.LeaderID
		if err := tx.Model(&models.Membership{}).
			Where("group_id = ? AND is_leader = ?", group.ID, true).
			Update("is_leader", false).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.Membership{}).
			Where("id = ?", target.ID).
			Update("is_leader", true).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.Group{}).
			Where("id = ?", group.ID).
			Update("leader_id", newLeaderID).Error; err != nil {
			return err
		}

		if previousLeaderID != nil && *previousLeaderID != newLeaderID {
			if err := s.Notifications.Emit(tx, NotificationInput{
				RecipientID: *previousLeaderID,
				ActorID:     &actor.ID,
				Type:        models.NotificationTypeLeaderChanged,
				Message:     fmt.Sprintf("You are no longer the leader of group %d.", group.Number),
				GroupID:     &group.ID,
			}); err != nil {
				return err
			}
		}
		return s.Notifications.Emit(tx, NotificationInput{
			RecipientID: newLeaderID,
			ActorID:     &actor.ID,
			Type:        models.NotificationTypeLeaderAssigned,
			Message:     fmt.Sprintf("You are now the leader of group %d.", group.Number),
			GroupID:     &group.ID,
		})
	}))
}

func (s *GroupService) AssignTutor(actor *models.User, groupID, professorID uuid.UUID) error {
	return wrapStoreErr(s.DB.Transaction(func(tx *gorm.DB) error {
		if !actor.IsStaff() {
			return ErrForbidden
		}
		group, err := findGroup(tx, groupID)
		if err != nil {
			return err
		}
		professor, err := findUser(tx, professorID)
		if err != nil {
			return err
		}
		if professor.Role != models.UserRoleProfessor {
			return ErrInvalidTarget
		}

		var count int64
		if err := tx.Model(&models.TutorAssignment{}).
			Where("group_id = ? AND professor_id = ?", group.ID, professor.ID).
			Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return ErrAlreadyAssigned
		}

		assignment := models.TutorAssignment{GroupID: group.ID, ProfessorID: professor.ID}
		if err := tx.Create(&assignment).Error; err != nil {
			return err
		}

		if actor.ID == professor.ID {
			return nil
		}
		return s.Notifications.Emit(tx, NotificationInput{
			RecipientID: professor.ID,
			ActorID:     &actor.ID,
			Type:        models.NotificationTypeTutorAssigned,
			Message:     fmt.Sprintf("You were assigned as tutor of group %d.", group.Number),
			GroupID:     &group.ID,
		})
	}))
}

func (s *GroupService) RemoveTutor(actor *models.User, groupID, professorID uuid.UUID) error {
	return wrapStoreErr(s.DB.Transaction(func(tx *gorm.DB) error {
		if !actor.IsStaff() {
			return ErrForbidden
		}
		group, err := findGroup(tx, groupID)
		if err != nil {
			return err
		}

		res := tx.Where("group_id = ? AND professor_id = ?", group.ID, professorID).
			Delete(&models.TutorAssignment{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotAssigned
		}
		return nil
	}))
}

func findGroup(tx *gorm.DB, groupID uuid.UUID) (*models.Group, error) {
	var group models.Group
	if err := tx.First(&group, "id = ?", groupID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &group, nil
}

func findUser(tx *gorm.DB, userID uuid.UUID) (*models.User, error) {
	var user models.User
	if err := tx.First(&user, "id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &user, nil
}

// canManageGroup reports whether the actor is the group's current leader, a
// tutor of the group, or an administrator.
func canManageGroup(tx *gorm.DB, actor *models.User, group *models.Group) (bool, error) {
	if actor.Role == models.UserRoleAdmin {
		return true, nil
	}
	if group.LeaderID != nil && *group.LeaderID == actor.ID {
		return true, nil
	}
	if actor.Role == models.UserRoleProfessor {
		var count int64
		if err := tx.Model(&models.TutorAssignment{}).
			Where("group_id = ? AND professor_id = ?", group.ID, actor.ID).
			Count(&count).Error; err != nil {
			return false, err
		}
		return count > 0, nil
	}
	return false, nil
}

// resolveRequest is the single-shot pending->terminal transition shared by the
// request workflow and group dissolution. The status guard makes it atomic: a
// request that already left pending reports AlreadyResolved.
func resolveRequest(tx *gorm.DB, request *models.Request, status models.RequestStatus, note string) error {
	now := time.Now().UTC()
	updates := map[string]interface{}{
		"status":      status,
		"resolved_at": now,
	}
	if note != "" {
		updates["resolution_note"] = note
	}

	res := tx.Model(&models.Request{}).
		Where("id = ? AND status = ?", request.ID, models.RequestStatusPending).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrAlreadyResolved
	}

	request.Status = status
	request.ResolvedAt = &now
	if note != "" {
		request.ResolutionNote = &note
	}
	return nil
}
