package services

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/serviciocomunal/backend/internal/models"
	"github.com/serviciocomunal/backend/pkg/utils"
)

type Decision string

const (
	DecisionAccept Decision = "accept"
	DecisionReject Decision = "reject"
)

// RequestService owns the join/invitation lifecycle. Accepted joins delegate
// to the group engine inside the same transaction, so a request can never end
// up accepted without its membership or vice versa.
type RequestService struct {
	DB            *gorm.DB
	Groups        *GroupService
	Notifications *NotificationService
}

func NewRequestService(db *gorm.DB, groups *GroupService, notifications *NotificationService) *RequestService {
	return &RequestService{DB: db, Groups: groups, Notifications: notifications}
}

type CreateRequestInput struct {
	RecipientID uuid.UUID
	Type        models.RequestType
	GroupID     *uuid.UUID
	Message     *string
}

// Create records a pending request. Capacity is deliberately not checked
// here; it is enforced at acceptance time.
func (s *RequestService) Create(actor *models.User, in CreateRequestInput) (*models.Request, error) {
	if actor.Role != models.UserRoleStudent {
		return nil, ErrForbidden
	}
	if in.Type != models.RequestTypeJoin && in.Type != models.RequestTypeInvitation {
		return nil, ErrInvalidTarget
	}
	if in.RecipientID == actor.ID {
		return nil, ErrInvalidTarget
	}

	request := models.Request{
		SenderID:    actor.ID,
		RecipientID: in.RecipientID,
		GroupID:     in.GroupID,
		Type:        in.Type,
		Message:     in.Message,
		Status:      models.RequestStatusPending,
	}

	err := s.DB.Transaction(func(tx *gorm.DB) error {
		recipient, err := findUser(tx, in.RecipientID)
		if err != nil {
			return err
		}
		if recipient.Role != models.UserRoleStudent {
			return ErrInvalidTarget
		}

		if in.GroupID != nil {
			group, err := findGroup(tx, *in.GroupID)
			if err != nil {
				return err
			}
			switch in.Type {
			case models.RequestTypeJoin:
				// A join request goes to the group's leader.
				if group.LeaderID == nil || *group.LeaderID != recipient.ID {
					return ErrInvalidTarget
				}
			case models.RequestTypeInvitation:
				// Only a current member may invite into the group.
				var count int64
				if err := tx.Model(&models.Membership{}).
					Where("group_id = ? AND student_id = ?", group.ID, actor.ID).
					Count(&count).Error; err != nil {
					return err
				}
				if count == 0 {
					return ErrInvalidTarget
				}
			}
		}

		dup := tx.Model(&models.Request{}).
			Where("sender_id = ? AND recipient_id = ? AND type = ? AND status = ?",
				actor.ID, in.RecipientID, in.Type, models.RequestStatusPending)
		if in.GroupID != nil {
			dup = dup.Where("group_id = ?", *in.GroupID)
		} else {
			dup = dup.Where("group_id IS NULL")
		}
		var count int64
		if err := dup.Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return ErrDuplicateRequest
		}

		// A partial unique index on the pending tuple backs this up when two
		// creations race past the count under concurrent transactions.
		if err := tx.Create(&request).Error; err != nil {
			if isUniqueViolation(err) {
				return ErrDuplicateRequest
			}
			return err
		}

		return s.Notifications.Emit(tx, NotificationInput{
			RecipientID: in.RecipientID,
			ActorID:     &actor.ID,
			Type:        models.NotificationTypeRequestReceived,
			Message:     requestReceivedMessage(actor, &request),
			GroupID:     in.GroupID,
		})
	})
	if err != nil {
		return nil, wrapStoreErr(err)
	}
	return &request, nil
}

// Respond resolves a pending request. Accepting a join or invitation adds the
// student through the group engine in the same transaction; if that fails
// because the seat is gone, the request is rejected with a system note and
// the underlying error is surfaced to the responder.
func (s *RequestService) Respond(actor *models.User, requestID uuid.UUID, decision Decision) error {
	if decision != DecisionAccept && decision != DecisionReject {
		return ErrInvalidTarget
	}

	// An automatic rejection must commit (the request really moved to the
	// rejected state) while still surfacing the membership failure, so it is
	// carried out of the transaction instead of aborting it.
	var autoRejection error
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		var request models.Request
		if err := tx.First(&request, "id = ?", requestID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}
		if !request.IsPending() {
			return ErrAlreadyResolved
		}

		if err := s.authorizeResponder(tx, actor, &request); err != nil {
			return err
		}

		if decision == DecisionReject {
			if err := resolveRequest(tx, &request, models.RequestStatusRejected, ""); err != nil {
				return err
			}
			return s.Notifications.Emit(tx, NotificationInput{
				RecipientID: request.SenderID,
				ActorID:     &actor.ID,
				Type:        models.NotificationTypeRequestRejected,
				Message:     requestOutcomeMessage(&request, false),
				GroupID:     request.GroupID,
			})
		}

		if err := s.accept(tx, actor, &request); err != nil {
			var rejected *AutoRejection
			if errors.As(err, &rejected) {
				autoRejection = err
				return nil
			}
			return err
		}
		return nil
	})
	if err != nil {
		return wrapStoreErr(err)
	}
	return autoRejection
}

func (s *RequestService) accept(tx *gorm.DB, actor *models.User, request *models.Request) error {
	if request.GroupID == nil {
		// Free-standing requests carry no group transition; accepting them
		// just closes the conversation.
		if err := resolveRequest(tx, request, models.RequestStatusAccepted, ""); err != nil {
			return err
		}
		return s.Notifications.Emit(tx, NotificationInput{
			RecipientID: request.SenderID,
			ActorID:     &actor.ID,
			Type:        models.NotificationTypeRequestAccepted,
			Message:     requestOutcomeMessage(request, true),
		})
	}

	joiningID := request.SenderID
	if request.Type == models.RequestTypeInvitation {
		joiningID = request.RecipientID
	}

	if err := s.Groups.addMember(tx, actor, *request.GroupID, joiningID); err != nil {
		if errors.Is(err, ErrGroupFull) || errors.Is(err, ErrAlreadyMember) || errors.Is(err, ErrAlreadyInGroup) {
			// The seat is gone; the request must not stay pending.
			if rerr := resolveRequest(tx, request, models.RequestStatusRejected, err.Error()); rerr != nil {
				return rerr
			}
			if nerr := s.Notifications.Emit(tx, NotificationInput{
				RecipientID: request.SenderID,
				ActorID:     &actor.ID,
				Type:        models.NotificationTypeRequestRejected,
				Message:     requestOutcomeMessage(request, false),
				GroupID:     request.GroupID,
			}); nerr != nil {
				return nerr
			}
			return newAutoRejection(err)
		}
		return err
	}

	if err := resolveRequest(tx, request, models.RequestStatusAccepted, ""); err != nil {
		return err
	}

	// The student now holds their one allowed membership; every other pending
	// request involving them for a seat is unservable.
	if err := s.closeStaleRequests(tx, actor, joiningID, request.ID); err != nil {
		return err
	}

	return s.Notifications.Emit(tx, NotificationInput{
		RecipientID: request.SenderID,
		ActorID:     &actor.ID,
		Type:        models.NotificationTypeRequestAccepted,
		Message:     requestOutcomeMessage(request, true),
		GroupID:     request.GroupID,
	})
}

// closeStaleRequests rejects other pending seat requests sent or received by
// the student who just joined a group.
func (s *RequestService) closeStaleRequests(tx *gorm.DB, actor *models.User, studentID, acceptedID uuid.UUID) error {
	var stale []models.Request
	if err := tx.Where("status = ? AND id <> ? AND (sender_id = ? OR recipient_id = ?)",
		models.RequestStatusPending, acceptedID, studentID, studentID).
		Where("group_id IS NOT NULL").
		Find(&stale).Error; err != nil {
		return err
	}

	for i := range stale {
		err := resolveRequest(tx, &stale[i], models.RequestStatusRejected, "student already joined a group")
		if errors.Is(err, ErrAlreadyResolved) {
			continue
		}
		if err != nil {
			return err
		}
		if err := s.Notifications.Emit(tx, NotificationInput{
			RecipientID: stale[i].SenderID,
			ActorID:     &actor.ID,
			Type:        models.NotificationTypeRequestRejected,
			Message:     requestOutcomeMessage(&stale[i], false),
			GroupID:     stale[i].GroupID,
		}); err != nil {
			return err
		}
	}
	return nil
}

// Cancel retracts a pending request. Sender only; the second cancellation of
// the same request observes AlreadyResolved.
func (s *RequestService) Cancel(actor *models.User, requestID uuid.UUID) error {
	return wrapStoreErr(s.DB.Transaction(func(tx *gorm.DB) error {
		var request models.Request
		if err := tx.First(&request, "id = ?", requestID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}
		if request.SenderID != actor.ID {
			return ErrForbidden
		}
		return resolveRequest(tx, &request, models.RequestStatusCancelled, "")
	}))
}

// authorizeResponder: the recipient may always respond. For group-scoped join
// requests the group's current leader may also respond, covering the case
// where leadership moved after the request was created.
func (s *RequestService) authorizeResponder(tx *gorm.DB, actor *models.User, request *models.Request) error {
	if actor.ID == request.RecipientID {
		return nil
	}
	if request.Type == models.RequestTypeJoin && request.GroupID != nil {
		group, err := findGroup(tx, *request.GroupID)
		if err != nil {
			return err
		}
		if group.LeaderID != nil && *group.LeaderID == actor.ID {
			return nil
		}
	}
	return ErrForbidden
}

func (s *RequestService) ListInbox(actor *models.User, p utils.PaginationParams) ([]models.Request, int64, error) {
	return s.list(actor, "recipient_id", p)
}

func (s *RequestService) ListOutbox(actor *models.User, p utils.PaginationParams) ([]models.Request, int64, error) {
	return s.list(actor, "sender_id", p)
}

func (s *RequestService) list(actor *models.User, column string, p utils.PaginationParams) ([]models.Request, int64, error) {
	var total int64
	if err := s.DB.Model(&models.Request{}).
		Where(column+" = ?", actor.ID).
		Count(&total).Error; err != nil {
		return nil, 0, wrapStoreErr(err)
	}

	var requests []models.Request
	if err := utils.ApplyPagination(
		s.DB.Preload("Sender").Preload("Recipient").Preload("Group").
			Where(column+" = ?", actor.ID).
			Order("created_at DESC"),
		p,
	).Find(&requests).Error; err != nil {
		return nil, 0, wrapStoreErr(err)
	}
	return requests, total, nil
}

// AutoRejection wraps the membership error that forced a request into the
// rejected state, so handlers can report both outcomes to the responder.
type AutoRejection struct {
	Cause error
}

func newAutoRejection(cause error) *AutoRejection {
	return &AutoRejection{Cause: cause}
}

func (e *AutoRejection) Error() string {
	return fmt.Sprintf("request rejected automatically: %v", e.Cause)
}

func (e *AutoRejection) Unwrap() error {
	return e.Cause
}

func requestReceivedMessage(sender *models.User, request *models.Request) string {
	switch request.Type {
	case models.RequestTypeInvitation:
		return fmt.Sprintf("%s %s invited you to their group.", sender.FirstName, sender.LastName)
	default:
		return fmt.Sprintf("%s %s asked to join your group.", sender.FirstName, sender.LastName)
	}
}

func requestOutcomeMessage(request *models.Request, accepted bool) string {
	kind := "join request"
	if request.Type == models.RequestTypeInvitation {
		kind = "invitation"
	}
	if accepted {
		return fmt.Sprintf("Your %s was accepted.", kind)
	}
	if request.ResolutionNote != nil {
		return fmt.Sprintf("Your %s was rejected: %s.", kind, *request.ResolutionNote)
	}
	return fmt.Sprintf("Your %s was rejected.", kind)
}
