// Package ledger implements the points economy: users earn points by
// uploading photos and spend them on map features.
//
// Every balance change is a single storage call (Store.ApplyEntry) that
// updates the balance and appends the history row atomically.  A debit is a
// conditional decrement, so two concurrent debits can never overdraw.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/parksavvy/internal/logger"
	"github.com/iliyamo/parksavvy/internal/model"
	"github.com/iliyamo/parksavvy/internal/repository"
)

var (
	ErrUnknownAction      = errors.New("unknown action")
	ErrInvalidAmount      = errors.New("amount must be positive")
	ErrInvalidEntryType   = errors.New("entry type must be upload or use")
	ErrInsufficientPoints = repository.ErrInsufficientPoints
	ErrUserNotFound       = repository.ErrUserNotFound
	ErrAlreadyApplied     = repository.ErrDuplicateRef
	ErrLedgerUpdateFailed = errors.New("ledger update failed")
)

// Store is the persistence the ledger needs.  *repository.PointsRepo
// implements it.
type Store interface {
	UserExists(ctx context.Context, userID uint64) (bool, error)
	Balance(ctx context.Context, userID uint64) (int, error)
	History(ctx context.Context, userID uint64, limit int) ([]model.PointsHistoryEntry, error)
	ApplyEntry(ctx context.Context, e repository.LedgerEntry) (int, error)
}

// Event describes an applied entry.  It is handed to the Notifier after
// the write has committed.
type Event struct {
	EventID     string    `json:"event_id"`
	UserID      uint64    `json:"user_id"`
	Type        string    `json:"type"`
	Change      int       `json:"change"`
	Description string    `json:"description"`
	Balance     int       `json:"balance"`
	Ref         string    `json:"ref,omitempty"`
	OccurredAt  time.Time `json:"occurred_at"`
}

// Notifier receives applied entries.  Delivery is best effort: errors are
// logged, never returned to the caller of the ledger.
type Notifier interface {
	LedgerEntryApplied(ctx context.Context, ev Event) error
}

// Balance is the response of GetBalance.
type Balance struct {
	CurrentPoints int                        `json:"currentPoints"`
	History       []model.PointsHistoryEntry `json:"history"`
}

// DebitResult is the response of a successful Debit.
type DebitResult struct {
	Success       bool `json:"success"`
	UpdatedPoints int  `json:"updatedPoints"`
}

// Service is safe for concurrent use.
type Service struct {
	store        Store
	notifier     Notifier
	log          *logrus.Logger
	uploadReward int

	notifyTimeout time.Duration
	wg            sync.WaitGroup
}

// New builds a Service.  notifier and log may be nil.  uploadReward below 1
// defaults to 50.
func New(store Store, notifier Notifier, log *logrus.Logger, uploadReward int) *Service {
	if log == nil {
		log = logger.Discard()
	}
	if uploadReward < 1 {
		uploadReward = 50
	}
	return &Service{
		store:         store,
		notifier:      notifier,
		log:           log,
		uploadReward:  uploadReward,
		notifyTimeout: 5 * time.Second,
	}
}

// UploadReward is the number of points credited per completed upload.
func (s *Service) UploadReward() int { return s.uploadReward }

// GetBalance returns the current points and the full history, newest first.
// A user without a balance row has zero points.
func (s *Service) GetBalance(ctx context.Context, userID uint64) (Balance, error) {
	ok, err := s.store.UserExists(ctx, userID)
	if err != nil {
		return Balance{}, fmt.Errorf("lookup user: %w", err)
	}
	if !ok {
		return Balance{}, ErrUserNotFound
	}
	points, err := s.store.Balance(ctx, userID)
	if err != nil {
		return Balance{}, fmt.Errorf("read balance: %w", err)
	}
	hist, err := s.store.History(ctx, userID, 0)
	if err != nil {
		return Balance{}, fmt.Errorf("read history: %w", err)
	}
	if hist == nil {
		hist = []model.PointsHistoryEntry{}
	}
	return Balance{CurrentPoints: points, History: hist}, nil
}

// Debit charges the cost of action.  An unknown action is rejected before
// storage is touched.  An insufficient balance leaves no trace.
func (s *Service) Debit(ctx context.Context, userID uint64, action string) (DebitResult, error) {
	a, ok := LookupAction(strings.TrimSpace(action))
	if !ok {
		return DebitResult{}, ErrUnknownAction
	}
	points, err := s.apply(ctx, repository.LedgerEntry{
		UserID:      userID,
		Type:        model.PointsTypeUse,
		Change:      -a.Cost,
		Description: a.Description,
	})
	if err != nil {
		s.log.WithFields(logrus.Fields{"user_id": userID, "action": a.Name}).WithError(err).Info("debit rejected")
		return DebitResult{}, err
	}
	s.log.WithFields(logrus.Fields{"user_id": userID, "action": a.Name, "points": points}).Info("debit applied")
	return DebitResult{Success: true, UpdatedPoints: points}, nil
}

// Credit adds amount points as an upload (the default) or use entry.  There
// is no upper bound.  ref, when non-empty, makes the credit idempotent: a
// second credit with the same ref returns ErrAlreadyApplied and changes
// nothing.
func (s *Service) Credit(ctx context.Context, userID uint64, entryType string, amount int, description, ref string) (int, error) {
	if amount <= 0 {
		return 0, ErrInvalidAmount
	}
	switch entryType {
	case "":
		entryType = model.PointsTypeUpload
	case model.PointsTypeUpload, model.PointsTypeUse:
	default:
		return 0, ErrInvalidEntryType
	}
	points, err := s.apply(ctx, repository.LedgerEntry{
		UserID:      userID,
		Type:        entryType,
		Change:      amount,
		Description: description,
		Ref:         ref,
	})
	if err != nil {
		return 0, err
	}
	s.log.WithFields(logrus.Fields{"user_id": userID, "amount": amount, "ref": ref, "points": points}).Info("credit applied")
	return points, nil
}

// RewardUpload credits the upload reward once per ref (the upload event id).
func (s *Service) RewardUpload(ctx context.Context, userID uint64, ref string) (int, error) {
	return s.Credit(ctx, userID, model.PointsTypeUpload, s.uploadReward, UploadDescription, ref)
}

// Wait blocks until every pending notification has been delivered or has
// timed out.
func (s *Service) Wait() { s.wg.Wait() }

func (s *Service) apply(ctx context.Context, e repository.LedgerEntry) (int, error) {
	points, err := s.store.ApplyEntry(ctx, e)
	if err != nil {
		switch {
		case errors.Is(err, ErrInsufficientPoints),
			errors.Is(err, ErrUserNotFound),
			errors.Is(err, ErrAlreadyApplied):
			return 0, err
		}
		s.log.WithFields(logrus.Fields{"user_id": e.UserID, "change": e.Change}).WithError(err).Error("ledger write failed")
		return 0, fmt.Errorf("%w: %v", ErrLedgerUpdateFailed, err)
	}
	s.notify(Event{
		EventID:     uuid.NewString(),
		UserID:      e.UserID,
		Type:        e.Type,
		Change:      e.Change,
		Description: e.Description,
		Balance:     points,
		Ref:         e.Ref,
		OccurredAt:  time.Now().UTC(),
	})
	return points, nil
}

func (s *Service) notify(ev Event) {
	if s.notifier == nil {
		return
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), s.notifyTimeout)
		defer cancel()
		if err := s.notifier.LedgerEntryApplied(ctx, ev); err != nil {
			s.log.WithFields(logrus.Fields{"event_id": ev.EventID, "user_id": ev.UserID}).WithError(err).Warn("ledger event not published")
		}
	}()
}
