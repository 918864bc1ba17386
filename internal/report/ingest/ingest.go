// Package ingest is the snapshot-capture boundary: every write to a source
// entity goes through here so the {previous, current} pair is taken at
// commit time, before any concurrent write can change what "previous" means.
// The aggregation layer downstream assumes exactly this.
package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hrplane/reporting/internal/report/db"
	dbm "github.com/hrplane/reporting/internal/report/db/models"
	"github.com/hrplane/reporting/internal/report/models"
	"go.uber.org/zap"
)

// SnapshotProducer publishes snapshot envelopes keyed by entity id.
type SnapshotProducer interface {
	Produce(entityID string, envelope models.Message)
}

// Service persists source rows and publishes their snapshots.
type Service struct {
	repo     *db.Repository
	producer SnapshotProducer
	logger   *zap.Logger
}

// NewService constructs an ingest Service.
func NewService(repo *db.Repository, producer SnapshotProducer, logger *zap.Logger) *Service {
	return &Service{
		repo:     repo,
		producer: producer,
		logger:   logger.Named("ingest"),
	}
}

// RecordWorkHistory persists a new work-history event and publishes its
// create snapshot. Event rows are immutable in the normal flow.
func (s *Service) RecordWorkHistory(ctx context.Context, ev *dbm.WorkHistoryEvent) error {
	if ev.ID == uuid.Nil {
		ev.ID = uuid.New()
	}
	ev.Date = truncate(ev.Date)
	if err := s.repo.Create(ctx, ev); err != nil {
		return fmt.Errorf("failed to create work history event: %w", err)
	}
	s.publish(models.EntityWorkHistory, models.ActionCreate, ev.ID.String(),
		nil, workHistorySnapshot(ev))
	return nil
}

// CorrectWorkHistory overwrites an event row (administrative correction
// only) and publishes an update snapshot carrying both states.
func (s *Service) CorrectWorkHistory(ctx context.Context, ev *dbm.WorkHistoryEvent) error {
	prev, err := s.repo.GetWorkHistoryEvent(ctx, ev.ID)
	if err != nil {
		return fmt.Errorf("failed to load work history event: %w", err)
	}
	ev.Date = truncate(ev.Date)
	if err := s.repo.Save(ctx, ev); err != nil {
		return fmt.Errorf("failed to save work history event: %w", err)
	}
	s.publish(models.EntityWorkHistory, models.ActionUpdate, ev.ID.String(),
		workHistorySnapshot(prev), workHistorySnapshot(ev))
	return nil
}

// RemoveWorkHistory deletes an event row (administrative correction) and
// publishes the reversal snapshot so prior aggregation is undone.
func (s *Service) RemoveWorkHistory(ctx context.Context, id uuid.UUID) error {
	prev, err := s.repo.GetWorkHistoryEvent(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to load work history event: %w", err)
	}
	if err := s.repo.DeleteWorkHistoryEvent(ctx, id); err != nil {
		return fmt.Errorf("failed to delete work history event: %w", err)
	}
	s.publish(models.EntityWorkHistory, models.ActionDelete, id.String(),
		workHistorySnapshot(prev), nil)
	return nil
}

// CreateCandidate persists a new candidate and publishes its snapshot.
func (s *Service) CreateCandidate(ctx context.Context, c *dbm.RecruitmentCandidate) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	normalizeOnboard(c)
	if err := s.repo.Create(ctx, c); err != nil {
		return fmt.Errorf("failed to create candidate: %w", err)
	}
	snap, err := s.candidateSnapshot(ctx, c)
	if err != nil {
		return err
	}
	s.publish(models.EntityCandidate, models.ActionCreate, c.ID.String(), nil, snap)
	return nil
}

// UpdateCandidate saves a candidate's new state and publishes the pair.
func (s *Service) UpdateCandidate(ctx context.Context, c *dbm.RecruitmentCandidate) error {
	prev, err := s.repo.GetCandidate(ctx, c.ID)
	if err != nil {
		return fmt.Errorf("failed to load candidate: %w", err)
	}
	normalizeOnboard(c)
	if err := s.repo.Save(ctx, c); err != nil {
		return fmt.Errorf("failed to save candidate: %w", err)
	}
	prevSnap, err := s.candidateSnapshot(ctx, prev)
	if err != nil {
		return err
	}
	curSnap, err := s.candidateSnapshot(ctx, c)
	if err != nil {
		return err
	}
	s.publish(models.EntityCandidate, models.ActionUpdate, c.ID.String(), prevSnap, curSnap)
	return nil
}

// DeleteCandidate removes a candidate and publishes the reversal snapshot.
func (s *Service) DeleteCandidate(ctx context.Context, id uuid.UUID) error {
	prev, err := s.repo.GetCandidate(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to load candidate: %w", err)
	}
	if err := s.repo.DeleteCandidate(ctx, id); err != nil {
		return fmt.Errorf("failed to delete candidate: %w", err)
	}
	prevSnap, err := s.candidateSnapshot(ctx, prev)
	if err != nil {
		return err
	}
	s.publish(models.EntityCandidate, models.ActionDelete, id.String(), prevSnap, nil)
	return nil
}

// CreateExpense persists a new expense and publishes its snapshot.
func (s *Service) CreateExpense(ctx context.Context, ex *dbm.RecruitmentExpense) error {
	if ex.ID == uuid.Nil {
		ex.ID = uuid.New()
	}
	ex.Date = truncate(ex.Date)
	if err := s.repo.Create(ctx, ex); err != nil {
		return fmt.Errorf("failed to create expense: %w", err)
	}
	s.publish(models.EntityExpense, models.ActionCreate, ex.ID.String(), nil, expenseSnapshot(ex))
	return nil
}

// UpdateExpense saves an expense's new state and publishes the pair.
func (s *Service) UpdateExpense(ctx context.Context, ex *dbm.RecruitmentExpense) error {
	prev, err := s.repo.GetExpense(ctx, ex.ID)
	if err != nil {
		return fmt.Errorf("failed to load expense: %w", err)
	}
	ex.Date = truncate(ex.Date)
	if err := s.repo.Save(ctx, ex); err != nil {
		return fmt.Errorf("failed to save expense: %w", err)
	}
	s.publish(models.EntityExpense, models.ActionUpdate, ex.ID.String(),
		expenseSnapshot(prev), expenseSnapshot(ex))
	return nil
}

// DeleteExpense removes an expense and publishes the reversal snapshot.
func (s *Service) DeleteExpense(ctx context.Context, id uuid.UUID) error {
	prev, err := s.repo.GetExpense(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to load expense: %w", err)
	}
	if err := s.repo.DeleteExpense(ctx, id); err != nil {
		return fmt.Errorf("failed to delete expense: %w", err)
	}
	s.publish(models.EntityExpense, models.ActionDelete, id.String(), expenseSnapshot(prev), nil)
	return nil
}

func (s *Service) publish(entity models.EntityKind, action models.Action, entityID string, previous, current any) {
	envelope := models.Message{Entity: entity, Action: action}
	var err error
	if previous != nil {
		if envelope.Previous, err = json.Marshal(previous); err != nil {
			s.logger.Error("failed to marshal previous snapshot", zap.Error(err), zap.String("entity_id", entityID))
			return
		}
	}
	if current != nil {
		if envelope.Current, err = json.Marshal(current); err != nil {
			s.logger.Error("failed to marshal current snapshot", zap.Error(err), zap.String("entity_id", entityID))
			return
		}
	}
	s.producer.Produce(entityID, envelope)
}

func workHistorySnapshot(ev *dbm.WorkHistoryEvent) *models.WorkHistorySnapshot {
	return &models.WorkHistorySnapshot{
		EventID:        ev.ID,
		EmployeeID:     ev.EmployeeID,
		Date:           models.DateOf(ev.Date),
		Name:           ev.Name,
		Status:         ev.Status,
		PreviousStatus: ev.PreviousStatus,
		ResignReason:   ev.ResignReason,
		BranchID:       ev.BranchID,
		BlockID:        ev.BlockID,
		DepartmentID:   ev.DepartmentID,
	}
}

// candidateSnapshot resolves the classification flags eagerly so consumers
// never depend on lookup tables being in sync at delivery time.
func (s *Service) candidateSnapshot(ctx context.Context, c *dbm.RecruitmentCandidate) (*models.CandidateSnapshot, error) {
	snap := &models.CandidateSnapshot{
		CandidateID:       c.ID,
		Status:            c.Status,
		BranchID:          c.BranchID,
		BlockID:           c.BlockID,
		DepartmentID:      c.DepartmentID,
		SourceID:          c.SourceID,
		ChannelID:         c.ChannelID,
		YearsOfExperience: c.YearsOfExperience,
		ReferrerID:        c.ReferrerID,
		RequestID:         c.RequestID,
	}
	if c.OnboardDate != nil {
		snap.OnboardDate = models.DateOf(*c.OnboardDate)
	}
	if c.SourceID != uuid.Nil {
		src, err := s.repo.GetSource(ctx, c.SourceID)
		if err == nil {
			snap.SourceAllowReferral = src.AllowReferral
		}
	}
	if c.ChannelID != uuid.Nil {
		ch, err := s.repo.GetChannel(ctx, c.ChannelID)
		if err == nil {
			snap.ChannelBelongTo = ch.BelongTo
		}
	}
	return snap, nil
}

func expenseSnapshot(ex *dbm.RecruitmentExpense) *models.ExpenseSnapshot {
	return &models.ExpenseSnapshot{
		ExpenseID: ex.ID,
		RequestID: ex.RequestID,
		Date:      models.DateOf(ex.Date),
		Amount:    ex.Amount,
	}
}

func normalizeOnboard(c *dbm.RecruitmentCandidate) {
	if c.OnboardDate != nil {
		d := truncate(*c.OnboardDate)
		c.OnboardDate = &d
	}
}

func truncate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
