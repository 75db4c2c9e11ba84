package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/pbaille/holoself/internal/domain"
	"go.uber.org/zap"
)

// ActiveWindowDays is how far back a logged supplement counts as active
const ActiveWindowDays = 90

// Source supplies the scheduler inputs from storage
type Source interface {
	ActiveSupplementNames(ctx context.Context, sinceDays int) ([]string, error)
	LatestLabDates(ctx context.Context) ([]domain.LabDate, error)
}

// Sink persists scheduled exams
type Sink interface {
	HasPendingExam(ctx context.Context, examType, triggeredBy string) (bool, error)
	AddScheduledExam(ctx context.Context, exam domain.ScheduledExam) (string, error)
}

// FromSource loads the active protocol and lab history and generates the
// schedule. Lookup failures are logged and treated as empty input.
func FromSource(ctx context.Context, src Source, now time.Time, logger *zap.Logger) []domain.ScheduledExam {
	if logger == nil {
		logger = zap.NewNop()
	}

	names, err := src.ActiveSupplementNames(ctx, ActiveWindowDays)
	if err != nil {
		logger.Warn("Active supplements unavailable", zap.Error(err))
		names = nil
	}
	labs, err := src.LatestLabDates(ctx)
	if err != nil {
		logger.Warn("Lab history unavailable", zap.Error(err))
		labs = nil
	}

	active := make([]SupplementInfo, len(names))
	for i, n := range names {
		active[i] = SupplementInfo{Name: n}
	}
	return Generate(active, labs, now)
}

// Persist inserts the exams that have no uncompleted entry with the same
// exam type and trigger yet, and returns the ones inserted.
func Persist(ctx context.Context, sink Sink, exams []domain.ScheduledExam) ([]domain.ScheduledExam, error) {
	inserted := []domain.ScheduledExam{}
	for _, exam := range exams {
		pending, err := sink.HasPendingExam(ctx, exam.ExamType, exam.TriggeredBy)
		if err != nil {
			return inserted, fmt.Errorf("check pending exam: %w", err)
		}
		if pending {
			continue
		}
		id, err := sink.AddScheduledExam(ctx, exam)
		if err != nil {
			return inserted, fmt.Errorf("save exam %s: %w", exam.ExamType, err)
		}
		exam.ID = id
		inserted = append(inserted, exam)
	}
	return inserted, nil
}

// Store is the storage needed to refresh the persisted schedule
type Store interface {
	Source
	Sink
}

// Refresh generates today's schedule and persists the new exams
func Refresh(ctx context.Context, s Store, now time.Time, logger *zap.Logger) ([]domain.ScheduledExam, error) {
	return Persist(ctx, s, FromSource(ctx, s, now, logger))
}
