package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/pbaille/holoself/internal/domain"
	"github.com/pbaille/holoself/internal/llm"
	"github.com/pbaille/holoself/internal/protocol"
	"go.uber.org/zap"
)

// ErrUnknownAction is returned for action types the agent cannot execute
var ErrUnknownAction = errors.New("unknown action")

// ErrNoStore is returned when the service has no storage to work with
var ErrNoStore = errors.New("storage unavailable")

// Store is the storage the agent reads facts from and writes actions to
type Store interface {
	IsSupplementTaken(ctx context.Context, name, date string) (bool, error)
	UpcomingExams(ctx context.Context) ([]domain.ScheduledExam, error)
	RecentTranscript(ctx context.Context, within time.Duration) (string, error)
	AddSupplement(ctx context.Context, entry domain.SupplementEntry) (*domain.SupplementEntry, error)
	AddMemory(ctx context.Context, content, category string) (*domain.MemoryEntry, error)
}

// Options tune text generation for rephrased messages
type Options struct {
	MaxTokens   int
	Temperature float32
	Timeout     time.Duration
}

// Service gathers facts from storage, runs the Selector and optionally
// rephrases the result through a text generator
type Service struct {
	store    Store
	selector *Selector
	catalog  protocol.Catalog
	gen      llm.TextGenerator
	opts     Options
	logger   *zap.Logger
	now      func() time.Time
}

// NewService creates the agent service. gen may be nil to always use canned text.
func NewService(store Store, catalog protocol.Catalog, gen llm.TextGenerator, opts Options, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = 120
	}
	if opts.Timeout <= 0 {
		opts.Timeout = llm.DefaultTimeout
	}
	return &Service{
		store:    store,
		selector: NewSelector(catalog),
		catalog:  catalog,
		gen:      gen,
		opts:     opts,
		logger:   logger,
		now:      time.Now,
	}
}

// Message selects the current contextual message
func (s *Service) Message(ctx context.Context) (*domain.AgentMessage, error) {
	if s.store == nil {
		return nil, ErrNoStore
	}

	facts := s.gatherFacts(ctx, true)
	sel := s.selector.Select(facts)

	s.logger.Debug("Agent message selected",
		zap.String("branch", sel.Branch),
		zap.Int("adherence", sel.Context.Adherence))

	msg := sel.Message
	if sel.Rephrase {
		msg.Text = s.rephrase(ctx, sel)
	}
	return &msg, nil
}

// Rules returns the message branches in priority order
func (s *Service) Rules() []string {
	return s.selector.Rules()
}

// HandleTranscript records a voice transcript and answers it
func (s *Service) HandleTranscript(ctx context.Context, transcript string) (*domain.AgentMessage, error) {
	if s.store == nil {
		return nil, ErrNoStore
	}
	if _, err := s.store.AddMemory(ctx, transcript, domain.MemoryVoiceTranscript); err != nil {
		s.logger.Warn("Failed to record transcript", zap.Error(err))
	}

	facts := s.gatherFacts(ctx, false)
	facts.Transcript = transcript
	msg := s.selector.Select(facts).Message
	return &msg, nil
}

// DailyStats reports today's adherence to the catalog
func (s *Service) DailyStats(ctx context.Context) (*domain.DailyStats, error) {
	if s.store == nil {
		return nil, ErrNoStore
	}
	now := s.now()
	stats := s.selector.Stats(now.Format(domain.DateLayout), s.takenToday(ctx, now))
	return &stats, nil
}

// ExecuteAction runs a user-confirmed agent action and returns a confirmation text
func (s *Service) ExecuteAction(ctx context.Context, action domain.AgentAction) (string, error) {
	if s.store == nil {
		return "", ErrNoStore
	}

	switch action.ActionType {
	case domain.ActionLogSupplement:
		var p domain.SupplementPayload
		if len(action.Payload) > 0 {
			if err := json.Unmarshal(action.Payload, &p); err != nil {
				return "", fmt.Errorf("decode payload: %w", err)
			}
		}
		if p.Name == "" {
			p.Name = "Unknown"
		}
		if p.Category == "" {
			p.Category = "as_needed"
		}

		entry, err := s.store.AddSupplement(ctx, domain.SupplementEntry{
			Name:     p.Name,
			Dosage:   p.Dosage,
			Category: p.Category,
			TakenAt:  s.now(),
		})
		if err != nil {
			return "", err
		}

		confirmation := fmt.Sprintf("%s registado com sucesso.", entry.Name)
		if _, err := s.store.AddMemory(ctx, confirmation, domain.MemoryAction); err != nil {
			s.logger.Warn("Failed to record action", zap.Error(err))
		}
		return confirmation, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnknownAction, action.ActionType)
	}
}

// gatherFacts reads everything the selector needs. Every lookup failure
// degrades to its empty default.
func (s *Service) gatherFacts(ctx context.Context, withTranscript bool) Facts {
	now := s.now()
	facts := Facts{
		Now:   now,
		Taken: s.takenToday(ctx, now),
	}

	exams, err := s.store.UpcomingExams(ctx)
	if err != nil {
		s.logger.Warn("Upcoming exams unavailable", zap.Error(err))
		exams = nil
	}
	facts.Exams = exams

	if withTranscript {
		transcript, err := s.store.RecentTranscript(ctx, TranscriptWindow)
		if err != nil {
			s.logger.Warn("Voice transcript unavailable", zap.Error(err))
			transcript = ""
		}
		facts.Transcript = transcript
	}

	return facts
}

func (s *Service) takenToday(ctx context.Context, now time.Time) map[string]bool {
	today := now.Format(domain.DateLayout)
	taken := make(map[string]bool, len(s.catalog))
	for _, p := range s.catalog {
		ok, err := s.store.IsSupplementTaken(ctx, p.Name, today)
		if err != nil {
			s.logger.Warn("Supplement lookup failed", zap.String("name", p.Name), zap.Error(err))
			ok = false
		}
		taken[p.Name] = ok
	}
	return taken
}

// rephrase returns generated text for sel, or its canned text on any failure
func (s *Service) rephrase(ctx context.Context, sel Selection) string {
	if s.gen == nil {
		return sel.Message.Text
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()

	out, err := s.gen.Generate(ctx, buildPrompt(sel), llm.GenerateOptions{
		MaxTokens:   s.opts.MaxTokens,
		Temperature: s.opts.Temperature,
	})
	if err != nil {
		s.logger.Warn("Text generation failed, using canned message",
			zap.String("branch", sel.Branch), zap.Error(err))
		return sel.Message.Text
	}

	text := cleanGenerated(out)
	if text == "" {
		return sel.Message.Text
	}
	return text
}
