package analysis

import (
	"context"
	"fmt"
	"time"

	"github.com/rewired-gh/salesmap/internal/models"
)

// Source supplies the transactions an analysis runs over.
type Source interface {
	ListTransactions(ctx context.Context) ([]models.Transaction, error)
}

// Service runs the pipeline over the transactions currently held by a Source.
type Service struct {
	source   Source
	pipeline *Pipeline
	loc      *time.Location
	now      func() time.Time
}

func NewService(source Source, pipeline *Pipeline, loc *time.Location) *Service {
	if loc == nil {
		loc = time.UTC
	}
	return &Service{
		source:   source,
		pipeline: pipeline,
		loc:      loc,
		now:      time.Now,
	}
}

// Window resolves a mode/date pair against the current time.
func (s *Service) Window(mode, date string) (Window, error) {
	return ParseWindow(mode, date, s.now(), s.loc)
}

// Analyze loads every stored transaction and analyzes the ones inside w.
func (s *Service) Analyze(ctx context.Context, w Window) (*models.AnalysisResult, error) {
	txs, err := s.source.ListTransactions(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load transactions: %w", err)
	}
	return s.pipeline.Analyze(txs, w), nil
}

// AnalyzeSnapshot analyzes an already loaded transaction set, resolving the
// window at call time.
func (s *Service) AnalyzeSnapshot(txs []models.Transaction, mode, date string) (*models.AnalysisResult, error) {
	w, err := s.Window(mode, date)
	if err != nil {
		return nil, err
	}
	return s.pipeline.Analyze(txs, w), nil
}
