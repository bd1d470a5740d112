package service

import (
	"context"
	"strings"

	"github.com/stemsi/exstem-session/internal/model"
)

// ResultReader looks result records up by exact code.
type ResultReader interface {
	Get(ctx context.Context, code string) (*model.ResultRecord, error)
}

// ResultService serves the redacted result view.
type ResultService struct {
	results ResultReader
}

// NewResultService creates a new ResultService.
func NewResultService(results ResultReader) *ResultService {
	return &ResultService{results: results}
}

// Lookup returns the student-facing view of the result with the given code.
func (s *ResultService) Lookup(ctx context.Context, code string) (*model.ResultView, error) {
	rec, err := s.results.Get(ctx, strings.TrimSpace(code))
	if err != nil {
		return nil, err
	}
	view := rec.View()
	return &view, nil
}
