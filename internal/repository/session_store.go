package repository

import (
	"context"
	"time"

	"github.com/stemsi/exstem-session/internal/model"
)

// SessionStore is the write-through persistence of running sessions. It
// satisfies session.Persistence.
type SessionStore struct {
	Progress  *ProgressRepository
	Blocks    *BlockRepository
	Attempts  *AttemptRepository
	CheatLogs *CheatLogRepository
	Results   *ResultRepository
}

func (s *SessionStore) SaveSnapshot(ctx context.Context, deviceID string, snap model.Snapshot) error {
	return s.Progress.Save(ctx, deviceID, snap)
}

func (s *SessionStore) DeleteSnapshot(ctx context.Context, deviceID, code string) error {
	return s.Progress.Delete(ctx, deviceID, code)
}

func (s *SessionStore) AppendCheatEvent(ctx context.Context, attemptKey string, ev model.CheatEvent) error {
	return s.CheatLogs.Append(ctx, attemptKey, ev)
}

func (s *SessionStore) AddBlock(ctx context.Context, entry model.BlockEntry) error {
	return s.Blocks.Add(ctx, entry)
}

func (s *SessionStore) MarkAttempt(ctx context.Context, code, deviceID string, at time.Time) error {
	return s.Attempts.Mark(ctx, code, deviceID, at)
}

func (s *SessionStore) SaveResult(ctx context.Context, rec *model.ResultRecord) error {
	return s.Results.Save(ctx, rec)
}
