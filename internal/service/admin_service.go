package service

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-session/internal/model"
)

// BlockStore is the admin's view of the block list.
type BlockStore interface {
	List(ctx context.Context) ([]model.BlockEntry, error)
	Remove(ctx context.Context, code, deviceID string) (bool, error)
}

// AttemptClearer removes cooldown markers.
type AttemptClearer interface {
	Clear(ctx context.Context, code, deviceID string) error
}

// SnapshotStore reads and deletes retained snapshots.
type SnapshotStore interface {
	GetAudited(ctx context.Context, deviceID, code string) (*model.Snapshot, error)
	Delete(ctx context.Context, deviceID, code string) error
}

// CheatLogReader reads a session's cheat log.
type CheatLogReader interface {
	List(ctx context.Context, attemptKey string) ([]model.CheatEvent, error)
}

// AdminService re-enables devices and inspects what sessions left behind.
type AdminService struct {
	blocks    BlockStore
	attempts  AttemptClearer
	snapshots SnapshotStore
	cheats    CheatLogReader
	log       zerolog.Logger
}

// NewAdminService creates a new AdminService.
func NewAdminService(blocks BlockStore, attempts AttemptClearer, snapshots SnapshotStore, cheats CheatLogReader, log zerolog.Logger) *AdminService {
	return &AdminService{
		blocks:    blocks,
		attempts:  attempts,
		snapshots: snapshots,
		cheats:    cheats,
		log:       log.With().Str("component", "admin_service").Logger(),
	}
}

// ListBlocks returns the block list.
func (s *AdminService) ListBlocks(ctx context.Context) ([]model.BlockEntry, error) {
	return s.blocks.List(ctx)
}

// Unblock lifts a block and clears the cooldown marker and the retained
// snapshot so the device can start the test from scratch. It reports
// whether a block existed.
func (s *AdminService) Unblock(ctx context.Context, code, deviceID string) (bool, error) {
	code, _ = ParseCode(code)
	removed, err := s.blocks.Remove(ctx, code, deviceID)
	if err != nil {
		return false, err
	}
	if err := s.attempts.Clear(ctx, code, deviceID); err != nil {
		return removed, fmt.Errorf("clear cooldown: %w", err)
	}
	if err := s.snapshots.Delete(ctx, deviceID, code); err != nil {
		return removed, fmt.Errorf("delete snapshot: %w", err)
	}
	s.log.Info().Str("test_code", code).Str("device_id", deviceID).Bool("was_blocked", removed).Msg("Device re-enabled")
	return removed, nil
}

// CheatLog returns the events recorded for a session id.
func (s *AdminService) CheatLog(ctx context.Context, attemptKey string) ([]model.CheatEvent, error) {
	return s.cheats.List(ctx, attemptKey)
}

// Snapshot returns the saved progress of a device for a test, or nil.
func (s *AdminService) Snapshot(ctx context.Context, deviceID, code string) (*model.Snapshot, error) {
	return s.snapshots.GetAudited(ctx, deviceID, code)
}
