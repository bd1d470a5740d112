package service

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-session/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCheatLog map[string][]model.CheatEvent

func (f fakeCheatLog) List(_ context.Context, key string) ([]model.CheatEvent, error) {
	return f[key], nil
}

func TestAdminService_UnblockClearsEverything(t *testing.T) {
	ctx := context.Background()
	blocks := newFakeBlocks()
	attempts := newFakeAttempts()
	progress := newFakeProgress()
	require.NoError(t, blocks.Add(ctx, model.BlockEntry{Code: "HISTORIA-01", DeviceID: deviceA, Reason: model.CheatBlurViolation}))
	require.NoError(t, attempts.Mark(ctx, "HISTORIA-01", deviceA, time.Now()))
	require.NoError(t, progress.Save(ctx, deviceA, model.Snapshot{TestCode: "HISTORIA-01"}))

	svc := NewAdminService(blocks, attempts, progress, fakeCheatLog{}, zerolog.Nop())

	list, err := svc.ListBlocks(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)

	removed, err := svc.Unblock(ctx, "HISTORIA-01:NEW!", deviceA)
	require.NoError(t, err)
	assert.True(t, removed)

	blocked, _ := blocks.IsBlocked(ctx, "HISTORIA-01", deviceA)
	assert.False(t, blocked)
	_, ok, _ := attempts.Last(ctx, "HISTORIA-01", deviceA)
	assert.False(t, ok)
	snap, err := svc.Snapshot(ctx, deviceA, "HISTORIA-01")
	require.NoError(t, err)
	assert.Nil(t, snap)

	removed, err = svc.Unblock(ctx, "HISTORIA-01", deviceA)
	require.NoError(t, err)
	assert.False(t, removed)
}

func TestAdminService_CheatLog(t *testing.T) {
	events := []model.CheatEvent{{Kind: model.CheatWindowBlur, Count: 1}}
	svc := NewAdminService(newFakeBlocks(), newFakeAttempts(), newFakeProgress(), fakeCheatLog{"k": events}, zerolog.Nop())

	got, err := svc.CheatLog(context.Background(), "k")
	require.NoError(t, err)
	assert.Equal(t, events, got)
}

func TestResultService_Lookup(t *testing.T) {
	store := &memStore{results: map[string]*model.ResultRecord{
		"01234567890": {ResultCode: "01234567890", Score: 7.5, Evaluative: true, ShowResults: false},
	}}
	svc := NewResultService(store)

	view, err := svc.Lookup(context.Background(), " 01234567890 ")
	require.NoError(t, err)
	assert.Equal(t, "012345*****", view.ResultCode)
	require.NotNil(t, view.Score)
	assert.InDelta(t, 7.5, *view.Score, 1e-9)

	_, err = svc.Lookup(context.Background(), "99999999999")
	assert.ErrorIs(t, err, errNotFound)
}
