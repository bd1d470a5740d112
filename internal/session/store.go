package session

import (
	"context"
	"errors"
	"time"

	"github.com/stemsi/exstem-session/internal/model"
)

// ErrResultCodeTaken is returned by SaveResult when the record's code
// already names another result. The session draws a new code and retries.
var ErrResultCodeTaken = errors.New("result code already in use")

// Persistence is the durable storage a session writes through. Every call
// is best effort: the session logs failures and carries on.
type Persistence interface {
	SaveSnapshot(ctx context.Context, deviceID string, snap model.Snapshot) error
	DeleteSnapshot(ctx context.Context, deviceID, code string) error
	AppendCheatEvent(ctx context.Context, attemptKey string, ev model.CheatEvent) error
	AddBlock(ctx context.Context, entry model.BlockEntry) error
	MarkAttempt(ctx context.Context, code, deviceID string, at time.Time) error
	SaveResult(ctx context.Context, rec *model.ResultRecord) error
}

// NopPersistence discards every write.
type NopPersistence struct{}

func (NopPersistence) SaveSnapshot(context.Context, string, model.Snapshot) error       { return nil }
func (NopPersistence) DeleteSnapshot(context.Context, string, string) error             { return nil }
func (NopPersistence) AppendCheatEvent(context.Context, string, model.CheatEvent) error { return nil }
func (NopPersistence) AddBlock(context.Context, model.BlockEntry) error                 { return nil }
func (NopPersistence) MarkAttempt(context.Context, string, string, time.Time) error     { return nil }
func (NopPersistence) SaveResult(context.Context, *model.ResultRecord) error            { return nil }
