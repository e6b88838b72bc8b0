// Package store persists OAuth tokens and sync state. The CLI uses the
// file-backed stores; the worker keeps per-account tokens in DynamoDB
// with the refresh token encrypted at rest.
package store

import (
	"context"
	"errors"

	"github.com/notemirror/notemirror/internal/model"
)

// ErrNoToken is returned when no token has been stored yet.
var ErrNoToken = errors.New("no stored token")

// TokenStore persists the OAuth token between runs.
type TokenStore interface {
	Load(ctx context.Context) (*model.Token, error)
	Save(ctx context.Context, token *model.Token) error
	Clear(ctx context.Context) error
}

// StateStore persists sync bookkeeping between runs.
type StateStore interface {
	LoadState(ctx context.Context) (*model.SyncState, error)
	SaveState(ctx context.Context, state *model.SyncState) error
}
