package worker

import (
	"context"
	"errors"

	"github.com/notemirror/notemirror/internal/model"
	"github.com/notemirror/notemirror/internal/store"
)

// accountTokens adapts the per-account DynamoDB record to the
// session's token store. Only the refresh token is durable for hosted
// accounts; access tokens are short-lived and re-minted each run.
type accountTokens struct {
	accounts  AccountTokens
	accountID string
}

func (t *accountTokens) Load(ctx context.Context) (*model.Token, error) {
	refreshToken, err := t.accounts.GetRefreshToken(ctx, t.accountID)
	if err != nil {
		return nil, err
	}
	return &model.Token{RefreshToken: refreshToken}, nil
}

func (t *accountTokens) Save(ctx context.Context, token *model.Token) error {
	if token == nil || token.RefreshToken == "" {
		return nil
	}
	return t.accounts.SaveRefreshToken(ctx, t.accountID, token.RefreshToken)
}

func (t *accountTokens) Clear(ctx context.Context) error {
	return t.accounts.DeleteAccount(ctx, t.accountID)
}

// accountState keeps the durable part of the sync state, the remote
// root id, on the account record. Worker containers are recycled
// between invocations, so everything else is recomputed from remote
// listings.
type accountState struct {
	accounts  AccountTokens
	accountID string
}

func (s *accountState) LoadState(ctx context.Context) (*model.SyncState, error) {
	id, err := s.accounts.GetRootFolderID(ctx, s.accountID)
	if errors.Is(err, store.ErrNoToken) {
		return &model.SyncState{}, nil
	}
	if err != nil {
		return nil, err
	}
	return &model.SyncState{RootFolderID: id}, nil
}

func (s *accountState) SaveState(ctx context.Context, state *model.SyncState) error {
	return s.accounts.UpdateRootFolderID(ctx, s.accountID, state.RootFolderID)
}
