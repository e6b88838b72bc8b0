// Package worker runs hosted sync sessions for managed accounts. One
// Lambda invocation mirrors one account's notes directory, guarded by
// a DynamoDB lease so two invocations never sync the same account at
// once.
package worker

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/kms"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/notemirror/notemirror/internal/auth"
	"github.com/notemirror/notemirror/internal/crypto"
	"github.com/notemirror/notemirror/internal/engine"
	"github.com/notemirror/notemirror/internal/local"
	"github.com/notemirror/notemirror/internal/remote/googledrive"
	"github.com/notemirror/notemirror/internal/secret"
	"github.com/notemirror/notemirror/internal/store"
)

// SyncRequest is the invocation payload.
type SyncRequest struct {
	AccountID string `json:"account_id"`
}

// SyncResponse reports what the run did.
type SyncResponse struct {
	AccountID string `json:"account_id"`
	Uploaded  int    `json:"uploaded"`
	Skipped   int    `json:"skipped"`
	Failed    int    `json:"failed"`
}

// AccountTokens is the slice of the account store the worker uses.
type AccountTokens interface {
	GetRefreshToken(ctx context.Context, accountID string) (string, error)
	SaveRefreshToken(ctx context.Context, accountID, refreshToken string) error
	DeleteAccount(ctx context.Context, accountID string) error
	GetRootFolderID(ctx context.Context, accountID string) (string, error)
	UpdateRootFolderID(ctx context.Context, accountID, folderID string) error
}

// EngineBuilder turns an authenticated session into a ready engine for
// one account. Injected so tests can point the engine at a fake remote.
type EngineBuilder func(ctx context.Context, accountID string, session *auth.Session, states store.StateStore) (*engine.Engine, error)

// Handler serves one sync request per invocation.
type Handler struct {
	oauth    *oauth2.Config
	locks    store.Locker
	accounts AccountTokens
	build    EngineBuilder
}

func NewHandler(oauthConfig *oauth2.Config, locks store.Locker, accounts AccountTokens, build EngineBuilder) *Handler {
	return &Handler{
		oauth:    oauthConfig,
		locks:    locks,
		accounts: accounts,
		build:    build,
	}
}

// HandleRequest syncs one account end to end: take the run lock, build
// a session from the stored refresh token, run a sync session, release
// the lock.
func (h *Handler) HandleRequest(ctx context.Context, req SyncRequest) (SyncResponse, error) {
	resp := SyncResponse{AccountID: req.AccountID}
	if req.AccountID == "" {
		return resp, fmt.Errorf("missing account_id")
	}

	ownerID := uuid.NewString()
	if _, err := h.locks.Acquire(ctx, req.AccountID, ownerID); err != nil {
		return resp, fmt.Errorf("unable to acquire run lock for %s: %w", req.AccountID, err)
	}
	defer func() {
		if err := h.locks.Release(ctx, req.AccountID, ownerID); err != nil {
			log.Printf("WARNING: failed to release run lock for %s: %v", req.AccountID, err)
		}
	}()

	session := auth.NewSession(h.oauth, &accountTokens{accounts: h.accounts, accountID: req.AccountID})
	if err := session.Load(ctx); err != nil {
		return resp, fmt.Errorf("unable to load account credentials: %w", err)
	}

	states := &accountState{accounts: h.accounts, accountID: req.AccountID}
	eng, err := h.build(ctx, req.AccountID, session, states)
	if err != nil {
		return resp, err
	}

	// The run is synchronous, so the completion callback has fired by
	// the time SyncNow returns.
	var result engine.Result
	eng.Events = engine.Events{
		SyncCompleted: func(r engine.Result) { result = r },
	}

	if err := eng.SyncNow(ctx); err != nil {
		return resp, err
	}

	resp.Uploaded = result.Uploaded
	resp.Skipped = result.Skipped
	resp.Failed = result.Failed
	log.Printf("synced %s: %d uploaded, %d skipped, %d failed", req.AccountID, resp.Uploaded, resp.Skipped, resp.Failed)
	return resp, nil
}

// NewDriveEngineBuilder mirrors accounts onto Google Drive from the
// notes tree mounted at NOTES_ROOT, one subdirectory per account.
func NewDriveEngineBuilder() EngineBuilder {
	notesRoot := os.Getenv("NOTES_ROOT")
	if notesRoot == "" {
		notesRoot = "/mnt/notes"
	}

	return func(ctx context.Context, accountID string, session *auth.Session, states store.StateStore) (*engine.Engine, error) {
		client := googledrive.NewHTTPClient(ctx, session.TokenSource(ctx))
		remoteStore, err := googledrive.NewStore(ctx, client)
		if err != nil {
			return nil, fmt.Errorf("unable to build drive client: %w", err)
		}

		source := local.NewDirScanner(filepath.Join(notesRoot, accountID))
		return engine.New(session, remoteStore, source, states), nil
	}
}

// NewHandlerFromEnv wires the production handler: DynamoDB lock and
// account tables, KMS token encryption and SSM credential resolution,
// or their local stand-ins when DEV_MODE=true.
func NewHandlerFromEnv(ctx context.Context) *Handler {
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		panic(fmt.Sprintf("unable to load SDK config, %v", err))
	}

	dynamoClient := dynamodb.NewFromConfig(cfg)

	var encryptor crypto.Encryptor
	if os.Getenv("DEV_MODE") == "true" {
		encryptor = crypto.NewMockEncryptor()
		fmt.Println("Using MockEncryptor (DEV_MODE=true)")
	} else {
		kmsKeyID := os.Getenv("KMS_KEY_ID")
		if kmsKeyID == "" {
			kmsKeyID = "alias/notemirror-token-key"
		}
		encryptor = crypto.NewKMSService(kms.NewFromConfig(cfg), kmsKeyID)
	}

	var resolver secret.Resolver
	if os.Getenv("DEV_MODE") == "true" {
		resolver = secret.NewEnvResolver()
		fmt.Println("Using EnvResolver (DEV_MODE=true)")
	} else {
		resolver = secret.NewSSMResolver(ssm.NewFromConfig(cfg))
	}

	clientIDParam := os.Getenv("GOOGLE_CLIENT_ID_PARAM")
	if clientIDParam == "" {
		clientIDParam = "/notemirror/google-client-id"
	}
	clientID, err := resolver.GetSecret(ctx, clientIDParam)
	if err != nil {
		log.Printf("WARNING: failed to resolve google client id: %v", err)
	}

	clientSecretParam := os.Getenv("GOOGLE_CLIENT_SECRET_PARAM")
	if clientSecretParam == "" {
		clientSecretParam = "/notemirror/google-client-secret"
	}
	clientSecret, err := resolver.GetSecret(ctx, clientSecretParam)
	if err != nil {
		log.Printf("WARNING: failed to resolve google client secret: %v", err)
	}

	oauthConfig := &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Endpoint:     google.Endpoint,
		Scopes:       []string{"https://www.googleapis.com/auth/drive.file"},
	}

	return NewHandler(
		oauthConfig,
		store.NewLockManager(dynamoClient),
		store.NewAccountStore(dynamoClient, encryptor),
		NewDriveEngineBuilder(),
	)
}
