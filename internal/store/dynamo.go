package store

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/notemirror/notemirror/internal/crypto"
	"github.com/notemirror/notemirror/internal/model"
)

// DynamoAPI is the slice of the DynamoDB client the stores use.
type DynamoAPI interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
}

func accountTableName() string {
	name := os.Getenv("ACCOUNT_TOKEN_TABLE")
	if name == "" {
		name = "AccountTokens"
	}
	return name
}

// AccountStore keeps per-account refresh tokens in DynamoDB for the
// worker. Refresh tokens are encrypted before they leave the process.
type AccountStore struct {
	client    DynamoAPI
	tableName string
	encryptor crypto.Encryptor
}

func NewAccountStore(client DynamoAPI, encryptor crypto.Encryptor) *AccountStore {
	return &AccountStore{
		client:    client,
		tableName: accountTableName(),
		encryptor: encryptor,
	}
}

// SaveRefreshToken encrypts and stores the refresh token, preserving
// the account's root folder id if one is already recorded.
func (s *AccountStore) SaveRefreshToken(ctx context.Context, accountID, refreshToken string) error {
	if refreshToken == "" {
		return fmt.Errorf("no refresh token to save")
	}

	encrypted, err := s.encryptor.Encrypt(ctx, refreshToken)
	if err != nil {
		return fmt.Errorf("failed to encrypt refresh token: %w", err)
	}

	var rootFolderID string
	if existing, err := s.getAccount(ctx, accountID); err == nil {
		rootFolderID = existing.RootFolderID
	}

	accountToken := model.AccountToken{
		AccountID:             accountID,
		EncryptedRefreshToken: encrypted,
		RootFolderID:          rootFolderID,
		UpdatedAt:             time.Now(),
	}

	item, err := attributevalue.MarshalMap(accountToken)
	if err != nil {
		return fmt.Errorf("failed to marshal account token: %w", err)
	}

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.tableName),
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("failed to save token to DynamoDB: %w", err)
	}
	return nil
}

// GetRefreshToken loads and decrypts the account's refresh token.
func (s *AccountStore) GetRefreshToken(ctx context.Context, accountID string) (string, error) {
	accountToken, err := s.getAccount(ctx, accountID)
	if err != nil {
		return "", err
	}

	refreshToken, err := s.encryptor.Decrypt(ctx, accountToken.EncryptedRefreshToken)
	if err != nil {
		return "", fmt.Errorf("failed to decrypt refresh token: %w", err)
	}
	return refreshToken, nil
}

// GetRootFolderID returns the recorded remote root for the account, or
// "" when none has been recorded yet.
func (s *AccountStore) GetRootFolderID(ctx context.Context, accountID string) (string, error) {
	accountToken, err := s.getAccount(ctx, accountID)
	if err != nil {
		return "", err
	}
	return accountToken.RootFolderID, nil
}

// UpdateRootFolderID records the remote root folder for the account.
func (s *AccountStore) UpdateRootFolderID(ctx context.Context, accountID, folderID string) error {
	_, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]types.AttributeValue{
			"account_id": &types.AttributeValueMemberS{Value: accountID},
		},
		UpdateExpression: aws.String("SET root_folder_id = :fid, updated_at = :now"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":fid": &types.AttributeValueMemberS{Value: folderID},
			":now": &types.AttributeValueMemberS{Value: time.Now().Format(time.RFC3339)},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to update root folder id: %w", err)
	}
	return nil
}

// DeleteAccount removes the account's stored credentials.
func (s *AccountStore) DeleteAccount(ctx context.Context, accountID string) error {
	_, err := s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]types.AttributeValue{
			"account_id": &types.AttributeValueMemberS{Value: accountID},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to delete account token: %w", err)
	}
	return nil
}

func (s *AccountStore) getAccount(ctx context.Context, accountID string) (*model.AccountToken, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]types.AttributeValue{
			"account_id": &types.AttributeValueMemberS{Value: accountID},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get item from DynamoDB: %w", err)
	}
	if out.Item == nil {
		return nil, ErrNoToken
	}

	var accountToken model.AccountToken
	if err := attributevalue.UnmarshalMap(out.Item, &accountToken); err != nil {
		return nil, fmt.Errorf("failed to unmarshal account token: %w", err)
	}
	return &accountToken, nil
}
