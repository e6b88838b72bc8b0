package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/notemirror/notemirror/internal/model"
)

// DefaultLockTTL bounds how long a crashed worker can hold an account.
const DefaultLockTTL = 5 * time.Minute

// ErrLocked is returned when another worker holds the account's lock.
var ErrLocked = errors.New("account is locked by another worker")

func lockTableName() string {
	name := os.Getenv("RUN_LOCK_TABLE")
	if name == "" {
		name = "SyncRunLocks"
	}
	return name
}

// LockManager serializes sync runs per account using DynamoDB TTL.
// Only one worker may sync an account at a time; a lock left behind by
// a crash expires on its own.
type LockManager struct {
	client      DynamoAPI
	tableName   string
	ttlDuration time.Duration
}

func NewLockManager(client DynamoAPI) *LockManager {
	return &LockManager{
		client:      client,
		tableName:   lockTableName(),
		ttlDuration: DefaultLockTTL,
	}
}

// Acquire takes the account's run lock. It succeeds when no lock
// exists, the existing lock has expired, or the caller already owns it.
func (m *LockManager) Acquire(ctx context.Context, accountID, ownerID string) (*model.RunLock, error) {
	now := time.Now().Unix()
	lock := model.RunLock{
		AccountID: accountID,
		OwnerID:   ownerID,
		ExpiresAt: now + int64(m.ttlDuration.Seconds()),
	}

	item, err := attributevalue.MarshalMap(lock)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal lock: %w", err)
	}

	_, err = m.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(m.tableName),
		Item:      item,
		ConditionExpression: aws.String(
			"attribute_not_exists(account_id) OR expires_at < :now OR owner_id = :owner_id",
		),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":now":      &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", now)},
			":owner_id": &types.AttributeValueMemberS{Value: ownerID},
		},
	})
	if err != nil {
		var condFailed *types.ConditionalCheckFailedException
		if errors.As(err, &condFailed) {
			return nil, ErrLocked
		}
		return nil, fmt.Errorf("failed to acquire lock: %w", err)
	}

	return &lock, nil
}

// Extend pushes the lock expiry out for a long run. Fails if the
// caller no longer owns the lock.
func (m *LockManager) Extend(ctx context.Context, accountID, ownerID string) (*model.RunLock, error) {
	expiresAt := time.Now().Unix() + int64(m.ttlDuration.Seconds())

	out, err := m.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(m.tableName),
		Key: map[string]types.AttributeValue{
			"account_id": &types.AttributeValueMemberS{Value: accountID},
		},
		UpdateExpression:    aws.String("SET expires_at = :expires_at"),
		ConditionExpression: aws.String("owner_id = :owner_id"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":expires_at": &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", expiresAt)},
			":owner_id":   &types.AttributeValueMemberS{Value: ownerID},
		},
		ReturnValues: types.ReturnValueAllNew,
	})
	if err != nil {
		var condFailed *types.ConditionalCheckFailedException
		if errors.As(err, &condFailed) {
			return nil, ErrLocked
		}
		return nil, fmt.Errorf("failed to extend lock: %w", err)
	}

	var lock model.RunLock
	if err := attributevalue.UnmarshalMap(out.Attributes, &lock); err != nil {
		return nil, fmt.Errorf("failed to unmarshal lock: %w", err)
	}
	return &lock, nil
}

// Release removes the lock if the caller owns it.
func (m *LockManager) Release(ctx context.Context, accountID, ownerID string) error {
	_, err := m.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(m.tableName),
		Key: map[string]types.AttributeValue{
			"account_id": &types.AttributeValueMemberS{Value: accountID},
		},
		ConditionExpression: aws.String("owner_id = :owner_id"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":owner_id": &types.AttributeValueMemberS{Value: ownerID},
		},
	})
	if err != nil {
		var condFailed *types.ConditionalCheckFailedException
		if errors.As(err, &condFailed) {
			return ErrLocked
		}
		return fmt.Errorf("failed to release lock: %w", err)
	}
	return nil
}

// Status returns the active lock for the account, or nil when the
// account is free or the lock has expired.
func (m *LockManager) Status(ctx context.Context, accountID string) (*model.RunLock, error) {
	out, err := m.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(m.tableName),
		Key: map[string]types.AttributeValue{
			"account_id": &types.AttributeValueMemberS{Value: accountID},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get lock status: %w", err)
	}
	if out.Item == nil {
		return nil, nil
	}

	var lock model.RunLock
	if err := attributevalue.UnmarshalMap(out.Item, &lock); err != nil {
		return nil, fmt.Errorf("failed to unmarshal lock: %w", err)
	}

	if lock.ExpiresAt < time.Now().Unix() {
		return nil, nil
	}
	return &lock, nil
}
