package store

import (
	"context"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/sicko7947/agentparty"
	"github.com/sicko7947/agentparty/session"
)

// DynamoDBSessionStore implements session.Store using DynamoDB. Expiry uses
// the table's native TTL on the ttl attribute, so DeleteExpired is a no-op.
type DynamoDBSessionStore struct {
	client    DynamoDBClient
	tableName string
}

// NewDynamoDBSessionStore creates a DynamoDB-backed session store
func NewDynamoDBSessionStore(client DynamoDBClient, tableName string) session.Store {
	return &DynamoDBSessionStore{
		client:    client,
		tableName: tableName,
	}
}

func (s *DynamoDBSessionStore) Put(ctx context.Context, sess *session.Session, ttl time.Duration) error {
	item, err := attributevalue.MarshalMap(sess)
	if err != nil {
		return agentparty.WrapWorkflowError(agentparty.ErrCodeStorage, err, "failed to marshal session")
	}

	item[AttrPK] = &types.AttributeValueMemberS{Value: sessionPK(sess.ID)}
	item[AttrSK] = &types.AttributeValueMemberS{Value: sessionSK()}
	item[AttrEntityType] = &types.AttributeValueMemberS{Value: EntityTypeSession}

	// Epoch-seconds TTL for DynamoDB's native eviction
	expiry := sess.LastActivity.Add(ttl).Unix()
	item[AttrTTL] = &types.AttributeValueMemberN{Value: strconv.FormatInt(expiry, 10)}

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.tableName),
		Item:      item,
	})
	if err != nil {
		return agentparty.WrapWorkflowError(agentparty.ErrCodeStorage, err, "failed to save session %s", sess.ID)
	}

	return nil
}

func (s *DynamoDBSessionStore) Get(ctx context.Context, sessionID string) (*session.Session, error) {
	result, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]types.AttributeValue{
			AttrPK: &types.AttributeValueMemberS{Value: sessionPK(sessionID)},
			AttrSK: &types.AttributeValueMemberS{Value: sessionSK()},
		},
	})
	if err != nil {
		return nil, agentparty.WrapWorkflowError(agentparty.ErrCodeStorage, err, "failed to load session %s", sessionID)
	}

	if result.Item == nil {
		return nil, nil
	}

	var sess session.Session
	if err := attributevalue.UnmarshalMap(result.Item, &sess); err != nil {
		return nil, agentparty.WrapWorkflowError(agentparty.ErrCodeStorage, err, "failed to unmarshal session")
	}

	return &sess, nil
}

func (s *DynamoDBSessionStore) Delete(ctx context.Context, sessionID string) error {
	_, err := s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]types.AttributeValue{
			AttrPK: &types.AttributeValueMemberS{Value: sessionPK(sessionID)},
			AttrSK: &types.AttributeValueMemberS{Value: sessionSK()},
		},
	})
	if err != nil {
		return agentparty.WrapWorkflowError(agentparty.ErrCodeStorage, err, "failed to delete session %s", sessionID)
	}

	return nil
}

// DeleteExpired is a no-op: DynamoDB evicts items via the ttl attribute
func (s *DynamoDBSessionStore) DeleteExpired(context.Context, time.Duration) (int, error) {
	return 0, nil
}
