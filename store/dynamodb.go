package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"
	"github.com/sicko7947/agentparty"
)

// DynamoDBStore implements agentparty.WorkflowStore using AWS DynamoDB
type DynamoDBStore struct {
	client    DynamoDBClient
	tableName string
}

// NewDynamoDBStore creates a new DynamoDB-backed workflow store
func NewDynamoDBStore(client DynamoDBClient, tableName string) agentparty.WorkflowStore {
	return &DynamoDBStore{
		client:    client,
		tableName: tableName,
	}
}

// Active workflow operations

func (s *DynamoDBStore) SaveWorkflow(ctx context.Context, userID string, state *agentparty.WorkflowState) error {
	state.UpdatedAt = time.Now().UTC()

	// Marshal the state
	item, err := attributevalue.MarshalMap(state)
	if err != nil {
		return agentparty.WrapWorkflowError(agentparty.ErrCodeStorage, err, "failed to marshal workflow state")
	}

	// Add keys
	item[AttrPK] = &types.AttributeValueMemberS{Value: userPK(userID)}
	item[AttrSK] = &types.AttributeValueMemberS{Value: workflowSK()}
	item[AttrEntityType] = &types.AttributeValueMemberS{Value: EntityTypeWorkflow}

	// Step statuses and step data are stored as JSON text so the
	// insertion order of step_statuses survives the round-trip.
	statuses, err := json.Marshal(state.StepStatuses)
	if err != nil {
		return agentparty.WrapWorkflowError(agentparty.ErrCodeStorage, err, "failed to marshal step statuses")
	}
	item[AttrStepStatuses] = &types.AttributeValueMemberS{Value: string(statuses)}

	if len(state.StepData) > 0 {
		data, err := json.Marshal(state.StepData)
		if err != nil {
			return agentparty.WrapWorkflowError(agentparty.ErrCodeStorage, err, "failed to marshal step data")
		}
		item[AttrStepData] = &types.AttributeValueMemberS{Value: string(data)}
	}

	// Put item (replaces any existing record for the user)
	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.tableName),
		Item:      item,
	})
	if err != nil {
		return agentparty.WrapWorkflowError(agentparty.ErrCodeStorage, err, "failed to save workflow for user %s", userID)
	}

	return nil
}

func (s *DynamoDBStore) LoadWorkflow(ctx context.Context, userID string) (*agentparty.WorkflowState, error) {
	result, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]types.AttributeValue{
			AttrPK: &types.AttributeValueMemberS{Value: userPK(userID)},
			AttrSK: &types.AttributeValueMemberS{Value: workflowSK()},
		},
	})
	if err != nil {
		return nil, agentparty.WrapWorkflowError(agentparty.ErrCodeStorage, err, "failed to load workflow for user %s", userID)
	}

	// Absence is not an error: callers distinguish "no active workflow"
	// from storage failures.
	if result.Item == nil {
		return nil, nil
	}

	var state agentparty.WorkflowState
	if err := attributevalue.UnmarshalMap(result.Item, &state); err != nil {
		return nil, agentparty.WrapWorkflowError(agentparty.ErrCodeStorage, err, "failed to unmarshal workflow state")
	}

	state.StepStatuses = agentparty.NewStatusMap()
	if attr, ok := result.Item[AttrStepStatuses].(*types.AttributeValueMemberS); ok {
		if err := json.Unmarshal([]byte(attr.Value), state.StepStatuses); err != nil {
			return nil, agentparty.WrapWorkflowError(agentparty.ErrCodeStorage, err, "failed to unmarshal step statuses")
		}
	}

	state.StepData = make(map[string]agentparty.StepData)
	if attr, ok := result.Item[AttrStepData].(*types.AttributeValueMemberS); ok {
		if err := json.Unmarshal([]byte(attr.Value), &state.StepData); err != nil {
			return nil, agentparty.WrapWorkflowError(agentparty.ErrCodeStorage, err, "failed to unmarshal step data")
		}
	}

	return &state, nil
}

func (s *DynamoDBStore) DeleteWorkflow(ctx context.Context, userID string) error {
	_, err := s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]types.AttributeValue{
			AttrPK: &types.AttributeValueMemberS{Value: userPK(userID)},
			AttrSK: &types.AttributeValueMemberS{Value: workflowSK()},
		},
	})
	if err != nil {
		return agentparty.WrapWorkflowError(agentparty.ErrCodeStorage, err, "failed to delete workflow for user %s", userID)
	}

	return nil
}

// History operations

func (s *DynamoDBStore) AppendHistory(ctx context.Context, entry *agentparty.HistoryEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	item, err := attributevalue.MarshalMap(entry)
	if err != nil {
		return agentparty.WrapWorkflowError(agentparty.ErrCodeStorage, err, "failed to marshal history entry")
	}

	item[AttrPK] = &types.AttributeValueMemberS{Value: userPK(entry.UserID)}
	item[AttrSK] = &types.AttributeValueMemberS{Value: historySK(entry.CreatedAt, entry.ID)}
	item[AttrEntityType] = &types.AttributeValueMemberS{Value: EntityTypeHistory}

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.tableName),
		Item:      item,
	})
	if err != nil {
		return agentparty.WrapWorkflowError(agentparty.ErrCodeStorage, err, "failed to append history for user %s", entry.UserID)
	}

	return nil
}

func (s *DynamoDBStore) ListHistory(ctx context.Context, userID string, limit int) ([]*agentparty.HistoryEntry, error) {
	var entries []*agentparty.HistoryEntry
	var lastEvaluatedKey map[string]types.AttributeValue

	// Paginate until exhausted or the limit is reached
	for {
		queryInput := &dynamodb.QueryInput{
			TableName:              aws.String(s.tableName),
			KeyConditionExpression: aws.String("PK = :pk AND begins_with(SK, :sk)"),
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":pk": &types.AttributeValueMemberS{Value: userPK(userID)},
				":sk": &types.AttributeValueMemberS{Value: historyPrefix()},
			},
		}
		if limit > 0 {
			queryInput.Limit = aws.Int32(int32(limit - len(entries)))
		}

		if lastEvaluatedKey != nil {
			queryInput.ExclusiveStartKey = lastEvaluatedKey
		}

		result, err := s.client.Query(ctx, queryInput)
		if err != nil {
			return nil, agentparty.WrapWorkflowError(agentparty.ErrCodeStorage, err, "failed to list history for user %s", userID)
		}

		for _, item := range result.Items {
			var entry agentparty.HistoryEntry
			if err := attributevalue.UnmarshalMap(item, &entry); err != nil {
				return nil, agentparty.WrapWorkflowError(agentparty.ErrCodeStorage, err, "failed to unmarshal history entry")
			}
			entries = append(entries, &entry)
		}

		if limit > 0 && len(entries) >= limit {
			return entries[:limit], nil
		}

		// Check if there are more results
		if result.LastEvaluatedKey == nil {
			break
		}
		lastEvaluatedKey = result.LastEvaluatedKey
	}

	return entries, nil
}
