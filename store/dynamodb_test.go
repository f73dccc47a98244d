package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/sicko7947/agentparty"
)

// mockDynamoDBClient implements DynamoDBClient interface for testing
type mockDynamoDBClient struct {
	putItemFunc    func(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	getItemFunc    func(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	queryFunc      func(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	deleteItemFunc func(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
}

func (m *mockDynamoDBClient) PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	if m.putItemFunc != nil {
		return m.putItemFunc(ctx, params, optFns...)
	}
	return &dynamodb.PutItemOutput{}, nil
}

func (m *mockDynamoDBClient) GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	if m.getItemFunc != nil {
		return m.getItemFunc(ctx, params, optFns...)
	}
	return &dynamodb.GetItemOutput{}, nil
}

func (m *mockDynamoDBClient) Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	if m.queryFunc != nil {
		return m.queryFunc(ctx, params, optFns...)
	}
	return &dynamodb.QueryOutput{}, nil
}

func (m *mockDynamoDBClient) DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	if m.deleteItemFunc != nil {
		return m.deleteItemFunc(ctx, params, optFns...)
	}
	return &dynamodb.DeleteItemOutput{}, nil
}

func TestNewDynamoDBStore(t *testing.T) {
	client := &mockDynamoDBClient{}
	store := NewDynamoDBStore(client, "test-table")

	if store == nil {
		t.Fatal("NewDynamoDBStore() returned nil")
	}

	// Verify it implements the interface
	var _ agentparty.WorkflowStore = store
}

func TestDynamoDBStore_SaveWorkflow(t *testing.T) {
	var capturedInput *dynamodb.PutItemInput

	client := &mockDynamoDBClient{
		putItemFunc: func(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
			capturedInput = params
			return &dynamodb.PutItemOutput{}, nil
		},
	}

	store := NewDynamoDBStore(client, "test-table")
	ctx := context.Background()

	state := agentparty.NewWorkflowState("user-1", "feature-dev", "job-1")
	state.CurrentStep = "implement"
	state.SetStepStatus("implement", agentparty.StepStatusInProgress)
	state.SetStepStatus("document", agentparty.StepStatusPending)

	err := store.SaveWorkflow(ctx, "user-1", state)
	if err != nil {
		t.Fatalf("SaveWorkflow() failed: %v", err)
	}

	if capturedInput == nil {
		t.Fatal("PutItem was not called")
	}

	if *capturedInput.TableName != "test-table" {
		t.Errorf("TableName = %s, want test-table", *capturedInput.TableName)
	}

	// Check PK
	pk, ok := capturedInput.Item[AttrPK]
	if !ok {
		t.Fatal("PK not set")
	}
	if got := pk.(*types.AttributeValueMemberS).Value; got != "USER#user-1" {
		t.Errorf("PK = %s, want USER#user-1", got)
	}

	// Check SK
	sk, ok := capturedInput.Item[AttrSK]
	if !ok {
		t.Fatal("SK not set")
	}
	if got := sk.(*types.AttributeValueMemberS).Value; got != "WORKFLOW" {
		t.Errorf("SK = %s, want WORKFLOW", got)
	}

	// Step statuses must be serialized as ordered JSON text
	statuses, ok := capturedInput.Item[AttrStepStatuses]
	if !ok {
		t.Fatal("step_statuses not set")
	}
	want := `{"implement":"in_progress","document":"pending"}`
	if got := statuses.(*types.AttributeValueMemberS).Value; got != want {
		t.Errorf("step_statuses = %s, want %s", got, want)
	}
}

func TestDynamoDBStore_SaveWorkflow_Error(t *testing.T) {
	client := &mockDynamoDBClient{
		putItemFunc: func(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
			return nil, errors.New("throttled")
		},
	}

	store := NewDynamoDBStore(client, "test-table")
	state := agentparty.NewWorkflowState("user-1", "feature-dev", "job-1")

	err := store.SaveWorkflow(context.Background(), "user-1", state)
	if err == nil {
		t.Fatal("SaveWorkflow() expected error, got nil")
	}
	if !agentparty.IsCode(err, agentparty.ErrCodeStorage) {
		t.Errorf("error code = %s, want STORAGE_ERROR", agentparty.ErrorCode(err))
	}
}

func TestDynamoDBStore_LoadWorkflow_RoundTrip(t *testing.T) {
	var savedItem map[string]types.AttributeValue

	client := &mockDynamoDBClient{
		putItemFunc: func(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
			savedItem = params.Item
			return &dynamodb.PutItemOutput{}, nil
		},
		getItemFunc: func(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
			return &dynamodb.GetItemOutput{Item: savedItem}, nil
		},
	}

	store := NewDynamoDBStore(client, "test-table")
	ctx := context.Background()

	state := agentparty.NewWorkflowState("user-1", "feature-dev", "job-1")
	state.CurrentStep = "implement"
	state.SetStepStatus("implement", agentparty.StepStatusAwaitingApproval)
	state.SetStepStatus("document", agentparty.StepStatusPending)
	state.StoreStepData("implement", agentparty.StepData{
		WorkDescription: "implemented the parser",
		Artifacts:       []string{"parser.go"},
		SubmittedAt:     time.Now().UTC().Truncate(time.Second),
	})

	if err := store.SaveWorkflow(ctx, "user-1", state); err != nil {
		t.Fatalf("SaveWorkflow() failed: %v", err)
	}

	loaded, err := store.LoadWorkflow(ctx, "user-1")
	if err != nil {
		t.Fatalf("LoadWorkflow() failed: %v", err)
	}
	if loaded == nil {
		t.Fatal("LoadWorkflow() returned nil state")
	}

	if loaded.UserID != "user-1" || loaded.WorkflowID != "feature-dev" || loaded.JobID != "job-1" {
		t.Errorf("identity fields not preserved: %+v", loaded)
	}
	if loaded.CurrentStep != "implement" {
		t.Errorf("CurrentStep = %s, want implement", loaded.CurrentStep)
	}
	if got := loaded.StepStatusFor("implement"); got != agentparty.StepStatusAwaitingApproval {
		t.Errorf("implement status = %s, want awaiting_approval", got)
	}
	if got := loaded.StepStatuses.Steps(); len(got) != 2 || got[0] != "implement" || got[1] != "document" {
		t.Errorf("step order not preserved: %v", got)
	}
	data, ok := loaded.StepDataFor("implement")
	if !ok {
		t.Fatal("step data for implement missing")
	}
	if data.WorkDescription != "implemented the parser" {
		t.Errorf("WorkDescription = %s", data.WorkDescription)
	}
}

func TestDynamoDBStore_LoadWorkflow_NotFound(t *testing.T) {
	client := &mockDynamoDBClient{
		getItemFunc: func(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
			return &dynamodb.GetItemOutput{Item: nil}, nil
		},
	}

	store := NewDynamoDBStore(client, "test-table")

	state, err := store.LoadWorkflow(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("LoadWorkflow() failed: %v", err)
	}
	if state != nil {
		t.Errorf("LoadWorkflow() = %+v, want nil for absent record", state)
	}
}

func TestDynamoDBStore_DeleteWorkflow(t *testing.T) {
	var capturedInput *dynamodb.DeleteItemInput

	client := &mockDynamoDBClient{
		deleteItemFunc: func(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
			capturedInput = params
			return &dynamodb.DeleteItemOutput{}, nil
		},
	}

	store := NewDynamoDBStore(client, "test-table")

	if err := store.DeleteWorkflow(context.Background(), "user-1"); err != nil {
		t.Fatalf("DeleteWorkflow() failed: %v", err)
	}

	if capturedInput == nil {
		t.Fatal("DeleteItem was not called")
	}
	pk := capturedInput.Key[AttrPK].(*types.AttributeValueMemberS).Value
	if pk != "USER#user-1" {
		t.Errorf("PK = %s, want USER#user-1", pk)
	}
}

func TestDynamoDBStore_AppendHistory(t *testing.T) {
	var capturedInput *dynamodb.PutItemInput

	client := &mockDynamoDBClient{
		putItemFunc: func(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
			capturedInput = params
			return &dynamodb.PutItemOutput{}, nil
		},
	}

	store := NewDynamoDBStore(client, "test-table")

	entry := &agentparty.HistoryEntry{
		UserID:     "user-1",
		WorkflowID: "feature-dev",
		JobID:      "job-1",
		StepID:     "implement",
		Agent:      "programmer",
		Status:     agentparty.StepStatusCompleted,
	}

	if err := store.AppendHistory(context.Background(), entry); err != nil {
		t.Fatalf("AppendHistory() failed: %v", err)
	}

	// ID and CreatedAt are assigned when missing
	if entry.ID == "" {
		t.Error("entry ID was not assigned")
	}
	if entry.CreatedAt.IsZero() {
		t.Error("entry CreatedAt was not assigned")
	}

	if capturedInput == nil {
		t.Fatal("PutItem was not called")
	}
	sk := capturedInput.Item[AttrSK].(*types.AttributeValueMemberS).Value
	wantPrefix := "HIST#"
	if len(sk) < len(wantPrefix) || sk[:len(wantPrefix)] != wantPrefix {
		t.Errorf("SK = %s, want HIST# prefix", sk)
	}
}

func TestDynamoDBStore_ListHistory_Paginates(t *testing.T) {
	entry := &agentparty.HistoryEntry{
		ID:         "h1",
		UserID:     "user-1",
		WorkflowID: "feature-dev",
		StepID:     "implement",
		Status:     agentparty.StepStatusCompleted,
		CreatedAt:  time.Now().UTC(),
	}

	var firstItem map[string]types.AttributeValue
	putClient := &mockDynamoDBClient{
		putItemFunc: func(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
			firstItem = params.Item
			return &dynamodb.PutItemOutput{}, nil
		},
	}
	if err := NewDynamoDBStore(putClient, "test-table").AppendHistory(context.Background(), entry); err != nil {
		t.Fatalf("AppendHistory() failed: %v", err)
	}

	calls := 0
	client := &mockDynamoDBClient{
		queryFunc: func(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
			calls++
			if calls == 1 {
				return &dynamodb.QueryOutput{
					Items:            []map[string]types.AttributeValue{firstItem},
					LastEvaluatedKey: map[string]types.AttributeValue{AttrPK: &types.AttributeValueMemberS{Value: "USER#user-1"}},
				}, nil
			}
			return &dynamodb.QueryOutput{
				Items: []map[string]types.AttributeValue{firstItem},
			}, nil
		},
	}

	store := NewDynamoDBStore(client, "test-table")

	entries, err := store.ListHistory(context.Background(), "user-1", 0)
	if err != nil {
		t.Fatalf("ListHistory() failed: %v", err)
	}
	if calls != 2 {
		t.Errorf("Query calls = %d, want 2", calls)
	}
	if len(entries) != 2 {
		t.Fatalf("entries = %d, want 2", len(entries))
	}
	if entries[0].StepID != "implement" {
		t.Errorf("StepID = %s, want implement", entries[0].StepID)
	}
}

func TestDynamoDBStore_ListHistory_Limit(t *testing.T) {
	entry := &agentparty.HistoryEntry{
		ID:        "h1",
		UserID:    "user-1",
		StepID:    "implement",
		Status:    agentparty.StepStatusCompleted,
		CreatedAt: time.Now().UTC(),
	}

	var item map[string]types.AttributeValue
	putClient := &mockDynamoDBClient{
		putItemFunc: func(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
			item = params.Item
			return &dynamodb.PutItemOutput{}, nil
		},
	}
	if err := NewDynamoDBStore(putClient, "test-table").AppendHistory(context.Background(), entry); err != nil {
		t.Fatalf("AppendHistory() failed: %v", err)
	}

	calls := 0
	var capturedLimit *int32
	client := &mockDynamoDBClient{
		queryFunc: func(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
			calls++
			capturedLimit = params.Limit
			return &dynamodb.QueryOutput{
				Items:            []map[string]types.AttributeValue{item},
				LastEvaluatedKey: map[string]types.AttributeValue{AttrPK: &types.AttributeValueMemberS{Value: "USER#user-1"}},
			}, nil
		},
	}

	store := NewDynamoDBStore(client, "test-table")

	entries, err := store.ListHistory(context.Background(), "user-1", 1)
	if err != nil {
		t.Fatalf("ListHistory() failed: %v", err)
	}
	// The limit stops pagination even though more pages exist
	if calls != 1 {
		t.Errorf("Query calls = %d, want 1", calls)
	}
	if len(entries) != 1 {
		t.Fatalf("entries = %d, want 1", len(entries))
	}
	if capturedLimit == nil || *capturedLimit != 1 {
		t.Errorf("query Limit = %v, want 1", capturedLimit)
	}
}
