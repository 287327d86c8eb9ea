// Package dynamo keeps cancellation status records in a DynamoDB table and
// answers access checks from an access table (or one of its indexes).
package dynamo

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/rs/zerolog"

	"github.com/fiscaldocs/dce-cancel/internal/models"
)

// Default attribute names of the access table.
const (
	DefaultAccessKeyAttribute = "accessKey"
	DefaultClientIDAttribute  = "clientId"
)

// API is the subset of the DynamoDB client used by Store.
type API interface {
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
}

// Config names the tables and key attributes.
type Config struct {
	TableName    string
	PartitionKey string
	SortKey      string

	AccessTableName    string
	AccessIndexName    string
	AccessKeyAttribute string
	ClientIDAttribute  string
}

// Store implements dispatch.StatusStore and access.AccessChecker.
type Store struct {
	client API
	cfg    Config
	logger zerolog.Logger
}

// New constructs a Store, filling default attribute names.
func New(client API, cfg Config, logger zerolog.Logger) (*Store, error) {
	if client == nil {
		return nil, errors.New("dynamo store: client is required")
	}
	if cfg.TableName == "" {
		return nil, errors.New("dynamo store: table name is required")
	}
	if cfg.PartitionKey == "" {
		cfg.PartitionKey = "pk"
	}
	if cfg.SortKey == "" {
		cfg.SortKey = "sk"
	}
	if cfg.AccessKeyAttribute == "" {
		cfg.AccessKeyAttribute = DefaultAccessKeyAttribute
	}
	if cfg.ClientIDAttribute == "" {
		cfg.ClientIDAttribute = DefaultClientIDAttribute
	}
	if reflect.ValueOf(logger).IsZero() {
		logger = zerolog.Nop()
	}
	return &Store{client: client, cfg: cfg, logger: logger}, nil
}

// Upsert implements dispatch.StatusStore with an UpdateItem that overwrites
// every status attribute of the document's LATEST item.
func (s *Store) Upsert(ctx context.Context, rec models.StatusRecord) error {
	update := expression.
		Set(expression.Name("status"), expression.Value(rec.Status)).
		Set(expression.Name("correlationId"), expression.Value(rec.CorrelationID)).
		Set(expression.Name("eventCode"), expression.Value(rec.EventCode)).
		Set(expression.Name("updatedAt"), expression.Value(formatTime(rec.UpdatedAt))).
		Set(expression.Name("eventTimestamp"), expression.Value(formatTime(rec.EventTimestamp))).
		Set(expression.Name("requestedAt"), expression.Value(formatTime(rec.RequestedAt))).
		Set(expression.Name("cancellationReason"), expression.Value(rec.CancellationReason)).
		Set(expression.Name("operationStatus"), expression.Value(rec.OperationStatus)).
		Set(expression.Name("clientId"), expression.Value(rec.ClientID))

	expr, err := expression.NewBuilder().WithUpdate(update).Build()
	if err != nil {
		return fmt.Errorf("dynamo store: build update: %w", err)
	}

	_, err = s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(s.cfg.TableName),
		Key:                       s.key(rec.DocumentID),
		UpdateExpression:          expr.Update(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})
	if err != nil {
		return fmt.Errorf("dynamo store: update item: %w", err)
	}
	return nil
}

// Get returns the live status record of documentID.
func (s *Store) Get(ctx context.Context, documentID string) (models.StatusRecord, bool, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.cfg.TableName),
		Key:       s.key(documentID),
	})
	if err != nil {
		return models.StatusRecord{}, false, fmt.Errorf("dynamo store: get item: %w", err)
	}
	if out == nil || len(out.Item) == 0 {
		return models.StatusRecord{}, false, nil
	}

	var rec models.StatusRecord
	if err := attributevalue.UnmarshalMap(out.Item, &rec); err != nil {
		return models.StatusRecord{}, false, fmt.Errorf("dynamo store: decode item: %w", err)
	}
	rec.DocumentID = documentID
	return rec, true, nil
}

// HasAccess implements access.AccessChecker. The client filter is applied
// after the key condition, so pages are read until a match or the end.
func (s *Store) HasAccess(ctx context.Context, accessKey, clientID string) (bool, error) {
	if s.cfg.AccessTableName == "" {
		return false, errors.New("dynamo store: access table is not configured")
	}

	keyCond := expression.Key(s.cfg.AccessKeyAttribute).Equal(expression.Value(accessKey))
	filter := expression.Name(s.cfg.ClientIDAttribute).Equal(expression.Value(clientID))
	expr, err := expression.NewBuilder().
		WithKeyCondition(keyCond).
		WithFilter(filter).
		WithProjection(expression.NamesList(expression.Name(s.cfg.AccessKeyAttribute))).
		Build()
	if err != nil {
		return false, fmt.Errorf("dynamo store: build query: %w", err)
	}

	input := &dynamodb.QueryInput{
		TableName:                 aws.String(s.cfg.AccessTableName),
		KeyConditionExpression:    expr.KeyCondition(),
		FilterExpression:          expr.Filter(),
		ProjectionExpression:      expr.Projection(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	}
	if s.cfg.AccessIndexName != "" {
		input.IndexName = aws.String(s.cfg.AccessIndexName)
	}

	pages := dynamodb.NewQueryPaginator(s.client, input)
	for pages.HasMorePages() {
		page, err := pages.NextPage(ctx)
		if err != nil {
			return false, fmt.Errorf("dynamo store: query access: %w", err)
		}
		if page.Count > 0 {
			return true, nil
		}
	}
	s.logger.Debug().Str("accessKey", accessKey).Str("clientId", clientID).Msg("no access record found")
	return false, nil
}

func (s *Store) key(documentID string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		s.cfg.PartitionKey: &types.AttributeValueMemberS{Value: models.PartitionKeyFor(documentID)},
		s.cfg.SortKey:      &types.AttributeValueMemberS{Value: models.SortKeyLatest},
	}
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
