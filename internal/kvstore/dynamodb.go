package kvstore

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/rs/zerolog"

	"github.com/rzpsarthak13/recordshift/internal/core"
	"github.com/rzpsarthak13/recordshift/internal/logger"
	"github.com/rzpsarthak13/recordshift/internal/registry"
)

// dynamoAPI is the subset of the DynamoDB client used by the store.
type dynamoAPI interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
}

// dynamoItem is one attribute of one record. The table is keyed by
// record_id (partition, N) and attr_key (sort, S).
type dynamoItem struct {
	RecordID int64  `dynamodbav:"record_id"`
	Key      string `dynamodbav:"attr_key"`
	Value    string `dynamodbav:"attr_value"`
}

// DynamoDBAttributeStore implements core.AttributeStore using AWS DynamoDB.
type DynamoDBAttributeStore struct {
	client    dynamoAPI
	tableName string
	log       zerolog.Logger
	closed    bool
}

// NewDynamoDBAttributeStore loads AWS configuration, connects, and checks the table exists.
func NewDynamoDBAttributeStore(cfg registry.InternalDynamoDBConfig, log zerolog.Logger) (*DynamoDBAttributeStore, error) {
	if cfg.Region == "" {
		return nil, fmt.Errorf("region is required")
	}
	if cfg.TableName == "" {
		return nil, fmt.Errorf("table name is required")
	}

	awsCfg, err := config.LoadDefaultConfig(context.Background(), config.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		awsCfg.Credentials = credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")
	}

	var clientOptions []func(*dynamodb.Options)
	if cfg.Endpoint != "" {
		// Custom endpoint (e.g., for LocalStack)
		clientOptions = append(clientOptions, func(o *dynamodb.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		})
	}
	client := dynamodb.NewFromConfig(awsCfg, clientOptions...)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if _, err := client.DescribeTable(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(cfg.TableName)}); err != nil {
		return nil, fmt.Errorf("failed to connect to DynamoDB table %s: %w", cfg.TableName, err)
	}

	return newDynamoDBAttributeStore(client, cfg.TableName, log), nil
}

func newDynamoDBAttributeStore(client dynamoAPI, tableName string, log zerolog.Logger) *DynamoDBAttributeStore {
	return &DynamoDBAttributeStore{
		client:    client,
		tableName: tableName,
		log:       logger.Component(log, "dynamodb"),
	}
}

func itemKey(recordID int64, key string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"record_id": &types.AttributeValueMemberN{Value: strconv.FormatInt(recordID, 10)},
		"attr_key":  &types.AttributeValueMemberS{Value: key},
	}
}

// GetAll queries the record's partition, following pagination.
func (d *DynamoDBAttributeStore) GetAll(ctx context.Context, recordID int64) (map[string]string, error) {
	if d.closed {
		return nil, fmt.Errorf("attribute store is closed")
	}

	input := &dynamodb.QueryInput{
		TableName:              aws.String(d.tableName),
		KeyConditionExpression: aws.String("record_id = :rid"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":rid": &types.AttributeValueMemberN{Value: strconv.FormatInt(recordID, 10)},
		},
	}

	attrs := make(map[string]string)
	paginator := dynamodb.NewQueryPaginator(d.client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			d.log.Error().Err(err).Int64("record_id", recordID).Msg("query failed")
			return nil, fmt.Errorf("failed to load attributes of record %d: %w", recordID, err)
		}
		var items []dynamoItem
		if err := attributevalue.UnmarshalListOfMaps(page.Items, &items); err != nil {
			return nil, fmt.Errorf("failed to decode attributes of record %d: %w", recordID, err)
		}
		for _, item := range items {
			attrs[item.Key] = item.Value
		}
	}
	return attrs, nil
}

// Get returns one attribute.
func (d *DynamoDBAttributeStore) Get(ctx context.Context, recordID int64, key string) (string, bool, error) {
	if d.closed {
		return "", false, fmt.Errorf("attribute store is closed")
	}

	out, err := d.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(d.tableName),
		Key:       itemKey(recordID, key),
	})
	if err != nil {
		return "", false, fmt.Errorf("failed to get attribute %s of record %d: %w", key, recordID, err)
	}
	if out.Item == nil {
		return "", false, nil
	}
	var item dynamoItem
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return "", false, fmt.Errorf("failed to decode attribute %s of record %d: %w", key, recordID, err)
	}
	return item.Value, true, nil
}

// Set creates or replaces an attribute.
func (d *DynamoDBAttributeStore) Set(ctx context.Context, recordID int64, key, value string) error {
	if d.closed {
		return fmt.Errorf("attribute store is closed")
	}

	item, err := attributevalue.MarshalMap(dynamoItem{RecordID: recordID, Key: key, Value: value})
	if err != nil {
		return fmt.Errorf("failed to encode attribute %s of record %d: %w", key, recordID, err)
	}
	if _, err := d.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(d.tableName),
		Item:      item,
	}); err != nil {
		d.log.Error().Err(err).Int64("record_id", recordID).Str("key", key).Msg("put failed")
		return fmt.Errorf("failed to set attribute %s of record %d: %w", key, recordID, err)
	}
	return nil
}

// Delete removes an attribute and reports whether it existed.
func (d *DynamoDBAttributeStore) Delete(ctx context.Context, recordID int64, key string) (bool, error) {
	if d.closed {
		return false, fmt.Errorf("attribute store is closed")
	}

	out, err := d.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName:    aws.String(d.tableName),
		Key:          itemKey(recordID, key),
		ReturnValues: types.ReturnValueAllOld,
	})
	if err != nil {
		return false, fmt.Errorf("failed to delete attribute %s of record %d: %w", key, recordID, err)
	}
	return len(out.Attributes) > 0, nil
}

// Close marks the store closed. The DynamoDB client holds no connection.
func (d *DynamoDBAttributeStore) Close() error {
	d.closed = true
	return nil
}

// DynamoDBAttributeStoreFactory implements AttributeStoreFactory for DynamoDB.
type DynamoDBAttributeStoreFactory struct{}

// Type returns the type identifier for this factory.
func (f *DynamoDBAttributeStoreFactory) Type() string {
	return "dynamodb"
}

// Validate validates the DynamoDB-specific configuration.
func (f *DynamoDBAttributeStoreFactory) Validate(config registry.InternalAttributeStoreConfig) error {
	if config.DynamoDBConfig.Region == "" {
		return fmt.Errorf("region is required for DynamoDB")
	}
	if config.DynamoDBConfig.TableName == "" {
		return fmt.Errorf("table_name is required for DynamoDB")
	}
	return validateTimeouts(config)
}

// Create creates a new DynamoDB attribute store.
func (f *DynamoDBAttributeStoreFactory) Create(config registry.InternalAttributeStoreConfig, deps Dependencies) (core.AttributeStore, error) {
	store, err := NewDynamoDBAttributeStore(config.DynamoDBConfig, deps.Logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create DynamoDB attribute store: %w", err)
	}
	return store, nil
}

func init() {
	register(&DynamoDBAttributeStoreFactory{})
}
