package store

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/serroba/shortshare/internal/content"
)

// DynamoAPI is the subset of the DynamoDB client used by DynamoStore.
type DynamoAPI interface {
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(ctx context.Context, in *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	Scan(ctx context.Context, in *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
	DescribeTable(ctx context.Context, in *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error)
	CreateTable(ctx context.Context, in *dynamodb.CreateTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error)
	UpdateTimeToLive(ctx context.Context, in *dynamodb.UpdateTimeToLiveInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateTimeToLiveOutput, error)
}

// DynamoStore is a DynamoDB implementation of content.Repository. The table
// is keyed by the string attribute short_id. expires_at holds Unix
// milliseconds (0 never expires) and ttl the same instant in seconds for
// DynamoDB's TTL sweeper.
type DynamoStore struct {
	client    DynamoAPI
	tableName string
	now       func() time.Time
}

// NewDynamoStore creates a content store over tableName.
func NewDynamoStore(client DynamoAPI, tableName string) *DynamoStore {
	return &DynamoStore{
		client:    client,
		tableName: tableName,
		now:       time.Now,
	}
}

// Migrate creates the table with on-demand billing when it does not exist
// and enables expiry on the ttl attribute.
func (d *DynamoStore) Migrate(ctx context.Context) error {
	const op = "store.DynamoStore.Migrate"

	_, err := d.client.DescribeTable(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(d.tableName)})
	if err == nil {
		return nil
	}

	var notFound *types.ResourceNotFoundException
	if !errors.As(err, &notFound) {
		return fmt.Errorf("%s: %w", op, err)
	}

	_, err = d.client.CreateTable(ctx, &dynamodb.CreateTableInput{
		TableName:   aws.String(d.tableName),
		BillingMode: types.BillingModePayPerRequest,
		AttributeDefinitions: []types.AttributeDefinition{
			{AttributeName: aws.String("short_id"), AttributeType: types.ScalarAttributeTypeS},
		},
		KeySchema: []types.KeySchemaElement{
			{AttributeName: aws.String("short_id"), KeyType: types.KeyTypeHash},
		},
	})

	var inUse *types.ResourceInUseException
	if err != nil && !errors.As(err, &inUse) {
		return fmt.Errorf("%s: %w", op, err)
	}

	_, err = d.client.UpdateTimeToLive(ctx, &dynamodb.UpdateTimeToLiveInput{
		TableName: aws.String(d.tableName),
		TimeToLiveSpecification: &types.TimeToLiveSpecification{
			AttributeName: aws.String("ttl"),
			Enabled:       aws.Bool(true),
		},
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (d *DynamoStore) Insert(ctx context.Context, item *content.Item) error {
	const op = "store.DynamoStore.Insert"

	_, err := d.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(d.tableName),
		Item:                itemToAttributes(item),
		ConditionExpression: aws.String("attribute_not_exists(short_id) OR (expires_at > :zero AND expires_at <= :now)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":zero": numberAttr(0),
			":now":  numberAttr(d.now().UnixMilli()),
		},
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return content.ErrDuplicateKey
		}

		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (d *DynamoStore) FetchAndIncrement(ctx context.Context, id content.ShortID) (*content.Item, error) {
	const op = "store.DynamoStore.FetchAndIncrement"

	out, err := d.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:           aws.String(d.tableName),
		Key:                 keyAttributes(id),
		UpdateExpression:    aws.String("ADD #views :one"),
		ConditionExpression: aws.String("attribute_exists(short_id) AND (expires_at = :zero OR expires_at > :now)"),
		ExpressionAttributeNames: map[string]string{
			"#views": "views",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":one":  numberAttr(1),
			":zero": numberAttr(0),
			":now":  numberAttr(d.now().UnixMilli()),
		},
		ReturnValues: types.ReturnValueAllNew,
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return nil, content.ErrNotFound
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return attributesToItem(out.Attributes)
}

// ListRecent scans the table. It serves the admin listing only and is
// linear in table size.
func (d *DynamoStore) ListRecent(ctx context.Context, limit int) ([]*content.Item, error) {
	const op = "store.DynamoStore.ListRecent"

	var (
		items []*content.Item
		start map[string]types.AttributeValue
	)

	for {
		out, err := d.client.Scan(ctx, &dynamodb.ScanInput{
			TableName:         aws.String(d.tableName),
			FilterExpression:  aws.String("expires_at = :zero OR expires_at > :now"),
			ExclusiveStartKey: start,
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":zero": numberAttr(0),
				":now":  numberAttr(d.now().UnixMilli()),
			},
		})
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}

		for _, attrs := range out.Items {
			item, err := attributesToItem(attrs)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", op, err)
			}

			items = append(items, item)
		}

		if len(out.LastEvaluatedKey) == 0 {
			break
		}

		start = out.LastEvaluatedKey
	}

	slices.SortFunc(items, func(a, b *content.Item) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}

		return compareIDs(a.ShortID, b.ShortID)
	})

	if len(items) > limit {
		items = items[:limit]
	}

	return items, nil
}

func (d *DynamoStore) Exists(ctx context.Context, id content.ShortID) (bool, error) {
	out, err := d.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:            aws.String(d.tableName),
		Key:                  keyAttributes(id),
		ConsistentRead:       aws.Bool(true),
		ProjectionExpression: aws.String("short_id, expires_at"),
	})
	if err != nil {
		return false, fmt.Errorf("store.DynamoStore.Exists: %w", err)
	}

	if out.Item == nil {
		return false, nil
	}

	expires := numberValue(out.Item["expires_at"])

	return expires == 0 || expires > d.now().UnixMilli(), nil
}

func (d *DynamoStore) Ping(ctx context.Context) error {
	_, err := d.client.DescribeTable(ctx, &dynamodb.DescribeTableInput{
		TableName: aws.String(d.tableName),
	})

	return err
}

func keyAttributes(id content.ShortID) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"short_id": &types.AttributeValueMemberS{Value: string(id)},
	}
}

func itemToAttributes(item *content.Item) map[string]types.AttributeValue {
	attrs := map[string]types.AttributeValue{
		"short_id":   &types.AttributeValueMemberS{Value: string(item.ShortID)},
		"kind":       &types.AttributeValueMemberS{Value: string(item.Kind)},
		"content":    &types.AttributeValueMemberS{Value: item.Content},
		"created_at": numberAttr(item.CreatedAt.UnixMilli()),
		"expires_at": numberAttr(unixMilliOrZero(item.ExpiresAt)),
		"views":      numberAttr(item.Views),
	}

	// Empty strings are legal for non-key attributes but carry no information.
	if item.Language != "" {
		attrs["language"] = &types.AttributeValueMemberS{Value: item.Language}
	}

	if item.FilePath != "" {
		attrs["file_path"] = &types.AttributeValueMemberS{Value: item.FilePath}
	}

	if !item.ExpiresAt.IsZero() {
		attrs["ttl"] = numberAttr(item.ExpiresAt.Unix())
	}

	return attrs
}

func attributesToItem(attrs map[string]types.AttributeValue) (*content.Item, error) {
	id, ok := attrs["short_id"].(*types.AttributeValueMemberS)
	if !ok {
		return nil, errors.New("item has no short_id")
	}

	item := &content.Item{
		ShortID:   content.ShortID(id.Value),
		Kind:      content.Kind(stringValue(attrs["kind"])),
		Content:   stringValue(attrs["content"]),
		Language:  stringValue(attrs["language"]),
		FilePath:  stringValue(attrs["file_path"]),
		CreatedAt: time.UnixMilli(numberValue(attrs["created_at"])).UTC(),
		Views:     numberValue(attrs["views"]),
	}

	if expires := numberValue(attrs["expires_at"]); expires > 0 {
		item.ExpiresAt = time.UnixMilli(expires).UTC()
	}

	return item, nil
}

func numberAttr(n int64) *types.AttributeValueMemberN {
	return &types.AttributeValueMemberN{Value: strconv.FormatInt(n, 10)}
}

func numberValue(av types.AttributeValue) int64 {
	n, ok := av.(*types.AttributeValueMemberN)
	if !ok {
		return 0
	}

	v, err := strconv.ParseInt(n.Value, 10, 64)
	if err != nil {
		return 0
	}

	return v
}

func stringValue(av types.AttributeValue) string {
	if s, ok := av.(*types.AttributeValueMemberS); ok {
		return s.Value
	}

	return ""
}
