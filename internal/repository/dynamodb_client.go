package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"commerce-agent/internal/domain"
)

const (
	skConversation = "CONV#"
	skCart         = "CART#"
	cartTTL        = 72 * time.Hour
)

// dynamodbAPI is the minimal DynamoDB interface required by Client.
// Defined here for testability.
type dynamodbAPI interface {
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	Scan(ctx context.Context, in *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
}

// Client wraps a DynamoDB table holding conversation and cart documents.
// Conversations carry a version attribute; writes are conditioned on it so
// concurrent transitions for one customer cannot silently overwrite each
// other.
type Client struct {
	api       dynamodbAPI
	tableName string
}

// New creates a repository Client.
func New(api dynamodbAPI, tableName string) (*Client, error) {
	if api == nil {
		return nil, errors.New("repository: api must not be nil")
	}
	if strings.TrimSpace(tableName) == "" {
		return nil, errors.New("repository: table name must not be empty")
	}
	return &Client{api: api, tableName: tableName}, nil
}

// custPK returns the DynamoDB partition key for a customer.
func custPK(customerID string) string {
	return "CUST#" + customerID
}

// Load reads the conversation for a customer. Returns nil when none exists.
func (c *Client) Load(ctx context.Context, customerID string) (*domain.Conversation, error) {
	out, err := c.api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(c.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: custPK(customerID)},
			"SK": &types.AttributeValueMemberS{Value: skConversation},
		},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("repository: Load get item: %w", err)
	}
	if out == nil || len(out.Item) == 0 {
		return nil, nil
	}

	doc, err := strAttr(out.Item, "doc")
	if err != nil {
		return nil, fmt.Errorf("repository: Load: %w", err)
	}
	var conv domain.Conversation
	if err := json.Unmarshal([]byte(doc), &conv); err != nil {
		return nil, fmt.Errorf("repository: Load unmarshal: %w", err)
	}
	version, err := intAttr(out.Item, "version")
	if err != nil {
		return nil, fmt.Errorf("repository: Load decode version: %w", err)
	}
	conv.Version = int64(version)
	return &conv, nil
}

// CompareAndSwap writes the conversation only if the stored version still
// equals expectedVersion (zero means the row must not exist yet). On success
// the stored and in-memory version become expectedVersion+1. Returns false
// without error when a concurrent writer got there first.
func (c *Client) CompareAndSwap(ctx context.Context, conv *domain.Conversation, expectedVersion int64) (bool, error) {
	if conv == nil {
		return false, errors.New("repository: CompareAndSwap: conversation must not be nil")
	}
	conv.Version = expectedVersion + 1
	doc, err := json.Marshal(conv)
	if err != nil {
		return false, fmt.Errorf("repository: CompareAndSwap marshal: %w", err)
	}

	in := &dynamodb.PutItemInput{
		TableName: aws.String(c.tableName),
		Item: map[string]types.AttributeValue{
			"PK":                &types.AttributeValueMemberS{Value: custPK(conv.CustomerID)},
			"SK":                &types.AttributeValueMemberS{Value: skConversation},
			"doc":               &types.AttributeValueMemberS{Value: string(doc)},
			"state":             &types.AttributeValueMemberS{Value: string(conv.CurrentState)},
			"version":           &types.AttributeValueMemberN{Value: strconv.FormatInt(conv.Version, 10)},
			"lastActivityEpoch": &types.AttributeValueMemberN{Value: strconv.FormatInt(conv.LastActivity.Unix(), 10)},
		},
	}
	if expectedVersion == 0 {
		in.ConditionExpression = aws.String("attribute_not_exists(PK) AND attribute_not_exists(SK)")
	} else {
		in.ConditionExpression = aws.String("version = :expected")
		in.ExpressionAttributeValues = map[string]types.AttributeValue{
			":expected": &types.AttributeValueMemberN{Value: strconv.FormatInt(expectedVersion, 10)},
		}
	}

	if _, err := c.api.PutItem(ctx, in); err != nil {
		var conditionFailed *types.ConditionalCheckFailedException
		if errors.As(err, &conditionFailed) {
			return false, nil
		}
		return false, fmt.Errorf("repository: CompareAndSwap put item: %w", err)
	}
	return true, nil
}

// ListInactive returns customer ids whose conversations have been inactive
// since before the cutoff, excluding the given states.
func (c *Client) ListInactive(ctx context.Context, cutoff time.Time, exempt []domain.State) ([]string, error) {
	filter := "SK = :sk AND lastActivityEpoch < :cutoff"
	values := map[string]types.AttributeValue{
		":sk":     &types.AttributeValueMemberS{Value: skConversation},
		":cutoff": &types.AttributeValueMemberN{Value: strconv.FormatInt(cutoff.Unix(), 10)},
	}
	names := map[string]string{}
	for i, state := range exempt {
		placeholder := fmt.Sprintf(":exempt%d", i)
		filter += fmt.Sprintf(" AND #st <> %s", placeholder)
		values[placeholder] = &types.AttributeValueMemberS{Value: string(state)}
		names["#st"] = "state"
	}

	in := &dynamodb.ScanInput{
		TableName:                 aws.String(c.tableName),
		FilterExpression:          aws.String(filter),
		ExpressionAttributeValues: values,
	}
	if len(names) > 0 {
		in.ExpressionAttributeNames = names
	}

	var ids []string
	for {
		out, err := c.api.Scan(ctx, in)
		if err != nil {
			return nil, fmt.Errorf("repository: ListInactive scan: %w", err)
		}
		for _, item := range out.Items {
			pk, err := strAttr(item, "PK")
			if err != nil {
				return nil, fmt.Errorf("repository: ListInactive: %w", err)
			}
			ids = append(ids, strings.TrimPrefix(pk, "CUST#"))
		}
		if len(out.LastEvaluatedKey) == 0 {
			return ids, nil
		}
		in.ExclusiveStartKey = out.LastEvaluatedKey
	}
}

// GetActiveCart returns the customer's cart when it exists and is active.
func (c *Client) GetActiveCart(ctx context.Context, customerID string) (*domain.Cart, error) {
	out, err := c.api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(c.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: custPK(customerID)},
			"SK": &types.AttributeValueMemberS{Value: skCart},
		},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("repository: GetActiveCart get item: %w", err)
	}
	if out == nil || len(out.Item) == 0 {
		return nil, nil
	}
	status, err := strAttr(out.Item, "status")
	if err != nil {
		return nil, fmt.Errorf("repository: GetActiveCart: %w", err)
	}
	if domain.CartStatus(status) != domain.CartActive {
		return nil, nil
	}
	doc, err := strAttr(out.Item, "doc")
	if err != nil {
		return nil, fmt.Errorf("repository: GetActiveCart: %w", err)
	}
	var cart domain.Cart
	if err := json.Unmarshal([]byte(doc), &cart); err != nil {
		return nil, fmt.Errorf("repository: GetActiveCart unmarshal: %w", err)
	}
	return &cart, nil
}

// PutCart writes the cart document. The ttl attribute lets DynamoDB purge
// abandoned rows independently of the application janitor.
func (c *Client) PutCart(ctx context.Context, cart *domain.Cart) error {
	if cart == nil {
		return errors.New("repository: PutCart: cart must not be nil")
	}
	doc, err := json.Marshal(cart)
	if err != nil {
		return fmt.Errorf("repository: PutCart marshal: %w", err)
	}
	_, err = c.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(c.tableName),
		Item: map[string]types.AttributeValue{
			"PK":             &types.AttributeValueMemberS{Value: custPK(cart.CustomerID)},
			"SK":             &types.AttributeValueMemberS{Value: skCart},
			"doc":            &types.AttributeValueMemberS{Value: string(doc)},
			"status":         &types.AttributeValueMemberS{Value: string(cart.Status)},
			"updatedAtEpoch": &types.AttributeValueMemberN{Value: strconv.FormatInt(cart.UpdatedAt.Unix(), 10)},
			"ttl":            &types.AttributeValueMemberN{Value: strconv.FormatInt(cart.UpdatedAt.Add(cartTTL).Unix(), 10)},
		},
	})
	if err != nil {
		return fmt.Errorf("repository: PutCart: %w", err)
	}
	return nil
}

// ListStaleCarts returns active carts not updated since the cutoff.
func (c *Client) ListStaleCarts(ctx context.Context, cutoff time.Time) ([]*domain.Cart, error) {
	in := &dynamodb.ScanInput{
		TableName:        aws.String(c.tableName),
		FilterExpression: aws.String("SK = :sk AND #st = :active AND updatedAtEpoch < :cutoff"),
		ExpressionAttributeNames: map[string]string{
			"#st": "status",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":sk":     &types.AttributeValueMemberS{Value: skCart},
			":active": &types.AttributeValueMemberS{Value: string(domain.CartActive)},
			":cutoff": &types.AttributeValueMemberN{Value: strconv.FormatInt(cutoff.Unix(), 10)},
		},
	}

	var carts []*domain.Cart
	for {
		out, err := c.api.Scan(ctx, in)
		if err != nil {
			return nil, fmt.Errorf("repository: ListStaleCarts scan: %w", err)
		}
		for _, item := range out.Items {
			doc, err := strAttr(item, "doc")
			if err != nil {
				return nil, fmt.Errorf("repository: ListStaleCarts: %w", err)
			}
			var cart domain.Cart
			if err := json.Unmarshal([]byte(doc), &cart); err != nil {
				return nil, fmt.Errorf("repository: ListStaleCarts unmarshal: %w", err)
			}
			carts = append(carts, &cart)
		}
		if len(out.LastEvaluatedKey) == 0 {
			return carts, nil
		}
		in.ExclusiveStartKey = out.LastEvaluatedKey
	}
}

func strAttr(item map[string]types.AttributeValue, key string) (string, error) {
	v, ok := item[key]
	if !ok {
		return "", fmt.Errorf("missing attribute %q", key)
	}
	s, ok := v.(*types.AttributeValueMemberS)
	if !ok {
		return "", fmt.Errorf("attribute %q is not a string", key)
	}
	return s.Value, nil
}

func intAttr(item map[string]types.AttributeValue, key string) (int, error) {
	v, ok := item[key]
	if !ok {
		return 0, fmt.Errorf("missing attribute %q", key)
	}
	n, ok := v.(*types.AttributeValueMemberN)
	if !ok {
		return 0, fmt.Errorf("attribute %q is not a number", key)
	}
	parsed, err := strconv.Atoi(n.Value)
	if err != nil {
		return 0, fmt.Errorf("parse attribute %q: %w", key, err)
	}
	return parsed, nil
}
