package store

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// API is the subset of the DynamoDB client used by the Store.
// *dynamodb.Client satisfies it.
type API interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
}

// PK represents a DynamoDB primary key.
type PK map[string]types.AttributeValue

// Item is a document retrieved from a collection.
type Item struct {
	// ID is the document identity, unique within its collection.
	ID string

	// Fields holds the document's attributes with timestamps normalized
	// to time.Time. Internal attributes (feed key, TTL) are omitted.
	Fields map[string]any

	// Version is the optimistic lock version.
	Version int64

	// CreatedAt is the creation timestamp (zero if absent).
	CreatedAt time.Time

	// UpdatedAt is the last update timestamp (zero if absent).
	UpdatedAt time.Time

	// Raw is the raw DynamoDB item.
	Raw map[string]types.AttributeValue
}

// Field returns the named field value, or nil if absent.
func (i Item) Field(name string) any {
	if i.Fields == nil {
		return nil
	}
	return i.Fields[name]
}
