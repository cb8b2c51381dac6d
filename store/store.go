package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/oklog/ulid/v2"
	"golang.org/x/sync/errgroup"

	"github.com/jacentio/livefeed/internal/shard"
	"github.com/jacentio/livefeed/notify"
	"github.com/jacentio/livefeed/query"
)

// Store provides snapshot queries and writes over DynamoDB collections.
type Store struct {
	client    API
	config    Config
	registry  *Registry
	publisher notify.Publisher
	logger    *slog.Logger
}

// New creates a new Store instance.
func New(client API, config Config, registry *Registry) *Store {
	config.validate()
	if registry == nil {
		registry = NewRegistry()
	}
	return &Store{
		client:   client,
		config:   config,
		registry: registry,
		logger:   slog.Default(),
	}
}

// SetPublisher sets the publisher notified after every successful write.
// Publish failures are logged; the write itself has already succeeded.
func (s *Store) SetPublisher(p notify.Publisher, logger *slog.Logger) {
	s.publisher = p
	if logger != nil {
		s.logger = logger
	}
}

// Registry returns the collection registry.
func (s *Store) Registry() *Registry {
	return s.registry
}

// NewIdentity generates a new document identity for collection.
// Identities are ULIDs, so they sort by creation time.
func (s *Store) NewIdentity(collection string) string {
	return ulid.Make().String()
}

func (s *Store) collection(name string) (Collection, error) {
	c, ok := s.registry.Lookup(name)
	if !ok {
		return Collection{}, fmt.Errorf("%w: %s", ErrUnknownCollection, name)
	}
	return c, nil
}

// CreateDocument creates a document with the given identity.
// ServerTimestamp values in data are replaced by the write time, and
// created_at defaults to the write time when absent.
func (s *Store) CreateDocument(ctx context.Context, collection, id string, data map[string]any) error {
	coll, err := s.collection(collection)
	if err != nil {
		return err
	}
	now := s.config.Now()
	nowTS := FormatTimestamp(now)

	item, err := attributevalue.MarshalMap(resolveTimestamps(data, now))
	if err != nil {
		return fmt.Errorf("marshal document: %w", err)
	}

	// Store-managed fields
	item["id"] = &types.AttributeValueMemberS{Value: id}
	item["version"] = &types.AttributeValueMemberN{Value: "1"}
	if _, ok := item["created_at"]; !ok {
		item["created_at"] = &types.AttributeValueMemberS{Value: nowTS}
	}
	item["updated_at"] = &types.AttributeValueMemberS{Value: nowTS}
	item[s.config.FeedKeyAttr] = &types.AttributeValueMemberS{
		Value: shard.FeedPK(collection, id, s.config.NumShards),
	}
	delete(item, "ttl")

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(coll.TableName),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(id)"),
	})
	if err != nil {
		var condErr *types.ConditionalCheckFailedException
		if errors.As(err, &condErr) {
			return ErrAlreadyExists
		}
		return err
	}

	s.publish(ctx, notify.Change{Collection: collection, ID: id, Kind: notify.Added})
	return nil
}

// Get retrieves a document by identity, returning ErrNotFound if deleted or missing.
func (s *Store) Get(ctx context.Context, collection, id string) (*Item, error) {
	coll, err := s.collection(collection)
	if err != nil {
		return nil, err
	}

	result, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(coll.TableName),
		Key: PK{
			"id": &types.AttributeValueMemberS{Value: id},
		},
	})
	if err != nil {
		return nil, err
	}
	if result.Item == nil {
		return nil, ErrNotFound
	}

	if isDeletedAt(result.Item, s.config.Now()) {
		return nil, ErrNotFound
	}

	item := s.unmarshalItem(result.Item)
	return &item, nil
}

// UpdateDocument updates a document's fields with optimistic locking.
func (s *Store) UpdateDocument(ctx context.Context, collection, id string, data map[string]any, expectedVersion int64) error {
	coll, err := s.collection(collection)
	if err != nil {
		return err
	}
	now := s.config.Now()

	attrs, err := attributevalue.MarshalMap(resolveTimestamps(data, now))
	if err != nil {
		return fmt.Errorf("marshal document: %w", err)
	}

	exprNames := map[string]string{
		"#updated_at": "updated_at",
		"#version":    "version",
		"#ttl":        "ttl",
	}
	exprValues := map[string]types.AttributeValue{
		":updated_at":       &types.AttributeValueMemberS{Value: FormatTimestamp(now)},
		":one":              &types.AttributeValueMemberN{Value: "1"},
		":expected_version": &types.AttributeValueMemberN{Value: strconv.FormatInt(expectedVersion, 10)},
	}

	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		if s.isManagedField(k) {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var setClauses []string
	for i, k := range keys {
		nameKey := fmt.Sprintf("#attr%d", i)
		valueKey := fmt.Sprintf(":val%d", i)
		exprNames[nameKey] = k
		exprValues[valueKey] = attrs[k]
		setClauses = append(setClauses, fmt.Sprintf("%s = %s", nameKey, valueKey))
	}
	setClauses = append(setClauses, "#updated_at = :updated_at", "#version = #version + :one")

	_, err = s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(coll.TableName),
		Key: PK{
			"id": &types.AttributeValueMemberS{Value: id},
		},
		UpdateExpression:          aws.String("SET " + strings.Join(setClauses, ", ")),
		ConditionExpression:       aws.String("#version = :expected_version AND attribute_not_exists(#ttl)"),
		ExpressionAttributeNames:  exprNames,
		ExpressionAttributeValues: exprValues,
	})
	if err != nil {
		var condErr *types.ConditionalCheckFailedException
		if errors.As(err, &condErr) {
			return ErrConcurrentModification
		}
		return err
	}

	s.publish(ctx, notify.Change{Collection: collection, ID: id, Kind: notify.Modified})
	return nil
}

// DeleteDocument marks a document for deletion by setting its TTL to now.
// This also increments the version to fail concurrent updates. Deleting a
// missing or already-deleted document is a no-op.
func (s *Store) DeleteDocument(ctx context.Context, collection, id string) error {
	coll, err := s.collection(collection)
	if err != nil {
		return err
	}

	_, err = s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(coll.TableName),
		Key: PK{
			"id": &types.AttributeValueMemberS{Value: id},
		},
		UpdateExpression:    aws.String("SET #ttl = :now, #version = #version + :one"),
		ConditionExpression: aws.String("attribute_exists(id) AND attribute_not_exists(#ttl)"),
		ExpressionAttributeNames: map[string]string{
			"#ttl":     "ttl",
			"#version": "version",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":now": &types.AttributeValueMemberN{
				Value: strconv.FormatInt(s.config.Now().Unix(), 10),
			},
			":one": &types.AttributeValueMemberN{Value: "1"},
		},
	})

	// Condition failure means missing or already deleted
	var condErr *types.ConditionalCheckFailedException
	if errors.As(err, &condErr) {
		return nil
	}
	if err != nil {
		return err
	}

	s.publish(ctx, notify.Change{Collection: collection, ID: id, Kind: notify.Removed})
	return nil
}

// Query returns the full set of documents currently matching c, in the
// order of its first ordering clause. Deleted documents are excluded.
//
// The first ordering clause must have a feed index in the collection's
// registration. Only the first StartAfter value is used as the cursor.
func (s *Store) Query(ctx context.Context, collection string, c query.Constraints) ([]Item, error) {
	coll, err := s.collection(collection)
	if err != nil {
		return nil, err
	}

	order, ok := c.Primary()
	if !ok {
		order = query.Order{Field: coll.DefaultOrder, Direction: query.Asc}
	}
	index, ok := coll.IndexFor(order.Field)
	if !ok {
		return nil, fmt.Errorf("%w: %s.%s", ErrUnsupportedOrder, collection, order.Field)
	}

	now := s.config.Now()
	pks := shard.FeedPKs(collection, s.config.NumShards)

	// Fast path for single shard (default)
	if len(pks) == 1 {
		input, err := s.buildQueryInput(coll, index, order, c, pks[0], now)
		if err != nil {
			return nil, err
		}
		raw, err := s.queryShard(ctx, input, c.Limit)
		if err != nil {
			return nil, err
		}
		return s.unmarshalItems(raw, now), nil
	}

	// Multi-shard fan-out, merged in order
	results := make([][]map[string]types.AttributeValue, len(pks))
	g, gctx := errgroup.WithContext(ctx)
	for i, pk := range pks {
		g.Go(func() error {
			input, err := s.buildQueryInput(coll, index, order, c, pk, now)
			if err != nil {
				return err
			}
			raw, err := s.queryShard(gctx, input, c.Limit)
			if err != nil {
				return fmt.Errorf("shard %s: %w", pk, err)
			}
			results[i] = raw
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	merged := mergeShards(results, order)
	if c.Limit > 0 && len(merged) > int(c.Limit) {
		merged = merged[:c.Limit]
	}
	return s.unmarshalItems(merged, now), nil
}

// buildQueryInput translates constraints into a feed index query for one shard.
func (s *Store) buildQueryInput(coll Collection, index string, order query.Order, c query.Constraints, feedPK string, now time.Time) (*dynamodb.QueryInput, error) {
	keyCond := "#fk = :fk"
	names := map[string]string{
		"#fk":  s.config.FeedKeyAttr,
		"#ttl": "ttl",
	}
	values := map[string]types.AttributeValue{
		":fk": &types.AttributeValueMemberS{Value: feedPK},
	}

	if len(c.StartAfter) > 0 {
		cursor, err := marshalValue(c.StartAfter[0])
		if err != nil {
			return nil, fmt.Errorf("marshal cursor: %w", err)
		}
		op := ">"
		if order.Direction == query.Desc {
			op = "<"
		}
		names["#sort"] = order.Field
		values[":cursor"] = cursor
		keyCond += " AND #sort " + op + " :cursor"
	}

	filters := []string{TTLFilterExpr()}
	for i, f := range c.Where {
		op, err := filterOp(f.Op)
		if err != nil {
			return nil, err
		}
		v, err := marshalValue(f.Value)
		if err != nil {
			return nil, fmt.Errorf("marshal filter %s: %w", f.Field, err)
		}
		nameKey := fmt.Sprintf("#w%d", i)
		valueKey := fmt.Sprintf(":w%d", i)
		names[nameKey] = f.Field
		values[valueKey] = v
		filters = append(filters, fmt.Sprintf("%s %s %s", nameKey, op, valueKey))
	}

	input := &dynamodb.QueryInput{
		TableName:                 aws.String(coll.TableName),
		IndexName:                 aws.String(index),
		KeyConditionExpression:    aws.String(keyCond),
		FilterExpression:          aws.String(strings.Join(filters, " AND ")),
		ExpressionAttributeNames:  mergeExprNames(names),
		ExpressionAttributeValues: mergeExprValues(ttlFilterValues(now), values),
		ScanIndexForward:          aws.Bool(order.Direction != query.Desc),
	}
	if c.Limit > 0 {
		input.Limit = aws.Int32(c.Limit)
	}
	return input, nil
}

// queryShard pages through a query until limit matches are collected
// (0 = all pages).
func (s *Store) queryShard(ctx context.Context, input *dynamodb.QueryInput, limit int32) ([]map[string]types.AttributeValue, error) {
	var items []map[string]types.AttributeValue
	paginator := dynamodb.NewQueryPaginator(s.client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		items = append(items, page.Items...)
		if limit > 0 && len(items) >= int(limit) {
			return items[:limit], nil
		}
	}
	return items, nil
}

func (s *Store) publish(ctx context.Context, change notify.Change) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, change); err != nil {
		s.logger.Warn("failed to publish change",
			"collection", change.Collection,
			"id", change.ID,
			"kind", change.Kind,
			"error", err,
		)
	}
}

func (s *Store) isManagedField(k string) bool {
	switch k {
	case "id", "version", "created_at", "updated_at", "ttl", s.config.FeedKeyAttr:
		return true
	}
	return false
}

// unmarshalItems converts raw items, skipping any with an expired TTL.
func (s *Store) unmarshalItems(raw []map[string]types.AttributeValue, now time.Time) []Item {
	items := make([]Item, 0, len(raw))
	for _, r := range raw {
		if isDeletedAt(r, now) {
			continue
		}
		items = append(items, s.unmarshalItem(r))
	}
	return items
}

// unmarshalItem converts a DynamoDB item to an Item.
func (s *Store) unmarshalItem(raw map[string]types.AttributeValue) Item {
	item := Item{Raw: raw}

	if v, ok := raw["id"].(*types.AttributeValueMemberS); ok {
		item.ID = v.Value
	}
	if v, ok := raw["version"].(*types.AttributeValueMemberN); ok {
		item.Version, _ = strconv.ParseInt(v.Value, 10, 64)
	}

	var fields map[string]any
	if err := attributevalue.UnmarshalMap(raw, &fields); err == nil && fields != nil {
		delete(fields, s.config.FeedKeyAttr)
		delete(fields, "ttl")
		item.Fields = Normalize(fields)
	}

	if t, ok := item.Fields["created_at"].(time.Time); ok {
		item.CreatedAt = t
	}
	if t, ok := item.Fields["updated_at"].(time.Time); ok {
		item.UpdatedAt = t
	}

	return item
}

// marshalValue encodes a constraint value, using the store-native
// timestamp format for times.
func marshalValue(v any) (types.AttributeValue, error) {
	switch t := v.(type) {
	case time.Time:
		return &types.AttributeValueMemberS{Value: FormatTimestamp(t)}, nil
	case *time.Time:
		if t != nil {
			return &types.AttributeValueMemberS{Value: FormatTimestamp(*t)}, nil
		}
	}
	return attributevalue.Marshal(v)
}

func filterOp(op query.Op) (string, error) {
	switch op {
	case query.Eq:
		return "=", nil
	case query.Ne:
		return "<>", nil
	case query.Lt, query.Lte, query.Gt, query.Gte:
		return string(op), nil
	}
	return "", fmt.Errorf("unsupported filter operator %q", op)
}

// mergeShards merges per-shard results by the ordering field. Ties are
// broken by id so the merged order is deterministic.
func mergeShards(results [][]map[string]types.AttributeValue, order query.Order) []map[string]types.AttributeValue {
	var merged []map[string]types.AttributeValue
	for _, r := range results {
		merged = append(merged, r...)
	}
	desc := order.Direction == query.Desc
	sort.SliceStable(merged, func(i, j int) bool {
		cmp := compareAttr(merged[i][order.Field], merged[j][order.Field])
		if cmp == 0 {
			cmp = compareAttr(merged[i]["id"], merged[j]["id"])
		}
		if desc {
			return cmp > 0
		}
		return cmp < 0
	})
	return merged
}

// compareAttr orders scalar attribute values. Missing values sort first.
func compareAttr(a, b types.AttributeValue) int {
	switch av := a.(type) {
	case *types.AttributeValueMemberS:
		if bv, ok := b.(*types.AttributeValueMemberS); ok {
			return strings.Compare(av.Value, bv.Value)
		}
	case *types.AttributeValueMemberN:
		if bv, ok := b.(*types.AttributeValueMemberN); ok {
			x, _ := strconv.ParseFloat(av.Value, 64)
			y, _ := strconv.ParseFloat(bv.Value, 64)
			switch {
			case x < y:
				return -1
			case x > y:
				return 1
			}
			return 0
		}
	}
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}
	return 0
}
