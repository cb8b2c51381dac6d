// Package stream provides DynamoDB Streams handlers that turn table changes
// into collection change notifications for live queries.
package stream

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/aws/aws-lambda-go/events"

	"github.com/jacentio/livefeed/notify"
	"github.com/jacentio/livefeed/store"
)

// Handler processes DynamoDB stream events and publishes change notifications.
type Handler struct {
	publisher notify.Publisher
	registry  *store.Registry
	logger    *slog.Logger
}

// NewHandler creates a new stream handler. Records from tables that are not
// registered in registry are ignored.
func NewHandler(publisher notify.Publisher, registry *store.Registry, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	if registry == nil {
		registry = store.NewRegistry()
	}
	return &Handler{
		publisher: publisher,
		registry:  registry,
		logger:    logger,
	}
}

// HandleChanges publishes one change notification per stream record.
// This function is designed to be used as an AWS Lambda handler.
func (h *Handler) HandleChanges(ctx context.Context, event events.DynamoDBEvent) error {
	for _, record := range event.Records {
		if err := h.processRecord(ctx, record); err != nil {
			h.logger.Error("failed to process record",
				"eventID", record.EventID,
				"error", err,
			)
			return err // Will retry, eventually DLQ
		}
	}
	return nil
}

// processRecord publishes the change described by a single stream record.
func (h *Handler) processRecord(ctx context.Context, record events.DynamoDBEventRecord) error {
	table := tableFromARN(record.EventSourceArn)
	coll, ok := h.registry.ByTable(table)
	if !ok {
		h.logger.Debug("ignoring record from unregistered table",
			"eventID", record.EventID,
			"table", table,
		)
		return nil
	}

	kind, ok := changeKind(record)
	if !ok {
		return nil
	}

	id := getStringAttr(record.Change.Keys, "id")
	if id == "" {
		id = getStringAttr(record.Change.NewImage, "id")
	}

	change := notify.Change{Collection: coll.Name, ID: id, Kind: kind}
	if err := h.publisher.Publish(ctx, change); err != nil {
		return fmt.Errorf("publish %s %s: %w", coll.Name, id, err)
	}

	h.logger.Debug("published change",
		"collection", coll.Name,
		"id", id,
		"kind", kind,
	)
	return nil
}

// changeKind classifies a record. A MODIFY that newly sets a TTL is a soft
// delete and reported as removed.
func changeKind(record events.DynamoDBEventRecord) (notify.Kind, bool) {
	switch record.EventName {
	case "INSERT":
		return notify.Added, true
	case "REMOVE":
		return notify.Removed, true
	case "MODIFY":
		oldTTL := getNumberAttr(record.Change.OldImage, "ttl")
		newTTL := getNumberAttr(record.Change.NewImage, "ttl")
		if oldTTL == 0 && newTTL != 0 {
			return notify.Removed, true
		}
		return notify.Modified, true
	}
	return "", false
}

// tableFromARN extracts the table name from a stream ARN such as
// arn:aws:dynamodb:us-east-1:123456789012:table/messages/stream/2024-01-01T00:00:00.000.
func tableFromARN(arn string) string {
	_, rest, ok := strings.Cut(arn, ":table/")
	if !ok {
		return ""
	}
	table, _, _ := strings.Cut(rest, "/")
	return table
}

// getStringAttr extracts a string attribute from a DynamoDB stream image.
func getStringAttr(image map[string]events.DynamoDBAttributeValue, key string) string {
	if v, ok := image[key]; ok {
		if v.DataType() == events.DataTypeString {
			return v.String()
		}
	}
	return ""
}

// getNumberAttr extracts a number attribute from a DynamoDB stream image.
func getNumberAttr(image map[string]events.DynamoDBAttributeValue, key string) int64 {
	if v, ok := image[key]; ok {
		if v.DataType() == events.DataTypeNumber {
			n, _ := strconv.ParseInt(v.Number(), 10, 64)
			return n
		}
	}
	return 0
}
