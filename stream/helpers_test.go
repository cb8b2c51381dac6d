package stream

import (
	"testing"

	"github.com/aws/aws-lambda-go/events"

	"github.com/jacentio/livefeed/notify"
)

// --- getStringAttr Tests ---

func TestGetStringAttr_ExistingString(t *testing.T) {
	image := map[string]events.DynamoDBAttributeValue{
		"id": events.NewStringAttribute("test-value"),
	}

	result := getStringAttr(image, "id")
	if result != "test-value" {
		t.Errorf("expected 'test-value', got %q", result)
	}
}

func TestGetStringAttr_MissingKey(t *testing.T) {
	image := map[string]events.DynamoDBAttributeValue{
		"other": events.NewStringAttribute("value"),
	}

	result := getStringAttr(image, "id")
	if result != "" {
		t.Errorf("expected empty string for missing key, got %q", result)
	}
}

func TestGetStringAttr_NilImage(t *testing.T) {
	var image map[string]events.DynamoDBAttributeValue

	result := getStringAttr(image, "id")
	if result != "" {
		t.Errorf("expected empty string for nil image, got %q", result)
	}
}

func TestGetStringAttr_NumberAttribute(t *testing.T) {
	image := map[string]events.DynamoDBAttributeValue{
		"id": events.NewNumberAttribute("42"),
	}

	result := getStringAttr(image, "id")
	if result != "" {
		t.Errorf("expected empty string for number attribute, got %q", result)
	}
}

func TestGetStringAttr_UnicodeValue(t *testing.T) {
	image := map[string]events.DynamoDBAttributeValue{
		"id": events.NewStringAttribute("日本語テスト"),
	}

	result := getStringAttr(image, "id")
	if result != "日本語テスト" {
		t.Errorf("expected '日本語テスト', got %q", result)
	}
}

// --- getNumberAttr Tests ---

func TestGetNumberAttr_ValidNumber(t *testing.T) {
	image := map[string]events.DynamoDBAttributeValue{
		"ttl": events.NewNumberAttribute("1234567890"),
	}

	result := getNumberAttr(image, "ttl")
	if result != 1234567890 {
		t.Errorf("expected 1234567890, got %d", result)
	}
}

func TestGetNumberAttr_MissingKey(t *testing.T) {
	result := getNumberAttr(map[string]events.DynamoDBAttributeValue{}, "ttl")
	if result != 0 {
		t.Errorf("expected 0 for missing key, got %d", result)
	}
}

func TestGetNumberAttr_StringAttribute(t *testing.T) {
	image := map[string]events.DynamoDBAttributeValue{
		"ttl": events.NewStringAttribute("1234567890"),
	}

	result := getNumberAttr(image, "ttl")
	if result != 0 {
		t.Errorf("expected 0 for string attribute, got %d", result)
	}
}

// --- tableFromARN Tests ---

func TestTableFromARN(t *testing.T) {
	tests := []struct {
		name string
		arn  string
		want string
	}{
		{"stream arn", "arn:aws:dynamodb:us-east-1:123456789012:table/livefeed_messages/stream/2024-01-01T00:00:00.000", "livefeed_messages"},
		{"table arn", "arn:aws:dynamodb:us-east-1:123456789012:table/livefeed_messages", "livefeed_messages"},
		{"empty", "", ""},
		{"not a table", "arn:aws:sqs:us-east-1:123456789012:queue", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tableFromARN(tt.arn); got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

// --- changeKind Tests ---

func TestChangeKind(t *testing.T) {
	tests := []struct {
		name   string
		record events.DynamoDBEventRecord
		want   notify.Kind
		ok     bool
	}{
		{
			name:   "insert",
			record: events.DynamoDBEventRecord{EventName: "INSERT"},
			want:   notify.Added,
			ok:     true,
		},
		{
			name:   "remove",
			record: events.DynamoDBEventRecord{EventName: "REMOVE"},
			want:   notify.Removed,
			ok:     true,
		},
		{
			name: "modify without ttl",
			record: events.DynamoDBEventRecord{
				EventName: "MODIFY",
				Change: events.DynamoDBStreamRecord{
					OldImage: map[string]events.DynamoDBAttributeValue{"message": events.NewStringAttribute("a")},
					NewImage: map[string]events.DynamoDBAttributeValue{"message": events.NewStringAttribute("b")},
				},
			},
			want: notify.Modified,
			ok:   true,
		},
		{
			name: "modify setting ttl",
			record: events.DynamoDBEventRecord{
				EventName: "MODIFY",
				Change: events.DynamoDBStreamRecord{
					OldImage: map[string]events.DynamoDBAttributeValue{},
					NewImage: map[string]events.DynamoDBAttributeValue{"ttl": events.NewNumberAttribute("1700000000")},
				},
			},
			want: notify.Removed,
			ok:   true,
		},
		{
			name: "modify with existing ttl",
			record: events.DynamoDBEventRecord{
				EventName: "MODIFY",
				Change: events.DynamoDBStreamRecord{
					OldImage: map[string]events.DynamoDBAttributeValue{"ttl": events.NewNumberAttribute("1000")},
					NewImage: map[string]events.DynamoDBAttributeValue{"ttl": events.NewNumberAttribute("2000")},
				},
			},
			want: notify.Modified,
			ok:   true,
		},
		{
			name:   "unknown",
			record: events.DynamoDBEventRecord{EventName: "UNKNOWN"},
			ok:     false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := changeKind(tt.record)
			if ok != tt.ok || got != tt.want {
				t.Errorf("expected (%q, %v), got (%q, %v)", tt.want, tt.ok, got, ok)
			}
		})
	}
}

// --- Benchmark Tests ---

func BenchmarkGetStringAttr(b *testing.B) {
	image := map[string]events.DynamoDBAttributeValue{
		"id": events.NewStringAttribute("01HZX3KQ6Y1V8J5M2N4P7R9T0W"),
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		getStringAttr(image, "id")
	}
}

func BenchmarkTableFromARN(b *testing.B) {
	arn := "arn:aws:dynamodb:us-east-1:123456789012:table/livefeed_messages/stream/2024-01-01T00:00:00.000"

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		tableFromARN(arn)
	}
}
