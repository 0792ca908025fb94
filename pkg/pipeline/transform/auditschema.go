package transform

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/archiver/auditpipe/pkg/pipeline/record"
	"go.uber.org/zap"
)

// AuditSchemaConfig configures the auditschema transformation. The output
// schema and validation rules are fixed constants; the only injectable part
// is the logger used for drop diagnostics.
type AuditSchemaConfig struct {
	Logger *zap.Logger `json:"-" mapstructure:"-"`
}

// Validate validates the AuditSchemaConfig
func (c *AuditSchemaConfig) Validate() error {
	return nil
}

// Type returns the type of the transformation
func (c *AuditSchemaConfig) Type() string {
	return "auditschema"
}

// requiredFields in check order. The first missing field determines the
// reported drop reason, even when several are missing.
var requiredFields = []string{"messageId", "timestamp", "requester", "direction"}

// AuditSchema creates a Func that converts a loosely-typed audit event value
// into the fixed AuditRecord schema expected by the relational sink.
//
// Invalid records are dropped, not failed: a nil value is a routine skip
// (tombstone) and logs nothing, every other rejection logs a warning naming
// the reason plus the source topic and partition, and an unexpected
// construction failure logs at error severity. The Func never returns an
// error for malformed producer input, so one bad message cannot stall
// delivery of well-formed ones.
func AuditSchema(config *AuditSchemaConfig) Func {
	logger := config.Logger
	if logger == nil {
		logger = zap.L()
	}

	return func(rec *record.Record) (*record.Record, error) {
		if rec == nil || rec.Value == nil {
			return nil, nil
		}

		value, ok := rec.ValueMap()
		if !ok {
			logger.Warn("skipping record: value is not a map",
				zap.String("topic", rec.Topic),
				zap.Int32("partition", rec.Partition))
			return nil, nil
		}

		if reason := validateAuditValue(value); reason != "" {
			logger.Warn("skipping invalid record",
				zap.String("reason", reason),
				zap.String("topic", rec.Topic),
				zap.Int32("partition", rec.Partition),
				zap.Any("value", value))
			return nil, nil
		}

		out, err := buildAuditRecord(value)
		if err != nil {
			logger.Error("skipping record due to transformation error",
				zap.Error(err),
				zap.String("topic", rec.Topic),
				zap.Int32("partition", rec.Partition),
				zap.Any("value", value))
			return nil, nil
		}

		return rec.WithValue(out), nil
	}
}

// validateAuditValue returns the drop reason for an invalid value, or ""
// when the value passes all checks.
func validateAuditValue(value map[string]any) string {
	for _, field := range requiredFields {
		if value[field] == nil {
			return "Missing required field: " + field
		}
	}

	direction := fmt.Sprint(value["direction"])
	if !record.ValidDirection(direction) {
		return fmt.Sprintf("Invalid direction value: '%s'. Must be one of: %v",
			direction, record.Directions)
	}

	if _, err := toInt64(value["timestamp"]); err != nil {
		return fmt.Sprintf("Invalid timestamp value: '%v'. Must be a numeric value",
			value["timestamp"])
	}

	return ""
}

// buildAuditRecord constructs the fixed-schema record. Validation has
// already passed at this point; an error here means a field changed shape
// between validation and extraction.
func buildAuditRecord(value map[string]any) (*record.AuditRecord, error) {
	messageID, err := requireString(value, "messageId")
	if err != nil {
		return nil, err
	}
	timestamp, err := requireInt64(value, "timestamp")
	if err != nil {
		return nil, err
	}
	requester, err := requireString(value, "requester")
	if err != nil {
		return nil, err
	}
	direction, err := requireString(value, "direction")
	if err != nil {
		return nil, err
	}

	return &record.AuditRecord{
		MessageID: messageID,
		Timestamp: timestamp,
		Requester: requester,
		Direction: direction,
		Metadata:  optionalString(value, "metadata"),
		Format:    optionalString(value, "format"),
	}, nil
}

// toInt64 coerces a decoded JSON value to int64. Numeric types are accepted
// directly (JSON numbers decode to float64); anything else must parse as a
// strict base-10 integer from its string form.
func toInt64(v any) (int64, error) {
	switch n := v.(type) {
	case int64:
		return n, nil
	case int:
		return int64(n), nil
	case int32:
		return int64(n), nil
	case float64:
		return int64(n), nil
	case float32:
		return int64(n), nil
	case json.Number:
		return n.Int64()
	default:
		return strconv.ParseInt(fmt.Sprint(v), 10, 64)
	}
}

func requireString(value map[string]any, key string) (string, error) {
	v, ok := value[key]
	if !ok || v == nil {
		return "", fmt.Errorf("missing required field: %s", key)
	}
	return fmt.Sprint(v), nil
}

func requireInt64(value map[string]any, key string) (int64, error) {
	v, ok := value[key]
	if !ok || v == nil {
		return 0, fmt.Errorf("missing required field: %s", key)
	}
	return toInt64(v)
}

// optionalString returns the field's string form, or nil when absent.
// Optional columns stay genuinely NULL rather than empty.
func optionalString(value map[string]any, key string) *string {
	v, ok := value[key]
	if !ok || v == nil {
		return nil
	}
	s := fmt.Sprint(v)
	return &s
}
