package transform

import (
	"fmt"

	"github.com/archiver/auditpipe/pkg/pipeline/record"
)

// RenameConfig holds the configuration for the rename transformation
type RenameConfig struct {
	// Fields maps producer field names to the names the audit schema
	// expects, e.g. msgId -> messageId for legacy producers.
	Fields map[string]string `json:"fields"`
}

// Validate validates the RenameConfig
func (c *RenameConfig) Validate() error {
	if len(c.Fields) == 0 {
		return fmt.Errorf("at least one field mapping is required")
	}
	return nil
}

// Type returns the type of the transformation
func (c *RenameConfig) Type() string {
	return "rename"
}

// Rename creates a Func that renames keys in the record's value map.
// Records whose value is absent or not a map pass through untouched; the
// auditschema transformation downstream decides their fate.
func Rename(config *RenameConfig) Func {
	return func(rec *record.Record) (*record.Record, error) {
		if err := config.Validate(); err != nil {
			return rec, fmt.Errorf("invalid rename configuration: %w", err)
		}

		value, ok := rec.ValueMap()
		if !ok {
			return rec, nil
		}

		renamed := make(map[string]any, len(value))
		for k, v := range value {
			if newKey, exists := config.Fields[k]; exists {
				// An existing key under the target name wins over a rename.
				if _, taken := value[newKey]; !taken {
					renamed[newKey] = v
					continue
				}
			}
			renamed[k] = v
		}

		return rec.WithValue(renamed), nil
	}
}
