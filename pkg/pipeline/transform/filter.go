package transform

import (
	"fmt"
	"path/filepath"
	"regexp"

	"github.com/archiver/auditpipe/pkg/pipeline/record"
)

type FilterConfig struct {
	TopicPattern  string   `json:"topicPattern,omitempty"`
	Topics        []string `json:"topics,omitempty"`
	ExcludeTopics []string `json:"excludeTopics,omitempty"`
	Directions    []string `json:"directions,omitempty"`
}

func (c *FilterConfig) Validate() error {
	if len(c.Topics) == 0 && len(c.ExcludeTopics) == 0 &&
		c.TopicPattern == "" && len(c.Directions) == 0 {
		return fmt.Errorf("at least one filter criteria required")
	}

	if c.TopicPattern != "" {
		if _, err := regexp.Compile(c.TopicPattern); err != nil {
			return fmt.Errorf("invalid topic pattern: %w", err)
		}
	}

	for _, d := range c.Directions {
		if !record.ValidDirection(d) {
			return fmt.Errorf("invalid direction: %s", d)
		}
	}

	return nil
}

// Type returns the type of the transformation
func (c *FilterConfig) Type() string {
	return "filter"
}

// Filter creates a Func that passes records matching the configured
// criteria and drops the rest. Topic entries may use glob patterns
// (audit.*); TopicPattern is a regular expression. Direction filtering
// works both before and after the auditschema transformation.
func Filter(config *FilterConfig) Func {
	if err := config.Validate(); err != nil {
		return func(rec *record.Record) (*record.Record, error) {
			return nil, fmt.Errorf("invalid filter configuration: %w", err)
		}
	}

	var topicRegex *regexp.Regexp
	if config.TopicPattern != "" {
		topicRegex = regexp.MustCompile(config.TopicPattern)
	}

	return func(rec *record.Record) (*record.Record, error) {
		if rec == nil {
			return nil, fmt.Errorf("invalid record: nil")
		}

		// Filter by excluded topics
		for _, t := range config.ExcludeTopics {
			if matchesTopic(rec.Topic, t) {
				return nil, nil
			}
		}

		// Filter by included topics
		if len(config.Topics) > 0 {
			included := false
			for _, t := range config.Topics {
				if matchesTopic(rec.Topic, t) {
					included = true
					break
				}
			}
			if !included {
				return nil, nil
			}
		}

		// Filter by topic pattern
		if topicRegex != nil && !topicRegex.MatchString(rec.Topic) {
			return nil, nil
		}

		// Filter by direction if specified
		if len(config.Directions) > 0 {
			direction, ok := recordDirection(rec)
			if !ok {
				return nil, nil
			}

			matched := false
			for _, d := range config.Directions {
				if d == direction {
					matched = true
					break
				}
			}
			if !matched {
				return nil, nil
			}
		}

		return rec, nil
	}
}

// matchesTopic checks a topic against an exact name or glob pattern.
func matchesTopic(topic, ref string) bool {
	if matched, _ := filepath.Match(ref, topic); matched {
		return true
	}
	return topic == ref
}

// recordDirection reads the direction from either a mapped AuditRecord or a
// raw value map.
func recordDirection(rec *record.Record) (string, bool) {
	switch v := rec.Value.(type) {
	case *record.AuditRecord:
		return v.Direction, true
	case map[string]any:
		if d, ok := v["direction"]; ok && d != nil {
			return fmt.Sprint(d), true
		}
	}
	return "", false
}
