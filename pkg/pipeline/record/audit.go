package record

// Direction values accepted for audit events.
const (
	DirectionRequest  = "REQUEST"
	DirectionResponse = "RESPONSE"
)

// Directions lists the valid direction values, in the order they are
// reported in validation messages.
var Directions = []string{DirectionRequest, DirectionResponse}

// ValidDirection reports whether s is a member of the direction enum.
func ValidDirection(s string) bool {
	for _, d := range Directions {
		if s == d {
			return true
		}
	}
	return false
}

// AuditRecord is the fixed schema the relational sink persists. It mirrors
// the audit_records table: messageId is the primary key the sink upserts on,
// metadata holds serialized JSON that is stored opaquely, and the two
// optional fields are nil (not empty) when the producer omitted them.
type AuditRecord struct {
	MessageID string  `json:"messageId"`
	Timestamp int64   `json:"timestamp"`
	Requester string  `json:"requester"`
	Direction string  `json:"direction"`
	Metadata  *string `json:"metadata,omitempty"`
	Format    *string `json:"format,omitempty"`
}
