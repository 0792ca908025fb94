// Package transform provides per-record transformations applied between a
// pipeline's sources and sinks, in the manner of Kafka Connect single
// message transforms. A transformation that returns (nil, nil) drops the
// record: downstream stages never see it and processing continues with the
// next record.
//
// Built-in transformations:
//   - auditschema: validates a loosely-typed audit event and reshapes it
//     into the fixed schema the relational sink requires
//   - filter: passes or drops records by topic or direction
//   - rename: renames value keys, for producers using legacy field names
package transform
