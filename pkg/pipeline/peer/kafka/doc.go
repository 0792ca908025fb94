// Package kafka provides the Kafka source and sink for audit-event
// pipelines.
//
// As a source, the peer joins a consumer group on the configured topics and
// decodes each message value as JSON; the decoded value (or nil for
// tombstones) flows into the pipeline's transformation chain untouched, so
// malformed payloads are diagnosed there rather than silently discarded
// here.
//
// As a sink, the peer republishes transformed records with the audit
// messageId as the message key, so compacted topics and downstream
// consumers key on the same identifier the relational sink upserts on.
//
// Topic naming conventions:
// - Case-sensitive, no spaces
// - Valid chars: alphanumeric, `.`, `-`, `_`
// - Recommended max length: 249 bytes (to avoid potential issues)
//
// Consumer groups: use meaningful names like `[app_name].[purpose]`,
// e.g. auditpipe.ingest
package kafka
