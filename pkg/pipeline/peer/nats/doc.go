// Package nats provides a NATS JetStream source and sink for audit events.
//
// NATS subject (aka topic) patterns:
//   - Case-sensitive, dot-separated, no spaces
//   - Valid chars: alphanumeric, `-` or `_`
//   - Max length: 255 bytes
//
// auditpipe publishes each audit event under `prefix.events` and consumes
// the whole `prefix.>` wildcard, so producers may fan out into nested
// subjects (audit.events.payments, audit.events.orders) without extra
// configuration. Payloads are JSON audit events; validation happens in the
// pipeline's transformation chain, not here.
package nats
