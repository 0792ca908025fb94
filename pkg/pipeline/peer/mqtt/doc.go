// Package mqtt provides an MQTT source and sink for audit events, for edge
// producers that publish over MQTT instead of Kafka.
//
// The peer subscribes to `prefix/#` and treats each message payload as one
// JSON audit event; the MQTT topic becomes the record topic. Validation of
// the payload happens in the pipeline's transformation chain, not here.
package mqtt
