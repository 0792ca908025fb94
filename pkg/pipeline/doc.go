// Package pipeline provides a framework for moving audit events from
// message brokers to storage `Peer`s (ie data source/destination).
//
// Supported peer types include Kafka, MQTT, NATS, PostgreSQL and
// ClickHouse, with extensibility through Go plugins.
//
// It defines a `Connector` interface that all `Peer` types must implement.
package pipeline
