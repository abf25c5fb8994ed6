package kafka

import (
	"time"
)

// Config holds Kafka configuration
type Config struct {
	Brokers  []string
	ClientID string

	// Producer settings
	BatchSize    int
	BatchTimeout time.Duration
	RequiredAcks int // 0: no ack, 1: leader ack, -1: all replicas ack
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Brokers:  []string{"localhost:9092"},
		ClientID: "routing-service",

		BatchSize:    100,
		BatchTimeout: 10 * time.Millisecond,
		RequiredAcks: -1, // All replicas
	}
}

// Topics contains all routing service Kafka topic names
var Topics = struct {
	RoutingEvents      string
	RecoveryEvents     string
	AdminNotifications string
	SupplierCommands   string
}{
	RoutingEvents:      "khaacho.routing.events",
	RecoveryEvents:     "khaacho.recovery.events",
	AdminNotifications: "khaacho.notifications.admin",
	SupplierCommands:   "khaacho.suppliers.commands",
}

// TopicConfig holds configuration for a Kafka topic
type TopicConfig struct {
	Name              string
	Partitions        int
	ReplicationFactor int
	RetentionMs       int64
}

// DefaultTopicConfigs returns default configurations for routing topics
func DefaultTopicConfigs() []TopicConfig {
	const week = 7 * 24 * 60 * 60 * 1000
	return []TopicConfig{
		{Name: Topics.RoutingEvents, Partitions: 6, ReplicationFactor: 3, RetentionMs: week},
		{Name: Topics.RecoveryEvents, Partitions: 6, ReplicationFactor: 3, RetentionMs: week},
		{Name: Topics.AdminNotifications, Partitions: 3, ReplicationFactor: 3, RetentionMs: 30 * 24 * 60 * 60 * 1000},
		{Name: Topics.SupplierCommands, Partitions: 6, ReplicationFactor: 3, RetentionMs: week},
	}
}
