// Package infra contains technical adapters: provider clients, record stores,
// MQTT, metrics exporters and the Redis cache. These packages depend only on
// the interfaces defined in the core packages.
package infra
