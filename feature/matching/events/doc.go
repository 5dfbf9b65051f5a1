// Package events is the Event Bus of the matchmaker.
//
// The engine publishes three events: requested, cancelled and paired. Every event travels
// in the same JSON envelope (Event) whose Payload decodes into RequestedPayload,
// CancelledPayload or PairedPayload. Subscribers such as the notification gateway filter
// by name.
//
// Three drivers are available: an in-process MemoryBus, a RedisBus on pub/sub and a
// KafkaBus for durable fan-out. Open selects one from configuration.
package events
