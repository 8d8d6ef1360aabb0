// Package outbox publishes the profile service's signals as events.
//
// # Overview
//
// Every signal dispatched to the store is turned into an event envelope and
// written to Kafka, keyed by session ID so that the events of one session
// keep their order.
//
// # Components
//
//   - Emitter: builds an event from a signal, adding service metadata
//   - Publisher: writes events to Kafka and drains a store subscription
//
// # Event Types
//
// Event types are the signal type names:
//
//   - profile.load_request: a profile refresh called the backend
//   - profile.load_success: a fresh profile was loaded
//   - profile.load_failure: a profile refresh failed
//   - profile.refresh_requested: a refresh was triggered or re-triggered
//   - session.expired: the backend rejected the session
//   - user_data_processing.*: the same lifecycle for data requests
//
// # Usage
//
//	emitter := outbox.NewEmitter(outbox.EmitterConfig{ServiceName: "profile-service"})
//	writer := outbox.NewKafkaWriter(outbox.WriterConfig{Brokers: brokers, Topic: topic})
//	publisher := outbox.NewPublisher(emitter, writer, sessionID, metrics, logger)
//
//	signals, unsubscribe := st.Subscribe(64)
//	defer unsubscribe()
//	go publisher.Run(ctx, signals)
package outbox
