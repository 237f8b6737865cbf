// Package reportflow is the dispatch and strategy-resolution core of a test
// reporting backend, built on Watermill.
//
// Two flows meet here. Inbound reporting requests (START_LAUNCH, LOG and the
// rest) arrive on the reporting queues and are routed to exactly one handler
// by their requestType header. Domain events raised while processing them
// (a launch finished, an analysis completed) are fanned out in-process to
// every subscriber registered for the concrete event type.
//
// # Transports
//
// The broker is chosen by Config.PubSubSystem:
//   - channel: in-memory Go channels for local runs and tests
//   - kafka: partitioned by launch so one launch is consumed in order
//   - rabbitmq: durable queues with prefetch
//   - aws: SNS/SQS with LocalStack support
//   - nats: core NATS queue groups
//   - nats-jetstream: durable JetStream consumers
//   - http: webhook style delivery
//
// # Dispatch
//
// A MulticasterBuilder collects subscribers, then Build freezes them. The
// delegating subscriber fetches a project's configuration once per event and
// hands the same snapshot to every configurable handler. Resolver picks the
// first strategy whose predicate matches, and PipelineConstructor turns an
// ordered list of part providers into a runnable pipeline.
//
// # Middleware
//
// The default router chain adds correlation IDs, redelivery counting,
// logging, OpenTelemetry tracing, Prometheus metrics, retries with
// exponential backoff, poison queue forwarding and panic recovery. Custom
// middleware can be added via ServiceDependencies.Middlewares.
package reportflow
