/*
Package runtime wires the reportflow dispatch core onto a Watermill router.

# Service (service.go)

Service owns the transport built from the registry, the router, the
reporting queue selector and any resources opened on the caller's behalf
(worker pools, database handles). Close releases all of them.

# Middleware (middleware.go)

The default chain, outermost first:
  - CorrelationID: stamps a correlation identifier
  - DeliveryCount: copies the broker redelivery counter into the death-count header
  - LogMessages: debug logging of request type and headers
  - Tracer: one OpenTelemetry span per message
  - Metrics: Watermill Prometheus router metrics, optionally served on /metrics
  - Retry: exponential backoff, skipped for unprocessable messages
  - PoisonQueue: unprocessable messages go to the poison queue
  - Recoverer: panics become handler errors

# Reporting (registration.go, publisher.go)

RegisterReportingConsumer attaches one reporting.Consumer to every reporting
queue. PublishRequest routes a request to the queue owning its launch.

# Dispatch (dispatch.go)

NewMulticasterBuilder and ProjectConfigProvider build the in-process event
fan-out and the project configuration lookup from the service configuration.

# Sub-packages

  - config/: configuration loading and validation
  - errors/: sentinel errors
  - events/: domain events
  - multicaster/: typed event fan-out
  - projectconfig/: project attribute providers
  - delegating/: subscribers that fetch project config once per event
  - strategy/: predicate-guarded strategy resolution
  - pipeline/: ordered pipeline construction
  - reporting/: request-type routing consumer
  - cluster/, launchhandlers/: built-in strategies and subscribers
  - ids/, jsoncodec/, logging/, metadata/, metrics/: shared helpers
*/
package runtime
