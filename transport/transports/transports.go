// Package transports registers every built-in backend with the default
// registry. Import it for side effects.
package transports

import (
	_ "github.com/drblury/reportflow/transport/aws"
	_ "github.com/drblury/reportflow/transport/channel"
	_ "github.com/drblury/reportflow/transport/http"
	_ "github.com/drblury/reportflow/transport/kafka"
	_ "github.com/drblury/reportflow/transport/nats"
	_ "github.com/drblury/reportflow/transport/rabbitmq"
)
