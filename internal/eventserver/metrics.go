package eventserver

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

// serverMetrics holds OTel instruments for the dispatch pipeline. They are
// registered against the global provider at init time, a no-op until the
// host process installs a real one.
var serverMetrics struct {
	intakeDropped  metric.Int64Counter
	dispatched     metric.Int64Counter
	rejected       metric.Int64Counter
	watcherRestart metric.Int64Counter
}

func init() {
	m := otel.Meter("github.com/OpenMined/syft-extras/eventserver")
	serverMetrics.intakeDropped, _ = m.Int64Counter("syftrpc.server.intake_dropped",
		metric.WithDescription("Request files dropped because the intake queue was full"),
		metric.WithUnit("{event}"),
	)
	serverMetrics.dispatched, _ = m.Int64Counter("syftrpc.server.dispatched",
		metric.WithDescription("Requests successfully dispatched to a handler"),
		metric.WithUnit("{request}"),
	)
	serverMetrics.rejected, _ = m.Int64Counter("syftrpc.server.rejected",
		metric.WithDescription("Requests rejected for lacking read access to their response location"),
		metric.WithUnit("{request}"),
	)
	serverMetrics.watcherRestart, _ = m.Int64Counter("syftrpc.server.watcher_restart",
		metric.WithDescription("Times the filesystem watcher was restarted after crashing"),
		metric.WithUnit("{restart}"),
	)
}
