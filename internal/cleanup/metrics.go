package cleanup

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

var sweepMetrics struct {
	requestsDeleted  metric.Int64Counter
	responsesDeleted metric.Int64Counter
	errors           metric.Int64Counter
}

func init() {
	m := otel.Meter("github.com/OpenMined/syft-extras/cleanup")
	sweepMetrics.requestsDeleted, _ = m.Int64Counter("syftrpc.cleanup.requests_deleted",
		metric.WithDescription("expired .request files removed by the cleanup sweep"))
	sweepMetrics.responsesDeleted, _ = m.Int64Counter("syftrpc.cleanup.responses_deleted",
		metric.WithDescription("expired .response files (and orphan rejection markers) removed by the cleanup sweep"))
	sweepMetrics.errors, _ = m.Int64Counter("syftrpc.cleanup.errors",
		metric.WithDescription("per-file errors encountered during a cleanup sweep"))
}
