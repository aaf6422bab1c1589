// Package observability provides OpenTelemetry tracing and metrics for
// pipeline runs.
//
// Tracing:
//
//	tp, err := observability.InitTracer(ctx, observability.DefaultTracerConfig("flowkit"), log)
//	defer tp.Shutdown(ctx)
//
//	ctx, span := observability.StartRunSpan(ctx, "training", runID)
//	defer span.End()
//
// Metrics:
//
//	mp, err := observability.InitMeter(ctx, observability.DefaultMeterConfig("flowkit"), log)
//	defer mp.Shutdown(ctx)
//
//	metrics, err := observability.NewMetrics(observability.Meter("flowkit"))
//	pipeline := orchestrator.NewPipeline("training",
//	    orchestrator.WithHooks(observability.RunHooks(metrics)))
package observability
