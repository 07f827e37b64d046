// Package telemetry wires OpenTelemetry tracing and metrics for portfoliod.
//
// Telemetry installs the global TracerProvider and MeterProvider, so the
// core packages keep calling otel.Tracer and otel.Meter without holding a
// reference. Spans recorded per request:
//
//	Supervisor.HandleRequest
//	  Resolver.Resolve
//	    SemanticIndex.Suggest
//	  pnl.Aggregate
//
// # Usage
//
//	tel, err := telemetry.New(ctx, telemetry.FromSettings(cfg.Telemetry, version))
//	if err != nil {
//	    return err
//	}
//	defer tel.Shutdown(context.Background())
//
// Export is disabled by default. When the collector cannot be reached the
// instance reports Degraded and the providers fall back to no-ops.
//
// # Testing
//
//	tt := telemetry.NewTestTelemetry()
//	restore := tt.Install()
//	defer restore()
//	// ... exercise code ...
//	tt.AssertSpanExists(t, "pnl.Aggregate")
package telemetry
