// Package instrumentation provides OpenTelemetry instrumentation for the
// authorization server.
//
// Metrics are exported in Prometheus format through an OpenTelemetry
// Prometheus exporter registered on a prometheus.Registry. Traces use the
// OpenTelemetry SDK tracer provider; attach span processors through
// Config.SpanProcessors to export them.
//
//	inst, err := instrumentation.New(instrumentation.Config{
//		ServiceName:    "mcp-oauth-gate",
//		ServiceVersion: version,
//		Enabled:        true,
//	})
//	if err != nil {
//		return err
//	}
//	defer inst.Shutdown(context.Background())
//
//	store.SetInstrumentation(inst)
//	srv.SetInstrumentation(inst)
//	mux.Handle("/metrics", inst.MetricsHandler())
//
// When Enabled is false every provider is a no-op and recording costs nothing.
//
// # Layers
//
// Meters and tracers are scoped per layer ("http", "server", "storage",
// "security"). Span attribute keys are defined as Attr* constants; none of
// them may carry a credential value.
package instrumentation
