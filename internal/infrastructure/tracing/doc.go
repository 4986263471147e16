/*
Package tracing correlates HTTP requests between the client and the mock
backend.

Every REST call carries an X-Request-ID header. The client takes it from the
context when one is present, so a CLI command and the server log line it
caused share an id. The server middleware reuses the inbound id or mints a
new one, echoes it on the response and records one span per request.

	tracer := tracing.New("mockapi", logger)
	router.Use(tracing.HTTPMiddleware(tracer))

	ctx := tracing.WithRequestID(ctx, "req_01H...")
	runs, err := client.ListRuns(ctx)
*/
package tracing
