/*
Package tracing tags admin requests with a request ID and logs each one
as a span once it completes.

An incoming X-Request-ID header is kept when it looks sane, otherwise a
fresh req_<ULID> is minted. The ID is echoed in the response and stored
in the request context for handlers.

	tracer := tracing.New(logger)
	router.Use(tracing.HTTPMiddleware(tracer))
*/
package tracing
