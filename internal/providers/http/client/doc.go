// Package client is the HTTP client behind the http capability.
//
// Requests go through resty on top of a retryablehttp transport. Each
// client carries its own rate limiter and circuit breaker so one remote
// hammering a failing endpoint cannot affect another.
package client
