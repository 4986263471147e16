/*
Package api is the REST client for the Arc backend.

Every call goes through the same pipeline: a rate limiter, a circuit
breaker, then a resty request over a retrying transport. The bearer token
is looked up on each request so a rotated token applies immediately.

Non-2xx responses surface as *APIError carrying the backend's "detail"
message.
*/
package api
