// Package config provides 12-factor configuration management for the
// Arc Reactor workspace client.
//
// Configuration is loaded from environment variables with sensible defaults.
// CLI flags override environment variables.
//
// Configuration Sections:
//   - Client: backend origin, explicit chat socket URL, explicit REST URL
//   - Chat: initial connect delay, reconnect delay and ceiling
//   - HTTP: REST timeout, retries, client-side rate limit, breaker threshold
//   - Server: mock backend listen address, bearer token, event and progress cadence
//   - Logging: log level and output format
//   - RateLimit: mock backend per-IP rate limiting
//   - Prefs: persisted preferences file location
//
// Example Usage:
//
//	cfg := config.LoadOrDefault()
//	client := api.NewClient(api.Options{BaseURL: cfg.Client.APIBaseURL()})
//
// Environment Variables:
//   - ARC_ORIGIN, NEXT_PUBLIC_CHAT_WS_URL, ARC_API_URL
//   - ARC_CHAT_INITIAL_DELAY, ARC_CHAT_RECONNECT_DELAY, ARC_CHAT_MAX_RECONNECTS
//   - ARC_CHAT_HANDSHAKE_TIMEOUT
//   - ARC_HTTP_TIMEOUT, ARC_HTTP_RETRY_MAX, ARC_HTTP_RPS, ARC_HTTP_BREAKER_THRESHOLD
//   - PORT, HOST, ARC_MOCK_TOKEN, ARC_MOCK_EVENT_POLL, ARC_MOCK_PROGRESS
//   - LOG_LEVEL, LOG_DEV, RATE_LIMIT_*, ARC_PREFS_PATH
package config
