/*
Package resilience provides a circuit breaker for calls to the workspace
backend.

The REST client routes every request through a Breaker so that an
unavailable backend fails fast instead of stacking retries. Client errors
(4xx) can be classified as successes through Settings.IsSuccessful.

# Usage

	breaker := resilience.New("api", resilience.Settings{
		Timeout:     30 * time.Second,
		ReadyToTrip: resilience.ConsecutiveFailures(5),
		OnStateChange: func(name string, from, to resilience.State) {
			logger.Warn("breaker state change", zap.Stringer("from", from), zap.Stringer("to", to))
		},
	})

	err := breaker.Do(func() error {
		_, err := req.Get("/runs")
		return err
	})

# States

	Closed --[failures]-> Open --[timeout]-> Half-Open --[successes]-> Closed
	                                           |
	                                       [failure]
	                                           v
	                                         Open
*/
package resilience
