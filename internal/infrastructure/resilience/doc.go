/*
Package resilience provides a circuit breaker for outbound calls made on
behalf of scripts.

# Overview

Each remote's http capability owns one breaker, so a remote hammering a
dead endpoint fails fast without affecting other remotes.

# Usage

	breaker := resilience.New("http-media/vlc", resilience.Settings{
		MaxRequests: 3,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts resilience.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})

	err := breaker.Execute(func() error {
		resp, err = client.Do(req)
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
