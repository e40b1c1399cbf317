/*
Package resilience provides circuit breakers for remote page loads.

A Group keeps one Breaker per origin so a single unreachable host cannot make
every navigation wait out the fetch timeout.

	Closed --[ReadyToTrip]-> Open --[Timeout]-> Half-Open --[MaxRequests successes]-> Closed
	                                               |
	                                           [failure]-> Open

# Usage

	group := resilience.NewGroup(resilience.Settings{
		Timeout: 30 * time.Second,
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, errClientStatus)
		},
	})

	body, err := resilience.Call(group.Get(u.Host), func() ([]byte, error) {
		return fetch(ctx, u)
	})
*/
package resilience
