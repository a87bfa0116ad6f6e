/*
Package resilience provides a circuit breaker for external helper commands.

The terminal host shells out to the multiplexer for session control. When
the binary is missing or its server is wedged every call would pay the full
command timeout; the breaker fails those calls fast instead and probes again
after a cooldown.

	breaker := resilience.New("tmux", resilience.Settings{
		Threshold: 3,
		Cooldown:  30 * time.Second,
	})

	err := breaker.Do(func() error {
		return runCommand()
	})

States:

	Closed --[Threshold failures]-> Open --[Cooldown]-> Half-Open --[Probes successes]-> Closed
	                                                        |
	                                                    [failure]
	                                                        v
	                                                       Open
*/
package resilience
