/*
Package orchestrator implements the background context of a tab: the tutorial state machine.

	Idle --initiate--> Running(0) --advance--> Running(i+1) ... --> Completed
	Running --navigation--> Suspended --page ready--> Running(stored index)

Each step is resolved by a DOM probe in the content context first and, on a miss, by the
image fallback; the result is then sent for display. Only one step is in flight at a time.
Every transition bumps a generation counter and work started under an older generation
is discarded when it finishes.
*/
package orchestrator
