// Package exitcodes defines the standard exit codes used by systest.
package exitcodes

// Exit code constants used by systest:
//
//   - Success (0): all scenarios passed, or a utility action completed
//   - Failure (1): scenario/area failures, configuration or suite errors,
//     dependency installation errors, and any unanticipated error
const (
	Success = 0
	Failure = 1
)
