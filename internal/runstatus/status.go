// Package runstatus names the supervisor states shown to operators.
package runstatus

import "strings"

const (
	Ingesting    = "Ingesting"
	Serving      = "Serving"
	Restarting   = "Restarting"
	ShuttingDown = "Shutting down"
	Stopped      = "Stopped"
	Failed       = "Failed"
)

const (
	KeyIngesting    = "ingesting"
	KeyServing      = "serving"
	KeyRestarting   = "restarting"
	KeyShuttingDown = "shutting down"
	KeyStopped      = "stopped"
	KeyFailed       = "failed"
)

func Key(status string) string {
	return strings.ToLower(strings.TrimSpace(status))
}

// IsTerminal reports whether no further transitions follow status.
func IsTerminal(status string) bool {
	switch Key(status) {
	case KeyStopped, KeyFailed:
		return true
	default:
		return false
	}
}
