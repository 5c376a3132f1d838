//go:build unix

package supervisor

import (
	"golang.org/x/sys/unix"

	"drmonitor/internal/logging"
)

// warnOnHandleLimit warns when the tail handles use most of the soft
// descriptor limit, leaving little room for client connections.
func warnOnHandleLimit(logger *logging.Logger, handles int) {
	var limit unix.Rlimit
	if err := unix.Getrlimit(unix.RLIMIT_NOFILE, &limit); err != nil {
		logger.Debug("read descriptor limit", logging.Field("error", err))
		return
	}
	if uint64(handles) < uint64(limit.Cur)/5*4 {
		return
	}
	logger.Warn("open tail handles are close to the descriptor limit",
		logging.Field("handles", handles),
		logging.Field("limit", limit.Cur),
	)
}
