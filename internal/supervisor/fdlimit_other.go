//go:build !unix

package supervisor

import "drmonitor/internal/logging"

func warnOnHandleLimit(*logging.Logger, int) {}
