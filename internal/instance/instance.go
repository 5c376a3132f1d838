// Package instance keeps a host to one drmonitor per port.
package instance

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

var ErrHeld = errors.New("another drmonitor instance is serving this port")

func name(port int) string {
	return fmt.Sprintf("drmonitor-%d", port)
}

// Path is the lock file used for port on platforms with file locks.
func Path(port int) (string, error) {
	root, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("resolve config directory: %w", err)
	}
	return filepath.Join(root, "drmonitor", name(port)+".lock"), nil
}
