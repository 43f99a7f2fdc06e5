package server

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mitchellh/go-ps"
)

// ErrAlreadyRunning indicates another alarm-server process is alive on this host.
// Alarm state lives in process memory, so two servers would split devices between them.
var ErrAlreadyRunning = errors.New("another alarm-server instance is already running")

// processLister enumerates the host's processes.
type processLister func() ([]ps.Process, error)

// ensureSingleInstance fails when a process with the same executable name as
// this one, other than this one, is running.
func ensureSingleInstance(list processLister, executable string, selfPID int) error {
	processes, err := list()
	if err != nil {
		return fmt.Errorf("list processes: %w", err)
	}

	for _, process := range processes {
		if process.Pid() == selfPID {
			continue
		}

		if process.Executable() != executable {
			continue
		}

		return fmt.Errorf("pid %d: %w", process.Pid(), ErrAlreadyRunning)
	}

	return nil
}

// currentExecutable returns the base name of the running binary.
func currentExecutable() string {
	path, err := os.Executable()
	if err != nil {
		path = os.Args[0]
	}

	return filepath.Base(path)
}
