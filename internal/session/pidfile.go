package session

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"syscall"
	"time"
)

// PidFile is the JSON document written to <targetPath>/<LocalDirName>/.pid
// (spec.md §4.8).
type PidFile struct {
	PID       int       `json:"pid"`
	Port      int       `json:"port"`
	Timestamp time.Time `json:"ts"`
}

// PidFilePath returns the path to the running engine's pid file for the
// given cwd.
func PidFilePath(cwd string) string {
	return filepath.Join(cwd, LocalDirName, ".pid")
}

// WritePidFile records the current process's pid and port at start, so a
// separate process can later find and signal it via StopExternal.
func WritePidFile(cwd string, port int) error {
	dir := filepath.Join(cwd, LocalDirName)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating pid file dir %s: %w", dir, err)
	}
	pf := PidFile{PID: os.Getpid(), Port: port, Timestamp: time.Now()}
	data, err := json.Marshal(pf)
	if err != nil {
		return fmt.Errorf("marshaling pid file: %w", err)
	}
	if err := os.WriteFile(PidFilePath(cwd), data, 0o644); err != nil {
		return fmt.Errorf("writing pid file: %w", err)
	}
	return nil
}

// RemovePidFile deletes the pid file, tolerating it already being gone.
func RemovePidFile(cwd string) error {
	err := os.Remove(PidFilePath(cwd))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing pid file: %w", err)
	}
	return nil
}

// ReadPidFile reads and parses the pid file for cwd.
func ReadPidFile(cwd string) (PidFile, error) {
	data, err := os.ReadFile(PidFilePath(cwd))
	if err != nil {
		return PidFile{}, err
	}
	var pf PidFile
	if err := json.Unmarshal(data, &pf); err != nil {
		return PidFile{}, fmt.Errorf("parsing pid file: %w", err)
	}
	return pf, nil
}

// StopExternal reads the pid file for cwd, sends SIGTERM to the recorded
// pid, and removes the file. Returns true iff a pid file was found and a
// process was signalled (spec.md §4.8).
func StopExternal(cwd string) (bool, error) {
	pf, err := ReadPidFile(cwd)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}

	proc, err := os.FindProcess(pf.PID)
	if err != nil {
		_ = RemovePidFile(cwd)
		return false, nil
	}

	signalErr := proc.Signal(syscall.SIGTERM)
	_ = RemovePidFile(cwd)
	if signalErr != nil {
		return false, nil
	}
	return true, nil
}
