/* pkg/logger/paths.go */

package logger

import (
	"errors"
	"os"
	"path/filepath"

	"go.uber.org/zap/zapcore"
)

// PlatformLogPaths returns log paths in order of priority.
func PlatformLogPaths() []string {
	paths := []string{"/var/log/honeydash/honeydash.log"}
	if state := os.Getenv("XDG_STATE_HOME"); state != "" {
		paths = append(paths, filepath.Join(state, "honeydash", "honeydash.log"))
	} else if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".local", "state", "honeydash", "honeydash.log"))
	}
	return append(paths, "./honeydash.log", "/tmp/honeydash/honeydash.log")
}

// FindWritableLogPath returns the first path that can be opened for append.
func FindWritableLogPath() (string, error) {
	for _, path := range PlatformLogPaths() {
		if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
			continue
		}
		f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
		if err != nil {
			continue
		}
		_ = f.Close()
		return path, nil
	}
	return "", errors.New("no writable log path")
}

func GetLogFileWriter(path string) (zapcore.WriteSyncer, error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return nil, err
	}
	return zapcore.AddSync(f), nil
}
