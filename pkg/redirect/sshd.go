package redirect

import (
	"os"
	"path/filepath"
	"regexp"
	"strconv"

	cerr "github.com/cockroachdb/errors"
)

// portDirective matches an uncommented Port directive at the start of a line.
var portDirective = regexp.MustCompile(`(?m)^Port[ \t]*\d*`)

// BackupSuffix is appended to the sshd configuration path for the
// pre-diversion copy.
const BackupSuffix = ".bak"

// SetPort returns content with every Port directive set to port, or with a
// Port directive prepended when there is none.
func SetPort(content []byte, port int) []byte {
	line := []byte("Port " + strconv.Itoa(port))
	if portDirective.Match(content) {
		return portDirective.ReplaceAllLiteral(content, line)
	}
	return append(append(line, '\n'), content...)
}

// BackupConfig copies path to path+BackupSuffix byte-for-byte, keeping the
// file mode.
func BackupConfig(path string) (string, error) {
	backup := path + BackupSuffix
	if err := copyFile(path, backup); err != nil {
		return "", cerr.Wrapf(err, "failed to back up %s", path)
	}
	return backup, nil
}

// RestoreConfig copies backup over path byte-for-byte.
func RestoreConfig(path, backup string) error {
	if err := copyFile(backup, path); err != nil {
		return cerr.Wrapf(err, "failed to restore %s from %s", path, backup)
	}
	return nil
}

// WritePort rewrites the Port directive of the file at path in place.
func WritePort(path string, port int) error {
	content, err := os.ReadFile(path)
	if err != nil {
		return cerr.Wrapf(err, "failed to read %s", path)
	}
	info, err := os.Stat(path)
	if err != nil {
		return cerr.Wrapf(err, "failed to stat %s", path)
	}
	return atomicWrite(path, SetPort(content, port), info.Mode().Perm())
}

func copyFile(src, dst string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	info, err := os.Stat(src)
	if err != nil {
		return err
	}
	return atomicWrite(dst, data, info.Mode().Perm())
}

func atomicWrite(path string, data []byte, mode os.FileMode) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Chmod(mode); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return cerr.Wrapf(err, "replace %s", path)
	}
	return nil
}
