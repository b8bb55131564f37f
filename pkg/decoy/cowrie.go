package decoy

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/CodeMonkeyCybersecurity/honeydash/pkg/locator"
	cerr "github.com/cockroachdb/errors"
)

var (
	sectionHeader   = regexp.MustCompile(`^\s*\[([^\]]+)\]\s*$`)
	listenEndpoints = regexp.MustCompile(`^\s*listen_endpoints\s*=\s*(.*?)\s*$`)
)

// CowrieConfigPath is the operator configuration file of a Cowrie root.
func CowrieConfigPath(root string) string {
	return filepath.Join(root, "etc", "cowrie.cfg")
}

// ListenEndpoint is the [ssh] listen_endpoints value binding port on every
// interface.
func ListenEndpoint(port int) string {
	return fmt.Sprintf("tcp:%d:interface=0.0.0.0", port)
}

// CowrieConfigured reports whether the [ssh] section of content binds the
// decoy port on all interfaces.
func CowrieConfigured(content []byte, port int) bool {
	want := ListenEndpoint(port)
	section := ""
	sc := bufio.NewScanner(bytes.NewReader(content))
	for sc.Scan() {
		line := sc.Text()
		if m := sectionHeader.FindStringSubmatch(line); m != nil {
			section = strings.TrimSpace(m[1])
			continue
		}
		if section != "ssh" {
			continue
		}
		if m := listenEndpoints.FindStringSubmatch(line); m != nil && m[1] == want {
			return true
		}
	}
	return false
}

// ConfigureCowrieContent sets listen_endpoints in the [ssh] section,
// replacing an existing value, adding the key at the top of the section, or
// prepending the section when there is none.
func ConfigureCowrieContent(content []byte, port int) []byte {
	directive := "listen_endpoints = " + ListenEndpoint(port)
	lines := strings.Split(string(content), "\n")

	sshAt := -1
	for i, line := range lines {
		if m := sectionHeader.FindStringSubmatch(line); m != nil && strings.TrimSpace(m[1]) == "ssh" {
			sshAt = i
			break
		}
	}
	if sshAt < 0 {
		return []byte("[ssh]\n" + directive + "\n\n" + string(content))
	}

	for i := sshAt + 1; i < len(lines); i++ {
		if sectionHeader.MatchString(lines[i]) {
			break
		}
		if listenEndpoints.MatchString(lines[i]) {
			lines[i] = directive
			return []byte(strings.Join(lines, "\n"))
		}
	}

	out := make([]string, 0, len(lines)+1)
	out = append(out, lines[:sshAt+1]...)
	out = append(out, directive)
	out = append(out, lines[sshAt+1:]...)
	return []byte(strings.Join(out, "\n"))
}

// IsCowrieConfigured reads the configuration under root. A missing file
// means not configured.
func IsCowrieConfigured(root string, port int) (bool, error) {
	data, err := os.ReadFile(CowrieConfigPath(root))
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, cerr.Wrap(err, "failed to read cowrie configuration")
	}
	return CowrieConfigured(data, port), nil
}

// ConfigureCowrie writes the listener configuration, seeding cowrie.cfg
// from cowrie.cfg.dist when needed. It returns false when the file already
// had the right value.
func ConfigureCowrie(root string, port int) (bool, error) {
	path := CowrieConfigPath(root)
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		data, err = os.ReadFile(path + ".dist")
		if errors.Is(err, os.ErrNotExist) {
			return false, notConfigured(locator.Cowrie,
				"neither etc/cowrie.cfg nor etc/cowrie.cfg.dist exists")
		}
	}
	if err != nil {
		return false, cerr.Wrap(err, "failed to read cowrie configuration")
	}
	if CowrieConfigured(data, port) {
		if _, statErr := os.Stat(path); statErr == nil {
			return false, nil
		}
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, ConfigureCowrieContent(data, port), 0644); err != nil {
		return false, cerr.Wrapf(err, "failed to write %s", tmp)
	}
	if err := os.Rename(tmp, path); err != nil {
		return false, cerr.Wrapf(err, "failed to replace %s", path)
	}
	return true, nil
}
