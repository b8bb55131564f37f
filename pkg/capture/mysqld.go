// pkg/capture/mysqld.go

package capture

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/CodeMonkeyCybersecurity/honeydash/pkg/honey_err"
)

var (
	// The handshake response pads with 23 zero bytes before the
	// null-terminated user name.
	mysqlUsername = regexp.MustCompile(`(?:\\x00){4,}([A-Za-z0-9_.@$-]{1,32})\\x00`)
	// A one-byte length marker followed by a printable run.
	mysqlPassword = regexp.MustCompile(`^(\\x[0-9a-f]{2}|\\t|\\n|\\r)([A-Za-z0-9!@#$%^&*()_+=.,:;?~\[\]{}|<>/-]+)`)
)

// MySQLParser recovers credentials from a MySQL handshake response.
//
// The artifact is raw protocol bytes rendered as escaped text, so the
// extraction is a heuristic and its output is advisory. After the user
// name, in order:
//   - a zero auth length means no password was sent;
//   - a length marker followed by at least that many printable characters
//     is taken as a plaintext password of that length;
//   - anything else is reported as hashed.
type MySQLParser struct{}

func (MySQLParser) Tag() string { return "mysqld" }

func (MySQLParser) Parse(a Artifact) (*CanonicalEvent, error) {
	text, err := readArtifact(a.Path)
	if err != nil {
		return nil, honey_err.Skipf("%s: %v", a.Name, err)
	}

	for _, line := range strings.Split(text, "\n") {
		if !strings.Contains(line, "'in'") {
			continue
		}
		loc := mysqlUsername.FindStringSubmatchIndex(line)
		if loc == nil {
			continue
		}
		ev := newEvent(a)
		if a.RemoteIP != "" {
			ev.SrcIP = ptr(a.RemoteIP)
		}
		ev.Username = ptr(line[loc[2]:loc[3]])
		ev.Password = ptr(mysqlAuth(line[loc[1]:]))
		return ev, nil
	}
	return nil, honey_err.Skipf("%s: no handshake response", a.Name)
}

// mysqlAuth classifies the auth-response field that follows the user name.
func mysqlAuth(rest string) string {
	if strings.HasPrefix(rest, `\x00`) {
		return PasswordNotSent
	}
	m := mysqlPassword.FindStringSubmatch(rest)
	if m == nil {
		return PasswordHashed
	}
	n := markerLength(m[1])
	if n <= 0 || len(m[2]) < n {
		return PasswordHashed
	}
	return m[2][:n]
}

func markerLength(marker string) int {
	switch marker {
	case `\t`:
		return 9
	case `\n`:
		return 10
	case `\r`:
		return 13
	}
	n, err := strconv.ParseUint(strings.TrimPrefix(marker, `\x`), 16, 8)
	if err != nil {
		return 0
	}
	return int(n)
}
