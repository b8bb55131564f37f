// pkg/capture/artifact.go

// Package capture turns the raw artifacts a decoy writes to disk into
// canonical events, and lists captured binary payloads.
package capture

import (
	"regexp"
	"strconv"
)

// TimestampLayout is the artifact timestamp format. It sorts lexically.
const TimestampLayout = "2006-01-02-15-04-05"

var (
	artifactName = regexp.MustCompile(`^([a-z0-9_]+)-(\d{1,5})-([0-9A-Fa-f.:]+)-(\d{4}-\d{2}-\d{2}-\d{2}-\d{2}-\d{2})-(.+)$`)
	timestampRE  = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}-\d{2}-\d{2}-\d{2}$`)
)

// Artifact is one bistream file and the metadata embedded in its name:
// <tag>-<localport>-<remoteip>-<YYYY-MM-DD-HH-MM-SS>-<id>.
type Artifact struct {
	Path      string
	Name      string
	Tag       string
	LocalPort int
	RemoteIP  string
	Timestamp string
	ID        string
}

// ParseArtifactName splits a bistream file name. Names that do not follow
// the scheme are rejected.
func ParseArtifactName(name string) (Artifact, bool) {
	m := artifactName.FindStringSubmatch(name)
	if m == nil {
		return Artifact{}, false
	}
	port, err := strconv.Atoi(m[2])
	if err != nil || port > 65535 {
		return Artifact{}, false
	}
	return Artifact{
		Name:      name,
		Tag:       m[1],
		LocalPort: port,
		RemoteIP:  m[3],
		Timestamp: m[4],
		ID:        m[5],
	}, true
}

// ValidTimestamp reports whether s has the artifact timestamp shape.
func ValidTimestamp(s string) bool {
	return timestampRE.MatchString(s)
}
