// pkg/capture/ftpd.go

package capture

import (
	"io"
	"os"
	"regexp"

	"github.com/CodeMonkeyCybersecurity/honeydash/pkg/honey_err"
)

// maxArtifactBytes bounds how much of an artifact is read in full.
const maxArtifactBytes = 8 << 20

var (
	ftpUser = regexp.MustCompile(fieldLead + `USER\s+([^\\\s']+)`)
	ftpPass = regexp.MustCompile(fieldLead + `PASS\s+([^\\\s']*)`)
	ftpFile = regexp.MustCompile(fieldLead + `(?:RETR|STOR)\s+([^\\\s']+)`)
)

// FTPParser takes the first USER, PASS and RETR/STOR commands of a
// session. The client address comes from the artifact name.
type FTPParser struct{}

func (FTPParser) Tag() string { return "ftpd" }

func (FTPParser) Parse(a Artifact) (*CanonicalEvent, error) {
	text, err := readArtifact(a.Path)
	if err != nil {
		return nil, honey_err.Skipf("%s: %v", a.Name, err)
	}

	ev := newEvent(a)
	ev.Username = submatch(ftpUser, text)
	ev.Password = submatch(ftpPass, text)
	ev.Filename = submatch(ftpFile, text)
	if ev.Username == nil && ev.Password == nil && ev.Filename == nil {
		return nil, honey_err.Skipf("%s: no FTP commands", a.Name)
	}
	if a.RemoteIP != "" {
		ev.SrcIP = ptr(a.RemoteIP)
	}
	return ev, nil
}

func readArtifact(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer func() { _ = f.Close() }()
	data, err := io.ReadAll(io.LimitReader(f, maxArtifactBytes))
	if err != nil {
		return "", err
	}
	return string(data), nil
}
