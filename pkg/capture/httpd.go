// pkg/capture/httpd.go

package capture

import (
	"bufio"
	"io"
	"net/url"
	"os"
	"regexp"
	"strings"

	"github.com/CodeMonkeyCybersecurity/honeydash/pkg/honey_err"
)

// maxLineBytes bounds how much of a bistream line is read.
const maxLineBytes = 1 << 20

// fieldLead matches what may precede a key in escaped transcript text: an
// escaped CR or LF, or any non-word character. Word boundaries do not work
// here because "\r\nuser" has no boundary before "user".
const fieldLead = `(?:^|\\[rn]|[^A-Za-z0-9_])`

var (
	httpRequest   = regexp.MustCompile(`\b(GET|POST|HEAD|PUT|DELETE|OPTIONS|PATCH|CONNECT|TRACE|PROPFIND)\s+(\S+)\s+HTTP/\d`)
	httpUserAgent = regexp.MustCompile(`(?i)User-Agent:\s*(.*?)\\r\\n`)
	httpHost      = regexp.MustCompile(`(?i)\\nHost:\s*([^\\:\s]+)`)
	httpUsername  = regexp.MustCompile(fieldLead + `(?:username|user|login|uname)=([^&\s\\']*)`)
	httpPassword  = regexp.MustCompile(fieldLead + `(?:password|passwd|pass|pwd)=([^&\s\\']*)`)
	httpFilename  = regexp.MustCompile(fieldLead + `(?:filename|file)=([^&\s\\']*)`)
)

// HTTPParser reads the first line of a web transcript, which holds the
// request line, the headers and any URL-encoded body.
type HTTPParser struct{}

func (HTTPParser) Tag() string { return "httpd" }

func (HTTPParser) Parse(a Artifact) (*CanonicalEvent, error) {
	line, err := firstLine(a.Path)
	if err != nil {
		return nil, honey_err.Skipf("%s: %v", a.Name, err)
	}
	req := httpRequest.FindStringSubmatch(line)
	if req == nil {
		return nil, honey_err.Skipf("%s: no HTTP request line", a.Name)
	}

	ev := newEvent(a)
	ev.Method = ptr(req[1])
	ev.Path = ptr(req[2])
	ev.UserAgent = submatch(httpUserAgent, line)
	// The Host header names the decoy as the client addressed it; it only
	// stands in when the artifact name carries no peer address.
	if a.RemoteIP != "" {
		ev.SrcIP = ptr(a.RemoteIP)
	} else {
		ev.SrcIP = submatch(httpHost, line)
	}
	ev.Username = formValue(httpUsername, line)
	ev.Password = formValue(httpPassword, line)
	ev.Filename = formValue(httpFilename, line)
	return ev, nil
}

func formValue(re *regexp.Regexp, line string) *string {
	v := submatch(re, line)
	if v == nil {
		return nil
	}
	if dec, err := url.QueryUnescape(*v); err == nil {
		return &dec
	}
	return v
}

func firstLine(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer func() { _ = f.Close() }()

	line, err := bufio.NewReader(io.LimitReader(f, maxLineBytes)).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", err
	}
	line = strings.TrimRight(line, "\r\n")
	if line == "" {
		return "", io.ErrUnexpectedEOF
	}
	return line, nil
}
