// pkg/capture/event.go

package capture

// Password sentinels emitted by the database parser.
const (
	PasswordNotSent = "Password not sent"
	PasswordHashed  = "Password is hashed"
)

// CanonicalEvent is the protocol-agnostic record derived from one artifact.
// A nil field was not observed; an empty string was observed empty.
type CanonicalEvent struct {
	Timestamp string  `json:"timestamp"`
	Protocol  string  `json:"protocol"`
	SrcIP     *string `json:"src_ip,omitempty"`
	UserAgent *string `json:"user_agent,omitempty"`
	Method    *string `json:"method,omitempty"`
	Path      *string `json:"path,omitempty"`
	Username  *string `json:"username,omitempty"`
	Password  *string `json:"password,omitempty"`
	Filename  *string `json:"filename,omitempty"`
}

// Parser maps one artifact to an event. Artifacts that cannot be read or
// do not match the protocol's shape yield an error wrapping
// honey_err.ErrParseSkipped.
type Parser interface {
	Tag() string
	Parse(a Artifact) (*CanonicalEvent, error)
}

// DefaultParsers returns a parser for every supported protocol.
func DefaultParsers() []Parser {
	return []Parser{HTTPParser{}, FTPParser{}, MySQLParser{}}
}

func newEvent(a Artifact) *CanonicalEvent {
	return &CanonicalEvent{Timestamp: a.Timestamp, Protocol: a.Tag}
}

func ptr(s string) *string { return &s }

// submatch returns the first capture group of re in s.
func submatch(re interface {
	FindStringSubmatch(string) []string
}, s string) *string {
	if m := re.FindStringSubmatch(s); m != nil {
		return ptr(m[1])
	}
	return nil
}
