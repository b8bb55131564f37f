package cmd_helpers

import (
	"sync"

	"github.com/CodeMonkeyCybersecurity/honeydash/pkg/capture"
	"github.com/CodeMonkeyCybersecurity/honeydash/pkg/honey_io"
)

// Captures answers capture queries for a long-running server. Resolved
// locations are cached until Reset, which callers invoke after an
// installation path changes.
type Captures struct {
	svc *Services

	mu        sync.Mutex
	engine    *capture.Engine
	cowrieLog string
}

func NewCaptures(svc *Services) *Captures {
	return &Captures{svc: svc}
}

// Reset drops the cached capture root and log path.
func (c *Captures) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.engine = nil
	c.cowrieLog = ""
}

func (c *Captures) current(rc *honey_io.RuntimeContext) *capture.Engine {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.engine == nil {
		c.engine = c.svc.Engine(rc)
	}
	return c.engine
}

func (c *Captures) QueryEvents(rc *honey_io.RuntimeContext, q capture.Query) ([]capture.CanonicalEvent, error) {
	return c.current(rc).QueryEvents(rc, q)
}

func (c *Captures) ListArtifacts(rc *honey_io.RuntimeContext, page int) (*capture.ArtifactPage, error) {
	return c.current(rc).ListArtifacts(rc, page)
}

func (c *Captures) CowrieLog(rc *honey_io.RuntimeContext, q capture.LogQuery) ([]capture.LogEntry, error) {
	c.mu.Lock()
	path := c.cowrieLog
	c.mu.Unlock()
	if path == "" {
		p, err := c.svc.CowrieLogPath(rc)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.cowrieLog = p
		c.mu.Unlock()
		path = p
	}
	return capture.ReadCowrieLog(rc, path, q)
}
