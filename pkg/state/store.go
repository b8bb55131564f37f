// Package state persists the SSH diversion record so that a later process,
// possibly after a crash, can restore the host.
package state

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/CodeMonkeyCybersecurity/honeydash/pkg/honey_io"
	cerr "github.com/cockroachdb/errors"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
	"golang.org/x/sys/unix"
)

// RedirectionState records one active diversion.
type RedirectionState struct {
	SSHPort         int  `json:"ssh_port"`
	OriginalSSHPort int  `json:"original_ssh_port"`
	DecoyPort       int  `json:"decoy_port"`
	RuleInstalled   bool `json:"rule_installed"`
	// ConfigBackup is the path of the pre-diversion sshd configuration copy.
	ConfigBackup string    `json:"config_backup,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type document struct {
	Hosts       map[string]*RedirectionState `json:"hosts"`
	LastUpdated time.Time                    `json:"last_updated"`
}

// Store reads and writes the state document for one host.
type Store struct {
	path string
	host string
	mu   sync.Mutex
}

// NewStore returns a store at path keyed by host. An empty host resolves
// to os.Hostname.
func NewStore(path, host string) *Store {
	if host == "" {
		if h, err := os.Hostname(); err == nil {
			host = h
		} else {
			host = "localhost"
		}
	}
	return &Store{path: path, host: host}
}

func (s *Store) Path() string { return s.path }
func (s *Store) Host() string { return s.host }

// Load returns the host's record and whether one exists.
func (s *Store) Load(rc *honey_io.RuntimeContext) (*RedirectionState, bool, error) {
	doc, err := s.read()
	if err != nil {
		return nil, false, err
	}
	st, ok := doc.Hosts[s.host]
	if !ok || st == nil {
		otelzap.Ctx(rc.Ctx).Debug("No diversion record", zap.String("host", s.host), zap.String("path", s.path))
		return nil, false, nil
	}
	return st, true, nil
}

// Save writes the host's record atomically.
func (s *Store) Save(rc *honey_io.RuntimeContext, st *RedirectionState) error {
	doc, err := s.read()
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	if st.CreatedAt.IsZero() {
		st.CreatedAt = now
	}
	st.UpdatedAt = now
	doc.Hosts[s.host] = st
	if err := s.write(doc); err != nil {
		return err
	}
	otelzap.Ctx(rc.Ctx).Info("Saved diversion record",
		zap.String("host", s.host),
		zap.Int("ssh_port", st.SSHPort),
		zap.Bool("rule_installed", st.RuleInstalled))
	return nil
}

// Delete removes the host's record, and the file once no host remains.
func (s *Store) Delete(rc *honey_io.RuntimeContext) error {
	doc, err := s.read()
	if err != nil {
		return err
	}
	delete(doc.Hosts, s.host)
	if len(doc.Hosts) == 0 {
		if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return cerr.Wrap(err, "failed to remove state file")
		}
	} else if err := s.write(doc); err != nil {
		return err
	}
	otelzap.Ctx(rc.Ctx).Info("Deleted diversion record", zap.String("host", s.host))
	return nil
}

// Lock serialises diversion operations on this host, across goroutines and
// processes. The returned func releases the lock.
func (s *Store) Lock(rc *honey_io.RuntimeContext) (func(), error) {
	s.mu.Lock()

	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		s.mu.Unlock()
		return nil, cerr.Wrap(err, "failed to create state directory")
	}
	f, err := os.OpenFile(s.path+".lock", os.O_CREATE|os.O_RDWR, 0600)
	if err != nil {
		s.mu.Unlock()
		return nil, cerr.Wrap(err, "failed to open lock file")
	}
	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX); err != nil {
		f.Close()
		s.mu.Unlock()
		return nil, cerr.Wrapf(err, "failed to lock %s", f.Name())
	}
	otelzap.Ctx(rc.Ctx).Debug("Acquired diversion lock", zap.String("lock", f.Name()))

	return func() {
		_ = unix.Flock(int(f.Fd()), unix.LOCK_UN)
		f.Close()
		s.mu.Unlock()
	}, nil
}

func (s *Store) read() (*document, error) {
	doc := &document{Hosts: map[string]*RedirectionState{}}
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return doc, nil
	}
	if err != nil {
		return nil, cerr.Wrap(err, "failed to read state file")
	}
	if err := json.Unmarshal(data, doc); err != nil {
		return nil, cerr.Wrap(err, "failed to unmarshal state")
	}
	if doc.Hosts == nil {
		doc.Hosts = map[string]*RedirectionState{}
	}
	return doc, nil
}

func (s *Store) write(doc *document) error {
	doc.LastUpdated = time.Now().UTC()
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return cerr.Wrap(err, "failed to marshal state")
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return cerr.Wrap(err, "failed to create state directory")
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return cerr.Wrap(err, "failed to create temp state file")
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return cerr.Wrap(err, "failed to write state file")
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return cerr.Wrap(err, "failed to sync state file")
	}
	if err := tmp.Chmod(0600); err != nil {
		tmp.Close()
		return cerr.Wrap(err, "failed to chmod state file")
	}
	if err := tmp.Close(); err != nil {
		return cerr.Wrap(err, "failed to close state file")
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return cerr.Wrap(err, "failed to replace state file")
	}
	return nil
}
