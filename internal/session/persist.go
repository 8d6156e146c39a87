package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/zalando/go-keyring"
)

const (
	// KeyringService is the keyring service name sessions are stored under.
	KeyringService = "tourdesk"

	// StorageKey is the well-known key holding the serialized session.
	StorageKey = "tourdesk-auth-session"

	// FileName is the session file inside the data directory.
	FileName = "session.json"
)

// Persister keeps the current session between process runs.
// Load returns nil when nothing is stored.
type Persister interface {
	Load() (*Session, error)
	Save(Session) error
	Clear() error
}

// NewPersister returns the persister for kind: "keyring", "file" or "none".
func NewPersister(kind, dataDir string) (Persister, error) {
	switch kind {
	case "keyring":
		return KeyringPersister{Service: KeyringService, Key: StorageKey}, nil
	case "file":
		return FilePersister{Path: filepath.Join(dataDir, FileName)}, nil
	case "none", "":
		return &MemoryPersister{}, nil
	default:
		return nil, fmt.Errorf("unknown session store %q (want keyring, file or none)", kind)
	}
}

// Current loads the persisted session. An expired session is cleared and
// reported as signed out.
func Current(p Persister, now time.Time) (*Session, error) {
	s, err := p.Load()
	if err != nil || s == nil {
		return nil, err
	}
	if s.Expired(now) {
		if err := p.Clear(); err != nil {
			return nil, err
		}
		return nil, nil
	}
	return s, nil
}

// KeyringPersister stores the session JSON in the OS keyring.
type KeyringPersister struct {
	Service string
	Key     string
}

func (k KeyringPersister) Load() (*Session, error) {
	raw, err := keyring.Get(k.Service, k.Key)
	if errors.Is(err, keyring.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read session from keyring: %w", err)
	}
	return decode([]byte(raw))
}

func (k KeyringPersister) Save(s Session) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	if err := keyring.Set(k.Service, k.Key, string(data)); err != nil {
		return fmt.Errorf("write session to keyring: %w", err)
	}
	return nil
}

func (k KeyringPersister) Clear() error {
	err := keyring.Delete(k.Service, k.Key)
	if err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return fmt.Errorf("delete session from keyring: %w", err)
	}
	return nil
}

// FilePersister stores the session JSON in a file readable only by the
// owner.
type FilePersister struct {
	Path string
}

func (f FilePersister) Load() (*Session, error) {
	data, err := os.ReadFile(f.Path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read session file: %w", err)
	}
	return decode(data)
}

func (f FilePersister) Save(s Session) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(f.Path), 0o700); err != nil {
		return fmt.Errorf("create session dir: %w", err)
	}
	if err := os.WriteFile(f.Path, data, 0o600); err != nil {
		return fmt.Errorf("write session file: %w", err)
	}
	return nil
}

func (f FilePersister) Clear() error {
	err := os.Remove(f.Path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove session file: %w", err)
	}
	return nil
}

// MemoryPersister keeps the session for the life of the process only.
// It is safe for concurrent use.
type MemoryPersister struct {
	mu      sync.Mutex
	current *Session
}

func (m *MemoryPersister) Load() (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil {
		return nil, nil
	}
	cp := *m.current
	return &cp, nil
}

func (m *MemoryPersister) Save(s Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current = &s
	return nil
}

func (m *MemoryPersister) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current = nil
	return nil
}

func decode(data []byte) (*Session, error) {
	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	return &s, nil
}
