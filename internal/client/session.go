package client

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// SessionUser is the account a session belongs to.
type SessionUser struct {
	ID       uint64 `yaml:"id" json:"id"`
	Username string `yaml:"username" json:"username"`
	Email    string `yaml:"email" json:"email"`
}

// Session is the authenticated state of the client. It is created by Login or Register,
// persisted to Path, rehydrated with LoadSession and cleared by Logout.
type Session struct {
	Token string      `yaml:"token"`
	User  SessionUser `yaml:"user"`

	Path string `yaml:"-"`
}

// DefaultSessionPath is $XDG_CONFIG_HOME/notesy/session.yaml (or the OS equivalent).
func DefaultSessionPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "notesy", "session.yaml"), nil
}

// LoadSession reads the session stored at path. A missing file yields an empty,
// unauthenticated session.
func LoadSession(path string) (*Session, error) {
	s := &Session{Path: path}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read session: %w", err)
	}
	if err := yaml.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("parse session %s: %w", path, err)
	}
	s.Path = path
	return s, nil
}

func (s *Session) Authenticated() bool {
	return s != nil && s.Token != ""
}

func (s *Session) Save() error {
	if s.Path == "" {
		return nil
	}
	data, err := yaml.Marshal(s)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.Path), 0o700); err != nil {
		return fmt.Errorf("create session dir: %w", err)
	}
	return os.WriteFile(s.Path, data, 0o600)
}

// Clear forgets the token and removes the stored session.
func (s *Session) Clear() error {
	s.Token = ""
	s.User = SessionUser{}
	if s.Path == "" {
		return nil
	}
	if err := os.Remove(s.Path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}
