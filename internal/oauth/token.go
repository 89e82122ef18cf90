package oauth

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
)

// State is where the manager stands before serving a token.
type State int

const (
	NoToken State = iota
	HaveRefreshToken
	HaveAccessToken
)

func (s State) String() string {
	switch s {
	case HaveRefreshToken:
		return "have_refresh_token"
	case HaveAccessToken:
		return "have_access_token"
	default:
		return "no_token"
	}
}

// expiryLeeway treats tokens this close to expiry as expired.
const expiryLeeway = 60 * time.Second

// Token is the persisted grant.
type Token struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	TokenType    string    `json:"token_type,omitempty"`
	ExpiresIn    int64     `json:"expires_in,omitempty"`
	Expiry       time.Time `json:"expiry,omitempty"`
	APIDomain    string    `json:"api_domain,omitempty"`
	Scope        string    `json:"scope,omitempty"`
}

// StateAt classifies the token at now. A nil token is NoToken.
func (t *Token) StateAt(now time.Time) State {
	switch {
	case t == nil:
		return NoToken
	case t.AccessToken != "" && !t.Expiry.IsZero() && now.Add(expiryLeeway).Before(t.Expiry):
		return HaveAccessToken
	case t.RefreshToken != "":
		return HaveRefreshToken
	default:
		return NoToken
	}
}

// TokenStore persists the token between runs.
type TokenStore interface {
	// Load returns nil, nil when nothing has been stored yet.
	Load() (*Token, error)
	Save(tok *Token) error
}

// FileStore keeps the token as JSON in a file readable only by its owner.
type FileStore struct {
	path string
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (s *FileStore) Load() (*Token, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "read token file %s", s.path)
	}
	var tok Token
	if err := json.Unmarshal(data, &tok); err != nil {
		return nil, errors.Wrapf(err, "parse token file %s", s.path)
	}
	return &tok, nil
}

// Save replaces the file atomically through a temp file in the same directory.
func (s *FileStore) Save(tok *Token) error {
	data, err := json.MarshalIndent(tok, "", "  ")
	if err != nil {
		return errors.Wrap(err, "encode token")
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return errors.Wrap(err, "create temp token file")
	}
	defer os.Remove(tmp.Name())

	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return errors.Wrap(err, "chmod temp token file")
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return errors.Wrap(err, "write temp token file")
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, "close temp token file")
	}
	return errors.Wrap(os.Rename(tmp.Name(), s.path), "replace token file")
}
