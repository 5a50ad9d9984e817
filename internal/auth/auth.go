package auth

import (
	"crypto/subtle"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Authenticator checks logins against a static username→password mapping
// supplied out-of-band. Usernames are compared case-insensitively; no tokens
// are issued and nothing expires here.
type Authenticator struct {
	users map[string]string
}

type credentialsFile struct {
	Users map[string]string `yaml:"users"`
}

// New builds an Authenticator from an in-memory mapping.
func New(users map[string]string) *Authenticator {
	normalized := make(map[string]string, len(users))
	for name, password := range users {
		normalized[strings.ToLower(name)] = password
	}
	return &Authenticator{users: normalized}
}

// LoadFile reads a YAML credentials file of the form:
//
//	users:
//	  alice: secret
func LoadFile(path string) (*Authenticator, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading credentials file: %w", err)
	}

	var file credentialsFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("parsing credentials file: %w", err)
	}
	if len(file.Users) == 0 {
		return nil, fmt.Errorf("credentials file %s defines no users", path)
	}

	return New(file.Users), nil
}

// Verify reports whether the username/password pair is valid.
func (a *Authenticator) Verify(username, password string) bool {
	want, ok := a.users[strings.ToLower(strings.TrimSpace(username))]
	if !ok {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(want), []byte(password)) == 1
}
