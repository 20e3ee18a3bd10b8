// CLAUDE:SUMMARY Resolves login credentials from ERI_USER/ERI_PASS or a JSON5 credential file.
package session

import (
	"errors"
	"fmt"
	"os"

	"github.com/titanous/json5"
)

// Environment variables holding login credentials.
const (
	EnvUser = "ERI_USER"
	EnvPass = "ERI_PASS"
)

// Credentials is a username/password pair.
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Valid reports whether both fields are set.
func (c Credentials) Valid() bool { return c.Username != "" && c.Password != "" }

// ResolveCredentials returns credentials from the environment, else from
// the JSON5 file at path. ok is false when neither source has a complete
// pair; err is set only when the file exists but cannot be read.
func ResolveCredentials(getenv func(string) string, path string) (Credentials, bool, error) {
	if getenv == nil {
		getenv = os.Getenv
	}
	c := Credentials{Username: getenv(EnvUser), Password: getenv(EnvPass)}
	if c.Valid() {
		return c, true, nil
	}
	if path == "" {
		return Credentials{}, false, nil
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return Credentials{}, false, nil
	}
	if err != nil {
		return Credentials{}, false, fmt.Errorf("session: read credentials: %w", err)
	}
	var fc Credentials
	if err := json5.Unmarshal(data, &fc); err != nil {
		return Credentials{}, false, fmt.Errorf("session: decode credentials %s: %w", path, err)
	}
	return fc, fc.Valid(), nil
}
