// Package gauth loads the Google service account shared by the Sheets ledger, the Gmail
// source and Document AI.
package gauth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"

	"golang.org/x/oauth2/google"
	"golang.org/x/oauth2/jwt"
)

// ErrMissingCredentials is returned when neither a credentials file nor inline JSON is set.
var ErrMissingCredentials = errors.New("neither GOOGLE_APPLICATION_CREDENTIALS nor GOOGLE_CREDENTIALS is set")

// Source names where the service account key lives. File wins over JSON.
type Source struct {
	File string
	JSON string
}

// Load returns the service account key bytes.
func (s Source) Load() ([]byte, error) {
	const op = "Load"

	if s.File != "" {
		creds, err := os.ReadFile(s.File)
		if err != nil {
			return nil, fmt.Errorf("%s: failed to read credentials file: %w", op, err)
		}
		return creds, nil
	}
	if strings.TrimSpace(s.JSON) != "" {
		return []byte(s.JSON), nil
	}
	return nil, fmt.Errorf("%s: %w", op, ErrMissingCredentials)
}

// JWTConfig parses the key for the given scopes. A non-empty subject impersonates that
// user through domain-wide delegation, which Gmail requires.
func (s Source) JWTConfig(subject string, scopes ...string) (*jwt.Config, error) {
	const op = "JWTConfig"

	creds, err := s.Load()
	if err != nil {
		return nil, err
	}
	config, err := google.JWTConfigFromJSON(creds, scopes...)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to parse credentials: %w", op, err)
	}
	config.Subject = subject
	return config, nil
}

// HTTPClient returns an authorized client for the given scopes.
func (s Source) HTTPClient(ctx context.Context, subject string, scopes ...string) (*http.Client, error) {
	config, err := s.JWTConfig(subject, scopes...)
	if err != nil {
		return nil, err
	}
	return config.Client(ctx), nil
}
