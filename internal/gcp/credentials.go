// Package gcp loads Google service account credentials from the environment.
package gcp

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"

	"golang.org/x/oauth2/google"
)

// ErrMissingCredentials is returned when neither GOOGLE_APPLICATION_CREDENTIALS
// nor GOOGLE_CREDENTIALS is configured.
var ErrMissingCredentials = errors.New("missing Google credentials: set GOOGLE_APPLICATION_CREDENTIALS or GOOGLE_CREDENTIALS")

// ServiceAccountJSON returns the service account key, preferring the file path.
func ServiceAccountJSON() ([]byte, error) {
	if credsFile := os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"); credsFile != "" {
		creds, err := os.ReadFile(credsFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read credentials file: %w", err)
		}
		return creds, nil
	}
	if credsJSON := os.Getenv("GOOGLE_CREDENTIALS"); credsJSON != "" {
		return []byte(credsJSON), nil
	}
	return nil, ErrMissingCredentials
}

// HTTPClient returns an HTTP client that signs requests with a JWT access token for
// the given scopes.
func HTTPClient(ctx context.Context, scopes ...string) (*http.Client, error) {
	creds, err := ServiceAccountJSON()
	if err != nil {
		return nil, err
	}
	config, err := google.JWTConfigFromJSON(creds, scopes...)
	if err != nil {
		return nil, fmt.Errorf("failed to parse credentials: %w", err)
	}
	return config.Client(ctx), nil
}
