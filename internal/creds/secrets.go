package creds

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/oauth2"

	"github.com/TheMichaelB/photosync/internal/models"
)

// ScopeReadOnly grants read access to the user's photo library.
const ScopeReadOnly = "https://www.googleapis.com/auth/photoslibrary.readonly"

// ParseClientSecrets parses a client secrets JSON document.
func ParseClientSecrets(data []byte) (*models.ClientSecrets, error) {
	var secrets models.ClientSecrets
	if err := json.Unmarshal(data, &secrets); err != nil {
		return nil, fmt.Errorf("parse client secrets: %w", err)
	}

	client := secrets.Client()
	if client == nil {
		return nil, errors.New("client secrets: no installed or web client")
	}
	if client.ClientID == "" || client.TokenURI == "" || client.AuthURI == "" {
		return nil, errors.New("client secrets: client_id, auth_uri and token_uri are required")
	}

	return &secrets, nil
}

// LoadClientSecrets loads client secrets from a local file path.
func LoadClientSecrets(path string) (*models.ClientSecrets, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read client secrets: %w", err)
	}
	return ParseClientSecrets(b)
}

// OAuthConfig builds the oauth2 configuration for the installed-app flow.
func OAuthConfig(secrets *models.ClientSecrets, scopes ...string) *oauth2.Config {
	client := secrets.Client()
	if len(scopes) == 0 {
		scopes = []string{ScopeReadOnly}
	}

	var redirect string
	if len(client.RedirectURIs) > 0 {
		redirect = client.RedirectURIs[0]
	}

	return &oauth2.Config{
		ClientID:     client.ClientID,
		ClientSecret: client.ClientSecret,
		RedirectURL:  redirect,
		Scopes:       scopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:   client.AuthURI,
			TokenURL:  client.TokenURI,
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}
}

// LoadToken reads a persisted token.
func LoadToken(path string) (*oauth2.Token, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, models.ErrNotAuthenticated
		}
		return nil, fmt.Errorf("read token file: %w", err)
	}

	var token oauth2.Token
	if err := json.Unmarshal(data, &token); err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}
	if token.AccessToken == "" && token.RefreshToken == "" {
		return nil, models.ErrNotAuthenticated
	}
	return &token, nil
}

// SaveToken persists a token with owner-only permissions.
func SaveToken(path string, token *oauth2.Token) error {
	data, err := json.MarshalIndent(token, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal token: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("create token directory: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("write token: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename token: %w", err)
	}
	return nil
}
