package auth

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"

	"github.com/TheMichaelB/photosync/internal/creds"
	"github.com/TheMichaelB/photosync/internal/events"
	"github.com/TheMichaelB/photosync/internal/models"
)

// Service is the credential provider: it hands out valid bearer tokens,
// refreshing and persisting them as needed.
type Service struct {
	config    *oauth2.Config
	tokenFile string
	logger    *events.Logger

	mu    sync.Mutex
	token *oauth2.Token
}

// NewService creates an auth service.
func NewService(config *oauth2.Config, tokenFile string, logger *events.Logger) *Service {
	return &Service{
		config:    config,
		tokenFile: tokenFile,
		logger:    logger.WithField("service", "auth"),
	}
}

// AuthCodeURL returns the consent page URL and the state value it carries.
func (s *Service) AuthCodeURL() (url, state string) {
	state = uuid.NewString()
	return s.config.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce), state
}

// Login exchanges an authorization code and persists the resulting token.
func (s *Service) Login(ctx context.Context, code string) error {
	if code == "" {
		return errors.New("authorization code required")
	}

	s.logger.Info("Exchanging authorization code")

	token, err := s.config.Exchange(ctx, code)
	if err != nil {
		return fmt.Errorf("%w: exchange code: %v", models.ErrAuthFailure, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.token = token
	if err := s.saveToken(); err != nil {
		return err
	}

	s.logger.Info("Login successful")
	return nil
}

// Logout forgets the cached and persisted token.
func (s *Service) Logout() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.logger.Info("Logging out")
	s.token = nil

	if s.tokenFile != "" {
		if err := os.Remove(s.tokenFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("remove token file: %w", err)
		}
	}
	return nil
}

// Token returns a valid access token, refreshing it if it has expired.
func (s *Service) Token(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureLoaded(); err != nil {
		return "", err
	}
	if s.token.Valid() {
		return s.token.AccessToken, nil
	}

	return s.refresh(ctx, s.token)
}

// Refresh forces a refresh, for callers that saw the current token rejected.
func (s *Service) Refresh(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureLoaded(); err != nil {
		return "", err
	}

	stale := *s.token
	stale.Expiry = time.Now().Add(-time.Hour)
	return s.refresh(ctx, &stale)
}

// Status reports whether a token is present and when it expires.
func (s *Service) Status() (authenticated bool, expiry time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureLoaded(); err != nil {
		return false, time.Time{}
	}
	return true, s.token.Expiry
}

func (s *Service) refresh(ctx context.Context, current *oauth2.Token) (string, error) {
	s.logger.Debug("Refreshing token")

	token, err := s.config.TokenSource(ctx, current).Token()
	if err != nil {
		return "", fmt.Errorf("%w: refresh token: %v", models.ErrAuthFailure, err)
	}

	s.token = token
	if err := s.saveToken(); err != nil {
		s.logger.WithError(err).Warn("Failed to save refreshed token")
	}

	return token.AccessToken, nil
}

// Token persistence

func (s *Service) ensureLoaded() error {
	if s.token != nil {
		return nil
	}
	if s.tokenFile == "" {
		return models.ErrNotAuthenticated
	}

	token, err := creds.LoadToken(s.tokenFile)
	if err != nil {
		return err
	}
	s.token = token
	return nil
}

func (s *Service) saveToken() error {
	if s.tokenFile == "" || s.token == nil {
		return nil
	}
	return creds.SaveToken(s.tokenFile, s.token)
}
