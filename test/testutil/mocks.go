package testutil

import (
	"context"
	"fmt"
	"sync"
)

// StaticTokens is a token provider for tests. Refresh rotates the token and
// teaches the optional LibraryServer to accept the new one.
type StaticTokens struct {
	mu        sync.Mutex
	token     string
	refreshes int
	server    *LibraryServer

	// RefreshErr, when set, is returned by Refresh.
	RefreshErr error
}

// NewStaticTokens creates a token provider handing out "test-token".
func NewStaticTokens(server *LibraryServer) *StaticTokens {
	return &StaticTokens{token: "test-token", server: server}
}

// Token returns the current token.
func (s *StaticTokens) Token(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token, nil
}

// Refresh rotates the token.
func (s *StaticTokens) Refresh(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.RefreshErr != nil {
		return "", s.RefreshErr
	}

	s.refreshes++
	s.token = fmt.Sprintf("test-token-%d", s.refreshes)
	if s.server != nil {
		s.server.AcceptToken(s.token)
	}
	return s.token, nil
}

// Refreshes returns how often Refresh succeeded.
func (s *StaticTokens) Refreshes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.refreshes
}
