package library

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"

	"github.com/TheMichaelB/photosync/internal/events"
	"github.com/TheMichaelB/photosync/internal/models"
	"github.com/TheMichaelB/photosync/internal/transport"
)

// maxBatchGet is the most ids the batch endpoint accepts per call.
const maxBatchGet = 50

// TokenProvider supplies bearer tokens.
type TokenProvider interface {
	// Token returns a valid token, refreshing transparently when it has expired.
	Token(ctx context.Context) (string, error)

	// Refresh forces a new token after the current one was rejected.
	Refresh(ctx context.Context) (string, error)
}

// Service talks to the remote photo library.
type Service struct {
	transport transport.Transport
	tokens    TokenProvider
	pageSize  int
	logger    *events.Logger
}

// NewService creates a library service.
func NewService(transport transport.Transport, tokens TokenProvider, pageSize int, logger *events.Logger) *Service {
	return &Service{
		transport: transport,
		tokens:    tokens,
		pageSize:  pageSize,
		logger:    logger.WithField("service", "library"),
	}
}

// ListPage fetches one page of the item list. An empty pageToken requests the first page.
func (s *Service) ListPage(ctx context.Context, pageToken string) (*models.MediaItemsPage, error) {
	query := url.Values{"pageSize": {strconv.Itoa(s.pageSize)}}
	if pageToken != "" {
		query.Set("pageToken", pageToken)
	}

	var page models.MediaItemsPage
	if err := s.getJSON(ctx, "mediaItems", query, &page); err != nil {
		if errors.Is(err, models.ErrAuthFailure) || errors.Is(err, models.ErrMalformedResponse) ||
			errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("list media items: %w", err)
		}
		return nil, fmt.Errorf("list media items: %w: %w", models.ErrListUnavailable, err)
	}

	if page.MediaItems == nil {
		return nil, fmt.Errorf("list media items: %w: missing mediaItems", models.ErrMalformedResponse)
	}

	s.logger.WithFields(map[string]interface{}{
		"items":      len(page.MediaItems),
		"page_token": pageToken,
		"has_next":   page.NextPageToken != "",
	}).Debug("Fetched page")

	return &page, nil
}

// GetItem fetches an item's detail, including its transient base URL.
// A deleted item yields models.ErrNotFound.
func (s *Service) GetItem(ctx context.Context, remoteID string) (*models.RemoteItem, error) {
	var item models.RemoteItem
	if err := s.getJSON(ctx, "mediaItems/"+url.PathEscape(remoteID), nil, &item); err != nil {
		return nil, fmt.Errorf("get media item %s: %w", remoteID, err)
	}
	return &item, nil
}

// Exists reports whether the remote still has the item.
func (s *Service) Exists(ctx context.Context, remoteID string) (bool, error) {
	_, err := s.GetItem(ctx, remoteID)
	if errors.Is(err, models.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Fetch opens the item's payload using the kind-specific download modifier.
func (s *Service) Fetch(ctx context.Context, item *models.RemoteItem, kind models.MediaKind) (*transport.Payload, error) {
	if item.BaseURL == "" {
		return nil, fmt.Errorf("fetch %s: %w: no base URL", item.ID, models.ErrTransientFetch)
	}

	modifier := models.PhotoDownloadModifier
	if kind == models.KindVideo {
		modifier = models.VideoDownloadModifier
	}

	payload, err := s.transport.Open(ctx, item.BaseURL+modifier)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("fetch %s: %w", item.ID, err)
		}
		return nil, fmt.Errorf("fetch %s: %w: %w", item.ID, models.ErrTransientFetch, err)
	}
	return payload, nil
}

// BatchGet resolves many ids at once, in chunks the API accepts.
// Results keep the order of ids; missing items carry a Status instead of a MediaItem.
func (s *Service) BatchGet(ctx context.Context, ids []string) ([]models.MediaItemResult, error) {
	results := make([]models.MediaItemResult, 0, len(ids))

	for start := 0; start < len(ids); start += maxBatchGet {
		end := start + maxBatchGet
		if end > len(ids) {
			end = len(ids)
		}

		var resp models.BatchGetResponse
		query := url.Values{"mediaItemIds": ids[start:end]}
		if err := s.getJSON(ctx, "mediaItems:batchGet", query, &resp); err != nil {
			return nil, fmt.Errorf("batch get media items: %w", err)
		}
		if len(resp.MediaItemResults) != end-start {
			return nil, fmt.Errorf("batch get media items: %w: got %d results for %d ids",
				models.ErrMalformedResponse, len(resp.MediaItemResults), end-start)
		}

		results = append(results, resp.MediaItemResults...)
	}

	return results, nil
}

// getJSON performs an authenticated call; a rejected token is refreshed once and the same request repeated.
func (s *Service) getJSON(ctx context.Context, path string, query url.Values, out interface{}) error {
	token, err := s.tokens.Token(ctx)
	if err != nil {
		return fmt.Errorf("get token: %w", err)
	}

	err = s.transport.GetJSON(ctx, path, query, token, out)
	if !errors.Is(err, models.ErrAuthFailure) {
		return err
	}

	s.logger.WithField("path", path).Info("Token rejected, refreshing")

	token, err = s.tokens.Refresh(ctx)
	if err != nil {
		return fmt.Errorf("refresh token: %w", err)
	}

	return s.transport.GetJSON(ctx, path, query, token, out)
}
