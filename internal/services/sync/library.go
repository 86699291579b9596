package sync

import (
	"context"

	"github.com/TheMichaelB/photosync/internal/models"
	"github.com/TheMichaelB/photosync/internal/transport"
)

// Library is the remote photo library as the engines use it.
// *library.Service implements it.
type Library interface {
	ListPage(ctx context.Context, pageToken string) (*models.MediaItemsPage, error)
	GetItem(ctx context.Context, remoteID string) (*models.RemoteItem, error)
	Exists(ctx context.Context, remoteID string) (bool, error)
	Fetch(ctx context.Context, item *models.RemoteItem, kind models.MediaKind) (*transport.Payload, error)
}
