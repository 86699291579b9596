package models_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TheMichaelB/photosync/internal/models"
)

func TestKindFromMime(t *testing.T) {
	tests := []struct {
		mime string
		kind models.MediaKind
		ok   bool
	}{
		{"image/jpeg", models.KindPhoto, true},
		{"image/heic", models.KindPhoto, true},
		{"video/mp4", models.KindVideo, true},
		{"application/pdf", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.mime, func(t *testing.T) {
			kind, ok := models.KindFromMime(tt.mime)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.kind, kind)
		})
	}
}

func TestStorageStateTransitions(t *testing.T) {
	assert.True(t, models.StatePending.CanTransition(models.StateStored))
	assert.True(t, models.StatePending.CanTransition(models.StateConflict))
	assert.False(t, models.StatePending.CanTransition(models.StatePending))
	assert.False(t, models.StateStored.CanTransition(models.StatePending))
	assert.False(t, models.StateStored.CanTransition(models.StateConflict))
	assert.False(t, models.StateConflict.CanTransition(models.StateStored))

	assert.Equal(t, "stored", models.StateStored.String())
	assert.Equal(t, "unknown(7)", models.StorageState(7).String())
}

func TestRemoteItemToMediaItem(t *testing.T) {
	item := models.RemoteItem{
		ID:       "AF1Qip-1",
		Filename: "IMG_0001.jpg",
		MimeType: "image/jpeg",
		MediaMetadata: models.MediaMetadata{
			CreationTime: "2021-06-01T10:20:30Z",
		},
	}

	media, err := item.ToMediaItem()
	require.NoError(t, err)
	assert.Equal(t, "AF1Qip-1", media.RemoteID)
	assert.Equal(t, models.KindPhoto, media.Kind)
	assert.Equal(t, models.StatePending, media.State)
	assert.Equal(t, 2021, media.Year())
	assert.Equal(t, time.Date(2021, 6, 1, 10, 20, 30, 0, time.UTC), media.CreatedAt)
}

func TestRemoteItemToMediaItemOffsetTime(t *testing.T) {
	item := models.RemoteItem{
		ID:            "AF1Qip-2",
		MimeType:      "video/mp4",
		MediaMetadata: models.MediaMetadata{CreationTime: "2021-01-01T01:30:00+02:00"},
	}

	media, err := item.ToMediaItem()
	require.NoError(t, err)
	assert.Equal(t, 2020, media.Year())
	assert.Equal(t, "2020-12-31T23:30:00Z", media.CreatedAt.Format(models.TimestampLayout))
}

func TestRemoteItemToMediaItemErrors(t *testing.T) {
	_, err := (&models.RemoteItem{MimeType: "image/png"}).ToMediaItem()
	assert.ErrorIs(t, err, models.ErrMalformedResponse)

	_, err = (&models.RemoteItem{ID: "x", MimeType: "image/png", MediaMetadata: models.MediaMetadata{CreationTime: "yesterday"}}).ToMediaItem()
	assert.ErrorIs(t, err, models.ErrMalformedResponse)

	_, err = (&models.RemoteItem{ID: "x", MimeType: "text/plain"}).ToMediaItem()
	assert.Error(t, err)
	assert.NotErrorIs(t, err, models.ErrMalformedResponse)
}

func TestMediaItemsPageDecoding(t *testing.T) {
	var page models.MediaItemsPage
	require.NoError(t, json.Unmarshal([]byte(`{"mediaItems":[{"id":"a","mimeType":"video/mp4","filename":"a.mp4","mediaMetadata":{"creationTime":"2020-01-01T00:00:00Z","video":{"status":"PROCESSING"}}}],"nextPageToken":"t2"}`), &page))

	require.Len(t, page.MediaItems, 1)
	assert.Equal(t, "t2", page.NextPageToken)
	assert.False(t, page.MediaItems[0].VideoReady())

	var missing models.MediaItemsPage
	require.NoError(t, json.Unmarshal([]byte(`{"nextPageToken":"t2"}`), &missing))
	assert.Nil(t, missing.MediaItems)

	var empty models.MediaItemsPage
	require.NoError(t, json.Unmarshal([]byte(`{"mediaItems":[]}`), &empty))
	assert.NotNil(t, empty.MediaItems)
}

func TestClientSecrets(t *testing.T) {
	var secrets models.ClientSecrets
	require.NoError(t, json.Unmarshal([]byte(`{"installed":{"client_id":"id","client_secret":"s","auth_uri":"https://a","token_uri":"https://t","redirect_uris":["urn:ietf:wg:oauth:2.0:oob"]}}`), &secrets))

	client := secrets.Client()
	require.NotNil(t, client)
	assert.Equal(t, "id", client.ClientID)
	assert.Equal(t, []string{"urn:ietf:wg:oauth:2.0:oob"}, client.RedirectURIs)
}
