package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"

	"github.com/TheMichaelB/photosync/internal/models"
)

// LibraryItem is one media item served by LibraryServer.
type LibraryItem struct {
	ID       string
	Filename string
	MimeType string
	Created  string // RFC3339

	// Payload is served from the item's base URL.
	Payload []byte

	// ContentType overrides the payload content type (default: MimeType).
	ContentType string

	// VideoStatus overrides the processing status of a video (default: READY).
	VideoStatus string
}

// LibraryServer provides a fake photo library API for tests.
type LibraryServer struct {
	*httptest.Server

	mu        sync.Mutex
	order     []string
	items     map[string]*LibraryItem
	deleted   map[string]bool
	unlisted  map[string]bool
	token     string
	rejectN   int
	listError int
	malformed bool

	listCalls   int
	pageTokens  []string
	detailCalls map[string]int
	fetches     map[string][]string
	batchCalls  int
	authFails   int
}

// NewLibraryServer creates a fake library that accepts the bearer token "test-token".
func NewLibraryServer() *LibraryServer {
	ls := &LibraryServer{
		items:       make(map[string]*LibraryItem),
		deleted:     make(map[string]bool),
		unlisted:    make(map[string]bool),
		token:       "test-token",
		detailCalls: make(map[string]int),
		fetches:     make(map[string][]string),
	}
	ls.Server = httptest.NewServer(http.HandlerFunc(ls.handle))
	return ls
}

// BaseURL is the API root to configure clients with.
func (ls *LibraryServer) BaseURL() string {
	return ls.URL + "/v1/"
}

// Add appends items to the end of the list (oldest last).
func (ls *LibraryServer) Add(items ...LibraryItem) {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	for i := range items {
		item := items[i]
		ls.items[item.ID] = &item
		ls.order = append(ls.order, item.ID)
	}
}

// Upload puts new items at the head of the list, as fresh uploads appear.
func (ls *LibraryServer) Upload(items ...LibraryItem) {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	ids := make([]string, 0, len(items))
	for i := range items {
		item := items[i]
		ls.items[item.ID] = &item
		ids = append(ids, item.ID)
	}
	ls.order = append(ids, ls.order...)
}

// Delete removes an item upstream: it disappears from the list and its detail returns 404.
func (ls *LibraryServer) Delete(id string) {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	ls.deleted[id] = true
}

// Unlist hides an item from the list while keeping its detail endpoint.
func (ls *LibraryServer) Unlist(id string) {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	ls.unlisted[id] = true
}

// SetVideoStatus changes the processing status reported for a video.
func (ls *LibraryServer) SetVideoStatus(id, status string) {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	ls.items[id].VideoStatus = status
}

// SetContentType changes the content type served for an item's payload.
func (ls *LibraryServer) SetContentType(id, contentType string) {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	ls.items[id].ContentType = contentType
}

// AcceptToken changes the bearer token the server accepts.
func (ls *LibraryServer) AcceptToken(token string) {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	ls.token = token
}

// RejectNext answers the next n authenticated API calls with 401.
func (ls *LibraryServer) RejectNext(n int) {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	ls.rejectN = n
}

// FailList answers list calls with the given status (0 restores normal behavior).
func (ls *LibraryServer) FailList(status int) {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	ls.listError = status
}

// MalformedList omits the mediaItems field from list responses.
func (ls *LibraryServer) MalformedList(on bool) {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	ls.malformed = on
}

// ListCalls returns the number of list requests served.
func (ls *LibraryServer) ListCalls() int {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	return ls.listCalls
}

// PageTokens returns the page tokens requested, in order.
func (ls *LibraryServer) PageTokens() []string {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	return append([]string(nil), ls.pageTokens...)
}

// DetailCalls returns how often an item's detail endpoint was requested.
func (ls *LibraryServer) DetailCalls(id string) int {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	return ls.detailCalls[id]
}

// TotalDetailCalls returns the number of detail requests over all items.
func (ls *LibraryServer) TotalDetailCalls() int {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	total := 0
	for _, n := range ls.detailCalls {
		total += n
	}
	return total
}

// Fetches returns the modifiers an item's payload was fetched with.
func (ls *LibraryServer) Fetches(id string) []string {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	return append([]string(nil), ls.fetches[id]...)
}

// BatchCalls returns the number of batch get requests served.
func (ls *LibraryServer) BatchCalls() int {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	return ls.batchCalls
}

// AuthFailures returns the number of requests answered with 401.
func (ls *LibraryServer) AuthFailures() int {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	return ls.authFails
}

func (ls *LibraryServer) handle(w http.ResponseWriter, r *http.Request) {
	ls.mu.Lock()
	defer ls.mu.Unlock()

	path := r.URL.Path

	if strings.HasPrefix(path, "/media/") {
		ls.handleFetch(w, strings.TrimPrefix(path, "/media/"))
		return
	}

	if !ls.authorized(w, r) {
		return
	}

	switch {
	case path == "/v1/mediaItems":
		ls.handleList(w, r)
	case path == "/v1/mediaItems:batchGet":
		ls.handleBatchGet(w, r)
	case strings.HasPrefix(path, "/v1/mediaItems/"):
		ls.handleDetail(w, strings.TrimPrefix(path, "/v1/mediaItems/"))
	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "unknown endpoint "+path)
	}
}

func (ls *LibraryServer) authorized(w http.ResponseWriter, r *http.Request) bool {
	if ls.rejectN > 0 {
		ls.rejectN--
		ls.authFails++
		writeError(w, http.StatusUnauthorized, "UNAUTHENTICATED", "Request had invalid authentication credentials.")
		return false
	}
	if r.Header.Get("Authorization") != "Bearer "+ls.token {
		ls.authFails++
		writeError(w, http.StatusUnauthorized, "UNAUTHENTICATED", "Request had invalid authentication credentials.")
		return false
	}
	return true
}

func (ls *LibraryServer) visible() []string {
	var ids []string
	for _, id := range ls.order {
		if !ls.deleted[id] && !ls.unlisted[id] {
			ids = append(ids, id)
		}
	}
	return ids
}

func (ls *LibraryServer) handleList(w http.ResponseWriter, r *http.Request) {
	ls.listCalls++
	token := r.URL.Query().Get("pageToken")
	ls.pageTokens = append(ls.pageTokens, token)

	if ls.listError != 0 {
		writeError(w, ls.listError, "UNAVAILABLE", "list unavailable")
		return
	}
	if ls.malformed {
		writeJSON(w, map[string]string{"nextPageToken": "never"})
		return
	}

	size, err := strconv.Atoi(r.URL.Query().Get("pageSize"))
	if err != nil || size <= 0 {
		size = 25
	}

	offset := 0
	if token != "" {
		offset, err = strconv.Atoi(strings.TrimPrefix(token, "offset-"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_ARGUMENT", "bad page token")
			return
		}
	}

	ids := ls.visible()
	page := models.MediaItemsPage{MediaItems: []models.RemoteItem{}}
	for i := offset; i < len(ids) && i < offset+size; i++ {
		page.MediaItems = append(page.MediaItems, ls.remote(ls.items[ids[i]], false))
	}
	if offset+size < len(ids) {
		page.NextPageToken = fmt.Sprintf("offset-%d", offset+size)
	}

	writeJSON(w, page)
}

func (ls *LibraryServer) handleDetail(w http.ResponseWriter, id string) {
	ls.detailCalls[id]++

	item, ok := ls.items[id]
	if !ok || ls.deleted[id] {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Requested entity was not found.")
		return
	}

	writeJSON(w, ls.remote(item, true))
}

func (ls *LibraryServer) handleBatchGet(w http.ResponseWriter, r *http.Request) {
	ls.batchCalls++

	var resp models.BatchGetResponse
	for _, id := range r.URL.Query()["mediaItemIds"] {
		item, ok := ls.items[id]
		if !ok || ls.deleted[id] {
			resp.MediaItemResults = append(resp.MediaItemResults, models.MediaItemResult{
				Status: &models.Status{Code: 5, Message: "NOT_FOUND"},
			})
			continue
		}
		remote := ls.remote(item, true)
		resp.MediaItemResults = append(resp.MediaItemResults, models.MediaItemResult{MediaItem: &remote})
	}

	writeJSON(w, resp)
}

func (ls *LibraryServer) handleFetch(w http.ResponseWriter, rest string) {
	idx := strings.LastIndex(rest, "=")
	if idx < 0 {
		http.Error(w, "missing modifier", http.StatusBadRequest)
		return
	}
	id, modifier := rest[:idx], rest[idx:]
	ls.fetches[id] = append(ls.fetches[id], modifier)

	item, ok := ls.items[id]
	if !ok || ls.deleted[id] {
		w.Header().Set("Content-Type", "text/html; charset=UTF-8")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte("<html><body>Not Found</body></html>"))
		return
	}

	contentType := item.ContentType
	if contentType == "" {
		contentType = item.MimeType
	}
	w.Header().Set("Content-Type", contentType)
	_, _ = w.Write(item.Payload)
}

func (ls *LibraryServer) remote(item *LibraryItem, withURL bool) models.RemoteItem {
	remote := models.RemoteItem{
		ID:       item.ID,
		Filename: item.Filename,
		MimeType: item.MimeType,
		MediaMetadata: models.MediaMetadata{
			CreationTime: item.Created,
		},
	}
	if withURL {
		remote.BaseURL = ls.URL + "/media/" + item.ID
	}
	if strings.HasPrefix(item.MimeType, "video/") {
		status := item.VideoStatus
		if status == "" {
			status = models.VideoStatusReady
		}
		remote.MediaMetadata.Video = &models.VideoMetadata{Status: status}
	} else {
		remote.MediaMetadata.Photo = &models.PhotoMetadata{}
	}
	return remote
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, status, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(models.ErrorResponse{Error: models.Status{
		Code:    code,
		Message: message,
		Status:  status,
	}})
}
