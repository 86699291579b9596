package benchmark

import (
	"bytes"
	"crypto/rand"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/TheMichaelB/photosync/internal/index"
	"github.com/TheMichaelB/photosync/internal/models"
	"github.com/TheMichaelB/photosync/internal/storage"
	"github.com/TheMichaelB/photosync/test/testutil"
)

func BenchmarkLocalStoreWriteStream(b *testing.B) {
	sizes := []int{
		10240,    // 10KB
		1048576,  // 1MB
		10485760, // 10MB
	}
	chunkSizes := []int{4 * 1024, 64 * 1024}

	for _, size := range sizes {
		for _, chunk := range chunkSizes {
			b.Run(fmt.Sprintf("%dKB/chunk%dKB", size/1024, chunk/1024), func(b *testing.B) {
				store, err := storage.NewLocalStore(b.TempDir(), testutil.NewTestLogger())
				if err != nil {
					b.Fatal(err)
				}
				store.SetChunkSize(chunk)

				data := make([]byte, size)
				_, _ = rand.Read(data)

				b.ResetTimer()
				b.ReportAllocs()
				b.SetBytes(int64(size))

				for i := 0; i < b.N; i++ {
					path := fmt.Sprintf("2021/file_%d.jpg", i)
					if _, err := store.WriteStream(path, bytes.NewReader(data)); err != nil {
						b.Fatal(err)
					}
				}
			})
		}
	}
}

func BenchmarkIndexInsert(b *testing.B) {
	dbPath := filepath.Join(b.TempDir(), "photosync.db")
	if err := index.Provision(dbPath, ""); err != nil {
		b.Fatal(err)
	}
	store, err := index.Open(dbPath, testutil.NewTestLogger())
	if err != nil {
		b.Fatal(err)
	}
	defer store.Close()

	created := time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC)

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		_, err := store.Insert(&models.MediaItem{
			RemoteID:  fmt.Sprintf("item-%d", i),
			Filename:  fmt.Sprintf("IMG_%d.jpg", i),
			MimeType:  "image/jpeg",
			Kind:      models.KindPhoto,
			CreatedAt: created,
		})
		if err != nil {
			b.Fatal(err)
		}
	}
}
