package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *LocalStore {
	t.Helper()
	s, err := NewLocalStore(filepath.Join(t.TempDir(), "data", "harmony.json"))
	require.NoError(t, err)
	return s
}

func TestReadMissingFile(t *testing.T) {
	s := newTestStore(t)

	doc, err := s.Read(context.Background())
	require.NoError(t, err)
	require.NotNil(t, doc.Users)
	require.NotNil(t, doc.Servers)
	require.Empty(t, doc.Users)
	require.Empty(t, doc.Servers)
}

func TestWriteReadRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	doc := EmptyDocument()
	doc.Users = append(doc.Users, &User{
		ID:        "u1",
		Username:  "ada",
		CreatedAt: time.Now().UTC(),
	})
	doc.Servers = append(doc.Servers, &Server{
		ID:   "s1",
		Name: "general",
		Channels: []*Channel{
			{ID: "c1", Name: "general", Type: ChannelTypeText},
			{ID: "c2", Name: "voice", Type: ChannelTypeVoice},
		},
	})
	require.NoError(t, s.Write(ctx, doc))

	got, err := s.Read(ctx)
	require.NoError(t, err)
	require.Len(t, got.Users, 1)
	require.Equal(t, "ada", got.Users[0].Username)
	require.NotNil(t, got.Server("s1"))
	require.NotNil(t, got.Server("s1").Channel("c2"))
	require.Equal(t, ChannelTypeVoice, got.Server("s1").Channel("c2").Type)
	require.Nil(t, got.Server("missing"))
}

func TestReadCorruptFile(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, os.WriteFile(s.path, []byte("{not json"), 0o644))

	doc, err := s.Read(context.Background())
	require.NoError(t, err)
	require.Empty(t, doc.Users)
	require.Empty(t, doc.Servers)
}

func TestWriteLeavesNoTempFiles(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Write(context.Background(), EmptyDocument()))

	entries, err := os.ReadDir(filepath.Dir(s.path))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, filepath.Base(s.path), entries[0].Name())
}

func TestUpdateSerializesWriters(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	const writers = 20
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			err := s.Update(ctx, func(doc *Document) error {
				doc.Users = append(doc.Users, &User{
					ID:       fmt.Sprintf("u%d", n),
					Username: fmt.Sprintf("user%d", n),
				})
				return nil
			})
			require.NoError(t, err)
		}(i)
	}
	wg.Wait()

	doc, err := s.Read(ctx)
	require.NoError(t, err)
	require.Len(t, doc.Users, writers)
}

func TestUpdatePropagatesFnError(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Update(ctx, func(doc *Document) error {
		doc.Users = append(doc.Users, &User{ID: "u1", Username: "ada"})
		return nil
	}))

	wantErr := fmt.Errorf("nope")
	err := s.Update(ctx, func(doc *Document) error {
		doc.Users = nil
		return wantErr
	})
	require.ErrorIs(t, err, wantErr)

	// failed update must not persist
	doc, err := s.Read(ctx)
	require.NoError(t, err)
	require.Len(t, doc.Users, 1)
}
