package directory

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/harmony-chat/harmony-server/pkg/events"
	"github.com/harmony-chat/harmony-server/pkg/store"
)

func newTestDirectory(t *testing.T) (*Directory, *events.Bus) {
	t.Helper()
	s, err := store.NewLocalStore(filepath.Join(t.TempDir(), "harmony.json"))
	require.NoError(t, err)
	bus := events.NewBus()
	t.Cleanup(bus.Stop)
	return NewDirectory(s, bus), bus
}

func TestLoginIdempotent(t *testing.T) {
	d, _ := newTestDirectory(t)
	ctx := context.Background()

	first, err := d.Login(ctx, "ada")
	require.NoError(t, err)
	require.NotEmpty(t, first.ID)
	require.NotEmpty(t, first.AvatarURL)

	second, err := d.Login(ctx, "ada")
	require.NoError(t, err)
	require.Equal(t, first.ID, second.ID)

	other, err := d.Login(ctx, "grace")
	require.NoError(t, err)
	require.NotEqual(t, first.ID, other.ID)
}

func TestLoginRequiresUsername(t *testing.T) {
	d, _ := newTestDirectory(t)
	_, err := d.Login(context.Background(), "")
	require.ErrorIs(t, err, ErrNameRequired)
}

func TestCreateServerWithDefaultChannel(t *testing.T) {
	d, bus := newTestDirectory(t)
	ctx := context.Background()

	var lock sync.Mutex
	var published []events.Kind
	bus.Subscribe(func(ev events.Event) {
		lock.Lock()
		published = append(published, ev.Kind)
		lock.Unlock()
	})

	server, err := d.CreateServer(ctx, "gophers")
	require.NoError(t, err)
	require.Len(t, server.Channels, 1)
	require.Equal(t, DefaultChannelName, server.Channels[0].Name)
	require.Equal(t, store.ChannelTypeText, server.Channels[0].Type)

	servers, err := d.ListServers(ctx)
	require.NoError(t, err)
	require.Len(t, servers, 1)
	require.Equal(t, server.ID, servers[0].ID)

	bus.Stop()
	require.Equal(t, []events.Kind{events.KindServerCreated}, published)
}

func TestCreateChannel(t *testing.T) {
	d, _ := newTestDirectory(t)
	ctx := context.Background()

	server, err := d.CreateServer(ctx, "gophers")
	require.NoError(t, err)

	t.Run("defaults to text", func(t *testing.T) {
		ch, err := d.CreateChannel(ctx, server.ID, "random", "")
		require.NoError(t, err)
		require.Equal(t, store.ChannelTypeText, ch.Type)
		require.NotNil(t, ch.Messages)
	})

	t.Run("voice channel", func(t *testing.T) {
		ch, err := d.CreateChannel(ctx, server.ID, "lounge", store.ChannelTypeVoice)
		require.NoError(t, err)
		require.Equal(t, store.ChannelTypeVoice, ch.Type)
	})

	t.Run("unknown server", func(t *testing.T) {
		_, err := d.CreateChannel(ctx, "missing", "random", "")
		require.ErrorIs(t, err, ErrServerNotFound)
	})

	t.Run("unknown type", func(t *testing.T) {
		_, err := d.CreateChannel(ctx, server.ID, "bad", "carrier-pigeon")
		require.Error(t, err)
	})
}

func TestAppendMessageOrdering(t *testing.T) {
	d, _ := newTestDirectory(t)
	ctx := context.Background()

	server, err := d.CreateServer(ctx, "gophers")
	require.NoError(t, err)
	channel := server.Channels[0]
	author := store.UserRef{ID: "u1", Username: "ada"}

	for _, content := range []string{"one", "two", "three"} {
		_, err = d.AppendMessage(ctx, server.ID, channel.ID, content, author)
		require.NoError(t, err)
	}

	msgs, err := d.Messages(ctx, server.ID, channel.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	require.Equal(t, "one", msgs[0].Content)
	require.Equal(t, "two", msgs[1].Content)
	require.Equal(t, "three", msgs[2].Content)
	for _, m := range msgs {
		require.NotEmpty(t, m.ID)
		require.Equal(t, author, m.User)
	}
}

func TestAppendMessageTargets(t *testing.T) {
	d, _ := newTestDirectory(t)
	ctx := context.Background()

	server, err := d.CreateServer(ctx, "gophers")
	require.NoError(t, err)
	voice, err := d.CreateChannel(ctx, server.ID, "lounge", store.ChannelTypeVoice)
	require.NoError(t, err)

	_, err = d.AppendMessage(ctx, "missing", "c", "hi", store.UserRef{ID: "u1"})
	require.ErrorIs(t, err, ErrServerNotFound)

	_, err = d.AppendMessage(ctx, server.ID, "missing", "hi", store.UserRef{ID: "u1"})
	require.ErrorIs(t, err, ErrChannelNotFound)

	_, err = d.AppendMessage(ctx, server.ID, voice.ID, "hi", store.UserRef{ID: "u1"})
	require.ErrorIs(t, err, ErrNotTextChannel)
}
