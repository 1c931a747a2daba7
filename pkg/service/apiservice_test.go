package service

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/harmony-chat/harmony-server/pkg/directory"
	"github.com/harmony-chat/harmony-server/pkg/events"
	"github.com/harmony-chat/harmony-server/pkg/store"
)

func newTestAPI(t *testing.T) (*httptest.Server, *events.Bus) {
	t.Helper()

	st, err := store.NewLocalStore(filepath.Join(t.TempDir(), "harmony.json"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	bus := events.NewBus()
	t.Cleanup(bus.Stop)

	mux := http.NewServeMux()
	NewAPIService(directory.NewDirectory(st, bus)).Register(mux)
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server, bus
}

func postJSON(t *testing.T, url string, body interface{}) *http.Response {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	res, err := http.Post(url, "application/json", bytes.NewReader(raw))
	require.NoError(t, err)
	return res
}

func decodeInto(t *testing.T, res *http.Response, v interface{}) {
	t.Helper()
	defer res.Body.Close()
	require.NoError(t, json.NewDecoder(res.Body).Decode(v))
}

func TestLogin(t *testing.T) {
	server, _ := newTestAPI(t)

	res := postJSON(t, server.URL+"/api/auth/login", map[string]string{"username": "alice"})
	require.Equal(t, http.StatusOK, res.StatusCode)
	var first store.User
	decodeInto(t, res, &first)
	require.NotEmpty(t, first.ID)
	require.Equal(t, "alice", first.Username)
	require.NotEmpty(t, first.AvatarURL)

	t.Run("same username resolves to same user", func(t *testing.T) {
		res := postJSON(t, server.URL+"/api/auth/login", map[string]string{"username": "alice"})
		require.Equal(t, http.StatusOK, res.StatusCode)
		var second store.User
		decodeInto(t, res, &second)
		require.Equal(t, first.ID, second.ID)
	})

	t.Run("empty username is rejected", func(t *testing.T) {
		res := postJSON(t, server.URL+"/api/auth/login", map[string]string{})
		require.Equal(t, http.StatusBadRequest, res.StatusCode)
		res.Body.Close()
	})
}

func TestServersAndChannels(t *testing.T) {
	server, _ := newTestAPI(t)

	res := postJSON(t, server.URL+"/api/servers", map[string]string{"name": "gaming"})
	require.Equal(t, http.StatusCreated, res.StatusCode)
	var created store.Server
	decodeInto(t, res, &created)
	require.NotEmpty(t, created.ID)
	require.Len(t, created.Channels, 1)
	require.Equal(t, directory.DefaultChannelName, created.Channels[0].Name)
	require.Equal(t, store.ChannelTypeText, created.Channels[0].Type)

	res, err := http.Get(server.URL + "/api/servers")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, res.StatusCode)
	var servers []*store.Server
	decodeInto(t, res, &servers)
	require.Len(t, servers, 1)
	require.Equal(t, created.ID, servers[0].ID)

	t.Run("create voice channel", func(t *testing.T) {
		res := postJSON(t, fmt.Sprintf("%s/api/servers/%s/channels", server.URL, created.ID),
			map[string]string{"name": "lounge", "type": "voice"})
		require.Equal(t, http.StatusCreated, res.StatusCode)
		var channel store.Channel
		decodeInto(t, res, &channel)
		require.Equal(t, store.ChannelTypeVoice, channel.Type)
	})

	t.Run("unknown server is 404", func(t *testing.T) {
		res := postJSON(t, server.URL+"/api/servers/missing/channels",
			map[string]string{"name": "lounge"})
		require.Equal(t, http.StatusNotFound, res.StatusCode)
		res.Body.Close()
	})

	t.Run("bad channel type is 400", func(t *testing.T) {
		res := postJSON(t, fmt.Sprintf("%s/api/servers/%s/channels", server.URL, created.ID),
			map[string]string{"name": "lounge", "type": "video"})
		require.Equal(t, http.StatusBadRequest, res.StatusCode)
		res.Body.Close()
	})
}

func TestMessagesEndpoint(t *testing.T) {
	server, _ := newTestAPI(t)

	res := postJSON(t, server.URL+"/api/servers", map[string]string{"name": "general"})
	var created store.Server
	decodeInto(t, res, &created)
	channelID := created.Channels[0].ID

	url := fmt.Sprintf("%s/api/servers/%s/channels/%s/messages", server.URL, created.ID, channelID)
	res, err := http.Get(url)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, res.StatusCode)
	var messages []*store.Message
	decodeInto(t, res, &messages)
	require.Empty(t, messages)

	t.Run("unknown channel is 404", func(t *testing.T) {
		res, err := http.Get(fmt.Sprintf("%s/api/servers/%s/channels/missing/messages", server.URL, created.ID))
		require.NoError(t, err)
		require.Equal(t, http.StatusNotFound, res.StatusCode)
		res.Body.Close()
	})
}
