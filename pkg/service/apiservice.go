package service

import (
	"encoding/json"
	"net/http"

	"github.com/pkg/errors"

	"github.com/harmony-chat/harmony-server/pkg/directory"
	"github.com/harmony-chat/harmony-server/pkg/logger"
	"github.com/harmony-chat/harmony-server/pkg/store"
)

// APIService is the REST surface for identity and the channel directory.
// Everything real-time goes over the websocket; these endpoints cover
// login and initial page loads.
type APIService struct {
	dir *directory.Directory
}

func NewAPIService(dir *directory.Directory) *APIService {
	return &APIService{dir: dir}
}

func (s *APIService) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/auth/login", s.handleLogin)
	mux.HandleFunc("GET /api/servers", s.handleListServers)
	mux.HandleFunc("POST /api/servers", s.handleCreateServer)
	mux.HandleFunc("POST /api/servers/{serverId}/channels", s.handleCreateChannel)
	mux.HandleFunc("GET /api/servers/{serverId}/channels/{channelId}/messages", s.handleListMessages)
}

type loginRequest struct {
	Username string `json:"username"`
}

func (s *APIService) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeBody(w, r, &req) {
		return
	}
	user, err := s.dir.Login(r.Context(), req.Username)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (s *APIService) handleListServers(w http.ResponseWriter, r *http.Request) {
	servers, err := s.dir.ListServers(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, servers)
}

type createServerRequest struct {
	Name string `json:"name"`
}

func (s *APIService) handleCreateServer(w http.ResponseWriter, r *http.Request) {
	var req createServerRequest
	if !decodeBody(w, r, &req) {
		return
	}
	server, err := s.dir.CreateServer(r.Context(), req.Name)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, server)
}

type createChannelRequest struct {
	Name string            `json:"name"`
	Type store.ChannelType `json:"type"`
}

func (s *APIService) handleCreateChannel(w http.ResponseWriter, r *http.Request) {
	var req createChannelRequest
	if !decodeBody(w, r, &req) {
		return
	}
	channel, err := s.dir.CreateChannel(r.Context(), r.PathValue("serverId"), req.Name, req.Type)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, channel)
}

func (s *APIService) handleListMessages(w http.ResponseWriter, r *http.Request) {
	messages, err := s.dir.Messages(r.Context(), r.PathValue("serverId"), r.PathValue("channelId"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, messages)
}

func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid request body"))
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Debugw("could not encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, directory.ErrNameRequired),
		errors.Is(err, directory.ErrBadChannelType):
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
	case errors.Is(err, directory.ErrServerNotFound),
		errors.Is(err, directory.ErrChannelNotFound):
		writeJSON(w, http.StatusNotFound, errorBody(err.Error()))
	case errors.Is(err, directory.ErrNotTextChannel):
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
	default:
		logger.Errorw("request failed", err)
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
	}
}

func errorBody(msg string) map[string]string {
	return map[string]string{"error": msg}
}
