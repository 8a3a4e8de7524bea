package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chat_backend/internal/config"
	"chat_backend/internal/domain"
	"chat_backend/internal/middleware"
	"chat_backend/internal/repository"
	"chat_backend/internal/service"
	"chat_backend/pkg/logger"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestRouter(t *testing.T, sendLimit int) *gin.Engine {
	t.Helper()
	cfg := &config.Config{
		Environment: "test",
		JWT:         config.JWTConfig{AccessSecret: "test-secret", AccessTTL: time.Hour, Issuer: "chat-test"},
		Chat: config.ChatConfig{
			RoomListName:    "default",
			StorageDriver:   config.StorageDriverMemory,
			SequenceBackend: config.SequenceBackendMemory,
			OpTimeout:       time.Second,
		},
	}
	log := logger.Nop()

	services, err := service.NewServices(context.Background(), repository.NewMemoryRepositories(), cfg, log)
	require.NoError(t, err)

	rule := domain.RateLimitRule{Scope: domain.RateLimitScopeUser, Limit: sendLimit, Window: time.Minute}
	return NewRouter(
		NewHandlers(services, cfg, log),
		middleware.NewAuthMiddleware(services.Auth, log),
		middleware.NewRateLimitMiddleware(services.RateLimit, rule, log),
		cfg,
		log,
	)
}

func doJSON(t *testing.T, router http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func registerAlias(t *testing.T, router http.Handler, alias string) string {
	t.Helper()
	w := doJSON(t, router, http.MethodPost, "/api/v1/users", "", gin.H{"alias": alias})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var resp service.LoginResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp.AccessToken
}

func TestHealth(t *testing.T) {
	router := newTestRouter(t, 10)
	w := doJSON(t, router, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestRegister_Conflict(t *testing.T) {
	router := newTestRouter(t, 10)
	registerAlias(t, router, "alice")

	w := doJSON(t, router, http.MethodPost, "/api/v1/users", "", gin.H{"alias": "alice"})
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestRequireAuth(t *testing.T) {
	router := newTestRouter(t, 10)

	w := doJSON(t, router, http.MethodGet, "/api/v1/rooms", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = doJSON(t, router, http.MethodGet, "/api/v1/rooms", "bogus", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRoomAndMessageFlow(t *testing.T) {
	router := newTestRouter(t, 10)
	alice := registerAlias(t, router, "alice")
	bob := registerAlias(t, router, "bob")

	w := doJSON(t, router, http.MethodPost, "/api/v1/rooms", alice, gin.H{
		"room_name":   "general",
		"room_type":   "public",
		"member_list": []string{"bob"},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = doJSON(t, router, http.MethodPost, "/api/v1/rooms", bob, gin.H{"room_name": "general"})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = doJSON(t, router, http.MethodPost, "/api/v1/rooms/general/messages", alice, gin.H{"text": "hi all"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	w = doJSON(t, router, http.MethodPost, "/api/v1/rooms/general/messages", bob, gin.H{"text": "hey"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = doJSON(t, router, http.MethodGet, "/api/v1/rooms/general/messages?objects=true", bob, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var page service.MessagesResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &page))
	assert.Equal(t, []string{"hi all", "hey"}, page.Texts)
	require.Len(t, page.Messages, 2)
	assert.Less(t, page.Messages[0].Props.SequenceNum, page.Messages[1].Props.SequenceNum)

	w = doJSON(t, router, http.MethodGet, "/api/v1/rooms/general/messages?count=1", bob, nil)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &page))
	assert.Equal(t, []string{"hi all"}, page.Texts)

	w = doJSON(t, router, http.MethodPost, "/api/v1/rooms/general/messages", bob, gin.H{"text": "nul\u0000byte"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, router, http.MethodGet, "/api/v1/rooms/general/messages?count=abc", bob, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, router, http.MethodGet, "/api/v1/rooms/general/messages/next", bob, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "hi all")

	w = doJSON(t, router, http.MethodGet, "/api/v1/rooms/general/messages/search?text=hey", alice, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"from_user":"bob"`)

	w = doJSON(t, router, http.MethodGet, "/api/v1/rooms/general/messages/search?text=nothing", alice, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doJSON(t, router, http.MethodGet, "/api/v1/rooms?member=bob", alice, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"room_name":"general"`)

	w = doJSON(t, router, http.MethodDelete, "/api/v1/rooms/general", bob, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	w = doJSON(t, router, http.MethodDelete, "/api/v1/rooms/general", alice, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	w = doJSON(t, router, http.MethodGet, "/api/v1/rooms/general", alice, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestPrivateRoomForbidden(t *testing.T) {
	router := newTestRouter(t, 10)
	alice := registerAlias(t, router, "alice")
	eve := registerAlias(t, router, "eve")

	w := doJSON(t, router, http.MethodPost, "/api/v1/rooms", alice, gin.H{"room_name": "secret", "room_type": "private"})
	require.Equal(t, http.StatusCreated, w.Code)

	w = doJSON(t, router, http.MethodPost, "/api/v1/rooms/secret/messages", eve, gin.H{"text": "hi"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = doJSON(t, router, http.MethodPost, "/api/v1/rooms/secret/members", alice, gin.H{"alias": "eve"})
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, router, http.MethodPost, "/api/v1/rooms/secret/messages", eve, gin.H{"text": "hi"})
	assert.Equal(t, http.StatusCreated, w.Code)

	w = doJSON(t, router, http.MethodDelete, "/api/v1/rooms/secret/members/eve", eve, nil)
	require.Equal(t, http.StatusOK, w.Code)
	w = doJSON(t, router, http.MethodGet, "/api/v1/rooms/secret/messages", eve, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestSendRateLimited(t *testing.T) {
	router := newTestRouter(t, 2)
	alice := registerAlias(t, router, "alice")

	w := doJSON(t, router, http.MethodPost, "/api/v1/rooms", alice, gin.H{"room_name": "general"})
	require.Equal(t, http.StatusCreated, w.Code)

	// sends are counted per alias, registration per client IP
	for i := 0; i < 2; i++ {
		w = doJSON(t, router, http.MethodPost, "/api/v1/rooms/general/messages", alice, gin.H{"text": "spam"})
		require.Equal(t, http.StatusCreated, w.Code)
	}
	w = doJSON(t, router, http.MethodPost, "/api/v1/rooms/general/messages", alice, gin.H{"text": "spam"})
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))
}

func TestWebSocketChat(t *testing.T) {
	router := newTestRouter(t, 10)
	alice := registerAlias(t, router, "alice")

	w := doJSON(t, router, http.MethodPost, "/api/v1/rooms", alice, gin.H{"room_name": "general"})
	require.Equal(t, http.StatusCreated, w.Code)
	w = doJSON(t, router, http.MethodPost, "/api/v1/rooms/general/messages", alice, gin.H{"text": "earlier"})
	require.Equal(t, http.StatusCreated, w.Code)

	srv := httptest.NewServer(router)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/rooms/general?token=" + alice
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	defer conn.Close()

	var history outboundFrame
	require.NoError(t, conn.ReadJSON(&history))
	assert.Equal(t, frameTypeHistory, history.Type)
	require.NotNil(t, history.Messages)
	assert.Equal(t, []string{"earlier"}, history.Messages.Texts)

	require.NoError(t, conn.WriteJSON(inboundFrame{Text: "live"}))
	var ack outboundFrame
	require.NoError(t, conn.ReadJSON(&ack))
	assert.Equal(t, frameTypeAck, ack.Type)
	require.NotNil(t, ack.Message)
	assert.Equal(t, "live", ack.Message.Message)
	assert.True(t, ack.Stored)

	require.NoError(t, conn.WriteJSON(inboundFrame{Text: ""}))
	var rejected outboundFrame
	require.NoError(t, conn.ReadJSON(&rejected))
	assert.Equal(t, frameTypeError, rejected.Type)
}

func TestRoomStatsAndEvents(t *testing.T) {
	router := newTestRouter(t, 10)
	alice := registerAlias(t, router, "alice")
	bob := registerAlias(t, router, "bob")

	w := doJSON(t, router, http.MethodPost, "/api/v1/rooms", alice, gin.H{"room_name": "general"})
	require.Equal(t, http.StatusCreated, w.Code)
	w = doJSON(t, router, http.MethodPost, "/api/v1/rooms/general/members", alice, gin.H{"alias": "bob"})
	require.Equal(t, http.StatusOK, w.Code)
	w = doJSON(t, router, http.MethodPost, "/api/v1/rooms/general/messages", bob, gin.H{"text": "hello"})
	require.Equal(t, http.StatusCreated, w.Code)

	w = doJSON(t, router, http.MethodGet, "/api/v1/rooms/general/stats", bob, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var stats domain.RoomStats
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &stats))
	assert.Equal(t, 2, stats.Members)
	assert.Equal(t, 1, stats.Messages)
	assert.Equal(t, 0, stats.PendingMessages)
	assert.Equal(t, int64(1), stats.LastSequenceNum)

	w = doJSON(t, router, http.MethodGet, "/api/v1/rooms/general/events", bob, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = doJSON(t, router, http.MethodGet, "/api/v1/rooms/general/events?limit=x", alice, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, router, http.MethodGet, "/api/v1/rooms/general/events", alice, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Events []domain.AuditEvent `json:"events"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Events, 2)
	assert.Equal(t, domain.EventTypeRoomCreated, resp.Events[0].EventType)
	assert.Equal(t, domain.EventTypeMemberAdded, resp.Events[1].EventType)
	assert.Equal(t, "bob", resp.Events[1].Payload["member"])
}
