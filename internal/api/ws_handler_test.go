package api

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"recruify/internal/auth"
)

func newWsServer(t *testing.T, svc *auth.AuthService, origins []string) *httptest.Server {
	t.Helper()
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"})
	t.Cleanup(func() { _ = client.Close() })

	h := NewWsHandler(client, svc, slog.Default(), origins)
	r := gin.New()
	r.GET("/v1/ws", h.HandleConnection)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/v1/ws"
}

func TestWsRejectsRefreshToken(t *testing.T) {
	svc := newTestAuthService(t)
	srv := newWsServer(t, svc, nil)

	pair, err := svc.GenerateTokenPair(auth.Subject{UserID: 1, CompanyID: 2})
	require.NoError(t, err)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv), nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(wsAuthMessage{Type: "auth", Token: pair.RefreshToken}))
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, _, err = conn.ReadMessage()
	var closeErr *websocket.CloseError
	require.ErrorAs(t, err, &closeErr)
	assert.Equal(t, websocket.ClosePolicyViolation, closeErr.Code)
}

func TestWsRejectsForeignOrigin(t *testing.T) {
	srv := newWsServer(t, newTestAuthService(t), []string{"https://app.example.com"})

	header := http.Header{"Origin": []string{"https://evil.example.com"}}
	_, resp, err := websocket.DefaultDialer.Dial(wsURL(srv), header)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}
