package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"

	"recruify/internal/auth"
	"recruify/internal/notify"
)

const (
	wsAuthTimeout  = 10 * time.Second
	wsPingInterval = 30 * time.Second
	wsWriteWait    = 5 * time.Second
)

type pubsubClient interface {
	Subscribe(ctx context.Context, channels ...string) *redis.PubSub
}

type accessTokenValidator interface {
	ValidateToken(token string) (*auth.TokenClaims, error)
}

// WsHandler 把公司通知频道推送给已认证的看板客户端。
type WsHandler struct {
	redisClient    pubsubClient
	authService    accessTokenValidator
	logger         *slog.Logger
	upgrader       websocket.Upgrader
	allowedOrigins []string
}

func NewWsHandler(redisClient pubsubClient, authService accessTokenValidator, logger *slog.Logger, allowedOrigins []string) *WsHandler {
	h := &WsHandler{
		redisClient:    redisClient,
		authService:    authService,
		logger:         logger,
		allowedOrigins: allowedOrigins,
	}
	h.upgrader = websocket.Upgrader{CheckOrigin: h.originAllowed}
	return h
}

type wsAuthMessage struct {
	Type  string `json:"type"`
	Token string `json:"token"`
}

// wsRejection 携带关闭帧的状态码与原因。
type wsRejection struct {
	code   int
	reason string
	err    error
}

func (r *wsRejection) Error() string { return r.err.Error() }

func (h *WsHandler) originAllowed(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	if len(h.allowedOrigins) > 0 {
		return slices.Contains(h.allowedOrigins, origin)
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	return strings.EqualFold(u.Host, r.Host)
}

// HandleConnection 完成首帧认证后订阅 company_notify:<id> 并转发消息。
func (h *WsHandler) HandleConnection(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("upgrade websocket failed", slog.Any("error", err))
		return
	}
	defer conn.Close()

	log := h.logger.With(slog.String("client_ip", c.ClientIP()))

	sub, err := h.authenticate(conn)
	if err != nil {
		var rej *wsRejection
		if errors.As(err, &rej) {
			closeWith(conn, rej.code, rej.reason)
		}
		log.Warn("websocket authentication failed", slog.Any("error", err))
		return
	}
	log = log.With(
		slog.Uint64("user_id", uint64(sub.UserID)),
		slog.Uint64("company_id", uint64(sub.CompanyID)),
	)
	log.Info("websocket authenticated")

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	// 认证后客户端发来的帧一律丢弃，读循环只负责发现断开。
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	if err := h.forward(ctx, conn, sub.CompanyID, log); err != nil {
		log.Info("websocket connection closed", slog.Any("error", err))
		return
	}
	log.Info("websocket connection closed")
}

func (h *WsHandler) authenticate(conn *websocket.Conn) (auth.Subject, error) {
	_ = conn.SetReadDeadline(time.Now().Add(wsAuthTimeout))
	defer conn.SetReadDeadline(time.Time{})

	_, message, err := conn.ReadMessage()
	if err != nil {
		return auth.Subject{}, fmt.Errorf("read auth frame: %w", err)
	}

	var msg wsAuthMessage
	if err := json.Unmarshal(message, &msg); err != nil {
		return auth.Subject{}, &wsRejection{websocket.ClosePolicyViolation, "invalid auth payload", fmt.Errorf("decode auth payload: %w", err)}
	}
	if msg.Type != "auth" || msg.Token == "" {
		return auth.Subject{}, &wsRejection{websocket.ClosePolicyViolation, "auth required", errors.New("first frame is not an auth message")}
	}

	claims, err := h.authService.ValidateToken(msg.Token)
	if err != nil {
		return auth.Subject{}, &wsRejection{websocket.ClosePolicyViolation, "unauthorized", fmt.Errorf("validate token: %w", err)}
	}
	switch {
	case claims.TokenType != auth.TokenTypeAccess || claims.CompanyID == 0:
		return auth.Subject{}, &wsRejection{websocket.ClosePolicyViolation, "access token required", fmt.Errorf("invalid token type %q", claims.TokenType)}
	case claims.MustChangePassword:
		return auth.Subject{}, &wsRejection{websocket.ClosePolicyViolation, "password change required", errors.New("password change required")}
	}
	return auth.Subject{UserID: claims.UserID, CompanyID: claims.CompanyID}, nil
}

func (h *WsHandler) forward(ctx context.Context, conn *websocket.Conn, companyID uint, log *slog.Logger) error {
	channel := notify.Channel(companyID)
	pubsub := h.redisClient.Subscribe(ctx, channel)
	defer pubsub.Close()

	messages := pubsub.Channel()
	ticker := time.NewTicker(wsPingInterval)
	defer ticker.Stop()

	log.Debug("subscribed to notifications", slog.String("channel", channel))
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-messages:
			if !ok {
				return errors.New("pubsub channel closed")
			}
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.TextMessage, []byte(msg.Payload)); err != nil {
				return fmt.Errorf("write notification: %w", err)
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait)); err != nil {
				return fmt.Errorf("write ping: %w", err)
			}
		}
	}
}

func closeWith(conn *websocket.Conn, code int, reason string) {
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), time.Now().Add(wsWriteWait))
}
