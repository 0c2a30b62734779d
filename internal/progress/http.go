package progress

import (
	"net/http"
	"strings"
	"time"

	"github.com/abduss/filestore/internal/auth"
	"github.com/abduss/filestore/internal/logger"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	maxClientMessage = 512
	maxUploadIDLen   = 128
)

// TransportConfig controls websocket keep-alive.
type TransportConfig struct {
	PingInterval time.Duration
	PongWait     time.Duration
	WriteWait    time.Duration
}

type ackMessage struct {
	Subscribed string `json:"subscribed"`
}

type progressMessage struct {
	Progress int `json:"progress"`
}

// RegisterRoutes mounts GET /progress on a router group already behind the auth gate.
func RegisterRoutes(router gin.IRouter, registry *Registry, cfg TransportConfig) {
	handler := &httpHandler{
		registry: registry,
		cfg:      cfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
	router.GET("/progress", handler.subscribe)
}

type httpHandler struct {
	registry *Registry
	cfg      TransportConfig
	upgrader websocket.Upgrader
}

func (h *httpHandler) subscribe(c *gin.Context) {
	principal, ok := auth.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	uploadID := strings.TrimSpace(c.Query("uploadId"))
	if uploadID == "" || len(uploadID) > maxUploadIDLen {
		c.JSON(http.StatusBadRequest, gin.H{"error": "uploadId query parameter is required"})
		return
	}

	log := logger.FromContext(c).With(zap.String("upload_id", uploadID))

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade has already written the error response
		log.Debug("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	sub, err := h.registry.Subscribe(Key(principal.UserID.String(), uploadID))
	if err != nil {
		log.Warn("progress subscribe", zap.Error(err))
		return
	}
	defer h.registry.Unsubscribe(sub)

	if err := h.write(conn, ackMessage{Subscribed: uploadID}); err != nil {
		return
	}

	go h.readPump(conn, sub)
	h.writePump(conn, sub, log)
}

// readPump discards client frames, keeps the read deadline fresh on pongs and
// tears the subscription down when the connection goes away.
func (h *httpHandler) readPump(conn *websocket.Conn, sub *Subscription) {
	defer h.registry.Unsubscribe(sub)

	conn.SetReadLimit(maxClientMessage)
	_ = conn.SetReadDeadline(time.Now().Add(h.cfg.PongWait))
	conn.SetPongHandler(func(string) error {
		sub.Touch(time.Now())
		return conn.SetReadDeadline(time.Now().Add(h.cfg.PongWait))
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
		sub.Touch(time.Now())
	}
}

func (h *httpHandler) writePump(conn *websocket.Conn, sub *Subscription, log *zap.Logger) {
	ticker := time.NewTicker(h.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-sub.Ready():
			for _, percent := range sub.Drain() {
				if err := h.write(conn, progressMessage{Progress: percent}); err != nil {
					log.Debug("progress write failed", zap.Error(err))
					return
				}
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(h.cfg.WriteWait)); err != nil {
				return
			}
		case <-sub.Done():
			// flush whatever was queued before the close
			for _, percent := range sub.Drain() {
				if err := h.write(conn, progressMessage{Progress: percent}); err != nil {
					return
				}
			}
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(h.cfg.WriteWait))
			return
		}
	}
}

func (h *httpHandler) write(conn *websocket.Conn, v interface{}) error {
	_ = conn.SetWriteDeadline(time.Now().Add(h.cfg.WriteWait))
	return conn.WriteJSON(v)
}
