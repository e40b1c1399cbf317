package inspector

import (
	"context"
	"net/http"
	"time"

	"github.com/GriffinCanCode/viewbridge/internal/app"
	"github.com/GriffinCanCode/viewbridge/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/viewbridge/internal/surface"
	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	streamBuffer   = 256
	writeWait      = 5 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = pongWait * 9 / 10
	maxClientBytes = 64 << 10
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// clientMessage is what a stream client may send.
type clientMessage struct {
	Type   string `json:"type"`
	View   string `json:"view"`
	Source string `json:"source"`
}

// Stream pushes bus messages to websocket clients. Clients can also queue
// scripts and ping.
type Stream struct {
	manager *app.Manager
	metrics *monitoring.Metrics
	log     *zap.Logger
}

// NewStream creates a stream handler.
func NewStream(manager *app.Manager, metrics *monitoring.Metrics, log *zap.Logger) *Stream {
	return &Stream{manager: manager, metrics: metrics, log: log}
}

// HandleConnection upgrades the request. ?view=<name> limits the stream to
// one view.
func (s *Stream) HandleConnection(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.log.Debug("stream upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	s.metrics.IncWSConnections()
	defer s.metrics.DecWSConnections()

	filter := c.Query("view")
	msgs, unsub := s.manager.Bus().Subscribe(streamBuffer)
	defer unsub()

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	replies := make(chan any, 16)
	go s.readLoop(ctx, cancel, conn, replies)

	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()

	if err := s.send(conn, gin.H{"type": "system", "message": "connected", "views": s.manager.List()}); err != nil {
		return
	}

	for {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
			return
		case msg, ok := <-msgs:
			if !ok {
				return
			}
			if filter != "" && msg.View != filter {
				continue
			}
			if err := s.send(conn, msg); err != nil {
				return
			}
			s.metrics.RecordWSMessage(string(msg.Type))
		case reply := <-replies:
			if err := s.send(conn, reply); err != nil {
				return
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}

// readLoop handles client messages until the connection fails.
func (s *Stream) readLoop(ctx context.Context, cancel context.CancelFunc, conn *websocket.Conn, replies chan<- any) {
	defer cancel()

	conn.SetReadLimit(maxClientBytes)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	reply := func(v any) {
		select {
		case replies <- v:
		case <-ctx.Done():
		}
	}

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.log.Debug("stream read error", zap.Error(err))
			}
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))

		var msg clientMessage
		if err := sonic.Unmarshal(data, &msg); err != nil {
			reply(gin.H{"type": "error", "message": "invalid message"})
			continue
		}

		switch msg.Type {
		case "ping":
			reply(gin.H{"type": "pong"})
		case "script":
			reply(s.queueScript(ctx, msg))
		default:
			reply(gin.H{"type": "error", "message": "unknown message type"})
		}
	}
}

func (s *Stream) queueScript(ctx context.Context, msg clientMessage) gin.H {
	var reqID string
	err := s.manager.Do(ctx, func() error {
		sf, err := s.manager.Get(msg.View)
		if err != nil {
			return err
		}
		reqID = string(sf.EvaluateJavaScript(msg.Source))
		if reqID == "" {
			return surface.ErrDisabled
		}
		return nil
	})
	if err != nil {
		return gin.H{"type": "error", "view": msg.View, "message": err.Error()}
	}
	return gin.H{"type": "queued", "view": msg.View, "request_id": reqID}
}

func (s *Stream) send(conn *websocket.Conn, v any) error {
	data, err := sonic.Marshal(v)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteMessage(websocket.TextMessage, data)
}
