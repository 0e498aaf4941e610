package ws

import (
	"context"
	"log/slog"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/syncable/syncable/internal/domain"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// ErrSendBufferFull reports a client that stopped draining its connection.
var ErrSendBufferFull = errors.New("send buffer full")

// wsSender queues outbound messages on a bounded channel drained by a
// single writer goroutine. Send never blocks on the network; when the
// buffer overflows the connection is condemned and the caller's message is
// dropped.
type wsSender struct {
	conn *websocket.Conn
	out  chan any

	once sync.Once
	dead chan struct{}
}

func newWSSender(conn *websocket.Conn, buffer int) *wsSender {
	return &wsSender{
		conn: conn,
		out:  make(chan any, buffer),
		dead: make(chan struct{}),
	}
}

func (s *wsSender) Send(msg any) error {
	select {
	case <-s.dead:
		return ErrSendBufferFull
	default:
	}
	select {
	case s.out <- msg:
		return nil
	default:
		s.kill()
		return ErrSendBufferFull
	}
}

func (s *wsSender) kill() {
	s.once.Do(func() {
		close(s.dead)
		// unblocks the read loop
		s.conn.Close()
	})
}

// run drains the queue onto the wire. Returns when the sender is killed or
// a write fails.
func (s *wsSender) run() {
	for {
		select {
		case <-s.dead:
			return
		case msg := <-s.out:
			if err := s.conn.WriteJSON(msg); err != nil {
				s.kill()
				return
			}
		}
	}
}

// Handler hosts the websocket endpoint on echo.
type Handler struct {
	config     domain.Config
	controller *Controller
}

func NewHandler(config domain.Config, controller *Controller) *Handler {
	return &Handler{
		config:     config,
		controller: controller,
	}
}

func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.GET("/sync", h.handleSync)
	e.GET("/healthz", h.handleHealthz)
}

func (h *Handler) handleHealthz(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{"status": "ok"})
}

func (h *Handler) handleSync(c echo.Context) error {
	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		slog.Error(
			"Failed to upgrade WebSocket",
			slog.String("error", err.Error()),
			slog.String("module", "socket"),
		)
		return err
	}

	ctx := c.Request().Context()

	if h.config.MaxMessageBytes > 0 {
		conn.SetReadLimit(h.config.MaxMessageBytes)
	}

	sender := newWSSender(conn, h.config.SendBuffer)
	defer sender.kill()
	go sender.run()

	sess := h.controller.NewSession(sender)
	// the request context dies with the connection; teardown must outlive it
	defer h.controller.HandleClose(context.WithoutCancel(ctx), sess)

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			wsErr, ok := err.(*websocket.CloseError)
			if ok {
				if !(wsErr.Code == websocket.CloseNormalClosure || wsErr.Code == websocket.CloseGoingAway) {
					slog.DebugContext(
						ctx, "WebSocket closed",
						slog.String("error", wsErr.Error()),
						slog.String("module", "socket"),
					)
				}
			} else {
				slog.DebugContext(
					ctx, "Error reading message",
					slog.String("error", err.Error()),
					slog.String("module", "socket"),
				)
			}
			return nil
		}

		h.controller.Handle(ctx, sess, raw)
	}
}
