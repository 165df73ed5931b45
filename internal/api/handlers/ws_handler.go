package handlers

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/hireloop/hireloop/internal/broadcast"
	"github.com/hireloop/hireloop/internal/services"
	"github.com/hireloop/hireloop/internal/utils"
)

const (
	wsWriteTimeout = 10 * time.Second
	wsPingInterval = 30 * time.Second
)

// WSHandler streams ordered transcript fragments to observer connections
// until the session closes or the client disconnects. Each connection gets
// its own writer pump off its own hub subscription, so one slow observer
// never stalls another.
type WSHandler struct {
	sessions services.SessionService
	log      *logrus.Entry
	upgrader websocket.Upgrader
}

func NewWSHandler(sessions services.SessionService, log *logrus.Entry) *WSHandler {
	if log == nil {
		log = logrus.NewEntry(logrus.New())
	}
	return &WSHandler{
		sessions: sessions,
		log:      log,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true }, // TODO: restrict origin in prod
		},
	}
}

type wsConn struct {
	c  *websocket.Conn
	mu sync.Mutex
}

func (w *wsConn) writeJSON(v any) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.c.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	return w.c.WriteJSON(v)
}

func (w *wsConn) ping() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.c.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteTimeout))
}

func (h *WSHandler) TranscriptWS(c *gin.Context) {
	if _, ok := requireOrg(c); !ok {
		return
	}

	sessionID := c.Param("session_id")
	if sessionID == "" {
		writeError(c, utils.E(utils.CodeInvalidArgument, "WSHandler.TranscriptWS", "missing session_id", nil))
		return
	}

	sub, err := h.sessions.Subscribe(c.Request.Context(), sessionID)
	if err != nil {
		writeError(c, err)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// upgrade already wrote a response in most cases
		return
	}
	defer conn.Close()

	wc := &wsConn{c: conn}
	log := h.log.WithField("session_id", sessionID)

	// Reader exists only to observe disconnects.
	readDone := make(chan struct{})
	go func() {
		defer close(readDone)
		conn.SetReadLimit(1 << 10)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	defer sub.Close()

	pinger := time.NewTicker(wsPingInterval)
	defer pinger.Stop()

	for {
		select {
		case <-readDone:
			return
		case <-c.Request.Context().Done():
			return
		case <-pinger.C:
			if err := wc.ping(); err != nil {
				return
			}
		case ev, ok := <-sub.C:
			if !ok {
				return
			}
			if err := wc.writeJSON(ev); err != nil {
				log.WithError(err).Debug("transcript subscriber write failed")
				return
			}
			if ev.Type == broadcast.EventClosed {
				return
			}
		}
	}
}
