package http

import (
	"encoding/json"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/olahol/melody"

	"pennypal/internal/core"
	"pennypal/internal/engine"
	"pennypal/internal/log"
)

const (
	keySession = "session"
	keyPeriod  = "period"
	keyWatcher = "watcher"
)

// selectionMessage changes the period or currency of a live view.
type selectionMessage struct {
	Period   string `json:"period,omitempty"`
	Currency string `json:"currency,omitempty"`
}

func (s *Server) newMelody(logger *log.Logger) *melody.Melody {
	m := melody.New()
	m.Config.MaxMessageSize = 4096
	m.Config.PingPeriod = 30 * time.Second
	m.Config.PongWait = 60 * time.Second

	m.HandleConnect(func(ms *melody.Session) { s.wsConnect(ms, logger) })
	m.HandleMessage(func(ms *melody.Session, msg []byte) { s.wsMessage(ms, msg) })
	m.HandleDisconnect(func(ms *melody.Session) {
		if w := watcherOf(ms); w != nil {
			_ = w.Close()
		}
		if sess, ok := ms.Get(keySession); ok {
			logger.Debug("Websocket disconnected", log.FieldUserID, sess.(core.Session).UserID)
		}
	})
	m.HandleError(func(ms *melody.Session, err error) {
		logger.Warn("Websocket error", log.FieldError, err)
	})
	return m
}

// handleWebsocket validates the selection before upgrading, so bad requests
// get a plain 400.
func (s *Server) handleWebsocket(c *gin.Context) {
	sess, period, err := s.selection(c)
	if err != nil {
		writeError(c, err)
		return
	}
	keys := map[string]any{keySession: sess, keyPeriod: period}
	if err := s.ws.HandleRequestWithKeys(c.Writer, c.Request, keys); err != nil {
		s.logger.WarnContext(c.Request.Context(), "Websocket upgrade failed", log.FieldError, err)
	}
}

func (s *Server) wsConnect(ms *melody.Session, logger *log.Logger) {
	sessV, _ := ms.Get(keySession)
	periodV, _ := ms.Get(keyPeriod)
	sess, period := sessV.(core.Session), periodV.(core.Period)

	w, err := s.deps.Engine.Watch(ms.Request.Context(), sess, period)
	if err != nil {
		writeJSON(ms, viewMessage{Type: "error", Error: err.Error()})
		_ = ms.Close()
		return
	}
	ms.Set(keyWatcher, w)
	logger.Info("Websocket connected",
		log.NewFields().WithSelection(sess.UserID, string(period), sess.DisplayCurrency).ToSlice()...)

	go func() {
		for v := range w.Views() {
			writeJSON(ms, viewMessage{Type: "view", View: &v})
		}
	}()
}

func (s *Server) wsMessage(ms *melody.Session, msg []byte) {
	w := watcherOf(ms)
	if w == nil {
		return
	}
	var sel selectionMessage
	if err := json.Unmarshal(msg, &sel); err != nil {
		writeJSON(ms, viewMessage{Type: "error", Error: "invalid message"})
		return
	}

	var err error
	if sel.Period != "" {
		var p core.Period
		if p, err = core.ParsePeriod(sel.Period); err == nil {
			err = w.SetPeriod(p)
		}
	}
	if err == nil && sel.Currency != "" {
		err = w.SetCurrency(sel.Currency)
	}
	if err != nil {
		writeJSON(ms, viewMessage{Type: "error", Error: err.Error()})
	}
}

func watcherOf(ms *melody.Session) *engine.Watcher {
	v, ok := ms.Get(keyWatcher)
	if !ok {
		return nil
	}
	w, _ := v.(*engine.Watcher)
	return w
}

func writeJSON(ms *melody.Session, msg viewMessage) {
	b, err := json.Marshal(msg)
	if err != nil {
		return
	}
	_ = ms.Write(b)
}
