package http

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alecthomas/assert/v2"
	"github.com/gorilla/websocket"
)

type wsMessage struct {
	Type  string   `json:"type"`
	View  viewBody `json:"view"`
	Error string   `json:"error"`
}

func dial(t *testing.T, srv *httptest.Server, path string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + path
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	assert.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

// readUntil reads messages until ok accepts one.
func readUntil(t *testing.T, conn *websocket.Conn, ok func(wsMessage) bool) wsMessage {
	t.Helper()
	assert.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	for {
		var msg wsMessage
		assert.NoError(t, conn.ReadJSON(&msg))
		if ok(msg) {
			return msg
		}
	}
}

func TestWebsocketLiveView(t *testing.T) {
	s, _ := newTestServer(t, nil)
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	do(t, s, "POST", "/api/users/u1/transactions", `{"date":"2024-06-01","kind":"expense","category":"Food","amount":"10"}`)
	conn := dial(t, srv, "/ws/users/u1?period=Monthly")

	first := readUntil(t, conn, func(m wsMessage) bool { return m.Type == "view" })
	assert.Equal(t, "10", first.View.TotalExpense)

	do(t, s, "POST", "/api/users/u1/transactions", `{"date":"2024-06-02","kind":"expense","category":"Food","amount":"5"}`)
	readUntil(t, conn, func(m wsMessage) bool { return m.Type == "view" && m.View.TotalExpense == "15" })

	assert.NoError(t, conn.WriteJSON(map[string]string{"period": "yearly"}))
	yearly := readUntil(t, conn, func(m wsMessage) bool { return m.Type == "view" && m.View.Period == "Yearly" })
	assert.Equal(t, "2024", yearly.View.PeriodKey)

	assert.NoError(t, conn.WriteJSON(map[string]string{"currency": "EUR"}))
	eur := readUntil(t, conn, func(m wsMessage) bool { return m.Type == "view" && m.View.Currency == "EUR" })
	assert.Equal(t, "0.75", eur.View.TotalExpense)

	assert.NoError(t, conn.WriteJSON(map[string]string{"currency": "XYZ"}))
	bad := readUntil(t, conn, func(m wsMessage) bool { return m.Type == "error" })
	assert.Contains(t, bad.Error, "XYZ")
}
