package gateway

import (
	"net/http"

	"github.com/google/uuid"
)

// ServeWS upgrades the request and pumps frames for one client until the
// socket closes. userID may be empty for anonymous players.
func (g *Gateway) ServeWS(w http.ResponseWriter, r *http.Request, userID string) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		g.log.WarnContext(r.Context(), "ws upgrade failed", "err", err)
		return
	}

	c := NewClientConn(uuid.NewString(), userID, ws)
	g.Connect(c)
	g.log.DebugContext(r.Context(), "ws connected", "conn", c.id, "user", userID)

	go c.writePump()
	c.readPump(func(data []byte) { g.Deliver(c, data) })

	g.Disconnect(c)
	g.log.DebugContext(r.Context(), "ws disconnected", "conn", c.id)
}
