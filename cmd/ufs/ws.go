package main

import (
	"log"
	"net/http"

	"github.com/coder/websocket"

	"aqwari.net/net/ufs"
)

// serveWebSocket announces an HTTP listener on hostport and serves
// one 9P session per accepted WebSocket. Messages are binary frames
// carrying the usual 9P byte stream.
func serveWebSocket(srv *ufs.Server, hostport string) error {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			OriginPatterns: []string{"*"},
		})
		if err != nil {
			log.Printf("websocket accept: %v", err)
			return
		}
		nc := websocket.NetConn(r.Context(), c, websocket.MessageBinary)
		if err := srv.ServeConn(nc); err != nil {
			log.Printf("websocket session: %v", err)
		}
	})
	return http.ListenAndServe(hostport, handler)
}
