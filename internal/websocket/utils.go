package websocket

import (
	"time"

	"github.com/gorilla/websocket"
)

const (
	// MaxMessageSize bounds one client frame; the largest action is an answer.
	MaxMessageSize = 64 << 10
	// ReadTimeout is how long a student may dwell on a question without any
	// frame or pong reaching the server.
	ReadTimeout = 5 * time.Minute
	// PingInterval keeps idle proxies from dropping the stream.
	PingInterval = 30 * time.Second

	writeTimeout = 10 * time.Second
)

// Prepare applies the read limit and lets pongs extend the read deadline.
func Prepare(conn *websocket.Conn) {
	conn.SetReadLimit(MaxMessageSize)
	conn.SetReadDeadline(time.Now().Add(ReadTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(ReadTimeout))
	})
}

// WriteTyped sends one JSON event. Only the connection's writer may call it.
func WriteTyped(conn *websocket.Conn, v interface{}) error {
	conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return conn.WriteJSON(v)
}

// WritePing sends a protocol ping. Only the connection's writer may call it.
func WritePing(conn *websocket.Conn) error {
	return conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout))
}

// ReadMessage reads one frame and pushes the read deadline forward.
func ReadMessage(conn *websocket.Conn) ([]byte, error) {
	_, data, err := conn.ReadMessage()
	if err != nil {
		return nil, err
	}
	conn.SetReadDeadline(time.Now().Add(ReadTimeout))
	return data, nil
}
