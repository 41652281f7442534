package transport

import "github.com/gorilla/websocket"

// WSConn adapts a gorilla/websocket connection to Conn, sending and
// receiving each packet as one binary frame.
type WSConn struct {
	ws *websocket.Conn
}

// NewWSConn wraps an already-established websocket connection.
func NewWSConn(ws *websocket.Conn) *WSConn {
	return &WSConn{ws: ws}
}

func (c *WSConn) ReadMessage() ([]byte, error) {
	_, data, err := c.ws.ReadMessage()
	return data, err
}

func (c *WSConn) WriteMessage(data []byte) error {
	return c.ws.WriteMessage(websocket.BinaryMessage, data)
}

func (c *WSConn) Close() error {
	return c.ws.Close()
}
