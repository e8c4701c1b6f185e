package hubclient

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"time"

	"alerthub/pkg/protocol"
)

// TCPAck is the hub's per-line answer on the TCP ingestion port.
type TCPAck struct {
	OK      bool   `json:"ok"`
	EventID int64  `json:"event_id,omitempty"`
	Error   string `json:"error,omitempty"`
}

// TCPSender writes newline-delimited JSON events to the hub's TCP ingestion port.
// Events sent this way carry the tcp_socket channel.
type TCPSender struct {
	conn net.Conn
	r    *bufio.Reader
	addr string
}

// DialTCP connects to addr (host:port).
func DialTCP(ctx context.Context, addr string) (*TCPSender, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, &protocol.TransportError{Op: "dial tcp " + addr, Err: err}
	}
	return &TCPSender{conn: conn, r: bufio.NewReader(conn), addr: addr}, nil
}

// Send writes one event line and waits for its acknowledgement.
func (s *TCPSender) Send(ctx context.Context, req protocol.CreateEventRequest) (TCPAck, error) {
	op := "send tcp " + s.addr
	if deadline, ok := ctx.Deadline(); ok {
		_ = s.conn.SetDeadline(deadline)
	} else {
		_ = s.conn.SetDeadline(time.Now().Add(protocol.DefaultHTTPTimeout))
	}

	line, err := json.Marshal(req)
	if err != nil {
		return TCPAck{}, fmt.Errorf("%s: encode: %w", op, err)
	}
	if _, err := s.conn.Write(append(line, '\n')); err != nil {
		return TCPAck{}, &protocol.TransportError{Op: op, Err: err}
	}

	reply, err := s.r.ReadBytes('\n')
	if err != nil {
		return TCPAck{}, &protocol.TransportError{Op: op, Err: err}
	}
	var ack TCPAck
	if err := json.Unmarshal(reply, &ack); err != nil {
		return TCPAck{}, &protocol.DecodeError{Op: op, Payload: clip(reply), Err: err}
	}
	if !ack.OK {
		msg := ack.Error
		if msg == "" {
			msg = "rejected"
		}
		return ack, &protocol.ValidationError{Message: msg}
	}
	if ack.EventID == 0 {
		return ack, &protocol.DecodeError{Op: op, Payload: clip(reply), Err: errors.New("ack carries no event id")}
	}
	return ack, nil
}

// Close closes the underlying connection.
func (s *TCPSender) Close() error {
	return s.conn.Close()
}
