package hubtest

import (
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"alerthub/pkg/hubclient"
)

// Server runs a Hub on loopback listeners picked by the OS.
type Server struct {
	*Hub

	API  *httptest.Server
	Push *httptest.Server
	TCP  net.Listener
}

// Start serves a fresh hub: REST on one listener, push on another, TCP ingestion on a third.
func Start() *Server {
	hub := NewHub(zerolog.Nop())
	s := &Server{
		Hub:  hub,
		API:  httptest.NewServer(hub.Router()),
		Push: httptest.NewServer(hub.PushHandler()),
	}
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		panic("hubtest: listen tcp: " + err.Error())
	}
	s.TCP = ln
	go func() { _ = hub.ServeTCP(ln) }()

	tcpHost, tcpPort := splitPort(ln.Addr().String())
	_, httpPort := splitPort(s.API.Listener.Addr().String())
	hub.SetEndpoints(hubclient.HubConfig{
		WSURL:    s.PushURL(),
		TCPHost:  tcpHost,
		TCPPort:  tcpPort,
		HTTPPort: httpPort,
	})
	return s
}

// BaseURL is the REST endpoint.
func (s *Server) BaseURL() string { return s.API.URL }

// PushURL is the websocket endpoint.
func (s *Server) PushURL() string { return "ws" + strings.TrimPrefix(s.Push.URL, "http") }

// PushPort is the port of the push listener.
func (s *Server) PushPort() int {
	_, port := splitPort(s.Push.Listener.Addr().String())
	return port
}

// TCPAddr is the host:port of the TCP ingestion port.
func (s *Server) TCPAddr() string { return s.TCP.Addr().String() }

// Close drops push clients and shuts every listener down.
func (s *Server) Close() {
	s.DropPushClients()
	_ = s.TCP.Close()
	s.Push.Close()
	s.API.Close()
}

// Client returns a REST client bound to the server.
func (s *Server) Client() *hubclient.Client {
	return hubclient.New(s.BaseURL(), http.DefaultClient)
}

func splitPort(addr string) (string, int) {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return addr, 0
	}
	n, _ := strconv.Atoi(port)
	return host, n
}
