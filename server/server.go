package server

import (
	"fmt"
	"net"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"

	"evlink/internal"
	"evlink/internal/config"
	"evlink/utility"
)

const (
	wsEndpoint    = "/ws/:id"
	relayEndpoint = "/relay/:id"
)

type Server struct {
	conf                   *config.Config
	httpServer             *http.Server
	upgrader               websocket.Upgrader
	messageHandler         func(ws *WebSocket, data []byte) error
	connectHandler         func(ws *WebSocket)
	disconnectHandler      func(ws *WebSocket)
	relayConnectHandler    func(ws *WebSocket)
	relayDisconnectHandler func(ws *WebSocket)
	logger                 internal.LogHandler
}

// WebSocket wraps one charge point connection. Writes go through a mutex;
// gorilla connections do not support concurrent writers.
type WebSocket struct {
	conn     *websocket.Conn
	id       string
	writeMux sync.Mutex
}

func (ws *WebSocket) ID() string {
	return ws.id
}

func (ws *WebSocket) WriteMessage(data []byte) error {
	ws.writeMux.Lock()
	defer ws.writeMux.Unlock()
	return ws.conn.WriteMessage(websocket.TextMessage, data)
}

func (ws *WebSocket) Close() error {
	return ws.conn.Close()
}

func NewServer(conf *config.Config) *Server {
	server := Server{
		conf:     conf,
		upgrader: websocket.Upgrader{Subprotocols: []string{}},
	}
	// register itself as a router for httpServer handler
	router := httprouter.New()
	server.Register(router)
	server.httpServer = &http.Server{
		Handler: router,
	}
	return &server
}

func (s *Server) AddSupportedSubProtocol(proto string) {
	for _, sub := range s.upgrader.Subprotocols {
		if sub == proto {
			return
		}
	}
	s.upgrader.Subprotocols = append(s.upgrader.Subprotocols, proto)
}

func (s *Server) SetMessageHandler(handler func(ws *WebSocket, data []byte) error) {
	s.messageHandler = handler
}

func (s *Server) SetConnectHandler(handler func(ws *WebSocket)) {
	s.connectHandler = handler
}

func (s *Server) SetDisconnectHandler(handler func(ws *WebSocket)) {
	s.disconnectHandler = handler
}

// SetRelayHandlers enables the monitoring endpoint; without them a relay
// request is answered with 404.
func (s *Server) SetRelayHandlers(connect, disconnect func(ws *WebSocket)) {
	s.relayConnectHandler = connect
	s.relayDisconnectHandler = disconnect
}

func (s *Server) SetLogger(logger internal.LogHandler) {
	s.logger = logger
}

func (s *Server) Register(router *httprouter.Router) {
	router.GET(wsEndpoint, s.handleWsRequest)
	router.GET(relayEndpoint, s.handleRelayRequest)
}

func (s *Server) handleWsRequest(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	// the charge point id is the last path segment
	id := params.ByName("id")
	s.logger.Debug(fmt.Sprintf("connection initiated from remote %s", r.RemoteAddr))

	s.upgrader.CheckOrigin = func(r *http.Request) bool {
		return true
	}

	clientSubProto := websocket.Subprotocols(r)
	requestedProto := ""
	for _, proto := range clientSubProto {
		if utility.Contains(s.upgrader.Subprotocols, proto) {
			requestedProto = proto
			break
		}
	}
	if requestedProto == "" && len(clientSubProto) > 0 {
		s.logger.Warn(fmt.Sprintf("no supported subprotocol offered by %s: %v", id, clientSubProto))
		http.Error(w, "unsupported subprotocol", http.StatusBadRequest)
		return
	}
	responseHeader := http.Header{}
	if requestedProto != "" {
		responseHeader.Add("Sec-WebSocket-Protocol", requestedProto)
	}

	conn, err := s.upgrader.Upgrade(w, r, responseHeader)
	if err != nil {
		s.logger.Error("upgrade failed: ", err)
		return
	}

	s.logger.Debug(fmt.Sprintf("upgraded socket for %s and ready to receive data", id))
	ws := WebSocket{
		conn: conn,
		id:   id,
	}
	if s.connectHandler != nil {
		s.connectHandler(&ws)
	}

	go s.messageReader(&ws)
}

// handleRelayRequest attaches a monitoring client to the traffic of the
// charge point named in the path. The socket is write-only from the relay's
// point of view: inbound frames are drained and discarded.
func (s *Server) handleRelayRequest(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	if s.relayConnectHandler == nil {
		http.NotFound(w, r)
		return
	}
	id := params.ByName("id")

	s.upgrader.CheckOrigin = func(r *http.Request) bool {
		return true
	}
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("relay upgrade failed: ", err)
		return
	}
	s.logger.Debug(fmt.Sprintf("relay subscriber attached to %s from %s", id, r.RemoteAddr))

	ws := WebSocket{
		conn: conn,
		id:   id,
	}
	s.relayConnectHandler(&ws)

	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				break
			}
		}
		_ = conn.Close()
		s.relayDisconnectHandler(&ws)
		s.logger.Debug(fmt.Sprintf("relay subscriber of %s detached", id))
	}()
}

func (s *Server) messageReader(ws *WebSocket) {
	conn := ws.conn
	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, 3001) {
				s.logger.Debug(fmt.Sprintf("id %s leaving session", ws.id))
			} else {
				s.logger.Debug(fmt.Sprintf("id %s is closing session %s", ws.id, err))
			}
			err = conn.Close()
			if err != nil {
				s.logger.Warn(fmt.Sprintf("error while closing socket %s %s", ws.id, err))
			}
			if s.disconnectHandler != nil {
				s.disconnectHandler(ws)
			}
			return
		}
		s.logger.RawDataEvent("IN", string(message))
		if s.messageHandler != nil {
			err = s.messageHandler(ws, message)
			if err != nil {
				s.logger.Error(fmt.Sprintf("handling message from %s", ws.id), err)
				continue
			}
		}
	}
}

func (s *Server) Start() error {
	if s.conf == nil {
		return utility.Err("configuration not loaded")
	}
	serverAddress := fmt.Sprintf("%s:%s", s.conf.Listen.BindIP, s.conf.Listen.Port)
	s.logger.Debug(fmt.Sprintf("starting server on %s", serverAddress))
	listener, err := net.Listen("tcp", serverAddress)
	if err != nil {
		return err
	}
	if s.conf.Listen.TLS {
		s.logger.Debug("starting https TLS server")
		err = s.httpServer.ServeTLS(listener, s.conf.Listen.CertFile, s.conf.Listen.KeyFile)
	} else {
		s.logger.Debug("starting http server")
		err = s.httpServer.Serve(listener)
	}
	return err
}
