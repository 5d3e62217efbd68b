package server

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"evlink/internal"
	"evlink/internal/config"
)

const (
	apiEndpoint = "/api"
)

// Api is the operator command endpoint. A command names a charge point,
// a feature and an optional payload; the call result payload is returned
// as the response body.
type Api struct {
	conf           *config.Config
	httpServer     *http.Server
	requestHandler func(command *CentralSystemCommand) (json.RawMessage, error)
	logger         internal.LogHandler
}

func NewServerApi(conf *config.Config, logger internal.LogHandler) *Api {
	server := Api{
		conf:   conf,
		logger: logger,
	}
	server.httpServer = &http.Server{
		Addr:    fmt.Sprintf("%s:%s", conf.Api.BindIP, conf.Api.Port),
		Handler: http.HandlerFunc(server.handleRoot),
	}
	return &server
}

func (s *Api) Start() error {
	if !s.conf.Api.Enabled {
		return nil
	}
	return s.httpServer.ListenAndServe()
}

func (s *Api) SetRequestHandler(handler func(command *CentralSystemCommand) (json.RawMessage, error)) {
	s.requestHandler = handler
}

func (s *Api) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.logger.Warn(fmt.Sprintf("api: invalid method %s from %s", r.Method, r.RemoteAddr))
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if r.URL.Path != apiEndpoint {
		s.logger.Warn(fmt.Sprintf("api: invalid path %s from %s", r.URL.Path, r.RemoteAddr))
		w.WriteHeader(http.StatusNotFound)
		return
	}
	body, err := io.ReadAll(r.Body)
	if err != nil {
		s.logger.Warn(fmt.Sprintf("api: error reading body from %s: %s", r.RemoteAddr, err))
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	var command CentralSystemCommand
	if err = json.Unmarshal(body, &command); err != nil {
		s.logger.Warn(fmt.Sprintf("api: error parsing command from %s: %s", r.RemoteAddr, err))
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	payload, err := s.requestHandler(&command)
	if err != nil {
		s.logger.Warn(fmt.Sprintf("api: command %s to %s failed: %s", command.FeatureName, command.ChargePointId, err))
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	if len(payload) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	w.Header().Add("Content-Type", "application/json; charset=utf-8")
	if _, err = w.Write(payload); err != nil {
		s.logger.Error("api: writing response", err)
	}
}
