package server

import (
	"encoding/json"
	"fmt"
	"log"
	"time"

	"evlink/internal"
	"evlink/internal/config"
	"evlink/metrics/counters"
	"evlink/ocpp"
	"evlink/ocpp/core"
	"evlink/ocpp/firmware"
	"evlink/telegram"
	"evlink/types"
)

type CentralSystem struct {
	conf     *config.Config
	server   *Server
	api      *Api
	logger   internal.LogHandler
	handler  *SystemHandler
	router   *ocpp.Router
	sessions *SessionRegistry
	relay    *Relay
}

type CentralSystemCommand struct {
	ChargePointId string `json:"charge_point_id"`
	ConnectorId   int    `json:"connector_id"`
	FeatureName   string `json:"feature_name"`
	Payload       string `json:"payload"`
}

// buildRouter binds every action the central system accepts from charge
// points to its handler. The table is complete after startup; anything
// not registered here is answered with NotImplemented.
func (cs *CentralSystem) buildRouter(h *SystemHandler) *ocpp.Router {
	router := ocpp.NewRouter()
	router.Handle(core.AuthorizeFeature{}, func(id string, request ocpp.Request) (ocpp.Response, error) {
		return h.OnAuthorize(id, request.(*core.AuthorizeRequest))
	})
	router.Handle(core.BootNotificationFeature{}, func(id string, request ocpp.Request) (ocpp.Response, error) {
		return h.OnBootNotification(id, request.(*core.BootNotificationRequest))
	})
	router.Handle(core.DataTransferFeature{}, func(id string, request ocpp.Request) (ocpp.Response, error) {
		return h.OnDataTransfer(id, request.(*core.DataTransferRequest))
	})
	router.Handle(core.HeartbeatFeature{}, func(id string, request ocpp.Request) (ocpp.Response, error) {
		return h.OnHeartbeat(id, request.(*core.HeartbeatRequest))
	})
	router.Handle(core.MeterValuesFeature{}, func(id string, request ocpp.Request) (ocpp.Response, error) {
		return h.OnMeterValues(id, request.(*core.MeterValuesRequest))
	})
	router.Handle(core.StartTransactionFeature{}, func(id string, request ocpp.Request) (ocpp.Response, error) {
		return h.OnStartTransaction(id, request.(*core.StartTransactionRequest))
	})
	router.Handle(core.StatusNotificationFeature{}, func(id string, request ocpp.Request) (ocpp.Response, error) {
		return h.OnStatusNotification(id, request.(*core.StatusNotificationRequest))
	})
	router.Handle(core.StopTransactionFeature{}, func(id string, request ocpp.Request) (ocpp.Response, error) {
		return h.OnStopTransaction(id, request.(*core.StopTransactionRequest))
	})
	router.Handle(firmware.DiagnosticsStatusNotificationFeature{}, func(id string, request ocpp.Request) (ocpp.Response, error) {
		return h.OnDiagnosticsStatusNotification(id, request.(*firmware.DiagnosticsStatusNotificationRequest))
	})
	router.Handle(firmware.FirmwareStatusNotificationFeature{}, func(id string, request ocpp.Request) (ocpp.Response, error) {
		return h.OnFirmwareStatusNotification(id, request.(*firmware.FirmwareStatusNotificationRequest))
	})
	return router
}

func (cs *CentralSystem) onConnect(ws *WebSocket) {
	timeout := time.Duration(cs.conf.Ocpp.CallTimeout) * time.Second
	session := NewSession(ws, timeout, cs.logger)
	session.SetRawSink(func(data []byte) {
		cs.relay.Forward(ws.ID(), data)
	})
	cs.sessions.Add(session)
	cs.handler.OnConnect(ws.ID())
	counters.ObserveConnections(cs.conf.Listen.BindIP, cs.sessions.Count())
}

func (cs *CentralSystem) onDisconnect(ws *WebSocket) {
	session := cs.sessions.ByTransport(ws)
	if session == nil {
		return
	}
	cs.sessions.Remove(session)
	cs.handler.OnDisconnect(ws.ID())
	counters.ObserveConnections(cs.conf.Listen.BindIP, cs.sessions.Count())
}

func (cs *CentralSystem) handleIncomingMessage(ws *WebSocket, data []byte) error {
	chargePointId := ws.ID()
	session := cs.sessions.ByTransport(ws)
	if session == nil {
		return fmt.Errorf("no session for charge point %s", chargePointId)
	}
	cs.relay.Forward(chargePointId, data)

	message, err := ocpp.ParseMessage(data)
	if err != nil {
		var ocppErr *ocpp.Error
		if ok := asOcppError(err, &ocppErr); ok && ocppErr.MessageId != "" {
			return session.SendError(ocppErr.MessageId, ocppErr.Code, ocppErr.Description)
		}
		// no unique id to address a CallError to: the stream is
		// unreadable, drop the connection
		cs.logger.Warn(fmt.Sprintf("closing %s after unparseable frame: %s", chargePointId, err))
		cs.sessions.Remove(session)
		counters.ObserveConnections(cs.conf.Listen.BindIP, cs.sessions.Count())
		return ws.Close()
	}

	switch m := message.(type) {
	case *ocpp.Call:
		response, callErr := cs.router.Dispatch(chargePointId, m)
		if callErr != nil {
			counters.ObserveError(cs.conf.Listen.BindIP, chargePointId, string(callErr.Code))
			return session.SendError(m.UniqueId, callErr.Code, callErr.Description)
		}
		return session.SendResult(m.UniqueId, response)
	case *ocpp.CallResult:
		session.HandleResult(m)
	case *ocpp.CallError:
		session.HandleError(m)
	}
	return nil
}

func asOcppError(err error, target **ocpp.Error) bool {
	ocppErr, ok := err.(*ocpp.Error)
	if ok {
		*target = ocppErr
	}
	return ok
}

// handleApiRequest builds the outbound request for an operator command and
// runs the call against the charge point session, returning the raw
// response payload.
func (cs *CentralSystem) handleApiRequest(command *CentralSystemCommand) (json.RawMessage, error) {
	if command.FeatureName == "" {
		return nil, fmt.Errorf("feature name is empty")
	}
	request, err := cs.handler.BuildCommandRequest(command.ChargePointId, command.ConnectorId, command.FeatureName, command.Payload)
	if err != nil {
		return nil, err
	}
	session, err := cs.sessions.Get(command.ChargePointId)
	if err != nil {
		return nil, err
	}
	payload, err := session.Call(request)
	if err != nil {
		cs.logger.Error(fmt.Sprintf("command %s to %s failed", command.FeatureName, command.ChargePointId), err)
		return nil, err
	}
	cs.handler.OnCommandResponse(command.ChargePointId, command.FeatureName, payload)
	return payload, nil
}

// Call sends a request to a connected charge point and decodes the result
// into the feature's response type.
func (cs *CentralSystem) Call(chargePointId string, feature ocpp.Feature, request ocpp.Request) (ocpp.Response, error) {
	session, err := cs.sessions.Get(chargePointId)
	if err != nil {
		return nil, err
	}
	payload, err := session.Call(request)
	if err != nil {
		return nil, err
	}
	return ocpp.ParseRawJsonResponse(payload, feature.GetResponseType())
}

func (cs *CentralSystem) Start() {

	go func() {
		if err := cs.server.Start(); err != nil {
			cs.logger.Error("websocket server failed", err)
		}
	}()

	go func() {
		if err := cs.api.Start(); err != nil {
			cs.logger.Error("api server failed", err)
		}
	}()

	select {}
}

func NewCentralSystem(conf *config.Config) (*CentralSystem, error) {
	cs := &CentralSystem{conf: conf}
	cs.sessions = NewSessionRegistry()

	var database internal.Database
	var err error
	if conf.Mongo.Enabled {
		mongo, err := internal.NewMongoClient(conf)
		if err != nil {
			return nil, fmt.Errorf("mongodb setup failed: %s", err)
		}
		if mongo != nil {
			database = mongo
			log.Println("mongodb is configured and enabled")
		}
	} else {
		log.Println("database is disabled")
	}

	logService := internal.NewLogger(time.UTC)
	if conf.IsDebug != nil {
		logService.SetDebugMode(*conf.IsDebug)
	}
	logService.SetDatabase(database)
	cs.logger = logService
	cs.relay = NewRelay(logService)

	systemHandler := NewSystemHandler(conf)
	systemHandler.SetDatabase(database)
	systemHandler.SetLogger(logService)
	cs.handler = systemHandler

	if conf.Telegram.Enabled {
		telegramBot, err := telegram.NewBot(conf.Telegram.ApiKey)
		if err != nil {
			return nil, fmt.Errorf("telegram bot setup failed: %s", err)
		}
		telegramBot.SetDatabase(database)
		telegramBot.Start()
		systemHandler.SetEventHandler(telegramBot)
		log.Println("telegram bot is configured and enabled")
	}

	wsServer := NewServer(conf)
	wsServer.SetLogger(logService)
	wsServer.AddSupportedSubProtocol(types.SubProtocol16)
	wsServer.SetMessageHandler(cs.handleIncomingMessage)
	wsServer.SetConnectHandler(cs.onConnect)
	wsServer.SetDisconnectHandler(cs.onDisconnect)
	if conf.Relay.Enabled {
		wsServer.SetRelayHandlers(
			func(ws *WebSocket) { cs.relay.Subscribe(ws.ID(), ws) },
			func(ws *WebSocket) { cs.relay.Unsubscribe(ws.ID(), ws) },
		)
	}
	cs.server = wsServer

	cs.router = cs.buildRouter(systemHandler)

	trigger := NewTrigger(cs, logService, time.Duration(conf.Ocpp.MeterInterval)*time.Second)
	systemHandler.SetTrigger(trigger)
	trigger.Start()

	if err = systemHandler.OnStart(); err != nil {
		return nil, err
	}

	apiServer := NewServerApi(conf, logService)
	apiServer.SetRequestHandler(cs.handleApiRequest)
	cs.api = apiServer

	return cs, nil
}
