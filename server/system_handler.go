package server

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"evlink/internal"
	"evlink/internal/config"
	"evlink/metrics/counters"
	"evlink/models"
	"evlink/ocpp"
	"evlink/ocpp/core"
	"evlink/ocpp/firmware"
	"evlink/ocpp/localauth"
	"evlink/ocpp/remotetrigger"
	"evlink/ocpp/reservation"
	"evlink/ocpp/smartcharging"
	"evlink/types"
	"evlink/utility"
)

// ChargePointState is the in-memory record a session owns for one charge
// point: the registry model with its connectors plus running transactions.
type ChargePointState struct {
	model             *models.ChargePoint
	transactions      map[int]*models.Transaction
	diagnosticsStatus firmware.DiagnosticsStatus
	firmwareStatus    firmware.FirmwareStatus
}

// transactionAllocator hands out transaction ids. Seeded from the database
// on startup so ids stay unique across restarts; the mutex makes concurrent
// StartTransaction requests collision free.
type transactionAllocator struct {
	mux  sync.Mutex
	next int
}

func (a *transactionAllocator) seed(next int) {
	a.mux.Lock()
	defer a.mux.Unlock()
	if next > a.next {
		a.next = next
	}
}

func (a *transactionAllocator) allocate() int {
	a.mux.Lock()
	defer a.mux.Unlock()
	id := a.next
	a.next++
	return id
}

type SystemHandler struct {
	conf         *config.Config
	chargePoints map[string]*ChargePointState
	allocator    transactionAllocator
	database     internal.Database
	logger       internal.LogHandler
	eventHandler internal.EventHandler
	trigger      *Trigger
	mux          sync.Mutex
}

func NewSystemHandler(conf *config.Config) *SystemHandler {
	return &SystemHandler{
		conf:         conf,
		chargePoints: make(map[string]*ChargePointState),
	}
}

func (h *SystemHandler) SetDatabase(database internal.Database) {
	h.database = database
}

func (h *SystemHandler) SetLogger(logger internal.LogHandler) {
	h.logger = logger
}

func (h *SystemHandler) SetEventHandler(eventHandler internal.EventHandler) {
	h.eventHandler = eventHandler
}

func (h *SystemHandler) SetTrigger(trigger *Trigger) {
	h.trigger = trigger
}

func (h *SystemHandler) OnStart() error {
	if h.database == nil {
		return nil
	}
	chargePoints, err := h.database.GetChargePoints()
	if err != nil {
		return fmt.Errorf("failed to load charge points from database: %s", err)
	}
	h.mux.Lock()
	for i := range chargePoints {
		cp := chargePoints[i]
		cp.Init()
		h.chargePoints[cp.Id] = &ChargePointState{
			model:        &cp,
			transactions: make(map[int]*models.Transaction),
		}
	}
	h.mux.Unlock()
	h.logger.Debug(fmt.Sprintf("loaded %d charge points from database", len(chargePoints)))

	transaction, err := h.database.GetLastTransaction()
	if err != nil {
		h.logger.Debug("no stored transactions, starting transaction ids from 0")
	}
	if transaction != nil {
		h.allocator.seed(transaction.Id + 1)
	}
	return nil
}

func (h *SystemHandler) addChargePoint(chargePointId string) *ChargePointState {
	cp := models.NewChargePoint(chargePointId)
	if h.database != nil {
		if err := h.database.AddChargePoint(cp); err != nil {
			h.logger.Error("failed to add charge point to database", err)
		}
	}
	state := &ChargePointState{
		model:        cp,
		transactions: make(map[int]*models.Transaction),
	}
	h.chargePoints[chargePointId] = state
	return state
}

// getChargePoint looks the charge point up in the registry. Unknown ids are
// registered on the fly only when the configuration allows it.
func (h *SystemHandler) getChargePoint(chargePointId string) (*ChargePointState, bool) {
	h.mux.Lock()
	defer h.mux.Unlock()
	state, ok := h.chargePoints[chargePointId]
	if !ok {
		h.logger.Warn(fmt.Sprintf("unknown charge point: %s", chargePointId))
		if h.conf.Ocpp.AcceptPoints {
			state = h.addChargePoint(chargePointId)
			ok = true
		}
	}
	return state, ok
}

func (h *SystemHandler) OnConnect(chargePointId string) {
	state, ok := h.getChargePoint(chargePointId)
	if !ok {
		return
	}
	state.model.SetOnline(true)
	h.persistChargePoint(state)
}

func (h *SystemHandler) OnDisconnect(chargePointId string) {
	state, ok := h.getChargePoint(chargePointId)
	if !ok {
		return
	}
	state.model.SetOnline(false)
	h.persistChargePoint(state)
}

func (h *SystemHandler) persistChargePoint(state *ChargePointState) {
	if h.database == nil {
		return
	}
	if err := h.database.UpdateChargePoint(state.model); err != nil {
		h.logger.Error("update charge point", err)
	}
}

func (h *SystemHandler) persistConnector(connector *models.Connector) {
	if h.database == nil {
		return
	}
	if err := h.database.UpdateConnector(connector); err != nil {
		h.logger.Error("update connector", err)
	}
}

func (h *SystemHandler) OnBootNotification(chargePointId string, request *core.BootNotificationRequest) (*core.BootNotificationResponse, error) {
	regStatus := core.RegistrationStatusAccepted
	state, ok := h.getChargePoint(chargePointId)
	if ok {
		if !state.model.IsEnabled {
			regStatus = core.RegistrationStatusRejected
		}
		state.model.Vendor = request.ChargePointVendor
		state.model.Model = request.ChargePointModel
		state.model.SerialNumber = request.ChargePointSerialNumber
		state.model.FirmwareVersion = request.FirmwareVersion
		h.persistChargePoint(state)
	} else {
		regStatus = core.RegistrationStatusRejected
	}

	h.logger.FeatureEvent(request.GetFeatureName(), chargePointId, string(regStatus))
	return core.NewBootNotificationResponse(types.NewDateTime(time.Now()), h.conf.Ocpp.HeartbeatInterval, regStatus), nil
}

func (h *SystemHandler) OnAuthorize(chargePointId string, request *core.AuthorizeRequest) (*core.AuthorizeResponse, error) {
	authStatus := types.AuthorizationStatusAccepted
	state, ok := h.getChargePoint(chargePointId)
	if !ok || !state.model.IsEnabled {
		authStatus = types.AuthorizationStatusBlocked
	}
	username := ""
	if h.database != nil && authStatus == types.AuthorizationStatusAccepted {
		authStatus = types.AuthorizationStatusBlocked
		userTag, err := h.database.GetUserTag(request.IdTag)
		if err != nil {
			h.logger.Debug(fmt.Sprintf("id tag %s not found", request.IdTag))
		}
		if userTag == nil {
			userTag = &models.UserTag{
				IdTag:          request.IdTag,
				IsEnabled:      h.conf.Ocpp.AcceptTags,
				DateRegistered: time.Now(),
			}
			if err = h.database.AddUserTag(userTag); err != nil {
				h.logger.Error("failed to add user tag to database", err)
			}
		}
		if userTag.IsEnabled {
			authStatus = types.AuthorizationStatusAccepted
		}
		username = userTag.Username
	}

	if h.eventHandler != nil {
		h.eventHandler.OnAuthorize(&internal.EventMessage{
			ChargePointId: chargePointId,
			Time:          time.Now(),
			Username:      username,
			IdTag:         request.IdTag,
			Status:        string(authStatus),
			Payload:       request,
		})
	}

	h.logger.FeatureEvent(request.GetFeatureName(), chargePointId, fmt.Sprintf("id tag: %s; authorization status: %s", request.IdTag, authStatus))
	return core.NewAuthorizationResponse(types.NewIdTagInfo(authStatus)), nil
}

func (h *SystemHandler) OnHeartbeat(chargePointId string, request *core.HeartbeatRequest) (*core.HeartbeatResponse, error) {
	_, _ = h.getChargePoint(chargePointId)
	h.logger.FeatureEvent(request.GetFeatureName(), chargePointId, time.Now().Format(time.RFC3339))
	return core.NewHeartbeatResponse(types.NewDateTime(time.Now())), nil
}

func (h *SystemHandler) OnStartTransaction(chargePointId string, request *core.StartTransactionRequest) (*core.StartTransactionResponse, error) {
	state, ok := h.getChargePoint(chargePointId)
	if !ok {
		return core.NewStartTransactionResponse(types.NewIdTagInfo(types.AuthorizationStatusBlocked), 0), nil
	}
	connector := state.model.GetConnector(request.ConnectorId)
	transactionId := h.allocator.allocate()
	if !connector.BeginTransaction(transactionId) {
		// the active transaction stays untouched, the duplicate start is refused
		h.logger.Warn(fmt.Sprintf("connector %d@%s is busy with transaction %d", request.ConnectorId, chargePointId, connector.TransactionId()))
		return core.NewStartTransactionResponse(types.NewIdTagInfo(types.AuthorizationStatusConcurrentTx), connector.TransactionId()), nil
	}

	transaction := &models.Transaction{
		Id:            transactionId,
		IdTag:         request.IdTag,
		ConnectorId:   request.ConnectorId,
		ChargePointId: chargePointId,
		MeterStart:    request.MeterStart,
		TimeStart:     request.Timestamp.Time,
		ReservationId: request.ReservationId,
	}
	transaction.Init()

	h.mux.Lock()
	state.transactions[transaction.Id] = transaction
	h.mux.Unlock()

	if h.database != nil {
		h.persistConnector(connector)
		if userTag, err := h.database.GetUserTag(transaction.IdTag); err == nil && userTag != nil {
			transaction.IdTagNote = userTag.Note
			transaction.Username = userTag.Username
		}
		if err := h.database.AddTransaction(transaction); err != nil {
			h.logger.Error("add transaction", err)
		}
	}

	if h.trigger != nil {
		h.trigger.Register <- connector
	}
	counters.ObserveTransactions(h.conf.Listen.BindIP, h.countActiveTransactions())

	if h.eventHandler != nil {
		h.eventHandler.OnTransactionStart(&internal.EventMessage{
			ChargePointId: chargePointId,
			ConnectorId:   transaction.ConnectorId,
			Time:          transaction.TimeStart,
			Username:      transaction.Username,
			IdTag:         transaction.IdTag,
			Status:        string(connector.GetStatus()),
			TransactionId: transaction.Id,
			Payload:       request,
		})
	}

	h.logger.FeatureEvent(request.GetFeatureName(), chargePointId, fmt.Sprintf("started transaction #%v for connector %v", transaction.Id, transaction.ConnectorId))
	return core.NewStartTransactionResponse(types.NewIdTagInfo(types.AuthorizationStatusAccepted), transaction.Id), nil
}

func (h *SystemHandler) OnStopTransaction(chargePointId string, request *core.StopTransactionRequest) (*core.StopTransactionResponse, error) {
	state, ok := h.getChargePoint(chargePointId)
	if !ok {
		return core.NewStopTransactionResponse(), nil
	}

	h.mux.Lock()
	transaction, found := state.transactions[request.TransactionId]
	h.mux.Unlock()
	if !found && h.database != nil {
		stored, err := h.database.GetTransaction(request.TransactionId)
		if err == nil && stored != nil {
			stored.Init()
			transaction = stored
			found = true
		}
	}
	if !found {
		// unknown id, connector state is left untouched
		h.logger.Warn(fmt.Sprintf("transaction #%v not found", request.TransactionId))
		response := core.NewStopTransactionResponse()
		response.IdTagInfo = types.NewIdTagInfo(types.AuthorizationStatusInvalid)
		return response, nil
	}

	connector := state.model.GetConnector(transaction.ConnectorId)
	if !connector.EndTransaction(request.TransactionId) {
		h.logger.Warn(fmt.Sprintf("transaction #%v is not active on connector %d", request.TransactionId, transaction.ConnectorId))
	}
	h.persistConnector(connector)

	if transaction.IsFinished {
		h.logger.Warn(fmt.Sprintf("transaction #%v is already finished", request.TransactionId))
		return core.NewStopTransactionResponse(), nil
	}

	transaction.Lock()
	transaction.IsFinished = true
	transaction.TimeStop = request.Timestamp.Time
	transaction.MeterStop = request.MeterStop
	transaction.Reason = string(request.Reason)

	// transaction data may carry the exact begin and end meter readings
	for _, data := range request.TransactionData {
		for _, value := range data.SampledValue {
			if value.Context == types.ReadingContextTransactionBegin {
				transaction.MeterStart = utility.ToInt(value.Value)
				transaction.TimeStart = data.Timestamp.Time
			}
			if value.Context == types.ReadingContextTransactionEnd {
				transaction.MeterStop = utility.ToInt(value.Value)
				transaction.TimeStop = data.Timestamp.Time
			}
		}
	}
	transaction.Unlock()

	if h.database != nil {
		if err := h.database.UpdateTransaction(transaction); err != nil {
			h.logger.Error("update transaction", err)
		}
	}

	h.mux.Lock()
	delete(state.transactions, transaction.Id)
	h.mux.Unlock()

	if h.trigger != nil {
		h.trigger.Unregister <- transaction.Id
	}
	counters.ObserveTransactions(h.conf.Listen.BindIP, h.countActiveTransactions())
	counters.CountTransaction(h.conf.Listen.BindIP, chargePointId)
	counters.CountConsumedPower(h.conf.Listen.BindIP, chargePointId, float64(transaction.Consumed()))

	if h.eventHandler != nil {
		h.eventHandler.OnTransactionStop(&internal.EventMessage{
			ChargePointId: chargePointId,
			ConnectorId:   transaction.ConnectorId,
			Time:          transaction.TimeStop,
			Username:      transaction.Username,
			IdTag:         transaction.IdTag,
			Status:        string(connector.GetStatus()),
			TransactionId: transaction.Id,
			Info:          fmt.Sprintf("consumed %v Wh", transaction.Consumed()),
			Payload:       request,
		})
	}

	h.logger.FeatureEvent(request.GetFeatureName(), chargePointId, fmt.Sprintf("stopped transaction %v %v", request.TransactionId, request.Reason))
	return core.NewStopTransactionResponse(), nil
}

func (h *SystemHandler) OnMeterValues(chargePointId string, request *core.MeterValuesRequest) (*core.MeterValuesResponse, error) {
	state, ok := h.getChargePoint(chargePointId)
	if !ok {
		return core.NewMeterValuesResponse(), nil
	}
	transactionId := 0
	if request.TransactionId != nil {
		transactionId = *request.TransactionId
	} else if request.ConnectorId > 0 {
		transactionId = state.model.GetConnector(request.ConnectorId).TransactionId()
	}
	for _, meterValue := range request.MeterValue {
		for _, sampled := range meterValue.SampledValue {
			meter := &models.TransactionMeter{
				Id:          transactionId,
				Value:       utility.ToInt(sampled.Value),
				Time:        meterValue.Timestamp.Time,
				Minute:      meterValue.Timestamp.Time.Unix() / 60,
				Unit:        string(sampled.Unit),
				Measurand:   string(sampled.Measurand),
				ConnectorId: request.ConnectorId,
			}
			if h.database != nil {
				if err := h.database.WriteTransactionMeter(meter); err != nil {
					h.logger.Error("write meter value", err)
				}
			}
		}
	}
	h.logger.FeatureEvent(request.GetFeatureName(), chargePointId, fmt.Sprintf("received meter values for connector #%v", request.ConnectorId))
	return core.NewMeterValuesResponse(), nil
}

func (h *SystemHandler) OnStatusNotification(chargePointId string, request *core.StatusNotificationRequest) (*core.StatusNotificationResponse, error) {
	state, ok := h.getChargePoint(chargePointId)
	if !ok {
		return core.NewStatusNotificationResponse(), nil
	}
	transactionId := 0
	if request.ConnectorId > 0 {
		connector := state.model.GetConnector(request.ConnectorId)
		connector.UpdateStatus(request.Status, request.ErrorCode)
		connector.Info = request.Info
		h.persistConnector(connector)
		transactionId = connector.TransactionId()
		h.logger.FeatureEvent(request.GetFeatureName(), chargePointId, fmt.Sprintf("updated connector #%v status to %v", request.ConnectorId, request.Status))
	} else {
		state.model.Status = string(request.Status)
		state.model.ErrorCode = string(request.ErrorCode)
		h.persistChargePoint(state)
		h.logger.FeatureEvent(request.GetFeatureName(), chargePointId, fmt.Sprintf("updated main controller status to %v", request.Status))
	}
	if request.ErrorCode != types.NoError && request.ErrorCode != "" {
		counters.ObserveError(h.conf.Listen.BindIP, chargePointId, string(request.ErrorCode))
	}

	if h.eventHandler != nil {
		h.eventHandler.OnStatusNotification(&internal.EventMessage{
			ChargePointId: chargePointId,
			ConnectorId:   request.ConnectorId,
			Time:          time.Now(),
			Status:        string(request.Status),
			Info:          request.Info,
			TransactionId: transactionId,
			Payload:       request,
		})
	}

	return core.NewStatusNotificationResponse(), nil
}

func (h *SystemHandler) OnDataTransfer(chargePointId string, request *core.DataTransferRequest) (*core.DataTransferResponse, error) {
	_, ok := h.getChargePoint(chargePointId)
	if !ok {
		return core.NewDataTransferResponse(core.DataTransferStatusRejected), nil
	}
	h.logger.FeatureEvent(request.GetFeatureName(), chargePointId, fmt.Sprintf("received data from vendor %v", request.VendorId))
	return core.NewDataTransferResponse(core.DataTransferStatusAccepted), nil
}

func (h *SystemHandler) OnDiagnosticsStatusNotification(chargePointId string, request *firmware.DiagnosticsStatusNotificationRequest) (*firmware.DiagnosticsStatusNotificationResponse, error) {
	state, ok := h.getChargePoint(chargePointId)
	if ok {
		state.diagnosticsStatus = request.Status
		h.logger.FeatureEvent(request.GetFeatureName(), chargePointId, fmt.Sprintf("updated diagnostics status to %v", request.Status))
	}
	return firmware.NewDiagnosticsStatusNotificationResponse(), nil
}

func (h *SystemHandler) OnFirmwareStatusNotification(chargePointId string, request *firmware.FirmwareStatusNotificationRequest) (*firmware.FirmwareStatusNotificationResponse, error) {
	state, ok := h.getChargePoint(chargePointId)
	if ok {
		state.firmwareStatus = request.Status
		h.logger.FeatureEvent(request.GetFeatureName(), chargePointId, fmt.Sprintf("updated firmware status to %v", request.Status))
	}
	return firmware.NewFirmwareStatusNotificationResponse(), nil
}

// BuildCommandRequest turns an operator command into a typed outbound
// request. Unknown feature names are refused before anything hits the wire.
func (h *SystemHandler) BuildCommandRequest(chargePointId string, connectorId int, featureName string, payload string) (ocpp.Request, error) {
	_, ok := h.getChargePoint(chargePointId)
	if !ok {
		return nil, fmt.Errorf("charge point %s not found", chargePointId)
	}
	switch featureName {
	case remotetrigger.TriggerMessageFeatureName:
		request := remotetrigger.NewTriggerMessageRequest(remotetrigger.MessageTrigger(payload))
		if connectorId > 0 {
			request.ConnectorId = &connectorId
		}
		return request, nil
	case core.RemoteStartTransactionFeatureName:
		request := core.NewRemoteStartTransactionRequest(payload)
		if connectorId > 0 {
			request.ConnectorId = &connectorId
		}
		return request, nil
	case core.RemoteStopTransactionFeatureName:
		transactionId := utility.ToInt(payload)
		return core.NewRemoteStopTransactionRequest(transactionId), nil
	case core.ResetFeatureName:
		return core.NewResetRequest(core.ResetType(payload)), nil
	case core.ChangeAvailabilityFeatureName:
		return core.NewChangeAvailabilityRequest(connectorId, types.AvailabilityType(payload)), nil
	case core.UnlockConnectorFeatureName:
		return core.NewUnlockConnectorRequest(connectorId), nil
	case core.ClearCacheFeatureName:
		return core.NewClearCacheRequest(), nil
	case core.GetConfigurationFeatureName:
		var keys []string
		if payload != "" {
			keys = strings.Split(payload, ",")
		}
		return core.NewGetConfigurationRequest(keys), nil
	case core.ChangeConfigurationFeatureName:
		key, value, found := strings.Cut(payload, "=")
		if !found {
			return nil, fmt.Errorf("expected key=value payload for %s", featureName)
		}
		return core.NewChangeConfigurationRequest(key, value), nil
	case localauth.SendLocalListFeatureName:
		return h.buildLocalListRequest()
	case localauth.GetLocalListVersionFeatureName:
		return localauth.NewGetLocalListVersionRequest(), nil
	case firmware.GetDiagnosticsFeatureName:
		return firmware.NewGetDiagnosticsRequest(payload), nil
	case firmware.UpdateFirmwareFeatureName:
		return firmware.NewUpdateFirmwareRequest(payload, types.NewDateTime(time.Now())), nil
	case smartcharging.GetCompositeScheduleFeatureName:
		return smartcharging.NewGetCompositeScheduleRequest(connectorId, utility.ToInt(payload)), nil
	case smartcharging.ClearChargingProfileFeatureName:
		return smartcharging.NewClearChargingProfileRequest(), nil
	case reservation.CancelReservationFeatureName:
		return reservation.NewCancelReservationRequest(utility.ToInt(payload)), nil
	default:
		return nil, fmt.Errorf("feature not supported: %s", featureName)
	}
}

// OnCommandResponse applies side effects of accepted operator commands.
// A hard reset drops every active transaction; the charge point reboots
// and will not stop them itself.
func (h *SystemHandler) OnCommandResponse(chargePointId string, featureName string, payload json.RawMessage) {
	if featureName != core.ResetFeatureName {
		return
	}
	var response core.ResetResponse
	if err := json.Unmarshal(payload, &response); err != nil {
		return
	}
	if response.Status != core.ResetStatusAccepted {
		return
	}
	state, ok := h.getChargePoint(chargePointId)
	if !ok {
		return
	}
	state.model.ReleaseAll()
	h.logger.FeatureEvent(featureName, chargePointId, "released all connectors after accepted reset")
}

// buildLocalListRequest assembles a full local list update from the
// enabled tags in the database.
func (h *SystemHandler) buildLocalListRequest() (ocpp.Request, error) {
	request := localauth.NewSendLocalListRequest(int(time.Now().Unix()), localauth.UpdateTypeFull)
	if h.database == nil {
		return request, nil
	}
	userTags, err := h.database.GetActiveUserTags()
	if err != nil {
		return nil, fmt.Errorf("load user tags: %s", err)
	}
	tags := make([]localauth.AuthorizationData, 0, len(userTags))
	for _, tag := range userTags {
		tags = append(tags, localauth.AuthorizationData{
			IdTag:     tag.IdTag,
			IdTagInfo: types.NewIdTagInfo(types.AuthorizationStatusAccepted),
		})
	}
	request.LocalAuthorizationList = tags
	return request, nil
}

func (h *SystemHandler) countActiveTransactions() int {
	h.mux.Lock()
	defer h.mux.Unlock()
	count := 0
	for _, state := range h.chargePoints {
		count += len(state.transactions)
	}
	return count
}
