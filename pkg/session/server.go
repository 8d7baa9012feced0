package session

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/MdrnDme/clutch/pkg/cellular"
	"github.com/MdrnDme/clutch/pkg/correlate"
	"github.com/MdrnDme/clutch/pkg/logx"
	"github.com/MdrnDme/clutch/pkg/metrics"
	"github.com/MdrnDme/clutch/pkg/store"
)

// Config configures the session server.
type Config struct {
	Host               string `json:"host"`
	Port               int    `json:"port"`
	TLSEnabled         bool   `json:"tls_enabled"`
	TLSCertFile        string `json:"tls_cert_file"`
	TLSKeyFile         string `json:"tls_key_file"`
	APIKeyFile         string `json:"api_key_file"`
	CorrelationEnabled bool   `json:"correlation_enabled"`
	MonitoringEnabled  bool   `json:"monitoring_enabled"`
}

// DefaultConfig returns the server's zero-config defaults.
func DefaultConfig() Config {
	return Config{
		Host:               "0.0.0.0",
		Port:               8443,
		APIKeyFile:         "clutch-server-apikeys.txt",
		CorrelationEnabled: true,
		MonitoringEnabled:  true,
	}
}

// Server hosts the websocket session layer and the statistics HTTP
// endpoint (C11).
type Server struct {
	cfg       Config
	registry  *Registry
	apiKeys   *APIKeyStore
	store     *store.Store
	correlator *correlate.Correlator
	logger    *logx.Logger
	upgrader  websocket.Upgrader
	startTime time.Time
	metrics   *metrics.Registry
}

// New wires the session registry, API key store and correlator
// together. The Server implements correlate.Fanout and is passed to
// correlate.New as its own fan-out target. reg may be nil, in which
// case metrics are skipped.
func New(cfg Config, st *store.Store, logger *logx.Logger, reg *metrics.Registry) (*Server, error) {
	keys, err := LoadOrCreateAPIKeys(cfg.APIKeyFile)
	if err != nil {
		return nil, err
	}
	s := &Server{
		cfg:      cfg,
		registry: NewRegistry(),
		apiKeys:  keys,
		store:    st,
		logger:   logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		startTime: time.Now(),
		metrics:   reg,
	}
	s.correlator = correlate.New(s, logger)
	go s.reapStaleLoop()
	return s, nil
}

// Router returns the gorilla/mux router serving /ws, /stats, /export
// and, when a metrics registry is configured, /metrics.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/ws", s.handleWebSocket)
	r.HandleFunc("/stats", s.handleStats).Methods("GET")
	r.HandleFunc("/export", s.handleExport).Methods("GET")
	if s.metrics != nil {
		r.Handle("/metrics", s.metrics.Handler()).Methods("GET")
	}
	return r
}

// ListenAndServe starts the HTTP(S) server on cfg.Host:cfg.Port.
func (s *Server) ListenAndServe() error {
	addr := s.cfg.Host + ":" + strconv.Itoa(s.cfg.Port)
	handler := s.Router()
	if s.cfg.TLSEnabled {
		return http.ListenAndServeTLS(addr, s.cfg.TLSCertFile, s.cfg.TLSKeyFile, handler)
	}
	return http.ListenAndServe(addr, handler)
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err.Error())
		return
	}
	sess := newSession(conn, s.logger)
	s.serveSession(sess)
}

func (s *Server) serveSession(sess *Session) {
	defer func() {
		if id := sess.DeviceID(); id != "" {
			s.registry.Remove(id)
			if s.metrics != nil {
				s.metrics.ActiveSessions.Set(float64(s.registry.Count()))
			}
		}
		sess.close()
	}()

	for {
		_, payload, err := sess.conn.ReadMessage()
		if err != nil {
			return
		}
		if !sess.limiter.Allow() {
			s.sendError(sess, "Rate limit exceeded")
			continue
		}
		s.dispatch(sess, payload)
		if sess.State() == StateClosed {
			return
		}
	}
}

func (s *Server) dispatch(sess *Session, payload []byte) {
	var env envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		s.sendError(sess, "Malformed message")
		return
	}

	switch env.Type {
	case msgRegisterDevice:
		s.handleRegister(sess, payload)
	case msgCellularThreat:
		s.handleCellularThreat(sess, payload)
	case msgHeartbeat:
		s.handleHeartbeat(sess)
	case msgGetStatus:
		s.handleGetStatus(sess)
	default:
		s.sendError(sess, "Unknown message type")
	}
}

func (s *Server) handleRegister(sess *Session, payload []byte) {
	var msg registerDeviceMsg
	if err := json.Unmarshal(payload, &msg); err != nil || msg.DeviceID == "" {
		s.sendError(sess, "Authentication failed")
		sess.close()
		return
	}
	if !s.apiKeys.Valid(msg.APIKey) {
		s.sendError(sess, "Authentication failed")
		sess.close()
		return
	}

	sess.register(msg.DeviceID, msg.DeviceName)
	sess.setState(StateActive)
	s.registry.Register(sess)
	if s.metrics != nil {
		s.metrics.ActiveSessions.Set(float64(s.registry.Count()))
	}

	if err := s.store.UpsertDeviceSession(msg.DeviceID, msg.DeviceName, time.Now()); err != nil {
		s.logger.Error("upsert device session failed", "error", err.Error(), "device_id", msg.DeviceID)
	}
	s.store.RecordEvent("device_connected", msg.DeviceID, map[string]interface{}{"device_name": msg.DeviceName}, time.Now())

	monitoringStatus := "active"
	if !s.cfg.MonitoringEnabled {
		monitoringStatus = "disabled"
	}
	sess.send(registrationSuccessMsg{
		Type:             msgRegistrationSuccess,
		DeviceID:         msg.DeviceID,
		ServerTime:       time.Now(),
		MonitoringStatus: monitoringStatus,
	})
}

func (s *Server) handleCellularThreat(sess *Session, payload []byte) {
	if sess.State() != StateActive {
		s.sendError(sess, "Not registered")
		return
	}
	var msg cellularThreatMsg
	if err := json.Unmarshal(payload, &msg); err != nil || msg.ThreatID == "" {
		s.sendError(sess, "Malformed cellular_threat")
		return
	}

	threat := cellular.Threat{
		ThreatID:    msg.ThreatID,
		ThreatType:  cellular.ThreatType(msg.ThreatType),
		Severity:    cellular.Severity(msg.Severity),
		Timestamp:   msg.Timestamp,
		Description: msg.Description,
		Confidence:  msg.Confidence,
		Evidence:    msg.CellularData,
	}
	if msg.Location != nil {
		threat.Location = &cellular.Location{Latitude: msg.Location.Latitude, Longitude: msg.Location.Longitude}
	}

	deviceID := sess.DeviceID()
	writeStart := time.Now()
	if err := s.store.SaveThreat(deviceID, threat); err != nil {
		s.logger.Error("save threat failed", "error", err.Error(), "threat_id", threat.ThreatID)
	} else {
		s.store.IncrementThreatCount(deviceID)
	}
	if s.metrics != nil {
		s.metrics.StorageWriteLatency.Observe(time.Since(writeStart).Seconds())
	}

	sess.send(threatAcknowledgedMsg{
		Type:        msgThreatAcknowledged,
		ThreatID:    threat.ThreatID,
		ProcessedAt: time.Now(),
	})

	if s.cfg.CorrelationEnabled {
		s.correlator.Ingest(deviceID, threat)
	}
}

func (s *Server) handleHeartbeat(sess *Session) {
	sess.touch()
	if id := sess.DeviceID(); id != "" {
		s.store.TouchDeviceSession(id, time.Now())
	}
	sess.send(heartbeatAckMsg{Type: msgHeartbeatAck, Timestamp: time.Now()})
}

func (s *Server) handleGetStatus(sess *Session) {
	connected := s.registry.Count()
	threatsToday, err := s.store.ThreatCountSince(time.Now().Add(-24 * time.Hour))
	if err != nil {
		threatsToday = 0
	}
	sess.send(statusResponseMsg{
		Type:              msgStatusResponse,
		ConnectedDevices:  connected,
		TotalThreatsToday: threatsToday,
		ServerUptime:      time.Since(s.startTime).Seconds(),
		MonitoringActive:  s.cfg.MonitoringEnabled,
	})
}

func (s *Server) sendError(sess *Session, message string) {
	sess.send(errorMsg{Type: msgError, Message: message, Timestamp: time.Now()})
}

func (s *Server) reapStaleLoop() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	for range ticker.C {
		for _, id := range s.registry.Stale(time.Now()) {
			s.registry.Remove(id)
			s.logger.Info("reaped stale session", "device_id", id)
		}
	}
}
