package session

import (
	"encoding/json"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/MdrnDme/clutch/pkg/logx"
	"github.com/MdrnDme/clutch/pkg/store"
)

func newTestServer(t *testing.T) (*Server, *httptest.Server, string) {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "threats.db")
	st, err := store.Open(dbPath)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	keyPath := filepath.Join(t.TempDir(), "keys.txt")
	if err := os.WriteFile(keyPath, []byte("test-key\n"), 0o600); err != nil {
		t.Fatalf("write key file: %v", err)
	}

	cfg := DefaultConfig()
	cfg.APIKeyFile = keyPath
	srv, err := New(cfg, st, logx.NewLogger("error", "test"), nil)
	if err != nil {
		t.Fatalf("new server: %v", err)
	}

	httpSrv := httptest.NewServer(srv.Router())
	t.Cleanup(httpSrv.Close)
	return srv, httpSrv, "test-key"
}

func dialWS(t *testing.T, httpSrv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(httpSrv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readJSON(t *testing.T, conn *websocket.Conn, v interface{}) {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, payload, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if err := json.Unmarshal(payload, v); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
}

func TestRegisterWithValidKeySucceeds(t *testing.T) {
	_, httpSrv, key := newTestServer(t)
	conn := dialWS(t, httpSrv)

	conn.WriteJSON(registerDeviceMsg{Type: msgRegisterDevice, DeviceID: "device-1", DeviceName: "edge-1", APIKey: key})

	var resp registrationSuccessMsg
	readJSON(t, conn, &resp)
	if resp.Type != msgRegistrationSuccess {
		t.Fatalf("expected registration_success, got %q", resp.Type)
	}
	if resp.DeviceID != "device-1" {
		t.Fatalf("expected device-1, got %q", resp.DeviceID)
	}
}

func TestRegisterWithInvalidKeyIsRejectedAndClosed(t *testing.T) {
	_, httpSrv, _ := newTestServer(t)
	conn := dialWS(t, httpSrv)

	conn.WriteJSON(registerDeviceMsg{Type: msgRegisterDevice, DeviceID: "device-1", DeviceName: "edge-1", APIKey: "wrong-key"})

	var resp errorMsg
	readJSON(t, conn, &resp)
	if resp.Type != msgError {
		t.Fatalf("expected error, got %q", resp.Type)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Fatal("expected connection to be closed after authentication failure")
	}
}

func TestCellularThreatRoundTripAndReacknowledge(t *testing.T) {
	srv, httpSrv, key := newTestServer(t)
	conn := dialWS(t, httpSrv)
	conn.WriteJSON(registerDeviceMsg{Type: msgRegisterDevice, DeviceID: "device-2", DeviceName: "edge-2", APIKey: key})
	var reg registrationSuccessMsg
	readJSON(t, conn, &reg)

	threat := cellularThreatMsg{
		Type:        msgCellularThreat,
		ThreatID:    "threat-xyz",
		ThreatType:  "IMSI_CATCHER_SUSPECTED",
		Severity:    "high",
		Timestamp:   time.Now(),
		Description: "test threat",
		Confidence:  0.95,
	}
	conn.WriteJSON(threat)

	var ack threatAcknowledgedMsg
	readJSON(t, conn, &ack)
	if ack.ThreatID != "threat-xyz" {
		t.Fatalf("expected threat-xyz acknowledged, got %q", ack.ThreatID)
	}

	// re-submit the identical threat: must yield one stored row and a
	// second threat_acknowledged.
	conn.WriteJSON(threat)
	var ack2 threatAcknowledgedMsg
	readJSON(t, conn, &ack2)
	if ack2.ThreatID != "threat-xyz" {
		t.Fatalf("expected second acknowledgement, got %q", ack2.ThreatID)
	}

	count, err := srv.store.ThreatCountSince(time.Now().Add(-time.Hour))
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected exactly one stored row after resubmission, got %d", count)
	}
}

func TestHeartbeatAndStatus(t *testing.T) {
	_, httpSrv, key := newTestServer(t)
	conn := dialWS(t, httpSrv)
	conn.WriteJSON(registerDeviceMsg{Type: msgRegisterDevice, DeviceID: "device-3", DeviceName: "edge-3", APIKey: key})
	var reg registrationSuccessMsg
	readJSON(t, conn, &reg)

	conn.WriteJSON(map[string]string{"type": "heartbeat"})
	var hbAck heartbeatAckMsg
	readJSON(t, conn, &hbAck)
	if hbAck.Type != msgHeartbeatAck {
		t.Fatalf("expected heartbeat_ack, got %q", hbAck.Type)
	}

	conn.WriteJSON(map[string]string{"type": "get_status"})
	var status statusResponseMsg
	readJSON(t, conn, &status)
	if status.ConnectedDevices != 1 {
		t.Fatalf("expected 1 connected device, got %d", status.ConnectedDevices)
	}
}

func TestUnknownMessageTypeRepliesError(t *testing.T) {
	_, httpSrv, key := newTestServer(t)
	conn := dialWS(t, httpSrv)
	conn.WriteJSON(registerDeviceMsg{Type: msgRegisterDevice, DeviceID: "device-4", DeviceName: "edge-4", APIKey: key})
	var reg registrationSuccessMsg
	readJSON(t, conn, &reg)

	conn.WriteJSON(map[string]string{"type": "does_not_exist"})
	var resp errorMsg
	readJSON(t, conn, &resp)
	if resp.Type != msgError {
		t.Fatalf("expected error reply for unknown message type, got %q", resp.Type)
	}
}
