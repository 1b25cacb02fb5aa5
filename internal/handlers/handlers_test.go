package handlers

import (
	"bytes"
	"compress/zlib"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"ocsbridge/internal/db"
	"ocsbridge/internal/events"
	"ocsbridge/internal/middleware"
	"ocsbridge/internal/models"
)

const prologXML = `<?xml version="1.0" encoding="UTF-8" ?>
<REQUEST>
  <DEVICEID>WS-042-2026-01-01-00-00-00</DEVICEID>
  <QUERY>PROLOG</QUERY>
</REQUEST>`

func inventoryXML(software ...string) string {
	var sw strings.Builder
	for _, name := range software {
		sw.WriteString("<SOFTWARES><NAME>" + name + "</NAME><VERSION>1.0</VERSION><INSTALLDATE>0000-00-00</INSTALLDATE></SOFTWARES>")
	}
	return `<?xml version="1.0" encoding="UTF-8" ?>
<REQUEST>
  <CONTENT>
    <HARDWARE>
      <UUID>4C4C4544-0042</UUID>
      <NAME>WS-042</NAME>
      <OSNAME>Microsoft Windows 11 Pro</OSNAME>
      <PROCESSORN>N/A</PROCESSORN>
      <MEMORY>16384</MEMORY>
    </HARDWARE>
    <STORAGES><NAME>Disk0</NAME><DISKSIZE>1048576</DISKSIZE></STORAGES>
    <NETWORKS><DESCRIPTION>Ethernet</DESCRIPTION><IPADDRESS>10.0.4.42</IPADDRESS></NETWORKS>
    <NETWORKS><DESCRIPTION>Ethernet</DESCRIPTION><IPADDRESS>10.0.4.43</IPADDRESS></NETWORKS>
    ` + sw.String() + `
  </CONTENT>
  <QUERY>INVENTORY</QUERY>
</REQUEST>`
}

// countingStore records how many submissions reached storage.
type countingStore struct {
	*db.Store
	saves int
}

func (c *countingStore) SaveInventory(ctx context.Context, rec *models.InventoryRecord, source string) (*db.SaveResult, error) {
	c.saves++
	return c.Store.SaveInventory(ctx, rec, source)
}

// failingStore fails every call.
type failingStore struct{}

var errDown = errors.New("database is down")

func (failingStore) SaveInventory(context.Context, *models.InventoryRecord, string) (*db.SaveResult, error) {
	return nil, &db.StorageError{Op: "begin", Err: errDown}
}
func (failingStore) ListDevices(context.Context, int, int) ([]models.Device, error) {
	return nil, errDown
}
func (failingStore) GetDeviceDetail(context.Context, string) (*models.DeviceDetail, error) {
	return nil, errDown
}
func (failingStore) ListSubmissions(context.Context, string, int) ([]models.RawSubmission, error) {
	return nil, errDown
}
func (failingStore) Ping(context.Context) error { return errDown }

type testServer struct {
	mux    *http.ServeMux
	store  *countingStore
	events []events.Event
}

func setupTestServer(t *testing.T) *testServer {
	t.Helper()
	s, err := db.OpenSQLite(":memory:", 1)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	ts := &testServer{mux: http.NewServeMux(), store: &countingStore{Store: s}}
	bus := events.NewBus()
	bus.Subscribe(func(e events.Event) { ts.events = append(ts.events, e) })

	RegisterRoutes(ts.mux,
		NewInventoryHandler(ts.store, bus, 1<<20),
		NewSystemHandler(ts.store, "test"))
	return ts
}

func failingMux() *http.ServeMux {
	mux := http.NewServeMux()
	RegisterRoutes(mux, NewInventoryHandler(failingStore{}, events.NewBus(), 0), NewSystemHandler(failingStore{}, "test"))
	return mux
}

func (ts *testServer) do(method, path, contentType string, body []byte) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	ts.mux.ServeHTTP(rec, req)
	return rec
}

func (ts *testServer) detail(t *testing.T, deviceID string) models.DeviceDetail {
	t.Helper()
	rec := ts.do(http.MethodGet, "/api/devices/"+deviceID, "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("GET device status = %d, body %s", rec.Code, rec.Body.String())
	}
	var d models.DeviceDetail
	if err := json.Unmarshal(rec.Body.Bytes(), &d); err != nil {
		t.Fatalf("decode detail: %v", err)
	}
	return d
}

// ─── Legacy OCS endpoint ─────────────────────────────────────────────────────

func TestOCSHandshakeStoresNothing(t *testing.T) {
	ts := setupTestServer(t)

	rec := ts.do(http.MethodPost, "/ocsinventory", "application/xml", []byte(prologXML))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "<RESPONSE>SEND</RESPONSE>") || !strings.Contains(body, "<PROLOG_FREQ>24</PROLOG_FREQ>") {
		t.Errorf("handshake reply = %s", body)
	}
	if ts.store.saves != 0 {
		t.Errorf("saves = %d, want 0", ts.store.saves)
	}
	devices, _ := ts.store.ListDevices(context.Background(), 10, 0)
	if len(devices) != 0 {
		t.Errorf("devices = %d, want 0", len(devices))
	}
	if len(ts.events) != 1 || ts.events[0].Type != events.HandshakeReceived {
		t.Errorf("events = %+v, want one handshake_received", ts.events)
	}
}

func TestOCSInventoryAccepted(t *testing.T) {
	ts := setupTestServer(t)

	rec := ts.do(http.MethodPost, "/ocsinventory", "application/xml", []byte(inventoryXML("Firefox", "7-Zip")))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "<RESPONSE>NO_ACCOUNT_UPDATE</RESPONSE>") {
		t.Errorf("reply = %s", rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "application/xml") {
		t.Errorf("content type = %q", ct)
	}

	d := ts.detail(t, "4C4C4544-0042")
	if d.Device.CPUCores != 0 {
		t.Errorf("cpu_cores = %d, want 0 for N/A", d.Device.CPUCores)
	}
	if len(d.Storage) != 1 || d.Storage[0].CapacityGB != 1024 {
		t.Errorf("storage = %+v, want one disk of 1024 GB", d.Storage)
	}
	if len(d.NetworkInterfaces) != 1 || d.NetworkInterfaces[0].IPAddress != "10.0.4.42" {
		t.Errorf("interfaces = %+v, want first Ethernet only", d.NetworkInterfaces)
	}
	if len(d.Software) != 2 || d.Software[0].InstallDate != nil {
		t.Errorf("software = %+v, want two entries with null install_date", d.Software)
	}

	var types []events.EventType
	for _, e := range ts.events {
		types = append(types, e.Type)
	}
	if len(types) != 2 || types[0] != events.DeviceRegistered || types[1] != events.InventoryReceived {
		t.Errorf("events = %v, want [device_registered inventory_received]", types)
	}
}

func TestOCSCompressedInventory(t *testing.T) {
	ts := setupTestServer(t)

	var buf bytes.Buffer
	zw := zlib.NewWriter(&buf)
	zw.Write([]byte(inventoryXML("Firefox")))
	zw.Close()

	rec := ts.do(http.MethodPost, "/ocsinventory", "application/x-compress", buf.Bytes())
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if ts.store.saves != 1 {
		t.Errorf("saves = %d, want 1", ts.store.saves)
	}
}

func TestOCSResubmissionIsIdempotent(t *testing.T) {
	ts := setupTestServer(t)
	body := []byte(inventoryXML("Firefox", "7-Zip"))

	for range 2 {
		if rec := ts.do(http.MethodPost, "/ocsinventory", "application/xml", body); rec.Code != http.StatusOK {
			t.Fatalf("status = %d", rec.Code)
		}
	}

	devices, _ := ts.store.ListDevices(context.Background(), 10, 0)
	if len(devices) != 1 {
		t.Errorf("devices = %d, want 1", len(devices))
	}
	if d := ts.detail(t, "4C4C4544-0042"); len(d.Software) != 2 {
		t.Errorf("software = %d, want 2", len(d.Software))
	}
	subs, _ := ts.store.ListSubmissions(context.Background(), "4C4C4544-0042", 10)
	if len(subs) != 2 {
		t.Errorf("raw log entries = %d, want 2", len(subs))
	}

	registered := 0
	for _, e := range ts.events {
		if e.Type == events.DeviceRegistered {
			registered++
		}
	}
	if registered != 1 {
		t.Errorf("device_registered events = %d, want 1", registered)
	}
}

func TestOCSReplaceOnSubmit(t *testing.T) {
	ts := setupTestServer(t)

	ts.do(http.MethodPost, "/ocsinventory", "application/xml", []byte(inventoryXML("Firefox", "7-Zip")))
	ts.do(http.MethodPost, "/ocsinventory", "application/xml", []byte(inventoryXML("Firefox")))

	d := ts.detail(t, "4C4C4544-0042")
	if len(d.Software) != 1 || d.Software[0].Name != "Firefox" {
		t.Errorf("software = %+v, want only Firefox", d.Software)
	}
}

func TestOCSMalformedXMLIs400(t *testing.T) {
	ts := setupTestServer(t)

	rec := ts.do(http.MethodPost, "/ocsinventory", "application/xml", []byte("<REQUEST><HARDWARE><NAME>x</HARDWARE>"))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "<RESPONSE>ERROR</RESPONSE>") {
		t.Errorf("body = %s, want XML error document", rec.Body.String())
	}
	if ts.store.saves != 0 {
		t.Errorf("saves = %d, want 0", ts.store.saves)
	}
}

func TestOCSStorageFailureIs500(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/ocsinventory", strings.NewReader(inventoryXML("Firefox")))
	failingMux().ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "<RESPONSE>ERROR</RESPONSE>") {
		t.Errorf("body = %s", rec.Body.String())
	}
}

func TestOCSBodyTooLarge(t *testing.T) {
	ts := setupTestServer(t)
	big := bytes.Repeat([]byte("a"), 2<<20)

	rec := ts.do(http.MethodPost, "/ocsinventory", "application/xml", big)
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("status = %d, want 413", rec.Code)
	}
}

// ─── JSON endpoint ───────────────────────────────────────────────────────────

const jsonInventory = `{
  "device_id": "json-1",
  "hostname": "lab-pc",
  "os_name": "Ubuntu",
  "cpu_cores": 4,
  "ram_mb": 8192,
  "software": [{"name": "vim", "version": "9.0", "publisher": "", "install_date": null}],
  "storage": [{"disk_name": "sda", "disk_type": "HDD", "capacity_gb": 500, "serial_number": "X"}],
  "network_interfaces": [{"interface_name": "eth0", "mac_address": "aa:bb", "ip_address": "10.1.1.1",
                          "netmask": "", "gateway": "", "dhcp_enabled": true}],
  "logged_users": [{"username": "root", "domain": "", "last_login": "2025-06-01T10:00:00Z"}],
  "agent_version": "2.10"
}`

func TestJSONIngestAccepted(t *testing.T) {
	ts := setupTestServer(t)

	rec := ts.do(http.MethodPost, "/api/ingest", "application/json", []byte(jsonInventory))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	var ack map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &ack); err != nil {
		t.Fatalf("decode ack: %v", err)
	}
	if ack["status"] != "success" || ack["device_id"] != "json-1" {
		t.Errorf("ack = %v", ack)
	}
	if ack["message"] != "Inventory data received and stored" {
		t.Errorf("message = %q", ack["message"])
	}
	if ack["timestamp"] == "" || ack["submission_id"] == "" {
		t.Errorf("ack missing timestamp or submission_id: %v", ack)
	}

	d := ts.detail(t, "json-1")
	if len(d.NetworkInterfaces) != 1 || d.NetworkInterfaces[0].Status != "unknown" {
		t.Errorf("interfaces = %+v, want status defaulted to unknown", d.NetworkInterfaces)
	}
	if len(d.LoggedUsers) != 1 || d.LoggedUsers[0].LastLogin == nil {
		t.Errorf("logged_users = %+v, want last_login kept", d.LoggedUsers)
	}
}

func TestJSONIngestNullsPlaceholderInstallDates(t *testing.T) {
	ts := setupTestServer(t)

	body := `{"device_id": "J1", "hostname": "h", "software": [
		{"name": "A", "version": "1", "install_date": "0000-00-00"},
		{"name": "B", "install_date": "N/A"}]}`
	if rec := ts.do(http.MethodPost, "/api/ingest", "application/json", []byte(body)); rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	d := ts.detail(t, "J1")
	if len(d.Software) != 2 {
		t.Fatalf("software = %+v, want 2 entries", d.Software)
	}
	for _, sw := range d.Software {
		if sw.InstallDate != nil {
			t.Errorf("software %s install_date = %q, want null", sw.Name, *sw.InstallDate)
		}
	}
}

func TestJSONIngestValidation(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"missing device_id", `{"hostname": "h"}`},
		{"missing hostname", `{"device_id": "d"}`},
		{"wrong type", `{"device_id": "d", "hostname": "h", "cpu_cores": "four"}`},
		{"negative ram", `{"device_id": "d", "hostname": "h", "ram_mb": -1}`},
		{"bad child type", `{"device_id": "d", "hostname": "h", "software": [{"name": 5}]}`},
		{"bad datetime", `{"device_id": "d", "hostname": "h", "logged_users": [{"username": "u", "last_login": "yesterday"}]}`},
		{"not an object", `[1, 2, 3]`},
		{"syntax", `{"device_id": `},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := setupTestServer(t)
			rec := ts.do(http.MethodPost, "/api/ingest", "application/json", []byte(tt.body))
			if rec.Code != http.StatusUnprocessableEntity {
				t.Errorf("status = %d, want 422 (body %s)", rec.Code, rec.Body.String())
			}
			if ts.store.saves != 0 {
				t.Errorf("saves = %d, want 0", ts.store.saves)
			}
		})
	}
}

func TestDecodeInventoryJSONFoldsUnknownFields(t *testing.T) {
	rec, err := DecodeInventoryJSON([]byte(`{"device_id": "d", "hostname": "h",
		"agent_version": "2.10", "metadata": {"site": "north", "agent_version": "kept"}}`))
	if err != nil {
		t.Fatalf("DecodeInventoryJSON: %v", err)
	}
	if rec.Metadata["site"] != "north" {
		t.Errorf("metadata[site] = %v, want north", rec.Metadata["site"])
	}
	if rec.Metadata["agent_version"] != "kept" {
		t.Errorf("metadata[agent_version] = %v, explicit metadata should win", rec.Metadata["agent_version"])
	}
	if rec.Software == nil || rec.LoggedUsers == nil {
		t.Error("collections should default to empty slices")
	}
}

func TestJSONStorageFailureIs500(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/ingest", strings.NewReader(jsonInventory))
	failingMux().ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	var body map[string]string
	json.Unmarshal(rec.Body.Bytes(), &body)
	if body["error"] == "" {
		t.Errorf("body = %s, want error object", rec.Body.String())
	}
}

// ─── Reads ───────────────────────────────────────────────────────────────────

func TestGetUnknownDeviceIs404(t *testing.T) {
	ts := setupTestServer(t)
	for _, path := range []string{"/api/devices/nope", "/api/devices/nope/history"} {
		if rec := ts.do(http.MethodGet, path, "", nil); rec.Code != http.StatusNotFound {
			t.Errorf("GET %s status = %d, want 404", path, rec.Code)
		}
	}
}

func TestListDevicesPagination(t *testing.T) {
	ts := setupTestServer(t)
	for _, id := range []string{"a", "b", "c"} {
		body := strings.Replace(`{"device_id": "ID", "hostname": "h"}`, "ID", id, 1)
		if rec := ts.do(http.MethodPost, "/api/ingest", "application/json", []byte(body)); rec.Code != http.StatusOK {
			t.Fatalf("ingest %s: %d", id, rec.Code)
		}
	}

	tests := []struct {
		query string
		want  int
	}{
		{"", 3},
		{"?limit=2", 2},
		{"?limit=2&offset=2", 1},
		{"?limit=0", 3},
		{"?limit=abc&offset=-4", 3},
		{"?offset=10", 0},
	}
	for _, tt := range tests {
		rec := ts.do(http.MethodGet, "/api/devices"+tt.query, "", nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("GET %s status = %d", tt.query, rec.Code)
		}
		var devices []models.Device
		if err := json.Unmarshal(rec.Body.Bytes(), &devices); err != nil {
			t.Fatalf("decode %s: %v", tt.query, err)
		}
		if len(devices) != tt.want {
			t.Errorf("GET /api/devices%s returned %d, want %d", tt.query, len(devices), tt.want)
		}
	}

	rec := ts.do(http.MethodGet, "/api/devices", "", nil)
	var devices []models.Device
	json.Unmarshal(rec.Body.Bytes(), &devices)
	if devices[0].DeviceID != "c" {
		t.Errorf("first device = %q, want most recently seen %q", devices[0].DeviceID, "c")
	}
}

func TestDeviceHistory(t *testing.T) {
	ts := setupTestServer(t)
	ts.do(http.MethodPost, "/api/ingest", "application/json", []byte(jsonInventory))
	ts.do(http.MethodPost, "/api/ingest", "application/json", []byte(jsonInventory))

	rec := ts.do(http.MethodGet, "/api/devices/json-1/history?limit=1", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body struct {
		DeviceID    string                 `json:"device_id"`
		Submissions []models.RawSubmission `json:"submissions"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Submissions) != 1 || body.Submissions[0].Source != db.SourceJSON {
		t.Errorf("submissions = %+v, want one json entry", body.Submissions)
	}
}

// ─── System ──────────────────────────────────────────────────────────────────

func TestHealth(t *testing.T) {
	ts := setupTestServer(t)
	rec := ts.do(http.MethodGet, "/health", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body map[string]string
	json.Unmarshal(rec.Body.Bytes(), &body)
	if body["status"] != "healthy" || body["database"] != "connected" {
		t.Errorf("body = %v", body)
	}

	rec = httptest.NewRecorder()
	failingMux().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Database unavailable") {
		t.Errorf("body = %s", rec.Body.String())
	}
}

func TestRootAndUnknownPaths(t *testing.T) {
	ts := setupTestServer(t)
	if rec := ts.do(http.MethodGet, "/", "", nil); rec.Code != http.StatusOK {
		t.Errorf("GET / status = %d, want 200", rec.Code)
	}
	if rec := ts.do(http.MethodGet, "/nope", "", nil); rec.Code != http.StatusNotFound {
		t.Errorf("GET /nope status = %d, want 404", rec.Code)
	}
	if rec := ts.do(http.MethodGet, "/ocsinventory", "", nil); rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("GET /ocsinventory status = %d, want 405", rec.Code)
	}
}

func TestRateLimitedRepliesMatchEndpoint(t *testing.T) {
	ts := setupTestServer(t)
	rl := middleware.NewRateLimiter(1, time.Minute)
	rl.OnReject(RejectRateLimited)
	h := rl.Limit(ts.mux)

	post := func(path, contentType, body string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
		req.Header.Set("Content-Type", contentType)
		req.RemoteAddr = "192.0.2.10:4000"
		h.ServeHTTP(rec, req)
		return rec
	}

	if rec := post("/ocsinventory", "application/xml", prologXML); rec.Code != http.StatusOK {
		t.Fatalf("first request status = %d", rec.Code)
	}

	rec := post("/ocsinventory", "application/xml", prologXML)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "application/xml") {
		t.Errorf("content type = %q, want XML", ct)
	}
	if !strings.Contains(rec.Body.String(), "<RESPONSE>ERROR</RESPONSE>") {
		t.Errorf("body = %s, want an error reply", rec.Body.String())
	}

	rec = post("/api/ingest", "application/json", `{"device_id": "d", "hostname": "h"}`)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", rec.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil || body["error"] == "" {
		t.Errorf("body = %s, want JSON error", rec.Body.String())
	}
}
