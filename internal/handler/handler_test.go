package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/netip"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"fabricnms/internal/cache"
	"fabricnms/internal/domain"
	"fabricnms/internal/repository/sqlite"
	"fabricnms/internal/service"
	"fabricnms/internal/settings"
)

const testGroups = `
groups:
  - group:
      name: sthlm
      regex: 'sth-'
`

const testVXLANs = `
vxlans:
  office:
    vni: 100100
    vlan_id: 100
    vlan_name: office
    groups: [sthlm]
  guest:
    vni: 100200
    vlan_id: 200
    vlan_name: guest
`

type testServer struct {
	root string
	repo *sqlite.Repository
	srv  *httptest.Server
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	ctx := context.Background()
	logger := zaptest.NewLogger(t)

	root := t.TempDir()
	require.NoError(t, settings.InitRepository(root))
	writeLayer(t, root, "global/groups.yml", testGroups)
	writeLayer(t, root, "global/vxlans.yml", testVXLANs)

	repo, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	for _, d := range []domain.Device{
		{Hostname: "sth-dist-01", Type: domain.DeviceTypeDist, State: domain.DeviceStateManaged},
		{Hostname: "sth-dist-02", Type: domain.DeviceTypeDist, State: domain.DeviceStateManaged},
		{Hostname: "sth-acc-01", Type: domain.DeviceTypeAccess, State: domain.DeviceStateManaged,
			ManagementIP: netip.MustParseAddr("10.0.6.5")},
	} {
		require.NoError(t, repo.UpsertDevice(ctx, &d))
	}
	vlan := 600
	md, err := domain.NewMgmtdomain("sth-dist-01", "sth-dist-02", "10.0.6.1/24", &vlan)
	require.NoError(t, err)
	require.NoError(t, repo.CreateMgmtdomain(ctx, md))

	c := cache.NewMemory(0)
	resolver, err := settings.NewResolver(root, logger, settings.WithCache(c), settings.WithTopology(repo))
	require.NoError(t, err)
	checker := settings.NewCollisionChecker(resolver, repo, logger, 4)

	bus := service.NewEventBus()
	fleet := service.NewFleetService(resolver, checker, repo, c, bus, logger)
	onboarding := service.NewOnboardingService(repo, nil, bus, logger)

	mux := http.NewServeMux()
	New(fleet, onboarding, true, logger).Register(mux)
	srv := httptest.NewServer(Chain(mux, Recover(logger), Logger(logger)))
	t.Cleanup(srv.Close)

	return &testServer{root: root, repo: repo, srv: srv}
}

func writeLayer(t *testing.T, root, rel, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(root, rel), []byte(content), 0o644))
}

func (ts *testServer) do(t *testing.T, method, path string, body interface{}) (int, map[string]interface{}) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, ts.srv.URL+path, reader)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]interface{}
	if resp.StatusCode != http.StatusNoContent {
		var raw interface{}
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&raw))
		switch v := raw.(type) {
		case map[string]interface{}:
			out = v
		case []interface{}:
			out = map[string]interface{}{"items": v}
		}
	}
	return resp.StatusCode, out
}

func TestGetSettings(t *testing.T) {
	ts := newTestServer(t)

	t.Run("registered device", func(t *testing.T) {
		status, body := ts.do(t, http.MethodGet, "/api/settings?hostname=sth-acc-01", nil)
		require.Equal(t, http.StatusOK, status)
		vxlans := body["settings"].(map[string]interface{})["vxlans"].(map[string]interface{})
		assert.Contains(t, vxlans, "office")
		assert.Contains(t, vxlans, "guest")

		origins := body["settings_origin"].(map[string]interface{})
		assert.Equal(t, "default", origins["ntp_servers"])
		office := origins["vxlans"].(map[string]interface{})["office"].(map[string]interface{})
		assert.Equal(t, settings.OriginGlobalVXLANs, office["vni"])
	})

	t.Run("explicit tier for unregistered hostname", func(t *testing.T) {
		status, body := ts.do(t, http.MethodGet, "/api/settings?hostname=gbg-acc-01&device_type=access", nil)
		require.Equal(t, http.StatusOK, status)
		vxlans := body["settings"].(map[string]interface{})["vxlans"].(map[string]interface{})
		assert.NotContains(t, vxlans, "office")
	})

	tests := []struct {
		name   string
		query  string
		status int
	}{
		{"unknown device", "?hostname=sth-acc-99", http.StatusNotFound},
		{"invalid device type", "?device_type=spine", http.StatusBadRequest},
		{"unknown tier", "?hostname=sth-acc-01&device_type=unknown", http.StatusBadRequest},
		{"invalid hostname", "?hostname=bad_host&device_type=access", http.StatusBadRequest},
		{"fleet-wide", "", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, _ := ts.do(t, http.MethodGet, "/api/settings"+tt.query, nil)
			assert.Equal(t, tt.status, status)
		})
	}

	t.Run("invalid settings", func(t *testing.T) {
		ts := newTestServer(t)
		writeLayer(t, ts.root, "global/base_system.yml", "ntp_servers: not-a-list\n")
		status, body := ts.do(t, http.MethodGet, "/api/settings?hostname=sth-acc-01", nil)
		assert.Equal(t, http.StatusUnprocessableEntity, status)
		assert.Contains(t, body["details"], "ntp_servers")
	})
}

func TestGetGroups(t *testing.T) {
	ts := newTestServer(t)
	status, body := ts.do(t, http.MethodGet, "/api/settings/groups?hostname=sth-acc-01", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, []interface{}{"sthlm"}, body["groups"])

	status, body = ts.do(t, http.MethodGet, "/api/settings/groups?hostname=gbg-acc-01", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Empty(t, body["groups"])
}

func TestCheckCollisions(t *testing.T) {
	ts := newTestServer(t)

	status, body := ts.do(t, http.MethodPost, "/api/settings/check", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, body["unique_vlans"])

	writeLayer(t, ts.root, "global/vxlans.yml", testVXLANs+`
  office2:
    vni: 100100
    vlan_id: 101
    vlan_name: office2
`)
	status, _ = ts.do(t, http.MethodPost, "/api/settings/check", nil)
	assert.Equal(t, http.StatusOK, status, "cached settings are used until invalidated")

	status, _ = ts.do(t, http.MethodPost, "/api/settings/invalidate", nil)
	require.Equal(t, http.StatusNoContent, status)

	status, body = ts.do(t, http.MethodPost, "/api/settings/check?unique_vlans=false", nil)
	assert.Equal(t, http.StatusConflict, status)
	assert.Contains(t, body["details"], "100100")

	status, _ = ts.do(t, http.MethodPost, "/api/settings/check?unique_vlans=maybe", nil)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestResolveMgmtdomain(t *testing.T) {
	ts := newTestServer(t)

	tests := []struct {
		name   string
		query  string
		status int
	}{
		{"distribution pair", "?hostname=sth-dist-01&hostname=sth-dist-02", http.StatusOK},
		{"reversed pair", "?hostname=sth-dist-02&hostname=sth-dist-01", http.StatusOK},
		{"access by address", "?hostname=sth-acc-01", http.StatusOK},
		{"mixed tiers", "?hostname=sth-dist-01&hostname=sth-acc-01", http.StatusBadRequest},
		{"no hostnames", "", http.StatusBadRequest},
		{"unknown hostname", "?hostname=sth-dist-09", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := ts.do(t, http.MethodGet, "/api/mgmtdomain"+tt.query, nil)
			assert.Equal(t, tt.status, status)
			if status == http.StatusOK {
				assert.Equal(t, "10.0.6.1/24", body["ipv4_gw"])
				assert.Equal(t, float64(600), body["vlan"])
			}
		})
	}

	status, body := ts.do(t, http.MethodGet, "/api/devices/sth-dist-01/mgmtdomains", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, body["items"], 1)
}

func TestRegisterDHCPAndAllocate(t *testing.T) {
	ts := newTestServer(t)
	req := map[string]string{"mac": "08:00:27:00:00:01", "ip": "10.0.0.50", "platform": "eos"}

	status, body := ts.do(t, http.MethodPost, "/api/dhcp", req)
	require.Equal(t, http.StatusCreated, status)
	assert.Equal(t, "mac-080027000001", body["hostname"])
	assert.Equal(t, "DHCP_BOOT", body["state"])

	status, _ = ts.do(t, http.MethodPost, "/api/dhcp", req)
	assert.Equal(t, http.StatusOK, status)

	status, _ = ts.do(t, http.MethodPost, "/api/dhcp", map[string]string{"mac": "zz", "ip": "10.0.0.51"})
	assert.Equal(t, http.StatusBadRequest, status)

	status, body = ts.do(t, http.MethodPost, "/api/devices/mac-080027000001/mgmt-allocation",
		AllocationRequest{Uplinks: []string{"sth-dist-01", "sth-dist-02"}})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "10.0.6.2/24", body["mgmt_ip"])
	assert.Equal(t, "10.0.6.1", body["mgmt_gw"])
	assert.Equal(t, float64(600), body["mgmt_vlan_id"])

	status, _ = ts.do(t, http.MethodPost, "/api/devices/mac-0800270000ff/mgmt-allocation",
		AllocationRequest{Uplinks: []string{"sth-dist-01", "sth-dist-02"}})
	assert.Equal(t, http.StatusNotFound, status)
}

func TestRecover(t *testing.T) {
	h := Chain(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}), Recover(zaptest.NewLogger(t)))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
