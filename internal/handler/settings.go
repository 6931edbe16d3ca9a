package handler

import (
	"net/http"
	"strconv"

	"fabricnms/internal/domain"
	"fabricnms/internal/settings"
)

// SettingsResponse carries a resolved tree and the origin of every key
type SettingsResponse struct {
	Settings settings.Value `json:"settings"`
	Origins  settings.Value `json:"settings_origin"`
}

// GetSettings resolves settings. With only a hostname the device's tier
// comes from the directory; with a device_type the hostname need not be
// registered; with neither the fleet-wide settings are returned.
func (h *Handler) GetSettings(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	hostname := q.Get("hostname")
	tier, err := domain.ParseDeviceType(q.Get("device_type"))
	if err != nil {
		h.writeError(w, "Invalid device type", err.Error(), http.StatusBadRequest)
		return
	}

	var s *settings.Settings
	if hostname != "" && tier == "" {
		s, err = h.fleet.DeviceSettings(r.Context(), hostname)
	} else {
		s, err = h.fleet.Settings(r.Context(), hostname, tier)
	}
	if err != nil {
		h.failure(w, "Failed to resolve settings", err)
		return
	}

	h.writeJSON(w, SettingsResponse{
		Settings: settings.MapValue(s.Tree),
		Origins:  settings.MapValue(s.OriginTree()),
	}, http.StatusOK)
}

// GetGroups returns the groups a hostname belongs to, or all groups
func (h *Handler) GetGroups(w http.ResponseWriter, r *http.Request) {
	hostname := r.URL.Query().Get("hostname")
	groups, err := h.fleet.Groups(r.Context(), hostname)
	if err != nil {
		h.failure(w, "Failed to resolve groups", err)
		return
	}
	h.writeJSON(w, map[string]interface{}{"hostname": hostname, "groups": groups}, http.StatusOK)
}

// CheckCollisions runs the fleet-wide VLAN/VNI collision check
func (h *Handler) CheckCollisions(w http.ResponseWriter, r *http.Request) {
	unique := h.uniqueVLANs
	if v := r.URL.Query().Get("unique_vlans"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			h.writeError(w, "Invalid unique_vlans", err.Error(), http.StatusBadRequest)
			return
		}
		unique = b
	}

	if err := h.fleet.Check(r.Context(), unique); err != nil {
		h.failure(w, "Collision check failed", err)
		return
	}
	h.writeJSON(w, map[string]interface{}{"status": "ok", "unique_vlans": unique}, http.StatusOK)
}

// InvalidateSettings drops every cached settings file and resolution
func (h *Handler) InvalidateSettings(w http.ResponseWriter, r *http.Request) {
	if err := h.fleet.Invalidate(r.Context()); err != nil {
		h.failure(w, "Failed to invalidate settings cache", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
