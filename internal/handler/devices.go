package handler

import (
	"encoding/json"
	"net/http"
	"net/netip"
)

// ResolveMgmtdomain finds the management domain for one or two uplinks
// given as repeated hostname query parameters
func (h *Handler) ResolveMgmtdomain(w http.ResponseWriter, r *http.Request) {
	hostnames := r.URL.Query()["hostname"]
	md, err := h.onboarding.ResolveMgmtdomain(r.Context(), hostnames...)
	if err != nil {
		h.failure(w, "Failed to resolve mgmtdomain", err)
		return
	}
	if md == nil {
		h.writeError(w, "Not found", "no applicable mgmtdomain for uplinks", http.StatusNotFound)
		return
	}
	h.writeJSON(w, md, http.StatusOK)
}

// DeviceMgmtdomains lists the management domains a device is an endpoint of
func (h *Handler) DeviceMgmtdomains(w http.ResponseWriter, r *http.Request) {
	mds, err := h.onboarding.MgmtdomainsForDevice(r.Context(), r.PathValue("hostname"))
	if err != nil {
		h.failure(w, "Failed to list mgmtdomains", err)
		return
	}
	h.writeJSON(w, mds, http.StatusOK)
}

// AllocationRequest names the uplinks of a device being onboarded
type AllocationRequest struct {
	Uplinks []string `json:"uplinks"`
}

// AllocateMgmtIP assigns a management address to a device
func (h *Handler) AllocateMgmtIP(w http.ResponseWriter, r *http.Request) {
	var req AllocationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, "Invalid request body", err.Error(), http.StatusBadRequest)
		return
	}

	alloc, err := h.onboarding.Allocate(r.Context(), r.PathValue("hostname"), req.Uplinks)
	if err != nil {
		h.failure(w, "Failed to allocate management address", err)
		return
	}
	h.writeJSON(w, alloc, http.StatusOK)
}

// DHCPRequest is a DHCP server's commit notification
type DHCPRequest struct {
	MAC      string     `json:"mac"`
	IP       netip.Addr `json:"ip"`
	Platform string     `json:"platform"`
}

// RegisterDHCP records a device on its first DHCP lease. A MAC seen before
// returns the existing device with 200; a new one 201.
func (h *Handler) RegisterDHCP(w http.ResponseWriter, r *http.Request) {
	var req DHCPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, "Invalid request body", err.Error(), http.StatusBadRequest)
		return
	}
	if req.MAC == "" {
		h.writeError(w, "Invalid request body", "mac is required", http.StatusBadRequest)
		return
	}

	dev, created, err := h.onboarding.RegisterDHCP(r.Context(), req.MAC, req.IP, req.Platform)
	if err != nil {
		h.failure(w, "Failed to register device", err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	h.writeJSON(w, dev, status)
}
