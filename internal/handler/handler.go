package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"fabricnms/internal/domain"
	"fabricnms/internal/mgmtdomain"
	"fabricnms/internal/repository"
	"fabricnms/internal/service"
	"fabricnms/internal/settings"
)

// Handler handles API requests
type Handler struct {
	fleet       *service.FleetService
	onboarding  *service.OnboardingService
	uniqueVLANs bool
	logger      *zap.Logger
}

// New creates a new API handler. uniqueVLANs is the collision check mode
// used when a request does not choose one.
func New(fleet *service.FleetService, onboarding *service.OnboardingService, uniqueVLANs bool, logger *zap.Logger) *Handler {
	return &Handler{
		fleet:       fleet,
		onboarding:  onboarding,
		uniqueVLANs: uniqueVLANs,
		logger:      logger,
	}
}

// Register adds the API routes to mux
func (h *Handler) Register(mux *http.ServeMux) {
	// Settings
	mux.HandleFunc("GET /api/settings", h.GetSettings)
	mux.HandleFunc("GET /api/settings/groups", h.GetGroups)
	mux.HandleFunc("POST /api/settings/check", h.CheckCollisions)
	mux.HandleFunc("POST /api/settings/invalidate", h.InvalidateSettings)

	// Management domains
	mux.HandleFunc("GET /api/mgmtdomain", h.ResolveMgmtdomain)
	mux.HandleFunc("GET /api/devices/{hostname}/mgmtdomains", h.DeviceMgmtdomains)
	mux.HandleFunc("POST /api/devices/{hostname}/mgmt-allocation", h.AllocateMgmtIP)

	// Registration
	mux.HandleFunc("POST /api/dhcp", h.RegisterDHCP)
}

// ErrorResponse is the body of every error reply
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// failure writes err with the status its class maps to
func (h *Handler) failure(w http.ResponseWriter, msg string, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		h.logger.Error(msg, zap.Error(err))
	} else {
		h.logger.Debug(msg, zap.Int("status", status), zap.Error(err))
	}
	h.writeError(w, msg, err.Error(), status)
}

func statusFor(err error) int {
	var (
		syntaxErr    *settings.SyntaxError
		dirErr       *settings.DirStructureError
		collisionErr *settings.CollisionError
	)
	switch {
	case errors.Is(err, mgmtdomain.ErrDeviceNotFound),
		errors.Is(err, mgmtdomain.ErrNoMgmtdomain),
		errors.Is(err, mgmtdomain.ErrMissingMgmtdomain),
		errors.Is(err, service.ErrNoApplicableMgmtdomain),
		errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, mgmtdomain.ErrHostnameCount),
		errors.Is(err, mgmtdomain.ErrInvalidHostname),
		errors.Is(err, mgmtdomain.ErrTierMismatch),
		errors.Is(err, mgmtdomain.ErrUnexpectedTier),
		errors.Is(err, settings.ErrInvalidHostname),
		errors.Is(err, settings.ErrUnknownDeviceType),
		errors.Is(err, settings.ErrPathNotInCatalogue),
		errors.Is(err, domain.ErrInvalidMAC):
		return http.StatusBadRequest
	case errors.As(err, &syntaxErr), errors.As(err, &dirErr):
		return http.StatusUnprocessableEntity
	case errors.As(err, &collisionErr),
		errors.Is(err, mgmtdomain.ErrAmbiguousMgmtdomain),
		errors.Is(err, mgmtdomain.ErrInconsistentMgmtdomain),
		errors.Is(err, service.ErrNoFreeAddress),
		errors.Is(err, repository.ErrConflict):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

func (h *Handler) writeJSON(w http.ResponseWriter, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("Failed to encode JSON", zap.Error(err))
	}
}

func (h *Handler) writeError(w http.ResponseWriter, error, details string, statusCode int) {
	h.writeJSON(w, ErrorResponse{Error: error, Details: details}, statusCode)
}
