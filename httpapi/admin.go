package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/launchsentinel/core/envguard"
	"github.com/launchsentinel/core/sessionkey"
)

type adminHandler struct {
	deps Deps
	prom *promCollectors
}

type setModeRequest struct {
	Mode string `json:"mode"`
}

// setMode handles POST /admin/mode.
func (h *adminHandler) setMode(w http.ResponseWriter, r *http.Request) {
	var req setModeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "failed to parse request body: "+err.Error())
		return
	}
	switch envguard.Mode(req.Mode) {
	case envguard.ModeDemo, envguard.ModeReadonly, envguard.ModeManualApproval, envguard.ModeAutonomous:
		h.deps.Guard.SetMode(envguard.Mode(req.Mode))
		writeJSON(w, http.StatusOK, map[string]string{"mode": req.Mode})
	default:
		writeError(w, http.StatusBadRequest, "invalid_mode", "unknown mode "+req.Mode)
	}
}

// engageKillSwitch handles POST /admin/kill-switch/engage.
func (h *adminHandler) engageKillSwitch(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Reason string `json:"reason"`
	}
	_ = json.NewDecoder(r.Body).Decode(&req)
	if req.Reason == "" {
		req.Reason = "manual operator stop"
	}
	var revoked int
	if h.deps.Orchestrator != nil {
		revoked = h.deps.Orchestrator.EngageKillSwitch(req.Reason)
	} else {
		h.deps.Guard.EngageKillSwitch()
		revoked = h.deps.Sessions.KillSwitchRevokeAll(req.Reason)
		if h.deps.Bus != nil {
			h.deps.Bus.PublishKillSwitch(req.Reason, revoked)
		}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"engaged": true, "revokedSessions": revoked})
}

// disengageKillSwitch handles POST /admin/kill-switch/disengage.
func (h *adminHandler) disengageKillSwitch(w http.ResponseWriter, r *http.Request) {
	if h.deps.Orchestrator != nil {
		h.deps.Orchestrator.DisengageKillSwitch()
	} else {
		h.deps.Guard.DisengageKillSwitch()
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"engaged": false})
}

type createSessionRequest struct {
	TotalBudgetWei int64    `json:"totalBudgetWei"`
	VelocityCapWei int64    `json:"velocityCapWei"`
	ExpirySeconds  int64    `json:"expirySeconds"`
	AllowedTargets []string `json:"allowedTargets"`
}

// createSession handles POST /admin/sessions.
func (h *adminHandler) createSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "failed to parse request body: "+err.Error())
		return
	}
	if req.ExpirySeconds <= 0 {
		req.ExpirySeconds = 3600
	}
	sk, err := h.deps.Sessions.Create(sessionkey.CreateOptions{
		TotalBudgetWei: req.TotalBudgetWei,
		VelocityCapWei: req.VelocityCapWei,
		Expiry:         time.Now().Add(time.Duration(req.ExpirySeconds) * time.Second),
		AllowedTargets: req.AllowedTargets,
	})
	if err != nil {
		writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"id":             sk.ID,
		"publicMaterial": sk.PublicMaterial,
		"expiresAt":      sk.ExpiresAt,
	})
}

// revokeSession handles POST /admin/sessions/{id}/revoke.
func (h *adminHandler) revokeSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req struct {
		Reason string `json:"reason"`
	}
	_ = json.NewDecoder(r.Body).Decode(&req)
	if err := h.deps.Sessions.Revoke(id, req.Reason); err != nil {
		writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"id": id, "status": "revoked"})
}

// rotateSession handles POST /admin/sessions/{id}/rotate.
func (h *adminHandler) rotateSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	sk, err := h.deps.Sessions.Rotate(id)
	if err != nil {
		writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"id":             sk.ID,
		"publicMaterial": sk.PublicMaterial,
		"expiresAt":      sk.ExpiresAt,
	})
}

func writeSessionError(w http.ResponseWriter, err error) {
	if se, ok := err.(*sessionkey.SessionError); ok {
		writeError(w, http.StatusConflict, se.CodeString(), se.Message)
		return
	}
	writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
}
