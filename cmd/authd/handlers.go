package main

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/etikos/authkit"
)

type server struct {
	engine *authkit.Engine
	logger *zap.Logger
}

func newRouter(engine *authkit.Engine, logger *zap.Logger) http.Handler {
	s := &server{engine: engine, logger: logger}

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
	}))

	r.Route("/users", func(r chi.Router) {
		r.Post("/login", s.handlePasswordLogin)
		r.Post("/login/biometric", s.handleBiometricLogin)
		r.Post("/login/totp", s.handleTOTPLogin)

		r.Post("/totp/setup", s.handleTOTPSetup)
		r.Post("/totp/verify", s.handleTOTPVerify)
		r.Post("/totp/disable", s.handleTOTPDisable)
		r.Get("/totp/status", s.handleTOTPStatus)

		r.Put("/biometric", s.handleBiometric)
		r.Put("/{uid}/block", s.handleBlock)

		r.Post("/audit/logout", s.handleAuditLogout)
		r.Post("/audit/login-failed", s.handleAuditLoginFailed)
		r.Post("/password-reset", s.handlePasswordReset)
	})

	return r
}

// withRequestMeta copies the caller's network identity into the context so
// the engine can stamp it onto audit events.
func withRequestMeta(r *http.Request) context.Context {
	ip := r.RemoteAddr
	if host, _, err := net.SplitHostPort(ip); err == nil {
		ip = host
	}
	ctx := authkit.WithClientIP(r.Context(), ip)
	return authkit.WithUserAgent(ctx, r.UserAgent())
}

func (s *server) handlePasswordLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if !s.decode(w, r, &req) {
		return
	}

	outcome, err := s.engine.PasswordLogin(withRequestMeta(r), req.Email, req.Password)
	s.writeOutcome(w, outcome, err)
}

func (s *server) handleBiometricLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UID string `json:"uid"`
	}
	if !s.decode(w, r, &req) {
		return
	}

	outcome, err := s.engine.BiometricLogin(withRequestMeta(r), req.UID)
	s.writeOutcome(w, outcome, err)
}

func (s *server) handleTOTPLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PendingToken string `json:"pendingToken"`
		Code         string `json:"code"`
	}
	if !s.decode(w, r, &req) {
		return
	}

	outcome, err := s.engine.CompleteTOTPLogin(withRequestMeta(r), req.PendingToken, req.Code)
	s.writeOutcome(w, outcome, err)
}

func (s *server) handleTOTPSetup(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UID string `json:"uid"`
	}
	if !s.decode(w, r, &req) {
		return
	}

	setup, err := s.engine.SetupTOTP(withRequestMeta(r), req.UID)
	if err != nil && setup == nil {
		s.writeError(w, err)
		return
	}
	status := http.StatusOK
	if err != nil {
		// Setup committed but the audit trail is incomplete.
		status = http.StatusBadGateway
	}
	s.writeJSON(w, status, map[string]string{
		"secret": setup.SecretBase32,
		"uri":    setup.URI,
	})
}

func (s *server) handleTOTPVerify(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UID  string `json:"uid"`
		Code string `json:"code"`
	}
	if !s.decode(w, r, &req) {
		return
	}

	if err := s.engine.ConfirmTOTPSetup(withRequestMeta(r), req.UID, req.Code); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "enabled"})
}

func (s *server) handleTOTPDisable(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UID  string `json:"uid"`
		Code string `json:"code"`
	}
	if !s.decode(w, r, &req) {
		return
	}

	if err := s.engine.DisableTOTP(withRequestMeta(r), req.UID, req.Code); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "disabled"})
}

func (s *server) handleTOTPStatus(w http.ResponseWriter, r *http.Request) {
	uid := r.URL.Query().Get("uid")
	if uid == "" {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "uid required"})
		return
	}

	enabled, err := s.engine.TOTPEnabled(r.Context(), uid)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]bool{"enabled": enabled})
}

func (s *server) handleBiometric(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UID     string `json:"uid"`
		Enabled bool   `json:"enabled"`
	}
	if !s.decode(w, r, &req) {
		return
	}

	if err := s.engine.SetBiometricPreference(withRequestMeta(r), req.UID, req.Enabled); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]bool{"enabled": req.Enabled})
}

func (s *server) handleBlock(w http.ResponseWriter, r *http.Request) {
	uid := chi.URLParam(r, "uid")
	var req struct {
		ActorUID string `json:"actorUid"`
		Disabled bool   `json:"disabled"`
	}
	if !s.decode(w, r, &req) {
		return
	}

	if err := s.engine.SetAccountDisabled(withRequestMeta(r), req.ActorUID, uid, req.Disabled); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]bool{"disabled": req.Disabled})
}

func (s *server) handleAuditLogout(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UID string `json:"uid"`
	}
	if !s.decode(w, r, &req) {
		return
	}

	if err := s.engine.AuditLogout(withRequestMeta(r), req.UID); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) handleAuditLoginFailed(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email  string `json:"email"`
		Reason string `json:"reason"`
	}
	if !s.decode(w, r, &req) {
		return
	}

	if err := s.engine.ReportFailedLogin(withRequestMeta(r), req.Email, req.Reason); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) handlePasswordReset(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
	}
	if !s.decode(w, r, &req) {
		return
	}

	if err := s.engine.AuditPasswordResetRequested(withRequestMeta(r), req.Email); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return false
	}
	return true
}

func (s *server) writeOutcome(w http.ResponseWriter, outcome authkit.Outcome, err error) {
	if err != nil {
		s.writeError(w, err)
		return
	}

	switch o := outcome.(type) {
	case authkit.TokenIssued:
		s.writeJSON(w, http.StatusOK, map[string]string{
			"status": "ok",
			"token":  o.Token,
			"uid":    o.Account.UID,
		})
	case authkit.SecondFactorRequired:
		s.writeJSON(w, http.StatusOK, map[string]string{
			"status":       "totp_required",
			"pendingToken": o.PendingToken,
		})
	case authkit.Rejected:
		s.writeJSON(w, http.StatusUnauthorized, map[string]string{
			"error": string(o.Reason),
		})
	default:
		s.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "SYSTEM_ERROR"})
	}
}

func (s *server) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, authkit.ErrUserNotFound):
		s.writeJSON(w, http.StatusNotFound, map[string]string{"error": "USER_NOT_FOUND"})
	case errors.Is(err, authkit.ErrAccountDisabled):
		s.writeJSON(w, http.StatusForbidden, map[string]string{"error": "ACCOUNT_DISABLED"})
	case errors.Is(err, authkit.ErrTOTPInvalid):
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "INVALID_TOTP"})
	case errors.Is(err, authkit.ErrTOTPNotConfigured), errors.Is(err, authkit.ErrTOTPNotEnabled):
		s.writeJSON(w, http.StatusConflict, map[string]string{"error": "TOTP_NOT_CONFIGURED"})
	case errors.Is(err, authkit.ErrTOTPAlreadyEnabled):
		s.writeJSON(w, http.StatusConflict, map[string]string{"error": "TOTP_ALREADY_ENABLED"})
	case errors.Is(err, authkit.ErrVersionConflict):
		s.writeJSON(w, http.StatusConflict, map[string]string{"error": "VERSION_CONFLICT"})
	case errors.Is(err, authkit.ErrAuditDelivery):
		s.writeJSON(w, http.StatusBadGateway, map[string]string{"error": "AUDIT_UNAVAILABLE"})
	default:
		s.logger.Error("request failed", zap.Error(err))
		s.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "SYSTEM_ERROR"})
	}
}

func (s *server) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Warn("response encoding failed", zap.Error(err))
	}
}
