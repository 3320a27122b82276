package main

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	goAccount "github.com/MrEthical07/goAccount"
	exportprom "github.com/MrEthical07/goAccount/metrics/export/prometheus"
	"github.com/MrEthical07/goAccount/middleware"
	"github.com/MrEthical07/goAccount/permission"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type server struct {
	engine *goAccount.Engine
	notify notifier
	logger *slog.Logger
	ips    *middleware.IPResolver
}

// newServer wires the handlers. ips may be nil when the service is not
// behind a proxy.
func newServer(engine *goAccount.Engine, n notifier, logger *slog.Logger, ips *middleware.IPResolver) *server {
	return &server{engine: engine, notify: n, logger: logger, ips: ips}
}

func newRouter(s *server) http.Handler {
	r := mux.NewRouter()
	r.Use(s.requestID)

	guard := middleware.Guard(s.engine, middleware.WithIPResolver(s.ips))
	guarded := func(h http.HandlerFunc, extra ...func(http.Handler) http.Handler) http.Handler {
		var out http.Handler = h
		for i := len(extra) - 1; i >= 0; i-- {
			out = extra[i](out)
		}
		return guard(out)
	}
	writeYouth := middleware.RequireCapability(s.engine, permission.Write, permission.PartitionYouth)
	readAdmin := middleware.RequireCapability(s.engine, permission.Read, permission.PartitionAdmin)
	superuser := middleware.RequireSuperuser(s.engine)

	for _, p := range []struct {
		prefix   string
		platform goAccount.Platform
	}{
		{"/ap", goAccount.PlatformAdmin},
		{"/mp", goAccount.PlatformConsumer},
	} {
		r.Handle(p.prefix+"/auth/login", s.login(p.platform)).Methods(http.MethodPost)
		r.Handle(p.prefix+"/auth/logout", guarded(s.logout)).Methods(http.MethodPut)
		r.Handle(p.prefix+"/auth/forget-password", s.forgetPassword(p.platform)).Methods(http.MethodPost)
		r.Handle(p.prefix+"/auth/forget-password/token", s.forgetPasswordToken(p.platform)).Methods(http.MethodPost)
		r.Handle(p.prefix+"/user/password", guarded(s.changePassword)).Methods(http.MethodPut)
		r.Handle(p.prefix+"/user/{userId}/password", guarded(s.resetUserPassword, superuser)).Methods(http.MethodPut)
	}

	r.HandleFunc("/auth/refresh", s.refresh).Methods(http.MethodPost)
	r.Handle("/auth/verify", guarded(s.verify)).Methods(http.MethodGet)

	r.HandleFunc("/mp/user/verify", s.verifyAccount).Methods(http.MethodPost)
	r.Handle("/mp/user/{userId}/verification", guarded(s.requestVerification, writeYouth)).Methods(http.MethodPost)
	r.Handle("/mp/user/{userId}/activate", guarded(s.setEnabled(true))).Methods(http.MethodPut)
	r.Handle("/mp/user/{userId}/deactivate", guarded(s.setEnabled(false))).Methods(http.MethodPut)
	r.Handle("/ap/admin/{userId}/activate", guarded(s.setEnabled(true))).Methods(http.MethodPut)
	r.Handle("/ap/admin/{userId}/deactivate", guarded(s.setEnabled(false))).Methods(http.MethodPut)

	r.Handle("/ap/role/list", guarded(s.listRoles, superuser)).Methods(http.MethodGet)
	r.Handle("/ap/role/permission/list", guarded(s.listPermissions, superuser)).Methods(http.MethodGet)
	r.Handle("/ap/role/id/{roleId}", guarded(s.role, superuser)).Methods(http.MethodGet)
	r.Handle("/ap/role/user/{userId}", guarded(s.changeUserRole, superuser)).Methods(http.MethodPut)
	r.Handle("/ap/role/{role}", guarded(s.rolePermissions, readAdmin)).Methods(http.MethodGet)
	r.Handle("/ap/role/{roleId}", guarded(s.updateRolePermissions, superuser)).Methods(http.MethodPut)

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		exportprom.NewCollector(s.engine),
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}).Methods(http.MethodGet)

	return r
}

func (s *server) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Debug("request", "id", id, "method", r.Method, "path", r.URL.Path, "took", time.Since(start))
	})
}

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *server) login(platform goAccount.Platform) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in credentials
		if !decode(w, r, &in) {
			return
		}
		ctx := goAccount.WithClientIP(r.Context(), s.ips.ClientIP(r))
		pair, err := s.engine.Login(ctx, platform, in.Email, in.Password)
		if err != nil {
			middleware.WriteError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, pair)
	}
}

func (s *server) logout(w http.ResponseWriter, r *http.Request) {
	claims, _ := middleware.ClaimsFromContext(r.Context())
	if err := s.engine.Logout(r.Context(), claims.UserID()); err != nil {
		middleware.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) refresh(w http.ResponseWriter, r *http.Request) {
	token, err := middleware.RefreshTokenFromBody(r)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	pair, err := s.engine.RefreshToken(r.Context(), token)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, pair)
}

type verifyResponse struct {
	UserID   string `json:"userId"`
	UserType string `json:"userType"`
	UserRole string `json:"userRole"`
	Enabled  bool   `json:"enabled"`
	Verified bool   `json:"verified"`
}

func (s *server) verify(w http.ResponseWriter, r *http.Request) {
	claims, _ := middleware.ClaimsFromContext(r.Context())
	writeJSON(w, http.StatusOK, verifyResponse{
		UserID:   claims.UserID(),
		UserType: claims.UserType,
		UserRole: claims.UserRole,
		Enabled:  claims.Enabled,
		Verified: claims.Verified,
	})
}

type emailBody struct {
	Email string `json:"email"`
}

// forgetPassword answers 202 whether or not a token was issued, so the
// endpoint does not reveal which accounts exist or what state they are in.
// Only outages and throttling surface as errors.
func (s *server) forgetPassword(platform goAccount.Platform) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in emailBody
		if !decode(w, r, &in) {
			return
		}
		ctx := goAccount.WithClientIP(r.Context(), s.ips.ClientIP(r))
		token, err := s.engine.RequestPasswordReset(ctx, platform, in.Email)
		switch {
		case err == nil:
			if err := s.notify.Deliver(ctx, resetPurposeFor(platform), in.Email, token); err != nil {
				s.logger.ErrorContext(ctx, "deliver reset token", "err", err)
				middleware.WriteError(w, err)
				return
			}
		case errors.Is(err, goAccount.ErrStoreUnavailable),
			errors.Is(err, goAccount.ErrEngineNotReady),
			errors.Is(err, goAccount.ErrOneTimeRateLimited):
			middleware.WriteError(w, err)
			return
		default:
			s.logger.DebugContext(ctx, "reset not issued", "platform", platform, "err", err)
		}
		writeJSON(w, http.StatusAccepted, map[string]string{"message": "if the account exists, a reset link has been sent"})
	}
}

type resetBody struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}

func (s *server) forgetPasswordToken(platform goAccount.Platform) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in resetBody
		if !decode(w, r, &in) {
			return
		}
		if err := s.engine.ConfirmPasswordReset(r.Context(), platform, in.Token, in.Password); err != nil {
			middleware.WriteError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

type passwordChange struct {
	OldPassword string `json:"oldPassword"`
	NewPassword string `json:"newPassword"`
}

func (s *server) changePassword(w http.ResponseWriter, r *http.Request) {
	var in passwordChange
	if !decode(w, r, &in) {
		return
	}
	claims, _ := middleware.ClaimsFromContext(r.Context())
	if err := s.engine.ChangePassword(r.Context(), claims.UserID(), in.OldPassword, in.NewPassword); err != nil {
		middleware.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type passwordReset struct {
	Password string `json:"password"`
}

func (s *server) resetUserPassword(w http.ResponseWriter, r *http.Request) {
	var in passwordReset
	if !decode(w, r, &in) {
		return
	}
	claims, _ := middleware.ClaimsFromContext(r.Context())
	if err := s.engine.ResetUserPassword(r.Context(), claims, mux.Vars(r)["userId"], in.Password); err != nil {
		middleware.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type tokenBody struct {
	Token string `json:"token"`
}

func (s *server) verifyAccount(w http.ResponseWriter, r *http.Request) {
	var in tokenBody
	if !decode(w, r, &in) {
		return
	}
	user, err := s.engine.ConfirmAccountVerification(r.Context(), in.Token)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"userId": user.ID})
}

func (s *server) requestVerification(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["userId"]
	token, err := s.engine.RequestAccountVerification(r.Context(), userID)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	if err := s.notify.Deliver(r.Context(), goAccount.PurposeVerifyConsumer, userID, token); err != nil {
		middleware.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (s *server) setEnabled(enabled bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, _ := middleware.ClaimsFromContext(r.Context())
		if err := s.engine.SetUserEnabled(r.Context(), claims, mux.Vars(r)["userId"], enabled); err != nil {
			middleware.WriteError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

type roleAssignment struct {
	RoleID string `json:"roleId"`
}

func (s *server) changeUserRole(w http.ResponseWriter, r *http.Request) {
	var in roleAssignment
	if !decode(w, r, &in) {
		return
	}
	claims, _ := middleware.ClaimsFromContext(r.Context())
	if err := s.engine.ChangeUserRole(r.Context(), claims, mux.Vars(r)["userId"], in.RoleID); err != nil {
		middleware.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type rolePermissionsBody struct {
	Role        string   `json:"role,omitempty"`
	Permissions []string `json:"permissions"`
}

func (s *server) rolePermissions(w http.ResponseWriter, r *http.Request) {
	role := mux.Vars(r)["role"]
	set, err := s.engine.PermissionsForRole(r.Context(), role)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rolePermissionsBody{Role: role, Permissions: set.Names()})
}

func (s *server) updateRolePermissions(w http.ResponseWriter, r *http.Request) {
	var in rolePermissionsBody
	if !decode(w, r, &in) {
		return
	}
	claims, _ := middleware.ClaimsFromContext(r.Context())
	resolved, err := s.engine.UpdateRolePermissions(r.Context(), claims, mux.Vars(r)["roleId"], in.Permissions)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rolePermissionsBody{Role: resolved.Role.Name, Permissions: resolved.Permissions.Names()})
}

type roleView struct {
	ID            string   `json:"id"`
	Name          string   `json:"name"`
	RoleType      string   `json:"roleType"`
	Permissions   []string `json:"permissions"`
	SystemDefault bool     `json:"systemDefault"`
	IsSuperuser   bool     `json:"isSuperuser"`
}

type permissionView struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Read        bool   `json:"read"`
	Write       bool   `json:"write"`
	Description string `json:"description"`
}

func (s *server) listRoles(w http.ResponseWriter, r *http.Request) {
	claims, _ := middleware.ClaimsFromContext(r.Context())
	roles, err := s.engine.ListRoles(r.Context(), claims)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	out := make([]roleView, len(roles))
	for i, role := range roles {
		out[i] = viewRole(role, role.Permissions)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *server) listPermissions(w http.ResponseWriter, r *http.Request) {
	claims, _ := middleware.ClaimsFromContext(r.Context())
	perms, err := s.engine.ListPermissions(r.Context(), claims)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	out := make([]permissionView, len(perms))
	for i, p := range perms {
		out[i] = permissionView{ID: p.ID, Name: p.Name, Read: p.Read, Write: p.Write, Description: p.Description}
	}
	writeJSON(w, http.StatusOK, out)
}

// role answers with permission names rather than the stored ids.
func (s *server) role(w http.ResponseWriter, r *http.Request) {
	claims, _ := middleware.ClaimsFromContext(r.Context())
	resolved, err := s.engine.Role(r.Context(), claims, mux.Vars(r)["roleId"])
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, viewRole(resolved.Role, resolved.Permissions.Names()))
}

func viewRole(role permission.Role, perms []string) roleView {
	if perms == nil {
		perms = []string{}
	}
	return roleView{
		ID:            role.ID,
		Name:          role.Name,
		RoleType:      role.RoleType,
		Permissions:   perms,
		SystemDefault: role.SystemDefault,
		IsSuperuser:   role.IsSuperuser,
	}
}

func resetPurposeFor(p goAccount.Platform) goAccount.OneTimePurpose {
	if p == goAccount.PlatformConsumer {
		return goAccount.PurposeResetConsumer
	}
	return goAccount.PurposeResetAdmin
}

const maxBody = 64 << 10

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
