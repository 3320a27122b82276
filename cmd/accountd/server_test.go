package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	goAccount "github.com/MrEthical07/goAccount"
	"github.com/MrEthical07/goAccount/middleware"
	"github.com/MrEthical07/goAccount/permission"
	"github.com/MrEthical07/goAccount/password"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

const testPassword = "correct-horse-battery"

type captureNotifier struct {
	mu     sync.Mutex
	tokens map[goAccount.OneTimePurpose]string
}

func (c *captureNotifier) Deliver(_ context.Context, purpose goAccount.OneTimePurpose, _, token string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.tokens == nil {
		c.tokens = map[goAccount.OneTimePurpose]string{}
	}
	c.tokens[purpose] = token
	return nil
}

func (c *captureNotifier) token(p goAccount.OneTimePurpose) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tokens[p]
}

type fixture struct {
	srv    *httptest.Server
	notify *captureNotifier
}

type fixtureOptions struct {
	mutate func(*goAccount.Config)
	ips    *middleware.IPResolver
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureWith(t, fixtureOptions{})
}

func newFixtureWith(t *testing.T, opts fixtureOptions) *fixture {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	cfg := goAccount.DefaultConfig()
	cfg.JWT.AccessKey = []byte("accountd-access-key-0123456789ab")
	cfg.JWT.RefreshKey = []byte("accountd-refresh-key-0123456789a")
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1
	if opts.mutate != nil {
		opts.mutate(&cfg)
	}

	hasher, err := password.New(password.Config{
		Memory:      cfg.Password.Memory,
		Time:        cfg.Password.Time,
		Parallelism: cfg.Password.Parallelism,
		SaltLength:  cfg.Password.SaltLength,
		KeyLength:   cfg.Password.KeyLength,
	})
	if err != nil {
		t.Fatalf("hasher: %v", err)
	}
	hash, err := hasher.Hash(testPassword)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}

	admins := goAccount.NewMemoryUserStore(
		goAccount.UserRecord{ID: "u-super", Email: "root@example.com", UserType: goAccount.UserTypeAdmin, RoleID: permission.RoleSuperAdmin, PasswordHash: hash, Enabled: true, Verified: true},
		goAccount.UserRecord{ID: "u-partner", Email: "partner@example.com", UserType: goAccount.UserTypePartner, RoleID: permission.RolePartner, PasswordHash: hash, Enabled: true, Verified: true},
	)
	consumers := goAccount.NewMemoryUserStore(
		goAccount.UserRecord{ID: "u-youth", Email: "youth@example.com", UserType: goAccount.UserTypeYouth, RoleID: permission.RoleYouth, PasswordHash: hash, Enabled: true, Verified: false, LoginType: goAccount.LoginTypeEmail},
	)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	engine, err := goAccount.New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithUserStore(goAccount.PlatformAdmin, admins).
		WithUserStore(goAccount.PlatformConsumer, consumers).
		WithRoleStore(permission.NewDefaultMemoryStore()).
		WithLogger(logger).
		Build()
	if err != nil {
		t.Fatalf("build engine: %v", err)
	}

	n := &captureNotifier{}
	srv := httptest.NewServer(newRouter(newServer(engine, n, logger, opts.ips)))
	t.Cleanup(srv.Close)
	return &fixture{srv: srv, notify: n}
}

func (f *fixture) do(t *testing.T, method, path, bearer string, body any) (*http.Response, []byte) {
	t.Helper()
	var header http.Header
	if bearer != "" {
		header = http.Header{"Authorization": {"Bearer " + bearer}}
	}
	return f.send(t, method, path, header, body)
}

func (f *fixture) send(t *testing.T, method, path string, header http.Header, body any) (*http.Response, []byte) {
	t.Helper()
	var rd io.Reader
	if body != nil {
		raw, _ := json.Marshal(body)
		rd = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, f.srv.URL+path, rd)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	for k, v := range header {
		req.Header[k] = v
	}
	resp, err := f.srv.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	out, _ := io.ReadAll(resp.Body)
	return resp, out
}

func (f *fixture) login(t *testing.T, prefix, email string) goAccount.TokenPair {
	t.Helper()
	resp, body := f.do(t, http.MethodPost, prefix+"/auth/login", "", credentials{Email: email, Password: testPassword})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login %s: %d %s", email, resp.StatusCode, body)
	}
	var pair goAccount.TokenPair
	if err := json.Unmarshal(body, &pair); err != nil {
		t.Fatalf("decode pair: %v", err)
	}
	return pair
}

func TestSessionLifecycle(t *testing.T) {
	f := newFixture(t)
	pair := f.login(t, "/ap", "ROOT@example.com")

	resp, body := f.do(t, http.MethodGet, "/auth/verify", pair.AccessToken, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("verify: %d %s", resp.StatusCode, body)
	}
	var who verifyResponse
	_ = json.Unmarshal(body, &who)
	if who.UserID != "u-super" || who.UserRole != permission.RoleSuperAdmin {
		t.Fatalf("unexpected claims: %+v", who)
	}

	resp, body = f.do(t, http.MethodPost, "/auth/refresh", "", map[string]string{"token": pair.RefreshToken})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("refresh: %d %s", resp.StatusCode, body)
	}
	var rotated goAccount.TokenPair
	_ = json.Unmarshal(body, &rotated)

	if resp, _ := f.do(t, http.MethodPost, "/auth/refresh", "", map[string]string{"token": pair.RefreshToken}); resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("replayed refresh: expected 401, got %d", resp.StatusCode)
	}
	if resp, _ := f.do(t, http.MethodGet, "/auth/verify", pair.AccessToken, nil); resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("superseded access token: expected 401, got %d", resp.StatusCode)
	}

	if resp, _ := f.do(t, http.MethodPut, "/ap/auth/logout", rotated.AccessToken, nil); resp.StatusCode != http.StatusNoContent {
		t.Fatalf("logout: %d", resp.StatusCode)
	}
	if resp, _ := f.do(t, http.MethodGet, "/auth/verify", rotated.AccessToken, nil); resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("after logout: expected 401, got %d", resp.StatusCode)
	}
}

func TestLoginFailures(t *testing.T) {
	f := newFixture(t)

	resp, _ := f.do(t, http.MethodPost, "/ap/auth/login", "", credentials{Email: "root@example.com", Password: "wrong"})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("bad password: expected 401, got %d", resp.StatusCode)
	}
	resp, _ = f.do(t, http.MethodPost, "/mp/auth/login", "", credentials{Email: "youth@example.com", Password: testPassword})
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("unverified: expected 403, got %d", resp.StatusCode)
	}
	resp, _ = f.do(t, http.MethodPost, "/ap/auth/login", "", map[string]string{"username": "x"})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("unknown field: expected 400, got %d", resp.StatusCode)
	}
}

func TestVerificationThenPasswordReset(t *testing.T) {
	f := newFixture(t)
	super := f.login(t, "/ap", "root@example.com")

	resp, body := f.do(t, http.MethodPost, "/mp/user/u-youth/verification", super.AccessToken, nil)
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("request verification: %d %s", resp.StatusCode, body)
	}
	token := f.notify.token(goAccount.PurposeVerifyConsumer)
	if token == "" {
		t.Fatal("verification token not delivered")
	}
	if resp, body := f.do(t, http.MethodPost, "/mp/user/verify", "", map[string]string{"token": token}); resp.StatusCode != http.StatusOK {
		t.Fatalf("verify account: %d %s", resp.StatusCode, body)
	}
	if resp, _ := f.do(t, http.MethodPost, "/mp/user/verify", "", map[string]string{"token": token}); resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("reused verification token: expected 401, got %d", resp.StatusCode)
	}

	if resp, _ := f.do(t, http.MethodPost, "/mp/auth/forget-password", "", map[string]string{"email": "nobody@example.com"}); resp.StatusCode != http.StatusAccepted {
		t.Fatalf("unknown email: expected 202, got %d", resp.StatusCode)
	}
	if resp, _ := f.do(t, http.MethodPost, "/mp/auth/forget-password", "", map[string]string{"email": "youth@example.com"}); resp.StatusCode != http.StatusAccepted {
		t.Fatalf("forget password: %d", resp.StatusCode)
	}
	reset := f.notify.token(goAccount.PurposeResetConsumer)
	if reset == "" {
		t.Fatal("reset token not delivered")
	}
	resp, body = f.do(t, http.MethodPost, "/mp/auth/forget-password/token", "", resetBody{Token: reset, Password: "a-brand-new-passphrase"})
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("reset: %d %s", resp.StatusCode, body)
	}
	resp, _ = f.do(t, http.MethodPost, "/mp/auth/login", "", credentials{Email: "youth@example.com", Password: "a-brand-new-passphrase"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login with new password: %d", resp.StatusCode)
	}
}

func TestRoleAdministration(t *testing.T) {
	f := newFixture(t)
	super := f.login(t, "/ap", "root@example.com")
	partner := f.login(t, "/ap", "partner@example.com")

	if resp, _ := f.do(t, http.MethodGet, "/ap/role/admin", partner.AccessToken, nil); resp.StatusCode != http.StatusForbidden {
		t.Fatalf("partner reading roles: expected 403, got %d", resp.StatusCode)
	}
	resp, body := f.do(t, http.MethodGet, "/ap/role/admin", super.AccessToken, nil)
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(body), "rwYouth") {
		t.Fatalf("role permissions: %d %s", resp.StatusCode, body)
	}

	update := rolePermissionsBody{Permissions: []string{"rPartner", "rwYouth"}}
	if resp, _ := f.do(t, http.MethodPut, "/ap/role/partner", partner.AccessToken, update); resp.StatusCode != http.StatusForbidden {
		t.Fatalf("non-superuser update: expected 403, got %d", resp.StatusCode)
	}
	resp, body = f.do(t, http.MethodPut, "/ap/role/partner", super.AccessToken, update)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("update role: %d %s", resp.StatusCode, body)
	}

	if resp, _ := f.do(t, http.MethodPut, "/ap/admin/u-partner/deactivate", super.AccessToken, nil); resp.StatusCode != http.StatusNoContent {
		t.Fatalf("deactivate: %d", resp.StatusCode)
	}
	if resp, _ := f.do(t, http.MethodGet, "/auth/verify", partner.AccessToken, nil); resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("deactivated session: expected 401, got %d", resp.StatusCode)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	f := newFixture(t)
	f.login(t, "/ap", "root@example.com")

	resp, body := f.do(t, http.MethodGet, "/metrics", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("metrics: %d", resp.StatusCode)
	}
	if !strings.Contains(string(body), "goaccount_login_success_total 1") {
		t.Fatalf("expected login counter, got:\n%s", body)
	}
	if resp.Header.Get("X-Request-ID") == "" {
		t.Fatal("missing request id header")
	}
}

func TestForgetPasswordHidesAccountState(t *testing.T) {
	f := newFixture(t)
	super := f.login(t, "/ap", "root@example.com")

	// u-youth exists but is unverified.
	resp, body := f.do(t, http.MethodPost, "/mp/auth/forget-password", "", map[string]string{"email": "youth@example.com"})
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("unverified account: expected 202, got %d %s", resp.StatusCode, body)
	}
	if f.notify.token(goAccount.PurposeResetConsumer) != "" {
		t.Fatal("unverified account must not receive a reset token")
	}

	if resp, _ := f.do(t, http.MethodPut, "/ap/admin/u-partner/deactivate", super.AccessToken, nil); resp.StatusCode != http.StatusNoContent {
		t.Fatalf("deactivate: %d", resp.StatusCode)
	}
	resp, body = f.do(t, http.MethodPost, "/ap/auth/forget-password", "", map[string]string{"email": "partner@example.com"})
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("disabled account: expected 202, got %d %s", resp.StatusCode, body)
	}
	if f.notify.token(goAccount.PurposeResetAdmin) != "" {
		t.Fatal("disabled account must not receive a reset token")
	}
}

func loginIPBudget(c *goAccount.Config) {
	c.Login.MaxAttempts = 0
	c.Login.IPMaxAttempts = 2
	c.Login.IPCooldown = time.Minute
}

// failLogins sends n bad logins, each claiming a different forwarded client,
// and counts the 429 answers.
func failLogins(t *testing.T, f *fixture, n int) int {
	t.Helper()
	var limited int
	for i := 0; i < n; i++ {
		header := http.Header{"X-Forwarded-For": {fmt.Sprintf("198.51.100.%d", i+1)}}
		resp, _ := f.send(t, http.MethodPost, "/ap/auth/login", header, credentials{Email: "root@example.com", Password: "wrong"})
		if resp.StatusCode == http.StatusTooManyRequests {
			limited++
		}
	}
	return limited
}

func TestLoginIPBudgetIgnoresForwardedFor(t *testing.T) {
	f := newFixtureWith(t, fixtureOptions{mutate: loginIPBudget})
	if got := failLogins(t, f, 10); got != 8 {
		t.Fatalf("rotated X-Forwarded-For: %d of 10 rate limited, want 8", got)
	}
}

func TestLoginIPBudgetHonoursTrustedProxy(t *testing.T) {
	ips, err := middleware.NewIPResolver("127.0.0.0/8", "::1")
	if err != nil {
		t.Fatalf("resolver: %v", err)
	}
	f := newFixtureWith(t, fixtureOptions{mutate: loginIPBudget, ips: ips})
	if got := failLogins(t, f, 10); got != 0 {
		t.Fatalf("distinct clients behind a trusted proxy: %d rate limited, want 0", got)
	}
}

func TestRoleCatalogRoutes(t *testing.T) {
	f := newFixture(t)
	super := f.login(t, "/ap", "root@example.com")
	partner := f.login(t, "/ap", "partner@example.com")

	for _, path := range []string{"/ap/role/list", "/ap/role/permission/list", "/ap/role/id/" + permission.RoleAdmin} {
		if resp, _ := f.do(t, http.MethodGet, path, partner.AccessToken, nil); resp.StatusCode != http.StatusForbidden {
			t.Fatalf("partner GET %s: expected 403, got %d", path, resp.StatusCode)
		}
	}

	resp, body := f.do(t, http.MethodGet, "/ap/role/list", super.AccessToken, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list roles: %d %s", resp.StatusCode, body)
	}
	var roles []roleView
	if err := json.Unmarshal(body, &roles); err != nil {
		t.Fatalf("decode roles: %v", err)
	}
	if len(roles) != len(permission.DefaultRoles()) {
		t.Fatalf("got %d roles, want %d", len(roles), len(permission.DefaultRoles()))
	}

	resp, body = f.do(t, http.MethodGet, "/ap/role/permission/list", super.AccessToken, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list permissions: %d %s", resp.StatusCode, body)
	}
	var perms []permissionView
	if err := json.Unmarshal(body, &perms); err != nil {
		t.Fatalf("decode permissions: %v", err)
	}
	if len(perms) != len(permission.DefaultPermissions()) {
		t.Fatalf("got %d permissions, want %d", len(perms), len(permission.DefaultPermissions()))
	}

	resp, body = f.do(t, http.MethodGet, "/ap/role/id/"+permission.RoleSuperAdmin, super.AccessToken, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get role: %d %s", resp.StatusCode, body)
	}
	var role roleView
	if err := json.Unmarshal(body, &role); err != nil {
		t.Fatalf("decode role: %v", err)
	}
	if !role.IsSuperuser || len(role.Permissions) == 0 {
		t.Fatalf("unexpected role: %+v", role)
	}
	if resp, _ := f.do(t, http.MethodGet, "/ap/role/id/ghost", super.AccessToken, nil); resp.StatusCode != http.StatusNotFound {
		t.Fatalf("unknown role: expected 404, got %d", resp.StatusCode)
	}
}

func TestSuperuserResetsPassword(t *testing.T) {
	f := newFixture(t)
	super := f.login(t, "/ap", "root@example.com")
	partner := f.login(t, "/ap", "partner@example.com")

	body := passwordReset{Password: "chosen-by-the-root"}
	if resp, _ := f.do(t, http.MethodPut, "/ap/user/u-super/password", partner.AccessToken, body); resp.StatusCode != http.StatusForbidden {
		t.Fatalf("partner reset: expected 403, got %d", resp.StatusCode)
	}
	if resp, _ := f.do(t, http.MethodPut, "/ap/user/u-super/password", super.AccessToken, body); resp.StatusCode != http.StatusForbidden {
		t.Fatalf("self reset: expected 403, got %d", resp.StatusCode)
	}
	if resp, b := f.do(t, http.MethodPut, "/ap/user/u-partner/password", super.AccessToken, body); resp.StatusCode != http.StatusNoContent {
		t.Fatalf("reset partner: %d %s", resp.StatusCode, b)
	}

	if resp, _ := f.do(t, http.MethodGet, "/auth/verify", partner.AccessToken, nil); resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("partner session after reset: expected 401, got %d", resp.StatusCode)
	}
	resp, _ := f.do(t, http.MethodPost, "/ap/auth/login", "", credentials{Email: "partner@example.com", Password: body.Password})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login with reset password: %d", resp.StatusCode)
	}
}
