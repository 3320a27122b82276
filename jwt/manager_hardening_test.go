package jwt

import (
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"strings"
	"testing"
	"time"

	gjwt "github.com/golang-jwt/jwt/v5"
)

func newEdKeys(t *testing.T) (ed25519.PublicKey, ed25519.PrivateKey) {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate ed25519 key: %v", err)
	}
	return pub, priv
}

func newHSManager(t *testing.T, kind Kind, key string, now func() time.Time) *Manager {
	t.Helper()
	m, err := NewManager(Config{
		Kind:          kind,
		TTL:           15 * time.Minute,
		SigningMethod: MethodHS256,
		PrivateKey:    []byte(key),
		Now:           now,
	})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	return m
}

func testIdentity() Identity {
	return Identity{
		UserID:   "u1",
		UserType: "admin",
		RoleID:   "r1",
		RoleName: "superAdmin",
		Enabled:  true,
		Verified: true,
	}
}

func TestIssueParseRoundTripCarriesSnapshot(t *testing.T) {
	m := newHSManager(t, KindAccess, "access-secret-access-secret", nil)

	token, exp, err := m.Issue(testIdentity(), "jti-1")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if time.Until(exp) <= 14*time.Minute {
		t.Fatalf("unexpected expiry %v", exp)
	}

	claims, err := m.Parse(token)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if claims.UserID() != "u1" || claims.JTI() != "jti-1" {
		t.Fatalf("unexpected sub/jti: %q %q", claims.UserID(), claims.JTI())
	}
	if claims.TokenType != KindAccess || claims.UserType != "admin" || claims.UserRole != "superAdmin" || claims.UserRoleID != "r1" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
	if !claims.Enabled || !claims.Verified {
		t.Fatal("expected enabled and verified snapshot")
	}
}

func TestParseClassifiesExpiry(t *testing.T) {
	now := time.Now()
	clock := func() time.Time { return now }
	m := newHSManager(t, KindAccess, "access-secret-access-secret", clock)

	token, _, err := m.Issue(testIdentity(), "jti-1")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	now = now.Add(16 * time.Minute)
	_, err = m.Parse(token)
	if !errors.Is(err, ErrExpired) {
		t.Fatalf("expected ErrExpired, got %v", err)
	}
	if errors.Is(err, ErrSignature) || errors.Is(err, ErrMalformed) {
		t.Fatalf("expiry must not classify as signature or malformed: %v", err)
	}
}

func TestParseClassifiesSignature(t *testing.T) {
	signer := newHSManager(t, KindAccess, "access-secret-access-secret", nil)
	verifier := newHSManager(t, KindAccess, "another-secret-another-secret", nil)

	token, _, err := signer.Issue(testIdentity(), "jti-1")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := verifier.Parse(token); !errors.Is(err, ErrSignature) {
		t.Fatalf("expected ErrSignature, got %v", err)
	}

	parts := strings.Split(token, ".")
	parts[2] = strings.Repeat("A", len(parts[2]))
	if _, err := signer.Parse(strings.Join(parts, ".")); !errors.Is(err, ErrSignature) {
		t.Fatalf("expected ErrSignature for tampered signature, got %v", err)
	}
}

func TestParseClassifiesMalformed(t *testing.T) {
	m := newHSManager(t, KindAccess, "access-secret-access-secret", nil)
	for _, input := range []string{"", "not-a-token", "a.b", "a.b.c.d", "!!!.###.$$$"} {
		if _, err := m.Parse(input); !errors.Is(err, ErrMalformed) {
			t.Fatalf("expected ErrMalformed for %q, got %v", input, err)
		}
	}
}

func TestParseRejectsOtherKindWithSharedKey(t *testing.T) {
	access := newHSManager(t, KindAccess, "shared-secret-shared-secret", nil)
	refresh := newHSManager(t, KindRefresh, "shared-secret-shared-secret", nil)

	token, _, err := refresh.Issue(testIdentity(), "jti-1")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := access.Parse(token); !errors.Is(err, ErrWrongKind) {
		t.Fatalf("expected ErrWrongKind, got %v", err)
	}
}

func TestParseRejectsWrongAlgorithm(t *testing.T) {
	pub, _ := newEdKeys(t)
	m, err := NewManager(Config{Kind: KindAccess, TTL: time.Minute, SigningMethod: MethodEd25519, PublicKey: pub})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}

	claims := Claims{TokenType: KindAccess, RegisteredClaims: gjwt.RegisteredClaims{
		Subject:   "u1",
		ID:        "j1",
		ExpiresAt: gjwt.NewNumericDate(time.Now().Add(time.Minute)),
	}}
	tok := gjwt.NewWithClaims(gjwt.SigningMethodHS256, claims)
	token, err := tok.SignedString([]byte("secret-secret-secret-secret"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}

	if _, err := m.Parse(token); !errors.Is(err, ErrSignature) {
		t.Fatalf("expected wrong algorithm to be rejected as signature failure, got %v", err)
	}
}

func TestParseIssuerAudienceAndLeeway(t *testing.T) {
	_, priv := newEdKeys(t)
	m, err := NewManager(Config{
		Kind:          KindAccess,
		TTL:           time.Minute,
		SigningMethod: MethodEd25519,
		PrivateKey:    priv,
		PublicKey:     priv.Public().(ed25519.PublicKey),
		Issuer:        "goaccount",
		Audience:      "ap",
		Leeway:        30 * time.Second,
	})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}

	access, _, err := m.Issue(testIdentity(), "j1")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := m.Parse(access); err != nil {
		t.Fatalf("expected valid token to parse: %v", err)
	}

	sign := func(c Claims) string {
		c.TokenType = KindAccess
		c.Subject = "u1"
		c.ID = "j1"
		s, err := gjwt.NewWithClaims(gjwt.SigningMethodEdDSA, c).SignedString(priv)
		if err != nil {
			t.Fatalf("sign: %v", err)
		}
		return s
	}

	wrongIssuer := sign(Claims{RegisteredClaims: gjwt.RegisteredClaims{
		Issuer:    "other",
		Audience:  gjwt.ClaimStrings{"ap"},
		ExpiresAt: gjwt.NewNumericDate(time.Now().Add(time.Minute)),
		IssuedAt:  gjwt.NewNumericDate(time.Now()),
	}})
	if _, err := m.Parse(wrongIssuer); !errors.Is(err, ErrInvalidClaims) {
		t.Fatalf("expected wrong issuer to fail, got %v", err)
	}

	wrongAudience := sign(Claims{RegisteredClaims: gjwt.RegisteredClaims{
		Issuer:    "goaccount",
		Audience:  gjwt.ClaimStrings{"mp"},
		ExpiresAt: gjwt.NewNumericDate(time.Now().Add(time.Minute)),
		IssuedAt:  gjwt.NewNumericDate(time.Now()),
	}})
	if _, err := m.Parse(wrongAudience); !errors.Is(err, ErrInvalidClaims) {
		t.Fatalf("expected wrong audience to fail, got %v", err)
	}

	within := sign(Claims{RegisteredClaims: gjwt.RegisteredClaims{
		Issuer:    "goaccount",
		Audience:  gjwt.ClaimStrings{"ap"},
		ExpiresAt: gjwt.NewNumericDate(time.Now().Add(-15 * time.Second)),
		IssuedAt:  gjwt.NewNumericDate(time.Now().Add(-time.Minute)),
	}})
	if _, err := m.Parse(within); err != nil {
		t.Fatalf("expected token within leeway to pass: %v", err)
	}

	expired := sign(Claims{RegisteredClaims: gjwt.RegisteredClaims{
		Issuer:    "goaccount",
		Audience:  gjwt.ClaimStrings{"ap"},
		ExpiresAt: gjwt.NewNumericDate(time.Now().Add(-2 * time.Minute)),
		IssuedAt:  gjwt.NewNumericDate(time.Now().Add(-3 * time.Minute)),
	}})
	if _, err := m.Parse(expired); !errors.Is(err, ErrExpired) {
		t.Fatalf("expected expired token to fail, got %v", err)
	}
}

func TestParseRejectsMissingExpiry(t *testing.T) {
	key := []byte("access-secret-access-secret")
	m := newHSManager(t, KindAccess, string(key), nil)

	tok := gjwt.NewWithClaims(gjwt.SigningMethodHS256, Claims{TokenType: KindAccess, RegisteredClaims: gjwt.RegisteredClaims{Subject: "u1", ID: "j1"}})
	token, err := tok.SignedString(key)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := m.Parse(token); err == nil {
		t.Fatal("expected token without exp to be rejected")
	}
}

func TestParseUnknownKidFails(t *testing.T) {
	pub1, priv1 := newEdKeys(t)
	pub2, _ := newEdKeys(t)
	m, err := NewManager(Config{
		Kind:          KindRefresh,
		TTL:           time.Minute,
		SigningMethod: MethodEd25519,
		PrivateKey:    priv1,
		PublicKey:     pub1,
		KeyID:         "k1",
		VerifyKeys:    map[string][]byte{"k1": pub1},
	})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}

	claims := Claims{TokenType: KindRefresh, RegisteredClaims: gjwt.RegisteredClaims{
		Subject:   "u1",
		ID:        "j1",
		ExpiresAt: gjwt.NewNumericDate(time.Now().Add(time.Minute)),
	}}
	tok := gjwt.NewWithClaims(gjwt.SigningMethodEdDSA, claims)
	tok.Header["kid"] = "k2"
	token, err := tok.SignedString(priv1)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	if _, err := m.Parse(token); !errors.Is(err, ErrSignature) {
		t.Fatalf("expected unknown kid failure, got %v", err)
	}

	good, _, err := m.Issue(testIdentity(), "j1")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := m.Parse(good); err != nil {
		t.Fatalf("expected known kid token to pass: %v", err)
	}

	m2, _ := NewManager(Config{Kind: KindRefresh, TTL: time.Minute, SigningMethod: MethodEd25519, PublicKey: pub2, VerifyKeys: map[string][]byte{"k1": pub2}})
	if _, err := m2.Parse(good); err == nil {
		t.Fatal("expected parse failure with mismatched key set")
	}
}

func TestNewManagerRejectsBadConfig(t *testing.T) {
	cases := []Config{
		{Kind: "xx", TTL: time.Minute, SigningMethod: MethodHS256, PrivateKey: []byte("k")},
		{Kind: KindAccess, TTL: 0, SigningMethod: MethodHS256, PrivateKey: []byte("k")},
		{Kind: KindAccess, TTL: time.Minute, SigningMethod: MethodHS256},
		{Kind: KindAccess, TTL: time.Minute, SigningMethod: "rs256", PrivateKey: []byte("k")},
		{Kind: KindAccess, TTL: time.Minute, SigningMethod: MethodEd25519},
		{Kind: KindAccess, TTL: time.Minute, SigningMethod: MethodHS256, PrivateKey: []byte("k"), Leeway: time.Hour},
	}
	for i, cfg := range cases {
		if _, err := NewManager(cfg); err == nil {
			t.Fatalf("case %d: expected config error", i)
		}
	}
}

func TestCodecKeepsKindsApart(t *testing.T) {
	codec, err := NewCodec(
		Config{TTL: 15 * time.Minute, SigningMethod: MethodHS256, PrivateKey: []byte("access-secret-access-secret")},
		Config{TTL: 7 * 24 * time.Hour, SigningMethod: MethodHS256, PrivateKey: []byte("refresh-secret-refresh-secret")},
	)
	if err != nil {
		t.Fatalf("new codec: %v", err)
	}
	if codec.TTL(KindAccess) != 15*time.Minute || codec.TTL(KindRefresh) != 7*24*time.Hour {
		t.Fatal("unexpected codec TTLs")
	}

	rt, _, err := codec.Issue(KindRefresh, testIdentity(), "j-rt")
	if err != nil {
		t.Fatalf("issue refresh: %v", err)
	}
	if _, err := codec.Parse(KindAccess, rt); err == nil {
		t.Fatal("refresh token must not verify as access token")
	}
	claims, err := codec.Parse(KindRefresh, rt)
	if err != nil {
		t.Fatalf("parse refresh: %v", err)
	}
	if claims.TokenType != KindRefresh {
		t.Fatalf("unexpected token type %q", claims.TokenType)
	}
	if _, err := codec.Parse("xx", rt); err == nil {
		t.Fatal("expected unknown kind error")
	}
}
