package auth

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/oauth2"

	sharedauth "resume-ats/internal/shared/auth"
	"resume-ats/internal/shared/server/middleware"
)

func fakeGoogle(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil || r.Form.Get("code") != "good-code" {
			http.Error(w, `{"error":"invalid_grant"}`, http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"at-1","token_type":"Bearer","expires_in":3600}`))
	})
	mux.HandleFunc("/userinfo", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer at-1" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"123","email":"jane@example.com","name":"Jane Doe"}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func setupAuthRouter(t *testing.T, cfg GoogleConfig) (*gin.Engine, *GoogleService, *sharedauth.Signer) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	signer, err := sharedauth.NewSigner("test-secret", time.Hour, false)
	if err != nil {
		t.Fatalf("NewSigner: %v", err)
	}
	svc := NewGoogleService(cfg, signer)

	router := gin.New()
	router.Use(middleware.IdentityWith(middleware.IdentityConfig{Tokens: signer, Public: []string{StartPath, CallbackPath}}))
	svc.RegisterRoutes(router.Group("/api/v1"))
	return router, svc, signer
}

func get(router http.Handler, target string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	return resp
}

func TestGoogleSignIn(t *testing.T) {
	google := fakeGoogle(t)
	router, svc, signer := setupAuthRouter(t, GoogleConfig{
		ClientID:     "client",
		ClientSecret: "secret",
		RedirectURL:  "http://localhost:8080/api/v1/auth/google/callback",
		UIRedirect:   "http://localhost:5173/signed-in",
	})
	svc.oauth.Endpoint = oauth2.Endpoint{
		AuthURL:   google.URL + "/auth",
		TokenURL:  google.URL + "/token",
		AuthStyle: oauth2.AuthStyleInParams,
	}
	svc.userInfoURL = google.URL + "/userinfo"

	start := get(router, StartPath, nil)
	if start.Code != http.StatusFound {
		t.Fatalf("start status = %d", start.Code)
	}
	loc, err := url.Parse(start.Header().Get("Location"))
	if err != nil {
		t.Fatalf("parse location: %v", err)
	}
	state := loc.Query().Get("state")
	if state == "" || loc.Query().Get("client_id") != "client" {
		t.Fatalf("unexpected auth redirect %s", loc)
	}

	cb := get(router, CallbackPath+"?state="+state+"&code=good-code", nil)
	if cb.Code != http.StatusFound {
		t.Fatalf("callback status = %d body=%s", cb.Code, cb.Body.String())
	}
	ui, err := url.Parse(cb.Header().Get("Location"))
	if err != nil {
		t.Fatalf("parse ui redirect: %v", err)
	}
	if ui.Host != "localhost:5173" || ui.Path != "/signed-in" {
		t.Fatalf("ui redirect = %s", ui)
	}
	claims, err := signer.Verify(ui.Query().Get("token"))
	if err != nil {
		t.Fatalf("issued token: %v", err)
	}
	if claims.Subject != "google:123" || claims.Email != "jane@example.com" {
		t.Fatalf("claims = %+v", claims)
	}

	// States are single use.
	if again := get(router, CallbackPath+"?state="+state+"&code=good-code", nil); again.Code != http.StatusBadRequest {
		t.Fatalf("replayed state status = %d", again.Code)
	}

	meResp := get(router, "/api/v1/me", map[string]string{"Authorization": "Bearer " + ui.Query().Get("token")})
	if meResp.Code != http.StatusOK {
		t.Fatalf("me status = %d", meResp.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(meResp.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode me: %v", err)
	}
	if body["userId"] != "user:google:123" || body["guest"] != false || body["name"] != "Jane Doe" {
		t.Fatalf("me = %v", body)
	}
}

func TestGoogleCallbackErrors(t *testing.T) {
	google := fakeGoogle(t)
	router, svc, _ := setupAuthRouter(t, GoogleConfig{
		ClientID:     "client",
		ClientSecret: "secret",
		RedirectURL:  "http://localhost/cb",
		UIRedirect:   "http://localhost/ui",
	})
	svc.oauth.Endpoint = oauth2.Endpoint{AuthURL: google.URL + "/auth", TokenURL: google.URL + "/token", AuthStyle: oauth2.AuthStyleInParams}
	svc.userInfoURL = google.URL + "/userinfo"

	if resp := get(router, CallbackPath, nil); resp.Code != http.StatusBadRequest {
		t.Fatalf("missing params status = %d", resp.Code)
	}
	if resp := get(router, CallbackPath+"?state=unknown&code=good-code", nil); resp.Code != http.StatusBadRequest {
		t.Fatalf("unknown state status = %d", resp.Code)
	}

	svc.states.put("s-1")
	if resp := get(router, CallbackPath+"?state=s-1&code=bad-code", nil); resp.Code != http.StatusBadRequest {
		t.Fatalf("bad code status = %d", resp.Code)
	}
}

func TestGoogleNotConfigured(t *testing.T) {
	router, svc, _ := setupAuthRouter(t, GoogleConfig{})
	if svc.Configured() {
		t.Fatal("expected unconfigured service")
	}
	if resp := get(router, StartPath, nil); resp.Code != http.StatusServiceUnavailable {
		t.Fatalf("start status = %d", resp.Code)
	}
	guest := get(router, "/api/v1/me", map[string]string{middleware.HeaderGuestID: "g-1"})
	if guest.Code != http.StatusOK {
		t.Fatalf("me status = %d", guest.Code)
	}
}

func TestStateStoreExpiry(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s := newStateStore(func() time.Time { return now })
	s.put("a")
	now = now.Add(stateTTL + time.Second)
	if s.consume("a") {
		t.Fatal("expired state accepted")
	}
	s.put("b")
	if !s.consume("b") || s.consume("b") {
		t.Fatal("state must be accepted exactly once")
	}
}

func TestAppendToken(t *testing.T) {
	got, err := appendToken("http://ui.local/done?x=1", "tok")
	if err != nil || got != "http://ui.local/done?token=tok&x=1" {
		t.Fatalf("appendToken = %q, %v", got, err)
	}
	if _, err := appendToken("", "tok"); err == nil {
		t.Fatal("expected error for empty redirect")
	}
}
