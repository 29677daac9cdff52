package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/replydash/replydash/internal/keys"
	"github.com/replydash/replydash/twitter"
)

type fakeProvider struct {
	srv *httptest.Server

	mu            sync.Mutex
	tokenCalls    atomic.Int64
	tokenStatus   int
	tokenResponse map[string]any
	profileStatus int
	profileData   map[string]any
}

func newFakeProvider() *fakeProvider {
	p := &fakeProvider{
		tokenStatus: 200,
		tokenResponse: map[string]any{
			"access_token":  "T1",
			"refresh_token": "R1",
			"token_type":    "bearer",
			"expires_in":    7200,
		},
		profileStatus: 200,
		profileData: map[string]any{
			"id":       "999",
			"name":     "Alice",
			"username": "alice",
		},
	}

	mux := http.NewServeMux()

	mux.HandleFunc("/2/oauth2/token", func(w http.ResponseWriter, r *http.Request) {
		p.tokenCalls.Add(1)

		p.mu.Lock()
		status, body := p.tokenStatus, p.tokenResponse
		p.mu.Unlock()

		w.WriteHeader(status)
		json.NewEncoder(w).Encode(body)
	})

	mux.HandleFunc("/2/users/me", func(w http.ResponseWriter, r *http.Request) {
		p.mu.Lock()
		status, data := p.profileStatus, p.profileData
		p.mu.Unlock()

		w.WriteHeader(status)
		json.NewEncoder(w).Encode(map[string]any{"data": data})
	})

	p.srv = httptest.NewServer(mux)

	return p
}

func (p *fakeProvider) setProfile(id, username string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.profileData = map[string]any{"id": id, "name": username, "username": username}
}

func (p *fakeProvider) setTokens(access, refresh string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.tokenResponse = map[string]any{
		"access_token":  access,
		"refresh_token": refresh,
		"token_type":    "bearer",
		"expires_in":    7200,
	}
}

func newTestServer(t *testing.T) (*Server, *fakeProvider) {
	t.Helper()

	provider := newFakeProvider()
	t.Cleanup(provider.srv.Close)

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_busy_timeout=5000", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, autoMigrate(db))

	twitterClient, err := twitter.NewClient(twitter.ClientArgs{
		ClientId:          "client-id",
		ClientSecret:      "client-secret",
		RedirectUri:       "http://localhost:8080/auth/twitter/callback",
		AuthorizeEndpoint: provider.srv.URL + "/i/oauth2/authorize",
		TokenEndpoint:     provider.srv.URL + "/2/oauth2/token",
		APIBase:           provider.srv.URL,
	})
	require.NoError(t, err)

	signingKey, err := keys.GenerateKey(nil)
	require.NoError(t, err)

	s, err := NewServer(ServerArgs{
		Db:           db,
		Twitter:      twitterClient,
		SigningKey:   signingKey,
		CookieSecret: "test-cookie-secret",
	})
	require.NoError(t, err)

	return s, provider
}

// startLogin drives the initiator and returns the state the provider would
// echo back plus the auth request cookie the browser would carry.
func startLogin(t *testing.T, s *Server) (string, *http.Cookie) {
	t.Helper()

	req := httptest.NewRequest("GET", "/auth/twitter?action=login", nil)
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)

	require.Equal(t, 302, rec.Code)

	loc, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)

	state := loc.Query().Get("state")
	require.NotEmpty(t, state)

	var authCookie *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == authRequestCookieName {
			authCookie = c
		}
	}
	require.NotNil(t, authCookie)

	return state, authCookie
}

func doCallback(t *testing.T, s *Server, query string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest("GET", "/auth/twitter/callback?"+query, nil)
	for _, c := range cookies {
		if c != nil {
			req.AddCookie(c)
		}
	}

	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)

	require.Equal(t, 302, rec.Code)

	return rec
}

func TestLoginRedirectParams(t *testing.T) {
	assert := assert.New(t)

	s, provider := newTestServer(t)

	req := httptest.NewRequest("GET", "/auth/twitter?action=login", nil)
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)

	assert.Equal(302, rec.Code)

	loc, err := url.Parse(rec.Header().Get("Location"))
	assert.NoError(err)
	assert.Equal(provider.srv.URL+"/i/oauth2/authorize", loc.Scheme+"://"+loc.Host+loc.Path)

	q := loc.Query()
	assert.Equal("code", q.Get("response_type"))
	assert.Equal("client-id", q.Get("client_id"))
	assert.NotEmpty(q.Get("state"))
	assert.NotEmpty(q.Get("code_challenge"))
	assert.Equal("S256", q.Get("code_challenge_method"))
}

func TestLoginUnknownAction(t *testing.T) {
	assert := assert.New(t)

	s, _ := newTestServer(t)

	req := httptest.NewRequest("GET", "/auth/twitter", nil)
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)

	assert.Equal(400, rec.Code)
}

func TestCallbackProviderErrorPassthrough(t *testing.T) {
	assert := assert.New(t)

	s, provider := newTestServer(t)

	rec := doCallback(t, s, "error=access_denied")

	assert.Equal("/auth/error?error=access_denied", rec.Header().Get("Location"))
	assert.Equal(int64(0), provider.tokenCalls.Load())
}

func TestCallbackMissingCode(t *testing.T) {
	assert := assert.New(t)

	s, provider := newTestServer(t)

	rec := doCallback(t, s, "state=whatever")

	assert.Equal("/auth/error?error=no_code", rec.Header().Get("Location"))
	assert.Equal(int64(0), provider.tokenCalls.Load())
}

func TestCallbackStateMismatch(t *testing.T) {
	assert := assert.New(t)

	s, provider := newTestServer(t)

	_, authCookie := startLogin(t, s)

	rec := doCallback(t, s, "code=abc123&state=not-the-issued-state", authCookie)

	assert.Equal("/auth/error?error=state_mismatch", rec.Header().Get("Location"))
	assert.Equal(int64(0), provider.tokenCalls.Load())
}

func TestCallbackMissingAuthRequestCookie(t *testing.T) {
	assert := assert.New(t)

	s, provider := newTestServer(t)

	state, _ := startLogin(t, s)

	rec := doCallback(t, s, "code=abc123&state="+state)

	assert.Equal("/auth/error?error=state_mismatch", rec.Header().Get("Location"))
	assert.Equal(int64(0), provider.tokenCalls.Load())
}

func TestCallbackTokenExchangeFailed(t *testing.T) {
	assert := assert.New(t)

	s, provider := newTestServer(t)

	provider.mu.Lock()
	provider.tokenStatus = 500
	provider.mu.Unlock()

	state, authCookie := startLogin(t, s)
	rec := doCallback(t, s, "code=abc123&state="+state, authCookie)

	assert.Equal("/auth/error?error=token_exchange_failed", rec.Header().Get("Location"))
	assert.Equal(int64(1), provider.tokenCalls.Load())

	var userCount, credCount int64
	s.db.Model(&User{}).Count(&userCount)
	s.db.Model(&TwitterCredential{}).Count(&credCount)
	assert.Equal(int64(0), userCount)
	assert.Equal(int64(0), credCount)
}

func TestCallbackProfileFetchFailed(t *testing.T) {
	assert := assert.New(t)

	s, provider := newTestServer(t)

	provider.mu.Lock()
	provider.profileStatus = 500
	provider.mu.Unlock()

	state, authCookie := startLogin(t, s)
	rec := doCallback(t, s, "code=abc123&state="+state, authCookie)

	assert.Equal("/auth/error?error=profile_fetch_failed", rec.Header().Get("Location"))

	var userCount int64
	s.db.Model(&User{}).Count(&userCount)
	assert.Equal(int64(0), userCount)
}

func TestCallbackSuccess(t *testing.T) {
	assert := assert.New(t)

	s, _ := newTestServer(t)

	state, authCookie := startLogin(t, s)
	rec := doCallback(t, s, "code=abc123&state="+state, authCookie)

	assert.Equal("/", rec.Header().Get("Location"))

	var users []User
	assert.NoError(s.db.Find(&users).Error)
	assert.Len(users, 1)
	assert.Equal("999", users[0].TwitterId)
	assert.Equal("alice", users[0].TwitterHandle)

	var cred TwitterCredential
	assert.NoError(s.db.Where("user_id = ?", users[0].ID).Limit(1).Find(&cred).Error)
	assert.Equal("T1", cred.AccessToken)
	assert.Equal("R1", cred.RefreshToken)
	assert.Equal("999", cred.TwitterId)
	assert.Equal("alice", cred.TwitterHandle)

	var sessions []Session
	assert.NoError(s.db.Find(&sessions).Error)
	assert.Len(sessions, 1)
	assert.Equal(users[0].ID, sessions[0].UserId)
}

func TestRepeatLoginIsIdempotentAndOverwritesCredentials(t *testing.T) {
	assert := assert.New(t)

	s, provider := newTestServer(t)

	state, authCookie := startLogin(t, s)
	doCallback(t, s, "code=abc123&state="+state, authCookie)

	provider.setTokens("T2", "R2")

	state, authCookie = startLogin(t, s)
	rec := doCallback(t, s, "code=def456&state="+state, authCookie)

	assert.Equal("/", rec.Header().Get("Location"))

	var users []User
	assert.NoError(s.db.Find(&users).Error)
	assert.Len(users, 1)

	var creds []TwitterCredential
	assert.NoError(s.db.Where("user_id = ?", users[0].ID).Find(&creds).Error)
	assert.Len(creds, 1)
	assert.Equal("T2", creds[0].AccessToken)
	assert.Equal("R2", creds[0].RefreshToken)
}

func TestCallbackMissingRefreshTokenStoredEmpty(t *testing.T) {
	assert := assert.New(t)

	s, provider := newTestServer(t)

	provider.mu.Lock()
	provider.tokenResponse = map[string]any{
		"access_token": "T1",
		"token_type":   "bearer",
		"expires_in":   7200,
	}
	provider.mu.Unlock()

	state, authCookie := startLogin(t, s)
	doCallback(t, s, "code=abc123&state="+state, authCookie)

	var cred TwitterCredential
	assert.NoError(s.db.Limit(1).Find(&cred).Error)
	assert.Equal("T1", cred.AccessToken)
	assert.Equal("", cred.RefreshToken)
}

func TestAuthRequestCookieIsSingleUse(t *testing.T) {
	assert := assert.New(t)

	s, _ := newTestServer(t)

	state, authCookie := startLogin(t, s)
	rec := doCallback(t, s, "code=abc123&state="+state, authCookie)

	var cleared bool
	for _, c := range rec.Result().Cookies() {
		if c.Name == authRequestCookieName && c.MaxAge < 0 {
			cleared = true
		}
	}
	assert.True(cleared)
}

func TestLogoutDeletesSession(t *testing.T) {
	assert := assert.New(t)

	s, _ := newTestServer(t)

	state, authCookie := startLogin(t, s)
	rec := doCallback(t, s, "code=abc123&state="+state, authCookie)

	var sessionCookie *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == "session" {
			sessionCookie = c
		}
	}
	require.NotNil(t, sessionCookie)

	req := httptest.NewRequest("GET", "/logout", nil)
	req.AddCookie(sessionCookie)
	logoutRec := httptest.NewRecorder()
	s.e.ServeHTTP(logoutRec, req)

	assert.Equal(302, logoutRec.Code)

	var sessionCount int64
	s.db.Model(&Session{}).Count(&sessionCount)
	assert.Equal(int64(0), sessionCount)
}

func TestAuthErrorPage(t *testing.T) {
	assert := assert.New(t)

	s, _ := newTestServer(t)

	req := httptest.NewRequest("GET", "/auth/error?error=token_exchange_failed", nil)
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)

	assert.Equal(200, rec.Code)

	var body map[string]string
	assert.NoError(json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal("token_exchange_failed", body["error"])
}
