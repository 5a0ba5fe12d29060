package router

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"golang.org/x/crypto/bcrypt"

	"github.com/iliyamo/todoer/internal/config"
	"github.com/iliyamo/todoer/internal/handler"
	"github.com/iliyamo/todoer/internal/kv"
	"github.com/iliyamo/todoer/internal/middleware"
	"github.com/iliyamo/todoer/internal/oauth"
	"github.com/iliyamo/todoer/internal/repository"
	"github.com/iliyamo/todoer/internal/service"
	"github.com/iliyamo/todoer/internal/testsupport"
)

const testSecret = "router-test-secret"

func newTestServer(t *testing.T) *echo.Echo {
	t.Helper()
	db := testsupport.OpenSQLite(t)
	cfg := config.Config{JWTSecret: testSecret, AccessTTLMin: 15, RefreshTTLDays: 1, SiteID: 1, BaseURL: "http://localhost:8000"}

	users := repository.NewUserRepo(db)
	accounts := service.NewAccounts(users, repository.NewSocialAccountRepo(db), nil, bcrypt.MinCost)
	authH := handler.NewAuthHandler(cfg, accounts, users, repository.NewTokenRepo(db))
	flow := oauth.NewFlow(repository.NewProviderRepo(db), kv.NewMemoryStore(), cfg.SiteID, cfg.BaseURL)

	e := echo.New()
	RegisterRoutes(e, handler.NewHealthHandler(db))
	RegisterAuth(e, authH, handler.NewOAuthHandler(authH, flow), testSecret,
		middleware.NewTokenBucket(config.RateLimitConfig{}, nil), middleware.NewResponseCache(config.CacheConfig{}, nil))
	RegisterTodos(e, handler.NewTodoHandler(service.NewTodoManager(repository.NewTodoRepo(db))), testSecret)
	return e
}

func do(t *testing.T, e *echo.Echo, method, path, body, bearer string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	out := map[string]any{}
	if strings.HasPrefix(rec.Header().Get(echo.HeaderContentType), echo.MIMEApplicationJSON) {
		if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
			t.Fatalf("%s %s: decode %q: %v", method, path, rec.Body.String(), err)
		}
	}
	return rec, out
}

// tokens pulls the access and refresh tokens out of an auth response.
func tokens(t *testing.T, body map[string]any) (access, refresh string) {
	t.Helper()
	a, _ := body["access"].(map[string]any)
	r, _ := body["refresh"].(map[string]any)
	access, _ = a["token"].(string)
	refresh, _ = r["token"].(string)
	if access == "" || refresh == "" {
		t.Fatalf("missing tokens in %v", body)
	}
	return access, refresh
}

func TestHealth(t *testing.T) {
	e := newTestServer(t)
	rec, body := do(t, e, http.MethodGet, "/healthz", "", "")
	if rec.Code != http.StatusOK || body["status"] != "ok" {
		t.Fatalf("healthz = %d %v", rec.Code, body)
	}
}

func TestRegisterLoginAndSession(t *testing.T) {
	e := newTestServer(t)

	rec, body := do(t, e, http.MethodPost, "/v1/auth/register", `{"email":"Alice@Example.com","password":"s3cret-pass"}`, "")
	if rec.Code != http.StatusCreated {
		t.Fatalf("register = %d %v", rec.Code, body)
	}
	user, _ := body["user"].(map[string]any)
	if user["email"] != "alice@example.com" || !strings.HasPrefix(user["username"].(string), service.UsernamePrefix) {
		t.Fatalf("unexpected user %v", user)
	}

	rec, body = do(t, e, http.MethodPost, "/v1/auth/login", `{"email":"alice@example.com","password":"wrong"}`, "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("bad login = %d %v", rec.Code, body)
	}
	rec, body = do(t, e, http.MethodPost, "/v1/auth/login", `{"email":"alice@example.com","password":"s3cret-pass"}`, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("login = %d %v", rec.Code, body)
	}
	access, refresh := tokens(t, body)

	rec, body = do(t, e, http.MethodGet, "/v1/me", "", access)
	if rec.Code != http.StatusOK || body["has_password"] != true {
		t.Fatalf("me = %d %v", rec.Code, body)
	}
	if rec, _ = do(t, e, http.MethodGet, "/v1/me", "", ""); rec.Code != http.StatusUnauthorized {
		t.Fatalf("me without token = %d", rec.Code)
	}

	// refresh rotates: the old token stops working
	rec, body = do(t, e, http.MethodPost, "/v1/auth/refresh", `{"refresh_token":"`+refresh+`"}`, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("refresh = %d %v", rec.Code, body)
	}
	_, rotated := tokens(t, body)
	if rec, _ = do(t, e, http.MethodPost, "/v1/auth/refresh", `{"refresh_token":"`+refresh+`"}`, ""); rec.Code != http.StatusUnauthorized {
		t.Fatalf("reused refresh = %d", rec.Code)
	}

	rec, body = do(t, e, http.MethodPost, "/v1/auth/refresh-access", `{"refresh_token":"`+rotated+`"}`, "")
	if rec.Code != http.StatusOK || body["access"] == nil {
		t.Fatalf("refresh-access = %d %v", rec.Code, body)
	}

	if rec, _ = do(t, e, http.MethodPost, "/v1/auth/logout", `{"refresh_token":"`+rotated+`"}`, ""); rec.Code != http.StatusNoContent {
		t.Fatalf("logout = %d", rec.Code)
	}
	if rec, _ = do(t, e, http.MethodPost, "/v1/auth/refresh-access", `{"refresh_token":"`+rotated+`"}`, ""); rec.Code != http.StatusUnauthorized {
		t.Fatalf("refresh after logout = %d", rec.Code)
	}
	if rec, _ = do(t, e, http.MethodPost, "/v1/auth/logout", "", ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("logout without credentials = %d", rec.Code)
	}
}

func TestRegisterValidation(t *testing.T) {
	e := newTestServer(t)
	rec, body := do(t, e, http.MethodPost, "/v1/auth/register", `{"email":"","password":"pw"}`, "")
	if rec.Code != http.StatusBadRequest || body["error"] != "Email/password required!" {
		t.Fatalf("register without email = %d %v", rec.Code, body)
	}
}

func TestTodosRequireAuthAndAreScoped(t *testing.T) {
	e := newTestServer(t)

	if rec, _ := do(t, e, http.MethodGet, "/v1/todos", "", ""); rec.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous list = %d", rec.Code)
	}

	_, body := do(t, e, http.MethodPost, "/v1/auth/register", `{"email":"a@example.com","password":"pw-a"}`, "")
	aliceToken, _ := tokens(t, body)
	_, body = do(t, e, http.MethodPost, "/v1/auth/register", `{"email":"b@example.com","password":"pw-b"}`, "")
	bobToken, _ := tokens(t, body)

	rec, body := do(t, e, http.MethodPost, "/v1/todos", `{"content":"water plants"}`, aliceToken)
	if rec.Code != http.StatusCreated || body["message"] != "Todo added successfully!" {
		t.Fatalf("create = %d %v", rec.Code, body)
	}
	item, _ := body["item"].(map[string]any)
	path := "/v1/todos/" + jsonID(item["id"])

	if rec, body = do(t, e, http.MethodPost, path+"/toggle", "", bobToken); rec.Code != http.StatusNotFound {
		t.Fatalf("toggle by bob = %d %v", rec.Code, body)
	}
	if rec, body = do(t, e, http.MethodDelete, path, "", aliceToken); rec.Code != http.StatusOK {
		t.Fatalf("delete = %d %v", rec.Code, body)
	}
	rec, body = do(t, e, http.MethodGet, "/v1/todos/trash", "", aliceToken)
	if items, _ := body["items"].([]any); rec.Code != http.StatusOK || len(items) != 1 {
		t.Fatalf("trash = %d %v", rec.Code, body)
	}
	if rec, body = do(t, e, http.MethodPost, path+"/restore", "", aliceToken); rec.Code != http.StatusOK {
		t.Fatalf("restore = %d %v", rec.Code, body)
	}

	// deleting the account takes the items with it
	if rec, _ = do(t, e, http.MethodDelete, "/v1/me", "", aliceToken); rec.Code != http.StatusNoContent {
		t.Fatalf("delete me = %d", rec.Code)
	}
	if rec, _ = do(t, e, http.MethodGet, "/v1/me", "", aliceToken); rec.Code != http.StatusUnauthorized {
		t.Fatalf("me after delete = %d", rec.Code)
	}
}

func TestOAuthRoutesWithoutProviders(t *testing.T) {
	e := newTestServer(t)

	rec, body := do(t, e, http.MethodGet, "/v1/auth/providers", "", "")
	if providers, ok := body["providers"].([]any); rec.Code != http.StatusOK || !ok || len(providers) != 0 {
		t.Fatalf("providers = %d %v", rec.Code, body)
	}
	if rec, _ = do(t, e, http.MethodGet, "/v1/auth/oauth/google/login", "", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("login with unknown provider = %d", rec.Code)
	}
	if rec, _ = do(t, e, http.MethodGet, "/v1/auth/oauth/google/callback?state=nope&code=x", "", ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("callback with bad state = %d", rec.Code)
	}
	if rec, _ = do(t, e, http.MethodGet, "/v1/auth/oauth/google/callback?error=access_denied", "", ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("callback with provider error = %d", rec.Code)
	}
}

func jsonID(v any) string {
	f, _ := v.(float64)
	return strconv.FormatFloat(f, 'f', 0, 64)
}
