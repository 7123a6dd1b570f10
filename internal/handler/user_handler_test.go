package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hitoshi/mealtrack/internal/middleware"
	"github.com/hitoshi/mealtrack/internal/model"
	"github.com/hitoshi/mealtrack/internal/user"
)

// --- モック定義 ---

// mockUserService はUserServiceInterfaceのモック実装。
type mockUserService struct {
	registerFn func(ctx context.Context, name, email, presentedToken string) (*user.RegisterResult, error)
}

func (m *mockUserService) Register(ctx context.Context, name, email, presentedToken string) (*user.RegisterResult, error) {
	if m.registerFn != nil {
		return m.registerFn(ctx, name, email, presentedToken)
	}
	return &user.RegisterResult{
		User:          &model.User{ID: "user-123", Name: name, Email: email},
		SessionID:     "new-session-token",
		SessionIssued: true,
	}, nil
}

func testUserHandlerConfig() UserHandlerConfig {
	return UserHandlerConfig{
		CookieDomain:        "",
		CookieSecure:        false,
		SessionCookieMaxAge: 604800,
	}
}

func findSessionCookie(resp *http.Response) *http.Cookie {
	for _, c := range resp.Cookies() {
		if c.Name == middleware.SessionCookieName {
			return c
		}
	}
	return nil
}

func decodeAPIError(t *testing.T, resp *http.Response) apiErrorResponse {
	t.Helper()
	var errResp apiErrorResponse
	if err := json.NewDecoder(resp.Body).Decode(&errResp); err != nil {
		t.Fatalf("failed to decode error response: %v", err)
	}
	return errResp
}

// --- POST /users/ テスト ---

func TestUserHandler_Register_Success_SetsSessionCookie(t *testing.T) {
	svc := &mockUserService{
		registerFn: func(ctx context.Context, name, email, presentedToken string) (*user.RegisterResult, error) {
			if name != "山田太郎" {
				t.Errorf("name = %q, want %q", name, "山田太郎")
			}
			if email != "taro@example.com" {
				t.Errorf("email = %q, want %q", email, "taro@example.com")
			}
			if presentedToken != "" {
				t.Errorf("presentedToken = %q, want empty", presentedToken)
			}
			return &user.RegisterResult{
				User:          &model.User{ID: "user-123", Name: name, Email: email},
				SessionID:     "new-session-token",
				SessionIssued: true,
			}, nil
		},
	}

	h := NewUserHandler(svc, testUserHandlerConfig(), nil)

	body := strings.NewReader(`{"name":"山田太郎","email":"taro@example.com"}`)
	req := httptest.NewRequest(http.MethodPost, "/users/", body)
	w := httptest.NewRecorder()

	h.Register(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusCreated {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusCreated)
	}

	cookie := findSessionCookie(resp)
	if cookie == nil {
		t.Fatal("expected session cookie to be set")
	}
	if cookie.Value != "new-session-token" {
		t.Errorf("cookie value = %q, want %q", cookie.Value, "new-session-token")
	}
	if cookie.Path != "/" {
		t.Errorf("cookie path = %q, want %q", cookie.Path, "/")
	}
	if cookie.MaxAge != 604800 {
		t.Errorf("cookie MaxAge = %d, want %d", cookie.MaxAge, 604800)
	}
	if !cookie.HttpOnly {
		t.Error("cookie should be HttpOnly")
	}
}

func TestUserHandler_Register_TokenReused_NoCookieSet(t *testing.T) {
	svc := &mockUserService{
		registerFn: func(ctx context.Context, name, email, presentedToken string) (*user.RegisterResult, error) {
			return &user.RegisterResult{
				User:          &model.User{ID: "user-123"},
				SessionID:     presentedToken,
				SessionIssued: false,
			}, nil
		},
	}

	h := NewUserHandler(svc, testUserHandlerConfig(), nil)

	body := strings.NewReader(`{"name":"山田太郎","email":"taro@example.com"}`)
	req := httptest.NewRequest(http.MethodPost, "/users/", body)
	req.AddCookie(&http.Cookie{Name: middleware.SessionCookieName, Value: "reusable-token"})
	w := httptest.NewRecorder()

	h.Register(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusCreated {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusCreated)
	}
	if cookie := findSessionCookie(resp); cookie != nil {
		t.Errorf("expected no Set-Cookie when token is reused, got %q", cookie.Value)
	}
}

func TestUserHandler_Register_PassesPresentedToken(t *testing.T) {
	var gotToken string
	svc := &mockUserService{
		registerFn: func(ctx context.Context, name, email, presentedToken string) (*user.RegisterResult, error) {
			gotToken = presentedToken
			return &user.RegisterResult{
				User:          &model.User{ID: "user-123"},
				SessionID:     "fresh-token",
				SessionIssued: true,
			}, nil
		},
	}

	h := NewUserHandler(svc, testUserHandlerConfig(), nil)

	body := strings.NewReader(`{"name":"山田太郎","email":"taro@example.com"}`)
	req := httptest.NewRequest(http.MethodPost, "/users/", body)
	req.AddCookie(&http.Cookie{Name: middleware.SessionCookieName, Value: "existing-token"})
	w := httptest.NewRecorder()

	h.Register(w, req)

	if gotToken != "existing-token" {
		t.Errorf("presentedToken = %q, want %q", gotToken, "existing-token")
	}
}

func TestUserHandler_Register_InvalidJSON_ReturnsBadRequest(t *testing.T) {
	h := NewUserHandler(&mockUserService{}, testUserHandlerConfig(), nil)

	body := strings.NewReader(`{invalid`)
	req := httptest.NewRequest(http.MethodPost, "/users/", body)
	w := httptest.NewRecorder()

	h.Register(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusBadRequest)
	}

	errResp := decodeAPIError(t, resp)
	if errResp.Code != model.ErrCodeInvalidRequest {
		t.Errorf("error code = %q, want %q", errResp.Code, model.ErrCodeInvalidRequest)
	}
}

func TestUserHandler_Register_MissingFields_ReturnsValidationFailed(t *testing.T) {
	h := NewUserHandler(&mockUserService{}, testUserHandlerConfig(), nil)

	body := strings.NewReader(`{}`)
	req := httptest.NewRequest(http.MethodPost, "/users/", body)
	w := httptest.NewRecorder()

	h.Register(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusBadRequest)
	}

	errResp := decodeAPIError(t, resp)
	if errResp.Code != model.ErrCodeValidationFailed {
		t.Errorf("error code = %q, want %q", errResp.Code, model.ErrCodeValidationFailed)
	}
}

func TestUserHandler_Register_InvalidEmail_ReturnsValidationFailed(t *testing.T) {
	h := NewUserHandler(&mockUserService{}, testUserHandlerConfig(), nil)

	body := strings.NewReader(`{"name":"山田太郎","email":"not-an-email"}`)
	req := httptest.NewRequest(http.MethodPost, "/users/", body)
	w := httptest.NewRecorder()

	h.Register(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusBadRequest)
	}

	errResp := decodeAPIError(t, resp)
	if errResp.Code != model.ErrCodeValidationFailed {
		t.Errorf("error code = %q, want %q", errResp.Code, model.ErrCodeValidationFailed)
	}
}

func TestUserHandler_Register_DuplicateEmail_ReturnsBadRequest(t *testing.T) {
	svc := &mockUserService{
		registerFn: func(ctx context.Context, name, email, presentedToken string) (*user.RegisterResult, error) {
			return nil, model.NewUserAlreadyExistsError(email)
		},
	}

	h := NewUserHandler(svc, testUserHandlerConfig(), nil)

	body := strings.NewReader(`{"name":"山田太郎","email":"taro@example.com"}`)
	req := httptest.NewRequest(http.MethodPost, "/users/", body)
	w := httptest.NewRecorder()

	h.Register(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusBadRequest)
	}

	errResp := decodeAPIError(t, resp)
	if errResp.Code != model.ErrCodeUserAlreadyExists {
		t.Errorf("error code = %q, want %q", errResp.Code, model.ErrCodeUserAlreadyExists)
	}
}

func TestUserHandler_Register_InternalError_Returns500(t *testing.T) {
	svc := &mockUserService{
		registerFn: func(ctx context.Context, name, email, presentedToken string) (*user.RegisterResult, error) {
			return nil, errors.New("db down")
		},
	}

	h := NewUserHandler(svc, testUserHandlerConfig(), nil)

	body := strings.NewReader(`{"name":"山田太郎","email":"taro@example.com"}`)
	req := httptest.NewRequest(http.MethodPost, "/users/", body)
	w := httptest.NewRecorder()

	h.Register(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusInternalServerError {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusInternalServerError)
	}
}

func TestUserHandler_Register_SecureCookie(t *testing.T) {
	cfg := testUserHandlerConfig()
	cfg.CookieSecure = true

	h := NewUserHandler(&mockUserService{}, cfg, nil)

	body := strings.NewReader(`{"name":"山田太郎","email":"taro@example.com"}`)
	req := httptest.NewRequest(http.MethodPost, "/users/", body)
	w := httptest.NewRecorder()

	h.Register(w, req)

	cookie := findSessionCookie(w.Result())
	if cookie == nil {
		t.Fatal("expected session cookie to be set")
	}
	if !cookie.Secure {
		t.Error("cookie should be Secure when configured")
	}
}

// --- ルーティングテスト ---

func TestSetupUserRoutes_RegisterEndpoint(t *testing.T) {
	router := SetupUserRoutes(&mockUserService{}, testUserHandlerConfig())

	body := strings.NewReader(`{"name":"山田太郎","email":"taro@example.com"}`)
	req := httptest.NewRequest(http.MethodPost, "/users/", body)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Errorf("status = %d, want %d", w.Code, http.StatusCreated)
	}
}
