// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/mail"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/mealtrack/internal/metrics"
	"github.com/hitoshi/mealtrack/internal/middleware"
	"github.com/hitoshi/mealtrack/internal/model"
	"github.com/hitoshi/mealtrack/internal/user"
)

// UserServiceInterface はユーザーハンドラーが必要とするサービスインターフェース。
type UserServiceInterface interface {
	// Register はユーザーを登録し、セッショントークンを決定する。
	Register(ctx context.Context, name, email, presentedToken string) (*user.RegisterResult, error)
}

// UserHandlerConfig はユーザーハンドラーの設定。
type UserHandlerConfig struct {
	CookieDomain        string
	CookieSecure        bool
	SessionCookieMaxAge int // セッションCookieの有効期間（秒）。クライアント向けヒントのみ
}

// UserHandler はユーザー登録のHTTPハンドラー。
type UserHandler struct {
	service   UserServiceInterface
	config    UserHandlerConfig
	collector metrics.MetricsCollector
}

// NewUserHandler はUserHandlerを生成する。
// collectorはnil可（テストやメトリクス無効時）。
func NewUserHandler(service UserServiceInterface, config UserHandlerConfig, collector metrics.MetricsCollector) *UserHandler {
	return &UserHandler{
		service:   service,
		config:    config,
		collector: collector,
	}
}

// createUserRequest はユーザー登録リクエストのボディ。
type createUserRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// validate は登録リクエストを検証し、フィールドごとのエラーメッセージを返す。
func (req *createUserRequest) validate() []string {
	var messages []string
	if req.Name == "" {
		messages = append(messages, "名前は必須です。")
	}
	if req.Email == "" {
		messages = append(messages, "メールアドレスは必須です。")
	} else if _, err := mail.ParseAddress(req.Email); err != nil {
		messages = append(messages, "メールアドレスの形式が不正です。")
	}
	return messages
}

// Register はユーザー登録を処理する。
// リクエストにセッションCookieが無い場合、または提示されたトークンが
// 既存ユーザーのものだった場合は、新しいセッションCookieを発行する。
// POST /users/
func (h *UserHandler) Register(w http.ResponseWriter, r *http.Request) {
	// 既存のセッショントークン（あれば）を読み取る
	presentedToken := ""
	if cookie, err := r.Cookie(middleware.SessionCookieName); err == nil {
		presentedToken = cookie.Value
	}

	var req createUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError())
		return
	}

	if messages := req.validate(); len(messages) > 0 {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewValidationError(messages))
		return
	}

	result, err := h.service.Register(r.Context(), req.Name, req.Email, presentedToken)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	if result.SessionIssued {
		http.SetCookie(w, &http.Cookie{
			Name:     middleware.SessionCookieName,
			Value:    result.SessionID,
			Path:     "/",
			Domain:   h.config.CookieDomain,
			MaxAge:   h.config.SessionCookieMaxAge,
			HttpOnly: true,
			Secure:   h.config.CookieSecure,
			SameSite: http.SameSiteLaxMode,
		})
	}

	if h.collector != nil {
		h.collector.RecordUserRegistered()
	}

	w.WriteHeader(http.StatusCreated)
}

// SetupUserRoutes はユーザー登録関連のルーティングを設定したchi.Routerを返す。
func SetupUserRoutes(service UserServiceInterface, config UserHandlerConfig) http.Handler {
	r := chi.NewRouter()
	h := NewUserHandler(service, config, nil)

	r.Route("/users", func(r chi.Router) {
		r.Post("/", h.Register)
	})

	return r
}
