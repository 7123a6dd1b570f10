package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/hitoshi/mealtrack/internal/meal"
	"github.com/hitoshi/mealtrack/internal/metrics"
	"github.com/hitoshi/mealtrack/internal/middleware"
	"github.com/hitoshi/mealtrack/internal/model"
)

// MealServiceInterface は食事ハンドラーが必要とするサービスインターフェース。
type MealServiceInterface interface {
	// CreateMeal はセッションユーザー所有の食事を作成する。
	CreateMeal(ctx context.Context, userID string, input meal.MealInput) (*model.Meal, error)
	// UpdateMeal は食事の可変フィールドをID指定のみで全置換する。
	UpdateMeal(ctx context.Context, mealID string, input meal.MealInput) error
	// GetMeal は食事を取得する。別ユーザー所有の場合は(nil, nil)を返す。
	GetMeal(ctx context.Context, userID, mealID string) (*model.Meal, error)
	// ListMeals はユーザーの食事一覧をdate降順で返す。
	ListMeals(ctx context.Context, userID string) ([]*model.Meal, error)
	// DeleteMeal は食事を削除する。
	DeleteMeal(ctx context.Context, userID, mealID string) error
	// Metrics はユーザーの食事集計を返す。
	Metrics(ctx context.Context, userID string) (*model.MealMetrics, error)
}

// MealHandler は食事記録のHTTPハンドラー。
type MealHandler struct {
	service   MealServiceInterface
	collector metrics.MetricsCollector
}

// NewMealHandler はMealHandlerを生成する。
// collectorはnil可（テストやメトリクス無効時）。
func NewMealHandler(service MealServiceInterface, collector metrics.MetricsCollector) *MealHandler {
	return &MealHandler{
		service:   service,
		collector: collector,
	}
}

// --- リクエスト・レスポンス型 ---

// mealDate は日時らしい入力を受け付けるJSON日時型。
// RFC3339文字列とUnixミリ秒数値の両方をサポートする。
type mealDate struct {
	time.Time
}

// UnmarshalJSON はRFC3339文字列またはUnixミリ秒数値から日時を復元する。
func (d *mealDate) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		return nil
	}

	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return fmt.Errorf("invalid date format: %q", s)
		}
		d.Time = t
		return nil
	}

	var ms int64
	if err := json.Unmarshal(b, &ms); err != nil {
		return fmt.Errorf("invalid date value: %s", string(b))
	}
	d.Time = time.UnixMilli(ms)
	return nil
}

// mealRequest は食事の作成・更新リクエストのボディ。
// booleanの未指定とfalseを区別するため、全フィールドをポインタで受ける。
type mealRequest struct {
	Name        *string   `json:"name"`
	Description *string   `json:"description"`
	IsOnDiet    *bool     `json:"isOnDiet"`
	Date        *mealDate `json:"date"`
}

// validate は食事リクエストを検証し、フィールドごとのエラーメッセージを返す。
func (req *mealRequest) validate() []string {
	var messages []string
	if req.Name == nil || *req.Name == "" {
		messages = append(messages, "食事名は必須です。")
	}
	if req.Description == nil || *req.Description == "" {
		messages = append(messages, "説明は必須です。")
	}
	if req.IsOnDiet == nil {
		messages = append(messages, "ダイエット中の食事かどうかを指定してください。")
	}
	if req.Date == nil || req.Date.IsZero() {
		messages = append(messages, "日時は必須です。")
	}
	return messages
}

// toInput は検証済みリクエストをサービス入力に変換する。
func (req *mealRequest) toInput() meal.MealInput {
	return meal.MealInput{
		Name:        *req.Name,
		Description: *req.Description,
		IsOnDiet:    *req.IsOnDiet,
		Date:        req.Date.Time,
	}
}

// mealResponse は食事1件のAPIレスポンス。
// フィールド名は既存クライアントとの互換性のため現行のワイヤフォーマットに合わせる。
type mealResponse struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	IsOnDiet    bool      `json:"isOnDiet"`
	Date        time.Time `json:"date"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	UserID      string    `json:"user_id"`
}

// mealListResponse は食事一覧のレスポンス。
type mealListResponse struct {
	Meals []mealResponse `json:"meals"`
}

// mealMetricsResponse は食事集計のレスポンス。
type mealMetricsResponse struct {
	TotalMeals     int `json:"totalMeals"`
	OnDietMeals    int `json:"onDietMeals"`
	OutOfDietMeals int `json:"outOfDietMeals"`
}

// apiErrorResponse は統一エラーフォーマットのレスポンス。
type apiErrorResponse struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	Category string `json:"category"`
	Action   string `json:"action"`
}

// toMealResponse はドメインモデルをAPIレスポンスに変換する。
func toMealResponse(m *model.Meal) mealResponse {
	return mealResponse{
		ID:          m.ID,
		Name:        m.Name,
		Description: m.Description,
		IsOnDiet:    m.IsOnDiet,
		Date:        m.Date,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
		UserID:      m.UserID,
	}
}

// --- ハンドラー ---

// CreateMeal は食事作成を処理する。
// POST /meals/
func (h *MealHandler) CreateMeal(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	var req mealRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError())
		return
	}

	if messages := req.validate(); len(messages) > 0 {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewValidationError(messages))
		return
	}

	if _, err := h.service.CreateMeal(r.Context(), userID, req.toInput()); err != nil {
		handleServiceError(w, err)
		return
	}

	if h.collector != nil {
		h.collector.RecordMealCreated()
	}

	w.WriteHeader(http.StatusCreated)
}

// UpdateMeal は食事の全置換更新を処理する。
// PUT /meals/:mealId
func (h *MealHandler) UpdateMeal(w http.ResponseWriter, r *http.Request) {
	if _, err := middleware.UserIDFromContext(r.Context()); err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	mealID := chi.URLParam(r, "mealId")
	if _, err := uuid.Parse(mealID); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidMealIDError(mealID))
		return
	}

	var req mealRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError())
		return
	}

	if messages := req.validate(); len(messages) > 0 {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewValidationError(messages))
		return
	}

	if err := h.service.UpdateMeal(r.Context(), mealID, req.toInput()); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// GetMeal は食事1件の取得を処理する。
// どのユーザーにも存在しないIDは404。存在するが別ユーザー所有の場合は
// 空ボディの200を返す（既存クライアントが依存する現行のAPI契約を維持する）。
// GET /meals/:mealId
func (h *MealHandler) GetMeal(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	mealID := chi.URLParam(r, "mealId")
	if _, err := uuid.Parse(mealID); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidMealIDError(mealID))
		return
	}

	found, err := h.service.GetMeal(r.Context(), userID, mealID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	if found == nil {
		// 別ユーザー所有: 空ボディで200
		w.WriteHeader(http.StatusOK)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toMealResponse(found))
}

// ListMeals はセッションユーザーの食事一覧を処理する。
// GET /meals/
func (h *MealHandler) ListMeals(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	meals, err := h.service.ListMeals(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp := mealListResponse{Meals: make([]mealResponse, len(meals))}
	for i, m := range meals {
		resp.Meals[i] = toMealResponse(m)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// DeleteMeal は食事削除を処理する。
// どのユーザーにも存在しないIDは404。別ユーザー所有の場合は削除0件のまま204を返す
// （既存クライアントが依存する現行のAPI契約を維持する）。
// DELETE /meals/:mealId
func (h *MealHandler) DeleteMeal(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	mealID := chi.URLParam(r, "mealId")

	if err := h.service.DeleteMeal(r.Context(), userID, mealID); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Metrics はセッションユーザーの食事集計を処理する。
// GET /meals/metrics
func (h *MealHandler) Metrics(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	m, err := h.service.Metrics(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(mealMetricsResponse{
		TotalMeals:     m.TotalMeals,
		OnDietMeals:    m.OnDietMeals,
		OutOfDietMeals: m.OutOfDietMeals,
	})
}

// SetupMealRoutes は食事管理関連のルーティングを設定したchi.Routerを返す。
func SetupMealRoutes(service MealServiceInterface) http.Handler {
	r := chi.NewRouter()
	h := NewMealHandler(service, nil)

	r.Route("/meals", func(r chi.Router) {
		r.Post("/", h.CreateMeal)
		r.Get("/", h.ListMeals)
		r.Get("/metrics", h.Metrics)

		r.Route("/{mealId}", func(r chi.Router) {
			r.Get("/", h.GetMeal)
			r.Put("/", h.UpdateMeal)
			r.Delete("/", h.DeleteMeal)
		})
	})

	return r
}

// --- エラーレスポンス共通処理 ---

// writeAPIErrorResponse は統一エラーフォーマットでHTTPエラーレスポンスを書き込む。
func writeAPIErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(apiErrorResponse{
		Code:     apiErr.Code,
		Message:  apiErr.Message,
		Category: apiErr.Category,
		Action:   apiErr.Action,
	})
}

// handleServiceError はサービス層から返されたエラーを適切なHTTPステータスコードに変換する。
func handleServiceError(w http.ResponseWriter, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		statusCode := mapAPIErrorToHTTPStatus(apiErr)
		writeAPIErrorResponse(w, statusCode, apiErr)
		return
	}

	// APIError以外のエラーは内部サーバーエラーとして扱う
	slog.Error("internal server error", slog.String("error", err.Error()))
	writeAPIErrorResponse(w, http.StatusInternalServerError, &model.APIError{
		Code:     "INTERNAL_ERROR",
		Message:  "内部エラーが発生しました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	})
}

// mapAPIErrorToHTTPStatus はAPIErrorコードからHTTPステータスコードにマッピングする。
func mapAPIErrorToHTTPStatus(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeUnauthorized:
		return http.StatusUnauthorized
	case model.ErrCodeMealNotFound:
		return http.StatusNotFound
	case model.ErrCodeInvalidRequest, model.ErrCodeValidationFailed,
		model.ErrCodeInvalidMealID, model.ErrCodeUserAlreadyExists:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
