package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/mealtrack/internal/metrics"
	"github.com/hitoshi/mealtrack/internal/middleware"
)

// HealthChecker はヘルスチェックに必要なインターフェース。
// *sql.DBがそのまま満たす。
type HealthChecker interface {
	PingContext(ctx context.Context) error
}

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	HealthChecker     HealthChecker
	SessionFinder     middleware.SessionUserFinder
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter

	// メトリクス（nil可）
	Collector *metrics.Collector
	Gatherer  prometheus.Gatherer

	// ユーザー登録
	UserService UserServiceInterface
	UserConfig  UserHandlerConfig

	// 食事
	MealService MealServiceInterface
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → Logging → Metrics → SecurityHeaders → CORS → SessionMiddleware → RateLimit(General)
//
// ユーザー登録（POST /users/）はセッションゲートの外に置き、IPキーの登録専用レート制限をかける。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewLoggingMiddleware(slog.Default()))
	if deps.Collector != nil {
		r.Use(deps.Collector.Middleware())
	}
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))

	var collector metrics.MetricsCollector
	if deps.Collector != nil {
		collector = deps.Collector
	}
	userHandler := NewUserHandler(deps.UserService, deps.UserConfig, collector)
	mealHandler := NewMealHandler(deps.MealService, collector)

	// --- 認証不要のルート ---

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		if deps.HealthChecker != nil {
			if err := deps.HealthChecker.PingContext(r.Context()); err != nil {
				http.Error(w, "unhealthy", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	if deps.Gatherer != nil {
		r.Get("/metrics", metrics.Handler(deps.Gatherer).ServeHTTP)
	}

	// ユーザー登録（初回リクエストでセッションCookieを発行する）
	r.Route("/users", func(r chi.Router) {
		if deps.RateLimiter != nil {
			r.Use(deps.RateLimiter.RegistrationMiddleware())
		}
		r.Post("/", userHandler.Register)
	})

	// --- 認証が必要なルート ---
	// ミドルウェアスタック: Session → RateLimit(General)
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewSessionMiddleware(deps.SessionFinder))
		if deps.RateLimiter != nil {
			r.Use(deps.RateLimiter.GeneralMiddleware())
		}

		r.Route("/meals", func(r chi.Router) {
			r.Post("/", mealHandler.CreateMeal)
			r.Get("/", mealHandler.ListMeals)

			// /meals/metrics は /meals/{mealId} より静的ルートとして優先される
			r.Get("/metrics", mealHandler.Metrics)

			r.Route("/{mealId}", func(r chi.Router) {
				r.Get("/", mealHandler.GetMeal)
				r.Put("/", mealHandler.UpdateMeal)
				r.Delete("/", mealHandler.DeleteMeal)
			})
		})
	})

	return r
}
