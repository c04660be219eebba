package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/disconcision/movienight/internal/middleware"
)

// HealthChecker はヘルスチェック時のDB疎通確認インターフェース。
// *sql.DB を受け付けることができる。
type HealthChecker interface {
	PingContext(ctx context.Context) error
}

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	HealthChecker     HealthChecker
	SessionFinder     middleware.SessionFinder
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	CSRFConfig        middleware.CSRFConfig
	Logger            *LoggerDeps

	// ユーザー
	UserService UserServiceInterface
	UserConfig  UserHandlerConfig
	Debouncer   ReorderSubmitter

	// 映画
	MovieService MovieServiceInterface

	// スケジュール
	ScheduleService ScheduleServiceInterface
}

// LoggerDeps はリクエストログのミドルウェア依存。
type LoggerDeps struct {
	Middleware func(next http.Handler) http.Handler
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	CORS → SecurityHeaders → Logging → Recovery →（/api配下のみ）Session → CSRF → RateLimit(General)
//
// 識別ルート（/identify, /logout, /me）とヘルスチェックはセッションミドルウェアの外に配置する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	// 全ルートに効くミドルウェア
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	r.Use(middleware.NewSecurityHeadersMiddleware())
	if deps.Logger != nil && deps.Logger.Middleware != nil {
		r.Use(deps.Logger.Middleware)
	}
	r.Use(middleware.NewRecoveryMiddleware())

	userHandler := NewUserHandler(deps.UserService, deps.Debouncer, deps.UserConfig)
	movieHandler := NewMovieHandler(deps.MovieService)
	scheduleHandler := NewScheduleHandler(deps.ScheduleService)

	// --- 識別不要のルート ---

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if deps.HealthChecker != nil {
			if err := deps.HealthChecker.PingContext(r.Context()); err != nil {
				w.WriteHeader(http.StatusServiceUnavailable)
				w.Write([]byte(`{"status":"unavailable"}`))
				return
			}
		}
		w.Write([]byte(`{"status":"ok"}`))
	})

	r.Post("/identify", userHandler.Identify)
	r.Post("/logout", userHandler.Logout)
	r.Get("/me", userHandler.Me)
	r.Method(http.MethodGet, "/api/csrf-token", middleware.NewCSRFTokenHandler(deps.CSRFConfig))

	// --- 識別が必要なルート ---
	// ミドルウェアスタック: Session → CSRF → RateLimit(General)
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewSessionMiddleware(deps.SessionFinder))
		r.Use(middleware.NewCSRFMiddleware(deps.CSRFConfig))
		r.Use(deps.RateLimiter.GeneralMiddleware())

		// 映画カタログ
		r.Route("/api/movies", func(r chi.Router) {
			r.Get("/", movieHandler.ListMovies)
			// POST /api/movies - 映画登録（登録専用レート制限を追加）
			r.With(deps.RateLimiter.MovieRegistrationMiddleware()).Post("/", movieHandler.RegisterMovie)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", movieHandler.GetMovie)
				r.Get("/unseen-count", movieHandler.UnseenCount)
			})
		})

		// 推薦リスト
		r.Get("/api/recommendations", movieHandler.Recommendations)

		// ユーザー管理
		r.Route("/api/users", func(r chi.Router) {
			r.Get("/", userHandler.ListUsers)

			r.Route("/me", func(r chi.Router) {
				r.Delete("/", userHandler.Withdraw)
				r.Put("/unseen", userHandler.Reorder)
				r.Put("/unseen/{movieID}", userHandler.SetUnseen)
			})
		})

		// スケジューリング
		r.Route("/api/slots", func(r chi.Router) {
			r.Get("/", scheduleHandler.ListSlots)
			r.Post("/", scheduleHandler.CreateSlot)
			r.Put("/{id}/availability", scheduleHandler.SetAvailability)
		})

		r.Route("/api/events", func(r chi.Router) {
			r.Get("/", scheduleHandler.ListEvents)
			r.Post("/", scheduleHandler.CreateEvent)
			r.Put("/{id}/vote", scheduleHandler.Vote)
		})

		r.Get("/api/schedule/next", scheduleHandler.BestNextSlot)
	})

	return r
}
