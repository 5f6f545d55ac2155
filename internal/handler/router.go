package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/hitoshi/gemblog/internal/middleware"
	"github.com/hitoshi/gemblog/internal/rss"
)

// HealthChecker はデータベースなど依存先の疎通を確認する。
type HealthChecker interface {
	PingContext(ctx context.Context) error
}

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	SessionChecker    middleware.SessionChecker
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	CSRFConfig        middleware.CSRFConfig
	Logger            *slog.Logger
	StatusRecorder    middleware.StatusRecorder

	// 認証
	AuthService AuthServiceInterface
	AuthConfig  AuthHandlerConfig

	// 記事
	ArticleService ArticleServiceInterface
	Sanitizer      HTMLSanitizer
	FeedChannel    rss.Channel

	// エディタ
	DraftManager DraftManagerInterface

	// 運用
	Health  HealthChecker
	Metrics http.Handler
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → RealIP → SecurityHeaders → Logging → CORS
//	管理API: Session → RateLimit(General) → CSRF
//	ログイン: RateLimit(Login)
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(chimw.RealIP)
	r.Use(middleware.NewSecurityHeadersMiddleware())
	if deps.Logger != nil {
		r.Use(middleware.NewLoggingMiddleware(deps.Logger, deps.StatusRecorder))
	}
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))

	authHandler := NewAuthHandler(deps.AuthService, deps.AuthConfig)
	articleHandler := NewArticleHandler(deps.ArticleService, deps.Sanitizer)
	feedHandler := NewFeedHandler(deps.ArticleService, deps.FeedChannel)
	draftHandler := NewDraftHandler(deps.DraftManager)

	// --- 認証不要のルート ---

	r.Get("/health", healthHandler(deps.Health))
	if deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", deps.Metrics)
	}
	r.Get("/feed.xml", feedHandler.ServeFeed)

	r.Route("/auth", func(r chi.Router) {
		r.With(deps.RateLimiter.LoginMiddleware()).Post("/login", authHandler.Login)
		r.Post("/logout", authHandler.Logout)
		r.Get("/me", authHandler.Me)
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/articles", articleHandler.ListPublished)
		r.Get("/articles/{slug}", articleHandler.GetPublished)
		r.Get("/categories", articleHandler.ListCategories)
		r.Method(http.MethodGet, "/csrf-token", middleware.NewCSRFTokenHandler(deps.CSRFConfig))

		// --- 認証が必要なルート ---
		// ミドルウェアスタック: Session → RateLimit(General) → CSRF
		r.Route("/admin", func(r chi.Router) {
			r.Use(middleware.NewSessionMiddleware(deps.SessionChecker))
			r.Use(deps.RateLimiter.GeneralMiddleware())
			r.Use(middleware.NewCSRFMiddleware(deps.CSRFConfig))

			r.Get("/stats", articleHandler.Stats)

			r.Route("/articles", func(r chi.Router) {
				r.Get("/", articleHandler.ListAll)
				r.Post("/", articleHandler.Create)

				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", articleHandler.Get)
					r.Patch("/", articleHandler.Update)
					r.Delete("/", articleHandler.Delete)
					r.Get("/export", articleHandler.Export)
				})
			})

			r.Route("/drafts", func(r chi.Router) {
				r.Post("/", draftHandler.Open)

				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", draftHandler.Get)
					r.Delete("/", draftHandler.Close)
					r.Put("/meta", draftHandler.UpdateMeta)
					r.Post("/ops", draftHandler.ApplyOps)
					r.Post("/save", draftHandler.Save)
					r.Post("/publish", draftHandler.Publish)
				})
			})
		})
	})

	return r
}

// healthHandler はヘルスチェックのハンドラーを返す。
// GET /health
func healthHandler(checker HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if checker != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := checker.PingContext(ctx); err != nil {
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
