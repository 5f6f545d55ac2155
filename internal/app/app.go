package app

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hitoshi/gemblog/internal/article"
	"github.com/hitoshi/gemblog/internal/auth"
	"github.com/hitoshi/gemblog/internal/config"
	"github.com/hitoshi/gemblog/internal/database"
	"github.com/hitoshi/gemblog/internal/draft"
	"github.com/hitoshi/gemblog/internal/handler"
	"github.com/hitoshi/gemblog/internal/logger"
	"github.com/hitoshi/gemblog/internal/media"
	"github.com/hitoshi/gemblog/internal/metrics"
	"github.com/hitoshi/gemblog/internal/middleware"
	"github.com/hitoshi/gemblog/internal/repository"
	"github.com/hitoshi/gemblog/internal/rss"
	"github.com/hitoshi/gemblog/internal/security"
	"github.com/hitoshi/gemblog/internal/worker/cleanup"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、LOG_LEVELに従ってJSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w, slog.LevelInfo)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// 3. 設定されたログレベルで再初期化する
	logger.SetupDefault(w, cfg.LogLevel)

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
		slog.String("base_url", cfg.BaseURL),
	)

	switch cmd {
	case CommandMigrate:
		return runMigrate(cfg)
	case CommandCleanup:
		return runCleanup(cfg)
	case CommandCreateAdmin:
		var rest []string
		if len(args) > 1 {
			rest = args[1:]
		}
		return runCreateAdmin(cfg, rest)
	default:
		return runServe(cfg)
	}
}

// components はserveモードで組み立てる依存関係。
type components struct {
	router      http.Handler
	drafts      *draft.Manager
	cleanup     *cleanup.CleanupJob
	rateLimiter *middleware.RateLimiter
}

// buildComponents はリポジトリからルーターまでの全依存関係をワイヤリングする。
// DBへの接続は行わないため、テストでも呼び出せる。
func buildComponents(cfg *config.Config, db *sql.DB, reg *prometheus.Registry) *components {
	log := slog.Default()

	// 1. リポジトリの初期化
	articleRepo := repository.NewPostgresArticleRepo(db)
	adminRepo := repository.NewPostgresAdminUserRepo(db)
	sessionRepo := repository.NewPostgresSessionRepo(db)

	// 2. メトリクスとセキュリティサービスの初期化
	collector := metrics.NewCollector(reg)
	ssrfGuard := security.NewSSRFGuard()
	sanitizer := security.NewContentSanitizer()

	// 3. ドメインサービスの初期化
	authService := auth.NewService(adminRepo, sessionRepo, auth.ServiceConfig{
		SessionMaxAge: cfg.SessionMaxAge,
	})
	articleService := article.NewService(articleRepo, collector, cfg.CacheSize, log)
	prober := media.NewImageProber(ssrfGuard, cfg.ImageProbeTimeout)
	drafts := draft.NewManager(articleService, prober, collector, draft.Config{
		Debounce:      cfg.AutosaveDebounce,
		MaxPasteBytes: cfg.MaxPasteImageBytes,
	}, log)

	// 4. バックグラウンドジョブの初期化
	cleanupJob := cleanup.NewCleanupJob(db, drafts, log)
	cleanupJob.IdleTimeout = cfg.EditorIdleTimeout

	// 5. ルーターの構築
	// configのレート制限はreq/min単位
	rateLimiter := middleware.NewRateLimiter(middleware.PerMinute(cfg.RateLimitGeneral, cfg.RateLimitLogin))

	deps := &handler.RouterDeps{
		SessionChecker:    authService,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       rateLimiter,
		CSRFConfig: middleware.CSRFConfig{
			CookieSecure: cfg.CookieSecure,
			CookieDomain: cfg.CookieDomain,
			MaxAge:       cfg.SessionMaxAge,
		},
		Logger:         log,
		StatusRecorder: collector,

		AuthService: authService,
		AuthConfig: handler.AuthHandlerConfig{
			CookieDomain:  cfg.CookieDomain,
			CookieSecure:  cfg.CookieSecure,
			SessionMaxAge: cfg.SessionMaxAge,
		},

		ArticleService: articleService,
		Sanitizer:      sanitizer,
		FeedChannel: rss.Channel{
			Title:       cfg.FeedTitle,
			Description: cfg.FeedDescription,
			BaseURL:     cfg.BaseURL,
			Language:    cfg.FeedLanguage,
		},

		DraftManager: drafts,

		Health:  db,
		Metrics: metrics.Handler(reg),
	}

	return &components{
		router:      handler.NewRouter(deps),
		drafts:      drafts,
		cleanup:     cleanupJob,
		rateLimiter: rateLimiter,
	}
}

// newRegistry はアプリケーションとランタイムのメトリクスを登録するレジストリを生成する。
func newRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// openDB はDB接続を開き、疎通を確認する。
func openDB(cfg *config.Config) (*sql.DB, error) {
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	slog.Info("database connection established")
	return db, nil
}

// runServe はAPIサーバーモードで起動する。
// DB接続を開き、全依存関係をワイヤリングし、HTTPサーバーとクリーンアップジョブを起動する。
// SIGINTまたはSIGTERMシグナルを受信すると、編集中の下書きを保存してからシャットダウンする。
func runServe(cfg *config.Config) error {
	db, err := openDB(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	c := buildComponents(cfg, db, newRegistry())
	defer c.rateLimiter.Stop()

	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      c.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 期限切れセッションと放置された編集セッションを定期的に削除する
	go c.cleanup.Start(ctx, cfg.CleanupInterval)

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		slog.Info("API server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-stop:
	case err := <-errCh:
		return fmt.Errorf("server listen error: %w", err)
	}
	slog.Info("shutting down API server...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	// リクエストが止まってから未保存の下書きを保存する
	c.drafts.Shutdown(shutdownCtx)

	slog.Info("API server stopped gracefully")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully")
	return nil
}

// runCleanup は期限切れの管理者セッションを1回削除する。cronからの実行を想定している。
func runCleanup(cfg *config.Config) error {
	db, err := openDB(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	if _, err := cleanup.NewCleanupJob(db, nil, slog.Default()).Run(ctx); err != nil {
		return fmt.Errorf("cleanup failed: %w", err)
	}
	return nil
}

// adminFlags はcreate-adminサブコマンドの引数。
type adminFlags struct {
	email    string
	name     string
	password string
}

// parseAdminFlags はcreate-adminの引数を解析する。
// パスワードは引数で省略された場合ADMIN_PASSWORD環境変数から読む。
func parseAdminFlags(args []string) (adminFlags, error) {
	var f adminFlags
	fs := flag.NewFlagSet("create-admin", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.StringVar(&f.email, "email", "", "管理者のメールアドレス")
	fs.StringVar(&f.name, "name", "", "表示名")
	fs.StringVar(&f.password, "password", "", "パスワード（省略時はADMIN_PASSWORD）")
	if err := fs.Parse(args); err != nil {
		return f, fmt.Errorf("invalid create-admin arguments: %w", err)
	}
	if f.password == "" {
		f.password = os.Getenv("ADMIN_PASSWORD")
	}
	if f.email == "" {
		return f, fmt.Errorf("create-admin requires -email")
	}
	return f, nil
}

// runCreateAdmin は管理者アカウントを作成する。
func runCreateAdmin(cfg *config.Config, args []string) error {
	f, err := parseAdminFlags(args)
	if err != nil {
		return err
	}

	db, err := openDB(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	authService := auth.NewService(
		repository.NewPostgresAdminUserRepo(db),
		repository.NewPostgresSessionRepo(db),
		auth.ServiceConfig{SessionMaxAge: cfg.SessionMaxAge},
	)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if _, err := authService.CreateAdmin(ctx, f.email, f.name, f.password); err != nil {
		return fmt.Errorf("create-admin failed: %w", err)
	}
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(url string) string {
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}
