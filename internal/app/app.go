package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"

	"github.com/disconcision/movienight/internal/config"
	"github.com/disconcision/movienight/internal/database"
	"github.com/disconcision/movienight/internal/handler"
	"github.com/disconcision/movienight/internal/logger"
	"github.com/disconcision/movienight/internal/metadata"
	"github.com/disconcision/movienight/internal/metrics"
	"github.com/disconcision/movienight/internal/middleware"
	"github.com/disconcision/movienight/internal/movie"
	"github.com/disconcision/movienight/internal/repository"
	"github.com/disconcision/movienight/internal/schedule"
	"github.com/disconcision/movienight/internal/security"
	"github.com/disconcision/movienight/internal/user"
	"github.com/disconcision/movienight/internal/worker/cleanup"
)

// Init はアプリケーションの初期化を行う。
// .envファイル（存在する場合）と環境変数からConfigを読み込み、
// JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w)

	// 2. .envファイルの読み込み（ローカル開発用。本番では存在しなくてよい）
	if err := godotenv.Load(); err != nil {
		slog.Debug(".env file not found, using environment variables only")
	}

	// 3. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

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
	case CommandServe:
		return runServe(cfg)
	case CommandWorker:
		return runWorker(cfg)
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runServe(cfg)
	}
}

// runServe はAPIサーバーモードで起動する。
// DB接続を開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行い、
// 未フラッシュの並び替えをすべて永続化してから終了する。
func runServe(cfg *config.Config) error {
	// 1. DB接続
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established")

	// 2. リポジトリの初期化
	userRepo := repository.NewPostgresUserRepo(db)
	sessionRepo := repository.NewPostgresSessionRepo(db)
	movieRepo := repository.NewPostgresMovieRepo(db)
	slotRepo := repository.NewPostgresSlotRepo(db)
	eventRepo := repository.NewPostgresEventRepo(db)

	// 3. セキュリティサービスの初期化
	ssrfGuard := security.NewSSRFGuard()
	sanitizer := security.NewNoteSanitizer()

	// 4. メトリクスの初期化
	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	// 5. 外部メタデータAPIクライアントの初期化
	// SSRF防止付きHTTPクライアントで外部アクセスを行う
	metadataClient := metadata.NewClient(
		ssrfGuard.NewSafeClient(cfg.MetadataTimeout),
		slog.Default(),
		cfg.MetadataBaseURL,
		cfg.MetadataAPIKey,
	)

	// 6. ドメインサービスの初期化
	userService := user.NewService(
		userRepo, sessionRepo, movieRepo, slotRepo, eventRepo,
		user.ServiceConfig{SessionMaxAge: cfg.SessionMaxAge},
	)
	movieService := movie.NewService(
		movieRepo, userRepo, metadataClient, ssrfGuard, sanitizer, collector,
	)
	scheduleService := schedule.NewService(
		slotRepo, eventRepo, userRepo, movieRepo, sanitizer,
	)

	// 7. 並び替えデバウンサの初期化
	// 操作中の連続並び替えをまとめ、静止後に1回だけ永続化する
	debouncer := user.NewReorderDebouncer(cfg.ReorderFlushDelay,
		func(ctx context.Context, userID string, movieIDs []string) error {
			collector.RecordReorderFlush(userID)
			_, err := userService.Reorder(ctx, userID, movieIDs)
			return err
		})

	// 8. ルーターの構築
	rateLimiterCfg := middleware.RateLimiterConfig{
		GeneralRate:     rate.Limit(float64(cfg.RateLimitGeneral) / 60.0),
		GeneralBurst:    cfg.RateLimitGeneral,
		MovieRegRate:    rate.Limit(float64(cfg.RateLimitMovieReg) / 60.0),
		MovieRegBurst:   cfg.RateLimitMovieReg,
		CleanupInterval: 5 * time.Minute,
	}
	rateLimiter := middleware.NewRateLimiter(rateLimiterCfg)
	defer rateLimiter.Stop()

	deps := &handler.RouterDeps{
		HealthChecker:     db,
		SessionFinder:     sessionRepo,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       rateLimiter,
		CSRFConfig: middleware.CSRFConfig{
			CookieSecure: cfg.CookieSecure,
			CookieDomain: cfg.CookieDomain,
		},
		Logger: &handler.LoggerDeps{
			Middleware: middleware.NewLoggingMiddlewareWithMetrics(slog.Default(), collector),
		},

		UserService: userService,
		UserConfig: handler.UserHandlerConfig{
			CookieDomain:  cfg.CookieDomain,
			CookieSecure:  cfg.CookieSecure,
			SessionMaxAge: cfg.SessionMaxAge,
		},
		Debouncer: debouncer,

		MovieService:    movieService,
		ScheduleService: scheduleService,
	}

	router := handler.NewRouter(deps)

	// 9. HTTPサーバーの起動
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("API server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server listen error", slog.String("error", err.Error()))
		}
	}()

	<-stop
	slog.Info("shutting down API server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	// 未フラッシュの並び替えを永続化してから終了する
	debouncer.Close()

	slog.Info("API server stopped gracefully")
	return nil
}

// runWorker はワーカーモードで起動する。
// DB接続を開き、評価値リフレッシュジョブとクリーンアップジョブを起動する。
// /metricsエンドポイントをHTTPで公開する。
// SIGINTまたはSIGTERMシグナルを受信するとシャットダウンする。
func runWorker(cfg *config.Config) error {
	// 1. DB接続
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established (worker)")

	// 2. リポジトリとメトリクスの初期化
	movieRepo := repository.NewPostgresMovieRepo(db)
	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	// 3. 外部メタデータAPIクライアントの初期化
	ssrfGuard := security.NewSSRFGuard()
	metadataClient := metadata.NewClient(
		ssrfGuard.NewSafeClient(cfg.MetadataTimeout),
		slog.Default(),
		cfg.MetadataBaseURL,
		cfg.MetadataAPIKey,
	)

	// 4. 評価値リフレッシュジョブの初期化
	refreshJob := metadata.NewRefreshJob(movieRepo, metadataClient, slog.Default(), collector,
		metadata.BatchConfig{
			BatchInterval: cfg.MetadataBatchInterval,
			APIInterval:   cfg.MetadataAPIInterval,
			MaxPerCycle:   cfg.MetadataMaxPerCycle,
			RefreshTTL:    cfg.MetadataRefreshTTL,
		})

	// 5. クリーンアップジョブの初期化
	cleanupJob := cleanup.NewCleanupJob(db, slog.Default())
	cleanupJob.SlotRetentionDays = cfg.SlotRetentionDays

	// グレースフルシャットダウンのためのシグナルハンドリング
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-stop
		slog.Info("shutting down worker...")
		cancel()
	}()

	slog.Info("worker starting",
		slog.Duration("batch_interval", cfg.MetadataBatchInterval),
		slog.Duration("refresh_ttl", cfg.MetadataRefreshTTL),
		slog.Int("slot_retention_days", cfg.SlotRetentionDays),
	)

	// /metricsエンドポイントをバックグラウンドで公開
	metricsServer := &http.Server{
		Addr:    ":" + cfg.ServerPort,
		Handler: metrics.SetupMetricsRoute(registry),
	}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("metrics server listen error", slog.String("error", err.Error()))
		}
	}()
	defer metricsServer.Close()

	// クリーンアップジョブを日次でバックグラウンド実行
	go func() {
		// 起動直後に1回実行
		if err := cleanupJob.Run(ctx); err != nil {
			slog.Error("cleanup job failed", slog.String("error", err.Error()))
		}

		ticker := time.NewTicker(24 * time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := cleanupJob.Run(ctx); err != nil {
					slog.Error("cleanup job failed", slog.String("error", err.Error()))
				}
			}
		}
	}()

	// 評価値リフレッシュジョブをメインgoroutineで実行（ブロッキング）
	refreshJob.Start(ctx)

	slog.Info("worker stopped gracefully")
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

	version, dirty, err := database.Version(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to read migration version: %w", err)
	}

	slog.Info("database migrations completed successfully",
		slog.Uint64("version", uint64(version)),
		slog.Bool("dirty", dirty),
	)
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
