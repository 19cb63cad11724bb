package app

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"github.com/DaneelOlivaw1/wecom-coupon-generator/internal/account"
	"github.com/DaneelOlivaw1/wecom-coupon-generator/internal/config"
	"github.com/DaneelOlivaw1/wecom-coupon-generator/internal/coupon"
	"github.com/DaneelOlivaw1/wecom-coupon-generator/internal/database"
	"github.com/DaneelOlivaw1/wecom-coupon-generator/internal/handler"
	"github.com/DaneelOlivaw1/wecom-coupon-generator/internal/logger"
	"github.com/DaneelOlivaw1/wecom-coupon-generator/internal/metrics"
	"github.com/DaneelOlivaw1/wecom-coupon-generator/internal/middleware"
	"github.com/DaneelOlivaw1/wecom-coupon-generator/internal/repository"
	"github.com/DaneelOlivaw1/wecom-coupon-generator/internal/weiban"
)

// shutdownTimeout はグレースフルシャットダウンの待ち時間。
const shutdownTimeout = 30 * time.Second

// Init はアプリケーションの初期化を行う。
// JSON構造化ログをセットアップし、環境変数からConfigを読み込む。
// ログレベルはLOG_LEVELで指定する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w, logger.ParseLevel(os.Getenv("LOG_LEVEL")))

	// 2. 環境変数から設定を読み込む
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
		return runHealthcheck(config.LoadServer())
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
	)

	switch cmd {
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runServe(cfg)
	}
}

// runServe はAPIサーバーモードで起動する。
// DB接続を開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	log := slog.Default()

	// 1. DB接続
	db, err := database.Open(cfg.DatabaseURL, database.PoolConfig{
		MaxOpenConns:    cfg.DBMaxOpenConns,
		ConnMaxIdleTime: cfg.DBConnMaxIdleTime,
	})
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	pingCtx, cancelPing := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelPing()
	if err := db.PingContext(pingCtx); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	log.Info("database connection established")

	// 2. メトリクス
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	collector := metrics.NewCollector(registry)

	// 3. リポジトリの初期化
	couponRepo := repository.NewPostgresCouponRepo(db, log)
	accountRepo := repository.NewPostgresAccountRepo(db, log)
	usageRepo := repository.NewPostgresUsageRepo(db, log)

	// 4. 微伴クライアントとaccess_tokenキャッシュ
	weibanClient := weiban.NewClient(
		&http.Client{Timeout: cfg.WeibanTimeout},
		weiban.ClientConfig{
			BaseURL: cfg.WeibanBaseURL,
			CorpID:  cfg.WeibanCorpID,
			Secret:  cfg.WeibanSecret,
		},
		log, collector,
	)
	tokenCache := weiban.NewTokenCache(weibanClient, log, collector)
	resolver := weiban.NewResolver(tokenCache, weibanClient, log)

	// 5. ドメインサービスの初期化
	couponService := coupon.NewService(couponRepo, coupon.ServiceConfig{
		Amount:      cfg.CouponAmount,
		Description: cfg.CouponDescription,
	}, log, collector)
	accountService := account.NewService(accountRepo, log, collector)
	snapshots := account.NewSnapshotBuilder(couponRepo, accountRepo, usageRepo)

	// 6. ルーターの構築
	rateLimiter := middleware.NewRateLimiter(middleware.NewRateLimiterConfig(cfg.RateLimitPerMinute))
	defer rateLimiter.Stop()

	serverCfg := cfg.Server()
	useTLS := serverCfg.TLSAvailable()
	if cfg.TLSEnabled() && !useTLS {
		log.Warn("TLS certificate or key not found, serving plain HTTP",
			slog.String("cert_file", cfg.TLSCertFile),
			slog.String("key_file", cfg.TLSKeyFile),
		)
	}

	router := handler.NewRouter(&handler.RouterDeps{
		Logger:            log,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		HSTS:              useTLS,
		RateLimiter:       rateLimiter,
		StatusRecorder:    collector,
		Resolver:          resolver,
		CouponService:     couponService,
		AccountService:    accountService,
		Snapshots:         snapshots,
		DB:                db,
		Health: handler.HealthConfig{
			CorpID:       cfg.WeibanCorpID,
			CouponAmount: cfg.CouponAmount,
		},
		StaticDir: cfg.StaticDir,
	})

	// 7. HTTPサーバーの起動
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	scheme := "http"
	if useTLS {
		scheme = "https"
	}
	log.Info("wecom coupon generator started",
		slog.String("url", fmt.Sprintf("%s://localhost:%s", scheme, cfg.ServerPort)),
		slog.String("coupon_amount", cfg.CouponAmount.String()),
		slog.String("corp_id", cfg.WeibanCorpID),
		slog.Bool("tls", useTLS),
	)

	// グレースフルシャットダウンのためのシグナルハンドリング
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if !useTLS {
		serverCfg.TLSCertFile, serverCfg.TLSKeyFile = "", ""
	}

	var metricsServer *http.Server
	if cfg.MetricsAddr != "" {
		metricsServer = metrics.NewServer(cfg.MetricsAddr, registry)
		log.Info("metrics listener enabled", slog.String("addr", cfg.MetricsAddr))
	}

	return serveAll(ctx, server, metricsServer, serverCfg.TLSCertFile, serverCfg.TLSKeyFile)
}

// serveAll はAPIサーバーと、指定されていればメトリクスサーバーを並行して動かす。
// どちらかの待ち受けが失敗した場合はもう一方も停止する。
func serveAll(ctx context.Context, api, metricsServer *http.Server, certFile, keyFile string) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return serveUntilDone(gctx, api, certFile, keyFile)
	})
	if metricsServer != nil {
		g.Go(func() error {
			return serveUntilDone(gctx, metricsServer, "", "")
		})
	}
	return g.Wait()
}

// serveUntilDone はctxが終了するまでserverを動かし、その後グレースフルシャットダウンする。
// certFileが空ならHTTP、指定されていればHTTPSで待ち受ける。
// 待ち受け自体が失敗した場合はそのエラーを返す。
func serveUntilDone(ctx context.Context, server *http.Server, certFile, keyFile string) error {
	errCh := make(chan error, 1)
	go func() {
		var err error
		if certFile != "" {
			err = server.ListenAndServeTLS(certFile, keyFile)
		} else {
			err = server.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("server listen failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("shutting down API server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	version, err := database.RunMigrations(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully", slog.Uint64("version", uint64(version)))
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /api/health エンドポイントにリクエストを送り、結果を返す。
// TLS時は自己署名証明書を想定し、localhost宛てに限り検証を省略する。
func runHealthcheck(server config.ServerConfig) error {
	return checkHealth(healthcheckURL(server), server.TLSAvailable())
}

func healthcheckURL(server config.ServerConfig) string {
	scheme := "http"
	if server.TLSAvailable() {
		scheme = "https"
	}
	return fmt.Sprintf("%s://localhost:%s/api/health", scheme, server.Port)
}

func checkHealth(target string, insecureTLS bool) error {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if insecureTLS {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // localhost only
	}
	client := &http.Client{Timeout: 5 * time.Second, Transport: transport}

	resp, err := client.Get(target)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLのパスワードをマスクする。
func maskDatabaseURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" {
		return "***"
	}
	return u.Redacted()
}
