package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/wfunc/casino-bot/internal/api"
	"github.com/wfunc/casino-bot/internal/backup"
	"github.com/wfunc/casino-bot/internal/casino"
	"github.com/wfunc/casino-bot/internal/config"
	"github.com/wfunc/casino-bot/internal/database"
	apperrors "github.com/wfunc/casino-bot/internal/errors"
	"github.com/wfunc/casino-bot/internal/game"
	"github.com/wfunc/casino-bot/internal/logger"
	"github.com/wfunc/casino-bot/internal/ratelimit"
	"github.com/wfunc/casino-bot/internal/scheduler"
	"github.com/wfunc/casino-bot/internal/service"
	"github.com/wfunc/casino-bot/internal/session"
	ws "github.com/wfunc/casino-bot/internal/websocket"
)

// 版本信息
var (
	Version   = "1.0.0"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// Server 服务器实例
type Server struct {
	cfg    *config.Config
	logger *zap.Logger
	clock  clockwork.Clock

	db           *gorm.DB
	services     *service.Services
	limiter      ratelimit.Limiter
	closeLimiter func() error
	sessions     *session.Manager
	casino       *casino.Orchestrator
	hub          *ws.Hub
	backups      *backup.Manager
	cron         *scheduler.Scheduler
	httpServer   *http.Server

	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
}

func main() {
	var (
		configPath  = flag.String("config", "", "配置文件路径")
		envFile     = flag.String("env", ".env", "环境变量文件")
		showVersion = flag.Bool("version", false, "显示版本信息")
		showHelp    = flag.Bool("help", false, "显示帮助信息")
	)
	flag.Parse()

	if *showVersion {
		printVersion()
		os.Exit(0)
	}
	if *showHelp {
		printHelp()
		os.Exit(0)
	}

	// .env 文件可选，缺失时只使用进程环境变量
	if err := godotenv.Load(*envFile); err != nil && !os.IsNotExist(err) {
		fmt.Printf("加载环境变量文件失败: %v\n", err)
	}

	if err := config.Init(*configPath); err != nil {
		fmt.Printf("加载配置失败: %v\n", err)
		os.Exit(1)
	}
	cfg := config.Get()

	if err := logger.Init(&cfg.Log); err != nil {
		fmt.Printf("初始化日志失败: %v\n", err)
		os.Exit(1)
	}
	defer logger.Cleanup()

	server := NewServer(cfg)
	if err := server.Start(); err != nil {
		logger.Fatal("服务器启动失败", zap.Error(err))
	}

	server.WaitForShutdown()

	if err := server.Shutdown(); err != nil {
		logger.Error("服务器关闭失败", zap.Error(err))
		os.Exit(1)
	}
	logger.Info("服务器已安全关闭")
}

// NewServer 创建服务器实例
func NewServer(cfg *config.Config) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		cfg:    cfg,
		logger: logger.GetLogger(),
		clock:  clockwork.NewRealClock(),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start 启动服务器
func (s *Server) Start() error {
	s.logger.Info("正在启动聊天赌场服务...",
		zap.String("version", Version),
		zap.String("mode", s.cfg.Server.Mode),
	)

	if err := s.initComponents(); err != nil {
		return apperrors.Wrap(err, apperrors.ErrUnknown, "初始化组件失败")
	}
	if err := s.startServices(); err != nil {
		return apperrors.Wrap(err, apperrors.ErrUnknown, "启动服务失败")
	}

	config.Watch(func(level string) {
		logger.SetLevel(level)
		s.logger.Info("日志级别已更新", zap.String("level", level))
	})

	s.logger.Info("服务器启动成功",
		zap.String("http", s.httpServer.Addr),
		zap.Int("jobs", len(s.cron.Jobs())),
	)
	return nil
}

// initComponents 初始化组件
func (s *Server) initComponents() error {
	if err := s.initDatabase(); err != nil {
		return err
	}

	s.services = service.NewServices(s.db, s.cfg, s.clock, logger.WithModule("service"))

	created, err := s.services.Promo.SeedDefaults(s.ctx, s.cfg.Casino.DefaultPromos)
	if err != nil {
		return err
	}
	if created > 0 {
		s.logger.Info("写入默认促销码", zap.Int("count", created))
	}

	limiter, closeLimiter, err := ratelimit.New(&s.cfg.Redis, s.cfg.Casino.MaxGamesPerMinute, time.Minute, s.clock, logger.WithModule("ratelimit"))
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrStoreUnavailable, "初始化限流失败")
	}
	s.limiter, s.closeLimiter = limiter, closeLimiter

	s.sessions = session.NewManager(logger.WithModule("session"), s.cfg.Session.IdleTimeout, session.WithClock(s.clock))
	engine := game.NewEngine(nil, game.NewPayouts(s.cfg.Casino.Payouts))
	s.casino = casino.New(
		s.services.Ledger,
		s.services.Promo,
		s.sessions,
		engine,
		s.limiter,
		s.cfg.Casino,
		logger.WithModule("casino"),
	)

	s.hub = ws.NewHub(s.casino, s.clock, logger.WithModule("websocket"))

	if s.cfg.Backup.Enabled {
		if err := s.initBackup(); err != nil {
			return err
		}
	}

	cron, err := scheduler.New(s.clock, logger.WithModule("scheduler"))
	if err != nil {
		return err
	}
	err = cron.Register(scheduler.Jobs{
		Sessions:       s.sessions,
		Limiter:        s.limiter,
		Backups:        s.backups,
		SweepInterval:  s.cfg.Session.SweepInterval,
		BackupInterval: s.cfg.Backup.Interval,
	})
	if err != nil {
		return err
	}
	s.cron = cron

	gin.SetMode(ginMode(s.cfg.Server.Mode))
	router := api.NewRouter(api.Deps{
		DB:       s.db,
		Config:   s.cfg,
		Services: s.services,
		Actions:  s.casino,
		Hub:      s.hub,
		Backups:  s.backups,
	}, logger.WithModule("api"))

	s.httpServer = &http.Server{
		Addr:         net.JoinHostPort(s.cfg.Server.Host, strconv.Itoa(s.cfg.Server.Port)),
		Handler:      router.Handler(),
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
	}

	s.logger.Info("所有组件初始化完成")
	return nil
}

// initDatabase 初始化数据库
func (s *Server) initDatabase() error {
	db, err := database.Open(&s.cfg.Database, logger.WithModule("database"))
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrStoreUnavailable, "初始化数据库连接失败")
	}
	s.db = db

	if s.cfg.Database.AutoMigrate {
		s.logger.Info("执行数据库自动迁移...")
		if err := database.AutoMigrate(db, logger.WithModule("database")); err != nil {
			return apperrors.Wrap(err, apperrors.ErrStoreUnavailable, "数据库迁移失败")
		}
	}

	ctx, cancel := context.WithTimeout(s.ctx, 5*time.Second)
	defer cancel()
	if err := database.Ping(ctx, db); err != nil {
		return apperrors.Wrap(err, apperrors.ErrStoreUnavailable, "数据库连接检查失败")
	}
	return nil
}

// initBackup 初始化备份，对象存储上传可选
func (s *Server) initBackup() error {
	var uploader backup.Uploader
	if s.cfg.Backup.S3.Enabled {
		u, err := backup.NewS3Uploader(s.ctx, s.cfg.Backup.S3)
		if err != nil {
			return apperrors.Wrap(err, apperrors.ErrBackup, "初始化对象存储失败")
		}
		uploader = u
	}
	s.backups = backup.NewManager(s.db, s.cfg.Backup, uploader, s.clock, logger.WithModule("backup"))
	return nil
}

// startServices 启动服务
func (s *Server) startServices() error {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.hub.Run(s.ctx)
	}()

	s.cron.Start()

	// 先监听端口，端口被占用时启动直接失败
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return err
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("HTTP服务异常退出", zap.Error(err))
		}
	}()
	return nil
}

// WaitForShutdown 等待关闭信号
func (s *Server) WaitForShutdown() {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	sig := <-sigCh
	s.logger.Info("收到退出信号", zap.String("signal", sig.String()))
}

// Shutdown 优雅关闭服务器
func (s *Server) Shutdown() error {
	s.logger.Info("正在优雅关闭服务器...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.Server.ShutdownTimeout)
	defer cancel()

	// 停止接收新请求，进行中的请求继续处理
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		s.logger.Warn("HTTP服务关闭超时", zap.Error(err))
	}
	if err := s.cron.Stop(); err != nil {
		s.logger.Warn("停止定时任务失败", zap.Error(err))
	}

	s.cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("所有服务已正常关闭")
	case <-shutdownCtx.Done():
		s.logger.Warn("关闭超时，强制退出")
		return apperrors.New(apperrors.ErrTimeout, "关闭超时")
	}

	s.closeComponents()

	if err := logger.Sync(); err != nil {
		fmt.Printf("同步日志失败: %v\n", err)
	}
	return nil
}

// closeComponents 关闭组件
func (s *Server) closeComponents() {
	if s.closeLimiter != nil {
		if err := s.closeLimiter(); err != nil {
			s.logger.Error("关闭限流存储失败", zap.Error(err))
		}
	}
	if err := database.Close(s.db); err != nil {
		s.logger.Error("关闭数据库失败", zap.Error(err))
	}
}

func ginMode(mode string) string {
	switch mode {
	case "production", "release":
		return gin.ReleaseMode
	case "test":
		return gin.TestMode
	default:
		return gin.DebugMode
	}
}

// printVersion 打印版本信息
func printVersion() {
	fmt.Printf("聊天赌场服务\n")
	fmt.Printf("版本: %s\n", Version)
	fmt.Printf("构建时间: %s\n", BuildTime)
	fmt.Printf("Git提交: %s\n", GitCommit)
	fmt.Printf("Go版本: %s\n", runtime.Version())
	fmt.Printf("操作系统: %s/%s\n", runtime.GOOS, runtime.GOARCH)
}

// printHelp 打印帮助信息
func printHelp() {
	fmt.Println("聊天赌场服务")
	fmt.Println()
	fmt.Println("用法:")
	fmt.Println("  casino-server [选项]")
	fmt.Println()
	fmt.Println("选项:")
	flag.PrintDefaults()
	fmt.Println()
	fmt.Println("环境变量:")
	fmt.Println("  CASINO_SERVER_PORT            监听端口")
	fmt.Println("  CASINO_DATABASE_DSN           数据库连接串")
	fmt.Println("  CASINO_SERVER_GATEWAY_TOKEN   聊天网关令牌")
	fmt.Println("  CASINO_ADMIN_JWT_SECRET       管理令牌签名密钥")
	fmt.Println()
	fmt.Println("示例:")
	fmt.Println("  casino-server -config=/path/to/config.yaml")
	fmt.Println("  casino-server -version")
}
