// casinoctl 运维命令行工具，直接操作服务使用的数据库
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/wfunc/casino-bot/internal/backup"
	"github.com/wfunc/casino-bot/internal/config"
	"github.com/wfunc/casino-bot/internal/database"
	"github.com/wfunc/casino-bot/internal/logger"
	"github.com/wfunc/casino-bot/internal/service"
	"github.com/wfunc/casino-bot/internal/utils"
)

type command struct {
	usage string
	run   func(ctx context.Context, app *app, args []string) error
}

var commands = map[string]command{
	"init":        {"init                         迁移表结构并写入默认促销码", runInit},
	"createpromo": {"createpromo CODE REWARD [MAX] 创建或重置促销码", runCreatePromo},
	"stats":       {"stats                        运营统计和可疑账户", runStats},
	"top":         {"top [N]                      余额排行榜", runTop},
	"backup":      {"backup                       立即备份数据库", runBackup},
	"token":       {"token                        签发管理员令牌", runToken},
	"hashpw":      {"hashpw PASSWORD              生成管理员密码哈希", runHashPassword},
}

type app struct {
	cfg      *config.Config
	db       *gorm.DB
	services *service.Services
	log      *zap.Logger
}

func main() {
	configPath := flag.String("config", "", "配置文件路径")
	envFile := flag.String("env", ".env", "环境变量文件")
	flag.Usage = printUsage
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(2)
	}
	cmd, ok := commands[args[0]]
	if !ok {
		fmt.Fprintf(os.Stderr, "未知命令: %s\n\n", args[0])
		printUsage()
		os.Exit(2)
	}

	// hashpw 不需要数据库
	if args[0] == "hashpw" {
		if err := cmd.run(context.Background(), nil, args[1:]); err != nil {
			fmt.Fprintf(os.Stderr, "❌ %v\n", err)
			os.Exit(1)
		}
		return
	}

	if err := godotenv.Load(*envFile); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "加载环境变量文件失败: %v\n", err)
	}
	if err := config.Init(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		os.Exit(1)
	}
	cfg := config.Get()

	// 命令行只输出警告以上的日志，避免干扰结果
	logCfg := cfg.Log
	logCfg.Level = "warn"
	logCfg.Output = "stdout"
	if err := logger.Init(&logCfg); err != nil {
		fmt.Fprintf(os.Stderr, "初始化日志失败: %v\n", err)
		os.Exit(1)
	}
	defer logger.Cleanup()

	a, err := newApp(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "❌ %v\n", err)
		os.Exit(1)
	}
	defer database.Close(a.db)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	if err := cmd.run(ctx, a, args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "❌ %v\n", err)
		os.Exit(1)
	}
}

func newApp(cfg *config.Config) (*app, error) {
	log := logger.WithModule("casinoctl")
	db, err := database.Open(&cfg.Database, log)
	if err != nil {
		return nil, err
	}
	if err := database.AutoMigrate(db, log); err != nil {
		database.Close(db)
		return nil, err
	}
	return &app{
		cfg:      cfg,
		db:       db,
		services: service.NewServices(db, cfg, clockwork.NewRealClock(), log),
		log:      log,
	}, nil
}

func runInit(ctx context.Context, a *app, _ []string) error {
	created, err := a.services.Promo.SeedDefaults(ctx, a.cfg.Casino.DefaultPromos)
	if err != nil {
		return err
	}
	fmt.Printf("✅ 数据库已就绪，新增默认促销码 %d 个\n", created)
	return nil
}

func runCreatePromo(ctx context.Context, a *app, args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("用法: createpromo CODE REWARD [MAX]")
	}
	reward, err := strconv.ParseInt(args[1], 10, 64)
	if err != nil || reward <= 0 {
		return fmt.Errorf("奖励必须是正整数: %s", args[1])
	}
	maxUses := int64(100)
	if len(args) > 2 {
		maxUses, err = strconv.ParseInt(args[2], 10, 64)
		if err != nil || maxUses <= 0 {
			return fmt.Errorf("最大使用次数必须是正整数: %s", args[2])
		}
	}

	promo, err := a.services.Promo.CreateCode(ctx, args[0], reward, maxUses)
	if err != nil {
		return err
	}
	fmt.Printf("✅ 促销码 %s 已创建：奖励 %d，可用 %d 次\n", promo.Code, promo.Reward, promo.MaxUses)
	return nil
}

func runStats(ctx context.Context, a *app, _ []string) error {
	stats, err := a.services.Stats.Overview(ctx)
	if err != nil {
		return err
	}
	return printJSON(stats)
}

func runTop(ctx context.Context, a *app, args []string) error {
	limit := a.cfg.Casino.LeaderboardSize
	if len(args) > 0 {
		n, err := strconv.Atoi(args[0])
		if err != nil || n <= 0 {
			return fmt.Errorf("N 必须是正整数: %s", args[0])
		}
		limit = n
	}

	accounts, err := a.services.Ledger.TopAccounts(ctx, limit)
	if err != nil {
		return err
	}
	for i, acc := range accounts {
		fmt.Printf("%2d. %-20s %10d  %d 局 胜率 %.0f%%\n",
			i+1, acc.DisplayName, acc.Balance, acc.TotalGames, acc.WinRate()*100)
	}
	return nil
}

func runBackup(ctx context.Context, a *app, _ []string) error {
	var uploader backup.Uploader
	if a.cfg.Backup.S3.Enabled {
		u, err := backup.NewS3Uploader(ctx, a.cfg.Backup.S3)
		if err != nil {
			return err
		}
		uploader = u
	}
	m := backup.NewManager(a.db, a.cfg.Backup, uploader, clockwork.NewRealClock(), a.log)
	result, err := m.Run(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("✅ 备份完成: %s (%d 字节)\n", result.Path, result.Size)
	if result.RemoteKey != "" {
		fmt.Printf("   已上传: %s\n", result.RemoteKey)
	}
	return nil
}

func runToken(_ context.Context, a *app, _ []string) error {
	token, err := a.services.Admin.IssueToken(a.cfg.Admin.Username)
	if err != nil {
		return err
	}
	return printJSON(token)
}

func runHashPassword(_ context.Context, _ *app, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("用法: hashpw PASSWORD")
	}
	hash, err := utils.HashPassword(args[0])
	if err != nil {
		return err
	}
	fmt.Println(hash)
	return nil
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "用法: casinoctl [-config path] [-env file] <命令> [参数]")
	fmt.Fprintln(os.Stderr)
	fmt.Fprintln(os.Stderr, "命令:")
	for _, name := range []string{"init", "createpromo", "stats", "top", "backup", "token", "hashpw"} {
		fmt.Fprintf(os.Stderr, "  %s\n", commands[name].usage)
	}
	fmt.Fprintln(os.Stderr)
	fmt.Fprintln(os.Stderr, "选项:")
	flag.PrintDefaults()
}
