package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/MakiDevelop/ting-data-etl/internal/config"
	"github.com/MakiDevelop/ting-data-etl/internal/csvio"
)

var (
	// Global flags
	verbose    bool
	configFile string

	cfg    *config.AppConfig
	logger *zap.Logger
)

// rootCmd 根命令
var rootCmd = &cobra.Command{
	Use:   "tingetl",
	Short: "按商店序号拆分 CSV、计算分店报表并校验输出",
	Long: `tingetl 处理会员系统导出的 CSV：

  fanout      按商店序号把输入 CSV 拆分到 output/{商店序号}/{文件名}
  aggregate   计算一张分店报表并写入每个分店目录
  verify      校验拆分结果（文件集合 + 商店序号内容）

配置文件默认为可执行文件同目录下的 config.toml，不存在时使用默认配置。`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, info, err := config.LoadConfigWithInfo(configFile)
		if err != nil {
			return fmt.Errorf("加载配置失败: %w", err)
		}
		cfg = loaded

		logger, err = buildLogger(cfg.Log, verbose)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		logger.Debug("配置已加载", zap.String("path", info.Path), zap.Bool("found", info.Found))
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func buildLogger(lc config.LogConfig, verbose bool) (*zap.Logger, error) {
	zc := zap.NewProductionConfig()
	if lc.Development {
		zc = zap.NewDevelopmentConfig()
	}
	if lc.Level != "" {
		level, err := zapcore.ParseLevel(strings.ToLower(lc.Level))
		if err != nil {
			return nil, err
		}
		zc.Level = zap.NewAtomicLevelAt(level)
	}
	if verbose {
		zc.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	return zc.Build()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVar(&configFile, "config-file", "", "配置文件路径 (默认: 可执行文件同目录下的 config.toml)")

	rootCmd.AddCommand(fanoutCmd)
	rootCmd.AddCommand(aggregateCmd)
	rootCmd.AddCommand(verifyCmd)
	rootCmd.AddCommand(verifyCountCmd)
	rootCmd.AddCommand(presenceCmd)
	rootCmd.AddCommand(mergeChunksCmd)
	rootCmd.AddCommand(generateCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(serveCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// signalContext 收到 SIGINT / SIGTERM 时取消
func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
}

// encodingOr 命令行优先，其次为配置
func encodingOr(flag, fallback string) (csvio.Encoding, error) {
	return csvio.LookupEncoding(stringOr(flag, fallback))
}

func stringOr(flag, fallback string) string {
	if flag != "" {
		return flag
	}
	return fallback
}
