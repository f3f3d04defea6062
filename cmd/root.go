package main

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/fyerfyer/docling-nodes/config"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	cfgFile  string
	envFile  string
	logLevel string

	// cfg 由PersistentPreRunE加载，子命令直接使用
	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "docling-nodes",
	Short: "Convert documents with docling and split them into nodes",
	Long: `docling-nodes converts PDF, Markdown and text sources into docling documents,
exports them as Markdown or JSON, and optionally splits them into nodes linked by
source, previous and next relationships.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to load env file %s: %w", envFile, err)
		}

		loaded, err := config.Load(cfgFile)
		if err != nil {
			return err
		}
		if logLevel != "" {
			loaded.Log.Level = logLevel
		}
		cfg = loaded
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "config.yaml", "Path to config file")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Path to .env file loaded before the config")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug/info/warn/error), overrides log.level")
}

// Execute 运行根命令
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// setupLogger 按配置设置日志级别和输出
// 配置了log.file时同时写入按大小切分的日志文件
func setupLogger(logger *logrus.Logger, lc config.LogConfig, out io.Writer) *logrus.Logger {
	level, err := logrus.ParseLevel(lc.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	if lc.File == "" {
		logger.SetOutput(out)
		return logger
	}

	logger.SetOutput(io.MultiWriter(out, &lumberjack.Logger{
		Filename:   lc.File,
		MaxSize:    lc.MaxSizeMB,
		MaxBackups: lc.MaxBackups,
		MaxAge:     lc.MaxAgeDays,
		Compress:   lc.Compress,
	}))
	return logger
}
