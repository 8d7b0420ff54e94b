// =============================================================================
// Readr 主入口
// =============================================================================
// 文学分析助手命令行，加载文档或外部作品后进入问答循环
//
// 使用方法:
//
//	readr ask -source gatsby.txt              # 加载本地文件后问答
//	readr ask -title "The Great Gatsby"       # 按标题检索外部来源后问答
//	readr ask -mode symbolism                 # 指定分析焦点
//	readr version                             # 显示版本信息
// =============================================================================
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/BaSui01/readr/config"
	"github.com/BaSui01/readr/session"
	"github.com/BaSui01/readr/types"
)

// =============================================================================
// 📦 版本信息（构建时注入）
// =============================================================================

var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// =============================================================================
// 🎯 主函数
// =============================================================================

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "ask":
		runAsk(os.Args[2:])
	case "version":
		printVersion()
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

// =============================================================================
// 💬 ask 命令
// =============================================================================

func runAsk(args []string) {
	fs := flag.NewFlagSet("ask", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file")
	sourcePath := fs.String("source", "", "Path to a local document (txt or pdf)")
	title := fs.String("title", "", "Title of a literary work to fetch from external sources")
	mode := fs.String("mode", "general", "Analysis mode: general, historical, character, symbolism, theme, technique")
	fs.Parse(args)

	loader := config.NewLoader()
	if *configPath != "" {
		loader = loader.WithConfigPath(*configPath)
	}
	cfg, err := loader.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := initLogger(cfg.Log)
	defer logger.Sync()

	sess, err := session.New(cfg, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create session: %v\n", err)
		os.Exit(1)
	}
	defer sess.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if cfg.Metrics.Enabled {
		startMetricsServer(cfg.Metrics.Addr, sess, logger)
	}

	if err := loadDocument(ctx, sess, *sourcePath, *title); err != nil {
		// 来源未命中不致命，问答仍可进行
		if types.GetErrorCode(err) == types.ErrSourceNotFound {
			fmt.Fprintf(os.Stderr, "Source not found, continuing without a document.\n")
		} else {
			fmt.Fprintf(os.Stderr, "Failed to load document: %v\n", err)
			os.Exit(1)
		}
	}

	questionLoop(ctx, sess, types.ParseAnalysisMode(*mode))
}

// loadDocument 按参数加载本地文件或外部来源，两者都未给出时跳过.
func loadDocument(ctx context.Context, sess *session.Session, sourcePath, title string) error {
	switch {
	case sourcePath != "":
		data, err := os.ReadFile(sourcePath)
		if err != nil {
			return err
		}
		n, err := sess.ProcessUpload(ctx, filepath.Base(sourcePath), data, "")
		if err != nil {
			return err
		}
		fmt.Printf("Indexed %q (%d chunks).\n", filepath.Base(sourcePath), n)
	case title != "":
		n, err := sess.ProcessQuery(ctx, title)
		if err != nil {
			return err
		}
		fmt.Printf("Indexed %q from external sources (%d chunks).\n", sess.DocumentTitle(), n)
	}
	return nil
}

// questionLoop 从标准输入逐行读取问题，流式输出回答.
func questionLoop(ctx context.Context, sess *session.Session, mode types.AnalysisMode) {
	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	fmt.Println("Ask a question about the text (empty line or Ctrl-D to quit):")
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		question := strings.TrimSpace(scanner.Text())
		if question == "" {
			break
		}
		if ctx.Err() != nil {
			break
		}

		start := time.Now()
		resp, err := sess.Ask(ctx, question, mode, func(delta string) {
			fmt.Print(delta)
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "\nError: %v\n", err)
			continue
		}
		fmt.Printf("\n\n(trace %s, %.1fs)\n", resp.TraceID, time.Since(start).Seconds())
	}
	fmt.Println("\nGoodbye.")
}

// startMetricsServer 在独立 goroutine 上暴露 Prometheus 指标.
func startMetricsServer(addr string, sess *session.Session, logger *zap.Logger) {
	collector := sess.Metrics()
	if collector == nil {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", collector.Handler())
	go func() {
		logger.Info("Metrics server listening", zap.String("addr", addr))
		if err := http.ListenAndServe(addr, mux); err != nil {
			logger.Warn("Metrics server stopped", zap.Error(err))
		}
	}()
}

// =============================================================================
// 📜 日志初始化
// =============================================================================

func initLogger(cfg config.LogConfig) *zap.Logger {
	// 解析日志级别
	var level zapcore.Level
	switch cfg.Level {
	case "debug":
		level = zapcore.DebugLevel
	case "info":
		level = zapcore.InfoLevel
	case "warn":
		level = zapcore.WarnLevel
	case "error":
		level = zapcore.ErrorLevel
	default:
		level = zapcore.InfoLevel
	}

	// 配置编码器
	var encoderConfig zapcore.EncoderConfig
	if cfg.Format == "console" {
		encoderConfig = zap.NewDevelopmentEncoderConfig()
		encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		encoderConfig = zap.NewProductionEncoderConfig()
		encoderConfig.TimeKey = "timestamp"
		encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}

	// 构建配置
	zapConfig := zap.Config{
		Level:            zap.NewAtomicLevelAt(level),
		Development:      cfg.Format == "console",
		Encoding:         "json",
		EncoderConfig:    encoderConfig,
		OutputPaths:      cfg.OutputPaths,
		ErrorOutputPaths: []string{"stderr"},
	}
	if cfg.Format == "console" {
		zapConfig.Encoding = "console"
	}

	opts := []zap.Option{zap.AddStacktrace(zapcore.ErrorLevel)}
	if cfg.EnableCaller {
		opts = append(opts, zap.AddCaller())
	}

	logger, err := zapConfig.Build(opts...)
	if err != nil {
		// 回退到基本 logger
		logger, _ = zap.NewProduction()
	}
	return logger
}

// =============================================================================
// ℹ️ 版本与帮助
// =============================================================================

func printVersion() {
	fmt.Printf("readr %s (built %s, commit %s)\n", Version, BuildTime, GitCommit)
}

func printUsage() {
	fmt.Println(`readr - literary analysis assistant

Usage:
  readr ask [flags]    Start an interactive question loop
  readr version        Show version information
  readr help           Show this help

Flags for ask:
  -config string   Path to config file
  -source string   Path to a local document (txt or pdf)
  -title string    Title of a literary work to fetch from external sources
  -mode string     Analysis mode: general, historical, character, symbolism, theme, technique (default "general")

Environment:
  READR_LLM_API_KEY   API key for the chat model (required)`)
}
