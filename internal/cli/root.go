// Package cli implements the tenderfill command line.
package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tsawler/tenderfill"
	"github.com/tsawler/tenderfill/config"
	"github.com/tsawler/tenderfill/ocr"
)

// Build information, set with -ldflags.
var (
	Version   = "dev"
	Commit    = "none"
	BuildTime = "unknown"
)

// globalFlags are shared by every command.
type globalFlags struct {
	configArg    string
	verboseArg   bool
	logFormatArg string
	strictArg    bool
	noImagesArg  bool
	sealsArg     bool
	ocrArg       bool
}

// Execute runs the root command with the process arguments.
func Execute() error {
	return NewRootCmd(os.Stdout, os.Stderr).Execute()
}

// NewRootCmd builds the command tree writing to stdout and stderr.
func NewRootCmd(stdout, stderr io.Writer) *cobra.Command {
	flags := &globalFlags{}

	root := &cobra.Command{
		Use:           "tenderfill",
		Short:         "用供应商资料填写招标响应文件模板（.docx）",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.CompletionOptions.HiddenDefaultCmd = true

	pf := root.PersistentFlags()
	pf.StringVar(&flags.configArg, "config", "", "配置文件路径，默认读取 $"+config.EnvConfigPath)
	pf.BoolVarP(&flags.verboseArg, "verbose", "v", false, "输出调试日志")
	pf.StringVar(&flags.logFormatArg, "log-format", "text", "日志格式：text 或 json")
	pf.BoolVar(&flags.strictArg, "strict", false, "缺少字段值时中止")
	pf.BoolVar(&flags.noImagesArg, "no-images", false, "不插入资质图片")
	pf.BoolVar(&flags.sealsArg, "stamp-seals", false, "在盖章位置插入公章图片")
	pf.BoolVar(&flags.ocrArg, "ocr", false, "用 OCR 识别未标注的资质扫描件（需以 ocr 标签构建）")

	root.AddCommand(
		newRenderCmd(stdout, stderr, flags),
		newBatchCmd(stdout, stderr, flags),
		newInspectCmd(stdout, stderr, flags),
		newReplyCmd(stdout, stderr, flags),
		&cobra.Command{
			Use:   "version",
			Short: "显示版本信息",
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Fprintln(stdout, versionText())
			},
		},
	)
	return root
}

func versionText() string {
	return fmt.Sprintf("tenderfill %s (commit %s, built %s)", Version, Commit, BuildTime)
}

// newLogger builds the handler selected by --log-format on w.
func newLogger(w io.Writer, format string, verbose bool) (*slog.Logger, error) {
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}
	if verbose {
		opts.Level = slog.LevelDebug
	}
	switch strings.ToLower(format) {
	case "", "text":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("unknown log format %q (want text or json)", format)
	}
}

// session is the state built from the global flags for one invocation.
type session struct {
	opts  tenderfill.Options
	close func()
}

// newSession loads the configuration, the logger and the optional
// classifier. The caller must call close.
func newSession(stderr io.Writer, flags *globalFlags) (*session, error) {
	logger, err := newLogger(stderr, flags.logFormatArg, flags.verboseArg)
	if err != nil {
		return nil, err
	}
	loader := config.NewLoader(flags.configArg)
	cfg, err := loader.Load()
	if err != nil {
		return nil, err
	}
	if path := loader.ConfigPath(); path != "" {
		logger.Debug("configuration loaded", "path", path)
	}

	opts := tenderfill.DefaultOptions()
	opts.Config = cfg
	opts.Logger = logger
	opts.StrictMissing = flags.strictArg
	opts.IncludeImages = !flags.noImagesArg
	opts.StampSeals = flags.sealsArg

	s := &session{opts: opts, close: func() {}}
	if flags.ocrArg {
		cl, err := ocr.NewClassifier(cfg)
		if err != nil {
			return nil, fmt.Errorf("--ocr: %w", err)
		}
		s.opts.Classifier = cl
		s.close = func() { cl.Close() }
	}
	return s, nil
}
