package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/tsawler/tenderfill"
	"github.com/tsawler/tenderfill/profile"
	"github.com/tsawler/tenderfill/render"
	"github.com/tsawler/tenderfill/reply"
)

// inputFlags name the profile, project and output of a single render.
type inputFlags struct {
	profileArg string
	projectArg string
	outputArg  string
	timeoutArg time.Duration
}

func bindInputFlags(cmd *cobra.Command, f *inputFlags, output bool) {
	cmd.Flags().StringVarP(&f.profileArg, "profile", "p", "", "供应商资料文件（.yaml/.json/.xlsx）")
	cmd.Flags().StringVarP(&f.projectArg, "project", "j", "", "项目信息文件（.yaml/.json）")
	cmd.Flags().DurationVar(&f.timeoutArg, "timeout", 0, "单个文档的处理时限，0 表示不限")
	if output {
		cmd.Flags().StringVarP(&f.outputArg, "output", "o", "", "输出文件路径，默认 <模板名>_filled.docx")
	}
}

func newRenderCmd(stdout, stderr io.Writer, flags *globalFlags) *cobra.Command {
	f := &inputFlags{}
	cmd := &cobra.Command{
		Use:   "render <template.docx>",
		Short: "填写单个模板",
		Long: `用供应商资料和项目信息填写一个招标响应模板。

模板本身不会被修改，结果写入 --output 指定的文件。

示例:
  tenderfill render 响应文件.docx -p supplier.yaml -j project.yaml
  tenderfill render 响应文件.docx -p supplier.xlsx -o out.docx --stamp-seals`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if f.profileArg == "" {
				return errors.New("--profile is required")
			}
			return runRender(cmd.Context(), stdout, stderr, flags, f, args[0], nil)
		},
	}
	bindInputFlags(cmd, f, true)
	return cmd
}

func newReplyCmd(stdout, stderr io.Writer, flags *globalFlags) *cobra.Command {
	f := &inputFlags{}
	var answersArg string
	cmd := &cobra.Command{
		Use:   "reply <template.docx>",
		Short: "按应答文件填写点对点应答表",
		Long: `在需求/应答表格中逐条填写应答内容。

应答文件为 YAML，按序号或需求关键字匹配：

  default: 完全满足
  answers:
    - number: "3"
      reply: 提供7×24小时服务。
    - match: 驻场
      reply: <p>安排2名工程师驻场</p>

同时给出 --profile 时，其它字段也一并填写。`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if answersArg == "" {
				return errors.New("--answers is required")
			}
			answers, err := reply.LoadAnswers(answersArg)
			if err != nil {
				return err
			}
			return runRender(cmd.Context(), stdout, stderr, flags, f, args[0], answers)
		},
	}
	bindInputFlags(cmd, f, true)
	cmd.Flags().StringVarP(&answersArg, "answers", "a", "", "应答文件（.yaml）")
	return cmd
}

func runRender(ctx context.Context, stdout, stderr io.Writer, flags *globalFlags, f *inputFlags, template string, gen reply.Generator) error {
	s, err := newSession(stderr, flags)
	if err != nil {
		return err
	}
	defer s.close()
	s.opts.Replies = gen

	prof, proj, err := loadInputs(f.profileArg, f.projectArg, s.opts)
	if err != nil {
		return err
	}
	output := f.outputArg
	if output == "" {
		output = defaultOutput(template)
	}

	ctx, cancel := renderContext(ctx, f.timeoutArg)
	defer cancel()
	stats, err := tenderfill.Render(ctx, template, output, prof, proj, s.opts)
	if stats == nil {
		return err
	}
	printStats(stdout, output, stats)
	return err
}

// renderContext stops on interrupt and after timeout when it is positive.
func renderContext(parent context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt)
	if timeout <= 0 {
		return ctx, stop
	}
	tctx, cancel := context.WithTimeout(ctx, timeout)
	return tctx, func() { cancel(); stop() }
}

func loadInputs(profilePath, projectPath string, opts tenderfill.Options) (*profile.Profile, *profile.Project, error) {
	var (
		prof *profile.Profile
		proj *profile.Project
		err  error
	)
	if profilePath != "" {
		if prof, err = profile.LoadFile(profilePath, opts.Config); err != nil {
			return nil, nil, fmt.Errorf("loading profile: %w", err)
		}
	}
	if projectPath != "" {
		if proj, err = profile.LoadProject(projectPath); err != nil {
			return nil, nil, fmt.Errorf("loading project: %w", err)
		}
	}
	return prof, proj, nil
}

// defaultOutput places the output next to the template.
func defaultOutput(template string) string {
	ext := filepath.Ext(template)
	return strings.TrimSuffix(template, ext) + "_filled.docx"
}

func printStats(w io.Writer, output string, s *render.Stats) {
	fmt.Fprintf(w, "输出：%s\n", output)
	fmt.Fprintf(w, "段落 %d，匹配 %d，填充 %d，跳过 %d，图片 %d，后处理 %d\n",
		s.ParagraphsVisited, s.MatchesFound, s.MatchesFilled, s.Skipped(), s.ImagesInserted, s.PostProcessEdits)
	for _, rule := range s.SkipRules() {
		fmt.Fprintf(w, "  跳过 %-18s %d\n", rule, s.MatchesSkipped[rule])
	}
	if len(s.Warnings) > 0 {
		fmt.Fprintf(w, "警告 %d 条：\n", len(s.Warnings))
		for _, warn := range s.Warnings {
			fmt.Fprintf(w, "  %s\n", warn)
		}
	}
}
