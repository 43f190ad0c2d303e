package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/tsawler/tenderfill"
	"github.com/tsawler/tenderfill/profile"
	"github.com/tsawler/tenderfill/report"
)

type batchFlags struct {
	inputFlags
	outDirArg string
	reportArg string
	jobsArg   int
}

// job is one template rendered with one profile.
type job struct {
	template string
	profile  string
	output   string
}

func newBatchCmd(stdout, stderr io.Writer, flags *globalFlags) *cobra.Command {
	f := &batchFlags{}
	cmd := &cobra.Command{
		Use:   "batch <template.docx|dir> ...",
		Short: "批量填写多个模板",
		Long: `批量填写模板。参数可以是 .docx 文件或目录（目录下的 .docx 全部处理）。

--profile 可以是单个资料文件，也可以是资料目录；给出目录时每份资料各填写一遍
全部模板，输出放在 <输出目录>/<资料名>/ 下。处理结果汇总到 --report 指定的
.xlsx 文件。单个文档失败不影响其它文档。

示例:
  tenderfill batch templates/ -p supplier.yaml -j project.yaml -o out/
  tenderfill batch a.docx b.docx -p suppliers/ -o out/ --jobs 4`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBatch(cmd.Context(), stdout, stderr, flags, f, args)
		},
	}
	bindInputFlags(cmd, &f.inputFlags, false)
	cmd.Flags().StringVarP(&f.outDirArg, "out-dir", "o", "", "输出目录")
	cmd.Flags().StringVar(&f.reportArg, "report", "", "汇总报告路径，默认 <输出目录>/report.xlsx")
	cmd.Flags().IntVar(&f.jobsArg, "jobs", runtime.NumCPU(), "并发数")
	return cmd
}

func runBatch(ctx context.Context, stdout, stderr io.Writer, flags *globalFlags, f *batchFlags, args []string) error {
	if f.profileArg == "" || f.outDirArg == "" {
		return fmt.Errorf("--profile and --out-dir are required")
	}
	templates, err := expand(args, ".docx")
	if err != nil {
		return err
	}
	profiles, err := expand([]string{f.profileArg}, ".yaml", ".yml", ".json", ".xlsx")
	if err != nil {
		return err
	}
	jobs, err := plan(templates, profiles, f.outDirArg)
	if err != nil {
		return err
	}

	s, err := newSession(stderr, flags)
	if err != nil {
		return err
	}
	defer s.close()

	var proj *profile.Project
	if f.projectArg != "" {
		if proj, err = profile.LoadProject(f.projectArg); err != nil {
			return fmt.Errorf("loading project: %w", err)
		}
	}
	// Profiles are read once and shared; a render never modifies them.
	profs := make(map[string]*profile.Profile, len(profiles))
	for _, p := range profiles {
		if profs[p], err = profile.LoadFile(p, s.opts.Config); err != nil {
			return fmt.Errorf("loading profile: %w", err)
		}
	}

	ctx, cancel := renderContext(ctx, 0)
	defer cancel()

	entries := make([]report.Entry, len(jobs))
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(f.jobsArg, 1))
	for i, j := range jobs {
		i, j := i, j
		g.Go(func() error {
			if err := os.MkdirAll(filepath.Dir(j.output), 0o755); err != nil {
				return err
			}
			rctx, rcancel := gctx, context.CancelFunc(func() {})
			if f.timeoutArg > 0 {
				rctx, rcancel = context.WithTimeout(gctx, f.timeoutArg)
			}
			defer rcancel()

			start := time.Now()
			stats, err := tenderfill.Render(rctx, j.template, j.output, profs[j.profile], proj, s.opts)
			entries[i] = report.Entry{
				Template: j.template,
				Profile:  j.profile,
				Output:   j.output,
				Stats:    stats,
				Err:      err,
				Duration: time.Since(start),
			}
			mu.Lock()
			status := entries[i].Status()
			if err != nil {
				fmt.Fprintf(stdout, "[%s] %s: %v\n", status, j.template, err)
			} else {
				fmt.Fprintf(stdout, "[%s] %s -> %s\n", status, j.template, j.output)
			}
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	reportPath := f.reportArg
	if reportPath == "" {
		reportPath = filepath.Join(f.outDirArg, "report.xlsx")
	}
	if err := report.Write(reportPath, entries); err != nil {
		return err
	}

	failed := 0
	for _, e := range entries {
		if e.Err != nil {
			failed++
		}
	}
	fmt.Fprintf(stdout, "完成：成功 %d，失败 %d，报告 %s\n", len(entries)-failed, failed, reportPath)
	if failed > 0 {
		return fmt.Errorf("%d of %d documents failed", failed, len(entries))
	}
	return nil
}

// expand replaces directories in paths by the files they hold with one of
// exts, sorted. Files named explicitly are kept whatever their extension.
func expand(paths []string, exts ...string) ([]string, error) {
	var out []string
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			out = append(out, p)
			continue
		}
		entries, err := os.ReadDir(p)
		if err != nil {
			return nil, err
		}
		var found []string
		for _, e := range entries {
			name := e.Name()
			// Word keeps ~$ lock files next to open documents.
			if e.IsDir() || strings.HasPrefix(name, "~$") {
				continue
			}
			if hasExt(name, exts) {
				found = append(found, filepath.Join(p, name))
			}
		}
		if len(found) == 0 {
			return nil, fmt.Errorf("%s: no %s files", p, strings.Join(exts, "/"))
		}
		sort.Strings(found)
		out = append(out, found...)
	}
	return out, nil
}

func hasExt(name string, exts []string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, e := range exts {
		if ext == e {
			return true
		}
	}
	return false
}

// plan pairs every template with every profile. With more than one profile
// the outputs go to a directory per profile.
func plan(templates, profiles []string, outDir string) ([]job, error) {
	var jobs []job
	seen := make(map[string]string)
	for _, p := range profiles {
		dir := outDir
		if len(profiles) > 1 {
			dir = filepath.Join(outDir, stem(p))
		}
		for _, t := range templates {
			out := filepath.Join(dir, stem(t)+".docx")
			if prev, ok := seen[out]; ok {
				return nil, fmt.Errorf("%s and %s would both be written to %s", prev, t, out)
			}
			seen[out] = t
			jobs = append(jobs, job{template: t, profile: p, output: out})
		}
	}
	return jobs, nil
}

func stem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
