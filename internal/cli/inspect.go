package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/tsawler/tenderfill"
	"github.com/tsawler/tenderfill/render"
)

// inspection is the document printed by inspect.
type inspection struct {
	Template string         `json:"template" yaml:"template"`
	Stats    *render.Stats  `json:"stats" yaml:"stats"`
	Events   []render.Event `json:"events" yaml:"events"`
}

func newInspectCmd(stdout, stderr io.Writer, flags *globalFlags) *cobra.Command {
	f := &inputFlags{}
	var formatArg string
	cmd := &cobra.Command{
		Use:   "inspect <template.docx>",
		Short: "列出模板中的占位符及跳过原因，不写任何文件",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newSession(stderr, flags)
			if err != nil {
				return err
			}
			defer s.close()
			prof, proj, err := loadInputs(f.profileArg, f.projectArg, s.opts)
			if err != nil {
				return err
			}
			ctx, cancel := renderContext(cmd.Context(), f.timeoutArg)
			defer cancel()
			stats, events, err := tenderfill.Inspect(ctx, args[0], prof, proj, s.opts)
			if err != nil {
				return err
			}
			return writeInspection(stdout, formatArg, inspection{Template: args[0], Stats: stats, Events: events})
		},
	}
	bindInputFlags(cmd, f, false)
	cmd.Flags().StringVarP(&formatArg, "format", "f", "yaml", "输出格式：yaml 或 json")
	return cmd
}

func writeInspection(w io.Writer, format string, in inspection) error {
	switch format {
	case "yaml", "yml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(in); err != nil {
			return err
		}
		return enc.Close()
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		enc.SetEscapeHTML(false)
		return enc.Encode(in)
	default:
		return fmt.Errorf("unknown format %q (want yaml or json)", format)
	}
}
