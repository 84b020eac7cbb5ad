package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/rhuss/slidewright/pkg/api"
	"github.com/rhuss/slidewright/pkg/engine"
	"github.com/rhuss/slidewright/pkg/render"
)

type generateOptions struct {
	format    string
	output    string
	theme     string
	audience  string
	model     string
	maxSlides int
	noCache   bool
	summary   bool
}

// options returns the generation options set on the command line.
func (o *generateOptions) options(cmd *cobra.Command) map[string]any {
	opts := map[string]any{}
	if o.theme != "" {
		opts["theme"] = o.theme
	}
	if o.audience != "" {
		opts["audience"] = o.audience
	}
	if o.model != "" {
		opts["model"] = o.model
	}
	if cmd.Flags().Changed("max-slides") {
		opts["max_slides"] = o.maxSlides
	}
	if o.noCache {
		opts["use_cache"] = false
	}
	return opts
}

func newGenerateCommand(cc *commandContext) *cobra.Command {
	o := &generateOptions{}

	cmd := &cobra.Command{
		Use:   "generate FILE|-",
		Short: "Generate a presentation from a document",
		Long: `Generate a presentation from a PDF, DOCX, Markdown or text file.
Use "-" to read plain text from standard input.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if o.format != "json" && o.format != "html" {
				return fmt.Errorf("unknown format %q (want json or html)", o.format)
			}
			return cc.generate(cmd, args[0], o)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&o.format, "format", "f", "json", "Output format: json or html")
	flags.StringVarP(&o.output, "output", "o", "", "Write output to FILE instead of stdout")
	flags.StringVar(&o.theme, "theme", "", "Presentation theme")
	flags.StringVar(&o.audience, "audience", "", "Target audience")
	flags.StringVar(&o.model, "model", "", "Model override")
	flags.IntVar(&o.maxSlides, "max-slides", 0, "Upper bound on the number of slides")
	flags.BoolVar(&o.noCache, "no-cache", false, "Bypass cached results")
	flags.BoolVar(&o.summary, "summary", false, "Print a slide summary to stderr (default when stderr is a terminal)")
	return cmd
}

func (c *commandContext) generate(cmd *cobra.Command, source string, o *generateOptions) error {
	ctx := cmd.Context()
	logger := c.logger

	gen, err := newGenerator(ctx, c.config, logger)
	if err != nil {
		return err
	}
	defer gen.Close()

	progress := func(p float64, msg string) {
		logger.Debug("generation progress", "progress", p, "message", msg)
	}

	resp, err := runGeneration(ctx, gen.service, cmd.InOrStdin(), source, o.options(cmd), progress)
	if err != nil {
		return err
	}
	logger.Info("presentation generated",
		"generation_id", resp.Metadata.GenerationID,
		"slides", resp.Metadata.SlideCount,
		"cached", resp.Metadata.Cached,
	)

	var buf bytes.Buffer
	switch o.format {
	case "html":
		err = render.Deck(&buf, resp.Presentation)
	default:
		var data []byte
		data, err = json.MarshalIndent(resp, "", "  ")
		buf.Write(data)
		buf.WriteByte('\n')
	}
	if err != nil {
		return fmt.Errorf("rendering %s: %w", o.format, err)
	}

	if o.output != "" {
		if err := os.WriteFile(o.output, buf.Bytes(), 0o644); err != nil {
			return fmt.Errorf("writing output: %w", err)
		}
	} else if _, err := buf.WriteTo(cmd.OutOrStdout()); err != nil {
		return err
	}

	if o.summary || isTerminal(cmd.ErrOrStderr()) {
		fmt.Fprintln(cmd.ErrOrStderr(), summaryTable(resp))
	}
	return nil
}

// runGeneration reads plain text from stdin for "-" and otherwise hands the
// named file to the document processor.
func runGeneration(ctx context.Context, svc *engine.Service, stdin io.Reader, source string, options map[string]any, progress engine.ProgressFunc) (*api.GenerationResponse, error) {
	if source == "-" {
		text, err := io.ReadAll(stdin)
		if err != nil {
			return nil, fmt.Errorf("reading stdin: %w", err)
		}
		return svc.GenerateFromText(ctx, &api.GenerationRequest{DocumentText: string(text), Options: options}, progress)
	}

	f, err := os.Open(source)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return svc.GenerateFromFile(ctx, filepath.Base(source), f, options, progress)
}
