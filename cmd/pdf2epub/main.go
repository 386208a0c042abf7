package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/yuanying/pdf2epub/internal/config"
	"github.com/yuanying/pdf2epub/internal/converter"
	"go.uber.org/automaxprocs/maxprocs"
)

const untitled = "Untitled"

// cliOptions is the resolved configuration of one convert invocation.
type cliOptions struct {
	converter.ConvertOptions
	Format converter.OutputFormat
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pdf2epub [input.pdf | -]",
		Short: "Convert PDF files to image-based EPUB or ZIP",
		Long: `pdf2epub rasterizes every page of a PDF and packages the page images
as a fixed-layout EPUB 2 book or as a plain ZIP archive, or writes them
into a directory (--format images). An input of "-" reads the PDF from
standard input.

Pages are rendered with poppler-utils (pdftoppm, pdfinfo), which must be
installed and on PATH unless configured otherwise.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := readCLIOptions(cmd, args)
			if err != nil {
				return err
			}

			opts.Logger.Info("converting", "input", inputLabel(opts.ConvertOptions), "output", opts.OutputPath)
			p := converter.NewPipeline(opts.ConvertOptions)
			if err := p.Convert(cmd.Context(), opts.Format); err != nil {
				return fmt.Errorf("conversion failed: %w", err)
			}
			opts.Logger.Info("done", "output", opts.OutputPath)
			return nil
		},
	}

	f := cmd.Flags()
	f.StringP("output", "o", "", "Output path (default: input with .epub/.zip extension, or without extension for images)")
	f.StringP("title", "t", "", "Book title (default: input file name)")
	f.StringP("format", "f", config.FormatEPUB, "Output format: epub, zip or images")
	f.String("images-dir", "", "Package pre-rendered page images from this directory instead of a PDF")
	f.Int("dpi", 0, "Rendering resolution (default 300)")
	f.Int("width", 0, "Maximum page image width in pixels (default 600)")
	f.Int("height", 0, "Maximum page image height in pixels (default 800)")
	f.String("image-format", "", "Page image format for zip or images output: png or jpeg (default png)")
	f.Int("workers", 0, "Parallel page renderers (0 = auto)")
	f.String("config", "", "YAML configuration file")
	f.String("log-level", "info", "Log level: debug, info, warn, error")
	f.String("log-format", "text", "Log format: text or json")
	f.BoolP("verbose", "v", false, "Enable debug logging (overrides --log-level)")

	cmd.AddCommand(newInspectCmd())
	return cmd
}

// readCLIOptions merges defaults, the optional config file and explicitly set
// flags, in that order of precedence.
func readCLIOptions(cmd *cobra.Command, args []string) (*cliOptions, error) {
	flags := cmd.Flags()

	cfg := config.DefaultConfig()
	if path, _ := flags.GetString("config"); path != "" {
		loaded, err := config.LoadConfig(path)
		if err != nil {
			return nil, fmt.Errorf("invalid --config: %w", err)
		}
		cfg = loaded
	}

	if err := applyFlags(cmd, cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	format, err := converter.ParseOutputFormat(cfg.Output.Format)
	if err != nil {
		return nil, fmt.Errorf("invalid --format: %w", err)
	}
	spec, err := cfg.RenderSpec()
	if err != nil {
		return nil, err
	}

	imagesDir, _ := flags.GetString("images-dir")
	var input string
	switch {
	case len(args) == 1 && imagesDir != "":
		return nil, errors.New("give either an input PDF or --images-dir, not both")
	case len(args) == 1:
		input = args[0]
	case imagesDir != "":
		if format == converter.FormatImages {
			return nil, errors.New("--format images needs an input PDF, not --images-dir")
		}
		abs, err := filepath.Abs(imagesDir)
		if err != nil {
			return nil, fmt.Errorf("invalid --images-dir %q: %w", imagesDir, err)
		}
		input = abs
	default:
		return nil, errors.New("missing input PDF (or --images-dir)")
	}

	output, _ := flags.GetString("output")
	if output == "" {
		if input == converter.StdinPath {
			return nil, errors.New("reading the PDF from stdin requires --output")
		}
		output = defaultOutputPath(input, format)
	}
	title, _ := flags.GetString("title")
	if title == "" {
		title = defaultTitle(input)
	}

	level := cfg.Log.Level
	if verbose, _ := flags.GetBool("verbose"); verbose {
		level = "debug"
	}

	opts := &cliOptions{
		ConvertOptions: converter.ConvertOptions{
			OutputPath: output,
			Title:      title,
			Render:     spec,
			Workers:    cfg.Render.Workers,
			Backend:    cfg.Backend(),
			Logger:     buildLogger(os.Stderr, level, cfg.Log.Format),
		},
		Format: format,
	}
	if imagesDir != "" {
		opts.ImagesDir = imagesDir
	} else {
		opts.InputPath = input
	}
	return opts, nil
}

// applyFlags copies explicitly set flags over cfg, rejecting invalid values
// with the offending flag name.
func applyFlags(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()

	if flags.Changed("format") {
		v, _ := flags.GetString("format")
		if _, err := converter.ParseOutputFormat(v); err != nil {
			return fmt.Errorf("invalid --format %q: must be epub, zip or images", v)
		}
		cfg.Output.Format = strings.ToLower(strings.TrimSpace(v))
	}

	positive := []struct {
		flag string
		dst  *int
	}{
		{"dpi", &cfg.Render.DPI},
		{"width", &cfg.Render.Width},
		{"height", &cfg.Render.Height},
	}
	for _, p := range positive {
		if !flags.Changed(p.flag) {
			continue
		}
		v, _ := flags.GetInt(p.flag)
		if v <= 0 {
			return fmt.Errorf("invalid --%s %d: must be positive", p.flag, v)
		}
		*p.dst = v
	}

	if flags.Changed("workers") {
		v, _ := flags.GetInt("workers")
		if v < 0 {
			return fmt.Errorf("invalid --workers %d: must not be negative", v)
		}
		cfg.Render.Workers = v
	}
	if flags.Changed("image-format") {
		v, _ := flags.GetString("image-format")
		v = strings.ToLower(strings.TrimSpace(v))
		if v != "png" && v != "jpeg" && v != "jpg" {
			return fmt.Errorf("invalid --image-format %q: must be png or jpeg", v)
		}
		cfg.Render.Format = v
	}
	if flags.Changed("log-level") {
		v, _ := flags.GetString("log-level")
		if _, ok := parseLogLevel(v); !ok {
			return fmt.Errorf("invalid --log-level %q: must be debug, info, warn or error", v)
		}
		cfg.Log.Level = strings.ToLower(v)
	}
	if flags.Changed("log-format") {
		v, _ := flags.GetString("log-format")
		v = strings.ToLower(v)
		if v != "text" && v != "json" {
			return fmt.Errorf("invalid --log-format %q: must be text or json", v)
		}
		cfg.Log.Format = v
	}
	return nil
}

func parseLogLevel(s string) (slog.Level, bool) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, true
	case "info":
		return slog.LevelInfo, true
	case "warn":
		return slog.LevelWarn, true
	case "error":
		return slog.LevelError, true
	}
	return slog.LevelInfo, false
}

func buildLogger(w io.Writer, level, format string) *slog.Logger {
	lvl, _ := parseLogLevel(level)
	handlerOpts := &slog.HandlerOptions{Level: lvl}
	if strings.EqualFold(format, "json") {
		return slog.New(slog.NewJSONHandler(w, handlerOpts))
	}
	return slog.New(slog.NewTextHandler(w, handlerOpts))
}

func defaultOutputPath(input string, format converter.OutputFormat) string {
	return strings.TrimSuffix(input, filepath.Ext(input)) + format.Ext()
}

func defaultTitle(input string) string {
	if input == converter.StdinPath {
		return untitled
	}
	base := filepath.Base(input)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func inputLabel(opts converter.ConvertOptions) string {
	if opts.ImagesDir != "" {
		return opts.ImagesDir
	}
	return opts.InputPath
}

func main() {
	// maxprocs.Set only fails on an invalid GOMAXPROCS env; runtime defaults apply then.
	_, _ = maxprocs.Set(maxprocs.Logger(func(string, ...interface{}) {}))

	ctx, stop := notifyContext(context.Background())
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
