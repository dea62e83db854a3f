package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/mvp-joe/cbind/internal/extract"
	"github.com/mvp-joe/cbind/internal/render"
	"github.com/mvp-joe/cbind/internal/session"
	"github.com/mvp-joe/cbind/internal/watcher"
)

// ErrExtractionFailed is returned when at least one input could not be extracted.
var ErrExtractionFailed = errors.New("extraction failed")

// extractOptions are the flags of the extract command.
type extractOptions struct {
	format   string
	output   string
	save     string
	builtins []string
	watch    bool
	quiet    bool
	noColor  bool
}

var extractOpts extractOptions

// extractCmd represents the extract command
var extractCmd = &cobra.Command{
	Use:   "extract <file>...",
	Short: "Extract the declaration graph of C files",
	Long: `Extract parses each C file as its own translation unit and prints the
declarations it finds: structs, unions, enums, typedefs and the functions and
variables with external linkage.

Declarations using types with no representation (128-bit integers, vectors)
are skipped with a diagnostic; the rest of the file is still extracted. Files
that fail to parse produce no output.

Examples:
  # Extract one header as text
  cbind extract include/png.h

  # Extract several headers as JSON and save them for later runs
  cbind extract -f json --save build/png.db include/*.h

  # Reuse declarations bound by an earlier run
  cbind extract --builtins core.toml include/png.h

  # Re-extract whenever a header changes
  cbind extract --watch include/png.h
`,
	Args: cobra.MinimumNArgs(1),
	RunE: runExtract,
}

func init() {
	rootCmd.AddCommand(extractCmd)
	extractCmd.Flags().StringVarP(&extractOpts.format, "format", "f", "", "Output format: json, yaml or text (default from config)")
	extractCmd.Flags().StringVarP(&extractOpts.output, "output", "o", "", "Write output to a file instead of stdout")
	extractCmd.Flags().StringVar(&extractOpts.save, "save", "", "Save a snapshot of the extracted globals to this database")
	extractCmd.Flags().StringSliceVar(&extractOpts.builtins, "builtins", nil, "TOML builtin override files, in addition to the configured ones")
	extractCmd.Flags().BoolVarP(&extractOpts.watch, "watch", "w", false, "Watch the inputs and re-extract on change")
	extractCmd.Flags().BoolVarP(&extractOpts.quiet, "quiet", "q", false, "Disable progress bars and summaries")
	extractCmd.Flags().BoolVar(&extractOpts.noColor, "no-color", false, "Disable colored output")
}

func runExtract(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)
	go func() {
		select {
		case <-sigChan:
			fmt.Fprintln(os.Stderr, "\nInterrupted! Stopping...")
			cancel()
		case <-ctx.Done():
		}
	}()

	root, err := resolveProjectDir()
	if err != nil {
		return err
	}
	p, err := loadProject(root, verbose)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if extractOpts.output != "" {
		f, err := os.Create(p.path(extractOpts.output))
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close()
		out = f
	}

	return executeExtract(ctx, p, args, extractOpts, out, cmd.ErrOrStderr())
}

// extractRun holds everything one extract invocation reuses across watch cycles.
type extractRun struct {
	p      *project
	opts   extractOptions
	format render.Format
	sess   *session.Session
	inputs []string
	out    io.Writer
	errOut io.Writer
}

// executeExtract extracts args, renders the results to out and reports
// failures to errOut. With opts.watch it keeps re-extracting until ctx ends.
func executeExtract(ctx context.Context, p *project, args []string, opts extractOptions, out, errOut io.Writer) error {
	formatName := p.cfg.Output.Format
	if opts.format != "" {
		formatName = opts.format
	}
	format, err := render.ParseFormat(formatName)
	if err != nil {
		return err
	}

	builtins, err := p.builtins(ctx, opts.builtins)
	if err != nil {
		return err
	}
	sess, err := p.newSession(builtins)
	if err != nil {
		return err
	}
	defer sess.Close()

	run := &extractRun{
		p:      p,
		opts:   opts,
		format: format,
		sess:   sess,
		inputs: p.paths(args),
		out:    out,
		errOut: errOut,
	}

	runErr := run.once(ctx)
	if !opts.watch {
		return runErr
	}
	if runErr != nil {
		log.Printf("Warning: %v", runErr)
	}
	return run.watch(ctx)
}

// once extracts every input one time.
func (r *extractRun) once(ctx context.Context) error {
	progress := newProgressReporter(r.errOut, r.opts.quiet)
	progress.OnStart(len(r.inputs))
	results, err := r.sess.ExtractAll(ctx, r.inputs, progress.OnFileDone)
	progress.OnComplete(len(r.inputs))
	if err != nil {
		return err
	}

	failed := r.reportFailures(results)

	docs := make([]render.Document, 0, len(results))
	for _, fr := range results {
		if fr.Err == nil {
			docs = append(docs, render.NewDocument(r.displayName(fr.Path), fr.Result))
		}
	}
	if len(docs) > 0 {
		opts := render.Options{Format: r.format, Color: r.p.cfg.Output.Color && !r.opts.noColor}
		if err := render.Write(r.out, opts, docs...); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
	}

	savePath := r.p.cfg.Snapshot.Save
	if r.opts.save != "" {
		savePath = r.p.path(r.opts.save)
	}
	if savePath != "" {
		if err := os.MkdirAll(filepath.Dir(savePath), 0755); err != nil {
			return fmt.Errorf("failed to create snapshot directory: %w", err)
		}
		if err := r.p.save(ctx, savePath, results); err != nil {
			return err
		}
	}

	if failed > 0 {
		return fmt.Errorf("%w: %d of %d files", ErrExtractionFailed, failed, len(results))
	}
	return nil
}

// reportFailures prints failed files and returns how many there were.
func (r *extractRun) reportFailures(results []session.FileResult) int {
	errColor := color.New(color.FgRed, color.Bold)
	if r.opts.noColor || !r.p.cfg.Output.Color {
		errColor.DisableColor()
	}

	failed := 0
	for _, fr := range results {
		if fr.Err == nil {
			continue
		}
		failed++
		var parseErr *extract.ParseError
		if errors.As(fr.Err, &parseErr) {
			fmt.Fprintf(r.errOut, "%s %s: %d parse error(s)\n", errColor.Sprint("error"), r.displayName(fr.Path), len(parseErr.Diagnostics))
			for _, d := range parseErr.Diagnostics {
				fmt.Fprintf(r.errOut, "  %s\n", d)
			}
			continue
		}
		fmt.Fprintf(r.errOut, "%s %s: %v\n", errColor.Sprint("error"), r.displayName(fr.Path), fr.Err)
	}
	return failed
}

func (r *extractRun) displayName(path string) string {
	if rel, err := filepath.Rel(r.p.root, path); err == nil && !filepath.IsAbs(rel) && rel != "" && rel[0] != '.' {
		return rel
	}
	return path
}

// watch re-extracts every input whenever a watched file changes. Includes
// may live anywhere on the include path, so every change reruns all inputs.
func (r *extractRun) watch(ctx context.Context) error {
	dirs := append(append([]string{}, r.inputs...), r.p.cfg.Frontend.IncludePaths...)
	w, err := watcher.NewSourceWatcher(dirs,
		watcher.WithDebounce(time.Duration(r.p.global.Watch.DebounceMs)*time.Millisecond))
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer w.Stop()

	changes := make(chan []string, 1)
	err = w.Start(ctx, func(files []string) {
		select {
		case changes <- files:
		case <-ctx.Done():
		}
	})
	if err != nil {
		return fmt.Errorf("failed to start watcher: %w", err)
	}

	log.Printf("Watching %d inputs for changes (Ctrl+C to stop)...", len(r.inputs))
	for {
		select {
		case <-ctx.Done():
			return nil
		case files := <-changes:
			if r.p.cfg.Log.Verbose {
				log.Printf("Detected %d changed files, re-extracting", len(files))
			}
			// Results are cached by preprocessed content, so unchanged
			// inputs are served from the cache.
			w.Pause()
			if err := r.once(ctx); err != nil {
				log.Printf("Warning: %v", err)
			}
			w.Resume()
		}
	}
}
