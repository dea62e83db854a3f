package cli

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/mvp-joe/cbind/internal/render"
	"github.com/mvp-joe/cbind/internal/search"
)

var (
	searchKind   string
	searchFile   string
	searchLimit  int
	searchFormat string
)

// searchCmd represents the search command
var searchCmd = &cobra.Command{
	Use:   "search <query> <file>...",
	Short: "Search declarations across C files",
	Long: `Search extracts the given C files and finds declarations whose name, member
or enumerator names or type text match the query.

The query uses bleve query string syntax: plain words, field:value, wildcards
and +required / -excluded terms. Searchable fields are name, kind, file, type
and members.

Examples:
  cbind search png_create include/*.h
  cbind search 'name:png_*' --kind function include/png.h
  cbind search 'members:width' --file 'include/*' include/*.h`,
	Args: cobra.MinimumNArgs(2),
	RunE: runSearch,
}

func init() {
	rootCmd.AddCommand(searchCmd)
	searchCmd.Flags().StringVarP(&searchKind, "kind", "k", "", "Only this kind: struct, union, enum, typedef, function, var, builtin")
	searchCmd.Flags().StringVar(&searchFile, "file", "", "Only declarations from files matching this wildcard")
	searchCmd.Flags().IntVarP(&searchLimit, "limit", "l", 20, "Maximum number of results")
	searchCmd.Flags().StringVarP(&searchFormat, "format", "f", "text", "Output format: text, json or yaml")
}

func runSearch(cmd *cobra.Command, args []string) error {
	root, err := resolveProjectDir()
	if err != nil {
		return err
	}
	p, err := loadProject(root, verbose)
	if err != nil {
		return err
	}
	format, err := render.ParseFormat(searchFormat)
	if err != nil {
		return err
	}
	opts := search.Options{Kind: searchKind, File: searchFile, Limit: searchLimit}
	return executeSearch(cmd.Context(), p, args[0], args[1:], opts, format, cmd.OutOrStdout(), cmd.ErrOrStderr())
}

func executeSearch(ctx context.Context, p *project, query string, files []string, opts search.Options, format render.Format, out, errOut io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	builtins, err := p.builtins(ctx, nil)
	if err != nil {
		return err
	}
	sess, err := p.newSession(builtins)
	if err != nil {
		return err
	}
	defer sess.Close()

	idx, err := search.NewIndex()
	if err != nil {
		return err
	}
	defer idx.Close()

	results, err := sess.ExtractAll(ctx, p.paths(files), nil)
	if err != nil {
		return err
	}
	failed := 0
	for i, fr := range results {
		if fr.Err != nil {
			failed++
			fmt.Fprintf(errOut, "skipping %s: %v\n", files[i], fr.Err)
			continue
		}
		if err := idx.Add(ctx, files[i], fr.Result); err != nil {
			return err
		}
	}

	hits, err := idx.Search(ctx, query, opts)
	if err != nil {
		return err
	}

	if format != render.Text {
		return render.WriteValue(out, format, hits)
	}
	if len(hits) == 0 {
		fmt.Fprintln(out, "No matches")
	} else {
		tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "KIND\tNAME\tLOCATION\tTYPE")
		for _, h := range hits {
			loc := h.Source
			if h.File != "" {
				loc = fmt.Sprintf("%s:%d", h.File, h.Line)
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", h.Kind, h.Name, loc, h.Type)
		}
		if err := tw.Flush(); err != nil {
			return err
		}
	}
	if failed > 0 {
		return fmt.Errorf("%w: %d of %d files", ErrExtractionFailed, failed, len(files))
	}
	return nil
}
