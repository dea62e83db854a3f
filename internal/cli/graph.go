package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/mvp-joe/cbind/internal/cdecl"
	"github.com/mvp-joe/cbind/internal/depgraph"
	"github.com/mvp-joe/cbind/internal/extract"
)

var graphName string

// graphCmd represents the graph command
var graphCmd = &cobra.Command{
	Use:   "graph <file>",
	Short: "Print the dependency order of a file's declarations",
	Long: `Graph extracts one C file and prints its globals in dependency order:
every declaration held by value comes before the declarations that hold it.
Pointer references may form cycles and do not constrain the order.

With --name, only the dependencies and dependents of that declaration are shown.

Examples:
  cbind graph include/png.h
  cbind graph --name png_struct include/png.h`,
	Args: cobra.ExactArgs(1),
	RunE: runGraph,
}

func init() {
	rootCmd.AddCommand(graphCmd)
	graphCmd.Flags().StringVarP(&graphName, "name", "n", "", "Show dependencies and dependents of one declaration")
}

func runGraph(cmd *cobra.Command, args []string) error {
	root, err := resolveProjectDir()
	if err != nil {
		return err
	}
	p, err := loadProject(root, verbose)
	if err != nil {
		return err
	}
	return executeGraph(cmd.Context(), p, args[0], graphName, cmd.OutOrStdout())
}

func executeGraph(ctx context.Context, p *project, file, name string, out io.Writer) error {
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

	fr := sess.ExtractFile(ctx, p.path(file))
	if fr.Err != nil {
		return fr.Err
	}
	g, err := depgraph.Build(fr.Result)
	if err != nil {
		return err
	}

	if name != "" {
		return writeNeighbours(out, fr.Result, g, name)
	}

	cycles, err := g.Cycles()
	if err != nil {
		return err
	}
	if len(cycles) > 0 {
		warn := color.New(color.FgYellow)
		for _, c := range cycles {
			fmt.Fprintf(out, "%s by-value cycle: %s\n", warn.Sprint("warning"), names(fr.Result, c))
		}
		return depgraph.ErrValueCycle
	}

	order, err := g.Order()
	if err != nil {
		return err
	}
	for i, id := range order {
		fmt.Fprintf(out, "%4d %-8s %s\n", i+1, cdecl.Variant(fr.Result.Global(id)), fr.Result.NameOf(id))
	}
	return nil
}

func writeNeighbours(out io.Writer, r *extract.Result, g *depgraph.Graph, name string) error {
	ids := r.Lookup(name)
	if len(ids) == 0 {
		if r.Skipped(name) {
			return fmt.Errorf("%s was skipped: %w", name, extract.ErrNotFound)
		}
		return fmt.Errorf("%s: %w", name, extract.ErrNotFound)
	}
	for _, id := range ids {
		deps, err := g.Dependencies(id)
		if err != nil {
			return err
		}
		users, err := g.Dependents(id)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%s %s\n", cdecl.Variant(r.Global(id)), r.NameOf(id))
		fmt.Fprintf(out, "  depends on: %s\n", names(r, deps))
		fmt.Fprintf(out, "  used by:    %s\n", names(r, users))
	}
	return nil
}

func names(r *extract.Result, ids []cdecl.ID) string {
	if len(ids) == 0 {
		return "-"
	}
	s := ""
	for i, id := range ids {
		if i > 0 {
			s += ", "
		}
		s += r.NameOf(id)
	}
	return s
}
