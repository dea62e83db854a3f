package cli

import (
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"
)

var (
	projectDir string
	verbose    bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "cbind",
	Short: "cbind - extract C declaration graphs for FFI bindings",
	Long: `cbind parses C headers and sources and extracts a canonical, deduplicated
graph of their declarations: structs, unions, enums, typedefs, external
functions and external variables, with fully resolved types.

Project settings are read from .cbind/config.yml in the project directory.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initLogging)

	rootCmd.PersistentFlags().StringVarP(&projectDir, "dir", "C", "", "project directory (default is the current directory)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}

func initLogging() {
	log.SetFlags(0)
	log.SetPrefix("cbind: ")
}

// resolveProjectDir returns the --dir flag or the working directory.
func resolveProjectDir() (string, error) {
	if projectDir != "" {
		return projectDir, nil
	}
	dir, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("failed to get working directory: %w", err)
	}
	return dir, nil
}
