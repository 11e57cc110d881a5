// cmd/scaffold generates CRUD route modules, validation forms and HTML
// templates for every entity defined under app/models.
//
// Entity definitions are read from CUE (live evaluation, falling back to a
// structural text parse), from a SQLite database when sqlite_dsn is set, or
// from the compiled ent schemas when provider is "ent". Settings come from
// scaffold.toml, .env and SCAFFOLD_* variables in the working directory.
//
// Usage:
//
//	go run ./cmd/scaffold
package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/matthewbaird/scaffold/ent/schema"
	"github.com/matthewbaird/scaffold/internal/config"
	"github.com/matthewbaird/scaffold/internal/pipeline"
	"github.com/matthewbaird/scaffold/internal/source/entsrc"
)

var rootCmd = &cobra.Command{
	Use:           "scaffold",
	Short:         "Generate CRUD scaffolding from entity definitions",
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          run,
}

func main() {
	log.SetFlags(0)
	log.SetPrefix("scaffold: ")
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "scaffold:", err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, _ []string) error {
	root, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("getwd: %w", err)
	}
	cfg, err := config.Load(root)
	if err != nil {
		return err
	}

	opts := []pipeline.Option{pipeline.WithOutput(cmd.OutOrStdout())}
	if cfg.Source() == "ent" {
		opts = append(opts, pipeline.WithSource(entsrc.New(
			schema.User{},
			schema.Category{},
			schema.Task{},
			schema.Tag{},
		)))
	}
	_, err = pipeline.New(cfg, opts...).Run(context.Background())
	return err
}
