package cli

import (
	"context"
	"fmt"
	"log"
	"path/filepath"

	"github.com/mvp-joe/cbind/internal/config"
	"github.com/mvp-joe/cbind/internal/extract"
	"github.com/mvp-joe/cbind/internal/session"
	"github.com/mvp-joe/cbind/internal/snapshot"
)

// project is the loaded configuration of one project directory.
type project struct {
	root   string
	cfg    *config.Config
	global *config.GlobalConfig
}

// loadProject loads .cbind/config.yml from root and the global config.
// The --verbose flag turns on verbose logging on top of the file setting.
func loadProject(root string, verboseFlag bool) (*project, error) {
	cfg, err := config.LoadConfigFromDir(root)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	global, err := config.LoadGlobalConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load global configuration: %w", err)
	}
	cfg.Log.Verbose = cfg.Log.Verbose || verboseFlag
	return &project{root: root, cfg: cfg, global: global}, nil
}

// path resolves p against the project root.
func (p *project) path(rel string) string {
	if rel == "" || filepath.IsAbs(rel) {
		return rel
	}
	return filepath.Join(p.root, rel)
}

// paths resolves every element of rel against the project root.
func (p *project) paths(rel []string) []string {
	out := make([]string, len(rel))
	for i, r := range rel {
		out[i] = p.path(r)
	}
	return out
}

// builtins gathers builtin entries from the configured TOML files, then
// extraFiles, then every configured snapshot in order. The first entry for
// a shape wins.
func (p *project) builtins(ctx context.Context, extraFiles []string) (*extract.BuiltinResolver, error) {
	var entries []extract.BuiltinEntry

	files := append(append([]string{}, p.cfg.Builtins.Files...), p.paths(extraFiles)...)
	for _, f := range files {
		e, err := snapshot.LoadBuiltinFile(f)
		if err != nil {
			return nil, err
		}
		if p.cfg.Log.Verbose {
			log.Printf("Loaded %d builtins from %s", len(e), f)
		}
		entries = append(entries, e...)
	}

	for _, db := range p.cfg.Snapshot.Load {
		e, err := loadSnapshotBuiltins(ctx, db)
		if err != nil {
			return nil, err
		}
		if p.cfg.Log.Verbose {
			log.Printf("Loaded %d builtins from snapshot %s", len(e), db)
		}
		entries = append(entries, e...)
	}

	return extract.NewBuiltinResolver(entries), nil
}

func loadSnapshotBuiltins(ctx context.Context, path string) ([]extract.BuiltinEntry, error) {
	store, err := snapshot.Open(path)
	if err != nil {
		return nil, err
	}
	defer store.Close()

	entries, err := store.LoadBuiltins(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load builtins from %s: %w", path, err)
	}
	return entries, nil
}

// newSession creates an extraction session with the project's settings.
func (p *project) newSession(builtins *extract.BuiltinResolver) (*session.Session, error) {
	opts, err := p.cfg.SessionOptions(p.global, builtins)
	if err != nil {
		return nil, err
	}
	return session.New(opts)
}

// save writes every successful result to the snapshot database at path and
// prunes old runs.
func (p *project) save(ctx context.Context, path string, results []session.FileResult) error {
	store, err := snapshot.Open(path)
	if err != nil {
		return err
	}
	defer store.Close()

	for _, fr := range results {
		if fr.Err != nil {
			continue
		}
		source, err := filepath.Rel(p.root, fr.Path)
		if err != nil {
			source = fr.Path
		}
		runID, err := store.Save(ctx, p.cfg.Module, source, fr.Result)
		if err != nil {
			return fmt.Errorf("failed to save snapshot of %s: %w", fr.Path, err)
		}
		if p.cfg.Log.Verbose {
			log.Printf("Saved %s as run %s", source, runID)
		}
	}

	if p.cfg.Snapshot.Keep > 0 {
		pruned, err := store.Prune(ctx, p.cfg.Snapshot.Keep)
		if err != nil {
			return err
		}
		if pruned > 0 && p.cfg.Log.Verbose {
			log.Printf("Pruned %d old runs from %s", pruned, path)
		}
	}
	return nil
}
