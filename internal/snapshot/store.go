// Package snapshot persists extracted globals with the names they were bound
// under, and reads them back as builtin entries for a later run.
package snapshot

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/mvp-joe/cbind/internal/cast"
	"github.com/mvp-joe/cbind/internal/cdecl"
	"github.com/mvp-joe/cbind/internal/extract"
)

// Store is a snapshot database.
type Store struct {
	db *sql.DB
}

// Run describes one saved extraction.
type Run struct {
	ID        string    `json:"id" yaml:"id"`
	Module    string    `json:"module" yaml:"module"`
	Source    string    `json:"source" yaml:"source"`
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
	Globals   int       `json:"globals" yaml:"globals"`
}

// Entry is one saved global.
type Entry struct {
	Shape   extract.Shape `json:"shape" yaml:"shape"`
	Variant string        `json:"variant" yaml:"variant"`
	Name    string        `json:"name" yaml:"name"`
	Type    cdecl.Type    `json:"-" yaml:"-"`
}

// Open opens or creates the snapshot database at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open snapshot %s: %w", path, err)
	}
	// One connection keeps :memory: databases and the foreign key pragma shared.
	db.SetMaxOpenConns(1)
	s, err := New(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// New wraps an open database, creating the schema if it is empty.
func New(db *sql.DB) (*Store, error) {
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	version, err := GetSchemaVersion(db)
	if err != nil {
		return nil, err
	}
	switch version {
	case "0":
		if err := CreateSchema(db); err != nil {
			return nil, err
		}
	case SchemaVersion:
	default:
		return nil, fmt.Errorf("%w: found %s, want %s", ErrSchemaVersion, version, SchemaVersion)
	}
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// ExternalName is the name a global is bound under in module. Builtins keep
// the name they were bound under; anonymous globals are named by ID.
func ExternalName(module string, id cdecl.ID, g cdecl.Global) string {
	if b, ok := g.(*cdecl.Builtin); ok {
		return b.Name.Text
	}
	text := g.GlobalName().Text
	if text == "" {
		text = fmt.Sprintf("anon%d", id)
	}
	if module == "" {
		return text
	}
	return module + "." + text
}

// externalize rewrites references to globals of r as external names, so the
// type stays meaningful outside the run that produced it.
func externalize(module string, r *extract.Result, t cdecl.Type) cdecl.Type {
	return cdecl.Map(t, func(t cdecl.Type) cdecl.Type {
		var id cdecl.ID
		switch v := t.(type) {
		case cdecl.CompositeRef:
			id = v.ID
		case cdecl.EnumRef:
			id = v.ID
		case cdecl.Named:
			if v.External {
				return cdecl.Named{Name: cdecl.Name{Text: v.Name.Text}, External: true}
			}
			id = v.Name.ID
		default:
			return t
		}
		g := r.Global(id)
		if g == nil {
			return t
		}
		return cdecl.Named{Name: cdecl.Name{Text: ExternalName(module, id, g)}, External: true}
	})
}

// Save stores every listed global of r under a new run and returns its ID.
func (s *Store) Save(ctx context.Context, module, source string, r *extract.Result) (string, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	runID := uuid.New().String()
	res, err := tx.ExecContext(ctx,
		`INSERT INTO runs (run_id, module, source, created_at) VALUES (?, ?, ?, ?)`,
		runID, module, source, time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return "", fmt.Errorf("failed to insert run: %w", err)
	}
	runSeq, err := res.LastInsertId()
	if err != nil {
		return "", fmt.Errorf("failed to read run sequence: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO globals (run_seq, seq, variant, file_path, line, col, spelling, cursor_kind, external_name, type_blob)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return "", fmt.Errorf("failed to prepare globals insert: %w", err)
	}
	defer stmt.Close()

	ids := append(append([]cdecl.ID{}, r.TopLevel...), r.Nested...)
	for seq, id := range ids {
		g := r.Global(id)
		shape := r.Shape(id)
		blob, err := EncodeType(externalize(module, r, cdecl.TypeOf(g)))
		if err != nil {
			return "", fmt.Errorf("failed to encode %s: %w", g.GlobalName(), err)
		}
		if _, err := stmt.ExecContext(ctx, runSeq, seq, cdecl.Variant(g),
			shape.Loc.File, shape.Loc.Line, shape.Loc.Column, shape.Spelling, shape.Kind.String(),
			ExternalName(module, id, g), blob); err != nil {
			return "", fmt.Errorf("failed to insert %s: %w", g.GlobalName(), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit run: %w", err)
	}
	return runID, nil
}

// LoadBuiltins returns builtin entries for every saved shape, newest run
// first, so a resolver built from them prefers the latest binding.
func (s *Store) LoadBuiltins(ctx context.Context) ([]extract.BuiltinEntry, error) {
	entries, err := s.query(ctx, `
		SELECT g.file_path, g.line, g.col, g.spelling, g.cursor_kind, g.variant, g.external_name, g.type_blob
		FROM globals g JOIN runs r ON r.seq = g.run_seq
		ORDER BY r.seq DESC, g.seq ASC
	`)
	if err != nil {
		return nil, err
	}
	out := make([]extract.BuiltinEntry, 0, len(entries))
	for _, e := range entries {
		out = append(out, extract.BuiltinEntry{Shape: e.Shape, Name: e.Name, Type: e.Type})
	}
	return out, nil
}

// Runs lists saved runs, newest first.
func (s *Store) Runs(ctx context.Context) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT r.run_id, r.module, r.source, r.created_at, COUNT(g.seq)
		FROM runs r LEFT JOIN globals g ON g.run_seq = r.seq
		GROUP BY r.seq
		ORDER BY r.seq DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var run Run
		var created string
		if err := rows.Scan(&run.ID, &run.Module, &run.Source, &created, &run.Globals); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		if run.CreatedAt, err = time.Parse(time.RFC3339Nano, created); err != nil {
			return nil, fmt.Errorf("invalid created_at %q: %w", created, err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// Entries returns the globals saved by one run in order.
func (s *Store) Entries(ctx context.Context, runID string) ([]Entry, error) {
	return s.query(ctx, `
		SELECT g.file_path, g.line, g.col, g.spelling, g.cursor_kind, g.variant, g.external_name, g.type_blob
		FROM globals g JOIN runs r ON r.seq = g.run_seq
		WHERE r.run_id = ?
		ORDER BY g.seq ASC
	`, runID)
}

// Prune deletes all but the newest keep runs and returns how many were deleted.
func (s *Store) Prune(ctx context.Context, keep int) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	const stale = `SELECT seq FROM runs ORDER BY seq DESC LIMIT -1 OFFSET ?`
	if _, err := tx.ExecContext(ctx, `DELETE FROM globals WHERE run_seq IN (`+stale+`)`, keep); err != nil {
		return 0, fmt.Errorf("failed to prune globals: %w", err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM runs WHERE seq IN (`+stale+`)`, keep)
	if err != nil {
		return 0, fmt.Errorf("failed to prune runs: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return n, tx.Commit()
}

func (s *Store) query(ctx context.Context, query string, args ...any) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query globals: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var kind string
		var blob []byte
		if err := rows.Scan(&e.Shape.Loc.File, &e.Shape.Loc.Line, &e.Shape.Loc.Column,
			&e.Shape.Spelling, &kind, &e.Variant, &e.Name, &blob); err != nil {
			return nil, fmt.Errorf("failed to scan global: %w", err)
		}
		if e.Shape.Kind, err = cast.ParseCursorKind(kind); err != nil {
			return nil, err
		}
		if e.Type, err = DecodeType(blob); err != nil {
			return nil, fmt.Errorf("%s: %w", e.Name, err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
