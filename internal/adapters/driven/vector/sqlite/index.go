package sqlite

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/custodia-labs/docqa/internal/adapters/driven/vector"
	"github.com/custodia-labs/docqa/internal/adapters/driven/vector/sqlite/migrations"
	"github.com/custodia-labs/docqa/internal/core/domain"
	"github.com/custodia-labs/docqa/internal/core/ports/driven"
)

// Ensure Index implements the interface.
var _ driven.VectorIndex = (*Index)(nil)

// DefaultDataDir is used when Config.DataDir is empty.
const DefaultDataDir = "data"

const dimensionsKey = "dimensions"

// Config holds configuration for the SQLite vector index.
type Config struct {
	// DataDir holds vectors.db. Created if missing.
	DataDir string

	// Dimensions is the vector size the index accepts (required).
	Dimensions int

	// MinScore drops matches scoring below it.
	MinScore float64
}

// Index is a SQLite-backed vector index.
type Index struct {
	db         *sql.DB
	path       string
	dimensions int
	minScore   float64
}

// NewIndex opens or creates the index database and applies migrations.
// It fails with domain.ErrDimensionMismatch when the database was created
// for a different vector size.
func NewIndex(cfg Config) (*Index, error) {
	if cfg.Dimensions <= 0 {
		return nil, fmt.Errorf("%w: sqlite index: dimensions must be positive", domain.ErrInvalidConfig)
	}
	if cfg.DataDir == "" {
		cfg.DataDir = DefaultDataDir
	}

	// Ensure directory exists
	if err := os.MkdirAll(cfg.DataDir, 0700); err != nil {
		return nil, fmt.Errorf("%w: creating data directory: %v", domain.ErrIndexUnavailable, err)
	}

	dbPath := filepath.Join(cfg.DataDir, "vectors.db")

	// Open database with WAL mode for better concurrency
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("%w: opening database: %v", domain.ErrIndexUnavailable, err)
	}

	idx := &Index{
		db:         db,
		path:       dbPath,
		dimensions: cfg.Dimensions,
		minScore:   cfg.MinScore,
	}

	if err := idx.migrate(migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: running migrations: %v", domain.ErrIndexUnavailable, err)
	}
	if err := idx.checkDimensions(); err != nil {
		db.Close()
		return nil, err
	}

	return idx, nil
}

// migrate runs all pending migrations.
func (i *Index) migrate(fsys fs.FS) error {
	_, err := i.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	var currentVersion int
	row := i.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	var upFiles []string
	for _, entry := range entries {
		if strings.HasSuffix(entry.Name(), ".up.sql") {
			upFiles = append(upFiles, entry.Name())
		}
	}
	sort.Strings(upFiles)

	for _, name := range upFiles {
		// "001_records.up.sql" -> 1
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
			continue
		}
		if version <= currentVersion {
			continue
		}

		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}
		if err := i.apply(version, string(content)); err != nil {
			return fmt.Errorf("executing migration %s: %w", name, err)
		}
	}

	return nil
}

func (i *Index) apply(version int, script string) error {
	tx, err := i.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	if _, err := tx.Exec(script); err != nil {
		return err
	}
	if _, err := tx.Exec("INSERT INTO schema_migrations (version) VALUES (?)", version); err != nil {
		return err
	}
	return tx.Commit()
}

// checkDimensions records the dimension on first open and compares it on
// every later open.
func (i *Index) checkDimensions() error {
	var stored string
	err := i.db.QueryRow("SELECT value FROM index_meta WHERE key = ?", dimensionsKey).Scan(&stored)
	if errors.Is(err, sql.ErrNoRows) {
		_, err = i.db.Exec("INSERT INTO index_meta (key, value) VALUES (?, ?)", dimensionsKey, strconv.Itoa(i.dimensions))
		if err != nil {
			return fmt.Errorf("%w: recording dimensions: %v", domain.ErrIndexUnavailable, err)
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("%w: reading dimensions: %v", domain.ErrIndexUnavailable, err)
	}

	n, err := strconv.Atoi(stored)
	if err != nil {
		return fmt.Errorf("%w: corrupt dimensions value %q", domain.ErrIndexUnavailable, stored)
	}
	if n != i.dimensions {
		return fmt.Errorf("%w: %s was created with %d dimensions, embedder produces %d",
			domain.ErrDimensionMismatch, i.path, n, i.dimensions)
	}
	return nil
}

// Upsert writes all records in a single transaction.
func (i *Index) Upsert(ctx context.Context, namespace string, records []domain.IndexRecord) error {
	if err := vector.CheckNamespace(namespace); err != nil {
		return err
	}
	prepared, err := vector.PrepareRecords(records, i.dimensions)
	if err != nil {
		return err
	}
	if len(prepared) == 0 {
		return nil
	}

	tx, err := i.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin transaction: %v", domain.ErrIndexUnavailable, err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO records (namespace, id, vector, text, metadata, updated_at)
		VALUES (?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(namespace, id) DO UPDATE SET
			vector = excluded.vector,
			text = excluded.text,
			metadata = excluded.metadata,
			updated_at = excluded.updated_at
	`)
	if err != nil {
		return fmt.Errorf("%w: prepare upsert: %v", domain.ErrIndexUnavailable, err)
	}
	defer stmt.Close()

	for _, rec := range prepared {
		metadataJSON, err := json.Marshal(rec.Metadata)
		if err != nil {
			return fmt.Errorf("marshalling metadata for %s: %w", rec.ID, err)
		}
		if _, err := stmt.ExecContext(ctx, namespace, rec.ID,
			float32SliceToBytes(rec.Vector), rec.Text, string(metadataJSON)); err != nil {
			return fmt.Errorf("%w: upsert %s: %v", domain.ErrIndexUnavailable, rec.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit: %v", domain.ErrIndexUnavailable, err)
	}
	return nil
}

// Query scores every record in the namespace by cosine similarity.
func (i *Index) Query(ctx context.Context, namespace string, vec []float32, topK int) ([]domain.ScoredRecord, error) {
	if err := vector.CheckVector(vec, i.dimensions); err != nil {
		return nil, err
	}

	rows, err := i.db.QueryContext(ctx,
		"SELECT id, vector, text, metadata FROM records WHERE namespace = ?", namespace)
	if err != nil {
		return nil, fmt.Errorf("%w: querying records: %v", domain.ErrIndexUnavailable, err)
	}
	defer rows.Close()

	var matches []domain.ScoredRecord
	for rows.Next() {
		var (
			rec          domain.IndexRecord
			blob         []byte
			metadataJSON string
		)
		if err := rows.Scan(&rec.ID, &blob, &rec.Text, &metadataJSON); err != nil {
			return nil, fmt.Errorf("%w: scanning record: %v", domain.ErrIndexUnavailable, err)
		}
		rec.Vector = bytesToFloat32Slice(blob)
		if len(rec.Vector) != i.dimensions {
			continue
		}
		if metadataJSON != "" && metadataJSON != jsonNull {
			if err := json.Unmarshal([]byte(metadataJSON), &rec.Metadata); err != nil {
				return nil, fmt.Errorf("unmarshalling metadata for %s: %w", rec.ID, err)
			}
		}
		matches = append(matches, domain.ScoredRecord{Record: rec, Score: vector.Cosine(vec, rec.Vector)})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterating records: %v", domain.ErrIndexUnavailable, err)
	}

	return vector.TopK(matches, topK, i.minScore), nil
}

// Count returns the number of records in a namespace.
func (i *Index) Count(ctx context.Context, namespace string) (int, error) {
	var n int
	err := i.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM records WHERE namespace = ?", namespace).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("%w: counting records: %v", domain.ErrIndexUnavailable, err)
	}
	return n, nil
}

// Dimensions returns the accepted vector size.
func (i *Index) Dimensions() int { return i.dimensions }

// Ping checks the database connection.
func (i *Index) Ping(ctx context.Context) error {
	if err := i.db.PingContext(ctx); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrIndexUnavailable, err)
	}
	return nil
}

// Path returns the database file path.
func (i *Index) Path() string { return i.path }

// Close closes the database connection.
func (i *Index) Close() error { return i.db.Close() }

// jsonNull is the JSON representation of null.
const jsonNull = "null"

// float32SliceToBytes converts a []float32 to a byte slice for storage.
func float32SliceToBytes(floats []float32) []byte {
	buf := make([]byte, len(floats)*4)
	for i, f := range floats {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// bytesToFloat32Slice converts a byte slice back to []float32.
func bytesToFloat32Slice(data []byte) []float32 {
	floats := make([]float32, len(data)/4)
	for i := range floats {
		floats[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return floats
}
