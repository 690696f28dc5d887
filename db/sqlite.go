package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"os"
	"time"

	"custanalytics/ml"
	_ "github.com/mattn/go-sqlite3"
)

// Bundle is a SQLite file holding the serialized model for each task.
type Bundle struct {
	database *sql.DB
}

type ArtifactInfo struct {
	Task      ml.Task   `json:"task"`
	Kind      string    `json:"kind"`
	Size      int       `json:"size"`
	CreatedAt time.Time `json:"created_at"`
}

// OpenBundle opens an existing bundle read-only.
func OpenBundle(path string) (*Bundle, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, err
	}
	database, err := sql.Open("sqlite3", fileDSN(path, "ro"))
	if err != nil {
		return nil, err
	}
	if err := database.Ping(); err != nil {
		database.Close()
		return nil, err
	}
	return &Bundle{database: database}, nil
}

// fileDSN builds a SQLite URI filename; the path is escaped so '?' and '#' stay part of it.
func fileDSN(path, mode string) string {
	dsn := url.URL{
		Scheme:   "file",
		Opaque:   (&url.URL{Path: path}).EscapedPath(),
		RawQuery: url.Values{"mode": {mode}}.Encode(),
	}
	return dsn.String()
}

// CreateBundle opens path for writing, creating the file and schema if needed.
func CreateBundle(path string) (*Bundle, error) {
	database, err := sql.Open("sqlite3", fileDSN(path, "rwc"))
	if err != nil {
		return nil, err
	}

	query := `
    CREATE TABLE IF NOT EXISTS artifacts (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        task TEXT NOT NULL UNIQUE,
        kind TEXT NOT NULL,
        payload BLOB NOT NULL,
        created_at DATETIME NOT NULL
    );`
	if _, err := database.Exec(query); err != nil {
		database.Close()
		return nil, err
	}
	return &Bundle{database: database}, nil
}

// PutArtifact stores or replaces the artifact for a task after checking it decodes.
func (b *Bundle) PutArtifact(ctx context.Context, task ml.Task, payload []byte) error {
	artifact, err := ml.DecodeArtifact(payload)
	if err != nil {
		return err
	}
	if artifact.Task != "" && artifact.Task != task {
		return fmt.Errorf("artifact is for %s, not %s", artifact.Task, task)
	}
	if _, err := artifact.Predictor(); err != nil {
		return err
	}

	_, err = b.database.ExecContext(ctx, `
        INSERT INTO artifacts (task, kind, payload, created_at) VALUES (?, ?, ?, ?)
        ON CONFLICT(task) DO UPDATE SET kind = excluded.kind, payload = excluded.payload, created_at = excluded.created_at`,
		string(task), artifact.Kind, payload, time.Now().UTC())
	return err
}

// ReadArtifact implements ml.ArtifactSource.
func (b *Bundle) ReadArtifact(task ml.Task) ([]byte, error) {
	var payload []byte
	err := b.database.QueryRow(`SELECT payload FROM artifacts WHERE task = ?`, string(task)).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("bundle has no artifact for %s", task)
	}
	if err != nil {
		return nil, err
	}
	return payload, nil
}

func (b *Bundle) List(ctx context.Context) ([]ArtifactInfo, error) {
	rows, err := b.database.QueryContext(ctx, `SELECT task, kind, length(payload), created_at FROM artifacts ORDER BY task`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var infos []ArtifactInfo
	for rows.Next() {
		var info ArtifactInfo
		var task string
		if err := rows.Scan(&task, &info.Kind, &info.Size, &info.CreatedAt); err != nil {
			return nil, err
		}
		info.Task = ml.Task(task)
		infos = append(infos, info)
	}
	return infos, rows.Err()
}

func (b *Bundle) Close() error {
	return b.database.Close()
}
