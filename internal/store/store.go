// Package store persists the song library in SQLite.
//
// The library keeps one row per requested song, one generation session per
// run, and the files a finished run produced. The database lives at
// <data dir>/songsmith.db and is opened in WAL mode so the MCP server and
// the CLI can share it.
package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"songsmith/internal/song"
)

// openDB is a package-level var to allow test injection.
var openDB = sql.Open

// ErrNotFound is returned when a song or session does not exist.
var ErrNotFound = errors.New("not found")

// Song status values stored in the songs table.
const (
	StatusPending    = "pending"
	StatusGenerating = "generating"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
	StatusCancelled  = "cancelled"
)

// DBFileName is the database file created under the data directory.
const DBFileName = "songsmith.db"

// ─── Types ───────────────────────────────────────────────────────────────────

// Song is one row of the library.
type Song struct {
	ID                    int64   `json:"id"`
	Title                 string  `json:"title"`
	UserPrompt            string  `json:"user_prompt"`
	Persona               string  `json:"persona,omitempty"`
	Style                 string  `json:"style,omitempty"`
	UseLocal              bool    `json:"use_local"`
	Lyrics                string  `json:"lyrics,omitempty"`
	CleanLyrics           string  `json:"clean_lyrics,omitempty"`
	MetadataJSON          string  `json:"metadata,omitempty"`
	AlbumArt              string  `json:"album_art,omitempty"`
	Score                 *int    `json:"score,omitempty"`
	Status                string  `json:"status"`
	ErrorMessage          string  `json:"error_message,omitempty"`
	GenerationStartedAt   *string `json:"generation_started_at,omitempty"`
	GenerationCompletedAt *string `json:"generation_completed_at,omitempty"`
	CreatedAt             string  `json:"created_at"`
	UpdatedAt             string  `json:"updated_at"`
}

// Metadata decodes the stored metadata JSON. A song without metadata yields
// the zero value.
func (s *Song) Metadata() (song.Metadata, error) {
	var m song.Metadata
	if s.MetadataJSON == "" {
		return m, nil
	}
	if err := json.Unmarshal([]byte(s.MetadataJSON), &m); err != nil {
		return m, fmt.Errorf("store: decode metadata of song %d: %w", s.ID, err)
	}
	return m, nil
}

// Session is the generation session of one run.
type Session struct {
	ID                 int64   `json:"id"`
	SongID             int64   `json:"song_id"`
	SessionID          string  `json:"session_id"`
	CurrentStage       string  `json:"current_stage"`
	ProgressPercentage int     `json:"progress_percentage"`
	LogsJSON           string  `json:"logs"`
	ErrorLog           string  `json:"error_log,omitempty"`
	StartedAt          string  `json:"started_at"`
	UpdatedAt          string  `json:"updated_at"`
	CompletedAt        *string `json:"completed_at,omitempty"`
}

// SongFile is a file produced for a song.
type SongFile struct {
	ID        int64  `json:"id"`
	SongID    int64  `json:"song_id"`
	FileType  string `json:"file_type"`
	FilePath  string `json:"file_path"`
	FileName  string `json:"file_name"`
	FileSize  *int64 `json:"file_size,omitempty"`
	MimeType  string `json:"mime_type"`
	IsPrimary bool   `json:"is_primary"`
	CreatedAt string `json:"created_at"`
}

// NewSongParams holds the request fields of a new song.
type NewSongParams struct {
	Title      string
	UserPrompt string
	Persona    string
	Style      string
	UseLocal   bool
}

// CompletionParams holds the results of a finished run.
type CompletionParams struct {
	Title    string
	Lyrics   string
	Metadata song.Metadata
	AlbumArt string
	Score    float64
	Filename string
	LogsJSON string
}

// ─── Store ───────────────────────────────────────────────────────────────────

// Store is the song library backed by SQLite.
type Store struct {
	db *sql.DB
}

// New opens (creating if needed) the library database under dataDir and
// runs migrations.
func New(dataDir string) (*Store, error) {
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("store: create data dir: %w", err)
	}

	// Connection-scoped pragmas go in the DSN so every pooled connection
	// gets them.
	dsn := filepath.Join(dataDir, DBFileName) + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	db, err := openDB("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("store: pragma %q: %w", p, err)
		}
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: migration: %w", err)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// ─── Migrations ──────────────────────────────────────────────────────────────

func (s *Store) migrate() error {
	schema := `
		CREATE TABLE IF NOT EXISTS songs (
			id                      INTEGER PRIMARY KEY AUTOINCREMENT,
			title                   TEXT    NOT NULL,
			user_prompt             TEXT    NOT NULL,
			persona                 TEXT,
			style                   TEXT,
			use_local               INTEGER NOT NULL DEFAULT 0,
			lyrics                  TEXT,
			clean_lyrics            TEXT,
			metadata                TEXT,
			album_art               TEXT,
			score                   INTEGER,
			status                  TEXT    NOT NULL DEFAULT 'pending',
			error_message           TEXT,
			generation_started_at   TEXT,
			generation_completed_at TEXT,
			created_at              TEXT    NOT NULL DEFAULT (datetime('now')),
			updated_at              TEXT    NOT NULL DEFAULT (datetime('now'))
		);

		CREATE INDEX IF NOT EXISTS idx_songs_status  ON songs(status);
		CREATE INDEX IF NOT EXISTS idx_songs_created ON songs(created_at DESC);

		CREATE TABLE IF NOT EXISTS generation_sessions (
			id                  INTEGER PRIMARY KEY AUTOINCREMENT,
			song_id             INTEGER NOT NULL,
			session_id          TEXT    NOT NULL UNIQUE,
			current_stage       TEXT,
			progress_percentage INTEGER NOT NULL DEFAULT 0,
			logs                TEXT    NOT NULL DEFAULT '[]',
			error_log           TEXT,
			started_at          TEXT    NOT NULL DEFAULT (datetime('now')),
			updated_at          TEXT    NOT NULL DEFAULT (datetime('now')),
			completed_at        TEXT,
			FOREIGN KEY (song_id) REFERENCES songs(id) ON DELETE CASCADE
		);

		CREATE INDEX IF NOT EXISTS idx_sessions_song ON generation_sessions(song_id);

		CREATE TABLE IF NOT EXISTS song_files (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			song_id    INTEGER NOT NULL,
			file_type  TEXT    NOT NULL,
			file_path  TEXT    NOT NULL,
			file_name  TEXT    NOT NULL,
			file_size  INTEGER,
			mime_type  TEXT,
			is_primary INTEGER NOT NULL DEFAULT 0,
			created_at TEXT    NOT NULL DEFAULT (datetime('now')),
			FOREIGN KEY (song_id) REFERENCES songs(id) ON DELETE CASCADE
		);

		CREATE INDEX IF NOT EXISTS idx_files_song ON song_files(song_id);
	`
	_, err := s.db.Exec(schema)
	return err
}

// ─── Songs ───────────────────────────────────────────────────────────────────

// CreateSong inserts a pending song and returns its id.
func (s *Store) CreateSong(p NewSongParams) (int64, error) {
	title := p.Title
	if title == "" {
		title = song.FallbackTitle
	}
	res, err := s.db.Exec(
		`INSERT INTO songs (title, user_prompt, persona, style, use_local, status)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		title, p.UserPrompt, nullableString(p.Persona), nullableString(p.Style), p.UseLocal, StatusPending,
	)
	if err != nil {
		return 0, fmt.Errorf("store: create song: %w", err)
	}
	return res.LastInsertId()
}

// StartGeneration opens a generation session for a song and marks the song
// generating.
func (s *Store) StartGeneration(songID int64, sessionID string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("store: begin: %w", err)
	}
	defer tx.Rollback()

	now := Now()
	res, err := tx.Exec(
		`UPDATE songs SET status = ?, generation_started_at = ?, updated_at = ? WHERE id = ?`,
		StatusGenerating, now, now, songID,
	)
	if err != nil {
		return fmt.Errorf("store: start generation: %w", err)
	}
	if err := expectRow(res, "song", songID); err != nil {
		return err
	}

	if _, err := tx.Exec(
		`INSERT INTO generation_sessions (song_id, session_id, current_stage, progress_percentage, logs, started_at, updated_at)
		 VALUES (?, ?, 'queued', 0, '[]', ?, ?)`,
		songID, sessionID, now, now,
	); err != nil {
		return fmt.Errorf("store: create session: %w", err)
	}

	return tx.Commit()
}

// UpdateSession records a run's progress.
func (s *Store) UpdateSession(sessionID, stage string, progress int, logsJSON string) error {
	res, err := s.db.Exec(
		`UPDATE generation_sessions
		 SET current_stage = ?, progress_percentage = ?, logs = ?, updated_at = ?
		 WHERE session_id = ?`,
		stage, progress, logsJSON, Now(), sessionID,
	)
	if err != nil {
		return fmt.Errorf("store: update session: %w", err)
	}
	return expectRow(res, "session", sessionID)
}

// CompleteSong stores the results of a finished run, records its song file
// and closes the session.
func (s *Store) CompleteSong(songID int64, sessionID string, p CompletionParams) error {
	var metadata any
	if data, err := json.Marshal(p.Metadata); err == nil {
		metadata = string(data)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("store: begin: %w", err)
	}
	defer tx.Rollback()

	now := Now()
	res, err := tx.Exec(
		`UPDATE songs
		 SET title = COALESCE(NULLIF(?, ''), title), status = ?, lyrics = ?, clean_lyrics = ?,
		     metadata = ?, album_art = ?, score = ?, error_message = NULL,
		     generation_completed_at = ?, updated_at = ?
		 WHERE id = ?`,
		p.Title, StatusCompleted, p.Lyrics, song.StripStyleTags(p.Lyrics),
		metadata, nullableString(p.AlbumArt), int(p.Score),
		now, now, songID,
	)
	if err != nil {
		return fmt.Errorf("store: complete song: %w", err)
	}
	if err := expectRow(res, "song", songID); err != nil {
		return err
	}

	if p.Filename != "" {
		var size *int64
		if info, err := os.Stat(p.Filename); err == nil {
			n := info.Size()
			size = &n
		}
		if _, err := tx.Exec(
			`INSERT INTO song_files (song_id, file_type, file_path, file_name, file_size, mime_type, is_primary)
			 VALUES (?, 'lyrics', ?, ?, ?, 'text/markdown', 1)`,
			songID, p.Filename, filepath.Base(p.Filename), size,
		); err != nil {
			return fmt.Errorf("store: add song file: %w", err)
		}
	}
	if p.AlbumArt != "" {
		if _, err := tx.Exec(
			`INSERT INTO song_files (song_id, file_type, file_path, file_name, mime_type, is_primary)
			 VALUES (?, 'album_art', ?, ?, 'image/png', 0)`,
			songID, p.AlbumArt, filepath.Base(p.AlbumArt),
		); err != nil {
			return fmt.Errorf("store: add album art file: %w", err)
		}
	}

	if _, err := tx.Exec(
		`UPDATE generation_sessions
		 SET current_stage = 'completed', progress_percentage = 100, logs = ?, completed_at = ?, updated_at = ?
		 WHERE session_id = ?`,
		logsOrEmpty(p.LogsJSON), now, now, sessionID,
	); err != nil {
		return fmt.Errorf("store: close session: %w", err)
	}

	return tx.Commit()
}

// EndGeneration records a run that did not complete. final is
// [StatusFailed] or [StatusCancelled].
func (s *Store) EndGeneration(songID int64, sessionID, final, message, logsJSON string) error {
	if final != StatusFailed && final != StatusCancelled {
		return fmt.Errorf("store: invalid final status %q", final)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("store: begin: %w", err)
	}
	defer tx.Rollback()

	now := Now()
	res, err := tx.Exec(
		`UPDATE songs SET status = ?, error_message = ?, updated_at = ? WHERE id = ?`,
		final, nullableString(message), now, songID,
	)
	if err != nil {
		return fmt.Errorf("store: end generation: %w", err)
	}
	if err := expectRow(res, "song", songID); err != nil {
		return err
	}

	if _, err := tx.Exec(
		`UPDATE generation_sessions
		 SET current_stage = ?, logs = ?, error_log = ?, completed_at = ?, updated_at = ?
		 WHERE session_id = ?`,
		final, logsOrEmpty(logsJSON), nullableString(message), now, now, sessionID,
	); err != nil {
		return fmt.Errorf("store: close session: %w", err)
	}

	return tx.Commit()
}

// UpdateAlbumArt replaces a song's artwork path.
func (s *Store) UpdateAlbumArt(songID int64, path string) error {
	res, err := s.db.Exec(
		`UPDATE songs SET album_art = ?, updated_at = ? WHERE id = ?`,
		nullableString(path), Now(), songID,
	)
	if err != nil {
		return fmt.Errorf("store: update album art: %w", err)
	}
	return expectRow(res, "song", songID)
}

// DeleteSong removes a song with its session and file records.
func (s *Store) DeleteSong(songID int64) error {
	res, err := s.db.Exec(`DELETE FROM songs WHERE id = ?`, songID)
	if err != nil {
		return fmt.Errorf("store: delete song: %w", err)
	}
	return expectRow(res, "song", songID)
}

const songColumns = `id, title, user_prompt, persona, style, use_local, lyrics, clean_lyrics,
	metadata, album_art, score, status, error_message, generation_started_at,
	generation_completed_at, created_at, updated_at`

// GetSong retrieves a song by id.
func (s *Store) GetSong(id int64) (*Song, error) {
	row := s.db.QueryRow(`SELECT `+songColumns+` FROM songs WHERE id = ?`, id)
	sg, err := scanSong(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("store: song %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("store: get song: %w", err)
	}
	return sg, nil
}

// ListSongs returns songs newest first. An empty status lists every song;
// limit <= 0 defaults to 20.
func (s *Store) ListSongs(status string, limit int) ([]Song, error) {
	if limit <= 0 {
		limit = 20
	}

	query := `SELECT ` + songColumns + ` FROM songs`
	args := []any{}
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, status)
	}
	query += ` ORDER BY created_at DESC, id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("store: list songs: %w", err)
	}
	defer rows.Close()

	songs := []Song{}
	for rows.Next() {
		sg, err := scanSong(rows)
		if err != nil {
			return nil, fmt.Errorf("store: list songs: %w", err)
		}
		songs = append(songs, *sg)
	}
	return songs, rows.Err()
}

// ─── Sessions and files ──────────────────────────────────────────────────────

// GetSession returns the latest generation session of a song.
func (s *Store) GetSession(songID int64) (*Session, error) {
	row := s.db.QueryRow(
		`SELECT id, song_id, session_id, current_stage, progress_percentage, logs,
		        error_log, started_at, updated_at, completed_at
		 FROM generation_sessions WHERE song_id = ? ORDER BY id DESC LIMIT 1`, songID,
	)

	var (
		sess     Session
		stage    sql.NullString
		errorLog sql.NullString
	)
	err := row.Scan(&sess.ID, &sess.SongID, &sess.SessionID, &stage, &sess.ProgressPercentage,
		&sess.LogsJSON, &errorLog, &sess.StartedAt, &sess.UpdatedAt, &sess.CompletedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("store: session of song %d: %w", songID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("store: get session: %w", err)
	}
	sess.CurrentStage = stage.String
	sess.ErrorLog = errorLog.String
	return &sess, nil
}

// SongFiles lists the files recorded for a song, primary file first.
func (s *Store) SongFiles(songID int64) ([]SongFile, error) {
	rows, err := s.db.Query(
		`SELECT id, song_id, file_type, file_path, file_name, file_size, mime_type, is_primary, created_at
		 FROM song_files WHERE song_id = ? ORDER BY is_primary DESC, id`, songID,
	)
	if err != nil {
		return nil, fmt.Errorf("store: song files: %w", err)
	}
	defer rows.Close()

	files := []SongFile{}
	for rows.Next() {
		var (
			f    SongFile
			mime sql.NullString
		)
		if err := rows.Scan(&f.ID, &f.SongID, &f.FileType, &f.FilePath, &f.FileName,
			&f.FileSize, &mime, &f.IsPrimary, &f.CreatedAt); err != nil {
			return nil, fmt.Errorf("store: song files: %w", err)
		}
		f.MimeType = mime.String
		files = append(files, f)
	}
	return files, rows.Err()
}

// ─── Helpers ─────────────────────────────────────────────────────────────────

type scanner interface {
	Scan(dest ...any) error
}

func scanSong(row scanner) (*Song, error) {
	var sg Song
	var persona, style, lyrics, clean, metadata, art, errMsg sql.NullString
	var score sql.NullInt64
	if err := row.Scan(&sg.ID, &sg.Title, &sg.UserPrompt, &persona, &style, &sg.UseLocal,
		&lyrics, &clean, &metadata, &art, &score, &sg.Status, &errMsg,
		&sg.GenerationStartedAt, &sg.GenerationCompletedAt, &sg.CreatedAt, &sg.UpdatedAt); err != nil {
		return nil, err
	}

	sg.Persona = persona.String
	sg.Style = style.String
	sg.Lyrics = lyrics.String
	sg.CleanLyrics = clean.String
	sg.MetadataJSON = metadata.String
	sg.AlbumArt = art.String
	sg.ErrorMessage = errMsg.String
	if score.Valid {
		v := int(score.Int64)
		sg.Score = &v
	}
	return &sg, nil
}

func expectRow(res sql.Result, kind string, id any) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("store: %s %v: %w", kind, id, ErrNotFound)
	}
	return nil
}

func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func logsOrEmpty(logsJSON string) string {
	if logsJSON == "" {
		return "[]"
	}
	return logsJSON
}

// Now returns the current time formatted for SQLite.
func Now() string {
	return time.Now().UTC().Format("2006-01-02 15:04:05")
}
