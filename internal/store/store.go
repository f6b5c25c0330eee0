// Package store persists notes, transcripts, audio segment records, and
// summaries in a local SQLite database.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/verbatimlabs/verbatim-core/internal/config"
	"github.com/verbatimlabs/verbatim-core/internal/transcript"
)

// ErrNoteNotFound is returned when an operation addresses a missing note.
var ErrNoteNotFound = errors.New("note not found")

// Note is one recording note.
type Note struct {
	ID          string
	Title       string
	Description string
	StartedAt   time.Time
	EndedAt     *time.Time
	AudioPath   string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// TranscriptSegment is a persisted, speaker-attributed unit of transcript.
type TranscriptSegment struct {
	ID        int64
	NoteID    string
	StartTime float64
	EndTime   float64
	Text      string
	Speaker   string
	CreatedAt time.Time
}

// AudioSegment tracks one capture stretch between pause boundaries.
// DurationMS is nil only for the currently-open segment.
type AudioSegment struct {
	ID            int64
	NoteID        string
	SegmentIndex  int
	MicPath       string
	SystemPath    string
	StartOffsetMS int64
	DurationMS    *int64
	CreatedAt     time.Time
}

// Summary is one generated summary for a note.
type Summary struct {
	ID        int64
	NoteID    string
	Type      string
	Content   string
	CreatedAt time.Time
}

// Store wraps the SQLite database.
type Store struct {
	db    *sql.DB
	log   *slog.Logger
	clock func() time.Time
}

// Open initializes the store, creating the schema if needed.
func Open(ctx context.Context, cfg config.StoreConfig, log *slog.Logger) (*Store, error) {
	dir := filepath.Dir(cfg.Path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)", cfg.Path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	s := &Store{db: db, log: log, clock: time.Now}
	if err := s.initSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) initSchema(ctx context.Context) error {
	ddl := `
CREATE TABLE IF NOT EXISTS notes (
    id TEXT PRIMARY KEY,
    title TEXT NOT NULL,
    description TEXT,
    started_at TEXT NOT NULL,
    ended_at TEXT,
    audio_path TEXT,
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS transcript_segments (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    note_id TEXT NOT NULL,
    start_time REAL NOT NULL,
    end_time REAL NOT NULL,
    text TEXT NOT NULL,
    speaker TEXT,
    created_at TEXT NOT NULL,
    FOREIGN KEY (note_id) REFERENCES notes(id) ON DELETE CASCADE
);
CREATE INDEX IF NOT EXISTS idx_transcript_note ON transcript_segments(note_id);
CREATE TABLE IF NOT EXISTS audio_segments (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    note_id TEXT NOT NULL,
    segment_index INTEGER NOT NULL,
    mic_path TEXT NOT NULL,
    system_path TEXT,
    start_offset_ms INTEGER NOT NULL,
    duration_ms INTEGER,
    created_at TEXT NOT NULL,
    FOREIGN KEY (note_id) REFERENCES notes(id) ON DELETE CASCADE,
    UNIQUE(note_id, segment_index)
);
CREATE TABLE IF NOT EXISTS summaries (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    note_id TEXT NOT NULL,
    summary_type TEXT NOT NULL,
    content TEXT NOT NULL,
    created_at TEXT NOT NULL,
    FOREIGN KEY (note_id) REFERENCES notes(id) ON DELETE CASCADE
);
CREATE INDEX IF NOT EXISTS idx_summary_note ON summaries(note_id);
CREATE TABLE IF NOT EXISTS settings (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL
);
`
	_, err := s.db.ExecContext(ctx, ddl)
	return err
}

// Close releases the underlying database.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) Healthy() bool {
	return s != nil && s.db != nil && s.db.Ping() == nil
}

func (s *Store) now() string {
	return s.clock().UTC().Format(time.RFC3339Nano)
}

func parseTime(value string) time.Time {
	if ts, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return ts
	}
	return time.Time{}
}

// CreateNote inserts a new note row.
func (s *Store) CreateNote(ctx context.Context, id, title string) (Note, error) {
	now := s.now()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO notes(id, title, started_at, created_at, updated_at) VALUES(?, ?, ?, ?, ?)`,
		id, title, now, now, now)
	if err != nil {
		return Note{}, fmt.Errorf("create note: %w", err)
	}
	return s.GetNote(ctx, id)
}

// GetNote loads one note.
func (s *Store) GetNote(ctx context.Context, id string) (Note, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, title, COALESCE(description, ''), started_at, ended_at, COALESCE(audio_path, ''), created_at, updated_at
		 FROM notes WHERE id = ?`, id)

	var n Note
	var started, created, updated string
	var ended sql.NullString
	if err := row.Scan(&n.ID, &n.Title, &n.Description, &started, &ended, &n.AudioPath, &created, &updated); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Note{}, ErrNoteNotFound
		}
		return Note{}, err
	}
	n.StartedAt = parseTime(started)
	n.CreatedAt = parseTime(created)
	n.UpdatedAt = parseTime(updated)
	if ended.Valid {
		ts := parseTime(ended.String)
		n.EndedAt = &ts
	}
	return n, nil
}

// SetNoteTitle updates the note title.
func (s *Store) SetNoteTitle(ctx context.Context, id, title string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE notes SET title = ?, updated_at = ? WHERE id = ?`, title, s.now(), id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// MarkNoteEnded stamps the end of a recording session on the note.
func (s *Store) MarkNoteEnded(ctx context.Context, id, audioPath string) error {
	now := s.now()
	res, err := s.db.ExecContext(ctx,
		`UPDATE notes SET ended_at = ?, audio_path = COALESCE(NULLIF(?, ''), audio_path), updated_at = ? WHERE id = ?`,
		now, audioPath, now, id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// ReopenNote clears the end timestamp so a new session can continue the note.
func (s *Store) ReopenNote(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE notes SET ended_at = NULL, updated_at = ? WHERE id = ?`, s.now(), id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// GetNoteDescription returns the user's free-form notes for a note.
func (s *Store) GetNoteDescription(ctx context.Context, id string) (string, error) {
	row := s.db.QueryRowContext(ctx, `SELECT COALESCE(description, '') FROM notes WHERE id = ?`, id)
	var desc string
	if err := row.Scan(&desc); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrNoteNotFound
		}
		return "", err
	}
	return desc, nil
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNoteNotFound
	}
	return nil
}

// SaveTranscript replaces the note's transcript rows with the final buffer.
// Replacing keeps a re-recorded note's history exactly equal to the buffer
// the session ended with.
func (s *Store) SaveTranscript(ctx context.Context, noteID string, buffer []transcript.Group) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM transcript_segments WHERE note_id = ?`, noteID); err != nil {
		return err
	}
	now := s.now()
	for _, g := range buffer {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO transcript_segments(note_id, start_time, end_time, text, speaker, created_at)
			 VALUES(?, ?, ?, ?, ?, ?)`,
			noteID, g.StartTime, g.EndTime, g.Text, g.Speaker, now); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// GetTranscriptSegments returns the note's transcript ordered by start time.
func (s *Store) GetTranscriptSegments(ctx context.Context, noteID string) ([]TranscriptSegment, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, note_id, start_time, end_time, text, COALESCE(speaker, ''), created_at
		 FROM transcript_segments WHERE note_id = ? ORDER BY start_time ASC, id ASC`, noteID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var segments []TranscriptSegment
	for rows.Next() {
		var seg TranscriptSegment
		var created string
		if err := rows.Scan(&seg.ID, &seg.NoteID, &seg.StartTime, &seg.EndTime, &seg.Text, &seg.Speaker, &created); err != nil {
			return nil, err
		}
		seg.CreatedAt = parseTime(created)
		segments = append(segments, seg)
	}
	return segments, rows.Err()
}

// AddAudioSegment appends a capture segment record for the note.
func (s *Store) AddAudioSegment(ctx context.Context, noteID string, index int, micPath, systemPath string, startOffsetMS int64) (int64, error) {
	var system any
	if systemPath != "" {
		system = systemPath
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO audio_segments(note_id, segment_index, mic_path, system_path, start_offset_ms, created_at)
		 VALUES(?, ?, ?, ?, ?, ?)`,
		noteID, index, micPath, system, startOffsetMS, s.now())
	if err != nil {
		return 0, fmt.Errorf("add audio segment: %w", err)
	}
	return res.LastInsertId()
}

// CloseAudioSegment finalizes the open segment's duration.
func (s *Store) CloseAudioSegment(ctx context.Context, segmentID, durationMS int64) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE audio_segments SET duration_ms = ? WHERE id = ?`, durationMS, segmentID)
	return err
}

// NextSegmentIndex returns the index the note's next capture segment takes.
func (s *Store) NextSegmentIndex(ctx context.Context, noteID string) (int, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(segment_index) + 1, 0) FROM audio_segments WHERE note_id = ?`, noteID)
	var index int
	if err := row.Scan(&index); err != nil {
		return 0, err
	}
	return index, nil
}

// TotalSegmentDuration sums the closed segments, which by construction equals
// the next segment's start offset.
func (s *Store) TotalSegmentDuration(ctx context.Context, noteID string) (int64, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(duration_ms), 0) FROM audio_segments WHERE note_id = ? AND duration_ms IS NOT NULL`, noteID)
	var total int64
	if err := row.Scan(&total); err != nil {
		return 0, err
	}
	return total, nil
}

// GetAudioSegments returns the note's capture segments ordered by index.
func (s *Store) GetAudioSegments(ctx context.Context, noteID string) ([]AudioSegment, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, note_id, segment_index, mic_path, COALESCE(system_path, ''), start_offset_ms, duration_ms, created_at
		 FROM audio_segments WHERE note_id = ? ORDER BY segment_index ASC`, noteID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var segments []AudioSegment
	for rows.Next() {
		var seg AudioSegment
		var created string
		var duration sql.NullInt64
		if err := rows.Scan(&seg.ID, &seg.NoteID, &seg.SegmentIndex, &seg.MicPath, &seg.SystemPath, &seg.StartOffsetMS, &duration, &created); err != nil {
			return nil, err
		}
		if duration.Valid {
			d := duration.Int64
			seg.DurationMS = &d
		}
		seg.CreatedAt = parseTime(created)
		segments = append(segments, seg)
	}
	return segments, rows.Err()
}

// AddSummary stores a generated summary and returns the saved row.
func (s *Store) AddSummary(ctx context.Context, noteID, summaryType, content string) (Summary, error) {
	now := s.now()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO summaries(note_id, summary_type, content, created_at) VALUES(?, ?, ?, ?)`,
		noteID, summaryType, content, now)
	if err != nil {
		return Summary{}, fmt.Errorf("add summary: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return Summary{}, err
	}
	return Summary{ID: id, NoteID: noteID, Type: summaryType, Content: content, CreatedAt: parseTime(now)}, nil
}

// GetSummaries returns the note's summaries, newest first.
func (s *Store) GetSummaries(ctx context.Context, noteID string) ([]Summary, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, note_id, summary_type, content, created_at
		 FROM summaries WHERE note_id = ? ORDER BY created_at DESC, id DESC`, noteID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var summaries []Summary
	for rows.Next() {
		var sum Summary
		var created string
		if err := rows.Scan(&sum.ID, &sum.NoteID, &sum.Type, &sum.Content, &created); err != nil {
			return nil, err
		}
		sum.CreatedAt = parseTime(created)
		summaries = append(summaries, sum)
	}
	return summaries, rows.Err()
}

// GetSetting returns a settings value, or "" when unset.
func (s *Store) GetSetting(ctx context.Context, key string) (string, error) {
	row := s.db.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, key)
	var value string
	if err := row.Scan(&value); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil
		}
		return "", err
	}
	return value, nil
}

// SetSetting upserts a settings value.
func (s *Store) SetSetting(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO settings(key, value) VALUES(?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	return err
}
