package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	eventCourseUpdated  = "catalog.course.updated"
	eventChapterUpdated = "catalog.chapter.updated"
	eventVideoUpdated   = "catalog.video.updated"
)

// PostgresCatalogStore is the production Postgres-backed implementation.
// Every write inserts a row into catalog_outbox in the same transaction; the
// outbox publisher relays those rows to JetStream for cache invalidation.
type PostgresCatalogStore struct {
	db *pgxpool.Pool
}

func NewPostgresCatalogStore(db *pgxpool.Pool) *PostgresCatalogStore {
	return &PostgresCatalogStore{db: db}
}

// ── Course writes ──────────────────────────────────────────────────────────

func (s *PostgresCatalogStore) CreateCourse(ctx context.Context, title, description string) (Course, error) {
	now := time.Now().UTC()
	c := Course{
		ID:          uuid.New(),
		Title:       title,
		Slug:        Slugify(title),
		Description: description,
		Published:   true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Course{}, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.Exec(ctx, `
INSERT INTO courses (id, title, slug, description, published, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$6)`,
		c.ID, c.Title, c.Slug, c.Description, c.Published, now)
	if err != nil {
		if isUniqueViolation(err) {
			return Course{}, fmt.Errorf("slug %q: %w", c.Slug, ErrConflict)
		}
		return Course{}, fmt.Errorf("insert course: %w", err)
	}

	if err := insertOutboxEvent(ctx, tx, eventCourseUpdated, map[string]any{"course_id": c.ID.String()}); err != nil {
		return Course{}, fmt.Errorf("outbox: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return Course{}, fmt.Errorf("commit: %w", err)
	}
	return c, nil
}

func (s *PostgresCatalogStore) UpdateCourse(ctx context.Context, id uuid.UUID, title, description string) (Course, error) {
	now := time.Now().UTC()
	slug := Slugify(title)

	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Course{}, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var c Course
	err = tx.QueryRow(ctx, `
UPDATE courses
SET title=$2, slug=$3, description=$4, updated_at=$5
WHERE id=$1 AND deleted_at IS NULL
RETURNING id, title, slug, description, published, created_at, updated_at`,
		id, title, slug, description, now,
	).Scan(&c.ID, &c.Title, &c.Slug, &c.Description, &c.Published, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Course{}, ErrNotFound
		}
		if isUniqueViolation(err) {
			return Course{}, fmt.Errorf("slug %q: %w", slug, ErrConflict)
		}
		return Course{}, fmt.Errorf("update course: %w", err)
	}

	if err := insertOutboxEvent(ctx, tx, eventCourseUpdated, map[string]any{"course_id": id.String()}); err != nil {
		return Course{}, fmt.Errorf("outbox: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return Course{}, fmt.Errorf("commit: %w", err)
	}
	return c, nil
}

func (s *PostgresCatalogStore) SetCoursePublished(ctx context.Context, id uuid.UUID, published bool) error {
	return s.courseWrite(ctx, id, `
UPDATE courses SET published=$2, updated_at=$3
WHERE id=$1 AND deleted_at IS NULL`, []any{id, published, time.Now().UTC()})
}

func (s *PostgresCatalogStore) SoftDeleteCourse(ctx context.Context, id uuid.UUID) error {
	return s.courseWrite(ctx, id, `
UPDATE courses SET deleted_at=$2, updated_at=$2
WHERE id=$1 AND deleted_at IS NULL`, []any{id, time.Now().UTC()})
}

// courseWrite runs a single-row course update plus its outbox event.
func (s *PostgresCatalogStore) courseWrite(ctx context.Context, id uuid.UUID, query string, args []any) error {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	ct, err := tx.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update course: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrNotFound
	}

	if err := insertOutboxEvent(ctx, tx, eventCourseUpdated, map[string]any{"course_id": id.String()}); err != nil {
		return fmt.Errorf("outbox: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// ── Course reads ───────────────────────────────────────────────────────────

func (s *PostgresCatalogStore) ListCourses(ctx context.Context, publishedOnly bool) ([]Course, error) {
	q := `
SELECT id, title, slug, description, published, created_at, updated_at
FROM courses
WHERE deleted_at IS NULL`
	if publishedOnly {
		q += ` AND published`
	}
	q += ` ORDER BY created_at ASC`

	rows, err := s.db.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("query courses: %w", err)
	}
	defer rows.Close()

	var out []Course
	for rows.Next() {
		var c Course
		if err := rows.Scan(&c.ID, &c.Title, &c.Slug, &c.Description, &c.Published, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan course: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *PostgresCatalogStore) GetCourseBySlug(ctx context.Context, slug string) (Course, error) {
	var c Course
	err := s.db.QueryRow(ctx, `
SELECT id, title, slug, description, published, created_at, updated_at
FROM courses WHERE slug=$1 AND deleted_at IS NULL`, slug,
	).Scan(&c.ID, &c.Title, &c.Slug, &c.Description, &c.Published, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Course{}, ErrNotFound
		}
		return Course{}, fmt.Errorf("query course: %w", err)
	}
	return c, nil
}

// ── Chapter writes ─────────────────────────────────────────────────────────

func (s *PostgresCatalogStore) CreateChapter(ctx context.Context, courseID uuid.UUID, title string) (Chapter, error) {
	now := time.Now().UTC()

	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Chapter{}, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var exists bool
	if err := tx.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM courses WHERE id=$1 AND deleted_at IS NULL)`, courseID,
	).Scan(&exists); err != nil {
		return Chapter{}, fmt.Errorf("query course: %w", err)
	}
	if !exists {
		return Chapter{}, ErrNotFound
	}

	ch := Chapter{ID: uuid.New(), CourseID: courseID, Title: title, CreatedAt: now, UpdatedAt: now}

	// New chapters append at the end.
	err = tx.QueryRow(ctx, `
INSERT INTO chapters (id, course_id, title, position, created_at, updated_at)
VALUES ($1,$2,$3,
  (SELECT COALESCE(MAX(position),0)+1 FROM chapters WHERE course_id=$2 AND deleted_at IS NULL),
  $4,$4)
RETURNING position`,
		ch.ID, courseID, title, now,
	).Scan(&ch.Position)
	if err != nil {
		return Chapter{}, fmt.Errorf("insert chapter: %w", err)
	}

	if err := insertOutboxEvent(ctx, tx, eventChapterUpdated, map[string]any{"course_id": courseID.String(), "chapter_id": ch.ID.String()}); err != nil {
		return Chapter{}, fmt.Errorf("outbox: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return Chapter{}, fmt.Errorf("commit: %w", err)
	}
	return ch, nil
}

func (s *PostgresCatalogStore) UpdateChapter(ctx context.Context, id uuid.UUID, title string) (Chapter, error) {
	now := time.Now().UTC()

	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Chapter{}, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var ch Chapter
	err = tx.QueryRow(ctx, `
UPDATE chapters SET title=$2, updated_at=$3
WHERE id=$1 AND deleted_at IS NULL
RETURNING id, course_id, title, position, created_at, updated_at`,
		id, title, now,
	).Scan(&ch.ID, &ch.CourseID, &ch.Title, &ch.Position, &ch.CreatedAt, &ch.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Chapter{}, ErrNotFound
		}
		return Chapter{}, fmt.Errorf("update chapter: %w", err)
	}

	if err := insertOutboxEvent(ctx, tx, eventChapterUpdated, map[string]any{"course_id": ch.CourseID.String(), "chapter_id": id.String()}); err != nil {
		return Chapter{}, fmt.Errorf("outbox: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return Chapter{}, fmt.Errorf("commit: %w", err)
	}
	return ch, nil
}

func (s *PostgresCatalogStore) SoftDeleteChapter(ctx context.Context, id uuid.UUID) error {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	now := time.Now().UTC()
	var courseID uuid.UUID
	err = tx.QueryRow(ctx, `
UPDATE chapters SET deleted_at=$2, updated_at=$2
WHERE id=$1 AND deleted_at IS NULL
RETURNING course_id`, id, now,
	).Scan(&courseID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("delete chapter: %w", err)
	}

	if err := insertOutboxEvent(ctx, tx, eventChapterUpdated, map[string]any{"course_id": courseID.String(), "chapter_id": id.String()}); err != nil {
		return fmt.Errorf("outbox: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (s *PostgresCatalogStore) UpdateChapterPositions(ctx context.Context, updates []ChapterPosition) error {
	if len(updates) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	now := time.Now().UTC()
	var courseID uuid.UUID
	for _, u := range updates {
		err := tx.QueryRow(ctx, `
UPDATE chapters SET position=$2, updated_at=$3
WHERE id=$1 AND deleted_at IS NULL
RETURNING course_id`, u.ID, u.Position, now,
		).Scan(&courseID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return fmt.Errorf("chapter %s: %w", u.ID, ErrNotFound)
			}
			return fmt.Errorf("reorder chapter: %w", err)
		}
	}

	if err := insertOutboxEvent(ctx, tx, eventChapterUpdated, map[string]any{"course_id": courseID.String()}); err != nil {
		return fmt.Errorf("outbox: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// ── Video writes ───────────────────────────────────────────────────────────

func (s *PostgresCatalogStore) CreateVideo(ctx context.Context, chapterID uuid.UUID, title, providerVideoID string, requiresWorkbook bool) (Video, error) {
	now := time.Now().UTC()

	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Video{}, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var exists bool
	if err := tx.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM chapters WHERE id=$1 AND deleted_at IS NULL)`, chapterID,
	).Scan(&exists); err != nil {
		return Video{}, fmt.Errorf("query chapter: %w", err)
	}
	if !exists {
		return Video{}, ErrNotFound
	}

	v := Video{
		ID:               uuid.New(),
		ChapterID:        chapterID,
		Title:            title,
		ProviderVideoID:  providerVideoID,
		RequiresWorkbook: requiresWorkbook,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	err = tx.QueryRow(ctx, `
INSERT INTO videos (id, chapter_id, title, position, provider_video_id, requires_workbook, created_at, updated_at)
VALUES ($1,$2,$3,
  (SELECT COALESCE(MAX(position),0)+1 FROM videos WHERE chapter_id=$2 AND deleted_at IS NULL),
  $4,$5,$6,$6)
RETURNING position`,
		v.ID, chapterID, title, providerVideoID, requiresWorkbook, now,
	).Scan(&v.Position)
	if err != nil {
		return Video{}, fmt.Errorf("insert video: %w", err)
	}

	if err := insertOutboxEvent(ctx, tx, eventVideoUpdated, map[string]any{"video_id": v.ID.String()}); err != nil {
		return Video{}, fmt.Errorf("outbox: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return Video{}, fmt.Errorf("commit: %w", err)
	}
	return v, nil
}

func (s *PostgresCatalogStore) UpdateVideo(ctx context.Context, id, chapterID uuid.UUID, title string, requiresWorkbook bool) (Video, error) {
	now := time.Now().UTC()

	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Video{}, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var v Video
	err = tx.QueryRow(ctx, `
UPDATE videos SET chapter_id=$2, title=$3, requires_workbook=$4, updated_at=$5
WHERE id=$1 AND deleted_at IS NULL
RETURNING id, chapter_id, title, position, provider_video_id, requires_workbook, created_at, updated_at`,
		id, chapterID, title, requiresWorkbook, now,
	).Scan(&v.ID, &v.ChapterID, &v.Title, &v.Position, &v.ProviderVideoID, &v.RequiresWorkbook, &v.CreatedAt, &v.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Video{}, ErrNotFound
		}
		return Video{}, fmt.Errorf("update video: %w", err)
	}

	if err := insertOutboxEvent(ctx, tx, eventVideoUpdated, map[string]any{"video_id": id.String()}); err != nil {
		return Video{}, fmt.Errorf("outbox: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return Video{}, fmt.Errorf("commit: %w", err)
	}
	return v, nil
}

func (s *PostgresCatalogStore) SoftDeleteVideo(ctx context.Context, id uuid.UUID) error {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	ct, err := tx.Exec(ctx, `
UPDATE videos SET deleted_at=$2, updated_at=$2
WHERE id=$1 AND deleted_at IS NULL`, id, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("delete video: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrNotFound
	}

	if err := insertOutboxEvent(ctx, tx, eventVideoUpdated, map[string]any{"video_id": id.String()}); err != nil {
		return fmt.Errorf("outbox: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (s *PostgresCatalogStore) UpdateVideoPositions(ctx context.Context, updates []VideoPosition) error {
	if len(updates) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	now := time.Now().UTC()
	for _, u := range updates {
		ct, err := tx.Exec(ctx, `
UPDATE videos SET chapter_id=$2, position=$3, updated_at=$4
WHERE id=$1 AND deleted_at IS NULL`, u.ID, u.ChapterID, u.Position, now)
		if err != nil {
			return fmt.Errorf("reorder video: %w", err)
		}
		if ct.RowsAffected() == 0 {
			return fmt.Errorf("video %s: %w", u.ID, ErrNotFound)
		}
	}

	if err := insertOutboxEvent(ctx, tx, eventVideoUpdated, map[string]any{"count": len(updates)}); err != nil {
		return fmt.Errorf("outbox: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// ── Reads for learners and the gateway ─────────────────────────────────────

func (s *PostgresCatalogStore) ListChapters(ctx context.Context, courseID uuid.UUID) ([]Chapter, error) {
	rows, err := s.db.Query(ctx, `
SELECT id, course_id, title, position, created_at, updated_at
FROM chapters
WHERE course_id=$1 AND deleted_at IS NULL
ORDER BY position ASC, id ASC`, courseID)
	if err != nil {
		return nil, fmt.Errorf("query chapters: %w", err)
	}
	defer rows.Close()

	var out []Chapter
	for rows.Next() {
		var ch Chapter
		if err := rows.Scan(&ch.ID, &ch.CourseID, &ch.Title, &ch.Position, &ch.CreatedAt, &ch.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan chapter: %w", err)
		}
		out = append(out, ch)
	}
	return out, rows.Err()
}

// ListCourseVideos returns every live video of a course in course order:
// chapter position first, then video position, with IDs as a stable tie-break.
func (s *PostgresCatalogStore) ListCourseVideos(ctx context.Context, courseID uuid.UUID) ([]Video, error) {
	rows, err := s.db.Query(ctx, `
SELECT v.id, v.chapter_id, v.title, v.position, v.provider_video_id, v.requires_workbook, v.created_at, v.updated_at
FROM videos v
JOIN chapters c ON c.id = v.chapter_id
WHERE c.course_id=$1 AND v.deleted_at IS NULL AND c.deleted_at IS NULL
ORDER BY c.position ASC, v.position ASC, v.id ASC`, courseID)
	if err != nil {
		return nil, fmt.Errorf("query videos: %w", err)
	}
	defer rows.Close()

	var out []Video
	for rows.Next() {
		var v Video
		if err := rows.Scan(&v.ID, &v.ChapterID, &v.Title, &v.Position, &v.ProviderVideoID, &v.RequiresWorkbook, &v.CreatedAt, &v.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan video: %w", err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func (s *PostgresCatalogStore) GetVideoContext(ctx context.Context, videoID uuid.UUID) (VideoContext, error) {
	var vc VideoContext
	err := s.db.QueryRow(ctx, `
SELECT v.id, v.chapter_id, v.title, v.position, v.provider_video_id, v.requires_workbook, v.created_at, v.updated_at,
       c.id, c.course_id, c.title, c.position, c.created_at, c.updated_at,
       co.id, co.title, co.slug, co.description, co.published, co.created_at, co.updated_at
FROM videos v
JOIN chapters c ON c.id = v.chapter_id
JOIN courses co ON co.id = c.course_id
WHERE v.id=$1 AND v.deleted_at IS NULL AND c.deleted_at IS NULL AND co.deleted_at IS NULL`, videoID,
	).Scan(
		&vc.Video.ID, &vc.Video.ChapterID, &vc.Video.Title, &vc.Video.Position, &vc.Video.ProviderVideoID, &vc.Video.RequiresWorkbook, &vc.Video.CreatedAt, &vc.Video.UpdatedAt,
		&vc.Chapter.ID, &vc.Chapter.CourseID, &vc.Chapter.Title, &vc.Chapter.Position, &vc.Chapter.CreatedAt, &vc.Chapter.UpdatedAt,
		&vc.Course.ID, &vc.Course.Title, &vc.Course.Slug, &vc.Course.Description, &vc.Course.Published, &vc.Course.CreatedAt, &vc.Course.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return VideoContext{}, ErrNotFound
		}
		return VideoContext{}, fmt.Errorf("query video: %w", err)
	}
	return vc, nil
}

// ── helpers ────────────────────────────────────────────────────────────────

func insertOutboxEvent(ctx context.Context, tx pgx.Tx, eventType string, payload any) error {
	b, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	_, err = tx.Exec(ctx,
		`INSERT INTO catalog_outbox (id, event_type, payload) VALUES ($1,$2,$3)`,
		uuid.New(), eventType, b)
	return err
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
