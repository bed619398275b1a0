package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"scribsy/models"

	"github.com/lib/pq"
	"go.uber.org/zap"
)

// schema создаёт таблицы стены. seq задаёт порядок вставки:
// новые посты получают больший seq и отдаются первыми.
const schema = `
CREATE TABLE IF NOT EXISTS posts (
	seq        BIGSERIAL,
	id         TEXT PRIMARY KEY,
	type       TEXT NOT NULL,
	text       TEXT,
	image      TEXT,
	name       TEXT NOT NULL,
	mood       TEXT NOT NULL,
	created_at BIGINT NOT NULL,
	reactions  JSONB NOT NULL DEFAULT '{}'::jsonb
);
CREATE TABLE IF NOT EXISTS archives (
	id    BIGSERIAL PRIMARY KEY,
	date  TEXT NOT NULL,
	posts JSONB NOT NULL DEFAULT '[]'::jsonb
);
`

// postColumns: колонки поста в порядке, который ожидает scanPosts
const postColumns = `id, type, text, image, name, mood, created_at, reactions`

// archiveLockKey: ключ pg_advisory_lock, общий для всех экземпляров архиватора
const archiveLockKey int64 = 0x5c81b5

// PostgresStore хранит стену в Postgres: посты строками, архивы: JSONB-документами.
type PostgresStore struct {
	Conn *sql.DB
	log  *zap.Logger
}

var (
	_ PostStore     = (*PostgresStore)(nil)
	_ ArchiveLocker = (*PostgresStore)(nil)
)

func NewPostgresStore(conn *sql.DB, logger *zap.Logger) *PostgresStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PostgresStore{Conn: conn, log: logger.Named("pgstore")}
}

// OpenPostgres подключается по DSN и проверяет соединение.
func OpenPostgres(ctx context.Context, dsn string) (*sql.DB, error) {
	conn, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, unavailable("open postgres", err)
	}
	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, unavailable("ping postgres", err)
	}
	return conn, nil
}

// Migrate создаёт таблицы, если их ещё нет.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.Conn.ExecContext(ctx, schema); err != nil {
		return unavailable("migrate", err)
	}
	return nil
}

func (s *PostgresStore) ListLive(ctx context.Context) ([]models.Post, error) {
	rows, err := s.Conn.QueryContext(ctx, `
		SELECT `+postColumns+`
		FROM posts
		ORDER BY seq DESC`)
	if err != nil {
		return nil, unavailable("list live", err)
	}
	defer rows.Close()

	posts, err := scanPosts(rows)
	if err != nil {
		return nil, err
	}
	return posts, nil
}

func (s *PostgresStore) InsertLive(ctx context.Context, post models.Post) error {
	post.Normalize()
	reactions, err := json.Marshal(post.Reactions)
	if err != nil {
		return err
	}
	_, err = s.Conn.ExecContext(ctx, `
		INSERT INTO posts (id, type, text, image, name, mood, created_at, reactions)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		post.ID, post.Type, nullString(post.Text), nullString(post.Image),
		post.Name, post.Mood, post.CreatedAt, reactions,
	)
	if err != nil {
		return unavailable("insert live", err)
	}
	return nil
}

func (s *PostgresStore) RemoveLive(ctx context.Context, id string) error {
	if _, err := s.Conn.ExecContext(ctx, `DELETE FROM posts WHERE id = $1`, id); err != nil {
		return unavailable("remove live", err)
	}
	return nil
}

// IncrementReaction увеличивает счётчик одним UPDATE, поэтому параллельные
// реакции не теряются даже при нескольких экземплярах сервера.
func (s *PostgresStore) IncrementReaction(ctx context.Context, id, emoji string) (map[string]int, error) {
	var raw []byte
	err := s.Conn.QueryRowContext(ctx, `
		UPDATE posts
		SET reactions = jsonb_set(reactions, ARRAY[$2::text], to_jsonb(COALESCE((reactions->>$2::text)::int, 0) + 1))
		WHERE id = $1
		RETURNING reactions`,
		id, emoji,
	).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, unavailable("increment reaction", err)
	}

	reactions := map[string]int{}
	if err := json.Unmarshal(raw, &reactions); err != nil {
		return nil, fmt.Errorf("decode reactions of %s: %w", id, err)
	}
	return reactions, nil
}

func (s *PostgresStore) LatestArchiveDate(ctx context.Context) (string, bool, error) {
	var date string
	err := s.Conn.QueryRowContext(ctx, `SELECT date FROM archives ORDER BY id DESC LIMIT 1`).Scan(&date)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, unavailable("latest archive date", err)
	}
	return date, true, nil
}

func (s *PostgresStore) CreateArchiveBatch(ctx context.Context, date string, posts []models.Post) error {
	if err := insertBatch(ctx, s.Conn, date, posts); err != nil {
		return unavailable("create archive batch", err)
	}
	return nil
}

func (s *PostgresStore) ClearLive(ctx context.Context) error {
	if _, err := s.Conn.ExecContext(ctx, `DELETE FROM posts`); err != nil {
		return unavailable("clear live", err)
	}
	return nil
}

func (s *PostgresStore) ListArchives(ctx context.Context) ([]models.ArchiveBatch, error) {
	rows, err := s.Conn.QueryContext(ctx, `SELECT date, posts FROM archives ORDER BY id DESC`)
	if err != nil {
		return nil, unavailable("list archives", err)
	}
	defer rows.Close()

	archives := []models.ArchiveBatch{}
	for rows.Next() {
		var (
			a   models.ArchiveBatch
			raw []byte
		)
		if err := rows.Scan(&a.Date, &raw); err != nil {
			return nil, unavailable("scan archive", err)
		}
		if err := json.Unmarshal(raw, &a.Posts); err != nil {
			return nil, fmt.Errorf("decode archive %s: %w", a.Date, err)
		}
		if a.Posts == nil {
			a.Posts = []models.Post{}
		}
		for i := range a.Posts {
			a.Posts[i].Normalize()
		}
		archives = append(archives, a)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("list archives", err)
	}
	return archives, nil
}

// MoveToArchive удаляет переданные посты и пишет в архив то, что вернул DELETE,
// всё в одной транзакции. Реакции, поставленные после чтения стены, сохраняются.
func (s *PostgresStore) MoveToArchive(ctx context.Context, date string, posts []models.Post) ([]models.Post, error) {
	tx, err := s.Conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, unavailable("begin archive tx", err)
	}
	defer tx.Rollback()

	ids := make([]string, 0, len(posts))
	for _, p := range posts {
		ids = append(ids, p.ID)
	}
	rows, err := tx.QueryContext(ctx, `
		DELETE FROM posts
		WHERE id = ANY($1)
		RETURNING `+postColumns, pq.Array(ids))
	if err != nil {
		return nil, unavailable("delete archived posts", err)
	}
	deleted, err := scanPosts(rows)
	rows.Close()
	if err != nil {
		return nil, err
	}

	// порядок стены задаёт вызывающий, RETURNING его не гарантирует
	byID := make(map[string]models.Post, len(deleted))
	for _, p := range deleted {
		byID[p.ID] = p
	}
	archived := make([]models.Post, 0, len(deleted))
	for _, id := range ids {
		if p, ok := byID[id]; ok {
			archived = append(archived, p)
		}
	}

	if err := insertBatch(ctx, tx, date, archived); err != nil {
		return nil, unavailable("insert archive", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, unavailable("commit archive tx", err)
	}
	s.log.Debug("archived posts", zap.String("date", date), zap.Int("count", len(archived)))
	return archived, nil
}

// LockArchive берёт сессионную advisory-блокировку на отдельном соединении,
// чтобы архиваторы разных процессов не работали одновременно.
func (s *PostgresStore) LockArchive(ctx context.Context) (func(), error) {
	conn, err := s.Conn.Conn(ctx)
	if err != nil {
		return nil, unavailable("lock archive", err)
	}
	if _, err := conn.ExecContext(ctx, `SELECT pg_advisory_lock($1)`, archiveLockKey); err != nil {
		conn.Close()
		return nil, unavailable("lock archive", err)
	}
	return func() {
		if _, err := conn.ExecContext(context.Background(), `SELECT pg_advisory_unlock($1)`, archiveLockKey); err != nil {
			s.log.Warn("unlock archive", zap.Error(err))
		}
		conn.Close()
	}, nil
}

func (s *PostgresStore) Close() error {
	return s.Conn.Close()
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertBatch(ctx context.Context, db execer, date string, posts []models.Post) error {
	if posts == nil {
		posts = []models.Post{}
	}
	raw, err := json.Marshal(posts)
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx, `INSERT INTO archives (date, posts) VALUES ($1, $2)`, date, raw)
	return err
}

// scanPosts читает строки с колонками postColumns
func scanPosts(rows *sql.Rows) ([]models.Post, error) {
	posts := []models.Post{}
	for rows.Next() {
		var (
			p         models.Post
			text      sql.NullString
			image     sql.NullString
			reactions []byte
		)
		if err := rows.Scan(&p.ID, &p.Type, &text, &image, &p.Name, &p.Mood, &p.CreatedAt, &reactions); err != nil {
			return nil, unavailable("scan post", err)
		}
		if text.Valid {
			p.Text = &text.String
		}
		if image.Valid {
			p.Image = &image.String
		}
		if len(reactions) > 0 {
			if err := json.Unmarshal(reactions, &p.Reactions); err != nil {
				return nil, fmt.Errorf("decode reactions of %s: %w", p.ID, err)
			}
		}
		p.Normalize()
		posts = append(posts, p)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("read posts", err)
	}
	return posts, nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}
