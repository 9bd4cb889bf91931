package feedback

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/nao1215/orghub/pkg/storage"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Feedback はフィードバックのレコード。
type Feedback struct {
	ID        string
	Feedback  string
	Author    string
	IsDeleted bool
	CreatedAt time.Time
	UpdatedAt *time.Time
}

// Store はフィードバックの永続化を担うインターフェース。
// 有効なレコード同士で(author, feedback)が衝突した場合は*storage.ConflictErrorを返す。
type Store interface {
	Create(ctx context.Context, f Feedback) error
	// Exists は投稿者が同じ本文の有効なフィードバックを持っているかを返す。
	Exists(ctx context.Context, author, text string) (bool, error)
	// List は有効なフィードバックを作成日時の昇順で返す。
	List(ctx context.Context) ([]Feedback, error)
	Get(ctx context.Context, id string) (Feedback, error)
	SoftDelete(ctx context.Context, id string, now time.Time) error
	SoftDeleteAll(ctx context.Context, now time.Time) (int64, error)
	HardDelete(ctx context.Context, id string) error
}

// OpenSQLiteStore はSQLiteデータベースを開き、マイグレーション済みのStoreを返す。
func OpenSQLiteStore(ctx context.Context, path string) (*SQLiteStore, error) {
	db, err := storage.Open(ctx, path, migrations, "migrations")
	if err != nil {
		return nil, err
	}
	return &SQLiteStore{db: db}, nil
}

// SQLiteStore はSQLiteによるStoreの実装。
type SQLiteStore struct {
	db *sql.DB
}

// Close はデータベース接続を閉じる。
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

const feedbackColumns = `id, feedback, author, is_deleted, created_at, updated_at`

// Create はフィードバックを登録する。
func (s *SQLiteStore) Create(ctx context.Context, f Feedback) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO feedbacks (`+feedbackColumns+`) VALUES (?, ?, ?, 0, ?, NULL)`,
		f.ID, f.Feedback, f.Author, storage.ToMillis(f.CreatedAt))
	if err != nil {
		if column, ok := storage.UniqueViolation(err); ok {
			return storage.NewConflictError(column, err)
		}
		return fmt.Errorf("フィードバックの登録に失敗: %w", err)
	}
	return nil
}

// Exists は投稿者が同じ本文の有効なフィードバックを持っているかを返す。
func (s *SQLiteStore) Exists(ctx context.Context, author, text string) (bool, error) {
	var found bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM feedbacks WHERE author = ? AND feedback = ? AND is_deleted = 0)`,
		author, text).Scan(&found)
	if err != nil {
		return false, fmt.Errorf("存在確認に失敗: %w", err)
	}
	return found, nil
}

// List は有効なフィードバックを作成日時の昇順で返す。
func (s *SQLiteStore) List(ctx context.Context) ([]Feedback, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+feedbackColumns+` FROM feedbacks
		WHERE is_deleted = 0 ORDER BY created_at ASC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("フィードバック一覧の取得に失敗: %w", err)
	}
	defer rows.Close()

	var feedbacks []Feedback
	for rows.Next() {
		f, err := scanFeedback(rows)
		if err != nil {
			return nil, err
		}
		feedbacks = append(feedbacks, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("フィードバック一覧の読み取りに失敗: %w", err)
	}
	return feedbacks, nil
}

// Get は有効なフィードバックをIDで取得する。
func (s *SQLiteStore) Get(ctx context.Context, id string) (Feedback, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+feedbackColumns+` FROM feedbacks WHERE id = ? AND is_deleted = 0`, id)
	return scanFeedback(row)
}

// SoftDelete はフィードバックを論理削除する。
func (s *SQLiteStore) SoftDelete(ctx context.Context, id string, now time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE feedbacks SET is_deleted = 1, updated_at = ? WHERE id = ? AND is_deleted = 0`,
		storage.ToMillis(now), id)
	if err != nil {
		return fmt.Errorf("フィードバックの論理削除に失敗: %w", err)
	}
	return requireAffected(res)
}

// SoftDeleteAll は有効なフィードバックをすべて論理削除する。
func (s *SQLiteStore) SoftDeleteAll(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE feedbacks SET is_deleted = 1, updated_at = ? WHERE is_deleted = 0`,
		storage.ToMillis(now))
	if err != nil {
		return 0, fmt.Errorf("フィードバックの一括論理削除に失敗: %w", err)
	}
	return res.RowsAffected()
}

// HardDelete はフィードバックを物理削除する。
func (s *SQLiteStore) HardDelete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM feedbacks WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("フィードバックの物理削除に失敗: %w", err)
	}
	return requireAffected(res)
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("更新件数の取得に失敗: %w", err)
	}
	if n == 0 {
		return storage.ErrNotFound
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanFeedback(row scanner) (Feedback, error) {
	var (
		f         Feedback
		createdAt int64
		updatedAt sql.NullInt64
	)
	err := row.Scan(&f.ID, &f.Feedback, &f.Author, &f.IsDeleted, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Feedback{}, storage.ErrNotFound
	}
	if err != nil {
		return Feedback{}, fmt.Errorf("フィードバックの読み取りに失敗: %w", err)
	}
	f.CreatedAt = storage.FromMillis(createdAt)
	f.UpdatedAt = storage.FromNullMillis(updatedAt)
	return f, nil
}
