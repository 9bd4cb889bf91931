package member

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

// migrationsDir は埋め込みマイグレーションのディレクトリ名。
const migrationsDir = "migrations"

// Member はメンバーのレコード。
type Member struct {
	ID           string
	FirstName    string
	LastName     string
	Login        string
	Email        string
	PasswordHash string
	AvatarURL    string
	Followers    int
	Following    int
	Title        string
	IsDeleted    bool
	CreatedAt    time.Time
	UpdatedAt    *time.Time
}

// Store はメンバーの永続化を担うインターフェース。
//
// 一意制約の衝突は*storage.ConflictError、対象の不在（論理削除済みを含む）は
// storage.ErrNotFoundで返す。
type Store interface {
	// Create はメンバーを登録する。
	Create(ctx context.Context, m Member) error
	// FindByLogin は有効なメンバーをログイン名で取得する。
	FindByLogin(ctx context.Context, login string) (Member, error)
	// LoginTaken はログイン名が使用済みかを返す。論理削除済みも含む。
	LoginTaken(ctx context.Context, login string) (bool, error)
	// EmailTaken はメールアドレスが使用済みかを返す。論理削除済みも含む。
	EmailTaken(ctx context.Context, email string) (bool, error)
	// List は有効なメンバーをフォロワー数の降順で返す。
	List(ctx context.Context) ([]Member, error)
	// Get は有効なメンバーをIDで取得する。
	Get(ctx context.Context, id string) (Member, error)
	// SoftDelete はメンバーを論理削除する。
	SoftDelete(ctx context.Context, id string, now time.Time) error
	// SoftDeleteAll は有効なメンバーをすべて論理削除し、件数を返す。
	SoftDeleteAll(ctx context.Context, now time.Time) (int64, error)
	// HardDelete はメンバーを物理削除する。論理削除済みも対象とする。
	HardDelete(ctx context.Context, id string) error
}

// OpenSQLiteStore はSQLiteデータベースを開き、マイグレーション済みのStoreを返す。
func OpenSQLiteStore(ctx context.Context, path string) (*SQLiteStore, error) {
	db, err := storage.Open(ctx, path, migrations, migrationsDir)
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

const memberColumns = `id, first_name, last_name, login, email, password_hash, avatar_url,
	followers, following, title, is_deleted, created_at, updated_at`

// Create はメンバーを登録する。
func (s *SQLiteStore) Create(ctx context.Context, m Member) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO members (`+memberColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0, ?, NULL)`,
		m.ID, m.FirstName, m.LastName, m.Login, m.Email, m.PasswordHash, m.AvatarURL,
		m.Followers, m.Following, m.Title, storage.ToMillis(m.CreatedAt),
	)
	if err != nil {
		if column, ok := storage.UniqueViolation(err); ok {
			return storage.NewConflictError(column, err)
		}
		return fmt.Errorf("メンバーの登録に失敗: %w", err)
	}
	return nil
}

// FindByLogin は有効なメンバーをログイン名で取得する。
func (s *SQLiteStore) FindByLogin(ctx context.Context, login string) (Member, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+memberColumns+` FROM members WHERE login = ? AND is_deleted = 0`, login)
	return scanMember(row)
}

// LoginTaken はログイン名が使用済みかを返す。
func (s *SQLiteStore) LoginTaken(ctx context.Context, login string) (bool, error) {
	return s.exists(ctx, `SELECT EXISTS(SELECT 1 FROM members WHERE login = ?)`, login)
}

// EmailTaken はメールアドレスが使用済みかを返す。
func (s *SQLiteStore) EmailTaken(ctx context.Context, email string) (bool, error) {
	return s.exists(ctx, `SELECT EXISTS(SELECT 1 FROM members WHERE email = ?)`, email)
}

func (s *SQLiteStore) exists(ctx context.Context, query string, arg any) (bool, error) {
	var found bool
	if err := s.db.QueryRowContext(ctx, query, arg).Scan(&found); err != nil {
		return false, fmt.Errorf("存在確認に失敗: %w", err)
	}
	return found, nil
}

// List は有効なメンバーをフォロワー数の降順で返す。
func (s *SQLiteStore) List(ctx context.Context) ([]Member, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+memberColumns+` FROM members
		WHERE is_deleted = 0 ORDER BY followers DESC, created_at ASC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("メンバー一覧の取得に失敗: %w", err)
	}
	defer rows.Close()

	var members []Member
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, err
		}
		members = append(members, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("メンバー一覧の読み取りに失敗: %w", err)
	}
	return members, nil
}

// Get は有効なメンバーをIDで取得する。
func (s *SQLiteStore) Get(ctx context.Context, id string) (Member, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+memberColumns+` FROM members WHERE id = ? AND is_deleted = 0`, id)
	return scanMember(row)
}

// SoftDelete はメンバーを論理削除する。存在しないか削除済みの場合はstorage.ErrNotFound。
func (s *SQLiteStore) SoftDelete(ctx context.Context, id string, now time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE members SET is_deleted = 1, updated_at = ? WHERE id = ? AND is_deleted = 0`,
		storage.ToMillis(now), id)
	if err != nil {
		return fmt.Errorf("メンバーの論理削除に失敗: %w", err)
	}
	return requireAffected(res)
}

// SoftDeleteAll は有効なメンバーをすべて論理削除する。
func (s *SQLiteStore) SoftDeleteAll(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE members SET is_deleted = 1, updated_at = ? WHERE is_deleted = 0`,
		storage.ToMillis(now))
	if err != nil {
		return 0, fmt.Errorf("メンバーの一括論理削除に失敗: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("削除件数の取得に失敗: %w", err)
	}
	return n, nil
}

// HardDelete はメンバーを物理削除する。
func (s *SQLiteStore) HardDelete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM members WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("メンバーの物理削除に失敗: %w", err)
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

func scanMember(row scanner) (Member, error) {
	var (
		m         Member
		createdAt int64
		updatedAt sql.NullInt64
	)
	err := row.Scan(&m.ID, &m.FirstName, &m.LastName, &m.Login, &m.Email, &m.PasswordHash,
		&m.AvatarURL, &m.Followers, &m.Following, &m.Title, &m.IsDeleted, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Member{}, storage.ErrNotFound
	}
	if err != nil {
		return Member{}, fmt.Errorf("メンバーの読み取りに失敗: %w", err)
	}
	m.CreatedAt = storage.FromMillis(createdAt)
	m.UpdatedAt = storage.FromNullMillis(updatedAt)
	return m, nil
}
