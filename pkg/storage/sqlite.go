// Package storage はバックエンドサービスが共有するストアの基盤を提供する。
//
// SQLiteの接続とマイグレーション適用に加え、ストアに依存しない
// 「存在しない」「一意制約に衝突した」というシグナルを定義する。
// サービスはSQLiteのエラーを直接調べず、このパッケージのシグナルで分岐する。
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"

	"github.com/nao1215/orghub/pkg/migration"
)

// ErrNotFound は対象レコードが存在しない（または論理削除済み）ことを表す。
var ErrNotFound = errors.New("record not found")

// ConflictError は一意制約に衝突したことを表す。
type ConflictError struct {
	// Field は衝突したフィールド名。
	Field string
	// cause はストアが返した元のエラー。
	cause error
}

// NewConflictError はConflictErrorを生成する。
func NewConflictError(field string, cause error) *ConflictError {
	return &ConflictError{Field: field, cause: cause}
}

// Error はerrorインターフェースを実装する。
func (e *ConflictError) Error() string {
	return fmt.Sprintf("unique constraint conflict on %s", e.Field)
}

// Unwrap は元のエラーを返す。
func (e *ConflictError) Unwrap() error {
	return e.cause
}

// Open はSQLiteデータベースを開き、埋め込みマイグレーションを適用する。
// 書き込みを直列化するため接続数は1に制限する。
func Open(ctx context.Context, path string, migrations fs.FS, dir string) (*sql.DB, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("データベースのパスが空です")
	}

	dsn := path
	if path != ":memory:" {
		dsn = path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("データベース接続に失敗: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("データベースへの疎通確認に失敗: %w", err)
	}
	if err := migration.Run(ctx, db, migrations, dir); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("マイグレーションに失敗: %w", err)
	}
	return db, nil
}

// UniqueViolation はerrがSQLiteの一意制約違反であれば違反した列名を返す。
// 列名はSQLiteのメッセージ "UNIQUE constraint failed: table.column" から取り出す。
// 式インデックスなどで列名を特定できない場合はfalseを返し、通常のストアエラーとして扱わせる。
func UniqueViolation(err error) (string, bool) {
	if err == nil {
		return "", false
	}
	var sqliteErr *msqlite.Error
	if !errors.As(err, &sqliteErr) {
		return "", false
	}
	message := sqliteErr.Error()
	switch sqliteErr.Code() {
	case sqlite3lib.SQLITE_CONSTRAINT_UNIQUE, sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY:
	case sqlite3lib.SQLITE_CONSTRAINT:
		if !strings.Contains(message, "UNIQUE constraint failed") {
			return "", false
		}
	default:
		return "", false
	}

	_, columns, found := strings.Cut(message, "UNIQUE constraint failed: ")
	if !found {
		return "", false
	}
	// 式インデックスでは "index 'name'" の形式になり列名が無い
	columns = strings.TrimSpace(columns)
	if strings.HasPrefix(columns, "index ") {
		return "", false
	}
	// 複合インデックスの場合は最後の列を採用する
	parts := strings.Split(columns, ",")
	column := strings.TrimSpace(parts[len(parts)-1])
	if _, name, ok := strings.Cut(column, "."); ok {
		column = name
	}
	// 末尾に付与される "(2067)" などのコード表記を除去する
	if i := strings.IndexAny(column, " ("); i >= 0 {
		column = column[:i]
	}
	if column == "" {
		return "", false
	}
	return column, true
}

// ToMillis は時刻をUTCのミリ秒に変換する。
func ToMillis(t time.Time) int64 {
	return t.UTC().UnixMilli()
}

// FromMillis はミリ秒を時刻に変換する。
func FromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

// FromNullMillis はNULL許容のミリ秒を時刻ポインタに変換する。
func FromNullMillis(ms sql.NullInt64) *time.Time {
	if !ms.Valid {
		return nil
	}
	t := FromMillis(ms.Int64)
	return &t
}
