package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"testing/fstest"
	"time"
)

// testMigrations はテスト用のスキーマ。
var testMigrations = fstest.MapFS{
	"migrations/000001_create_accounts.up.sql": {Data: []byte(`
CREATE TABLE accounts (
    id TEXT PRIMARY KEY,
    login TEXT NOT NULL UNIQUE,
    email TEXT NOT NULL UNIQUE,
    note TEXT NOT NULL DEFAULT ''
);
CREATE UNIQUE INDEX idx_accounts_login_note ON accounts(login, note);
CREATE TABLE aliases (name TEXT NOT NULL);
CREATE UNIQUE INDEX idx_aliases_lower_name ON aliases(lower(name));
`)},
}

// openTestDB はテスト用のインメモリDBを開く。
func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := Open(context.Background(), ":memory:", testMigrations, "migrations")
	if err != nil {
		t.Fatalf("Open()でエラーが発生: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// TestOpen はデータベースのオープンを検証する。
func TestOpen(t *testing.T) {
	t.Parallel()

	t.Run("マイグレーションが適用されること", func(t *testing.T) {
		t.Parallel()

		db := openTestDB(t)
		if _, err := db.Exec(`INSERT INTO accounts (id, login, email) VALUES ('1', 'alice', 'a@example.com')`); err != nil {
			t.Fatalf("挿入に失敗: %v", err)
		}
	})

	t.Run("ファイルパスでも開けること", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), "test.db")
		db, err := Open(context.Background(), path, testMigrations, "migrations")
		if err != nil {
			t.Fatalf("Open()でエラーが発生: %v", err)
		}
		defer db.Close()
	})

	t.Run("パスが空の場合はエラーになること", func(t *testing.T) {
		t.Parallel()

		if _, err := Open(context.Background(), " ", testMigrations, "migrations"); err == nil {
			t.Error("Open()がエラーを返さなかった")
		}
	})
}

// TestUniqueViolation は一意制約違反の判定を検証する。
func TestUniqueViolation(t *testing.T) {
	t.Parallel()

	t.Run("衝突した列名を取り出せること", func(t *testing.T) {
		t.Parallel()

		db := openTestDB(t)
		if _, err := db.Exec(`INSERT INTO accounts (id, login, email) VALUES ('1', 'alice', 'a@example.com')`); err != nil {
			t.Fatalf("挿入に失敗: %v", err)
		}

		tests := []struct {
			name  string
			query string
			want  string
		}{
			{"login", `INSERT INTO accounts (id, login, email, note) VALUES ('2', 'alice', 'b@example.com', 'x')`, "login"},
			{"email", `INSERT INTO accounts (id, login, email) VALUES ('3', 'bob', 'a@example.com')`, "email"},
			{"主キー", `INSERT INTO accounts (id, login, email) VALUES ('1', 'carol', 'c@example.com')`, "id"},
		}
		for _, tt := range tests {
			_, err := db.Exec(tt.query)
			if err == nil {
				t.Fatalf("%s: 制約違反が発生しなかった", tt.name)
			}
			field, ok := UniqueViolation(fmt.Errorf("wrapped: %w", err))
			if !ok {
				t.Errorf("%s: UniqueViolation() = false, err=%v", tt.name, err)
				continue
			}
			if field != tt.want {
				t.Errorf("%s: field = %q, want %q (err=%v)", tt.name, field, tt.want, err)
			}
		}
	})

	t.Run("列名を特定できない式インデックスの違反はfalseになること", func(t *testing.T) {
		t.Parallel()

		db := openTestDB(t)
		if _, err := db.Exec(`INSERT INTO aliases (name) VALUES ('Alice')`); err != nil {
			t.Fatalf("挿入に失敗: %v", err)
		}
		_, err := db.Exec(`INSERT INTO aliases (name) VALUES ('alice')`)
		if err == nil {
			t.Fatal("制約違反が発生しなかった")
		}
		if field, ok := UniqueViolation(err); ok {
			t.Errorf("UniqueViolation() = (%q, true), want false (err=%v)", field, err)
		}
	})

	t.Run("制約違反以外のエラーはfalseになること", func(t *testing.T) {
		t.Parallel()

		db := openTestDB(t)
		_, err := db.Exec(`INSERT INTO missing_table VALUES (1)`)
		if err == nil {
			t.Fatal("エラーが発生しなかった")
		}
		if _, ok := UniqueViolation(err); ok {
			t.Error("UniqueViolation() = true, want false")
		}
		if _, ok := UniqueViolation(errors.New("UNIQUE constraint failed: x.y")); ok {
			t.Error("SQLite以外のエラーでUniqueViolation() = true")
		}
		if _, ok := UniqueViolation(nil); ok {
			t.Error("nilでUniqueViolation() = true")
		}
	})
}

// TestConflictError はConflictErrorを検証する。
func TestConflictError(t *testing.T) {
	t.Parallel()

	cause := errors.New("constraint")
	err := fmt.Errorf("create: %w", NewConflictError("email", cause))

	var conflict *ConflictError
	if !errors.As(err, &conflict) {
		t.Fatal("errors.As() = false")
	}
	if conflict.Field != "email" {
		t.Errorf("Field = %q, want email", conflict.Field)
	}
	if !errors.Is(err, cause) {
		t.Error("errors.Is(err, cause) = false")
	}
}

// TestMillis はミリ秒変換を検証する。
func TestMillis(t *testing.T) {
	t.Parallel()

	ts := time.Date(2026, 3, 4, 5, 6, 7, 8_000_000, time.FixedZone("JST", 9*3600))
	got := FromMillis(ToMillis(ts))
	if !got.Equal(ts) {
		t.Errorf("FromMillis(ToMillis()) = %v, want %v", got, ts)
	}
	if got.Location() != time.UTC {
		t.Errorf("Location = %v, want UTC", got.Location())
	}
	if FromNullMillis(sql.NullInt64{}) != nil {
		t.Error("FromNullMillis(NULL) != nil")
	}
	if p := FromNullMillis(sql.NullInt64{Int64: ToMillis(ts), Valid: true}); p == nil || !p.Equal(ts) {
		t.Errorf("FromNullMillis() = %v", p)
	}
}
