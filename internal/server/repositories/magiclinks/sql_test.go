package magiclinks

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/tokenbank/internal/common"
)

func newRepoWithMock(t *testing.T) (*SQLRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return NewSQLRepository(db), mock, db
}

const (
	insertQuery   = `(?s)^\s*INSERT\s+INTO\s+magic_links\s*\(token,\s*email,\s*created_at,\s*used\)\s*VALUES\s*\(\$1,\s*\$2,\s*\$3,\s*FALSE\)\s*$`
	findQuery     = `(?s)^\s*SELECT\s+token,\s*email,\s*created_at,\s*used\s+FROM\s+magic_links\s+WHERE\s+token\s*=\s*\$1\s*$`
	markUsedQuery = `(?s)^\s*UPDATE\s+magic_links\s+SET\s+used\s*=\s*TRUE\s+WHERE\s+token\s*=\s*\$1\s+AND\s+used\s*=\s*FALSE\s*$`
)

func TestCreate_Success(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	now := time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)
	mock.ExpectExec(insertQuery).
		WithArgs("tok123", "a@example.com", now).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.Create(context.Background(), "tok123", "a@example.com", now); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestCreate_DBError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(insertQuery).
		WithArgs("tok123", "a@example.com", sqlmock.AnyArg()).
		WillReturnError(errors.New("db down"))

	err := repo.Create(context.Background(), "tok123", "a@example.com", time.Now())
	if err == nil || !regexp.MustCompile(`error performing sql request: .*db down`).MatchString(err.Error()) {
		t.Fatalf("expected wrapped db error, got %v", err)
	}
}

func TestFind_Found(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	created := time.Now().UTC()
	rows := sqlmock.NewRows([]string{"token", "email", "created_at", "used"}).
		AddRow("tok123", "a@example.com", created, false)

	mock.ExpectQuery(findQuery).
		WithArgs("tok123").
		WillReturnRows(rows)

	got, err := repo.Find(context.Background(), "tok123")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Email != "a@example.com" || got.Used || !got.CreatedAt.Equal(created) {
		t.Fatalf("unexpected row: %+v", got)
	}
}

func TestFind_NotFound(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(findQuery).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.Find(context.Background(), "missing")
	if !errors.Is(err, common.ErrorNotFound) {
		t.Fatalf("want common.ErrorNotFound, got %v", err)
	}
}

func TestFind_DBError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(findQuery).
		WithArgs("tok123").
		WillReturnError(errors.New("db err"))

	_, err := repo.Find(context.Background(), "tok123")
	if err == nil || !regexp.MustCompile(`db error: .*db err`).MatchString(err.Error()) {
		t.Fatalf("expected wrapped db error, got %v", err)
	}
}

func TestMarkUsed(t *testing.T) {
	tests := []struct {
		name     string
		affected int64
		want     bool
	}{
		{name: "first use", affected: 1, want: true},
		{name: "already used or unknown", affected: 0, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo, mock, db := newRepoWithMock(t)
			defer db.Close()

			mock.ExpectExec(markUsedQuery).
				WithArgs("tok123").
				WillReturnResult(sqlmock.NewResult(0, tt.affected))

			got, err := repo.MarkUsed(context.Background(), "tok123")
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Fatalf("MarkUsed = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestMarkUsed_DBError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(markUsedQuery).
		WithArgs("tok123").
		WillReturnError(errors.New("db err"))

	ok, err := repo.MarkUsed(context.Background(), "tok123")
	if ok || err == nil || !regexp.MustCompile(`db error: .*db err`).MatchString(err.Error()) {
		t.Fatalf("expected wrapped db error, got ok=%v err=%v", ok, err)
	}
}

func TestMarkUsed_RowsAffectedError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(markUsedQuery).
		WithArgs("tok123").
		WillReturnResult(sqlmock.NewErrorResult(errors.New("no count")))

	if _, err := repo.MarkUsed(context.Background(), "tok123"); err == nil {
		t.Fatal("expected error")
	}
}
