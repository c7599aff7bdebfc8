package usage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestPGStoreConsumeInsertsFirstWindow(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	now := time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT limit_amount, used, resets_at FROM usage").
		WithArgs("guest:a").
		WillReturnRows(sqlmock.NewRows([]string{"limit_amount", "used", "resets_at"}))
	mock.ExpectExec("INSERT INTO usage").
		WithArgs("guest:a", 10, 0, now.Add(Period)).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("UPDATE usage SET used").
		WithArgs(1, "guest:a").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	u, err := NewPGStore(db).Consume(context.Background(), "guest:a", 1, 10, now)
	if err != nil {
		t.Fatalf("Consume: %v", err)
	}
	if u.Used != 1 || u.Limit != 10 {
		t.Fatalf("unexpected usage: %+v", u)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestPGStoreConsumeAtLimitRollsBack(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	now := time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT limit_amount, used, resets_at FROM usage").
		WithArgs("u").
		WillReturnRows(sqlmock.NewRows([]string{"limit_amount", "used", "resets_at"}).
			AddRow(10, 10, now.Add(time.Hour)))
	mock.ExpectRollback()

	_, err = NewPGStore(db).Consume(context.Background(), "u", 1, 10, now)
	if !errors.Is(err, ErrLimitReached) {
		t.Fatalf("expected ErrLimitReached, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestPGStoreEnsureRollsExpiredWindow(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	now := time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT limit_amount, used, resets_at FROM usage").
		WithArgs("u").
		WillReturnRows(sqlmock.NewRows([]string{"limit_amount", "used", "resets_at"}).
			AddRow(10, 7, now.Add(-time.Minute)))
	mock.ExpectExec("UPDATE usage SET limit_amount").
		WithArgs(10, now.Add(Period), "u").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	u, err := NewPGStore(db).EnsurePeriod(context.Background(), "u", 10, now)
	if err != nil {
		t.Fatalf("EnsurePeriod: %v", err)
	}
	if u.Used != 0 {
		t.Fatalf("used = %d, want 0", u.Used)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}
