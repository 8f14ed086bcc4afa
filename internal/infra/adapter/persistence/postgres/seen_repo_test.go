package postgres_test

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/go-cmp/cmp"
	"github.com/lib/pq"

	"manga-notify/internal/infra/adapter/persistence/postgres"
)

/* ──────────────────────────── 1. FilterUnseen ──────────────────────────── */

func TestSeenRepo_FilterUnseen_PreservesOrder(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer func() { _ = db.Close() }()

	mock.ExpectQuery(`FROM seen_items`).
		WithArgs(pq.Array([]int64{30, 10, 20, 40})).
		WillReturnRows(sqlmock.NewRows([]string{"item_id"}).
			AddRow(int64(10)).
			AddRow(int64(40)))

	repo := postgres.NewSeenRepo(db)
	got, err := repo.FilterUnseen(context.Background(), []int64{30, 10, 20, 40})
	if err != nil {
		t.Fatalf("FilterUnseen err=%v", err)
	}
	want := []int64{30, 20}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("mismatch (-want +got):\n%s", diff)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestSeenRepo_FilterUnseen_Empty(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer func() { _ = db.Close() }()

	repo := postgres.NewSeenRepo(db)
	got, err := repo.FilterUnseen(context.Background(), nil)
	if err != nil {
		t.Fatalf("FilterUnseen err=%v", err)
	}
	if len(got) != 0 {
		t.Errorf("got %v, want empty", got)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

/* ──────────────────────────── 2. MarkSeen ──────────────────────────── */

func TestSeenRepo_MarkSeen(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer func() { _ = db.Close() }()

	mock.ExpectExec(`ON CONFLICT \(item_id\) DO NOTHING`).
		WithArgs(pq.Array([]int64{1, 2}), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 2))

	repo := postgres.NewSeenRepo(db)
	if err := repo.MarkSeen(context.Background(), []int64{1, 2}); err != nil {
		t.Fatalf("MarkSeen err=%v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestSeenRepo_MarkSeen_Empty(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer func() { _ = db.Close() }()

	repo := postgres.NewSeenRepo(db)
	if err := repo.MarkSeen(context.Background(), nil); err != nil {
		t.Fatalf("MarkSeen err=%v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}
