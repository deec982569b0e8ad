package db

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

func TestIsDuplicateKeyErr(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "gorm", err: fmt.Errorf("insert: %w", gorm.ErrDuplicatedKey), want: true},
		{name: "pgconn", err: &pgconn.PgError{Code: "23505"}, want: true},
		{name: "sqlite", err: errors.New("UNIQUE constraint failed: credit_transactions.user_id"), want: true},
		{name: "mysql", err: errors.New("Error 1062: Duplicate entry"), want: true},
		{name: "other", err: errors.New("boom"), want: false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := IsDuplicateKeyErr(tc.err); got != tc.want {
				t.Fatalf("expected %v, got %v", tc.want, got)
			}
		})
	}
}

func TestIsSerializationFailure(t *testing.T) {
	if !IsSerializationFailure(&pgconn.PgError{Code: "40001"}) {
		t.Fatal("expected 40001 to be a serialization failure")
	}
	if !IsSerializationFailure(fmt.Errorf("wrapped: %w", &pgconn.PgError{Code: "40P01"})) {
		t.Fatal("expected wrapped deadlock to be a serialization failure")
	}
	if IsSerializationFailure(errors.New("boom")) {
		t.Fatal("expected plain error not to match")
	}
	if !IsLockTimeout(&pgconn.PgError{Code: "55P03"}) {
		t.Fatal("expected 55P03 to be a lock timeout")
	}
}
