package pagination

import (
	"errors"
	"testing"
)

func TestCursorRoundTrip(t *testing.T) {
	token, err := EncodeCursor(Cursor{ID: "42", CreatedAt: "2025-01-01T00:00:00Z"})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	cursor, err := DecodeCursor(token)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if cursor.ID != "42" || cursor.CreatedAt != "2025-01-01T00:00:00Z" {
		t.Fatalf("unexpected cursor %+v", cursor)
	}
}

func TestDecodeCursorRejectsGarbage(t *testing.T) {
	if _, err := DecodeCursor("%%%"); !errors.Is(err, ErrInvalidPageToken) {
		t.Fatalf("expected ErrInvalidPageToken, got %v", err)
	}
}

func TestBuildCursorPageInfo(t *testing.T) {
	items := []int{1, 2, 3}
	page, info, err := BuildCursorPageInfo(items, 2, func(v int) Cursor {
		return Cursor{ID: string(rune('0' + v))}
	})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if len(page) != 2 || !info.HasMore || info.NextPageToken == "" {
		t.Fatalf("unexpected page %v info %+v", page, info)
	}

	page, info, err = BuildCursorPageInfo(items, 5, func(v int) Cursor { return Cursor{} })
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if len(page) != 3 || info.HasMore {
		t.Fatalf("expected full last page, got %v %+v", page, info)
	}
}
