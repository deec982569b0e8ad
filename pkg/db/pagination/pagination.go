package pagination

import (
	"encoding/base64"
	"encoding/json"
	"errors"
)

var ErrInvalidPageToken = errors.New("invalid_page_token")

type Pagination struct {
	PageToken string `form:"page_token"`
	PageSize  int    `form:"page_size,default=50" binding:"gte=1,lte=250"`
}

type Cursor struct {
	ID        string `json:"id,omitempty"`
	CreatedAt string `json:"created_at,omitempty"`
}

type PageInfo struct {
	NextPageToken string `json:"next_page_token"`
	HasMore       bool   `json:"has_more"`
}

func EncodeCursor(data Cursor) (string, error) {
	b, err := json.Marshal(data)
	if err != nil {
		return "", err
	}

	return base64.RawURLEncoding.EncodeToString(b), nil
}

func DecodeCursor(data string) (*Cursor, error) {
	b, err := base64.RawURLEncoding.DecodeString(data)
	if err != nil {
		return nil, ErrInvalidPageToken
	}

	var cursor Cursor
	if err := json.Unmarshal(b, &cursor); err != nil {
		return nil, ErrInvalidPageToken
	}

	return &cursor, nil
}

// BuildCursorPageInfo trims a limit+1 result set and derives the next page token.
func BuildCursorPageInfo[T any](data []T, limit int, extractCursor func(T) Cursor) ([]T, PageInfo, error) {
	if len(data) <= limit || limit <= 0 {
		return data, PageInfo{HasMore: false}, nil
	}

	data = data[:limit]
	token, err := EncodeCursor(extractCursor(data[len(data)-1]))
	if err != nil {
		return nil, PageInfo{}, err
	}
	return data, PageInfo{HasMore: true, NextPageToken: token}, nil
}
