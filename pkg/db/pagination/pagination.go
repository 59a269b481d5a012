package pagination

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"
)

var ErrInvalidPageToken = errors.New("invalid_page_token")

type Pagination struct {
	PageToken string `form:"page_token"`
	PageSize  int    `form:"page_size"`
}

// Cursor marks the last row of a page. Key is the ordering column rendered as text.
type Cursor struct {
	ID  string `json:"id,omitempty"`
	Key string `json:"key,omitempty"`
}

type PageInfo struct {
	NextPageToken string `json:"next_page_token,omitempty"`
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
	data = strings.TrimSpace(data)
	if data == "" {
		return nil, nil
	}
	b, err := base64.RawURLEncoding.DecodeString(data)
	if err != nil {
		return nil, ErrInvalidPageToken
	}

	var cursor Cursor
	if err := json.Unmarshal(b, &cursor); err != nil {
		return nil, ErrInvalidPageToken
	}
	if cursor.ID == "" {
		return nil, ErrInvalidPageToken
	}
	return &cursor, nil
}

// NormalizePageSize clamps size into [1, 250], substituting def when size is unset.
func NormalizePageSize(size, def int) int {
	if size <= 0 {
		size = def
	}
	if size <= 0 {
		size = 1
	}
	if size > 250 {
		size = 250
	}
	return size
}

// Trim cuts a limit+1 result set down to limit and builds the page info from the last kept row.
func Trim[T any](data []T, limit int, extractCursor func(T) Cursor) ([]T, PageInfo, error) {
	if len(data) <= limit {
		return data, PageInfo{HasMore: false}, nil
	}

	data = data[:limit]
	token, err := EncodeCursor(extractCursor(data[len(data)-1]))
	if err != nil {
		return nil, PageInfo{}, err
	}
	return data, PageInfo{HasMore: true, NextPageToken: token}, nil
}
