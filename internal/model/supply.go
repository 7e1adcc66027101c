package model

import (
	"bytes"
	"encoding/json"
	"time"
)

// CurrentVersion is the schema version tag written with every stored aggregate.
const CurrentVersion = "2.0"

// Palette is the fixed set of category colors offered to users.
var Palette = []string{
	"#ef4444", "#f97316", "#f59e0b", "#eab308",
	"#84cc16", "#22c55e", "#14b8a6", "#06b6d4",
	"#3b82f6", "#6366f1", "#8b5cf6", "#ec4899",
}

// DefaultColor is used when a category is saved without a color.
func DefaultColor() string {
	return Palette[0]
}

type Item struct {
	ID               string `json:"id"`
	Name             string `json:"name"`
	Notes            string `json:"notes"`
	IsOnShoppingList bool   `json:"isOnShoppingList"`
	Checked          bool   `json:"checked"`
}

type Category struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Color     string `json:"color"`
	SortOrder int    `json:"sortOrder"`
	Items     []Item `json:"items"`
}

// Store is the root aggregate persisted as a single unit.
type Store struct {
	Version      string     `json:"version"`
	Categories   []Category `json:"categories"`
	LastModified Timestamp  `json:"lastModified"`
}

// NewStore returns an empty aggregate stamped with now.
func NewStore(now time.Time) *Store {
	return &Store{
		Version:      CurrentVersion,
		Categories:   []Category{},
		LastModified: NewTimestamp(now),
	}
}

// Normalize replaces nil collections with empty ones so the aggregate always
// serializes with "categories": [] and "items": []. It also clears Checked on
// items that are not on the shopping list.
func (s *Store) Normalize() {
	if s.Version == "" {
		s.Version = CurrentVersion
	}
	if s.Categories == nil {
		s.Categories = []Category{}
	}
	for i := range s.Categories {
		if s.Categories[i].Items == nil {
			s.Categories[i].Items = []Item{}
		}
		for j := range s.Categories[i].Items {
			item := &s.Categories[i].Items[j]
			if !item.IsOnShoppingList {
				item.Checked = false
			}
		}
	}
}

// Clone returns a deep copy of the aggregate.
func (s *Store) Clone() *Store {
	out := &Store{
		Version:      s.Version,
		Categories:   make([]Category, len(s.Categories)),
		LastModified: s.LastModified,
	}
	for i, c := range s.Categories {
		c.Items = append([]Item{}, c.Items...)
		out.Categories[i] = c
	}
	return out
}

const timestampLayout = "2006-01-02T15:04:05.000Z"

// Timestamp is an ISO-8601 UTC instant with millisecond precision, the format
// browsers produce with Date.toISOString. Unparsable values decode to the zero
// time instead of failing.
type Timestamp struct {
	time.Time
}

func NewTimestamp(t time.Time) Timestamp {
	return Timestamp{Time: t.UTC().Truncate(time.Millisecond)}
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.UTC().Format(timestampLayout))
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	t.Time = time.Time{}
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return nil
	}
	parsed, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return nil
	}
	*t = NewTimestamp(parsed)
	return nil
}

// CategoryHeader is a category without its items, used in derived views.
type CategoryHeader struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Color     string `json:"color"`
	SortOrder int    `json:"sortOrder"`
}

func (c Category) Header() CategoryHeader {
	return CategoryHeader{ID: c.ID, Name: c.Name, Color: c.Color, SortOrder: c.SortOrder}
}

// CategoryGroup is one category section of the shopping list or item listing.
type CategoryGroup struct {
	Category     CategoryHeader `json:"category"`
	Items        []Item         `json:"items"`
	CheckedCount int            `json:"checkedCount"`
	OnListCount  int            `json:"onListCount"`
}

type CategorySummary struct {
	CategoryHeader
	ItemCount int `json:"itemCount"`
}

type Summary struct {
	CategoryCount         int       `json:"categoryCount"`
	TotalItemCount        int       `json:"totalItemCount"`
	ShoppingListItemCount int       `json:"shoppingListItemCount"`
	LastModified          Timestamp `json:"lastModified"`
}
