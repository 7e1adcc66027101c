package supply

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukerupert/supplylist/internal/model"
)

// SlotKey is the durable storage slot holding the serialized aggregate.
const SlotKey = "supplyListData"

// Slots is the durable key-value storage the repository reads and writes.
type Slots interface {
	Get(key string) (string, bool, error)
	Put(key, value string) error
}

// Repository loads and persists the aggregate as one JSON document.
type Repository struct {
	slots  Slots
	key    string
	logger *slog.Logger
	now    func() time.Time
}

func NewRepository(slots Slots, logger *slog.Logger) *Repository {
	return &Repository{
		slots:  slots,
		key:    SlotKey,
		logger: logger,
		now:    time.Now,
	}
}

// Load reads the aggregate from storage. A missing, unreadable or corrupt slot
// yields a fresh empty aggregate; the cause is logged and not returned.
func (r *Repository) Load() *model.Store {
	raw, ok, err := r.slots.Get(r.key)
	if err != nil {
		r.logger.Warn("read store slot, starting empty", "key", r.key, "error", err)
		return model.NewStore(r.now())
	}
	if !ok {
		return model.NewStore(r.now())
	}

	s, err := decodeStore([]byte(raw))
	if err != nil {
		r.logger.Warn("decode store slot, starting empty", "key", r.key, "error", err)
		return model.NewStore(r.now())
	}
	return s
}

// Save stamps LastModified and writes the whole aggregate. Failures wrap
// ErrStorage; s keeps its in-memory contents either way.
func (r *Repository) Save(s *model.Store) error {
	s.Normalize()
	s.LastModified = model.NewTimestamp(r.now())

	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("%w: marshal store: %w", ErrStorage, err)
	}
	if err := r.slots.Put(r.key, string(data)); err != nil {
		return fmt.Errorf("%w: %w", ErrStorage, err)
	}
	return nil
}

// Replace substitutes next for the contents of current and saves the result.
func (r *Repository) Replace(current, next *model.Store) error {
	*current = *next
	return r.Save(current)
}

// decodeStore parses a stored or imported document. The top level must be an
// object whose "categories" field is a list.
func decodeStore(data []byte) (*model.Store, error) {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(data, &top); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFormat, err)
	}
	cats, ok := top["categories"]
	if !ok || !isList(cats) {
		return nil, fmt.Errorf("%w: categories must be a list", ErrInvalidFormat)
	}

	var s model.Store
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFormat, err)
	}
	s.Normalize()
	return &s, nil
}

func isList(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) > 0 && raw[0] == '['
}
