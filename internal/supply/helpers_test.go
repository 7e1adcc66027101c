package supply

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/dukerupert/supplylist/internal/model"
)

var fixedNow = time.Date(2026, 10, 19, 9, 30, 0, 123_000_000, time.UTC)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// memSlots is an in-memory Slots with switchable failures.
type memSlots struct {
	mu     sync.Mutex
	data   map[string]string
	getErr error
	putErr error
	puts   int
}

func newMemSlots() *memSlots {
	return &memSlots{data: make(map[string]string)}
}

func (m *memSlots) Get(key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return "", false, m.getErr
	}
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *memSlots) Put(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.putErr != nil {
		return m.putErr
	}
	m.puts++
	m.data[key] = value
	return nil
}

var errQuotaExceeded = errors.New("quota exceeded")

func newTestRepo(slots Slots) *Repository {
	r := NewRepository(slots, discardLogger())
	r.now = func() time.Time { return fixedNow }
	return r
}

// sequentialIDs returns an ID func producing id-1, id-2, ...
func sequentialIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("id-%d", n)
	}
}

func newTestController(t *testing.T, slots Slots, opts ...Option) *Controller {
	t.Helper()
	opts = append([]Option{WithIDFunc(sequentialIDs())}, opts...)
	return NewController(newTestRepo(slots), discardLogger(), opts...)
}

// sampleStore builds two categories with a few items, out of sort order.
func sampleStore() *model.Store {
	s := model.NewStore(fixedNow)
	s.Categories = []model.Category{
		{ID: "c-dairy", Name: "Dairy", Color: "#3b82f6", SortOrder: 2, Items: []model.Item{
			{ID: "i-milk", Name: "Milk", Notes: "2%", IsOnShoppingList: true, Checked: true},
			{ID: "i-butter", Name: "butter", Notes: "unsalted"},
			{ID: "i-cheese", Name: "Cheese", Notes: "", IsOnShoppingList: true},
		}},
		{ID: "c-produce", Name: "Produce", Color: "#22c55e", SortOrder: 1, Items: []model.Item{
			{ID: "i-apples", Name: "Apples", Notes: "honeycrisp", IsOnShoppingList: true},
			{ID: "i-kale", Name: "Kale", Notes: "for smoothies"},
		}},
		{ID: "c-empty", Name: "Household", Color: "#ef4444", SortOrder: 3, Items: []model.Item{}},
	}
	return s
}

func itemCount(s *model.Store) int {
	n := 0
	for _, c := range s.Categories {
		n += len(c.Items)
	}
	return n
}

func checkInvariants(t *testing.T, s *model.Store) {
	t.Helper()
	seen := make(map[string]string)
	for _, c := range s.Categories {
		for _, item := range c.Items {
			if item.Checked && !item.IsOnShoppingList {
				t.Errorf("item %q checked but not on shopping list", item.ID)
			}
			if owner, dup := seen[item.ID]; dup {
				t.Errorf("item %q owned by both %q and %q", item.ID, owner, c.ID)
			}
			seen[item.ID] = c.ID
		}
	}
}
