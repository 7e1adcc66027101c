package supply

import (
	"log/slog"
	"sync"
	"time"

	"github.com/dukerupert/supplylist/internal/ident"
	"github.com/dukerupert/supplylist/internal/model"
)

// Notifier is told after every applied mutation so views can re-render.
type Notifier interface {
	StoreChanged(op string)
}

// Recorder observes mutation outcomes and save attempts.
type Recorder interface {
	ObserveMutation(op, result string)
	ObserveSave(err error)
}

// Mutation results passed to Recorder.ObserveMutation.
const (
	ResultApplied  = "applied"
	ResultRejected = "rejected"
	ResultNoop     = "noop"
)

type nopNotifier struct{}

func (nopNotifier) StoreChanged(string) {}

type nopRecorder struct{}

func (nopRecorder) ObserveMutation(string, string) {}
func (nopRecorder) ObserveSave(error)              {}

// Controller owns the aggregate. It runs one operation at a time, persists
// after every applied mutation and notifies listeners.
type Controller struct {
	mu       sync.Mutex
	state    *model.Store
	repo     *Repository
	newID    func() string
	notifier Notifier
	recorder Recorder
	logger   *slog.Logger
}

type Option func(*Controller)

// WithIDFunc replaces the identifier generator.
func WithIDFunc(fn func() string) Option {
	return func(c *Controller) { c.newID = fn }
}

func WithNotifier(n Notifier) Option {
	return func(c *Controller) { c.notifier = n }
}

func WithRecorder(r Recorder) Option {
	return func(c *Controller) { c.recorder = r }
}

// NewController loads the aggregate from repo and returns a controller over it.
func NewController(repo *Repository, logger *slog.Logger, opts ...Option) *Controller {
	c := &Controller{
		repo:     repo,
		newID:    ident.NewID,
		notifier: nopNotifier{},
		recorder: nopRecorder{},
		logger:   logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.state = repo.Load()
	return c
}

// reject records a failed validation. The aggregate was not touched.
func (c *Controller) reject(op string, err error) error {
	c.recorder.ObserveMutation(op, ResultRejected)
	c.logger.Debug("mutation rejected", "op", op, "error", err)
	return err
}

func (c *Controller) noop(op string) {
	c.recorder.ObserveMutation(op, ResultNoop)
}

// commit persists an applied mutation. A storage failure is returned but the
// in-memory change stays; the next successful save writes it out.
func (c *Controller) commit(op string, save func() error) error {
	c.recorder.ObserveMutation(op, ResultApplied)
	err := save()
	c.recorder.ObserveSave(err)
	if err != nil {
		c.logger.Error("save store", "op", op, "error", err)
	}
	c.notifier.StoreChanged(op)
	return err
}

func (c *Controller) save(op string) error {
	return c.commit(op, func() error { return c.repo.Save(c.state) })
}

func (c *Controller) AddItem(categoryID, name, notes string) (model.Item, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	item, err := AddItem(c.state, c.newID(), categoryID, name, notes)
	if err != nil {
		return model.Item{}, c.reject("add_item", err)
	}
	return item, c.save("add_item")
}

func (c *Controller) UpdateItem(itemID, name, notes, newCategoryID string) (model.Item, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	item, err := UpdateItem(c.state, itemID, name, notes, newCategoryID)
	if err != nil {
		return model.Item{}, c.reject("update_item", err)
	}
	return item, c.save("update_item")
}

// DeleteItem removes an item. A missing item is a successful no-op.
func (c *Controller) DeleteItem(itemID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !DeleteItem(c.state, itemID) {
		c.noop("delete_item")
		return nil
	}
	return c.save("delete_item")
}

func (c *Controller) ToggleOnShoppingList(itemID string) (model.Item, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	item, err := ToggleOnShoppingList(c.state, itemID)
	if err != nil {
		return model.Item{}, c.reject("toggle_on_list", err)
	}
	return item, c.save("toggle_on_list")
}

func (c *Controller) ToggleChecked(itemID string) (model.Item, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	item, changed, err := ToggleChecked(c.state, itemID)
	if err != nil {
		return model.Item{}, c.reject("toggle_checked", err)
	}
	if !changed {
		c.noop("toggle_checked")
		return item, nil
	}
	return item, c.save("toggle_checked")
}

func (c *Controller) RemoveFromShoppingList(itemID string) (model.Item, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	item, err := RemoveFromShoppingList(c.state, itemID)
	if err != nil {
		return model.Item{}, c.reject("remove_from_list", err)
	}
	return item, c.save("remove_from_list")
}

// ClearShoppingList takes every item off the list and returns how many were on it.
func (c *Controller) ClearShoppingList() (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := ClearShoppingList(c.state)
	return n, c.save("clear_list")
}

func (c *Controller) AddCategory(name, color string, sortOrder int) (model.Category, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	cat, err := AddCategory(c.state, c.newID(), name, color, sortOrder)
	if err != nil {
		return model.Category{}, c.reject("add_category", err)
	}
	return cat, c.save("add_category")
}

func (c *Controller) UpdateCategory(categoryID, name, color string, sortOrder int) (model.Category, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	cat, err := UpdateCategory(c.state, categoryID, name, color, sortOrder)
	if err != nil {
		return model.Category{}, c.reject("update_category", err)
	}
	cat.Items = append([]model.Item{}, cat.Items...)
	return cat, c.save("update_category")
}

// DeleteCategory removes a category and its items, returning how many items
// went with it. A missing category is a successful no-op.
func (c *Controller) DeleteCategory(categoryID string) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed, ok := DeleteCategory(c.state, categoryID)
	if !ok {
		c.noop("delete_category")
		return 0, nil
	}
	return removed, c.save("delete_category")
}

// Import replaces the whole aggregate with an exported document. An invalid
// document is rejected with ErrInvalidFormat and nothing changes.
func (c *Controller) Import(raw []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	next, err := DecodeImport(raw)
	if err != nil {
		return c.reject("import", err)
	}
	return c.commit("import", func() error { return c.repo.Replace(c.state, next) })
}

// ResetAll replaces the aggregate with an empty one.
func (c *Controller) ResetAll() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.commit("reset", func() error { return c.repo.Replace(c.state, model.NewStore(time.Now())) })
}

func (c *Controller) ShoppingList() []model.CategoryGroup {
	c.mu.Lock()
	defer c.mu.Unlock()
	return ShoppingListView(c.state)
}

func (c *Controller) AllItems(query string) []model.CategoryGroup {
	c.mu.Lock()
	defer c.mu.Unlock()
	return AllItemsView(c.state, query)
}

func (c *Controller) Categories() []model.CategorySummary {
	c.mu.Lock()
	defer c.mu.Unlock()
	return CategoriesView(c.state)
}

func (c *Controller) Summary() model.Summary {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Summary(c.state)
}

func (c *Controller) SuggestCategory(itemName string) (model.CategoryHeader, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return SuggestCategory(c.state, itemName)
}

// Snapshot returns a deep copy of the current aggregate.
func (c *Controller) Snapshot() *model.Store {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.Clone()
}
