package supply

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"

	"github.com/dukerupert/supplylist/internal/model"
)

// Mutations validate every argument before touching the aggregate, so a
// rejected call leaves s exactly as it was.

func findCategory(s *model.Store, id string) int {
	return slices.IndexFunc(s.Categories, func(c model.Category) bool { return c.ID == id })
}

func findItem(s *model.Store, id string) (ci, ii int, ok bool) {
	for c := range s.Categories {
		for i := range s.Categories[c].Items {
			if s.Categories[c].Items[i].ID == id {
				return c, i, true
			}
		}
	}
	return -1, -1, false
}

func requireName(kind, name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", fmt.Errorf("%w: %s name is required", ErrInvalidArgument, kind)
	}
	return name, nil
}

func categoryNotFound(id string) error {
	return fmt.Errorf("%w: category %q", ErrNotFound, id)
}

func itemNotFound(id string) error {
	return fmt.Errorf("%w: item %q", ErrNotFound, id)
}

// AddItem appends a new item, off the shopping list, to a category.
func AddItem(s *model.Store, id, categoryID, name, notes string) (model.Item, error) {
	name, err := requireName("item", name)
	if err != nil {
		return model.Item{}, err
	}
	ci := findCategory(s, categoryID)
	if ci < 0 {
		return model.Item{}, categoryNotFound(categoryID)
	}

	item := model.Item{
		ID:    id,
		Name:  name,
		Notes: strings.TrimSpace(notes),
	}
	s.Categories[ci].Items = append(s.Categories[ci].Items, item)
	return item, nil
}

// UpdateItem rewrites an item's name and notes and, when newCategoryID names
// a different category, moves it there. Shopping-list flags travel with the
// item. An empty newCategoryID keeps the current owner.
func UpdateItem(s *model.Store, itemID, name, notes, newCategoryID string) (model.Item, error) {
	name, err := requireName("item", name)
	if err != nil {
		return model.Item{}, err
	}
	ci, ii, ok := findItem(s, itemID)
	if !ok {
		return model.Item{}, itemNotFound(itemID)
	}
	target := ci
	if newCategoryID != "" {
		target = findCategory(s, newCategoryID)
		if target < 0 {
			return model.Item{}, categoryNotFound(newCategoryID)
		}
	}

	item := s.Categories[ci].Items[ii]
	item.Name = name
	item.Notes = strings.TrimSpace(notes)

	if target == ci {
		s.Categories[ci].Items[ii] = item
		return item, nil
	}
	s.Categories[ci].Items = slices.Delete(s.Categories[ci].Items, ii, ii+1)
	s.Categories[target].Items = append(s.Categories[target].Items, item)
	return item, nil
}

// DeleteItem removes an item from its category. It reports whether the item existed.
func DeleteItem(s *model.Store, itemID string) bool {
	ci, ii, ok := findItem(s, itemID)
	if !ok {
		return false
	}
	s.Categories[ci].Items = slices.Delete(s.Categories[ci].Items, ii, ii+1)
	return true
}

// ToggleOnShoppingList flips shopping-list membership. Leaving the list
// always clears checked.
func ToggleOnShoppingList(s *model.Store, itemID string) (model.Item, error) {
	ci, ii, ok := findItem(s, itemID)
	if !ok {
		return model.Item{}, itemNotFound(itemID)
	}
	item := &s.Categories[ci].Items[ii]
	item.IsOnShoppingList = !item.IsOnShoppingList
	if !item.IsOnShoppingList {
		item.Checked = false
	}
	return *item, nil
}

// ToggleChecked flips checked for an item on the shopping list. For an item
// not on the list it changes nothing and reports false.
func ToggleChecked(s *model.Store, itemID string) (model.Item, bool, error) {
	ci, ii, ok := findItem(s, itemID)
	if !ok {
		return model.Item{}, false, itemNotFound(itemID)
	}
	item := &s.Categories[ci].Items[ii]
	if !item.IsOnShoppingList {
		return *item, false, nil
	}
	item.Checked = !item.Checked
	return *item, true, nil
}

func RemoveFromShoppingList(s *model.Store, itemID string) (model.Item, error) {
	ci, ii, ok := findItem(s, itemID)
	if !ok {
		return model.Item{}, itemNotFound(itemID)
	}
	item := &s.Categories[ci].Items[ii]
	item.IsOnShoppingList = false
	item.Checked = false
	return *item, nil
}

// ClearShoppingList takes every item off the list and returns how many were on it.
func ClearShoppingList(s *model.Store) int {
	cleared := 0
	for ci := range s.Categories {
		for ii := range s.Categories[ci].Items {
			item := &s.Categories[ci].Items[ii]
			if item.IsOnShoppingList {
				cleared++
			}
			item.IsOnShoppingList = false
			item.Checked = false
		}
	}
	return cleared
}

// AddCategory appends a new, empty category. An empty color falls back to
// the first palette color.
func AddCategory(s *model.Store, id, name, color string, sortOrder int) (model.Category, error) {
	name, err := requireName("category", name)
	if err != nil {
		return model.Category{}, err
	}
	c := model.Category{
		ID:        id,
		Name:      name,
		Color:     colorOrDefault(color),
		SortOrder: sortOrder,
		Items:     []model.Item{},
	}
	s.Categories = append(s.Categories, c)
	return c, nil
}

func UpdateCategory(s *model.Store, categoryID, name, color string, sortOrder int) (model.Category, error) {
	name, err := requireName("category", name)
	if err != nil {
		return model.Category{}, err
	}
	ci := findCategory(s, categoryID)
	if ci < 0 {
		return model.Category{}, categoryNotFound(categoryID)
	}
	c := &s.Categories[ci]
	c.Name = name
	c.Color = colorOrDefault(color)
	c.SortOrder = sortOrder
	return *c, nil
}

// DeleteCategory removes a category together with all of its items. It
// returns the number of items removed and whether the category existed.
func DeleteCategory(s *model.Store, categoryID string) (int, bool) {
	ci := findCategory(s, categoryID)
	if ci < 0 {
		return 0, false
	}
	removed := len(s.Categories[ci].Items)
	s.Categories = slices.Delete(s.Categories, ci, ci+1)
	return removed, true
}

// DecodeImport validates and parses an exported document. Category IDs and
// item IDs must each be unique across the document.
func DecodeImport(raw []byte) (*model.Store, error) {
	s, err := decodeStore(raw)
	if err != nil {
		return nil, err
	}
	cats := make(map[string]struct{}, len(s.Categories))
	items := make(map[string]struct{})
	for _, c := range s.Categories {
		if _, dup := cats[c.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate category id %q", ErrInvalidFormat, c.ID)
		}
		cats[c.ID] = struct{}{}
		for _, it := range c.Items {
			if _, dup := items[it.ID]; dup {
				return nil, fmt.Errorf("%w: duplicate item id %q", ErrInvalidFormat, it.ID)
			}
			items[it.ID] = struct{}{}
		}
	}
	return s, nil
}

// ParseSortOrder reads a sort order the way a form field is read: leading
// digits with an optional sign. Anything unparsable, or zero, becomes 1.
// Values beyond the int range saturate.
func ParseSortOrder(raw string) int {
	raw = strings.TrimSpace(raw)
	end := 0
	if end < len(raw) && (raw[end] == '-' || raw[end] == '+') {
		end++
	}
	start := end
	for end < len(raw) && raw[end] >= '0' && raw[end] <= '9' {
		end++
	}
	if end == start {
		return 1
	}

	n, err := strconv.Atoi(raw[:end])
	if errors.Is(err, strconv.ErrRange) {
		if raw[0] == '-' {
			return math.MinInt
		}
		return math.MaxInt
	}
	if err != nil || n == 0 {
		return 1
	}
	return n
}

func colorOrDefault(color string) string {
	color = strings.TrimSpace(color)
	if color == "" {
		return model.DefaultColor()
	}
	return color
}
