package supply

import (
	"cmp"
	"slices"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/dukerupert/supplylist/internal/grocery"
	"github.com/dukerupert/supplylist/internal/model"
)

// orderedCategories returns pointers to s's categories ordered by SortOrder.
// Ties keep storage order.
func orderedCategories(s *model.Store) []*model.Category {
	cats := make([]*model.Category, len(s.Categories))
	for i := range s.Categories {
		cats[i] = &s.Categories[i]
	}
	slices.SortStableFunc(cats, func(a, b *model.Category) int {
		return cmp.Compare(a.SortOrder, b.SortOrder)
	})
	return cats
}

// ShoppingListView groups the items on the shopping list by category.
// Categories without listed items are left out; items keep storage order.
func ShoppingListView(s *model.Store) []model.CategoryGroup {
	groups := []model.CategoryGroup{}
	for _, c := range orderedCategories(s) {
		var items []model.Item
		checked := 0
		for _, item := range c.Items {
			if !item.IsOnShoppingList {
				continue
			}
			items = append(items, item)
			if item.Checked {
				checked++
			}
		}
		if len(items) == 0 {
			continue
		}
		groups = append(groups, model.CategoryGroup{
			Category:     c.Header(),
			Items:        items,
			CheckedCount: checked,
			OnListCount:  len(items),
		})
	}
	return groups
}

// AllItemsView lists every category with the items whose name or notes
// contain query, compared case-insensitively. Items are sorted by name. With
// an empty query, categories without items are still returned; otherwise
// categories with no match are dropped.
func AllItemsView(s *model.Store, query string) []model.CategoryGroup {
	fold := cases.Fold()
	needle := fold.String(query)
	col := collate.New(language.English, collate.IgnoreCase)

	groups := []model.CategoryGroup{}
	for _, c := range orderedCategories(s) {
		items := make([]model.Item, 0, len(c.Items))
		for _, item := range c.Items {
			if needle == "" ||
				strings.Contains(fold.String(item.Name), needle) ||
				strings.Contains(fold.String(item.Notes), needle) {
				items = append(items, item)
			}
		}
		if query != "" && len(items) == 0 {
			continue
		}

		slices.SortStableFunc(items, func(a, b model.Item) int {
			return col.CompareString(a.Name, b.Name)
		})

		onList := 0
		for _, item := range items {
			if item.IsOnShoppingList {
				onList++
			}
		}
		groups = append(groups, model.CategoryGroup{
			Category:    c.Header(),
			Items:       items,
			OnListCount: onList,
		})
	}
	return groups
}

func CategoriesView(s *model.Store) []model.CategorySummary {
	out := []model.CategorySummary{}
	for _, c := range orderedCategories(s) {
		out = append(out, model.CategorySummary{
			CategoryHeader: c.Header(),
			ItemCount:      len(c.Items),
		})
	}
	return out
}

func Summary(s *model.Store) model.Summary {
	sum := model.Summary{
		CategoryCount: len(s.Categories),
		LastModified:  s.LastModified,
	}
	for _, c := range s.Categories {
		sum.TotalItemCount += len(c.Items)
		for _, item := range c.Items {
			if item.IsOnShoppingList {
				sum.ShoppingListItemCount++
			}
		}
	}
	return sum
}

// SuggestCategory picks the existing category whose name matches the aisle
// grocery.Categorize assigns to itemName.
func SuggestCategory(s *model.Store, itemName string) (model.CategoryHeader, bool) {
	aisle := grocery.Categorize(itemName)
	for _, c := range orderedCategories(s) {
		if strings.EqualFold(strings.TrimSpace(c.Name), aisle) {
			return c.Header(), true
		}
	}
	return model.CategoryHeader{}, false
}
