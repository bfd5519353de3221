package services

import (
	"strings"

	"budgetbeacon/internal/core"
)

// legacyRename maps an old expense category key to its current name.
type legacyRename struct {
	from string
	to   string
}

// legacyExpenseRenames lists the expense categories renamed since the first
// release. Matching on from is case-insensitive.
var legacyExpenseRenames = []legacyRename{
	{"rent", "Mortgage/Rent"},
	{"utilities", "Electric"},
	{"insurance", "Car Insurance"},
	{"debt payment", "Loans"},
	{"phone/internet", "Internet"},
}

// ReconcileCatalog builds a valid catalog from a persisted one.
//
// Rows without a name and case-insensitive duplicates are dropped, colors are
// normalized, and an empty list falls back to the defaults. Legacy expense
// names are then migrated: entries and rules are rewritten in place first,
// and the catalog row is renamed or merged into an existing row of the new
// name. Finally every default, every referenced category and both fallbacks
// are ensured and the lists are sorted by name.
func ReconcileCatalog(raw any, entries []core.Entry, rules []core.RecurringRule) core.Catalog {
	obj, _ := core.AsObject(raw)
	defaults := core.DefaultCatalog()

	var catalog core.Catalog
	for _, t := range core.EntryTypes() {
		list := normalizeCategoryList(t, core.AsArray(obj[string(t)]))
		if len(list) == 0 {
			fresh := defaults.Clone()
			list = fresh.List(t)
		}
		catalog.Set(t, list)
	}

	migrateLegacyCategories(&catalog, entries, rules)

	for _, t := range core.EntryTypes() {
		for _, def := range defaults.List(t) {
			catalog.Ensure(t, def.Name, def.Color)
		}
	}
	ensureReferenced(&catalog, entries, rules)
	catalog.Sort()
	return catalog
}

func normalizeCategoryList(t core.EntryType, raws []any) []core.Category {
	list := make([]core.Category, 0, len(raws))
	seen := make(map[string]bool, len(raws))
	for _, raw := range raws {
		obj, ok := core.AsObject(raw)
		if !ok {
			continue
		}
		name := strings.TrimSpace(core.Text(obj["name"]))
		key := strings.ToLower(name)
		if name == "" || seen[key] {
			continue
		}
		seen[key] = true

		id := strings.TrimSpace(core.Text(obj["id"]))
		if id == "" {
			id = core.NewCategoryID(t)
		}
		list = append(list, core.Category{
			ID:    id,
			Name:  name,
			Color: core.ColorFor(t, name, core.Text(obj["color"])),
		})
	}
	return list
}

func migrateLegacyCategories(catalog *core.Catalog, entries []core.Entry, rules []core.RecurringRule) {
	for _, m := range legacyExpenseRenames {
		relink(entries, rules, core.Expense, m.from, m.to)

		list := catalog.List(core.Expense)
		i := catalog.Find(core.Expense, m.from)
		if i < 0 {
			continue
		}
		if catalog.Has(core.Expense, m.to) {
			catalog.Set(core.Expense, append(list[:i:i], list[i+1:]...))
			continue
		}
		list[i].Name = m.to
	}
}

// relink points every entry and rule of type t categorized as from at to.
// It returns the number of records changed.
func relink(entries []core.Entry, rules []core.RecurringRule, t core.EntryType, from, to string) int {
	changed := 0
	for i := range entries {
		if entries[i].Type == t && strings.EqualFold(strings.TrimSpace(entries[i].Category), from) {
			entries[i].Category = to
			changed++
		}
	}
	for i := range rules {
		if rules[i].Type == t && strings.EqualFold(strings.TrimSpace(rules[i].Category), from) {
			rules[i].Category = to
			changed++
		}
	}
	return changed
}

// ensureReferenced adds every category used by an entry or rule, then both
// fallbacks. It reports whether the catalog changed.
func ensureReferenced(catalog *core.Catalog, entries []core.Entry, rules []core.RecurringRule) bool {
	changed := false
	for _, e := range entries {
		if catalog.Ensure(e.Type, e.Category, "") {
			changed = true
		}
	}
	for _, r := range rules {
		if catalog.Ensure(r.Type, r.Category, "") {
			changed = true
		}
	}
	for _, t := range core.EntryTypes() {
		if catalog.Ensure(t, t.FallbackCategory(), "") {
			changed = true
		}
	}
	return changed
}

// EnsureReferencedCategories restores the catalog guarantees after a mutation.
func EnsureReferencedCategories(state *core.State) {
	if ensureReferenced(&state.CategoryCatalog, state.Entries, state.RecurringRules) {
		state.CategoryCatalog.Sort()
	}
}

// AddCategory adds a category to the catalog of t.
func AddCategory(state *core.State, t core.EntryType, name, color string) (core.Category, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return core.Category{}, core.ErrBlankCategory
	}
	if state.CategoryCatalog.Has(t, name) {
		return core.Category{}, core.ErrCategoryExists
	}
	state.CategoryCatalog.Ensure(t, name, color)
	state.CategoryCatalog.Sort()
	return state.CategoryCatalog.List(t)[state.CategoryCatalog.Find(t, name)], nil
}

// RenameCategory renames a category of t and relinks every entry and rule
// that referenced it. On error nothing is changed.
func RenameCategory(state *core.State, t core.EntryType, oldName, newName string) (int, error) {
	newName = strings.TrimSpace(newName)
	if newName == "" {
		return 0, core.ErrBlankCategory
	}
	i := state.CategoryCatalog.Find(t, oldName)
	if i < 0 {
		return 0, core.ErrCategoryNotFound
	}
	list := state.CategoryCatalog.List(t)
	current := list[i].Name
	if strings.EqualFold(current, t.FallbackCategory()) {
		return 0, core.ErrFallbackCategory
	}
	if j := state.CategoryCatalog.Find(t, newName); j >= 0 && j != i {
		return 0, core.ErrCategoryExists
	}

	list[i].Name = newName
	relinked := relink(state.Entries, state.RecurringRules, t, current, newName)
	state.CategoryCatalog.Sort()
	return relinked, nil
}

// DeleteCategory removes a category of t after relinking its entries and
// rules to the fallback category. The fallback itself cannot be deleted.
func DeleteCategory(state *core.State, t core.EntryType, name string) (int, error) {
	i := state.CategoryCatalog.Find(t, name)
	if i < 0 {
		return 0, core.ErrCategoryNotFound
	}
	current := state.CategoryCatalog.List(t)[i].Name
	fallback := t.FallbackCategory()
	if strings.EqualFold(current, fallback) {
		return 0, core.ErrFallbackCategory
	}

	state.CategoryCatalog.Ensure(t, fallback, "")
	relinked := relink(state.Entries, state.RecurringRules, t, current, fallback)

	list := state.CategoryCatalog.List(t)
	i = state.CategoryCatalog.Find(t, current)
	state.CategoryCatalog.Set(t, append(list[:i:i], list[i+1:]...))
	state.CategoryCatalog.Sort()
	return relinked, nil
}
