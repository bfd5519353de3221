package core

import (
	"fmt"
	"sort"
	"strings"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

var (
	DefaultExpenseCategories = []string{
		"Groceries", "Mortgage/Rent", "Water", "Gas", "Electric", "Transportation",
		"Dining", "Entertainment", "Healthcare", "Car Insurance", "Credit Cards",
		"Loans", "Student Loans", "Childcare", "Education", "Internet", "Cellphone",
		"Shopping", "Personal Care", "Travel", "Gifts", "Taxes", FallbackExpenseCategory,
	}

	DefaultIncomeCategories = []string{
		"Salary", "Freelance", "Business", "Interest", "Dividends", "Rental Income",
		"Refund", "Gift", FallbackIncomeCategory,
	}

	expensePalette = []string{"#246aaf", "#ad4e3b", "#2e8f6b", "#7557a8", "#b07723", "#1f7e91", "#5b5d90", "#97754e"}
	incomePalette  = []string{"#2a8f6d", "#4f7fc2", "#7b64bf", "#3f9c96", "#a67d2a", "#6a8d3b"}
)

type (
	Category struct {
		ID    string `json:"id"`
		Name  string `json:"name"`
		Color string `json:"color"`
	}

	Catalog struct {
		Expense []Category `json:"expense"`
		Income  []Category `json:"income"`
	}
)

// DefaultCategories returns the built-in names for t.
func DefaultCategories(t EntryType) []string {
	if t == Income {
		return DefaultIncomeCategories
	}
	return DefaultExpenseCategories
}

func palette(t EntryType) []string {
	if t == Income {
		return incomePalette
	}
	return expensePalette
}

// DefaultCatalog builds the seeded catalog with ids "<type>_<n>".
func DefaultCatalog() Catalog {
	var c Catalog
	for _, t := range EntryTypes() {
		names := DefaultCategories(t)
		colors := palette(t)
		list := make([]Category, len(names))
		for i, name := range names {
			list[i] = Category{
				ID:    fmt.Sprintf("%s_%d", t, i+1),
				Name:  name,
				Color: colors[i%len(colors)],
			}
		}
		c.Set(t, list)
	}
	c.Sort()
	return c
}

// NormalizeColor lowercases a "#rrggbb" value. Anything else is rejected.
func NormalizeColor(v string) (string, bool) {
	v = strings.ToLower(strings.TrimSpace(v))
	if len(v) != 7 || v[0] != '#' {
		return "", false
	}
	for _, r := range v[1:] {
		if !strings.ContainsRune("0123456789abcdef", r) {
			return "", false
		}
	}
	return v, true
}

// FallbackColor picks a palette color from the name, so equal names always
// get equal colors.
func FallbackColor(t EntryType, name string) string {
	colors := palette(t)
	if name == "" {
		name = "x"
	}
	sum := 0
	for _, r := range name {
		sum += int(r)
	}
	return colors[sum%len(colors)]
}

// ColorFor returns the normalized preferred color or the name's fallback.
func ColorFor(t EntryType, name, preferred string) string {
	if c, ok := NormalizeColor(preferred); ok {
		return c
	}
	return FallbackColor(t, name)
}

func (c *Catalog) List(t EntryType) []Category {
	if t == Income {
		return c.Income
	}
	return c.Expense
}

func (c *Catalog) Set(t EntryType, list []Category) {
	if t == Income {
		c.Income = list
		return
	}
	c.Expense = list
}

// Find returns the index of the category named name (case-insensitive), or -1.
func (c *Catalog) Find(t EntryType, name string) int {
	name = strings.TrimSpace(name)
	for i, cat := range c.List(t) {
		if strings.EqualFold(strings.TrimSpace(cat.Name), name) {
			return i
		}
	}
	return -1
}

// FindByID returns the index of the category with id, or -1.
func (c *Catalog) FindByID(t EntryType, id string) int {
	for i, cat := range c.List(t) {
		if cat.ID == id {
			return i
		}
	}
	return -1
}

func (c *Catalog) Has(t EntryType, name string) bool {
	return c.Find(t, name) >= 0
}

// Ensure adds name to the catalog of t unless present and reports whether it did.
func (c *Catalog) Ensure(t EntryType, name, preferredColor string) bool {
	name = strings.TrimSpace(name)
	if name == "" || c.Has(t, name) {
		return false
	}
	c.Set(t, append(c.List(t), Category{
		ID:    NewCategoryID(t),
		Name:  name,
		Color: ColorFor(t, name, preferredColor),
	}))
	return true
}

// Sort orders both lists by name using English collation.
func (c *Catalog) Sort() {
	// collators keep internal buffers, one per call
	col := collate.New(language.English)
	for _, t := range EntryTypes() {
		list := c.List(t)
		sort.SliceStable(list, func(i, j int) bool {
			return col.CompareString(list[i].Name, list[j].Name) < 0
		})
	}
}

func (c Catalog) Clone() Catalog {
	return Catalog{
		Expense: append([]Category{}, c.Expense...),
		Income:  append([]Category{}, c.Income...),
	}
}

// Names returns the category names of t in catalog order.
func (c *Catalog) Names(t EntryType) []string {
	list := c.List(t)
	names := make([]string, len(list))
	for i, cat := range list {
		names[i] = cat.Name
	}
	return names
}
