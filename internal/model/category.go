package model

// Category groups items within a guild.
type Category struct {
	ID            int64   `json:"id"`
	GuildID       int64   `json:"guild_id"`
	Name          string  `json:"name"`
	Active        bool    `json:"active"`
	SortOrder     int     `json:"sort_order"`
	CreatedAt     string  `json:"created_at"`
	UpdatedAt     string  `json:"updated_at"`
	DeactivatedAt *string `json:"deactivated_at,omitempty"`
}

// FallbackCategoryName is the protected category that orphaned items move to.
const FallbackCategoryName = "Other"

// FallbackSortOrder keeps the fallback category last.
const FallbackSortOrder = 999

// DefaultCategory is seeded on first guild initialization.
type DefaultCategory struct {
	Name      string
	SortOrder int
}

// DefaultCategories is the seed set, fallback included.
var DefaultCategories = []DefaultCategory{
	{"Powders", 10},
	{"Covered Medicine", 20},
	{"Stick Packs", 30},
	{"Tonics", 40},
	{FallbackCategoryName, FallbackSortOrder},
}

// IsFallback reports whether the category is the protected fallback.
func (c *Category) IsFallback() bool {
	return c.Name == FallbackCategoryName
}

// CategoryUpsert is the outcome of creating or reactivating a category.
type CategoryUpsert struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Reactivated bool   `json:"reactivated"`
	Created     bool   `json:"created"`
}

// CategoryDeactivation is the outcome of deactivating a category.
type CategoryDeactivation struct {
	CategoryID int64  `json:"category_id"`
	Name       string `json:"name"`
	Already    bool   `json:"already"`
	Moved      int    `json:"moved"`
}
