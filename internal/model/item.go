package model

// Item is a stock-keeping unit tracked by quantity.
type Item struct {
	ID                int64   `json:"id"`
	GuildID           int64   `json:"guild_id"`
	CategoryID        *int64  `json:"category_id,omitempty"`
	CategoryName      string  `json:"category_name"`
	Name              string  `json:"name"`
	Code              string  `json:"code,omitempty"`
	Quantity          int     `json:"qty"`
	WarnBelow         int     `json:"warn_below"`
	Note              string  `json:"note,omitempty"`
	StorageLocation   string  `json:"storage_location,omitempty"`
	ImageURL          string  `json:"image_url,omitempty"`
	Active            bool    `json:"active"`
	CreatedAt         string  `json:"created_at"`
	UpdatedAt         string  `json:"updated_at"`
	DeactivatedAt     *string `json:"deactivated_at,omitempty"`
	DeactivatedReason string  `json:"deactivated_reason,omitempty"`
}

// LowStock reports whether the quantity is at or under the threshold.
func (i *Item) LowStock() bool {
	return i.Quantity <= i.WarnBelow
}

// ItemSnapshot is the point-in-time identity copied into ledger rows.
type ItemSnapshot struct {
	ItemID       int64
	Name         string
	Code         string
	CategoryName string
	ImageURL     string
	Quantity     int
	WarnBelow    int
	Active       bool
}

// NewItem holds the fields accepted when creating an item.
type NewItem struct {
	CategoryID      int64
	Name            string
	Code            string
	WarnBelow       int
	Note            string
	StorageLocation string
}

// ItemUpdate holds editable item fields. Nil fields are left unchanged.
type ItemUpdate struct {
	CategoryID      *int64
	Name            *string
	Code            *string
	WarnBelow       *int
	Note            *string
	StorageLocation *string
}

// ItemsPageSize is the page size for listing items by category.
const ItemsPageSize = 12

// SearchLimit is the default number of search results.
const SearchLimit = 20
