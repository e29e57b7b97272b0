package model

// Action is the kind of a ledger row.
type Action string

// Stock actions change quantity.
const (
	ActionIn     Action = "IN"
	ActionOut    Action = "OUT"
	ActionAdjust Action = "ADJUST"
)

// Event actions record zero-delta system events.
const (
	ActionItemCreate         Action = "ITEM_CREATE"
	ActionItemUpdate         Action = "ITEM_UPDATE"
	ActionItemDeactivate     Action = "ITEM_DEACTIVATE"
	ActionItemImageSet       Action = "ITEM_IMAGE_SET"
	ActionCategoryCreate     Action = "CATEGORY_CREATE"
	ActionCategoryDeactivate Action = "CATEGORY_DEACTIVATE"
	ActionCategoryReassign   Action = "CATEGORY_REASSIGN"
	ActionUpdateSettings     Action = "UPDATE_SETTINGS"
	ActionBackup             Action = "BACKUP"
	ActionReport             Action = "REPORT"
)

// IsStock reports whether the action changes quantity.
func (a Action) IsStock() bool {
	return a == ActionIn || a == ActionOut || a == ActionAdjust
}

// Actor identifies who performed an action.
type Actor struct {
	Name string `json:"name"`
	ID   int64  `json:"id"`
}

// NullableID returns nil for the zero id so it is stored as NULL.
func (a Actor) NullableID() *int64 {
	if a.ID == 0 {
		return nil
	}
	id := a.ID
	return &id
}

// SystemActor is used for rows written by scheduled jobs.
var SystemActor = Actor{Name: "system"}

// Movement is one append-only ledger row.
type Movement struct {
	ID                   int64  `json:"id"`
	GuildID              int64  `json:"guild_id"`
	ItemID               *int64 `json:"item_id,omitempty"`
	ItemNameSnapshot     string `json:"item_name"`
	ItemCodeSnapshot     string `json:"item_code,omitempty"`
	CategoryNameSnapshot string `json:"category_name"`
	ImageURL             string `json:"image_url,omitempty"`
	Action               Action `json:"action"`
	QtyChange            int    `json:"qty_change"`
	BeforeQty            *int   `json:"before_qty,omitempty"`
	AfterQty             *int   `json:"after_qty,omitempty"`
	Reason               string `json:"reason,omitempty"`
	Success              bool   `json:"success"`
	ErrorMessage         string `json:"error_message,omitempty"`
	ActorName            string `json:"actor_name"`
	ActorID              *int64 `json:"actor_id,omitempty"`
	CreatedAtText        string `json:"created_at"`
	CreatedAtEpoch       int64  `json:"created_at_epoch"`
}

// MovementResult is returned by a successful stock change.
type MovementResult struct {
	MovementID     int64  `json:"movement_id"`
	ItemID         int64  `json:"item_id"`
	ItemName       string `json:"item_name"`
	ItemCode       string `json:"item_code,omitempty"`
	CategoryName   string `json:"category_name"`
	Action         Action `json:"action"`
	Before         int    `json:"before"`
	After          int    `json:"after"`
	Delta          int    `json:"delta"`
	WarnBelow      int    `json:"warn_below"`
	CreatedAtText  string `json:"created_at"`
	CreatedAtEpoch int64  `json:"created_at_epoch"`
}
