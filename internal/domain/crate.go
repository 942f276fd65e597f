package domain

import (
	"strings"
	"time"
)

// Rarity is the outcome tier of a crate content item.
type Rarity string

const (
	RarityCommon    Rarity = "common"
	RarityRare      Rarity = "rare"
	RarityEpic      Rarity = "epic"
	RarityLegendary Rarity = "legendary"
)

// rarityRank orders rarities for display, best first.
var rarityRank = map[Rarity]int{
	RarityLegendary: 1,
	RarityEpic:      2,
	RarityRare:      3,
	RarityCommon:    4,
}

// ParseRarity normalizes s into a known Rarity.
func ParseRarity(s string) (Rarity, bool) {
	r := Rarity(strings.ToLower(strings.TrimSpace(s)))
	_, ok := rarityRank[r]
	return r, ok
}

// DisplayRank returns the sort rank used by catalog listings (legendary first).
// Unknown rarities sort last.
func (r Rarity) DisplayRank() int {
	if n, ok := rarityRank[r]; ok {
		return n
	}
	return len(rarityRank) + 1
}

// CrateDefinition configures a crate: which store item it is sold as and the
// per-crate pity thresholds. RareThreshold <= LegendaryThreshold is expected
// but not enforced.
type CrateDefinition struct {
	ID                 int64     `json:"id"                  gorm:"primaryKey;autoIncrement"`
	ItemID             int64     `json:"item_id"             gorm:"not null;uniqueIndex:ux_crate_definitions_item"`
	Name               string    `json:"name"                gorm:"type:varchar(100);not null"`
	Description        string    `json:"description"         gorm:"type:text;not null;default:''"`
	RareThreshold      int       `json:"rare_threshold"      gorm:"not null;check:rare_threshold >= 1"`
	LegendaryThreshold int       `json:"legendary_threshold" gorm:"not null;check:legendary_threshold >= 1"`
	CreatedAt          time.Time `json:"-"`
	UpdatedAt          time.Time `json:"-"`

	Item StoreItem `json:"-" gorm:"foreignKey:ItemID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT"`
}

// TableName returns the database table name for CrateDefinition.
func (CrateDefinition) TableName() string { return "crate_definitions" }

// CrateContent is one possible outcome of a crate. Catalog order is ID order.
type CrateContent struct {
	ID          int64     `json:"id"          gorm:"primaryKey;autoIncrement"`
	CrateID     int64     `json:"crate_id"    gorm:"not null;index:idx_crate_contents_active,priority:1;uniqueIndex:ux_crate_contents_goods,priority:1"`
	GoodsNo     int64     `json:"goods_no"    gorm:"not null;uniqueIndex:ux_crate_contents_goods,priority:2"`
	Name        string    `json:"name"        gorm:"type:varchar(100);not null"`
	Description string    `json:"description" gorm:"type:text;not null;default:''"`
	Rarity      Rarity    `json:"rarity"      gorm:"type:varchar(20);not null;check:rarity IN ('common','rare','epic','legendary')"`
	DropWeight  int       `json:"drop_weight" gorm:"not null;check:drop_weight > 0"`
	IsActive    bool      `json:"is_active"   gorm:"not null;default:true;index:idx_crate_contents_active,priority:2"`
	CreatedAt   time.Time `json:"-"`
	UpdatedAt   time.Time `json:"-"`

	Crate CrateDefinition `json:"-" gorm:"foreignKey:CrateID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for CrateContent.
func (CrateContent) TableName() string { return "crate_contents" }

// PityState holds a user's bad-luck counters for one crate. A missing row is
// equivalent to the zero value.
type PityState struct {
	UserID              string    `json:"-"                     gorm:"type:varchar(64);primaryKey"`
	CrateID             int64     `json:"-"                     gorm:"primaryKey;autoIncrement:false"`
	OpensSinceRare      int       `json:"opens_since_rare"      gorm:"not null;default:0;check:opens_since_rare >= 0"`
	OpensSinceLegendary int       `json:"opens_since_legendary" gorm:"not null;default:0;check:opens_since_legendary >= 0"`
	TotalOpens          int       `json:"total_opens"           gorm:"not null;default:0;check:total_opens >= 0"`
	UpdatedAt           time.Time `json:"-"`
}

// TableName returns the database table name for PityState.
func (PityState) TableName() string { return "crate_pity_states" }

// CrateOpening records the outcome of opening one purchased crate. The unique
// index on PurchaseID is what guarantees a purchase is opened at most once.
type CrateOpening struct {
	ID          int64     `json:"id"           gorm:"primaryKey;autoIncrement"`
	UserID      string    `json:"user_id"      gorm:"type:varchar(64);not null;index:idx_crate_openings_user;uniqueIndex:ux_crate_openings_attempt,priority:1"`
	CrateID     int64     `json:"crate_id"     gorm:"not null;index"`
	PurchaseID  int64     `json:"purchase_id"  gorm:"not null;uniqueIndex:ux_crate_openings_purchase"`
	AttemptID   string    `json:"-"            gorm:"type:varchar(200);not null;uniqueIndex:ux_crate_openings_attempt,priority:2"`
	GoodsNo     int64     `json:"goods_no"     gorm:"not null"`
	ItemName    string    `json:"item_name"    gorm:"type:varchar(100);not null"`
	ItemDesc    string    `json:"-"            gorm:"column:item_description;type:text;not null;default:''"`
	Rarity      Rarity    `json:"rarity"       gorm:"type:varchar(20);not null"`
	Quantity    int       `json:"quantity"     gorm:"not null;default:1"`
	WasPityDrop bool      `json:"was_pity"     gorm:"not null;default:false"`
	Delivered   bool      `json:"delivered"    gorm:"not null;default:false"`
	CreatedAt   time.Time `json:"created_at"`
}

// TableName returns the database table name for CrateOpening.
func (CrateOpening) TableName() string { return "crate_openings" }

// Refund is the compensating credit for a purchase whose crate could not be
// opened. At most one refund exists per purchase.
type Refund struct {
	ID         int64     `gorm:"primaryKey;autoIncrement"`
	PurchaseID int64     `gorm:"not null;uniqueIndex:ux_refunds_purchase"`
	UserID     string    `gorm:"type:varchar(64);not null;index"`
	AttemptID  string    `gorm:"type:varchar(200);not null"`
	Amount     int64     `gorm:"not null;check:amount >= 0"`
	Reason     string    `gorm:"type:text;not null;default:''"`
	CreatedAt  time.Time `gorm:"not null"`
}

// TableName returns the database table name for Refund.
func (Refund) TableName() string { return "refunds" }
