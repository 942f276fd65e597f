// Package domain defines the persistence models of the storefront: accounts,
// sessions, the store catalog, purchases, crate openings and the balance
// ledger. These types are mapped with GORM and shared by the repository,
// service and HTTP layers.
package domain

import (
	"time"
)

// User is a storefront account. AccountBalance is the single source of truth
// for spendable credits and is only mutated together with a BalanceEntry.
type User struct {
	ID             string    `json:"id"              gorm:"type:varchar(64);primaryKey"`
	Username       string    `json:"username"        gorm:"type:varchar(64);not null;uniqueIndex:ux_users_username"`
	Email          string    `json:"email"           gorm:"type:varchar(255);not null"`
	GameUserNo     int64     `json:"game_user_no"    gorm:"not null;default:0"`
	AccountBalance int64     `json:"account_balance" gorm:"not null;default:0;check:account_balance >= 0"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// TableName returns the database table name for User.
func (User) TableName() string { return "users" }

// Session is a server-side login session referenced by the session cookie.
type Session struct {
	ID        string    `gorm:"type:varchar(64);primaryKey"`
	UserID    string    `gorm:"type:varchar(64);not null;index:idx_sessions_user"`
	ExpiresAt time.Time `gorm:"not null;index"`
	CreatedAt time.Time

	User User `gorm:"foreignKey:UserID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for Session.
func (Session) TableName() string { return "sessions" }

// UserRole grants a named role (e.g. "admin") to a user.
type UserRole struct {
	UserID string `gorm:"type:varchar(64);primaryKey"`
	Role   string `gorm:"type:varchar(32);primaryKey"`
}

// TableName returns the database table name for UserRole.
func (UserRole) TableName() string { return "user_roles" }

// Item types sold by the store.
const (
	ItemTypeCrate = "crates"
)

// StoreItem is a purchasable catalog entry. Items with ItemType "crates" have a
// matching CrateDefinition.
type StoreItem struct {
	ID          int64     `json:"id"          gorm:"primaryKey;autoIncrement"`
	Name        string    `json:"name"        gorm:"type:varchar(100);not null;uniqueIndex:ux_store_items_name"`
	Description string    `json:"description" gorm:"type:text;not null;default:''"`
	GoodsNo     int64     `json:"goods_no"    gorm:"not null;default:0"`
	Price       int64     `json:"price"       gorm:"not null;check:price >= 0"`
	ItemType    string    `json:"item_type"   gorm:"type:varchar(32);not null;index:idx_store_items_listing,priority:2"`
	IsActive    bool      `json:"-"           gorm:"not null;default:true;index:idx_store_items_listing,priority:1"`
	CreatedAt   time.Time `json:"-"`
	UpdatedAt   time.Time `json:"-"`
}

// TableName returns the database table name for StoreItem.
func (StoreItem) TableName() string { return "store_items" }

// IsCrate reports whether the item is opened through the crate flow.
func (i StoreItem) IsCrate() bool { return i.ItemType == ItemTypeCrate }
