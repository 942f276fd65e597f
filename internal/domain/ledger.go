package domain

import "time"

// Purchase statuses.
const (
	PurchasePending   = "pending"
	PurchaseCompleted = "completed"
	PurchaseFailed    = "failed"
	PurchaseRefunded  = "refunded"
)

// Purchase is a money-for-item transaction. Crate purchases stay "completed"
// until opened; an opened crate purchase is one with a CrateOpening row.
type Purchase struct {
	ID          int64      `json:"id"           gorm:"primaryKey;autoIncrement"`
	UserID      string     `json:"user_id"      gorm:"type:varchar(64);not null;index:idx_purchases_user_status,priority:1"`
	ItemID      int64      `json:"item_id"      gorm:"not null;index"`
	Quantity    int        `json:"quantity"     gorm:"not null;default:1;check:quantity > 0"`
	UnitPrice   int64      `json:"unit_price"   gorm:"not null"`
	TotalPrice  int64      `json:"total_price"  gorm:"not null;check:total_price >= 0"`
	Status      string     `json:"status"       gorm:"type:varchar(16);not null;default:'pending';index:idx_purchases_user_status,priority:2;check:status IN ('pending','completed','failed','refunded')"`
	GameUserNo  int64      `json:"-"            gorm:"not null;default:0"`
	CreatedAt   time.Time  `json:"created_at"   gorm:"index"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	Item StoreItem `json:"-" gorm:"foreignKey:ItemID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT"`
}

// TableName returns the database table name for Purchase.
func (Purchase) TableName() string { return "purchases" }

// Balance entry kinds.
const (
	EntryPurchase    = "purchase"
	EntryRefund      = "refund"
	EntryCreditTopUp = "credit_topup"
)

// BalanceEntry is an append-only audit row written in the same transaction as
// every account balance mutation.
type BalanceEntry struct {
	ID            int64     `json:"id"             gorm:"primaryKey;autoIncrement"`
	UserID        string    `json:"-"              gorm:"type:varchar(64);not null;index:idx_balance_entries_user,priority:1"`
	Kind          string    `json:"kind"           gorm:"type:varchar(32);not null"`
	Delta         int64     `json:"delta"          gorm:"not null"`
	BalanceBefore int64     `json:"balance_before" gorm:"not null"`
	BalanceAfter  int64     `json:"balance_after"  gorm:"not null"`
	Reference     string    `json:"reference"      gorm:"type:varchar(100);not null;default:''"`
	CreatedAt     time.Time `json:"created_at"     gorm:"index:idx_balance_entries_user,priority:2"`
}

// TableName returns the database table name for BalanceEntry.
func (BalanceEntry) TableName() string { return "balance_entries" }

// CreditPurchase records a real-money credit package purchase.
type CreditPurchase struct {
	ID               int64     `json:"id"`
	UserID           string    `json:"-"                gorm:"type:varchar(64);not null;index"`
	PackageName      string    `json:"packageName"      gorm:"type:varchar(100);not null"`
	CreditsPurchased int64     `json:"creditsPurchased" gorm:"not null"`
	BonusCredits     int64     `json:"bonusCredits"     gorm:"not null;default:0"`
	TotalCredits     int64     `json:"totalCredits"     gorm:"not null"`
	AmountPaidCents  int64     `json:"-"                gorm:"not null"`
	PaymentMethod    string    `json:"paymentMethod"    gorm:"type:varchar(32);not null;default:'demo'"`
	TransactionID    string    `json:"transactionId"    gorm:"type:varchar(100);not null;uniqueIndex:ux_credit_purchases_txn"`
	Status           string    `json:"status"           gorm:"type:varchar(16);not null;default:'completed'"`
	PurchasedAt      time.Time `json:"purchasedAt"      gorm:"not null;index"`
}

// TableName returns the database table name for CreditPurchase.
func (CreditPurchase) TableName() string { return "credit_purchases" }

// AmountPaid returns the paid amount in currency units.
func (c CreditPurchase) AmountPaid() float64 { return float64(c.AmountPaidCents) / 100 }
