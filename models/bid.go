package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Bid 代表供應商在某場拍賣中的「目前」出價
// 每組 (auction, supplier) 只有一筆，重新出價時就地覆寫，
// 完整歷史記錄在 BidHistoryEntry。
type Bid struct {
	gorm.Model

	ID             uuid.UUID       `gorm:"type:uuid;primaryKey"`
	AuctionID      uuid.UUID       `gorm:"type:uuid;not null;index:idx_auction_supplier,unique;<-:create"`
	SupplierID     uuid.UUID       `gorm:"type:uuid;not null;index:idx_auction_supplier,unique;<-:create"`
	SupplierName   string          `gorm:"type:varchar(255);not null"`
	TotalAmount    decimal.Decimal `gorm:"type:numeric(20,4);not null"`
	DeliveryDays   int             `gorm:"type:integer;not null"`
	WarrantyMonths int             `gorm:"type:integer"`
	PaymentTerms   string          `gorm:"type:varchar(64)"`
	Remarks        string          `gorm:"type:text"`
	SubmittedAt    time.Time       `gorm:"type:timestamp with time zone;not null"` // 本次價格的核定時間，同價時先到者排名較前

	// 外鍵關聯
	ItemPrices []BidItemPrice `gorm:"foreignKey:BidID"`
}

// BidItemPrice 是出價中單一品項的單價，Position 與 AuctionItem 對齊。
type BidItemPrice struct {
	gorm.Model

	ID        uuid.UUID       `gorm:"type:uuid;primaryKey"`
	BidID     uuid.UUID       `gorm:"type:uuid;not null;index;<-:create"`
	Position  int             `gorm:"type:integer;not null"`
	ItemCode  string          `gorm:"type:varchar(64);not null"`
	UnitPrice decimal.Decimal `gorm:"type:numeric(20,4);not null"`
}
