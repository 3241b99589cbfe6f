package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// BidHistoryEntry 是拍賣帳本的單筆記錄，只增不改不刪
// Round 是拍賣範圍內嚴格遞增且無缺口的序號，
// 每筆記錄都帶有核定當下的 L1(最低總價)快照，供稽核與價格走勢重建使用。
type BidHistoryEntry struct {
	gorm.Model

	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	AuctionID uuid.UUID `gorm:"type:uuid;not null;index:idx_auction_round,unique;<-:create"`
	Round     int       `gorm:"type:integer;not null;index:idx_auction_round,unique;<-:create"`
	Timestamp time.Time `gorm:"type:timestamp with time zone;not null;<-:create"`

	SupplierID   uuid.UUID `gorm:"type:uuid;not null;<-:create"`
	SupplierName string    `gorm:"type:varchar(255);not null;<-:create"`

	UnitPriceAvg decimal.Decimal `gorm:"type:numeric(20,4);not null;<-:create"` // 總價除以總數量
	TotalAmount  decimal.Decimal `gorm:"type:numeric(20,4);not null;<-:create"`
	// 僅在本次出價產生新 L1 時為正值，等於對前一個 L1 總價的改善幅度
	Decrement decimal.Decimal `gorm:"type:numeric(20,4);not null;<-:create"`

	// 核定後的 L1 快照
	L1Total        decimal.Decimal `gorm:"type:numeric(20,4);not null;<-:create"`
	L1UnitPrice    decimal.Decimal `gorm:"type:numeric(20,4);not null;<-:create"`
	L1SupplierName string          `gorm:"type:varchar(255);not null;<-:create"`

	DeliveryDays   int `gorm:"type:integer;<-:create"`
	WarrantyMonths int `gorm:"type:integer;<-:create"`
}
