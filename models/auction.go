package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// AuctionStatus 代表逆向拍賣的生命週期狀態，只會單向前進。
type AuctionStatus string

const (
	StatusDraft     AuctionStatus = "draft"
	StatusActive    AuctionStatus = "active"
	StatusCompleted AuctionStatus = "completed"
)

// AuctionConfig 是拍賣的預設競價規則設定，
// 單一品項可以透過 AuctionItem 的欄位覆寫上限價與最小降幅。
type AuctionConfig struct {
	CeilingPrice    decimal.Decimal `gorm:"type:numeric(20,4);not null"` // 預設單價上限
	MinDecrement    decimal.Decimal `gorm:"type:numeric(20,4);not null"` // 預設最小降幅
	DurationMinutes int             `gorm:"type:integer;not null"`       // 拍賣時長(分鐘)
	BufferMinutes   int             `gorm:"type:integer;default:2"`      // 結束前的延長窗口(分鐘)
}

// Auction 代表一場逆向(降價)採購拍賣
// 包含採購條件、品項清單、受邀供應商與競價規則設定
type Auction struct {
	gorm.Model

	ID               uuid.UUID     `gorm:"type:uuid;primaryKey"`
	Title            string        `gorm:"type:varchar(255);not null"`
	ReferenceNumber  string        `gorm:"type:varchar(64);not null"`
	Description      string        `gorm:"type:text;not null"`
	PaymentTerms     string        `gorm:"type:varchar(64)"`
	DeliveryTerms    string        `gorm:"type:varchar(64)"`
	FreightCondition string        `gorm:"type:varchar(64)"`
	Status           AuctionStatus `gorm:"type:varchar(16);not null;default:'draft'"`
	StartTime        *time.Time    `gorm:"type:timestamp with time zone"`
	EndTime          *time.Time    `gorm:"type:timestamp with time zone"`
	Terminated       bool          `gorm:"not null;default:false"` // 採購方提前結束
	Extensions       int           `gorm:"not null;default:0"`     // 累計自動延長次數

	Config AuctionConfig `gorm:"embedded;embeddedPrefix:config_"`

	// 外鍵關聯
	Items     []AuctionItem `gorm:"foreignKey:AuctionID"`
	Suppliers []Supplier    `gorm:"foreignKey:AuctionID"`
}

// AuctionItem 代表拍賣中的單一採購品項，建立後不可變更。
// Position 與出價的單價序列對齊。
type AuctionItem struct {
	gorm.Model

	ID          uuid.UUID       `gorm:"type:uuid;primaryKey"`
	AuctionID   uuid.UUID       `gorm:"type:uuid;not null;index;<-:create"`
	Position    int             `gorm:"type:integer;not null;<-:create"`
	ItemCode    string          `gorm:"type:varchar(64);not null;<-:create"`
	Description string          `gorm:"type:text;<-:create"`
	Quantity    decimal.Decimal `gorm:"type:numeric(20,4);not null;<-:create"`
	Unit        string          `gorm:"type:varchar(32);<-:create"`

	// 逐項覆寫，為 nil 時使用 AuctionConfig 的預設值
	CeilingPrice *decimal.Decimal `gorm:"type:numeric(20,4);<-:create"`
	MinDecrement *decimal.Decimal `gorm:"type:numeric(20,4);<-:create"`
}

// EffectiveCeiling 回傳此品項生效的單價上限。
func (it AuctionItem) EffectiveCeiling(cfg AuctionConfig) decimal.Decimal {
	if it.CeilingPrice != nil {
		return *it.CeilingPrice
	}
	return cfg.CeilingPrice
}

// EffectiveDecrement 回傳此品項生效的最小降幅。
func (it AuctionItem) EffectiveDecrement(cfg AuctionConfig) decimal.Decimal {
	if it.MinDecrement != nil {
		return *it.MinDecrement
	}
	return cfg.MinDecrement
}
