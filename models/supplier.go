package models

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Supplier 代表拍賣中受邀的供應商
// AccessToken 是建立拍賣時一次性產生的不可猜測憑證，取代登入流程，
// 不會跨拍賣重複使用。Concluded 一旦設為 true 即不可逆。
type Supplier struct {
	gorm.Model

	ID            uuid.UUID `gorm:"type:uuid;primaryKey"`
	AuctionID     uuid.UUID `gorm:"type:uuid;not null;index;<-:create"`
	Position      int       `gorm:"type:integer;not null;<-:create"`
	Name          string    `gorm:"type:varchar(255);not null;<-:create"`
	ContactPerson string    `gorm:"type:varchar(255);<-:create"`
	Email         string    `gorm:"type:varchar(255);<-:create"`
	Phone         string    `gorm:"type:varchar(64);<-:create"`
	AccessToken   string    `gorm:"type:varchar(64);uniqueIndex;not null;<-:create"`
	Concluded     bool      `gorm:"not null;default:false"`
}
