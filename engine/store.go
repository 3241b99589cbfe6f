package engine

import (
	"context"

	"github.com/google/uuid"

	"bidflow/models"
)

// Store 是引擎依賴的抽象持久層
// 引擎在臨界區內寫穿(write-through)所有變更；
// 讀取則由引擎的記憶體快照服務，Store 負責耐久與冷啟動載入。
type Store interface {
	// CreateAuction 寫入整棵拍賣(含品項與供應商)。
	CreateAuction(ctx context.Context, auction *models.Auction) error
	// GetAuction 載入拍賣與其品項、供應商，不存在時回傳 ErrAuctionNotFound。
	GetAuction(ctx context.Context, id uuid.UUID) (*models.Auction, error)
	// ListAuctions 依建立時間遞減列出所有拍賣。
	ListAuctions(ctx context.Context) ([]*models.Auction, error)
	// ListActiveAuctionIDs 列出狀態為 Active 的拍賣，供時鐘檢查巡覽。
	ListActiveAuctionIDs(ctx context.Context) ([]uuid.UUID, error)
	// FindAuctionIDByToken 以供應商憑證反查拍賣，不存在時回傳 ErrInvalidToken。
	FindAuctionIDByToken(ctx context.Context, token string) (uuid.UUID, error)

	// SaveAuctionState 持久化生命週期欄位(status/start/end/terminated/extensions)。
	SaveAuctionState(ctx context.Context, auction *models.Auction) error
	// SaveSupplier 持久化供應商的 concluded 旗標。
	SaveSupplier(ctx context.Context, supplier *models.Supplier) error
	// PersistAdmission 原子性地持久化一次核定：覆寫供應商的目前出價(投影，非歷史)、
	// 追加一筆帳本記錄、更新拍賣的生命週期欄位(延長後的 end_time)。
	// 三者要嘛全部生效要嘛全部不生效，失敗時持久層不得留下孤兒出價。
	PersistAdmission(ctx context.Context, bid *models.Bid, entry *models.BidHistoryEntry, auction *models.Auction) error

	// ListBids 載入拍賣的全部目前出價。
	ListBids(ctx context.Context, auctionID uuid.UUID) ([]*models.Bid, error)
	// ListHistory 依回合順序載入帳本。
	ListHistory(ctx context.Context, auctionID uuid.UUID) ([]models.BidHistoryEntry, error)
}
