package engine

import (
	"time"

	"github.com/google/uuid"
)

// EventType 是推播事件的種類。
type EventType string

const (
	EventBidListChanged    EventType = "bid_list_changed"
	EventRankChanged       EventType = "rank_changed"
	EventAuctionStarted    EventType = "auction_started"
	EventAuctionExtended   EventType = "auction_extended"
	EventAuctionTerminated EventType = "auction_terminated"
	EventAuctionCompleted  EventType = "auction_completed"
)

// Event 是推播給訂閱端的事件負載
// 推播是 best-effort 的快取失效提示，所有業務事實都能透過輪詢端點重建。
// 採購方頻道會帶完整看板與時鐘；供應商頻道只帶自己的名次與分類。
type Event struct {
	Type      EventType `json:"type"`
	AuctionID uuid.UUID `json:"auction_id"`

	// 採購方視圖
	Bids []RankedBid `json:"bids,omitempty"`

	// 供應商視圖
	Rank           int            `json:"rank,omitempty"`
	Classification Classification `json:"classification,omitempty"`

	// 時鐘
	EndTime *time.Time `json:"end_time,omitempty"`
}

// Publisher 是引擎對推播通道的唯一依賴，任何 pub/sub 或 long-poll 機制都可替換。
type Publisher interface {
	Publish(channel string, event Event) error
}

// BuyerChannel 回傳採購方看板的頻道名稱。
func BuyerChannel(auctionID uuid.UUID) string {
	return "auction:" + auctionID.String()
}

// SupplierChannel 回傳供應商個人視圖的頻道名稱。
func SupplierChannel(token string) string {
	return "supplier:" + token
}
