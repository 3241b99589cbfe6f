package api

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"bidflow/engine"
	"bidflow/models"
)

// 請求與回應的資料傳輸結構。
// 採購方視圖帶完整看板；供應商視圖只帶自己的名次、分類與自己的出價，
// 其他供應商的身分與報價一律不出現在供應商的回應中。

type createAuctionRequest struct {
	Title            string                  `json:"title" binding:"required"`
	ReferenceNumber  string                  `json:"reference_number"`
	Description      string                  `json:"description"`
	PaymentTerms     string                  `json:"payment_terms"`
	DeliveryTerms    string                  `json:"delivery_terms"`
	FreightCondition string                  `json:"freight_condition"`
	Config           auctionConfigRequest    `json:"config" binding:"required"`
	Items            []auctionItemRequest    `json:"items" binding:"required,min=1"`
	Suppliers        []createSupplierRequest `json:"suppliers" binding:"required,min=1"`
}

type auctionConfigRequest struct {
	CeilingPrice    decimal.Decimal `json:"ceiling_price" binding:"required"`
	MinDecrement    decimal.Decimal `json:"min_decrement"`
	DurationMinutes int             `json:"duration_minutes" binding:"required,min=1"`
	BufferMinutes   *int            `json:"buffer_minutes"`
}

type auctionItemRequest struct {
	ItemCode     string           `json:"item_code" binding:"required"`
	Description  string           `json:"description"`
	Quantity     decimal.Decimal  `json:"quantity" binding:"required"`
	Unit         string           `json:"unit"`
	CeilingPrice *decimal.Decimal `json:"ceiling_price"`
	MinDecrement *decimal.Decimal `json:"min_decrement"`
}

type createSupplierRequest struct {
	Name          string `json:"name" binding:"required"`
	ContactPerson string `json:"contact_person"`
	Email         string `json:"email"`
	Phone         string `json:"phone"`
}

type submitBidRequest struct {
	ItemBids       []itemBidRequest `json:"item_bids" binding:"required,min=1"`
	DeliveryDays   int              `json:"delivery_days"`
	WarrantyMonths int              `json:"warranty_months"`
	PaymentTerms   string           `json:"payment_terms"`
	Remarks        string           `json:"remarks"`
}

type itemBidRequest struct {
	ItemCode  string          `json:"item_code" binding:"required"`
	UnitPrice decimal.Decimal `json:"unit_price" binding:"required"`
}

type auctionView struct {
	ID               uuid.UUID            `json:"id"`
	Title            string               `json:"title"`
	ReferenceNumber  string               `json:"reference_number"`
	Description      string               `json:"description"`
	PaymentTerms     string               `json:"payment_terms,omitempty"`
	DeliveryTerms    string               `json:"delivery_terms,omitempty"`
	FreightCondition string               `json:"freight_condition,omitempty"`
	Status           models.AuctionStatus `json:"status"`
	StartTime        *time.Time           `json:"start_time,omitempty"`
	EndTime          *time.Time           `json:"end_time,omitempty"`
	Terminated       bool                 `json:"terminated"`
	Extensions       int                  `json:"extensions"`
	Config           auctionConfigView    `json:"config"`
	Items            []auctionItemView    `json:"items"`
}

type auctionConfigView struct {
	CeilingPrice    decimal.Decimal `json:"ceiling_price"`
	MinDecrement    decimal.Decimal `json:"min_decrement"`
	DurationMinutes int             `json:"duration_minutes"`
	BufferMinutes   int             `json:"buffer_minutes"`
}

type auctionItemView struct {
	ItemCode     string           `json:"item_code"`
	Description  string           `json:"description,omitempty"`
	Quantity     decimal.Decimal  `json:"quantity"`
	Unit         string           `json:"unit,omitempty"`
	CeilingPrice *decimal.Decimal `json:"ceiling_price,omitempty"`
	MinDecrement *decimal.Decimal `json:"min_decrement,omitempty"`
}

// supplierCredential 只在建立拍賣的回應中出現一次，採購方負責轉交憑證。
type supplierCredential struct {
	Name        string `json:"name"`
	AccessToken string `json:"access_token"`
}

type createAuctionResponse struct {
	Auction   auctionView          `json:"auction"`
	Suppliers []supplierCredential `json:"suppliers"`
}

type auctionSummaryView struct {
	Auction     auctionView      `json:"auction"`
	BidCount    int              `json:"bid_count"`
	LeaderTotal *decimal.Decimal `json:"leader_total,omitempty"`
}

type historyEntryView struct {
	Round          int             `json:"round"`
	Timestamp      time.Time       `json:"timestamp"`
	SupplierName   string          `json:"supplier_name"`
	UnitPriceAvg   decimal.Decimal `json:"unit_price_avg"`
	TotalAmount    decimal.Decimal `json:"total_amount"`
	Decrement      decimal.Decimal `json:"decrement"`
	L1Total        decimal.Decimal `json:"l1_total"`
	L1UnitPrice    decimal.Decimal `json:"l1_unit_price"`
	L1SupplierName string          `json:"l1_supplier_name"`
	DeliveryDays   int             `json:"delivery_days"`
	WarrantyMonths int             `json:"warranty_months"`
}

type supplierStateResponse struct {
	Auction        auctionView           `json:"auction"`
	SupplierName   string                `json:"supplier_name"`
	Concluded      bool                  `json:"concluded"`
	Rank           int                   `json:"rank"`
	Classification engine.Classification `json:"classification,omitempty"`
	OwnBid         *ownBidView           `json:"own_bid,omitempty"`
}

type ownBidView struct {
	TotalAmount    decimal.Decimal `json:"total_amount"`
	DeliveryDays   int             `json:"delivery_days"`
	WarrantyMonths int             `json:"warranty_months"`
	PaymentTerms   string          `json:"payment_terms,omitempty"`
	Remarks        string          `json:"remarks,omitempty"`
	SubmittedAt    time.Time       `json:"submitted_at"`
	ItemPrices     []itemBidView   `json:"item_prices"`
}

type itemBidView struct {
	ItemCode  string          `json:"item_code"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

func toAuctionView(a *models.Auction) auctionView {
	items := make([]auctionItemView, len(a.Items))
	for i, item := range a.Items {
		items[i] = auctionItemView{
			ItemCode:     item.ItemCode,
			Description:  item.Description,
			Quantity:     item.Quantity,
			Unit:         item.Unit,
			CeilingPrice: item.CeilingPrice,
			MinDecrement: item.MinDecrement,
		}
	}
	return auctionView{
		ID:               a.ID,
		Title:            a.Title,
		ReferenceNumber:  a.ReferenceNumber,
		Description:      a.Description,
		PaymentTerms:     a.PaymentTerms,
		DeliveryTerms:    a.DeliveryTerms,
		FreightCondition: a.FreightCondition,
		Status:           a.Status,
		StartTime:        a.StartTime,
		EndTime:          a.EndTime,
		Terminated:       a.Terminated,
		Extensions:       a.Extensions,
		Config: auctionConfigView{
			CeilingPrice:    a.Config.CeilingPrice,
			MinDecrement:    a.Config.MinDecrement,
			DurationMinutes: a.Config.DurationMinutes,
			BufferMinutes:   a.Config.BufferMinutes,
		},
		Items: items,
	}
}

func toHistoryViews(entries []models.BidHistoryEntry) []historyEntryView {
	views := make([]historyEntryView, len(entries))
	for i, entry := range entries {
		views[i] = historyEntryView{
			Round:          entry.Round,
			Timestamp:      entry.Timestamp,
			SupplierName:   entry.SupplierName,
			UnitPriceAvg:   entry.UnitPriceAvg,
			TotalAmount:    entry.TotalAmount,
			Decrement:      entry.Decrement,
			L1Total:        entry.L1Total,
			L1UnitPrice:    entry.L1UnitPrice,
			L1SupplierName: entry.L1SupplierName,
			DeliveryDays:   entry.DeliveryDays,
			WarrantyMonths: entry.WarrantyMonths,
		}
	}
	return views
}

func toOwnBidView(b *models.Bid) *ownBidView {
	if b == nil {
		return nil
	}
	prices := make([]itemBidView, len(b.ItemPrices))
	for i, ip := range b.ItemPrices {
		prices[i] = itemBidView{ItemCode: ip.ItemCode, UnitPrice: ip.UnitPrice}
	}
	return &ownBidView{
		TotalAmount:    b.TotalAmount,
		DeliveryDays:   b.DeliveryDays,
		WarrantyMonths: b.WarrantyMonths,
		PaymentTerms:   b.PaymentTerms,
		Remarks:        b.Remarks,
		SubmittedAt:    b.SubmittedAt,
		ItemPrices:     prices,
	}
}
