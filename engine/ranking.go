package engine

import (
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"bidflow/models"
)

// Classification 是面向供應商的名次色彩分類，純屬顯示輔助，不影響規則。
type Classification string

const (
	ClassLeading  Classification = "leading"  // 第 1 名
	ClassClose    Classification = "close"    // 第 2 名
	ClassTrailing Classification = "trailing" // 第 3 名以後
)

// Classify 將名次換算為分類，0(未出價)回傳空字串。
func Classify(rank int) Classification {
	switch {
	case rank <= 0:
		return ""
	case rank == 1:
		return ClassLeading
	case rank == 2:
		return ClassClose
	default:
		return ClassTrailing
	}
}

// RankedBid 是排名後的單筆目前出價。
type RankedBid struct {
	SupplierID     uuid.UUID       `json:"supplier_id"`
	SupplierName   string          `json:"supplier_name"`
	TotalAmount    decimal.Decimal `json:"total_amount"`
	DeliveryDays   int             `json:"delivery_days"`
	WarrantyMonths int             `json:"warranty_months"`
	Rank           int             `json:"rank"`
	Classification Classification  `json:"classification"`
	SubmittedAt    time.Time       `json:"submitted_at"`
}

// RankBids 對所有供應商的目前出價計算確定性的全序名次
// 排序鍵為總價遞增，同價時以較早送達者優先，避免名次在價格持平時反覆跳動。
// 未出價的供應商不在結果中(名次視為 0)。
func RankBids(bids []*models.Bid) []RankedBid {
	sorted := make([]*models.Bid, len(bids))
	copy(sorted, bids)
	sort.SliceStable(sorted, func(i, j int) bool {
		if !sorted[i].TotalAmount.Equal(sorted[j].TotalAmount) {
			return sorted[i].TotalAmount.LessThan(sorted[j].TotalAmount)
		}
		return sorted[i].SubmittedAt.Before(sorted[j].SubmittedAt)
	})

	ranked := make([]RankedBid, len(sorted))
	for i, bid := range sorted {
		rank := i + 1
		ranked[i] = RankedBid{
			SupplierID:     bid.SupplierID,
			SupplierName:   bid.SupplierName,
			TotalAmount:    bid.TotalAmount,
			DeliveryDays:   bid.DeliveryDays,
			WarrantyMonths: bid.WarrantyMonths,
			Rank:           rank,
			Classification: Classify(rank),
			SubmittedAt:    bid.SubmittedAt,
		}
	}
	return ranked
}

// Leader 回傳目前的 L1 出價，沒有任何出價時回傳 nil。
func Leader(bids []*models.Bid) *models.Bid {
	var leader *models.Bid
	for _, bid := range bids {
		if leader == nil ||
			bid.TotalAmount.LessThan(leader.TotalAmount) ||
			(bid.TotalAmount.Equal(leader.TotalAmount) && bid.SubmittedAt.Before(leader.SubmittedAt)) {
			leader = bid
		}
	}
	return leader
}

// RankOf 回傳指定供應商在排名結果中的名次，未出價時為 0。
func RankOf(ranked []RankedBid, supplierID uuid.UUID) int {
	for _, rb := range ranked {
		if rb.SupplierID == supplierID {
			return rb.Rank
		}
	}
	return 0
}
