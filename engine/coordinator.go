package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"bidflow/models"
)

// ItemBid 是出價請求中單一品項的單價。
type ItemBid struct {
	ItemCode  string          `json:"item_code"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

// SubmitRequest 是供應商的一筆候選出價，
// ItemBids 必須依品項順序與拍賣品項完全對齊。
type SubmitRequest struct {
	ItemBids       []ItemBid `json:"item_bids"`
	DeliveryDays   int       `json:"delivery_days"`
	WarrantyMonths int       `json:"warranty_months"`
	PaymentTerms   string    `json:"payment_terms"`
	Remarks        string    `json:"remarks"`
}

// SubmitResult 是核定成功後回給供應商的結果。
type SubmitResult struct {
	Round          int             `json:"round"`
	TotalAmount    decimal.Decimal `json:"total_amount"`
	Rank           int             `json:"rank"`
	Classification Classification  `json:"classification"`
	EndTime        *time.Time      `json:"end_time,omitempty"`
	Extended       bool            `json:"extended"`
}

// Submit 核定一筆供應商出價，是整個引擎的核心路徑。
// 取得拍賣臨界區後依序執行：憑證與結標檢查、狀態檢查、規則評估、
// 帳本追加與目前出價覆寫(先寫穿再提交記憶體)、重新排名、推播。
// 任何失敗都不留下副作用。
func (e *Engine) Submit(ctx context.Context, token string, req SubmitRequest) (*SubmitResult, error) {
	const op = "Engine.Submit"

	st, supplier, err := e.resolveToken(ctx, token)
	if err != nil {
		return nil, err
	}
	if err := e.acquire(ctx, st); err != nil {
		return nil, err
	}
	defer e.release(st)

	// 已過 end_time 但時鐘尚未巡到的拍賣，在核定當下就地收束，
	// 壓線出價不得讓過期的時鐘復活
	now := e.options.now()
	auction := st.auction
	preTick := *auction
	if clockTick(auction, now) {
		if err := e.store.SaveAuctionState(ctx, auction); err != nil {
			*auction = preTick
			return nil, fmt.Errorf("[%s] Fail to persist expiry, err=%w", op, err)
		}
		e.publishLifecycle(st, EventAuctionCompleted)
		return nil, ErrAuctionCompleted
	}

	if supplier.Concluded {
		return nil, ErrSupplierConcluded
	}
	switch auction.Status {
	case models.StatusCompleted:
		return nil, ErrAuctionCompleted
	case models.StatusDraft, models.StatusActive:
	default:
		return nil, ErrAuctionNotActive
	}

	unitPrices, err := alignItemBids(auction.Items, req.ItemBids)
	if err != nil {
		return nil, err
	}

	// Draft 階段收預備出價，依設定決定是否跳過 L1 競爭規則
	policy := PolicyFullRules
	if auction.Status == models.StatusDraft {
		policy = e.options.draftPolicy
	}

	// 帳本第 0 回合的合成 L1 錨定在上限價總額，首筆出價因此帶有正降幅
	prevLeaderTotal := CeilingTotal(auction.Items, auction.Config)
	if leader := Leader(currentBids(st)); leader != nil {
		prevLeaderTotal = leader.TotalAmount
	}
	if violation := EvaluateBid(auction.Items, auction.Config, unitPrices, &prevLeaderTotal, policy); violation != nil {
		return nil, violation
	}

	total := BidTotal(auction.Items, unitPrices)

	bid := buildBid(auction, supplier, unitPrices, total, req, now)
	if prev, ok := st.bids[supplier.ID]; ok {
		bid.ID = prev.ID
		for i := range bid.ItemPrices {
			bid.ItemPrices[i].BidID = prev.ID
		}
	}

	// 只有產生新 L1 的出價才記降幅
	decrement := decimal.Zero
	if total.LessThan(prevLeaderTotal) {
		decrement = prevLeaderTotal.Sub(total)
	}

	// 核定後的 L1 以覆寫後的出價集合計算，同價時先到者優先
	after := make([]*models.Bid, 0, len(st.bids)+1)
	for id, b := range st.bids {
		if id != supplier.ID {
			after = append(after, b)
		}
	}
	after = append(after, bid)
	l1 := Leader(after)

	totalQty := TotalQuantity(auction.Items)
	entry := &models.BidHistoryEntry{
		ID:             uuid.New(),
		AuctionID:      auction.ID,
		Round:          len(st.history) + 1,
		Timestamp:      now,
		SupplierID:     supplier.ID,
		SupplierName:   supplier.Name,
		UnitPriceAvg:   total.DivRound(totalQty, 4),
		TotalAmount:    total,
		Decrement:      decrement,
		L1Total:        l1.TotalAmount,
		L1UnitPrice:    l1.TotalAmount.DivRound(totalQty, 4),
		L1SupplierName: l1.SupplierName,
		DeliveryDays:   req.DeliveryDays,
		WarrantyMonths: req.WarrantyMonths,
	}

	// 結束前窗口內的出價把時鐘往後推
	extended := extendIfNearEnd(auction, now, e.options.maxExtensions)

	// 出價、帳本與延長後的時鐘一次寫穿，全部成功才提交記憶體狀態；
	// 持久層失敗時不得留下沒有帳本對應的出價
	snapshot := *auction
	if err := e.store.PersistAdmission(ctx, bid, entry, auction); err != nil {
		*auction = snapshot
		return nil, fmt.Errorf("[%s] Fail to persist admission, err=%w", op, err)
	}

	st.bids[supplier.ID] = bid
	st.history = append(st.history, *entry)

	ranked := RankBids(currentBids(st))
	rank := RankOf(ranked, supplier.ID)

	e.logger.Info("bid admitted",
		slog.String("auctionID", auction.ID.String()),
		slog.String("supplier", supplier.Name),
		slog.Int("round", entry.Round),
		slog.String("total", total.String()),
		slog.Int("rank", rank))

	e.publishAfterBid(st, ranked, extended)

	return &SubmitResult{
		Round:          entry.Round,
		TotalAmount:    total,
		Rank:           rank,
		Classification: Classify(rank),
		EndTime:        auction.EndTime,
		Extended:       extended,
	}, nil
}

// Conclude 供應商主動結標，此後該供應商的出價一律拒絕。重複呼叫是冪等的。
func (e *Engine) Conclude(ctx context.Context, token string) error {
	const op = "Engine.Conclude"

	st, supplier, err := e.resolveToken(ctx, token)
	if err != nil {
		return err
	}
	if err := e.acquire(ctx, st); err != nil {
		return err
	}
	defer e.release(st)

	if supplier.Concluded {
		return nil
	}
	supplier.Concluded = true
	if err := e.store.SaveSupplier(ctx, supplier); err != nil {
		supplier.Concluded = false
		return fmt.Errorf("[%s] Fail to persist conclusion, err=%w", op, err)
	}
	e.logger.Info("supplier concluded",
		slog.String("auctionID", st.auction.ID.String()),
		slog.String("supplier", supplier.Name))
	return nil
}

// Auction 回傳拍賣的一致快照。
func (e *Engine) Auction(ctx context.Context, auctionID uuid.UUID) (*models.Auction, error) {
	st, err := e.getState(ctx, auctionID)
	if err != nil {
		return nil, err
	}
	if err := e.acquire(ctx, st); err != nil {
		return nil, err
	}
	defer e.release(st)

	copied := copyAuction(st.auction)
	return &copied, nil
}

// BidList 回傳拍賣的完整排名看板(採購方視角)。
func (e *Engine) BidList(ctx context.Context, auctionID uuid.UUID) ([]RankedBid, error) {
	st, err := e.getState(ctx, auctionID)
	if err != nil {
		return nil, err
	}
	if err := e.acquire(ctx, st); err != nil {
		return nil, err
	}
	defer e.release(st)

	return RankBids(currentBids(st)), nil
}

// History 依回合順序回傳拍賣帳本。
func (e *Engine) History(ctx context.Context, auctionID uuid.UUID) ([]models.BidHistoryEntry, error) {
	st, err := e.getState(ctx, auctionID)
	if err != nil {
		return nil, err
	}
	if err := e.acquire(ctx, st); err != nil {
		return nil, err
	}
	defer e.release(st)

	return append([]models.BidHistoryEntry(nil), st.history...), nil
}

// SupplierView 是供應商以憑證看到的受限視圖：
// 只有自己的名次、分類與自己的出價，絕不暴露其他供應商的身分或報價。
type SupplierView struct {
	Auction        models.Auction  `json:"auction"`
	Supplier       models.Supplier `json:"supplier"`
	Rank           int             `json:"rank"`
	Classification Classification  `json:"classification"`
	OwnBid         *models.Bid     `json:"own_bid,omitempty"`
}

// SupplierState 回傳憑證對應供應商的受限視圖。
func (e *Engine) SupplierState(ctx context.Context, token string) (*SupplierView, error) {
	st, supplier, err := e.resolveToken(ctx, token)
	if err != nil {
		return nil, err
	}
	if err := e.acquire(ctx, st); err != nil {
		return nil, err
	}
	defer e.release(st)

	view := &SupplierView{
		Auction:  copyAuction(st.auction),
		Supplier: *supplier,
	}
	if own, ok := st.bids[supplier.ID]; ok {
		copied := *own
		copied.ItemPrices = append([]models.BidItemPrice(nil), own.ItemPrices...)
		view.OwnBid = &copied
		ranked := RankBids(currentBids(st))
		view.Rank = RankOf(ranked, supplier.ID)
		view.Classification = Classify(view.Rank)
	}
	return view, nil
}

// AuctionSummary 是列表頁需要的摘要，含目前 L1。
type AuctionSummary struct {
	Auction     models.Auction   `json:"auction"`
	BidCount    int              `json:"bid_count"`
	LeaderTotal *decimal.Decimal `json:"leader_total,omitempty"`
}

// ListAuctions 列出全部拍賣與其目前 L1 摘要。
func (e *Engine) ListAuctions(ctx context.Context) ([]AuctionSummary, error) {
	auctions, err := e.store.ListAuctions(ctx)
	if err != nil {
		return nil, err
	}
	summaries := make([]AuctionSummary, 0, len(auctions))
	for _, a := range auctions {
		st, err := e.getState(ctx, a.ID)
		if err != nil {
			return nil, err
		}
		if err := e.acquire(ctx, st); err != nil {
			return nil, err
		}
		summary := AuctionSummary{
			Auction:  copyAuction(st.auction),
			BidCount: len(st.bids),
		}
		if leader := Leader(currentBids(st)); leader != nil {
			total := leader.TotalAmount
			summary.LeaderTotal = &total
		}
		e.release(st)
		summaries = append(summaries, summary)
	}
	return summaries, nil
}

// publishAfterBid 在核定成功後推播：採購方收完整看板，
// 每位供應商只收到自己的名次。呼叫端必須已持有拍賣鎖。
func (e *Engine) publishAfterBid(st *auctionState, ranked []RankedBid, extended bool) {
	a := st.auction
	e.publish(BuyerChannel(a.ID), Event{
		Type:      EventBidListChanged,
		AuctionID: a.ID,
		Bids:      ranked,
		EndTime:   a.EndTime,
	})
	for i := range a.Suppliers {
		supplier := &a.Suppliers[i]
		rank := RankOf(ranked, supplier.ID)
		if rank == 0 {
			continue
		}
		e.publish(SupplierChannel(supplier.AccessToken), Event{
			Type:           EventRankChanged,
			AuctionID:      a.ID,
			Rank:           rank,
			Classification: Classify(rank),
			EndTime:        a.EndTime,
		})
	}
	if extended {
		e.publishLifecycle(st, EventAuctionExtended)
	}
}

// currentBids 回傳目前出價投影的切片形式。呼叫端必須已持有拍賣鎖。
func currentBids(st *auctionState) []*models.Bid {
	bids := make([]*models.Bid, 0, len(st.bids))
	for _, bid := range st.bids {
		bids = append(bids, bid)
	}
	return bids
}

// alignItemBids 把請求中的單價序列與拍賣品項對齊，
// 數量不符或 item_code 對不上時回傳 ErrBidMismatch。
func alignItemBids(items []models.AuctionItem, itemBids []ItemBid) ([]decimal.Decimal, error) {
	if len(itemBids) != len(items) {
		return nil, fmt.Errorf("%w: expected %d item prices, got %d", ErrBidMismatch, len(items), len(itemBids))
	}
	unitPrices := make([]decimal.Decimal, len(items))
	for i, item := range items {
		if itemBids[i].ItemCode != item.ItemCode {
			return nil, fmt.Errorf("%w: position %d expected item %s, got %s", ErrBidMismatch, i, item.ItemCode, itemBids[i].ItemCode)
		}
		unitPrices[i] = itemBids[i].UnitPrice
	}
	return unitPrices, nil
}

func buildBid(a *models.Auction, supplier *models.Supplier, unitPrices []decimal.Decimal, total decimal.Decimal, req SubmitRequest, now time.Time) *models.Bid {
	bidID := uuid.New()
	itemPrices := make([]models.BidItemPrice, len(a.Items))
	for i, item := range a.Items {
		itemPrices[i] = models.BidItemPrice{
			ID:        uuid.New(),
			BidID:     bidID,
			Position:  item.Position,
			ItemCode:  item.ItemCode,
			UnitPrice: unitPrices[i],
		}
	}
	return &models.Bid{
		ID:             bidID,
		AuctionID:      a.ID,
		SupplierID:     supplier.ID,
		SupplierName:   supplier.Name,
		TotalAmount:    total,
		DeliveryDays:   req.DeliveryDays,
		WarrantyMonths: req.WarrantyMonths,
		PaymentTerms:   req.PaymentTerms,
		Remarks:        req.Remarks,
		SubmittedAt:    now,
		ItemPrices:     itemPrices,
	}
}
