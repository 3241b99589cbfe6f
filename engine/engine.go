package engine

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"bidflow/models"
)

type engineOptions struct {
	logger        *slog.Logger
	publisher     Publisher
	lockTimeout   time.Duration
	clockInterval time.Duration
	maxExtensions int
	draftPolicy   EvaluatePolicy
	now           func() time.Time
}

type EngineOption func(*engineOptions)

// WithLogger 設置日誌記錄器
func WithLogger(logger *slog.Logger) EngineOption {
	return func(o *engineOptions) {
		o.logger = logger
	}
}

// WithPublisher 設置推播通道，未設置時不推播(輪詢仍然可用)
func WithPublisher(p Publisher) EngineOption {
	return func(o *engineOptions) {
		o.publisher = p
	}
}

// WithLockTimeout 設置取得拍賣鎖的等待上限，逾時回傳 ErrConcurrencyTimeout
func WithLockTimeout(d time.Duration) EngineOption {
	return func(o *engineOptions) {
		o.lockTimeout = d
	}
}

// WithClockInterval 設置時鐘檢查的巡覽間隔
func WithClockInterval(d time.Duration) EngineOption {
	return func(o *engineOptions) {
		o.clockInterval = d
	}
}

// WithMaxExtensions 設置單場拍賣的累計延長次數上限(<=0 表示不設限)
func WithMaxExtensions(n int) EngineOption {
	return func(o *engineOptions) {
		o.maxExtensions = n
	}
}

// WithDraftPolicy 設置 Draft 階段預備出價套用的規則範圍
func WithDraftPolicy(p EvaluatePolicy) EngineOption {
	return func(o *engineOptions) {
		o.draftPolicy = p
	}
}

// WithNowFunc 設置時間來源，測試用
func WithNowFunc(now func() time.Time) EngineOption {
	return func(o *engineOptions) {
		o.now = now
	}
}

// auctionState 是單場拍賣在記憶體中的權威狀態。
// lock 是容量 1 的 channel，作為該拍賣的臨界區：
// 出價核定、start/terminate、時鐘到期全部在此序列化。
type auctionState struct {
	lock    chan struct{}
	auction *models.Auction
	bids    map[uuid.UUID]*models.Bid // 以 supplier ID 為鍵的目前出價投影
	history []models.BidHistoryEntry
}

// Engine 是拍賣排名與出價核定引擎
// 持有每場拍賣的記憶體權威狀態，所有變更在拍賣臨界區內寫穿到 Store，
// 讀取一律來自一致的記憶體快照，與帳本保持一致。
type Engine struct {
	store   Store
	logger  *slog.Logger
	options engineOptions

	mu       sync.RWMutex
	auctions map[uuid.UUID]*auctionState
	tokens   map[string]uuid.UUID // supplier token → auction ID

	cancelFunc context.CancelFunc
	wg         sync.WaitGroup
	started    bool
}

// NewEngine 建立引擎實例。
func NewEngine(store Store, opts ...EngineOption) (*Engine, error) {
	if store == nil {
		return nil, errors.New("store cannot be nil")
	}

	// 默認選項
	options := engineOptions{
		logger:        slog.Default(),
		lockTimeout:   3 * time.Second,
		clockInterval: time.Second,
		maxExtensions: 30,
		draftPolicy:   PolicyFullRules,
		now:           time.Now,
	}

	// 應用自定義選項
	for _, opt := range opts {
		opt(&options)
	}

	return &Engine{
		store:    store,
		logger:   options.logger.With(slog.String("caller", "Engine")),
		options:  options,
		auctions: make(map[uuid.UUID]*auctionState),
		tokens:   make(map[string]uuid.UUID),
	}, nil
}

// StartClock 啟動背景時鐘檢查，把到期事件送進與出價相同的臨界區。
func (e *Engine) StartClock() {
	if e.started {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	e.cancelFunc = cancel
	e.started = true
	e.logger.Info("starting auction clock")

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		defer e.logger.Info("auction clock stopped")
		ticker := time.NewTicker(e.options.clockInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				e.tickAll(ctx)
			}
		}
	}()
}

// Close 停止背景時鐘並等待 goroutine 結束。
func (e *Engine) Close() {
	if !e.started {
		return
	}
	e.started = false
	e.cancelFunc()
	e.wg.Wait()
}

func (e *Engine) tickAll(ctx context.Context) {
	ids, err := e.store.ListActiveAuctionIDs(ctx)
	if err != nil {
		e.logger.Error("fail to list active auctions", slog.Any("error", err))
		return
	}
	for _, id := range ids {
		if _, err := e.Tick(ctx, id); err != nil && !errors.Is(err, ErrConcurrencyTimeout) {
			e.logger.Error("clock tick failed", slog.String("auctionID", id.String()), slog.Any("error", err))
		}
	}
}

// Tick 對單場拍賣執行到期檢查，發生轉移時回傳 true。
// 與出價核定競爭同一把拍賣鎖，確保「剛到期」與「剛出價」有全序。
func (e *Engine) Tick(ctx context.Context, auctionID uuid.UUID) (bool, error) {
	const op = "Engine.Tick"
	st, err := e.getState(ctx, auctionID)
	if err != nil {
		return false, err
	}
	if err := e.acquire(ctx, st); err != nil {
		return false, err
	}
	defer e.release(st)

	snapshot := *st.auction
	if !clockTick(st.auction, e.options.now()) {
		return false, nil
	}
	if err := e.store.SaveAuctionState(ctx, st.auction); err != nil {
		*st.auction = snapshot
		return false, fmt.Errorf("[%s] Fail to persist completion, err=%w", op, err)
	}
	e.logger.Info("auction completed by clock", slog.String("auctionID", auctionID.String()))
	e.publishLifecycle(st, EventAuctionCompleted)
	return true, nil
}

// CreateAuction 建立一場新的拍賣(Draft)，為每位供應商產生一次性的存取憑證。
func (e *Engine) CreateAuction(ctx context.Context, auction *models.Auction) error {
	const op = "Engine.CreateAuction"

	if len(auction.Items) == 0 {
		return fmt.Errorf("[%s] auction must contain at least one item", op)
	}
	auction.ID = uuid.New()
	auction.Status = models.StatusDraft
	for i := range auction.Items {
		item := &auction.Items[i]
		if item.Quantity.Sign() <= 0 {
			return fmt.Errorf("[%s] item %s quantity must be positive", op, item.ItemCode)
		}
		if item.EffectiveCeiling(auction.Config).Sign() <= 0 {
			return fmt.Errorf("[%s] item %s effective ceiling must be positive", op, item.ItemCode)
		}
		if item.EffectiveDecrement(auction.Config).Sign() < 0 {
			return fmt.Errorf("[%s] item %s effective decrement must not be negative", op, item.ItemCode)
		}
		item.ID = uuid.New()
		item.AuctionID = auction.ID
		item.Position = i
	}
	for i := range auction.Suppliers {
		token, err := generateToken("sup")
		if err != nil {
			return fmt.Errorf("[%s] Fail to generate supplier token, err=%w", op, err)
		}
		supplier := &auction.Suppliers[i]
		supplier.ID = uuid.New()
		supplier.AuctionID = auction.ID
		supplier.Position = i
		supplier.AccessToken = token
		supplier.Concluded = false
	}

	if err := e.store.CreateAuction(ctx, auction); err != nil {
		return fmt.Errorf("[%s] Fail to create auction, err=%w", op, err)
	}

	st := &auctionState{
		lock:    make(chan struct{}, 1),
		auction: auction,
		bids:    make(map[uuid.UUID]*models.Bid),
	}
	e.mu.Lock()
	e.auctions[auction.ID] = st
	for i := range auction.Suppliers {
		e.tokens[auction.Suppliers[i].AccessToken] = auction.ID
	}
	e.mu.Unlock()

	e.logger.Info("auction created",
		slog.String("auctionID", auction.ID.String()),
		slog.Int("items", len(auction.Items)),
		slog.Int("suppliers", len(auction.Suppliers)))
	return nil
}

// Start 啟動拍賣：Draft → Active，設定 start_time/end_time。
func (e *Engine) Start(ctx context.Context, auctionID uuid.UUID) (*models.Auction, error) {
	const op = "Engine.Start"
	st, err := e.getState(ctx, auctionID)
	if err != nil {
		return nil, err
	}
	if err := e.acquire(ctx, st); err != nil {
		return nil, err
	}
	defer e.release(st)

	snapshot := *st.auction
	if err := startAuction(st.auction, e.options.now()); err != nil {
		return nil, err
	}
	if err := e.store.SaveAuctionState(ctx, st.auction); err != nil {
		*st.auction = snapshot
		return nil, fmt.Errorf("[%s] Fail to persist start, err=%w", op, err)
	}
	e.logger.Info("auction started",
		slog.String("auctionID", auctionID.String()),
		slog.Time("endTime", *st.auction.EndTime))
	e.publishLifecycle(st, EventAuctionStarted)

	copied := copyAuction(st.auction)
	return &copied, nil
}

// Terminate 採購方提前結束拍賣：Active → Completed(terminated=true)，
// 凍結目前 L1 為最終結果。
func (e *Engine) Terminate(ctx context.Context, auctionID uuid.UUID) error {
	const op = "Engine.Terminate"
	st, err := e.getState(ctx, auctionID)
	if err != nil {
		return err
	}
	if err := e.acquire(ctx, st); err != nil {
		return err
	}
	defer e.release(st)

	snapshot := *st.auction
	if err := terminateAuction(st.auction); err != nil {
		return err
	}
	if err := e.store.SaveAuctionState(ctx, st.auction); err != nil {
		*st.auction = snapshot
		return fmt.Errorf("[%s] Fail to persist termination, err=%w", op, err)
	}
	e.logger.Info("auction terminated by buyer", slog.String("auctionID", auctionID.String()))
	e.publishLifecycle(st, EventAuctionTerminated)
	return nil
}

// acquire 取得拍賣的臨界區，等待超過 lockTimeout 回傳 ErrConcurrencyTimeout。
func (e *Engine) acquire(ctx context.Context, st *auctionState) error {
	timer := time.NewTimer(e.options.lockTimeout)
	defer timer.Stop()

	select {
	case st.lock <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return ErrConcurrencyTimeout
	}
}

func (e *Engine) release(st *auctionState) {
	<-st.lock
}

// getState 取得拍賣的記憶體狀態，快取未命中時從 Store 冷載入。
func (e *Engine) getState(ctx context.Context, auctionID uuid.UUID) (*auctionState, error) {
	const op = "Engine.getState"

	e.mu.RLock()
	st, ok := e.auctions[auctionID]
	e.mu.RUnlock()
	if ok {
		return st, nil
	}

	auction, err := e.store.GetAuction(ctx, auctionID)
	if err != nil {
		return nil, err
	}
	bids, err := e.store.ListBids(ctx, auctionID)
	if err != nil {
		return nil, fmt.Errorf("[%s] Fail to load bids, err=%w", op, err)
	}
	history, err := e.store.ListHistory(ctx, auctionID)
	if err != nil {
		return nil, fmt.Errorf("[%s] Fail to load history, err=%w", op, err)
	}

	loaded := &auctionState{
		lock:    make(chan struct{}, 1),
		auction: auction,
		bids:    make(map[uuid.UUID]*models.Bid, len(bids)),
		history: history,
	}
	for _, bid := range bids {
		loaded.bids[bid.SupplierID] = bid
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if existing, ok := e.auctions[auctionID]; ok {
		return existing, nil
	}
	e.auctions[auctionID] = loaded
	for i := range auction.Suppliers {
		e.tokens[auction.Suppliers[i].AccessToken] = auctionID
	}
	return loaded, nil
}

// resolveToken 以供應商憑證找到拍賣狀態與供應商本體。
func (e *Engine) resolveToken(ctx context.Context, token string) (*auctionState, *models.Supplier, error) {
	e.mu.RLock()
	auctionID, ok := e.tokens[token]
	e.mu.RUnlock()

	if !ok {
		id, err := e.store.FindAuctionIDByToken(ctx, token)
		if err != nil {
			return nil, nil, err
		}
		auctionID = id
	}

	st, err := e.getState(ctx, auctionID)
	if err != nil {
		return nil, nil, err
	}
	for i := range st.auction.Suppliers {
		if st.auction.Suppliers[i].AccessToken == token {
			return st, &st.auction.Suppliers[i], nil
		}
	}
	return nil, nil, ErrInvalidToken
}

// publish 推播單一事件，推播是 best-effort：失敗只記錄，不影響核定結果。
func (e *Engine) publish(channel string, ev Event) {
	if e.options.publisher == nil {
		return
	}
	if err := e.options.publisher.Publish(channel, ev); err != nil {
		e.logger.Warn("fail to publish event",
			slog.String("channel", channel),
			slog.String("type", string(ev.Type)),
			slog.Any("error", err))
	}
}

// publishLifecycle 把生命週期事件推給採購方與全部供應商。
// 呼叫端必須已持有拍賣鎖。
func (e *Engine) publishLifecycle(st *auctionState, typ EventType) {
	ev := Event{
		Type:      typ,
		AuctionID: st.auction.ID,
		EndTime:   st.auction.EndTime,
	}
	e.publish(BuyerChannel(st.auction.ID), ev)
	for i := range st.auction.Suppliers {
		e.publish(SupplierChannel(st.auction.Suppliers[i].AccessToken), ev)
	}
}

func generateToken(prefix string) (string, error) {
	bytes := make([]byte, 20)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return prefix + "_" + base64.URLEncoding.EncodeToString(bytes), nil
}

// copyAuction 回傳拍賣的淺層一致快照(品項與供應商切片另行複製)。
func copyAuction(a *models.Auction) models.Auction {
	copied := *a
	copied.Items = append([]models.AuctionItem(nil), a.Items...)
	copied.Suppliers = append([]models.Supplier(nil), a.Suppliers...)
	return copied
}
