package engine_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"bidflow/engine"
	"bidflow/models"
	"bidflow/storage"
)

// testClock 是可手動撥動的時間來源。
type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func newTestClock() *testClock {
	return &testClock{t: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// capturePublisher 記錄引擎推播的所有事件。
type capturePublisher struct {
	mu     sync.Mutex
	events []capturedEvent
}

type capturedEvent struct {
	Channel string
	Event   engine.Event
}

func (p *capturePublisher) Publish(channel string, event engine.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, capturedEvent{Channel: channel, Event: event})
	return nil
}

func (p *capturePublisher) byType(typ engine.EventType) []capturedEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []capturedEvent
	for _, ev := range p.events {
		if ev.Event.Type == typ {
			out = append(out, ev)
		}
	}
	return out
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestEngine(t *testing.T, store engine.Store, clock *testClock, opts ...engine.EngineOption) *engine.Engine {
	t.Helper()
	base := []engine.EngineOption{
		engine.WithLogger(discardLogger()),
		engine.WithNowFunc(clock.Now),
		engine.WithLockTimeout(200 * time.Millisecond),
	}
	eng, err := engine.NewEngine(store, append(base, opts...)...)
	require.NoError(t, err)
	return eng
}

// fixtureAuction 單一品項、上限價 253、最小降幅 1、時長 30 分鐘、延長窗口 2 分鐘。
func fixtureAuction(supplierNames ...string) *models.Auction {
	suppliers := make([]models.Supplier, len(supplierNames))
	for i, name := range supplierNames {
		suppliers[i] = models.Supplier{Name: name}
	}
	return &models.Auction{
		Title:           "伺服器採購案",
		ReferenceNumber: "RFQ-2026-001",
		Description:     "機房擴建用",
		Config: models.AuctionConfig{
			CeilingPrice:    dec("253"),
			MinDecrement:    dec("1"),
			DurationMinutes: 30,
			BufferMinutes:   2,
		},
		Items: []models.AuctionItem{
			{ItemCode: "A-001", Description: "1U 機架式伺服器", Quantity: dec("1"), Unit: "台"},
		},
		Suppliers: suppliers,
	}
}

func mustCreate(t *testing.T, eng *engine.Engine, a *models.Auction) {
	t.Helper()
	require.NoError(t, eng.CreateAuction(context.Background(), a))
}

func submit(eng *engine.Engine, token, unitPrice string) (*engine.SubmitResult, error) {
	return eng.Submit(context.Background(), token, engine.SubmitRequest{
		ItemBids:     []engine.ItemBid{{ItemCode: "A-001", UnitPrice: dec(unitPrice)}},
		DeliveryDays: 30,
	})
}

func TestCreateAuction(t *testing.T) {
	clock := newTestClock()
	eng := newTestEngine(t, storage.NewMemory(), clock)

	a := fixtureAuction("Alpha", "Beta")
	mustCreate(t, eng, a)

	assert.Equal(t, models.StatusDraft, a.Status)
	require.Len(t, a.Suppliers, 2)
	assert.NotEqual(t, a.Suppliers[0].AccessToken, a.Suppliers[1].AccessToken)
	for _, s := range a.Suppliers {
		assert.Regexp(t, `^sup_`, s.AccessToken)
		assert.Equal(t, a.ID, s.AuctionID)
	}
	assert.Equal(t, 0, a.Items[0].Position)
}

func TestCreateAuction_Validation(t *testing.T) {
	clock := newTestClock()
	eng := newTestEngine(t, storage.NewMemory(), clock)

	noItems := fixtureAuction("Alpha")
	noItems.Items = nil
	assert.Error(t, eng.CreateAuction(context.Background(), noItems))

	badQty := fixtureAuction("Alpha")
	badQty.Items[0].Quantity = decimal.Zero
	assert.Error(t, eng.CreateAuction(context.Background(), badQty))

	badCeiling := fixtureAuction("Alpha")
	badCeiling.Config.CeilingPrice = decimal.Zero
	assert.Error(t, eng.CreateAuction(context.Background(), badCeiling))
}

func TestSubmit_FullFlow(t *testing.T) {
	clock := newTestClock()
	eng := newTestEngine(t, storage.NewMemory(), clock)
	a := fixtureAuction("Alpha", "Beta")
	mustCreate(t, eng, a)

	_, err := eng.Start(context.Background(), a.ID)
	require.NoError(t, err)
	alpha, beta := a.Suppliers[0].AccessToken, a.Suppliers[1].AccessToken

	// 首筆出價：降幅以上限價總額為錨點
	res, err := submit(eng, alpha, "250")
	require.NoError(t, err)
	assert.Equal(t, 1, res.Round)
	assert.Equal(t, 1, res.Rank)
	assert.Equal(t, engine.ClassLeading, res.Classification)
	assert.True(t, res.TotalAmount.Equal(dec("250")))

	clock.Advance(time.Minute)

	// 第二家壓價成為新 L1
	res, err = submit(eng, beta, "240")
	require.NoError(t, err)
	assert.Equal(t, 2, res.Round)
	assert.Equal(t, 1, res.Rank)

	board, err := eng.BidList(context.Background(), a.ID)
	require.NoError(t, err)
	require.Len(t, board, 2)
	assert.Equal(t, "Beta", board[0].SupplierName)
	assert.Equal(t, "Alpha", board[1].SupplierName)
	assert.Equal(t, engine.ClassClose, board[1].Classification)

	history, err := eng.History(context.Background(), a.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, 1, history[0].Round)
	assert.Equal(t, 2, history[1].Round)
	assert.True(t, history[0].Decrement.Equal(dec("3")), "253 − 250")
	assert.True(t, history[1].Decrement.Equal(dec("10")), "250 − 240")
	assert.True(t, history[0].L1Total.Equal(dec("250")))
	assert.True(t, history[1].L1Total.Equal(dec("240")))
	assert.Equal(t, "Beta", history[1].L1SupplierName)
	assert.True(t, history[0].UnitPriceAvg.Equal(dec("250")))
}

func TestSubmit_RejectsWithoutImprovingLeader(t *testing.T) {
	clock := newTestClock()
	eng := newTestEngine(t, storage.NewMemory(), clock)
	a := fixtureAuction("Alpha", "Beta")
	mustCreate(t, eng, a)
	_, err := eng.Start(context.Background(), a.ID)
	require.NoError(t, err)
	alpha, beta := a.Suppliers[0].AccessToken, a.Suppliers[1].AccessToken

	_, err = submit(eng, beta, "240")
	require.NoError(t, err)

	// 追平 L1 不夠，必須至少低一個彙總降幅
	_, err = submit(eng, alpha, "240")
	var violation *engine.RuleViolation
	require.ErrorAs(t, err, &violation)
	assert.Equal(t, engine.RuleLeaderStep, violation.Rule)

	// 被拒絕的出價不留任何痕跡
	history, err := eng.History(context.Background(), a.ID)
	require.NoError(t, err)
	assert.Len(t, history, 1)
	board, err := eng.BidList(context.Background(), a.ID)
	require.NoError(t, err)
	assert.Len(t, board, 1)

	res, err := submit(eng, alpha, "239")
	require.NoError(t, err)
	assert.Equal(t, 2, res.Round)
	assert.Equal(t, 1, res.Rank)
}

func TestSubmit_DraftPolicy(t *testing.T) {
	t.Run("ceiling only", func(t *testing.T) {
		clock := newTestClock()
		eng := newTestEngine(t, storage.NewMemory(), clock, engine.WithDraftPolicy(engine.PolicyCeilingOnly))
		a := fixtureAuction("Alpha", "Beta")
		mustCreate(t, eng, a)

		// Draft 階段兩家都可以放同價的預備出價
		_, err := submit(eng, a.Suppliers[0].AccessToken, "250")
		require.NoError(t, err)
		_, err = submit(eng, a.Suppliers[1].AccessToken, "250")
		require.NoError(t, err)

		// 上限規則依然生效
		_, err = submit(eng, a.Suppliers[0].AccessToken, "253")
		var violation *engine.RuleViolation
		require.ErrorAs(t, err, &violation)
		assert.Equal(t, engine.RuleCeiling, violation.Rule)
	})

	t.Run("full rules", func(t *testing.T) {
		clock := newTestClock()
		eng := newTestEngine(t, storage.NewMemory(), clock, engine.WithDraftPolicy(engine.PolicyFullRules))
		a := fixtureAuction("Alpha", "Beta")
		mustCreate(t, eng, a)

		_, err := submit(eng, a.Suppliers[0].AccessToken, "250")
		require.NoError(t, err)

		// 全規則下 Draft 的預備出價也要與 L1 競爭
		_, err = submit(eng, a.Suppliers[1].AccessToken, "250")
		var violation *engine.RuleViolation
		require.ErrorAs(t, err, &violation)
		assert.Equal(t, engine.RuleLeaderStep, violation.Rule)
	})
}

func TestSubmit_InvalidToken(t *testing.T) {
	clock := newTestClock()
	eng := newTestEngine(t, storage.NewMemory(), clock)
	a := fixtureAuction("Alpha")
	mustCreate(t, eng, a)

	_, err := submit(eng, "sup_does-not-exist", "250")
	assert.ErrorIs(t, err, engine.ErrInvalidToken)
}

func TestSubmit_MismatchedItems(t *testing.T) {
	clock := newTestClock()
	eng := newTestEngine(t, storage.NewMemory(), clock)
	a := fixtureAuction("Alpha")
	mustCreate(t, eng, a)
	_, err := eng.Start(context.Background(), a.ID)
	require.NoError(t, err)
	token := a.Suppliers[0].AccessToken

	// 缺品項
	_, err = eng.Submit(context.Background(), token, engine.SubmitRequest{})
	assert.ErrorIs(t, err, engine.ErrBidMismatch)

	// item_code 不對齊
	_, err = eng.Submit(context.Background(), token, engine.SubmitRequest{
		ItemBids: []engine.ItemBid{{ItemCode: "X-999", UnitPrice: dec("250")}},
	})
	assert.ErrorIs(t, err, engine.ErrBidMismatch)
}

func TestConclude(t *testing.T) {
	clock := newTestClock()
	eng := newTestEngine(t, storage.NewMemory(), clock)
	a := fixtureAuction("Alpha", "Beta")
	mustCreate(t, eng, a)
	_, err := eng.Start(context.Background(), a.ID)
	require.NoError(t, err)
	alpha := a.Suppliers[0].AccessToken

	_, err = submit(eng, alpha, "250")
	require.NoError(t, err)

	require.NoError(t, eng.Conclude(context.Background(), alpha))
	// 結標是冪等的
	require.NoError(t, eng.Conclude(context.Background(), alpha))

	// 結標後的出價一律拒絕
	_, err = submit(eng, alpha, "240")
	assert.ErrorIs(t, err, engine.ErrSupplierConcluded)

	// 既有出價仍留在看板上
	board, err := eng.BidList(context.Background(), a.ID)
	require.NoError(t, err)
	assert.Len(t, board, 1)
}

func TestTerminate(t *testing.T) {
	clock := newTestClock()
	eng := newTestEngine(t, storage.NewMemory(), clock)
	a := fixtureAuction("Alpha")
	mustCreate(t, eng, a)

	// Draft 不可提前結束
	assert.ErrorIs(t, eng.Terminate(context.Background(), a.ID), engine.ErrAuctionNotActive)

	_, err := eng.Start(context.Background(), a.ID)
	require.NoError(t, err)
	require.NoError(t, eng.Terminate(context.Background(), a.ID))

	got, err := eng.Auction(context.Background(), a.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, got.Status)
	assert.True(t, got.Terminated)

	_, err = submit(eng, a.Suppliers[0].AccessToken, "250")
	assert.ErrorIs(t, err, engine.ErrAuctionCompleted)
}

func TestStart_NotReentrant(t *testing.T) {
	clock := newTestClock()
	eng := newTestEngine(t, storage.NewMemory(), clock)
	a := fixtureAuction("Alpha")
	mustCreate(t, eng, a)

	_, err := eng.Start(context.Background(), a.ID)
	require.NoError(t, err)
	_, err = eng.Start(context.Background(), a.ID)
	assert.ErrorIs(t, err, engine.ErrAlreadyStarted)
}

func TestSubmit_ExtendsNearEnd(t *testing.T) {
	clock := newTestClock()
	eng := newTestEngine(t, storage.NewMemory(), clock)
	a := fixtureAuction("Alpha", "Beta")
	mustCreate(t, eng, a)

	started, err := eng.Start(context.Background(), a.ID)
	require.NoError(t, err)
	end := *started.EndTime
	alpha, beta := a.Suppliers[0].AccessToken, a.Suppliers[1].AccessToken

	// 距離結束 5 分鐘：窗口外，不延長
	clock.Advance(25 * time.Minute)
	res, err := submit(eng, alpha, "250")
	require.NoError(t, err)
	assert.False(t, res.Extended)
	assert.Equal(t, end, *res.EndTime)

	// 距離結束 1 分鐘：延長一個 buffer
	clock.Advance(4 * time.Minute)
	res, err = submit(eng, beta, "240")
	require.NoError(t, err)
	assert.True(t, res.Extended)
	assert.Equal(t, end.Add(2*time.Minute), *res.EndTime)

	got, err := eng.Auction(context.Background(), a.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.Extensions)
}

func TestSubmit_ExtensionCap(t *testing.T) {
	clock := newTestClock()
	eng := newTestEngine(t, storage.NewMemory(), clock, engine.WithMaxExtensions(1))
	a := fixtureAuction("Alpha", "Beta")
	mustCreate(t, eng, a)
	_, err := eng.Start(context.Background(), a.ID)
	require.NoError(t, err)
	alpha, beta := a.Suppliers[0].AccessToken, a.Suppliers[1].AccessToken

	clock.Advance(29 * time.Minute)
	res, err := submit(eng, alpha, "250")
	require.NoError(t, err)
	require.True(t, res.Extended)

	// 上限 1 次，之後窗口內的出價不再延長
	clock.Advance(2 * time.Minute)
	res, err = submit(eng, beta, "240")
	require.NoError(t, err)
	assert.False(t, res.Extended)
}

func TestTick(t *testing.T) {
	clock := newTestClock()
	eng := newTestEngine(t, storage.NewMemory(), clock)
	a := fixtureAuction("Alpha")
	mustCreate(t, eng, a)
	_, err := eng.Start(context.Background(), a.ID)
	require.NoError(t, err)

	// 未到期
	transitioned, err := eng.Tick(context.Background(), a.ID)
	require.NoError(t, err)
	assert.False(t, transitioned)

	clock.Advance(31 * time.Minute)
	transitioned, err = eng.Tick(context.Background(), a.ID)
	require.NoError(t, err)
	assert.True(t, transitioned)

	got, err := eng.Auction(context.Background(), a.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, got.Status)
	assert.False(t, got.Terminated)

	_, err = submit(eng, a.Suppliers[0].AccessToken, "250")
	assert.ErrorIs(t, err, engine.ErrAuctionCompleted)
}

func TestSubmit_RejectsExpiredBeforeTick(t *testing.T) {
	clock := newTestClock()
	pub := &capturePublisher{}
	store := storage.NewMemory()
	eng := newTestEngine(t, store, clock, engine.WithPublisher(pub))
	a := fixtureAuction("Alpha")
	mustCreate(t, eng, a)
	started, err := eng.Start(context.Background(), a.ID)
	require.NoError(t, err)
	end := *started.EndTime

	// 時鐘尚未巡到，但出價抵達時已過 end_time：
	// 核定當下就地收束，不得核定也不得延長
	clock.Advance(31 * time.Minute)
	_, err = submit(eng, a.Suppliers[0].AccessToken, "250")
	assert.ErrorIs(t, err, engine.ErrAuctionCompleted)

	got, err := eng.Auction(context.Background(), a.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, got.Status)
	assert.Equal(t, end, *got.EndTime)
	assert.Equal(t, 0, got.Extensions)
	assert.Len(t, pub.byType(engine.EventAuctionCompleted), 2)

	// 收束已寫穿持久層
	stored, err := store.GetAuction(context.Background(), a.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, stored.Status)
}

func TestStartClock_CompletesExpiredAuction(t *testing.T) {
	defer goleak.VerifyNone(t)

	clock := newTestClock()
	eng := newTestEngine(t, storage.NewMemory(), clock, engine.WithClockInterval(10*time.Millisecond))
	a := fixtureAuction("Alpha")
	mustCreate(t, eng, a)
	_, err := eng.Start(context.Background(), a.ID)
	require.NoError(t, err)

	eng.StartClock()
	defer eng.Close()

	clock.Advance(31 * time.Minute)
	require.Eventually(t, func() bool {
		got, err := eng.Auction(context.Background(), a.ID)
		return err == nil && got.Status == models.StatusCompleted
	}, time.Second, 10*time.Millisecond)
}

func TestSupplierState_Visibility(t *testing.T) {
	clock := newTestClock()
	eng := newTestEngine(t, storage.NewMemory(), clock)
	a := fixtureAuction("Alpha", "Beta", "Gamma", "Delta")
	mustCreate(t, eng, a)
	_, err := eng.Start(context.Background(), a.ID)
	require.NoError(t, err)

	_, err = submit(eng, a.Suppliers[0].AccessToken, "250")
	require.NoError(t, err)
	clock.Advance(time.Minute)
	_, err = submit(eng, a.Suppliers[1].AccessToken, "240")
	require.NoError(t, err)
	clock.Advance(time.Minute)
	_, err = submit(eng, a.Suppliers[2].AccessToken, "230")
	require.NoError(t, err)

	// 供應商只看得到自己的名次、分類與自己的出價，
	// 看不到任何別人的報價數字(包含目前 L1 總價)
	view, err := eng.SupplierState(context.Background(), a.Suppliers[0].AccessToken)
	require.NoError(t, err)
	assert.Equal(t, 3, view.Rank)
	assert.Equal(t, engine.ClassTrailing, view.Classification)
	require.NotNil(t, view.OwnBid)
	assert.True(t, view.OwnBid.TotalAmount.Equal(dec("250")))
	assert.Equal(t, a.Suppliers[0].ID, view.OwnBid.SupplierID)

	view, err = eng.SupplierState(context.Background(), a.Suppliers[2].AccessToken)
	require.NoError(t, err)
	assert.Equal(t, 1, view.Rank)
	assert.Equal(t, engine.ClassLeading, view.Classification)

	// 未出價的供應商：名次 0，沒有自己的出價，視圖中沒有任何報價
	view, err = eng.SupplierState(context.Background(), a.Suppliers[3].AccessToken)
	require.NoError(t, err)
	assert.Equal(t, 0, view.Rank)
	assert.Nil(t, view.OwnBid)
}

func TestConcurrentSubmissions_LedgerStaysConsistent(t *testing.T) {
	clock := newTestClock()
	eng := newTestEngine(t, storage.NewMemory(), clock, engine.WithLockTimeout(5*time.Second))
	names := []string{"S1", "S2", "S3", "S4", "S5"}
	a := fixtureAuction(names...)
	mustCreate(t, eng, a)
	_, err := eng.Start(context.Background(), a.ID)
	require.NoError(t, err)

	var wg sync.WaitGroup
	var mu sync.Mutex
	successes := 0
	for i, s := range a.Suppliers {
		wg.Add(1)
		go func(token string, price int) {
			defer wg.Done()
			_, err := submit(eng, token, fmt.Sprintf("%d", price))
			var violation *engine.RuleViolation
			if err != nil && !errors.As(err, &violation) {
				t.Errorf("unexpected error: %v", err)
				return
			}
			if err == nil {
				mu.Lock()
				successes++
				mu.Unlock()
			}
		}(s.AccessToken, 252-i)
	}
	wg.Wait()

	require.GreaterOrEqual(t, successes, 1)

	// 帳本的回合必須嚴格遞增且無缺口，L1 總價單調不升
	history, err := eng.History(context.Background(), a.ID)
	require.NoError(t, err)
	require.Len(t, history, successes)
	for i, entry := range history {
		assert.Equal(t, i+1, entry.Round)
		if i > 0 {
			assert.True(t, entry.L1Total.LessThanOrEqual(history[i-1].L1Total),
				"round %d leader total must not increase", entry.Round)
		}
	}
}

// blockingStore 讓 PersistAdmission 卡住直到 release 被關閉，用於佔住拍賣鎖。
type blockingStore struct {
	engine.Store
	release chan struct{}
	once    sync.Once
	hit     chan struct{}
}

func (s *blockingStore) PersistAdmission(ctx context.Context, bid *models.Bid, entry *models.BidHistoryEntry, auction *models.Auction) error {
	s.once.Do(func() { close(s.hit) })
	<-s.release
	return s.Store.PersistAdmission(ctx, bid, entry, auction)
}

func TestSubmit_ConcurrencyTimeout(t *testing.T) {
	clock := newTestClock()
	blocking := &blockingStore{
		Store:   storage.NewMemory(),
		release: make(chan struct{}),
		hit:     make(chan struct{}),
	}
	eng := newTestEngine(t, blocking, clock, engine.WithLockTimeout(50*time.Millisecond))
	a := fixtureAuction("Alpha", "Beta")
	mustCreate(t, eng, a)
	_, err := eng.Start(context.Background(), a.ID)
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		_, err := submit(eng, a.Suppliers[0].AccessToken, "250")
		done <- err
	}()

	// 等第一筆出價進入臨界區並卡在持久層
	<-blocking.hit
	_, err = submit(eng, a.Suppliers[1].AccessToken, "240")
	assert.ErrorIs(t, err, engine.ErrConcurrencyTimeout)

	close(blocking.release)
	require.NoError(t, <-done)

	// 逾時的一方重試即可成功
	res, err := submit(eng, a.Suppliers[1].AccessToken, "240")
	require.NoError(t, err)
	assert.Equal(t, 2, res.Round)
}

// failingStore 讓第一次 PersistAdmission 失敗，驗證核定不留半套狀態。
type failingStore struct {
	engine.Store
	failed bool
}

func (s *failingStore) PersistAdmission(ctx context.Context, bid *models.Bid, entry *models.BidHistoryEntry, auction *models.Auction) error {
	if !s.failed {
		s.failed = true
		return errors.New("disk full")
	}
	return s.Store.PersistAdmission(ctx, bid, entry, auction)
}

func TestSubmit_RollsBackOnStoreFailure(t *testing.T) {
	clock := newTestClock()
	store := storage.NewMemory()
	failing := &failingStore{Store: store}
	eng := newTestEngine(t, failing, clock)
	a := fixtureAuction("Alpha")
	mustCreate(t, eng, a)
	_, err := eng.Start(context.Background(), a.ID)
	require.NoError(t, err)
	token := a.Suppliers[0].AccessToken

	_, err = submit(eng, token, "250")
	require.Error(t, err)

	// 失敗的核定不在記憶體留下任何狀態
	board, err := eng.BidList(context.Background(), a.ID)
	require.NoError(t, err)
	assert.Empty(t, board)
	history, err := eng.History(context.Background(), a.ID)
	require.NoError(t, err)
	assert.Empty(t, history)

	// 持久層也不留孤兒出價：另一個引擎實例冷載入後看板與帳本都是空的
	restarted := newTestEngine(t, store, clock)
	board, err = restarted.BidList(context.Background(), a.ID)
	require.NoError(t, err)
	assert.Empty(t, board)
	history, err = restarted.History(context.Background(), a.ID)
	require.NoError(t, err)
	assert.Empty(t, history)

	// 重試從第 1 回合開始
	res, err := submit(eng, token, "250")
	require.NoError(t, err)
	assert.Equal(t, 1, res.Round)
}

func TestColdLoadFromStore(t *testing.T) {
	clock := newTestClock()
	store := storage.NewMemory()

	eng1 := newTestEngine(t, store, clock)
	a := fixtureAuction("Alpha", "Beta")
	mustCreate(t, eng1, a)
	_, err := eng1.Start(context.Background(), a.ID)
	require.NoError(t, err)
	_, err = submit(eng1, a.Suppliers[0].AccessToken, "250")
	require.NoError(t, err)

	// 新的引擎實例從持久層還原拍賣、出價與帳本
	eng2 := newTestEngine(t, store, clock)
	view, err := eng2.SupplierState(context.Background(), a.Suppliers[0].AccessToken)
	require.NoError(t, err)
	assert.Equal(t, 1, view.Rank)
	require.NotNil(t, view.OwnBid)
	assert.True(t, view.OwnBid.TotalAmount.Equal(dec("250")))

	board, err := eng2.BidList(context.Background(), a.ID)
	require.NoError(t, err)
	require.Len(t, board, 1)
	assert.Equal(t, "Alpha", board[0].SupplierName)

	res, err := submit(eng2, a.Suppliers[1].AccessToken, "240")
	require.NoError(t, err)
	assert.Equal(t, 2, res.Round, "回合序號接續持久化的帳本")
}

func TestPublishEvents(t *testing.T) {
	clock := newTestClock()
	pub := &capturePublisher{}
	eng := newTestEngine(t, storage.NewMemory(), clock, engine.WithPublisher(pub))
	a := fixtureAuction("Alpha", "Beta")
	mustCreate(t, eng, a)

	_, err := eng.Start(context.Background(), a.ID)
	require.NoError(t, err)
	started := pub.byType(engine.EventAuctionStarted)
	// 採購方頻道 + 每位供應商各一次
	assert.Len(t, started, 3)

	_, err = submit(eng, a.Suppliers[0].AccessToken, "250")
	require.NoError(t, err)

	boards := pub.byType(engine.EventBidListChanged)
	require.Len(t, boards, 1)
	assert.Equal(t, engine.BuyerChannel(a.ID), boards[0].Channel)
	assert.Len(t, boards[0].Event.Bids, 1)

	// 只有已出價的供應商收到名次事件，且事件只含自己的名次
	ranks := pub.byType(engine.EventRankChanged)
	require.Len(t, ranks, 1)
	assert.Equal(t, engine.SupplierChannel(a.Suppliers[0].AccessToken), ranks[0].Channel)
	assert.Equal(t, 1, ranks[0].Event.Rank)
	assert.Empty(t, ranks[0].Event.Bids)

	require.NoError(t, eng.Terminate(context.Background(), a.ID))
	assert.Len(t, pub.byType(engine.EventAuctionTerminated), 3)
}
