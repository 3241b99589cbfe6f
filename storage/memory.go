package storage

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"bidflow/engine"
	"bidflow/models"
)

// Memory 是記憶體持久層，提供與 Postgres 相同的語意，
// 供測試與單機試跑使用。所有回傳值都是複本，不與內部狀態共享。
type Memory struct {
	mu       sync.RWMutex
	auctions map[uuid.UUID]*models.Auction
	order    []uuid.UUID // 建立順序
	tokens   map[string]uuid.UUID
	bids     map[uuid.UUID]map[uuid.UUID]*models.Bid // auction → supplier → bid
	history  map[uuid.UUID][]models.BidHistoryEntry
}

// NewMemory 建立空的記憶體持久層。
func NewMemory() *Memory {
	return &Memory{
		auctions: make(map[uuid.UUID]*models.Auction),
		tokens:   make(map[string]uuid.UUID),
		bids:     make(map[uuid.UUID]map[uuid.UUID]*models.Bid),
		history:  make(map[uuid.UUID][]models.BidHistoryEntry),
	}
}

func (m *Memory) CreateAuction(_ context.Context, auction *models.Auction) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	copied := cloneAuction(auction)
	m.auctions[auction.ID] = copied
	m.order = append(m.order, auction.ID)
	for i := range copied.Suppliers {
		m.tokens[copied.Suppliers[i].AccessToken] = auction.ID
	}
	m.bids[auction.ID] = make(map[uuid.UUID]*models.Bid)
	return nil
}

func (m *Memory) GetAuction(_ context.Context, id uuid.UUID) (*models.Auction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	auction, ok := m.auctions[id]
	if !ok {
		return nil, engine.ErrAuctionNotFound
	}
	return cloneAuction(auction), nil
}

func (m *Memory) ListAuctions(_ context.Context) ([]*models.Auction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	// 新到舊
	result := make([]*models.Auction, 0, len(m.order))
	for i := len(m.order) - 1; i >= 0; i-- {
		result = append(result, cloneAuction(m.auctions[m.order[i]]))
	}
	return result, nil
}

func (m *Memory) ListActiveAuctionIDs(_ context.Context) ([]uuid.UUID, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var ids []uuid.UUID
	for _, id := range m.order {
		if m.auctions[id].Status == models.StatusActive {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (m *Memory) FindAuctionIDByToken(_ context.Context, token string) (uuid.UUID, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.tokens[token]
	if !ok {
		return uuid.Nil, engine.ErrInvalidToken
	}
	return id, nil
}

func (m *Memory) SaveAuctionState(_ context.Context, auction *models.Auction) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored, ok := m.auctions[auction.ID]
	if !ok {
		return engine.ErrAuctionNotFound
	}
	stored.Status = auction.Status
	stored.StartTime = auction.StartTime
	stored.EndTime = auction.EndTime
	stored.Terminated = auction.Terminated
	stored.Extensions = auction.Extensions
	return nil
}

func (m *Memory) SaveSupplier(_ context.Context, supplier *models.Supplier) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	auction, ok := m.auctions[supplier.AuctionID]
	if !ok {
		return engine.ErrAuctionNotFound
	}
	for i := range auction.Suppliers {
		if auction.Suppliers[i].ID == supplier.ID {
			auction.Suppliers[i].Concluded = supplier.Concluded
			return nil
		}
	}
	return engine.ErrInvalidToken
}

func (m *Memory) PersistAdmission(_ context.Context, bid *models.Bid, entry *models.BidHistoryEntry, auction *models.Auction) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	bySupplier, ok := m.bids[bid.AuctionID]
	if !ok {
		return engine.ErrAuctionNotFound
	}
	stored, ok := m.auctions[auction.ID]
	if !ok {
		return engine.ErrAuctionNotFound
	}

	// 同一把鎖內一起生效，不留孤兒出價
	bySupplier[bid.SupplierID] = cloneBid(bid)
	m.history[entry.AuctionID] = append(m.history[entry.AuctionID], *entry)
	stored.Status = auction.Status
	stored.StartTime = auction.StartTime
	stored.EndTime = auction.EndTime
	stored.Terminated = auction.Terminated
	stored.Extensions = auction.Extensions
	return nil
}

func (m *Memory) ListBids(_ context.Context, auctionID uuid.UUID) ([]*models.Bid, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	bySupplier, ok := m.bids[auctionID]
	if !ok {
		return nil, engine.ErrAuctionNotFound
	}
	bids := make([]*models.Bid, 0, len(bySupplier))
	for _, bid := range bySupplier {
		bids = append(bids, cloneBid(bid))
	}
	return bids, nil
}

func (m *Memory) ListHistory(_ context.Context, auctionID uuid.UUID) ([]models.BidHistoryEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if _, ok := m.auctions[auctionID]; !ok {
		return nil, engine.ErrAuctionNotFound
	}
	return append([]models.BidHistoryEntry(nil), m.history[auctionID]...), nil
}

func cloneAuction(a *models.Auction) *models.Auction {
	copied := *a
	copied.Items = append([]models.AuctionItem(nil), a.Items...)
	copied.Suppliers = append([]models.Supplier(nil), a.Suppliers...)
	return &copied
}

func cloneBid(b *models.Bid) *models.Bid {
	copied := *b
	copied.ItemPrices = append([]models.BidItemPrice(nil), b.ItemPrices...)
	return &copied
}
