package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"bidflow/engine"
	"bidflow/models"
)

// Postgres 是以 GORM 實作的持久層
// 拍賣、品項與供應商在建立時一次寫入，之後只更新生命週期欄位；
// 帳本只追加，目前出價以 (auction, supplier) 唯一鍵覆寫。
type Postgres struct {
	db *gorm.DB
}

// NewPostgres 連線資料庫並執行結構遷移。
func NewPostgres(dsn string) (*Postgres, error) {
	const op = "storage.NewPostgres"

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("[%s] Fail to connect database, err=%w", op, err)
	}
	if err := db.AutoMigrate(
		&models.Auction{},
		&models.AuctionItem{},
		&models.Supplier{},
		&models.Bid{},
		&models.BidItemPrice{},
		&models.BidHistoryEntry{},
	); err != nil {
		return nil, fmt.Errorf("[%s] Fail to migrate schema, err=%w", op, err)
	}
	return &Postgres{db: db}, nil
}

// NewPostgresWithDB 以現成的 *gorm.DB 建立持久層，測試用。
func NewPostgresWithDB(db *gorm.DB) *Postgres {
	return &Postgres{db: db}
}

func (p *Postgres) CreateAuction(ctx context.Context, auction *models.Auction) error {
	const op = "Postgres.CreateAuction"
	if err := p.db.WithContext(ctx).Create(auction).Error; err != nil {
		return fmt.Errorf("[%s] Fail to create auction, err=%w", op, err)
	}
	return nil
}

func (p *Postgres) GetAuction(ctx context.Context, id uuid.UUID) (*models.Auction, error) {
	const op = "Postgres.GetAuction"
	auction := models.Auction{}
	result := p.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		Preload("Suppliers", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		Where("id = ?", id).
		First(&auction)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, engine.ErrAuctionNotFound
	}
	if result.Error != nil {
		return nil, fmt.Errorf("[%s] Fail to load auction, err=%w", op, result.Error)
	}
	return &auction, nil
}

func (p *Postgres) ListAuctions(ctx context.Context) ([]*models.Auction, error) {
	const op = "Postgres.ListAuctions"
	auctions := []*models.Auction{}
	result := p.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		Preload("Suppliers", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		Order("created_at DESC").
		Find(&auctions)
	if result.Error != nil {
		return nil, fmt.Errorf("[%s] Fail to list auctions, err=%w", op, result.Error)
	}
	return auctions, nil
}

func (p *Postgres) ListActiveAuctionIDs(ctx context.Context) ([]uuid.UUID, error) {
	const op = "Postgres.ListActiveAuctionIDs"
	ids := []uuid.UUID{}
	result := p.db.WithContext(ctx).
		Model(&models.Auction{}).
		Where("status = ?", models.StatusActive).
		Pluck("id", &ids)
	if result.Error != nil {
		return nil, fmt.Errorf("[%s] Fail to list active auctions, err=%w", op, result.Error)
	}
	return ids, nil
}

func (p *Postgres) FindAuctionIDByToken(ctx context.Context, token string) (uuid.UUID, error) {
	const op = "Postgres.FindAuctionIDByToken"
	supplier := models.Supplier{}
	result := p.db.WithContext(ctx).
		Where("access_token = ?", token).
		First(&supplier)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return uuid.Nil, engine.ErrInvalidToken
	}
	if result.Error != nil {
		return uuid.Nil, fmt.Errorf("[%s] Fail to resolve token, err=%w", op, result.Error)
	}
	return supplier.AuctionID, nil
}

func (p *Postgres) SaveAuctionState(ctx context.Context, auction *models.Auction) error {
	const op = "Postgres.SaveAuctionState"
	result := p.db.WithContext(ctx).
		Model(&models.Auction{}).
		Where("id = ?", auction.ID).
		Updates(map[string]any{
			"status":     auction.Status,
			"start_time": auction.StartTime,
			"end_time":   auction.EndTime,
			"terminated": auction.Terminated,
			"extensions": auction.Extensions,
		})
	if result.Error != nil {
		return fmt.Errorf("[%s] Fail to save auction state, err=%w", op, result.Error)
	}
	if result.RowsAffected == 0 {
		return engine.ErrAuctionNotFound
	}
	return nil
}

func (p *Postgres) SaveSupplier(ctx context.Context, supplier *models.Supplier) error {
	const op = "Postgres.SaveSupplier"
	result := p.db.WithContext(ctx).
		Model(&models.Supplier{}).
		Where("id = ?", supplier.ID).
		Update("concluded", supplier.Concluded)
	if result.Error != nil {
		return fmt.Errorf("[%s] Fail to save supplier, err=%w", op, result.Error)
	}
	if result.RowsAffected == 0 {
		return engine.ErrInvalidToken
	}
	return nil
}

func (p *Postgres) PersistAdmission(ctx context.Context, bid *models.Bid, entry *models.BidHistoryEntry, auction *models.Auction) error {
	const op = "Postgres.PersistAdmission"
	err := p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "auction_id"}, {Name: "supplier_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"supplier_name", "total_amount", "delivery_days",
				"warranty_months", "payment_terms", "remarks", "submitted_at", "updated_at",
			}),
		}).Omit("ItemPrices").Create(bid).Error; err != nil {
			return err
		}
		// 單價明細整批換新
		if err := tx.Where("bid_id = ?", bid.ID).Delete(&models.BidItemPrice{}).Error; err != nil {
			return err
		}
		if len(bid.ItemPrices) > 0 {
			if err := tx.Create(&bid.ItemPrices).Error; err != nil {
				return err
			}
		}
		if err := tx.Create(entry).Error; err != nil {
			return err
		}
		result := tx.Model(&models.Auction{}).
			Where("id = ?", auction.ID).
			Updates(map[string]any{
				"status":     auction.Status,
				"start_time": auction.StartTime,
				"end_time":   auction.EndTime,
				"terminated": auction.Terminated,
				"extensions": auction.Extensions,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return engine.ErrAuctionNotFound
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("[%s] Fail to persist admission, err=%w", op, err)
	}
	return nil
}

func (p *Postgres) ListBids(ctx context.Context, auctionID uuid.UUID) ([]*models.Bid, error) {
	const op = "Postgres.ListBids"
	bids := []*models.Bid{}
	result := p.db.WithContext(ctx).
		Preload("ItemPrices", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		Where("auction_id = ?", auctionID).
		Find(&bids)
	if result.Error != nil {
		return nil, fmt.Errorf("[%s] Fail to list bids, err=%w", op, result.Error)
	}
	return bids, nil
}

func (p *Postgres) ListHistory(ctx context.Context, auctionID uuid.UUID) ([]models.BidHistoryEntry, error) {
	const op = "Postgres.ListHistory"
	entries := []models.BidHistoryEntry{}
	result := p.db.WithContext(ctx).
		Where("auction_id = ?", auctionID).
		Order("round ASC").
		Find(&entries)
	if result.Error != nil {
		return nil, fmt.Errorf("[%s] Fail to list history, err=%w", op, result.Error)
	}
	return entries, nil
}
