package api

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/samber/lo"

	"bidflow/engine"
	"bidflow/models"
)

// Create a new auction
// (POST /api/auctions)
func (impl *ServerImpl) PostAuctions(c *gin.Context) {
	const op = "PostAuctions"

	var req createAuctionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Code: "invalid_request", Detail: err.Error()})
		return
	}
	if req.Config.CeilingPrice.Sign() <= 0 {
		c.JSON(http.StatusBadRequest, errorResponse{Code: "invalid_request", Detail: "ceiling_price must be positive"})
		return
	}
	if req.Config.MinDecrement.Sign() < 0 {
		c.JSON(http.StatusBadRequest, errorResponse{Code: "invalid_request", Detail: "min_decrement must not be negative"})
		return
	}

	bufferMinutes := 2
	if req.Config.BufferMinutes != nil {
		bufferMinutes = *req.Config.BufferMinutes
	}
	auction := models.Auction{
		Title:            req.Title,
		ReferenceNumber:  req.ReferenceNumber,
		Description:      impl.htmlChecker.Sanitize(req.Description),
		PaymentTerms:     req.PaymentTerms,
		DeliveryTerms:    req.DeliveryTerms,
		FreightCondition: req.FreightCondition,
		Config: models.AuctionConfig{
			CeilingPrice:    req.Config.CeilingPrice,
			MinDecrement:    req.Config.MinDecrement,
			DurationMinutes: req.Config.DurationMinutes,
			BufferMinutes:   bufferMinutes,
		},
		Items: lo.Map(req.Items, func(item auctionItemRequest, _ int) models.AuctionItem {
			return models.AuctionItem{
				ItemCode:     item.ItemCode,
				Description:  impl.htmlChecker.Sanitize(item.Description),
				Quantity:     item.Quantity,
				Unit:         item.Unit,
				CeilingPrice: item.CeilingPrice,
				MinDecrement: item.MinDecrement,
			}
		}),
		Suppliers: lo.Map(req.Suppliers, func(s createSupplierRequest, _ int) models.Supplier {
			return models.Supplier{
				Name:          s.Name,
				ContactPerson: s.ContactPerson,
				Email:         s.Email,
				Phone:         s.Phone,
			}
		}),
	}

	if err := impl.engine.CreateAuction(c.Request.Context(), &auction); err != nil {
		slog.Error("Fail to create auction", slog.String("op", op), slog.Any("error", err))
		c.JSON(http.StatusBadRequest, errorResponse{Code: "invalid_request", Detail: err.Error()})
		return
	}

	c.Header("Location", "/api/auctions/"+auction.ID.String())
	c.JSON(http.StatusCreated, createAuctionResponse{
		Auction: toAuctionView(&auction),
		Suppliers: lo.Map(auction.Suppliers, func(s models.Supplier, _ int) supplierCredential {
			return supplierCredential{Name: s.Name, AccessToken: s.AccessToken}
		}),
	})
}

// List auctions
// (GET /api/auctions)
func (impl *ServerImpl) GetAuctions(c *gin.Context) {
	const op = "GetAuctions"

	summaries, err := impl.engine.ListAuctions(c.Request.Context())
	if err != nil {
		slog.Error("Fail to list auctions", slog.String("op", op), slog.Any("error", err))
		writeEngineError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"count": len(summaries),
		"auctions": lo.Map(summaries, func(s engine.AuctionSummary, _ int) auctionSummaryView {
			return auctionSummaryView{
				Auction:     toAuctionView(&s.Auction),
				BidCount:    s.BidCount,
				LeaderTotal: s.LeaderTotal,
			}
		}),
	})
}

// Get auction details
// (GET /api/auctions/{auctionID})
func (impl *ServerImpl) GetAuction(c *gin.Context) {
	auctionID, ok := parseAuctionID(c)
	if !ok {
		return
	}
	auction, err := impl.engine.Auction(c.Request.Context(), auctionID)
	if err != nil {
		writeEngineError(c, err)
		return
	}
	c.JSON(http.StatusOK, toAuctionView(auction))
}

// Start an auction
// (POST /api/auctions/{auctionID}/start)
func (impl *ServerImpl) PostAuctionStart(c *gin.Context) {
	auctionID, ok := parseAuctionID(c)
	if !ok {
		return
	}
	auction, err := impl.engine.Start(c.Request.Context(), auctionID)
	if err != nil {
		writeEngineError(c, err)
		return
	}
	c.JSON(http.StatusOK, toAuctionView(auction))
}

// Terminate an auction early
// (POST /api/auctions/{auctionID}/terminate)
func (impl *ServerImpl) PostAuctionTerminate(c *gin.Context) {
	auctionID, ok := parseAuctionID(c)
	if !ok {
		return
	}
	if err := impl.engine.Terminate(c.Request.Context(), auctionID); err != nil {
		writeEngineError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Get the ranked bid board
// (GET /api/auctions/{auctionID}/bids)
func (impl *ServerImpl) GetAuctionBids(c *gin.Context) {
	auctionID, ok := parseAuctionID(c)
	if !ok {
		return
	}
	ranked, err := impl.engine.BidList(c.Request.Context(), auctionID)
	if err != nil {
		writeEngineError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": len(ranked), "bids": ranked})
}

// Get the auction ledger
// (GET /api/auctions/{auctionID}/history)
func (impl *ServerImpl) GetAuctionHistory(c *gin.Context) {
	auctionID, ok := parseAuctionID(c)
	if !ok {
		return
	}
	history, err := impl.engine.History(c.Request.Context(), auctionID)
	if err != nil {
		writeEngineError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": len(history), "history": toHistoryViews(history)})
}

// Track auction events (buyer board)
// (GET /api/auctions/{auctionID}/events)
func (impl *ServerImpl) GetAuctionEvents(c *gin.Context) {
	auctionID, ok := parseAuctionID(c)
	if !ok {
		return
	}
	// 確認拍賣存在才開放串流
	if _, err := impl.engine.Auction(c.Request.Context(), auctionID); err != nil {
		writeEngineError(c, err)
		return
	}
	impl.serveEvents(c, engine.BuyerChannel(auctionID))
}

// Get supplier state (restricted view)
// (GET /api/supplier/{token})
func (impl *ServerImpl) GetSupplierState(c *gin.Context) {
	view, err := impl.engine.SupplierState(c.Request.Context(), c.Param("token"))
	if err != nil {
		writeEngineError(c, err)
		return
	}
	c.JSON(http.StatusOK, supplierStateResponse{
		Auction:        toAuctionView(&view.Auction),
		SupplierName:   view.Supplier.Name,
		Concluded:      view.Supplier.Concluded,
		Rank:           view.Rank,
		Classification: view.Classification,
		OwnBid:         toOwnBidView(view.OwnBid),
	})
}

// Get the supplier's own current bid
// (GET /api/supplier/{token}/bid)
func (impl *ServerImpl) GetSupplierBid(c *gin.Context) {
	view, err := impl.engine.SupplierState(c.Request.Context(), c.Param("token"))
	if err != nil {
		writeEngineError(c, err)
		return
	}
	if view.OwnBid == nil {
		c.JSON(http.StatusNotFound, errorResponse{Code: "bid_not_found"})
		return
	}
	c.JSON(http.StatusOK, toOwnBidView(view.OwnBid))
}

// Submit a bid
// (POST /api/supplier/{token}/bids)
func (impl *ServerImpl) PostSupplierBids(c *gin.Context) {
	var req submitBidRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Code: "invalid_request", Detail: err.Error()})
		return
	}
	result, err := impl.engine.Submit(c.Request.Context(), c.Param("token"), engine.SubmitRequest{
		ItemBids: lo.Map(req.ItemBids, func(ib itemBidRequest, _ int) engine.ItemBid {
			return engine.ItemBid{ItemCode: ib.ItemCode, UnitPrice: ib.UnitPrice}
		}),
		DeliveryDays:   req.DeliveryDays,
		WarrantyMonths: req.WarrantyMonths,
		PaymentTerms:   req.PaymentTerms,
		Remarks:        impl.htmlChecker.Sanitize(req.Remarks),
	})
	if err != nil {
		writeEngineError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// Conclude bidding for this supplier
// (POST /api/supplier/{token}/conclude)
func (impl *ServerImpl) PostSupplierConclude(c *gin.Context) {
	if err := impl.engine.Conclude(c.Request.Context(), c.Param("token")); err != nil {
		writeEngineError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Track supplier events (own rank only)
// (GET /api/supplier/{token}/events)
func (impl *ServerImpl) GetSupplierEvents(c *gin.Context) {
	token := c.Param("token")
	// 確認憑證有效才開放串流
	if _, err := impl.engine.SupplierState(c.Request.Context(), token); err != nil {
		writeEngineError(c, err)
		return
	}
	impl.serveEvents(c, engine.SupplierChannel(token))
}

// serveEvents 把頻道上的事件以SSE送給客戶端，連線斷開時自動退訂。
func (impl *ServerImpl) serveEvents(c *gin.Context, channelName string) {
	const op = "serveEvents"

	w := c.Writer
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Transfer-Encoding", "chunked")
	ch, err := impl.sseManager.Subscribe(channelName)
	if err != nil {
		slog.Error("Fail to subscribe to events", slog.String("op", op), slog.Any("error", err))
		c.JSON(http.StatusInternalServerError, errorResponse{Code: "internal_error"})
		return
	}
	for {
		select {
		case <-w.CloseNotify():
			impl.sseManager.Unsubscribe(channelName, ch)
			return
		case event, ok := <-ch:
			if !ok {
				return
			}
			c.SSEvent(string(event.Type), event)
			w.Flush()
		// 30秒沒有事件就發送一個空行，確保瀏覽器和Cloudflare不會斷開連線
		case <-time.After(30 * time.Second):
			w.WriteString("\n\n")
			w.Flush()
		}
	}
}

func parseAuctionID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("auctionID"))
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{
			Code:   "invalid_request",
			Detail: fmt.Sprintf("invalid auction id: %s", c.Param("auctionID")),
		})
		return uuid.Nil, false
	}
	return id, true
}
