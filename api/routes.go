package api

import (
	"github.com/gin-gonic/gin"
)

// RegisterHandlers 把所有路由掛到 router 上。
// /api/auctions 下是採購方操作；/api/supplier/:token 下是憑證範圍的供應商操作。
func RegisterHandlers(router gin.IRouter, impl *ServerImpl) {
	auctions := router.Group("/api/auctions")
	{
		auctions.POST("", impl.PostAuctions)
		auctions.GET("", impl.GetAuctions)
		auctions.GET("/:auctionID", impl.GetAuction)
		auctions.POST("/:auctionID/start", impl.PostAuctionStart)
		auctions.POST("/:auctionID/terminate", impl.PostAuctionTerminate)
		auctions.GET("/:auctionID/bids", impl.GetAuctionBids)
		auctions.GET("/:auctionID/history", impl.GetAuctionHistory)
		auctions.GET("/:auctionID/events", impl.GetAuctionEvents)
	}

	supplier := router.Group("/api/supplier/:token")
	{
		supplier.GET("", impl.GetSupplierState)
		supplier.GET("/bid", impl.GetSupplierBid)
		supplier.POST("/bids", impl.PostSupplierBids)
		supplier.POST("/conclude", impl.PostSupplierConclude)
		supplier.GET("/events", impl.GetSupplierEvents)
	}
}
