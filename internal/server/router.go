package server

import (
	"auctionhouse/internal/handler"

	"github.com/gin-gonic/gin"
)

// SetupRouter configures all Gin routes for the application
func SetupRouter(auctionSvc handler.AuctionServiceInterface, bidSvc handler.BidServiceInterface, pointSvc handler.PointServiceInterface) *gin.Engine {
	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(RequestLoggerMiddleware)

	auctionHandler := handler.NewAuctionHandler(auctionSvc)
	bidHandler := handler.NewBidHandler(bidSvc)
	pointHandler := handler.NewPointHandler(pointSvc)

	auctions := router.Group("/auctions")
	{
		auctions.POST("", auctionHandler.CreateAuctionHandler)
		auctions.GET("/:auction_id", auctionHandler.GetAuctionHandler)
		auctions.DELETE("/:auction_id", auctionHandler.CancelAuctionHandler)
		auctions.POST("/:auction_id/close", auctionHandler.CloseAuctionHandler)
		auctions.POST("/:auction_id/bids", bidHandler.PlaceBidHandler)
	}

	users := router.Group("/users")
	{
		users.POST("/:user_id/points", pointHandler.ChargePointHandler)
		users.GET("/:user_id/points", pointHandler.ReadBalanceHandler)
	}

	return router
}
