package server

import (
	"strings"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/kaiacity/kaiapass/internal/handlers"
	"github.com/kaiacity/kaiapass/internal/middleware"
)

// RouterDeps are the handlers and limits the router is built from.
type RouterDeps struct {
	Common      *handlers.CommonServices
	RateLimiter *middleware.RateLimiter
	CORSOrigins []string
}

// NewRouter wires middleware and every route under /api/v1.
func NewRouter(deps RouterDeps) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(configureCORS(deps.CORSOrigins))
	router.Use(middleware.CorrelationID())
	router.Use(middleware.RequestLogging())
	if deps.RateLimiter != nil {
		router.Use(deps.RateLimiter.Middleware())
	}

	healthHandler := handlers.NewHealthHandler(deps.Common)
	networkHandler := handlers.NewNetworkHandler(deps.Common)
	walletHandler := handlers.NewWalletHandler(deps.Common)
	gasHandler := handlers.NewGasHandler(deps.Common)
	didHandler := handlers.NewDIDHandler(deps.Common)

	router.GET("/health", healthHandler.Health)

	v1 := router.Group("/api/v1")
	{
		v1.GET("/health", healthHandler.Health)

		networks := v1.Group("/networks")
		{
			networks.GET("", networkHandler.ListNetworks)
			networks.GET("/:chain_id", networkHandler.GetNetwork)
		}

		wallets := v1.Group("/wallets")
		{
			wallets.GET("", walletHandler.ListWallets)
			wallets.POST("/auto-connect", walletHandler.AutoConnect)
			wallets.POST("/disconnect", walletHandler.DisconnectAll)
			wallets.GET("/current", walletHandler.CurrentWallet)
			wallets.GET("/current/balance", walletHandler.GetBalance)
			wallets.POST("/current/sign", walletHandler.SignMessage)
			wallets.POST("/current/switch-network", walletHandler.SwitchNetwork)
			wallets.POST("/:provider/select", walletHandler.SelectWallet)
			wallets.POST("/:provider/connect", walletHandler.ConnectWallet)
		}

		gas := v1.Group("/gas")
		{
			gas.POST("/estimate", gasHandler.Estimate)
			gas.GET("/defaults/:operation", gasHandler.Defaults)
			gas.GET("/stats", gasHandler.Stats)
			gas.GET("/price", gasHandler.AdjustedPrice)
		}

		did := v1.Group("/did")
		{
			did.POST("", didHandler.IssueIdentity)
			did.PUT("", didHandler.UpdateIdentity)
			did.DELETE("", didHandler.DeactivateIdentity)
			did.POST("/estimate", didHandler.EstimateIssue)
			did.GET("/latest", didHandler.LatestDID)
			did.GET("/history", didHandler.MyHistory)
			did.GET("/stats", didHandler.Stats)
			did.GET("/owner", didHandler.Owner)
			did.GET("/contract", didHandler.ContractStatus)
			did.GET("/transactions", didHandler.Transactions)
			did.GET("/registered/:index", didHandler.RegisteredAddressAt)

			admin := did.Group("/admin")
			{
				admin.GET("/registered", didHandler.AllRegisteredAddresses)
				admin.GET("/active", didHandler.AllActiveDIDAddresses)
			}

			address := did.Group("/addresses/:address")
			{
				address.GET("/history", didHandler.History)
				address.GET("/history/:index", didHandler.HistoryEntry)
				address.GET("/active", didHandler.HasActiveDID)
				address.GET("/registered", didHandler.HasRegistered)
				address.GET("/versions", didHandler.VersionCount)
				address.GET("/versions/:version", didHandler.DIDByVersion)
				address.GET("/qr", didHandler.IdentityQRCode)
			}
		}
	}

	return router
}

func configureCORS(origins []string) gin.HandlerFunc {
	corsConfig := cors.DefaultConfig()
	if len(origins) == 0 || (len(origins) == 1 && strings.TrimSpace(origins[0]) == "*") {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = origins
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Accept", middleware.CorrelationIDHeader}
	corsConfig.ExposeHeaders = []string{middleware.CorrelationIDHeader, "X-DID-URI", "X-RateLimit-Limit", "X-RateLimit-Remaining"}
	return cors.New(corsConfig)
}
