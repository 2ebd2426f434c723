package router

import (
	"net/http"
	"os"
	"strconv"
	"strings"

	"hako-backend/internal/config"
	"hako-backend/internal/handlers"
	"hako-backend/internal/middleware"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

// corsMiddleware applies the configured CORS policy.
// Priority: environment variable > YAML config > default (*).
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		allowedOrigins := []string{"*"}
		allowCredentials := true
		maxAge := 3600

		if envOrigins := os.Getenv("CORS_ALLOWED_ORIGINS"); envOrigins != "" {
			allowedOrigins = allowedOrigins[:0]
			for _, o := range strings.Split(envOrigins, ",") {
				if trimmed := strings.TrimSpace(o); trimmed != "" {
					allowedOrigins = append(allowedOrigins, trimmed)
				}
			}
		} else if config.AppConfig != nil && len(config.AppConfig.CORS.AllowedOrigins) > 0 {
			allowedOrigins = config.AppConfig.CORS.AllowedOrigins
			allowCredentials = config.AppConfig.CORS.AllowCredentials
			if config.AppConfig.CORS.MaxAge > 0 {
				maxAge = config.AppConfig.CORS.MaxAge
			}
		}

		origin := c.GetHeader("Origin")
		if len(allowedOrigins) == 1 && allowedOrigins[0] == "*" {
			c.Header("Access-Control-Allow-Origin", "*")
		} else if origin != "" {
			for _, allowed := range allowedOrigins {
				if strings.TrimSpace(allowed) == origin {
					c.Header("Access-Control-Allow-Origin", origin)
					break
				}
			}
		}
		if allowCredentials {
			c.Header("Access-Control-Allow-Credentials", "true")
		}
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Authorization")
		c.Header("Access-Control-Max-Age", strconv.Itoa(maxAge))

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// Handlers groups everything the router mounts. Gateway is nil when the
// service runs as a pure home ledger.
type Handlers struct {
	Vault       *handlers.VaultHandler
	Withdrawals *handlers.WithdrawalHandler
	Gateway     *handlers.GatewayHandler
	Events      *handlers.EventHandler
	Auth        *middleware.AuthMiddleware
}

// SetupRouter builds the gin engine with all routes mounted.
func SetupRouter(h *Handlers, logger *logrus.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(corsMiddleware())
	r.Use(middleware.RequestLogger(logger))

	r.GET("/api/health", handlers.HealthCheckHandler)
	r.GET("/api/ready", handlers.ReadinessHandler)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api/v1")

	// Public read surface.
	api.GET("/vault", h.Vault.GetSnapshot)
	api.GET("/holders/:address", h.Vault.GetHolder)
	api.GET("/vaults/positions", h.Vault.GetVaultPositions)
	api.GET("/withdrawals/pending", h.Withdrawals.GetPendingRequests)
	api.GET("/withdrawals/:id", h.Withdrawals.GetRequest)
	api.GET("/events", h.Events.GetEvents)
	api.GET("/events/:subject", h.Events.GetEventsBySubject)

	// Authenticated user surface.
	user := api.Group("")
	user.Use(h.Auth.RequireAuth())
	{
		user.POST("/deposits", h.Vault.Deposit)
		user.GET("/deposits", h.Vault.GetDeposits)
		user.POST("/transfers", h.Vault.Transfer)
		user.POST("/withdrawals", h.Withdrawals.RequestWithdrawal)
		user.GET("/withdrawals", h.Withdrawals.GetRequests)
	}

	// Relayer surface: cross-network record delivery.
	relay := api.Group("/relay")
	relay.Use(h.Auth.RequireAuth(), h.Auth.RequireRole(middleware.RoleRelayer))
	{
		relay.POST("/deposits", h.Vault.RecordRemoteDeposit)
		relay.POST("/identities", h.Vault.RegisterIdentity)
		relay.POST("/withdrawals", h.Withdrawals.RecordRemoteRequest)
	}

	// Operator surface: settlement and delegated booking.
	operator := api.Group("")
	operator.Use(h.Auth.RequireAuth(), h.Auth.RequireRole(middleware.RoleOperator, middleware.RoleAdmin))
	{
		operator.POST("/withdrawals/delegated", h.Withdrawals.RequestWithdrawalFor)
		operator.POST("/withdrawals/:id/complete", h.Withdrawals.CompleteRequest)
		operator.POST("/withdrawals/:id/cancel", h.Withdrawals.CancelRequest)
		operator.POST("/admin/profit", h.Vault.ReportProfit)
		operator.POST("/admin/loss", h.Vault.ReportLoss)
		operator.POST("/admin/vaults/allocate", h.Vault.AllocateToVault)
		operator.POST("/admin/vaults/withdraw", h.Vault.WithdrawFromVault)
		operator.POST("/admin/vaults/redeem", h.Vault.RedeemVault)
		operator.POST("/admin/transfers/outbound", h.Vault.ExecuteOutboundTransfer)
	}

	// Admin surface: configuration and the circuit breaker.
	admin := api.Group("/admin")
	admin.Use(h.Auth.RequireAuth(), h.Auth.RequireRole(middleware.RoleAdmin))
	{
		admin.PUT("/assets", h.Vault.SetAllowedAsset)
		admin.PUT("/destinations/networks", h.Vault.SetDestinationNetwork)
		admin.PUT("/destinations/assets", h.Vault.SetDestinationAsset)
		admin.PUT("/fee", h.Vault.SetFeeConfig)
		admin.POST("/hwm/reset", h.Vault.ResetHighWaterMark)
		admin.POST("/pause", h.Vault.Pause)
		admin.POST("/resume", h.Vault.Resume)
	}

	if h.Gateway != nil {
		gateway := api.Group("/gateway")
		gateway.GET("/custody/:asset", h.Gateway.GetCustody)
		gateway.GET("/payouts/:id", h.Gateway.GetPayout)
		gateway.GET("/vaults/positions", h.Gateway.GetVaultPositions)

		gwRelay := gateway.Group("")
		gwRelay.Use(h.Auth.RequireAuth(), h.Auth.RequireRole(middleware.RoleRelayer, middleware.RoleOperator))
		{
			gwRelay.POST("/deposits", h.Gateway.RecordDeposit)
			gwRelay.POST("/payouts", h.Gateway.RecordPayoutRequest)
			gwRelay.POST("/payouts/:id/complete", h.Gateway.CompletePayout)
			gwRelay.POST("/payouts/:id/cancel", h.Gateway.CancelPayout)
		}

		gwAdmin := gateway.Group("/admin")
		gwAdmin.Use(h.Auth.RequireAuth(), h.Auth.RequireRole(middleware.RoleAdmin))
		{
			gwAdmin.PUT("/assets", h.Gateway.SetAllowedAsset)
			gwAdmin.POST("/pause", h.Gateway.Pause)
			gwAdmin.POST("/resume", h.Gateway.Resume)
			gwAdmin.POST("/vaults/allocate", h.Gateway.AllocateToVault)
			gwAdmin.POST("/vaults/withdraw", h.Gateway.WithdrawFromVault)
		}
	}

	return r
}
