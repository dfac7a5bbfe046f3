package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/kaiacity/kaiapass/internal/constants"
)

// HealthHandler reports liveness.
type HealthHandler struct {
	common *CommonServices
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status          string `json:"status"`
	Service         string `json:"service"`
	WalletConnected bool   `json:"wallet_connected"`
	ExpectedChainID uint64 `json:"expected_chain_id"`
}

func NewHealthHandler(common *CommonServices) *HealthHandler {
	return &HealthHandler{common: common}
}

// Health godoc
// @Summary      Health check
// @Tags         health
// @Produce      json
// @Success      200  {object}  HealthResponse
// @Router       /health [get]
func (h *HealthHandler) Health(c *gin.Context) {
	connected := false
	if w := h.common.wallets.CurrentWallet(); w != nil {
		connected = w.State().IsConnected()
	}
	c.JSON(http.StatusOK, HealthResponse{
		Status:          "ok",
		Service:         constants.ServiceName,
		WalletConnected: connected,
		ExpectedChainID: h.common.did.ExpectedChainID(),
	})
}
