package handlers

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/gin-gonic/gin"
	"github.com/kaiacity/kaiapass/internal/gas"
)

// GasHandler serves fee estimates for registry writes.
type GasHandler struct {
	common *CommonServices
}

// NewGasHandler creates a new instance of GasHandler
func NewGasHandler(common *CommonServices) *GasHandler {
	return &GasHandler{common: common}
}

// EstimateRequest asks for an estimate of a registry call.
type EstimateRequest struct {
	Operation string `json:"operation" binding:"required,oneof=issue update deactivate generic"`
	Data      string `json:"data" binding:"required"`
}

// AdjustedPriceResponse is the optimal gas price scaled by a percentage.
type AdjustedPriceResponse struct {
	Percent  int64  `json:"percent"`
	GasPrice string `json:"gas_price"`
}

// Estimate godoc
// @Summary      Estimate gas for registry call data
// @Tags         gas
// @Accept       json
// @Param        body  body  EstimateRequest  true  "Call"
// @Success      200  {object}  gas.GasEstimate
// @Router       /gas/estimate [post]
func (h *GasHandler) Estimate(c *gin.Context) {
	var req EstimateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		sendError(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	data, err := hexutil.Decode(req.Data)
	if err != nil {
		sendError(c, http.StatusBadRequest, "Invalid call data", err)
		return
	}
	sendSuccess(c, http.StatusOK, h.common.did.EstimateGas(c.Request.Context(), gas.Operation(req.Operation), data))
}

// Defaults godoc
// @Summary      Static fallback estimate for an operation
// @Tags         gas
// @Param        operation  path  string  true  "issue, update, deactivate or generic"
// @Router       /gas/defaults/{operation} [get]
func (h *GasHandler) Defaults(c *gin.Context) {
	op := gas.Operation(c.Param("operation"))
	switch op {
	case gas.OperationIssue, gas.OperationUpdate, gas.OperationDeactivate, gas.OperationGeneric:
	default:
		sendError(c, http.StatusBadRequest, "Unknown operation", fmt.Errorf("operation %q", op))
		return
	}
	sendSuccess(c, http.StatusOK, gas.DefaultEstimate(op))
}

// Stats godoc
// @Summary      Current fee conditions on the expected chain
// @Tags         gas
// @Success      200  {object}  gas.NetworkStats
// @Router       /gas/stats [get]
func (h *GasHandler) Stats(c *gin.Context) {
	sendSuccess(c, http.StatusOK, h.common.did.NetworkGasStats(c.Request.Context()))
}

// AdjustedPrice godoc
// @Summary      Optimal gas price scaled by percent (default 110)
// @Tags         gas
// @Param        percent  query  int  false  "Percent"
// @Router       /gas/price [get]
func (h *GasHandler) AdjustedPrice(c *gin.Context) {
	percent := int64(110)
	if raw := c.Query("percent"); raw != "" {
		p, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || p <= 0 {
			sendError(c, http.StatusBadRequest, "Invalid percent", fmt.Errorf("percent %q", raw))
			return
		}
		percent = p
	}
	sendSuccess(c, http.StatusOK, AdjustedPriceResponse{
		Percent:  percent,
		GasPrice: h.common.did.AdjustedGasPrice(c.Request.Context(), percent),
	})
}
