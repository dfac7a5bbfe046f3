package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/kaiacity/kaiapass/internal/networks"
)

// NetworkHandler serves the supported network registry.
type NetworkHandler struct {
	common *CommonServices
}

// NewNetworkHandler creates a new instance of NetworkHandler
func NewNetworkHandler(common *CommonServices) *NetworkHandler {
	return &NetworkHandler{common: common}
}

// NetworkResponse is a network as exposed over HTTP.
type NetworkResponse struct {
	Object string `json:"object"`
	networks.Network
	ChainIDHex string `json:"chain_id_hex"`
}

func toNetworkResponse(n networks.Network) NetworkResponse {
	return NetworkResponse{Object: "network", Network: n, ChainIDHex: n.ChainIDHex()}
}

// ListNetworks godoc
// @Summary      List supported networks
// @Tags         networks
// @Produce      json
// @Router       /networks [get]
func (h *NetworkHandler) ListNetworks(c *gin.Context) {
	all := h.common.networks.All()
	out := make([]NetworkResponse, 0, len(all))
	for _, n := range all {
		out = append(out, toNetworkResponse(n))
	}
	sendList(c, out)
}

// GetNetwork godoc
// @Summary      Get a network by decimal or 0x-prefixed chain ID
// @Tags         networks
// @Produce      json
// @Param        chain_id  path  string  true  "Chain ID"
// @Router       /networks/{chain_id} [get]
func (h *NetworkHandler) GetNetwork(c *gin.Context) {
	chainID, err := networks.ParseChainID(c.Param("chain_id"))
	if err != nil {
		sendError(c, http.StatusBadRequest, "Invalid chain ID", err)
		return
	}
	n, ok := h.common.networks.Lookup(chainID)
	if !ok {
		sendError(c, http.StatusNotFound, "Network not found", fmt.Errorf("chain %d is not supported", chainID))
		return
	}
	sendSuccess(c, http.StatusOK, toNetworkResponse(n))
}
