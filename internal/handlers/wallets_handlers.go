package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/kaiacity/kaiapass/internal/networks"
	"github.com/kaiacity/kaiapass/internal/wallet"
)

// WalletHandler exposes the wallet façade.
type WalletHandler struct {
	common *CommonServices
}

// NewWalletHandler creates a new instance of WalletHandler
func NewWalletHandler(common *CommonServices) *WalletHandler {
	return &WalletHandler{common: common}
}

// WalletsResponse lists installed providers and every adapter's state.
type WalletsResponse struct {
	Available []wallet.WalletProvider                      `json:"available"`
	States    map[wallet.WalletProvider]wallet.WalletState `json:"states"`
	Current   *wallet.WalletProvider                       `json:"current,omitempty"`
}

// SignRequest is the body of POST /wallets/current/sign.
type SignRequest struct {
	Message string `json:"message" binding:"required"`
}

// SignResponse carries a personal_sign signature.
type SignResponse struct {
	Address   string `json:"address"`
	Signature string `json:"signature"`
}

// SwitchNetworkRequest accepts a decimal or 0x-prefixed chain ID.
type SwitchNetworkRequest struct {
	ChainID string `json:"chain_id" binding:"required"`
}

// BalanceResponse is a balance in peb.
type BalanceResponse struct {
	Address string `json:"address"`
	Balance string `json:"balance"`
}

func (h *WalletHandler) provider(c *gin.Context) (wallet.WalletProvider, bool) {
	raw := c.Param("provider")
	p, ok := wallet.ParseWalletProvider(raw)
	if !ok {
		sendWalletError(c, wallet.NewUnsupportedProviderError(wallet.WalletProvider(raw)))
		return "", false
	}
	return p, true
}

func (h *WalletHandler) current(c *gin.Context) (wallet.Wallet, bool) {
	w := h.common.wallets.CurrentWallet()
	if w == nil {
		sendWalletError(c, wallet.NewPreconditionError("currentWallet", wallet.ReasonNotConnected, "no wallet is selected"))
		return nil, false
	}
	return w, true
}

// ListWallets godoc
// @Summary      List installed wallets and their connection state
// @Tags         wallets
// @Produce      json
// @Success      200  {object}  WalletsResponse
// @Router       /wallets [get]
func (h *WalletHandler) ListWallets(c *gin.Context) {
	resp := WalletsResponse{
		Available: h.common.wallets.GetAvailableWallets(),
		States:    h.common.wallets.WalletStates(),
	}
	if w := h.common.wallets.CurrentWallet(); w != nil {
		p := w.Provider()
		resp.Current = &p
	}
	sendSuccess(c, http.StatusOK, resp)
}

// SelectWallet godoc
// @Summary      Make a wallet current without connecting it
// @Tags         wallets
// @Param        provider  path  string  true  "KAIKAS or METAMASK"
// @Router       /wallets/{provider}/select [post]
func (h *WalletHandler) SelectWallet(c *gin.Context) {
	p, ok := h.provider(c)
	if !ok {
		return
	}
	w, err := h.common.wallets.SelectWallet(c.Request.Context(), p)
	if err != nil {
		sendWalletError(c, err)
		return
	}
	sendSuccess(c, http.StatusOK, w.State())
}

// ConnectWallet godoc
// @Summary      Connect a wallet, disconnecting any other
// @Tags         wallets
// @Param        provider  path  string  true  "KAIKAS or METAMASK"
// @Router       /wallets/{provider}/connect [post]
func (h *WalletHandler) ConnectWallet(c *gin.Context) {
	p, ok := h.provider(c)
	if !ok {
		return
	}
	if _, err := h.common.wallets.Connect(c.Request.Context(), p); err != nil {
		sendWalletError(c, err)
		return
	}
	w, _ := h.common.wallets.Wallet(p)
	sendSuccess(c, http.StatusOK, w.State())
}

// AutoConnect godoc
// @Summary      Connect the first installed wallet that succeeds
// @Tags         wallets
// @Router       /wallets/auto-connect [post]
func (h *WalletHandler) AutoConnect(c *gin.Context) {
	w := h.common.wallets.AutoConnect(c.Request.Context())
	if w == nil {
		sendError(c, http.StatusNotFound, "No wallet could be connected", fmt.Errorf("auto-connect found no usable wallet"))
		return
	}
	sendSuccess(c, http.StatusOK, w.State())
}

// DisconnectAll godoc
// @Summary      Disconnect every wallet
// @Tags         wallets
// @Router       /wallets/disconnect [post]
func (h *WalletHandler) DisconnectAll(c *gin.Context) {
	h.common.wallets.DisconnectAll(c.Request.Context())
	c.JSON(http.StatusOK, SuccessResponse{Message: "All wallets disconnected"})
}

// CurrentWallet godoc
// @Summary      State of the current wallet
// @Tags         wallets
// @Router       /wallets/current [get]
func (h *WalletHandler) CurrentWallet(c *gin.Context) {
	w, ok := h.current(c)
	if !ok {
		return
	}
	sendSuccess(c, http.StatusOK, w.State())
}

// GetBalance godoc
// @Summary      Balance of an address, defaulting to the connected account
// @Tags         wallets
// @Param        address  query  string  false  "Address"
// @Router       /wallets/current/balance [get]
func (h *WalletHandler) GetBalance(c *gin.Context) {
	w, ok := h.current(c)
	if !ok {
		return
	}
	address := c.Query("address")
	if address == "" {
		if state := w.State(); state.IsConnected() {
			address = state.Account.Address
		}
	}
	balance, err := w.GetBalance(c.Request.Context(), address)
	if err != nil {
		sendWalletError(c, err)
		return
	}
	sendSuccess(c, http.StatusOK, BalanceResponse{Address: address, Balance: balance})
}

// SignMessage godoc
// @Summary      Sign a message with the connected account
// @Tags         wallets
// @Accept       json
// @Param        body  body  SignRequest  true  "Message"
// @Router       /wallets/current/sign [post]
func (h *WalletHandler) SignMessage(c *gin.Context) {
	var req SignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		sendError(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	w, ok := h.current(c)
	if !ok {
		return
	}
	sig, err := w.SignMessage(c.Request.Context(), req.Message)
	if err != nil {
		sendWalletError(c, err)
		return
	}
	resp := SignResponse{Signature: sig}
	if state := w.State(); state.Account != nil {
		resp.Address = state.Account.Address
	}
	sendSuccess(c, http.StatusOK, resp)
}

// SwitchNetwork godoc
// @Summary      Ask the wallet to switch chain, adding it when unknown
// @Tags         wallets
// @Accept       json
// @Param        body  body  SwitchNetworkRequest  true  "Target chain"
// @Router       /wallets/current/switch-network [post]
func (h *WalletHandler) SwitchNetwork(c *gin.Context) {
	var req SwitchNetworkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		sendError(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	chainID, err := networks.ParseChainID(req.ChainID)
	if err != nil {
		sendError(c, http.StatusBadRequest, "Invalid chain ID", err)
		return
	}
	w, ok := h.current(c)
	if !ok {
		return
	}
	if err := w.SwitchNetwork(c.Request.Context(), chainID); err != nil {
		sendWalletError(c, err)
		return
	}
	sendSuccess(c, http.StatusOK, w.State())
}
