package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/kaiacity/kaiapass/internal/codec"
	"github.com/kaiacity/kaiapass/internal/journal"
	"github.com/kaiacity/kaiapass/internal/services"
	"github.com/kaiacity/kaiapass/internal/wallet"
)

// DIDHandler exposes the DID registry operations.
type DIDHandler struct {
	common *CommonServices
}

// NewDIDHandler creates a new instance of DIDHandler
func NewDIDHandler(common *CommonServices) *DIDHandler {
	return &DIDHandler{common: common}
}

// IdentityRequest is the body of issue and update.
type IdentityRequest struct {
	Name      string `json:"name" binding:"required"`
	BirthDate string `json:"birth_date"`
	Address   string `json:"address"`
	Phone     string `json:"phone"`
}

func (r IdentityRequest) info() codec.IdentityInfo {
	return codec.IdentityInfo{Name: r.Name, BirthDate: r.BirthDate, Address: r.Address, Phone: r.Phone}
}

// TransactionResponse describes a confirmed registry write.
type TransactionResponse struct {
	wallet.TransactionResult
	ExplorerURL string `json:"explorer_url,omitempty"`
}

// DocumentResponse wraps a possibly absent DID document.
type DocumentResponse struct {
	Document *codec.DIDDocument `json:"document"`
}

// BoolResponse is a single flag.
type BoolResponse struct {
	Address string `json:"address,omitempty"`
	Value   bool   `json:"value"`
}

// CountResponse is a single counter.
type CountResponse struct {
	Address string `json:"address,omitempty"`
	Count   uint64 `json:"count"`
}

func (h *DIDHandler) bindIdentity(c *gin.Context) (codec.IdentityInfo, bool) {
	var req IdentityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		sendError(c, http.StatusBadRequest, "Invalid request body", err)
		return codec.IdentityInfo{}, false
	}
	return req.info(), true
}

func (h *DIDHandler) sendTransaction(c *gin.Context, status int, result *wallet.TransactionResult) {
	resp := TransactionResponse{TransactionResult: *result}
	if n, ok := h.common.networks.Lookup(h.common.did.ExpectedChainID()); ok {
		resp.ExplorerURL = n.ExplorerTxURL(result.Hash)
	}
	sendSuccess(c, status, resp)
}

// IssueIdentity godoc
// @Summary      Issue a DID for the connected account
// @Tags         did
// @Accept       json
// @Param        body  body  IdentityRequest  true  "Identity"
// @Success      201  {object}  TransactionResponse
// @Router       /did [post]
func (h *DIDHandler) IssueIdentity(c *gin.Context) {
	info, ok := h.bindIdentity(c)
	if !ok {
		return
	}
	result, err := h.common.did.IssueIdentity(c.Request.Context(), info)
	if err != nil {
		sendWalletError(c, err)
		return
	}
	h.sendTransaction(c, http.StatusCreated, result)
}

// UpdateIdentity godoc
// @Summary      Replace the active DID with a new version
// @Tags         did
// @Accept       json
// @Param        body  body  IdentityRequest  true  "Identity"
// @Router       /did [put]
func (h *DIDHandler) UpdateIdentity(c *gin.Context) {
	info, ok := h.bindIdentity(c)
	if !ok {
		return
	}
	result, err := h.common.did.UpdateIdentity(c.Request.Context(), info)
	if err != nil {
		sendWalletError(c, err)
		return
	}
	h.sendTransaction(c, http.StatusOK, result)
}

// DeactivateIdentity godoc
// @Summary      Deactivate the latest DID
// @Tags         did
// @Router       /did [delete]
func (h *DIDHandler) DeactivateIdentity(c *gin.Context) {
	result, err := h.common.did.DeactivateIdentity(c.Request.Context())
	if err != nil {
		sendWalletError(c, err)
		return
	}
	h.sendTransaction(c, http.StatusOK, result)
}

// EstimateIssue godoc
// @Summary      Estimate the gas of issuing identity
// @Tags         did
// @Accept       json
// @Param        body  body  IdentityRequest  true  "Identity"
// @Router       /did/estimate [post]
func (h *DIDHandler) EstimateIssue(c *gin.Context) {
	info, ok := h.bindIdentity(c)
	if !ok {
		return
	}
	sendSuccess(c, http.StatusOK, h.common.did.EstimateIssueGas(c.Request.Context(), info))
}

// LatestDID godoc
// @Summary      The connected account's current DID, or null
// @Tags         did
// @Router       /did/latest [get]
func (h *DIDHandler) LatestDID(c *gin.Context) {
	doc, err := h.common.did.FetchLatestDID(c.Request.Context())
	if err != nil {
		sendWalletError(c, err)
		return
	}
	sendSuccess(c, http.StatusOK, DocumentResponse{Document: doc})
}

// MyHistory godoc
// @Summary      Every version of the connected account's DID
// @Tags         did
// @Router       /did/history [get]
func (h *DIDHandler) MyHistory(c *gin.Context) {
	docs, err := h.common.did.FetchMyHistory(c.Request.Context())
	if err != nil {
		sendWalletError(c, err)
		return
	}
	sendList(c, docs)
}

// History godoc
// @Summary      Every version of an address's DID
// @Tags         did
// @Param        address  path  string  true  "Address or me"
// @Router       /did/addresses/{address}/history [get]
func (h *DIDHandler) History(c *gin.Context) {
	docs, err := h.common.did.FetchHistory(c.Request.Context(), addressParam(c))
	if err != nil {
		sendWalletError(c, err)
		return
	}
	sendList(c, docs)
}

// HasActiveDID godoc
// @Summary      Whether the address holds an active DID
// @Tags         did
// @Router       /did/addresses/{address}/active [get]
func (h *DIDHandler) HasActiveDID(c *gin.Context) {
	addr := addressParam(c)
	v, err := h.common.did.HasActiveDID(c.Request.Context(), addr)
	if err != nil {
		sendWalletError(c, err)
		return
	}
	sendSuccess(c, http.StatusOK, BoolResponse{Address: addr, Value: v})
}

// HasRegistered godoc
// @Summary      Whether the address ever held a DID
// @Tags         did
// @Router       /did/addresses/{address}/registered [get]
func (h *DIDHandler) HasRegistered(c *gin.Context) {
	addr := addressParam(c)
	v, err := h.common.did.HasRegistered(c.Request.Context(), addr)
	if err != nil {
		sendWalletError(c, err)
		return
	}
	sendSuccess(c, http.StatusOK, BoolResponse{Address: addr, Value: v})
}

// VersionCount godoc
// @Summary      Number of DID versions of the address
// @Tags         did
// @Router       /did/addresses/{address}/versions [get]
func (h *DIDHandler) VersionCount(c *gin.Context) {
	addr := addressParam(c)
	n, err := h.common.did.VersionCount(c.Request.Context(), addr)
	if err != nil {
		sendWalletError(c, err)
		return
	}
	sendSuccess(c, http.StatusOK, CountResponse{Address: addr, Count: n})
}

// DIDByVersion godoc
// @Summary      One version of the address's DID
// @Tags         did
// @Router       /did/addresses/{address}/versions/{version} [get]
func (h *DIDHandler) DIDByVersion(c *gin.Context) {
	version, ok := parseUintParam(c, "version")
	if !ok {
		return
	}
	doc, err := h.common.did.DIDByVersion(c.Request.Context(), addressParam(c), version)
	if err != nil {
		sendWalletError(c, err)
		return
	}
	sendSuccess(c, http.StatusOK, DocumentResponse{Document: doc})
}

// HistoryEntry godoc
// @Summary      The history entry at a zero-based index
// @Tags         did
// @Router       /did/addresses/{address}/history/{index} [get]
func (h *DIDHandler) HistoryEntry(c *gin.Context) {
	index, ok := parseUintParam(c, "index")
	if !ok {
		return
	}
	doc, err := h.common.did.HistoryEntry(c.Request.Context(), addressParam(c), index)
	if err != nil {
		sendWalletError(c, err)
		return
	}
	sendSuccess(c, http.StatusOK, DocumentResponse{Document: doc})
}

// IdentityQRCode godoc
// @Summary      PNG QR code of the address's DID URI
// @Tags         did
// @Produce      png
// @Param        size  query  int  false  "Edge length in pixels"
// @Router       /did/addresses/{address}/qr [get]
func (h *DIDHandler) IdentityQRCode(c *gin.Context) {
	size := 0
	if raw := c.Query("size"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 || n > 2048 {
			sendError(c, http.StatusBadRequest, "Invalid size", err)
			return
		}
		size = n
	}
	png, uri, err := h.common.did.IdentityQRCode(addressParam(c), size)
	if err != nil {
		sendWalletError(c, err)
		return
	}
	c.Header("X-DID-URI", uri)
	c.Data(http.StatusOK, "image/png", png)
}

// Stats godoc
// @Summary      Registry-wide counters and owner
// @Tags         did
// @Success      200  {object}  services.RegistryStats
// @Router       /did/stats [get]
func (h *DIDHandler) Stats(c *gin.Context) {
	stats, err := h.common.did.Stats(c.Request.Context())
	if err != nil {
		sendWalletError(c, err)
		return
	}
	sendSuccess(c, http.StatusOK, stats)
}

// Owner godoc
// @Summary      Registry owner
// @Tags         did
// @Router       /did/owner [get]
func (h *DIDHandler) Owner(c *gin.Context) {
	owner, err := h.common.did.Owner(c.Request.Context())
	if err != nil {
		sendWalletError(c, err)
		return
	}
	sendSuccess(c, http.StatusOK, gin.H{"owner": owner})
}

// ContractStatus godoc
// @Summary      Whether the registry is deployed on the wallet's chain
// @Tags         did
// @Router       /did/contract [get]
func (h *DIDHandler) ContractStatus(c *gin.Context) {
	deployed, err := h.common.did.ContractDeployed(c.Request.Context())
	if err != nil {
		sendWalletError(c, err)
		return
	}
	sendSuccess(c, http.StatusOK, gin.H{
		"address":           h.common.did.ContractAddress(),
		"deployed":          deployed,
		"expected_chain_id": h.common.did.ExpectedChainID(),
	})
}

// RegisteredAddressAt godoc
// @Summary      Registered address at a zero-based index
// @Tags         did
// @Router       /did/registered/{index} [get]
func (h *DIDHandler) RegisteredAddressAt(c *gin.Context) {
	index, ok := parseUintParam(c, "index")
	if !ok {
		return
	}
	addr, err := h.common.did.RegisteredAddressAt(c.Request.Context(), index)
	if err != nil {
		sendWalletError(c, err)
		return
	}
	sendSuccess(c, http.StatusOK, gin.H{"index": index, "address": addr})
}

// AllRegisteredAddresses godoc
// @Summary      Every registered address (owner only)
// @Tags         did
// @Router       /did/admin/registered [get]
func (h *DIDHandler) AllRegisteredAddresses(c *gin.Context) {
	list, err := h.common.did.AllRegisteredAddresses(c.Request.Context())
	if err != nil {
		sendWalletError(c, err)
		return
	}
	sendList(c, list)
}

// AllActiveDIDAddresses godoc
// @Summary      Every address with an active DID (owner only)
// @Tags         did
// @Router       /did/admin/active [get]
func (h *DIDHandler) AllActiveDIDAddresses(c *gin.Context) {
	list, err := h.common.did.AllActiveDIDAddresses(c.Request.Context())
	if err != nil {
		sendWalletError(c, err)
		return
	}
	sendList(c, list)
}

// Transactions godoc
// @Summary      Journaled DID writes, newest first
// @Tags         did
// @Param        address  query  string  false  "Filter by address"
// @Param        limit    query  int     false  "Maximum records"
// @Router       /did/transactions [get]
func (h *DIDHandler) Transactions(c *gin.Context) {
	limit := journal.DefaultListLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > 500 {
			sendError(c, http.StatusBadRequest, "Invalid limit", err)
			return
		}
		limit = n
	}
	records, err := h.common.journal.List(c.Request.Context(), c.Query("address"), limit)
	if err != nil {
		sendError(c, http.StatusInternalServerError, "Failed to list transactions", err)
		return
	}
	if records == nil {
		records = []services.TransactionRecord{}
	}
	sendList(c, records)
}
