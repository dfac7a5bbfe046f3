package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/kaiacity/kaiapass/internal/journal"
	"github.com/kaiacity/kaiapass/internal/logger"
	"github.com/kaiacity/kaiapass/internal/middleware"
	"github.com/kaiacity/kaiapass/internal/networks"
	"github.com/kaiacity/kaiapass/internal/services"
	"github.com/kaiacity/kaiapass/internal/wallet"
	"go.uber.org/zap"
)

// CommonServices holds the dependencies shared by all handlers.
type CommonServices struct {
	wallets  *wallet.Adapter
	did      *services.DIDService
	journal  journal.Journal
	networks *networks.Registry
}

// NewCommonServices creates a new instance of CommonServices.
func NewCommonServices(wallets *wallet.Adapter, did *services.DIDService, j journal.Journal, registry *networks.Registry) *CommonServices {
	return &CommonServices{
		wallets:  wallets,
		did:      did,
		journal:  j,
		networks: registry,
	}
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error         string `json:"error"`
	Kind          string `json:"kind,omitempty"`
	Reason        string `json:"reason,omitempty"`
	TxHash        string `json:"tx_hash,omitempty"`
	CorrelationID string `json:"correlation_id,omitempty"`
}

// SuccessResponse represents a standard success response
type SuccessResponse struct {
	Message string `json:"message"`
}

// sendError logs err and sends a plain JSON error response.
func sendError(c *gin.Context, statusCode int, message string, err error) {
	logger.Error(message,
		zap.Error(err),
		zap.String("path", c.Request.URL.Path),
		zap.String("method", c.Request.Method),
		zap.String("correlation_id", middleware.GetCorrelationID(c)),
	)
	c.JSON(statusCode, ErrorResponse{Error: message, CorrelationID: middleware.GetCorrelationID(c)})
}

// sendWalletError maps a classified wallet error to its HTTP status. Errors
// that are not *wallet.Error are internal.
func sendWalletError(c *gin.Context, err error) {
	var werr *wallet.Error
	if !errors.As(err, &werr) {
		sendError(c, http.StatusInternalServerError, "Internal server error", err)
		return
	}

	status := statusForWalletError(werr)
	message := werr.Message
	switch werr.Kind {
	case wallet.KindGas, wallet.KindNonce, wallet.KindUserRejected, wallet.KindNetwork:
		message = wallet.Describe(err)
	}
	if message == "" {
		message = err.Error()
	}

	log := logger.Log.With(
		zap.String("kind", string(werr.Kind)),
		zap.String("op", werr.Op),
		zap.String("path", c.Request.URL.Path),
		zap.String("correlation_id", middleware.GetCorrelationID(c)),
		zap.Error(err),
	)
	if status >= http.StatusInternalServerError {
		log.Error("Wallet operation failed")
	} else {
		log.Info("Wallet operation rejected")
	}

	c.JSON(status, ErrorResponse{
		Error:         message,
		Kind:          string(werr.Kind),
		Reason:        werr.Reason,
		TxHash:        werr.TxHash,
		CorrelationID: middleware.GetCorrelationID(c),
	})
}

func statusForWalletError(err *wallet.Error) int {
	switch err.Kind {
	case wallet.KindPrecondition:
		switch err.Reason {
		case wallet.ReasonInvalidInput, wallet.ReasonUnsupportedNetwork:
			return http.StatusBadRequest
		case wallet.ReasonOwnerOnly:
			return http.StatusForbidden
		default:
			return http.StatusConflict
		}
	case wallet.KindUnsupportedProvider:
		return http.StatusBadRequest
	case wallet.KindAvailability:
		return http.StatusNotFound
	case wallet.KindUserRejected:
		return http.StatusForbidden
	case wallet.KindGas, wallet.KindNonce:
		return http.StatusUnprocessableEntity
	case wallet.KindNetwork:
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// sendSuccess is a helper function that sends a success response
func sendSuccess(c *gin.Context, statusCode int, data interface{}) {
	c.JSON(statusCode, data)
}

// sendList is a helper function that sends a list response
func sendList(c *gin.Context, items interface{}) {
	c.JSON(http.StatusOK, gin.H{
		"object": "list",
		"data":   items,
	})
}

// parseUintParam reads a non-negative integer path parameter.
func parseUintParam(c *gin.Context, name string) (uint64, bool) {
	v, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil {
		sendError(c, http.StatusBadRequest, "Invalid "+name, err)
		return 0, false
	}
	return v, true
}

// addressParam returns the :address path parameter, mapping "me" to "" so
// the service resolves the connected account.
func addressParam(c *gin.Context) string {
	addr := strings.TrimSpace(c.Param("address"))
	if strings.EqualFold(addr, "me") {
		return ""
	}
	return addr
}
