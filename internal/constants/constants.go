package constants

// Common string constants used throughout the codebase
const (
	// Log levels
	ErrorLevel = "error"

	// Environments
	ProdEnvironment  = "prod"
	DevEnvironment   = "dev"
	LocalEnvironment = "local"
	TestEnvironment  = "test"

	// Service name attached to structured logs
	ServiceName = "kaiapass"
)

// Chain identifiers of the supported Kaia networks.
const (
	KaiaMainnetChainID uint64 = 8217
	KairosChainID      uint64 = 1001

	// DefaultExpectedChainID is the network DID writes and reads are pinned to.
	DefaultExpectedChainID = KairosChainID
)

// DefaultDIDContractAddress is the deployed KaiaDID registry on Kairos.
const DefaultDIDContractAddress = "0xf2556D5ce076afCbFEC583EBc0876f68FC39329A"

// Provider modes selectable through KAIAPASS_PROVIDER_MODE.
const (
	ProviderModeRPC       = "rpc"
	ProviderModeSimulated = "simulated"
)

// DID lifecycle operations, used for gas defaults, journaling and events.
const (
	OperationIssue      = "issue"
	OperationUpdate     = "update"
	OperationDeactivate = "deactivate"
	OperationGeneric    = "generic"
)

// Event types published for DID lifecycle changes.
const (
	EventDIDCreated     = "DIDCreated"
	EventDIDUpdated     = "DIDUpdated"
	EventDIDDeactivated = "DIDDeactivated"
)

// Provider JSON-RPC error codes (EIP-1193 / EIP-3085).
const (
	ProviderCodeUserRejected      = 4001
	ProviderCodeUnauthorized      = 4100
	ProviderCodeUnsupported       = 4200
	ProviderCodeDisconnected      = 4900
	ProviderCodeChainDisconnect   = 4901
	ProviderCodeUnrecognizedChain = 4902
	ProviderCodeExecutionReverted = 3
)
