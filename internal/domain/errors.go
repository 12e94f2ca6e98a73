package domain

import (
	"errors"
	"fmt"
)

// ErrorKind classifies failures by how the caller can recover from them
type ErrorKind string

const (
	// KindConfiguration is fatal for the operation until configuration is redeployed
	KindConfiguration ErrorKind = "configuration"
	// KindTransport covers network and decode failures; retry by re-invoking
	KindTransport ErrorKind = "transport"
	// KindPrecondition requires the user to take a different action first
	KindPrecondition ErrorKind = "precondition"
	// KindChain is a failed chain write; the record is untouched and retry is safe
	KindChain ErrorKind = "chain"
	// KindFinalization means the chain write succeeded but the record update failed
	KindFinalization ErrorKind = "finalization"
	// KindBusy is a debounced or locked invocation
	KindBusy ErrorKind = "busy"
	// KindState is an operation the session state does not allow
	KindState ErrorKind = "state"
	// KindInternal is anything else
	KindInternal ErrorKind = "internal"
)

var (
	// ErrIneligible is returned when no identity can be resolved from the host session
	ErrIneligible = errors.New("unable to determine eligibility")

	// ErrNoAssignment is returned when minting without a generated record
	ErrNoAssignment = errors.New("no generated NFT to mint")

	// ErrAlreadyMinted is returned when the record is already minted
	ErrAlreadyMinted = errors.New("you already minted this NFT")

	// ErrAlreadyGenerated is returned when generate is invoked twice in one session
	ErrAlreadyGenerated = errors.New("NFT already generated")

	// ErrInsufficientBalance is returned when the wallet cannot cover the mint price
	ErrInsufficientBalance = errors.New("insufficient balance for mint price")

	// ErrNoWalletConnector is returned when no wallet can be connected
	ErrNoWalletConnector = errors.New("no wallet connector available")

	// ErrMissingCredentials is returned when neither pinning credential shape is configured
	ErrMissingCredentials = errors.New("missing pinata credentials (JWT or API key)")

	// ErrMissingNameOrImage is returned when a metadata document lacks name or image
	ErrMissingNameOrImage = errors.New("missing name or image")

	// ErrNonJSONResponse is returned when the pinning service answers with a non-JSON body
	ErrNonJSONResponse = errors.New("invalid response from pinata")

	// ErrUploadFailed is returned when the pinning service does not return a content hash
	ErrUploadFailed = errors.New("pinata upload failed")

	// ErrTransactionReverted is returned when the mint transaction is mined but reverted
	ErrTransactionReverted = errors.New("mint transaction reverted")

	// ErrTransactionPending is returned when a submitted mint has no receipt yet
	ErrTransactionPending = errors.New("mint transaction still pending")

	// ErrFinalizationFailed is returned when the chain write succeeded but the record was not updated
	ErrFinalizationFailed = errors.New("mint succeeded on-chain but record update failed")

	// ErrActionInProgress is returned when the same action is already running
	ErrActionInProgress = errors.New("action already in progress")

	// ErrDebounced is returned when an action is re-invoked inside its debounce window
	ErrDebounced = errors.New("action invoked too quickly")

	// ErrInvalidTransition is returned when the state machine rejects a transition
	ErrInvalidTransition = errors.New("invalid state transition")

	// ErrSessionNotFound is returned when a session id is unknown or expired
	ErrSessionNotFound = errors.New("session not found")
)

// Error attaches a kind and operation to an underlying error
type Error struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Op == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewError wraps err with a kind and operation name
func NewError(kind ErrorKind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf returns the kind of the outermost classified error in the chain.
// Well-known sentinels are classified even when not wrapped in an Error.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}

	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}

	switch {
	case errors.Is(err, ErrMissingCredentials):
		return KindConfiguration
	case errors.Is(err, ErrIneligible),
		errors.Is(err, ErrNoAssignment),
		errors.Is(err, ErrAlreadyMinted),
		errors.Is(err, ErrAlreadyGenerated),
		errors.Is(err, ErrInsufficientBalance),
		errors.Is(err, ErrNoWalletConnector),
		errors.Is(err, ErrMissingNameOrImage):
		return KindPrecondition
	case errors.Is(err, ErrNonJSONResponse), errors.Is(err, ErrUploadFailed):
		return KindTransport
	case errors.Is(err, ErrTransactionReverted), errors.Is(err, ErrTransactionPending):
		return KindChain
	case errors.Is(err, ErrFinalizationFailed):
		return KindFinalization
	case errors.Is(err, ErrActionInProgress), errors.Is(err, ErrDebounced):
		return KindBusy
	case errors.Is(err, ErrInvalidTransition):
		return KindState
	}

	return KindInternal
}

// Retryable reports whether re-invoking the same operation may succeed
func Retryable(err error) bool {
	switch KindOf(err) {
	case KindTransport, KindChain, KindBusy, KindInternal:
		return true
	default:
		return false
	}
}
