package session

import (
	"fmt"

	"github.com/feral-file/ff-minter/internal/domain"
)

// State is the user-facing step of a session
type State string

const (
	StateLoading    State = "loading"
	StateIneligible State = "ineligible"
	StateEligible   State = "eligible"
	StateGenerated  State = "generated"
	StateMinting    State = "minting"
	StateDone       State = "done"
)

// transitions lists the allowed next states of every state.
// minting -> generated is the only backward move.
var transitions = map[State][]State{
	StateLoading:    {StateIneligible, StateEligible, StateGenerated, StateDone},
	StateEligible:   {StateGenerated, StateDone},
	StateGenerated:  {StateMinting, StateDone},
	StateMinting:    {StateDone, StateGenerated},
	StateIneligible: {},
	StateDone:       {},
}

// CanTransition reports whether from -> to is allowed
func CanTransition(from, to State) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// transition validates from -> to
func transition(from, to State) error {
	if from == to || CanTransition(from, to) {
		return nil
	}
	return fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, from, to)
}

// Status messages shown for each step
const (
	MessageOpenInHost     = "Please open the MiniApp inside Farcaster to generate."
	MessageIneligible     = "Unable to determine eligibility."
	MessageEligible       = `Eligible. Click "Generate" to create your FXBT`
	MessageGenerating     = "Generating..."
	MessageReadyToMint    = `Click "Mint NFT" to continue.`
	MessagePreparing      = "Preparing to mint..."
	MessageConnected      = `Wallet connected. Click "Mint NFT" to continue.`
	MessageUploading      = "Uploading metadata..."
	MessageMintingOnChain = "Minting on-chain..."
	MessageFinalizing     = "Saving mint..."
	MessageTryAgain       = `Click "Mint NFT" to try again.`
	MessageAlreadyMinted  = "You already minted this NFT."
	MessageFinalizeFailed = "Minted on-chain but saving the mint failed. Please contact support."
)

// Toast messages
const (
	ToastGenerated       = "Farcaster XBT generated successfully."
	ToastGenerateFailed  = "Failed to save generation."
	ToastNoIdentity      = "FID not found."
	ToastNoAssignment    = "No generated NFT to mint."
	ToastWalletConnected = "Wallet connected. Click Mint again."
	ToastMinted          = "Mint successful!"
)
