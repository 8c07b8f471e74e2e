package model

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
)

// ProposalKind tags the payload carried by a timelocked proposal.
type ProposalKind string

const (
	ProposalFeeChange       ProposalKind = "fee_change"
	ProposalAuthorityChange ProposalKind = "authority_change"
)

// Proposal is a timelocked governance change. Exactly one payload field is set,
// matching Kind.
type Proposal struct {
	ID         uuid.UUID      `json:"id"`
	Mint       common.Address `json:"mint"`
	Kind       ProposalKind   `json:"kind"`
	Proposer   common.Address `json:"proposer"`
	ProposedAt int64          `json:"proposed_at"`
	Executed   bool           `json:"executed"`
	Cancelled  bool           `json:"cancelled"`

	Fees         *FeeShares      `json:"fees,omitempty"`
	NewAuthority *common.Address `json:"new_authority,omitempty"`
}

// Live reports whether the proposal can still be executed or cancelled.
func (p Proposal) Live() bool {
	return !p.Executed && !p.Cancelled
}

// Status is a display label for the proposal lifecycle.
func (p Proposal) Status() string {
	switch {
	case p.Executed:
		return "executed"
	case p.Cancelled:
		return "cancelled"
	default:
		return "proposed"
	}
}
