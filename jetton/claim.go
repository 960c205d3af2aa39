package jetton

import (
	"fmt"

	"github.com/holiman/uint256"

	"github.com/ton-community/mintless-jetton/cell"
)

// ClaimResult is a successful claim: the record found and the wallet data
// with the airdrop credited and the claimed flag set.
type ClaimResult struct {
	Record     AirdropRecord
	ProofDepth uint16
	Data       WalletData
}

// Claim checks a merkle_airdrop_claim payload against data. Guards run in
// order: owner in the wallet workchain, not yet claimed, proof envelope,
// dictionary lookup, claim window, fee. data is not modified.
func (w *WalletClass) Claim(data WalletData, payload *cell.Cell, now uint64, prepaid, forwardTon *uint256.Int) (ClaimResult, error) {
	if data.Owner.Workchain != w.workchain {
		return ClaimResult{}, walletErr(ERR_WRONG_WORKCHAIN, fmt.Sprintf("owner workchain %d", data.Owner.Workchain))
	}
	if data.ClaimState() == Claimed {
		return ClaimResult{}, walletErr(ERR_AIRDROP_ALREADY_CLAIMED, "")
	}
	p, err := ParseClaimPayload(payload)
	if err != nil {
		return ClaimResult{}, wrapErr(ERR_INVALID_MESSAGE, err)
	}
	dict, err := VerifyClaimProof(p.Proof, data.MerkleRoot)
	if err != nil {
		return ClaimResult{}, err
	}
	rec, err := FindAirdrop(dict, data.Owner.Hash)
	if err != nil {
		return ClaimResult{}, err
	}
	if err := rec.CheckWindow(now); err != nil {
		return ClaimResult{}, err
	}
	depth := dict.Depth(0)
	if err := w.fees.CheckTransfer(prepaid, forwardTon, true, depth); err != nil {
		return ClaimResult{}, err
	}

	next := data.clone()
	sum, overflow := new(uint256.Int).AddOverflow(next.Balance, coins(rec.Amount))
	if overflow || sum.ByteLen() > maxCoinsBytes {
		return ClaimResult{}, walletErr(ERR_BALANCE, "balance overflow")
	}
	next.Balance = sum
	next.Status |= statusClaimed
	return ClaimResult{Record: rec, ProofDepth: depth, Data: next}, nil
}
