package jetton

import (
	"errors"
	"fmt"

	"github.com/holiman/uint256"
)

// FeeSchedule prices wallet operations in nanotons. Gas figures are units of
// compute, GasPrice converts them.
type FeeSchedule struct {
	GasPrice           uint64 `json:"gas_price"`
	SendTransferGas    uint64 `json:"send_transfer_gas"`
	ReceiveTransferGas uint64 `json:"receive_transfer_gas"`
	ClaimBaseGas       uint64 `json:"claim_base_gas"`
	ClaimGasPerLevel   uint64 `json:"claim_gas_per_level"`
	ForwardFee         uint64 `json:"forward_fee"`
	MinStorageFee      uint64 `json:"min_storage_fee"`
}

func DefaultFeeSchedule() FeeSchedule {
	return FeeSchedule{
		GasPrice:           400,
		SendTransferGas:    10065,
		ReceiveTransferGas: 10435,
		ClaimBaseGas:       20000,
		ClaimGasPerLevel:   1500,
		ForwardFee:         6_000_000,
		MinStorageFee:      10_000_000,
	}
}

func (f FeeSchedule) Validate() error {
	if f.GasPrice == 0 {
		return errors.New("fees: gas_price must be > 0")
	}
	if f.SendTransferGas == 0 || f.ReceiveTransferGas == 0 {
		return errors.New("fees: transfer gas must be > 0")
	}
	return nil
}

// SendGas is the compute spent by the sending wallet, including the proof
// walk when claim is set.
func (f FeeSchedule) SendGas(claim bool, proofDepth uint16) (uint64, error) {
	gas := f.SendTransferGas
	if !claim {
		return gas, nil
	}
	walk, err := mulU64(f.ClaimGasPerLevel, uint64(proofDepth))
	if err != nil {
		return 0, err
	}
	if gas, err = addU64(gas, f.ClaimBaseGas); err != nil {
		return 0, err
	}
	return addU64(gas, walk)
}

// EstimateTransfer returns the TON a transfer must carry:
//
//	forwardTon + fwdCount*ForwardFee + (send+receive gas)*GasPrice + MinStorageFee
//
// with fwdCount = 2 when a notification is forwarded and 1 otherwise.
func (f FeeSchedule) EstimateTransfer(forwardTon *uint256.Int, claim bool, proofDepth uint16) (*uint256.Int, error) {
	gas, err := f.SendGas(claim, proofDepth)
	if err != nil {
		return nil, err
	}
	if gas, err = addU64(gas, f.ReceiveTransferGas); err != nil {
		return nil, err
	}
	compute, err := mulU64(gas, f.GasPrice)
	if err != nil {
		return nil, err
	}
	fwdCount := uint64(1)
	if !isZero(forwardTon) {
		fwdCount = 2
	}
	fwd, err := mulU64(fwdCount, f.ForwardFee)
	if err != nil {
		return nil, err
	}
	fixed, err := addU64(compute, fwd)
	if err != nil {
		return nil, err
	}
	if fixed, err = addU64(fixed, f.MinStorageFee); err != nil {
		return nil, err
	}
	total, overflow := new(uint256.Int).AddOverflow(coins(forwardTon), uint256.NewInt(fixed))
	if overflow {
		return nil, fmt.Errorf("fee estimate overflows 256 bits")
	}
	return total, nil
}

// CheckTransfer rejects prepaid values below the estimate. Arithmetic
// overflow counts as insufficient.
func (f FeeSchedule) CheckTransfer(prepaid, forwardTon *uint256.Int, claim bool, proofDepth uint16) error {
	need, err := f.EstimateTransfer(forwardTon, claim, proofDepth)
	if err != nil {
		return wrapErr(ERR_NOT_ENOUGH_GAS, err)
	}
	if coins(prepaid).Lt(need) {
		return walletErr(ERR_NOT_ENOUGH_GAS, fmt.Sprintf("prepaid %s, need %s", coins(prepaid).Dec(), need.Dec()))
	}
	return nil
}

// EstimateBurn is the TON a burn must carry to reach the minter.
func (f FeeSchedule) EstimateBurn() (*uint256.Int, error) {
	compute, err := mulU64(f.SendTransferGas, f.GasPrice)
	if err != nil {
		return nil, err
	}
	total, err := addU64(compute, f.ForwardFee)
	if err != nil {
		return nil, err
	}
	if total, err = addU64(total, f.MinStorageFee); err != nil {
		return nil, err
	}
	return uint256.NewInt(total), nil
}

// carry is what remains of value after paying this wallet's gas and one
// forward fee. It never goes negative.
func (f FeeSchedule) carry(value *uint256.Int, gas uint64) *uint256.Int {
	spent, err := mulU64(gas, f.GasPrice)
	if err == nil {
		spent, err = addU64(spent, f.ForwardFee)
	}
	if err != nil {
		return new(uint256.Int)
	}
	out, underflow := new(uint256.Int).SubOverflow(coins(value), uint256.NewInt(spent))
	if underflow {
		return new(uint256.Int)
	}
	return out
}
