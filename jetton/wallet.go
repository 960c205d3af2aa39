package jetton

import (
	"fmt"

	"github.com/holiman/uint256"

	"github.com/ton-community/mintless-jetton/cell"
)

const maxCoinsBytes = 15

// Message is an internal message between accounts. Value is in nanotons.
type Message struct {
	Src       cell.Address
	Dst       cell.Address
	Value     *uint256.Int
	Bounce    bool
	Bounced   bool
	Body      *cell.Cell
	StateInit *StateInit
}

// Outcome is the effect of one accepted message.
type Outcome struct {
	Data    WalletData
	Out     []Message
	Claimed *AirdropRecord
}

// HandleMessage runs in against the wallet at self holding data. It never
// mutates data: the new state is returned in Outcome and must be discarded
// together with the outbound messages when an error is returned.
func (w *WalletClass) HandleMessage(self cell.Address, data WalletData, in Message, now uint64) (Outcome, error) {
	d := data.clone()
	if in.Bounced {
		return w.onBounce(d, in)
	}
	op, ok := PeekOp(in.Body)
	if !ok {
		// plain TON top-up
		return Outcome{Data: d}, nil
	}
	switch op {
	case OpTransfer:
		return w.onTransfer(self, d, in, now)
	case OpInternalTransfer:
		return w.onInternalTransfer(self, d, in)
	case OpBurn:
		return w.onBurn(self, d, in)
	default:
		return Outcome{}, walletErr(ERR_WRONG_OP, fmt.Sprintf("unknown op %#08x", op))
	}
}

func (w *WalletClass) onTransfer(self cell.Address, d WalletData, in Message, now uint64) (Outcome, error) {
	if in.Src != d.Owner {
		return Outcome{}, walletErr(ERR_NOT_OWNER, "transfer from "+in.Src.String())
	}
	msg, err := ParseTransfer(in.Body)
	if err != nil {
		return Outcome{}, wrapErr(ERR_INVALID_MESSAGE, err)
	}
	if msg.Destination.Workchain != w.workchain {
		return Outcome{}, walletErr(ERR_WRONG_WORKCHAIN, fmt.Sprintf("destination workchain %d", msg.Destination.Workchain))
	}

	var claimed *AirdropRecord
	var depth uint16
	if op, ok := PeekOp(msg.CustomPayload); ok {
		switch op {
		case OpMerkleAirdropClaim:
			res, err := w.Claim(d, msg.CustomPayload, now, in.Value, msg.ForwardTonAmount)
			if err != nil {
				return Outcome{}, err
			}
			d = res.Data
			depth = res.ProofDepth
			claimed = &res.Record
		case OpTransfer, OpBurn:
			return Outcome{}, walletErr(ERR_UNKNOWN_CUSTOM_PAYLOAD, fmt.Sprintf("op %#08x in custom payload", op))
		}
	}
	if claimed == nil {
		if err := w.fees.CheckTransfer(in.Value, msg.ForwardTonAmount, false, 0); err != nil {
			return Outcome{}, err
		}
	}

	amount := coins(msg.Amount)
	if d.Balance.Lt(amount) {
		return Outcome{}, walletErr(ERR_BALANCE, fmt.Sprintf("balance %s, transfer %s", d.Balance.Dec(), amount.Dec()))
	}
	d.Balance = new(uint256.Int).Sub(d.Balance, amount)

	dstInit, _, err := w.StateInitAndSaltCheap(msg.Destination)
	if err != nil {
		return Outcome{}, err
	}
	dst, err := dstInit.Address(w.workchain)
	if err != nil {
		return Outcome{}, err
	}
	owner := d.Owner
	body, err := InternalTransfer{
		QueryID:          msg.QueryID,
		Amount:           amount,
		From:             &owner,
		ResponseAddress:  msg.ResponseDestination,
		ForwardTonAmount: msg.ForwardTonAmount,
		ForwardPayload:   msg.ForwardPayload,
	}.ToCell()
	if err != nil {
		return Outcome{}, wrapErr(ERR_INVALID_MESSAGE, err)
	}
	gas, err := w.fees.SendGas(claimed != nil, depth)
	if err != nil {
		return Outcome{}, wrapErr(ERR_NOT_ENOUGH_GAS, err)
	}
	out := Message{
		Src:       self,
		Dst:       dst,
		Value:     w.fees.carry(in.Value, gas),
		Bounce:    true,
		Body:      body,
		StateInit: &dstInit,
	}
	return Outcome{Data: d, Out: []Message{out}, Claimed: claimed}, nil
}

func (w *WalletClass) onInternalTransfer(self cell.Address, d WalletData, in Message) (Outcome, error) {
	msg, err := ParseInternalTransfer(in.Body)
	if err != nil {
		return Outcome{}, wrapErr(ERR_INVALID_MESSAGE, err)
	}
	if in.Src != w.minter {
		if msg.From == nil {
			return Outcome{}, walletErr(ERR_NOT_VALID_WALLET, "internal transfer without sender")
		}
		expected, err := w.WalletAddress(*msg.From)
		if err != nil {
			return Outcome{}, err
		}
		if in.Src != expected {
			return Outcome{}, walletErr(ERR_NOT_VALID_WALLET, "sender "+in.Src.String()+" is not the wallet of "+msg.From.String())
		}
	}

	sum, overflow := new(uint256.Int).AddOverflow(d.Balance, coins(msg.Amount))
	if overflow || sum.ByteLen() > maxCoinsBytes {
		return Outcome{}, walletErr(ERR_BALANCE, "balance overflow")
	}
	d.Balance = sum

	spent, err := mulU64(w.fees.ReceiveTransferGas, w.fees.GasPrice)
	if err != nil {
		return Outcome{}, wrapErr(ERR_NOT_ENOUGH_GAS, err)
	}
	need := uint256.NewInt(spent)
	fwd := coins(msg.ForwardTonAmount)
	if !fwd.IsZero() {
		need.Add(need, fwd)
		need.Add(need, uint256.NewInt(w.fees.ForwardFee))
	}
	value := coins(in.Value)
	if value.Lt(need) {
		return Outcome{}, walletErr(ERR_NOT_ENOUGH_GAS, fmt.Sprintf("value %s, need %s", value.Dec(), need.Dec()))
	}
	rest := new(uint256.Int).Sub(value, need)

	var out []Message
	if !fwd.IsZero() {
		body, err := TransferNotification{
			QueryID:        msg.QueryID,
			Amount:         coins(msg.Amount),
			Sender:         msg.From,
			ForwardPayload: msg.ForwardPayload,
		}.ToCell()
		if err != nil {
			return Outcome{}, wrapErr(ERR_INVALID_MESSAGE, err)
		}
		out = append(out, Message{Src: self, Dst: d.Owner, Value: fwd, Body: body})
	}
	fee := uint256.NewInt(w.fees.ForwardFee)
	if msg.ResponseAddress != nil && rest.Gt(fee) {
		body, err := Excesses{QueryID: msg.QueryID}.ToCell()
		if err != nil {
			return Outcome{}, wrapErr(ERR_INVALID_MESSAGE, err)
		}
		out = append(out, Message{Src: self, Dst: *msg.ResponseAddress, Value: new(uint256.Int).Sub(rest, fee), Body: body})
	}
	return Outcome{Data: d, Out: out}, nil
}

func (w *WalletClass) onBurn(self cell.Address, d WalletData, in Message) (Outcome, error) {
	if in.Src != d.Owner {
		return Outcome{}, walletErr(ERR_NOT_OWNER, "burn from "+in.Src.String())
	}
	msg, err := ParseBurn(in.Body)
	if err != nil {
		return Outcome{}, wrapErr(ERR_INVALID_MESSAGE, err)
	}
	need, err := w.fees.EstimateBurn()
	if err != nil {
		return Outcome{}, wrapErr(ERR_NOT_ENOUGH_GAS, err)
	}
	if coins(in.Value).Lt(need) {
		return Outcome{}, walletErr(ERR_NOT_ENOUGH_GAS, fmt.Sprintf("value %s, need %s", coins(in.Value).Dec(), need.Dec()))
	}
	amount := coins(msg.Amount)
	if d.Balance.Lt(amount) {
		return Outcome{}, walletErr(ERR_BALANCE, fmt.Sprintf("balance %s, burn %s", d.Balance.Dec(), amount.Dec()))
	}
	d.Balance = new(uint256.Int).Sub(d.Balance, amount)

	body, err := BurnNotification{
		QueryID:             msg.QueryID,
		Amount:              amount,
		Sender:              d.Owner,
		ResponseDestination: msg.ResponseDestination,
	}.ToCell()
	if err != nil {
		return Outcome{}, wrapErr(ERR_INVALID_MESSAGE, err)
	}
	out := Message{
		Src:    self,
		Dst:    w.minter,
		Value:  w.fees.carry(in.Value, w.fees.SendTransferGas),
		Bounce: true,
		Body:   body,
	}
	return Outcome{Data: d, Out: []Message{out}}, nil
}

// onBounce restores the balance debited by a transfer or burn whose
// outbound message bounced.
func (w *WalletClass) onBounce(d WalletData, in Message) (Outcome, error) {
	if in.Body == nil {
		return Outcome{}, walletErr(ERR_INVALID_MESSAGE, "bounce without body")
	}
	s := in.Body.BeginParse()
	prefix, err := s.LoadUint(32)
	if err != nil || uint32(prefix) != bouncedPrefix {
		return Outcome{}, walletErr(ERR_INVALID_MESSAGE, "bounce without 0xffffffff prefix")
	}
	op, err := s.LoadUint(32)
	if err != nil {
		return Outcome{}, wrapErr(ERR_INVALID_MESSAGE, err)
	}
	if uint32(op) != OpInternalTransfer && uint32(op) != OpBurnNotification {
		return Outcome{}, walletErr(ERR_WRONG_OP, fmt.Sprintf("bounced op %#08x", op))
	}
	if err := s.Skip(64); err != nil {
		return Outcome{}, wrapErr(ERR_INVALID_MESSAGE, err)
	}
	amount, err := s.LoadCoins()
	if err != nil {
		return Outcome{}, wrapErr(ERR_INVALID_MESSAGE, err)
	}
	sum, overflow := new(uint256.Int).AddOverflow(d.Balance, amount)
	if overflow || sum.ByteLen() > maxCoinsBytes {
		return Outcome{}, walletErr(ERR_BALANCE, "balance overflow")
	}
	d.Balance = sum
	return Outcome{Data: d}, nil
}
