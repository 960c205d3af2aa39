package node

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"

	"github.com/holiman/uint256"

	"github.com/ton-community/mintless-jetton/cell"
	"github.com/ton-community/mintless-jetton/crypto"
	"github.com/ton-community/mintless-jetton/jetton"
	"github.com/ton-community/mintless-jetton/node/store"
)

// DefaultMaxQueue bounds the number of pending messages a Host accepts.
const DefaultMaxQueue = 1 << 16

var (
	ErrQueueFull    = errors.New("host: message queue full")
	ErrForeignStore = errors.New("host: store belongs to another wallet class")
)

type HostConfig struct {
	Clock    Clock
	Logger   *slog.Logger
	Hasher   crypto.Provider
	MaxQueue int
}

// Receipt describes what happened to one delivered message.
type Receipt struct {
	Seq      uint64
	Msg      jetton.Message
	Err      error
	Code     jetton.ErrorCode
	Deployed bool
	External bool
	Out      []jetton.Message
	Claimed  *jetton.AirdropRecord

	data *jetton.WalletData
}

func (r *Receipt) dataCell() (*cell.Cell, error) {
	if r.data == nil {
		return nil, errors.New("receipt: no wallet data")
	}
	return r.data.ToCell()
}

// Host routes messages between the wallets of one jetton. Messages are
// delivered strictly in FIFO order, one bbolt transaction per message; a
// rejected message changes nothing but the transaction log.
type Host struct {
	class    *jetton.WalletClass
	db       *store.DB
	clock    Clock
	log      *slog.Logger
	hasher   crypto.Provider
	maxQueue int
	queue    []jetton.Message
}

func NewHost(class *jetton.WalletClass, db *store.DB, cfg HostConfig) (*Host, error) {
	if class == nil {
		return nil, errors.New("nil wallet class")
	}
	if db == nil {
		return nil, errors.New("nil store")
	}
	if cfg.Clock == nil {
		cfg.Clock = SystemClock{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Hasher == nil {
		cfg.Hasher = crypto.SIMDProvider{}
	}
	if cfg.MaxQueue <= 0 {
		cfg.MaxQueue = DefaultMaxQueue
	}
	h := &Host{
		class:    class,
		db:       db,
		clock:    cfg.Clock,
		log:      cfg.Logger,
		hasher:   cfg.Hasher,
		maxQueue: cfg.MaxQueue,
	}
	if err := h.bindManifest(); err != nil {
		return nil, err
	}
	return h, nil
}

func (h *Host) classManifest() *store.Manifest {
	root := h.class.MerkleRoot()
	code := h.class.Code().Hash(0)
	return &store.Manifest{
		SchemaVersion: store.SchemaVersionV1,
		Minter:        h.class.Minter().String(),
		MerkleRootHex: hex.EncodeToString(root[:]),
		CodeHashHex:   hex.EncodeToString(code[:]),
		Workchain:     h.class.Workchain(),
	}
}

func (h *Host) bindManifest() error {
	want := h.classManifest()
	have := h.db.Manifest()
	if have == nil {
		return h.db.SetManifest(want)
	}
	if have.Minter != want.Minter || have.MerkleRootHex != want.MerkleRootHex ||
		have.CodeHashHex != want.CodeHashHex || have.Workchain != want.Workchain {
		return fmt.Errorf("%w: manifest minter=%s merkle_root=%s", ErrForeignStore, have.Minter, have.MerkleRootHex)
	}
	return nil
}

// Class returns the wallet class this host runs.
func (h *Host) Class() *jetton.WalletClass { return h.class }

// Send enqueues msg for delivery.
func (h *Host) Send(msg jetton.Message) error {
	if len(h.queue) >= h.maxQueue {
		return ErrQueueFull
	}
	h.queue = append(h.queue, msg)
	return nil
}

func (h *Host) Pending() int { return len(h.queue) }

// Drain delivers queued messages, including the ones they emit, until the
// queue is empty or ctx is done. Receipts are returned in delivery order.
func (h *Host) Drain(ctx context.Context) ([]Receipt, error) {
	var out []Receipt
	for len(h.queue) > 0 {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		msg := h.queue[0]
		h.queue = h.queue[1:]
		r, err := h.deliver(msg)
		if err != nil {
			return out, err
		}
		out = append(out, r)
		for _, m := range r.Out {
			if err := h.Send(m); err != nil {
				return out, err
			}
		}
	}
	if len(out) > 0 {
		if err := h.checkpoint(); err != nil {
			return out, err
		}
	}
	return out, nil
}

func (h *Host) checkpoint() error {
	seq, err := h.db.LastSeq()
	if err != nil {
		return err
	}
	digest, err := h.db.StateDigest(h.hasher)
	if err != nil {
		return err
	}
	m := h.classManifest()
	m.LastSeq = seq
	m.StateDigestHex = hex.EncodeToString(digest[:])
	return h.db.SetManifest(m)
}

// deliver applies one message. Only storage failures are returned as
// errors; wallet rejections are reported in the receipt.
func (h *Host) deliver(msg jetton.Message) (Receipt, error) {
	now := h.clock.Now()
	r := Receipt{Msg: msg}
	rec := store.TxRecord{
		Now:     now,
		Src:     msg.Src,
		Dst:     msg.Dst,
		Bounced: msg.Bounced,
	}
	if op, ok := jetton.PeekOp(msg.Body); ok {
		rec.Op, rec.HasOp = op, true
	}

	err := h.db.Update(func(tx *store.Tx) error {
		acc, ok, err := tx.GetAccount(msg.Dst)
		if err != nil {
			return err
		}
		if !ok {
			acc, ok, err = h.deployFrom(msg)
			if err != nil {
				h.reject(&r, msg, err)
			}
			r.Deployed = ok
		}
		if !ok && r.Err == nil {
			r.External = true
		}

		if ok {
			h.execute(&r, msg, acc, now)
			if r.Err == nil {
				data, err := r.dataCell()
				if err != nil {
					return err
				}
				if err := tx.PutAccount(msg.Dst, store.Account{Code: acc.Code, Data: data}); err != nil {
					return err
				}
			} else {
				r.Deployed = false
			}
		}

		rec.Code = string(r.Code)
		rec.Deployed = r.Deployed
		rec.External = r.External
		rec.OutCount = uint16(len(r.Out)) // #nosec G115 -- a wallet emits at most two messages plus one bounce.
		seq, err := tx.AppendTx(rec)
		if err != nil {
			return err
		}
		r.Seq = seq
		return nil
	})
	if err != nil {
		return Receipt{}, fmt.Errorf("deliver to %s: %w", msg.Dst, err)
	}
	h.logReceipt(r)
	return r, nil
}

// deployFrom returns the account msg.StateInit would create at msg.Dst. ok is
// false when msg carries no state init, in which case the destination is not
// hosted here.
func (h *Host) deployFrom(msg jetton.Message) (store.Account, bool, error) {
	si := msg.StateInit
	if si == nil {
		return store.Account{}, false, nil
	}
	if err := h.class.CheckStateInit(msg.Dst, *si); err != nil {
		return store.Account{}, false, err
	}
	return store.Account{Code: si.Code, Data: si.Data}, true, nil
}

func (h *Host) execute(r *Receipt, msg jetton.Message, acc store.Account, now uint64) {
	data, err := jetton.ParseWalletData(acc.Data)
	if err != nil {
		h.reject(r, msg, err)
		return
	}
	out, err := h.class.HandleMessage(msg.Dst, data, msg, now)
	if err != nil {
		h.reject(r, msg, err)
		return
	}
	r.Out = out.Out
	r.Claimed = out.Claimed
	r.data = &out.Data
}

// reject records err and, for bounceable messages, queues the bounce.
func (h *Host) reject(r *Receipt, msg jetton.Message, err error) {
	r.Err = err
	r.Code = jetton.ERR_INVALID_MESSAGE
	if code, ok := jetton.CodeOf(err); ok {
		r.Code = code
	}
	r.Out = nil
	r.Claimed = nil
	r.data = nil
	if !msg.Bounce || msg.Bounced {
		return
	}
	body, berr := jetton.Bounced(msg.Body)
	if berr != nil {
		h.log.Warn("bounce body", "dst", msg.Dst.String(), "error", berr.Error())
		return
	}
	r.Out = []jetton.Message{{
		Src:     msg.Dst,
		Dst:     msg.Src,
		Value:   new(uint256.Int).Set(coinsOrZero(msg.Value)),
		Bounced: true,
		Body:    body,
	}}
}

func (h *Host) logReceipt(r Receipt) {
	switch {
	case r.Err != nil:
		h.log.Info("message rejected",
			"seq", r.Seq,
			"src", r.Msg.Src.String(),
			"dst", r.Msg.Dst.String(),
			"code", string(r.Code),
			"error", r.Err.Error(),
		)
	case r.External:
		h.log.Debug("message left the host", "seq", r.Seq, "dst", r.Msg.Dst.String())
	default:
		if r.Deployed {
			h.log.Info("wallet deployed", "seq", r.Seq, "address", r.Msg.Dst.String())
		}
		if r.Claimed != nil {
			h.log.Info("airdrop claimed", "seq", r.Seq, "wallet", r.Msg.Dst.String(), "amount", r.Claimed.Amount.Dec())
		}
		h.log.Debug("message applied", "seq", r.Seq, "dst", r.Msg.Dst.String(), "out", len(r.Out))
	}
}

// WalletData returns the stored data of owner's wallet. ok is false when the
// wallet has not been deployed.
func (h *Host) WalletData(owner cell.Address) (jetton.WalletData, bool, error) {
	addr, err := h.class.WalletAddress(owner)
	if err != nil {
		return jetton.WalletData{}, false, err
	}
	acc, ok, err := h.db.GetAccount(addr)
	if err != nil || !ok {
		return jetton.WalletData{}, false, err
	}
	d, err := jetton.ParseWalletData(acc.Data)
	if err != nil {
		return jetton.WalletData{}, false, err
	}
	return d, true, nil
}

// Balance is zero for wallets that were never deployed.
func (h *Host) Balance(owner cell.Address) (*uint256.Int, error) {
	d, ok, err := h.WalletData(owner)
	if err != nil {
		return nil, err
	}
	if !ok {
		return new(uint256.Int), nil
	}
	return new(uint256.Int).Set(coinsOrZero(d.Balance)), nil
}

func (h *Host) ClaimState(owner cell.Address) (jetton.ClaimState, error) {
	d, ok, err := h.WalletData(owner)
	if err != nil || !ok {
		return jetton.Unclaimed, err
	}
	return d.ClaimState(), nil
}

func (h *Host) StateDigest() ([32]byte, error) {
	return h.db.StateDigest(h.hasher)
}

func coinsOrZero(v *uint256.Int) *uint256.Int {
	if v == nil {
		return new(uint256.Int)
	}
	return v
}
