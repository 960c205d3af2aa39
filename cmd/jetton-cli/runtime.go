package main

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/holiman/uint256"

	"github.com/ton-community/mintless-jetton/cell"
	"github.com/ton-community/mintless-jetton/hashmap"
	"github.com/ton-community/mintless-jetton/jetton"
)

type AirdropEntryJSON struct {
	Owner     string `json:"owner"`
	Amount    string `json:"amount"`
	StartFrom uint64 `json:"start_from"`
	ExpireAt  uint64 `json:"expire_at"`
}

type Request struct {
	Op string `json:"op"`

	Minter          string `json:"minter,omitempty"`
	MerkleRootHex   string `json:"merkle_root,omitempty"`
	WalletCodeBOC   string `json:"wallet_code,omitempty"`
	Workchain       int8   `json:"workchain,omitempty"`
	SaltSearchLimit int    `json:"salt_search_limit,omitempty"`
	Owner           string `json:"owner,omitempty"`

	Entries  []AirdropEntryJSON `json:"entries,omitempty"`
	DictBOC  string             `json:"dict_boc,omitempty"`
	ProofBOC string             `json:"proof_boc,omitempty"`

	ForwardTon string `json:"forward_ton,omitempty"`
	Claim      bool   `json:"claim,omitempty"`
	ProofDepth uint16 `json:"proof_depth,omitempty"`
}

type Response struct {
	Ok  bool   `json:"ok"`
	Err string `json:"err,omitempty"`

	Address      string `json:"address,omitempty"`
	Salt         *int   `json:"salt,omitempty"`
	StateInitBOC string `json:"state_init,omitempty"`

	MerkleRootHex string `json:"merkle_root,omitempty"`
	DictBOC       string `json:"dict_boc,omitempty"`
	ProofBOC      string `json:"proof_boc,omitempty"`
	PayloadBOC    string `json:"claim_payload,omitempty"`
	Depth         uint16 `json:"depth,omitempty"`

	Amount    string `json:"amount,omitempty"`
	StartFrom uint64 `json:"start_from,omitempty"`
	ExpireAt  uint64 `json:"expire_at,omitempty"`

	Estimate string `json:"estimate,omitempty"`
}

func writeResp(w io.Writer, resp Response) {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(resp)
}

// writeJettonErr reports wallet errors by code and everything else by text.
func writeJettonErr(w io.Writer, err error) {
	if code, ok := jetton.CodeOf(err); ok {
		writeResp(w, Response{Ok: false, Err: string(code)})
		return
	}
	writeResp(w, Response{Ok: false, Err: err.Error()})
}

func parseExactHex32(hexValue string) ([32]byte, error) {
	var out [32]byte
	b, err := hex.DecodeString(strings.TrimPrefix(strings.TrimSpace(hexValue), "0x"))
	if err != nil || len(b) != 32 {
		return out, fmt.Errorf("bad hex32")
	}
	copy(out[:], b)
	return out, nil
}

func parseCoins(s string) (*uint256.Int, error) {
	if strings.TrimSpace(s) == "" {
		return new(uint256.Int), nil
	}
	v, err := uint256.FromDecimal(strings.TrimSpace(s))
	if err != nil {
		return nil, fmt.Errorf("bad amount %q", s)
	}
	return v, nil
}

func bocHex(c *cell.Cell) string {
	s, err := cell.ToBOCHex(c)
	if err != nil {
		return ""
	}
	return s
}

func classFromRequest(req Request) (*jetton.WalletClass, error) {
	minter, err := cell.ParseAddress(req.Minter)
	if err != nil {
		return nil, fmt.Errorf("bad minter: %w", err)
	}
	root, err := parseExactHex32(req.MerkleRootHex)
	if err != nil {
		return nil, fmt.Errorf("bad merkle_root")
	}
	code := jetton.DefaultWalletCode()
	if req.WalletCodeBOC != "" {
		if code, err = cell.FromBOCHex(req.WalletCodeBOC); err != nil {
			return nil, fmt.Errorf("bad wallet_code: %w", err)
		}
	}
	return jetton.NewWalletClass(jetton.ClassParams{
		Code:            code,
		Minter:          minter,
		MerkleRoot:      root,
		Workchain:       req.Workchain,
		SaltSearchLimit: req.SaltSearchLimit,
		Fees:            jetton.DefaultFeeSchedule(),
	})
}

func runFromStdin() {
	run(os.Stdin, os.Stdout)
}

func run(r io.Reader, w io.Writer) {
	var req Request
	if err := json.NewDecoder(r).Decode(&req); err != nil {
		writeResp(w, Response{Ok: false, Err: fmt.Sprintf("bad request: %v", err)})
		return
	}

	switch req.Op {
	case "wallet_address":
		class, err := classFromRequest(req)
		if err != nil {
			writeResp(w, Response{Ok: false, Err: err.Error()})
			return
		}
		owner, err := cell.ParseAddress(req.Owner)
		if err != nil {
			writeResp(w, Response{Ok: false, Err: "bad owner"})
			return
		}
		si, salt, err := class.StateInitAndSalt(owner)
		if err != nil {
			writeJettonErr(w, err)
			return
		}
		cheap, cheapSalt, err := class.StateInitAndSaltCheap(owner)
		if err != nil {
			writeJettonErr(w, err)
			return
		}
		addr, err := si.Address(class.Workchain())
		if err != nil {
			writeJettonErr(w, err)
			return
		}
		cheapAddr, err := cheap.Address(class.Workchain())
		if err != nil || cheapAddr != addr || cheapSalt != salt {
			writeResp(w, Response{Ok: false, Err: "derivation mismatch"})
			return
		}
		siCell, err := si.ToCell()
		if err != nil {
			writeJettonErr(w, err)
			return
		}
		s := int(salt)
		writeResp(w, Response{Ok: true, Address: addr.String(), Salt: &s, StateInitBOC: bocHex(siCell)})
		return

	case "build_airdrop":
		if len(req.Entries) == 0 {
			writeResp(w, Response{Ok: false, Err: "no entries"})
			return
		}
		table := make(map[[32]byte]jetton.AirdropRecord, len(req.Entries))
		for _, e := range req.Entries {
			owner, err := cell.ParseAddress(e.Owner)
			if err != nil {
				writeResp(w, Response{Ok: false, Err: "bad owner"})
				return
			}
			amount, err := parseCoins(e.Amount)
			if err != nil {
				writeResp(w, Response{Ok: false, Err: err.Error()})
				return
			}
			if _, dup := table[owner.Hash]; dup {
				writeResp(w, Response{Ok: false, Err: "duplicate owner " + e.Owner})
				return
			}
			table[owner.Hash] = jetton.AirdropRecord{Amount: amount, StartFrom: e.StartFrom, ExpireAt: e.ExpireAt}
		}
		dict, err := jetton.BuildAirdrop(table)
		if err != nil {
			writeJettonErr(w, err)
			return
		}
		root := dict.Hash(0)
		writeResp(w, Response{
			Ok:            true,
			MerkleRootHex: hex.EncodeToString(root[:]),
			DictBOC:       bocHex(dict),
			Depth:         dict.Depth(0),
		})
		return

	case "prove":
		dict, err := cell.FromBOCHex(req.DictBOC)
		if err != nil {
			writeResp(w, Response{Ok: false, Err: "bad dict_boc"})
			return
		}
		owner, err := cell.ParseAddress(req.Owner)
		if err != nil {
			writeResp(w, Response{Ok: false, Err: "bad owner"})
			return
		}
		proof, err := hashmap.Prove(dict, owner.Hash)
		if err != nil {
			writeResp(w, Response{Ok: false, Err: err.Error()})
			return
		}
		payload, err := jetton.ClaimPayload{Proof: proof}.ToCell()
		if err != nil {
			writeResp(w, Response{Ok: false, Err: err.Error()})
			return
		}
		writeResp(w, Response{Ok: true, ProofBOC: bocHex(proof), PayloadBOC: bocHex(payload)})
		return

	case "verify_proof":
		proof, err := cell.FromBOCHex(req.ProofBOC)
		if err != nil {
			writeResp(w, Response{Ok: false, Err: "bad proof_boc"})
			return
		}
		root, err := parseExactHex32(req.MerkleRootHex)
		if err != nil {
			writeResp(w, Response{Ok: false, Err: "bad merkle_root"})
			return
		}
		dict, err := jetton.VerifyClaimProof(proof, root)
		if err != nil {
			writeJettonErr(w, err)
			return
		}
		writeResp(w, Response{Ok: true, MerkleRootHex: hex.EncodeToString(root[:]), Depth: dict.Depth(0)})
		return

	case "lookup":
		owner, err := cell.ParseAddress(req.Owner)
		if err != nil {
			writeResp(w, Response{Ok: false, Err: "bad owner"})
			return
		}
		var dict *cell.Cell
		switch {
		case req.ProofBOC != "":
			proof, err := cell.FromBOCHex(req.ProofBOC)
			if err != nil {
				writeResp(w, Response{Ok: false, Err: "bad proof_boc"})
				return
			}
			root, err := parseExactHex32(req.MerkleRootHex)
			if err != nil {
				writeResp(w, Response{Ok: false, Err: "bad merkle_root"})
				return
			}
			if dict, err = jetton.VerifyClaimProof(proof, root); err != nil {
				writeJettonErr(w, err)
				return
			}
		case req.DictBOC != "":
			if dict, err = cell.FromBOCHex(req.DictBOC); err != nil {
				writeResp(w, Response{Ok: false, Err: "bad dict_boc"})
				return
			}
		default:
			writeResp(w, Response{Ok: false, Err: "proof_boc or dict_boc required"})
			return
		}
		rec, err := jetton.FindAirdrop(dict, owner.Hash)
		if err != nil {
			writeJettonErr(w, err)
			return
		}
		writeResp(w, Response{Ok: true, Amount: rec.Amount.Dec(), StartFrom: rec.StartFrom, ExpireAt: rec.ExpireAt})
		return

	case "estimate_fee":
		fwd, err := parseCoins(req.ForwardTon)
		if err != nil {
			writeResp(w, Response{Ok: false, Err: err.Error()})
			return
		}
		est, err := jetton.DefaultFeeSchedule().EstimateTransfer(fwd, req.Claim, req.ProofDepth)
		if err != nil {
			writeJettonErr(w, err)
			return
		}
		writeResp(w, Response{Ok: true, Estimate: est.Dec()})
		return

	default:
		writeResp(w, Response{Ok: false, Err: "unknown op"})
		return
	}
}
