package jetton

import (
	"github.com/ton-community/mintless-jetton/cell"
)

// StateInitAndSalt searches salts in [0, SaltSearchLimit) for a wallet
// address whose top ShardDepth bits equal the owner's. The first match wins;
// without a match the salt with the smallest XOR distance wins, first on
// ties. Every candidate is built and hashed as a full cell tree.
func (w *WalletClass) StateInitAndSalt(owner cell.Address) (StateInit, uint16, error) {
	best := -1
	bestDist := uint8(0xff)
	var bestInit StateInit
	for salt := 0; salt < w.saltLimit; salt++ {
		// #nosec G115 -- salt < MaxSaltSearchLimit.
		si, err := w.exactStateInit(owner, uint16(salt))
		if err != nil {
			return StateInit{}, 0, err
		}
		c, err := si.ToCell()
		if err != nil {
			return StateInit{}, 0, err
		}
		dist := prefixDistance(c.Hash(0), owner)
		if dist == 0 {
			return si, uint16(salt), nil
		}
		if best < 0 || dist < bestDist {
			best, bestDist, bestInit = salt, dist, si
		}
	}
	return bestInit, uint16(best), nil
}

func (w *WalletClass) exactStateInit(owner cell.Address, salt uint16) (StateInit, error) {
	data, err := w.InitialData(owner, salt).ToCell()
	if err != nil {
		return StateInit{}, err
	}
	return StateInit{Code: w.code, Data: data}, nil
}
