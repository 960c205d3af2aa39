package jetton

import (
	"errors"
	"fmt"
)

type ErrorCode string

const (
	ERR_WRONG_HASH       ErrorCode = "ERR_WRONG_HASH"
	ERR_NOT_EXOTIC       ErrorCode = "ERR_NOT_EXOTIC"
	ERR_NOT_MERKLE_PROOF ErrorCode = "ERR_NOT_MERKLE_PROOF"

	ERR_AIRDROP_NOT_FOUND       ErrorCode = "ERR_AIRDROP_NOT_FOUND"
	ERR_AIRDROP_ALREADY_CLAIMED ErrorCode = "ERR_AIRDROP_ALREADY_CLAIMED"
	ERR_AIRDROP_NOT_READY       ErrorCode = "ERR_AIRDROP_NOT_READY"
	ERR_AIRDROP_FINISHED        ErrorCode = "ERR_AIRDROP_FINISHED"

	ERR_NOT_ENOUGH_GAS         ErrorCode = "ERR_NOT_ENOUGH_GAS"
	ERR_UNKNOWN_CUSTOM_PAYLOAD ErrorCode = "ERR_UNKNOWN_CUSTOM_PAYLOAD"

	ERR_NOT_OWNER        ErrorCode = "ERR_NOT_OWNER"
	ERR_BALANCE          ErrorCode = "ERR_BALANCE"
	ERR_NOT_VALID_WALLET ErrorCode = "ERR_NOT_VALID_WALLET"
	ERR_WRONG_OP         ErrorCode = "ERR_WRONG_OP"
	ERR_WRONG_WORKCHAIN  ErrorCode = "ERR_WRONG_WORKCHAIN"
	ERR_INVALID_MESSAGE  ErrorCode = "ERR_INVALID_MESSAGE"
)

// WalletError is a rejection of an inbound message. Cause keeps the lower
// level error, if any, reachable through errors.Is.
type WalletError struct {
	Code  ErrorCode
	Msg   string
	Cause error
}

func (e *WalletError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Msg == "" {
		return string(e.Code)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Msg)
}

func (e *WalletError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

func walletErr(code ErrorCode, msg string) error {
	return &WalletError{Code: code, Msg: msg}
}

func wrapErr(code ErrorCode, cause error) error {
	return &WalletError{Code: code, Msg: cause.Error(), Cause: cause}
}

// CodeOf extracts the code of a WalletError anywhere in err's chain.
func CodeOf(err error) (ErrorCode, bool) {
	var we *WalletError
	if errors.As(err, &we) {
		return we.Code, true
	}
	return "", false
}
