package registry

import (
	"bytes"
	"errors"
	"fmt"
	"math/big"
	"net"
	"net/url"
	"strings"
	"syscall"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/ruteri/music-copyright-registry/interfaces"
)

// ReasonRegistrantNeedNotPay is the revert text the contract uses when a
// registrant tries to pay for access to its own record.
const ReasonRegistrantNeedNotPay = "Registrant does not need to pay"

var (
	errorSelector = []byte{0x08, 0xc3, 0x79, 0xa0}
	panicSelector = []byte{0x4e, 0x48, 0x7b, 0x71}
)

// knownReasons maps free-text revert reasons to reason codes.
var knownReasons = map[string]interfaces.RevertCode{
	ReasonRegistrantNeedNotPay: interfaces.RevertRegistrantExempt,
}

// customErrorCodes maps ABI custom error names to reason codes.
var customErrorCodes = map[string]interfaces.RevertCode{
	"RegistrantNeedNotPay": interfaces.RevertRegistrantExempt,
}

// DecodeRevert turns an error returned by an eth_call, gas estimation or
// transaction submission into a *interfaces.RevertError. It returns false
// when err does not describe an execution revert.
func DecodeRevert(contractABI abi.ABI, err error) (*interfaces.RevertError, bool) {
	if err == nil {
		return nil, false
	}

	var dataErr rpc.DataError
	if errors.As(err, &dataErr) {
		if data, ok := revertData(dataErr.ErrorData()); ok {
			return decodeRevertData(contractABI, data, err), true
		}
	}

	msg := err.Error()
	idx := strings.Index(msg, "execution reverted")
	if idx < 0 {
		return nil, false
	}

	reason := strings.TrimSpace(strings.TrimPrefix(msg[idx:], "execution reverted"))
	reason = strings.TrimSpace(strings.TrimPrefix(reason, ":"))
	return &interfaces.RevertError{
		Code:   classifyReason(reason),
		Reason: reason,
		Err:    err,
	}, true
}

func revertData(raw interface{}) ([]byte, bool) {
	switch v := raw.(type) {
	case string:
		data, err := hexutil.Decode(v)
		if err != nil {
			return nil, false
		}
		return data, true
	case []byte:
		return v, true
	default:
		return nil, false
	}
}

func decodeRevertData(contractABI abi.ABI, data []byte, cause error) *interfaces.RevertError {
	if len(data) < 4 {
		return &interfaces.RevertError{Code: interfaces.RevertUnknown, Err: cause}
	}

	selector := data[:4]
	switch {
	case bytes.Equal(selector, errorSelector):
		reason, err := abi.UnpackRevert(data)
		if err != nil {
			return &interfaces.RevertError{Code: interfaces.RevertUnknown, Err: cause}
		}
		return &interfaces.RevertError{Code: classifyReason(reason), Reason: reason, Err: cause}

	case bytes.Equal(selector, panicSelector):
		code := new(big.Int)
		if len(data) >= 36 {
			code.SetBytes(data[4:36])
		}
		return &interfaces.RevertError{
			Code:   interfaces.RevertPanic,
			Reason: fmt.Sprintf("panic code 0x%x", code),
			Err:    cause,
		}
	}

	for name, abiErr := range contractABI.Errors {
		if !bytes.Equal(abiErr.ID[:4], selector) {
			continue
		}
		reason := name
		if args, err := abiErr.Unpack(data); err == nil {
			reason = fmt.Sprintf("%s%v", name, args)
		}
		code, ok := customErrorCodes[name]
		if !ok {
			code = interfaces.RevertUnknown
		}
		return &interfaces.RevertError{Code: code, Reason: reason, Err: cause}
	}

	return &interfaces.RevertError{
		Code:   interfaces.RevertUnknown,
		Reason: fmt.Sprintf("unknown error selector %s", hexutil.Encode(selector)),
		Err:    cause,
	}
}

func classifyReason(reason string) interfaces.RevertCode {
	for text, code := range knownReasons {
		if strings.Contains(reason, text) {
			return code
		}
	}
	return interfaces.RevertUnknown
}

// isConnectionError reports whether err means the RPC endpoint could not be
// reached at all.
func isConnectionError(err error) bool {
	var urlErr *url.Error
	var opErr *net.OpError
	return errors.As(err, &urlErr) || errors.As(err, &opErr) || errors.Is(err, syscall.ECONNREFUSED)
}

// userRejectedCode is the EIP-1193 provider error for a declined request.
const userRejectedCode = 4001

// signerRejections are the texts wallets and clef use when the user declines
// to sign. Bare "rejected" or "denied" also appear in rate limit and
// permission errors from RPC providers.
var signerRejections = []string{
	"user denied",
	"user rejected",
	"user declined",
	"rejected by user",
	"denied by user",
	"request denied", // clef
}

// isSignerRejection reports whether err is a signer declining to sign.
func isSignerRejection(err error) bool {
	var rpcErr rpc.Error
	if errors.As(err, &rpcErr) && rpcErr.ErrorCode() == userRejectedCode {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, text := range signerRejections {
		if strings.Contains(msg, text) {
			return true
		}
	}
	return false
}
