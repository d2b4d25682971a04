package etherman

import (
	"errors"
	"strings"
)

var (
	// ErrRootAlreadyAnchored is returned when putRoot would anchor a root that
	// already has a non-zero timestamp on the ledger.
	ErrRootAlreadyAnchored = errors.New("root already anchored")
	// ErrNotWorker is returned when the sending account is not authorized to
	// anchor roots.
	ErrNotWorker = errors.New("account is not a registered worker")
	// ErrLedgerUnreachable is returned once the bounded retry is exhausted.
	ErrLedgerUnreachable = errors.New("ledger unreachable")
	// ErrPrivateKeyNotFound is returned when no authorization is loaded for
	// the requested sender.
	ErrPrivateKeyNotFound = errors.New("can't find sender private key to sign tx")
	// ErrNotFound is a generic not-found for auth lookups.
	ErrNotFound = errors.New("not found")
	// ErrTxFailed is returned when an anchoring transaction was mined but
	// reverted.
	ErrTxFailed = errors.New("transaction reverted on the ledger")

	// revert strings the anchor contract produces, mapped to sentinels
	errorsMap = map[string]error{
		"DocumentAnchor::putRoot: root already anchored": ErrRootAlreadyAnchored,
		"DocumentAnchor: caller is not a worker":         ErrNotWorker,
	}
)

// TryParseError tries to map a contract revert error to one of the known
// sentinel errors.
func TryParseError(err error) (error, bool) {
	if err == nil {
		return nil, false
	}
	for revert, parsed := range errorsMap {
		if errors.Is(err, parsed) || strings.Contains(err.Error(), revert) {
			return parsed, true
		}
	}
	return nil, false
}
