package etherman

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
)

// ABI of the DocumentAnchor contract surface this client consumes. The
// contract itself is external; only these entry points are called.
const anchorABI = `[
	{"type":"function","name":"putRoot","stateMutability":"nonpayable",
		"inputs":[{"name":"root","type":"bytes32"}],"outputs":[]},
	{"type":"function","name":"getRootTimestamp","stateMutability":"view",
		"inputs":[{"name":"root","type":"bytes32"}],
		"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"isWorker","stateMutability":"view",
		"inputs":[{"name":"account","type":"address"}],
		"outputs":[{"name":"","type":"bool"}]},
	{"type":"function","name":"registerIssuer","stateMutability":"nonpayable",
		"inputs":[{"name":"issuerId","type":"string"},
			{"name":"invalidationExpiry","type":"uint256"},
			{"name":"metadata","type":"string"}],"outputs":[]},
	{"type":"function","name":"invalidateDocument","stateMutability":"nonpayable",
		"inputs":[{"name":"docHash","type":"bytes32"},
			{"name":"signature","type":"bytes"},
			{"name":"issuerId","type":"string"}],"outputs":[]},
	{"type":"function","name":"invalidateRoot","stateMutability":"nonpayable",
		"inputs":[{"name":"root","type":"bytes32"},
			{"name":"signature","type":"bytes"},
			{"name":"issuerId","type":"string"}],"outputs":[]},
	{"type":"function","name":"isInvalidated","stateMutability":"view",
		"inputs":[{"name":"docHash","type":"bytes32"},
			{"name":"root","type":"bytes32"},
			{"name":"issuerId","type":"string"},
			{"name":"invalidationExpiry","type":"uint256"},
			{"name":"issuedAt","type":"uint256"}],
		"outputs":[{"name":"","type":"string"},{"name":"","type":"uint256"}]}
]`

// anchorContract binds the DocumentAnchor contract at a fixed address.
type anchorContract struct {
	abi      abi.ABI
	address  common.Address
	contract *bind.BoundContract
}

func newAnchorContract(address common.Address, backend bind.ContractBackend) (*anchorContract, error) {
	parsed, err := abi.JSON(strings.NewReader(anchorABI))
	if err != nil {
		return nil, err
	}
	return &anchorContract{
		abi:      parsed,
		address:  address,
		contract: bind.NewBoundContract(address, parsed, backend, backend, backend),
	}, nil
}
