// Package musicregistry holds the ABI of the MusicCopyrightRegistry contract
// call surface consumed by this module.
package musicregistry

import (
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// MusicRegistryABI is the input ABI used to bind the registry contract.
const MusicRegistryABI = `[
	{"type":"function","name":"registerSong","stateMutability":"payable",
	 "inputs":[{"name":"title","type":"string"},{"name":"artist","type":"string"},{"name":"ipfsHash","type":"string"},{"name":"license","type":"string"}],
	 "outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"getSong","stateMutability":"view",
	 "inputs":[{"name":"songId","type":"uint256"}],
	 "outputs":[
		{"name":"id","type":"uint256"},
		{"name":"registrant","type":"address"},
		{"name":"title","type":"string"},
		{"name":"artist","type":"string"},
		{"name":"ipfsHash","type":"string"},
		{"name":"license","type":"string"},
		{"name":"timestamp","type":"uint256"},
		{"name":"accessCount","type":"uint256"},
		{"name":"isActive","type":"bool"}]},
	{"type":"function","name":"getSongsByRegistrant","stateMutability":"view",
	 "inputs":[{"name":"registrant","type":"address"}],
	 "outputs":[{"name":"","type":"uint256[]"}]},
	{"type":"function","name":"getTotalSongs","stateMutability":"view",
	 "inputs":[],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"registrationFee","stateMutability":"view",
	 "inputs":[],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"accessFee","stateMutability":"view",
	 "inputs":[],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"payForAccess","stateMutability":"payable",
	 "inputs":[{"name":"songId","type":"uint256"}],"outputs":[]}
]`

var (
	parsedOnce sync.Once
	parsedABI  abi.ABI
	parseErr   error
)

// ParsedABI returns the parsed registry ABI.
func ParsedABI() (abi.ABI, error) {
	parsedOnce.Do(func() {
		parsedABI, parseErr = abi.JSON(strings.NewReader(MusicRegistryABI))
	})
	return parsedABI, parseErr
}
