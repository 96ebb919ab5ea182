package dex

import "github.com/ethereum/go-ethereum/accounts/abi"

// Some tokens return symbol and name as bytes32, so both shapes are tried.
var (
	erc20String = lazyABI{json: `[
  {"inputs": [], "name": "decimals", "outputs": [{"type": "uint8"}], "stateMutability": "view", "type": "function"},
  {"inputs": [], "name": "symbol", "outputs": [{"type": "string"}], "stateMutability": "view", "type": "function"},
  {"inputs": [], "name": "name", "outputs": [{"type": "string"}], "stateMutability": "view", "type": "function"}
]`}
	erc20Bytes32 = lazyABI{json: `[
  {"inputs": [], "name": "symbol", "outputs": [{"type": "bytes32"}], "stateMutability": "view", "type": "function"},
  {"inputs": [], "name": "name", "outputs": [{"type": "bytes32"}], "stateMutability": "view", "type": "function"}
]`}
)

func erc20ABIs() (abi.ABI, abi.ABI, error) {
	stringABI, err := erc20String.get()
	if err != nil {
		return abi.ABI{}, abi.ABI{}, err
	}
	bytes32ABI, err := erc20Bytes32.get()
	if err != nil {
		return abi.ABI{}, abi.ABI{}, err
	}
	return stringABI, bytes32ABI, nil
}
