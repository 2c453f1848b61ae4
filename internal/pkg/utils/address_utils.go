package utils

import (
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// NormalizeTokenAddress trims the input and rewrites EVM addresses into their
// EIP-55 checksum form so that differently-cased inputs share one key.
// Non-EVM addresses (e.g. Solana base58) are case-sensitive and kept as is.
func NormalizeTokenAddress(raw string) string {
	addr := strings.TrimSpace(raw)
	if common.IsHexAddress(addr) && strings.HasPrefix(strings.ToLower(addr), "0x") {
		return common.HexToAddress(addr).Hex()
	}
	return addr
}
