package chain

import "github.com/ethereum/go-ethereum/common"

// Routers holds the swap router deployments step calldata is sent to.
type Routers struct {
	V2 common.Address
	V3 common.Address
}

// DefaultRouters returns the Uniswap router deployments on Polygon Amoy.
// Both V2-style and V3-style calls go through the V3 SwapRouter deployment
// until a dedicated V2 router is configured for the target network.
func DefaultRouters() Routers {
	v3 := common.HexToAddress("0xE592427A0AEce92De3Edee1F18E0157C05861564")
	return Routers{
		V2: v3,
		V3: v3,
	}
}
