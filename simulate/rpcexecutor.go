package simulate

import (
	"context"
	"fmt"
	"math/big"

	"github.com/launchsentinel/core/chaindata"
)

// RPCStepExecutor implements StepExecutor against a live chaindata.EVMClient
// using eth_call. It reads the step's output as the trailing 32 bytes of
// the call's return data interpreted as a big-endian uint256, the
// calling convention every AMM/bonding-curve swap function in this
// domain follows for its single uint256 return value. Gas usage isn't
// observable from eth_call alone; callers that need a pre-trade gas
// estimate should query GasPriceWei separately and apply the bundle's
// declared MaxGasLimit.
type RPCStepExecutor struct {
	client chaindata.EVMClient
}

func NewRPCStepExecutor(client chaindata.EVMClient) *RPCStepExecutor {
	return &RPCStepExecutor{client: client}
}

func (e *RPCStepExecutor) Execute(ctx context.Context, blockHeight uint64, step BundleStep) (StepResult, error) {
	data := append(append([]byte{}, step.Selector[:]...), step.Calldata...)
	result := e.client.Call(ctx, chaindata.Call{Target: step.Target, Data: data})
	if result.Err != nil {
		return StepResult{Success: false, Revert: result.Err.Error()}, nil
	}
	if !result.Success {
		return StepResult{Success: false, Revert: "call reverted"}, nil
	}

	var outWei int64
	if len(result.Data) >= 32 {
		out := new(big.Int).SetBytes(result.Data[len(result.Data)-32:])
		if out.IsInt64() {
			outWei = out.Int64()
		} else {
			return StepResult{}, fmt.Errorf("simulate: output exceeds int64 range")
		}
	}

	return StepResult{Success: true, OutWei: outWei}, nil
}
