package model

import "github.com/ethereum/go-ethereum/common"

// LPVault tracks fee-derived funds earmarked for external liquidity.
// TotalAllocated always equals TotalDeployed + PendingDeployment; funds
// withdrawn back to the authority leave the allocation and are counted in
// TotalWithdrawn.
type LPVault struct {
	Mint               common.Address `json:"mint"`
	Authority          common.Address `json:"authority"`
	TotalAllocated     uint64         `json:"total_allocated"`
	TotalDeployed      uint64         `json:"total_deployed"`
	PendingDeployment  uint64         `json:"pending_deployment"`
	TotalWithdrawn     uint64         `json:"total_withdrawn"`
	DeploymentCount    uint64         `json:"deployment_count"`
	LastDeploymentTime int64          `json:"last_deployment_time"`
	CreatedAt          int64          `json:"created_at"`
}

// LPDeployment records one liquidity deployment made outside the ledger.
type LPDeployment struct {
	Mint           common.Address `json:"mint"`
	Seq            uint64         `json:"seq"`
	Target         common.Address `json:"target"`
	Amount         uint64         `json:"amount"`
	SharesReceived uint64         `json:"shares_received"`
	DeployedAt     int64          `json:"deployed_at"`
}
