package model

// Audit check names.
const (
	CheckInitializeTick = "initialize_tick"
	CheckSwapTick       = "swap_tick"
	CheckPriceRange     = "price_range"
	CheckTickRange      = "tick_range"
	CheckMintAmounts    = "mint_amounts"
	CheckBurnAmounts    = "burn_amounts"
)

// Audit finding statuses.
const (
	StatusOK       = "ok"
	StatusMismatch = "mismatch"
	StatusError    = "error"
	StatusSkipped  = "skipped"
)

// AuditFinding is the outcome of checking one pool event against tick math.
type AuditFinding struct {
	ChainID     uint64 `json:"chain_id"`
	PoolAddress string `json:"pool_address"`
	BlockNumber uint64 `json:"block_number"`
	TxHash      string `json:"tx_hash"`
	LogIndex    uint64 `json:"log_index"`
	EventName   string `json:"event_name"`
	Check       string `json:"check"`
	Status      string `json:"status"`
	Code        string `json:"code,omitempty"`
	Expected    string `json:"expected,omitempty"`
	Actual      string `json:"actual,omitempty"`
	Detail      string `json:"detail,omitempty"`
}

// Failed reports whether the finding needs attention.
func (f AuditFinding) Failed() bool {
	return f.Status == StatusMismatch || f.Status == StatusError
}
