package config

import (
	"os"
	"strings"
)

// CascadeOnUnitCostChange controls whether overwriting an ingredient's unit cost
// (directly or via a stock purchase) immediately recomputes every composition line
// that references it, and all downstream preparation/recipe aggregates.
//
// The legacy tracker only recomputed lines that were themselves re-saved, which
// left downstream costs stale until an operator ran a manual recalculation.
// Defaults to true (automatic cascade). Set COST_CASCADE_ON_UNIT_COST=false to
// match the legacy manual-recalculation behavior.
func CascadeOnUnitCostChange() bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv("COST_CASCADE_ON_UNIT_COST")))
	if v == "" {
		return true
	}
	return v == "1" || v == "true" || v == "yes" || v == "y"
}

// StrictSettlementImmutability rejects any write to a settlement record after it
// reaches a terminal status, even from internal backfill tooling.
//
// Set via env:
// - STRICT_SETTLEMENT_IMMUTABLE=false to allow backfill tooling to rewrite terminal records.
func StrictSettlementImmutability() bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv("STRICT_SETTLEMENT_IMMUTABLE")))
	if v == "" {
		return true
	}
	return v == "1" || v == "true" || v == "yes" || v == "y"
}
