package models

import (
	"context"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"bitbucket.org/mmdatafocus/bakery_backend/config"
	"bitbucket.org/mmdatafocus/bakery_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// QuantityMap stores productId -> quantity as a JSON column. Settlement
// records snapshot whole per-product vectors with it so a settled day stays
// readable even after products or ledgers change.
type QuantityMap map[int]decimal.Decimal

func (m QuantityMap) Value() (driver.Value, error) {
	if m == nil {
		return "{}", nil
	}
	data, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

func (m *QuantityMap) Scan(value interface{}) error {
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	case nil:
		*m = QuantityMap{}
		return nil
	default:
		return fmt.Errorf("cannot scan %T into QuantityMap", value)
	}
	if len(data) == 0 {
		*m = QuantityMap{}
		return nil
	}
	return json.Unmarshal(data, m)
}

// Get returns the quantity for a product, zero when absent.
func (m QuantityMap) Get(productId int) decimal.Decimal {
	if m == nil {
		return decimal.Zero
	}
	if qty, ok := m[productId]; ok {
		return qty
	}
	return decimal.Zero
}

// ProductIdsUnion returns the union of product ids across the given maps.
func ProductIdsUnion(maps ...QuantityMap) []int {
	seen := make(map[int]bool)
	var ids []int
	for _, m := range maps {
		for id := range m {
			if !seen[id] {
				seen[id] = true
				ids = append(ids, id)
			}
		}
	}
	return ids
}

// SettlementRecord reconciles one location's day. Opening quantities are
// snapshotted at initiation; recording a count freezes inflow/outflow from
// the day ledger and derives sold and expected cash. Settling fixes actual
// cash and the discrepancy; nothing is recomputed afterwards.
type SettlementRecord struct {
	ID             int              `gorm:"primary_key" json:"id"`
	BusinessId     string           `gorm:"uniqueIndex:settlement_day;size:100;not null" json:"business_id"`
	LocationId     int              `gorm:"uniqueIndex:settlement_day;not null" json:"location_id"`
	SettlementDate time.Time        `gorm:"uniqueIndex:settlement_day;type:date;not null" json:"settlement_date"`
	Status         SettlementStatus `gorm:"index;size:20;not null;default:Pending" json:"status"`

	OpeningQty QuantityMap `gorm:"type:json" json:"opening_qty"`
	InflowQty  QuantityMap `gorm:"type:json" json:"inflow_qty"`
	OutflowQty QuantityMap `gorm:"type:json" json:"outflow_qty"`
	CountedQty QuantityMap `gorm:"type:json" json:"counted_qty"`
	SoldQty    QuantityMap `gorm:"type:json" json:"sold_qty"`

	// HasCount distinguishes "counted all zeroes" from "never counted".
	HasCount *bool `gorm:"not null;default:false" json:"has_count"`
	// HasNegativeSold marks a day where counted stock exceeded what the
	// ledger could explain for at least one product. The negative sold
	// quantity is retained for audit rather than clamped.
	HasNegativeSold *bool `gorm:"not null;default:false" json:"has_negative_sold"`

	ExpectedCash      decimal.Decimal `gorm:"type:decimal(20,2);not null;default:0" json:"expected_cash"`
	ActualCash        decimal.Decimal `gorm:"type:decimal(20,2);not null;default:0" json:"actual_cash"`
	DiscrepancyAmount decimal.Decimal `gorm:"type:decimal(20,2);not null;default:0" json:"discrepancy_amount"`

	Notes         string     `gorm:"type:text" json:"notes"`
	DisputeReason string     `gorm:"type:text" json:"dispute_reason"`
	SettledAt     *time.Time `json:"settled_at"`
	SettledBy     string     `gorm:"size:100" json:"settled_by"`
	CreatedAt     time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func GetSettlementRecord(ctx context.Context, businessId string, id int) (*SettlementRecord, error) {
	record, err := utils.FetchModel[SettlementRecord](ctx, businessId, id)
	if err != nil {
		return nil, utils.NotFoundf("settlement %d", id)
	}
	return record, nil
}

// FetchSettlementForUpdate loads the settlement row locked FOR UPDATE inside
// the caller's transaction.
func FetchSettlementForUpdate(tx *gorm.DB, businessId string, id int) (*SettlementRecord, error) {
	var record SettlementRecord
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("business_id = ? AND id = ?", businessId, id).
		First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.NotFoundf("settlement %d", id)
	}
	if err != nil {
		return nil, err
	}
	return &record, nil
}

func ListSettlements(ctx context.Context, businessId string, locationId int, status SettlementStatus) ([]*SettlementRecord, error) {
	db := config.GetDB()
	dbCtx := db.WithContext(ctx).Where("business_id = ?", businessId)
	if locationId > 0 {
		dbCtx = dbCtx.Where("location_id = ?", locationId)
	}
	if status != "" {
		dbCtx = dbCtx.Where("status = ?", status)
	}
	var records []*SettlementRecord
	if err := dbCtx.Order("settlement_date DESC").Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}
