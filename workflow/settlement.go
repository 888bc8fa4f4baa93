package workflow

import (
	"context"
	"sort"
	"time"

	"bitbucket.org/mmdatafocus/bakery_backend/config"
	"bitbucket.org/mmdatafocus/bakery_backend/models"
	"bitbucket.org/mmdatafocus/bakery_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Settlement lifecycle: Pending -> Settled, or Pending -> Disputed.
//
// Initiation snapshots the opening quantities. Recording a count freezes the
// day's ledger figures onto the record and derives sold quantities and
// expected cash; re-counting before settlement re-derives from scratch.
// Settling fixes actual cash and the discrepancy, reconciles location stock
// to the count, and for vehicles returns the unsold stock to the home shop.
// A settled record is immutable.

const settlementLockScope = "settlement"

// InitiateSettlement opens the day of a location for reconciliation. The
// opening quantity per product is reconstructed as current stock minus the
// day's net movements, so initiation works no matter when during the day it
// runs. A second initiation for the same location and day hits the unique
// index and reports a conflict.
func InitiateSettlement(ctx context.Context, businessId string, locationId int, occurredAt time.Time) (*models.SettlementRecord, error) {
	if _, err := models.GetLocation(ctx, businessId, locationId); err != nil {
		return nil, err
	}

	date, err := models.BusinessDate(ctx, businessId, occurredAt)
	if err != nil {
		return nil, err
	}

	var record models.SettlementRecord
	db := config.GetDB()
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := AcquirePostingLock(tx, businessId, settlementLockScope); err != nil {
			return err
		}
		defer ReleasePostingLock(tx, businessId, settlementLockScope)

		stock, err := models.LocationStockSnapshot(tx, businessId, locationId)
		if err != nil {
			return err
		}
		ledgers, err := models.FetchDayLedgersForUpdate(tx, businessId, locationId, date)
		if err != nil {
			return err
		}

		opening := models.QuantityMap{}
		for productId, qty := range stock {
			opening[productId] = qty
		}
		// Back out today's movements: opening = stock - inflow + outflow.
		for _, ledger := range ledgers {
			opening[ledger.ProductId] = opening.Get(ledger.ProductId).
				Sub(ledger.InflowQty()).
				Add(ledger.OutflowQty())
		}

		record = models.SettlementRecord{
			BusinessId:      businessId,
			LocationId:      locationId,
			SettlementDate:  date,
			Status:          models.SettlementStatusPending,
			OpeningQty:      opening,
			InflowQty:       models.QuantityMap{},
			OutflowQty:      models.QuantityMap{},
			CountedQty:      models.QuantityMap{},
			SoldQty:         models.QuantityMap{},
			HasCount:        utils.NewFalse(),
			HasNegativeSold: utils.NewFalse(),
		}
		if err := tx.Create(&record).Error; err != nil {
			if isDuplicateKeyErr(err) {
				return utils.Conflictf("settlement already initiated for location %d on %s",
					locationId, date.Format("2006-01-02"))
			}
			return err
		}

		return models.PublishOperationsOutbox(ctx, tx, businessId, occurredAt,
			record.ID, models.EventReferenceTypeSettlement, models.EventActionCreate, &record)
	})
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// RecordSettlementCount stores the physical count, freezes the day's ledger
// inflow/outflow onto the record and derives sold quantities and expected
// cash. Only pending settlements accept counts; a repeated count overwrites
// the previous one and re-derives everything from scratch.
func RecordSettlementCount(ctx context.Context, businessId string, settlementId int, counted map[int]decimal.Decimal) (*models.SettlementRecord, error) {
	logger := config.GetLogger()

	countedMap := models.QuantityMap{}
	for productId, qty := range counted {
		if qty.IsNegative() {
			return nil, utils.InvalidQuantityf("counted quantity for product %d must not be negative", productId)
		}
		countedMap[productId] = qty
	}

	var record *models.SettlementRecord
	db := config.GetDB()
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := AcquirePostingLock(tx, businessId, settlementLockScope); err != nil {
			return err
		}
		defer ReleasePostingLock(tx, businessId, settlementLockScope)

		var err error
		record, err = models.FetchSettlementForUpdate(tx, businessId, settlementId)
		if err != nil {
			return err
		}
		if record.Status != models.SettlementStatusPending {
			return utils.InvalidStatef("settlement %d is %s, counts are only accepted while pending",
				settlementId, record.Status)
		}

		ledgers, err := models.FetchDayLedgersForUpdate(tx, businessId, record.LocationId, record.SettlementDate)
		if err != nil {
			return err
		}
		inflow := models.QuantityMap{}
		outflow := models.QuantityMap{}
		for _, ledger := range ledgers {
			inflow[ledger.ProductId] = ledger.InflowQty()
			outflow[ledger.ProductId] = ledger.OutflowQty()
		}

		productIds := models.ProductIdsUnion(record.OpeningQty, inflow, outflow, countedMap)
		sort.Ints(productIds)

		sold := models.QuantityMap{}
		hasNegativeSold := false
		expectedCash := decimal.Zero
		for _, productId := range productIds {
			countedQty := countedMap.Get(productId)
			// More counted than was ever sent plus produced is physically
			// impossible, not just suspicious.
			sent := record.OpeningQty.Get(productId).Add(inflow.Get(productId))
			if countedQty.GreaterThan(sent) {
				return utils.InvalidQuantityf("counted %s of product %d exceeds the %s sent",
					countedQty, productId, sent)
			}

			soldQty := DeriveSold(record.OpeningQty.Get(productId), inflow.Get(productId),
				outflow.Get(productId), countedQty)
			sold[productId] = soldQty
			if soldQty.IsNegative() {
				hasNegativeSold = true
				config.LogWarn(logger, "settlement.go", "RecordSettlementCount",
					"counted stock exceeds explainable quantity",
					map[string]interface{}{
						"settlement_id": settlementId,
						"product_id":    productId,
						"counted":       countedQty.String(),
					},
					"negative sold quantity retained")
			}

			var product models.Product
			if err := tx.Where("business_id = ? AND id = ?", businessId, productId).
				First(&product).Error; err != nil {
				return utils.NotFoundf("product %d", productId)
			}
			expectedCash = expectedCash.Add(ExpectedCashLine(soldQty, product.SellingPrice))
		}
		expectedCash = expectedCash.Round(2)

		record.InflowQty = inflow
		record.OutflowQty = outflow
		record.CountedQty = countedMap
		record.SoldQty = sold
		record.HasNegativeSold = &hasNegativeSold
		record.ExpectedCash = expectedCash
		record.HasCount = utils.NewTrue()

		return tx.Model(&models.SettlementRecord{}).Where("id = ?", record.ID).
			Updates(map[string]interface{}{
				"inflow_qty":        record.InflowQty,
				"outflow_qty":       record.OutflowQty,
				"counted_qty":       record.CountedQty,
				"sold_qty":          record.SoldQty,
				"has_negative_sold": hasNegativeSold,
				"expected_cash":     record.ExpectedCash,
				"has_count":         true,
			}).Error
	})
	if err != nil {
		return nil, err
	}
	return record, nil
}

// SettleSettlement closes the day. It fixes actual cash and the discrepancy
// against the count-time expected cash, reconciles location stock to the
// counted quantities and, for vehicles, transfers the counted remainder back
// to the home shop. Re-settling fails instead of recomputing.
func SettleSettlement(ctx context.Context, businessId string, settlementId int, actualCash decimal.Decimal, notes string) (*models.SettlementRecord, error) {
	if actualCash.IsNegative() {
		return nil, utils.InvalidQuantityf("actual cash must not be negative")
	}

	var record *models.SettlementRecord
	db := config.GetDB()
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := AcquirePostingLock(tx, businessId, settlementLockScope); err != nil {
			return err
		}
		defer ReleasePostingLock(tx, businessId, settlementLockScope)

		var err error
		record, err = models.FetchSettlementForUpdate(tx, businessId, settlementId)
		if err != nil {
			return err
		}
		if record.Status != models.SettlementStatusPending {
			return utils.InvalidStatef("settlement %d is %s, only pending settlements can settle",
				settlementId, record.Status)
		}
		if !utils.DereferencePtr(record.HasCount) {
			return utils.InvalidStatef("settlement %d has no recorded count", settlementId)
		}

		var location models.Location
		if err := tx.Where("business_id = ? AND id = ?", businessId, record.LocationId).
			First(&location).Error; err != nil {
			return utils.NotFoundf("location %d", record.LocationId)
		}

		productIds := models.ProductIdsUnion(record.OpeningQty, record.InflowQty,
			record.OutflowQty, record.CountedQty)
		sort.Ints(productIds)

		// Reconcile stock rows to the physical count: sold quantity leaves the
		// system here, since sales were never posted as movements.
		for _, productId := range productIds {
			currentQty, err := stockQtyForUpdate(tx, businessId, record.LocationId, productId)
			if err != nil {
				return err
			}
			delta := record.CountedQty.Get(productId).Sub(currentQty)
			if !delta.IsZero() {
				if err := models.UpdateLocationStockQty(tx, businessId, record.LocationId, productId, delta); err != nil {
					return err
				}
			}
		}

		// Vehicles hand their remainder back to the home shop at end of day.
		if location.Type == models.LocationTypeVehicle {
			if location.HomeLocationId == nil {
				return utils.InvalidStatef("vehicle %d has no home location", location.ID)
			}
			for _, productId := range productIds {
				counted := record.CountedQty.Get(productId)
				if counted.IsPositive() {
					if err := applyTransfer(tx, businessId, location.ID, *location.HomeLocationId,
						productId, record.SettlementDate, counted, nil); err != nil {
						return err
					}
				}
			}
		}

		now := time.Now().UTC()
		settledBy, _ := utils.GetUserNameFromContext(ctx)
		record.Status = models.SettlementStatusSettled
		record.ActualCash = actualCash.Round(2)
		record.DiscrepancyAmount = record.ActualCash.Sub(record.ExpectedCash).Round(2)
		record.Notes = notes
		record.SettledAt = &now
		record.SettledBy = settledBy

		if err := tx.Model(&models.SettlementRecord{}).Where("id = ?", record.ID).
			Updates(map[string]interface{}{
				"status":             record.Status,
				"actual_cash":        record.ActualCash,
				"discrepancy_amount": record.DiscrepancyAmount,
				"notes":              notes,
				"settled_at":         now,
				"settled_by":         settledBy,
			}).Error; err != nil {
			return err
		}

		return models.PublishOperationsOutbox(ctx, tx, businessId, now,
			record.ID, models.EventReferenceTypeSettlement, models.EventActionUpdate, record)
	})
	if err != nil {
		return nil, err
	}
	return record, nil
}

// DisputeSettlement marks a pending settlement as disputed. When strict
// immutability is relaxed, an already settled record may also be disputed for
// later manual correction; its derived figures are kept as settled.
func DisputeSettlement(ctx context.Context, businessId string, settlementId int, reason string) (*models.SettlementRecord, error) {
	if reason == "" {
		return nil, utils.InvalidStatef("dispute requires a reason")
	}

	var record *models.SettlementRecord
	db := config.GetDB()
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		record, err = models.FetchSettlementForUpdate(tx, businessId, settlementId)
		if err != nil {
			return err
		}
		switch record.Status {
		case models.SettlementStatusPending:
		case models.SettlementStatusSettled:
			if config.StrictSettlementImmutability() {
				return utils.InvalidStatef("settlement %d is settled and cannot be disputed", settlementId)
			}
		default:
			return utils.InvalidStatef("settlement %d is already disputed", settlementId)
		}

		record.Status = models.SettlementStatusDisputed
		record.DisputeReason = reason

		return tx.Model(&models.SettlementRecord{}).Where("id = ?", record.ID).
			Updates(map[string]interface{}{
				"status":         record.Status,
				"dispute_reason": reason,
			}).Error
	})
	if err != nil {
		return nil, err
	}
	return record, nil
}

// SettlementDetailLine is the per-product breakdown in a settlement view.
type SettlementDetailLine struct {
	ProductId    int             `json:"product_id"`
	ProductName  string          `json:"product_name"`
	SellingPrice decimal.Decimal `json:"selling_price"`
	OpeningQty   decimal.Decimal `json:"opening_qty"`
	InflowQty    decimal.Decimal `json:"inflow_qty"`
	OutflowQty   decimal.Decimal `json:"outflow_qty"`
	CountedQty   decimal.Decimal `json:"counted_qty"`
	SoldQty      decimal.Decimal `json:"sold_qty"`
	ExpectedCash decimal.Decimal `json:"expected_cash"`
}

type SettlementDetail struct {
	Record *models.SettlementRecord `json:"record"`
	Lines  []SettlementDetailLine   `json:"lines"`
}

// GetSettlementDetail returns the record with a per-product breakdown.
// Before a count is recorded the ledger figures are a live preview; once
// counted the frozen maps are shown.
func GetSettlementDetail(ctx context.Context, businessId string, settlementId int) (*SettlementDetail, error) {
	record, err := models.GetSettlementRecord(ctx, businessId, settlementId)
	if err != nil {
		return nil, err
	}

	preview := record.Status == models.SettlementStatusPending && !utils.DereferencePtr(record.HasCount)

	inflow := record.InflowQty
	outflow := record.OutflowQty
	if preview {
		ledgers, err := models.FetchDayLedgers(ctx, businessId, record.LocationId, record.SettlementDate)
		if err != nil {
			return nil, err
		}
		inflow = models.QuantityMap{}
		outflow = models.QuantityMap{}
		for _, ledger := range ledgers {
			inflow[ledger.ProductId] = ledger.InflowQty()
			outflow[ledger.ProductId] = ledger.OutflowQty()
		}
	}

	productIds := models.ProductIdsUnion(record.OpeningQty, inflow, outflow, record.CountedQty, record.SoldQty)
	sort.Ints(productIds)

	detail := &SettlementDetail{Record: record}
	for _, productId := range productIds {
		product, err := models.GetProduct(ctx, businessId, productId)
		if err != nil {
			return nil, err
		}
		line := SettlementDetailLine{
			ProductId:    productId,
			ProductName:  product.Name,
			SellingPrice: product.SellingPrice,
			OpeningQty:   record.OpeningQty.Get(productId),
			InflowQty:    inflow.Get(productId),
			OutflowQty:   outflow.Get(productId),
			CountedQty:   record.CountedQty.Get(productId),
		}
		if preview {
			line.SoldQty = DeriveSold(line.OpeningQty, line.InflowQty, line.OutflowQty, line.CountedQty)
		} else {
			line.SoldQty = record.SoldQty.Get(productId)
		}
		line.ExpectedCash = ExpectedCashLine(line.SoldQty, product.SellingPrice)
		detail.Lines = append(detail.Lines, line)
	}
	return detail, nil
}

func stockQtyForUpdate(tx *gorm.DB, businessId string, locationId int, productId int) (decimal.Decimal, error) {
	stock, err := models.FirstOrCreateLocationStock(tx, businessId, locationId, productId)
	if err != nil {
		return decimal.Zero, err
	}
	return stock.Qty, nil
}
