package workflow

import (
	"context"
	"errors"
	"time"

	"bitbucket.org/mmdatafocus/bakery_backend/config"
	"bitbucket.org/mmdatafocus/bakery_backend/models"
	"bitbucket.org/mmdatafocus/bakery_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Movement ledger.
//
// Sales are never recorded here; the settlement engine infers them. The
// ledger only carries production, transfers and wastage, accumulated per
// (location, product, day). Location stock moves in the same transaction as
// the ledger row so the two can't diverge.

const ledgerLockScope = "ledger"

// guardDayOpen rejects movements on a day the location has already settled.
// A pending or disputed settlement still accepts movements; only the settled
// state freezes the day.
func guardDayOpen(tx *gorm.DB, businessId string, locationId int, date time.Time) error {
	var record models.SettlementRecord
	err := tx.Where("business_id = ? AND location_id = ? AND settlement_date = ?",
		businessId, locationId, date).
		First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if record.Status == models.SettlementStatusSettled {
		return utils.InvalidStatef("location %d is settled for %s", locationId, date.Format("2006-01-02"))
	}
	return nil
}

// RecordInflow posts produced quantity arriving at a location. Transfer
// inflows are posted by RecordTransfer only, so both sides always land
// together.
func RecordInflow(ctx context.Context, businessId string, locationId int, productId int, occurredAt time.Time, category models.InflowCategory, quantity decimal.Decimal) error {
	if !category.IsValid() {
		return utils.InvalidStatef("unknown inflow category %s", category)
	}
	if category == models.InflowCategoryTransferIn {
		return utils.InvalidStatef("transfer inflows are posted via transfers")
	}
	if !quantity.IsPositive() {
		return utils.InvalidQuantityf("inflow quantity must be positive")
	}
	if err := utils.ValidateResourceId[models.Location](ctx, businessId, locationId); err != nil {
		return utils.NotFoundf("location %d", locationId)
	}
	if err := utils.ValidateResourceId[models.Product](ctx, businessId, productId); err != nil {
		return utils.NotFoundf("product %d", productId)
	}

	date, err := models.BusinessDate(ctx, businessId, occurredAt)
	if err != nil {
		return err
	}

	db := config.GetDB()
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := AcquirePostingLock(tx, businessId, ledgerLockScope); err != nil {
			return err
		}
		defer ReleasePostingLock(tx, businessId, ledgerLockScope)

		if err := guardDayOpen(tx, businessId, locationId, date); err != nil {
			return err
		}

		if err := models.UpdateDayLedgerInflow(tx, businessId, locationId, productId, date, category, quantity); err != nil {
			return err
		}
		if err := models.UpdateLocationStockQty(tx, businessId, locationId, productId, quantity); err != nil {
			return err
		}

		return models.PublishOperationsOutbox(ctx, tx, businessId, occurredAt,
			locationId, models.EventReferenceTypeDayLedger, models.EventActionUpdate,
			map[string]interface{}{
				"location_id": locationId,
				"product_id":  productId,
				"date":        date.Format("2006-01-02"),
				"category":    category,
				"quantity":    quantity,
			})
	})
}

// RecordOutflow posts wastage leaving a location. Transfer outflows are
// posted by RecordTransfer only.
func RecordOutflow(ctx context.Context, businessId string, locationId int, productId int, occurredAt time.Time, category models.OutflowCategory, quantity decimal.Decimal) error {
	if !category.IsValid() {
		return utils.InvalidStatef("unknown outflow category %s", category)
	}
	if category == models.OutflowCategoryTransferOut {
		return utils.InvalidStatef("transfer outflows are posted via transfers")
	}
	if !quantity.IsPositive() {
		return utils.InvalidQuantityf("outflow quantity must be positive")
	}
	if err := utils.ValidateResourceId[models.Location](ctx, businessId, locationId); err != nil {
		return utils.NotFoundf("location %d", locationId)
	}
	if err := utils.ValidateResourceId[models.Product](ctx, businessId, productId); err != nil {
		return utils.NotFoundf("product %d", productId)
	}

	date, err := models.BusinessDate(ctx, businessId, occurredAt)
	if err != nil {
		return err
	}

	db := config.GetDB()
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := AcquirePostingLock(tx, businessId, ledgerLockScope); err != nil {
			return err
		}
		defer ReleasePostingLock(tx, businessId, ledgerLockScope)

		if err := guardDayOpen(tx, businessId, locationId, date); err != nil {
			return err
		}

		stock, err := models.FirstOrCreateLocationStock(tx, businessId, locationId, productId)
		if err != nil {
			return err
		}
		if stock.Qty.LessThan(quantity) {
			return utils.InvalidQuantityf("outflow %s exceeds stock %s at location %d",
				quantity.String(), stock.Qty.String(), locationId)
		}

		if err := models.UpdateDayLedgerOutflow(tx, businessId, locationId, productId, date, category, quantity); err != nil {
			return err
		}
		if err := models.UpdateLocationStockQty(tx, businessId, locationId, productId, quantity.Neg()); err != nil {
			return err
		}

		return models.PublishOperationsOutbox(ctx, tx, businessId, occurredAt,
			locationId, models.EventReferenceTypeDayLedger, models.EventActionUpdate,
			map[string]interface{}{
				"location_id": locationId,
				"product_id":  productId,
				"date":        date.Format("2006-01-02"),
				"category":    category,
				"quantity":    quantity,
			})
	})
}

// RecordTransfer moves quantity between two locations in one transaction:
// a TransferOut at the source and a TransferIn at the destination, with the
// source stock checked first.
func RecordTransfer(ctx context.Context, businessId string, fromLocationId int, toLocationId int, productId int, occurredAt time.Time, quantity decimal.Decimal) error {
	if !quantity.IsPositive() {
		return utils.InvalidQuantityf("transfer quantity must be positive")
	}
	if fromLocationId == toLocationId {
		return utils.InvalidStatef("transfer source and destination must differ")
	}
	if err := utils.ValidateResourceId[models.Location](ctx, businessId, fromLocationId); err != nil {
		return utils.NotFoundf("location %d", fromLocationId)
	}
	if err := utils.ValidateResourceId[models.Location](ctx, businessId, toLocationId); err != nil {
		return utils.NotFoundf("location %d", toLocationId)
	}
	if err := utils.ValidateResourceId[models.Product](ctx, businessId, productId); err != nil {
		return utils.NotFoundf("product %d", productId)
	}

	date, err := models.BusinessDate(ctx, businessId, occurredAt)
	if err != nil {
		return err
	}

	db := config.GetDB()
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := AcquirePostingLock(tx, businessId, ledgerLockScope); err != nil {
			return err
		}
		defer ReleasePostingLock(tx, businessId, ledgerLockScope)

		if err := guardDayOpen(tx, businessId, fromLocationId, date); err != nil {
			return err
		}
		if err := guardDayOpen(tx, businessId, toLocationId, date); err != nil {
			return err
		}

		return applyTransfer(tx, businessId, fromLocationId, toLocationId, productId, date, quantity, func() error {
			return models.PublishOperationsOutbox(ctx, tx, businessId, occurredAt,
				fromLocationId, models.EventReferenceTypeDayLedger, models.EventActionUpdate,
				map[string]interface{}{
					"from_location_id": fromLocationId,
					"to_location_id":   toLocationId,
					"product_id":       productId,
					"date":             date.Format("2006-01-02"),
					"quantity":         quantity,
				})
		})
	})
}

// applyTransfer posts both legs of a transfer inside the caller's
// transaction. The settlement engine reuses it for vehicle stock returns.
func applyTransfer(tx *gorm.DB, businessId string, fromLocationId int, toLocationId int, productId int, date time.Time, quantity decimal.Decimal, publish func() error) error {
	stock, err := models.FirstOrCreateLocationStock(tx, businessId, fromLocationId, productId)
	if err != nil {
		return err
	}
	if stock.Qty.LessThan(quantity) {
		return utils.InvalidQuantityf("transfer %s exceeds stock %s at location %d",
			quantity.String(), stock.Qty.String(), fromLocationId)
	}

	if err := models.UpdateDayLedgerOutflow(tx, businessId, fromLocationId, productId, date, models.OutflowCategoryTransferOut, quantity); err != nil {
		return err
	}
	if err := models.UpdateLocationStockQty(tx, businessId, fromLocationId, productId, quantity.Neg()); err != nil {
		return err
	}
	if err := models.UpdateDayLedgerInflow(tx, businessId, toLocationId, productId, date, models.InflowCategoryTransferIn, quantity); err != nil {
		return err
	}
	if err := models.UpdateLocationStockQty(tx, businessId, toLocationId, productId, quantity); err != nil {
		return err
	}

	if publish != nil {
		return publish()
	}
	return nil
}
