package models

import (
	"context"
	"time"

	"bitbucket.org/mmdatafocus/bakery_backend/config"
	"bitbucket.org/mmdatafocus/bakery_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DayLedger accumulates one day's movements for a product at a location.
// Opening quantity is NOT stored here; it is snapshotted onto the settlement
// record when the day is opened for reconciliation. Each column only ever
// grows, via relative-update SQL.
type DayLedger struct {
	ID         int       `gorm:"primary_key" json:"id"`
	BusinessId string    `gorm:"uniqueIndex:day_ledger;size:100;not null" json:"business_id"`
	LocationId int       `gorm:"uniqueIndex:day_ledger;not null" json:"location_id"`
	ProductId  int       `gorm:"uniqueIndex:day_ledger;not null" json:"product_id"`
	LedgerDate time.Time `gorm:"uniqueIndex:day_ledger;type:date;not null" json:"ledger_date"`

	ProductionInQty decimal.Decimal `gorm:"type:decimal(20,4);not null;default:0" json:"production_in_qty"`
	TransferInQty   decimal.Decimal `gorm:"type:decimal(20,4);not null;default:0" json:"transfer_in_qty"`
	TransferOutQty  decimal.Decimal `gorm:"type:decimal(20,4);not null;default:0" json:"transfer_out_qty"`
	WastageQty      decimal.Decimal `gorm:"type:decimal(20,4);not null;default:0" json:"wastage_qty"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// InflowQty is production plus transfers in.
func (l *DayLedger) InflowQty() decimal.Decimal {
	return l.ProductionInQty.Add(l.TransferInQty)
}

// OutflowQty is transfers out plus wastage.
func (l *DayLedger) OutflowQty() decimal.Decimal {
	return l.TransferOutQty.Add(l.WastageQty)
}

// FirstOrCreateDayLedger finds or creates the day row, locking it FOR UPDATE
// for the remainder of the transaction.
func FirstOrCreateDayLedger(tx *gorm.DB, businessId string, locationId int, productId int, date time.Time) (*DayLedger, error) {
	ledger := DayLedger{
		BusinessId: businessId,
		LocationId: locationId,
		ProductId:  productId,
		LedgerDate: date,
	}
	result := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("business_id = ? AND location_id = ? AND product_id = ? AND ledger_date = ?",
			businessId, locationId, productId, date).
		FirstOrCreate(&ledger)
	if result.Error != nil {
		return nil, result.Error
	}
	return &ledger, nil
}

func UpdateDayLedgerInflow(tx *gorm.DB, businessId string, locationId int, productId int, date time.Time, category InflowCategory, quantity decimal.Decimal) error {
	ledger, err := FirstOrCreateDayLedger(tx, businessId, locationId, productId, date)
	if err != nil {
		return err
	}

	var column string
	switch category {
	case InflowCategoryProduction:
		column = "production_in_qty"
	case InflowCategoryTransferIn:
		column = "transfer_in_qty"
	default:
		return utils.InvalidStatef("unknown inflow category %s", category)
	}

	if err := tx.Exec("UPDATE day_ledgers SET "+column+" = "+column+" + ? WHERE id = ?", quantity, ledger.ID).Error; err != nil {
		return err
	}
	return nil
}

func UpdateDayLedgerOutflow(tx *gorm.DB, businessId string, locationId int, productId int, date time.Time, category OutflowCategory, quantity decimal.Decimal) error {
	ledger, err := FirstOrCreateDayLedger(tx, businessId, locationId, productId, date)
	if err != nil {
		return err
	}

	var column string
	switch category {
	case OutflowCategoryTransferOut:
		column = "transfer_out_qty"
	case OutflowCategoryWastage:
		column = "wastage_qty"
	default:
		return utils.InvalidStatef("unknown outflow category %s", category)
	}

	if err := tx.Exec("UPDATE day_ledgers SET "+column+" = "+column+" + ? WHERE id = ?", quantity, ledger.ID).Error; err != nil {
		return err
	}
	return nil
}

// FetchDayLedgers returns all ledger rows of a location for one day.
func FetchDayLedgers(ctx context.Context, businessId string, locationId int, date time.Time) ([]*DayLedger, error) {
	db := config.GetDB()
	var ledgers []*DayLedger
	err := db.WithContext(ctx).
		Where("business_id = ? AND location_id = ? AND ledger_date = ?", businessId, locationId, date).
		Find(&ledgers).Error
	if err != nil {
		return nil, err
	}
	return ledgers, nil
}

// FetchDayLedgersForUpdate is the in-transaction variant, rows locked FOR
// UPDATE so settlement math sees a stable day.
func FetchDayLedgersForUpdate(tx *gorm.DB, businessId string, locationId int, date time.Time) ([]*DayLedger, error) {
	var ledgers []*DayLedger
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("business_id = ? AND location_id = ? AND ledger_date = ?", businessId, locationId, date).
		Find(&ledgers).Error
	if err != nil {
		return nil, err
	}
	return ledgers, nil
}
