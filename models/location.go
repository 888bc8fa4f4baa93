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

// Location is a place stock can sit: a shop counter or a delivery vehicle.
// Vehicles carry a home shop; unsold stock returns there when the vehicle's
// day is settled.
type Location struct {
	ID             int          `gorm:"primary_key" json:"id"`
	BusinessId     string       `gorm:"index;size:100;not null" json:"business_id"`
	Name           string       `gorm:"index;size:100;not null" json:"name" binding:"required"`
	Type           LocationType `gorm:"size:20;not null" json:"type" binding:"required"`
	HomeLocationId *int         `gorm:"index" json:"home_location_id"`
	IsActive       *bool        `gorm:"not null;default:true" json:"is_active"`
	CreatedAt      time.Time    `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time    `gorm:"autoUpdateTime" json:"updated_at"`
}

// LocationStock is the current quantity of a product at a location. Rows are
// created lazily and mutated only with relative-update SQL under row locks,
// never with read-modify-write from Go.
type LocationStock struct {
	ID         int             `gorm:"primary_key" json:"id"`
	BusinessId string          `gorm:"uniqueIndex:location_stock;size:100;not null" json:"business_id"`
	LocationId int             `gorm:"uniqueIndex:location_stock;not null" json:"location_id"`
	ProductId  int             `gorm:"uniqueIndex:location_stock;not null" json:"product_id"`
	Qty        decimal.Decimal `gorm:"type:decimal(20,4);not null;default:0" json:"qty"`
	CreatedAt  time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewLocation struct {
	Name           string       `json:"name" binding:"required"`
	Type           LocationType `json:"type" binding:"required"`
	HomeLocationId *int         `json:"home_location_id"`
}

func (input *NewLocation) validate(ctx context.Context, businessId string, exceptId int) error {
	if !input.Type.IsValid() {
		return utils.InvalidStatef("unknown location type %s", input.Type)
	}
	if err := utils.ValidateUnique[Location](ctx, businessId, "name", input.Name, exceptId); err != nil {
		return err
	}
	if input.Type == LocationTypeVehicle {
		if input.HomeLocationId == nil || *input.HomeLocationId == 0 {
			return utils.InvalidStatef("vehicle requires a home location")
		}
		home, err := utils.FetchModel[Location](ctx, businessId, *input.HomeLocationId)
		if err != nil {
			return utils.NotFoundf("home location %d", *input.HomeLocationId)
		}
		if home.Type != LocationTypeShop {
			return utils.InvalidStatef("home location must be a shop")
		}
	} else if input.HomeLocationId != nil {
		return utils.InvalidStatef("only vehicles carry a home location")
	}
	return nil
}

func CreateLocation(ctx context.Context, businessId string, input *NewLocation) (*Location, error) {
	if err := input.validate(ctx, businessId, 0); err != nil {
		return nil, err
	}

	location := Location{
		BusinessId:     businessId,
		Name:           input.Name,
		Type:           input.Type,
		HomeLocationId: input.HomeLocationId,
		IsActive:       utils.NewTrue(),
	}
	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&location).Error; err != nil {
		return nil, err
	}
	return &location, nil
}

func GetLocation(ctx context.Context, businessId string, id int) (*Location, error) {
	location, err := utils.FetchModel[Location](ctx, businessId, id)
	if err != nil {
		return nil, utils.NotFoundf("location %d", id)
	}
	return location, nil
}

func ListLocations(ctx context.Context, businessId string) ([]*Location, error) {
	return utils.FetchAllModels[Location](ctx, businessId)
}

// FirstOrCreateLocationStock finds or creates the stock row, locking it FOR
// UPDATE for the remainder of the transaction.
func FirstOrCreateLocationStock(tx *gorm.DB, businessId string, locationId int, productId int) (*LocationStock, error) {
	stock := LocationStock{
		BusinessId: businessId,
		LocationId: locationId,
		ProductId:  productId,
		Qty:        decimal.Zero,
	}
	result := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("business_id = ? AND location_id = ? AND product_id = ?", businessId, locationId, productId).
		FirstOrCreate(&stock)
	if result.Error != nil {
		return nil, result.Error
	}
	return &stock, nil
}

// UpdateLocationStockQty applies a relative quantity change to the stock row.
func UpdateLocationStockQty(tx *gorm.DB, businessId string, locationId int, productId int, quantity decimal.Decimal) error {
	stock, err := FirstOrCreateLocationStock(tx, businessId, locationId, productId)
	if err != nil {
		return err
	}

	if err := tx.Exec("UPDATE location_stocks SET qty = qty + ? WHERE id = ?", quantity, stock.ID).Error; err != nil {
		return err
	}
	return nil
}

// LocationStockQty reads the current quantity without locking; zero when no
// row exists yet.
func LocationStockQty(ctx context.Context, businessId string, locationId int, productId int) (decimal.Decimal, error) {
	db := config.GetDB()
	var stock LocationStock
	err := db.WithContext(ctx).
		Where("business_id = ? AND location_id = ? AND product_id = ?", businessId, locationId, productId).
		First(&stock).Error
	if err == gorm.ErrRecordNotFound {
		return decimal.Zero, nil
	}
	if err != nil {
		return decimal.Zero, err
	}
	return stock.Qty, nil
}

// LocationStockSnapshot returns productId -> qty for every product stocked at
// the location, locked FOR UPDATE. Settlement initiation snapshots openings
// from this.
func LocationStockSnapshot(tx *gorm.DB, businessId string, locationId int) (map[int]decimal.Decimal, error) {
	var rows []LocationStock
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("business_id = ? AND location_id = ?", businessId, locationId).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	snapshot := make(map[int]decimal.Decimal, len(rows))
	for _, row := range rows {
		snapshot[row.ProductId] = row.Qty
	}
	return snapshot, nil
}
