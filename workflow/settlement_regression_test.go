package workflow_test

import (
	"errors"
	"testing"
	"time"

	"bitbucket.org/mmdatafocus/bakery_backend/models"
	"bitbucket.org/mmdatafocus/bakery_backend/utils"
	"bitbucket.org/mmdatafocus/bakery_backend/workflow"
	"github.com/shopspring/decimal"
)

// Regression: the full shop day from the ops playbook. Opening 20, produced
// 50, transferred out 10, wasted 2, counted 15 -> sold 43, expected cash 1290
// at a 30 selling price.
func TestSettlement_ShopDayLifecycle(t *testing.T) {
	ctx, businessId := setupIntegration(t, "Settle Bakery", "owner@settle.test")

	bun, err := models.CreateProduct(ctx, businessId, &models.NewProduct{
		Name:         "Bun",
		SellingPrice: decimal.NewFromInt(30),
	})
	if err != nil {
		t.Fatalf("CreateProduct: %v", err)
	}
	shop, err := models.CreateLocation(ctx, businessId, &models.NewLocation{
		Name: "Main Shop",
		Type: models.LocationTypeShop,
	})
	if err != nil {
		t.Fatalf("CreateLocation(shop): %v", err)
	}
	vehicle, err := models.CreateLocation(ctx, businessId, &models.NewLocation{
		Name:           "Van 1",
		Type:           models.LocationTypeVehicle,
		HomeLocationId: &shop.ID,
	})
	if err != nil {
		t.Fatalf("CreateLocation(vehicle): %v", err)
	}

	day1 := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	day2 := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

	// Day 1 leaves 20 buns at the shop overnight.
	if err := workflow.RecordInflow(ctx, businessId, shop.ID, bun.ID, day1,
		models.InflowCategoryProduction, decimal.NewFromInt(20)); err != nil {
		t.Fatalf("RecordInflow(day1): %v", err)
	}

	// Day 2: 50 produced, 10 to the van, 2 wasted.
	if err := workflow.RecordInflow(ctx, businessId, shop.ID, bun.ID, day2,
		models.InflowCategoryProduction, decimal.NewFromInt(50)); err != nil {
		t.Fatalf("RecordInflow(day2): %v", err)
	}
	if err := workflow.RecordTransfer(ctx, businessId, shop.ID, vehicle.ID, bun.ID, day2,
		decimal.NewFromInt(10)); err != nil {
		t.Fatalf("RecordTransfer: %v", err)
	}
	if err := workflow.RecordOutflow(ctx, businessId, shop.ID, bun.ID, day2,
		models.OutflowCategoryWastage, decimal.NewFromInt(2)); err != nil {
		t.Fatalf("RecordOutflow: %v", err)
	}

	record, err := workflow.InitiateSettlement(ctx, businessId, shop.ID, day2)
	if err != nil {
		t.Fatalf("InitiateSettlement: %v", err)
	}
	if !record.OpeningQty.Get(bun.ID).Equal(decimal.NewFromInt(20)) {
		t.Fatalf("opening: expected 20, got %s", record.OpeningQty.Get(bun.ID))
	}

	// Duplicate initiation for the same location and day must conflict.
	if _, err := workflow.InitiateSettlement(ctx, businessId, shop.ID, day2); !errors.Is(err, utils.ErrorConstraintConflict) {
		t.Fatalf("duplicate initiation: expected constraint conflict, got %v", err)
	}

	// Settling before a count is recorded is rejected.
	if _, err := workflow.SettleSettlement(ctx, businessId, record.ID, decimal.NewFromInt(1200), ""); !errors.Is(err, utils.ErrorInvalidState) {
		t.Fatalf("settle without count: expected invalid state, got %v", err)
	}

	// A first count, then an overwrite: the second count re-derives from
	// scratch.
	counted, err := workflow.RecordSettlementCount(ctx, businessId, record.ID,
		map[int]decimal.Decimal{bun.ID: decimal.NewFromInt(14)})
	if err != nil {
		t.Fatalf("RecordSettlementCount: %v", err)
	}
	if !counted.SoldQty.Get(bun.ID).Equal(decimal.NewFromInt(44)) {
		t.Fatalf("sold after first count: expected 44, got %s", counted.SoldQty.Get(bun.ID))
	}
	counted, err = workflow.RecordSettlementCount(ctx, businessId, record.ID,
		map[int]decimal.Decimal{bun.ID: decimal.NewFromInt(15)})
	if err != nil {
		t.Fatalf("RecordSettlementCount(overwrite): %v", err)
	}
	if !counted.SoldQty.Get(bun.ID).Equal(decimal.NewFromInt(43)) {
		t.Fatalf("sold: expected 43, got %s", counted.SoldQty.Get(bun.ID))
	}
	if !counted.ExpectedCash.Equal(decimal.NewFromInt(1290)) {
		t.Fatalf("expected cash: expected 1290, got %s", counted.ExpectedCash)
	}

	settled, err := workflow.SettleSettlement(ctx, businessId, record.ID, decimal.NewFromInt(1200), "short till")
	if err != nil {
		t.Fatalf("SettleSettlement: %v", err)
	}
	if settled.Status != models.SettlementStatusSettled {
		t.Fatalf("expected settled, got %s", settled.Status)
	}
	if !settled.SoldQty.Get(bun.ID).Equal(decimal.NewFromInt(43)) {
		t.Fatalf("sold: expected 43, got %s", settled.SoldQty.Get(bun.ID))
	}
	if !settled.DiscrepancyAmount.Equal(decimal.NewFromInt(-90)) {
		t.Fatalf("discrepancy: expected -90, got %s", settled.DiscrepancyAmount)
	}
	if utils.DereferencePtr(settled.HasNegativeSold) {
		t.Fatal("unexpected negative-sold flag")
	}

	// The settled day is frozen: no further movements, counts or disputes.
	err = workflow.RecordInflow(ctx, businessId, shop.ID, bun.ID, day2,
		models.InflowCategoryProduction, decimal.NewFromInt(1))
	if !errors.Is(err, utils.ErrorInvalidState) {
		t.Fatalf("movement on settled day: expected invalid state, got %v", err)
	}
	_, err = workflow.RecordSettlementCount(ctx, businessId, record.ID,
		map[int]decimal.Decimal{bun.ID: decimal.NewFromInt(16)})
	if !errors.Is(err, utils.ErrorInvalidState) {
		t.Fatalf("count on settled record: expected invalid state, got %v", err)
	}
	_, err = workflow.DisputeSettlement(ctx, businessId, record.ID, "numbers look off")
	if !errors.Is(err, utils.ErrorInvalidState) {
		t.Fatalf("dispute of settled record: expected invalid state, got %v", err)
	}

	// Shop stock is reconciled to the physical count.
	qty, err := models.LocationStockQty(ctx, businessId, shop.ID, bun.ID)
	if err != nil {
		t.Fatalf("LocationStockQty: %v", err)
	}
	if !qty.Equal(decimal.NewFromInt(15)) {
		t.Fatalf("shop stock after settle: expected 15, got %s", qty)
	}
}

// Regression: settling a vehicle returns the counted remainder to the home
// shop and leaves the vehicle empty, conserving total stock.
func TestSettlement_VehicleReturnsStockHome(t *testing.T) {
	ctx, businessId := setupIntegration(t, "Van Bakery", "owner@van.test")

	cake, err := models.CreateProduct(ctx, businessId, &models.NewProduct{
		Name:         "Cake",
		SellingPrice: decimal.NewFromInt(100),
	})
	if err != nil {
		t.Fatalf("CreateProduct: %v", err)
	}
	shop, err := models.CreateLocation(ctx, businessId, &models.NewLocation{
		Name: "Home Shop",
		Type: models.LocationTypeShop,
	})
	if err != nil {
		t.Fatalf("CreateLocation(shop): %v", err)
	}
	vehicle, err := models.CreateLocation(ctx, businessId, &models.NewLocation{
		Name:           "Van 2",
		Type:           models.LocationTypeVehicle,
		HomeLocationId: &shop.ID,
	})
	if err != nil {
		t.Fatalf("CreateLocation(vehicle): %v", err)
	}

	day := time.Date(2026, 3, 5, 8, 0, 0, 0, time.UTC)

	if err := workflow.RecordInflow(ctx, businessId, shop.ID, cake.ID, day,
		models.InflowCategoryProduction, decimal.NewFromInt(10)); err != nil {
		t.Fatalf("RecordInflow: %v", err)
	}
	if err := workflow.RecordTransfer(ctx, businessId, shop.ID, vehicle.ID, cake.ID, day,
		decimal.NewFromInt(10)); err != nil {
		t.Fatalf("RecordTransfer: %v", err)
	}

	record, err := workflow.InitiateSettlement(ctx, businessId, vehicle.ID, day)
	if err != nil {
		t.Fatalf("InitiateSettlement: %v", err)
	}
	// 6 sold from the van, 4 left on board.
	if _, err := workflow.RecordSettlementCount(ctx, businessId, record.ID,
		map[int]decimal.Decimal{cake.ID: decimal.NewFromInt(4)}); err != nil {
		t.Fatalf("RecordSettlementCount: %v", err)
	}
	settled, err := workflow.SettleSettlement(ctx, businessId, record.ID, decimal.NewFromInt(600), "end of route")
	if err != nil {
		t.Fatalf("SettleSettlement: %v", err)
	}
	if !settled.SoldQty.Get(cake.ID).Equal(decimal.NewFromInt(6)) {
		t.Fatalf("sold: expected 6, got %s", settled.SoldQty.Get(cake.ID))
	}
	if !settled.ExpectedCash.Equal(decimal.NewFromInt(600)) {
		t.Fatalf("expected cash: expected 600, got %s", settled.ExpectedCash)
	}
	if !settled.DiscrepancyAmount.IsZero() {
		t.Fatalf("discrepancy: expected 0, got %s", settled.DiscrepancyAmount)
	}

	vanQty, err := models.LocationStockQty(ctx, businessId, vehicle.ID, cake.ID)
	if err != nil {
		t.Fatalf("LocationStockQty(vehicle): %v", err)
	}
	if !vanQty.IsZero() {
		t.Fatalf("vehicle stock after settle: expected 0, got %s", vanQty)
	}
	shopQty, err := models.LocationStockQty(ctx, businessId, shop.ID, cake.ID)
	if err != nil {
		t.Fatalf("LocationStockQty(shop): %v", err)
	}
	if !shopQty.Equal(decimal.NewFromInt(4)) {
		t.Fatalf("shop stock after van return: expected 4, got %s", shopQty)
	}
}

// Regression: a count above what the ledger can explain but within what was
// sent keeps the negative sold quantity and flags the record instead of
// clamping; a count above what was sent is physically impossible and is
// rejected outright.
func TestSettlement_NegativeSoldRetainedAndFlagged(t *testing.T) {
	ctx, businessId := setupIntegration(t, "Count Bakery", "owner@count.test")

	pie, err := models.CreateProduct(ctx, businessId, &models.NewProduct{
		Name:         "Pie",
		SellingPrice: decimal.NewFromInt(40),
	})
	if err != nil {
		t.Fatalf("CreateProduct: %v", err)
	}
	shop, err := models.CreateLocation(ctx, businessId, &models.NewLocation{
		Name: "Corner Shop",
		Type: models.LocationTypeShop,
	})
	if err != nil {
		t.Fatalf("CreateLocation: %v", err)
	}

	day := time.Date(2026, 3, 7, 9, 0, 0, 0, time.UTC)
	if err := workflow.RecordInflow(ctx, businessId, shop.ID, pie.ID, day,
		models.InflowCategoryProduction, decimal.NewFromInt(10)); err != nil {
		t.Fatalf("RecordInflow: %v", err)
	}
	// The wastage entry is probably a data-entry error, which is exactly what
	// the negative sold figure is meant to surface.
	if err := workflow.RecordOutflow(ctx, businessId, shop.ID, pie.ID, day,
		models.OutflowCategoryWastage, decimal.NewFromInt(4)); err != nil {
		t.Fatalf("RecordOutflow: %v", err)
	}

	record, err := workflow.InitiateSettlement(ctx, businessId, shop.ID, day)
	if err != nil {
		t.Fatalf("InitiateSettlement: %v", err)
	}

	// 12 counted against 10 ever sent: impossible, rejected.
	_, err = workflow.RecordSettlementCount(ctx, businessId, record.ID,
		map[int]decimal.Decimal{pie.ID: decimal.NewFromInt(12)})
	if !errors.Is(err, utils.ErrorInvalidQuantity) {
		t.Fatalf("impossible count: expected invalid quantity, got %v", err)
	}

	// 8 counted against 10 sent but only 6 explainable: sold = 10-4-8 = -2.
	counted, err := workflow.RecordSettlementCount(ctx, businessId, record.ID,
		map[int]decimal.Decimal{pie.ID: decimal.NewFromInt(8)})
	if err != nil {
		t.Fatalf("RecordSettlementCount: %v", err)
	}
	if !counted.SoldQty.Get(pie.ID).Equal(decimal.NewFromInt(-2)) {
		t.Fatalf("sold: expected -2, got %s", counted.SoldQty.Get(pie.ID))
	}
	if !utils.DereferencePtr(counted.HasNegativeSold) {
		t.Fatal("expected negative-sold flag")
	}
	if !counted.ExpectedCash.Equal(decimal.NewFromInt(-80)) {
		t.Fatalf("expected cash: expected -80, got %s", counted.ExpectedCash)
	}

	settled, err := workflow.SettleSettlement(ctx, businessId, record.ID, decimal.Zero, "")
	if err != nil {
		t.Fatalf("SettleSettlement: %v", err)
	}
	if !settled.DiscrepancyAmount.Equal(decimal.NewFromInt(80)) {
		t.Fatalf("discrepancy: expected 80, got %s", settled.DiscrepancyAmount)
	}
}

// Regression: a business on the default Asia/Yangon timezone must accumulate
// both movements of one local day into a single ledger row, even when the
// timestamps straddle the UTC day boundary, and the settled-day freeze must
// still find the record afterwards.
func TestLedger_DefaultTimezoneDayAccumulates(t *testing.T) {
	ctx, _ := setupIntegration(t, "Harness Bakery", "owner@harness.test")

	// The harness business is pinned to UTC; this one takes the default
	// timezone.
	biz, err := models.CreateBusiness(ctx, &models.NewBusiness{
		Name:  "Yangon Bakery",
		Email: "owner@yangon.test",
	})
	if err != nil {
		t.Fatalf("CreateBusiness: %v", err)
	}
	if biz.Timezone != "Asia/Yangon" {
		t.Fatalf("expected default timezone Asia/Yangon, got %s", biz.Timezone)
	}
	businessId := biz.ID.String()
	ctx = utils.SetBusinessIdInContext(ctx, businessId)

	roll, err := models.CreateProduct(ctx, businessId, &models.NewProduct{
		Name:         "Roll",
		SellingPrice: decimal.NewFromInt(10),
	})
	if err != nil {
		t.Fatalf("CreateProduct: %v", err)
	}
	shop, err := models.CreateLocation(ctx, businessId, &models.NewLocation{
		Name: "Yangon Shop",
		Type: models.LocationTypeShop,
	})
	if err != nil {
		t.Fatalf("CreateLocation: %v", err)
	}

	// 20:00 UTC on March 1 and 03:00 UTC on March 2 are both March 2 in
	// Yangon (+06:30).
	early := time.Date(2026, 3, 1, 20, 0, 0, 0, time.UTC)
	late := time.Date(2026, 3, 2, 3, 0, 0, 0, time.UTC)

	if err := workflow.RecordInflow(ctx, businessId, shop.ID, roll.ID, early,
		models.InflowCategoryProduction, decimal.NewFromInt(20)); err != nil {
		t.Fatalf("RecordInflow(early): %v", err)
	}
	if err := workflow.RecordInflow(ctx, businessId, shop.ID, roll.ID, late,
		models.InflowCategoryProduction, decimal.NewFromInt(5)); err != nil {
		t.Fatalf("RecordInflow(late): %v", err)
	}

	day, err := models.BusinessDate(ctx, businessId, early)
	if err != nil {
		t.Fatalf("BusinessDate: %v", err)
	}
	ledgers, err := models.FetchDayLedgers(ctx, businessId, shop.ID, day)
	if err != nil {
		t.Fatalf("FetchDayLedgers: %v", err)
	}
	if len(ledgers) != 1 {
		t.Fatalf("expected one ledger row for the local day, got %d", len(ledgers))
	}
	if !ledgers[0].ProductionInQty.Equal(decimal.NewFromInt(25)) {
		t.Fatalf("production: expected 25, got %s", ledgers[0].ProductionInQty)
	}

	// Settle the day, then verify the freeze finds the record.
	record, err := workflow.InitiateSettlement(ctx, businessId, shop.ID, late)
	if err != nil {
		t.Fatalf("InitiateSettlement: %v", err)
	}
	if _, err := workflow.RecordSettlementCount(ctx, businessId, record.ID,
		map[int]decimal.Decimal{roll.ID: decimal.NewFromInt(10)}); err != nil {
		t.Fatalf("RecordSettlementCount: %v", err)
	}
	if _, err := workflow.SettleSettlement(ctx, businessId, record.ID, decimal.NewFromInt(150), ""); err != nil {
		t.Fatalf("SettleSettlement: %v", err)
	}

	err = workflow.RecordInflow(ctx, businessId, shop.ID, roll.ID, late,
		models.InflowCategoryProduction, decimal.NewFromInt(1))
	if !errors.Is(err, utils.ErrorInvalidState) {
		t.Fatalf("movement on settled Yangon day: expected invalid state, got %v", err)
	}
}

// Regression: wastage beyond current stock must be rejected before it
// corrupts the ledger.
func TestLedger_OutflowBeyondStockRejected(t *testing.T) {
	ctx, businessId := setupIntegration(t, "Guard Bakery", "owner@guard.test")

	loaf, err := models.CreateProduct(ctx, businessId, &models.NewProduct{
		Name:         "Loaf",
		SellingPrice: decimal.NewFromInt(25),
	})
	if err != nil {
		t.Fatalf("CreateProduct: %v", err)
	}
	shop, err := models.CreateLocation(ctx, businessId, &models.NewLocation{
		Name: "Guard Shop",
		Type: models.LocationTypeShop,
	})
	if err != nil {
		t.Fatalf("CreateLocation: %v", err)
	}

	day := time.Date(2026, 3, 8, 9, 0, 0, 0, time.UTC)
	if err := workflow.RecordInflow(ctx, businessId, shop.ID, loaf.ID, day,
		models.InflowCategoryProduction, decimal.NewFromInt(3)); err != nil {
		t.Fatalf("RecordInflow: %v", err)
	}

	err = workflow.RecordOutflow(ctx, businessId, shop.ID, loaf.ID, day,
		models.OutflowCategoryWastage, decimal.NewFromInt(5))
	if !errors.Is(err, utils.ErrorInvalidQuantity) {
		t.Fatalf("expected invalid quantity, got %v", err)
	}
}
