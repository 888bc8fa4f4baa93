package models

type LocationType string

const (
	LocationTypeShop    LocationType = "Shop"
	LocationTypeVehicle LocationType = "Vehicle"
)

func (t LocationType) IsValid() bool {
	switch t {
	case LocationTypeShop, LocationTypeVehicle:
		return true
	}
	return false
}

// InflowCategory classifies quantity arriving at a location for a ledger day.
type InflowCategory string

const (
	InflowCategoryProduction InflowCategory = "Production"
	InflowCategoryTransferIn InflowCategory = "TransferIn"
)

func (c InflowCategory) IsValid() bool {
	switch c {
	case InflowCategoryProduction, InflowCategoryTransferIn:
		return true
	}
	return false
}

// OutflowCategory classifies quantity leaving a location for a ledger day.
type OutflowCategory string

const (
	OutflowCategoryTransferOut OutflowCategory = "TransferOut"
	OutflowCategoryWastage     OutflowCategory = "Wastage"
)

func (c OutflowCategory) IsValid() bool {
	switch c {
	case OutflowCategoryTransferOut, OutflowCategoryWastage:
		return true
	}
	return false
}

type SettlementStatus string

const (
	SettlementStatusPending  SettlementStatus = "Pending"
	SettlementStatusSettled  SettlementStatus = "Settled"
	SettlementStatusDisputed SettlementStatus = "Disputed"
)

// CompositionParentKind selects which costed aggregate a composition line
// belongs to.
type CompositionParentKind string

const (
	CompositionParentRecipe      CompositionParentKind = "Recipe"
	CompositionParentPreparation CompositionParentKind = "Preparation"
)

func (k CompositionParentKind) IsValid() bool {
	switch k {
	case CompositionParentRecipe, CompositionParentPreparation:
		return true
	}
	return false
}

type EventReferenceType string

const (
	EventReferenceTypeIngredient      EventReferenceType = "Ingredient"
	EventReferenceTypeBasePreparation EventReferenceType = "BasePreparation"
	EventReferenceTypeRecipe          EventReferenceType = "Recipe"
	EventReferenceTypeDayLedger       EventReferenceType = "DayLedger"
	EventReferenceTypeSettlement      EventReferenceType = "Settlement"
)

type EventAction string

const (
	EventActionCreate EventAction = "create"
	EventActionUpdate EventAction = "update"
	EventActionDelete EventAction = "delete"
)

type OutboxPublishStatus string

const (
	OutboxPublishStatusPending   OutboxPublishStatus = "PENDING"
	OutboxPublishStatusPublished OutboxPublishStatus = "PUBLISHED"
	OutboxPublishStatusFailed    OutboxPublishStatus = "FAILED"
)
