package models

import (
	"log"

	"bitbucket.org/mmdatafocus/bakery_backend/config"
)

func MigrateTable() {
	db := config.GetDB()

	err := db.AutoMigrate(
		&Business{},
		&Product{}, &Ingredient{},
		&BasePreparation{}, &BasePreparationIngredient{},
		&Recipe{}, &RecipeIngredient{}, &RecipeBaseUsage{},
		&Location{}, &LocationStock{},
		&DayLedger{}, &SettlementRecord{},
		&OutboxMessage{},
	)
	if err != nil {
		log.Fatal(err)
	}
}
