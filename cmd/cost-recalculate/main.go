package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"bitbucket.org/mmdatafocus/bakery_backend/config"
	"bitbucket.org/mmdatafocus/bakery_backend/models"
	"bitbucket.org/mmdatafocus/bakery_backend/utils"
	"bitbucket.org/mmdatafocus/bakery_backend/workflow"
)

// cost-recalculate resums every base preparation and recipe from current
// ingredient unit costs. Run it after bulk imports or manual data fixes, or
// routinely when the automatic cascade is disabled.
func main() {
	businessID := flag.String("business-id", "", "Optional: recalculate only one business (uuid string). If empty, recalculates all businesses.")
	flag.Parse()

	ctx := context.Background()
	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()
	db := config.GetDB()
	if db == nil {
		fmt.Fprintln(os.Stderr, "database not initialized (config.GetDB returned nil)")
		os.Exit(1)
	}

	models.MigrateTable()

	ctx = context.WithValue(ctx, utils.ContextKeyUserName, "CostRecalculate")

	var businesses []models.Business
	bizQuery := db.WithContext(ctx).Model(&models.Business{})
	if strings.TrimSpace(*businessID) != "" {
		bizQuery = bizQuery.Where("id = ?", strings.TrimSpace(*businessID))
	}
	if err := bizQuery.Find(&businesses).Error; err != nil {
		fmt.Fprintf(os.Stderr, "failed to list businesses: %v\n", err)
		os.Exit(1)
	}
	if len(businesses) == 0 {
		fmt.Fprintln(os.Stderr, "no businesses found")
		return
	}

	exitCode := 0
	for _, b := range businesses {
		bid := b.ID.String()
		bizCtx := context.WithValue(ctx, utils.ContextKeyBusinessId, bid)

		prepCount, recipeCount, err := workflow.RecalculateAllCosts(bizCtx, bid)
		if err != nil {
			fmt.Fprintf(os.Stderr, "business %s: recalculation failed: %v\n", bid, err)
			exitCode = 1
			continue
		}
		fmt.Printf("business %s: recalculated %d preparations, %d recipes\n", bid, prepCount, recipeCount)
	}
	os.Exit(exitCode)
}
