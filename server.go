package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"bitbucket.org/mmdatafocus/bakery_backend/config"
	"bitbucket.org/mmdatafocus/bakery_backend/models"
	"bitbucket.org/mmdatafocus/bakery_backend/utils"
	"bitbucket.org/mmdatafocus/bakery_backend/workflow"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
)

const defaultPort = "8080"

var tracer = otel.Tracer("bakery-operations")

func bindIntParam(value string, out *int) error {
	n, err := strconv.Atoi(value)
	if err != nil {
		return err
	}
	*out = n
	return nil
}

func splitAndTrim(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// tenantMiddleware attaches the business scope and actor identity to the
// request context. Authentication itself sits in front of this service.
func tenantMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		if businessId := strings.TrimSpace(c.GetHeader("x-business-id")); businessId != "" {
			ctx = utils.SetBusinessIdInContext(ctx, businessId)
		}
		if userName := strings.TrimSpace(c.GetHeader("x-user-name")); userName != "" {
			ctx = utils.SetUserNameInContext(ctx, userName)
		}
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func registerRoutes(r *gin.Engine) {
	r.POST("/businesses", createBusinessHandler)

	r.POST("/products", createProductHandler)
	r.GET("/products", listProductsHandler)
	r.GET("/products/:id", getProductHandler)
	r.PUT("/products/:id", updateProductHandler)

	r.POST("/ingredients", createIngredientHandler)
	r.GET("/ingredients", listIngredientsHandler)
	r.PUT("/ingredients/:id/unit-cost", setIngredientUnitCostHandler)
	r.POST("/ingredients/:id/purchases", recordIngredientPurchaseHandler)
	r.POST("/ingredients/:id/consumptions", recordIngredientConsumptionHandler)

	r.POST("/base-preparations", createBasePreparationHandler)
	r.GET("/base-preparations", listBasePreparationsHandler)
	r.GET("/base-preparations/:id", getBasePreparationHandler)
	r.PUT("/base-preparations/:id/output-weight", setBasePreparationWeightHandler)
	r.POST("/base-preparations/:id/recalculate", recalculateBasePreparationHandler)
	r.PUT("/base-preparations/:id/ingredients", upsertCompositionLineHandler(models.CompositionParentPreparation))
	r.DELETE("/base-preparations/:id/ingredients/:ingredientId", removeCompositionLineHandler(models.CompositionParentPreparation))

	r.POST("/recipes", createRecipeHandler)
	r.GET("/recipes", listRecipesHandler)
	r.GET("/recipes/:id", getRecipeHandler)
	r.PUT("/recipes/:id/output-qty", setRecipeOutputQtyHandler)
	r.POST("/recipes/:id/recalculate", recalculateRecipeHandler)
	r.PUT("/recipes/:id/ingredients", upsertCompositionLineHandler(models.CompositionParentRecipe))
	r.DELETE("/recipes/:id/ingredients/:ingredientId", removeCompositionLineHandler(models.CompositionParentRecipe))
	r.PUT("/recipes/:id/base-usages", setBaseUsageHandler)

	r.POST("/locations", createLocationHandler)
	r.GET("/locations", listLocationsHandler)

	r.POST("/inflows", recordInflowHandler)
	r.POST("/outflows", recordOutflowHandler)
	r.POST("/transfers", recordTransferHandler)

	r.POST("/settlements", initiateSettlementHandler)
	r.GET("/settlements", listSettlementsHandler)
	r.GET("/settlements/:id", getSettlementDetailHandler)
	r.PUT("/settlements/:id/count", recordSettlementCountHandler)
	r.POST("/settlements/:id/settle", settleSettlementHandler)
	r.POST("/settlements/:id/dispute", disputeSettlementHandler)
}

func main() {
	port := os.Getenv("API_PORT")
	if port == "" {
		// Cloud Run standard env var.
		port = os.Getenv("PORT")
	}
	if port == "" {
		port = defaultPort
	}

	logger := config.GetLogger()

	// Cloud Run sends SIGTERM on revision shutdown; handle it for graceful drain.
	sigCtx, stopSignals := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stopSignals()

	// Start the HTTP server ASAP so the platform considers the revision
	// healthy. Until DB/Redis are ready, app endpoints return 503.
	r := gin.New()
	// Correlation IDs: generate once per request and attach to context.
	r.Use(func(c *gin.Context) {
		cid := c.GetHeader("x-correlation-id")
		if cid == "" {
			cid = uuid.NewString()
		}
		c.Request = c.Request.WithContext(utils.SetCorrelationIdInContext(c.Request.Context(), cid))
		c.Next()
	})
	r.Use(func(c *gin.Context) {
		// Always allow the startup probe.
		if c.Request.URL.Path == "/healthz" {
			c.Status(http.StatusNoContent)
			c.Abort()
			return
		}
		// Gate app endpoints on dependency readiness.
		if config.GetDB() == nil || config.GetRedisDB() == nil {
			c.AbortWithStatus(http.StatusServiceUnavailable)
			return
		}
		c.Next()
	})

	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	corsConfig := cors.DefaultConfig()
	// In production, require an explicit allowlist via CORS_ALLOWED_ORIGINS.
	allowedOrigins := strings.TrimSpace(os.Getenv("CORS_ALLOWED_ORIGINS"))
	if strings.EqualFold(strings.TrimSpace(os.Getenv("GO_ENV")), "production") {
		if allowedOrigins == "" {
			corsConfig.AllowOrigins = []string{}
		} else {
			corsConfig.AllowOrigins = splitAndTrim(allowedOrigins)
		}
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AddAllowMethods("GET", "POST", "PUT", "DELETE", "OPTIONS")
	corsConfig.AddAllowHeaders("Origin", "Content-Type", "Authorization", "x-business-id", "x-user-name", "x-correlation-id")
	corsConfig.AddExposeHeaders("Content-Length")
	corsConfig.AllowCredentials = true
	r.Use(cors.New(corsConfig))

	r.Use(tenantMiddleware())
	// One span per request; the otelgorm plugin parents its query spans here.
	r.Use(func(c *gin.Context) {
		ctx, span := tracer.Start(c.Request.Context(), c.Request.Method+" "+c.FullPath())
		c.Request = c.Request.WithContext(ctx)
		c.Next()
		span.End()
	})
	r.Use(gin.Recovery())

	registerRoutes(r)

	srv := &http.Server{
		Addr:    ":" + port,
		Handler: r,
	}
	serverErrCh := make(chan error, 1)
	go func() {
		// ListenAndServe returns http.ErrServerClosed on graceful shutdown.
		serverErrCh <- srv.ListenAndServe()
	}()

	// Connect dependencies after the port is open.
	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()

	db := config.GetDB()
	sqlDB, _ := db.DB()
	defer func() {
		if sqlDB != nil {
			_ = sqlDB.Close()
		}
	}()
	// AutoMigrate can run DDL that blocks tables; allow running migrations as
	// a separate job instead.
	if !strings.EqualFold(strings.TrimSpace(os.Getenv("SKIP_MIGRATIONS")), "true") {
		models.MigrateTable()
	} else {
		logger.WithFields(logrus.Fields{"field": "migrations"}).Warn("SKIP_MIGRATIONS=true; skipping AutoMigrate on startup")
	}

	// Start outbox dispatcher (publishes AFTER commit).
	dispatcherCtx, cancelDispatcher := context.WithCancel(context.Background())
	defer cancelDispatcher()
	go workflow.NewOutboxDispatcher(db, logger).Run(dispatcherCtx)

	// Settlement math and the cost cascade both assume READ COMMITTED.
	for attempt := 1; ; attempt++ {
		err := db.Exec("SET SESSION TRANSACTION ISOLATION LEVEL READ COMMITTED").Error
		if err == nil {
			break
		}
		sleep := time.Second * time.Duration(1<<min(attempt, 5))
		if sleep > 30*time.Second {
			sleep = 30 * time.Second
		}
		logger.WithFields(logrus.Fields{"field": "isolation"}).Warn(err.Error())
		time.Sleep(sleep)
		if attempt >= 10 {
			logger.WithFields(logrus.Fields{"field": "isolation"}).Error("could not set isolation level, continuing with server default")
			break
		}
	}

	logger.WithFields(logrus.Fields{"port": port}).Info("listening")

	select {
	case <-sigCtx.Done():
	case err := <-serverErrCh:
		if err != nil && err != http.ErrServerClosed {
			logger.WithFields(logrus.Fields{"field": "server"}).Error(err.Error())
		}
	}

	cancelDispatcher()
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancelShutdown()
	_ = srv.Shutdown(shutdownCtx)
}
