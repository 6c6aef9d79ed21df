package cmd

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gorm.io/gorm"

	"github.com/vitalsync/vitalsync/core/config"
	"github.com/vitalsync/vitalsync/core/database"
	domainCache "github.com/vitalsync/vitalsync/domains/cache"
	domainHealth "github.com/vitalsync/vitalsync/domains/health"
	domainMetrics "github.com/vitalsync/vitalsync/domains/metrics"
	"github.com/vitalsync/vitalsync/infrastructure/cachestore"
	"github.com/vitalsync/vitalsync/infrastructure/valkey"
	"github.com/vitalsync/vitalsync/pkg/utils"
	"github.com/vitalsync/vitalsync/repository"
	"github.com/vitalsync/vitalsync/usecase"
)

var (
	flagPort      string
	flagDebug     bool
	flagBasicAuth []string
	flagBasePath  string

	appCtx    context.Context
	appCancel context.CancelFunc

	rawDB        *gorm.DB
	goalDB       *sql.DB
	valkeyClient *valkey.Client

	rawRepo       domainMetrics.IRawDataRepository
	goalRepo      domainMetrics.IGoalRepository
	cacheUsecase  domainCache.ICacheUsecase
	metricsEngine domainMetrics.IMetricsUsecase
	healthUsecase domainHealth.IHealthUsecase
)

var rootCmd = &cobra.Command{
	Use:   "vitalsync",
	Short: "Wellness metrics cache and aggregation service",
	Long: `VitalSync precomputes per-user wellness metrics from raw wearable
readings and serves them from a tiered per-user cache.`,
}

func init() {
	utils.LoadConfig(".")

	time.Local = time.UTC

	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.PersistentFlags().StringVarP(&flagPort, "port", "p", "", "listen port, overrides APP_PORT | example: --port=8080")
	rootCmd.PersistentFlags().BoolVarP(&flagDebug, "debug", "d", false, "enable debug logging | example: --debug=true")
	rootCmd.PersistentFlags().StringSliceVarP(&flagBasicAuth, "basic-auth", "b", nil, "basic auth credentials | -b=user:secret")
	rootCmd.PersistentFlags().StringVarP(&flagBasePath, "base-path", "", "", `base path for subpath deployment | example: --base-path="/vitalsync"`)

	cobra.OnInitialize(initApp)
}

func initApp() {
	cfg, err := config.LoadConfig()
	if err != nil {
		logrus.Fatalf("Failed to load configuration: %v", err)
	}
	applyOverrides(cfg)

	if cfg.App.Debug {
		logrus.SetLevel(logrus.DebugLevel)
	}

	if err := os.MkdirAll(cfg.Paths.Storages, 0o755); err != nil {
		logrus.Errorln(err)
	}

	appCtx, appCancel = context.WithCancel(context.Background())

	// Raw readings and assessments, system of record.
	rawDB, err = database.NewDatabase(cfg)
	if err != nil {
		logrus.Fatalf("Failed to open raw database: %v", err)
	}
	gormRepo := repository.NewRawDataRepository(rawDB)
	if err := gormRepo.AutoMigrate(); err != nil {
		logrus.Fatalf("Failed to migrate raw data tables: %v", err)
	}
	rawRepo = gormRepo

	// Goals live in a small plain-SQL table next to the raw data.
	goalDB, err = openGoalDB(cfg)
	if err != nil {
		logrus.Fatalf("Failed to open goals database: %v", err)
	}
	sqlGoals := repository.NewSQLGoalRepository(goalDB, cfg.Database.Driver)
	if err := sqlGoals.Init(appCtx); err != nil {
		logrus.Fatalf("Failed to init goals table: %v", err)
	}
	goalRepo = sqlGoals

	// Cache document store: Valkey in production, in-memory otherwise.
	var store cachestore.Store
	if cfg.Database.ValkeyEnabled {
		valkeyClient, err = valkey.NewClient(valkey.Config{
			Address:   cfg.Database.ValkeyAddress,
			Password:  cfg.Database.ValkeyPassword,
			DB:        cfg.Database.ValkeyDB,
			KeyPrefix: cfg.Database.ValkeyKeyPrefix,
		})
		if err != nil {
			logrus.Fatalf("Failed to connect to valkey: %v", err)
		}
		store = cachestore.NewValkeyStore(valkeyClient)
		logrus.Info("[APP] Cache store: valkey")
	} else {
		store = cachestore.NewMemoryStore()
		logrus.Info("[APP] Cache store: in-memory (VALKEY_ENABLED=false)")
	}

	cacheUsecase = usecase.NewCacheService(store, cfg.Cache.MaxDocumentBytes)
	metricsEngine = usecase.NewMetricsService(cacheUsecase, rawRepo, goalRepo, cfg)
	healthUsecase = usecase.NewHealthService(store, rawDB, cfg.Cache.HealthInterval)
	go healthUsecase.StartPeriodicChecks(appCtx)
}

func applyOverrides(cfg *config.Config) {
	if flagPort != "" {
		cfg.App.Port = flagPort
	} else if v := viper.GetString("app_port"); v != "" {
		cfg.App.Port = v
	}
	if flagDebug || viper.GetBool("app_debug") {
		cfg.App.Debug = true
	}
	if len(flagBasicAuth) > 0 {
		cfg.App.BasicAuth = flagBasicAuth
	}
	if flagBasePath != "" {
		cfg.App.BasePath = flagBasePath
	}
}

func openGoalDB(cfg *config.Config) (*sql.DB, error) {
	switch cfg.Database.Driver {
	case "postgres":
		dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
			cfg.Database.Host, cfg.Database.Port, cfg.Database.User, cfg.Database.Password, cfg.Database.Name)
		return sql.Open("postgres", dsn)
	default:
		return sql.Open("sqlite3", fmt.Sprintf("file:%s?cache=shared&_journal_mode=WAL", cfg.Database.Name))
	}
}

// Execute runs the root command. Called once from main.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// StopApp closes every connection the app holds. Safe to call once during
// shutdown.
func StopApp() {
	logrus.Info("[APP] Stopping application...")

	if appCancel != nil {
		appCancel()
	}
	if valkeyClient != nil {
		valkeyClient.Close()
	}
	if goalDB != nil {
		_ = goalDB.Close()
	}
	if rawDB != nil {
		if sqlDB, err := rawDB.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}

	logrus.Info("[APP] Application stopped cleanly.")
}

func basicAuthAccounts(credentials []string) map[string]string {
	account := make(map[string]string)
	for _, pair := range credentials {
		parts := strings.Split(pair, ":")
		if len(parts) != 2 {
			logrus.Fatalln("Basic auth is not valid, use the format <user>:<secret>")
		}
		account[parts[0]] = parts[1]
	}
	return account
}
