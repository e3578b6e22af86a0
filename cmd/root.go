package cmd

import (
	"context"
	"os"
	"time"

	coreConfig "github.com/reelforge/reelforge/core/config"
	coreDB "github.com/reelforge/reelforge/core/database"
	domainCalendar "github.com/reelforge/reelforge/domains/calendar"
	domainIntegration "github.com/reelforge/reelforge/domains/integration"
	domainJob "github.com/reelforge/reelforge/domains/job"
	domainPlanning "github.com/reelforge/reelforge/domains/planning"
	domainQuota "github.com/reelforge/reelforge/domains/quota"
	"github.com/reelforge/reelforge/infrastructure/valkey"
	"github.com/reelforge/reelforge/pipeline"
	"github.com/reelforge/reelforge/pipeline/providers"
	"github.com/reelforge/reelforge/pkg/crypto"
	"github.com/reelforge/reelforge/pkg/jobpool"
	"github.com/reelforge/reelforge/pkg/notify"
	"github.com/reelforge/reelforge/pkg/utils"
	"github.com/reelforge/reelforge/repository"
	"github.com/reelforge/reelforge/scheduler"
	"github.com/reelforge/reelforge/usecase"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	appCtx    context.Context
	appCancel context.CancelFunc

	vkClient *valkey.Client
	workers  *jobpool.Pool
	engine   *pipeline.Engine
	sweeper  *scheduler.Sweeper

	videoRepo       repository.IVideoRepository
	quotaRepo       repository.IQuotaRepository
	integrationRepo repository.IIntegrationRepository

	quotaUsecase       domainQuota.IQuotaUsecase
	integrationUsecase domainIntegration.IIntegrationUsecase
	jobUsecase         domainJob.IJobUsecase
	planningUsecase    domainPlanning.IPlanningUsecase
	calendarUsecase    domainCalendar.ICalendarUsecase
)

var rootCmd = &cobra.Command{
	Use:   "reelforge",
	Short: "AI video content generation orchestrator",
	Long: `ReelForge drives short-form video generation jobs through a five stage
pipeline (script, voice, media, video, assembly), enforces daily quotas,
and plans content calendars with scheduled generation triggers.`,
}

func init() {
	utils.LoadEnv(".")
	time.Local = time.UTC

	rootCmd.CompletionOptions.DisableDefaultCmd = true

	cobra.OnInitialize(initEnvConfig, initApp)
}

// initEnvConfig loads configuration and applies viper-visible overrides.
func initEnvConfig() {
	cfg, err := coreConfig.LoadConfig()
	if err != nil {
		logrus.Fatalf("Failed to load configuration: %v", err)
	}

	viper.AutomaticEnv()
	if envPort := viper.GetString("app_port"); envPort != "" {
		cfg.App.Port = envPort
	}
	if viper.IsSet("app_debug") {
		cfg.App.Debug = viper.GetBool("app_debug")
	}
}

func initApp() {
	cfg := coreConfig.Global
	if cfg.App.Debug {
		logrus.SetLevel(logrus.DebugLevel)
	}

	if err := utils.CreateFolder(cfg.Paths.Storages, cfg.Paths.Artifacts); err != nil {
		logrus.Errorln(err)
	}

	crypto.SetEncryptionKey(cfg.APIKeys.EncryptionKey)

	appCtx, appCancel = context.WithCancel(context.Background())

	db, err := coreDB.NewDatabase(cfg)
	if err != nil {
		logrus.Fatalf("Failed to open database: %v", err)
	}

	videoRepo = repository.NewVideoGormRepository(db)
	quotaRepo = repository.NewQuotaGormRepository(db)
	integrationRepo = repository.NewIntegrationGormRepository(db)
	for _, init := range []func(context.Context) error{videoRepo.Init, quotaRepo.Init, integrationRepo.Init} {
		if err := init(appCtx); err != nil {
			logrus.Fatalf("Failed to migrate database: %v", err)
		}
	}

	if cfg.Database.ValkeyEnabled {
		vkClient, err = valkey.NewClient(valkey.Config{
			Address:   cfg.Database.ValkeyAddress,
			Password:  cfg.Database.ValkeyPassword,
			DB:        cfg.Database.ValkeyDB,
			KeyPrefix: cfg.Database.ValkeyKeyPrefix,
		})
		if err != nil {
			logrus.Warnf("Valkey unavailable, continuing without it: %v", err)
			vkClient = nil
		}
	}

	workers = jobpool.NewPool(cfg.Workers.Size, cfg.Workers.QueueSize)
	workers.Start(appCtx)

	integrationService := usecase.NewIntegrationService(integrationRepo)
	integrationUsecase = integrationService
	quotaUsecase = usecase.NewQuotaService(quotaRepo, cfg.Quota.FreeDailyLimit)

	engine = pipeline.NewEngine(videoRepo, quotaUsecase, integrationService, workers,
		cfg.Pipeline.ArtifactRetention, cfg.Pipeline.BareRetryCap)
	registerProviders(engine, cfg)

	notifier := notify.NewWebhookNotifier(cfg.Notify.WebhookURLs, cfg.Notify.WebhookSecret)
	engine.SetNotifier(notifier)

	jobUsecase = usecase.NewJobService(videoRepo, quotaUsecase, engine)
	planningService := usecase.NewPlanningService(videoRepo, engine, jobUsecase, cfg.Scheduler.GenerationLeadTime)
	planningUsecase = planningService
	calendarUsecase = usecase.NewCalendarService(videoRepo)

	sweeper = scheduler.NewSweeper(videoRepo, engine, vkClient,
		cfg.Scheduler.GenerationLeadTime, cfg.Scheduler.SweepInterval, cfg.Paths.Artifacts)
	planningService.SetWakeSignal(sweeper.Wake)
	sweeper.StartLoop(appCtx)
}

// registerProviders binds the capability adapters. Which one actually runs
// a stage is decided per user through the integration registry.
func registerProviders(engine *pipeline.Engine, cfg *coreConfig.Config) {
	openaiProvider := providers.NewOpenAIProvider(cfg.APIKeys.OpenAI, cfg.Paths.Artifacts)
	engine.RegisterInvoker("openai", openaiProvider)

	geminiProvider := providers.NewGeminiProvider(cfg.APIKeys.Gemini)
	engine.RegisterInvoker("gemini", geminiProvider)

	engine.RegisterInvoker("stock_media", providers.NewStockMediaProvider(""))
	engine.RegisterInvoker("local_assembly", providers.NewAssemblyProvider(cfg.Paths.Artifacts))
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// StopApp shuts down the worker pool, background loops, and connections.
func StopApp() {
	logrus.Info("[APP] Stopping application...")

	if appCancel != nil {
		appCancel()
	}
	if workers != nil {
		workers.Stop()
	}
	if vkClient != nil {
		vkClient.Close()
	}

	logrus.Info("[APP] Application stopped cleanly.")
}
