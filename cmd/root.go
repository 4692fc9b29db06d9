package cmd

import (
	"context"
	"os"
	"time"

	botApp "github.com/eduzayn/educhat/botengine/application"
	botDomain "github.com/eduzayn/educhat/botengine/domain"
	"github.com/eduzayn/educhat/botengine/providers"
	botRepo "github.com/eduzayn/educhat/botengine/repository"
	channelApp "github.com/eduzayn/educhat/channels/application"
	channelDomain "github.com/eduzayn/educhat/channels/domain"
	channelRepo "github.com/eduzayn/educhat/channels/repository"
	coreconfig "github.com/eduzayn/educhat/core/config"
	coreDB "github.com/eduzayn/educhat/core/database"
	"github.com/eduzayn/educhat/core/rules"
	crmApp "github.com/eduzayn/educhat/crm/application"
	crmRepo "github.com/eduzayn/educhat/crm/repository"
	domainHealth "github.com/eduzayn/educhat/domains/health"
	domainSend "github.com/eduzayn/educhat/domains/send"
	guardApp "github.com/eduzayn/educhat/guard/application"
	guardRepo "github.com/eduzayn/educhat/guard/repository"
	handoffApp "github.com/eduzayn/educhat/handoff/application"
	handoffRepo "github.com/eduzayn/educhat/handoff/repository"
	inboxApp "github.com/eduzayn/educhat/inbox/application"
	inboxRepo "github.com/eduzayn/educhat/inbox/repository"
	"github.com/eduzayn/educhat/infrastructure/gateway"
	"github.com/eduzayn/educhat/infrastructure/valkey"
	memoryApp "github.com/eduzayn/educhat/memory/application"
	memoryRepo "github.com/eduzayn/educhat/memory/repository"
	"github.com/eduzayn/educhat/pkg/chatpresence"
	"github.com/eduzayn/educhat/pkg/crypto"
	"github.com/eduzayn/educhat/pkg/msgworker"
	"github.com/eduzayn/educhat/pkg/utils"
	"github.com/eduzayn/educhat/ui/websocket"
	"github.com/eduzayn/educhat/usecase"
	webhookApp "github.com/eduzayn/educhat/webhook/application"
	webhookDomain "github.com/eduzayn/educhat/webhook/domain"
	webhookRepo "github.com/eduzayn/educhat/webhook/repository"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

var (
	flagPort  string
	flagDebug bool
	flagRules string

	cfg       *coreconfig.Config
	ruleSet   *rules.Rules
	db        *gorm.DB
	vkClient  *valkey.Client
	hub       *websocket.Hub
	presence  *chatpresence.Tracker
	migrators []coreDB.Migrator

	// Services
	channelService  *channelApp.Service
	channelResolver *channelApp.Resolver
	registry        *inboxApp.Registry
	guard           *guardApp.Guard
	classifier      *botApp.Engine
	classifierLogs  *botRepo.LogGormRepository
	memoryService   *memoryApp.Service
	handoffService  *handoffApp.Service
	dealProjector   *crmApp.Projector
	analyzer        *webhookApp.MessageAnalyzer
	pipeline        *webhookApp.Pipeline
	analysisPool    *msgworker.Pool
	sendUsecase     domainSend.ISendUsecase
	healthUsecase   domainHealth.IHealthUsecase
)

var rootCmd = &cobra.Command{
	Use:   "educhat",
	Short: "EduChat WhatsApp gateway inbox",
	Long: `EduChat receives WhatsApp gateway webhooks, keeps the shared inbox,
classifies every inbound message and routes conversations to the right team.`,
}

func init() {
	time.Local = time.UTC

	rootCmd.CompletionOptions.DisableDefaultCmd = true
	initFlags()
	cobra.OnInitialize(initApp)
}

func initFlags() {
	rootCmd.PersistentFlags().StringVarP(
		&flagPort,
		"port", "p",
		"",
		"change port number with --port <number> | example: --port=3000",
	)
	rootCmd.PersistentFlags().BoolVarP(
		&flagDebug,
		"debug", "d",
		false,
		"hide or displaying log with --debug <true/false> | example: --debug=true",
	)
	rootCmd.PersistentFlags().StringVarP(
		&flagRules,
		"rules", "r",
		"",
		`classification and routing rules file --rules <path> | example: --rules="config/rules.yaml"`,
	)
}

func initApp() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		logrus.Warnf("[CONFIG] Could not read .env: %v", err)
	}

	var err error
	cfg, err = coreconfig.LoadConfig()
	if err != nil {
		logrus.Fatalf("[CONFIG] %v", err)
	}
	if flagPort != "" {
		cfg.App.Port = flagPort
	}
	if flagDebug {
		cfg.App.Debug = true
	}
	if flagRules != "" {
		cfg.App.RulesFile = flagRules
	}
	if cfg.App.Debug {
		logrus.SetLevel(logrus.DebugLevel)
	}

	crypto.SetEncryptionKey(cfg.Security.EncryptionKey)

	ruleSet = rules.Default()
	if cfg.App.RulesFile != "" {
		if ruleSet, err = rules.Load(cfg.App.RulesFile); err != nil {
			logrus.Fatalf("[RULES] %v", err)
		}
		logrus.Infof("[RULES] Loaded %s", cfg.App.RulesFile)
	}

	if err := os.MkdirAll(cfg.App.UploadDir, 0o755); err != nil {
		logrus.Errorf("[APP] Cannot create upload dir %s: %v", cfg.App.UploadDir, err)
	}

	db, err = coreDB.NewDatabase(cfg)
	if err != nil {
		logrus.Fatalf("[DATABASE] %v", err)
	}

	if cfg.Valkey.Enabled {
		vkClient, err = valkey.NewClient(valkey.Config{
			Address:   cfg.Valkey.Address,
			Password:  cfg.Valkey.Password,
			DB:        cfg.Valkey.DB,
			KeyPrefix: cfg.Valkey.KeyPrefix,
		})
		if err != nil {
			logrus.Warnf("[VALKEY] Disabled, falling back to in-process state: %v", err)
			vkClient = nil
		} else {
			logrus.Infof("[VALKEY] Connected to %s", cfg.Valkey.Address)
		}
	}

	wireServices()
}

func wireServices() {
	hub = websocket.NewHub(vkClient, utils.GetServerID(cfg.App.ServerID))
	presence = chatpresence.NewTracker(chatpresence.DefaultTTL)

	// Repositories, in schema order.
	channels := channelRepo.NewChannelGormRepository(db)
	contacts := inboxRepo.NewContactGormRepository(db)
	conversations := inboxRepo.NewConversationGormRepository(db)
	messages := inboxRepo.NewMessageGormRepository(db)
	blocks := guardRepo.NewBlockGormRepository(db)
	classifierLogs = botRepo.NewLogGormRepository(db)
	memories := memoryRepo.NewMemoryGormRepository(db)
	handoffs := handoffRepo.NewHandoffGormRepository(db)
	deals := crmRepo.NewDealGormRepository(db)
	migrators = []coreDB.Migrator{channels, contacts, conversations, messages, blocks, classifierLogs, memories, handoffs, deals}

	// Channels and gateway.
	gatewayClient := gateway.NewClient(cfg.Gateway.BaseURL, cfg.Gateway.Timeout, cfg.Gateway.RatePerSecond)
	var statusCache channelDomain.StatusCache = channelRepo.NewMemoryStatusCache()
	if vkClient != nil {
		statusCache = channelRepo.NewValkeyStatusCache(vkClient)
	}
	fallback := gateway.Credentials{
		InstanceID:  cfg.Gateway.InstanceID,
		Token:       cfg.Gateway.Token,
		ClientToken: cfg.Gateway.ClientToken,
	}
	channelService = channelApp.NewService(channels)
	channelResolver = channelApp.NewResolver(channels, statusCache, gatewayClient, fallback, cfg.Gateway.StatusTTL)

	// Inbox and analysis.
	registry = inboxApp.NewRegistry(contacts, conversations, messages, hub)
	guard = guardApp.NewGuard(ruleSet, registry, blocks)
	classifier = botApp.NewEngine(newProvider(), ruleSet, classifierLogs, cfg.AI.ClassifyTimeout)
	memoryService = memoryApp.NewService(memories, cfg.Memory)
	handoffService = handoffApp.NewService(ruleSet, handoffs, hub, cfg.Handoff.AssignAgent)
	dealProjector = crmApp.NewProjector(ruleSet, deals, registry)
	analyzer = webhookApp.NewMessageAnalyzer(registry, classifier, memoryService, handoffService, dealProjector)

	analysisPool = msgworker.GetGlobalPool()

	var dedup webhookDomain.Deduper = webhookRepo.NewMemoryDeduper()
	if vkClient != nil {
		dedup = webhookRepo.NewValkeyDeduper(vkClient)
	}
	pipeline = webhookApp.NewPipeline(webhookApp.PipelineDeps{
		Channels:   channelResolver,
		Inbox:      registry,
		Guard:      guard,
		Analyzer:   analyzer,
		Dispatcher: analysisPool,
		Dedup:      dedup,
		DedupTTL:   cfg.Webhook.DedupTTL,
		Publisher:  hub,
		Presence:   presence,
	})

	sendUsecase = usecase.NewSendService(channelResolver, registry, gatewayClient, nil)
	healthUsecase = usecase.NewHealthService(healthProbes()...)
}

// newProvider returns nil when no AI provider is configured; the engine then
// classifies with the keyword table only.
func newProvider() botDomain.Provider {
	switch cfg.AI.Provider {
	case "openai":
		if cfg.AI.OpenAIKey == "" {
			logrus.Warn("[CLASSIFIER] OPENAI_API_KEY not set, using keyword fallback only")
			return nil
		}
		logrus.Infof("[CLASSIFIER] Using OpenAI model %s", cfg.AI.OpenAIModel)
		return providers.NewOpenAIProvider(cfg.AI.OpenAIKey, cfg.AI.OpenAIModel, ruleSet)
	case "gemini":
		if cfg.AI.GeminiKey == "" {
			logrus.Warn("[CLASSIFIER] GEMINI_API_KEY not set, using keyword fallback only")
			return nil
		}
		logrus.Infof("[CLASSIFIER] Using Gemini model %s", cfg.AI.GeminiModel)
		return providers.NewGeminiProvider(cfg.AI.GeminiKey, cfg.AI.GeminiModel, ruleSet)
	case "", "none":
		logrus.Info("[CLASSIFIER] No AI provider, using keyword fallback only")
		return nil
	default:
		logrus.Warnf("[CLASSIFIER] Unknown AI_PROVIDER %q, using keyword fallback only", cfg.AI.Provider)
		return nil
	}
}

func healthProbes() []domainHealth.Probe {
	probes := []domainHealth.Probe{
		{
			EntityType: domainHealth.EntityDatabase,
			EntityID:   cfg.Database.Driver,
			Check: func(ctx context.Context) error {
				sqlDB, err := db.DB()
				if err != nil {
					return err
				}
				return sqlDB.PingContext(ctx)
			},
		},
		{
			EntityType: domainHealth.EntityWorkerPool,
			EntityID:   "analysis",
			Check: func(ctx context.Context) error {
				return analysisPool.Healthy()
			},
		},
	}
	if vkClient != nil {
		probes = append(probes, domainHealth.Probe{
			EntityType: domainHealth.EntityValkey,
			EntityID:   cfg.Valkey.Address,
			Check:      vkClient.Ping,
		})
	}
	return probes
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// StopApp releases the worker pool, valkey and the database.
func StopApp() {
	logrus.Info("[APP] Stopping application...")

	msgworker.StopGlobalPool()

	if vkClient != nil {
		vkClient.Close()
	}
	if db != nil {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}

	logrus.Info("[APP] Application stopped cleanly.")
}
