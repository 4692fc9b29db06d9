package cmd

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	coreDB "github.com/eduzayn/educhat/core/database"
	memoryApp "github.com/eduzayn/educhat/memory/application"
	"github.com/eduzayn/educhat/ui/rest"
	"github.com/eduzayn/educhat/ui/rest/middleware"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/basicauth"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

const healthCheckInterval = time.Minute

var restCmd = &cobra.Command{
	Use:   "rest",
	Short: "Serve the webhook receiver and the inbox API over http",
	Run:   restServer,
}

func init() {
	restCmd.Flags().String("basic-auth", "", "Basic auth for API (format: user:pass,user2:pass2)")
	rootCmd.AddCommand(restCmd)
}

func restServer(cmd *cobra.Command, _ []string) {
	if baFlag, _ := cmd.Flags().GetString("basic-auth"); baFlag != "" {
		cfg.App.BasicAuth = strings.Split(baFlag, ",")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := coreDB.Migrate(ctx, migrators...); err != nil {
		logrus.Fatalf("[DATABASE] Migration failed: %v", err)
	}

	fiberConfig := fiber.Config{
		BodyLimit:             int(cfg.App.MaxUploadBytes),
		Network:               "tcp",
		AppName:               "EduChat",
		DisableStartupMessage: false,
		ServerHeader:          "Hidden",
	}
	if len(cfg.App.TrustedProxies) > 0 {
		fiberConfig.EnableTrustedProxyCheck = true
		fiberConfig.TrustedProxies = cfg.App.TrustedProxies
		fiberConfig.ProxyHeader = fiber.HeaderXForwardedFor
	}

	app := fiber.New(fiberConfig)

	app.Use(requestid.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: strings.Join(cfg.App.CorsAllowedOrigins, ", "),
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-Request-ID",
	}))
	app.Use(middleware.Recovery())
	app.Use(helmet.New(helmet.Config{
		XSSProtection:      "1; mode=block",
		ContentTypeNosniff: "nosniff",
		XFrameOptions:      "SAMEORIGIN",
		HSTSMaxAge:         31536000,
		ReferrerPolicy:     "strict-origin-when-cross-origin",
	}))
	if cfg.App.Debug {
		app.Use(logger.New())
	}

	base := app.Group(cfg.App.BasePath)

	// Gateway callbacks are unauthenticated and must never be rate limited
	// into a non-200 answer.
	rest.InitRestWebhook(base, pipeline)

	apiGroup := base.Group("/api")
	apiGroup.Use(limiter.New(limiter.Config{
		Max:        600,
		Expiration: time.Minute,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
	}))
	if len(cfg.App.BasicAuth) == 0 {
		logrus.Fatalln("APP_BASIC_AUTH is required. Set APP_BASIC_AUTH=<user>:<secret>[,<user2>:<secret2>] and restart.")
	}
	account := make(map[string]string)
	for _, basicAuth := range cfg.App.BasicAuth {
		ba := strings.SplitN(basicAuth, ":", 2)
		if len(ba) != 2 {
			logrus.Fatalln("Basic auth is not valid, please use the following format <user>:<secret>")
		}
		account[ba[0]] = ba[1]
	}
	apiGroup.Use(basicauth.New(basicauth.Config{
		Users: account,
		Next: func(c *fiber.Ctx) bool {
			return c.Method() == fiber.MethodOptions
		},
	}))

	rest.InitRestSend(apiGroup, sendUsecase, cfg.App.UploadDir)
	rest.InitRestInbox(apiGroup, registry, classifierLogs, guard, presence)
	rest.InitRestHandoff(apiGroup, handoffService, analyzer, registry, ruleSet)
	rest.InitRestDeals(apiGroup, dealProjector)
	rest.InitRestMemory(apiGroup, memoryService, registry)
	rest.InitChannelAPI(apiGroup, channelService, channelResolver)
	rest.InitRestHealth(apiGroup, healthUsecase)
	rest.SetAnalysisPool(analysisPool)

	hub.RegisterRoutes(apiGroup)
	go hub.Run(ctx)

	apiGroup.All("/*", func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "API Endpoint not found",
			"path":  c.Path(),
		})
	})

	sweeper, err := memoryApp.StartSweeper(cfg.Memory.SweepCron, memoryService)
	if err != nil {
		logrus.Fatalf("[MEMORY] %v", err)
	}
	healthUsecase.StartPeriodicChecks(ctx, healthCheckInterval)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		logrus.Info("[REST] Reception of termination signal, shutting down gracefully...")
		<-sweeper.Stop().Done()
		if err := app.Shutdown(); err != nil {
			logrus.Errorf("[REST] Error during Fiber shutdown: %v", err)
		}
		cancel()
	}()

	if err := app.Listen(":" + cfg.App.Port); err != nil {
		logrus.Fatalln("Failed to start: ", err.Error())
	}
	StopApp()
}
