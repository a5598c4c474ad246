package main

import (
	"log"
	"os"

	"github.com/getsentry/sentry-go"
	"github.com/gofiber/fiber/v2"

	"leadgen/config"
	"leadgen/middleware"
	"leadgen/routes"
	"leadgen/store"
	"leadgen/tracker"
	"leadgen/utils"
	"leadgen/worker"
)

func main() {
	// Initialize logger
	logger := log.New(os.Stdout, "LEADGEN: ", log.Ldate|log.Ltime|log.Lshortfile)

	// Load configuration
	if err := config.LoadConfig(); err != nil {
		logger.Fatalf("Failed to load configuration: %v", err)
	}

	if config.AppConfig.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:         config.AppConfig.SentryDSN,
			Environment: config.AppConfig.Environment,
		}); err != nil {
			logger.Printf("Sentry initialization failed: %v", err)
		}
	}

	// Pick the lead store backend
	leadStore, err := buildStore()
	if err != nil {
		logger.Fatalf("Failed to set up lead store: %v", err)
	}

	// The Brevo client serves open-status polling regardless of which
	// transport sends the mail.
	brevoClient := utils.NewBrevoClient(
		config.AppConfig.BrevoAPIKey,
		config.AppConfig.BrevoBaseURL,
		config.AppConfig.SenderName,
		config.AppConfig.SenderEmail,
	)

	var dispatcher worker.Dispatcher = brevoClient
	if config.AppConfig.MailTransport == "smtp" {
		dispatcher = utils.NewSMTPMailer(
			config.AppConfig.SMTPHost,
			config.AppConfig.SMTPPort,
			config.AppConfig.SMTPUsername,
			config.AppConfig.SMTPPassword,
			config.AppConfig.SenderName,
			config.AppConfig.SenderEmail,
			config.AppConfig.SMTPHost,
		)
	}

	dispatchWorker := worker.NewDispatchWorker(
		leadStore,
		dispatcher,
		log.New(os.Stdout, "DISPATCH: ", log.LstdFlags),
		config.AppConfig.SendPacing,
	)

	correlator := tracker.NewCorrelator(
		config.AppConfig.CorrelationWindow,
		log.New(os.Stdout, "CORRELATE: ", log.LstdFlags),
	)

	freshness := tracker.NewFreshnessChecker(
		config.AppConfig.OpenStatusTTL,
		brevoClient,
		log.New(os.Stdout, "OPEN-STATUS: ", log.LstdFlags),
	)

	generator := buildGenerator(logger)

	// Create Fiber app
	app := fiber.New()

	// Add CORS middleware
	app.Use(middleware.CORS())

	// Setup routes
	routes.SetupRoutes(app, routes.Deps{
		Store:      leadStore,
		Worker:     dispatchWorker,
		Correlator: correlator,
		Freshness:  freshness,
		Generator:  generator,
	})

	// Start server
	logger.Printf("Server starting on port %s", config.AppConfig.ServerPort)
	if err := app.Listen(":" + config.AppConfig.ServerPort); err != nil {
		logger.Fatalf("Failed to start server: %v", err)
	}
}

func buildStore() (store.LeadStore, error) {
	if config.AppConfig.LeadStore == "postgres" {
		if err := config.ConnectDB(); err != nil {
			return nil, err
		}
		return store.NewGormStore(config.DB)
	}
	return store.NewFileStore(
		config.AppConfig.LeadsPath,
		log.New(os.Stdout, "STORE: ", log.LstdFlags),
	), nil
}

// buildGenerator wires the research pipeline when its API keys are present.
// Without them the /generate endpoint reports itself unconfigured and the
// rest of the app keeps working.
func buildGenerator(logger *log.Logger) *utils.LeadGenerator {
	if config.AppConfig.SerpAPIKey == "" || config.AppConfig.OpenAIKey == "" {
		logger.Println("SERPAPI_API_KEY or OPENAI_API_KEY not set; lead generation disabled")
		return nil
	}

	search := utils.NewSerpAPIClient(config.AppConfig.SerpAPIKey, config.AppConfig.CityContext, "")
	writer := utils.NewOpenAIClient(config.AppConfig.OpenAIKey, config.AppConfig.OpenAIModel, "")

	return utils.NewLeadGenerator(
		search,
		writer,
		config.AppConfig.CityContext,
		config.AppConfig.SenderName,
		log.New(os.Stdout, "GENERATE: ", log.LstdFlags),
	)
}
