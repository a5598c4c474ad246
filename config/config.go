package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

var (
	DB        *gorm.DB
	AppConfig Config
)

type RedisConfig struct {
	Enabled  bool   `json:"enabled"`
	Address  string `json:"address"`
	Password string `json:"password"`
	DB       int    `json:"db"`
}

type Config struct {
	Environment string `json:"environment"`
	ServerPort  string `json:"server_port"`

	// Lead store: "file" (JSON snapshot) or "postgres".
	LeadStore string `json:"lead_store"`
	LeadsPath string `json:"leads_path"`

	DBHost     string `json:"db_host"`
	DBPort     string `json:"db_port"`
	DBUser     string `json:"db_user"`
	DBPassword string `json:"-"`
	DBName     string `json:"db_name"`
	DBSSLMode  string `json:"db_ssl_mode"`

	// Dispatch and correlation tuning.
	SendPacing        time.Duration `json:"send_pacing"`
	OpenStatusTTL     time.Duration `json:"open_status_ttl"`
	CorrelationWindow time.Duration `json:"correlation_window"`

	// Mail transport: "brevo" (API) or "smtp".
	MailTransport string `json:"mail_transport"`
	BrevoAPIKey   string `json:"-"`
	BrevoBaseURL  string `json:"brevo_base_url"`
	SenderName    string `json:"sender_name"`
	SenderEmail   string `json:"sender_email"`
	SMTPHost      string `json:"smtp_host"`
	SMTPPort      int    `json:"smtp_port"`
	SMTPUsername  string `json:"smtp_username"`
	SMTPPassword  string `json:"-"`

	// Lead generation collaborators.
	SerpAPIKey  string `json:"-"`
	OpenAIKey   string `json:"-"`
	OpenAIModel string `json:"openai_model"`
	CityContext string `json:"city_context"`

	DashboardUser     string `json:"dashboard_user"`
	DashboardPassword string `json:"-"`

	SentryDSN     string      `json:"-"`
	RateLimitSend int         `json:"rate_limit_send"`
	Redis         RedisConfig `json:"redis"`
}

func init() {
	// Try to load .env file, but don't fail if it doesn't exist
	_ = godotenv.Load()
}

func LoadConfig() error {
	AppConfig = Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		ServerPort:  getEnv("SERVER_PORT", "5000"),

		LeadStore: getEnv("LEAD_STORE", "file"),
		LeadsPath: getEnv("LEADS_PATH", "ld/data/leads.json"),

		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBUser:     getEnv("DB_USER", "postgres"),
		DBPassword: getEnv("DB_PASSWORD", ""),
		DBName:     getEnv("DB_NAME", "leadgen"),
		DBSSLMode:  getEnv("DB_SSL_MODE", "disable"),

		SendPacing:        time.Duration(getEnvAsInt("SEND_PACING_SECONDS", 5)) * time.Second,
		OpenStatusTTL:     time.Duration(getEnvAsInt("OPEN_STATUS_TTL_SECONDS", 300)) * time.Second,
		CorrelationWindow: time.Duration(getEnvAsInt("CORRELATION_WINDOW_MINUTES", 10)) * time.Minute,

		MailTransport: getEnv("MAIL_TRANSPORT", "brevo"),
		BrevoAPIKey:   getEnv("BREVO_API_KEY", ""),
		BrevoBaseURL:  getEnv("BREVO_BASE_URL", ""),
		SenderName:    getEnv("SENDER_NAME", "Evergreen Media Labs"),
		SenderEmail:   getEnv("SENDER_EMAIL", ""),
		SMTPHost:      getEnv("SMTP_HOST", ""),
		SMTPPort:      getEnvAsInt("SMTP_PORT", 587),
		SMTPUsername:  getEnv("SMTP_USERNAME", ""),
		SMTPPassword:  getEnv("SMTP_PASSWORD", ""),

		SerpAPIKey:  getEnv("SERPAPI_API_KEY", ""),
		OpenAIKey:   getEnv("OPENAI_API_KEY", ""),
		OpenAIModel: getEnv("OPENAI_MODEL", "gpt-4o-mini"),
		CityContext: getEnv("CITY_CONTEXT", "Wausau, Wisconsin, United States"),

		DashboardUser:     getEnv("LEAD_DASHBOARD_USER", ""),
		DashboardPassword: getEnv("LEAD_DASHBOARD_PASSWORD", ""),

		SentryDSN:     getEnv("SENTRY_DSN", ""),
		RateLimitSend: getEnvAsInt("RATE_LIMIT_SEND", 10),
		Redis: RedisConfig{
			Enabled:  getEnv("REDIS_ENABLED", "false") == "true",
			Address:  getEnv("REDIS_ADDRESS", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
	}

	switch AppConfig.LeadStore {
	case "file", "postgres":
	default:
		return fmt.Errorf("LEAD_STORE must be \"file\" or \"postgres\", got %q", AppConfig.LeadStore)
	}
	if AppConfig.LeadStore == "postgres" && AppConfig.DBPassword == "" {
		return fmt.Errorf("DB_PASSWORD is required when LEAD_STORE=postgres")
	}

	switch AppConfig.MailTransport {
	case "brevo", "smtp":
	default:
		return fmt.Errorf("MAIL_TRANSPORT must be \"brevo\" or \"smtp\", got %q", AppConfig.MailTransport)
	}
	if AppConfig.MailTransport == "smtp" && AppConfig.SMTPHost == "" {
		return fmt.Errorf("SMTP_HOST is required when MAIL_TRANSPORT=smtp")
	}
	// A missing Brevo key is not fatal: webhook correlation keeps working,
	// only dispatch and polling degrade to logged errors.
	if AppConfig.MailTransport == "brevo" && AppConfig.BrevoAPIKey == "" {
		log.Println("BREVO_API_KEY not set; dispatch and open-status polling will fail until configured")
	}

	logConfig()
	return nil
}

// ConnectDB opens the Postgres connection backing the database lead store.
// Only called when LEAD_STORE=postgres.
func ConnectDB() error {
	log.Println("Attempting to connect to database...")

	dsn := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		AppConfig.DBHost,
		AppConfig.DBPort,
		AppConfig.DBUser,
		AppConfig.DBPassword,
		AppConfig.DBName,
		AppConfig.DBSSLMode,
	)

	var err error
	DB, err = gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := DB.DB()
	if err != nil {
		return fmt.Errorf("failed to get DB instance: %w", err)
	}
	sqlDB.SetConnMaxLifetime(time.Hour)
	sqlDB.SetConnMaxIdleTime(30 * time.Minute)

	if err := sqlDB.Ping(); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	log.Println("Successfully connected to the database")
	return nil
}

// Helper functions
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return fallback
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return fallback
	}
	return value
}

func logConfig() {
	log.Println("Loaded configuration:")
	log.Printf("Environment: %s", AppConfig.Environment)
	log.Printf("Server Port: %s", AppConfig.ServerPort)
	log.Printf("Lead store: %s (%s)", AppConfig.LeadStore, storeTarget())
	log.Printf("Mail transport: %s", AppConfig.MailTransport)
	log.Printf("Pacing: %s, open-status TTL: %s, correlation window: %s",
		AppConfig.SendPacing, AppConfig.OpenStatusTTL, AppConfig.CorrelationWindow)
}

func storeTarget() string {
	if AppConfig.LeadStore == "postgres" {
		return fmt.Sprintf("%s@%s:%s/%s", AppConfig.DBUser, AppConfig.DBHost, AppConfig.DBPort, AppConfig.DBName)
	}
	return AppConfig.LeadsPath
}
