package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"mailprobe/models"
	"mailprobe/verifier"
)

var (
	DB        *gorm.DB
	RDB       *redis.Client
	AppConfig Config
)

type RedisConfig struct {
	Enabled  bool   `json:"enabled"`
	Address  string `json:"address"`
	Password string `json:"-"`
	DB       int    `json:"db"`
}

// VerifierConfig holds the engine defaults used by the server and worker.
type VerifierConfig struct {
	FromAddress    string `json:"from_address"`
	HeloHost       string `json:"helo_host"`
	TimeoutSeconds int    `json:"timeout_seconds"`
	MaxMX          int    `json:"max_mx"`
	Ports          []int  `json:"ports"`
	Concurrency    int    `json:"concurrency"`
	DisposableFile string `json:"disposable_file"`
}

type Config struct {
	Environment string `json:"environment"`
	ServerPort  string `json:"server_port"`

	DBHost         string `json:"db_host"`
	DBPort         string `json:"db_port"`
	DBUser         string `json:"db_user"`
	DBPassword     string `json:"-"`
	DBName         string `json:"db_name"`
	DBSSLMode      string `json:"db_ssl_mode"`
	DBMaxIdleConns int    `json:"db_max_idle_conns"`
	DBMaxOpenConns int    `json:"db_max_open_conns"`

	JWTSecret string `json:"-"`
	SentryDSN string `json:"-"`

	StripeSecretKey     string `json:"-"`
	StripeWebhookSecret string `json:"-"`

	// Default admin seeded on first migration.
	AdminEmail    string `json:"admin_email"`
	AdminPassword string `json:"-"`

	RateLimitPerMinute int `json:"rate_limit_per_minute"`

	Redis    RedisConfig    `json:"redis"`
	Verifier VerifierConfig `json:"verifier"`
}

func init() {
	// Try to load .env, but don't fail if it doesn't exist
	_ = godotenv.Load()
}

func LoadConfig() error {
	AppConfig = Config{
		Environment:    getEnv("ENVIRONMENT", "development"),
		ServerPort:     getEnv("SERVER_PORT", "5000"),
		DBHost:         getEnv("DB_HOST", "localhost"),
		DBPort:         getEnv("DB_PORT", "5432"),
		DBUser:         getEnv("DB_USER", "postgres"),
		DBPassword:     getEnv("DB_PASSWORD", ""),
		DBName:         getEnv("DB_NAME", "mailprobe"),
		DBSSLMode:      getEnv("DB_SSL_MODE", "disable"),
		DBMaxIdleConns: getEnvAsInt("DB_MAX_IDLE_CONNS", 10),
		DBMaxOpenConns: getEnvAsInt("DB_MAX_OPEN_CONNS", 100),

		JWTSecret: getEnv("JWT_SECRET", ""),
		SentryDSN: getEnv("SENTRY_DSN", ""),

		StripeSecretKey:     getEnv("STRIPE_SECRET_KEY", ""),
		StripeWebhookSecret: getEnv("STRIPE_WEBHOOK_SECRET", ""),

		AdminEmail:    getEnv("ADMIN_EMAIL", "admin@localhost.local"),
		AdminPassword: getEnv("ADMIN_PASSWORD", "admin123"),

		RateLimitPerMinute: getEnvAsInt("RATE_LIMIT_PER_MINUTE", 60),

		Redis: RedisConfig{
			Enabled:  getEnv("REDIS_ENABLED", "false") == "true",
			Address:  getEnv("REDIS_ADDRESS", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
	}

	ports, err := verifier.ParsePorts(getEnv("VERIFY_PORTS", "25"))
	if err != nil {
		return fmt.Errorf("invalid VERIFY_PORTS: %w", err)
	}
	AppConfig.Verifier = VerifierConfig{
		FromAddress:    getEnv("VERIFY_FROM", "verify@example.com"),
		HeloHost:       getEnv("VERIFY_HELO", "example.com"),
		TimeoutSeconds: getEnvAsInt("VERIFY_TIMEOUT", 7),
		MaxMX:          getEnvAsInt("VERIFY_MAX_MX", 3),
		Ports:          ports,
		Concurrency:    getEnvAsInt("VERIFY_CONCURRENCY", 10),
		DisposableFile: getEnv("VERIFY_DISPOSABLE_FILE", ""),
	}

	if AppConfig.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}

	logConfig()
	return nil
}

// VerifierOptions converts the configured defaults into engine options.
func (c *Config) VerifierOptions() verifier.Options {
	return verifier.Options{
		FromAddress: c.Verifier.FromAddress,
		HeloHost:    c.Verifier.HeloHost,
		Timeout:     time.Duration(c.Verifier.TimeoutSeconds) * time.Second,
		MaxMX:       c.Verifier.MaxMX,
		Ports:       c.Verifier.Ports,
	}
}

func ConnectDB() error {
	logrus.Info("Connecting to database...")

	dsn := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		AppConfig.DBHost,
		AppConfig.DBPort,
		AppConfig.DBUser,
		AppConfig.DBPassword,
		AppConfig.DBName,
		AppConfig.DBSSLMode,
	)
	logrus.Debugf("Using connection string: %s", maskPassword(dsn))

	var err error
	DB, err = gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := DB.DB()
	if err != nil {
		return fmt.Errorf("failed to get DB instance: %w", err)
	}
	sqlDB.SetMaxIdleConns(AppConfig.DBMaxIdleConns)
	sqlDB.SetMaxOpenConns(AppConfig.DBMaxOpenConns)
	sqlDB.SetConnMaxLifetime(time.Hour)
	sqlDB.SetConnMaxIdleTime(30 * time.Minute)

	if err := sqlDB.Ping(); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	logrus.Info("Running database migration...")
	if err := DB.AutoMigrate(
		&models.User{},
		&models.RefreshToken{},
		&models.CreditTransaction{},
		&models.ValidationJob{},
		&models.ValidationRecord{},
	); err != nil {
		return fmt.Errorf("database migration failed: %w", err)
	}

	if err := seedDefaultAdmin(); err != nil {
		return fmt.Errorf("failed to seed default admin: %w", err)
	}

	logrus.Info("Database ready")
	return nil
}

// seedDefaultAdmin creates the admin account on a fresh database so the
// admin endpoints are reachable before any registration.
func seedDefaultAdmin() error {
	var count int64
	if err := DB.Model(&models.User{}).Where("role = ?", "admin").Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(AppConfig.AdminPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	admin := models.User{
		Email:         AppConfig.AdminEmail,
		PasswordHash:  string(hash),
		Role:          "admin",
		IsActive:      true,
		VerifyCredits: 1000000,
	}
	if err := DB.Create(&admin).Error; err != nil {
		return err
	}
	logrus.WithField("email", admin.Email).Warn("Seeded default admin account; change its password")
	return nil
}

// ConnectRedis initializes the shared Redis client when enabled.
func ConnectRedis() error {
	if !AppConfig.Redis.Enabled {
		return nil
	}
	RDB = redis.NewClient(&redis.Options{
		Addr:     AppConfig.Redis.Address,
		Password: AppConfig.Redis.Password,
		DB:       AppConfig.Redis.DB,
	})
	return nil
}

// InitSentry wires error reporting when a DSN is configured.
func InitSentry() error {
	if AppConfig.SentryDSN == "" {
		return nil
	}
	return sentry.Init(sentry.ClientOptions{
		Dsn:         AppConfig.SentryDSN,
		Environment: AppConfig.Environment,
	})
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
	var value int
	if _, err := fmt.Sscanf(valueStr, "%d", &value); err != nil {
		return fallback
	}
	return value
}

func maskPassword(dsn string) string {
	const passwordMarker = "password="
	startIdx := strings.Index(dsn, passwordMarker)
	if startIdx == -1 {
		return dsn
	}
	startIdx += len(passwordMarker)
	endIdx := strings.IndexAny(dsn[startIdx:], " ")
	if endIdx == -1 {
		return dsn[:startIdx] + "*****"
	}
	return dsn[:startIdx] + "*****" + dsn[startIdx+endIdx:]
}

func logConfig() {
	logrus.WithFields(logrus.Fields{
		"environment": AppConfig.Environment,
		"server_port": AppConfig.ServerPort,
		"database":    fmt.Sprintf("%s@%s:%s/%s", AppConfig.DBUser, AppConfig.DBHost, AppConfig.DBPort, AppConfig.DBName),
		"redis":       AppConfig.Redis.Enabled,
		"sentry":      AppConfig.SentryDSN != "",
	}).Info("Loaded configuration")
}
