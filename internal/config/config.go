package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration loaded from environment.
//
// Rate-limit counters and pub/sub membership are process-local; running
// more than one instance requires externalizing both, which this service
// does not do.
type Config struct {
	DB struct {
		DSN string
	}
	API struct {
		Port     string
		BasePath string
	}
	Kafka struct {
		Broker  string
		Topic   string
		GroupID string
	}
	Email struct {
		SMTPServer string
		SMTPPort   int
		Username   string
		Password   string
		FromName   string
	}
	SMS struct {
		AccountSID string
		AuthToken  string
		FromNumber string
	}
	Telegram struct {
		BotToken  string
		OpsChatID int64
	}
	OTP struct {
		CodeLength  int
		TTL         time.Duration
		MaxAttempts int
		IssueLimit  int
		IssueWindow time.Duration
	}
	Notification struct {
		QueueSize      int
		MaxWorkers     int
		AttemptTimeout time.Duration
		SettleTimeout  time.Duration
	}
	Logging struct {
		Dir   string
		Level string
	}
}

// Load reads environment variables, applies defaults, and returns a Config.
func Load() (Config, error) {
	// Load .env if present
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return Config{}, fmt.Errorf("failed to load .env file: %w", err)
	}

	var cfg Config

	cfg.DB.DSN = os.Getenv("DB_DSN")

	cfg.API.Port = os.Getenv("API_PORT")
	cfg.API.BasePath = os.Getenv("API_BASE_PATH")

	cfg.Kafka.Broker = os.Getenv("KAFKA_BROKER")
	cfg.Kafka.Topic = os.Getenv("KAFKA_TOPIC")
	cfg.Kafka.GroupID = os.Getenv("KAFKA_GROUP_ID")

	cfg.Email.SMTPServer = os.Getenv("EMAIL_SMTP_SERVER")
	if p, err := strconv.Atoi(os.Getenv("EMAIL_SMTP_PORT")); err == nil {
		cfg.Email.SMTPPort = p
	}
	cfg.Email.Username = os.Getenv("EMAIL_USERNAME")
	cfg.Email.Password = os.Getenv("EMAIL_PASSWORD")
	cfg.Email.FromName = os.Getenv("EMAIL_FROM_NAME")

	cfg.SMS.AccountSID = os.Getenv("SMS_ACCOUNT_SID")
	cfg.SMS.AuthToken = os.Getenv("SMS_AUTH_TOKEN")
	cfg.SMS.FromNumber = os.Getenv("SMS_FROM_NUMBER")

	cfg.Telegram.BotToken = os.Getenv("TELEGRAM_BOT_TOKEN")
	if id, err := strconv.ParseInt(os.Getenv("TELEGRAM_OPS_CHAT_ID"), 10, 64); err == nil {
		cfg.Telegram.OpsChatID = id
	}

	if n, err := strconv.Atoi(os.Getenv("OTP_CODE_LENGTH")); err == nil {
		cfg.OTP.CodeLength = n
	}
	if d, err := time.ParseDuration(os.Getenv("OTP_TTL")); err == nil {
		cfg.OTP.TTL = d
	}
	if n, err := strconv.Atoi(os.Getenv("OTP_MAX_ATTEMPTS")); err == nil {
		cfg.OTP.MaxAttempts = n
	}
	if n, err := strconv.Atoi(os.Getenv("OTP_ISSUE_LIMIT")); err == nil {
		cfg.OTP.IssueLimit = n
	}
	if d, err := time.ParseDuration(os.Getenv("OTP_ISSUE_WINDOW")); err == nil {
		cfg.OTP.IssueWindow = d
	}

	if qs, err := strconv.Atoi(os.Getenv("QUEUE_SIZE")); err == nil {
		cfg.Notification.QueueSize = qs
	}
	if mw, err := strconv.Atoi(os.Getenv("MAX_WORKERS")); err == nil {
		cfg.Notification.MaxWorkers = mw
	}
	if d, err := time.ParseDuration(os.Getenv("ATTEMPT_TIMEOUT")); err == nil {
		cfg.Notification.AttemptTimeout = d
	}
	if d, err := time.ParseDuration(os.Getenv("SETTLE_TIMEOUT")); err == nil {
		cfg.Notification.SettleTimeout = d
	}

	cfg.Logging.Dir = os.Getenv("LOG_DIR")
	cfg.Logging.Level = os.Getenv("LOG_LEVEL")

	// Validate required settings
	missing := []string{}
	if cfg.DB.DSN == "" {
		missing = append(missing, "DB_DSN")
	}
	if len(missing) > 0 {
		return Config{}, fmt.Errorf("missing required configurations: %v", missing)
	}

	// Apply defaults
	if cfg.API.Port == "" {
		cfg.API.Port = ":8080"
	}
	if cfg.API.BasePath == "" {
		cfg.API.BasePath = "/api/v1"
	}
	if cfg.Kafka.GroupID == "" {
		cfg.Kafka.GroupID = "alert-service"
	}
	if cfg.OTP.CodeLength == 0 {
		cfg.OTP.CodeLength = 6
	}
	if cfg.OTP.TTL == 0 {
		cfg.OTP.TTL = 10 * time.Minute
	}
	if cfg.OTP.MaxAttempts == 0 {
		cfg.OTP.MaxAttempts = 5
	}
	if cfg.OTP.IssueLimit == 0 {
		cfg.OTP.IssueLimit = 5
	}
	if cfg.OTP.IssueWindow == 0 {
		cfg.OTP.IssueWindow = 15 * time.Minute
	}
	if cfg.Notification.QueueSize == 0 {
		cfg.Notification.QueueSize = 500
	}
	if cfg.Notification.MaxWorkers == 0 {
		cfg.Notification.MaxWorkers = 10
	}
	if cfg.Notification.AttemptTimeout == 0 {
		cfg.Notification.AttemptTimeout = 10 * time.Second
	}
	if cfg.Notification.SettleTimeout == 0 {
		cfg.Notification.SettleTimeout = 30 * time.Second
	}
	if cfg.Logging.Dir == "" {
		cfg.Logging.Dir = "logs"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}

	return cfg, nil
}
