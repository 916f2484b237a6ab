package config

import (
	"os"

	"cleanmarket/pkg/logger"

	"github.com/spf13/viper"
)

type Config struct {
	GeneralVersion       string `mapstructure:"GENERAL_VERSION"`
	Environment          string `mapstructure:"ENVIRONMENT"`
	ServerPort           int    `mapstructure:"SERVER_PORT"`
	DatabaseHost         string `mapstructure:"DB_HOST"`
	DatabasePort         int    `mapstructure:"DB_PORT"`
	DatabaseName         string `mapstructure:"DB_NAME"`
	DatabaseUser         string `mapstructure:"DB_USER"`
	DatabasePassword     string `mapstructure:"DB_PASSWORD"`
	DatabaseCacheAddress string `mapstructure:"DB_CACHE_ADDRESS"`
	DatabaseCachePort    int    `mapstructure:"DB_CACHE_PORT"`
	CorsAllowOrigins     string `mapstructure:"CORS_ALLOW_ORIGINS"`

	SchedulerEnabled        bool `mapstructure:"SCHEDULER_ENABLED"`
	DistributedLocksEnabled bool `mapstructure:"DISTRIBUTED_LOCKS_ENABLED"`
	JobBatchSize            int  `mapstructure:"JOB_BATCH_SIZE"`
	CommissionWorkers       int  `mapstructure:"COMMISSION_WORKERS"`
	JobLockTTLMinutes       int  `mapstructure:"JOB_LOCK_TTL_MINUTES"`

	CommissionRate      float64 `mapstructure:"COMMISSION_RATE"`
	CommissionFreeQuota int     `mapstructure:"COMMISSION_FREE_QUOTA"`

	AutoConfirmAfterHours int     `mapstructure:"AUTO_CONFIRM_AFTER_HOURS"`
	EventRetentionDays    int     `mapstructure:"EVENT_RETENTION_DAYS"`
	DebtWatchFloor        float64 `mapstructure:"DEBT_WATCH_FLOOR"`
	DefaultDebtThreshold  float64 `mapstructure:"DEFAULT_DEBT_THRESHOLD"`

	FraudWindowDays               int     `mapstructure:"FRAUD_WINDOW_DAYS"`
	FraudCancellationMinBookings  int     `mapstructure:"FRAUD_CANCELLATION_MIN_BOOKINGS"`
	FraudCancellationRatio        float64 `mapstructure:"FRAUD_CANCELLATION_RATIO"`
	FraudConcentrationMinBookings int     `mapstructure:"FRAUD_CONCENTRATION_MIN_BOOKINGS"`
	FraudFlagCooldownHours        int     `mapstructure:"FRAUD_FLAG_COOLDOWN_HOURS"`
}

var ConfigInstance Config

var envVars = []string{
	"GENERAL_VERSION", "ENVIRONMENT", "SERVER_PORT",
	"DB_HOST", "DB_PORT", "DB_NAME", "DB_USER", "DB_PASSWORD",
	"DB_CACHE_ADDRESS", "DB_CACHE_PORT",
	"CORS_ALLOW_ORIGINS",
	"SCHEDULER_ENABLED", "DISTRIBUTED_LOCKS_ENABLED", "JOB_BATCH_SIZE", "COMMISSION_WORKERS",
	"JOB_LOCK_TTL_MINUTES",
	"COMMISSION_RATE", "COMMISSION_FREE_QUOTA",
	"AUTO_CONFIRM_AFTER_HOURS", "EVENT_RETENTION_DAYS", "DEBT_WATCH_FLOOR", "DEFAULT_DEBT_THRESHOLD",
	"FRAUD_WINDOW_DAYS", "FRAUD_CANCELLATION_MIN_BOOKINGS", "FRAUD_CANCELLATION_RATIO",
	"FRAUD_CONCENTRATION_MIN_BOOKINGS", "FRAUD_FLAG_COOLDOWN_HOURS",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENVIRONMENT", "development")
	v.SetDefault("SERVER_PORT", 8280)
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_CACHE_PORT", 6379)
	v.SetDefault("CORS_ALLOW_ORIGINS", "*")

	v.SetDefault("SCHEDULER_ENABLED", true)
	v.SetDefault("DISTRIBUTED_LOCKS_ENABLED", false)
	v.SetDefault("JOB_BATCH_SIZE", 500)
	v.SetDefault("COMMISSION_WORKERS", 4)
	v.SetDefault("JOB_LOCK_TTL_MINUTES", 10)

	v.SetDefault("COMMISSION_RATE", 0.07)
	v.SetDefault("COMMISSION_FREE_QUOTA", 20)

	v.SetDefault("AUTO_CONFIRM_AFTER_HOURS", 48)
	v.SetDefault("EVENT_RETENTION_DAYS", 90)
	v.SetDefault("DEBT_WATCH_FLOOR", -100)
	v.SetDefault("DEFAULT_DEBT_THRESHOLD", -200)

	v.SetDefault("FRAUD_WINDOW_DAYS", 30)
	v.SetDefault("FRAUD_CANCELLATION_MIN_BOOKINGS", 5)
	v.SetDefault("FRAUD_CANCELLATION_RATIO", 0.30)
	v.SetDefault("FRAUD_CONCENTRATION_MIN_BOOKINGS", 10)
	v.SetDefault("FRAUD_FLAG_COOLDOWN_HOURS", 0)
}

func New() (Config, error) {
	return load(viper.New())
}

func load(v *viper.Viper) (Config, error) {
	log := logger.New("config").Function("New")
	log.Info("Initializing config")

	setDefaults(v)
	v.AutomaticEnv()

	for _, env := range envVars {
		if err := v.BindEnv(env); err != nil {
			log.Warn("Failed to bind environment variable", "env", env, "error", err)
		}
	}

	// Defaults make IsSet always true, so look at the real environment instead
	_, hostSet := os.LookupEnv("DB_HOST")
	_, portSet := os.LookupEnv("SERVER_PORT")
	envVarsSet := hostSet && portSet
	if envVarsSet {
		log.Info("Environment variables detected, skipping file loading")
	} else {
		log.Info("Environment variables not found, attempting to load from files")

		v.SetConfigFile(".env")
		v.SetConfigType("env")
		if err := v.ReadInConfig(); err != nil {
			log.Warn("Could not find .env file", "error", err)
		} else {
			log.Info("Loaded .env file")
		}

		v.SetConfigFile(".env.local")
		if err := v.MergeInConfig(); err != nil {
			log.Debug("No .env.local file found", "error", err)
		} else {
			log.Info("Loaded .env.local overrides")
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return Config{}, log.Err("Fatal error: could not unmarshal config", err)
	}

	if err := validateConfig(config, log); err != nil {
		return Config{}, err
	}

	log.Info("Successfully initialized config",
		"environment", config.Environment,
		"port", config.ServerPort,
		"schedulerEnabled", config.SchedulerEnabled,
	)
	return config, nil
}

func GetConfig() Config {
	return ConfigInstance
}

func validateConfig(config Config, log logger.Logger) error {
	if config.ServerPort <= 0 {
		return log.Error("Fatal error: invalid server port", "port", config.ServerPort)
	}

	if config.CommissionRate < 0 || config.CommissionRate >= 1 {
		return log.Error("Fatal error: commission rate must be in [0, 1)", "rate", config.CommissionRate)
	}

	if config.CommissionFreeQuota < 0 {
		return log.Error("Fatal error: free job quota cannot be negative", "quota", config.CommissionFreeQuota)
	}

	if config.AutoConfirmAfterHours <= 0 {
		return log.Error("Fatal error: auto confirm delay must be positive", "hours", config.AutoConfirmAfterHours)
	}

	if config.EventRetentionDays <= 0 {
		return log.Error("Fatal error: event retention must be positive", "days", config.EventRetentionDays)
	}

	if config.DefaultDebtThreshold > config.DebtWatchFloor {
		return log.Error(
			"Fatal error: default debt threshold must not be above the watch floor",
			"threshold", config.DefaultDebtThreshold,
			"floor", config.DebtWatchFloor,
		)
	}

	if config.FraudWindowDays <= 0 || config.FraudCancellationRatio <= 0 || config.FraudCancellationRatio > 1 {
		return log.Error(
			"Fatal error: invalid fraud heuristics configuration",
			"windowDays", config.FraudWindowDays,
			"cancellationRatio", config.FraudCancellationRatio,
		)
	}

	if config.FraudFlagCooldownHours < 0 {
		return log.Error("Fatal error: flag cooldown cannot be negative", "hours", config.FraudFlagCooldownHours)
	}

	if config.JobLockTTLMinutes <= 0 {
		return log.Error("Fatal error: job lock TTL must be positive", "minutes", config.JobLockTTLMinutes)
	}

	if config.JobBatchSize <= 0 || config.CommissionWorkers <= 0 {
		return log.Error(
			"Fatal error: job batch size and commission workers must be positive",
			"batchSize", config.JobBatchSize,
			"workers", config.CommissionWorkers,
		)
	}

	ConfigInstance = config
	return nil
}
