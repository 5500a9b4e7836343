package core

import (
	"log"
	"net"
	"net/mail"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type (
	ServerConfig struct {
		Host               string
		Address            string
		DebugHost          string
		DisableReqLogs     bool
		ShutdownTimeout    time.Duration
		JWTExpirationDelta time.Duration
	}

	DatabaseConfig struct {
		Engine        string
		Host          string
		Port          string
		Name          string
		User          string
		Password      string
		AdminUser     string
		AdminPassword string
		DisableTLS    bool
	}

	// ImportConfig holds the tunables of the gradebook import pipeline.
	ImportConfig struct {
		MaxUploadSize       int64 // bytes
		FuzzyThreshold      int
		ExcellentThreshold  float64
		CompletedThreshold  float64
		InProgressThreshold float64
		SuggestMinScore     float64
		NotifyOnCommit      bool
	}

	Config struct {
		AppName         string
		Env             string // DEV (local; default), TEST, QA, PROD
		Build           string
		Debug           bool
		TestMode        bool
		WorkDir         string
		SecretKey       string
		RollbarToken    string
		SendgridApiKey  string
		FrontendBaseURL string

		Server   ServerConfig
		Database DatabaseConfig
		Import   ImportConfig

		defaultFromEmail mail.Address
	}
)

func (c *Config) DefaultFromEmail() mail.Address {
	return c.defaultFromEmail
}

func (db DatabaseConfig) Address() string {
	return net.JoinHostPort(db.Host, db.Port)
}

// NewConfig loads `config/.env.<env>` (if present) and reads the environment on top of the defaults.
func NewConfig() *Config {
	v := viper.New()

	// defaults
	v.SetTypeByDefaultValue(true)
	v.SetDefault("appName", "Contract Grading")
	v.SetDefault("build", "develop")
	v.SetDefault("debug", true)
	v.SetDefault("secretKey", "8h3$w+k!qz0^n6r(m2@t%u4e&j1)d7c_y=v9b#p5l*ix-fo")
	v.SetDefault("rollbarToken", "")
	v.SetDefault("sendgridApiKey", "")
	v.SetDefault("frontendBaseURL", "http://localhost:8080")
	v.SetDefault("defaultFromEmail", "Contract Grading <noreply@localhost>")

	v.SetDefault("serverHost", "localhost")
	v.SetDefault("serverAddress", ":8000")
	v.SetDefault("serverDebugHost", ":4000")
	v.SetDefault("serverDisableReqLogs", false)
	v.SetDefault("serverShutdownTimeout", 5*time.Second)
	v.SetDefault("jwtExpirationDelta", 7*24*time.Hour)

	v.SetDefault("dbEngine", "postgres")
	v.SetDefault("dbHost", "localhost")
	v.SetDefault("dbPort", "5432")
	v.SetDefault("dbName", "contractgrading")
	v.SetDefault("dbUser", "contractgrading")
	v.SetDefault("dbPassword", "")
	v.SetDefault("dbAdminUser", "postgres")
	v.SetDefault("dbAdminPassword", "")
	v.SetDefault("dbDisableTLS", true)

	v.SetDefault("importMaxUploadSize", int64(5<<20))
	v.SetDefault("importFuzzyThreshold", 80)
	v.SetDefault("importExcellentThreshold", 90.0)
	v.SetDefault("importCompletedThreshold", 70.0)
	v.SetDefault("importInProgressThreshold", 1.0)
	v.SetDefault("importSuggestMinScore", 0.6)
	v.SetDefault("importNotifyOnCommit", true)

	env := strings.ToUpper(os.Getenv("ENV"))
	if env == "" {
		env = "DEV"
	}
	if env == "TEST" {
		v.SetDefault("testMode", true)
	}
	v.SetEnvPrefix(env)

	workDir := Getwd()

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join(workDir, "config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
	v.AutomaticEnv()

	from, err := mail.ParseAddress(v.GetString("defaultFromEmail"))
	if err != nil {
		log.Fatalf("config.defaultFromEmail: %v", err)
	}

	return &Config{
		AppName:         v.GetString("appName"),
		Env:             env,
		Build:           v.GetString("build"),
		Debug:           v.GetBool("debug"),
		TestMode:        v.GetBool("testMode"),
		WorkDir:         workDir,
		SecretKey:       v.GetString("secretKey"),
		RollbarToken:    v.GetString("rollbarToken"),
		SendgridApiKey:  v.GetString("sendgridApiKey"),
		FrontendBaseURL: v.GetString("frontendBaseURL"),
		Server: ServerConfig{
			Host:               v.GetString("serverHost"),
			Address:            v.GetString("serverAddress"),
			DebugHost:          v.GetString("serverDebugHost"),
			DisableReqLogs:     v.GetBool("serverDisableReqLogs"),
			ShutdownTimeout:    v.GetDuration("serverShutdownTimeout"),
			JWTExpirationDelta: v.GetDuration("jwtExpirationDelta"),
		},
		Database: DatabaseConfig{
			Engine:        v.GetString("dbEngine"),
			Host:          v.GetString("dbHost"),
			Port:          v.GetString("dbPort"),
			Name:          v.GetString("dbName"),
			User:          v.GetString("dbUser"),
			Password:      v.GetString("dbPassword"),
			AdminUser:     v.GetString("dbAdminUser"),
			AdminPassword: v.GetString("dbAdminPassword"),
			DisableTLS:    v.GetBool("dbDisableTLS"),
		},
		Import: ImportConfig{
			MaxUploadSize:       v.GetInt64("importMaxUploadSize"),
			FuzzyThreshold:      v.GetInt("importFuzzyThreshold"),
			ExcellentThreshold:  v.GetFloat64("importExcellentThreshold"),
			CompletedThreshold:  v.GetFloat64("importCompletedThreshold"),
			InProgressThreshold: v.GetFloat64("importInProgressThreshold"),
			SuggestMinScore:     v.GetFloat64("importSuggestMinScore"),
			NotifyOnCommit:      v.GetBool("importNotifyOnCommit"),
		},
		defaultFromEmail: *from,
	}
}
