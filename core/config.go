package core

import (
	"fmt"
	"log"
	"net"
	"net/mail"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type (
	Config struct {
		AppName          string
		Build            string
		Env              string // DEV (local; default), TEST, QA, PROD
		Debug            bool
		TestMode         bool
		SecretKey        string
		RollbarToken     string
		DefaultFromEmail mail.Address
		SendgridAPIKey   string

		Database  DatabaseConfig
		Server    ServerConfig
		Grading   GradingConfig
		Scheduler SchedulerConfig
	}

	DatabaseConfig struct {
		Engine        string
		User          string
		Password      string
		AdminUser     string
		AdminPassword string
		Host          string
		Port          int
		Name          string
		DisableTLS    bool
	}

	ServerConfig struct {
		Host               string
		Port               int
		DebugHost          string
		ShutdownTimeout    time.Duration
		JWTExpirationDelta time.Duration
	}

	GradingConfig struct {
		// Workers bounds how many students are rolled up concurrently.
		Workers int
		// PartialAverages averages over finalized children only instead of
		// leaving the parent pending while any child is pending.
		PartialAverages bool
		// initial state of the score entry periods
		NormalEntryOpen bool
		MakeupEntryOpen bool
		// ReportRecipients receive batch reports of scheduled runs.
		// Configured as a ";" separated list, eg: "Registrar <registrar@example.com>; dean@example.com".
		ReportRecipients []string
	}

	SchedulerConfig struct {
		Enabled bool
		// Jobs are "<cron spec>|<operation>|<semester id>|<academic year>[|<entry period to close>]",
		// eg: "0 2 * * *|finalize-semester|1|2024-2025|normal".
		// Configured as a ";" separated list.
		Jobs []string
	}
)

func (c DatabaseConfig) Address() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

func (c ServerConfig) Address() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// NewConfig loads the app config from the environment (and `config/.env.<env>` if it exists).
func NewConfig() *Config {
	v := viper.New()

	env := strings.ToUpper(os.Getenv("ENV"))
	if env == "" {
		env = "DEV"
	}
	setDefaults(v, env)
	v.SetEnvPrefix(env)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join(Getwd(), "config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
	v.AutomaticEnv()

	return &Config{
		AppName:      v.GetString("appName"),
		Build:        v.GetString("build"),
		Env:          env,
		Debug:        v.GetBool("debug"),
		TestMode:     v.GetBool("testMode"),
		SecretKey:    v.GetString("secretKey"),
		RollbarToken: v.GetString("rollbarToken"),
		DefaultFromEmail: mail.Address{
			Name:    v.GetString("appName"),
			Address: v.GetString("defaultFromEmail"),
		},
		SendgridAPIKey: v.GetString("sendgridApiKey"),
		Database: DatabaseConfig{
			Engine:        v.GetString("database.engine"),
			User:          v.GetString("database.user"),
			Password:      v.GetString("database.password"),
			AdminUser:     v.GetString("database.adminUser"),
			AdminPassword: v.GetString("database.adminPassword"),
			Host:          v.GetString("database.host"),
			Port:          v.GetInt("database.port"),
			Name:          v.GetString("database.name"),
			DisableTLS:    v.GetBool("database.disableTLS"),
		},
		Server: ServerConfig{
			Host:               v.GetString("server.host"),
			Port:               v.GetInt("server.port"),
			DebugHost:          v.GetString("server.debugHost"),
			ShutdownTimeout:    v.GetDuration("server.shutdownTimeout"),
			JWTExpirationDelta: v.GetDuration("server.jwtExpirationDelta"),
		},
		Grading: GradingConfig{
			Workers:          v.GetInt("grading.workers"),
			PartialAverages:  v.GetBool("grading.partialAverages"),
			NormalEntryOpen:  v.GetBool("grading.normalEntryOpen"),
			MakeupEntryOpen:  v.GetBool("grading.makeupEntryOpen"),
			ReportRecipients: splitList(v.GetString("grading.reportRecipients")),
		},
		Scheduler: SchedulerConfig{
			Enabled: v.GetBool("scheduler.enabled"),
			Jobs:    splitList(v.GetString("scheduler.jobs")),
		},
	}
}

func setDefaults(v *viper.Viper, env string) {
	v.SetTypeByDefaultValue(true)
	v.SetDefault("debug", true)
	v.SetDefault("testMode", env == "TEST")
	v.SetDefault("appName", "Deliberation")
	v.SetDefault("build", "develop")
	v.SetDefault("secretKey", "poq5-wer)enb$+57=dz&uoxh2(h!x)#*c2(#yg4h^$cegm2emy")
	v.SetDefault("defaultFromEmail", "noreply@localhost")

	v.SetDefault("database.engine", "postgres")
	v.SetDefault("database.user", "deliberation")
	v.SetDefault("database.password", "deliberation")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.name", fmt.Sprintf("deliberation_%s", strings.ToLower(env)))
	v.SetDefault("database.disableTLS", true)

	v.SetDefault("server.host", "")
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.debugHost", "0.0.0.0:4000")
	v.SetDefault("server.shutdownTimeout", 5*time.Second)
	v.SetDefault("server.jwtExpirationDelta", 7*24*time.Hour)

	v.SetDefault("grading.workers", 4)
	v.SetDefault("grading.partialAverages", false)
	v.SetDefault("grading.normalEntryOpen", true)
	v.SetDefault("grading.makeupEntryOpen", false)
	v.SetDefault("grading.reportRecipients", "")

	v.SetDefault("scheduler.enabled", false)
	v.SetDefault("scheduler.jobs", "")
}

// listSep separates the items of list settings. Items keep their inner spaces (cron specs, "Name <addr>").
const listSep = ";"

func splitList(s string) []string {
	var items []string
	for _, item := range strings.Split(s, listSep) {
		if item = CleanString(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}
