/*
Copyright 2025 Panelku Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package config

import (
	"encoding/json"
	"errors"
	"log"
	"os"
	"strings"
	"sync/atomic"

	"github.com/kelseyhightower/envconfig"

	"github.com/sirupsen/logrus"
)

const (
	DEFAULT_PORT = "8080"

	// MinPaymentWindowMinutes is the floor for the checkout payment window.
	MinPaymentWindowMinutes = 5
)

var ConfigStore atomic.Value

type ServerConfig struct {
	Port string `json:"port" envconfig:"PANELKU_SERVER_PORT"`
}

type AdminConfig struct {
	SecretKey string `json:"secret_key" envconfig:"PANELKU_ADMIN_KEY"`
}

// DataSourceConfig points at the embedded sqlite file used as the tertiary
// order backend. Empty disables the SQL backend.
type DataSourceConfig struct {
	Dns string `json:"dns" envconfig:"PANELKU_DATA_SOURCE_DNS"`
}

// RedisConfig points at the KV store used as the secondary order backend and
// catalog cache. Empty disables the KV backend.
type RedisConfig struct {
	Dns string `json:"dns" envconfig:"PANELKU_REDIS_DNS"`
}

// PanelConfig describes the upstream SMM reseller API.
type PanelConfig struct {
	URLs               []string `json:"urls" envconfig:"PANELKU_PANEL_URLS"`
	Key                string   `json:"key" envconfig:"PANELKU_PANEL_KEY"`
	TimeoutSec         int      `json:"timeout_sec" envconfig:"PANELKU_PANEL_TIMEOUT_SEC"`
	FailureCooldownSec int      `json:"failure_cooldown_sec" envconfig:"PANELKU_PANEL_FAILURE_COOLDOWN_SEC"`
}

type CatalogConfig struct {
	CacheTTLSec  int    `json:"cache_ttl_sec" envconfig:"PANELKU_CATALOG_CACHE_TTL_SEC"`
	SnapshotFile string `json:"snapshot_file" envconfig:"PANELKU_CATALOG_SNAPSHOT_FILE"`
	ManualFile   string `json:"manual_file" envconfig:"PANELKU_CATALOG_MANUAL_FILE"`
}

// GatewayConfig describes the optional payment gateway (iPaymu style). Invoice
// creation is attempted only when Url is set.
type GatewayConfig struct {
	Url       string `json:"url" envconfig:"PANELKU_GATEWAY_URL"`
	ApiKey    string `json:"api_key" envconfig:"PANELKU_GATEWAY_API_KEY"`
	VaAccount string `json:"va_account" envconfig:"PANELKU_GATEWAY_VA_ACCOUNT"`
}

type CheckoutConfig struct {
	PaymentWindowMinutes int `json:"payment_window_minutes" envconfig:"PANELKU_PAYMENT_WINDOW_MINUTES"`
}

type UploadConfig struct {
	Dir string `json:"dir" envconfig:"PANELKU_UPLOAD_DIR"`
}

// HistoryConfig caps persisted order history. The cap applies to the Redis
// index and the sqlite table; TTL applies to individual Redis order keys.
type HistoryConfig struct {
	Limit   int `json:"limit" envconfig:"PANELKU_HISTORY_LIMIT"`
	TTLDays int `json:"ttl_days" envconfig:"PANELKU_HISTORY_TTL_DAYS"`
}

type RateLimitConfig struct {
	RequestsPerSecond  *float64 `json:"requests_per_second" envconfig:"PANELKU_RATE_LIMIT_RPS"`
	Burst              *int     `json:"burst" envconfig:"PANELKU_RATE_LIMIT_BURST"`
	CleanupIntervalSec *int     `json:"cleanup_interval_sec" envconfig:"PANELKU_RATE_LIMIT_CLEANUP_INTERVAL_SEC"`
}

type SlackWebhook struct {
	WebhookUrl string `json:"webhook_url" envconfig:"PANELKU_SLACK_WEBHOOK_URL"`
}

type Notification struct {
	Slack SlackWebhook `json:"slack"`
}

type FrontendConfig struct {
	Origin string `json:"origin" envconfig:"PANELKU_FRONTEND_ORIGIN"`
}

type Configuration struct {
	ProjectName  string           `json:"project_name" envconfig:"PANELKU_PROJECT_NAME"`
	Server       ServerConfig     `json:"server"`
	Admin        AdminConfig      `json:"admin"`
	DataSource   DataSourceConfig `json:"data_source"`
	Redis        RedisConfig      `json:"redis"`
	Panel        PanelConfig      `json:"panel"`
	Catalog      CatalogConfig    `json:"catalog"`
	Gateway      GatewayConfig    `json:"gateway"`
	Checkout     CheckoutConfig   `json:"checkout"`
	Upload       UploadConfig     `json:"upload"`
	History      HistoryConfig    `json:"history"`
	RateLimit    RateLimitConfig  `json:"rate_limit"`
	Notification Notification     `json:"notification"`
	Frontend     FrontendConfig   `json:"frontend"`
}

func loadConfigFromFile(file string) error {
	var cnf Configuration
	_, err := os.Stat(file)
	if err == nil {
		f, err := os.Open(file)
		if err != nil {
			return err
		}
		defer func() {
			_ = f.Close()
		}()
		err = json.NewDecoder(f).Decode(&cnf)
		if err != nil {
			return err
		}
	} else if errors.Is(err, os.ErrNotExist) {
		log.Println("config json not passed, will use env variables")
	}

	// override config from environment variables
	err = envconfig.Process("panelku", &cnf)
	if err != nil {
		return err
	}

	err = cnf.validateAndAddDefaults()
	if err != nil {
		return err
	}

	ConfigStore.Store(&cnf)
	return err
}

func InitConfig(configFile string) error {
	logger()
	return loadConfigFromFile(configFile)
}

func Fetch() (*Configuration, error) {
	config := ConfigStore.Load()
	c, ok := config.(*Configuration)
	if !ok {
		return nil, errors.New("config not loaded from file. Create a json file called panelku.json with your config")
	}
	return c, nil
}

func (cnf *Configuration) validateAndAddDefaults() error {
	if cnf.ProjectName == "" {
		cnf.ProjectName = "Panelku Server"
	}

	cnf.ProjectName = strings.TrimSpace(cnf.ProjectName)
	cnf.Server.Port = strings.TrimSpace(cnf.Server.Port)
	cnf.Redis.Dns = strings.TrimSpace(cnf.Redis.Dns)
	cnf.DataSource.Dns = strings.TrimSpace(cnf.DataSource.Dns)
	for i := range cnf.Panel.URLs {
		cnf.Panel.URLs[i] = strings.TrimSpace(cnf.Panel.URLs[i])
	}

	if cnf.Server.Port == "" {
		cnf.Server.Port = DEFAULT_PORT
		log.Printf("Warning: Port not specified in config. Setting default port: %s", DEFAULT_PORT)
	}

	if cnf.Admin.SecretKey == "" {
		log.Println("Warning: Admin key is empty. Admin endpoints will reject every request.")
	}

	if len(cnf.Panel.URLs) == 0 {
		log.Println("Warning: No panel URLs configured. Catalog will rely on cached or manual data.")
	}

	if cnf.Panel.TimeoutSec <= 0 {
		cnf.Panel.TimeoutSec = 10
	}
	if cnf.Panel.FailureCooldownSec <= 0 {
		cnf.Panel.FailureCooldownSec = 120
	}
	if cnf.Catalog.CacheTTLSec <= 0 {
		cnf.Catalog.CacheTTLSec = 600
	}
	if cnf.Catalog.SnapshotFile == "" {
		cnf.Catalog.SnapshotFile = "catalog_snapshot.json"
	}
	if cnf.Catalog.ManualFile == "" {
		cnf.Catalog.ManualFile = "catalog_manual.json"
	}

	if cnf.Checkout.PaymentWindowMinutes <= 0 {
		cnf.Checkout.PaymentWindowMinutes = 30
	}
	if cnf.Checkout.PaymentWindowMinutes < MinPaymentWindowMinutes {
		cnf.Checkout.PaymentWindowMinutes = MinPaymentWindowMinutes
	}

	if cnf.Upload.Dir == "" {
		cnf.Upload.Dir = "./uploads"
	}

	if cnf.History.Limit <= 0 {
		cnf.History.Limit = 500
	}
	if cnf.History.TTLDays <= 0 {
		cnf.History.TTLDays = 60
	}

	if cnf.Frontend.Origin == "" {
		cnf.Frontend.Origin = "*"
	}

	// Rate limiting is disabled by default (when both RPS and Burst are nil)
	if cnf.RateLimit.RequestsPerSecond != nil && cnf.RateLimit.Burst == nil {
		defaultBurst := 2 * int(*cnf.RateLimit.RequestsPerSecond)
		cnf.RateLimit.Burst = &defaultBurst
		log.Printf("Warning: Rate limit burst not specified. Setting default value: %d", defaultBurst)
	}
	if cnf.RateLimit.RequestsPerSecond == nil && cnf.RateLimit.Burst != nil {
		defaultRPS := float64(*cnf.RateLimit.Burst) / 2
		cnf.RateLimit.RequestsPerSecond = &defaultRPS
		log.Printf("Warning: Rate limit RPS not specified. Setting default value: %.2f", defaultRPS)
	}
	if cnf.RateLimit.CleanupIntervalSec == nil {
		defaultCleanup := 10800 // 3 hours in seconds
		cnf.RateLimit.CleanupIntervalSec = &defaultCleanup
	}

	return nil
}

// MockConfig sets a mock configuration for testing purposes.
func MockConfig(mockConfig *Configuration) {
	_ = mockConfig.validateAndAddDefaults()
	ConfigStore.Store(mockConfig)
}

func logger() {
	logger := logrus.New()
	log.SetOutput(logger.Writer())
}
