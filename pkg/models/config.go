// Copyright 2025 Bloathound Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package models

import "time"

// Config is the top-level daemon configuration loaded from YAML.
type Config struct {
	Scanner       ScannerConfig      `yaml:"scanner"`
	Store         StoreConfig        `yaml:"store"`
	Agent         AgentConfig        `yaml:"agent"`
	Gateway       GatewayConfig      `yaml:"gateway"`
	API           APIConfig          `yaml:"api"`
	Metrics       MetricsConfig      `yaml:"metrics"`
	Notifications NotificationConfig `yaml:"notifications"`
}

// ScannerConfig controls the scan behavior.
type ScannerConfig struct {
	// RiskThreshold is the minimum risk score a matched record needs
	// before it is reported. Zero means unset; the default is 4.
	RiskThreshold int `yaml:"risk_threshold"`
	// ScanIntervalSecond enables the periodic background scan when
	// positive.
	ScanIntervalSecond int    `yaml:"scan_interval"`
	LogLevel           string `yaml:"log_level"`
	DefaultUser        string `yaml:"default_user"`
}

// ScanInterval returns the periodic scan interval as a duration.
func (c *ScannerConfig) ScanInterval() time.Duration {
	return time.Duration(c.ScanIntervalSecond) * time.Second
}

// StoreConfig holds the MySQL connection settings for the threat store.
type StoreConfig struct {
	Host         string `yaml:"host"`
	Port         string `yaml:"port"`
	Username     string `yaml:"username"`
	Password     string `yaml:"password"`
	DatabaseName string `yaml:"database_name"`
	Charset      string `yaml:"charset"`
}

// AgentConfig holds the host agent connection settings.
type AgentConfig struct {
	Address string `yaml:"address"`
	// RequestTimeoutSecond bounds every agent call. Inventory collection
	// and uninstall execution have realistic multi-minute worst cases.
	RequestTimeoutSecond int  `yaml:"request_timeout"`
	DryRun               bool `yaml:"dry_run"`
}

// RequestTimeout returns the agent call timeout as a duration.
func (c *AgentConfig) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSecond) * time.Second
}

// GatewayConfig configures the WebSocket command gateway.
type GatewayConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// APIConfig configures the read-only HTTP API.
type APIConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// MetricsConfig configures the Prometheus metrics endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Port    int    `yaml:"port"`
	Path    string `yaml:"path"`
}

// NotificationConfig configures the scan-summary webhook.
type NotificationConfig struct {
	Webhook string `yaml:"webhook"`
	Region  string `yaml:"region"`
}

// DefaultRiskThreshold is applied when a scan request or the configuration
// leaves the threshold unset.
const DefaultRiskThreshold = 4

// EffectiveRiskThreshold resolves the configured threshold against the
// default.
func (c *ScannerConfig) EffectiveRiskThreshold() int {
	if c.RiskThreshold <= 0 {
		return DefaultRiskThreshold
	}
	return c.RiskThreshold
}
