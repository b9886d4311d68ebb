package util

import (
	_ "embed"
	"fmt"
	"gopkg.in/yaml.v3"
	"log"
	"os"
	"strconv"
)

const Name = "worknet"
const ConfigFileName = "config.yaml"

//go:embed config_default.yaml
var embeddedConfig []byte

type AppConfig struct {
	Conf struct {
		Host       string
		HttpPort   int    `yaml:"httpPort"`
		Domain     string `yaml:"domain"`
		AutoTls    bool   `yaml:"autoTls"`
		AdminToken string `yaml:"adminToken"`

		Federation struct {
			Shards             int `yaml:"shards"`
			MaxAttempts        int `yaml:"maxAttempts"`
			WorkerIntervalSecs int `yaml:"workerIntervalSecs"`
			RateLimitThreshold int `yaml:"rateLimitThreshold"`
			CacheTtlHours      int `yaml:"cacheTtlHours"`
			PrewarmTtlHours    int `yaml:"prewarmTtlHours"`
		} `yaml:"federation"`

		Retention struct {
			ObjectsDays        int `yaml:"objectsDays"`
			RequestLogsDays    int `yaml:"requestLogsDays"`
			ProcessedQueueDays int `yaml:"processedQueueDays"`
			AlertsDays         int `yaml:"alertsDays"`
		} `yaml:"retention"`
	}
}

func ReadConf() (*AppConfig, error) {

	c := &AppConfig{}

	// Try to resolve config file path (local first, then user dir)
	configPath := ResolveFilePath(ConfigFileName)

	var buf []byte
	var err error

	// Try to read from resolved path
	buf, err = os.ReadFile(configPath)
	if err != nil {
		// If file doesn't exist, use embedded config and create user config file
		log.Printf("Config file not found at %s, using embedded defaults", configPath)
		buf = embeddedConfig

		// Try to write default config to user config directory
		configDir, dirErr := GetConfigDir()
		if dirErr == nil {
			userConfigPath := configDir + "/" + ConfigFileName
			writeErr := os.WriteFile(userConfigPath, embeddedConfig, 0644)
			if writeErr != nil {
				log.Printf("Warning: could not write default config to %s: %v", userConfigPath, writeErr)
			} else {
				log.Printf("Created default config file at %s", userConfigPath)
			}
		}
	}

	err = yaml.Unmarshal(buf, c)
	if err != nil {
		return nil, fmt.Errorf("in config file: %w", err)
	}

	applyEnvOverrides(c)

	if c.Conf.Domain == "" {
		return nil, fmt.Errorf("no site domain configured, set conf.domain or WORKNET_DOMAIN")
	}

	applyDefaults(c)

	return c, nil
}

func applyEnvOverrides(c *AppConfig) {
	envHost := os.Getenv("WORKNET_HOST")
	envHttpPort := os.Getenv("WORKNET_HTTPPORT")
	envDomain := os.Getenv("WORKNET_DOMAIN")
	envAutoTls := os.Getenv("WORKNET_AUTOTLS")
	envAdminToken := os.Getenv("WORKNET_ADMINTOKEN")
	envRateLimit := os.Getenv("WORKNET_RATELIMIT_THRESHOLD")

	if envHost != "" {
		c.Conf.Host = envHost
	}

	if envHttpPort != "" {
		v, err := strconv.Atoi(envHttpPort)
		if err != nil {
			fmt.Println(err)
		}
		c.Conf.HttpPort = v
	}

	if envDomain != "" {
		c.Conf.Domain = envDomain
	}

	if envAutoTls == "true" {
		c.Conf.AutoTls = true
	}

	if envAdminToken != "" {
		c.Conf.AdminToken = envAdminToken
	}

	if envRateLimit != "" {
		v, err := strconv.Atoi(envRateLimit)
		if err != nil {
			fmt.Println(err)
		}
		c.Conf.Federation.RateLimitThreshold = v
	}
}

// applyDefaults fills in zero-valued federation and retention knobs so a
// minimal config file still yields a working engine.
func applyDefaults(c *AppConfig) {
	f := &c.Conf.Federation
	if f.Shards <= 0 {
		f.Shards = 8
	}
	if f.MaxAttempts <= 0 {
		f.MaxAttempts = 10
	}
	if f.WorkerIntervalSecs <= 0 {
		f.WorkerIntervalSecs = 10
	}
	if f.RateLimitThreshold <= 0 {
		f.RateLimitThreshold = 1000
	}
	if f.CacheTtlHours <= 0 {
		f.CacheTtlHours = 24
	}
	if f.PrewarmTtlHours <= 0 {
		f.PrewarmTtlHours = 168
	}

	r := &c.Conf.Retention
	if r.ObjectsDays <= 0 {
		r.ObjectsDays = 90
	}
	if r.RequestLogsDays <= 0 {
		r.RequestLogsDays = 30
	}
	if r.ProcessedQueueDays <= 0 {
		r.ProcessedQueueDays = 7
	}
	if r.AlertsDays <= 0 {
		r.AlertsDays = 30
	}
}
