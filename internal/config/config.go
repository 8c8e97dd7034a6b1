package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/nsharda/edge-gateway/internal/ratelimit"
)

const (
	ModeAllowlist = "allowlist"
	ModeBlocklist = "blocklist"
)

type Config struct {
	Server    ServerConfig     `json:"server"`
	RateLimit ratelimit.Config `json:"rateLimits"`
	IPRules   IPRules          `json:"ipRules"`
	Devices   DeviceConfig     `json:"devices"`
	AccessLog AccessLogConfig  `json:"accessLog"`
	Admin     AdminConfig      `json:"admin"`
}

type ServerConfig struct {
	Port        string `json:"port"`
	Environment string `json:"environment"`
}

type IPRules struct {
	Allowlist []string `json:"allowlist"`
	Blocklist []string `json:"blocklist"`
	Mode      string   `json:"mode"`
}

type DeviceConfig struct {
	StorePath string `json:"storePath"`
}

type AccessLogConfig struct {
	Dir             string `json:"dir"`
	Service         string `json:"service"`
	MaxLinesPerFile int    `json:"maxLinesPerFile"`
}

type AdminConfig struct {
	Email          string `json:"email"`
	PasswordHash   string `json:"passwordHash"`
	JWTSecret      string `json:"jwtSecret"`
	JWTExpiryHours int    `json:"jwtExpiryHours"`
}

func Load(path string) (*Config, error) {
	file, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var config Config
	if err := json.Unmarshal(file, &config); err != nil {
		return nil, err
	}

	config.applyEnv()

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// Env vars override the file so deployments can keep secrets out of it.
func (c *Config) applyEnv() {
	if port := os.Getenv("PORT"); port != "" {
		c.Server.Port = port
	}
	if secret := os.Getenv("JWT_SECRET"); secret != "" {
		c.Admin.JWTSecret = secret
	}
	if email := os.Getenv("ADMIN_EMAIL"); email != "" {
		c.Admin.Email = email
	}
	if hash := os.Getenv("ADMIN_PASSWORD_HASH"); hash != "" {
		c.Admin.PasswordHash = hash
	}
}

func (c *Config) Validate() error {
	if c.Server.Port == "" {
		c.Server.Port = "8080"
	}
	if c.AccessLog.Service == "" {
		c.AccessLog.Service = "edge-gateway"
	}
	if c.AccessLog.MaxLinesPerFile <= 0 {
		c.AccessLog.MaxLinesPerFile = 10000
	}
	if c.Admin.JWTExpiryHours <= 0 {
		c.Admin.JWTExpiryHours = 24
	}

	if len(c.RateLimit.Tiers) > 0 {
		if _, ok := c.RateLimit.Tiers[c.RateLimit.DefaultTier]; !ok {
			return fmt.Errorf("default tier %q is not defined", c.RateLimit.DefaultTier)
		}
	}

	for name, tier := range c.RateLimit.Tiers {
		if err := validateTier(tier); err != nil {
			return fmt.Errorf("tier %q: %w", name, err)
		}
	}

	switch c.IPRules.Mode {
	case "", ModeAllowlist, ModeBlocklist:
	default:
		return fmt.Errorf("unknown ip rules mode %q", c.IPRules.Mode)
	}

	return nil
}

func validateTier(tier ratelimit.TierConfig) error {
	switch tier.Algorithm {
	case ratelimit.AlgorithmNone:
		return nil
	case ratelimit.AlgorithmTokenBucket:
		if tier.MaxRequests <= 0 || tier.RefillRate <= 0 {
			return fmt.Errorf("tokenBucket requires maxRequests and refillRate")
		}
	case ratelimit.AlgorithmSlidingWindow, ratelimit.AlgorithmFixedWindow:
		if tier.MaxRequests <= 0 || tier.WindowMs <= 0 {
			return fmt.Errorf("%s requires maxRequests and windowMs", tier.Algorithm)
		}
	default:
		return fmt.Errorf("unknown algorithm %q", tier.Algorithm)
	}
	return nil
}
