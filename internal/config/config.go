package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds all server configuration
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Economy  EconomyConfig  `yaml:"economy"`
	Drop     DropConfig     `yaml:"drop"`
}

// ServerConfig holds the HTTP listener settings
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// DatabaseConfig holds MySQL connection settings
type DatabaseConfig struct {
	DSN          string `yaml:"dsn"`
	MaxOpenConns int    `yaml:"max_open_conns"`
	MaxIdleConns int    `yaml:"max_idle_conns"`
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// EconomyConfig holds the tunable economic constants.
type EconomyConfig struct {
	// GachaCost is the flat coin price of one paid pull.
	GachaCost float64 `yaml:"gacha_cost"`
	// MarketFeeRate is the marketplace cut withheld from the seller's
	// credit on every purchase, in [0,1).
	MarketFeeRate float64 `yaml:"market_fee_rate"`
	// DamageCoinRate converts damage dealt into coins credited.
	DamageCoinRate float64 `yaml:"damage_coin_rate"`
	// RarityWeightBase is the base of the weight(rarity)=base^rarity
	// falloff used by the reward sampler, in (0,1).
	RarityWeightBase float64 `yaml:"rarity_weight_base"`
}

// DropConfig gates the passive drop engine.
type DropConfig struct {
	// DamageDivisor scales damage into drop probability.
	DamageDivisor float64 `yaml:"damage_divisor"`
	// MaxChance caps the drop probability.
	MaxChance float64 `yaml:"max_chance"`
	// Tiers maps a server tier name to its drop modifiers.
	Tiers map[string]TierConfig `yaml:"tiers"`
}

// TierConfig scales and restricts drops for one server tier.
type TierConfig struct {
	// ChanceMultiplier scales the gate probability before capping.
	ChanceMultiplier float64 `yaml:"chance_multiplier"`
	// MaxRarity restricts the candidate set to items at or below this
	// rarity. Negative means no cutoff.
	MaxRarity int `yaml:"max_rarity"`
}

// Load reads configuration from a YAML file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.applyDefaults()
	return &cfg, cfg.validate()
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

func (cfg *Config) applyDefaults() {
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8080"
	}
	if cfg.Database.DSN == "" {
		cfg.Database.DSN = "root:root@tcp(localhost:3306)/sekonomy?parseTime=true"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 50
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 25
	}
	if cfg.Redis.Addr == "" {
		cfg.Redis.Addr = "localhost:6379"
	}
	if cfg.Economy.GachaCost == 0 {
		cfg.Economy.GachaCost = 500
	}
	if cfg.Economy.MarketFeeRate == 0 {
		cfg.Economy.MarketFeeRate = 0.10
	}
	if cfg.Economy.DamageCoinRate == 0 {
		cfg.Economy.DamageCoinRate = 0.1
	}
	if cfg.Economy.RarityWeightBase == 0 {
		cfg.Economy.RarityWeightBase = 0.4
	}
	if cfg.Drop.DamageDivisor == 0 {
		cfg.Drop.DamageDivisor = 62
	}
	if cfg.Drop.MaxChance == 0 {
		cfg.Drop.MaxChance = 0.8
	}
}

func (cfg *Config) validate() error {
	if cfg.Economy.MarketFeeRate < 0 || cfg.Economy.MarketFeeRate >= 1 {
		return fmt.Errorf("market_fee_rate must be in [0,1), got %v", cfg.Economy.MarketFeeRate)
	}
	if cfg.Economy.RarityWeightBase <= 0 || cfg.Economy.RarityWeightBase >= 1 {
		return fmt.Errorf("rarity_weight_base must be in (0,1), got %v", cfg.Economy.RarityWeightBase)
	}
	if cfg.Drop.MaxChance <= 0 || cfg.Drop.MaxChance > 1 {
		return fmt.Errorf("max_chance must be in (0,1], got %v", cfg.Drop.MaxChance)
	}
	if cfg.Drop.DamageDivisor <= 0 {
		return fmt.Errorf("damage_divisor must be positive, got %v", cfg.Drop.DamageDivisor)
	}
	for name, tier := range cfg.Drop.Tiers {
		if tier.ChanceMultiplier <= 0 {
			return fmt.Errorf("tier %s: chance_multiplier must be positive", name)
		}
	}
	return nil
}
