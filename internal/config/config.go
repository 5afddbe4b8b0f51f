package config

import (
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	"github.com/mitchelldurbincs/TacticsBattleCore/internal/game/core"
	"github.com/mitchelldurbincs/TacticsBattleCore/internal/game/mapgen"
)

// Config holds all configuration for the application
type Config struct {
	Battle      BattleConfig      `mapstructure:"battle"`
	Terrain     TerrainConfig     `mapstructure:"terrain"`
	Server      ServerConfig      `mapstructure:"server"`
	Storage     StorageConfig     `mapstructure:"storage"`
	Development DevelopmentConfig `mapstructure:"development"`
}

// BattleConfig holds battle setup settings
type BattleConfig struct {
	Width           int    `mapstructure:"width"`
	Height          int    `mapstructure:"height"`
	Seed            int64  `mapstructure:"seed"`
	AllyPassThrough bool   `mapstructure:"ally_pass_through"`
	UnitsFile       string `mapstructure:"units_file"`
	// MaxRounds stops demo battles that stall; zero means unlimited.
	MaxRounds int          `mapstructure:"max_rounds"`
	Map       MapConfig    `mapstructure:"map"`
	Combat    CombatConfig `mapstructure:"combat"`
}

// MapConfig holds terrain generation ratios ("one per N tiles", 0 disables)
type MapConfig struct {
	Generate          bool     `mapstructure:"generate"`
	DeploymentRows    int      `mapstructure:"deployment_rows"`
	ForestRatio       int      `mapstructure:"forest_ratio"`
	SwampRatio        int      `mapstructure:"swamp_ratio"`
	HillsRatio        int      `mapstructure:"hills_ratio"`
	MountainRatio     int      `mapstructure:"mountain_ratio"`
	LakeRatio         int      `mapstructure:"lake_ratio"`
	DefenderBuildings []string `mapstructure:"defender_buildings"`
}

// CombatConfig holds settings of the default combat resolver
type CombatConfig struct {
	CounterAttack bool `mapstructure:"counter_attack"`
	HitRolls      bool `mapstructure:"hit_rolls"`
}

// TerrainConfig is the balance table, keyed by terrain name
type TerrainConfig struct {
	Costs        map[string]int `mapstructure:"costs"`
	Defense      map[string]int `mapstructure:"defense"`
	Dodge        map[string]int `mapstructure:"dodge"`
	HillsDefense int            `mapstructure:"hills_defense"`
	HillsDodge   int            `mapstructure:"hills_dodge"`
}

// ServerConfig holds server configuration
type ServerConfig struct {
	HTTP HTTPServerConfig `mapstructure:"http"`
	GRPC GRPCServerConfig `mapstructure:"grpc"`
}

// HTTPServerConfig holds the command API settings
type HTTPServerConfig struct {
	Host           string   `mapstructure:"host"`
	Port           int      `mapstructure:"port"`
	LogLevel       string   `mapstructure:"log_level"`
	MaxBattles     int      `mapstructure:"max_battles"`
	RateLimit      float64  `mapstructure:"rate_limit"`
	RateBurst      int      `mapstructure:"rate_burst"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// GRPCServerConfig holds gRPC server configuration
type GRPCServerConfig struct {
	Host                  string `mapstructure:"host"`
	Port                  int    `mapstructure:"port"`
	EnableReflection      bool   `mapstructure:"enable_reflection"`
	GracefulShutdownDelay int    `mapstructure:"graceful_shutdown_delay"`
}

// StorageConfig selects where saved battles go
type StorageConfig struct {
	Type string `mapstructure:"type"` // "none" or "file"
	Path string `mapstructure:"path"`
}

// DevelopmentConfig holds development/debug settings
type DevelopmentConfig struct {
	VerboseLogging bool `mapstructure:"verbose_logging"`
}

var (
	// Global config instance
	mu  sync.RWMutex
	cfg *Config
	v   *viper.Viper
)

// setViperDefaults sets all default values using Viper's SetDefault
func setViperDefaults(v *viper.Viper) {
	// Battle defaults
	v.SetDefault("battle.width", 8)
	v.SetDefault("battle.height", 8)
	v.SetDefault("battle.seed", 1)
	v.SetDefault("battle.ally_pass_through", true)
	v.SetDefault("battle.units_file", "")
	v.SetDefault("battle.max_rounds", 50)

	v.SetDefault("battle.map.generate", false)
	v.SetDefault("battle.map.deployment_rows", 1)
	v.SetDefault("battle.map.forest_ratio", 8)
	v.SetDefault("battle.map.swamp_ratio", 20)
	v.SetDefault("battle.map.hills_ratio", 10)
	v.SetDefault("battle.map.mountain_ratio", 16)
	v.SetDefault("battle.map.lake_ratio", 24)
	v.SetDefault("battle.map.defender_buildings", []string{})

	v.SetDefault("battle.combat.counter_attack", true)
	v.SetDefault("battle.combat.hit_rolls", false)

	// Terrain defaults
	v.SetDefault("terrain.costs", map[string]int{
		"plains": 1, "forest": 2, "swamp": 3, "desert": 2, "tundra": 2,
		"mountain": 1, "lake": 1, "desert_mountain": 1, "tundra_mountain": 1,
	})
	v.SetDefault("terrain.defense", map[string]int{"forest": 1})
	v.SetDefault("terrain.dodge", map[string]int{"forest": 10, "swamp": -10})
	v.SetDefault("terrain.hills_defense", 1)
	v.SetDefault("terrain.hills_dodge", 5)

	// HTTP server defaults
	v.SetDefault("server.http.host", "0.0.0.0")
	v.SetDefault("server.http.port", 8080)
	v.SetDefault("server.http.log_level", "info")
	v.SetDefault("server.http.max_battles", 100)
	v.SetDefault("server.http.rate_limit", 20.0)
	v.SetDefault("server.http.rate_burst", 40)
	v.SetDefault("server.http.allowed_origins", []string{"*"})

	// gRPC server defaults
	v.SetDefault("server.grpc.host", "0.0.0.0")
	v.SetDefault("server.grpc.port", 50051)
	v.SetDefault("server.grpc.enable_reflection", true)
	v.SetDefault("server.grpc.graceful_shutdown_delay", 5)

	// Storage defaults
	v.SetDefault("storage.type", "none")
	v.SetDefault("storage.path", "./saves")

	// Development defaults
	v.SetDefault("development.verbose_logging", false)
}

// Init initializes the configuration system
func Init(configPath string) error {
	nv := viper.New()

	// Set defaults before loading any config
	setViperDefaults(nv)

	if configPath != "" {
		nv.SetConfigFile(configPath)
	} else {
		// Default config locations
		nv.SetConfigName("config")
		nv.SetConfigType("yaml")
		nv.AddConfigPath(".")
		nv.AddConfigPath("./config")
		nv.AddConfigPath("/etc/tactics-battle")
	}

	// Set environment variable prefix
	nv.SetEnvPrefix("TBC")
	nv.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	nv.AutomaticEnv()

	if err := nv.ReadInConfig(); err != nil {
		// A missing file falls back to defaults; a broken one does not
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}

	c := &Config{}
	if err := nv.Unmarshal(c); err != nil {
		return fmt.Errorf("unable to decode config into struct: %w", err)
	}
	if err := Validate(c); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	mu.Lock()
	v, cfg = nv, c
	mu.Unlock()
	return nil
}

// Get returns the global config instance
func Get() *Config {
	mu.RLock()
	c := cfg
	mu.RUnlock()
	if c != nil {
		return c
	}
	if err := Init(""); err != nil {
		panic("failed to initialize config with defaults: " + err.Error())
	}
	mu.RLock()
	defer mu.RUnlock()
	return cfg
}

// GetViper returns the viper instance for advanced usage
func GetViper() *viper.Viper {
	mu.RLock()
	defer mu.RUnlock()
	if v == nil {
		panic("config not initialized - call Init() first")
	}
	return v
}

// reload re-reads the struct from viper and swaps it in only when valid.
func reload() (*Config, error) {
	mu.Lock()
	defer mu.Unlock()
	c := &Config{}
	if err := v.Unmarshal(c); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}
	if err := Validate(c); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	cfg = c
	return c, nil
}

// LoadEnvironmentConfig loads environment-specific config overlay
func LoadEnvironmentConfig(env string) error {
	if env == "" {
		return nil
	}

	envFile := fmt.Sprintf("config.%s.yaml", env)
	GetViper().SetConfigFile(envFile)
	if err := GetViper().MergeInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("error merging environment config %s: %w", envFile, err)
		}
	}

	_, err := reload()
	return err
}

// Set allows runtime config updates. An update that fails validation is
// returned and leaves the current config in place.
func Set(key string, value interface{}) error {
	GetViper().Set(key, value)
	_, err := reload()
	return err
}

// GetString gets a string value from config
func GetString(key string) string {
	return GetViper().GetString(key)
}

// GetInt gets an int value from config
func GetInt(key string) int {
	return GetViper().GetInt(key)
}

// GetBool gets a bool value from config
func GetBool(key string) bool {
	return GetViper().GetBool(key)
}

// ConfigFilePath returns the path of the loaded config file
func ConfigFilePath() string {
	return GetViper().ConfigFileUsed()
}

// WatchConfig enables hot-reloading of the config file. onChange receives
// the new config, or the error that kept the old one in place.
func WatchConfig(onChange func(*Config, error)) {
	vp := GetViper()
	vp.OnConfigChange(func(e fsnotify.Event) {
		c, err := reload()
		if onChange != nil {
			onChange(c, err)
		}
	})
	vp.WatchConfig()
}

// TerrainTable builds the core balance lookup from the terrain section.
func (c *Config) TerrainTable() (*core.TerrainTable, error) {
	table := &core.TerrainTable{
		Costs:        make(map[core.Terrain]int),
		Defense:      make(map[core.Terrain]int),
		Dodge:        make(map[core.Terrain]int),
		HillsDefense: c.Terrain.HillsDefense,
		HillsDodge:   c.Terrain.HillsDodge,
	}
	for _, section := range []struct {
		name string
		in   map[string]int
		out  map[core.Terrain]int
	}{
		{"costs", c.Terrain.Costs, table.Costs},
		{"defense", c.Terrain.Defense, table.Defense},
		{"dodge", c.Terrain.Dodge, table.Dodge},
	} {
		for name, val := range section.in {
			t, err := core.ParseTerrain(name)
			if err != nil {
				return nil, fmt.Errorf("terrain.%s: %w", section.name, err)
			}
			section.out[t] = val
		}
	}
	return table, nil
}

// MapConfig is the generator setup for new battles, or nil when
// battle.map.generate is off.
func (c *Config) MapConfig() *mapgen.MapConfig {
	m := c.Battle.Map
	if !m.Generate {
		return nil
	}
	return &mapgen.MapConfig{
		Width:             c.Battle.Width,
		Height:            c.Battle.Height,
		DeploymentRows:    m.DeploymentRows,
		ForestRatio:       m.ForestRatio,
		SwampRatio:        m.SwampRatio,
		HillsRatio:        m.HillsRatio,
		MountainRatio:     m.MountainRatio,
		LakeRatio:         m.LakeRatio,
		DefenderBuildings: append([]string(nil), m.DefenderBuildings...),
	}
}

// Validate validates the configuration values
func Validate(c *Config) error {
	if c.Battle.Width < 2 || c.Battle.Height < 2 {
		return fmt.Errorf("battle dimensions must be at least 2x2")
	}
	if c.Battle.Width > 1<<15-1 || c.Battle.Height > 1<<15-1 {
		return fmt.Errorf("battle dimensions must fit in 16 bits")
	}
	if c.Battle.MaxRounds < 0 {
		return fmt.Errorf("battle.max_rounds must be non-negative")
	}
	m := c.Battle.Map
	if m.DeploymentRows < 0 || 2*m.DeploymentRows > c.Battle.Height {
		return fmt.Errorf("battle.map.deployment_rows must be between 0 and half the height")
	}
	for name, ratio := range map[string]int{
		"forest_ratio": m.ForestRatio, "swamp_ratio": m.SwampRatio, "hills_ratio": m.HillsRatio,
		"mountain_ratio": m.MountainRatio, "lake_ratio": m.LakeRatio,
	} {
		if ratio < 0 {
			return fmt.Errorf("battle.map.%s must be non-negative", name)
		}
	}

	// Validate terrain names and costs
	names := make([]string, 0, len(c.Terrain.Costs))
	for name := range c.Terrain.Costs {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if c.Terrain.Costs[name] <= 0 {
			return fmt.Errorf("terrain.costs.%s must be positive", name)
		}
	}
	if _, err := c.TerrainTable(); err != nil {
		return err
	}

	// Validate server configuration
	if c.Server.HTTP.Port <= 0 || c.Server.HTTP.Port > 65535 {
		return fmt.Errorf("server.http.port must be between 1 and 65535")
	}
	if c.Server.GRPC.Port <= 0 || c.Server.GRPC.Port > 65535 {
		return fmt.Errorf("server.grpc.port must be between 1 and 65535")
	}
	if c.Server.HTTP.MaxBattles <= 0 {
		return fmt.Errorf("server.http.max_battles must be positive")
	}
	if c.Server.HTTP.RateLimit <= 0 || c.Server.HTTP.RateBurst <= 0 {
		return fmt.Errorf("server.http rate limit and burst must be positive")
	}
	if c.Server.GRPC.GracefulShutdownDelay < 0 {
		return fmt.Errorf("server.grpc.graceful_shutdown_delay must be non-negative")
	}

	switch c.Storage.Type {
	case "none":
	case "file":
		if c.Storage.Path == "" {
			return fmt.Errorf("storage.path is required for file storage")
		}
	default:
		return fmt.Errorf("storage.type must be none or file, got %q", c.Storage.Type)
	}

	return nil
}
