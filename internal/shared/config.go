package shared

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"golang.org/x/oauth2"
)

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Credentials CredentialsConfig `toml:"credentials"`
	Database    DatabaseConfig    `toml:"database"`
	Server      ServerConfig      `toml:"server"`
	Sync        SyncConfig        `toml:"sync"`
	Matching    MatchingConfig    `toml:"matching"`
	Cache       CacheConfig       `toml:"cache"`

	// Job tables map a display name to a Beatport url code (or playlist id for backups).
	Genres  map[string]string `toml:"genres"`
	Charts  map[string]string `toml:"charts"`
	Labels  map[string]string `toml:"labels"`
	Backups map[string]string `toml:"backups"`
}

// CredentialsConfig contains service-specific credentials.
type CredentialsConfig struct {
	Spotify SpotifyConfig `toml:"spotify"`
}

// SpotifyConfig contains Spotify API credentials and the persisted OAuth token.
type SpotifyConfig struct {
	ClientID     string    `toml:"client_id"`
	ClientSecret string    `toml:"client_secret"`
	RedirectURI  string    `toml:"redirect_uri"`
	Username     string    `toml:"username"`
	Scopes       []string  `toml:"scopes"`
	AccessToken  string    `toml:"access_token"`
	RefreshToken string    `toml:"refresh_token"`
	TokenType    string    `toml:"token_type"`
	Expiry       time.Time `toml:"expiry"`
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// ServerConfig contains the OAuth callback server settings.
type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// SyncConfig controls how playlists are named, filled and refreshed.
type SyncConfig struct {
	PlaylistPrefix      string `toml:"playlist_prefix"`
	PlaylistDescription string `toml:"playlist_description"`
	AddAtTop            bool   `toml:"add_at_top_playlist"`
	DailyMode           bool   `toml:"daily_mode"`
	DailyNTrack         int    `toml:"daily_n_track"`
	RefreshEvery        int    `toml:"refresh_token_n_tracks"`
	BatchSize           int    `toml:"batch_size"`
	DiggingMode         string `toml:"digging_mode"`
	OverwriteLabel      bool   `toml:"overwrite_label"`
	ShuffleLabel        bool   `toml:"shuffle_label"`
}

// MatchingConfig controls the search strategy.
type MatchingConfig struct {
	ParseTrack   bool    `toml:"parse_track"`
	Metric       string  `toml:"metric"`
	SilentSearch bool    `toml:"silent_search"`
	SearchLimit  int     `toml:"search_limit"`
	RateLimit    float64 `toml:"rate_limit"`
}

// CacheConfig configures the optional redis search cache. An empty address disables it.
type CacheConfig struct {
	RedisAddr string `toml:"redis_addr"`
	RedisDB   int    `toml:"redis_db"`
	TTL       string `toml:"ttl"`
}

// TTLDuration parses [CacheConfig.TTL], defaulting to 24h.
func (c CacheConfig) TTLDuration() time.Duration {
	d, err := time.ParseDuration(c.TTL)
	if err != nil || d <= 0 {
		return 24 * time.Hour
	}
	return d
}

// Token builds an [oauth2.Token] from the persisted values, or nil when none is stored.
func (s *SpotifyConfig) Token() *oauth2.Token {
	if s.AccessToken == "" && s.RefreshToken == "" {
		return nil
	}
	return &oauth2.Token{
		AccessToken:  s.AccessToken,
		RefreshToken: s.RefreshToken,
		TokenType:    s.TokenType,
		Expiry:       s.Expiry,
	}
}

// Update stores the given token's fields.
func (s *SpotifyConfig) Update(token *oauth2.Token) error {
	if token == nil {
		return fmt.Errorf("%w: nil token", ErrInvalidArgument)
	}
	s.AccessToken = token.AccessToken
	if token.RefreshToken != "" {
		s.RefreshToken = token.RefreshToken
	}
	s.TokenType = token.TokenType
	s.Expiry = token.Expiry
	return nil
}

// Validate reports configuration problems that would prevent a sync run.
func (c *Config) Validate() error {
	if c.Credentials.Spotify.ClientID == "" || c.Credentials.Spotify.ClientSecret == "" {
		return fmt.Errorf("%w: spotify client_id and client_secret are required", ErrMissingCredentials)
	}
	switch c.Sync.DiggingMode {
	case "", "playlist", "all":
	default:
		return fmt.Errorf("%w: digging_mode %q", ErrInvalidConfig, c.Sync.DiggingMode)
	}
	if c.Sync.BatchSize < 1 || c.Sync.BatchSize > 100 {
		return fmt.Errorf("%w: batch_size must be between 1 and 100, got %d", ErrInvalidConfig, c.Sync.BatchSize)
	}
	if c.Sync.DailyMode && c.Sync.DailyNTrack < 1 {
		return fmt.Errorf("%w: daily_n_track must be positive", ErrInvalidConfig)
	}
	return nil
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
//
// Values missing from the file keep the embedded defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	config.Genres, config.Charts, config.Labels, config.Backups = nil, nil, nil, nil
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return config, nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// SaveConfig encodes config as TOML and writes it to path.
func SaveConfig(path string, config *Config) error {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(config); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
