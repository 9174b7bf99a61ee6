package shared

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"golang.org/x/oauth2"
)

func TestConfig(t *testing.T) {
	t.Run("DefaultConfig", func(t *testing.T) {
		config := DefaultConfig()

		if config.Database.Path != "./keytrack.db" {
			t.Errorf("expected database path ./keytrack.db, got %s", config.Database.Path)
		}

		if config.Server.Port != 3000 {
			t.Errorf("expected server port 3000, got %d", config.Server.Port)
		}

		if config.Engine.MaxSeeds != 5 {
			t.Errorf("expected max_seeds 5, got %d", config.Engine.MaxSeeds)
		}

		if config.Engine.Debounce() != 400*time.Millisecond {
			t.Errorf("expected 400ms debounce, got %v", config.Engine.Debounce())
		}

		if config.Credentials.Spotify.ClientID != "your_spotify_client_id" {
			t.Errorf("expected spotify client_id your_spotify_client_id, got %s", config.Credentials.Spotify.ClientID)
		}
	})

	t.Run("CreateConfigFile", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "config.toml")

		if err := CreateConfigFile(configPath); err != nil {
			t.Fatalf("failed to create config file: %v", err)
		}

		if _, err := os.Stat(configPath); err != nil {
			t.Fatalf("config file should exist: %v", err)
		}

		config, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to load created config: %v", err)
		}

		if config.Database.Path != DefaultConfig().Database.Path {
			t.Errorf("created config database path doesn't match default")
		}

		if err := CreateConfigFile(configPath); err == nil {
			t.Error("creating config file again should fail")
		}
	})

	t.Run("LoadConfig keeps defaults for missing keys", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "config.toml")

		testConfig := `[database]
path = "/custom/path.db"

[server]
host = "0.0.0.0"
port = 8080

[credentials.spotify]
client_id = "test_client_id"
client_secret = "test_secret"

[engine]
max_seeds = 3
`
		if err := os.WriteFile(configPath, []byte(testConfig), 0644); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		config, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to load config: %v", err)
		}

		if config.Database.Path != "/custom/path.db" {
			t.Errorf("expected database path /custom/path.db, got %s", config.Database.Path)
		}
		if config.Server.Addr() != "0.0.0.0:8080" {
			t.Errorf("expected addr 0.0.0.0:8080, got %s", config.Server.Addr())
		}
		if config.Engine.MaxSeeds != 3 {
			t.Errorf("expected max_seeds 3, got %d", config.Engine.MaxSeeds)
		}
		if config.Engine.PageSize != 100 {
			t.Errorf("expected default page_size 100, got %d", config.Engine.PageSize)
		}
		if config.Database.Driver != "sqlite" {
			t.Errorf("expected default driver sqlite, got %s", config.Database.Driver)
		}
	})

	t.Run("LoadConfig rejects invalid TOML", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "config.toml")
		if err := os.WriteFile(configPath, []byte("[server\nport = "), 0644); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}
		if _, err := LoadConfig(configPath); err == nil {
			t.Error("expected parse error")
		}
	})

	t.Run("LoadConfigOrDefault", func(t *testing.T) {
		config, err := LoadConfigOrDefault(filepath.Join(t.TempDir(), "missing.toml"))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if config.Server.Port != 3000 {
			t.Errorf("expected defaults, got port %d", config.Server.Port)
		}
	})

	t.Run("SaveConfig round trips tokens", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "config.toml")
		config := DefaultConfig()
		expiry := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

		err := config.Credentials.Spotify.Update(&oauth2.Token{
			AccessToken:  "access",
			RefreshToken: "refresh",
			TokenType:    "Bearer",
			Expiry:       expiry,
		})
		if err != nil {
			t.Fatalf("update failed: %v", err)
		}

		if err := SaveConfig(configPath, config); err != nil {
			t.Fatalf("save failed: %v", err)
		}

		loaded, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("load failed: %v", err)
		}

		token := loaded.Credentials.Spotify.Token()
		if token == nil || token.AccessToken != "access" || token.RefreshToken != "refresh" {
			t.Fatalf("unexpected token %+v", token)
		}
		if !token.Expiry.Equal(expiry) {
			t.Errorf("expected expiry %v, got %v", expiry, token.Expiry)
		}
	})
}

func TestSpotifyConfig(t *testing.T) {
	t.Run("Update keeps refresh token when omitted", func(t *testing.T) {
		c := SpotifyConfig{RefreshToken: "old"}
		if err := c.Update(&oauth2.Token{AccessToken: "new"}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if c.RefreshToken != "old" || c.AccessToken != "new" {
			t.Errorf("unexpected config %+v", c)
		}
	})

	t.Run("Update rejects empty token", func(t *testing.T) {
		c := SpotifyConfig{}
		if err := c.Update(nil); err == nil {
			t.Error("expected error for nil token")
		}
	})

	t.Run("Token is nil without access token", func(t *testing.T) {
		if (SpotifyConfig{}).Token() != nil {
			t.Error("expected nil token")
		}
	})

	t.Run("Map", func(t *testing.T) {
		m := SpotifyConfig{ClientID: "id", ClientSecret: "secret", Market: "SE"}.Map()
		if m["client_id"] != "id" || m["client_secret"] != "secret" || m["market"] != "SE" {
			t.Errorf("unexpected map %v", m)
		}
	})
}
