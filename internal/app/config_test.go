package app

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() Config {
	return Config{
		JWTSecret:     "0123456789abcdef0123456789abcdef",
		MailTransport: "SMTP ",
		NotifyTimeout: 10 * time.Second,
		BcryptCost:    10,
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "0123456789abcdef0123456789abcdef")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.AppAddr)
	assert.Equal(t, MailTransportQueue, cfg.MailTransport)
	assert.Equal(t, 587, cfg.SMTPPort)
	assert.Equal(t, 15*time.Minute, cfg.AccessTokenTTL)
	assert.Equal(t, 168*time.Hour, cfg.RefreshTokenTTL)
	assert.Equal(t, 10*time.Second, cfg.NotifyTimeout)
	assert.False(t, cfg.IsProduction())
}

func TestConfigValidate(t *testing.T) {
	cfg := validConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, MailTransportSMTP, cfg.MailTransport)

	cases := map[string]func(c *Config){
		"missing secret": func(c *Config) { c.JWTSecret = "  " },
		"bad transport":  func(c *Config) { c.MailTransport = "carrier-pigeon" },
		"bcrypt cost":    func(c *Config) { c.BcryptCost = 2 },
		"notify timeout": func(c *Config) { c.NotifyTimeout = 0 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			c := validConfig()
			mutate(&c)
			assert.Error(t, c.Validate())
		})
	}
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, "DEBUG", parseLevel(&Config{LogLevel: "Debug"}).String())
	assert.Equal(t, "INFO", parseLevel(nil).String())
	assert.Equal(t, "INFO", parseLevel(&Config{LogLevel: "verbose"}).String())
}
