package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
)

func TestDefaults(t *testing.T) {
	v := viper.New()
	setDefaults(v)

	cfg := fromViper(v)
	assert.Equal(t, "/api", cfg.APIPrefix)
	assert.Equal(t, StorageDriverPostgres, cfg.StorageDriver)
	assert.Equal(t, "STUDENT", cfg.Auth.DefaultRole)
	assert.Equal(t, 5, cfg.Leaderboard.Size)
	assert.Equal(t, int64(5*1024*1024), cfg.Images.MaxFileSizeBytes)
	assert.Equal(t, []string{"jpg", "jpeg", "png", "webp"}, cfg.Images.AllowedExtensions)
	assert.Equal(t, time.Hour, cfg.Images.SignedURLTTL)
	assert.Equal(t, 2*time.Hour, cfg.JWT.Expiration)
}

func TestOverridesAndFallbacks(t *testing.T) {
	v := viper.New()
	setDefaults(v)
	v.Set("JWT_EXPIRATION", "not-a-duration")
	v.Set("IMAGES_ALLOWED_EXTENSIONS", " PNG , ,gif")
	v.Set("LEADERBOARD_SIZE", -1)
	v.Set("AUTH_DEFAULT_ROLE", "professor")

	cfg := fromViper(v)
	assert.Equal(t, 2*time.Hour, cfg.JWT.Expiration)
	assert.Equal(t, []string{"png", "gif"}, cfg.Images.AllowedExtensions)
	assert.Equal(t, 5, cfg.Leaderboard.Size)
	assert.Equal(t, "PROFESSOR", cfg.Auth.DefaultRole)
}
