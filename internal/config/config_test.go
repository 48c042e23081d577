package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadRequiresJWTSecret(t *testing.T) {
	t.Setenv("LMS_JWT_SECRET", "")

	_, err := Load()
	require.Error(t, err)
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("LMS_JWT_SECRET", "secret")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "8080", cfg.AppPort)
	require.Equal(t, ":8080", cfg.HTTPAddress())
	require.Equal(t, 10*time.Second, cfg.SubmissionLockTTL)
	require.Equal(t, time.Minute, cfg.SubmissionRateWindow)
	require.Equal(t, 10, cfg.SubmissionRateLimit)
	require.Equal(t, "lms.submissions.recorded", cfg.EventsSubject)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("LMS_JWT_SECRET", "secret")
	t.Setenv("LMS_APP_PORT", ":9090")
	t.Setenv("LMS_SUBMISSION_LOCK_TTL", "3s")
	t.Setenv("LMS_SUBMISSION_RATE_LIMIT", "0")
	t.Setenv("LMS_NATS_URL", "nats://localhost:4222")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, ":9090", cfg.HTTPAddress())
	require.Equal(t, 3*time.Second, cfg.SubmissionLockTTL)
	require.Equal(t, 10, cfg.SubmissionRateLimit)
	require.Equal(t, "nats://localhost:4222", cfg.NATSURL)
}

func TestLoadRejectsInvalidDuration(t *testing.T) {
	t.Setenv("LMS_JWT_SECRET", "secret")
	t.Setenv("LMS_SUBMISSION_LOCK_TTL", "soon")

	_, err := Load()
	require.Error(t, err)
}
