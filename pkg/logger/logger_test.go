package logger_test

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"github.com/jtejido-quollio/qdic-assets/pkg/logger"
)

func TestNew_ParsesLevel(t *testing.T) {
	log := logger.New(logger.Config{Level: "debug"})
	assert.Equal(t, zerolog.DebugLevel, log.GetLevel())
}

func TestNew_UnknownLevelFallsBackToInfo(t *testing.T) {
	log := logger.New(logger.Config{Level: "shouting"})
	assert.Equal(t, zerolog.InfoLevel, log.GetLevel())
}

func TestNew_EmptyLevelDefaultsToInfo(t *testing.T) {
	log := logger.New(logger.Config{})
	assert.Equal(t, zerolog.InfoLevel, log.GetLevel())
}
