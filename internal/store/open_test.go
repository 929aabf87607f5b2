package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/continuity-tools/artifact-index/internal/config"
	"github.com/continuity-tools/artifact-index/internal/errors"
)

const unreachableURL = "postgres://u:p@127.0.0.1:1/db?sslmode=disable&connect_timeout=1"

func embeddedChoice(t *testing.T) config.BackendChoice {
	return config.BackendChoice{
		Kind:        config.BackendEmbedded,
		SQLitePath:  filepath.Join(t.TempDir(), "context.db"),
		Driver:      DriverModernc,
		BusyTimeout: time.Second,
	}
}

func TestOpen_Embedded(t *testing.T) {
	b, err := Open(context.Background(), embeddedChoice(t), nil)
	require.NoError(t, err)
	defer b.Close()

	assert.Equal(t, DialectEmbedded, b.Dialect())
	counts, err := Counts(context.Background(), b)
	require.NoError(t, err)
	assert.Zero(t, counts["handoffs"])
}

func TestOpen_AutoServerFallsBack(t *testing.T) {
	// Given: a server picked by auto-detection that is not listening
	choice := embeddedChoice(t)
	choice.Kind = config.BackendServer
	choice.URL = unreachableURL

	var fallbackErr error

	// When
	b, err := Open(context.Background(), choice, func(err error) { fallbackErr = err })

	// Then: the embedded backend is used and the caller was told why
	require.NoError(t, err)
	defer b.Close()
	assert.Equal(t, DialectEmbedded, b.Dialect())
	assert.Equal(t, errors.ErrCodeBackendUnavailable, errors.GetCode(fallbackErr))
}

func TestOpen_ForcedServerIsFatal(t *testing.T) {
	choice := embeddedChoice(t)
	choice.Kind = config.BackendServer
	choice.Forced = true
	choice.URL = unreachableURL

	called := false
	_, err := Open(context.Background(), choice, func(error) { called = true })

	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeBackendUnavailable, errors.GetCode(err))
	assert.False(t, called)
}

func TestOpen_MissingDriver(t *testing.T) {
	choice := embeddedChoice(t)
	choice.Driver = "not-a-driver"

	_, err := Open(context.Background(), choice, nil)

	assert.Equal(t, errors.ErrCodeDriverMissing, errors.GetCode(err))
}
