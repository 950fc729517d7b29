package commands

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunActivateKey(t *testing.T) {
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	meta := testKeyMeta()

	useCase := &fakeKeyUseCase{meta: meta}
	var buf bytes.Buffer

	err := RunActivateKey(ctx, useCase, logger, &buf, meta.ID.String())
	require.NoError(t, err)
	assert.Equal(t, meta.ID, useCase.activatedID)
	assert.Contains(t, buf.String(), "activated")

	err = RunActivateKey(ctx, useCase, logger, &buf, "garbage")
	require.Error(t, err)
}

func TestRunRotateKey(t *testing.T) {
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	meta := testKeyMeta()

	useCase := &fakeKeyUseCase{meta: meta}
	var buf bytes.Buffer

	err := RunRotateKey(ctx, useCase, logger, &buf, meta.ID.String(), "text")
	require.NoError(t, err)
	assert.Equal(t, meta.ID, useCase.rotatedID)
	assert.Contains(t, buf.String(), "Rotated")
}

func TestRunDeleteKey(t *testing.T) {
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	meta := testKeyMeta()

	useCase := &fakeKeyUseCase{meta: meta}
	var buf bytes.Buffer

	err := RunDeleteKey(ctx, useCase, logger, &buf, meta.ID.String())
	require.NoError(t, err)
	assert.Equal(t, meta.ID, useCase.deletedID)
	assert.Contains(t, buf.String(), "marked for destruction")
}
