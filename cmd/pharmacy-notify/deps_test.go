package main

import (
	"context"
	"errors"
	"testing"

	"github.com/cristianoliveira/pharmacy-notify/internal/app"
	"github.com/cristianoliveira/pharmacy-notify/internal/version"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionClientRetriesFailedBuild(t *testing.T) {
	calls := 0
	c := &sessionClient{newFunc: func(context.Context) (*app.Session, error) {
		calls++
		return nil, errors.New("database is locked")
	}}

	require.EqualError(t, c.Login(context.Background(), "abc", ""), "database is locked")
	_, err := c.Stats(context.Background())
	require.Error(t, err)
	assert.Equal(t, 2, calls)

	// Nothing was built, so there is nothing to close.
	assert.NoError(t, c.Close())
}

func TestSessionClientVersion(t *testing.T) {
	assert.Equal(t, version.String(), newSessionClient().Version())
}
