package main

import (
	"errors"
	"testing"

	pnerrors "github.com/cristianoliveira/pharmacy-notify/internal/errors"
	"github.com/stretchr/testify/assert"
)

type countingCloser struct {
	closed int
	err    error
}

func (c *countingCloser) Close() error {
	c.closed++
	return c.err
}

func TestRunExitCodes(t *testing.T) {
	c := &countingCloser{}
	assert.Equal(t, 0, run([]string{"version"}, func() error { return nil }, c))
	assert.Equal(t, 1, c.closed)

	c = &countingCloser{err: errors.New("close failed")}
	assert.Equal(t, 1, run([]string{"run"}, func() error { return pnerrors.ErrNotAuthenticated }, c))
	assert.Equal(t, 1, c.closed)

	assert.Equal(t, 1, run(nil, func() error { return errors.New("boom") }, &countingCloser{}))
}
