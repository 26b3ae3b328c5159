package main

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func resetMocks() {
	osWriteFile = os.WriteFile
	osExit = os.Exit
}

func TestHandlePanic_WritesLogAndExits(t *testing.T) {
	defer resetMocks()

	var written string
	var exitCode = -1
	osWriteFile = func(name string, data []byte, _ os.FileMode) error {
		assert.Equal(t, panicLogFile, name)
		written = string(data)
		return nil
	}
	osExit = func(code int) { exitCode = code }

	func() {
		defer handlePanic()
		panic("engine exploded")
	}()

	require.Equal(t, 1, exitCode)
	assert.Contains(t, written, "panic: engine exploded")
	assert.Contains(t, written, "goroutine")
}

func TestHandlePanic_NoPanicIsANoop(t *testing.T) {
	defer resetMocks()
	called := false
	osExit = func(int) { called = true }

	func() {
		defer handlePanic()
	}()
	assert.False(t, called)
}
