//go:build unix
// +build unix

package term

import (
	"context"
	"os"
	"path/filepath"
	"syscall"
	"testing"
	"time"

	"github.com/creack/pty"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openPTY(t *testing.T, cols, rows uint16) *os.File {
	t.Helper()

	ptmx, tty, err := pty.Open()
	if err != nil {
		t.Skipf("no pty available: %v", err)
	}
	t.Cleanup(func() {
		tty.Close()
		ptmx.Close()
	})

	require.NoError(t, pty.Setsize(tty, &pty.Winsize{Cols: cols, Rows: rows}))
	return tty
}

func TestSizeOf(t *testing.T) {
	t.Run("Success_Terminal", func(t *testing.T) {
		tty := openPTY(t, 132, 43)

		sz, err := SizeOf(tty)
		require.NoError(t, err)
		assert.Equal(t, Size{Width: 132, Height: 43}, sz)
		assert.Equal(t, "132x43", sz.String())
	})

	t.Run("Success_LiveAfterResize", func(t *testing.T) {
		tty := openPTY(t, 80, 24)

		sz, err := SizeOf(tty)
		require.NoError(t, err)
		assert.Equal(t, Size{Width: 80, Height: 24}, sz)

		require.NoError(t, pty.Setsize(tty, &pty.Winsize{Cols: 100, Rows: 30}))

		sz, err = SizeOf(tty)
		require.NoError(t, err)
		assert.Equal(t, Size{Width: 100, Height: 30}, sz, "size must not be cached")
	})

	t.Run("Fail_ZeroSize", func(t *testing.T) {
		tty := openPTY(t, 0, 0)

		_, err := SizeOf(tty)
		require.ErrorIs(t, err, ErrNoSize)
	})

	t.Run("Fail_NotTerminal", func(t *testing.T) {
		f, err := os.Create(filepath.Join(t.TempDir(), "plain"))
		require.NoError(t, err)
		defer f.Close()

		_, err = SizeOf(f)
		require.ErrorIs(t, err, ErrNotTerminal)
		assert.Contains(t, err.Error(), "plain")
	})
}

func TestWidthHeightDetached(t *testing.T) {
	f, err := os.Create(filepath.Join(t.TempDir(), "stdout"))
	require.NoError(t, err)
	defer f.Close()

	stdout := os.Stdout
	os.Stdout = f
	defer func() { os.Stdout = stdout }()

	w, err := Width()
	require.ErrorIs(t, err, ErrNotTerminal)
	assert.Equal(t, -1, w)

	h, err := Height()
	require.ErrorIs(t, err, ErrNotTerminal)
	assert.Equal(t, -1, h)
}

func TestWidthHeightAttached(t *testing.T) {
	tty := openPTY(t, 90, 33)

	stdout := os.Stdout
	os.Stdout = tty
	defer func() { os.Stdout = stdout }()

	w, err := Width()
	require.NoError(t, err)
	assert.Equal(t, 90, w)

	h, err := Height()
	require.NoError(t, err)
	assert.Equal(t, 33, h)
}

func TestRawMode(t *testing.T) {
	t.Run("Success_EnterLeave", func(t *testing.T) {
		tty := openPTY(t, 80, 24)
		require.True(t, IsTerminal(tty))

		raw, err := EnterRawMode(tty)
		require.NoError(t, err)
		require.NoError(t, raw.Leave())
		require.NoError(t, raw.Leave(), "second leave must be a no-op")
	})

	t.Run("Fail_NotTerminal", func(t *testing.T) {
		f, err := os.Create(filepath.Join(t.TempDir(), "plain"))
		require.NoError(t, err)
		defer f.Close()

		assert.False(t, IsTerminal(f))
		raw, err := EnterRawMode(f)
		require.ErrorIs(t, err, ErrNotTerminal)
		assert.Nil(t, raw)
	})
}

func TestWatch(t *testing.T) {
	tty := openPTY(t, 80, 24)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sizes := Watch(ctx, tty)

	recv := func() Size {
		t.Helper()
		select {
		case sz, ok := <-sizes:
			require.True(t, ok, "watch channel closed early")
			return sz
		case <-time.After(5 * time.Second):
			t.Fatal("timed out waiting for size")
			return Size{}
		}
	}

	assert.Equal(t, Size{Width: 80, Height: 24}, recv())

	require.NoError(t, pty.Setsize(tty, &pty.Winsize{Cols: 120, Rows: 40}))
	require.NoError(t, syscall.Kill(os.Getpid(), syscall.SIGWINCH))
	assert.Equal(t, Size{Width: 120, Height: 40}, recv())

	cancel()
	select {
	case _, ok := <-sizes:
		for ok {
			_, ok = <-sizes
		}
	case <-time.After(5 * time.Second):
		t.Fatal("watch channel not closed after cancel")
	}
}
