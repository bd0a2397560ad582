package scanner

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRewind(t *testing.T) {
	tip := int64(800000)

	// Cursor already within the rewind window of tip: forced back.
	require.Equal(t, tip-rewindWindow, rewind(tip-10, tip))
	require.Equal(t, tip-rewindWindow, rewind(tip, tip))

	// Cursor well behind tip: left alone, the catch-up scan will pass
	// through the window naturally.
	far := tip - rewindWindow - 5000
	require.Equal(t, far, rewind(far, tip))

	// Near genesis: floor clamps at zero rather than going negative.
	require.Equal(t, int64(0), rewind(10, 100))
}

func TestCursorRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cursor.dat")

	_, ok, err := ReadCursor(path)
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, WriteCursor(path, 123456))

	height, ok, err := ReadCursor(path)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, int64(123456), height)
}
