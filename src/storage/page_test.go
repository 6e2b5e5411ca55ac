package storage

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPageSizeDefault(t *testing.T) {
	require.Equal(t, DefaultPageSize, PageSize())
}

func TestPageSizeOverride(t *testing.T) {
	defer ResetPageSize()

	SetPageSize(1024)
	require.Equal(t, 1024, PageSize())

	ResetPageSize()
	require.Equal(t, DefaultPageSize, PageSize())
}
