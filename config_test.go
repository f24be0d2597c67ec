package tagfilterdb

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestApplyOptionsDefaults(t *testing.T) {
	cfg, err := applyOptions(nil)
	require.NoError(t, err)
	require.Equal(t, DefaultDimension, cfg.dimension)
	require.Equal(t, DefaultPageBytes, cfg.pageBytes)
	require.Equal(t, uint(DefaultCacheShardBits), cfg.cacheShardBits)
	require.Equal(t, DefaultCacheCapacityPages, cfg.cacheCapacityPages)
}

func TestApplyOptionsRejectsNonPositiveDimension(t *testing.T) {
	_, err := applyOptions([]Option{WithDimension(0)})
	require.Error(t, err)
}

func TestApplyOptionsRejectsNonPositivePageBytes(t *testing.T) {
	_, err := applyOptions([]Option{WithPageBytes(-1)})
	require.Error(t, err)
}

func TestApplyOptionsRejectsTooFewMaxChildren(t *testing.T) {
	_, err := applyOptions([]Option{WithChildBounds(1, 1)})
	require.Error(t, err)
}

func TestApplyOptionsRejectsMinChildrenOutOfRange(t *testing.T) {
	_, err := applyOptions([]Option{WithChildBounds(8, 0)})
	require.Error(t, err)

	_, err = applyOptions([]Option{WithChildBounds(8, 5)})
	require.Error(t, err)
}

func TestApplyOptionsAcceptsValidChildBounds(t *testing.T) {
	cfg, err := applyOptions([]Option{WithChildBounds(8, 4)})
	require.NoError(t, err)
	require.Equal(t, 8, cfg.maxChildren)
	require.Equal(t, 4, cfg.minChildren)
}

func TestWithLoggerIgnoresNil(t *testing.T) {
	cfg, err := applyOptions([]Option{WithLogger(nil)})
	require.NoError(t, err)
	require.NotNil(t, cfg.logger)
}
