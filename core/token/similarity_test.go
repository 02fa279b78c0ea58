package token

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestColorDistanceIdentical(t *testing.T) {
	a := map[string]any{"hex": "#336699"}
	d, err := ColorDistance(a, a)
	require.NoError(t, err)
	assert.Zero(t, d)
}

func TestColorDistanceNearColorsWithinThreshold(t *testing.T) {
	d, err := ColorDistance(
		map[string]any{"hex": "#336699"},
		map[string]any{"hex": "#35689b"},
	)
	require.NoError(t, err)
	assert.Less(t, d, 0.10, "near-identical blues should merge at the color threshold")
}

func TestColorDistanceOpposedColorsBeyondThreshold(t *testing.T) {
	d, err := ColorDistance(
		map[string]any{"hex": "#000000"},
		map[string]any{"hex": "#ffffff"},
	)
	require.NoError(t, err)
	assert.Greater(t, d, 0.9)
}

func TestColorDistanceMissingHex(t *testing.T) {
	_, err := ColorDistance(map[string]any{}, map[string]any{"hex": "#ffffff"})
	assert.Error(t, err)
}

func TestNumericDistanceThresholdBoundary(t *testing.T) {
	dist := numericDistance("value")

	// 16 vs 17.6 is exactly 10% relative to the smaller value.
	d, err := dist(
		map[string]any{"value": 16.0},
		map[string]any{"value": 17.6},
	)
	require.NoError(t, err)
	assert.InDelta(t, 0.10, d, 1e-9)

	// 16 vs 18 is 12.5% and stays apart at a 10% threshold.
	d, err = dist(
		map[string]any{"value": 16.0},
		map[string]any{"value": 18.0},
	)
	require.NoError(t, err)
	assert.InDelta(t, 0.125, d, 1e-9)
}

func TestNumericDistanceSymmetric(t *testing.T) {
	dist := numericDistance("value")

	a := map[string]any{"value": 16.0}
	b := map[string]any{"value": 17.6}

	ab, err := dist(a, b)
	require.NoError(t, err)
	ba, err := dist(b, a)
	require.NoError(t, err)
	assert.Equal(t, ab, ba)
}

func TestNumericDistanceZeroBase(t *testing.T) {
	dist := numericDistance("value")

	d, err := dist(map[string]any{"value": 0.0}, map[string]any{"value": 4.0})
	require.NoError(t, err)
	assert.Equal(t, 1.0, d, "zero against nonzero never merges")

	d, err = dist(map[string]any{"value": 0.0}, map[string]any{"value": 0.0})
	require.NoError(t, err)
	assert.Zero(t, d)
}

func TestTypographyDistanceFamilyMismatch(t *testing.T) {
	d, err := TypographyDistance(
		map[string]any{"family": "Inter", "size": 16.0},
		map[string]any{"family": "Roboto", "size": 16.0},
	)
	require.NoError(t, err)
	assert.Equal(t, 1.0, d, "different families never merge")
}

func TestTypographyDistanceWeightMismatch(t *testing.T) {
	d, err := TypographyDistance(
		map[string]any{"family": "Inter", "size": 16.0, "weight": 400.0},
		map[string]any{"family": "Inter", "size": 16.0, "weight": 700.0},
	)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, d, 1.0, "weights distinguish tokens within a family")
}

func TestTypographyDistanceSameFamilyNearSizes(t *testing.T) {
	d, err := TypographyDistance(
		map[string]any{"family": "Inter", "size": 16.0, "weight": 400.0},
		map[string]any{"family": "Inter", "size": 17.0, "weight": 400.0},
	)
	require.NoError(t, err)
	assert.Less(t, d, 0.15)
}

func TestShadowDistanceIdentical(t *testing.T) {
	shadow := map[string]any{
		"offset_x": 0.0, "offset_y": 2.0, "blur": 4.0, "color": "#000000",
	}
	d, err := ShadowDistance(shadow, shadow)
	require.NoError(t, err)
	assert.Zero(t, d)
}

func TestShadowDistanceDifferentGeometry(t *testing.T) {
	d, err := ShadowDistance(
		map[string]any{"offset_x": 0.0, "offset_y": 2.0, "blur": 4.0, "color": "#000000"},
		map[string]any{"offset_x": 0.0, "offset_y": 8.0, "blur": 24.0, "color": "#000000"},
	)
	require.NoError(t, err)
	assert.Greater(t, d, 0.20)
}

func TestGradientDistanceKindMismatch(t *testing.T) {
	stops := []any{
		map[string]any{"color": "#000000", "position": 0.0},
		map[string]any{"color": "#ffffff", "position": 1.0},
	}
	d, err := GradientDistance(
		map[string]any{"kind": "linear", "stops": stops},
		map[string]any{"kind": "radial", "stops": stops},
	)
	require.NoError(t, err)
	assert.Equal(t, 1.0, d)
}

func TestGradientDistanceStopCountMismatch(t *testing.T) {
	d, err := GradientDistance(
		map[string]any{"kind": "linear", "stops": []any{
			map[string]any{"color": "#000000", "position": 0.0},
			map[string]any{"color": "#ffffff", "position": 1.0},
		}},
		map[string]any{"kind": "linear", "stops": []any{
			map[string]any{"color": "#000000", "position": 0.0},
		}},
	)
	require.NoError(t, err)
	assert.Equal(t, 1.0, d)
}

func TestGradientDistanceNearStops(t *testing.T) {
	d, err := GradientDistance(
		map[string]any{"kind": "linear", "stops": []any{
			map[string]any{"color": "#336699", "position": 0.0},
			map[string]any{"color": "#ffffff", "position": 1.0},
		}},
		map[string]any{"kind": "linear", "stops": []any{
			map[string]any{"color": "#35689b", "position": 0.0},
			map[string]any{"color": "#fefefe", "position": 1.0},
		}},
	)
	require.NoError(t, err)
	assert.Less(t, d, 0.15)
}
