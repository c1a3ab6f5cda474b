package monitor

import (
	"testing"

	"github.com/gdamore/tcell/v2"
	"github.com/stretchr/testify/require"
)

func TestTruncateNameRespectsWidth(t *testing.T) {
	require.Equal(t, "abc", truncateName("abcdef", 3))
	require.Equal(t, "abcdef", truncateName("abcdef", 10))
	require.Equal(t, "", truncateName("abcdef", 0))
}

func TestTruncateNameCountsGraphemesNotBytes(t *testing.T) {
	// "café" has an accented e that may be one or two runes depending on
	// normalization; either way it's a single grapheme cluster budget unit.
	name := "caféllo"
	require.Equal(t, "café", truncateName(name, 4))
}

func TestLossColorDegradesWithoutColorSupport(t *testing.T) {
	plain := colorCapability{truecolor: false, color256: false}

	require.Equal(t, tcell.ColorGreen, lossColor(plain, 0))
	require.Equal(t, tcell.ColorYellow, lossColor(plain, 0.2))
	require.Equal(t, tcell.ColorRed, lossColor(plain, 0.9))
}

func TestLossColorClampsOutOfRangeInput(t *testing.T) {
	plain := colorCapability{}
	require.Equal(t, lossColor(plain, 0), lossColor(plain, -5))
	require.Equal(t, lossColor(plain, 1), lossColor(plain, 5))
}

func TestLossColorUsesRGBWhenTruecolor(t *testing.T) {
	rich := colorCapability{truecolor: true}
	c := lossColor(rich, 0.5)
	require.NotEqual(t, tcell.ColorDefault, c)
}
