package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolveIcon(t *testing.T) {
	assert.Equal(t, IconCar, ResolveIcon("Car", IconDollarSign))
	assert.Equal(t, IconDollarSign, ResolveIcon("", IconDollarSign))
	assert.Equal(t, FallbackIcon, ResolveIcon("car", IconDollarSign))
}

func TestThemeAndLocale(t *testing.T) {
	th, ok := ParseTheme("rose-pink")
	assert.True(t, ok)
	assert.Equal(t, ThemeRosePink, th)
	assert.Equal(t, DefaultTheme, ThemeOrDefault("legacy-theme"))

	_, ok = ParseLocale("fr-FR")
	assert.False(t, ok)
	assert.Equal(t, LocaleJaJP, LocaleOrDefault("ja-JP"))
	assert.Equal(t, DefaultLocale, LocaleOrDefault(""))
}
