package common

import (
	"bytes"
	"os"
	"strings"
	"testing"

	"github.com/lni/dragonboat/v4/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLogLevelNames(t *testing.T) {
	for name, want := range map[string]logger.LogLevel{
		"debug":   logger.DEBUG,
		"INFO":    logger.INFO,
		" warn ":  logger.WARNING,
		"warning": logger.WARNING,
		"error":   logger.ERROR,
	} {
		lvl, err := ParseLogLevel(name)
		require.NoError(t, err, name)
		assert.Equal(t, want, lvl, name)
	}

	lvl, err := ParseLogLevel("")
	assert.Error(t, err)
	assert.Equal(t, logger.INFO, lvl)
}

func TestNamedLogger(t *testing.T) {
	var buf bytes.Buffer
	SetLogOutput(&buf)
	t.Cleanup(func() { SetLogOutput(os.Stdout) })

	l := CreateLogger("test")
	l.Debugf("hidden %d", 1)
	l.Infof("shown %d", 2)
	l.SetLevel(logger.ERROR)
	l.Warningf("hidden %d", 3)
	l.Errorf("shown %d", 4)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], " INF test")
	assert.True(t, strings.HasSuffix(lines[0], "shown 2"))
	assert.Contains(t, lines[1], " ERR test")
	assert.True(t, strings.HasSuffix(lines[1], "shown 4"))

	assert.PanicsWithValue(t, "boom 5", func() { l.Panicf("boom %d", 5) })
	assert.Contains(t, buf.String(), " CRT test")
}

func TestInitLoggersTwice(t *testing.T) {
	assert.NoError(t, InitLoggers("error"))
	assert.NotPanics(t, func() {
		assert.Error(t, InitLoggers("verbose"))
	})
}
