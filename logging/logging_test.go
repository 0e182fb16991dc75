package logging

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFlag(t *testing.T) {
	table := []struct {
		s    string
		want Flag
	}{
		{"", Nil}, {"Nil", Nil}, {"Performance", Performance}, {"debug", Debug},
	}
	for _, test := range table {
		got, err := ParseFlag(test.s)
		require.NoError(t, err, test.s)
		assert.Equal(t, test.want, got, test.s)
	}
	_, err := ParseFlag("loud")
	assert.Error(t, err)
}

func TestNewLevels(t *testing.T) {
	buf := &bytes.Buffer{}
	New(buf, Nil).Info("hidden")
	assert.Empty(t, buf.String())
	New(buf, Nil).Warn("shown")
	assert.Contains(t, buf.String(), "shown")

	buf.Reset()
	New(buf, Performance).Debug("hidden")
	New(buf, Performance).Info("progress")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "progress")

	buf.Reset()
	New(buf, Debug).Debug("detail")
	assert.Contains(t, buf.String(), "detail")
}

func TestOr(t *testing.T) {
	assert.NotNil(t, Or(nil))
	l := New(&bytes.Buffer{}, Debug)
	assert.Same(t, l, Or(l))
	assert.Contains(t, MemString(), "MB")
}
