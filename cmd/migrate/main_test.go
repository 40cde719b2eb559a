package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFlags(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want options
	}{
		{"up", []string{"-up"}, options{action: action{name: "up"}}},
		{"down", []string{"-down"}, options{action: action{name: "down"}}},
		{"steps forward", []string{"-steps", "2"}, options{action: action{name: "steps", steps: 2}}},
		{"steps back", []string{"-steps=-1"}, options{action: action{name: "steps", steps: -1}}},
		{"version", []string{"-version"}, options{action: action{name: "version"}}},
		{"force zero", []string{"-force", "0"}, options{action: action{name: "force", force: 0}}},
		{"path override", []string{"-up", "-path", "./migrations"}, options{action: action{name: "up"}, path: "./migrations"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseFlags(tt.args, &bytes.Buffer{})
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseFlags_Errors(t *testing.T) {
	t.Run("no action", func(t *testing.T) {
		var out bytes.Buffer
		_, err := parseFlags(nil, &out)
		assert.ErrorIs(t, err, errNoAction)
		assert.Contains(t, out.String(), "Please specify one of")
	})

	t.Run("two actions", func(t *testing.T) {
		_, err := parseFlags([]string{"-up", "-down"}, &bytes.Buffer{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "only one action")
	})

	t.Run("unknown flag", func(t *testing.T) {
		_, err := parseFlags([]string{"-sideways"}, &bytes.Buffer{})
		assert.Error(t, err)
	})
}
