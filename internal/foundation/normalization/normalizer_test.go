package normalization

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type channel string

func TestNormalizer_Aliases(t *testing.T) {
	n := NewNormalizer(map[string]channel{
		"binary": "binary",
		"conda":  "binary",
		"source": "source",
		"pip":    "source",
	}, "")

	tests := []struct {
		in   string
		want channel
	}{
		{"binary", "binary"},
		{"  CONDA ", "binary"},
		{"Pip", "source"},
		{"apt", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, n.Normalize(tt.in))
		})
	}
}

func TestNormalizer_WithError(t *testing.T) {
	n := NewNormalizer(map[string]channel{"nose": "nose", "pytest": "pytest"}, "nose")

	got, err := n.NormalizeWithError(" PyTest")
	require.NoError(t, err)
	assert.Equal(t, channel("pytest"), got)

	_, err = n.NormalizeWithError("tox")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `invalid value "tox", valid options: nose, pytest`)
	assert.Equal(t, []string{"nose", "pytest"}, n.ValidKeys())
}
