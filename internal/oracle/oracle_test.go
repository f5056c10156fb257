package oracle

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNullExtractor_AlwaysFails(t *testing.T) {
	var e Extractor = NullExtractor{}
	_, err := e.Extract(context.Background(), ExtractRequest{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrOracleUnavailable)
}

func TestStaticExtractor_ReturnsSequenceThenUnavailable(t *testing.T) {
	e := &StaticExtractor{Results: []ExtractResult{{Object: []byte(`{"a":1}`)}}}

	r1, err := e.Extract(context.Background(), ExtractRequest{})
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, string(r1.Object))

	_, err = e.Extract(context.Background(), ExtractRequest{})
	assert.ErrorIs(t, err, ErrOracleUnavailable)
	assert.Equal(t, 2, e.Calls())
}

func TestFromConfig_ResolvesToNull(t *testing.T) {
	e := FromConfig("", "", "")
	_, ok := e.(NullExtractor)
	assert.True(t, ok)
}
