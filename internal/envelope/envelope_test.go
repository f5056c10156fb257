package envelope

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cass-memory/cass-memory/internal/types"
)

func TestOk_SetsSuccessAndData(t *testing.T) {
	e := Ok("context", map[string]int{"count": 1})
	assert.True(t, e.Success)
	assert.Equal(t, "context", e.Command)
	assert.Nil(t, e.Error)
}

func TestFail_SetsErrorFields(t *testing.T) {
	e := Fail("feedback", CodeMissingRequired, "bulletId is required", nil)
	assert.False(t, e.Success)
	require.NotNil(t, e.Error)
	assert.Equal(t, CodeMissingRequired, e.Error.Code)
}

func TestFromTaxonomyError_ValidationMapsToInvalidInput(t *testing.T) {
	err := types.ErrValidation("bad input", nil)
	e := FromTaxonomyError("feedback", err)
	require.NotNil(t, e.Error)
	assert.Equal(t, CodeInvalidInput, e.Error.Code)
}

func TestFromTaxonomyError_OtherMapsToInternalError(t *testing.T) {
	err := types.ErrIO("disk full", nil)
	e := FromTaxonomyError("reflect", err)
	require.NotNil(t, e.Error)
	assert.Equal(t, CodeInternalError, e.Error.Code)
}

func TestMarshal_ProducesValidJSON(t *testing.T) {
	e := Ok("context", nil)
	data, err := Marshal(e)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"success": true`)
}
