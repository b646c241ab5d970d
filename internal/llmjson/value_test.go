package llmjson

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const completion = `{
  "choices": [
    {"message": {"role": "assistant", "content": "hello \"world\"", "tool_calls": []}}
  ],
  "usage": {"total_tokens": 42, "ratio": 0.5},
  "flag": true,
  "missing": null
}`

func TestValueAccessors(t *testing.T) {
	v, err := ParseString(completion)
	require.NoError(t, err)
	assert.Equal(t, Object, v.Kind())

	content, err := v.Get("choices", "[0]", "message", "content")
	require.NoError(t, err)
	s, err := content.Str()
	require.NoError(t, err)
	assert.Equal(t, `hello "world"`, s)

	total, err := v.Get("usage", "total_tokens")
	require.NoError(t, err)
	n, err := total.Int()
	require.NoError(t, err)
	assert.EqualValues(t, 42, n)

	ratio, err := v.Get("usage", "ratio")
	require.NoError(t, err)
	f, err := ratio.Float()
	require.NoError(t, err)
	assert.InDelta(t, 0.5, f, 1e-9)

	missing, err := v.Get("missing")
	require.NoError(t, err)
	assert.True(t, missing.IsNull())

	flag, err := v.Get("flag")
	require.NoError(t, err)
	assert.Equal(t, Bool, flag.Kind())
}

func TestValueErrors(t *testing.T) {
	v, err := ParseString(completion)
	require.NoError(t, err)

	_, err = v.Get("nope")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = v.Get("choices", "[3]")
	assert.ErrorIs(t, err, ErrNotFound)

	usage, err := v.Get("usage")
	require.NoError(t, err)
	_, err = usage.Str()
	assert.ErrorIs(t, err, ErrKind)

	_, err = usage.Items()
	assert.ErrorIs(t, err, ErrKind)

	_, err = ParseString("{broken")
	assert.Error(t, err)
}

func TestValueItems(t *testing.T) {
	v, err := ParseString(`[{"name": "A"}, 2, "x"]`)
	require.NoError(t, err)

	items, err := v.Items()
	require.NoError(t, err)
	require.Len(t, items, 3)
	assert.Equal(t, Object, items[0].Kind())
	assert.Equal(t, Number, items[1].Kind())
	assert.Equal(t, String, items[2].Kind())

	name, err := items[0].Get("name")
	require.NoError(t, err)
	s, err := name.Str()
	require.NoError(t, err)
	assert.Equal(t, "A", s)
}

func TestValueDecodeString(t *testing.T) {
	v, err := ParseString(`"a <b> \"c\""`)
	require.NoError(t, err)
	assert.Equal(t, String, v.Kind())

	s, err := v.Str()
	require.NoError(t, err)
	assert.Equal(t, `a <b> "c"`, s)

	var out string
	require.NoError(t, v.Decode(&out))
	assert.Equal(t, `a <b> "c"`, out)
}
