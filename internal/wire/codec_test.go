package wire

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundTripKeyword(t *testing.T) {
	kw := Keyword{NS: "block", Name: "uuid"}
	b, err := Encode(kw)
	require.NoError(t, err)
	assert.Equal(t, `"~:block/uuid"`, string(b))

	decoded, err := Decode(b)
	require.NoError(t, err)
	assert.Equal(t, kw, decoded)
}

func TestRoundTripSymbol(t *testing.T) {
	sym := Symbol{Name: "?e"}
	b, err := Encode(sym)
	require.NoError(t, err)

	decoded, err := Decode(b)
	require.NoError(t, err)
	assert.Equal(t, sym, decoded)
}

func TestRoundTripUUID(t *testing.T) {
	id := uuid.New()
	b, err := Encode(id)
	require.NoError(t, err)

	decoded, err := Decode(b)
	require.NoError(t, err)
	assert.Equal(t, id, decoded)
}

func TestRoundTripInst(t *testing.T) {
	now := time.UnixMilli(1700000000123).UTC()
	b, err := Encode(now)
	require.NoError(t, err)

	decoded, err := Decode(b)
	require.NoError(t, err)
	assert.Equal(t, now, decoded)
}

func TestRoundTripDatom(t *testing.T) {
	d := Datom{E: 42, A: "block/name", V: "hello", T: 7, Added: true}
	b, err := Encode(d)
	require.NoError(t, err)

	decoded, err := Decode(b)
	require.NoError(t, err)
	assert.Equal(t, d, decoded)
}

func TestRoundTripError(t *testing.T) {
	we := &WireError{Message: "boom", Data: map[string]any{"x": float64(1)}}
	b, err := Encode(we)
	require.NoError(t, err)

	decoded, err := Decode(b)
	require.NoError(t, err)
	got, ok := decoded.(*WireError)
	require.True(t, ok)
	assert.Equal(t, we.Message, got.Message)
}

func TestDecodeMalformed(t *testing.T) {
	_, err := Decode([]byte("{not json"))
	require.Error(t, err)
}

func TestPlainStringsUntouched(t *testing.T) {
	b, err := Encode("block/name")
	require.NoError(t, err)

	decoded, err := Decode(b)
	require.NoError(t, err)
	assert.Equal(t, "block/name", decoded)
}
