package title

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyBase(t *testing.T) {
	t.Parallel()

	info, err := Classify("0100000000000000")
	require.NoError(t, err)

	assert.Equal(t, KindBase, info.Kind)
	assert.True(t, info.IsBase())
	assert.False(t, info.IsUpdate())
	assert.False(t, info.IsDLC())
	assert.Equal(t, "0100000000000000", info.BaseID, "base titles are their own base")
}

func TestClassifyUpdate(t *testing.T) {
	t.Parallel()

	info, err := Classify("0100000000000800")
	require.NoError(t, err)

	assert.Equal(t, KindUpdate, info.Kind)
	assert.Equal(t, "0100000000000000", info.BaseID)
}

func TestClassifyDLC(t *testing.T) {
	t.Parallel()

	// The 13th character is decremented to reach the base identifier.
	info, err := Classify("01000000000010a1")
	require.NoError(t, err)

	assert.Equal(t, KindDLC, info.Kind)
	assert.Equal(t, "0100000000000000", info.BaseID)
}

func TestClassifyDLCDecrementsHexDigit(t *testing.T) {
	t.Parallel()

	info, err := Classify("0100abcdef123401")
	require.NoError(t, err)

	assert.Equal(t, KindDLC, info.Kind)
	assert.Equal(t, "0100abcdef122000", info.BaseID)
}

func TestClassifySuffixLaws(t *testing.T) {
	t.Parallel()

	cases := []struct {
		id   string
		kind Kind
	}{
		{"0000000000000000", KindBase},
		{"abcdefabcdefa000", KindBase},
		{"0000000000000800", KindUpdate},
		{"abcdefabcdefa800", KindUpdate},
		{"0000000000000001", KindDLC},
		{"0000000000000100", KindDLC},
		{"0000000000000801", KindDLC},
		{"0000000000000900", KindDLC},
	}
	for _, tc := range cases {
		info, err := Classify(tc.id)
		require.NoError(t, err, tc.id)
		assert.Equal(t, tc.kind, info.Kind, tc.id)
	}
}

func TestClassifyInvalid(t *testing.T) {
	t.Parallel()

	cases := []string{
		"",
		"0100",
		"010000000000000",   // 15 chars
		"01000000000000000", // 17 chars
		"010000000000zzzz",  // non-hex
	}
	for _, id := range cases {
		_, err := Classify(id)
		require.Error(t, err, id)
		assert.ErrorIs(t, err, ErrInvalidIdentifier, id)
	}
}

func TestKindsPartitionWithoutOverlap(t *testing.T) {
	t.Parallel()

	// Every valid identifier gets exactly one role flag.
	for _, id := range []string{
		"0100000000000000", "0100000000000800", "0100000000001001",
	} {
		info, err := Classify(id)
		require.NoError(t, err)

		flags := 0
		for _, b := range []bool{info.IsBase(), info.IsUpdate(), info.IsDLC()} {
			if b {
				flags++
			}
		}
		assert.Equal(t, 1, flags, id)
	}
}
