package timezone

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestParseODate(t *testing.T) {
	cases := []struct {
		input  string
		expect time.Time
	}{
		{input: "20240301", expect: time.Date(2024, time.March, 1, 0, 0, 0, 0, Location)},
		{input: " 2024-12-31 ", expect: time.Date(2024, time.December, 31, 0, 0, 0, 0, Location)},
	}
	for _, test := range cases {
		odate, err := ParseODate(test.input)
		require.NoError(t, err, test.input)
		require.True(t, test.expect.Equal(odate), test.input)
	}

	_, err := ParseODate("01/03/2024")
	require.Error(t, err)

	today, err := ParseODate("")
	require.NoError(t, err)
	require.Equal(t, Location, today.Location())
}
