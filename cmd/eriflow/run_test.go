package main

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestReadRecords_Args(t *testing.T) {
	recs, err := readRecords([]string{
		"ERI Code=4006, ERI Location=Dallas, Texas, Revenue=565000000, Industry=Retail, Years of Experience=11, Mean",
	}, "", strings.NewReader(""))
	require.NoError(t, err)
	require.Len(t, recs, 1)
	require.Equal(t, "4006", recs[0].Code)
	require.Equal(t, "Dallas, Texas", recs[0].Location)
}

func TestReadRecords_BadArg(t *testing.T) {
	_, err := readRecords([]string{"nonsense"}, "", nil)
	require.Error(t, err)
	require.Contains(t, err.Error(), "record 1")
}

func TestNewLogger_Levels(t *testing.T) {
	require.True(t, newLogger("debug").Enabled(t.Context(), -4))
	require.False(t, newLogger("warn").Enabled(t.Context(), 0))
}
