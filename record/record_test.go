package record

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParse_Example(t *testing.T) {
	in := "ERI Code=4006, ERI Location=Dallas, Texas, Revenue=565000000, Industry=All Industries - Diversified, Years of Experience=11, 75th Percentile"

	got, err := Parse(in)
	require.NoError(t, err)

	want := InputRecord{
		Code:            "4006",
		Location:        "Dallas, Texas",
		Revenue:         565000000,
		Industry:        "All Industries - Diversified",
		ExperienceYears: Years(11),
		Statistic:       Percentile75,
	}
	require.Equal(t, want, got)
}

func TestParse_RoundTrip(t *testing.T) {
	inputs := []string{
		"ERI Code=4006, ERI Location=Dallas, Texas, Revenue=565000000, Industry=All Industries - Diversified, Years of Experience=11, 75th Percentile",
		"ERI Code=1200, ERI Location=Seattle, Revenue=10, Industry=Retail, Mean",
		"Median, ERI Code=77",
		"ERI Location=Portland, Oregon, All Incumbent Average",
		"25th Percentile",
	}
	for _, in := range inputs {
		first, err := Parse(in)
		require.NoError(t, err, in)

		second, err := Parse(Format(first))
		require.NoError(t, err, Format(first))
		require.Equal(t, first, second, in)
		require.Equal(t, Format(first), Format(second))
	}
}

func TestParse_StatisticRequired(t *testing.T) {
	_, err := Parse("ERI Code=4006, Revenue=1")
	require.ErrorIs(t, err, ErrMissingStatistic)
}

func TestParse_Rejects(t *testing.T) {
	cases := map[string]string{
		"two statistics":  "Mean, Median",
		"unknown key":     "Salary=3, Mean",
		"duplicate key":   "ERI Code=1, ERI Code=2, Mean",
		"bad revenue":     "Revenue=lots, Mean",
		"negative years":  "Years of Experience=-1, Mean",
		"stray segment":   "ERI Code=1, Texas, Mean",
		"third loc piece": "ERI Location=Dallas, Texas, USA, Mean",
	}
	for name, in := range cases {
		_, err := Parse(in)
		require.Error(t, err, "%s: Parse(%q)", name, in)
	}
}

func TestParse_ExperienceOptional(t *testing.T) {
	r, err := Parse("ERI Code=4006, Mean")
	require.NoError(t, err)
	require.Nil(t, r.ExperienceYears)
	require.ErrorIs(t, r.Validate(), ErrExperienceRequired)

	avg, err := Parse("ERI Code=4006, All Incumbent Average")
	require.NoError(t, err)
	require.NoError(t, avg.Validate())
}

func TestRevenueDisplay(t *testing.T) {
	cases := map[int64]string{
		0:         "0",
		999:       "999",
		1000:      "1,000",
		565000000: "565,000,000",
		1234567:   "1,234,567",
	}
	for in, want := range cases {
		r := InputRecord{Revenue: in}
		require.Equal(t, want, r.RevenueDisplay(), "RevenueDisplay(%d)", in)
	}
}

func TestReadTable_CSVWithHeader(t *testing.T) {
	in := `ERI Code,ERI Location,Revenue,Industry,Years of Experience,Requested Type
4006,"Dallas, Texas","565,000,000",All Industries - Diversified,11,75th Percentile
4007,"Austin, Texas",1000,Retail,N/A,All Incumbent Average
`
	recs, err := ReadTable(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, recs, 2)

	require.Equal(t, "Dallas, Texas", recs[0].Location)
	require.Equal(t, int64(565000000), recs[0].Revenue)
	require.Equal(t, "11", recs[0].ExperienceKey())
	require.Equal(t, Percentile75, recs[0].Statistic)

	require.Nil(t, recs[1].ExperienceYears)
	require.Equal(t, AllIncumbentAverage, recs[1].Statistic)
}

func TestReadTable_TabSeparatedPaste(t *testing.T) {
	in := "4006\tDallas, Texas\t565,000,000\tAll Industries - Diversified\t5\tMean\n\n" +
		"4010\tHouston, Texas\t1,000\tEnergy\tN/A\tAll Incumbent Average\n"

	recs, err := ReadTable(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, recs, 2)
	require.Equal(t, Mean, recs[0].Statistic)
	require.Equal(t, "Houston, Texas", recs[1].Location)
	require.Equal(t, int64(1000), recs[1].Revenue)
}

func TestReadTable_HeaderAfterBlankRow(t *testing.T) {
	in := ",,,,,\nERI Code,ERI Location,Revenue,Industry,Years of Experience,Requested Type\n" +
		"4006,\"Dallas, Texas\",565000000,Retail,11,Mean\n"
	recs, err := ReadTable(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, recs, 1)
	require.Equal(t, "4006", recs[0].Code)
}

func TestReadTable_ShortRow(t *testing.T) {
	_, err := ReadTable(strings.NewReader("4006,Dallas,1\n"))
	require.Error(t, err, "short row")
}

func TestStatistic_Text(t *testing.T) {
	for s := Mean; s <= AllIncumbentAverage; s++ {
		b, err := s.MarshalText()
		require.NoError(t, err)
		var back Statistic
		require.NoError(t, back.UnmarshalText(b))
		require.Equal(t, s, back)
	}
}
