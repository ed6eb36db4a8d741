// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package window

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/twinmatch/pkg/types"
)

func utc(y int, m time.Month, d, h, min, s int) time.Time {
	return time.Date(y, m, d, h, min, s, 0, time.UTC)
}

func TestGenerate_Wednesday(t *testing.T) {
	// Wednesday 2018-03-14 15:00:00 UTC.
	ts := utc(2018, time.March, 14, 15, 0, 0)

	got := Generate(ts, time.UTC)
	want := []types.SearchWindow{
		{Lower: utc(2018, time.March, 14, 3, 0, 0), Upper: utc(2018, time.March, 14, 23, 59, 59)},
		{Lower: utc(2018, time.March, 13, 15, 0, 0), Upper: utc(2018, time.March, 15, 15, 0, 0)},
		{Lower: utc(2018, time.March, 12, 0, 0, 0), Upper: utc(2018, time.March, 18, 3, 0, 0)},
		{Lower: utc(2018, time.March, 11, 15, 0, 0), Upper: utc(2018, time.March, 17, 15, 0, 0)},
		{Lower: utc(2018, time.March, 1, 0, 0, 0), Upper: utc(2018, time.March, 29, 15, 0, 0)},
		{Lower: utc(2018, time.February, 12, 15, 0, 0), Upper: utc(2018, time.April, 13, 15, 0, 0)},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Generate() mismatch (-want +got):\n%s", diff)
	}
}

func TestGenerate_MonthAndWeekEdges(t *testing.T) {
	// Sunday 2020-05-31 22:30:00 UTC: last day of its month and its week.
	ts := utc(2020, time.May, 31, 22, 30, 0)
	got := Generate(ts, time.UTC)
	require.Len(t, got, Count)

	endOfDay := utc(2020, time.May, 31, 23, 59, 59)
	assert.Equal(t, utc(2020, time.May, 31, 10, 30, 0), got[0].Lower)
	assert.Equal(t, endOfDay, got[0].Upper, "day window clipped at midnight")

	assert.Equal(t, utc(2020, time.May, 28, 10, 30, 0), got[2].Lower)
	assert.Equal(t, endOfDay, got[2].Upper, "week ends on Sunday")

	assert.Equal(t, utc(2020, time.May, 16, 22, 30, 0), got[4].Lower)
	assert.Equal(t, endOfDay, got[4].Upper, "month ends on the 31st")
}

func TestGenerate_LeapFebruary(t *testing.T) {
	// Saturday 2020-02-29 12:00:00 UTC.
	ts := utc(2020, time.February, 29, 12, 0, 0)
	got := Generate(ts, time.UTC)

	assert.Equal(t, utc(2020, time.March, 1, 23, 59, 59), got[2].Upper, "week runs to Sunday March 1")
	assert.Equal(t, utc(2020, time.February, 29, 23, 59, 59), got[4].Upper, "month ends on the 29th")
}

func TestGenerate_StartOfPeriods(t *testing.T) {
	// Monday 2019-07-01 01:00:00 UTC: first day of month and week.
	ts := utc(2019, time.July, 1, 1, 0, 0)
	got := Generate(ts, time.UTC)

	start := utc(2019, time.July, 1, 0, 0, 0)
	assert.Equal(t, start, got[0].Lower)
	assert.Equal(t, start, got[2].Lower)
	assert.Equal(t, start, got[4].Lower)
	assert.Equal(t, utc(2019, time.July, 4, 13, 0, 0), got[2].Upper)
	assert.Equal(t, utc(2019, time.July, 16, 1, 0, 0), got[4].Upper)
}

func TestGenerate_LocalCalendar(t *testing.T) {
	// 2018-03-14 02:00 UTC is still 2018-03-13 in New York.
	ny, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skipf("timezone database unavailable: %v", err)
	}
	ts := utc(2018, time.March, 14, 2, 0, 0)

	got := Generate(ts, ny)
	dayEnd := time.Date(2018, time.March, 13, 23, 59, 59, 0, ny)
	assert.True(t, got[0].Upper.Equal(dayEnd), "got %v, want %v", got[0].Upper, dayEnd)
}

func TestGenerate_ContainsReference(t *testing.T) {
	loc := time.FixedZone("UTC+5", 5*3600)
	start := utc(2015, time.January, 1, 0, 0, 0)
	for i := 0; i < 400; i++ {
		ts := start.Add(time.Duration(i) * 37 * time.Hour).Add(time.Duration(i*611) * time.Second)
		windows := Generate(ts, loc)
		require.Len(t, windows, Count)
		for j, w := range windows {
			if !w.Contains(ts) {
				t.Fatalf("window %d %v-%v does not contain %v", j, w.Lower, w.Upper, ts)
			}
			if w.Upper.Before(w.Lower) {
				t.Fatalf("window %d inverted: %v-%v", j, w.Lower, w.Upper)
			}
		}

		local := ts.In(loc)
		// Calendar-clipped windows never leave their period.
		for _, j := range []int{0, 2, 4} {
			lo, hi := windows[j].Lower.In(loc), windows[j].Upper.In(loc)
			switch j {
			case 0:
				assert.Equal(t, local.YearDay(), lo.YearDay())
				assert.Equal(t, local.YearDay(), hi.YearDay())
			case 2:
				ly, lw := local.ISOWeek()
				y1, w1 := lo.ISOWeek()
				y2, w2 := hi.ISOWeek()
				assert.Equal(t, [2]int{ly, lw}, [2]int{y1, w1})
				assert.Equal(t, [2]int{ly, lw}, [2]int{y2, w2})
			case 4:
				assert.Equal(t, local.Month(), lo.Month())
				assert.Equal(t, local.Month(), hi.Month())
			}
		}
	}
}

func TestGenerate_TruncatesSubSecond(t *testing.T) {
	ts := time.Date(2018, time.March, 14, 23, 59, 59, 500_000_000, time.UTC)
	got := Generate(ts, time.UTC)
	assert.Equal(t, utc(2018, time.March, 14, 23, 59, 59), got[0].Upper)
}
