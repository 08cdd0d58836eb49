package export

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalendarExporterRender(t *testing.T) {
	stamp := time.Date(2025, 10, 1, 8, 0, 0, 0, time.UTC)
	exporter := NewCalendarExporter("", func() time.Time { return stamp })

	payload, err := exporter.Render("Weekly reports", []CalendarEvent{
		{
			UID:     "reg-1-week-01@internship",
			Summary: "Weekly report 1",
			Start:   time.Date(2025, 10, 6, 0, 0, 0, 0, time.UTC),
			End:     time.Date(2025, 10, 12, 0, 0, 0, 0, time.UTC),
		},
	})
	require.NoError(t, err)

	body := string(payload)
	assert.True(t, strings.HasPrefix(body, "BEGIN:VCALENDAR"))
	assert.Contains(t, body, "X-WR-CALNAME:Weekly reports")
	assert.Contains(t, body, "UID:reg-1-week-01@internship")
	assert.Regexp(t, `DTSTART[^:\r\n]*:20251006`, body)
	assert.Regexp(t, `DTEND[^:\r\n]*:20251013`, body)
	assert.Equal(t, 1, strings.Count(body, "BEGIN:VEVENT"))
}

func TestCalendarExporterRejectsInvertedRange(t *testing.T) {
	exporter := NewCalendarExporter("", nil)
	_, err := exporter.Render("", []CalendarEvent{{
		UID:   "x",
		Start: time.Date(2025, 10, 6, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2025, 10, 5, 0, 0, 0, 0, time.UTC),
	}})
	assert.Error(t, err)

	_, err = exporter.Render("", []CalendarEvent{{Start: time.Now(), End: time.Now()}})
	assert.Error(t, err)
}
