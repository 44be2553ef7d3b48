package validate

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/therealsahil19/webspace/pkg/errors"
	"github.com/therealsahil19/webspace/pkg/launches"
)

var testNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func newTestValidator() *Validator {
	return New(WithNow(func() time.Time { return testNow }))
}

func TestRecordMissionNameRequired(t *testing.T) {
	v := newTestValidator()

	_, err := v.Record(launches.RawRecord{SourceName: "official", MissionName: "   "})
	require.Error(t, err)
	assert.True(t, errors.IsValidationError(err))
}

func TestRecordDeriveSlug(t *testing.T) {
	v := newTestValidator()

	tests := []struct {
		name string
		raw  launches.RawRecord
		want string
	}{
		{
			name: "slug provided",
			raw:  launches.RawRecord{MissionName: "Crew-10", Slug: "Crew 10"},
			want: "crew-10",
		},
		{
			name: "derived from name and date",
			raw:  launches.RawRecord{MissionName: "Starlink Group 6-1", LaunchDate: "2024-05-01T10:00:00Z"},
			want: "starlink-group-6-1-2024-05-01",
		},
		{
			name: "derived from name only",
			raw:  launches.RawRecord{MissionName: "Demo Mission"},
			want: "demo-mission",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			c, err := v.Record(tc.raw)
			require.NoError(t, err)
			assert.Equal(t, tc.want, c.Record.Slug)
		})
	}
}

func TestParseLaunchDate(t *testing.T) {
	tests := []struct {
		in   string
		want time.Time
	}{
		{"2024-05-01T10:00:00Z", time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)},
		{"2024-05-01 10:00:00", time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)},
		{"2024-05-01", time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)},
		{"May 1, 2024", time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)},
	}
	for _, tc := range tests {
		got, err := ParseLaunchDate(tc.in)
		require.NoError(t, err, tc.in)
		assert.True(t, tc.want.Equal(got), "parsing %q", tc.in)
	}

	_, err := ParseLaunchDate("sometime next year")
	assert.Error(t, err)
}

func TestRecordUnparseableDateBecomesNull(t *testing.T) {
	v := newTestValidator()

	c, err := v.Record(launches.RawRecord{MissionName: "CRS-30", LaunchDate: "TBD"})
	require.NoError(t, err)
	assert.Nil(t, c.Record.LaunchDate)
}

func TestParsePayloadMass(t *testing.T) {
	tests := []struct {
		in   string
		want float64
	}{
		{"5500", 5500},
		{"5,500 kg", 5500},
		{"~22800kg (expendable)", 22800},
		{"1234.5", 1234.5},
		{"-100 kg", -100},
	}
	for _, tc := range tests {
		got, err := ParsePayloadMass(tc.in)
		require.NoError(t, err, tc.in)
		assert.Equal(t, tc.want, got, tc.in)
	}

	_, err := ParsePayloadMass("unknown")
	assert.Error(t, err)
}

func TestRecordNegativeMassRejected(t *testing.T) {
	v := newTestValidator()

	_, err := v.Record(launches.RawRecord{MissionName: "CRS-30", PayloadMass: "-5 kg"})
	require.Error(t, err)
	assert.True(t, errors.IsValidationError(err))
}

func TestRecordUnparseableMassBecomesNull(t *testing.T) {
	v := newTestValidator()

	c, err := v.Record(launches.RawRecord{MissionName: "CRS-30", PayloadMass: "unknown"})
	require.NoError(t, err)
	assert.Nil(t, c.Record.PayloadMass)
	assert.Len(t, c.Warnings, 1)
}

func TestRecordStatusClassification(t *testing.T) {
	v := newTestValidator()

	tests := []struct {
		name string
		raw  launches.RawRecord
		want launches.Status
	}{
		{
			name: "explicit success",
			raw:  launches.RawRecord{MissionName: "CRS-30", OutcomeText: "Success"},
			want: launches.StatusSuccess,
		},
		{
			name: "failure keyword in prose",
			raw:  launches.RawRecord{MissionName: "CRS-7", OutcomeText: "vehicle lost during ascent"},
			want: launches.StatusFailure,
		},
		{
			name: "scrubbed",
			raw:  launches.RawRecord{MissionName: "GPS III-7", OutcomeText: "launch scrubbed due to weather"},
			want: launches.StatusAborted,
		},
		{
			name: "future date without outcome",
			raw:  launches.RawRecord{MissionName: "Europa Clipper", LaunchDate: "2024-10-10T16:00:00Z"},
			want: launches.StatusUpcoming,
		},
		{
			name: "past date without outcome stays unclassified",
			raw:  launches.RawRecord{MissionName: "Old Flight", LaunchDate: "2020-01-01"},
			want: launches.StatusUnknown,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			c, err := v.Record(tc.raw)
			require.NoError(t, err)
			assert.Equal(t, tc.want, c.Record.Status)
		})
	}
}

func TestRecordSanitizesMarkup(t *testing.T) {
	v := newTestValidator()

	c, err := v.Record(launches.RawRecord{
		MissionName: "Crew-10",
		Details:     `First crew rotation <script>alert("x")</script> of <b>2024</b>.`,
	})
	require.NoError(t, err)
	assert.Equal(t, "First crew rotation of 2024.", c.Record.Details)
}

func TestRecordWarnings(t *testing.T) {
	v := newTestValidator()

	c, err := v.Record(launches.RawRecord{
		MissionName: "Heavy Demo",
		LaunchDate:  "2099-01-01",
		PayloadMass: "150000",
	})
	require.NoError(t, err)
	assert.Len(t, c.Warnings, 2)
}

func TestBatchIsolatesBadRecords(t *testing.T) {
	v := newTestValidator()

	result := v.Batch([]launches.RawRecord{
		{SourceName: "official", MissionName: "Crew-10"},
		{SourceName: "official", MissionName: ""},
		{SourceName: "backup", MissionName: "CRS-30"},
	})
	assert.Len(t, result.Candidates, 2)
	assert.Len(t, result.Rejected, 1)
}
