package tracestore

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordRow_Formatting(t *testing.T) {
	t.Parallel()

	got := Record{TimeS: 0.0625, XPixel: 120, YPixel: 50, XMM: 12.5, YMM: 0.000001}.row()
	want := []string{"0.0625", "120", "50", "12.5", "0.000001"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("row() mismatch (-want +got):\n%s", diff)
	}
}

func TestReadRecords_LegacyLayout(t *testing.T) {
	t.Parallel()

	// Older traces had spaces before the mm headers and a trailing comma.
	in := "time [s],x [pixels],y [pixels], x [mm], y [mm]\n" +
		"0.002,20,50,10.0,25.0,\n" +
		"0.004,30,50,15.0,25.0,\n"
	recs, layout, err := ReadRecords(strings.NewReader(in))
	require.NoError(t, err)
	assert.Equal(t, LayoutLegacy, layout)
	// Pixel x is returned as stored, relative to the reference line.
	want := []Record{
		{TimeS: 0.002, XPixel: 20, YPixel: 50, XMM: 10, YMM: 25},
		{TimeS: 0.004, XPixel: 30, YPixel: 50, XMM: 15, YMM: 25},
	}
	if diff := cmp.Diff(want, recs); diff != "" {
		t.Errorf("ReadRecords mismatch (-want +got):\n%s", diff)
	}
}

func TestReadRecords_Errors(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"empty":       "",
		"bad header":  "t,x,y\n",
		"short row":   strings.Join(Header, ",") + "\n1,2,3\n",
		"not numeric": strings.Join(Header, ",") + "\n1,2,3,four,5\n",
	}
	for name, in := range cases {
		_, _, err := ReadRecords(strings.NewReader(in))
		assert.Error(t, err, name)
	}
}

func TestReadRecords_HeaderOnly(t *testing.T) {
	t.Parallel()

	recs, layout, err := ReadRecords(strings.NewReader(strings.Join(Header, ",") + "\n"))
	require.NoError(t, err)
	assert.Equal(t, LayoutCurrent, layout)
	assert.Empty(t, recs)
}
