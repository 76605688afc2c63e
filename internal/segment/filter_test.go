package segment

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vadseg/internal/vaderr"
)

func ms(v int) time.Duration { return time.Duration(v) * time.Millisecond }

func TestFilterBounds(t *testing.T) {
	segs := []Segment{
		{Start: ms(0), End: ms(100)},
		{Start: ms(200), End: ms(450)},
		{Start: ms(500), End: ms(3500)},
		{Start: ms(4000), End: ms(4250)},
	}
	orig := append([]Segment(nil), segs...)

	got, err := Filter(segs, ms(250), ms(1000))
	require.NoError(t, err)
	assert.Equal(t, []Segment{segs[1], segs[3]}, got)
	assert.Equal(t, orig, segs)

	got, err = Filter(segs, ms(250), 0)
	require.NoError(t, err)
	assert.Equal(t, []Segment{segs[1], segs[2], segs[3]}, got)

	got, err = Filter(nil, 0, 0)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestFilterRejectsBadInput(t *testing.T) {
	ok := []Segment{{Start: 0, End: ms(10)}}
	cases := []struct {
		name     string
		segs     []Segment
		min, max time.Duration
	}{
		{"negative min", ok, -1, 0},
		{"negative max", ok, 0, -1},
		{"min above max", ok, ms(20), ms(10)},
		{"reversed segment", []Segment{{Start: ms(10), End: ms(5)}}, 0, 0},
		{"negative start", []Segment{{Start: -ms(1), End: ms(5)}}, 0, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Filter(tc.segs, tc.min, tc.max)
			assert.ErrorIs(t, err, vaderr.ErrInvalidInput)
		})
	}
}
