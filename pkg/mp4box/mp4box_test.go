package mp4box

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"camtelemetry/internal/mp4fixture"
)

func TestDemuxReconstructsSampleTable(t *testing.T) {
	data := mp4fixture.Build([]mp4fixture.Track{
		{
			TrackID:     1,
			Timescale:   1000,
			HandlerType: "meta",
			HandlerName: "GoPro MET",
			Samples: []mp4fixture.Sample{
				{Duration: 100, Payload: []byte("first-sample-payload")},
				{Duration: 100, Payload: []byte("second")},
			},
		},
	})

	tracksFound, err := Demux(bytes.NewReader(data))
	require.NoError(t, err)
	require.Len(t, tracksFound, 1)

	tr := tracksFound[0]
	require.Equal(t, uint32(1), tr.TrackID)
	require.Equal(t, "meta", tr.HandlerType)
	require.Equal(t, "GoPro MET", tr.HandlerName)
	require.Equal(t, uint32(1000), tr.Timescale)
	require.Len(t, tr.Samples, 2)

	require.Equal(t, len("first-sample-payload"), tr.Samples[0].Len)
	require.Equal(t, len("second"), tr.Samples[1].Len)
	require.Equal(t, int64(0), tr.Samples[0].TimestampUs)
	require.Equal(t, int64(100_000), tr.Samples[1].TimestampUs) // 100/1000s -> 100ms
}

func TestDemuxRejectsInputWithNoMoov(t *testing.T) {
	_, err := Demux(bytes.NewReader([]byte("not an mp4 file at all")))
	require.Error(t, err)
}

func TestConcatTrackPayloadAndSampleForOffset(t *testing.T) {
	data := mp4fixture.Build([]mp4fixture.Track{
		{
			TrackID:     1,
			Timescale:   1000,
			HandlerType: "meta",
			HandlerName: "CAMM",
			Samples: []mp4fixture.Sample{
				{Duration: 50, Payload: []byte("AAAA")},
				{Duration: 50, Payload: []byte("BBB")},
			},
		},
	})

	tracksFound, err := Demux(bytes.NewReader(data))
	require.NoError(t, err)

	r := bytes.NewReader(data)
	payload, bounds, err := ConcatTrackPayload(r, tracksFound[0])
	require.NoError(t, err)
	require.Equal(t, []byte("AAAABBB"), payload)
	require.Len(t, bounds, 2)

	b, idx := SampleForOffset(bounds, 0)
	require.Equal(t, 0, idx)
	require.Equal(t, 4, b.Len)

	b, idx = SampleForOffset(bounds, 4)
	require.Equal(t, 1, idx)
	require.Equal(t, 3, b.Len)
}
