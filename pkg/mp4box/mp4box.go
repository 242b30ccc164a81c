// Package mp4box demuxes the ISO-BMFF container down to, for each track,
// the ordered list of (file offset, length, timestamp) sample bounds a
// vendor decoder needs to read and concatenate raw track payload.
//
// Unlike the teacher's pkg/video/mp4, which only ever marshals boxes for
// recording, this package reads them, using github.com/abema/go-mp4's
// ReadBoxStructure walker (the same API other_examples/aggresss-playground-
// streaming__main.go and bluenviron-mediamtx__track.go exercise) instead of
// a hand-rolled box reader.
package mp4box

import (
	"io"
	"sort"

	"github.com/abema/go-mp4"

	"camtelemetry/pkg/telemetryerr"
)

// SampleBound locates one sample's raw bytes and timing within the input.
type SampleBound struct {
	Offset      int64
	Len         int
	TimestampUs int64
	DurationUs  int64
}

// Track is one demuxed MP4 track.
type Track struct {
	TrackID     uint32
	HandlerType string // e.g. "meta", "vide", "soun"
	HandlerName string // e.g. "GoPro MET", "CAMM"
	Timescale   uint32
	Samples     []SampleBound
}

type trackAccum struct {
	trackID     uint32
	handlerType string
	handlerName string
	timescale   uint32
	stts        []mp4.SttsEntry
	stsc        []mp4.StscEntry
	stszSize    uint32
	stszEntries []uint32
	chunkOffset []uint64
}

// Demux walks the box tree of r and returns every track found under moov,
// with a fully reconstructed sample table.
func Demux(r io.ReadSeeker) ([]Track, error) {
	var moovSeen bool
	var accums []*trackAccum
	var cur *trackAccum

	_, err := mp4.ReadBoxStructure(r, func(h *mp4.ReadHandle) (interface{}, error) {
		switch h.BoxInfo.Type.String() {
		case "moov":
			moovSeen = true
			return h.Expand()
		case "trak":
			cur = &trackAccum{}
			accums = append(accums, cur)
			_, err := h.Expand()
			cur = nil
			return nil, err
		case "mdia", "minf", "stbl":
			return h.Expand()
		case "tkhd":
			box, _, err := h.ReadPayload()
			if err != nil {
				return nil, err
			}
			if tkhd, ok := box.(*mp4.Tkhd); ok && cur != nil {
				cur.trackID = tkhd.TrackID
			}
			return nil, nil
		case "mdhd":
			box, _, err := h.ReadPayload()
			if err != nil {
				return nil, err
			}
			if mdhd, ok := box.(*mp4.Mdhd); ok && cur != nil {
				cur.timescale = mdhd.Timescale
			}
			return nil, nil
		case "hdlr":
			box, _, err := h.ReadPayload()
			if err != nil {
				return nil, err
			}
			if hdlr, ok := box.(*mp4.Hdlr); ok && cur != nil {
				cur.handlerType = string(hdlr.HandlerType[:])
				cur.handlerName = hdlr.Name
			}
			return nil, nil
		case "stts":
			box, _, err := h.ReadPayload()
			if err != nil {
				return nil, err
			}
			if stts, ok := box.(*mp4.Stts); ok && cur != nil {
				cur.stts = stts.Entries
			}
			return nil, nil
		case "stsc":
			box, _, err := h.ReadPayload()
			if err != nil {
				return nil, err
			}
			if stsc, ok := box.(*mp4.Stsc); ok && cur != nil {
				cur.stsc = stsc.Entries
			}
			return nil, nil
		case "stsz":
			box, _, err := h.ReadPayload()
			if err != nil {
				return nil, err
			}
			if stsz, ok := box.(*mp4.Stsz); ok && cur != nil {
				cur.stszSize = stsz.SampleSize
				cur.stszEntries = stsz.EntrySize
			}
			return nil, nil
		case "stco":
			box, _, err := h.ReadPayload()
			if err != nil {
				return nil, err
			}
			if stco, ok := box.(*mp4.Stco); ok && cur != nil {
				cur.chunkOffset = make([]uint64, len(stco.ChunkOffset))
				for i, v := range stco.ChunkOffset {
					cur.chunkOffset[i] = uint64(v)
				}
			}
			return nil, nil
		case "co64":
			box, _, err := h.ReadPayload()
			if err != nil {
				return nil, err
			}
			if co64, ok := box.(*mp4.Co64); ok && cur != nil {
				cur.chunkOffset = co64.ChunkOffset
			}
			return nil, nil
		default:
			return nil, nil
		}
	})
	if err != nil {
		return nil, &telemetryerr.MalformedContainerError{Reason: err.Error()}
	}
	if !moovSeen {
		return nil, &telemetryerr.MalformedContainerError{Reason: "no moov box found"}
	}

	tracks := make([]Track, 0, len(accums))
	for _, a := range accums {
		t := Track{
			TrackID:     a.trackID,
			HandlerType: a.handlerType,
			HandlerName: a.handlerName,
			Timescale:   a.timescale,
		}
		t.Samples = buildSampleTable(a)
		tracks = append(tracks, t)
	}
	return tracks, nil
}

// buildSampleTable reconciles stts (durations), stsc (samples-per-chunk
// runs), stsz (sizes) and stco/co64 (chunk offsets) into a flat per-sample
// list, the way every ISO-BMFF demuxer does internally.
func buildSampleTable(a *trackAccum) []SampleBound {
	sampleCount := 0
	if a.stszSize == 0 {
		sampleCount = len(a.stszEntries)
	}

	// Expand stsc runs into a per-chunk samples-per-chunk lookup.
	samplesPerChunk := func(chunkIndex int) uint32 {
		var v uint32
		for i, entry := range a.stsc {
			if uint32(chunkIndex+1) >= entry.FirstChunk {
				if i+1 < len(a.stsc) && uint32(chunkIndex+1) >= a.stsc[i+1].FirstChunk {
					continue
				}
				v = entry.SamplesPerChunk
			}
		}
		return v
	}

	var bounds []SampleBound
	sampleIdx := 0
	for chunkIdx, chunkOff := range a.chunkOffset {
		n := int(samplesPerChunk(chunkIdx))
		offset := int64(chunkOff)
		for i := 0; i < n; i++ {
			if a.stszSize == 0 {
				if sampleIdx >= len(a.stszEntries) {
					break
				}
			}
			size := int(a.stszSize)
			if size == 0 && sampleIdx < len(a.stszEntries) {
				size = int(a.stszEntries[sampleIdx])
			}
			bounds = append(bounds, SampleBound{Offset: offset, Len: size})
			offset += int64(size)
			sampleIdx++
		}
	}
	if sampleCount == 0 {
		sampleCount = len(bounds)
	}

	// Assign timestamps from the stts run-length table.
	var t uint64
	sttsIdx, sttsRemaining := 0, uint32(0)
	if len(a.stts) > 0 {
		sttsRemaining = a.stts[0].SampleCount
	}
	for i := range bounds {
		bounds[i].TimestampUs = scaleToUs(t, a.timescale)
		var delta uint32
		if sttsIdx < len(a.stts) {
			delta = a.stts[sttsIdx].SampleDelta
		}
		bounds[i].DurationUs = scaleToUs(uint64(delta), a.timescale)
		t += uint64(delta)
		if sttsRemaining > 0 {
			sttsRemaining--
		}
		if sttsRemaining == 0 {
			sttsIdx++
			if sttsIdx < len(a.stts) {
				sttsRemaining = a.stts[sttsIdx].SampleCount
			}
		}
	}
	return bounds
}

func scaleToUs(v uint64, timescale uint32) int64 {
	if timescale == 0 {
		return 0
	}
	return int64(v * 1_000_000 / uint64(timescale))
}

// ConcatTrackPayload reads and concatenates every sample's raw bytes for a
// track, ordered by file offset, the way GPMF treats an embedded metadata
// track as one continuous KLV stream spanning sample boundaries. The
// bounds returned alongside are in that same order; SampleForOffset uses
// them to translate a byte offset within the concatenated payload back
// into the MP4 sample (and therefore timestamp) it came from.
func ConcatTrackPayload(r io.ReaderAt, track Track) ([]byte, []SampleBound, error) {
	bounds := make([]SampleBound, len(track.Samples))
	copy(bounds, track.Samples)
	sort.Slice(bounds, func(i, j int) bool { return bounds[i].Offset < bounds[j].Offset })

	var total int
	for _, b := range bounds {
		total += b.Len
	}
	buf := make([]byte, total)
	var pos int
	for _, b := range bounds {
		if b.Len == 0 {
			continue
		}
		n, err := r.ReadAt(buf[pos:pos+b.Len], b.Offset)
		if err != nil && err != io.EOF {
			return nil, nil, &telemetryerr.IoError{Op: "mp4box.ConcatTrackPayload", Err: err}
		}
		if n != b.Len {
			return nil, nil, telemetryerr.ErrTruncated
		}
		pos += b.Len
	}
	return buf, bounds, nil
}

// SampleForOffset returns the sample bound whose byte range (relative to
// the concatenated payload built by ConcatTrackPayload) contains offset,
// along with the index into bounds.
func SampleForOffset(bounds []SampleBound, offset int) (SampleBound, int) {
	var cursor int
	for i, b := range bounds {
		if offset < cursor+b.Len {
			return b, i
		}
		cursor += b.Len
	}
	if len(bounds) == 0 {
		return SampleBound{}, -1
	}
	return bounds[len(bounds)-1], len(bounds) - 1
}
