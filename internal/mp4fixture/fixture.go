// Package mp4fixture synthesizes minimal, valid ISO-BMFF files for tests:
// just enough moov/trak/mdia/minf/stbl structure for pkg/mp4box.Demux to
// reconstruct a sample table, holding whatever raw vendor metadata payload
// a test wants to round-trip.
//
// Adapted from the box marshaling machinery this module's ancestor uses to
// record fragmented MP4 (pkg/video/mp4): that package only ever writes
// boxes, which is exactly what a fixture builder needs, so it's kept
// in-tree as test-only infrastructure instead of being reimplemented.
package mp4fixture

import (
	"bytes"

	mp4 "camtelemetry/pkg/video/mp4"
	"camtelemetry/pkg/video/mp4/bitio"
)

// Sample is one sample's raw bytes and its duration in the track's
// timescale units.
type Sample struct {
	Duration uint32
	Payload  []byte
}

// Track describes one metadata track to embed.
type Track struct {
	TrackID     uint32
	Timescale   uint32
	HandlerType string // 4 characters, e.g. "meta"
	HandlerName string // e.g. "GoPro MET", "CAMM", empty for Sony/generic
	Samples     []Sample
}

// Build lays out tracks back to back inside one mdat, following a moov
// whose size is computed twice: once with placeholder chunk offsets to
// learn moov's own size, and once more with the real offsets that depend
// on it.
func Build(tracks []Track) []byte {
	ftypBoxes := mp4.Boxes{Box: &mp4.Ftyp{
		MajorBrand:   [4]byte{'i', 's', 'o', 'm'},
		MinorVersion: 0x200,
		CompatibleBrands: []mp4.CompatibleBrandElem{
			{CompatibleBrand: [4]byte{'i', 's', 'o', 'm'}},
			{CompatibleBrand: [4]byte{'m', 'p', '4', '1'}},
		},
	}}

	moovBoxes := buildMoov(tracks, nil)
	mdatOffset := int64(ftypBoxes.Size()) + int64(moovBoxes.Size()) + 8

	offsets := make([][]uint32, len(tracks))
	cursor := mdatOffset
	var mdat bytes.Buffer
	for ti, tr := range tracks {
		offsets[ti] = make([]uint32, len(tr.Samples))
		for si, s := range tr.Samples {
			offsets[ti][si] = uint32(cursor)
			mdat.Write(s.Payload)
			cursor += int64(len(s.Payload))
		}
	}

	moovBoxes = buildMoov(tracks, offsets)

	var out bytes.Buffer
	bw := bitio.NewWriter(&out)
	_ = ftypBoxes.Marshal(bw)
	_ = moovBoxes.Marshal(bw)

	mdatBoxes := mp4.Boxes{Box: &mp4.Mdat{Data: mdat.Bytes()}}
	_ = mdatBoxes.Marshal(bw)

	return out.Bytes()
}

func buildMoov(tracks []Track, offsets [][]uint32) mp4.Boxes {
	moov := mp4.Boxes{
		Box: &mp4.Moov{},
		Children: []mp4.Boxes{
			{Box: &mp4.Mvhd{Timescale: 1000, DurationV0: 0, Rate: 0x00010000, Volume: 0x0100, NextTrackID: uint32(len(tracks) + 1)}},
		},
	}
	for i, tr := range tracks {
		var chunkOffsets []uint32
		if offsets != nil {
			chunkOffsets = offsets[i]
		} else {
			chunkOffsets = make([]uint32, len(tr.Samples))
		}
		moov.Children = append(moov.Children, buildTrak(tr, chunkOffsets))
	}
	return moov
}

func buildTrak(tr Track, chunkOffsets []uint32) mp4.Boxes {
	n := len(tr.Samples)

	sttsEntries := make([]mp4.SttsEntry, n)
	stszEntries := make([]uint32, n)
	stscEntries := []mp4.StscEntry{{FirstChunk: 1, SamplesPerChunk: 1, SampleDescriptionIndex: 1}}
	for i, s := range tr.Samples {
		sttsEntries[i] = mp4.SttsEntry{SampleCount: 1, SampleDelta: s.Duration}
		stszEntries[i] = uint32(len(s.Payload))
	}

	var handlerType [4]byte
	copy(handlerType[:], tr.HandlerType)

	return mp4.Boxes{
		Box: &mp4.Trak{},
		Children: []mp4.Boxes{
			{Box: &mp4.Tkhd{TrackID: tr.TrackID, Matrix: [9]int32{0x00010000, 0, 0, 0, 0x00010000, 0, 0, 0, 0x40000000}}},
			{
				Box: &mp4.Mdia{},
				Children: []mp4.Boxes{
					{Box: &mp4.Mdhd{Timescale: tr.Timescale}},
					{Box: &mp4.Hdlr{HandlerType: handlerType, Name: tr.HandlerName}},
					{
						Box: &mp4.Minf{},
						Children: []mp4.Boxes{
							{
								Box: &mp4.Stbl{},
								Children: []mp4.Boxes{
									{Box: &mp4.Stsd{EntryCount: 0}},
									{Box: &mp4.Stts{EntryCount: uint32(n), Entries: sttsEntries}},
									{Box: &mp4.Stsc{EntryCount: uint32(len(stscEntries)), Entries: stscEntries}},
									{Box: &mp4.Stsz{SampleSize: 0, SampleCount: uint32(n), EntrySize: stszEntries}},
									{Box: &mp4.Stco{EntryCount: uint32(n), ChunkOffset: chunkOffsets}},
								},
							},
						},
					},
				},
			},
		},
	}
}
