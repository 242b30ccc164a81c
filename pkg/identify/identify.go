// Package identify sniffs an input's byte prefix to decide which format a
// file carries; the filename argument is accepted but no rule reads it.
// Grounded on the
// detect() methods scattered across the upstream gopro/sony/camm/insta360
// modules, collapsed into one ordered rule table instead of one
// macro-generated dispatch per format.
//
// Detect recognizes more kinds than this module ships decoders for (R3D,
// BRAW, Betaflight's binary and CSV logs, gcsv, Runcam CSV, WitMotion, DJI):
// pkg/dispatch uses that to tell a caller "recognized, no decoder for it
// yet" apart from a flat "unknown format".
package identify

import "bytes"

// Kind is the closed set of formats this package recognizes.
type Kind string

// Recognized kinds. Unknown means no detector matched.
const (
	KindGoPro          Kind = "GoPro"
	KindSony           Kind = "Sony"
	KindCAMM           Kind = "CAMM"
	KindInsta360       Kind = "Insta360"
	KindDJI            Kind = "DJI"
	KindGenericISOBMFF Kind = "GenericISOBMFF"
	KindR3D            Kind = "R3D"
	KindBRAW           Kind = "BRAW"
	KindBetaflight     Kind = "Betaflight"
	KindBetaflightCSV  Kind = "BetaflightCSV"
	KindGcsv           Kind = "Gcsv"
	KindRuncamCSV      Kind = "RuncamCSV"
	KindWitMotion      Kind = "WitMotion"
	KindUnknown        Kind = "Unknown"
)

// Result is the outcome of Detect.
type Result struct {
	Kind       Kind
	Confidence float64 // in [0,1]; higher wins when more than one rule matches
}

// rule inspects a byte prefix (ideally the concatenated head and tail of
// the input, see readSniffWindow in pkg/dispatch, since trailer-based
// formats like Insta360 keep their signature at EOF) and an optional
// filename hint, which no current probe uses.
type rule struct {
	kind       Kind
	probe      func(prefix []byte, filename string) bool
	confidence float64
}

// Rules are tried in order; within a rule group the first match wins, but
// Detect still runs every group so a higher-confidence later rule (none
// currently outrank an ISO-BMFF match) could override a weaker one.
var rules = []rule{
	// Rule 1: ISO-BMFF and its vendor variants.
	{KindInsta360, detectInsta360Trailer, 1.0},
	{KindGoPro, detectGoPro, 0.9},
	{KindSony, detectSony, 0.9},
	{KindCAMM, detectCAMM, 0.8},
	{KindDJI, detectDJI, 0.8},

	// Rule 2: magic prefixes for non-MP4 containers.
	{KindR3D, detectR3D, 0.9},
	{KindBRAW, detectBRAW, 0.9},
	{KindBetaflight, detectBetaflightBinary, 0.9},

	// Rule 3: line-oriented text logs.
	{KindBetaflightCSV, detectBetaflightCSV, 0.7},
	{KindGcsv, detectGcsv, 0.7},
	{KindRuncamCSV, detectRuncamCSV, 0.6},
	{KindWitMotion, detectWitMotion, 0.6},

	// Rule 1 fallback: some ISO-BMFF file whose brand/boxes named no
	// known vendor. Kept last and low-confidence so any more specific
	// match above always wins.
	{KindGenericISOBMFF, detectISOBMFF, 0.1},
}

// Detect runs every rule against prefix and returns the highest-confidence
// match, or KindUnknown if nothing matched. Detection uses content only:
// no probe reads filename and there is no extension-hint rule, so a ".mp4"
// file with no recognizable box content reports Unknown, and the filename
// never breaks a tie between rules.
func Detect(prefix []byte, filename string) Result {
	best := Result{Kind: KindUnknown}
	for _, r := range rules {
		if r.probe(prefix, filename) && r.confidence > best.Confidence {
			best = Result{Kind: r.kind, Confidence: r.confidence}
		}
	}
	return best
}

func detectGoPro(prefix []byte, _ string) bool {
	if bytes.Contains(prefix, []byte("DEVC")) && bytes.Contains(prefix, []byte("GPMF")) {
		return true
	}
	if bytes.Contains(prefix, []byte("GoPro MET")) {
		return true
	}
	return bytes.Contains(prefix, []byte("GPRO")) && bytes.Contains(prefix, []byte("HERO"))
}

func detectSony(prefix []byte, _ string) bool {
	return bytes.Contains(prefix, []byte(`manufacturer="Sony"`))
}

func detectCAMM(prefix []byte, _ string) bool {
	return bytes.Contains(prefix, []byte("camm")) && bytes.Contains(prefix, []byte("ftyp"))
}

// insta360TrailerMagic is the fixed hex-ASCII string Insta360 writes at the
// very end of every mp4/insv file, immediately before the trailer header.
const insta360TrailerMagic = "8db42d694ccc418790edff439fe026bf"

func detectInsta360Trailer(prefix []byte, _ string) bool {
	return bytes.HasSuffix(prefix, []byte(insta360TrailerMagic))
}

// detectDJI looks for the dbgi/dvtm top-level uuid boxes DJI drones and
// Osmo cameras write next to moov, and the "DJI" handler name some
// firmware versions use for the metadata track.
func detectDJI(prefix []byte, filename string) bool {
	if bytes.Contains(prefix, []byte("dbgi")) || bytes.Contains(prefix, []byte("dvtm")) {
		return true
	}
	if !bytes.Contains(prefix, []byte("ftyp")) {
		return false
	}
	return bytes.Contains(prefix, []byte("DJI"))
}

func detectISOBMFF(prefix []byte, _ string) bool {
	return bytes.Contains(prefix[:min(len(prefix), 64)], []byte("ftyp"))
}

// detectR3D matches RED's container: a top-level "RED1" or "RED2" atom
// four-CC at byte offset 4, following the same [size][fourcc] atom layout
// ISO-BMFF uses but with RED's own atom names.
func detectR3D(prefix []byte, _ string) bool {
	if len(prefix) < 8 {
		return false
	}
	return bytes.Equal(prefix[4:8], []byte("RED1")) || bytes.Equal(prefix[4:8], []byte("RED2"))
}

// detectBRAW matches Blackmagic RAW's leading "#BlackmagicRAW" marker.
func detectBRAW(prefix []byte, _ string) bool {
	return bytes.Contains(prefix[:min(len(prefix), 32)], []byte("#BlackmagicRAW"))
}

// detectBetaflightBinary matches the single-byte 'H'/'E' header Betaflight
// blackbox logs open with before their field-definition header lines.
func detectBetaflightBinary(prefix []byte, filename string) bool {
	if len(prefix) == 0 {
		return false
	}
	return (prefix[0] == 'H' || prefix[0] == 'E') && bytes.Contains(prefix[:min(len(prefix), 256)], []byte("Product"))
}

func detectBetaflightCSV(prefix []byte, _ string) bool {
	return looksLikeText(prefix) && bytes.Contains(prefix, []byte("loopIteration"))
}

func detectGcsv(prefix []byte, _ string) bool {
	return looksLikeText(prefix) && bytes.Contains(prefix, []byte("GYROFLOW IMU LOG"))
}

func detectRuncamCSV(prefix []byte, _ string) bool {
	return looksLikeText(prefix) && bytes.Contains(prefix, []byte("time,roll,pitch,yaw"))
}

func detectWitMotion(prefix []byte, _ string) bool {
	return looksLikeText(prefix) && bytes.Contains(prefix, []byte("Chiptime"))
}

// looksLikeText reports whether the first KiB of prefix is mostly
// printable ASCII, the cheap heuristic line-oriented log formats use to
// rule themselves in before checking for a specific header signature.
func looksLikeText(prefix []byte) bool {
	window := prefix[:min(len(prefix), 1024)]
	if len(window) == 0 {
		return false
	}
	printable := 0
	for _, b := range window {
		if b == '\n' || b == '\r' || b == '\t' || (b >= 0x20 && b < 0x7f) {
			printable++
		}
	}
	return float64(printable)/float64(len(window)) > 0.95
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
