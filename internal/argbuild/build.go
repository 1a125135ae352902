// Package argbuild synthesizes the argument string passed to the external
// media-processing tool. Build is pure and deterministic: the same Params
// value always produces the same byte-identical string, since that string
// is the wire contract consumed by every worker.
package argbuild

import (
	"fmt"
	"strconv"
	"strings"
)

// Size is a video frame width/height pair.
type Size struct {
	Width  int
	Height int
}

// VideoSettings configures the video encode tail.
type VideoSettings struct {
	Codec      string
	BitrateBps int
	Preset     string // defaults to "medium" when empty
	Size       *Size
}

// AudioSettings configures the audio encode tail.
type AudioSettings struct {
	Codec      string
	BitrateBps int
}

// DeinterlaceMode selects the yadif temporal mode.
type DeinterlaceMode string

const (
	DeinterlaceSendFrame DeinterlaceMode = "send-frame"
	DeinterlaceSendField DeinterlaceMode = "send-field"
)

// DeinterlaceParity selects the yadif field-parity.
type DeinterlaceParity string

const (
	ParityAuto        DeinterlaceParity = "auto"
	ParityTopFirst    DeinterlaceParity = "top-first"
	ParityBottomFirst DeinterlaceParity = "bottom-first"
)

// Deinterlace configures the yadif filter stage.
type Deinterlace struct {
	Mode      DeinterlaceMode
	Parity    DeinterlaceParity
	AllFrames bool
}

// Params is the structured parameter record consumed by Build.
type Params struct {
	Input       string
	Video       *VideoSettings
	Audio       *AudioSettings
	Deinterlace *Deinterlace
}

// Build maps a Params record to the argument string for the external tool,
// following the fixed emission order specified by the interface contract:
// input, filter stage (deinterlace or scale, mutually exclusive), video
// tail, audio tail.
func Build(p Params) string {
	var tokens []string

	tokens = append(tokens, "-i", quote(p.Input))

	switch {
	case p.Deinterlace != nil && deinterlaceKnown(p.Deinterlace):
		tokens = append(tokens, "-filter_complex", quote(yadifExpr(p.Deinterlace)))
	case p.Video != nil && p.Video.Size != nil:
		tokens = append(tokens, "-filter_complex", quote(fmt.Sprintf("scale=%d:%d", p.Video.Size.Width, p.Video.Size.Height)))
	}

	if p.Video != nil {
		preset := p.Video.Preset
		if preset == "" {
			preset = "medium"
		}
		tokens = append(tokens,
			"-codec:v", strings.ToLower(p.Video.Codec),
			"-preset", preset,
			"-b:v", kbps(p.Video.BitrateBps)+"k",
		)
	}

	if p.Audio != nil {
		tokens = append(tokens,
			"-codec:a", strings.ToLower(p.Audio.Codec),
			"-b:a", kbps(p.Audio.BitrateBps)+"k",
		)
	}

	return strings.Join(tokens, " ")
}

func deinterlaceKnown(d *Deinterlace) bool {
	return modeCode(d.Mode) != -2 && parityCode(d.Parity) != -2
}

// yadifExpr renders "yadif=<mode>:<parity>:<all>" with the integer
// encodings fixed by the interface contract.
func yadifExpr(d *Deinterlace) string {
	all := 0
	if d.AllFrames {
		all = 1
	}
	return fmt.Sprintf("yadif=%d:%d:%d", modeCode(d.Mode), parityCode(d.Parity), all)
}

// modeCode encodes the deinterlace mode; -2 signals "unknown".
func modeCode(m DeinterlaceMode) int {
	switch m {
	case DeinterlaceSendFrame:
		return 0
	case DeinterlaceSendField:
		return 1
	default:
		return -2
	}
}

// parityCode encodes the deinterlace field parity; -2 signals "unknown".
func parityCode(p DeinterlaceParity) int {
	switch p {
	case ParityAuto:
		return -1
	case ParityTopFirst:
		return 0
	case ParityBottomFirst:
		return 1
	default:
		return -2
	}
}

func kbps(bps int) string {
	return strconv.Itoa(bps / 1000)
}

func quote(s string) string {
	return `"` + s + `"`
}
