package types

import (
	"fmt"
	"math"
	"strings"
)

// Layout names a channel ordering. Orders follow ffmpeg's (FL FR FC LFE ...).
type Layout int

const (
	LayoutUnknown Layout = iota
	LayoutMono
	LayoutStereo
	Layout3_0
	LayoutQuad
	Layout5_0
	Layout5_1
	Layout7_1
)

// ChannelRole drives the BS.1770 channel weight.
type ChannelRole int

const (
	RoleFront ChannelRole = iota
	RoleLFE
	RoleSurround
)

//nolint:gochecknoglobals // lookup data, effectively const
var layoutRoles = map[Layout][]ChannelRole{
	LayoutMono:   {RoleFront},
	LayoutStereo: {RoleFront, RoleFront},
	Layout3_0:    {RoleFront, RoleFront, RoleFront},
	LayoutQuad:   {RoleFront, RoleFront, RoleSurround, RoleSurround},
	Layout5_0:    {RoleFront, RoleFront, RoleFront, RoleSurround, RoleSurround},
	Layout5_1:    {RoleFront, RoleFront, RoleFront, RoleLFE, RoleSurround, RoleSurround},
	Layout7_1: {
		RoleFront, RoleFront, RoleFront, RoleLFE,
		RoleSurround, RoleSurround, RoleSurround, RoleSurround,
	},
}

func (l Layout) String() string {
	switch l {
	case LayoutUnknown:
		return "unknown"
	case LayoutMono:
		return "mono"
	case LayoutStereo:
		return "stereo"
	case Layout3_0:
		return "3.0"
	case LayoutQuad:
		return "quad"
	case Layout5_0:
		return "5.0"
	case Layout5_1:
		return "5.1"
	case Layout7_1:
		return "7.1"
	}

	return "unknown"
}

// Channels returns the channel count of the layout, 0 for unknown.
func (l Layout) Channels() int {
	return len(layoutRoles[l])
}

// ParseLayout accepts the names used on the command line and the ffprobe channel_layout values.
func ParseLayout(name string) (Layout, error) {
	name = strings.ToLower(strings.TrimSpace(name))

	// ffprobe decorates some layouts, e.g. "5.1(side)", "7.1(wide)".
	if idx := strings.IndexByte(name, '('); idx > 0 {
		name = name[:idx]
	}

	switch name {
	case "", "auto":
		return LayoutUnknown, nil
	case "mono", "1.0":
		return LayoutMono, nil
	case "stereo", "2.0":
		return LayoutStereo, nil
	case "3.0":
		return Layout3_0, nil
	case "quad", "4.0":
		return LayoutQuad, nil
	case "5.0":
		return Layout5_0, nil
	case "5.1":
		return Layout5_1, nil
	case "7.1":
		return Layout7_1, nil
	}

	return LayoutUnknown, fmt.Errorf("%w: unknown channel layout %q", ErrInvalidInput, name)
}

// LayoutForChannels returns the conventional layout for a channel count.
// Counts without a convention yield LayoutUnknown, whose channels are all weighted as front channels.
func LayoutForChannels(channels int) Layout {
	switch channels {
	case 1:
		return LayoutMono
	case 2:
		return LayoutStereo
	case 3:
		return Layout3_0
	case 4:
		return LayoutQuad
	case 5:
		return Layout5_0
	case 6:
		return Layout5_1
	case 8:
		return Layout7_1
	}

	return LayoutUnknown
}

// Weight returns the BS.1770 gain for a role.
func (r ChannelRole) Weight() float64 {
	switch r {
	case RoleLFE:
		return 0
	case RoleSurround:
		return math.Sqrt2
	default:
		return 1
	}
}

// ChannelWeights returns one weight per channel for the layout.
// A layout that does not match the count falls back to 1.0 everywhere.
func ChannelWeights(layout Layout, channels int) []float64 {
	weights := make([]float64, channels)

	roles := layoutRoles[layout]
	if len(roles) != channels {
		for i := range weights {
			weights[i] = 1
		}

		return weights
	}

	for i, role := range roles {
		weights[i] = role.Weight()
	}

	return weights
}
