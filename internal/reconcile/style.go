package reconcile

import (
	"strings"

	"fleetmap/core-go/internal/fleet"
	"fleetmap/core-go/internal/mapadapter"
)

type Theme string

const (
	ThemeDark  Theme = "dark"
	ThemeLight Theme = "light"
)

func ParseTheme(raw string) (Theme, bool) {
	switch Theme(strings.ToLower(strings.TrimSpace(raw))) {
	case ThemeDark:
		return ThemeDark, true
	case ThemeLight:
		return ThemeLight, true
	default:
		return "", false
	}
}

// Palette holds the theme-dependent colors. Status hues other than ACTIVE are theme independent.
type Palette struct {
	Accent   string
	Outline  string
	Contrast string
	ZoneFill float64
}

func PaletteFor(theme Theme) Palette {
	if theme == ThemeLight {
		return Palette{Accent: "#65a30d", Outline: "#ffffff", Contrast: "#000000", ZoneFill: 0.1}
	}
	return Palette{Accent: "#a3e635", Outline: "#000000", Contrast: "#ffffff", ZoneFill: 0.05}
}

func (p Palette) StatusColor(status fleet.AssetStatus) string {
	switch status {
	case fleet.StatusLowBattery:
		return "#f59e0b"
	case fleet.StatusMaintenance:
		return "#f43f5e"
	case fleet.StatusLost:
		return "#a855f7"
	default:
		return p.Accent
	}
}

// Emphasis is how an asset is drawn relative to the current selection.
type Emphasis int

const (
	EmphasisNeutral Emphasis = iota
	EmphasisSelected
	EmphasisDimmed
)

const (
	zIndexZone     = 0
	zIndexAsset    = 100
	zIndexSelected = 1000

	zoneDashArray = "4, 6"
)

func (p Palette) AssetStyle(status fleet.AssetStatus, emphasis Emphasis) mapadapter.Style {
	color := p.StatusColor(status)
	s := mapadapter.Style{
		Radius:      6,
		Color:       p.Outline,
		FillColor:   color,
		Opacity:     1,
		FillOpacity: 0.9,
		Weight:      1,
		ZIndex:      zIndexAsset,
		Interactive: true,
	}
	switch emphasis {
	case EmphasisSelected:
		s.Radius = 12
		s.Color = p.Contrast
		s.FillOpacity = 1
		s.Weight = 3
		s.ZIndex = zIndexSelected
	case EmphasisDimmed:
		s.Opacity = 0.4
		s.FillOpacity = 0.4
	}
	return s
}

func (p Palette) ZoneStyle(z fleet.Zone) mapadapter.Style {
	return mapadapter.Style{
		Radius:         z.RadiusMeters,
		RadiusInMeters: true,
		Color:          p.Accent,
		FillColor:      p.Accent,
		Opacity:        1,
		FillOpacity:    p.ZoneFill,
		Weight:         1,
		DashArray:      zoneDashArray,
		ZIndex:         zIndexZone,
		Interactive:    false,
	}
}
