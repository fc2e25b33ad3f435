// Package amd describes AMD GPU hardware: chip generations and families,
// export targets and the SPI output formats pixel shaders export with.
package amd

import (
	"fmt"
	"strings"
)

// GfxLevel is a graphics IP generation.
type GfxLevel uint8

const (
	GfxUnknown GfxLevel = iota
	GFX6
	GFX7
	GFX8
	GFX9
	GFX10
	GFX10_3
	GFX11
	GFX11_5
	GFX12
)

var gfxLevelNames = [...]string{
	GfxUnknown: "unknown",
	GFX6:       "gfx6",
	GFX7:       "gfx7",
	GFX8:       "gfx8",
	GFX9:       "gfx9",
	GFX10:      "gfx10",
	GFX10_3:    "gfx10.3",
	GFX11:      "gfx11",
	GFX11_5:    "gfx11.5",
	GFX12:      "gfx12",
}

// String returns the lowercase generation name, e.g. "gfx10.3".
func (g GfxLevel) String() string {
	if int(g) < len(gfxLevelNames) {
		return gfxLevelNames[g]
	}
	return fmt.Sprintf("gfx(%d)", uint8(g))
}

// ParseGfxLevel parses a generation name such as "gfx9" or "GFX10_3".
func ParseGfxLevel(s string) (GfxLevel, error) {
	name := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "_", ".")
	for i, n := range gfxLevelNames {
		if i != int(GfxUnknown) && n == name {
			return GfxLevel(i), nil
		}
	}
	return GfxUnknown, fmt.Errorf("unknown gfx level %q", s)
}

// UnmarshalYAML implements yaml.Unmarshaler for scalar nodes.
func (g *GfxLevel) UnmarshalYAML(unmarshal func(any) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	level, err := ParseGfxLevel(s)
	if err != nil {
		return err
	}
	*g = level
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (g GfxLevel) MarshalYAML() (any, error) {
	return g.String(), nil
}

// Family is a chip family within a generation.
type Family uint8

const (
	FamilyUnknown Family = iota
	// GFX6
	ChipTahiti
	ChipPitcairn
	ChipVerde
	ChipOland
	ChipHainan
	// GFX7
	ChipBonaire
	ChipKaveri
	ChipKabini
	ChipHawaii
	// GFX8
	ChipTonga
	ChipIceland
	ChipCarrizo
	ChipFiji
	ChipStoney
	ChipPolaris10
	ChipPolaris11
	ChipPolaris12
	ChipVegaM
	// GFX9
	ChipVega10
	ChipVega12
	ChipVega20
	ChipRaven
	ChipRaven2
	ChipRenoir
	ChipMI100
	ChipMI200
	// GFX10
	ChipNavi10
	ChipNavi12
	ChipNavi14
	// GFX10.3
	ChipNavi21
	ChipNavi22
	ChipNavi23
	ChipNavi24
	ChipVanGogh
	ChipRembrandt
	ChipRaphaelMendocino
	// GFX11
	ChipNavi31
	ChipNavi32
	ChipNavi33
	ChipPhoenix
	// GFX11.5
	ChipStrixPoint
	// GFX12
	ChipNavi44
	ChipNavi48
)

var familyNames = map[Family]string{
	FamilyUnknown:        "unknown",
	ChipTahiti:           "tahiti",
	ChipPitcairn:         "pitcairn",
	ChipVerde:            "verde",
	ChipOland:            "oland",
	ChipHainan:           "hainan",
	ChipBonaire:          "bonaire",
	ChipKaveri:           "kaveri",
	ChipKabini:           "kabini",
	ChipHawaii:           "hawaii",
	ChipTonga:            "tonga",
	ChipIceland:          "iceland",
	ChipCarrizo:          "carrizo",
	ChipFiji:             "fiji",
	ChipStoney:           "stoney",
	ChipPolaris10:        "polaris10",
	ChipPolaris11:        "polaris11",
	ChipPolaris12:        "polaris12",
	ChipVegaM:            "vegam",
	ChipVega10:           "vega10",
	ChipVega12:           "vega12",
	ChipVega20:           "vega20",
	ChipRaven:            "raven",
	ChipRaven2:           "raven2",
	ChipRenoir:           "renoir",
	ChipMI100:            "mi100",
	ChipMI200:            "mi200",
	ChipNavi10:           "navi10",
	ChipNavi12:           "navi12",
	ChipNavi14:           "navi14",
	ChipNavi21:           "navi21",
	ChipNavi22:           "navi22",
	ChipNavi23:           "navi23",
	ChipNavi24:           "navi24",
	ChipVanGogh:          "vangogh",
	ChipRembrandt:        "rembrandt",
	ChipRaphaelMendocino: "raphael_mendocino",
	ChipNavi31:           "navi31",
	ChipNavi32:           "navi32",
	ChipNavi33:           "navi33",
	ChipPhoenix:          "phoenix",
	ChipStrixPoint:       "strix_point",
	ChipNavi44:           "navi44",
	ChipNavi48:           "navi48",
}

// String returns the lowercase family name.
func (f Family) String() string {
	if n, ok := familyNames[f]; ok {
		return n
	}
	return fmt.Sprintf("family(%d)", uint8(f))
}

// ParseFamily parses a family name such as "oland".
func ParseFamily(s string) (Family, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for f, n := range familyNames {
		if n == name {
			return f, nil
		}
	}
	return FamilyUnknown, fmt.Errorf("unknown chip family %q", s)
}

// UnmarshalYAML implements yaml.Unmarshaler for scalar nodes.
func (f *Family) UnmarshalYAML(unmarshal func(any) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	family, err := ParseFamily(s)
	if err != nil {
		return err
	}
	*f = family
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (f Family) MarshalYAML() (any, error) {
	return f.String(), nil
}
