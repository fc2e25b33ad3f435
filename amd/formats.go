package amd

import (
	"fmt"
	"strings"
)

// SPIFormat is an SPI_SHADER_COL_FORMAT / SPI_SHADER_Z_FORMAT encoding:
// the layout in which a pixel shader exports one render target.
type SPIFormat uint8

const (
	SPIShaderZero       SPIFormat = 0 // No export
	SPIShader32R        SPIFormat = 1
	SPIShader32GR       SPIFormat = 2
	SPIShader32AR       SPIFormat = 3
	SPIShaderFP16ABGR   SPIFormat = 4
	SPIShaderUnorm16    SPIFormat = 5
	SPIShaderSnorm16    SPIFormat = 6
	SPIShaderUint16ABGR SPIFormat = 7
	SPIShaderSint16ABGR SPIFormat = 8
	SPIShader32ABGR     SPIFormat = 9
)

var spiFormatNames = map[SPIFormat]string{
	SPIShaderZero:       "zero",
	SPIShader32R:        "32_r",
	SPIShader32GR:       "32_gr",
	SPIShader32AR:       "32_ar",
	SPIShaderFP16ABGR:   "fp16_abgr",
	SPIShaderUnorm16:    "unorm16_abgr",
	SPIShaderSnorm16:    "snorm16_abgr",
	SPIShaderUint16ABGR: "uint16_abgr",
	SPIShaderSint16ABGR: "sint16_abgr",
	SPIShader32ABGR:     "32_abgr",
}

// String returns the lowercase format name.
func (f SPIFormat) String() string {
	if n, ok := spiFormatNames[f]; ok {
		return n
	}
	return fmt.Sprintf("spi_format(%d)", uint8(f))
}

// ParseSPIFormat parses a format name such as "fp16_abgr".
func ParseSPIFormat(s string) (SPIFormat, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for f, n := range spiFormatNames {
		if n == name {
			return f, nil
		}
	}
	return 0, fmt.Errorf("unknown SPI shader format %q", s)
}

// ColorFormats packs one SPIFormat per render target, 4 bits each, target
// 0 in the low bits.
type ColorFormats uint32

// Get returns the format of render target mrt.
func (c ColorFormats) Get(mrt int) SPIFormat {
	return SPIFormat(c >> (mrt * 4) & 0xf)
}

// With returns a copy of c with render target mrt set to f.
func (c ColorFormats) With(mrt int, f SPIFormat) ColorFormats {
	shift := mrt * 4
	return c&^(0xf<<shift) | ColorFormats(f&0xf)<<shift
}

// PackColorFormats builds a ColorFormats from per-target formats.
func PackColorFormats(formats ...SPIFormat) ColorFormats {
	var c ColorFormats
	for i, f := range formats {
		c = c.With(i, f)
	}
	return c
}

// UnmarshalYAML accepts either the raw packed integer or a sequence of
// per-target format names.
func (c *ColorFormats) UnmarshalYAML(unmarshal func(any) error) error {
	var names []string
	if err := unmarshal(&names); err == nil {
		if len(names) > 8 {
			return fmt.Errorf("%d color formats given, at most 8 render targets", len(names))
		}
		var packed ColorFormats
		for i, n := range names {
			f, err := ParseSPIFormat(n)
			if err != nil {
				return err
			}
			packed = packed.With(i, f)
		}
		*c = packed
		return nil
	}

	var raw uint32
	if err := unmarshal(&raw); err != nil {
		return fmt.Errorf("color formats must be a list of names or an integer: %w", err)
	}
	*c = ColorFormats(raw)
	return nil
}

// MarshalYAML implements yaml.Marshaler, listing targets up to the last
// one with a non-zero format.
func (c ColorFormats) MarshalYAML() (any, error) {
	last := -1
	for i := 0; i < 8; i++ {
		if c.Get(i) != SPIShaderZero {
			last = i
		}
	}
	names := make([]string, 0, last+1)
	for i := 0; i <= last; i++ {
		names = append(names, c.Get(i).String())
	}
	return names, nil
}

// Export targets (SQ_EXP_*).
const (
	ExpTargetMRT0  uint8 = 0
	ExpTargetMRTZ  uint8 = 8
	ExpTargetNull  uint8 = 9
	ExpTargetPos0  uint8 = 12
	ExpTargetParam uint8 = 32

	// ExpTargetDualSrcOffset moves the first two color exports to the
	// dual-source blend targets (MRT0+21, MRT0+22).
	ExpTargetDualSrcOffset uint8 = 21
)

// CompareFunc is a depth/alpha test comparison.
type CompareFunc uint8

const (
	CompareNever CompareFunc = iota
	CompareLess
	CompareEqual
	CompareLessEqual
	CompareGreater
	CompareNotEqual
	CompareGreaterEqual
	CompareAlways
)

var compareNames = [...]string{
	CompareNever:        "never",
	CompareLess:         "less",
	CompareEqual:        "equal",
	CompareLessEqual:    "lequal",
	CompareGreater:      "greater",
	CompareNotEqual:     "notequal",
	CompareGreaterEqual: "gequal",
	CompareAlways:       "always",
}

// String returns the lowercase function name.
func (c CompareFunc) String() string {
	if int(c) < len(compareNames) {
		return compareNames[c]
	}
	return fmt.Sprintf("compare(%d)", uint8(c))
}

// ParseCompareFunc parses a comparison name such as "gequal".
func ParseCompareFunc(s string) (CompareFunc, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for i, n := range compareNames {
		if n == name {
			return CompareFunc(i), nil
		}
	}
	return 0, fmt.Errorf("unknown compare function %q", s)
}

// UnmarshalYAML implements yaml.Unmarshaler for scalar nodes.
func (c *CompareFunc) UnmarshalYAML(unmarshal func(any) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	fn, err := ParseCompareFunc(s)
	if err != nil {
		return err
	}
	*c = fn
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (c CompareFunc) MarshalYAML() (any, error) {
	return c.String(), nil
}
