package lowerps

import (
	"errors"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/gogpu/radeon/amd"
	"github.com/gogpu/radeon/ir"
)

// Options configures pixel shader output lowering. It is read-only for the
// duration of a Lower call and may be shared between concurrent calls.
//
// The zero value is not a useful configuration: AlphaFunc's zero value is
// CompareNever, which discards every pixel. Start from DefaultOptions.
type Options struct {
	// GfxLevel and Family select the target GPU.
	GfxLevel amd.GfxLevel `yaml:"gfx_level"`
	Family   amd.Family   `yaml:"family"`

	// UseACO selects the backend that has a dual-source blend pseudo
	// export; the other backend gets explicit lane shuffles.
	UseACO bool `yaml:"use_aco"`

	// UsesDiscard tells that the shader may kill invocations, which on
	// GFX10+ still requires an export to propagate the EXEC mask.
	UsesDiscard bool `yaml:"uses_discard"`

	// NoColorExport and NoDepthExport leave color, respectively
	// depth/stencil/sample-mask, exports to a separately compiled epilog
	// and keep the original output stores of that group.
	NoColorExport bool `yaml:"no_color_export"`
	NoDepthExport bool `yaml:"no_depth_export"`

	// KillSampleMask drops sample mask writes.
	KillSampleMask bool `yaml:"kill_samplemask"`

	ClampColor             bool            `yaml:"clamp_color"`
	AlphaToOne             bool            `yaml:"alpha_to_one"`
	AlphaToCoverageViaMRTZ bool            `yaml:"alpha_to_coverage_via_mrtz"`
	AlphaFunc              amd.CompareFunc `yaml:"alpha_func"`

	// SpiShaderColFormat holds one export format per render target.
	SpiShaderColFormat amd.ColorFormats `yaml:"color_formats"`

	// Per render target bitmasks.
	ColorIsInt8             uint8 `yaml:"color_is_int8"`
	ColorIsInt10            uint8 `yaml:"color_is_int10"`
	EnableMRTOutputNaNFixup uint8 `yaml:"mrt_output_nan_fixup"`

	// DualSrcBlendSwizzle moves the first two color exports to the
	// dual-source targets and swaps their odd/even lanes.
	DualSrcBlendSwizzle bool `yaml:"dual_src_blend_swizzle"`

	// BroadcastLastCbuf, when non-zero, exports color 0 to render targets
	// 0 through BroadcastLastCbuf.
	BroadcastLastCbuf int `yaml:"broadcast_last_cbuf"`

	// PsIterSamples is the number of invocations shading each pixel.
	PsIterSamples uint32 `yaml:"ps_iter_samples"`

	ForcePerspSampleInterp  bool `yaml:"force_persp_sample_interp"`
	ForceLinearSampleInterp bool `yaml:"force_linear_sample_interp"`
	ForcePerspCenterInterp  bool `yaml:"force_persp_center_interp"`
	ForceLinearCenterInterp bool `yaml:"force_linear_center_interp"`
	BCOptimizeForPersp      bool `yaml:"bc_optimize_for_persp"`
	BCOptimizeForLinear     bool `yaml:"bc_optimize_for_linear"`

	// Hardware supplies table lookups; nil selects amd.DefaultHardware.
	Hardware amd.Hardware `yaml:"-"`
}

// DefaultOptions returns a GFX10.3 configuration exporting all eight
// render targets as 32-bit ABGR with alpha test disabled.
func DefaultOptions() Options {
	var formats amd.ColorFormats
	for i := 0; i < ir.MaxDrawBuffers; i++ {
		formats = formats.With(i, amd.SPIShader32ABGR)
	}
	return Options{
		GfxLevel:           amd.GFX10_3,
		Family:             amd.ChipNavi21,
		UseACO:             true,
		AlphaFunc:          amd.CompareAlways,
		SpiShaderColFormat: formats,
		PsIterSamples:      1,
	}
}

// LoadOptions decodes YAML on top of DefaultOptions. Unknown keys are an
// error. An empty document yields the defaults.
func LoadOptions(r io.Reader) (Options, error) {
	opts := DefaultOptions()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&opts); err != nil && !errors.Is(err, io.EOF) {
		return Options{}, fmt.Errorf("decode options: %w", err)
	}
	if err := opts.Validate(); err != nil {
		return Options{}, err
	}
	return opts, nil
}

// Validate checks the configuration for values the hardware cannot
// express.
func (o *Options) Validate() error {
	if o.GfxLevel == amd.GfxUnknown || o.GfxLevel > amd.GFX12 {
		return fmt.Errorf("invalid gfx level %v", o.GfxLevel)
	}
	switch o.PsIterSamples {
	case 0, 1, 2, 4, 8, 16:
	default:
		return fmt.Errorf("ps_iter_samples must be a power of two up to 16, got %d", o.PsIterSamples)
	}
	if o.BroadcastLastCbuf < 0 || o.BroadcastLastCbuf >= ir.MaxDrawBuffers {
		return fmt.Errorf("broadcast_last_cbuf %d out of range", o.BroadcastLastCbuf)
	}
	if o.AlphaFunc > amd.CompareAlways {
		return fmt.Errorf("invalid alpha function %v", o.AlphaFunc)
	}
	return nil
}

func (o *Options) hardware() amd.Hardware {
	if o.Hardware != nil {
		return o.Hardware
	}
	return amd.DefaultHardware
}
