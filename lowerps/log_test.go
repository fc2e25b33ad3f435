package lowerps

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/gogpu/radeon/amd"
	"github.com/gogpu/radeon/ir"
)

func TestNopHandler(t *testing.T) {
	h := nopHandler{}
	for _, level := range []slog.Level{slog.LevelDebug, slog.LevelInfo, slog.LevelWarn, slog.LevelError} {
		if h.Enabled(context.Background(), level) {
			t.Errorf("nopHandler.Enabled(%v) = true, want false", level)
		}
	}
	if err := h.Handle(context.Background(), slog.Record{}); err != nil {
		t.Errorf("nopHandler.Handle() = %v, want nil", err)
	}
	if _, ok := h.WithAttrs([]slog.Attr{slog.String("key", "val")}).(nopHandler); !ok {
		t.Error("nopHandler.WithAttrs() did not return nopHandler")
	}
	if _, ok := h.WithGroup("group").(nopHandler); !ok {
		t.Error("nopHandler.WithGroup() did not return nopHandler")
	}
}

func TestLowerDebugRecords(t *testing.T) {
	var buf bytes.Buffer
	SetLogger(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))
	t.Cleanup(func() { SetLogger(nil) })

	shader, b := newShader(t)
	storeInIf(b)
	storeColor(b, ir.FragResultData0, 0, ir.TypeFloat32, 0xf)
	opts := DefaultOptions()
	opts.ForcePerspSampleInterp = true
	lower(t, shader, opts)

	empty, _ := newShader(t)
	opts = DefaultOptions()
	opts.GfxLevel = amd.GFX9
	lower(t, empty, opts)

	out := buf.String()
	for _, want := range []string{
		`msg="lowerps: interpolation temporary" name=persp_center`,
		`msg="lowerps: gathered output"`,
		"nested=true",
		`msg="lowerps: output temporary" name=color0_x`,
		`msg="lowerps: color export" output=0 target=0`,
		`msg="lowerps: null export" target=9`,
		`msg="lowerps: lowered outputs"`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("log output missing %q:\n%s", want, out)
		}
	}
}

func TestSetLoggerNilRestoresSilent(t *testing.T) {
	SetLogger(slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)))
	SetLogger(nil)
	if Logger().Enabled(context.Background(), slog.LevelError) {
		t.Error("SetLogger(nil) did not restore the silent logger")
	}
}
