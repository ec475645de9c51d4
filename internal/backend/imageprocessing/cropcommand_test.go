package imageprocessing

import (
	"testing"
)

func TestNewCropCommand_InvalidParams(t *testing.T) {
	tests := []struct {
		name   string
		params map[string]any
	}{
		{"Missing width", map[string]any{"height": 10}},
		{"Missing height", map[string]any{"width": 10}},
		{"Zero width", map[string]any{"width": 0, "height": 10}},
		{"Negative height", map[string]any{"width": 10, "height": -1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewCropCommand(tt.params); err == nil {
				t.Error("Expected error")
			}
		})
	}
}

func TestCropCommand_Execute(t *testing.T) {
	tests := []struct {
		name       string
		params     map[string]any
		wantWidth  int
		wantHeight int
	}{
		{"center square", map[string]any{"width": 60, "height": 60}, 60, 60},
		{"limited to image size", map[string]any{"width": 500, "height": 40}, 120, 40},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			command, err := NewCropCommand(tt.params)
			if err != nil {
				t.Fatalf("NewCropCommand error: %v", err)
			}
			out, err := command.Execute(createTestPNG(t, 120, 80))
			if err != nil {
				t.Fatalf("Execute error: %v", err)
			}
			w, h, format := decodeSize(t, out)
			if format != "png" || w != tt.wantWidth || h != tt.wantHeight {
				t.Errorf("Expected %dx%d png, got %dx%d %s", tt.wantWidth, tt.wantHeight, w, h, format)
			}
		})
	}
}

func TestSquareThumbnailPipeline(t *testing.T) {
	out, err := ExecuteCommands(createTestJPEG(t, 400, 300), []CommandConfig{
		{Name: CropCommandName, Params: map[string]any{"width": 300, "height": 300}},
		{Name: PixelScaleCommandName, Params: map[string]any{"width": 100}},
	})
	if err != nil {
		t.Fatalf("ExecuteCommands error: %v", err)
	}
	w, h, _ := decodeSize(t, out)
	if w != 100 || h != 100 {
		t.Errorf("Expected 100x100, got %dx%d", w, h)
	}
}
