package imageprocessing

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"log/slog"

	"golang.org/x/image/draw"
)

const CropCommandName = "CropCommand"

// CropParams represents typed parameters for crop command
type CropParams struct {
	Height int
	Width  int
}

// NewCropParamsFromMap creates CropParams from a generic map
func NewCropParamsFromMap(params map[string]any) (*CropParams, error) {
	for _, key := range []string{"height", "width"} {
		if _, ok := params[key]; !ok {
			return nil, fmt.Errorf("missing required parameter: %s", key)
		}
	}

	height := getIntParam(params, "height", 0)
	width := getIntParam(params, "width", 0)
	if height <= 0 {
		return nil, fmt.Errorf("height must be positive, got %d", height)
	}
	if width <= 0 {
		return nil, fmt.Errorf("width must be positive, got %d", width)
	}

	return &CropParams{
		Height: height,
		Width:  width,
	}, nil
}

// CropCommand cuts the center region of the configured size out of an image.
// Dimensions larger than the image are limited to the image size.
type CropCommand struct {
	name   string
	params *CropParams
}

// NewCropCommand creates a new crop command from configuration parameters
func NewCropCommand(params map[string]any) (Command, error) {
	typedParams, err := NewCropParamsFromMap(params)
	if err != nil {
		return nil, err
	}

	return &CropCommand{
		name:   CropCommandName,
		params: typedParams,
	}, nil
}

func (c *CropCommand) Name() string {
	return c.name
}

// Execute crops the image to the configured dimensions and emits PNG
func (c *CropCommand) Execute(imageData []byte) ([]byte, error) {
	img, _, err := image.Decode(bytes.NewReader(imageData))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	bounds := img.Bounds()
	cropWidth := min(c.params.Width, bounds.Dx())
	cropHeight := min(c.params.Height, bounds.Dy())
	x0 := bounds.Min.X + (bounds.Dx()-cropWidth)/2
	y0 := bounds.Min.Y + (bounds.Dy()-cropHeight)/2

	slog.Debug("CropCommand: performing center crop",
		"original_width", bounds.Dx(),
		"original_height", bounds.Dy(),
		"crop_x", x0,
		"crop_y", y0,
		"crop_width", cropWidth,
		"crop_height", cropHeight)

	cropped := image.NewRGBA(image.Rect(0, 0, cropWidth, cropHeight))
	draw.Copy(cropped, image.Point{}, img, image.Rect(x0, y0, x0+cropWidth, y0+cropHeight), draw.Src, nil)

	var buf bytes.Buffer
	if err := png.Encode(&buf, cropped); err != nil {
		return nil, fmt.Errorf("failed to encode cropped image: %w", err)
	}
	return buf.Bytes(), nil
}

// GetParams returns the typed parameters
func (c *CropCommand) GetParams() *CropParams {
	return c.params
}

func init() {
	mustRegister(CropCommandName, NewCropCommand)
}
