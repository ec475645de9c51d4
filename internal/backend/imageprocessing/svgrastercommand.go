package imageprocessing

import (
	"bytes"
	"fmt"
	"image"
	"image/draw"
	"image/png"

	"github.com/srwiley/oksvg"
	"github.com/srwiley/rasterx"
)

const SvgRasterCommandName = "SvgRasterCommand"

// SvgRasterCommand renders SVG input into a PNG of a fixed size on a transparent canvas
type SvgRasterCommand struct {
	name   string
	width  int
	height int
}

func NewSvgRasterCommand(params map[string]any) (Command, error) {
	width := getIntParam(params, "width", 0)
	height := getIntParam(params, "height", width)
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid target dimensions for SVG rendering: %dx%d", width, height)
	}

	return &SvgRasterCommand{
		name:   SvgRasterCommandName,
		width:  width,
		height: height,
	}, nil
}

func (c *SvgRasterCommand) Name() string {
	return c.name
}

func (c *SvgRasterCommand) Execute(svgData []byte) ([]byte, error) {
	if !isSVGData(svgData) {
		return nil, fmt.Errorf("input is not an SVG document")
	}

	icon, err := oksvg.ReadIconStream(bytes.NewReader(svgData))
	if err != nil {
		return nil, fmt.Errorf("failed to parse SVG: %w", err)
	}
	icon.SetTarget(0, 0, float64(c.width), float64(c.height))

	dst := image.NewRGBA(image.Rect(0, 0, c.width, c.height))
	draw.Draw(dst, dst.Bounds(), image.Transparent, image.Point{}, draw.Src)

	scanner := rasterx.NewScannerGV(c.width, c.height, dst, dst.Bounds())
	dasher := rasterx.NewDasher(c.width, c.height, scanner)
	icon.Draw(dasher, 1.0)

	var buf bytes.Buffer
	if err := png.Encode(&buf, dst); err != nil {
		return nil, fmt.Errorf("failed to encode rendered SVG as PNG: %w", err)
	}
	return buf.Bytes(), nil
}

// isSVGData performs a lightweight detection of SVG content from raw bytes.
// Only the first ~4KB are inspected.
func isSVGData(data []byte) bool {
	n := len(data)
	if n == 0 {
		return false
	}
	if n > 4096 {
		n = 4096
	}
	header := bytes.ToLower(data[:n])
	return bytes.Contains(header, []byte("<svg"))
}

func init() {
	mustRegister(SvgRasterCommandName, NewSvgRasterCommand)
}
