package imageprocessing

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
)

const JpegEncoderCommandName = "JpegEncoderCommand"

const defaultJpegQuality = 80

// JpegEncoderCommand re-encodes any decodable image as JPEG
type JpegEncoderCommand struct {
	name    string
	quality int
}

func NewJpegEncoderCommand(params map[string]any) (Command, error) {
	quality := getIntParam(params, "quality", defaultJpegQuality)
	if quality < 1 || quality > 100 {
		return nil, fmt.Errorf("quality must be between 1 and 100, got %d", quality)
	}

	return &JpegEncoderCommand{
		name:    JpegEncoderCommandName,
		quality: quality,
	}, nil
}

func (c *JpegEncoderCommand) Name() string {
	return c.name
}

func (c *JpegEncoderCommand) Execute(imageData []byte) ([]byte, error) {
	img, _, err := image.Decode(bytes.NewReader(imageData))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: c.quality}); err != nil {
		return nil, fmt.Errorf("failed to encode JPEG: %w", err)
	}
	return buf.Bytes(), nil
}

func (c *JpegEncoderCommand) GetQuality() int {
	return c.quality
}

func init() {
	mustRegister(JpegEncoderCommandName, NewJpegEncoderCommand)
}
