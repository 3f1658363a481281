package captcha

import (
	"bytes"
	"fmt"
	"image/color"

	"github.com/mojocn/base64Captcha"
)

// Generator produces a human-solvable text challenge and its image
// rendering. The expected text is returned to the caller for caching and
// must never reach the client.
type Generator interface {
	Generate() (text string, image []byte, err error)
}

// Ambiguous glyphs (0/O, 1/l/I) are excluded from the character source
const charSource = "23456789ABCDEFGHJKMNPQRSTUVWXYZ"

type ImageGenerator struct {
	driver *base64Captcha.DriverString
}

func NewImageGenerator() *ImageGenerator {
	driver := base64Captcha.NewDriverString(
		60, 170, 2,
		base64Captcha.OptionShowHollowLine,
		4,
		charSource,
		&color.RGBA{R: 254, G: 254, B: 254, A: 254},
		nil,
		nil,
	)
	return &ImageGenerator{driver: driver.ConvertFonts()}
}

func (g *ImageGenerator) Generate() (string, []byte, error) {
	_, content, answer := g.driver.GenerateIdQuestionAnswer()

	item, err := g.driver.DrawCaptcha(content)
	if err != nil {
		return "", nil, fmt.Errorf("failed to draw captcha: %w", err)
	}

	var buf bytes.Buffer
	if _, err := item.WriteTo(&buf); err != nil {
		return "", nil, fmt.Errorf("failed to encode captcha image: %w", err)
	}
	return answer, buf.Bytes(), nil
}
