package leveling

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	_ "image/jpeg"
	"image/png"
	"io"
	"net/http"
	"strings"
	"unicode"

	"github.com/code-wolf-byte/levelman/internal/progression"
	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	_ "golang.org/x/image/webp"
)

const (
	cardWidth     = 900
	cardHeight    = 300
	maxImageBytes = 5 << 20
)

// Card is everything drawn on a rank card.
type Card struct {
	Username   string
	Level      int
	XP         int64
	Threshold  int64
	Rank       progression.Rank
	Background string
	Avatar     string
}

// Renderer draws a rank card. An error means the caller shows the text
// profile instead.
type Renderer interface {
	Render(ctx context.Context, c Card) ([]byte, error)
}

// CardRenderer draws PNG cards from remote background and avatar images.
type CardRenderer struct {
	client *http.Client
}

func NewCardRenderer(client *http.Client) *CardRenderer {
	if client == nil {
		client = http.DefaultClient
	}
	return &CardRenderer{client: client}
}

func (r *CardRenderer) Render(ctx context.Context, c Card) ([]byte, error) {
	bg, err := r.fetch(ctx, c.Background)
	if err != nil {
		return nil, fmt.Errorf("background: %w", err)
	}

	canvas := image.NewRGBA(image.Rect(0, 0, cardWidth, cardHeight))
	xdraw.ApproxBiLinear.Scale(canvas, canvas.Bounds(), bg, bg.Bounds(), draw.Src, nil)
	draw.Draw(canvas, canvas.Bounds(), image.NewUniform(color.RGBA{A: 160}), image.Point{}, draw.Over)

	// The avatar is optional; the card is still useful without it.
	if avatar, err := r.fetch(ctx, c.Avatar); err == nil {
		drawAvatar(canvas, avatar, image.Rect(50, 50, 250, 250))
	}

	accent := rgb(c.Rank.Color)
	drawText(canvas, asciiOnly(c.Username), 290, 50, 4, color.White)
	drawText(canvas, asciiOnly(c.Rank.Name), 290, 110, 3, accent)
	drawText(canvas, fmt.Sprintf("LEVEL %d", c.Level), 290, 160, 3, color.White)
	drawText(canvas, fmt.Sprintf("%d / %d XP", c.XP, c.Threshold), 600, 160, 2, color.White)
	drawProgress(canvas, image.Rect(290, 210, 850, 245), c.XP, c.Threshold, accent)

	var buf bytes.Buffer
	if err := png.Encode(&buf, canvas); err != nil {
		return nil, fmt.Errorf("encode card: %w", err)
	}
	return buf.Bytes(), nil
}

func (r *CardRenderer) fetch(ctx context.Context, url string) (image.Image, error) {
	if url == "" {
		return nil, fmt.Errorf("no image url")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: status %d", url, resp.StatusCode)
	}
	img, _, err := image.Decode(io.LimitReader(resp.Body, maxImageBytes))
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", url, err)
	}
	return img, nil
}

func rgb(c int) color.RGBA {
	return color.RGBA{R: uint8(c >> 16), G: uint8(c >> 8), B: uint8(c), A: 255}
}

// asciiOnly drops what the bitmap font cannot draw, emoji included.
func asciiOnly(s string) string {
	return strings.TrimSpace(strings.Map(func(r rune) rune {
		if r > unicode.MaxASCII || !unicode.IsPrint(r) {
			return -1
		}
		return r
	}, s))
}

// drawText writes s with its top-left corner at (x, y), magnified by scale.
func drawText(dst draw.Image, s string, x, y, scale int, c color.Color) {
	if s == "" {
		return
	}
	face := basicfont.Face7x13
	w := font.MeasureString(face, s).Ceil()
	h := face.Height

	glyphs := image.NewRGBA(image.Rect(0, 0, w, h))
	d := &font.Drawer{
		Dst:  glyphs,
		Src:  image.NewUniform(c),
		Face: face,
		Dot:  fixed.P(0, face.Ascent),
	}
	d.DrawString(s)

	xdraw.NearestNeighbor.Scale(dst, image.Rect(x, y, x+w*scale, y+h*scale), glyphs, glyphs.Bounds(), draw.Over, nil)
}

func drawProgress(dst draw.Image, r image.Rectangle, xp, threshold int64, c color.Color) {
	draw.Draw(dst, r, image.NewUniform(color.RGBA{R: 60, G: 60, B: 60, A: 255}), image.Point{}, draw.Src)
	if threshold <= 0 || xp <= 0 {
		return
	}
	if xp > threshold {
		xp = threshold
	}
	fill := r
	fill.Max.X = r.Min.X + int(int64(r.Dx())*xp/threshold)
	draw.Draw(dst, fill, image.NewUniform(c), image.Point{}, draw.Src)
}

func drawAvatar(dst draw.Image, avatar image.Image, r image.Rectangle) {
	scaled := image.NewRGBA(image.Rect(0, 0, r.Dx(), r.Dy()))
	xdraw.ApproxBiLinear.Scale(scaled, scaled.Bounds(), avatar, avatar.Bounds(), draw.Src, nil)
	draw.DrawMask(dst, r, scaled, image.Point{}, &circle{r: r.Dx() / 2}, image.Point{}, draw.Over)
}

// circle is an alpha mask of a disc inscribed in a 2r square.
type circle struct {
	r int
}

func (c *circle) ColorModel() color.Model { return color.AlphaModel }

func (c *circle) Bounds() image.Rectangle { return image.Rect(0, 0, 2*c.r, 2*c.r) }

func (c *circle) At(x, y int) color.Color {
	dx, dy := x-c.r, y-c.r
	if dx*dx+dy*dy <= c.r*c.r {
		return color.Alpha{A: 255}
	}
	return color.Alpha{}
}
