package leveling

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/code-wolf-byte/levelman/internal/progression"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixturePNG(t *testing.T, w, h int, c color.Color) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func imageServer(t *testing.T) *httptest.Server {
	t.Helper()
	bg := fixturePNG(t, 64, 32, color.RGBA{R: 20, G: 80, B: 160, A: 255})
	avatar := fixturePNG(t, 16, 16, color.RGBA{R: 200, A: 255})

	mux := http.NewServeMux()
	mux.HandleFunc("/bg.png", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		w.Write(bg)
	})
	mux.HandleFunc("/avatar.png", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		w.Write(avatar)
	})
	mux.HandleFunc("/broken.png", func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("not an image"))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestCardRenderer_Render(t *testing.T) {
	srv := imageServer(t)
	r := NewCardRenderer(srv.Client())

	out, err := r.Render(context.Background(), Card{
		Username:   "neo",
		Level:      5,
		XP:         200,
		Threshold:  progression.XPRequired(5),
		Rank:       progression.RankFor(5),
		Background: srv.URL + "/bg.png",
		Avatar:     srv.URL + "/avatar.png",
	})
	require.NoError(t, err)

	img, err := png.Decode(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, cardWidth, cardHeight), img.Bounds())
}

func TestCardRenderer_MissingAvatarStillRenders(t *testing.T) {
	srv := imageServer(t)
	r := NewCardRenderer(srv.Client())

	_, err := r.Render(context.Background(), Card{
		Username:   "neo",
		Rank:       progression.RankFor(0),
		Threshold:  progression.XPRequired(0),
		Background: srv.URL + "/bg.png",
		Avatar:     srv.URL + "/missing.png",
	})
	assert.NoError(t, err)
}

func TestCardRenderer_BackgroundFailure(t *testing.T) {
	srv := imageServer(t)
	r := NewCardRenderer(srv.Client())

	for name, bg := range map[string]string{
		"not found": srv.URL + "/missing.png",
		"not image": srv.URL + "/broken.png",
		"empty":     "",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := r.Render(context.Background(), Card{Background: bg, Rank: progression.RankFor(0)})
			assert.Error(t, err)
		})
	}
}

func TestAsciiOnly(t *testing.T) {
	assert.Equal(t, "Cyber God", asciiOnly("👑 Cyber God"))
	assert.Equal(t, "", asciiOnly("🔥"))
	assert.Equal(t, "neo_42", asciiOnly("neo_42"))
}
