package video

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ivlev/frameseq"
)

func TestBuildFFmpegArgs(t *testing.T) {
	tests := []struct {
		name    string
		params  Params
		quality []string
	}{
		{"libx264", Params{FPS: 25, Encoder: "libx264", Quality: 23}, []string{"-crf", "23", "-preset", "medium"}},
		{"nvenc", Params{FPS: 25, Encoder: "h264_nvenc", Quality: 28}, []string{"-cq", "28"}},
		{"videotoolbox", Params{FPS: 25, Encoder: "h264_videotoolbox", Quality: 75}, []string{"-b:v", "7500k"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := buildFFmpegArgs(640, 320, "out.mp4", tt.params)
			joined := strings.Join(args, " ")
			assert.Contains(t, joined, "-video_size 640x320")
			assert.Contains(t, joined, "-framerate 25")
			assert.Contains(t, joined, "-c:v "+tt.params.Encoder)
			assert.Contains(t, joined, strings.Join(tt.quality, " "))
			assert.Equal(t, "out.mp4", args[len(args)-1])
		})
	}
}

func TestBuildFFmpegArgsDefaults(t *testing.T) {
	joined := strings.Join(buildFFmpegArgs(2, 2, "x.mp4", Params{}), " ")
	assert.Contains(t, joined, "-framerate 30")
	assert.Contains(t, joined, "-c:v libx264")
}

func TestWriteRawRGBA(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	img.SetRGBA(2, 2, color.RGBA{R: 1, G: 2, B: 3, A: 4})

	// a sub-image has a foreign stride and origin
	sub := img.SubImage(image.Rect(2, 2, 4, 3))
	var buf bytes.Buffer
	require.NoError(t, writeRawRGBA(&buf, sub))
	assert.Equal(t, []byte{1, 2, 3, 4, 0, 0, 0, 0}, buf.Bytes())

	buf.Reset()
	require.NoError(t, writeRawRGBA(&buf, img))
	assert.Len(t, buf.Bytes(), 4*4*4)
}

type failingWriter struct{ writes int }

func (w *failingWriter) Write(p []byte) (int, error) {
	w.writes++
	return 0, errors.New("broken pipe")
}

func TestWriteFramesDrainsAfterError(t *testing.T) {
	frames := make(chan *image.RGBA, 3)
	for i := 0; i < 3; i++ {
		frames <- image.NewRGBA(image.Rect(0, 0, 1, 1))
	}
	close(frames)

	w := &failingWriter{}
	n, err := writeFrames(context.Background(), w, frames)
	assert.Error(t, err)
	assert.Zero(t, n)
	assert.Equal(t, 1, w.writes)
	assert.Empty(t, frames)
}

// captureEncoder keeps the red channel of the centre pixel of every frame.
type captureEncoder struct {
	w, h int
	reds []uint8
}

func (c *captureEncoder) Encode(ctx context.Context, frames <-chan *image.RGBA, w, h int, _ string, _ Params) error {
	c.w, c.h = w, h
	for img := range frames {
		c.reds = append(c.reds, img.RGBAAt(w/2, h/2).R)
	}
	return nil
}

func numbered(_ context.Context, src string) (image.Image, error) {
	var n int
	if _, err := fmt.Sscanf(src, "f%d", &n); err != nil {
		return nil, err
	}
	img := image.NewRGBA(image.Rect(0, 0, 8, 4))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+3] = uint8(n*40), 0xff
	}
	return img, nil
}

func TestRecordPlaysOneTurn(t *testing.T) {
	opts := frameseq.DefaultOptions()
	opts.Images = []string{"f1", "f2", "f3", "f4", "f5"}
	opts.FPS = 10

	enc := &captureEncoder{}
	err := Record(context.Background(), Job{
		Options: opts,
		Loader:  frameseq.LoaderFunc(numbered),
		Width:   80,
		Height:  40,
		Output:  "turn.mp4",
		Params:  Params{FPS: 10},
		Log:     zerolog.Nop(),
	}, enc)
	require.NoError(t, err)

	assert.Equal(t, 80, enc.w)
	assert.Equal(t, 40, enc.h)
	require.Len(t, enc.reds, 5)
	for i, r := range enc.reds {
		assert.InDelta(t, (i+1)*40, int(r), 1, "frame %d", i+1)
	}
}

// indexed paints frame "fN" with red = N.
func indexed(_ context.Context, src string) (image.Image, error) {
	var n int
	if _, err := fmt.Sscanf(src, "f%d", &n); err != nil {
		return nil, err
	}
	img := image.NewRGBA(image.Rect(0, 0, 4, 2))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+3] = uint8(n), 0xff
	}
	return img, nil
}

func names(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("f%d", i+1)
	}
	return out
}

func TestRecordEmitsEachFrameOnce(t *testing.T) {
	tests := []struct {
		frames int
		fps    int
	}{
		{90, 30},
		{36, 24},
		{50, 60},
		{7, 30},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d@%d", tt.frames, tt.fps), func(t *testing.T) {
			opts := frameseq.DefaultOptions()
			opts.Images = names(tt.frames)

			enc := &captureEncoder{}
			err := Record(context.Background(), Job{
				Options: opts,
				Loader:  frameseq.LoaderFunc(indexed),
				Width:   4,
				Height:  2,
				Params:  Params{FPS: tt.fps},
				Log:     zerolog.Nop(),
			}, enc)
			require.NoError(t, err)

			require.Len(t, enc.reds, tt.frames)
			for i, r := range enc.reds {
				assert.Equal(t, uint8(i+1), r, "output frame %d", i)
			}
		})
	}
}

func TestRecordIgnoresFastPreview(t *testing.T) {
	opts := frameseq.DefaultOptions()
	opts.Images = names(10)
	opts.FastPreview = &frameseq.FastPreview{Images: []string{"f1", "f5"}}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	enc := &captureEncoder{}
	err := Record(ctx, Job{
		Options: opts,
		Loader:  frameseq.LoaderFunc(indexed),
		Width:   4,
		Height:  2,
		Params:  Params{FPS: 10},
		Log:     zerolog.Nop(),
	}, enc)
	require.NoError(t, err)
	assert.Len(t, enc.reds, 10)
	assert.NotNil(t, opts.FastPreview)
}

func TestRefreshAtCoversWholeFrames(t *testing.T) {
	assert.Equal(t, time.Duration(0), refreshAt(0, 30))
	assert.Equal(t, 33333334*time.Nanosecond, refreshAt(1, 30))
	assert.Equal(t, time.Second, refreshAt(30, 30))
	assert.Equal(t, 100*time.Millisecond, refreshAt(1, 10))
	for i := 1; i < 1000; i++ {
		assert.GreaterOrEqual(t, refreshAt(i, 30)*30, time.Duration(i)*time.Second)
	}
}

type failingEncoder struct{}

func (failingEncoder) Encode(context.Context, <-chan *image.RGBA, int, int, string, Params) error {
	return errors.New("ffmpeg start error")
}

func TestRecordStopsWhenEncoderFails(t *testing.T) {
	opts := frameseq.DefaultOptions()
	opts.Images = []string{"f1", "f2", "f3"}

	err := Record(context.Background(), Job{
		Options: opts,
		Loader:  frameseq.LoaderFunc(numbered),
		Width:   8,
		Height:  4,
		Log:     zerolog.Nop(),
	}, failingEncoder{})
	assert.EqualError(t, err, "ffmpeg start error")
}
