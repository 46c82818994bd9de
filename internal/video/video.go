// Package video records a player into an mp4 through ffmpeg.
package video

import (
	"context"
	"fmt"
	"image"
	"image/draw"
	"io"
	"os/exec"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/ivlev/frameseq/internal/system"
)

// Params control the encoded stream.
type Params struct {
	// FPS is the output frame rate.
	FPS int
	// Encoder is an ffmpeg video encoder; system.GetBestH264Encoder picks one.
	Encoder string
	// Quality is crf/cq for libx264 and nvenc, hundreds of kbit/s for
	// videotoolbox.
	Quality int
}

// VideoEncoder consumes frames of one size until frames is closed.
type VideoEncoder interface {
	Encode(ctx context.Context, frames <-chan *image.RGBA, w, h int, videoPath string, params Params) error
}

type FFmpegEncoder struct {
	Log zerolog.Logger
}

// Encode streams raw RGBA frames to ffmpeg's stdin. Frames are handed back
// to the system image pool once written.
func (e *FFmpegEncoder) Encode(ctx context.Context, frames <-chan *image.RGBA, w, h int, videoPath string, params Params) error {
	args := buildFFmpegArgs(w, h, videoPath, params)
	e.Log.Debug().Strs("args", args).Msg("starting ffmpeg")

	cmd := exec.CommandContext(ctx, "ffmpeg", args...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("stdin pipe error: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("ffmpeg start error: %w", err)
	}

	n, werr := writeFrames(ctx, stdin, frames)
	stdin.Close()
	if err := cmd.Wait(); err != nil {
		return fmt.Errorf("ffmpeg wait error: %w", err)
	}
	if werr != nil {
		return fmt.Errorf("write raw error: %w", werr)
	}
	e.Log.Info().Int("frames", n).Str("output", videoPath).Msg("video written")
	return nil
}

// writeFrames drains frames into w. After a write error the rest of the
// channel is still drained so the producer never blocks.
func writeFrames(ctx context.Context, w io.Writer, frames <-chan *image.RGBA) (int, error) {
	var err error
	n := 0
	for img := range frames {
		if err == nil {
			if err = ctx.Err(); err == nil {
				err = writeRawRGBA(w, img)
			}
			if err == nil {
				n++
			}
		}
		system.PutImage(img)
	}
	return n, err
}

func buildFFmpegArgs(w, h int, videoPath string, params Params) []string {
	fps := params.FPS
	if fps <= 0 {
		fps = 30
	}
	encoder := params.Encoder
	if encoder == "" {
		encoder = "libx264"
	}
	args := []string{
		"-y",
		"-f", "rawvideo",
		"-pixel_format", "rgba",
		"-video_size", fmt.Sprintf("%dx%d", w, h),
		"-framerate", strconv.Itoa(fps),
		"-i", "-",
		// yuv420p needs even dimensions
		"-vf", "scale=trunc(iw/2)*2:trunc(ih/2)*2",
		"-pix_fmt", "yuv420p",
		"-c:v", encoder,
	}

	// quality flags depend on the encoder
	switch encoder {
	case "h264_videotoolbox":
		bitrate := params.Quality * 100
		args = append(args, "-b:v", fmt.Sprintf("%dk", bitrate))
	case "h264_nvenc":
		args = append(args, "-cq", strconv.Itoa(params.Quality))
	default: // libx264
		args = append(args, "-crf", strconv.Itoa(params.Quality), "-preset", "medium")
	}

	return append(args, videoPath)
}

func writeRawRGBA(w io.Writer, img image.Image) error {
	bounds := img.Bounds()
	rgba, ok := img.(*image.RGBA)
	if !ok || rgba.Stride != bounds.Dx()*4 || rgba.Rect.Min.X != 0 || rgba.Rect.Min.Y != 0 {
		rgba = image.NewRGBA(image.Rectangle{Max: bounds.Size()})
		draw.Draw(rgba, rgba.Bounds(), img, bounds.Min, draw.Src)
	}
	_, err := w.Write(rgba.Pix[:bounds.Dx()*bounds.Dy()*4])
	return err
}
