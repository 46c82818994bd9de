package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/ivlev/frameseq"
	"github.com/ivlev/frameseq/internal/host"
	"github.com/ivlev/frameseq/internal/host/ebitenhost"
	"github.com/ivlev/frameseq/internal/raster"
	"github.com/ivlev/frameseq/internal/source"
	"github.com/ivlev/frameseq/internal/system"
	"github.com/ivlev/frameseq/internal/video"
)

const usage = `usage: frameseq <command> [flags]

commands:
  view     play a sequence in a window
  export   record one turn of a sequence to mp4
  probe    print what a sequence source contains`

func main() {
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})

	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}

	var err error
	switch cmd, args := os.Args[1], os.Args[2:]; cmd {
	case "view":
		err = runView(args)
	case "export":
		err = runExport(args)
	case "probe":
		err = runProbe(args)
	case "-h", "-help", "--help", "help":
		fmt.Println(usage)
		return
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s\n", cmd, usage)
		os.Exit(2)
	}
	if err != nil {
		log.Fatal().Err(err).Msg("frameseq failed")
	}
}

func runView(args []string) error {
	fs, f := newFlags("view")
	width := fs.Int("width", 960, "window width")
	height := fs.Int("height", 540, "window height")
	if err := fs.Parse(args); err != nil {
		return err
	}
	setLevel(*f.debug)
	system.InitResourceLimits(log.Logger)

	opts, err := f.options(fs)
	if err != nil {
		return err
	}

	loop := host.NewLoop()
	surface := raster.New(*width, *height)
	player, err := frameseq.New(frameseq.Config{
		Host:    loop,
		Surface: surface,
		Log:     &log.Logger,
	}, opts, frameseq.Callbacks{
		FastPreloadFinished: func(p *frameseq.Player) {
			log.Info().Int("frames", p.TotalFrames()).Msg("preview ready")
		},
		PreloadFinished: func(p *frameseq.Player) {
			log.Info().Int("frames", p.TotalFrames()).Bool("with_errors", p.LoadedWithErrors()).Msg("all frames loaded")
		},
	})
	if err != nil {
		return err
	}
	defer player.Destroy()

	player.On(frameseq.EventLoadingProgress, func(e frameseq.Event) {
		log.Debug().Float64("progress", e.Progress).Msg("loading")
	})

	game := ebitenhost.New(loop, surface, player, log.Logger)
	return ebitenhost.Run(game, "frameseq", *width, *height)
}

func runExport(args []string) error {
	fs, f := newFlags("export")
	output := fs.String("output", "turn.mp4", "output video path")
	width := fs.Int("width", 1280, "video width")
	height := fs.Int("height", 720, "video height, recomputed from -ratio when set")
	quality := fs.Int("quality", 0, "0 picks per encoder (x264: CRF 1-51, VideoToolbox: Q*100 kbit/s)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	setLevel(*f.debug)
	system.InitResourceLimits(log.Logger)

	opts, err := f.options(fs)
	if err != nil {
		return err
	}

	encoderName, _ := system.GetBestH264Encoder()
	if encoderName != "libx264" {
		log.Info().Str("encoder", encoderName).Msg("hardware encoder found")
	}
	q := *quality
	if q == 0 {
		switch encoderName {
		case "h264_videotoolbox":
			q = 75
		case "h264_nvenc":
			q = 28
		default:
			q = 23
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	start := time.Now()
	err = video.Record(ctx, video.Job{
		Options: opts,
		Loader:  source.NewFileLoader(log.Logger),
		Width:   *width,
		Height:  *height,
		Output:  *output,
		Params:  video.Params{FPS: int(opts.FPS), Encoder: encoderName, Quality: q},
		Log:     log.Logger,
	}, &video.FFmpegEncoder{Log: log.Logger})
	if err != nil {
		return err
	}
	log.Info().Str("output", *output).Dur("took", time.Since(start)).Msg("export finished")
	return nil
}

func runProbe(args []string) error {
	fs, f := newFlags("probe")
	if err := fs.Parse(args); err != nil {
		return err
	}
	setLevel(*f.debug)
	if *f.input == "" {
		return errNoInput
	}

	ids, err := source.Identifiers(*f.input)
	if err != nil {
		return err
	}
	src, err := source.Open(*f.input)
	if err != nil {
		return err
	}
	defer src.Close()

	fmt.Printf("source:      %s\n", *f.input)
	fmt.Printf("frames:      %d\n", len(ids))
	if src.PageCount() > 0 {
		w, h, err := src.GetPageDimensions(0)
		if err != nil {
			return err
		}
		fmt.Printf("frame size:  %.0fx%.0f (ratio %.3f)\n", w, h, w/h)
	}
	if len(ids) > 0 {
		fmt.Printf("first:       %s\n", ids[0])
		fmt.Printf("last:        %s\n", ids[len(ids)-1])
	}
	fmt.Printf("concurrency: %d\n", system.LoadConcurrency())
	encoderName, _ := system.GetBestH264Encoder()
	fmt.Printf("encoder:     %s\n", encoderName)
	return nil
}

func setLevel(debug bool) {
	if debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}
