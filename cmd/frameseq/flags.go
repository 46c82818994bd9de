package main

import (
	"errors"
	"flag"

	"github.com/rs/zerolog/log"

	"github.com/ivlev/frameseq/internal/config"
	"github.com/ivlev/frameseq/internal/source"
)

var errNoInput = errors.New("no input: pass -input or list images in the config file")

// playerFlags are shared by every command. Only flags given on the command
// line override the config file and the environment.
type playerFlags struct {
	input    *string
	config   *string
	debug    *bool
	preview  *int
	fps      *float64
	loop     *bool
	autoplay *bool
	reverse  *bool
	drag     *bool
	invert   *bool
	fill     *string
	ratio    *float64
	poster   *string
	preload  *string
}

func newFlags(name string) (*flag.FlagSet, *playerFlags) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	f := &playerFlags{
		input:    fs.String("input", "", "image directory, PDF or single image"),
		config:   fs.String("config", "", "yaml options file"),
		debug:    fs.Bool("debug", false, "debug logging"),
		preview:  fs.Int("preview", 0, "show every Nth frame while the rest loads (0 disables)"),
		fps:      fs.Float64("fps", 30, "frames per second"),
		loop:     fs.Bool("loop", true, "wrap around at the ends"),
		autoplay: fs.Bool("autoplay", false, "start playing once loaded"),
		reverse:  fs.Bool("reverse", false, "play backwards"),
		drag:     fs.Bool("drag", true, "turn the sequence with mouse or touch"),
		invert:   fs.Bool("invert", false, "invert drag direction"),
		fill:     fs.String("fill", config.FillCover, "fill mode: cover or contain"),
		ratio:    fs.Float64("ratio", 0, "surface aspect ratio, 0 uses the first frame"),
		poster:   fs.String("poster", "", "image shown until the first frame is drawn"),
		preload:  fs.String("preload", config.PreloadAll, "all, partial or none"),
	}
	return fs, f
}

// options merges the config file, FRAMESEQ_* variables and explicit flags,
// in that order.
func (f *playerFlags) options(fs *flag.FlagSet) (config.Options, error) {
	opts := config.Default()
	if *f.config != "" {
		loaded, err := config.Load(*f.config)
		if err != nil {
			return opts, err
		}
		opts = *loaded
	}
	if err := config.ApplyEnv(&opts); err != nil {
		return opts, err
	}

	fs.Visit(func(fl *flag.Flag) {
		switch fl.Name {
		case "fps":
			opts.FPS = *f.fps
		case "loop":
			opts.Loop = *f.loop
		case "autoplay":
			opts.Autoplay = *f.autoplay
		case "reverse":
			opts.Reverse = *f.reverse
		case "drag":
			opts.Draggable = *f.drag
		case "invert":
			opts.Inversion = *f.invert
		case "fill":
			opts.FillMode = *f.fill
		case "ratio":
			opts.Ratio = *f.ratio
		case "poster":
			opts.Poster = *f.poster
		case "preload":
			opts.Preload = *f.preload
		}
	})

	if *f.input != "" {
		ids, err := source.Identifiers(*f.input)
		if err != nil {
			return opts, err
		}
		opts.Images = ids
	}
	if len(opts.Images) == 0 {
		return opts, errNoInput
	}
	if *f.preview > 1 {
		preview, match := source.EveryNth(opts.Images, *f.preview)
		opts.FastPreview = &config.FastPreview{Images: preview, MatchFrame: match}
	}

	log.Debug().
		Int("images", len(opts.Images)).
		Float64("fps", opts.FPS).
		Str("preload", opts.Preload).
		Msg("options resolved")
	return opts, opts.Validate()
}
