// Command phonod runs the playback core as a standalone daemon: it loads
// the configuration, builds the chunk pool, the outputs and the player, and
// then serves until a signal arrives. The client protocol front end is a
// separate concern wired on top of the player control.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	flag "github.com/spf13/pflag"

	"github.com/pipelined/phonod"
	"github.com/pipelined/phonod/buffer"
	"github.com/pipelined/phonod/config"
	"github.com/pipelined/phonod/event"
	"github.com/pipelined/phonod/log"
	"github.com/pipelined/phonod/output"
	"github.com/pipelined/phonod/player"

	// bundled decoder plugins
	_ "github.com/pipelined/phonod/decoder/plugins/aiffdec"
	_ "github.com/pipelined/phonod/decoder/plugins/flacdec"
	_ "github.com/pipelined/phonod/decoder/plugins/mp3dec"
	_ "github.com/pipelined/phonod/decoder/plugins/pcmdec"
	_ "github.com/pipelined/phonod/decoder/plugins/wavdec"

	// bundled output plugins
	_ "github.com/pipelined/phonod/output/plugins/nullout"
	_ "github.com/pipelined/phonod/output/plugins/otoout"
	_ "github.com/pipelined/phonod/output/plugins/portaudioout"
	_ "github.com/pipelined/phonod/output/plugins/recorderout"
	_ "github.com/pipelined/phonod/output/plugins/writerout"
)

func main() {
	var (
		configPath = flag.StringP("config", "c", "", "configuration file")
		verbose    = flag.BoolP("verbose", "v", false, "debug logging")
		playURI    = flag.String("play", "", "start playing this URI immediately")
	)
	flag.Parse()

	log.SetDebug(*verbose)
	logger := log.GetLogger()

	cfg := config.Default()
	if *configPath != "" {
		var err error
		cfg, err = config.Load(*configPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
	}

	pool := buffer.NewPool(cfg.PoolChunks())
	logger.WithField("chunks", pool.Capacity()).Debug("chunk pool ready")

	outs := make([]*output.Output, 0, len(cfg.Outputs))
	for _, oc := range cfg.Outputs {
		o, err := output.New(oc, cfg.OutputFormat(), cfg.ReplayGainConfig())
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		outs = append(outs, o)
	}
	group := output.NewGroup(pool, outs...)
	group.EnableDisable()

	pc := player.NewControl(pool, group, nil, player.Options{
		BufferedBeforePlay: cfg.BufferedBeforePlay,
		CrossFade: player.CrossFadeSettings{
			Duration:     cfg.CrossFade(),
			MixRampDb:    cfg.MixRampDb,
			MixRampDelay: cfg.MixRampDelay(),
			Abort:        cfg.MixRampAbort,
		},
	})

	// the reactor serves the non-audio side: signals, timers, deferred
	// work injected by front ends
	loop := event.New()

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigc
		loop.Inject(loop.Break)
	}()

	if *verbose {
		var tick func()
		tick = func() {
			st := pc.Status()
			logger.WithField("state", st.State.String()).
				WithField("elapsed", st.Elapsed.Round(time.Millisecond)).
				Debug("transport")
			loop.Schedule(5*time.Second, tick)
		}
		loop.Schedule(5*time.Second, tick)
	}

	if *playURI != "" {
		uri := *playURI
		loop.Inject(func() {
			pc.Play(phonod.NewSong(uri))
		})
	}

	logger.Info("phonod ready")
	loop.Run()

	logger.Info("phonod shutting down")
	pc.Exit()
	group.Kill()
}
