// Command drift is a small demonstration player: it loads the file
// configuration, queues the audio files given on the command line and
// plays them with crossfades until the playlist ends or the process is
// interrupted.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	drift "github.com/evenfall/drift"
	"github.com/evenfall/drift/internal/config"
	"github.com/evenfall/drift/internal/logger"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintf(os.Stderr, "usage: %s <audio files...>\n", os.Args[0])
		os.Exit(2)
	}

	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run(paths []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := logger.Init(logger.Config{
		Level:      logger.Level(cfg.Log.Level),
		OutputPath: cfg.Log.Path,
	}); err != nil {
		return err
	}
	defer logger.Sync()

	playerCfg := toPlayerConfig(cfg)
	player, err := drift.New(playerCfg)
	if err != nil {
		return err
	}
	defer player.Close()

	tracks := make([]drift.Track, len(paths))
	for i, p := range paths {
		tracks[i] = drift.Track{URI: p}
	}
	if err := player.LoadPlaylist(tracks); err != nil {
		return err
	}
	if err := player.StartPlaying(time.Second); err != nil {
		return err
	}

	sub := player.Subscribe()
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)

	for {
		select {
		case <-sigs:
			fmt.Println("\nstopping")
			return player.Stop(time.Second)
		case sc := <-sub.StateChanged:
			fmt.Printf("state: %s\n", sc.Current)
			if sc.Current == drift.StateFinished {
				return nil
			}
			if sc.Current == drift.StateFailed {
				return sc.Err
			}
		case track := <-sub.TrackChanged:
			title := track.Title
			if title == "" {
				title = track.URI
			}
			fmt.Printf("now playing: %s (%s)\n", title, track.Duration.Round(time.Second))
		case pos := <-sub.PositionChanged:
			fmt.Printf("\r%s / %s ", pos.Position.Round(time.Second), pos.Duration.Round(time.Second))
		}
	}
}

func toPlayerConfig(cfg *config.Config) drift.Config {
	out := drift.DefaultConfig()
	out.CrossfadeDuration = time.Duration(cfg.CrossfadeDuration * float64(time.Second))
	out.Volume = cfg.Volume
	out.Normalize = cfg.Normalization.Enabled
	out.TargetLUFS = cfg.Normalization.TargetLUFS
	out.CeilingDBTP = cfg.Normalization.CeilingDBTP
	out.CacheEntries = cfg.Cache.MaxEntries
	out.FileLoadTimeout = cfg.LoadTimeout()

	switch cfg.FadeCurve {
	case "linear":
		out.FadeCurve = drift.CurveLinear
	case "easePower":
		out.FadeCurve = drift.CurveEasePower
	case "easeIn":
		out.FadeCurve = drift.CurveEaseIn
	case "easeOut":
		out.FadeCurve = drift.CurveEaseOut
	default:
		out.FadeCurve = drift.CurveEqualPower
	}
	switch cfg.RepeatMode {
	case "singleTrack":
		out.RepeatMode = drift.RepeatSingleTrack
	case "playlist":
		out.RepeatMode = drift.RepeatPlaylist
	}
	if cfg.SessionMode == "external" {
		out.SessionMode = drift.SessionExternal
	}
	return out
}
