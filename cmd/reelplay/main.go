// Command reelplay is a terminal playback driver for the reel engine: it
// loads a project file, plays its active composition against the real
// worker pool and frame cache, and reports playback state on a status
// line. It exists as the reference host — everything it does goes through
// the same Player facade a graphical host would use.
package main

import (
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"golang.org/x/term"

	"github.com/reelengine/reel"
	"github.com/reelengine/reel/cache"
	"github.com/reelengine/reel/event"
	"github.com/reelengine/reel/memmgr"
	"github.com/reelengine/reel/preload"
	"github.com/reelengine/reel/serialize"
)

func main() {
	projectPath := flag.String("project", "", "project file to open")
	configPath := flag.String("config", "reel.toml", "engine configuration file")
	scriptPath := flag.String("script", "", "JSON playback script to run instead of interactive keys")
	metricsAddr := flag.String("metrics", "", "address to serve Prometheus metrics on (e.g. :9090)")
	verbose := flag.Bool("v", false, "debug logging")
	flag.Parse()

	logger := logrus.New()
	logger.SetOutput(os.Stderr)
	if *verbose {
		logger.SetLevel(logrus.DebugLevel)
	} else {
		logger.SetLevel(logrus.WarnLevel)
	}
	log := logrus.NewEntry(logger)

	if err := run(*projectPath, *configPath, *scriptPath, *metricsAddr, logger, log); err != nil {
		fmt.Fprintln(os.Stderr, "reelplay:", err)
		os.Exit(1)
	}
}

func run(projectPath, configPath, scriptPath, metricsAddr string, logger *logrus.Logger, log *logrus.Entry) error {
	cfg, err := serialize.LoadConfig(configPath, log)
	if err != nil {
		return err
	}

	mem := memmgr.New(cfg.CacheMemoryPercent/100, cfg.ReserveSystemMemoryGB, log)
	strategy := cache.KeepAll
	if cfg.CacheStrategy == "LastOnly" {
		strategy = cache.LastOnly
	}
	c := cache.New(mem, strategy, log)
	project := reel.NewProject(mem, c, log)

	if projectPath != "" {
		data, err := os.ReadFile(projectPath)
		if err != nil {
			return err
		}
		if err := serialize.Load(data, project); err != nil {
			return err
		}
	} else {
		seedDemoProject(project)
	}

	backend := reel.BackendCPU
	if cfg.CompositorBackend == "Gpu" {
		backend = reel.BackendGPU
	}
	player := reel.NewPlayer(project, reel.Options{
		PreloadRadius:   cfg.PreloadRadius,
		PreloadStrategy: preload.Spiral,
		FPSBase:         cfg.FPSBase,
		Backend:         backend,
		Logger:          logger,
	})
	defer player.Close()

	if err := player.WatchSequenceDirs(); err != nil {
		log.WithError(err).Warn("sequence-directory watching unavailable")
	}

	if metricsAddr != "" {
		if _, err := reel.NewMetrics(nil, c, mem, player.Pool()); err == nil {
			go func() {
				http.Handle("/metrics", promhttp.Handler())
				if err := http.ListenAndServe(metricsAddr, nil); err != nil {
					log.WithError(err).Warn("metrics server stopped")
				}
			}()
		}
	}

	if scriptPath != "" {
		return runScripted(player, scriptPath)
	}
	return runInteractive(player, c)
}

// seedDemoProject populates an empty project with a comp and a text slate
// so launching reelplay with no arguments still shows the engine working.
func seedDemoProject(p *reel.Project) {
	comp := reel.NewComposition(1280, 720, 0, 119, 24)
	slate := reel.NewText("reel engine demo", "", 48)
	_ = p.AddNode(comp)
	_ = p.AddNode(slate)
	_, _ = p.AddLayer(comp.ID, slate.ID, 0, 119, 1)
}

func runScripted(player *reel.Player, scriptPath string) error {
	data, err := os.ReadFile(scriptPath)
	if err != nil {
		return err
	}
	runner, err := reel.LoadScript(data)
	if err != nil {
		return err
	}

	tick := time.NewTicker(time.Second / 60)
	defer tick.Stop()
	for now := range tick.C {
		player.Update(now)
		runner.Step(player)
		if runner.Done() {
			return nil
		}
	}
	return nil
}

func runInteractive(player *reel.Player, c *cache.Cache) error {
	fd := int(os.Stdin.Fd())
	oldState, err := term.MakeRaw(fd)
	if err != nil {
		return fmt.Errorf("raw terminal: %w", err)
	}
	defer term.Restore(fd, oldState)

	fmt.Print("space=play/pause  ,/.=step  [/]=edge  0=start  s=screenshot  l=loop  q=quit\r\n")

	keys := make(chan byte, 8)
	go func() {
		buf := make([]byte, 1)
		for {
			if n, err := os.Stdin.Read(buf); err != nil || n == 0 {
				close(keys)
				return
			}
			keys <- buf[0]
		}
	}()

	loop := false
	tick := time.NewTicker(time.Second / 60)
	defer tick.Stop()

	for {
		select {
		case now := <-tick.C:
			player.Update(now)
			printStatus(player, c)
		case k, ok := <-keys:
			if !ok {
				return nil
			}
			switch k {
			case 'q', 3: // ctrl-c
				fmt.Print("\r\n")
				return nil
			case ' ':
				if player.Clock().IsPlaying() {
					player.Bus().EmitImmediate(event.Pause{})
				} else {
					player.Bus().EmitImmediate(event.Play{})
				}
			case '.':
				player.Clock().Step(1)
			case ',':
				player.Clock().Step(-1)
			case '[':
				player.Clock().JumpPrevEdge()
			case ']':
				player.Clock().JumpNextEdge()
			case '0':
				player.Clock().ToStart()
			case 'l':
				loop = !loop
				player.Clock().SetLoopEnabled(loop)
			case 's':
				if f, ok := player.CurrentFrame(); ok {
					if path, err := reel.SaveFramePNG(f, "screenshots", "reelplay"); err == nil {
						fmt.Printf("\r\nsaved %s\r\n", path)
					}
				}
			}
			player.Update(time.Now())
		}
	}
}

func printStatus(player *reel.Player, c *cache.Cache) {
	stats := c.Statistics()
	state := "paused"
	if player.Clock().IsPlaying() {
		state = "playing"
	}
	fmt.Printf("\rframe %5d  %s  %4.1f fps  cache %d frames / %.1f MiB / %.0f%% hits   ",
		player.Clock().CurrentFrame(), state, player.Clock().ActualFPS(),
		stats.Entries, float64(stats.Bytes)/(1<<20), stats.HitRate()*100)
}
