package main

import (
	"flag"
	"fmt"
	"os"
	"runtime"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"

	"nefi-engine/internal/algorithms"
	"nefi-engine/internal/config"
	"nefi-engine/internal/eventbus"
	"nefi-engine/internal/favorites"
	"nefi-engine/internal/gui"
	"nefi-engine/internal/imaging"
	"nefi-engine/internal/logger"
	"nefi-engine/internal/pipeline"
	"nefi-engine/internal/shutdown"
	"nefi-engine/internal/worker"
)

const AppVersion = "2.0.0"

type options struct {
	configPath   string
	headless     bool
	pipelinePath string
	inputPath    string
	outputDir    string
	favoritesDir string
	list         bool
	favorites    bool
}

type engine struct {
	cfg      *config.Config
	logger   logger.Logger
	bus      *eventbus.Bus
	pipeline *pipeline.Pipeline
	worker   *worker.Worker
	shutdown *shutdown.Manager
}

func main() {
	var opts options
	flag.StringVar(&opts.configPath, "config", "nefi.toml", "path to the TOML config file")
	flag.BoolVar(&opts.headless, "headless", false, "run a pipeline without the GUI")
	flag.StringVar(&opts.pipelinePath, "pipeline", "", "pipeline JSON file, or the name of a favorite")
	flag.StringVar(&opts.inputPath, "input", "", "input image")
	flag.StringVar(&opts.outputDir, "output", "", "directory for step results (overrides config)")
	flag.StringVar(&opts.favoritesDir, "favorites-dir", "", "directory of saved pipelines (overrides config)")
	flag.BoolVar(&opts.list, "list", false, "print the available categories and algorithms, then exit")
	flag.BoolVar(&opts.favorites, "favorites", false, "print the saved pipelines in the favorites directory, then exit")
	flag.Parse()

	if opts.list {
		printCatalogue()
		return
	}
	if opts.favorites {
		if err := printFavorites(opts); err != nil {
			fmt.Fprintln(os.Stderr, "nefi:", err)
			os.Exit(2)
		}
		return
	}

	eng, err := newEngine(opts)
	if err != nil {
		fmt.Fprintln(os.Stderr, "nefi:", err)
		os.Exit(2)
	}

	if opts.headless {
		err = runHeadless(eng, opts)
		eng.shutdown.Shutdown()
		if err != nil {
			os.Exit(1)
		}
		return
	}

	runGUI(eng)
}

// loadConfig reads the config file, then the environment, then the command line.
func loadConfig(opts options) (*config.Config, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, err
	}
	cfg.ApplyEnv()
	if opts.outputDir != "" {
		cfg.Pipeline.OutputDir = opts.outputDir
	}
	if opts.favoritesDir != "" {
		cfg.Pipeline.FavoritesDir = opts.favoritesDir
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newEngine(opts options) (*engine, error) {
	cfg, err := loadConfig(opts)
	if err != nil {
		return nil, err
	}

	log := logger.New(logger.ParseLevel(cfg.Log.Level), cfg.Log.Console)
	log.Info("Main", "engine starting", map[string]interface{}{
		"version":    AppVersion,
		"go_version": runtime.Version(),
		"log_level":  cfg.Log.Level,
		"headless":   opts.headless,
	})

	bus := eventbus.New(log)
	if cfg.Events.LogEvents {
		eventbus.Trace(bus, log)
	}

	pipe := pipeline.New(algorithms.NewRegistry(), imaging.NewCodec(log), bus, log)
	if err := pipe.SetOutputDir(cfg.Pipeline.OutputDir); err != nil {
		bus.Shutdown()
		return nil, err
	}

	w := worker.New(pipe, bus, log)

	mgr := shutdown.NewManager(log, shutdown.DefaultTimeout)
	mgr.Register("eventbus", bus)
	mgr.Register("worker", w)
	mgr.Listen()

	return &engine{
		cfg:      cfg,
		logger:   log,
		bus:      bus,
		pipeline: pipe,
		worker:   w,
		shutdown: mgr,
	}, nil
}

func runGUI(eng *engine) {
	fyneApp := app.NewWithID(gui.AppID)
	window := gui.New(eng.shutdown.Context(), fyneApp, gui.Deps{
		Pipeline:     eng.pipeline,
		Worker:       eng.worker,
		Bus:          eng.bus,
		FavoritesDir: eng.cfg.Pipeline.FavoritesDir,
		Logger:       eng.logger,
	})

	dir := eng.cfg.Pipeline.FavoritesDir
	if favs, err := favorites.Scan(dir); err != nil {
		eng.logger.Warning("Main", "favorites unavailable", map[string]interface{}{"error": err.Error()})
	} else {
		window.SetFavorites(favs)
	}
	if watcher, err := favorites.Watch(dir, window.SetFavorites, eng.logger); err != nil {
		eng.logger.Warning("Main", "favorites not watched", map[string]interface{}{"error": err.Error()})
	} else {
		// Registered after the worker, so it stops first.
		eng.shutdown.Register("favorites", watcher)
	}

	go func() {
		<-eng.shutdown.Done()
		fyne.Do(fyneApp.Quit)
	}()

	window.Window().SetCloseIntercept(func() {
		window.Close()
		eng.shutdown.Shutdown()
		window.Window().Close()
	})
	window.Window().ShowAndRun()
	eng.shutdown.Shutdown()
}

func printCatalogue() {
	reg := algorithms.NewRegistry()
	for _, def := range reg.Definitions() {
		fmt.Println(def.Name())
		for _, name := range def.AlgorithmNames() {
			fmt.Println("  " + name)
		}
	}
}

func printFavorites(opts options) error {
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}
	favs, err := favorites.Scan(cfg.Pipeline.FavoritesDir)
	if err != nil {
		return err
	}
	for _, f := range favs {
		fmt.Printf("%s\t%s\n", f.Name, f.Path)
	}
	return nil
}
