package main

import (
	"os"

	"github.com/pkg/errors"

	"nefi-engine/internal/eventbus"
	"nefi-engine/internal/favorites"
)

// runHeadless loads a pipeline and an input image, runs once and waits for the result.
func runHeadless(eng *engine, opts options) error {
	if opts.pipelinePath == "" || opts.inputPath == "" {
		err := errors.New("headless mode needs -pipeline and -input")
		eng.logger.Error("Main", err, nil)
		return err
	}

	path, err := resolvePipeline(opts.pipelinePath, eng.cfg.Pipeline.FavoritesDir)
	if err == nil {
		err = eng.pipeline.LoadPipelineJSON(path)
	}
	if err == nil {
		err = eng.pipeline.SetInput(opts.inputPath)
	}
	if err != nil {
		eng.logger.Error("Main", err, map[string]interface{}{"pipeline": opts.pipelinePath})
		return err
	}

	sub := eng.bus.SubscribeFunc(eventbus.KindProgress, func(event eventbus.Event) {
		e := event.(eventbus.ProgressEvent)
		eng.logger.Info("Main", e.Report, map[string]interface{}{"progress": e.Value})
	})
	defer eng.bus.Unsubscribe(sub)

	started, err := eng.worker.Start(eng.shutdown.Context())
	if err != nil {
		eng.logger.Error("Main", err, nil)
		return err
	}
	if !started {
		return errors.New("a run is already in progress")
	}
	eng.worker.Wait()
	eng.bus.Flush()

	if err := eng.worker.LastError(); err != nil {
		return err
	}
	eng.logger.Info("Main", "results written", map[string]interface{}{
		"run_id":     eng.worker.LastRunID(),
		"output_dir": eng.pipeline.OutputDir(),
		"results":    eng.pipeline.Cache().Len(),
	})
	return nil
}

// resolvePipeline accepts a file path or the name of a favorite in favDir.
func resolvePipeline(nameOrPath, favDir string) (string, error) {
	if _, err := os.Stat(nameOrPath); err == nil {
		return nameOrPath, nil
	}

	favs, err := favorites.Scan(favDir)
	if err != nil {
		return "", err
	}
	for _, f := range favs {
		if f.Name == nameOrPath {
			return f.Path, nil
		}
	}
	return "", errors.Errorf("pipeline %q is neither a file nor a favorite in %s", nameOrPath, favDir)
}
