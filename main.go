package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/exp/rand"
	"gopkg.in/yaml.v3"

	"chimera/buffer"
	"chimera/config"
	"chimera/encoder"
	"chimera/engine"
	"chimera/episode"
	"chimera/game"
	"chimera/policy"
	"chimera/reward"
	"chimera/selector"
	"chimera/telemetry"
	"chimera/trainer"
)

func main() {
	configPath := flag.String("config", "", "YAML config file; defaults are used when empty")
	episodes := flag.Int("episodes", 100, "sparring episodes to run")
	opponent := flag.String("opponent", "aggressive", "opponent script: aggressive, evasive or camper")
	telemetryDir := flag.String("telemetry", "telemetry", "directory for episode record CSVs")
	resume := flag.Bool("resume", false, "load the checkpoint before training")
	flag.Parse()

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	script, err := parseScript(*opponent)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid opponent script")
	}

	rng := rand.New(rand.NewSource(cfg.Seed))
	enc := encoder.New(cfg)

	params := policy.NewParams(enc.Dim(), cfg.HiddenSize, game.NumActions, rng)
	if *resume {
		loaded, err := policy.Load(cfg.CheckpointPath)
		if err != nil {
			// Persistence failure is never fatal; start fresh.
			log.Warn().Err(err).Msg("checkpoint load failed, starting from scratch")
		} else {
			params = loaded
			log.Info().Uint64("version", params.Version).Msg("resumed from checkpoint")
		}
	}
	model := policy.NewModel(params)

	buf, err := buffer.New(cfg.BufferCapacity,
		buffer.WithRecencyBias(cfg.RecencyBias),
		buffer.WithRand(rand.New(rand.NewSource(cfg.Seed+1))))
	if err != nil {
		log.Fatal().Err(err).Msg("invalid buffer configuration")
	}

	shaper := reward.NewShaper(cfg)
	collector := telemetry.NewCollector()
	episodeMgr := episode.NewManager(cfg, shaper, collector, model, log.Logger)
	tr := trainer.New(model, buf, cfg, trainer.WithLogger(log.Logger))

	core := engine.NewCore(cfg, engine.Deps{
		Encoder:  enc,
		Model:    model,
		Selector: selector.New(cfg, rand.New(rand.NewSource(cfg.Seed+2))),
		Shaper:   shaper,
		Buffer:   buf,
		Episodes: episodeMgr,
		Ticks:    tr,
		Logger:   log.Logger,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go tr.Run(ctx)

	match := engine.NewLocalMatch(core, script, cfg.Seed+3)
	log.Info().
		Int("episodes", *episodes).
		Stringer("opponent", script).
		Str("mode", string(cfg.Mode)).
		Msg("sparring session started")

	wins := 0
	for i := 0; i < *episodes; i++ {
		result := match.RunEpisode(cfg.TickBudget + 2)
		if result.Terminal == "player-dead" {
			wins++
		}
	}
	cancel()

	log.Info().
		Int("wins", wins).
		Int("episodes", *episodes).
		Uint64("updates", tr.Updates()).
		Uint64("discarded", tr.Discarded()).
		Uint64("policy_version", model.Version()).
		Msg("sparring session over")

	if err := policy.Save(cfg.CheckpointPath, model.Current()); err != nil {
		log.Error().Err(err).Msg("final checkpoint save failed")
	}

	writer, err := telemetry.NewWriter(*telemetryDir)
	if err != nil {
		log.Error().Err(err).Msg("telemetry writer setup failed")
		return
	}
	if err := writer.WriteEpisodeRecords(collector.Records()); err != nil {
		log.Error().Err(err).Msg("telemetry write failed")
		return
	}
	log.Info().Str("dir", writer.Dir()).Msg("episode records written")
}

// loadConfig overlays the YAML file (when given) onto the defaults and
// validates the result. Configuration errors are the only fatal ones.
func loadConfig(path string) (config.Config, error) {
	cfg := config.Default()
	if path != "" {
		blob, err := os.ReadFile(path)
		if err != nil {
			return cfg, err
		}
		if err := yaml.Unmarshal(blob, &cfg); err != nil {
			return cfg, err
		}
	}
	return cfg, cfg.Validate()
}

func parseScript(name string) (engine.Script, error) {
	for _, s := range []engine.Script{engine.Aggressive, engine.Evasive, engine.Camper} {
		if s.String() == name {
			return s, nil
		}
	}
	return 0, fmt.Errorf("unknown opponent script %q", name)
}
