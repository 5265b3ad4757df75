package main

import (
	"fmt"
	"log"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/radarhq/radar/config"
	"github.com/radarhq/radar/internal/discovery"
	"github.com/radarhq/radar/internal/engine"
	"github.com/radarhq/radar/internal/llm"
	"github.com/radarhq/radar/internal/oracle"
	"github.com/radarhq/radar/internal/telemetry"
	"github.com/radarhq/radar/internal/tools"
	"github.com/radarhq/radar/internal/tools/bilibili"
	"github.com/radarhq/radar/internal/tools/reddit"
	"github.com/radarhq/radar/internal/tools/webpage"
	"github.com/radarhq/radar/internal/tools/websearch"
	"github.com/radarhq/radar/internal/tools/youtube"
)

// buildEngine assembles the collection engine from configuration. Adapters
// missing their API keys are skipped with a log line rather than failing
// startup; the planner only ever sees the tools actually registered.
func buildEngine(cfg *config.Config, registerer prometheus.Registerer) (*engine.Engine, error) {
	logger := log.New(log.Writer(), "[RADAR] ", log.LstdFlags)

	provider, err := llm.NewProvider(cfg.LLM)
	if err != nil {
		return nil, fmt.Errorf("llm provider: %w", err)
	}

	registry := tools.NewRegistry()
	if ws, err := websearch.New(cfg.Tools.WebSearch); err != nil {
		logger.Printf("web search disabled: %v", err)
	} else {
		registry.Register(ws)
	}
	if yt, err := youtube.New(cfg.Tools.YouTube); err != nil {
		logger.Printf("youtube disabled: %v", err)
	} else {
		registry.Register(yt)
	}
	registry.Register(bilibili.New(cfg.Tools.Bilibili))
	registry.Register(reddit.New(cfg.Tools.Reddit))
	registry.Register(webpage.New(cfg.Tools.Webpage))
	if len(registry.Catalog()) == 0 {
		return nil, fmt.Errorf("no tool adapters configured")
	}

	var telem *telemetry.Telemetry
	if cfg.Telemetry.Enabled && registerer != nil {
		telem = telemetry.New(registerer)
	}

	o := oracle.NewLLMOracle(provider, cfg.LLM.Routing)
	extractor := discovery.NewExtractor(provider, cfg.LLM.Routing)
	return engine.New(cfg, registry, o, extractor, telem), nil
}
