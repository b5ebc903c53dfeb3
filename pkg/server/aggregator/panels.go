package aggregator

import (
	"fmt"

	"github.com/switchboard-xyz/usdy-example/pkg/config"
	"github.com/switchboard-xyz/usdy-example/pkg/logging"
	"github.com/switchboard-xyz/usdy-example/pkg/server/sources"
)

// BuildPanels creates every enabled source once and assembles one panel per configured symbol.
func BuildPanels(cfg *config.Config, logger *logging.Logger) ([]Panel, error) {
	created := make(map[string]sources.Source)
	for _, sc := range cfg.EnabledSources() {
		adapter, err := sources.AdapterFromConfig(sc.Config)
		if err != nil {
			return nil, fmt.Errorf("source %s: %w", sc.Key(), err)
		}
		logger.Info("Creating source", "type", sc.Type, "name", sc.Name, "adapter", adapter)

		src, err := sources.Create(sc.Type, adapter, sources.InstanceConfig(sc.Name, sc.Config, logger))
		if err != nil {
			return nil, fmt.Errorf("source %s: %w", sc.Key(), err)
		}
		created[sc.Key()] = src
	}

	lookup := func(symbol, key string) (sources.Source, error) {
		src, ok := created[key]
		if !ok {
			return nil, fmt.Errorf("%s: unknown or disabled source %s", symbol, key)
		}
		return src, nil
	}

	panels := make([]Panel, 0, len(cfg.Symbols))
	for _, sym := range cfg.Symbols {
		p := Panel{Symbol: sym.Symbol}
		for _, key := range sym.Market {
			src, err := lookup(sym.Symbol, key)
			if err != nil {
				return nil, err
			}
			p.Market = append(p.Market, src)
		}
		ref, err := lookup(sym.Symbol, sym.Reference)
		if err != nil {
			return nil, err
		}
		p.Reference = ref
		panels = append(panels, p)

		logger.Info("Panel configured", "symbol", sym.Symbol, "market", sym.Market, "reference", sym.Reference)
	}
	return panels, nil
}
