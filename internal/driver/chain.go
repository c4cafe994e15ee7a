package driver

import (
	"context"

	"github.com/iVampireSP/metainf/internal/provider"
)

// Chain joins sources: the passes of each source are yielded in turn and
// only the terminal pass of the last one ends the chain.
func Chain(sources ...Source) Source {
	return &chain{sources: sources}
}

type chain struct {
	sources []Source
}

func (c *chain) Next(ctx context.Context) (provider.Pass, error) {
	for len(c.sources) > 0 {
		pass, err := c.sources[0].Next(ctx)
		if err != nil {
			return provider.Pass{}, err
		}
		if !pass.Terminal || len(c.sources) == 1 {
			return pass, nil
		}
		c.sources = c.sources[1:]
	}
	return provider.TerminalPass(), nil
}
