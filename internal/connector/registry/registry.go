// Package registry maps the config type tags onto connector constructors.
package registry

import (
	"fmt"

	"go.uber.org/zap"

	"jobradar-engine/internal/config"
	"jobradar-engine/internal/connector"
	"jobradar-engine/internal/connector/dwp"
	"jobradar-engine/internal/connector/indeed"
	"jobradar-engine/internal/connector/nhs"
)

type builder func(config.SourceConfig, *connector.HostLimiter, *zap.SugaredLogger) connector.Connector

var builders = map[string]builder{
	"nhs": func(sc config.SourceConfig, lim *connector.HostLimiter, log *zap.SugaredLogger) connector.Connector {
		return nhs.New(nhs.Config{
			Name:           sc.Name,
			Location:       sc.Location,
			Distance:       sc.Distance,
			ContractType:   sc.ContractType,
			WorkingPattern: sc.WorkingPattern,
			StaffGroup:     sc.Category,
		}, lim, log)
	},
	"dwp": func(sc config.SourceConfig, lim *connector.HostLimiter, log *zap.SugaredLogger) connector.Connector {
		return dwp.New(dwp.Config{
			Name:         sc.Name,
			Location:     sc.Location,
			Distance:     sc.Distance,
			Category:     sc.Category,
			ContractType: sc.ContractType,
			MaxDaysOld:   sc.MaxDaysOld,
			SortBy:       sc.SortBy,
		}, lim, log)
	},
	"indeed": func(sc config.SourceConfig, lim *connector.HostLimiter, log *zap.SugaredLogger) connector.Connector {
		radius := 0
		fmt.Sscanf(sc.Distance, "%d", &radius)
		return indeed.New(indeed.Config{
			Name:       sc.Name,
			Location:   sc.Location,
			Radius:     radius,
			MaxDaysOld: sc.MaxDaysOld,
			SortBy:     sc.SortBy,
		}, lim, log)
	},
}

// Build instantiates one connector per configured source. Unknown types
// are an error here rather than a silent skip; config validation should
// have caught them already.
func Build(sources []config.SourceConfig, lim *connector.HostLimiter, log *zap.SugaredLogger) ([]connector.Connector, error) {
	out := make([]connector.Connector, 0, len(sources))
	for _, sc := range sources {
		b, ok := builders[sc.Type]
		if !ok {
			return nil, fmt.Errorf("unknown source type %q", sc.Type)
		}
		out = append(out, b(sc, lim, log))
	}
	return out, nil
}
