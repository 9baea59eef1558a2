package server

import (
	"github.com/mohammad-safakhou/sourcerer/internal/agent/core"
)

// QueryRequestDTO is the body of POST /api/query.
type QueryRequestDTO struct {
	Prompt          string   `json:"prompt"`
	MaxResults      int      `json:"max_results"`
	SpecificSources []string `json:"specific_sources"`
}

// ToCore validates the DTO and converts it to the core request. Unknown
// explicit source names are a client error.
func (d QueryRequestDTO) ToCore() (core.QueryRequest, error) {
	req := core.QueryRequest{
		Prompt:     d.Prompt,
		MaxResults: d.MaxResults,
	}
	for _, name := range d.SpecificSources {
		st, err := core.ParseSourceType(name)
		if err != nil {
			return core.QueryRequest{}, err
		}
		req.SpecificSources = append(req.SpecificSources, st)
	}
	return req, nil
}

// HealthResponseDTO is the body of GET /api/health.
type HealthResponseDTO struct {
	Status  string                                `json:"status"`
	Sources map[core.SourceType]core.SourceHealth `json:"sources"`
}
