package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mohammad-safakhou/sourcerer/config"
	"github.com/mohammad-safakhou/sourcerer/internal/agent/content"
	"github.com/mohammad-safakhou/sourcerer/internal/agent/core"
	"github.com/mohammad-safakhou/sourcerer/internal/agent/sources"
	"github.com/mohammad-safakhou/sourcerer/internal/agent/telemetry"
)

func queryCMD() *cobra.Command {
	var cfgPath string
	var maxResults int
	var specificSources []string
	var asJSON bool

	var query = &cobra.Command{
		Use:   "query [prompt]",
		Short: "Run a single query without starting the server",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(cfgPath)
			if err != nil {
				return err
			}

			chunker, err := content.NewChunker(cfg.Content.ChunkSize, cfg.Content.OverlapSize)
			if err != nil {
				return err
			}
			index := content.NewIndex()
			tele := telemetry.NewTelemetry(cfg.Telemetry)
			llm, err := core.NewLLMProvider(cfg.LLM)
			if err != nil {
				return err
			}
			regs, _ := sources.NewAgents(cfg, chunker, index, tele)
			orch, err := core.NewOrchestrator(tele, llm, regs)
			if err != nil {
				return err
			}

			req := core.QueryRequest{
				Prompt:     strings.Join(args, " "),
				MaxResults: maxResults,
			}
			for _, name := range specificSources {
				st, err := core.ParseSourceType(name)
				if err != nil {
					return err
				}
				req.SpecificSources = append(req.SpecificSources, st)
			}

			resp := orch.ProcessQuery(context.Background(), req)

			if asJSON {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(resp)
			}
			fmt.Printf("Sources: %v\n", resp.SourcesUsed)
			fmt.Printf("Total results: %d (%v)\n", resp.TotalResults, resp.ExecutionTime)
			fmt.Printf("\n%s\n", resp.Summary)
			return nil
		},
	}
	query.Flags().StringVarP(&cfgPath, "config", "c", "", "config file (default is .)")
	query.Flags().IntVarP(&maxResults, "max-results", "n", 10, "maximum results per source")
	query.Flags().StringSliceVarP(&specificSources, "sources", "s", nil, "restrict to specific sources (e.g. jira,github)")
	query.Flags().BoolVar(&asJSON, "json", false, "print the full response as JSON")

	return query
}
