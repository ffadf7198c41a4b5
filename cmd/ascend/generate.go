package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"ascend/internal/blueprint"
	"ascend/internal/gateway/app"
	"ascend/internal/orchestrator"
)

var (
	goal     string
	mode     string
	priority bool
	asJSON   bool
)

func init() {
	for _, c := range []*cobra.Command{generateCmd, fallbackCmd} {
		c.Flags().StringVar(&goal, "goal", "", "goal to plan for (required)")
		c.Flags().StringVar(&mode, "mode", string(blueprint.ModeStandard), "blueprint mode: Standard, Detailed, Rapid or Market Intel")
		_ = c.MarkFlagRequired("goal")
	}
	generateCmd.Flags().BoolVar(&priority, "priority", false, "prefer the more capable model")
	generateCmd.Flags().BoolVar(&asJSON, "json", false, "print the final blueprint as JSON instead of the streamed text")
}

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate a blueprint and stream it to stdout",
	Long: `Generate a blueprint using the configured model providers.

Examples:
  # Stream a plan as it is written
  ascend generate --goal "Open a neighbourhood bakery"

  # Print only the structured result
  ascend generate --goal "Learn Japanese" --mode Detailed --json`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, log, err := loadConfig()
		if err != nil {
			return err
		}
		defer func() { _ = log.Sync() }()
		engine := app.NewEngine(cfg, nil, nil, log)
		req := blueprint.GenerationRequest{Goal: goal, Mode: blueprint.Mode(mode), Priority: priority}
		return streamBlueprint(cmd.Context(), engine.Orchestrator, req, cmd.OutOrStdout(), asJSON)
	},
}

var fallbackCmd = &cobra.Command{
	Use:   "fallback",
	Short: "Print the offline blueprint for a goal",
	RunE: func(cmd *cobra.Command, _ []string) error {
		req := blueprint.GenerationRequest{Goal: goal, Mode: blueprint.Mode(mode)}
		if err := req.Validate(); err != nil {
			return err
		}
		_, err := fmt.Fprintln(cmd.OutOrStdout(), blueprint.Fallback(req.Goal, req.Mode))
		return err
	},
}

// streamBlueprint writes content events to w as they arrive. With asJSON it
// stays quiet until the end and prints the structured blueprint instead.
func streamBlueprint(ctx context.Context, o *orchestrator.Orchestrator, req blueprint.GenerationRequest, w io.Writer, asJSON bool) error {
	res, err := o.Generate(ctx, req, func(ev blueprint.StreamEvent) error {
		if asJSON || ev.Type != blueprint.EventContent {
			return nil
		}
		_, err := io.WriteString(w, ev.Text)
		return err
	})
	if err != nil {
		return err
	}
	if !asJSON {
		_, err = fmt.Fprintln(w)
		return err
	}
	if res.Blueprint == nil {
		return errors.New("generation finished without a structured blueprint")
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(res.Blueprint)
}
