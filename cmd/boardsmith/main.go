// Copyright 2026 Google LLC
// SPDX-License-Identifier: Apache-2.0

// Command boardsmith builds firmware for a cataloged board and optionally
// flashes it to an attached device, streaming tool output as it arrives.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"

	"github.com/fatih/color"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/google/boardsmith/pkg/catalog"
	"github.com/google/boardsmith/pkg/classify"
	"github.com/google/boardsmith/pkg/orchestrator"
)

var (
	yellow = color.New(color.FgYellow).SprintFunc()
	green  = color.New(color.FgGreen).SprintFunc()
	red    = color.New(color.FgRed).SprintFunc()
)

// Config holds the flags shared by the job-running subcommands.
type Config struct {
	Catalog    string
	Revision   string
	Device     string
	DepsRoot   string
	BuildRules string
	FlashRules string
}

func (c Config) Validate() error {
	if c.Catalog == "" {
		return errors.New("catalog is required")
	}
	return nil
}

var cfg Config

var rootCmd = &cobra.Command{
	Use:   "boardsmith [subcommand]",
	Short: "A CLI tool for building and flashing firmware",
}

var buildCmd = &cobra.Command{
	Use:   "build <target>",
	Short: "Build firmware for a cataloged target.",
	Args:  cobra.ExactArgs(1),
	// Silence errors because we will print the error ourselves in main.
	SilenceErrors: true,
	// Don't show usage for every error.
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runJob(cmd.Context(), args[0], false)
	},
}

var flashCmd = &cobra.Command{
	Use:           "flash <target>",
	Short:         "Build firmware for a cataloged target and flash it to an attached device.",
	Args:          cobra.ExactArgs(1),
	SilenceErrors: true,
	SilenceUsage:  true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runJob(cmd.Context(), args[0], true)
	},
}

var targetsCmd = &cobra.Command{
	Use:           "targets",
	Short:         "List the targets defined in the catalog.",
	SilenceErrors: true,
	SilenceUsage:  true,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate(); err != nil {
			return err
		}
		cat, err := catalog.LoadFile(cfg.Catalog)
		if err != nil {
			return err
		}
		for _, t := range cat.Targets() {
			b, _ := cat.Board(t)
			flashable := ""
			if b.Flash.Tool != "" {
				flashable = "  [flashable]"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s%s\n", t, b.Repo, flashable)
		}
		return nil
	},
}

var rulesCmd = &cobra.Command{
	Use:   "rules [subcommand]",
	Short: "Work with classification rule tables.",
}

var rulesCheckCmd = &cobra.Command{
	Use:           "check <file>...",
	Short:         "Validate classification rule files.",
	Args:          cobra.MinimumNArgs(1),
	SilenceErrors: true,
	SilenceUsage:  true,
	RunE: func(cmd *cobra.Command, args []string) error {
		for _, path := range args {
			t, err := classify.LoadTableFile(path)
			if err != nil {
				return errors.Wrap(err, path)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %d rules, fallback %s\n", path, len(t.Rules), t.Fallback)
		}
		return nil
	},
}

// loadTables returns the classifier tables, preferring rule files when
// configured.
func loadTables() (build, flash classify.Table, err error) {
	build = classify.DefaultBuildTable()
	flash = classify.DefaultFlashTable()
	if cfg.BuildRules != "" {
		if build, err = classify.LoadTableFile(cfg.BuildRules); err != nil {
			return
		}
	}
	if cfg.FlashRules != "" {
		flash, err = classify.LoadTableFile(cfg.FlashRules)
	}
	return
}

func runJob(ctx context.Context, target string, flash bool) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	cat, err := catalog.LoadFile(cfg.Catalog)
	if err != nil {
		return err
	}
	req, err := cat.Request(target, cfg.Revision, cfg.Device, flash, cfg.DepsRoot)
	if err != nil {
		return err
	}
	buildRules, flashRules, err := loadTables()
	if err != nil {
		return err
	}
	o := orchestrator.New(orchestrator.Config{
		BuildRules: buildRules,
		FlashRules: flashRules,
	})
	job, err := o.Submit(ctx, req)
	if err != nil {
		return err
	}
	events, stop := job.Subscribe()
	defer stop()
	go func() {
		select {
		case <-ctx.Done():
			job.Cancel()
			// Restore default interrupt handling so a second interrupt
			// during wind-down kills the CLI rather than being absorbed.
			signal.Reset(os.Interrupt)
		case <-job.Done():
		}
	}()
	for ev := range events {
		switch ev.Kind {
		case orchestrator.EventState:
			fmt.Fprintln(os.Stderr, yellow("==> "+ev.State.String()))
		case orchestrator.EventLine:
			fmt.Fprintln(os.Stderr, ev.Text)
		case orchestrator.EventOverflow:
			fmt.Fprintln(os.Stderr, yellow(fmt.Sprintf("... %d lines dropped (slow terminal)", ev.Dropped)))
		}
	}
	result, err := job.Result(context.Background())
	if err != nil {
		return err
	}
	defer func() {
		if err := job.Release(); err != nil {
			log.Printf("[%s] releasing job: %v", target, err)
		}
	}()
	if result.ArtifactPath != "" {
		fmt.Fprintf(os.Stdout, "artifact: %s\n", result.ArtifactPath)
	}
	if !result.Success {
		fmt.Fprintln(os.Stderr, red(fmt.Sprintf("FAILED [%s] %s", result.ErrorType, result.Message)))
		return errors.Errorf("job failed: %s", result.ErrorType)
	}
	fmt.Fprintln(os.Stderr, green("OK"))
	return nil
}

func init() {
	for _, cmd := range []*cobra.Command{buildCmd, flashCmd} {
		cmd.Flags().StringVar(&cfg.Catalog, "catalog", "boards.toml", "Path to the board catalog file")
		cmd.Flags().StringVar(&cfg.Revision, "revision", "", "Source revision to build, overriding the catalog default")
		cmd.Flags().StringVar(&cfg.DepsRoot, "deps-root", "", "Root directory of bundled portable toolchains")
		cmd.Flags().StringVar(&cfg.BuildRules, "build-rules", "", "YAML rule file overriding the built-in build classifier")
		cmd.Flags().StringVar(&cfg.FlashRules, "flash-rules", "", "YAML rule file overriding the built-in flash classifier")
	}
	flashCmd.Flags().StringVar(&cfg.Device, "device", "", "Device path substituted for {device} in flash arguments")
	targetsCmd.Flags().StringVar(&cfg.Catalog, "catalog", "boards.toml", "Path to the board catalog file")
	rulesCmd.AddCommand(rulesCheckCmd)
	rootCmd.AddCommand(buildCmd, flashCmd, targetsCmd, rulesCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
