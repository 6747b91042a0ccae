package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"creatorhub/internal/domain"
	"creatorhub/internal/engine"
	"creatorhub/internal/generation"
	"creatorhub/internal/infra"
)

func main() {
	_ = godotenv.Load()

	var (
		promptFlag   string
		negativeFlag string
		modelFlag    string
		statusFlag   string
		noWaitFlag   bool
	)
	flag.StringVar(&promptFlag, "prompt", "", "text prompt to generate")
	flag.StringVar(&negativeFlag, "negative", "", "negative prompt")
	flag.StringVar(&modelFlag, "model", "", "provider key (defaults to the configured default)")
	flag.StringVar(&statusFlag, "status", "", "poll an existing prediction id instead of submitting")
	flag.BoolVar(&noWaitFlag, "no-wait", false, "print the job id and exit without polling")
	flag.Parse()

	cfg, err := infra.LoadConfig()
	if err != nil {
		exitWithError(err)
	}
	logger := infra.NewLogger(cfg.AppEnv).With().Str("cmd", "genctl").Logger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	eng, err := engine.New(ctx, cfg, &logger, engine.Options{})
	if err != nil {
		exitWithError(err)
	}

	id := strings.TrimSpace(statusFlag)
	if id == "" {
		res, err := eng.Service.Generate(ctx, domain.GenerationRequest{
			Prompt:         promptFlag,
			NegativePrompt: negativeFlag,
			Provider:       domain.ProviderKey(modelFlag),
		})
		if err != nil {
			exitWithError(err)
		}
		if res.Done() {
			printJSON(map[string]any{"output": res.Output, "cached": res.Cached, "provider": res.Provider})
			return
		}
		id = res.Handle.ID
		fmt.Fprintf(os.Stderr, "job %s %s\n", id, res.Handle.Status)
		if noWaitFlag {
			printJSON(map[string]any{"jobId": id, "status": domain.JobStatusProcessing})
			return
		}
	}

	poller := generation.NewPoller(eng.Service, engine.PollPolicy(cfg), &logger)
	poller.OnUpdate = func(s domain.Snapshot) {
		fmt.Fprintf(os.Stderr, "job %s %s\n", s.ID, s.Status)
	}
	snap, err := poller.Await(ctx, id)
	if err != nil {
		if errors.Is(err, generation.ErrPollTimeout) || errors.Is(err, context.Canceled) {
			fmt.Fprintf(os.Stderr, "stopped polling %s; the job keeps running, resume with -status %s\n", id, id)
		}
		exitWithError(err)
	}
	printJSON(snap)
	if snap.Status != domain.JobStatusSucceeded {
		os.Exit(2)
	}
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

func exitWithError(err error) {
	fmt.Fprintf(os.Stderr, "genctl: %v\n", err)
	os.Exit(1)
}
