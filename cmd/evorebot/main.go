// Command evorebot is the process entrypoint: load configuration,
// construct the shared service bundle, spawn one BotRunner per
// configured bot, and run until SIGINT. Grounded on the main-wiring
// style implied by terorie-pythian's server/schedule split, generalized
// to this system's Coordinator-owned service bundle.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gagliardetto/solana-go"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/Kriptikz/evorebot/internal/blockhash"
	"github.com/Kriptikz/evorebot/internal/boardtrack"
	"github.com/Kriptikz/evorebot/internal/botrunner"
	"github.com/Kriptikz/evorebot/internal/chainmodel"
	"github.com/Kriptikz/evorebot/internal/config"
	"github.com/Kriptikz/evorebot/internal/coordinator"
	"github.com/Kriptikz/evorebot/internal/evoreclient"
	"github.com/Kriptikz/evorebot/internal/fastsend"
	"github.com/Kriptikz/evorebot/internal/keypair"
	"github.com/Kriptikz/evorebot/internal/minertrack"
	"github.com/Kriptikz/evorebot/internal/roundtrack"
	"github.com/Kriptikz/evorebot/internal/rpsmeter"
	"github.com/Kriptikz/evorebot/internal/shredwatch"
	"github.com/Kriptikz/evorebot/internal/shutdown"
	"github.com/Kriptikz/evorebot/internal/slottrack"
	"github.com/Kriptikz/evorebot/internal/tui"
	"github.com/Kriptikz/evorebot/internal/txpipe"
)

func main() {
	log, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to build logger:", err)
		os.Exit(1)
	}
	defer log.Sync()

	if err := run(log); err != nil {
		log.Fatal("startup failed", zap.Error(err))
	}
}

func run(log *zap.Logger) error {
	configPath := "evorebot.toml"
	if len(os.Args) > 1 {
		configPath = os.Args[1]
	}

	doc, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	programID, err := doc.ProgramPubkey()
	if err != nil {
		return fmt.Errorf("parsing program_id: %w", err)
	}

	defaultSigner, err := keypair.Load(doc.DefaultSignerPath)
	if err != nil {
		return fmt.Errorf("loading default signer: %w", err)
	}

	var manager solana.PublicKey
	if doc.DefaultManagerPath != "" {
		managerKey, err := keypair.Load(doc.DefaultManagerPath)
		if err != nil {
			return fmt.Errorf("loading default manager: %w", err)
		}
		manager = managerKey.PublicKey()
	}

	rps := rpsmeter.New()
	client := evoreclient.New(doc.RPCURL, programID, rps)
	processedClient := evoreclient.NewProcessed(doc.RPCURL, programID, rps)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if _, err := client.GetSlot(ctx); err != nil {
		return fmt.Errorf("chain RPC unreachable at boot: %w", err)
	}

	boardAddr, _, err := chainmodel.BoardPDA(programID)
	if err != nil {
		return fmt.Errorf("deriving board PDA: %w", err)
	}

	tuiCh := tui.New()
	shutdownSig := shutdown.New()

	endpoints := make([]*fastsend.Endpoint, 0, len(doc.SubmissionEndpoints))
	for i, url := range doc.SubmissionEndpoints {
		endpoints = append(endpoints, &fastsend.Endpoint{Name: fmt.Sprintf("endpoint-%d", i), URL: url})
	}
	sender := fastsend.New(endpoints, client, rps)
	sender.Log = log.Named("fastsend")

	pipeline := txpipe.New(sender, client)
	pipeline.Log = log.Named("txpipe")

	services := coordinator.SharedServices{
		Log:       log,
		RPS:       rps,
		Client:    client,
		Blockhash: blockhash.New(processedClient),
		Slot:      slottrack.New(doc.WSURL, client),
		Board:     boardtrack.New(doc.WSURL, boardAddr),
		Round:     roundtrack.New(doc.WSURL, programID),
		Sender:    sender,
		Pipeline:  pipeline,
		Shutdown:  shutdownSig,
		TuiCh:     tuiCh,
	}
	services.Blockhash.Log = log.Named("blockhash")
	services.Slot.Log = log.Named("slottrack")
	services.Board.Log = log.Named("boardtrack")
	services.Round.Log = log.Named("roundtrack")

	if doc.ShredWSURL != "" {
		services.Shred = shredwatch.New(doc.ShredWSURL)
		services.Shred.Log = log.Named("shredwatch")
	}

	bots := make([]minertrack.Bot, 0, len(doc.Bots))
	signers := make(map[int]solana.PrivateKey, len(doc.Bots))
	runnerConfigs := make(map[int]botrunner.Config, len(doc.Bots))

	for i, botCfg := range doc.Bots {
		signer := defaultSigner
		if botCfg.SignerPath != "" {
			signer, err = keypair.Load(botCfg.SignerPath)
			if err != nil {
				return fmt.Errorf("loading signer for bot %q: %w", botCfg.Name, err)
			}
		}
		runnerCfg, err := botCfg.ToRunnerConfig()
		if err != nil {
			return fmt.Errorf("parsing config for bot %q: %w", botCfg.Name, err)
		}
		signers[i] = signer
		runnerConfigs[i] = runnerCfg
		bots = append(bots, minertrack.Bot{Index: i, Authority: signer.PublicKey()})
	}

	services.Miners = minertrack.New(client, bots, tuiCh)
	services.Miners.Log = log.Named("minertrack")
	services.Treasury = minertrack.NewTreasuryTracker(client, tuiCh)
	services.Treasury.Log = log.Named("treasury")

	coord := coordinator.New(programID, services)
	coord.Log = log

	for i := range doc.Bots {
		coord.SpawnBot(ctx, i, signers[i], manager, runnerConfigs[i])
	}

	go serveMetrics(log)

	if err := coord.StartServices(ctx); err != nil && ctx.Err() == nil {
		return fmt.Errorf("service startup: %w", err)
	}

	shutdownSig.Shutdown()
	log.Info("shutdown complete")
	return nil
}

func serveMetrics(log *zap.Logger) {
	http.Handle("/metrics", promhttp.Handler())
	if err := http.ListenAndServe("127.0.0.1:9090", nil); err != nil {
		log.Debug("metrics server stopped", zap.Error(err))
	}
}
