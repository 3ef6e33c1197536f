package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/oggyb/companion/internal/chat"
	"github.com/oggyb/companion/internal/config"
	"github.com/oggyb/companion/internal/gateway"
	"github.com/oggyb/companion/internal/listing"
	"github.com/oggyb/companion/internal/logger"
	"github.com/oggyb/companion/internal/reply"
	"github.com/oggyb/companion/internal/session"
)

func main() {
	serverFlag := flag.String("server", "", "Override CLIENT_SERVER_ADDR")
	sessionFlag := flag.String("session", "", "Override CLIENT_SESSION_FILE")
	flag.Parse()

	cfg := config.New()
	if *serverFlag != "" {
		cfg.Client.ServerAddr = *serverFlag
	}
	if *sessionFlag != "" {
		cfg.Client.SessionFile = *sessionFlag
	}

	logger.InitFromConfig(cfg)
	log := logger.L().With("cmd", "companion")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	conn, err := gateway.Dial(cfg.Client.ServerAddr)
	if err != nil {
		log.Error("failed to dial server", "err", err)
		os.Exit(1)
	}
	defer conn.Close()

	sess := session.New(gateway.NewRemoteAccounts(conn), cfg.Client.SessionFile, log)
	gw := gateway.NewRemote(conn, sess, gateway.MediaConfig{
		PublicBaseURL:  cfg.Storage.PublicBaseURL,
		Bucket:         cfg.Storage.Bucket,
		MaxUploadBytes: cfg.Storage.MaxUploadBytes,
	})
	sess.SetProvisioner(gw)

	producer, closeProducer := newProducer(ctx, cfg)
	defer closeProducer()

	store := listing.New(gw, log)
	sched := chat.NewScheduler()
	defer sched.Close()

	sh := &shell{
		out:   os.Stdout,
		log:   log,
		sess:  sess,
		gw:    gw,
		store: store,
		chat:  chat.New(gw, producer, store, sched, log),
	}

	if err := sess.Load(ctx); err != nil {
		sh.printf("could not restore session: %v\n", err)
	}
	go sh.watch(ctx)

	sh.greet(ctx)
	sh.run(ctx, bufio.NewScanner(os.Stdin))
}

// newProducer picks the reply producer. Gemini falls back to canned replies
// when it fails or when no API key is configured.
func newProducer(ctx context.Context, cfg *config.Config) (reply.Producer, func()) {
	log := logger.With("component", "reply")
	canned := reply.NewCanned(cfg.Reply.MinDelay, cfg.Reply.MaxDelay, nil)

	if cfg.Reply.Producer != "gemini" {
		return canned, func() {}
	}
	if cfg.Reply.GeminiAPIKey == "" {
		log.Warn("GEMINI_API_KEY not set, using canned replies")
		return canned, func() {}
	}

	g, err := reply.NewGemini(ctx, cfg.Reply.GeminiAPIKey, cfg.Reply.GeminiModel, canned, log)
	if err != nil {
		log.Warn("failed to init gemini, using canned replies", "err", err)
		return canned, func() {}
	}
	return g, g.Close
}

func init() {
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [flags]\n\nType 'help' at the prompt for commands.\n\n", os.Args[0])
		flag.PrintDefaults()
	}
}
