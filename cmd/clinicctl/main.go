// Command clinicctl is the staff and patient client for the clinic API.
//
//	clinicctl login -email you@clinic.example
//	clinicctl book -name "Ada" -mobile 555-0100 -service Arthritis -date 2025-01-11 -slot "9:00 AM - 1:00 PM"
//	clinicctl list [-status pending] [-q text]
//	clinicctl accept <id> | reject <id>
//	clinicctl watch
//	clinicctl catalog
//	clinicctl logout
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"

	"clinic-booking/internal/client"
	"clinic-booking/internal/config"
	"clinic-booking/internal/session"
	"clinic-booking/pkg/logging"
)

type app struct {
	cfg    *config.ClientConfig
	log    *logging.Logger
	sess   *session.Manager
	api    *client.Client
	closer func()
}

func newApp() (*app, error) {
	cfg := config.LoadClient()
	log := logging.NewWithOutput(cfg.LogLevel, os.Stderr)

	var store session.Store
	closer := func() {}
	if cfg.SessionRedis != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.SessionRedis})
		closer = func() { _ = rdb.Close() }
		store = session.NewRedisStore(rdb, "default", 0)
	} else {
		path := cfg.SessionPath
		if path == "" {
			path = session.DefaultPath()
		}
		store = session.NewFileStore(path)
	}
	sess := session.NewManager(store)

	api := client.New(cfg.APIURL, sess,
		client.WithTimeout(cfg.RequestTimeout),
		client.WithLogger(log),
	)
	return &app{cfg: cfg, log: log, sess: sess, api: api, closer: closer}, nil
}

var commands = map[string]func(ctx context.Context, a *app, args []string) error{
	"login":   runLogin,
	"logout":  runLogout,
	"book":    runBook,
	"list":    runList,
	"accept":  runAccept,
	"reject":  runReject,
	"watch":   runWatch,
	"catalog": runCatalog,
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: clinicctl login|logout|book|list|accept|reject|watch|catalog [flags]")
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}
	run, ok := commands[os.Args[1]]
	if !ok {
		usage()
		os.Exit(2)
	}

	a, err := newApp()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer a.closer()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, a, os.Args[2:]); err != nil {
		fmt.Fprintln(os.Stderr, "error:", client.UserMessage(err))
		stop()
		a.closer()
		os.Exit(1)
	}
}
