package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"DrawPad/internal/config"
	"DrawPad/internal/export"
	dpnet "DrawPad/internal/net"
	"DrawPad/internal/store"
	"DrawPad/internal/ui"

	"github.com/gogpu/gg"
)

const usage = `usage: drawpad [-config path] <command> [flags]

commands:
  draw      open a drawing in the desktop window (default)
  new       create an empty note and print its id
  serve     host drawings for browsers over WebSocket
  export    write a stored drawing as PDF
  discover  list DrawPad servers on the local network
`

func main() {
	configPath := flag.String("config", "", "config file (default "+config.GetConfigPath()+")")
	flag.Usage = func() { fmt.Fprint(flag.CommandLine.Output(), usage) }
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	log := cfg.NewLogger()
	slog.SetDefault(log)
	gg.SetLogger(log.With("component", "gg"))

	st, err := store.NewFileStore(cfg.Storage.Directory)
	if err != nil {
		log.Error("cannot open note storage", "dir", cfg.Storage.Directory, "err", err)
		os.Exit(1)
	}

	args := flag.Args()
	cmd := "draw"
	if len(args) > 0 {
		cmd, args = args[0], args[1:]
	}

	switch cmd {
	case "draw":
		err = runDraw(cfg, st, log, args)
	case "new":
		err = runNew(st, args)
	case "serve":
		err = runServe(cfg, st, log, args)
	case "export":
		err = runExport(st, args)
	case "discover":
		err = runDiscover(args)
	default:
		flag.Usage()
		os.Exit(2)
	}
	if err != nil {
		log.Error(cmd+" failed", "err", err)
		os.Exit(1)
	}
}

func runDraw(cfg *config.Config, st *store.FileStore, log *slog.Logger, args []string) error {
	fs := flag.NewFlagSet("draw", flag.ExitOnError)
	id := fs.String("id", "scratch", "note to open")
	fs.Parse(args)

	return ui.RunApp(ui.Options{
		Store:      st,
		DocumentID: *id,
		Width:      cfg.Canvas.Width,
		Height:     cfg.Canvas.Height,
		SaveDelay:  cfg.AutosaveDelay(),
		Logger:     log,
	})
}

func runNew(st *store.FileStore, args []string) error {
	fs := flag.NewFlagSet("new", flag.ExitOnError)
	title := fs.String("title", "", "note title")
	folder := fs.String("folder", "", "note folder")
	fs.Parse(args)

	n, err := st.Create(context.Background(), *title, *folder)
	if err != nil {
		return err
	}
	fmt.Println(n.ID)
	return nil
}

func runServe(cfg *config.Config, st *store.FileStore, log *slog.Logger, args []string) error {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	port := fs.Int("port", cfg.Server.Port, "listen port")
	advertise := fs.Bool("advertise", cfg.Server.Advertise, "announce the server over mDNS")
	fs.Parse(args)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *advertise {
		mdnsServer, err := dpnet.Advertise(*port)
		if err != nil {
			log.Warn("mDNS advertisement disabled", "err", err)
		} else {
			defer mdnsServer.Shutdown()
		}
	}
	if ip, err := dpnet.GetOutgoingIP(); err == nil {
		log.Info("share link", "url", dpnet.ShareLink(ip, *port))
	}

	srv := dpnet.NewServer(st, dpnet.WithLogger(log), dpnet.WithSaveDelay(cfg.AutosaveDelay()))
	return srv.ListenAndServe(ctx, fmt.Sprintf(":%d", *port))
}

func runExport(st *store.FileStore, args []string) error {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	id := fs.String("id", "", "note to export")
	out := fs.String("o", "", "output file (default <id>.pdf)")
	fs.Parse(args)
	if *id == "" {
		return errors.New("export: -id is required")
	}
	path := *out
	if path == "" {
		path = filepath.Clean(*id + ".pdf")
	}

	ctx := context.Background()
	n, err := st.Get(ctx, *id)
	if err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := export.SerializedPDF(f, n.Content, n.Title); err != nil {
		f.Close()
		os.Remove(path)
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	fmt.Println(path)
	return nil
}

func runDiscover(args []string) error {
	fs := flag.NewFlagSet("discover", flag.ExitOnError)
	timeout := fs.Duration("timeout", 2*time.Second, "how long to listen for answers")
	fs.Parse(args)

	return dpnet.Browse(*timeout, func(addr string) {
		fmt.Println(addr)
	})
}
