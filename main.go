package main

import (
	"context"
	"crypto/tls"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"

	"audio-classification/config"
	"audio-classification/shell"
	"audio-classification/store"
	"audio-classification/utils"

	"github.com/joho/godotenv"
	"github.com/mdobak/go-xerrors"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Expected 'serve' subcommand")
		os.Exit(1)
	}
	_ = godotenv.Load()

	switch os.Args[1] {
	case "serve":
		cfg, err := config.Load()
		if err != nil {
			log.Fatalf("invalid configuration: %v", err)
		}
		serveCmd := flag.NewFlagSet("serve", flag.ExitOnError)
		protocol := serveCmd.String("proto", cfg.Proto, "Protocol to use (http or https)")
		port := serveCmd.String("p", cfg.Port, "Port to use")
		serveCmd.Parse(os.Args[2:])
		cfg.Proto = *protocol
		cfg.Port = *port
		serve(cfg)
	default:
		fmt.Println("Expected 'serve' subcommand")
		os.Exit(1)
	}
}

func serve(cfg config.Config) {
	ctx := context.Background()
	logger := utils.GetLogger()

	if err := utils.CreateFolder(cfg.TempDir); err != nil {
		err := xerrors.New(err)
		logger.ErrorContext(ctx, "Failed create tmp dir.", slog.Any("error", err))
	}

	registry, err := store.OpenRegistry(ctx, cfg.RegistryURI)
	if err != nil {
		log.Fatalf("failed to open model registry: %v", err)
	}
	st := store.New(&store.FileStore{Dir: cfg.ModelDir, ArtifactName: cfg.Artifact}, registry)
	defer st.Close()
	log.Printf("Models stored in %s\n", filepath.Join(cfg.ModelDir, cfg.Artifact))

	server := newSocketServer()
	sessions, err := shell.NewManager(shell.Deps{
		Store:    st,
		Features: cfg.Features,
		Train:    cfg.Train,
		TempDir:  cfg.TempDir,
		Notifier: &statusHub{server: server},
	}, cfg.SessionTTL)
	if err != nil {
		log.Fatalf("failed to start sessions: %v", err)
	}
	go sessions.Run(ctx)

	registerSocketHandlers(server, sessions)
	go func() {
		if err := server.Serve(); err != nil {
			log.Fatalf("socketio listen error: %s\n", err)
		}
	}()
	defer server.Close()

	a, err := newApp(sessions, st, cfg.MaxUploadMB)
	if err != nil {
		log.Fatalf("failed to load page template: %v", err)
	}

	serveHTTP(cfg, a.routes(server))
}

func serveHTTP(cfg config.Config, handler http.Handler) {
	if cfg.Proto == "https" {
		if cfg.CertKey == "" || cfg.CertFile == "" {
			log.Fatal("Missing cert: set CERT_FILE and CERT_KEY")
		}
		httpsServer := &http.Server{
			Addr: ":" + cfg.Port,
			TLSConfig: &tls.Config{
				MinVersion: tls.VersionTLS12,
			},
			Handler: handler,
		}
		log.Printf("Starting HTTPS server on %s\n", httpsServer.Addr)
		if err := httpsServer.ListenAndServeTLS(cfg.CertFile, cfg.CertKey); err != nil {
			log.Fatalf("HTTPS server ListenAndServeTLS: %v", err)
		}
		return
	}

	log.Printf("Starting HTTP server on port %v", cfg.Port)
	if err := http.ListenAndServe(":"+cfg.Port, handler); err != nil {
		log.Fatalf("HTTP server ListenAndServe: %v", err)
	}
}
