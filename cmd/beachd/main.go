// Command beachd is the host daemon: it owns the session registry, the
// subscription bridge, and the HTTP/WebSocket control plane, optionally
// fronted by an ngrok tunnel or a certmagic-managed TLS listener. Grounded
// on the corpus's dominant cobra root+subcommand shape (no teacher cmd/
// package was retrieved; style follows
// ehrlich-b-wingthing/cmd/wt/main.go's root command with flags feeding a
// single RunE).
package main

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/caddyserver/certmagic"
	"github.com/spf13/cobra"
	"golang.ngrok.com/ngrok"
	ngrokconfig "golang.ngrok.com/ngrok/config"

	"github.com/beachshare/beach/pkg/api"
	"github.com/beachshare/beach/pkg/config"
	"github.com/beachshare/beach/pkg/logging"
	"github.com/beachshare/beach/pkg/session"
	"github.com/beachshare/beach/pkg/termsocket"
)

func main() {
	var configPath string
	var debug bool
	var controlDir string
	var noResize bool

	root := &cobra.Command{
		Use:   "beachd",
		Short: "beach host daemon — serves terminal sessions over the sync protocol",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(configPath, controlDir, debug, noResize)
		},
	}
	root.Flags().StringVar(&configPath, "config", "", "path to a YAML config file")
	root.Flags().StringVar(&controlDir, "control-dir", defaultControlDir(), "directory for session control files")
	root.Flags().BoolVar(&debug, "debug", false, "enable verbose console logging")
	root.Flags().BoolVar(&noResize, "no-resize", false, "reject client resize requests")

	root.AddCommand(sessionsCmd(&configPath, &controlDir))

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func defaultControlDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".beach"
	}
	return home + "/.beach/sessions"
}

func runServe(configPath, controlDir string, debug, noResize bool) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log := logging.New(debug)
	defer func() { _ = logging.CloseAll(log) }()

	sessions := session.NewManager(controlDir)
	sessions.SetDoNotAllowColumnSet(noResize)
	bridge := termsocket.NewManager(sessions)
	defer bridge.Shutdown()

	srv := api.NewServer(sessions, bridge, log, cfg.Sync.ScrollbackRows, cfg.Sync.ToWireConfig())

	var watcher *config.Watcher
	if configPath != "" {
		watcher, err = config.NewWatcher(configPath, func(newCfg config.Config) {
			log.Infow("config reloaded", "path", configPath)
			cfg = newCfg
		})
		if err != nil {
			log.Warnw("config watch disabled", "error", err)
		} else {
			defer watcher.Close()
		}
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	listener, err := buildListener(ctx, cfg)
	if err != nil {
		return fmt.Errorf("build listener: %w", err)
	}

	httpServer := &http.Server{Handler: srv.Router()}
	errCh := make(chan error, 1)
	go func() {
		log.Infow("serving", "addr", listener.Addr().String())
		errCh <- httpServer.Serve(listener)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		return httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}

// buildListener picks between a plain TCP listener, a certmagic-managed
// TLS listener, or an ngrok tunnel, per the host's config.
func buildListener(ctx context.Context, cfg config.Config) (net.Listener, error) {
	if cfg.Host.Ngrok.Enabled {
		opts := []ngrok.AgentOption{}
		if cfg.Host.Ngrok.AuthToken != "" {
			opts = append(opts, ngrok.WithAuthtoken(cfg.Host.Ngrok.AuthToken))
		} else {
			opts = append(opts, ngrok.WithAuthtokenFromEnv())
		}
		endpoint := ngrokconfig.HTTPEndpoint()
		if cfg.Host.Ngrok.Domain != "" {
			endpoint = ngrokconfig.HTTPEndpoint(ngrokconfig.WithDomain(cfg.Host.Ngrok.Domain))
		}
		return ngrok.Listen(ctx, endpoint, opts...)
	}

	if cfg.Host.TLS.Enabled {
		certmagic.DefaultACME.Email = cfg.Host.TLS.Email
		tlsCfg, err := certmagic.TLS(cfg.Host.TLS.Domains)
		if err != nil {
			return nil, err
		}
		return tls.Listen("tcp", cfg.Host.ListenAddr, tlsCfg)
	}

	return net.Listen("tcp", cfg.Host.ListenAddr)
}
