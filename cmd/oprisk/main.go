// Command oprisk runs the operational-risk API server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bissquit/oprisk/internal/app"
	"github.com/bissquit/oprisk/internal/config"
	"github.com/bissquit/oprisk/internal/domain"
	"github.com/bissquit/oprisk/internal/identity"
	"github.com/bissquit/oprisk/internal/version"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	if len(args) > 0 && args[0] == "token" {
		return issueToken(args[1:])
	}

	fs := flag.NewFlagSet("oprisk", flag.ContinueOnError)
	configPath := fs.String("config", config.PathFromEnv(), "path to YAML config file")
	showVersion := fs.Bool("version", false, "print version and exit")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *showVersion {
		fmt.Printf("oprisk %s (commit %s, built %s)\n", version.Version, version.GitCommit, version.BuildDate)
		return nil
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}

	application, err := app.New(cfg)
	if err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- application.Run()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
	case sig := <-sigCh:
		slog.Info("received signal", "signal", sig.String())
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	return application.Shutdown(ctx)
}

// issueToken prints a signed access token. Used for local development and smoke tests.
func issueToken(args []string) error {
	fs := flag.NewFlagSet("token", flag.ContinueOnError)
	configPath := fs.String("config", config.PathFromEnv(), "path to YAML config file")
	subject := fs.String("sub", "", "actor id")
	role := fs.String("role", string(domain.RoleViewer), "viewer, operator or admin")
	ttl := fs.Duration("ttl", time.Hour, "token lifetime")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *subject == "" {
		return errors.New("token: -sub is required")
	}
	if !domain.Role(*role).IsValid() {
		return fmt.Errorf("token: unknown role %q", *role)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}

	token, err := identity.NewJWTValidator(cfg.JWT.SecretKey, cfg.JWT.Issuer).
		IssueToken(domain.Actor{ID: *subject, Role: domain.Role(*role)}, *ttl)
	if err != nil {
		return err
	}

	fmt.Println(token)
	return nil
}
