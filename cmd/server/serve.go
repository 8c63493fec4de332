package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"serverPortal/internal/auth"
	grpcserver "serverPortal/internal/grpc"
	"serverPortal/internal/httpapi"
	"serverPortal/internal/i18n"
	"serverPortal/repository"
)

const shutdownTimeout = 5 * time.Second

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server (and the gRPC health server when configured)",
		Args:  cobra.NoArgs,
		RunE:  runServe,
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	e, err := loadEnv(cmd)
	if err != nil {
		return err
	}
	e.logger.Info("configuration loaded", zap.Stringer("config", e.cfg))

	bdb, err := e.openDB()
	if err != nil {
		e.logger.Error("database unavailable", zap.Error(err))
		return err
	}
	defer e.close(bdb)

	tr, err := i18n.New()
	if err != nil {
		return err
	}
	issuer, err := auth.NewIssuer(e.cfg.Auth.JWTSecret, e.cfg.TokenTTL())
	if err != nil {
		return err
	}

	handler, err := httpapi.NewHandler(httpapi.Deps{
		DB:         bdb,
		Users:      repository.NewUserRepository(bdb),
		Reports:    repository.NewReportRepository(bdb),
		Content:    repository.NewContentRepository(bdb),
		Issuer:     issuer,
		Translator: tr,
		Logger:     e.logger,
		Dev:        e.cfg.IsDevelopment(),
		StaticDir:  e.cfg.HTTP.StaticDir,
		CORSOrigin: e.cfg.HTTP.CORSOrigin,
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	httpAddr, stopHTTP, err := httpapi.StartHTTP(e.cfg.HTTP.Address, handler, e.logger)
	if err != nil {
		return err
	}
	e.logger.Info("http server listening", zap.String("addr", httpAddr), zap.String("env", e.cfg.Env))

	shutdowns := []func(context.Context) error{stopHTTP}
	if e.cfg.GRPC.Address != "" {
		grpcAddr, stopGRPC, err := grpcserver.StartGRPC(grpcserver.Options{
			Address: e.cfg.GRPC.Address,
			Logger:  e.logger.Named("grpc"),
		}, bdb)
		if err != nil {
			shutdownAll(e.logger, shutdowns)
			return err
		}
		e.logger.Info("grpc health server listening", zap.String("addr", grpcAddr))
		shutdowns = append(shutdowns, stopGRPC)
	}

	<-ctx.Done()
	e.logger.Info("shutting down")
	return shutdownAll(e.logger, shutdowns)
}

// shutdownAll stops every server concurrently within shutdownTimeout.
func shutdownAll(logger *zap.Logger, shutdowns []func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	var g errgroup.Group
	for _, fn := range shutdowns {
		g.Go(func() error { return fn(ctx) })
	}
	err := g.Wait()
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("shutdown error", zap.Error(err))
		return err
	}
	return nil
}
