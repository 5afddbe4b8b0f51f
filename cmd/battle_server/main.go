package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
	"google.golang.org/grpc/status"

	"github.com/mitchelldurbincs/TacticsBattleCore/internal/api"
	"github.com/mitchelldurbincs/TacticsBattleCore/internal/config"
	"github.com/mitchelldurbincs/TacticsBattleCore/internal/game/events"
	"github.com/mitchelldurbincs/TacticsBattleCore/internal/game/events/subscribers"
	"github.com/mitchelldurbincs/TacticsBattleCore/internal/game/pathfinding"
	"github.com/mitchelldurbincs/TacticsBattleCore/internal/game/registry"
	"github.com/mitchelldurbincs/TacticsBattleCore/internal/monitoring"
	"github.com/mitchelldurbincs/TacticsBattleCore/internal/storage"
)

// healthService is the name renderers probe before connecting.
const healthService = "tbc.BattleServer"

func main() {
	configPath := flag.String("config", "", "Path to config file")
	port := flag.Int("port", -1, "HTTP port (-1 to use config default)")
	grpcPort := flag.Int("grpc-port", -1, "gRPC health port (-1 to use config default)")
	logLevel := flag.String("log-level", "", "Log level (debug, info, warn, error) (empty to use config default)")
	maxBattles := flag.Int("max-battles", -1, "Maximum concurrent battles (-1 to use config default)")
	flag.Parse()

	if err := config.Init(*configPath); err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize config")
	}
	cfg := config.Get()

	if *port == -1 {
		*port = cfg.Server.HTTP.Port
	}
	if *grpcPort == -1 {
		*grpcPort = cfg.Server.GRPC.Port
	}
	if *logLevel == "" {
		*logLevel = cfg.Server.HTTP.LogLevel
	}
	if *maxBattles == -1 {
		*maxBattles = cfg.Server.HTTP.MaxBattles
	}
	setupLogging(*logLevel)

	units, err := registry.Load(cfg.Battle.UnitsFile)
	if err != nil {
		log.Fatal().Err(err).Str("file", cfg.Battle.UnitsFile).Msg("Failed to load unit registry")
	}
	terrain, err := cfg.TerrainTable()
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid terrain table")
	}
	store, err := storage.New(storage.Config{
		Type:    storage.StoreType(cfg.Storage.Type),
		BaseDir: cfg.Storage.Path,
	}, log.Logger)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create battle store")
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	hub := api.NewWebSocketHub(cfg.Server.HTTP.AllowedOrigins, log.Logger)
	subs := []events.Subscriber{
		subscribers.NewMetricsSubscriber("metrics", reg),
		subscribers.NewLoggerSubscriber("logger", log.Logger, zerolog.DebugLevel),
		hub,
	}

	manager := api.NewBattleManager(api.ManagerConfig{
		MaxBattles:    *maxBattles,
		Width:         cfg.Battle.Width,
		Height:        cfg.Battle.Height,
		Seed:          cfg.Battle.Seed,
		Units:         units,
		Rules:         terrain,
		Policy:        pathfinding.Policy{AllyPassThrough: cfg.Battle.AllyPassThrough},
		Map:           cfg.MapConfig(),
		CounterAttack: cfg.Battle.Combat.CounterAttack,
		HitRolls:      cfg.Battle.Combat.HitRolls,
		Store:         store,
		Subscribers:   subs,
		Logger:        log.Logger,
	})

	server := api.NewServer(api.ServerConfig{
		Manager: manager,
		Hub:     hub,
		RateLimit: api.RateLimitConfig{
			RequestsPerSecond: cfg.Server.HTTP.RateLimit,
			Burst:             cfg.Server.HTTP.RateBurst,
		},
		CORSOrigins: cfg.Server.HTTP.AllowedOrigins,
		Registry:    reg,
		Logger:      log.Logger,
	})

	monitor := monitoring.NewRuntimeMonitor(monitoring.DefaultOptions, reg, log.Logger)
	monitor.AddProbe("battles", manager.Count)
	monitor.AddProbe("ws_clients", hub.ClientCount)

	config.WatchConfig(func(c *config.Config, err error) {
		if err != nil {
			log.Warn().Err(err).Msg("Config reload rejected, keeping previous values")
			return
		}
		table, err := c.TerrainTable()
		if err != nil {
			log.Warn().Err(err).Msg("Reloaded terrain table is invalid, keeping previous values")
			return
		}
		manager.SetRules(table)
		log.Info().Str("file", config.ConfigFilePath()).Msg("Config reloaded")
	})

	log.Info().
		Int("http_port", *port).
		Int("grpc_port", *grpcPort).
		Int("max_battles", *maxBattles).
		Str("storage", cfg.Storage.Type).
		Msg("Starting battle server")

	lis, err := net.Listen("tcp", fmt.Sprintf("%s:%d", cfg.Server.GRPC.Host, *grpcPort))
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to listen")
	}
	grpcServer := grpc.NewServer(
		grpc.ChainUnaryInterceptor(loggingInterceptor, recoveryInterceptor),
		grpc.ChainStreamInterceptor(streamLoggingInterceptor, streamRecoveryInterceptor),
	)
	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	healthServer.SetServingStatus(healthService, grpc_health_v1.HealthCheckResponse_SERVING)
	if cfg.Server.GRPC.EnableReflection {
		reflection.Register(grpcServer)
		log.Info().Msg("gRPC reflection enabled")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Info().Str("signal", sig.String()).Msg("Received shutdown signal")

		healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_NOT_SERVING)
		healthServer.SetServingStatus(healthService, grpc_health_v1.HealthCheckResponse_NOT_SERVING)

		// Give load balancers time to see NOT_SERVING.
		time.Sleep(time.Duration(cfg.Server.GRPC.GracefulShutdownDelay) * time.Second)

		log.Info().Msg("Gracefully stopping gRPC server")
		grpcServer.GracefulStop()
		cancel()
	}()

	go func() {
		log.Info().Str("address", lis.Addr().String()).Msg("gRPC health server listening")
		if err := grpcServer.Serve(lis); err != nil {
			log.Fatal().Err(err).Msg("Failed to serve gRPC")
		}
	}()
	go monitor.Run(ctx)

	addr := fmt.Sprintf("%s:%d", cfg.Server.HTTP.Host, *port)
	if err := server.Start(ctx, addr); err != nil {
		log.Fatal().Err(err).Msg("HTTP server failed")
	}
	log.Info().Msg("Server shutdown complete")
}

func setupLogging(level string) {
	logLevel, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		logLevel = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(logLevel)

	if os.Getenv("APP_ENV") == "production" {
		log.Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
	} else {
		log.Logger = log.Output(zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
		})
	}
}

func loggingInterceptor(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
	start := time.Now()
	resp, err := handler(ctx, req)

	code := codes.OK
	if st, ok := status.FromError(err); ok && err != nil {
		code = st.Code()
	}
	log.Debug().
		Str("method", info.FullMethod).
		Str("code", code.String()).
		Dur("duration", time.Since(start)).
		Err(err).
		Msg("gRPC call")
	return resp, err
}

func recoveryInterceptor(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (resp interface{}, err error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().
				Str("method", info.FullMethod).
				Interface("panic", r).
				Msg("Recovered from panic in gRPC handler")
			err = status.Errorf(codes.Internal, "internal server error")
		}
	}()
	return handler(ctx, req)
}

// Health Watch is a server stream.
func streamLoggingInterceptor(srv interface{}, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
	start := time.Now()
	err := handler(srv, ss)

	code := codes.OK
	if st, ok := status.FromError(err); ok && err != nil {
		code = st.Code()
	}
	log.Debug().
		Str("method", info.FullMethod).
		Str("code", code.String()).
		Dur("duration", time.Since(start)).
		Bool("is_server_stream", info.IsServerStream).
		Err(err).
		Msg("gRPC stream")
	return err
}

func streamRecoveryInterceptor(srv interface{}, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) (err error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().
				Str("method", info.FullMethod).
				Interface("panic", r).
				Msg("Recovered from panic in gRPC stream handler")
			err = status.Errorf(codes.Internal, "internal server error")
		}
	}()
	return handler(srv, ss)
}
