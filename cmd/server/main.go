package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/kiliankoe/rajamantri/internal/api"
	"github.com/kiliankoe/rajamantri/internal/archive"
	"github.com/kiliankoe/rajamantri/internal/config"
	"github.com/kiliankoe/rajamantri/internal/game"
	"github.com/kiliankoe/rajamantri/internal/metrics"
	"github.com/kiliankoe/rajamantri/internal/ws"
	staticserver "github.com/kiliankoe/rajamantri/static"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	zerologlog "github.com/rs/zerolog/log"
)

var version = "dev" // Set at build time via -ldflags

func main() {
	var (
		showHelp    = flag.Bool("help", false, "Show help message")
		showVersion = flag.Bool("version", false, "Show version information")
		portFlag    = flag.String("port", "", "Port to listen on (overrides PORT env var)")
	)
	flag.BoolVar(showHelp, "h", false, "Show help message (shorthand)")
	flag.BoolVar(showVersion, "v", false, "Show version information (shorthand)")
	flag.Parse()

	if *showHelp {
		fmt.Printf(`Raja Mantri Chor Sipahi - party game room server

Usage: %s [options]

Options:
  -h, --help      Show this help message
  -v, --version   Show version information
  --port PORT     Port to listen on (default: 3000 or PORT env var)

Environment Variables:
  PORT                Port to listen on (default: 3000)
  PUBLIC_URL          Base URL used in invite QR codes (default: http://localhost:PORT)
  CONFIG_FILE         Optional YAML/JSON/TOML config file
  EXPORT_ENABLED      Append round results to a text file (default: false)
  EXPORT_FILE         Path of that file (default: ./rajamantri-results.txt)
  REDIS_ADDR          Archive resolved rounds in Redis (disabled when empty)
  REDIS_PASSWORD      Redis password
  REDIS_DB            Redis database (default: 0)
  REDIS_PREFIX        Key prefix (default: rajamantri)
  ADMIN_USER          Basic auth user for /rooms and /metrics
  ADMIN_PASS          Basic auth password for /rooms and /metrics

A .env file in the working directory is loaded first when present.
`, os.Args[0])
		return
	}

	if *showVersion {
		fmt.Printf("rajamantri %s\n", version)
		return
	}

	// zerolog setup (human-friendly console)
	zerolog.TimeFieldFormat = time.RFC3339
	cw := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	zerologlog.Logger = zerologlog.Output(cw)

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		zerologlog.Warn().Err(err).Msg("could not load .env")
	}

	cfg, err := config.Load()
	if err != nil {
		zerologlog.Fatal().Err(err).Msg("load config")
	}
	if *portFlag != "" {
		cfg.Port = *portFlag
	}

	rm := game.NewRoomManager()
	defer rm.Close()

	m := metrics.New("rajamantri")
	srv := api.New(rm, cfg, m)

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(srv.RequestLogger())

	// Socket server pushes room updates and round reveals
	sock := ws.New(rm)
	io := sock.Mount(r)
	defer io.Close()
	srv.SetNotifier(sock)
	srv.AddSink(sock)

	if cfg.ExportEnabled {
		srv.AddSink(game.NewFileExporter(cfg.ExportFile))
		zerologlog.Info().Str("file", cfg.ExportFile).Msg("exporting rounds")
	}

	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer client.Close()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		arch, err := archive.NewRedis(ctx, &archive.Config{RedisClient: client, Prefix: cfg.RedisPrefix})
		cancel()
		if err != nil {
			zerologlog.Fatal().Err(err).Str("addr", cfg.RedisAddr).Msg("redis archive")
		}
		srv.AddSink(arch)
		srv.SetArchive(arch)
		zerologlog.Info().Str("addr", cfg.RedisAddr).Msg("archiving rounds to redis")
	}

	srv.Mount(r)

	r.NoRoute(func(c *gin.Context) {
		staticserver.Handler().ServeHTTP(c.Writer, c.Request)
	})

	zerologlog.Info().Str("port", cfg.Port).Str("version", version).Msg("listening")
	if err := r.Run(":" + cfg.Port); err != nil {
		zerologlog.Fatal().Err(err).Msg("server stopped")
	}
}
