package main

import (
	"context"
	"fmt"
	"net/http"
	"net/http/pprof"
	"net/url"
	"os"
	"reflect"
	"syscall"
	"time"

	"github.com/aukilabs/go-tooling/pkg/cli"
	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/aukilabs/go-tooling/pkg/metrics"
	"github.com/aukilabs/wayfinder/featureflag"
	"github.com/aukilabs/wayfinder/floorplan"
	wayfinderhttp "github.com/aukilabs/wayfinder/http"
	"github.com/aukilabs/wayfinder/models"
	"github.com/aukilabs/wayfinder/pathfinder"
	"github.com/aukilabs/wayfinder/smoketest"
	wwebsocket "github.com/aukilabs/wayfinder/websocket"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/segmentio/encoding/json"
)

var (
	// The Wayfinder version number. Set at build.
	version = "v0.1.0"

	infoGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name:        "wayfinder_info",
		Help:        "Wayfinder information.",
		ConstLabels: prometheus.Labels{"version": version},
	})
)

// This will effectively disable obfuscation of the config struct. Without it, the keys would get obfuscated causing the cli package to generate garbled command-line options.
// https://github.com/burrowers/garble/issues/403
var _ = reflect.TypeOf(config{})

type config struct {
	Addr               string          `cli:""        env:"WAYFINDER_ADDR"                 help:"Listening address for client connections."`
	AdminAddr          string          `cli:""        env:"WAYFINDER_ADMIN_ADDR"           help:"Admin listening address."`
	PublicEndpoint     string          `cli:""        env:"WAYFINDER_PUBLIC_ENDPOINT"      help:"The public endpoint where this Wayfinder server is reachable."`
	LogLevel           string          `cli:""        env:"WAYFINDER_LOG_LEVEL"            help:"Log level (debug|info|warning|error)."`
	LogIndent          bool            `cli:""        env:"WAYFINDER_LOG_INDENT"           help:"Indent logs."`
	ServerID           string          `cli:""        env:"WAYFINDER_SERVER_ID"            help:"The prefix of the session ids issued by this server."`
	ClientIdleTimeout  time.Duration   `cli:",hidden" env:"WAYFINDER_CLIENT_IDLE_TIMEOUT"  help:"Time until an idle stream client will be disconnected."`
	LogSummaryInterval time.Duration   `cli:",hidden" env:"WAYFINDER_LOG_SUMMARY_INTERVAL" help:"The duration between each log summary by connection."`
	FloorPlan          floorPlanConfig `cli:",hidden" env:"-"                              help:"Floor plan configuration."`
	MaxExpansions      int             `cli:",hidden" env:"WAYFINDER_MAX_EXPANSIONS"       help:"The maximum number of cells a path search expands. 0 is unbounded."`
	FeatureFlags       []string        `cli:",hidden" env:"WAYFINDER_FEATURE_FLAGS"        help:"Comma separated feature flags"`
	Version            bool            `cli:""        env:"-"                              help:"Show version."`
	Help               bool            `cli:""        env:"-"                              help:"Show help."`
}

type floorPlanConfig struct {
	OriginX float64 `cli:",hidden" env:"WAYFINDER_FLOOR_PLAN_ORIGIN_X" help:"The X coordinate of the floor plan lower corner, in meters."`
	OriginY float64 `cli:",hidden" env:"WAYFINDER_FLOOR_PLAN_ORIGIN_Y" help:"The Y coordinate of the floor plan lower corner, in meters."`
	Extent  float64 `cli:",hidden" env:"WAYFINDER_FLOOR_PLAN_EXTENT"   help:"The side length of the floor plan, in meters."`
	Depth   int     `cli:",hidden" env:"WAYFINDER_FLOOR_PLAN_DEPTH"    help:"The number of subdivisions of the floor plan."`
}

func (c floorPlanConfig) sessionConfig() models.FloorPlanConfig {
	return models.FloorPlanConfig{
		Origin: floorplan.Vector2{
			X: c.OriginX,
			Y: c.OriginY,
		},
		Extent: c.Extent,
		Depth:  c.Depth,
	}
}

// Path searches are unbounded by default.
func defaultConfig() config {
	return config{
		Addr:               ":4100",
		AdminAddr:          ":18191",
		PublicEndpoint:     "http://localhost:4100",
		LogLevel:           logs.InfoLevel.String(),
		ServerID:           "wayfinder",
		ClientIdleTimeout:  time.Minute * 5,
		LogSummaryInterval: time.Minute,
		FloorPlan: floorPlanConfig{
			OriginX: -80,
			OriginY: -80,
			Extent:  160,
			Depth:   8,
		},
	}
}

func main() {
	conf := defaultConfig()

	// set the information gauge to 1, useful for SUM query
	infoGauge.Set(1)

	ctx, cancel := cli.ContextWithSignals(context.Background(),
		os.Interrupt,
		syscall.SIGTERM,
	)
	defer cancel()

	envErr := loadEnvFile()

	cli.Register().
		Help("Starts Wayfinder server.").
		Options(&conf)
	cli.Load()

	if conf.Version {
		fmt.Println(version)
		os.Exit(0)
	}

	logs.SetLevel(logs.ParseLevel(conf.LogLevel))
	logs.Encoder = json.Marshal
	if conf.LogIndent {
		logs.Encoder = func(v any) ([]byte, error) {
			return json.MarshalIndent(v, "", "  ")
		}
	}

	errors.Encoder = json.Marshal

	if envErr != nil {
		logs.Warn(envErr)
	}

	if err := validateConfig(conf); err != nil {
		logs.Fatal(err)
	}

	featureFlags := featureflag.New(conf.FeatureFlags)
	if unknown := featureFlags.Unknown(); len(unknown) != 0 {
		logs.Warn(errors.New("unknown feature flags").
			WithTag("feature_flags", unknown))
	}

	sessions := models.SessionStore{
		ServerID:          conf.ServerID,
		FloorPlan:         conf.FloorPlan.sessionConfig(),
		PathFinderOptions: pathFinderOptions(conf, featureFlags),
	}

	var service http.ServeMux

	service.Handle("/health", wayfinderhttp.HandleWithCORS(http.HandlerFunc(wayfinderhttp.HandleHealthCheck)))
	service.Handle("/version", wayfinderhttp.HandleWithCORS(wayfinderhttp.HandleVersion(version)))

	readinessCheck := func() bool {
		return ctx.Err() == nil
	}
	service.Handle("/ready", wayfinderhttp.HandleWithCORS(wayfinderhttp.HandleReadyCheck(readinessCheck)))

	service.HandleFunc("POST /smoke-test", smoketest.HandleSmokeTest(ctx, smoketest.Options{
		Endpoint:  conf.PublicEndpoint,
		UserAgent: fmt.Sprintf("Wayfinder %s", version),
		SendResult: func(_ context.Context, res smoketest.Result) error {
			logs.WithTag("result", res).Info("smoke test completed")
			return nil
		},
	}))

	var api http.ServeMux
	(&wayfinderhttp.API{Sessions: &sessions}).Register(&api)

	api.Handle("GET /sessions/{id}/stream", wwebsocket.HandleSessionStream(ctx, &sessions, func(s *models.Session) wwebsocket.Handler {
		var h wwebsocket.Handler = &wwebsocket.RealtimeHandler{
			ClientIdleTimeout: conf.ClientIdleTimeout,
			Sessions:          &sessions,
			Session:           s,
			FeatureFlags:      featureFlags,
		}
		h = wwebsocket.HandlerWithLogs(h, conf.LogSummaryInterval)
		h = wwebsocket.HandlerWithMetrics(h, conf.ServerID)
		return h
	}))
	service.Handle("/sessions", wayfinderhttp.HandleWithCORS(&api))
	service.Handle("/sessions/", wayfinderhttp.HandleWithCORS(&api))

	var admin http.ServeMux
	admin.Handle("/metrics", promhttp.Handler())
	admin.HandleFunc("/health", wayfinderhttp.HandleHealthCheck)
	admin.HandleFunc("/debug/pprof/", pprof.Index)
	admin.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	admin.HandleFunc("/debug/pprof/profile", pprof.Profile)
	admin.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	admin.HandleFunc("/debug/pprof/trace", pprof.Trace)
	admin.Handle("/debug/pprof/goroutine", pprof.Handler("goroutine"))
	admin.Handle("/debug/pprof/heap", pprof.Handler("heap"))
	admin.Handle("/debug/pprof/threadcreate", pprof.Handler("threadcreate"))
	admin.Handle("/debug/pprof/block", pprof.Handler("block"))
	admin.HandleFunc("/ready", wayfinderhttp.HandleReadyCheck(readinessCheck))

	logs.WithTag("version", version).
		WithTag("log_level", conf.LogLevel).
		WithTag("server_id", conf.ServerID).
		WithTag("endpoint", conf.PublicEndpoint).
		WithTag("floor_plan", conf.FloorPlan).
		WithTag("feature_flags", conf.FeatureFlags).
		Info("starting wayfinder server")

	wayfinderhttp.ListenAndServe(ctx,
		&http.Server{Addr: conf.Addr, Handler: metrics.HTTPHandler(&service,
			wayfinderhttp.MetricsPathFormatter)},
		&http.Server{Addr: conf.AdminAddr, Handler: &admin},
	)
}

// Loads the variables of the file named by WAYFINDER_ENV_FILE, or of .env
// when it exists. Variables already set in the environment are kept.
func loadEnvFile() error {
	filename := os.Getenv("WAYFINDER_ENV_FILE")
	if filename == "" {
		if _, err := os.Stat(".env"); err != nil {
			return nil
		}
		filename = ".env"
	}

	if err := godotenv.Load(filename); err != nil {
		return errors.New("loading env file failed").
			WithTag("file_name", filename).
			Wrap(err)
	}
	return nil
}

func pathFinderOptions(conf config, featureFlags featureflag.FeatureFlag) []pathfinder.Option {
	opts := []pathfinder.Option{
		pathfinder.WithMaxExpansions(conf.MaxExpansions),
	}

	featureFlags.IfSet(featureflag.FlagAdmissibleHeuristic, func() {
		opts = append(opts, pathfinder.WithAdmissibleHeuristic())
	})
	return opts
}

func validateConfig(conf config) error {
	if _, err := url.ParseRequestURI(conf.PublicEndpoint); err != nil {
		return errors.New("invalid public endpoint").Wrap(err)
	}

	if conf.ServerID == "" {
		return errors.New("server id is empty")
	}

	if conf.FloorPlan.Extent <= 0 {
		return errors.New("floor plan extent must be positive").
			WithTag("extent", conf.FloorPlan.Extent)
	}

	if conf.FloorPlan.Depth < 0 {
		return errors.New("floor plan depth must not be negative").
			WithTag("depth", conf.FloorPlan.Depth)
	}

	if conf.MaxExpansions < 0 {
		return errors.New("max expansions must not be negative").
			WithTag("max_expansions", conf.MaxExpansions)
	}
	return nil
}
