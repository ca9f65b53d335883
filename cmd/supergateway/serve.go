package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/kataway/supergateway/federation/authz"
	"github.com/kataway/supergateway/federation/capability"
	"github.com/kataway/supergateway/federation/graph"
	"github.com/kataway/supergateway/gateway"
	"github.com/kataway/supergateway/gateway/authext"
	"github.com/kataway/supergateway/registry"
)

const version = "v0.1.0"

func serveCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "start the federation gateway server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(*configPath)
		},
	}
}

func runServe(configPath string) error {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	settings, err := gateway.LoadSettings(configPath)
	if err != nil {
		log.Printf("failed to load gateway config: %v", err)
		os.Exit(exitConfigError)
	}

	sdl, err := os.ReadFile(settings.SupergraphPath)
	if err != nil {
		log.Printf("failed to read composed supergraph: %v", err)
		os.Exit(exitConfigError)
	}

	schema, err := graph.Build(sdl, settings.SubgraphConfigs())
	if err != nil {
		log.Printf("failed to build supergraph: %v", err)
		os.Exit(exitConfigError)
	}

	fetcher := newHTTPFetcher()
	metrics := newPrometheusMetrics()
	cache := registry.NewOperationCache(1024)

	var opts []gateway.Option
	opts = append(opts, gateway.WithOperationCache(cache))
	if settings.JWT.Enable {
		secret := []byte(settings.JWT.HMACSecret)
		keyFunc := func(t *jwt.Token) (any, error) { return secret, nil }
		opts = append(opts, gateway.WithExtensions(authext.New(keyFunc)))
	}

	gw := gateway.New(schema, fetcher, metrics, opts...)

	var handler http.Handler = gw.Handler(settings.CORS)
	if settings.Tracing.Enable {
		handler = otelhttp.NewHandler(handler, settings.ServiceName)
	}

	srv := &http.Server{Addr: fmt.Sprintf(":%d", settings.Port), Handler: handler}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	var shutdownTracer func(context.Context) error
	if settings.Tracing.Enable {
		shutdownTracer, err = gateway.InitTracer(ctx, settings.ServiceName, version)
		if err != nil {
			log.Printf("failed to initialize tracer: %v", err)
			os.Exit(exitBootstrapError)
		}
	}

	go func() {
		log.Printf("starting supergateway on port %d", settings.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("gateway server failed: %v", err)
			os.Exit(exitBootstrapError)
		}
	}()

	<-ctx.Done()

	timeout := 10 * time.Second
	if settings.TimeoutDuration != "" {
		if d, err := time.ParseDuration(settings.TimeoutDuration); err == nil {
			timeout = d
		}
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	log.Println("shutting down supergateway...")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("failed to shutdown gateway server: %v", err)
		os.Exit(exitBootstrapError)
	}
	if shutdownTracer != nil {
		if err := shutdownTracer(shutdownCtx); err != nil {
			log.Printf("failed to shutdown tracer: %v", err)
		}
	}
	log.Println("supergateway stopped")
	return nil
}

// httpFetcher is the default capability.Fetcher: one shared net/http client
// used for every subgraph call.
type httpFetcher struct {
	client *http.Client
}

func newHTTPFetcher() *httpFetcher {
	return &httpFetcher{client: &http.Client{Timeout: 30 * time.Second}}
}

type subgraphRequestBody struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

type subgraphResponseBody struct {
	Data   map[string]any `json:"data"`
	Errors []authz.Error  `json:"errors"`
}

func (f *httpFetcher) Fetch(ctx context.Context, req capability.SubgraphRequest) (*capability.SubgraphResponse, error) {
	payload, err := json.Marshal(subgraphRequestBody{Query: req.Query, Variables: req.Variables})
	if err != nil {
		return nil, err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, req.URL, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}

	resp, err := f.client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var body subgraphResponseBody
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &body); err != nil {
			return &capability.SubgraphResponse{
				StatusCode: resp.StatusCode,
				Errors:     []authz.Error{{Code: authz.CodeSubgraphInvalidResp, Message: fmt.Sprintf("decoding subgraph response: %v", err)}},
			}, nil
		}
	}

	return &capability.SubgraphResponse{Data: body.Data, Errors: body.Errors, StatusCode: resp.StatusCode}, nil
}
