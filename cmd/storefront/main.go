// Command storefront is a shopper-side CLI for the storefront API: it lists
// coupons, prices a checkout with stacked coupons, and drives order
// cancellation and returns.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/sdk/zctx"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/xenking/storefront/internal/client"
	"github.com/xenking/storefront/internal/session"
)

type config struct {
	BaseURL string        `default:"http://localhost:8080" usage:"storefront API base URL"`
	Token   string        `usage:"session token sent as a bearer credential"`
	Timeout time.Duration `default:"15s" usage:"HTTP request timeout"`
	Debug   bool          `default:"false" usage:"log HTTP calls to stderr"`
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	var cfg config
	if err := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix: "STOREFRONT",
		SkipFlags: true,
		Files:     []string{"storefront.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	}).Load(); err != nil {
		fmt.Fprintln(os.Stderr, "load config:", err)
		os.Exit(1)
	}

	lg := zap.NewNop()
	if cfg.Debug {
		var err error
		if lg, err = zap.NewDevelopment(); err != nil {
			panic(err)
		}
	}
	defer func() { _ = lg.Sync() }()

	api, err := client.New(cfg.BaseURL,
		client.WithSession(session.NewMemory(cfg.Token)),
		client.WithHTTPClient(&http.Client{
			Timeout:   cfg.Timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		}),
	)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()
	ctx = zctx.Base(ctx, lg)

	cli := &cli{api: api, out: os.Stdout}
	if err := cli.Run(ctx, os.Args[1], os.Args[2:]); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		cancel()
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprint(os.Stderr, `usage: storefront <command> [flags]

commands:
  coupons                         list active coupons
  checkout -subtotal N [-code C]  price a checkout with stacked coupons
  order <id>                      show an order and its primary action
  cancel <id>                     cancel an order
  return <id> -product P -accept  request a return or exchange

environment: STOREFRONT_BASE_URL, STOREFRONT_TOKEN, STOREFRONT_TIMEOUT, STOREFRONT_DEBUG
`)
}
