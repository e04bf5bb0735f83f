// Command mcpay calls a payment-gated tool, paying the gateway's 402
// challenge from a local wallet when one is issued.
//
// It reads a JSON body from stdin and POSTs it to the proxy URL:
//
//	echo '{"city":"Paris"}' | mcpay -proxy-url http://localhost:8080/proxy/weather/forecast
//
// With -mcp it instead serves every catalog action as an MCP tool over
// stdio, paying for calls as they happen:
//
//	mcpay -mcp -catalog db.json -proxy-url http://localhost:8080
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/proxyfox/proxyfox"
	"github.com/proxyfox/proxyfox/catalog"
	pfhttp "github.com/proxyfox/proxyfox/http"
	"github.com/proxyfox/proxyfox/internal/config"
	"github.com/proxyfox/proxyfox/mcp"
	"github.com/proxyfox/proxyfox/mechanisms/evm"
	evmsigner "github.com/proxyfox/proxyfox/signers/evm"
)

func main() {
	if err := run(os.Args[1:], os.Stdin, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "mcpay: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, stdin io.Reader, stdout io.Writer) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	fs := flag.NewFlagSet("mcpay", flag.ContinueOnError)
	fs.StringVar(&cfg.ProxyURL, "proxy-url", cfg.ProxyURL, "tool URL, or gateway base URL with -mcp (env PROXY_URL)")
	fs.StringVar(&cfg.PrivateKey, "private-key", cfg.PrivateKey, "hex wallet private key (env EVM_PRIVATE_KEY)")
	fs.StringVar(&cfg.RPCURL, "rpc-url", cfg.RPCURL, "EVM JSON-RPC endpoint (env EVM_RPC_URL)")
	network := fs.String("network", string(cfg.Network), "network name (env PROXYFOX_NETWORK)")
	serveMCP := fs.Bool("mcp", false, "serve catalog actions as MCP tools over stdio")
	catalogPath := fs.String("catalog", cfg.CatalogPath, "catalog file for -mcp (env CATALOG_PATH)")
	verbose := fs.Bool("v", false, "log payment progress to stderr")
	if err := fs.Parse(args); err != nil {
		return err
	}
	cfg.Network = proxyfox.Network(*network)

	if err := cfg.ValidateClient(); err != nil {
		return err
	}
	netCfg, err := cfg.NetworkConfig()
	if err != nil {
		return err
	}

	logger := zap.NewNop()
	if *verbose {
		if logger, err = zap.NewDevelopment(); err != nil {
			return err
		}
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client, ledger, err := evm.Dial(ctx, cfg.RPCURL, cfg.Network, logger)
	if err != nil {
		return err
	}
	defer client.Close()

	wallet, err := evmsigner.NewWalletFromPrivateKey(cfg.PrivateKey, client, *netCfg,
		evmsigner.WithReceiptTimeout(cfg.ReceiptTimeout),
		evmsigner.WithWalletLogger(logger),
	)
	if err != nil {
		return err
	}
	payer := proxyfox.NewPayer(wallet, ledger, proxyfox.WithPayerLogger(logger))
	httpClient := pfhttp.WrapClient(nil, payer,
		pfhttp.WithClientLogger(logger),
		pfhttp.WithStateObserver(func(req *http.Request, from, to proxyfox.PaymentState) {
			logger.Info("payment state", zap.String("from", string(from)), zap.String("to", string(to)))
		}),
	)

	if *serveMCP {
		if *catalogPath == "" {
			return fmt.Errorf("-mcp requires -catalog or CATALOG_PATH")
		}
		cat, err := catalog.NewFileCatalog(*catalogPath, catalog.WithFileLogger(logger))
		if err != nil {
			return err
		}
		tools := mcp.NewToolServer(cat, cfg.ProxyURL, httpClient, mcp.WithLogger(logger))
		if _, err := tools.Register(ctx); err != nil {
			return err
		}
		return tools.Run(ctx, &mcpsdk.StdioTransport{})
	}

	return call(ctx, httpClient, cfg.ProxyURL, stdin, stdout)
}

// call POSTs the JSON read from stdin and prints the response body.
func call(ctx context.Context, client *http.Client, url string, stdin io.Reader, stdout io.Writer) error {
	body, err := io.ReadAll(stdin)
	if err != nil {
		return fmt.Errorf("failed to read stdin: %w", err)
	}
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		body = []byte("{}")
	}
	if !json.Valid(body) {
		return fmt.Errorf("stdin is not valid JSON")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	var pretty bytes.Buffer
	if json.Indent(&pretty, data, "", "  ") == nil {
		data = pretty.Bytes()
	}
	fmt.Fprintln(stdout, string(data))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("request failed: %s", resp.Status)
	}
	return nil
}
