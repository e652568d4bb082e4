// Command certsync runs one certificate operation against the service and
// prints the payload together with the resulting client state.
//
//	certsync -config certsync.yaml list bob
//	certsync get 42
//	certsync complete 42
//	certsync mint 42 0xabc... 0xsig...
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/unkn0wn-root/certsync"
	"github.com/unkn0wn-root/certsync/codec"
	asynchook "github.com/unkn0wn-root/certsync/hooks/async"
	"github.com/unkn0wn-root/certsync/sloghooks"
	"github.com/unkn0wn-root/certsync/transport"
)

var (
	configFlag   string
	baseURLFlag  string
	localeFlag   string
	logLevelFlag string
	forceFlag    bool
)

func init() {
	flag.StringVar(&configFlag, "config", "", "YAML config file")
	flag.StringVar(&baseURLFlag, "base-url", "", "Service base URL (overrides config)")
	flag.StringVar(&localeFlag, "locale", "", "Accept-Language for queries (overrides config)")
	flag.StringVar(&logLevelFlag, "log-level", "", "Log level (overrides config)")
	flag.BoolVar(&forceFlag, "force", false, "Bypass the result cache for queries")
}

func main() {
	flag.Parse()
	if err := run(context.Background(), flag.Args(), os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, "certsync:", err)
		os.Exit(1)
	}
}

type output struct {
	Payload   any            `json:"payload"`
	FromCache bool           `json:"fromCache"`
	Snapshot  snapshotOutput `json:"snapshot"`
}

type snapshotOutput struct {
	List                 []certsync.Certificate `json:"list"`
	Current              *certsync.Certificate  `json:"current"`
	CurrentMintingStatus bool                   `json:"currentMintingStatus"`
	MintingTxData        json.RawMessage        `json:"mintingTxData,omitempty"`
	Version              uint64                 `json:"version"`
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: certsync [flags] list <username> | get <id> | complete <id> | mint <id> <address> <signature>")
	}

	cfg, err := loadConfig(configFlag)
	if err != nil {
		return err
	}
	if baseURLFlag != "" {
		cfg.BaseURL = baseURLFlag
	}
	if localeFlag != "" {
		cfg.Locale = localeFlag
	}
	if logLevelFlag != "" {
		cfg.Log.Level = logLevelFlag
	}
	if err := cfg.validate(); err != nil {
		return err
	}

	logger, flush, err := buildLogger(cfg.Log, stderr)
	if err != nil {
		return err
	}
	defer flush()

	hookLog, err := newSlog(cfg.Log.Level, stderr)
	if err != nil {
		return err
	}
	hooks := asynchook.New(sloghooks.New(hookLog, sloghooks.Options{SelfHealEvery: 10}), 1, 256)
	defer hooks.Close()

	provider, gens, err := buildCache(ctx, cfg.Cache)
	if err != nil {
		return err
	}

	codecs := codec.DefaultRegistry()
	exec, err := transport.NewHTTPExecutor(cfg.BaseURL, &http.Client{Timeout: cfg.Timeout})
	if err != nil {
		return err
	}
	exec.Accept = codecs.Accept()
	for k, v := range cfg.Headers {
		exec.DefaultHeaders[k] = v
	}

	client, err := certsync.New(certsync.Options{
		Executor:  exec,
		Codecs:    codecs,
		Logger:    logger,
		Hooks:     hooks,
		Namespace: cfg.Cache.Namespace,
		Provider:  provider,
		GenStore:  gens,
		ResultTTL: cfg.Cache.KeepUnusedFor,
	})
	if err != nil {
		return err
	}
	defer func() {
		cctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = client.Close(cctx)
	}()

	out, err := dispatch(ctx, client, cfg, args)
	if err != nil {
		return err
	}
	snap := client.Snapshot()
	out.Snapshot = snapshotOutput{
		List:                 snap.List,
		Current:              snap.Current,
		CurrentMintingStatus: snap.CurrentMintingStatus,
		MintingTxData:        snap.MintingTxData,
		Version:              snap.Version,
	}

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func dispatch(ctx context.Context, client *certsync.Client, cfg Config, args []string) (output, error) {
	need := func(n int) error {
		if len(args) != n+1 {
			return fmt.Errorf("%s: expected %d argument(s), got %d", args[0], n, len(args)-1)
		}
		return nil
	}

	switch args[0] {
	case "list":
		if err := need(1); err != nil {
			return output{}, err
		}
		return await(ctx, client.FetchAllCertificates(ctx, certsync.ListArgs{
			Username: args[1], Locale: cfg.Locale, ForceRefetch: forceFlag,
		}))
	case "get":
		if err := need(1); err != nil {
			return output{}, err
		}
		return await(ctx, client.FindCertificate(ctx, certsync.FindArgs{
			ID: args[1], Locale: cfg.Locale, ForceRefetch: forceFlag,
		}))
	case "complete":
		if err := need(1); err != nil {
			return output{}, err
		}
		return await(ctx, client.CompleteIcpCertificate(ctx, certsync.CompleteArgs{ID: args[1]}))
	case "mint":
		if err := need(3); err != nil {
			return output{}, err
		}
		return await(ctx, client.MintCertificate(ctx, certsync.MintArgs{
			ID: args[1], Address: args[2], Signature: args[3],
		}))
	default:
		return output{}, fmt.Errorf("unknown command %q", args[0])
	}
}

func await[R any](ctx context.Context, h *certsync.Handle[R]) (output, error) {
	v, err := h.Wait(ctx)
	if err != nil {
		return output{}, err
	}
	return output{Payload: v, FromCache: h.FromCache()}, nil
}
