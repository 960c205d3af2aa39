package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/holiman/uint256"

	"github.com/ton-community/mintless-jetton/cell"
	"github.com/ton-community/mintless-jetton/crypto"
	"github.com/ton-community/mintless-jetton/jetton"
	"github.com/ton-community/mintless-jetton/node"
	"github.com/ton-community/mintless-jetton/node/store"
)

// MessageJSON is one line of the message log fed to the node.
type MessageJSON struct {
	Src       string `json:"src"`
	Dst       string `json:"dst,omitempty"`
	WalletOf  string `json:"wallet_of,omitempty"`
	Deploy    bool   `json:"deploy,omitempty"`
	Value     string `json:"value,omitempty"`
	Bounce    bool   `json:"bounce,omitempty"`
	Body      string `json:"body,omitempty"`
	StateInit string `json:"state_init,omitempty"`
}

type ReceiptJSON struct {
	Seq      uint64 `json:"seq"`
	Src      string `json:"src"`
	Dst      string `json:"dst"`
	Code     string `json:"code,omitempty"`
	Deployed bool   `json:"deployed,omitempty"`
	External bool   `json:"external,omitempty"`
	Bounced  bool   `json:"bounced,omitempty"`
	Out      int    `json:"out"`
	Claimed  string `json:"claimed,omitempty"`
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	os.Exit(run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("jetton-node", flag.ContinueOnError)
	fs.SetOutput(stderr)
	defaults := node.DefaultConfig()
	flagCfg := defaults
	configPath := fs.String("config", "", "JSON config file")
	fs.StringVar(&flagCfg.DataDir, "datadir", defaults.DataDir, "node data directory")
	fs.StringVar(&flagCfg.LogLevel, "log-level", defaults.LogLevel, "log level: debug|info|warn|error")
	fs.StringVar(&flagCfg.HashBackend, "hash-backend", defaults.HashBackend, "state digest hash backend: simd|std")
	fs.StringVar(&flagCfg.Minter, "minter", defaults.Minter, "jetton minter address <wc>:<hex>")
	fs.StringVar(&flagCfg.MerkleRoot, "merkle-root", defaults.MerkleRoot, "airdrop dictionary root hash (hex)")
	fs.StringVar(&flagCfg.WalletCode, "wallet-code", defaults.WalletCode, "wallet code as BOC hex (default built-in)")
	fs.IntVar(&flagCfg.SaltSearchLimit, "salt-search-limit", defaults.SaltSearchLimit, "salts tried per wallet address")
	workchain := fs.Int("workchain", int(defaults.Workchain), "wallet workchain (0 or -1)")
	now := fs.Uint64("now", 0, "fixed unix time for every message (0 = system clock)")
	messages := fs.String("messages", "", "NDJSON message file, - for stdin")
	dryRun := fs.Bool("dry-run", false, "print effective config and exit")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	cfg := defaults
	if *configPath != "" {
		loaded, err := node.LoadConfig(*configPath)
		if err != nil {
			_, _ = fmt.Fprintf(stderr, "config load failed: %v\n", err)
			return 2
		}
		cfg = loaded
	}
	if *workchain < -128 || *workchain > 127 {
		_, _ = fmt.Fprintf(stderr, "invalid config: workchain %d out of range\n", *workchain)
		return 2
	}
	flagCfg.Workchain = int8(*workchain) // #nosec G115 -- range checked above.
	applyFlags(fs, &cfg, flagCfg)
	cfg.LogLevel = strings.ToLower(strings.TrimSpace(cfg.LogLevel))
	if err := node.ValidateConfig(cfg); err != nil {
		_, _ = fmt.Fprintf(stderr, "invalid config: %v\n", err)
		return 2
	}

	if err := printConfig(stdout, cfg); err != nil {
		_, _ = fmt.Fprintf(stderr, "config encode failed: %v\n", err)
		return 1
	}
	if *dryRun {
		return 0
	}

	logger, err := node.NewLogger(cfg.LogLevel, stderr)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "logger init failed: %v\n", err)
		return 2
	}
	hasher, err := crypto.LoadProvider(cfg.HashBackend)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "hash backend: %v\n", err)
		return 2
	}
	class, err := cfg.WalletClass()
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "wallet class: %v\n", err)
		return 2
	}
	db, err := store.Open(cfg.DataDir, class.Minter())
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "store open failed: %v\n", err)
		return 2
	}
	defer func() { _ = db.Close() }()

	var clock node.Clock = node.SystemClock{}
	if *now != 0 {
		clock = node.FixedClock(*now)
	}
	host, err := node.NewHost(class, db, node.HostConfig{Clock: clock, Logger: logger, Hasher: hasher})
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "host init failed: %v\n", err)
		return 2
	}

	if *messages != "" {
		in := stdin
		if *messages != "-" {
			f, err := os.Open(*messages) // #nosec G304 -- operator supplied message log.
			if err != nil {
				_, _ = fmt.Fprintf(stderr, "messages open failed: %v\n", err)
				return 2
			}
			defer func() { _ = f.Close() }()
			in = f
		}
		if err := processMessages(ctx, host, in, stdout); err != nil {
			_, _ = fmt.Fprintf(stderr, "processing failed: %v\n", err)
			return 1
		}
	}

	digest, err := host.StateDigest()
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "state digest failed: %v\n", err)
		return 1
	}
	lastSeq, err := db.LastSeq()
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "tx log read failed: %v\n", err)
		return 1
	}
	_, _ = fmt.Fprintf(stdout, "store: dir=%s last_seq=%d state_digest=%x\n", db.Dir(), lastSeq, digest)
	return 0
}

// applyFlags copies every flag the operator set explicitly over cfg.
func applyFlags(fs *flag.FlagSet, cfg *node.Config, from node.Config) {
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "datadir":
			cfg.DataDir = from.DataDir
		case "log-level":
			cfg.LogLevel = from.LogLevel
		case "hash-backend":
			cfg.HashBackend = from.HashBackend
		case "minter":
			cfg.Minter = from.Minter
		case "merkle-root":
			cfg.MerkleRoot = from.MerkleRoot
		case "wallet-code":
			cfg.WalletCode = from.WalletCode
		case "salt-search-limit":
			cfg.SaltSearchLimit = from.SaltSearchLimit
		case "workchain":
			cfg.Workchain = from.Workchain
		}
	})
}

func printConfig(w io.Writer, cfg node.Config) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(cfg)
}

// processMessages feeds each NDJSON line to host and writes one receipt
// line per delivered message, including the ones the wallets emit.
func processMessages(ctx context.Context, host *node.Host, in io.Reader, out io.Writer) error {
	enc := json.NewEncoder(out)
	enc.SetEscapeHTML(false)
	sc := bufio.NewScanner(in)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		var mj MessageJSON
		if err := json.Unmarshal([]byte(text), &mj); err != nil {
			return fmt.Errorf("line %d: %w", line, err)
		}
		msg, err := decodeMessage(host.Class(), mj)
		if err != nil {
			return fmt.Errorf("line %d: %w", line, err)
		}
		if err := host.Send(msg); err != nil {
			return err
		}
		receipts, err := host.Drain(ctx)
		if err != nil {
			return err
		}
		for _, r := range receipts {
			if err := enc.Encode(receiptJSON(r)); err != nil {
				return err
			}
		}
	}
	return sc.Err()
}

func decodeMessage(class *jetton.WalletClass, mj MessageJSON) (jetton.Message, error) {
	var msg jetton.Message
	src, err := cell.ParseAddress(mj.Src)
	if err != nil {
		return msg, fmt.Errorf("src: %w", err)
	}
	msg.Src = src
	msg.Bounce = mj.Bounce

	switch {
	case mj.WalletOf != "":
		owner, err := cell.ParseAddress(mj.WalletOf)
		if err != nil {
			return msg, fmt.Errorf("wallet_of: %w", err)
		}
		si, _, err := class.StateInitAndSalt(owner)
		if err != nil {
			return msg, err
		}
		if msg.Dst, err = si.Address(class.Workchain()); err != nil {
			return msg, err
		}
		if mj.Deploy {
			msg.StateInit = &si
		}
	case mj.Dst != "":
		if msg.Dst, err = cell.ParseAddress(mj.Dst); err != nil {
			return msg, fmt.Errorf("dst: %w", err)
		}
	default:
		return msg, errors.New("dst or wallet_of required")
	}

	msg.Value = new(uint256.Int)
	if mj.Value != "" {
		if msg.Value, err = uint256.FromDecimal(mj.Value); err != nil {
			return msg, fmt.Errorf("value: %w", err)
		}
	}
	if mj.Body != "" {
		if msg.Body, err = cell.FromBOCHex(mj.Body); err != nil {
			return msg, fmt.Errorf("body: %w", err)
		}
	}
	if mj.StateInit != "" {
		c, err := cell.FromBOCHex(mj.StateInit)
		if err != nil {
			return msg, fmt.Errorf("state_init: %w", err)
		}
		si, err := jetton.ParseStateInit(c)
		if err != nil {
			return msg, fmt.Errorf("state_init: %w", err)
		}
		msg.StateInit = &si
	}
	return msg, nil
}

func receiptJSON(r node.Receipt) ReceiptJSON {
	out := ReceiptJSON{
		Seq:      r.Seq,
		Src:      r.Msg.Src.String(),
		Dst:      r.Msg.Dst.String(),
		Code:     string(r.Code),
		Deployed: r.Deployed,
		External: r.External,
		Bounced:  r.Msg.Bounced,
		Out:      len(r.Out),
	}
	if r.Claimed != nil {
		out.Claimed = r.Claimed.Amount.Dec()
	}
	return out
}
