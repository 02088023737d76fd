package main

import (
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"math/big"
	"os"
	"strings"

	"bondvault/config"
	"bondvault/core/events"
	"bondvault/core/types"
	"bondvault/native/cache"
	"bondvault/native/common"
	"bondvault/native/offers"
	"bondvault/native/redemption"
	"bondvault/native/settle"
	"bondvault/native/token"
	"bondvault/observability/logging"
	"bondvault/rpc"
	"bondvault/state"
	"bondvault/storage"
)

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	logger := logging.Setup("bondvaultd", cfg.Environment, logging.Options{
		Level:      cfg.LogLevel,
		File:       cfg.LogFile,
		MaxSizeMB:  cfg.LogMaxSizeMB,
		MaxBackups: cfg.LogMaxBackups,
	})

	boss, err := cfg.Boss()
	if err != nil {
		logger.Error("Invalid boss address", slog.Any("error", err))
		os.Exit(1)
	}
	operator, err := cfg.Operator()
	if err != nil {
		logger.Error("Invalid operator address", slog.Any("error", err))
		os.Exit(1)
	}

	db, err := storage.NewLevelDB(cfg.DataDir)
	if err != nil {
		panic(fmt.Sprintf("Failed to open database: %v", err))
	}
	defer db.Close()

	manager := state.NewManager(db)
	ledger := token.NewBook(manager)
	for _, asset := range cfg.Assets {
		err := ledger.Register(asset.Symbol, asset.Decimals, asset.MintAuthority)
		if errors.Is(err, token.ErrAssetExists) {
			continue
		}
		if err != nil {
			logger.Error("Failed to register asset", slog.String("asset", asset.Symbol), slog.Any("error", err))
			os.Exit(1)
		}
		logger.Info("Registered asset", slog.String("asset", asset.Symbol), slog.Bool("mintAuthority", asset.MintAuthority))
	}

	authority := common.NewAuthority(boss)
	admins, err := cfg.Admins()
	if err != nil {
		logger.Error("Invalid admin address", slog.Any("error", err))
		os.Exit(1)
	}
	for _, admin := range admins {
		if err := authority.AddAdmin(admin); err != nil {
			logger.Error("Failed to add admin", slog.Any("error", err))
			os.Exit(1)
		}
	}
	redemptionAdmins, err := cfg.RedemptionAdmins()
	if err != nil {
		logger.Error("Invalid redemption admin address", slog.Any("error", err))
		os.Exit(1)
	}
	for _, admin := range redemptionAdmins {
		if err := authority.AddRedemptionAdmin(admin); err != nil {
			logger.Error("Failed to add redemption admin", slog.Any("error", err))
			os.Exit(1)
		}
	}

	emitter := logEmitter{logger: logger}

	book := offers.NewBook()
	book.SetState(manager)
	book.SetAuth(authority)
	book.SetEmitter(emitter)

	settler := settle.NewSettler(ledger, operator)
	settleEngine := settle.NewEngine(settler)
	settleEngine.SetState(manager)
	settleEngine.SetAuth(authority)
	settleEngine.SetEmitter(emitter)

	redemptionEngine := redemption.NewEngine(settler)
	redemptionEngine.SetState(manager)
	redemptionEngine.SetAuth(authority)
	redemptionEngine.SetEmitter(emitter)

	cacheEngine := cache.NewEngine(ledger)
	cacheEngine.SetState(manager)
	cacheEngine.SetAuth(authority)
	cacheEngine.SetEmitter(emitter)
	cacheEngine.SetNavSource(curveNav{book: book, quote: cfg.NavQuoteAsset})

	server := rpc.NewServer(rpc.Services{
		Offers:     book,
		Settle:     settleEngine,
		Redemption: redemptionEngine,
		Cache:      cacheEngine,
		Ledger:     ledger,
	}, rpc.Options{
		AuthToken: cfg.Token(),
		RateLimit: cfg.RPCRateLimit,
		RateBurst: cfg.RPCRateBurst,
	})

	logger.Info("Starting JSON-RPC server", slog.String("addr", cfg.RPCAddress))
	if err := server.Start(cfg.RPCAddress); err != nil {
		logger.Error("RPC server exited", slog.Any("error", err))
		os.Exit(1)
	}
}

// curveNav answers NAV queries from the live curve of the asset's offer
// against the configured quote asset.
type curveNav struct {
	book  *offers.Book
	quote string
}

func (n curveNav) Nav(asset string, now int64) (*big.Int, error) {
	return n.book.ActivePrice(asset, n.quote, now)
}

// logEmitter mirrors engine events into the structured log.
type logEmitter struct {
	logger *slog.Logger
}

func (l logEmitter) Emit(evt events.Event) {
	if evt == nil || l.logger == nil {
		return
	}
	attrs := []any{slog.String("type", evt.EventType())}
	if carrier, ok := evt.(interface{ Event() *types.Event }); ok {
		if e := carrier.Event(); e != nil {
			for key, value := range e.Attributes {
				attrs = append(attrs, slog.String(strings.ToLower(key), value))
			}
		}
	}
	l.logger.Info("engine event", attrs...)
}
