package flags

import (
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/ruteri/music-copyright-registry/common"
	"github.com/ruteri/music-copyright-registry/httpserver"
	"github.com/ruteri/music-copyright-registry/registry"
	"github.com/urfave/cli/v2"
)

func SetupLogger(cCtx *cli.Context) (log *slog.Logger) {
	logJSON := cCtx.Bool(LogJsonFlag.Name)
	logDebug := cCtx.Bool(LogDebugFlag.Name)
	logUID := cCtx.Bool(LogUidFlag.Name)
	logService := cCtx.String("log-service")

	logger := common.SetupLogger(&common.LoggingOpts{
		Debug:   logDebug,
		JSON:    logJSON,
		Service: logService,
		Version: common.Version,
	})

	if logUID {
		id := uuid.Must(uuid.NewRandom())
		logger = logger.With("uid", id.String())
	}
	return logger
}

func ConfigureServer(cCtx *cli.Context, logger *slog.Logger) *httpserver.HTTPServerConfig {
	enablePprof := cCtx.Bool(PprofFlag.Name)
	drainDuration := time.Duration(cCtx.Int64(DrainSecondsFlag.Name)) * time.Second

	return &httpserver.HTTPServerConfig{
		ListenAddr:               cCtx.String(ListenAddrFlag.Name),
		Log:                      logger,
		EnablePprof:              enablePprof,
		EnableRefreshAPI:         cCtx.Bool(RefreshAPIFlag.Name),
		RefreshCooldown:          cCtx.Duration(RefreshCooldownFlag.Name),
		DrainDuration:            drainDuration,
		GracefulShutdownDuration: 30 * time.Second,
		ReadTimeout:              60 * time.Second,
		WriteTimeout:             30 * time.Second,
	}
}

var RpcAddrFlag = &cli.StringFlag{
	Name:    "rpc-addr",
	Value:   "http://127.0.0.1:8545",
	Usage:   "address to connect to RPC",
	EnvVars: []string{"MUSICREG_RPC_ADDR"},
}

var ContractFlag = &cli.StringFlag{
	Name:    "contract",
	Usage:   "music registry contract address, hex with or without 0x prefix",
	EnvVars: []string{"MUSICREG_CONTRACT"},
}

var PrivateKeyFlag = &cli.StringFlag{
	Name:    "private-key",
	Usage:   "hex-encoded signing key; read-only when empty",
	EnvVars: []string{"MUSICREG_PRIVATE_KEY"},
}

var StoreFlag = &cli.StringSliceFlag{
	Name:    "store",
	Value:   cli.NewStringSlice("ipfs://127.0.0.1:5001"),
	Usage:   "content store URI (ipfs://, s3://, file://); repeat to mirror, the first one assigns content ids",
	EnvVars: []string{"MUSICREG_STORE"},
}

var ConfirmTimeoutFlag = &cli.DurationFlag{
	Name:    "confirm-timeout",
	Value:   registry.DefaultConfirmationTimeout,
	Usage:   "how long to wait for a transaction to be included",
	EnvVars: []string{"MUSICREG_CONFIRM_TIMEOUT"},
}

var AccessGasLimitFlag = &cli.Uint64Flag{
	Name:  "access-gas-limit",
	Value: 300000,
	Usage: "fixed gas limit for payForAccess, 0 to estimate",
}

var GatewayFlag = &cli.StringFlag{
	Name:    "gateway",
	Value:   "https://ipfs.io/ipfs/",
	Usage:   "content gateway prefix used in certificates",
	EnvVars: []string{"MUSICREG_GATEWAY"},
}

var ExplorerFlag = &cli.StringFlag{
	Name:    "explorer",
	Value:   "https://etherscan.io/address/",
	Usage:   "block explorer address prefix used in certificates",
	EnvVars: []string{"MUSICREG_EXPLORER"},
}

var ListenAddrFlag = &cli.StringFlag{
	Name:    "listen-addr",
	Value:   "127.0.0.1:8080",
	Usage:   "address to listen on for API",
	EnvVars: []string{"MUSICREG_LISTEN_ADDR"},
}

var RefreshIntervalFlag = &cli.DurationFlag{
	Name:  "refresh-interval",
	Value: time.Minute,
	Usage: "how often to reload fees and the catalog, 0 to disable",
}

var RefreshAPIFlag = &cli.BoolFlag{
	Name:  "enable-refresh-api",
	Value: false,
	Usage: "expose POST /api/refresh",
}

var RefreshCooldownFlag = &cli.DurationFlag{
	Name:  "refresh-cooldown",
	Value: 30 * time.Second,
	Usage: "minimum time between accepted POST /api/refresh requests",
}

var LogJsonFlag = &cli.BoolFlag{
	Name:  "log-json",
	Value: false,
	Usage: "log in JSON format",
}
var LogDebugFlag = &cli.BoolFlag{
	Name:  "log-debug",
	Value: false,
	Usage: "log debug messages",
}
var LogUidFlag = &cli.BoolFlag{
	Name:  "log-uid",
	Value: false,
	Usage: "generate a uuid and add to all log messages",
}

var LogServiceFlagFn = func(service string) *cli.StringFlag {
	return &cli.StringFlag{
		Name:  "log-service",
		Value: service,
		Usage: "add 'service' tag to logs",
	}
}

var PprofFlag = &cli.BoolFlag{
	Name:  "pprof",
	Value: false,
	Usage: "enable pprof debug endpoint",
}
var DrainSecondsFlag = &cli.Int64Flag{
	Name:  "drain-seconds",
	Value: 45,
	Usage: "seconds to wait in drain HTTP request",
}

var LogFlags = []cli.Flag{
	LogJsonFlag,
	LogDebugFlag,
	LogUidFlag,
}

var LedgerFlags = []cli.Flag{
	RpcAddrFlag,
	ContractFlag,
	PrivateKeyFlag,
	ConfirmTimeoutFlag,
	AccessGasLimitFlag,
}

var CertificateFlags = []cli.Flag{
	GatewayFlag,
	ExplorerFlag,
}

var ServerFlags = []cli.Flag{
	ListenAddrFlag,
	RefreshIntervalFlag,
	RefreshAPIFlag,
	RefreshCooldownFlag,
	PprofFlag,
	DrainSecondsFlag,
}

// Join concatenates flag groups into a new slice.
func Join(groups ...[]cli.Flag) []cli.Flag {
	var out []cli.Flag
	for _, g := range groups {
		out = append(out, g...)
	}
	return out
}
