package appcommon

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ruteri/music-copyright-registry/access"
	"github.com/ruteri/music-copyright-registry/catalog"
	"github.com/ruteri/music-copyright-registry/cmd/flags"
	"github.com/ruteri/music-copyright-registry/fees"
	"github.com/ruteri/music-copyright-registry/interfaces"
	"github.com/ruteri/music-copyright-registry/registration"
	"github.com/ruteri/music-copyright-registry/registry"
	"github.com/ruteri/music-copyright-registry/storage"
	"github.com/urfave/cli/v2"
)

// App bundles the components every entrypoint wires the same way.
type App struct {
	Ledger  *registry.OnchainMusicRegistryClient
	Fees    *fees.Cache
	Catalog *catalog.Catalog
	Gate    *access.Gate
	Log     *slog.Logger

	eth *ethclient.Client
}

// Close releases the RPC connection.
func (a *App) Close() {
	if a.eth != nil {
		a.eth.Close()
	}
}

// Setup dials the ledger and builds the fee cache, catalog and access gate.
// A signer is configured only when a private key is given.
func Setup(cCtx *cli.Context, logger *slog.Logger) (*App, error) {
	rpcAddress := cCtx.String(flags.RpcAddrFlag.Name)
	contractHex := cCtx.String(flags.ContractFlag.Name)

	if !common.IsHexAddress(contractHex) {
		return nil, fmt.Errorf("invalid contract address %q", contractHex)
	}
	contract := common.HexToAddress(contractHex)

	logger.Info("Connecting to Ethereum RPC", "address", rpcAddress)
	ethClient, err := ethclient.Dial(rpcAddress)
	if err != nil {
		return nil, &interfaces.ConnectionError{Endpoint: rpcAddress, Err: err}
	}

	ledger, err := registry.NewOnchainMusicRegistryClient(ethClient, ethClient, contract)
	if err != nil {
		ethClient.Close()
		return nil, err
	}
	ledger.SetEndpoint(rpcAddress)
	ledger.SetConfirmationTimeout(cCtx.Duration(flags.ConfirmTimeoutFlag.Name))
	ledger.SetGasLimit("payForAccess", cCtx.Uint64(flags.AccessGasLimitFlag.Name))

	if keyHex := cCtx.String(flags.PrivateKeyFlag.Name); keyHex != "" {
		auth, err := transactor(cCtx.Context, ethClient, keyHex)
		if err != nil {
			ethClient.Close()
			return nil, err
		}
		ledger.SetTransactOpts(auth)
		logger.Info("Signer configured", "account", auth.From.Hex())
	}

	feeCache := fees.NewCache(ledger, logger)
	records := catalog.New(ledger, logger)

	gate := access.NewGate(ledger, feeCache, records, logger)
	gate.SetCertificateConfig(access.CertificateConfig{
		Contract:    contract,
		ExplorerURL: cCtx.String(flags.ExplorerFlag.Name),
		GatewayURL:  cCtx.String(flags.GatewayFlag.Name),
	})
	gate.SetObserver(func(id uint64, from, to access.State) {
		logger.Debug("Access state changed",
			slog.Uint64("id", id),
			slog.String("from", from.String()),
			slog.String("to", to.String()))
	})

	return &App{
		Ledger:  ledger,
		Fees:    feeCache,
		Catalog: records,
		Gate:    gate,
		Log:     logger,
		eth:     ethClient,
	}, nil
}

// Registration builds a registration flow over the configured content stores.
func (a *App) Registration(cCtx *cli.Context) (*registration.Flow, error) {
	store, err := SetupStore(cCtx, a.Log)
	if err != nil {
		return nil, err
	}
	return registration.NewFlow(a.Ledger, a.Fees, a.Catalog, store, a.Log), nil
}

// SetupStore creates the content store from the --store URIs. The first URI
// assigns content ids and the rest receive copies.
func SetupStore(cCtx *cli.Context, logger *slog.Logger) (interfaces.StorageBackend, error) {
	uris := cCtx.StringSlice(flags.StoreFlag.Name)
	locations := make([]interfaces.StorageBackendLocation, 0, len(uris))
	for _, uri := range uris {
		locations = append(locations, interfaces.StorageBackendLocation(uri))
	}

	return storage.NewStorageBackendFactory(logger).CreateMultiBackend(locations)
}

func transactor(ctx context.Context, client *ethclient.Client, keyHex string) (*bind.TransactOpts, error) {
	privateKey, err := crypto.HexToECDSA(strings.TrimPrefix(keyHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key: %w", err)
	}

	chainID, err := client.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read chain id: %w", err)
	}

	auth, err := bind.NewKeyedTransactorWithChainID(privateKey, chainID)
	if err != nil {
		return nil, fmt.Errorf("failed to create transactor: %w", err)
	}
	return auth, nil
}
