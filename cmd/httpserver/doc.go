// Package main (cmd/httpserver) serves the read API of the music copyright
// registry.
//
// The server keeps a fee cache and a record catalog loaded from the registry
// contract, reloads both every --refresh-interval, and answers fee, listing,
// access-quote and certificate requests from those snapshots. It never signs
// transactions: a certificate that needs payment is answered with 402 and the
// fee, and the viewer pays from their own wallet (for example with musicreg
// view).
//
// /readyz reports not ready until both fees and the catalog have loaded once.
// The server shuts down gracefully on SIGINT/SIGTERM.
//
// Example usage:
//
//	musicreg-server --rpc-addr=http://localhost:8545 \
//	    --contract=0x5FbDB2315678afecb367f032d93F642f64180aa3 \
//	    --listen-addr=0.0.0.0:8080
package main
