// Package registry provides a typed client for the on-chain music copyright
// registry contract.
//
// The package implements the interfaces.LedgerClient interface. Read
// operations (fees, records, totals) go through the contract backend with
// plain eth_call requests and never touch transaction options, so they keep
// working without a connected signer. State-changing operations (submit,
// simulate, await confirmation) require SetTransactOpts to be called first.
//
// # Revert reasons
//
// Rejections from the ledger are returned as *interfaces.RevertError. The
// reason code is decoded from ABI custom errors and Panic(uint256) payloads
// when available, and from the Error(string) text otherwise. The
// "Registrant does not need to pay" text maps to RevertRegistrantExempt.
//
// # Testing
//
// MockRegistryClient is an in-memory ledger with the same fee and access
// rules as the contract. MockLedger is a testify mock for asserting which
// calls a workflow makes.
package registry
