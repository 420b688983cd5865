package access

import (
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ruteri/music-copyright-registry/interfaces"
)

// Default link prefixes used when building certificates.
const (
	DefaultExplorerURL = "https://etherscan.io/address/"
	DefaultGatewayURL  = "https://ipfs.io/ipfs/"
)

// CertificateConfig tells the gate where a certificate can be verified.
type CertificateConfig struct {
	Contract    common.Address
	ExplorerURL string
	GatewayURL  string
}

// Certificate is the proof of registration shown once access is granted.
type Certificate struct {
	Record      interfaces.Record `json:"record"`
	Contract    common.Address    `json:"contract"`
	ContractURL string            `json:"contract_url"`
	ContentURL  string            `json:"content_url"`
}

// NewCertificate builds the certificate view of record.
func NewCertificate(cfg CertificateConfig, record interfaces.Record) *Certificate {
	explorer := cfg.ExplorerURL
	if explorer == "" {
		explorer = DefaultExplorerURL
	}
	gateway := cfg.GatewayURL
	if gateway == "" {
		gateway = DefaultGatewayURL
	}

	return &Certificate{
		Record:      record,
		Contract:    cfg.Contract,
		ContractURL: joinURL(explorer, cfg.Contract.Hex()),
		ContentURL:  joinURL(gateway, record.ContentID.String()),
	}
}

func joinURL(base, tail string) string {
	return strings.TrimSuffix(base, "/") + "/" + tail
}
