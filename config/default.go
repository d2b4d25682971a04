package config

// DefaultValues is the default configuration. Ledger.URL and Ledger.AnchorAddr
// depend on the deployment and carry placeholder values on purpose.
const DefaultValues = `
[Log]
Environment = "development" # "production" or "development"
Level = "info"
Outputs = ["stderr"]

[Ledger]
URL = "http://localhost:8545"
AnchorAddr = "0x0000000000000000000000000000000000000000"
ChainID = 11155111
Network = "sepolia"
ExplorerURL = "https://sepolia.etherscan.io"
Timeout = "1m"
RetryAttempts = 3
RetryPeriod = "5s"

[Issuance]
IssuerID = ""
HashAlgorithm = "sha256"
CombineAlgorithm = "keccak256"
WaitTxTimeout = "2m"
	[Issuance.Badge]
	Enabled = false
	VerificationURL = "https://verify.docanchor.example"

[Store]
DBPath = "/tmp/docanchor/proofs.sqlite"

[Signer]
Path = "/etc/docanchor/issuer.keystore"
Password = ""
`
