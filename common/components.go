package common

const (
	// ISSUER name to identify the issuance component
	ISSUER = "issuer"
	// VERIFIER name to identify the verification component
	VERIFIER = "verifier"
)
