package main

import (
	"os"

	"github.com/urfave/cli/v2"

	docanchor "github.com/docanchor/docanchor"
	"github.com/docanchor/docanchor/config"
	"github.com/docanchor/docanchor/db"
	"github.com/docanchor/docanchor/db/migrations"
	"github.com/docanchor/docanchor/etherman"
	"github.com/docanchor/docanchor/log"
	"github.com/docanchor/docanchor/signer"
)

func loadConfig(cliCtx *cli.Context) (*config.Config, error) {
	c, err := config.Load(cliCtx)
	if err != nil {
		return nil, err
	}
	log.Init(c.Log)
	if c.Log.Environment == log.EnvironmentDevelopment {
		docanchor.PrintVersion(os.Stdout)
	}
	return c, nil
}

// keystoreConfig resolves the key store location, command-line flags win over
// the config file.
func keystoreConfig(cliCtx *cli.Context, c *config.Config) signer.KeystoreFileConfig {
	ks := c.Signer
	if path := cliCtx.String(config.FlagKeyStorePath); path != "" {
		ks.Path = path
	}
	if password := cliCtx.String(config.FlagPassword); password != "" {
		ks.Password = password
	}
	return ks
}

func newLedgerClient(c *config.Config) (*etherman.Client, error) {
	return etherman.NewClient(c.Ledger)
}

// newSigningLedgerClient connects to the ledger and loads the issuer key both
// as a transaction authorization and as the proof-signing key provider.
func newSigningLedgerClient(cliCtx *cli.Context, c *config.Config) (*etherman.Client, signer.KeyProvider, error) {
	ledger, err := newLedgerClient(c)
	if err != nil {
		return nil, nil, err
	}
	ks := keystoreConfig(cliCtx, c)
	key, err := signer.NewKeystoreProvider(ks)
	if err != nil {
		return nil, nil, err
	}
	if _, _, err := ledger.LoadAuthFromKeyStore(ks.Path, ks.Password); err != nil {
		return nil, nil, err
	}
	return ledger, key, nil
}

func newProofStore(c *config.Config) (*db.ProofStore, error) {
	return db.NewProofStore(c.Store.DBPath, migrations.RunMigrations)
}
