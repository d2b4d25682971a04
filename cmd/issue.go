package main

import (
	"errors"
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/docanchor/docanchor/config"
	"github.com/docanchor/docanchor/issuance"
	"github.com/docanchor/docanchor/log"
)

func issueCmd(cliCtx *cli.Context) error {
	if cliCtx.NArg() == 0 {
		return errors.New("no files given")
	}
	c, err := loadConfig(cliCtx)
	if err != nil {
		return err
	}
	ledger, key, err := newSigningLedgerClient(cliCtx, c)
	if err != nil {
		return err
	}
	store, err := newProofStore(c)
	if err != nil {
		return err
	}
	defer store.Close()

	issuanceCfg := c.Issuance
	if issuerID := cliCtx.String(issuerIDFlag.Name); issuerID != "" {
		issuanceCfg.IssuerID = issuerID
	}
	orchestrator := issuance.New(issuanceCfg, ledger, key, store)

	rec, err := orchestrator.Issue(cliCtx.Context, issuance.Request{
		Batch:       cliCtx.String(batchFlag.Name),
		Files:       cliCtx.Args().Slice(),
		OutputDir:   cliCtx.String(config.FlagOutputDir),
		Description: cliCtx.String(descriptionFlag.Name),
		ExpiryDate:  cliCtx.String(expiryFlag.Name),
	})
	var partial *issuance.PartialEmbedError
	if errors.As(err, &partial) {
		// the batch is anchored and the record persisted: report the failed
		// containers, the command still exits non-zero
		log.Warnf("record %s persisted, but some containers failed to embed", rec.ID)
		for name, embedErr := range partial.Failed {
			log.Errorf("  %s: %v", name, embedErr)
		}
		return err
	}
	if err != nil {
		return err
	}

	fmt.Printf("record:  %s\n", rec.ID)
	fmt.Printf("root:    %s\n", rec.MerkleRoot.Hex())
	fmt.Printf("network: %s\n", rec.ProofJSON.Network)
	return nil
}
