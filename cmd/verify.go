package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/docanchor/docanchor/verify"
)

func verifyCmd(cliCtx *cli.Context) error {
	if cliCtx.NArg() != 1 {
		return errors.New("expected exactly one file to verify")
	}
	c, err := loadConfig(cliCtx)
	if err != nil {
		return err
	}
	ledger, err := newLedgerClient(c)
	if err != nil {
		return err
	}
	doc, err := os.ReadFile(filepath.Clean(cliCtx.Args().First()))
	if err != nil {
		return err
	}

	result := verify.New(ledger, nil).Verify(cliCtx.Context, doc)
	printResult(result)
	if !result.Valid {
		return fmt.Errorf("verification failed at gate %s (%s)", result.FailedGate, result.Kind)
	}
	return nil
}

func printResult(result verify.Result) {
	if !result.Valid {
		fmt.Printf("INVALID\n")
		fmt.Printf("gate:   %s\n", result.FailedGate)
		fmt.Printf("kind:   %s\n", result.Kind)
		fmt.Printf("reason: %s\n", result.Reason)
		return
	}
	fmt.Printf("VALID\n")
	fmt.Printf("record:   %s\n", result.Record.ID)
	fmt.Printf("issuer:   %s\n", result.Record.IssuerID)
	fmt.Printf("root:     %s\n", result.Record.MerkleRoot.Hex())
	fmt.Printf("leaf:     %d (%s)\n", result.LeafIndex, result.DocumentHash.Hex())
	fmt.Printf("anchored: %s\n", time.Unix(int64(result.AnchoredAt), 0).UTC().Format(time.RFC3339))
	if result.UsedTrailingLFFallback {
		fmt.Printf("note:     leaf matched after trailing line-feed fallback\n")
	}
	if result.Invalidation != nil && result.Invalidation.Status != "" {
		fmt.Printf("invalidation: %s (at %d)\n", result.Invalidation.Status, result.Invalidation.Timestamp)
	}
}
