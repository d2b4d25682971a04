package main

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/urfave/cli/v2"
)

func invalidateRootCmd(cliCtx *cli.Context) error {
	if cliCtx.NArg() != 1 {
		return errors.New("expected exactly one root hash")
	}
	c, err := loadConfig(cliCtx)
	if err != nil {
		return err
	}
	ledger, key, err := newSigningLedgerClient(cliCtx, c)
	if err != nil {
		return err
	}
	signature, err := hexutil.Decode(cliCtx.String(reasonSignatureFlag.Name))
	if err != nil {
		return fmt.Errorf("bad signature: %w", err)
	}
	issuerID := c.Issuance.IssuerID
	if override := cliCtx.String(issuerIDFlag.Name); override != "" {
		issuerID = override
	}

	root := common.HexToHash(cliCtx.Args().First())
	tx, err := ledger.InvalidateRoot(cliCtx.Context, key.Address(), root, signature, issuerID)
	if err != nil {
		return err
	}
	if err := ledger.WaitTxToBeMined(cliCtx.Context, tx, c.Issuance.WaitTxTimeout.Duration); err != nil {
		return err
	}
	fmt.Printf("root %s invalidated, tx %s\n", root.Hex(), tx.Hash().Hex())
	return nil
}

func invalidateDocumentCmd(cliCtx *cli.Context) error {
	if cliCtx.NArg() != 1 {
		return errors.New("expected exactly one document hash")
	}
	c, err := loadConfig(cliCtx)
	if err != nil {
		return err
	}
	ledger, key, err := newSigningLedgerClient(cliCtx, c)
	if err != nil {
		return err
	}
	signature, err := hexutil.Decode(cliCtx.String(reasonSignatureFlag.Name))
	if err != nil {
		return fmt.Errorf("bad signature: %w", err)
	}
	issuerID := c.Issuance.IssuerID
	if override := cliCtx.String(issuerIDFlag.Name); override != "" {
		issuerID = override
	}

	docHash := common.HexToHash(cliCtx.Args().First())
	tx, err := ledger.InvalidateDocument(cliCtx.Context, key.Address(), docHash, signature, issuerID)
	if err != nil {
		return err
	}
	if err := ledger.WaitTxToBeMined(cliCtx.Context, tx, c.Issuance.WaitTxTimeout.Duration); err != nil {
		return err
	}
	fmt.Printf("document %s invalidated, tx %s\n", docHash.Hex(), tx.Hash().Hex())
	return nil
}

func registerIssuerCmd(cliCtx *cli.Context) error {
	if cliCtx.NArg() != 1 {
		return errors.New("expected exactly one issuer id")
	}
	c, err := loadConfig(cliCtx)
	if err != nil {
		return err
	}
	ledger, key, err := newSigningLedgerClient(cliCtx, c)
	if err != nil {
		return err
	}

	issuerID := cliCtx.Args().First()
	tx, err := ledger.RegisterIssuer(cliCtx.Context, key.Address(), issuerID,
		cliCtx.Uint64(expiryWindowFlag.Name), cliCtx.String(metadataFlag.Name))
	if err != nil {
		return err
	}
	if err := ledger.WaitTxToBeMined(cliCtx.Context, tx, c.Issuance.WaitTxTimeout.Duration); err != nil {
		return err
	}
	fmt.Printf("issuer %s registered, tx %s\n", issuerID, tx.Hash().Hex())
	return nil
}
