package main

import (
	"os"

	"github.com/urfave/cli/v2"

	docanchor "github.com/docanchor/docanchor"
	"github.com/docanchor/docanchor/config"
	"github.com/docanchor/docanchor/log"
)

const appName = "docanchor"

var (
	configFileFlag = cli.StringSliceFlag{
		Name:     config.FlagCfg,
		Aliases:  []string{"c"},
		Usage:    "Configuration file(s)",
		Required: false,
	}
	keyStorePathFlag = cli.StringFlag{
		Name:     config.FlagKeyStorePath,
		Usage:    "Path of the key store file holding the issuer private key (overrides config)",
		Required: false,
	}
	passwordFlag = cli.StringFlag{
		Name:     config.FlagPassword,
		Usage:    "Password to decrypt the key store file",
		Required: false,
	}
	outputDirFlag = cli.StringFlag{
		Name:     config.FlagOutputDir,
		Aliases:  []string{"o"},
		Usage:    "Directory receiving the embedded documents and the record JSON",
		Required: false,
	}
	saveConfigFlag = cli.StringFlag{
		Name:     config.FlagSaveConfigPath,
		Aliases:  []string{"s"},
		Usage:    "Save the effective configuration into the indicated path (name: docanchor_config.toml)",
		Required: false,
	}
	batchFlag = cli.StringFlag{
		Name:     "batch",
		Aliases:  []string{"b"},
		Usage:    "Batch label",
		Required: true,
	}
	descriptionFlag = cli.StringFlag{
		Name:     "description",
		Usage:    "Free-form description stored in the record",
		Required: false,
	}
	expiryFlag = cli.StringFlag{
		Name:     "expiry",
		Usage:    "Expiry date stored in the record",
		Required: false,
	}
	issuerIDFlag = cli.StringFlag{
		Name:     "issuer-id",
		Usage:    "Issuer identity (overrides config)",
		Required: false,
	}
	reasonSignatureFlag = cli.StringFlag{
		Name:     "signature",
		Usage:    "Hex-encoded issuer signature authorizing the invalidation",
		Required: true,
	}
	expiryWindowFlag = cli.Uint64Flag{
		Name:     "invalidation-expiry",
		Usage:    "Seconds after issuance during which documents may be invalidated",
		Required: false,
	}
	metadataFlag = cli.StringFlag{
		Name:     "metadata",
		Usage:    "Issuer metadata stored on the ledger",
		Required: false,
	}
)

func main() {
	app := cli.NewApp()
	app.Name = appName
	app.Version = docanchor.Version
	configFlags := []cli.Flag{
		&configFileFlag,
		&saveConfigFlag,
	}
	signerFlags := append(configFlags, &keyStorePathFlag, &passwordFlag)
	app.Commands = []*cli.Command{
		{
			Name:   "version",
			Usage:  "Application version and build",
			Action: versionCmd,
		},
		{
			Name:      "issue",
			Usage:     "Anchor a batch of files and embed the proof record into each of them",
			ArgsUsage: "FILE [FILE...]",
			Action:    issueCmd,
			Flags: append(signerFlags,
				&batchFlag, &outputDirFlag, &descriptionFlag, &expiryFlag, &issuerIDFlag),
		},
		{
			Name:      "verify",
			Usage:     "Verify an embedded document against the ledger",
			ArgsUsage: "FILE",
			Action:    verifyCmd,
			Flags:     configFlags,
		},
		{
			Name:      "invalidate-root",
			Usage:     "Mark a whole anchored batch as invalidated",
			ArgsUsage: "ROOT",
			Action:    invalidateRootCmd,
			Flags:     append(signerFlags, &issuerIDFlag, &reasonSignatureFlag),
		},
		{
			Name:      "invalidate-document",
			Usage:     "Mark one document as invalidated",
			ArgsUsage: "DOC_HASH",
			Action:    invalidateDocumentCmd,
			Flags:     append(signerFlags, &issuerIDFlag, &reasonSignatureFlag),
		},
		{
			Name:      "register-issuer",
			Usage:     "Register an issuer identity on the ledger",
			ArgsUsage: "ISSUER_ID",
			Action:    registerIssuerCmd,
			Flags:     append(signerFlags, &expiryWindowFlag, &metadataFlag),
		},
	}

	err := app.Run(os.Args)
	if err != nil {
		log.Fatal(err)
		os.Exit(1)
	}
}
