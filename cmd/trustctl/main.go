package main

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/hashicorp/vault/shamir"
	"github.com/urfave/cli/v2"

	"github.com/ruteri/trust-rotation-backend/clients"
	"github.com/ruteri/trust-rotation-backend/cryptoutils"
	"github.com/ruteri/trust-rotation-backend/interfaces"
	"github.com/ruteri/trust-rotation-backend/trust"
)

var flagServer *cli.StringFlag = &cli.StringFlag{
	Name:  "server",
	Value: "http://127.0.0.1:8080",
	Usage: "Trust rotation server address",
}
var flagNamespace *cli.StringFlag = &cli.StringFlag{
	Name:     "namespace",
	Required: true,
	Usage:    "Trust namespace to operate on",
}
var flagKeyFile *cli.StringFlag = &cli.StringFlag{
	Name:  "key-file",
	Value: "trust-signer.json",
	Usage: "Path to the sealed signer key file",
}
var flagPassphrase *cli.StringFlag = &cli.StringFlag{
	Name:    "passphrase",
	Usage:   "Passphrase sealing the key file",
	EnvVars: []string{"TRUSTCTL_PASSPHRASE"},
}
var flagRootID *cli.StringFlag = &cli.StringFlag{
	Name:     "root-id",
	Required: true,
	Usage:    "Root identifier the signature is issued under",
}
var flagManifestFile *cli.StringFlag = &cli.StringFlag{
	Name:     "manifest-file",
	Required: true,
	Usage:    "Path to the JSON manifest to sign",
}
var flagOperationID *cli.StringFlag = &cli.StringFlag{
	Name:     "operation-id",
	Required: true,
	Usage:    "Pending operation identifier",
}
var flagAdminKeysFile *cli.StringFlag = &cli.StringFlag{
	Name:     "admin-keys-file",
	Required: true,
	Usage:    "JSON file with the legacy admin public keys, base64url-encoded",
}

func main() {
	app := &cli.App{
		Name:  "trustctl",
		Usage: "Operator tool for the trust rotation service",
		Commands: []*cli.Command{
			generateSignerCommand(),
			publicKeyCommand(),
			signManifestCommand(),
			signMigrationCommand(),
			migrationManifestCommand(),
			initCommand(),
			createOperationCommand(),
			submitSignatureCommand(),
			applyCommand(),
			statusCommand(),
			migrateCommand(),
			splitKeyCommand(),
			recoverKeyCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func generateSignerCommand() *cli.Command {
	return &cli.Command{
		Name:  "generate-signer",
		Usage: "Generate a new Ed25519 signer and seal it to a key file",
		Flags: []cli.Flag{flagKeyFile, flagPassphrase},
		Action: func(cCtx *cli.Context) error {
			passphrase, err := requirePassphrase(cCtx)
			if err != nil {
				return err
			}

			signer, err := cryptoutils.GenerateSigner()
			if err != nil {
				return err
			}
			sealed, err := cryptoutils.SealSeed(signer.Seed(), passphrase)
			if err != nil {
				return err
			}

			path := cCtx.String(flagKeyFile.Name)
			if err := os.WriteFile(path, sealed, 0600); err != nil {
				return fmt.Errorf("failed to write key file: %w", err)
			}

			fmt.Printf("Sealed signer written to %s\n", path)
			fmt.Printf("Public key: %s\n", signer.PublicKeyB64u())
			return nil
		},
	}
}

func publicKeyCommand() *cli.Command {
	return &cli.Command{
		Name:  "public-key",
		Usage: "Print the public key of a sealed signer",
		Flags: []cli.Flag{flagKeyFile, flagPassphrase},
		Action: func(cCtx *cli.Context) error {
			signer, err := openSigner(cCtx)
			if err != nil {
				return err
			}
			fmt.Println(signer.PublicKeyB64u())
			return nil
		},
	}
}

func signManifestCommand() *cli.Command {
	return &cli.Command{
		Name:  "sign-manifest",
		Usage: "Produce a detached issuer signature over a manifest",
		Flags: []cli.Flag{flagKeyFile, flagPassphrase, flagRootID, flagManifestFile},
		Action: func(cCtx *cli.Context) error {
			signer, err := openSigner(cCtx)
			if err != nil {
				return err
			}

			var manifest interfaces.TrustManifest
			if err := readJSONFile(cCtx.String(flagManifestFile.Name), &manifest); err != nil {
				return err
			}
			canonical, err := cryptoutils.Canonicalize(manifest)
			if err != nil {
				return err
			}

			issuer := interfaces.TrustIssuer{
				RootID:    cCtx.String(flagRootID.Name),
				PublicKey: signer.PublicKeyB64u(),
				Signature: signer.Sign(canonical),
				SignedAt:  time.Now().UTC(),
			}
			return printJSON(issuer)
		},
	}
}

func signMigrationCommand() *cli.Command {
	return &cli.Command{
		Name:  "sign-migration",
		Usage: "Sign the deterministic migration manifest for a legacy namespace",
		Flags: []cli.Flag{flagKeyFile, flagPassphrase, flagNamespace, flagAdminKeysFile},
		Action: func(cCtx *cli.Context) error {
			signer, err := openSigner(cCtx)
			if err != nil {
				return err
			}
			adminKeys, err := readAdminKeys(cCtx)
			if err != nil {
				return err
			}

			manifest := trust.MigrationManifest(cCtx.String(flagNamespace.Name), adminKeys)
			canonical, err := cryptoutils.Canonicalize(manifest)
			if err != nil {
				return err
			}

			signature := interfaces.MigrationSignature{
				PublicKey: signer.PublicKeyB64u(),
				Signature: signer.Sign(canonical),
				SignedAt:  time.Now().UTC(),
			}
			return printJSON(signature)
		},
	}
}

func migrationManifestCommand() *cli.Command {
	return &cli.Command{
		Name:  "migration-manifest",
		Usage: "Print the migration manifest derived from a legacy admin key list",
		Flags: []cli.Flag{flagNamespace, flagAdminKeysFile},
		Action: func(cCtx *cli.Context) error {
			adminKeys, err := readAdminKeys(cCtx)
			if err != nil {
				return err
			}
			return printJSON(trust.MigrationManifest(cCtx.String(flagNamespace.Name), adminKeys))
		},
	}
}

func initCommand() *cli.Command {
	rootsFile := &cli.StringFlag{
		Name:     "roots-file",
		Required: true,
		Usage:    "JSON file with the genesis trust roots",
	}
	threshold := &cli.IntFlag{
		Name:     "threshold",
		Required: true,
		Usage:    "Number of root signatures required to change the manifest",
	}
	return &cli.Command{
		Name:  "init",
		Usage: "Initialize a namespace with its genesis manifest",
		Flags: []cli.Flag{flagServer, flagNamespace, rootsFile, threshold},
		Action: func(cCtx *cli.Context) error {
			var roots []interfaces.TrustRoot
			if err := readJSONFile(cCtx.String(rootsFile.Name), &roots); err != nil {
				return err
			}

			client := trustClient(cCtx)
			state, err := client.Initialize(cCtx.Context, clients.InitRequest{
				Roots:     roots,
				Threshold: cCtx.Int(threshold.Name),
			})
			if err != nil {
				return err
			}
			return printJSON(state)
		},
	}
}

func createOperationCommand() *cli.Command {
	opType := &cli.StringFlag{
		Name:     "type",
		Required: true,
		Usage:    "Operation type: ROOT_ADD, ROOT_REMOVE, THRESHOLD_UPDATE, or KEY_ROTATE",
	}
	targetFile := &cli.StringFlag{
		Name:     "target-file",
		Required: true,
		Usage:    "JSON file with the proposed target manifest",
	}
	reason := &cli.StringFlag{
		Name:  "reason",
		Usage: "Human-readable justification recorded with the operation",
	}
	return &cli.Command{
		Name:  "create-operation",
		Usage: "Propose a manifest change",
		Flags: []cli.Flag{flagServer, flagNamespace, opType, targetFile, reason},
		Action: func(cCtx *cli.Context) error {
			var target interfaces.TrustManifest
			if err := readJSONFile(cCtx.String(targetFile.Name), &target); err != nil {
				return err
			}

			client := trustClient(cCtx)
			op, err := client.CreateOperation(cCtx.Context, clients.CreateOperationRequest{
				Type:           interfaces.OperationType(cCtx.String(opType.Name)),
				TargetManifest: target,
				Reason:         cCtx.String(reason.Name),
			})
			if err != nil {
				return err
			}
			return printJSON(op)
		},
	}
}

func submitSignatureCommand() *cli.Command {
	issuerFile := &cli.StringFlag{
		Name:     "issuer-file",
		Required: true,
		Usage:    "JSON file with the issuer signature produced by sign-manifest",
	}
	return &cli.Command{
		Name:  "submit-signature",
		Usage: "Attach an issuer signature to a pending operation",
		Flags: []cli.Flag{flagServer, flagNamespace, flagOperationID, issuerFile},
		Action: func(cCtx *cli.Context) error {
			var issuer interfaces.TrustIssuer
			if err := readJSONFile(cCtx.String(issuerFile.Name), &issuer); err != nil {
				return err
			}

			client := trustClient(cCtx)
			result, err := client.SubmitSignature(cCtx.Context, cCtx.String(flagOperationID.Name), issuer)
			if err != nil {
				return err
			}
			if !result.Accepted {
				return errors.New("signature rejected by the server")
			}
			return printJSON(result)
		},
	}
}

func applyCommand() *cli.Command {
	return &cli.Command{
		Name:  "apply",
		Usage: "Apply a pending operation that has reached its threshold",
		Flags: []cli.Flag{flagServer, flagNamespace, flagOperationID},
		Action: func(cCtx *cli.Context) error {
			client := trustClient(cCtx)
			applied, err := client.ApplyOperation(cCtx.Context, cCtx.String(flagOperationID.Name))
			if err != nil {
				return err
			}
			if !applied {
				return errors.New("operation not applied: validation failed or signatures are short of the threshold")
			}
			fmt.Println("Operation applied")
			return nil
		},
	}
}

func statusCommand() *cli.Command {
	return &cli.Command{
		Name:  "status",
		Usage: "Print the namespace's trust state",
		Flags: []cli.Flag{flagServer, flagNamespace},
		Action: func(cCtx *cli.Context) error {
			client := trustClient(cCtx)
			state, err := client.GetState(cCtx.Context)
			if err != nil {
				return err
			}
			return printJSON(state)
		},
	}
}

func migrateCommand() *cli.Command {
	signaturesFile := &cli.StringFlag{
		Name:     "signatures-file",
		Required: true,
		Usage:    "JSON file with the collected migration signatures",
	}
	return &cli.Command{
		Name:  "migrate",
		Usage: "Bootstrap a namespace from a legacy admin key list",
		Flags: []cli.Flag{flagServer, flagNamespace, flagAdminKeysFile, signaturesFile},
		Action: func(cCtx *cli.Context) error {
			adminKeys, err := readAdminKeys(cCtx)
			if err != nil {
				return err
			}
			var signatures []interfaces.MigrationSignature
			if err := readJSONFile(cCtx.String(signaturesFile.Name), &signatures); err != nil {
				return err
			}

			client := trustClient(cCtx)
			migration, err := client.Migrate(cCtx.Context, clients.MigrateRequest{
				AdminKeys:  adminKeys,
				Signatures: signatures,
			})
			if err != nil {
				return err
			}
			if migration.CompletedAt == nil {
				fmt.Println("Migration pending: majority of admin signatures not yet collected")
			}
			return printJSON(migration)
		},
	}
}

func splitKeyCommand() *cli.Command {
	shares := &cli.IntFlag{
		Name:  "shares",
		Value: 5,
		Usage: "Total number of shares to produce",
	}
	threshold := &cli.IntFlag{
		Name:  "threshold",
		Value: 3,
		Usage: "Number of shares required to recover the seed",
	}
	outPrefix := &cli.StringFlag{
		Name:  "out-prefix",
		Value: "trust-share",
		Usage: "Prefix for the share files, written as <prefix>-<n>.share",
	}
	return &cli.Command{
		Name:  "split-key",
		Usage: "Split a signer seed into Shamir shares for emergency custody",
		Flags: []cli.Flag{flagKeyFile, flagPassphrase, shares, threshold, outPrefix},
		Action: func(cCtx *cli.Context) error {
			signer, err := openSigner(cCtx)
			if err != nil {
				return err
			}

			parts, err := shamir.Split(signer.Seed(), cCtx.Int(shares.Name), cCtx.Int(threshold.Name))
			if err != nil {
				return fmt.Errorf("failed to split seed: %w", err)
			}

			prefix := cCtx.String(outPrefix.Name)
			for i, part := range parts {
				path := fmt.Sprintf("%s-%d.share", prefix, i+1)
				encoded := base64.StdEncoding.EncodeToString(part)
				if err := os.WriteFile(path, []byte(encoded), 0600); err != nil {
					return fmt.Errorf("failed to write share %d: %w", i+1, err)
				}
				fmt.Printf("Share %d written to %s\n", i+1, path)
			}
			fmt.Printf("Recovery requires %d of %d shares\n", cCtx.Int(threshold.Name), len(parts))
			return nil
		},
	}
}

func recoverKeyCommand() *cli.Command {
	shareFiles := &cli.StringSliceFlag{
		Name:     "share-file",
		Required: true,
		Usage:    "Share file, repeat for each collected share",
	}
	return &cli.Command{
		Name:  "recover-key",
		Usage: "Recover a signer from Shamir shares and seal it to a key file",
		Flags: []cli.Flag{flagKeyFile, flagPassphrase, shareFiles},
		Action: func(cCtx *cli.Context) error {
			passphrase, err := requirePassphrase(cCtx)
			if err != nil {
				return err
			}

			var parts [][]byte
			for _, path := range cCtx.StringSlice(shareFiles.Name) {
				data, err := os.ReadFile(path)
				if err != nil {
					return fmt.Errorf("failed to read share file: %w", err)
				}
				part, err := base64.StdEncoding.DecodeString(string(data))
				if err != nil {
					return fmt.Errorf("malformed share in %s: %w", path, err)
				}
				parts = append(parts, part)
			}

			seed, err := shamir.Combine(parts)
			if err != nil {
				return fmt.Errorf("failed to combine shares: %w", err)
			}
			signer, err := cryptoutils.NewSignerFromSeed(seed)
			if err != nil {
				return err
			}
			sealed, err := cryptoutils.SealSeed(seed, passphrase)
			if err != nil {
				return err
			}

			path := cCtx.String(flagKeyFile.Name)
			if err := os.WriteFile(path, sealed, 0600); err != nil {
				return fmt.Errorf("failed to write key file: %w", err)
			}

			fmt.Printf("Recovered signer written to %s\n", path)
			fmt.Printf("Public key: %s\n", signer.PublicKeyB64u())
			return nil
		},
	}
}

func trustClient(cCtx *cli.Context) *clients.TrustClient {
	return clients.NewTrustClient(cCtx.String(flagServer.Name), cCtx.String(flagNamespace.Name))
}

func requirePassphrase(cCtx *cli.Context) ([]byte, error) {
	passphrase := cCtx.String(flagPassphrase.Name)
	if passphrase == "" {
		return nil, errors.New("passphrase required: pass --passphrase or set TRUSTCTL_PASSPHRASE")
	}
	return []byte(passphrase), nil
}

func openSigner(cCtx *cli.Context) (*cryptoutils.Signer, error) {
	passphrase, err := requirePassphrase(cCtx)
	if err != nil {
		return nil, err
	}
	sealed, err := os.ReadFile(cCtx.String(flagKeyFile.Name))
	if err != nil {
		return nil, fmt.Errorf("failed to read key file: %w", err)
	}
	seed, err := cryptoutils.OpenSeed(sealed, passphrase)
	if err != nil {
		return nil, fmt.Errorf("failed to unseal key file: %w", err)
	}
	return cryptoutils.NewSignerFromSeed(seed)
}

func readAdminKeys(cCtx *cli.Context) ([]string, error) {
	var adminKeys []string
	if err := readJSONFile(cCtx.String(flagAdminKeysFile.Name), &adminKeys); err != nil {
		return nil, err
	}
	if len(adminKeys) == 0 {
		return nil, errors.New("admin keys file must list at least one key")
	}
	return adminKeys, nil
}

func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}
	fmt.Println(string(data))
	return nil
}

func readJSONFile(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return nil
}
