package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"dexther/cmd/internal/passphrase"
	"dexther/crypto"
)

type keygenResult struct {
	Address    string `json:"address"`
	Keystore   string `json:"keystore,omitempty"`
	PrivateKey string `json:"privateKey,omitempty"`
}

func (c *cli) keygenCmd() *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Generate a new secp256k1 key",
		Long: `Generate a new secp256k1 key. With --out the key is written to an
encrypted v3 keystore; otherwise the raw private key is printed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			key, err := crypto.GeneratePrivateKey()
			if err != nil {
				return fmt.Errorf("generate key: %w", err)
			}
			res := keygenResult{Address: key.Address().Hex()}
			if out != "" {
				pass, err := passphrase.NewSource(c.v.GetString("passphrase_env"), "new keystore passphrase").Get()
				if err != nil {
					return err
				}
				if err := crypto.SaveToKeystore(out, key, pass); err != nil {
					return fmt.Errorf("save keystore: %w", err)
				}
				res.Keystore = out
			} else {
				res.PrivateKey = key.Hex()
			}
			return c.emit(cmd.OutOrStdout(), res, func(w io.Writer) {
				printField(w, "address", res.Address)
				if res.Keystore != "" {
					printField(w, "keystore", res.Keystore)
					printSuccess(w, "key saved")
					return
				}
				printField(w, "private key", res.PrivateKey)
				warnColor.Fprintln(w, "store this key securely; it is not saved anywhere")
			})
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "write the key to this keystore path")
	return cmd
}

func (c *cli) addressCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "address",
		Short: "Print the address controlled by a key",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var addr string
			if raw := c.setting(cmd, "key", "key"); raw != "" {
				key, err := crypto.PrivateKeyFromHex(raw)
				if err != nil {
					return err
				}
				addr = key.Address().Hex()
			} else if path := c.setting(cmd, "keystore", "keystore"); path != "" {
				// The keystore records its address in clear; no passphrase needed.
				parsed, err := crypto.KeystoreAddress(path)
				if err != nil {
					return err
				}
				addr = parsed.Hex()
			} else {
				return errNoKey
			}
			return c.emit(cmd.OutOrStdout(), map[string]string{"address": addr}, func(w io.Writer) {
				fmt.Fprintln(w, addr)
			})
		},
	}
	addKeyFlags(cmd)
	return cmd
}
