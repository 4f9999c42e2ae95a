package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"dexther/cmd/internal/passphrase"
	"dexther/crypto"
	"dexther/native/dexther"
)

var (
	errNoKey    = errors.New("no signing key: pass --key or --keystore (or set DEXTHER_KEY / DEXTHER_KEYSTORE)")
	errNoDomain = errors.New("domain incomplete: chain id and vault are required")
)

// cli carries the state shared by every subcommand of one invocation.
type cli struct {
	v       *viper.Viper
	cfgFile string
	jsonOut bool
}

func newRootCmd() *cobra.Command {
	app := &cli{v: viper.New()}

	root := &cobra.Command{
		Use:   "dexther-cli",
		Short: "Off-line key management and signing for Dexther swaps",
		Long: `dexther-cli manages secp256k1 keys and produces the digests and
signatures a Dexther relayer submits on behalf of both swap parties.

Examples:
  dexther-cli keygen --out ~/.dexther/alice.json
  dexther-cli digest --order order.json --chain-id 1 --vault 0xd3e7...
  dexther-cli sign --order order.json --keystore ~/.dexther/alice.json
  dexther-cli recover --digest 0xabc... --signature 0x1234...`,
		Version:       "0.1.0",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return app.loadConfig()
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&app.cfgFile, "config", "", "config file (default $HOME/.dexther.yaml or ./.dexther.yaml)")
	flags.Uint64("chain-id", 0, "chain id of the signing domain")
	flags.String("vault", "", "verifying contract (vault) address of the signing domain")
	flags.BoolVarP(&app.jsonOut, "json", "j", false, "Output in JSON format")
	_ = app.v.BindPFlag("chain_id", flags.Lookup("chain-id"))
	_ = app.v.BindPFlag("vault", flags.Lookup("vault"))

	root.AddCommand(
		app.keygenCmd(),
		app.addressCmd(),
		app.digestCmd(),
		app.signCmd(),
		app.recoverCmd(),
		app.tokenCmd(),
	)
	return root
}

// loadConfig reads the optional config file and wires DEXTHER_* environment
// overrides. Flags take precedence over both.
func (c *cli) loadConfig() error {
	if c.cfgFile != "" {
		c.v.SetConfigFile(c.cfgFile)
	} else {
		c.v.SetConfigName(".dexther")
		c.v.SetConfigType("yaml")
		c.v.AddConfigPath("$HOME")
		c.v.AddConfigPath(".")
	}
	c.v.SetDefault("passphrase_env", passphrase.DefaultEnv)
	c.v.SetEnvPrefix("DEXTHER")
	c.v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	c.v.AutomaticEnv()

	if err := c.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if c.cfgFile != "" || !errors.As(err, &notFound) {
			return fmt.Errorf("read config: %w", err)
		}
	}
	return nil
}

// setting returns the flag value when it was given explicitly, otherwise the
// config or environment value stored under key.
func (c *cli) setting(cmd *cobra.Command, flag, key string) string {
	if f := cmd.Flags().Lookup(flag); f != nil && f.Changed {
		return strings.TrimSpace(f.Value.String())
	}
	return strings.TrimSpace(c.v.GetString(key))
}

func (c *cli) domain() (dexther.Domain, error) {
	chainID := c.v.GetUint64("chain_id")
	vault := strings.TrimSpace(c.v.GetString("vault"))
	if chainID == 0 || vault == "" {
		return dexther.Domain{}, errNoDomain
	}
	addr, err := dexther.ParseAddress(vault)
	if err != nil {
		return dexther.Domain{}, err
	}
	if addr == (common.Address{}) {
		return dexther.Domain{}, fmt.Errorf("%w: zero vault", errNoDomain)
	}
	return dexther.NewDomain(new(big.Int).SetUint64(chainID), addr), nil
}

// signingKey resolves the key from --key, then --keystore with a passphrase
// taken from the environment or the terminal.
func (c *cli) signingKey(cmd *cobra.Command) (*crypto.PrivateKey, error) {
	if raw := c.setting(cmd, "key", "key"); raw != "" {
		return crypto.PrivateKeyFromHex(raw)
	}
	path := c.setting(cmd, "keystore", "keystore")
	if path == "" {
		return nil, errNoKey
	}
	pass, err := passphrase.NewSource(c.v.GetString("passphrase_env"), "keystore passphrase").Get()
	if err != nil {
		return nil, err
	}
	return crypto.LoadFromKeystore(path, pass)
}

func addKeyFlags(cmd *cobra.Command) {
	cmd.Flags().String("key", "", "hex encoded private key")
	cmd.Flags().String("keystore", "", "path to a v3 keystore file")
}

// emit writes value as indented JSON when --json is set, otherwise calls text.
func (c *cli) emit(w io.Writer, value any, text func(io.Writer)) error {
	if c.jsonOut {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(value)
	}
	text(w)
	return nil
}

var (
	labelColor   = color.New(color.FgCyan)
	successColor = color.New(color.FgGreen, color.Bold)
	warnColor    = color.New(color.FgYellow)
	errorColor   = color.New(color.FgRed, color.Bold)
)

func printField(w io.Writer, label, value string) {
	labelColor.Fprintf(w, "%-18s", label+":")
	fmt.Fprintln(w, value)
}

func printSuccess(w io.Writer, message string) {
	successColor.Fprintln(w, message)
}

func printError(w io.Writer, err error) {
	errorColor.Fprintf(w, "Error: %v\n", err)
}
