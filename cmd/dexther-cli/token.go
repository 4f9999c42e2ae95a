package main

import (
	"fmt"
	"io"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"

	"dexther/native/dexther"
	"dexther/services/dextherd/server"
)

func (c *cli) tokenCmd() *cobra.Command {
	var (
		subject  string
		issuer   string
		audience string
		ttl      time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a dextherd bearer token",
		Long: `Issue an HS256 bearer token accepted by dextherd. The secret is read
from DEXTHER_JWT_SECRET or the jwt_secret config key. The subject defaults to
the address of --key or --keystore.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var who common.Address
			if subject != "" {
				parsed, err := dexther.ParseAddress(subject)
				if err != nil {
					return err
				}
				who = parsed
			} else {
				key, err := c.signingKey(cmd)
				if err != nil {
					return err
				}
				who = key.Address()
			}
			if issuer == "" {
				issuer = c.v.GetString("jwt_issuer")
			}
			if audience == "" {
				audience = c.v.GetString("jwt_audience")
			}
			token, err := server.IssueToken(c.v.GetString("jwt_secret"), who, issuer, audience, ttl)
			if err != nil {
				return fmt.Errorf("issue token: %w", err)
			}
			return c.emit(cmd.OutOrStdout(), map[string]string{"subject": who.Hex(), "token": token}, func(w io.Writer) {
				fmt.Fprintln(w, token)
			})
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "", "caller address embedded as the token subject")
	cmd.Flags().StringVar(&issuer, "issuer", "", "token issuer (defaults to jwt_issuer)")
	cmd.Flags().StringVar(&audience, "audience", "", "token audience (defaults to jwt_audience)")
	cmd.Flags().DurationVar(&ttl, "ttl", time.Hour, "token lifetime; 0 issues a token without expiry")
	addKeyFlags(cmd)
	return cmd
}
