package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/spf13/cobra"

	"dexther/crypto"
	"dexther/native/dexther"
)

const (
	roleInitiator    = "initiator"
	roleCounterparty = "counterparty"
)

// readOrder decodes a swap order from path, or from stdin when path is "-".
func readOrder(cmd *cobra.Command, path string) (dexther.SwapOrder, error) {
	var order dexther.SwapOrder
	if strings.TrimSpace(path) == "" {
		return order, errors.New("--order is required")
	}
	var r io.Reader
	if path == "-" {
		r = cmd.InOrStdin()
	} else {
		f, err := os.Open(path)
		if err != nil {
			return order, err
		}
		defer f.Close()
		r = f
	}
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&order); err != nil {
		return order, fmt.Errorf("decode order: %w", err)
	}
	if err := order.Validate(); err != nil {
		return order, err
	}
	return order, nil
}

func (c *cli) orderDigest(cmd *cobra.Command, path string) (dexther.Domain, dexther.SwapOrder, common.Hash, error) {
	domain, err := c.domain()
	if err != nil {
		return domain, dexther.SwapOrder{}, common.Hash{}, err
	}
	order, err := readOrder(cmd, path)
	if err != nil {
		return domain, order, common.Hash{}, err
	}
	digest := dexther.ComputeDigest(domain.Separator(), dexther.SwapTypeHash, order.Initiator, order.Counterparty)
	return domain, order, digest, nil
}

type digestResult struct {
	DomainSeparator string `json:"domainSeparator"`
	TypeHash        string `json:"typeHash"`
	Digest          string `json:"digest"`
}

func (c *cli) digestCmd() *cobra.Command {
	var orderPath string
	cmd := &cobra.Command{
		Use:   "digest",
		Short: "Compute the digest both parties sign for a swap order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			domain, _, digest, err := c.orderDigest(cmd, orderPath)
			if err != nil {
				return err
			}
			res := digestResult{
				DomainSeparator: domain.Separator().Hex(),
				TypeHash:        dexther.SwapTypeHash.Hex(),
				Digest:          digest.Hex(),
			}
			return c.emit(cmd.OutOrStdout(), res, func(w io.Writer) {
				printField(w, "domain separator", res.DomainSeparator)
				printField(w, "type hash", res.TypeHash)
				printField(w, "digest", res.Digest)
			})
		},
	}
	cmd.Flags().StringVar(&orderPath, "order", "", "swap order JSON file, or - for stdin")
	return cmd
}

type signResult struct {
	Digest    string `json:"digest"`
	Signer    string `json:"signer"`
	Role      string `json:"role"`
	Signature string `json:"signature"`
}

func (c *cli) signCmd() *cobra.Command {
	var orderPath, role string
	cmd := &cobra.Command{
		Use:   "sign",
		Short: "Sign a swap order as the initiator or the counterparty",
		Long: `Sign the digest of a swap order. The key must belong to one of the two
parties; --role selects which when the order is ambiguous about it.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, order, digest, err := c.orderDigest(cmd, orderPath)
			if err != nil {
				return err
			}
			key, err := c.signingKey(cmd)
			if err != nil {
				return err
			}
			resolved, err := signerRole(order, key.Address(), role)
			if err != nil {
				return err
			}
			sig, err := key.SignDigest(digest)
			if err != nil {
				return fmt.Errorf("sign: %w", err)
			}
			res := signResult{
				Digest:    digest.Hex(),
				Signer:    key.Address().Hex(),
				Role:      resolved,
				Signature: hexutil.Encode(sig),
			}
			return c.emit(cmd.OutOrStdout(), res, func(w io.Writer) {
				printField(w, "digest", res.Digest)
				printField(w, "signer", res.Signer+" ("+res.Role+")")
				printField(w, "signature", res.Signature)
			})
		},
	}
	cmd.Flags().StringVar(&orderPath, "order", "", "swap order JSON file, or - for stdin")
	cmd.Flags().StringVar(&role, "role", "", "initiator or counterparty (inferred from the key when empty)")
	addKeyFlags(cmd)
	return cmd
}

func signerRole(order dexther.SwapOrder, signer common.Address, role string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(role)) {
	case "":
		switch signer {
		case order.Initiator.Party:
			return roleInitiator, nil
		case order.Counterparty.Party:
			return roleCounterparty, nil
		}
		return "", fmt.Errorf("key %s is neither the initiator nor the counterparty", signer.Hex())
	case roleInitiator:
		if signer != order.Initiator.Party {
			return "", fmt.Errorf("key %s is not the initiator %s", signer.Hex(), order.Initiator.Party.Hex())
		}
		return roleInitiator, nil
	case roleCounterparty:
		if signer != order.Counterparty.Party {
			return "", fmt.Errorf("key %s is not the counterparty %s", signer.Hex(), order.Counterparty.Party.Hex())
		}
		return roleCounterparty, nil
	default:
		return "", fmt.Errorf("unknown role %q", role)
	}
}

func (c *cli) recoverCmd() *cobra.Command {
	var digestHex, orderPath, sigHex string
	cmd := &cobra.Command{
		Use:   "recover",
		Short: "Recover the signer of a digest",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var digest common.Hash
			switch {
			case digestHex != "" && orderPath != "":
				return errors.New("pass either --digest or --order, not both")
			case digestHex != "":
				raw, err := hexutil.Decode(strings.TrimSpace(digestHex))
				if err != nil || len(raw) != common.HashLength {
					return errors.New("digest must be 32 bytes of 0x-prefixed hex")
				}
				digest = common.BytesToHash(raw)
			case orderPath != "":
				_, _, computed, err := c.orderDigest(cmd, orderPath)
				if err != nil {
					return err
				}
				digest = computed
			default:
				return errors.New("--digest or --order is required")
			}
			sig, err := crypto.DecodeSignature(sigHex)
			if err != nil {
				return err
			}
			signer, err := dexther.Recover(digest, sig)
			if err != nil {
				return err
			}
			return c.emit(cmd.OutOrStdout(), map[string]string{"digest": digest.Hex(), "signer": signer.Hex()}, func(w io.Writer) {
				fmt.Fprintln(w, signer.Hex())
			})
		},
	}
	cmd.Flags().StringVar(&digestHex, "digest", "", "0x-prefixed 32 byte digest")
	cmd.Flags().StringVar(&orderPath, "order", "", "swap order JSON file to digest instead of --digest")
	cmd.Flags().StringVar(&sigHex, "signature", "", "0x-prefixed 65 byte signature")
	_ = cmd.MarkFlagRequired("signature")
	return cmd
}
