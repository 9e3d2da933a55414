package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/spf13/cobra"

	"scorevc/internal/eth"
	"scorevc/pkg/domain"
)

func newChecksumCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "checksum <address>",
		Short: "Print the EIP-55 form of an address",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			checksummed, err := eth.ChecksumEncode(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), checksummed)
			return nil
		},
	}
}

func newLinkMessageCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "link-message <address> <principal>",
		Short: "Print the message a wallet signs to link an address",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			checksummed, err := eth.ChecksumEncode(args[0])
			if err != nil {
				return err
			}
			addr, err := eth.ParseAddress(checksummed)
			if err != nil {
				return err
			}
			principal, err := domain.ParsePrincipal(args[1])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), eth.LinkMessage(addr, principal))
			return nil
		},
	}
}

type signedLink struct {
	Address   string `json:"address"`
	Signature string `json:"signature"`
}

func newSignLinkCmd() *cobra.Command {
	var keyHex, principalText string
	cmd := &cobra.Command{
		Use:   "sign-link",
		Short: "Sign the link message with a local secp256k1 key",
		Long: `Sign the link message with a local secp256k1 key and print the
POST /score/link body. Intended for test wallets only.

Example:
  vcctl sign-link --key 4c0883a6... --principal rrkah-fqaaa-aaaaa-aaaaq-cai`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			key, err := crypto.HexToECDSA(strings.TrimPrefix(keyHex, "0x"))
			if err != nil {
				return fmt.Errorf("invalid --key: %w", err)
			}
			principal, err := domain.ParsePrincipal(principalText)
			if err != nil {
				return fmt.Errorf("invalid --principal: %w", err)
			}
			addr := eth.AddressFromPublicKey(&key.PublicKey)
			sig, err := eth.SignMessage(eth.LinkMessage(addr, principal), key)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(signedLink{Address: addr.String(), Signature: sig.String()})
		},
	}
	cmd.Flags().StringVar(&keyHex, "key", "", "hex-encoded secp256k1 private key")
	cmd.Flags().StringVar(&principalText, "principal", "", "principal to link the address to")
	_ = cmd.MarkFlagRequired("key")
	_ = cmd.MarkFlagRequired("principal")
	return cmd
}
