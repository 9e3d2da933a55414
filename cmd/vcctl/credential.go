package main

import (
	"crypto/ed25519"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"scorevc/internal/certified/platform"
	jwttoken "scorevc/internal/jwt_token"
	"scorevc/internal/platform/config"
	"scorevc/internal/vc"
	"scorevc/pkg/domain"
)

func newVerifyCmd() *cobra.Command {
	var rootKeyHex, issuerText, at string
	cmd := &cobra.Command{
		Use:   "verify <jws>",
		Short: "Verify an issued credential and print its claims",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rootKey, err := hex.DecodeString(rootKeyHex)
			if err != nil || len(rootKey) != ed25519.PublicKeySize {
				return fmt.Errorf("--root-key must be a hex-encoded Ed25519 public key")
			}
			issuer, err := domain.ParsePrincipal(issuerText)
			if err != nil {
				return fmt.Errorf("invalid --issuer: %w", err)
			}
			now := time.Now()
			if at != "" {
				if now, err = time.Parse(time.RFC3339, at); err != nil {
					return fmt.Errorf("invalid --at: %w", err)
				}
			}

			claims, err := vc.ParseCredential(strings.TrimSpace(args[0]), vc.VerificationKey{
				RootKey:  ed25519.PublicKey(rootKey),
				IssuerID: issuer,
			}, now)
			if err != nil {
				return fmt.Errorf("credential rejected: %w", err)
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(claims)
		},
	}
	cmd.Flags().StringVar(&rootKeyHex, "root-key", "", "hex-encoded platform root public key")
	cmd.Flags().StringVar(&issuerText, "issuer", "", "issuer principal")
	cmd.Flags().StringVar(&at, "at", "", "verification time (RFC 3339), defaults to now")
	_ = cmd.MarkFlagRequired("root-key")
	_ = cmd.MarkFlagRequired("issuer")
	return cmd
}

func newRootKeyCmd() *cobra.Command {
	var seedHex, issuerText string
	cmd := &cobra.Command{
		Use:   "root-key",
		Short: "Print the platform root public key derived from ROOT_KEY_SEED",
		RunE: func(cmd *cobra.Command, _ []string) error {
			seed, err := hex.DecodeString(seedHex)
			if err != nil || len(seed) != ed25519.SeedSize {
				return fmt.Errorf("--seed must be 32 hex-encoded bytes")
			}
			issuer, err := domain.ParsePrincipal(issuerText)
			if err != nil {
				return fmt.Errorf("invalid --issuer: %w", err)
			}
			p, err := platform.New(issuer, seed)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), hex.EncodeToString(p.RootPublicKey()))
			return nil
		},
	}
	cmd.Flags().StringVar(&seedHex, "seed", envOr("ROOT_KEY_SEED", strings.Repeat("07", 32)), "hex-encoded root key seed")
	cmd.Flags().StringVar(&issuerText, "issuer", "rrkah-fqaaa-aaaaa-aaaaq-cai", "issuer principal")
	return cmd
}

func newTokenCmd() *cobra.Command {
	var principalText, signingKey, issuerURL string
	var ttl time.Duration
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a session token for local testing",
		RunE: func(cmd *cobra.Command, _ []string) error {
			principal, err := domain.ParsePrincipal(principalText)
			if err != nil {
				return fmt.Errorf("invalid --principal: %w", err)
			}
			if principal.IsAnonymous() {
				return fmt.Errorf("the anonymous principal cannot hold a session")
			}
			token, err := jwttoken.NewJWTService(signingKey, issuerURL, config.SessionAudience).
				GenerateAccessToken(principal, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&principalText, "principal", "", "caller principal")
	cmd.Flags().DurationVar(&ttl, "ttl", time.Hour, "token lifetime")
	cmd.Flags().StringVar(&signingKey, "signing-key", envOr("JWT_SIGNING_KEY", "dev-secret-key-change-in-production"), "HS256 session signing key")
	cmd.Flags().StringVar(&issuerURL, "issuer-url", envOr("ISSUER_URL", "https://passport.issuer.example"), "session token issuer")
	_ = cmd.MarkFlagRequired("principal")
	return cmd
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
