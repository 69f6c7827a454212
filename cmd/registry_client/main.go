package main

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/flashbots/go-utils/signature"
	"github.com/urfave/cli/v2"

	"github.com/ruteri/utility-registry/api/clients"
	"github.com/ruteri/utility-registry/cmd/flags"
	"github.com/ruteri/utility-registry/interfaces"
)

var (
	flagTokenID = &cli.StringFlag{
		Name:     "token-id",
		Required: true,
		Usage:    "decimal token id",
	}
	flagTo = &cli.StringFlag{
		Name:     "to",
		Required: true,
		Usage:    "recipient address",
	}
	flagFrom = &cli.StringFlag{
		Name:     "from",
		Required: true,
		Usage:    "current holder address",
	}
	flagMetadata = &cli.StringFlag{
		Name:  "metadata",
		Usage: "utility metadata; when set, mint binds the token to its recipient",
	}
)

func main() {
	app := &cli.App{
		Name:  "registry-client",
		Usage: "Query and operate the utility-bound collectible registry",
		Flags: []cli.Flag{
			flags.ServerAddrFlag,
			flags.PrivateKeyFlag,
		},
		Commands: []*cli.Command{
			{
				Name:  "mint",
				Usage: "mint a token, with a utility binding when --metadata is set",
				Flags: []cli.Flag{flagTo, flagTokenID, flagMetadata},
				Action: func(cCtx *cli.Context) error {
					c, err := newClient(cCtx, true)
					if err != nil {
						return err
					}
					to, id, err := addressAndID(cCtx, flagTo.Name)
					if err != nil {
						return err
					}
					if cCtx.IsSet(flagMetadata.Name) {
						return c.MintWithUtilityBinding(to, id, cCtx.String(flagMetadata.Name))
					}
					return c.Mint(to, id)
				},
			},
			{
				Name:  "transfer",
				Usage: "transfer a token",
				Flags: []cli.Flag{flagFrom, flagTo, flagTokenID},
				Action: func(cCtx *cli.Context) error {
					c, err := newClient(cCtx, true)
					if err != nil {
						return err
					}
					from, err := parseAddress(cCtx.String(flagFrom.Name))
					if err != nil {
						return err
					}
					to, id, err := addressAndID(cCtx, flagTo.Name)
					if err != nil {
						return err
					}
					return c.Transfer(from, to, id)
				},
			},
			{
				Name:  "approve",
				Usage: "approve an account to transfer one token",
				Flags: []cli.Flag{flagTo, flagTokenID},
				Action: func(cCtx *cli.Context) error {
					c, err := newClient(cCtx, true)
					if err != nil {
						return err
					}
					to, id, err := addressAndID(cCtx, flagTo.Name)
					if err != nil {
						return err
					}
					return c.Approve(to, id)
				},
			},
			{
				Name:  "set-operator",
				Usage: "grant or revoke an operator for all tokens of the signer",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "operator", Required: true},
					&cli.BoolFlag{Name: "approved", Value: true},
				},
				Action: func(cCtx *cli.Context) error {
					c, err := newClient(cCtx, true)
					if err != nil {
						return err
					}
					operator, err := parseAddress(cCtx.String("operator"))
					if err != nil {
						return err
					}
					return c.SetApprovalForAll(operator, cCtx.Bool("approved"))
				},
			},
			{
				Name:  "set-utility",
				Usage: "bind a token's utility to an address",
				Flags: []cli.Flag{
					flagTokenID,
					&cli.StringFlag{Name: "address", Required: true},
					&cli.StringFlag{Name: "metadata"},
				},
				Action: func(cCtx *cli.Context) error {
					c, err := newClient(cCtx, true)
					if err != nil {
						return err
					}
					bound, id, err := addressAndID(cCtx, "address")
					if err != nil {
						return err
					}
					return c.SetUtilityBinding(id, bound, cCtx.String("metadata"))
				},
			},
			{
				Name:  "set-max-supply",
				Usage: "raise the supply cap",
				Flags: []cli.Flag{&cli.Uint64Flag{Name: "max-supply", Required: true}},
				Action: func(cCtx *cli.Context) error {
					c, err := newClient(cCtx, true)
					if err != nil {
						return err
					}
					return c.SetMaxSupply(cCtx.Uint64("max-supply"))
				},
			},
			{
				Name:  "set-metadata-base",
				Usage: "replace the token URI prefix",
				Flags: []cli.Flag{&cli.StringFlag{Name: "base", Required: true}},
				Action: func(cCtx *cli.Context) error {
					c, err := newClient(cCtx, true)
					if err != nil {
						return err
					}
					return c.SetMetadataBase(cCtx.String("base"))
				},
			},
			{
				Name:  "set-administrator",
				Usage: "replace the administrator",
				Flags: []cli.Flag{&cli.StringFlag{Name: "administrator", Required: true}},
				Action: func(cCtx *cli.Context) error {
					c, err := newClient(cCtx, true)
					if err != nil {
						return err
					}
					admin, err := parseAddress(cCtx.String("administrator"))
					if err != nil {
						return err
					}
					return c.SetAdministrator(admin)
				},
			},
			{
				Name:  "checkpoint",
				Usage: "store a registry checkpoint on the server's backends",
				Action: func(cCtx *cli.Context) error {
					c, err := newClient(cCtx, true)
					if err != nil {
						return err
					}
					resp, err := c.Checkpoint()
					if err != nil {
						return err
					}
					return printJSON(resp)
				},
			},
			{
				Name:  "token",
				Usage: "show a token",
				Flags: []cli.Flag{flagTokenID},
				Action: func(cCtx *cli.Context) error {
					c, id, err := readClientAndID(cCtx)
					if err != nil {
						return err
					}
					resp, err := c.Token(id)
					if err != nil {
						return err
					}
					return printJSON(resp)
				},
			},
			{
				Name:  "utility",
				Usage: "show whether a token confers utility",
				Flags: []cli.Flag{flagTokenID},
				Action: func(cCtx *cli.Context) error {
					c, id, err := readClientAndID(cCtx)
					if err != nil {
						return err
					}
					resp, err := c.Utility(id)
					if err != nil {
						return err
					}
					return printJSON(resp)
				},
			},
			{
				Name:  "holder",
				Usage: "list the tokens of an account",
				Flags: []cli.Flag{&cli.StringFlag{Name: "address", Required: true}},
				Action: func(cCtx *cli.Context) error {
					c, err := newClient(cCtx, false)
					if err != nil {
						return err
					}
					holder, err := parseAddress(cCtx.String("address"))
					if err != nil {
						return err
					}
					resp, err := c.Holder(holder)
					if err != nil {
						return err
					}
					return printJSON(resp)
				},
			},
			{
				Name:  "governance",
				Usage: "show owner, administrator, supply cap and metadata base",
				Action: func(cCtx *cli.Context) error {
					c, err := newClient(cCtx, false)
					if err != nil {
						return err
					}
					resp, err := c.Governance()
					if err != nil {
						return err
					}
					return printJSON(resp)
				},
			},
			{
				Name:  "events",
				Usage: "print the event log",
				Flags: []cli.Flag{&cli.Uint64Flag{Name: "from", Value: 1}},
				Action: func(cCtx *cli.Context) error {
					c, err := newClient(cCtx, false)
					if err != nil {
						return err
					}
					events, err := c.Events(cCtx.Uint64("from"))
					if err != nil {
						return err
					}
					return printJSON(events)
				},
			},
			{
				Name:  "new-key",
				Usage: "generate a signing key and print it with its address",
				Action: func(cCtx *cli.Context) error {
					key, err := crypto.GenerateKey()
					if err != nil {
						return err
					}
					return printJSON(map[string]string{
						"private_key": hex.EncodeToString(crypto.FromECDSA(key)),
						"address":     crypto.PubkeyToAddress(key.PublicKey).Hex(),
					})
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newClient(cCtx *cli.Context, needsSigner bool) (*clients.RegistryClient, error) {
	var signer *signature.Signer
	if key := cCtx.String(flags.PrivateKeyFlag.Name); key != "" {
		s, err := signature.NewSignerFromHexPrivateKey(key)
		if err != nil {
			return nil, fmt.Errorf("invalid private key: %w", err)
		}
		signer = s
	}
	if needsSigner && signer == nil {
		return nil, errors.New("this command needs --private-key")
	}
	return clients.NewRegistryClient(cCtx.String(flags.ServerAddrFlag.Name), signer), nil
}

func readClientAndID(cCtx *cli.Context) (*clients.RegistryClient, interfaces.TokenID, error) {
	c, err := newClient(cCtx, false)
	if err != nil {
		return nil, interfaces.TokenID{}, err
	}
	id, err := interfaces.ParseTokenID(cCtx.String(flagTokenID.Name))
	return c, id, err
}

func addressAndID(cCtx *cli.Context, addressFlag string) (common.Address, interfaces.TokenID, error) {
	addr, err := parseAddress(cCtx.String(addressFlag))
	if err != nil {
		return common.Address{}, interfaces.TokenID{}, err
	}
	id, err := interfaces.ParseTokenID(cCtx.String(flagTokenID.Name))
	return addr, id, err
}

func parseAddress(raw string) (common.Address, error) {
	if !common.IsHexAddress(raw) {
		return common.Address{}, fmt.Errorf("invalid address %q", raw)
	}
	return common.HexToAddress(raw), nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
