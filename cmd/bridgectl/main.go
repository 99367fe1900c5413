// bridgectl administers the anchors of a bridge deployment: linking, syncing
// mirrors, governance proposals and test deposits.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/colorfulnotion/anchorbridge/anchor"
	"github.com/colorfulnotion/anchorbridge/bridge"
	"github.com/colorfulnotion/anchorbridge/bridgeerrors"
	"github.com/colorfulnotion/anchorbridge/bridgeside"
	"github.com/colorfulnotion/anchorbridge/common"
	log "github.com/colorfulnotion/anchorbridge/log"
	"github.com/colorfulnotion/anchorbridge/telemetry"
	"github.com/holiman/uint256"
	"github.com/spf13/cobra"
)

var (
	Version   = "dev"
	Commit    = "none"
	BuildTime = "unknown"
)

func main() {
	var rootCmd = &cobra.Command{
		Use:     "bridgectl",
		Short:   "Anchor bridge governance tool",
		Version: fmt.Sprintf("%s (commit %s, built %s)", Version, Commit, BuildTime),
	}
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	var (
		o         options
		otlp      string
		debug     string
		logLevel  string
		jsonOut   bool
		diffFile  string
		anchorRef string
		fromBlock int64
		token     string
	)

	run := func(fn func(ctx context.Context, e *env) error) {
		log.InitLogger(logLevel)
		log.EnableModules(debug)
		if code := execute(o, otlp, fn); code != 0 {
			os.Exit(code)
		}
	}

	var graphCmd = &cobra.Command{
		Use:   "graph",
		Short: "Print the linked anchor graph",
		Run: func(cmd *cobra.Command, args []string) {
			run(func(ctx context.Context, e *env) error {
				if !jsonOut && diffFile == "" {
					fmt.Println(e.bridge.Tree().String())
					return nil
				}
				current, err := json.MarshalIndent(e.bridge.Graph(), "", "  ")
				if err != nil {
					return err
				}
				if diffFile == "" {
					fmt.Println(string(current))
					return nil
				}
				before, err := os.ReadFile(diffFile)
				if err != nil {
					return err
				}
				diff, err := bridge.DiffGraphs(before, current, true)
				if err != nil {
					return err
				}
				fmt.Print(diff)
				return nil
			})
		},
	}
	graphCmd.Flags().BoolVar(&jsonOut, "json", false, "Print the graph as JSON")
	graphCmd.Flags().StringVar(&diffFile, "diff", "", "Diff the graph against a previously saved JSON graph")

	var connectCmd = &cobra.Command{
		Use:   "connect",
		Short: "Register every anchor with its governance contract",
		Run: func(cmd *cobra.Command, args []string) {
			run(func(ctx context.Context, e *env) error {
				if o.simulated {
					fmt.Printf("Simulated deployment is already connected\n")
					return nil
				}
				if err := e.bridge.ConnectAll(ctx); err != nil {
					return err
				}
				fmt.Printf("✓ Connected %d anchors\n", len(e.anchors))
				return nil
			})
		},
	}

	var syncCmd = &cobra.Command{
		Use:   "sync",
		Short: "Replay insertion events into the local mirror of an anchor",
		Run: func(cmd *cobra.Command, args []string) {
			run(func(ctx context.Context, e *env) error {
				a, _, err := e.resolve(anchorRef)
				if err != nil {
					return err
				}
				var from *uint64
				if fromBlock >= 0 {
					b := uint64(fromBlock)
					from = &b
				}
				if err := a.Update(ctx, from); err != nil {
					return err
				}
				known, err := a.CheckKnownRoot(ctx)
				if err != nil {
					return err
				}
				fmt.Printf("%s\n", a)
				fmt.Printf("  Leaves: %d\n", len(a.Leaves()))
				fmt.Printf("  Root: %s (known on chain: %v)\n", a.LatestRoot().Hex(), known)
				fmt.Printf("  Synced to block: %d\n", a.LatestSyncedBlock())
				return nil
			})
		},
	}
	syncCmd.Flags().Int64Var(&fromBlock, "from-block", -1, "Replay from this block instead of the last synced block")

	var nonceCmd = &cobra.Command{
		Use:   "nonce",
		Short: "Show the governance nonce and handler of an anchor",
		Run: func(cmd *cobra.Command, args []string) {
			run(func(ctx context.Context, e *env) error {
				a, side, err := e.resolve(anchorRef)
				if err != nil {
					return err
				}
				nonce, err := side.ProposalNonce(ctx, a.ResourceID())
				if err != nil {
					return err
				}
				handler, err := side.ResourceHandler(ctx, a.ResourceID())
				if err != nil {
					return err
				}
				fmt.Printf("%s\n  Resource: %s\n  Nonce: %d\n  Handler: %s\n", a, a.ResourceID(), nonce, handler.Hex())
				return nil
			})
		},
	}

	var depositCmd = &cobra.Command{
		Use:   "deposit <commitment>",
		Short: "Deposit a commitment and propagate the new root to linked anchors",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			run(func(ctx context.Context, e *env) error {
				a, _, err := e.resolve(anchorRef)
				if err != nil {
					return err
				}
				commitment := common.HexToHash(args[0])
				var res *anchor.DepositResult
				if token != "" {
					var tokenAddr common.Address
					if tokenAddr, err = parseAddress(token); err != nil {
						return err
					}
					res, err = e.bridge.WrapAndDeposit(ctx, a.TypedChainID(), a.Size(), tokenAddr, commitment)
				} else {
					res, err = e.bridge.Deposit(ctx, a.TypedChainID(), a.Size(), commitment)
				}
				if res != nil {
					fmt.Printf("✓ Deposited leaf %d, root %s (tx %s)\n", res.Index, res.Root.Hex(), res.Receipt.TxHash.Hex())
				}
				return err
			})
		},
	}
	depositCmd.Flags().StringVar(&token, "token", "", "Wrap this token before depositing")

	var proposeCmd = &cobra.Command{
		Use:   "propose",
		Short: "Sign and execute a governance proposal against an anchor",
	}
	proposeCmd.PersistentFlags().StringVar(&anchorRef, "anchor", "", "Target anchor as chain:size")
	proposeCmd.AddCommand(
		proposalCmd(run, &anchorRef, "fee <basis-points>", "Set the wrapping fee", func(ctx context.Context, side *bridgeside.BridgeSide, a *anchor.Anchor, arg string) error {
			fee, err := strconv.ParseUint(arg, 10, 16)
			if err != nil {
				return fmt.Errorf("fee %q: %w", arg, err)
			}
			_, err = side.ExecuteFeeProposal(ctx, a.ResourceID(), uint16(fee))
			return err
		}),
		proposalCmd(run, &anchorRef, "token-add <address>", "Allow a token to be wrapped", func(ctx context.Context, side *bridgeside.BridgeSide, a *anchor.Anchor, arg string) error {
			addr, err := parseAddress(arg)
			if err != nil {
				return err
			}
			_, err = side.ExecuteTokenAddProposal(ctx, a.ResourceID(), addr)
			return err
		}),
		proposalCmd(run, &anchorRef, "token-remove <address>", "Stop a token from being wrapped", func(ctx context.Context, side *bridgeside.BridgeSide, a *anchor.Anchor, arg string) error {
			addr, err := parseAddress(arg)
			if err != nil {
				return err
			}
			_, err = side.ExecuteTokenRemoveProposal(ctx, a.ResourceID(), addr)
			return err
		}),
		proposalCmd(run, &anchorRef, "min-withdraw <amount>", "Set the minimum withdrawal amount", func(ctx context.Context, side *bridgeside.BridgeSide, a *anchor.Anchor, arg string) error {
			limit, err := uint256.FromDecimal(arg)
			if err != nil {
				return fmt.Errorf("amount %q: %w", arg, err)
			}
			_, err = side.ExecuteMinWithdrawalLimitProposal(ctx, a.ResourceID(), limit)
			return err
		}),
		proposalCmd(run, &anchorRef, "max-deposit <amount>", "Set the maximum deposit amount", func(ctx context.Context, side *bridgeside.BridgeSide, a *anchor.Anchor, arg string) error {
			limit, err := uint256.FromDecimal(arg)
			if err != nil {
				return fmt.Errorf("amount %q: %w", arg, err)
			}
			_, err = side.ExecuteMaxDepositLimitProposal(ctx, a.ResourceID(), limit)
			return err
		}),
		proposalCmd(run, &anchorRef, "fee-recipient <address>", "Set the fee recipient", func(ctx context.Context, side *bridgeside.BridgeSide, a *anchor.Anchor, arg string) error {
			addr, err := parseAddress(arg)
			if err != nil {
				return err
			}
			_, err = side.ExecuteFeeRecipientProposal(ctx, a.ResourceID(), addr)
			return err
		}),
	)

	for _, c := range []*cobra.Command{syncCmd, nonceCmd, depositCmd} {
		c.Flags().StringVar(&anchorRef, "anchor", "", "Target anchor as chain:size")
		c.MarkFlagRequired("anchor")
	}

	rootCmd.PersistentFlags().StringVar(&o.deployment, "deployment", "localnet", "Embedded deployment name or path to a deployment JSON file")
	rootCmd.PersistentFlags().BoolVar(&o.simulated, "simulated", false, "Run against in-process simulated chains")
	rootCmd.PersistentFlags().StringVar(&o.adminKey, "admin-key", "", "Hex key paying for transactions (default $BRIDGE_ADMIN_KEY)")
	rootCmd.PersistentFlags().StringVar(&o.governorKey, "governor-key", "", "Hex governor key (default $BRIDGE_GOVERNOR_KEY)")
	rootCmd.PersistentFlags().StringVar(&o.remoteSigner, "remote-signer", "", "JSON-RPC endpoint holding the governor key")
	rootCmd.PersistentFlags().StringVar(&o.governorAddress, "governor-address", "", "Governor address served by --remote-signer")
	rootCmd.PersistentFlags().StringVar(&o.storePath, "store", "", "LevelDB directory for anchor mirrors")
	rootCmd.PersistentFlags().StringVar(&otlp, "otlp", "", "OTLP/HTTP trace endpoint")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level")
	rootCmd.PersistentFlags().StringVar(&debug, "debug", "gov_mod,anchor_mod,bridge_mod", "Debug modules to enable")

	rootCmd.AddCommand(graphCmd, connectCmd, syncCmd, nonceCmd, depositCmd, proposeCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func parseAddress(s string) (common.Address, error) {
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("%q is not a hex address", s)
	}
	return common.HexToAddress(s), nil
}

// initTelemetry is replaced in tests.
var initTelemetry = telemetry.Init

// execute loads the deployment, hands it to fn under the deployment's receipt timeout and returns
// the exit code. The trace exporter is flushed on every path, before the caller exits.
func execute(o options, otlp string, fn func(ctx context.Context, e *env) error) int {
	shutdown, err := initTelemetry(context.Background(), otlp, "bridgectl")
	if err != nil {
		fmt.Printf("Failed to init telemetry: %v\n", err)
		return 1
	}
	defer func() {
		if err := shutdown(context.Background()); err != nil {
			log.Warn(log.BridgeMonitoring, "telemetry shutdown", "err", err)
		}
	}()

	e, err := setup(context.Background(), o)
	if err != nil {
		fmt.Printf("Failed to load deployment %s: %v\n", o.deployment, err)
		return 1
	}
	defer e.Close()

	ctx, cancel := context.WithTimeout(context.Background(), e.deployment.ReceiptTimeout())
	defer cancel()
	if err := fn(ctx, e); err != nil {
		fmt.Printf("Error: %v\n", err)
		return 1
	}
	return 0
}

func proposalCmd(run func(func(context.Context, *env) error), anchorRef *string, use, short string, do func(context.Context, *bridgeside.BridgeSide, *anchor.Anchor, string) error) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			run(func(ctx context.Context, e *env) error {
				a, side, err := e.resolve(*anchorRef)
				if err != nil {
					return err
				}
				if _, ok := side.Handler(); !ok {
					return fmt.Errorf("%s: %w", side, bridgeerrors.ErrGHandlerNotSet)
				}
				if err := do(ctx, side, a, args[0]); err != nil {
					return err
				}
				nonce, err := side.ProposalNonce(ctx, a.ResourceID())
				if err != nil {
					return err
				}
				fmt.Printf("✓ Executed %s on %s, nonce now %d\n", cmd.Name(), a, nonce)
				return nil
			})
		},
	}
}
