package cmd

import (
	"context"

	"github.com/DomeLiquid/margin/core"
	"github.com/DomeLiquid/margin/service/ledger"
	"github.com/gofrs/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

var accountCmd = &cobra.Command{
	Use:   "account",
	Short: "manage margin accounts",
}

func provideCliLedger() (*ledger.Service, core.PriceAdapter) {
	clk := provideClock()
	priceAdapter := provideOracle(clk)
	return provideLedgerService(provideLedgerStore(provideDatabase()), provideVenue(), priceAdapter, clk), priceAdapter
}

// accountAsset resolves the account id and asset symbol arguments.
func accountAsset(ctx context.Context, svc *ledger.Service, accountArg, assetArg, amountArg string) (uuid.UUID, int, decimal.Decimal, error) {
	accountId, err := uuid.FromString(accountArg)
	if err != nil {
		return uuid.Nil, 0, decimal.Zero, err
	}
	account, err := svc.GetAccount(ctx, accountId)
	if err != nil {
		return uuid.Nil, 0, decimal.Zero, err
	}
	group, err := svc.GetGroup(ctx, account.GroupId)
	if err != nil {
		return uuid.Nil, 0, decimal.Zero, err
	}
	asset, err := group.AssetIndex(assetArg)
	if err != nil {
		return uuid.Nil, 0, decimal.Zero, err
	}
	amount := decimal.Zero
	if amountArg != "" {
		if amount, err = decimal.NewFromString(amountArg); err != nil {
			return uuid.Nil, 0, decimal.Zero, errors.Wrapf(core.ErrInvalidAmount, "%q", amountArg)
		}
	}
	return accountId, asset, amount, nil
}

var accountCreateCmd = &cobra.Command{
	Use:   "create <group-id>",
	Short: "open a margin account",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		groupId, err := uuid.FromString(args[0])
		if err != nil {
			return err
		}
		owner, _ := cmd.Flags().GetString("owner")
		index, _ := cmd.Flags().GetUint8("index")
		if owner == "" {
			return errors.Wrap(core.ErrInvalidAccountOwner, "--owner is required")
		}

		svc, _ := provideCliLedger()
		account, err := svc.CreateAccount(cmd.Context(), groupId, owner, index)
		if err != nil {
			return err
		}
		cmd.Println(account.Id)
		return nil
	},
}

var accountShowCmd = &cobra.Command{
	Use:   "show <account-id>",
	Short: "print balances and collateral ratio",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		accountId, err := uuid.FromString(args[0])
		if err != nil {
			return err
		}

		svc, priceAdapter := provideCliLedger()
		account, err := svc.GetAccount(ctx, accountId)
		if err != nil {
			return err
		}
		group, err := svc.GetGroup(ctx, account.GroupId)
		if err != nil {
			return err
		}

		w := core.NewAccountWrapper(group, account)
		cmd.Printf("account %s owner %s flags %s version %d\n", account.Id, account.Owner, account.AccountFlags, account.Version)
		for i, asset := range group.Assets {
			cmd.Printf("%-6s deposit %s borrow %s\n", asset.Symbol, w.NativeDeposit(i), w.NativeBorrow(i))
		}

		openOrders, err := svc.LoadOpenOrders(ctx, group, account)
		if err != nil {
			return err
		}
		prices, err := core.FetchPriceVector(ctx, priceAdapter, group, provideClock().Now(), cfg.MaxPriceAge())
		if err != nil {
			return err
		}
		v, err := core.Valuate(group, account, openOrders, prices)
		if err != nil {
			return err
		}
		ratio := "n/a"
		if r, ok := v.CollateralRatio(); ok {
			ratio = r.StringFixed(4)
		}
		cmd.Printf("assets %s liabilities %s equity %s ratio %s status %s\n",
			v.AssetsValue.StringFixed(2), v.LiabilitiesValue.StringFixed(2), v.Equity().StringFixed(2),
			ratio, v.Status(group.CollateralRatio(core.Maintenance)))

		for m, market := range group.Markets {
			if p := account.PendingOrderOn(m); p != nil {
				cmd.Printf("%-10s pending order %s %s %s @ %s\n", market.Id, p.Request.ClientId, p.Request.Side, p.Request.Size, p.Request.Price)
			}
			if id := account.PendingSettleOn(m); id != "" {
				cmd.Printf("%-10s pending settlement %s\n", market.Id, id)
			}
		}
		return nil
	},
}

var accountDepositCmd = &cobra.Command{
	Use:   "deposit <account-id> <asset> <amount>",
	Short: "credit a deposit",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, _ := provideCliLedger()
		accountId, asset, amount, err := accountAsset(cmd.Context(), svc, args[0], args[1], args[2])
		if err != nil {
			return err
		}
		return svc.Deposit(cmd.Context(), accountId, asset, amount)
	},
}

var accountWithdrawCmd = &cobra.Command{
	Use:   "withdraw <account-id> <asset> <amount>",
	Short: "withdraw to an external wallet",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		owner, _ := cmd.Flags().GetString("owner")
		opponent, _ := cmd.Flags().GetString("opponent")
		if opponent == "" {
			opponent = owner
		}

		svc, _ := provideCliLedger()
		accountId, asset, amount, err := accountAsset(cmd.Context(), svc, args[0], args[1], args[2])
		if err != nil {
			return err
		}
		transfer, err := svc.Withdraw(cmd.Context(), accountId, owner, asset, amount, opponent)
		if err != nil {
			return err
		}
		cmd.Println(transfer.TraceId)
		return nil
	},
}

var accountBorrowCmd = &cobra.Command{
	Use:   "borrow <account-id> <asset> <amount>",
	Short: "borrow against the account collateral",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		owner, _ := cmd.Flags().GetString("owner")
		svc, _ := provideCliLedger()
		accountId, asset, amount, err := accountAsset(cmd.Context(), svc, args[0], args[1], args[2])
		if err != nil {
			return err
		}
		return svc.Borrow(cmd.Context(), accountId, owner, asset, amount)
	},
}

var accountSettleBorrowCmd = &cobra.Command{
	Use:   "settle-borrow <account-id> <asset> [amount]",
	Short: "repay a borrow out of deposits, all of it when amount is omitted",
	Args:  cobra.RangeArgs(2, 3),
	RunE: func(cmd *cobra.Command, args []string) error {
		owner, _ := cmd.Flags().GetString("owner")
		amountArg := ""
		if len(args) == 3 {
			amountArg = args[2]
		}

		svc, _ := provideCliLedger()
		accountId, asset, amount, err := accountAsset(cmd.Context(), svc, args[0], args[1], amountArg)
		if err != nil {
			return err
		}
		return svc.SettleBorrow(cmd.Context(), accountId, owner, asset, amount)
	},
}

// accountMarket resolves the account id and market name arguments.
func accountMarket(ctx context.Context, svc *ledger.Service, accountArg, marketArg string) (uuid.UUID, *core.Group, int, error) {
	accountId, err := uuid.FromString(accountArg)
	if err != nil {
		return uuid.Nil, nil, 0, err
	}
	account, err := svc.GetAccount(ctx, accountId)
	if err != nil {
		return uuid.Nil, nil, 0, err
	}
	group, err := svc.GetGroup(ctx, account.GroupId)
	if err != nil {
		return uuid.Nil, nil, 0, err
	}
	market, err := group.MarketIndex(marketArg)
	if err != nil {
		return uuid.Nil, nil, 0, err
	}
	return accountId, group, market, nil
}

var accountPlaceOrderCmd = &cobra.Command{
	Use:   "place-order <account-id> <market> <side> <price> <size>",
	Short: "lock funds and place an order on the venue",
	Args:  cobra.ExactArgs(5),
	RunE: func(cmd *cobra.Command, args []string) error {
		owner, _ := cmd.Flags().GetString("owner")
		typ, _ := cmd.Flags().GetString("type")

		side, err := core.ParseSide(args[2])
		if err != nil {
			return err
		}
		orderType, err := core.ParseOrderType(typ)
		if err != nil {
			return err
		}
		price, err := decimal.NewFromString(args[3])
		if err != nil {
			return errors.Wrapf(core.ErrInvalidAmount, "price %q", args[3])
		}
		size, err := decimal.NewFromString(args[4])
		if err != nil {
			return errors.Wrapf(core.ErrInvalidAmount, "size %q", args[4])
		}

		svc, _ := provideCliLedger()
		accountId, _, market, err := accountMarket(cmd.Context(), svc, args[0], args[1])
		if err != nil {
			return err
		}
		order, err := svc.PlaceOrder(cmd.Context(), accountId, owner, core.OrderRequest{
			Market: market,
			Side:   side,
			Price:  price,
			Size:   size,
			Type:   orderType,
		})
		if err != nil {
			return err
		}
		cmd.Println(order.Id)
		return nil
	},
}

var accountCancelCmd = &cobra.Command{
	Use:   "cancel <account-id> <market> [order-id]",
	Short: "cancel one order, or every order of the market when no id is given",
	Args:  cobra.RangeArgs(2, 3),
	RunE: func(cmd *cobra.Command, args []string) error {
		owner, _ := cmd.Flags().GetString("owner")
		svc, _ := provideCliLedger()
		accountId, _, market, err := accountMarket(cmd.Context(), svc, args[0], args[1])
		if err != nil {
			return err
		}
		if len(args) == 3 {
			return svc.CancelOrder(cmd.Context(), accountId, owner, market, args[2])
		}
		n, err := svc.CancelAllByMarket(cmd.Context(), accountId, owner, market)
		if err != nil {
			return err
		}
		cmd.Printf("cancelled %d\n", n)
		return nil
	},
}

var accountSettleFundsCmd = &cobra.Command{
	Use:   "settle-funds <account-id> <market>",
	Short: "move matched funds from the venue back into deposits",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, _ := provideCliLedger()
		accountId, group, market, err := accountMarket(cmd.Context(), svc, args[0], args[1])
		if err != nil {
			return err
		}
		base, quote, err := svc.SettleFunds(cmd.Context(), accountId, market)
		if err != nil {
			return err
		}
		m := group.Markets[market]
		cmd.Printf("%s %s %s %s\n", group.Assets[m.BaseIndex].Symbol, base, group.QuoteAsset().Symbol, quote)
		return nil
	},
}

func init() {
	accountCreateCmd.Flags().String("owner", "", "account owner")
	accountCreateCmd.Flags().Uint8("index", 0, "account index of the owner in the group")
	for _, c := range []*cobra.Command{accountWithdrawCmd, accountBorrowCmd, accountSettleBorrowCmd, accountPlaceOrderCmd, accountCancelCmd} {
		c.Flags().String("owner", "", "account owner")
	}
	accountWithdrawCmd.Flags().String("opponent", "", "receiving wallet, defaults to the owner")
	accountPlaceOrderCmd.Flags().String("type", "limit", "limit, ioc or post_only")

	accountCmd.AddCommand(accountCreateCmd, accountShowCmd, accountDepositCmd, accountWithdrawCmd, accountBorrowCmd, accountSettleBorrowCmd,
		accountPlaceOrderCmd, accountCancelCmd, accountSettleFundsCmd)
	rootCmd.AddCommand(accountCmd)
}
