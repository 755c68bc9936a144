package cmd

import (
	"github.com/DomeLiquid/margin/config"
	"github.com/DomeLiquid/margin/core"
	"github.com/gofrs/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

var groupCmd = &cobra.Command{
	Use:   "group",
	Short: "manage margin groups",
}

var groupInitCmd = &cobra.Command{
	Use:   "init <name>",
	Short: "create a group from the registry file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		registryFile, _ := cmd.Flags().GetString("registry")
		registry, err := config.LoadRegistry(registryFile)
		if err != nil {
			return err
		}
		spec, err := registry.GroupSpec(args[0])
		if err != nil {
			return err
		}

		clk := provideClock()
		svc := provideLedgerService(provideLedgerStore(provideDatabase()), provideVenue(), provideOracle(clk), clk)
		group, err := svc.InitGroup(cmd.Context(), spec)
		if err != nil {
			return err
		}
		cmd.Println(group.Id)
		return nil
	},
}

var groupShowCmd = &cobra.Command{
	Use:   "show <group-id>",
	Short: "print group state with current rates",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		groupId, err := uuid.FromString(args[0])
		if err != nil {
			return err
		}
		group, err := provideLedgerStore(provideDatabase()).GetGroupById(cmd.Context(), groupId)
		if err != nil {
			return err
		}

		cmd.Printf("group %s (%s) version %d\n", group.Name, group.Id, group.Version)
		cmd.Printf("maint %s init %s signer %s\n", group.MaintCollRatio, group.InitCollRatio, group.Signer)
		for i, asset := range group.Assets {
			depositRate, borrowRate := group.Rates(i)
			cmd.Printf("%-6s deposits %s borrows %s vault %s limit %s utilization %s deposit apr %s borrow apr %s\n",
				asset.Symbol,
				group.NativeTotalDeposits(i),
				group.NativeTotalBorrows(i),
				group.Vaults[i],
				group.BorrowLimits[i],
				group.Utilization(i).StringFixed(4),
				depositRate.StringFixed(4),
				borrowRate.StringFixed(4),
			)
		}
		for _, m := range group.Markets {
			cmd.Printf("market %s min size %s tick %s oracle %s\n", m.Id, m.MinSize, m.TickSize, group.Oracles[m.BaseIndex])
		}
		return nil
	},
}

var groupSetBorrowLimitCmd = &cobra.Command{
	Use:   "set-borrow-limit <group-id> <asset> <limit>",
	Short: "change the per account borrow limit of an asset",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		groupId, err := uuid.FromString(args[0])
		if err != nil {
			return err
		}
		limit, err := decimal.NewFromString(args[2])
		if err != nil {
			return errors.Wrapf(core.ErrInvalidAmount, "%q", args[2])
		}
		signer, _ := cmd.Flags().GetString("signer")

		clk := provideClock()
		store := provideLedgerStore(provideDatabase())
		group, err := store.GetGroupById(cmd.Context(), groupId)
		if err != nil {
			return err
		}
		asset, err := group.AssetIndex(args[1])
		if err != nil {
			return err
		}

		svc := provideLedgerService(store, provideVenue(), provideOracle(clk), clk)
		return svc.ChangeBorrowLimit(cmd.Context(), groupId, signer, asset, limit)
	},
}

func init() {
	groupInitCmd.Flags().String("registry", "ids.yaml", "registry of assets, markets and groups")
	groupSetBorrowLimitCmd.Flags().String("signer", "", "group signer")

	groupCmd.AddCommand(groupInitCmd, groupShowCmd, groupSetBorrowLimitCmd)
	rootCmd.AddCommand(groupCmd)
}
