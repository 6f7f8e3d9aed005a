package cmd

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var itemsCmd = &cobra.Command{
	Use:   "items",
	Short: "List the current inventory",
	RunE:  runItems,
}

func init() {
	rootCmd.AddCommand(itemsCmd)
}

func runItems(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	_, db, st, _, err := openInventory(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	items, err := st.Items(ctx)
	if err != nil {
		return fmt.Errorf("list inventory: %w", err)
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tSTOCK\tPRICE\tAISLE\tDESCRIPTION")
	for _, it := range items {
		fmt.Fprintf(w, "%d\t%s\t%d\t$%.2f\t%s\t%s\n",
			it.ProductID, it.Name, it.QuantityInStock, it.Price, it.Aisle, it.Description)
	}
	return w.Flush()
}
