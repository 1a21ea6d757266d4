package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"mealsync/internal/shared"
	"mealsync/internal/shopping"
)

var shoppingCategory string

var shoppingCmd = &cobra.Command{
	Use:   "shopping",
	Short: "Manage the shopping list",
}

var shoppingListCmd = &cobra.Command{
	Use:   "list",
	Short: "Show the shopping list",
	RunE: func(cmd *cobra.Command, args []string) error {
		printItems(cmd.OutOrStdout(), application.Shopping.Items())
		return nil
	},
}

var shoppingAddCmd = &cobra.Command{
	Use:   "add [name]",
	Short: "Add an item",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		_, err := application.Shopping.Add(cmd.Context(), shopping.Item{Name: args[0], Category: shoppingCategory})
		return err
	},
}

var shoppingRemoveCmd = &cobra.Command{
	Use:   "remove [id]",
	Short: "Remove an item. It will not be generated again.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		_, err := application.Shopping.Remove(cmd.Context(), shared.ID(args[0]))
		return err
	},
}

var shoppingCheckCmd = &cobra.Command{
	Use:   "check [id]",
	Short: "Tick an item off, or untick it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		_, err := application.Shopping.Toggle(cmd.Context(), shared.ID(args[0]))
		return err
	},
}

var shoppingGenerateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Add the ingredients of this week's meals",
	RunE: func(cmd *cobra.Command, args []string) error {
		added, err := application.GenerateShoppingList(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Added %d items\n", len(added))
		printItems(cmd.OutOrStdout(), added)
		return nil
	},
}

func printItems(w io.Writer, items []shopping.Item) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, it := range items {
		mark := "[ ]"
		if it.Checked {
			mark = "[x]"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", mark, it.ID, it.Name, it.Category)
	}
	tw.Flush()
}

func init() {
	shoppingAddCmd.Flags().StringVar(&shoppingCategory, "category", "", "category (guessed from the name when empty)")
	shoppingCmd.AddCommand(shoppingListCmd, shoppingAddCmd, shoppingRemoveCmd, shoppingCheckCmd, shoppingGenerateCmd)
}
