package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"mealsync/internal/household"
	"mealsync/internal/shared"
)

var (
	personPreferences string
	personAllergies   string
)

var peopleCmd = &cobra.Command{
	Use:   "people",
	Short: "Manage household members",
}

var peopleListCmd = &cobra.Command{
	Use:   "list",
	Short: "List household members",
	RunE: func(cmd *cobra.Command, args []string) error {
		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		for _, p := range application.People.List() {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", p.ID, p.Name, p.Preferences, p.Allergies)
		}
		return tw.Flush()
	},
}

var peopleAddCmd = &cobra.Command{
	Use:   "add [name]",
	Short: "Add a household member",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		_, err := application.People.Add(cmd.Context(), household.Person{
			Name:        args[0],
			Preferences: personPreferences,
			Allergies:   personAllergies,
		})
		return err
	},
}

var peopleRemoveCmd = &cobra.Command{
	Use:   "remove [id]",
	Short: "Remove a household member",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		_, err := application.People.Remove(cmd.Context(), shared.ID(args[0]))
		return err
	},
}

func init() {
	peopleAddCmd.Flags().StringVar(&personPreferences, "preferences", "", "food preferences")
	peopleAddCmd.Flags().StringVar(&personAllergies, "allergies", "", "allergies")
	peopleCmd.AddCommand(peopleListCmd, peopleAddCmd, peopleRemoveCmd)
}
