package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"mealsync/internal/planner"
	"mealsync/internal/shared"
)

var (
	planWeek     string
	planServings int
	planRecipeID string
)

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Manage the weekly meal plan",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := rootCmd.PersistentPreRunE(cmd, args); err != nil {
			return err
		}
		if planWeek == "" || planWeek == application.Plan.Week() {
			return nil
		}
		return application.SelectWeek(cmd.Context(), planWeek)
	},
}

var planListCmd = &cobra.Command{
	Use:   "list",
	Short: "Show the meals of the week",
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		fmt.Fprintln(out, application.Plan.Week())
		tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		for _, e := range application.Plan.Entries() {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\n", e.ID, e.Day, e.MealTime, e.RecipeName, e.Servings)
		}
		return tw.Flush()
	},
}

var planAddCmd = &cobra.Command{
	Use:   "add [day] [meal-time] [recipe name]",
	Short: "Plan a meal. An occupied slot is replaced.",
	Args:  cobra.MinimumNArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		day, ok := planner.NormalizeDay(args[0])
		if !ok {
			return shared.Validation("unknown day %q", args[0])
		}
		mealTime, ok := planner.NormalizeMealTime(args[1])
		if !ok {
			return shared.Validation("unknown meal time %q", args[1])
		}
		_, err := application.Plan.Add(cmd.Context(), planner.Entry{
			RecipeID:   shared.ID(planRecipeID),
			RecipeName: strings.Join(args[2:], " "),
			Day:        day,
			MealTime:   mealTime,
			Servings:   planServings,
		})
		return err
	},
}

var planRemoveCmd = &cobra.Command{
	Use:   "remove [id]",
	Short: "Remove a planned meal",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		_, err := application.Plan.Remove(cmd.Context(), shared.ID(args[0]))
		return err
	},
}

var planTemplatesCmd = &cobra.Command{
	Use:   "templates",
	Short: "List ready-made weekly plans",
	RunE: func(cmd *cobra.Command, args []string) error {
		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		for _, t := range application.Templates.List(cmd.Context()) {
			fmt.Fprintf(tw, "%s\t%s\t%s\n", t.ID, t.Name, t.Description)
		}
		return tw.Flush()
	},
}

var planApplyCmd = &cobra.Command{
	Use:   "apply [template id]",
	Short: "Fill the week from a template",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		for _, t := range application.Templates.List(cmd.Context()) {
			if t.ID != args[0] {
				continue
			}
			n, err := application.Plan.ApplyTemplate(cmd.Context(), application.Templates, t, application.Plan.Week())
			if err != nil {
				return err
			}
			if n > 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "Planned %d meals from %s\n", n, t.Name)
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "Applied %s\n", t.Name)
			}
			return nil
		}
		return shared.Validation("template %q not found", args[0])
	},
}

func init() {
	planCmd.PersistentFlags().StringVar(&planWeek, "week", "", "week to work on (remembered for next time)")
	planAddCmd.Flags().IntVar(&planServings, "servings", 0, "servings (default 1)")
	planAddCmd.Flags().StringVar(&planRecipeID, "recipe-id", "", "id of the recipe the meal uses")

	planCmd.AddCommand(planListCmd, planAddCmd, planRemoveCmd, planTemplatesCmd, planApplyCmd)
}
