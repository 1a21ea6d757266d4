package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"mealsync/internal/recipe"
	"mealsync/internal/shared"
)

var (
	recipeTime         string
	recipeServings     int
	recipeIngredients  []string
	recipeInstructions []string
	importSave         bool
)

var recipesCmd = &cobra.Command{
	Use:   "recipes",
	Short: "Manage your own and saved recipes",
}

var recipesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List your recipes, then the saved ones",
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		fmt.Fprintln(out, "Created:")
		printRecipes(out, application.Recipes.Created().Items())
		fmt.Fprintln(out, "Saved:")
		printRecipes(out, application.Recipes.Saved().Items())
		return nil
	},
}

var recipesCreateCmd = &cobra.Command{
	Use:   "create [name]",
	Short: "Write a recipe of your own",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		_, err := application.Recipes.Create(cmd.Context(), recipe.Recipe{
			Name:         args[0],
			Time:         recipeTime,
			Servings:     recipeServings,
			Ingredients:  recipeIngredients,
			Instructions: recipeInstructions,
		})
		return err
	},
}

var recipesDeleteCmd = &cobra.Command{
	Use:   "delete [id]",
	Short: "Delete one of your recipes",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		_, err := application.Recipes.DeleteCreated(cmd.Context(), shared.ID(args[0]))
		return err
	},
}

var recipesSaveCmd = &cobra.Command{
	Use:   "save [id] [name]",
	Short: "Save a catalog recipe",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		_, err := application.Recipes.Save(cmd.Context(), recipe.Recipe{ID: shared.ID(args[0]), Name: args[1]})
		return err
	},
}

var recipesUnsaveCmd = &cobra.Command{
	Use:   "unsave [id]",
	Short: "Forget a saved recipe",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		_, err := application.Recipes.Unsave(cmd.Context(), shared.ID(args[0]))
		return err
	},
}

var recipesImportCmd = &cobra.Command{
	Use:   "import [url]",
	Short: "Import a recipe from a web page",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		r, err := application.Importer.FromURL(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Found %q: %d ingredients, %d steps\n", r.Name, len(r.Ingredients), len(r.Instructions))
		if !importSave {
			return nil
		}
		_, err = application.Recipes.Create(cmd.Context(), r)
		return err
	},
}

func printRecipes(w io.Writer, recipes []recipe.Recipe) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, r := range recipes {
		fmt.Fprintf(tw, "  %s\t%s\t%s\t%d ingredients\n", r.ID, r.Name, r.Time, len(r.Ingredients))
	}
	tw.Flush()
}

func init() {
	recipesCreateCmd.Flags().StringVar(&recipeTime, "time", "", "preparation time, e.g. \"30 min\"")
	recipesCreateCmd.Flags().IntVar(&recipeServings, "servings", 0, "number of servings")
	recipesCreateCmd.Flags().StringArrayVar(&recipeIngredients, "ingredient", nil, "an ingredient line (repeatable)")
	recipesCreateCmd.Flags().StringArrayVar(&recipeInstructions, "step", nil, "an instruction (repeatable)")
	recipesImportCmd.Flags().BoolVar(&importSave, "save", true, "add the imported recipe to your recipes")

	recipesCmd.AddCommand(recipesListCmd, recipesCreateCmd, recipesDeleteCmd, recipesSaveCmd, recipesUnsaveCmd, recipesImportCmd)
}
