package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/blackarrowsec/wap/pkg/catalog"
)

var (
	techsRulesetPath string
	techsInclude     string
	techsExclude     string
	techsCategories  []int
	techsFormat      string
)

var techsCmd = &cobra.Command{
	Use:   "techs",
	Short: "Manage the technology ruleset",
	Long:  "Commands for listing and inspecting the technology signatures",
}

var techsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List known technologies",
	Long:  "Display the technologies in the ruleset with their categories",
	RunE:  runTechsList,
}

var techsCategoriesCmd = &cobra.Command{
	Use:   "categories",
	Short: "List technology categories",
	RunE:  runTechsCategories,
}

func init() {
	techsCmd.AddCommand(techsListCmd)
	techsCmd.AddCommand(techsCategoriesCmd)

	techsCmd.PersistentFlags().StringVar(&techsRulesetPath, "ruleset", "", "Path to custom technologies ruleset (JSON or YAML)")
	techsCmd.PersistentFlags().StringVar(&techsFormat, "format", "table", "Output format: table, json")
	techsListCmd.Flags().StringVar(&techsInclude, "include", "", "Only list technologies whose name matches regex (comma-separated)")
	techsListCmd.Flags().StringVar(&techsExclude, "exclude", "", "Skip technologies whose name matches regex (comma-separated)")
	techsListCmd.Flags().IntSliceVar(&techsCategories, "categories", nil, "Only list technologies in the given category ids")
}

func runTechsList(cmd *cobra.Command, args []string) error {
	c, err := loadCatalog(techsRulesetPath, techsInclude, techsExclude, techsCategories)
	if err != nil {
		return err
	}

	switch techsFormat {
	case "json":
		return outputTechsJSON(cmd, c)
	case "table":
		return outputTechsTable(cmd, c)
	default:
		return fmt.Errorf("unknown output format: %s", techsFormat)
	}
}

func runTechsCategories(cmd *cobra.Command, args []string) error {
	c, err := loadCatalog(techsRulesetPath, "", "", nil)
	if err != nil {
		return err
	}

	switch techsFormat {
	case "json":
		encoder := json.NewEncoder(cmd.OutOrStdout())
		encoder.SetIndent("", "  ")
		return encoder.Encode(c.Categories())
	case "table":
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		defer w.Flush()

		fmt.Fprintf(w, "ID\tName\tPriority\n")
		fmt.Fprintf(w, "--\t----\t--------\n")
		for _, cat := range c.Categories() {
			fmt.Fprintf(w, "%d\t%s\t%d\n", cat.ID, cat.Name, cat.Priority)
		}
		return nil
	default:
		return fmt.Errorf("unknown output format: %s", techsFormat)
	}
}

// =============================================================================
// HELPERS
// =============================================================================

// techSummary is the JSON listing shape; pattern internals stay private to
// the catalog, so only counts are reported.
type techSummary struct {
	Name       string   `json:"name"`
	Categories []string `json:"categories,omitempty"`
	Website    string   `json:"website,omitempty"`
	CPE        string   `json:"cpe,omitempty"`
	Patterns   int      `json:"patterns"`
	Implies    []string `json:"implies,omitempty"`
	Excludes   []string `json:"excludes,omitempty"`
}

func summarize(tech *catalog.Technology) techSummary {
	cats := make([]string, 0, len(tech.Categories))
	for _, cat := range tech.Categories {
		cats = append(cats, cat.Name)
	}

	implies := make([]string, 0, len(tech.Implies))
	for _, imp := range tech.Implies {
		implies = append(implies, imp.Name)
	}

	return techSummary{
		Name:       tech.Name,
		Categories: cats,
		Website:    tech.Website,
		CPE:        tech.CPE,
		Patterns:   patternCount(tech),
		Implies:    implies,
		Excludes:   tech.Excludes,
	}
}

func patternCount(tech *catalog.Technology) int {
	return len(tech.Headers) + len(tech.Cookies) + len(tech.Meta) +
		len(tech.HTML) + len(tech.Script) + len(tech.URL)
}

func outputTechsJSON(cmd *cobra.Command, c *catalog.Catalog) error {
	summaries := make([]techSummary, 0, c.Len())
	for _, tech := range c.Technologies() {
		summaries = append(summaries, summarize(tech))
	}

	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")
	return encoder.Encode(summaries)
}

func outputTechsTable(cmd *cobra.Command, c *catalog.Catalog) error {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	defer w.Flush()

	fmt.Fprintf(w, "Name\tCategories\tPatterns\n")
	fmt.Fprintf(w, "----\t----------\t--------\n")

	for _, tech := range c.Technologies() {
		cats := make([]string, 0, len(tech.Categories))
		for _, cat := range tech.Categories {
			cats = append(cats, cat.Name)
		}
		fmt.Fprintf(w, "%s\t%s\t%d\n", tech.Name, strings.Join(cats, ", "), patternCount(tech))
	}

	return nil
}
