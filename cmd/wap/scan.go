package main

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	wap "github.com/blackarrowsec/wap"
	"github.com/blackarrowsec/wap/pkg/catalog"
	"github.com/blackarrowsec/wap/pkg/fetch"
	"github.com/blackarrowsec/wap/pkg/store"
)

var (
	scanRulesetPath    string
	scanTechsInclude   string
	scanTechsExclude   string
	scanCategories     []int
	scanOutputFormat   string
	scanOutputPath     string
	scanConcurrency    int
	scanTimeout        time.Duration
	scanUserAgent      string
	scanNoPrefilter    bool
	scanNoColor        bool
	scanIncludeVersion bool
)

var scanCmd = &cobra.Command{
	Use:   "scan <url> [url...]",
	Short: "Fingerprint the technologies used by one or more URLs",
	Long: `Fetch each URL and match the technology ruleset against the response:
headers, cookies, HTML content, script URLs, meta tags and the final URL
after redirects.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runScan,
}

func init() {
	scanCmd.Flags().StringVar(&scanRulesetPath, "ruleset", "", "Path to custom technologies ruleset (JSON or YAML)")
	scanCmd.Flags().StringVar(&scanTechsInclude, "techs-include", "", "Only match technologies whose name matches regex (comma-separated)")
	scanCmd.Flags().StringVar(&scanTechsExclude, "techs-exclude", "", "Skip technologies whose name matches regex (comma-separated)")
	scanCmd.Flags().IntSliceVar(&scanCategories, "categories", nil, "Only match technologies in the given category ids")
	scanCmd.Flags().StringVar(&scanOutputFormat, "format", "human", "Output format: json, human")
	scanCmd.Flags().StringVar(&scanOutputPath, "output", "", "Persist results to a SQLite database at this path")
	scanCmd.Flags().IntVar(&scanConcurrency, "concurrency", 5, "Number of URLs fetched in parallel")
	scanCmd.Flags().DurationVar(&scanTimeout, "timeout", 15*time.Second, "Per-request timeout")
	scanCmd.Flags().StringVar(&scanUserAgent, "user-agent", "", "Override the User-Agent header")
	scanCmd.Flags().BoolVar(&scanNoPrefilter, "no-prefilter", false, "Disable the HTML literal prefilter")
	scanCmd.Flags().BoolVar(&scanNoColor, "no-color", false, "Disable colored output")
	scanCmd.Flags().BoolVar(&scanIncludeVersion, "versions", true, "Include detected versions in output")
}

// urlReport pairs one scanned URL with its outcome. Err is set when the fetch
// failed; Matches is set otherwise.
type urlReport struct {
	URL          string          `json:"url"`
	StatusCode   int             `json:"status_code,omitempty"`
	Technologies []wap.TechMatch `json:"technologies,omitempty"`
	Error        string          `json:"error,omitempty"`
}

func runScan(cmd *cobra.Command, args []string) error {
	scanner, err := buildScanner()
	if err != nil {
		return err
	}

	var st store.Store
	if scanOutputPath != "" {
		st, err = store.New(store.Config{Path: scanOutputPath})
		if err != nil {
			return fmt.Errorf("opening store: %w", err)
		}
		defer st.Close()
	}

	fetchOpts := []fetch.Option{fetch.WithTimeout(scanTimeout)}
	if scanUserAgent != "" {
		fetchOpts = append(fetchOpts, fetch.WithUserAgent(scanUserAgent))
	}
	client := fetch.New(fetchOpts...)

	reports := make([]urlReport, len(args))
	var mu sync.Mutex

	g, ctx := errgroup.WithContext(cmd.Context())
	g.SetLimit(scanConcurrency)

	for i, url := range args {
		i, url := i, url
		g.Go(func() error {
			report := scanURL(ctx, client, scanner, url)

			mu.Lock()
			defer mu.Unlock()
			reports[i] = report

			if st != nil && report.Error == "" {
				if err := persistReport(st, report); err != nil {
					return fmt.Errorf("persisting %s: %w", url, err)
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	switch scanOutputFormat {
	case "json":
		return outputJSON(cmd, reports)
	case "human":
		return outputHuman(cmd, reports)
	default:
		return fmt.Errorf("unknown output format: %s", scanOutputFormat)
	}
}

// =============================================================================
// HELPERS
// =============================================================================

func buildScanner() (*wap.Scanner, error) {
	c, err := loadCatalog(scanRulesetPath, scanTechsInclude, scanTechsExclude, scanCategories)
	if err != nil {
		return nil, err
	}

	opts := []wap.Option{
		wap.WithCatalog(c),
		wap.WithLogger(logrus.StandardLogger()),
	}
	if scanNoPrefilter {
		opts = append(opts, wap.WithoutPrefilter())
	}
	return wap.NewScanner(opts...)
}

func loadCatalog(path, include, exclude string, categories []int) (*catalog.Catalog, error) {
	loader := catalog.NewLoaderWithLogger(logrus.StandardLogger())

	var c *catalog.Catalog
	var err error
	if path != "" {
		c, err = loader.LoadFile(path)
	} else {
		c, err = loader.LoadBuiltin()
	}
	if err != nil {
		return nil, fmt.Errorf("loading ruleset: %w", err)
	}

	if include != "" || exclude != "" || len(categories) > 0 {
		c, err = catalog.Filter(c, catalog.FilterConfig{
			Include:    catalog.ParsePatterns(include),
			Exclude:    catalog.ParsePatterns(exclude),
			Categories: categories,
		})
		if err != nil {
			return nil, fmt.Errorf("filtering ruleset: %w", err)
		}
	}
	return c, nil
}

func scanURL(ctx context.Context, client *fetch.Client, scanner *wap.Scanner, url string) urlReport {
	resp, err := client.Get(ctx, url)
	if err != nil {
		return urlReport{URL: url, Error: err.Error()}
	}

	return urlReport{
		URL:          resp.URL,
		StatusCode:   resp.StatusCode,
		Technologies: scanner.Fingerprint(resp),
	}
}

func persistReport(st store.Store, report urlReport) error {
	scanID, err := st.AddScan(report.URL, report.StatusCode)
	if err != nil {
		return err
	}
	for _, m := range report.Technologies {
		if err := st.AddDetection(scanID, m); err != nil {
			return err
		}
	}
	return nil
}

func outputJSON(cmd *cobra.Command, reports []urlReport) error {
	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")
	return encoder.Encode(reports)
}

func outputHuman(cmd *cobra.Command, reports []urlReport) error {
	if scanNoColor {
		color.NoColor = true
	}

	out := cmd.OutOrStdout()
	urlColor := color.New(color.FgCyan, color.Bold)
	nameColor := color.New(color.FgGreen)
	versionColor := color.New(color.FgYellow)
	errColor := color.New(color.FgRed)
	dimColor := color.New(color.Faint)

	for i, report := range reports {
		if i > 0 {
			fmt.Fprintln(out)
		}

		urlColor.Fprint(out, report.URL)
		if report.StatusCode != 0 {
			dimColor.Fprintf(out, " [%d]", report.StatusCode)
		}
		fmt.Fprintln(out)

		if report.Error != "" {
			errColor.Fprintf(out, "  error: %s\n", report.Error)
			continue
		}
		if len(report.Technologies) == 0 {
			dimColor.Fprintln(out, "  no technologies detected")
			continue
		}

		for _, m := range report.Technologies {
			fmt.Fprint(out, "  ")
			nameColor.Fprint(out, m.Name)
			if scanIncludeVersion && m.Version != "" {
				fmt.Fprint(out, " ")
				versionColor.Fprint(out, m.Version)
			}
			if len(m.Categories) > 0 {
				names := make([]string, 0, len(m.Categories))
				for _, cat := range m.Categories {
					names = append(names, cat.Name)
				}
				sort.Strings(names)
				dimColor.Fprintf(out, " (%s)", strings.Join(names, ", "))
			}
			dimColor.Fprintf(out, " %d%%", m.Confidence)
			if m.Implied {
				dimColor.Fprint(out, " implied")
			}
			fmt.Fprintln(out)
		}
	}

	if scanOutputPath != "" {
		fmt.Fprintf(out, "\nResults stored in: %s\n", scanOutputPath)
	}
	return nil
}
