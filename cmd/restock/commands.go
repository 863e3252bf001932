package main

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/andresuchdata/restock/internal/domain"
	"github.com/andresuchdata/restock/internal/drive"
	"github.com/andresuchdata/restock/internal/service"
	"github.com/urfave/cli/v2"
)

func commands() []*cli.Command {
	return []*cli.Command{
		{
			Name:      "forecast",
			Usage:     "Forecast runout and reorder quantity for one product",
			ArgsUsage: "<product-id>",
			Flags:     []cli.Flag{newDBURLFlag(), newOwnerFlag(), jsonFlag()},
			Before:    initApp,
			After:     closeApp,
			Action:    runForecast,
		},
		{
			Name:  "recommend",
			Usage: "Rank the catalog by replenishment urgency",
			Flags: []cli.Flag{
				newDBURLFlag(),
				newOwnerFlag(),
				jsonFlag(),
				&cli.StringFlag{Name: "horizon", Value: "month", Usage: "week or month"},
				&cli.StringFlag{Name: "min-urgency", Usage: "critical, high, medium or low"},
				&cli.IntFlag{Name: "limit", Usage: "Maximum number of products (0 uses FORECAST_DEFAULT_LIMIT)"},
				&cli.BoolFlag{Name: "low-stock-only", Usage: "Only products at or below their low stock threshold"},
				&cli.StringFlag{Name: "export", Usage: "Upload the result to object storage as csv or xlsx"},
			},
			Before: initApp,
			After:  closeApp,
			Action: runRecommend,
		},
		{
			Name:  "rule",
			Usage: "Inspect or change reorder rules",
			Subcommands: []*cli.Command{
				{
					Name:      "get",
					ArgsUsage: "<product-id>",
					Flags:     []cli.Flag{newDBURLFlag(), newOwnerFlag()},
					Before:    initApp,
					After:     closeApp,
					Action:    runRuleGet,
				},
				{
					Name:      "set",
					ArgsUsage: "<product-id>",
					Flags: []cli.Flag{
						newDBURLFlag(),
						newOwnerFlag(),
						&cli.IntFlag{Name: "reorder-point", Usage: "Stock level that triggers a reorder (required)"},
						&cli.IntFlag{Name: "reorder-quantity", Usage: "Units per purchase order (required)"},
						&cli.IntFlag{Name: "lead-time-days", Usage: "Supplier lead time"},
						&cli.IntFlag{Name: "safety-stock", Usage: "Buffer units kept on hand"},
						&cli.BoolFlag{Name: "auto-reorder"},
						&cli.StringFlag{Name: "supplier", Usage: "Preferred supplier id"},
					},
					Before: initApp,
					After:  closeApp,
					Action: runRuleSet,
				},
			},
		},
		{
			Name:      "import-sales",
			Usage:     "Import daily sales sheets (date, product_id, quantity) from files or a Drive folder",
			ArgsUsage: "[file.csv|file.xlsx ...]",
			Flags: []cli.Flag{
				newDBURLFlag(),
				newOwnerFlag(),
				&cli.StringFlag{Name: "drive-folder", Usage: "Google Drive folder id", EnvVars: []string{"SALES_DRIVE_FOLDER_ID"}},
				&cli.StringFlag{Name: "drive-folder-path", Usage: "Google Drive folder path from the drive root, e.g. sales/2025", EnvVars: []string{"SALES_DRIVE_FOLDER_PATH"}},
				&cli.StringFlag{Name: "download-dir", Value: "./data/uploads/sales", EnvVars: []string{"SALES_DOWNLOAD_DIR"}},
			},
			Before: initApp,
			After:  closeApp,
			Action: runImportSales,
		},
		{
			Name:   "seed-products",
			Usage:  "Load or refresh the product catalog from a CSV file",
			Flags:  []cli.Flag{newDBURLFlag(), newOwnerFlag(), &cli.StringFlag{Name: "file", Required: true}},
			Before: initApp,
			After:  closeApp,
			Action: runSeedProducts,
		},
		{
			Name:   "migrate",
			Usage:  "Create or update the database schema",
			Flags:  []cli.Flag{newDBURLFlag()},
			Before: initApp,
			After:  closeApp,
			Action: runMigrate,
		},
	}
}

func jsonFlag() *cli.BoolFlag {
	return &cli.BoolFlag{Name: "json", Usage: "Print JSON instead of a table"}
}

func requireArg(c *cli.Context, name string) (string, error) {
	if c.NArg() < 1 || c.Args().First() == "" {
		return "", cli.Exit(fmt.Sprintf("missing %s argument", name), 2)
	}
	return c.Args().First(), nil
}

func runForecast(c *cli.Context) error {
	application, err := appFrom(c)
	if err != nil {
		return err
	}
	productID, err := requireArg(c, "product-id")
	if err != nil {
		return err
	}

	sf, err := application.Replenishment.GetForecast(c.Context, c.String("owner"), productID)
	if err != nil {
		return err
	}

	if c.Bool("json") {
		return printJSON(sf)
	}
	printForecasts([]domain.StockForecast{*sf})
	return nil
}

func runRecommend(c *cli.Context) error {
	application, err := appFrom(c)
	if err != nil {
		return err
	}

	horizon, ok := domain.ParseHorizon(c.String("horizon"))
	if !ok {
		return cli.Exit("horizon must be week or month", 2)
	}
	opts := domain.RecommendationOptions{
		Horizon:      horizon,
		Limit:        c.Int("limit"),
		LowStockOnly: c.Bool("low-stock-only"),
	}
	if raw := c.String("min-urgency"); raw != "" {
		urgency, ok := domain.ParseUrgency(raw)
		if !ok {
			return cli.Exit("min-urgency must be one of critical, high, medium, low", 2)
		}
		opts.MinUrgency = urgency
	}

	if c.IsSet("export") {
		format, ok := service.ParseExportFormat(c.String("export"))
		if !ok {
			return cli.Exit("export must be csv or xlsx", 2)
		}
		result, err := application.Replenishment.ExportRecommendations(c.Context, c.String("owner"), opts, format)
		if err != nil {
			return err
		}
		return printJSON(result)
	}

	recs, err := application.Replenishment.GetRecommendations(c.Context, c.String("owner"), opts)
	if err != nil {
		return err
	}

	if c.Bool("json") {
		return printJSON(recs)
	}
	printForecasts(recs.Forecasts)
	fmt.Printf("\n%d evaluated, %d skipped, generated %s\n", recs.Evaluated, recs.Skipped, recs.GeneratedAt.Format(time.RFC3339))
	return nil
}

func runRuleGet(c *cli.Context) error {
	application, err := appFrom(c)
	if err != nil {
		return err
	}
	productID, err := requireArg(c, "product-id")
	if err != nil {
		return err
	}

	rule, err := application.Replenishment.GetReorderRule(c.Context, c.String("owner"), productID)
	if err != nil {
		return err
	}
	return printJSON(rule)
}

func runRuleSet(c *cli.Context) error {
	application, err := appFrom(c)
	if err != nil {
		return err
	}
	productID, err := requireArg(c, "product-id")
	if err != nil {
		return err
	}

	rule, err := application.Replenishment.SetReorderRule(c.Context, c.String("owner"), productID, ruleInputFromFlags(c))
	if err != nil {
		return err
	}
	return printJSON(rule)
}

// ruleInputFromFlags only sets the fields passed on the command line.
func ruleInputFromFlags(c *cli.Context) domain.ReorderRuleInput {
	var input domain.ReorderRuleInput
	intFlag := func(name string) *int {
		if !c.IsSet(name) {
			return nil
		}
		v := c.Int(name)
		return &v
	}

	input.ReorderPoint = intFlag("reorder-point")
	input.ReorderQuantity = intFlag("reorder-quantity")
	input.LeadTimeDays = intFlag("lead-time-days")
	input.SafetyStock = intFlag("safety-stock")
	if c.IsSet("auto-reorder") {
		v := c.Bool("auto-reorder")
		input.AutoReorder = &v
	}
	if c.IsSet("supplier") {
		v := c.String("supplier")
		input.PreferredSupplierID = &v
	}
	return input
}

func runImportSales(c *cli.Context) error {
	application, err := appFrom(c)
	if err != nil {
		return err
	}

	owner := c.String("owner")
	if c.NArg() > 0 {
		report, err := application.Importer.ImportFiles(c.Context, owner, c.Args().Slice()...)
		if err != nil {
			return err
		}
		return printJSON(report)
	}

	opts := drive.DownloadOptions{
		FolderID:    c.String("drive-folder"),
		FolderPath:  c.String("drive-folder-path"),
		DownloadDir: c.String("download-dir"),
	}
	if opts.FolderID == "" && opts.FolderPath == "" {
		return cli.Exit("pass sales files, --drive-folder or --drive-folder-path", 2)
	}
	report, err := application.Importer.ImportFolder(c.Context, owner, opts)
	if err != nil {
		return err
	}
	return printJSON(report)
}

func runMigrate(c *cli.Context) error {
	application, err := appFrom(c)
	if err != nil {
		return err
	}
	applied, err := application.DB.Migrate(c.Context)
	if err != nil {
		return err
	}
	fmt.Printf("applied %d migration file(s)\n", len(applied))
	return nil
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printForecasts(forecasts []domain.StockForecast) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "PRODUCT\tSTOCK\tDAILY\tDAYS\tRUNOUT\tURGENCY\tREORDER\tQTY\tTREND\tCONFIDENCE")
	for _, sf := range forecasts {
		fmt.Fprintf(w, "%s\t%.0f\t%.2f\t%d\t%s\t%s\t%t\t%d\t%s\t%.2f\n",
			displayName(sf), sf.CurrentStock, sf.DailyAverageSales, sf.DaysUntilRunout,
			sf.PredictedRunoutDate.Format("2006-01-02"), sf.Urgency, sf.ShouldReorder,
			sf.SuggestedReorderQuantity, sf.Trend, sf.Confidence)
	}
	w.Flush()
}

func displayName(sf domain.StockForecast) string {
	if sf.ProductName == "" {
		return sf.ProductID
	}
	return sf.ProductName + " (" + sf.ProductID + ")"
}
