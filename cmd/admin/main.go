package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"finlink/internal/app"
	"finlink/internal/domain/openfinance"
	"finlink/internal/domain/reconcile"
	httphandlers "finlink/internal/interfaces/http"
	"finlink/internal/shared/auth"
	"finlink/internal/shared/config"
)

const usage = `Finlink Admin CLI - Management commands for the reconciliation engine

Usage:
  admin <command> [options]

Commands:
  list          List stored connections and their link state
  refresh       Refresh balances for one connection
  refresh-all   Refresh balances for every connection
  remove        Remove a connection and detach its records
  autofill      Print the weekly auto-fill figures (optionally export them)
  hash-token    Generate or hash an API bearer token for API_TOKEN_HASH

Examples:
  # Refresh every connection, four at a time
  admin refresh-all --timeout=10m

  # Refresh a single connection
  admin refresh --id=item_123

  # Append this week's figures to the configured sheet
  admin autofill --export

  # Create a new API token and its hash
  admin hash-token
`

func main() {
	if len(os.Args) < 2 {
		fmt.Print(usage)
		os.Exit(1)
	}

	command := os.Args[1]

	switch command {
	case "list":
		runList(os.Args[2:])
	case "refresh":
		runRefresh(os.Args[2:])
	case "refresh-all":
		runRefreshAll(os.Args[2:])
	case "remove":
		runRemove(os.Args[2:])
	case "autofill":
		runAutoFill(os.Args[2:])
	case "hash-token":
		runHashToken(os.Args[2:])
	case "help", "-h", "--help":
		fmt.Print(usage)
	default:
		fmt.Printf("Unknown command: %s\n\n", command)
		fmt.Print(usage)
		os.Exit(1)
	}
}

// setup loads configuration and services and returns a context bounded by
// the --timeout flag value.
func setup(timeoutStr string) (*app.Services, context.Context, context.CancelFunc) {
	timeout, err := time.ParseDuration(timeoutStr)
	if err != nil {
		log.Fatalf("Invalid timeout format: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	services, err := app.New(ctx, cfg)
	if err != nil {
		cancel()
		log.Fatalf("Failed to initialize services: %v", err)
	}
	return services, ctx, cancel
}

func runList(args []string) {
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	timeoutStr := fs.String("timeout", "1m", "Timeout for the operation (e.g., 30s, 5m)")
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	services, ctx, cancel := setup(*timeoutStr)
	defer cancel()
	defer services.Close()

	conns, err := services.Connections.List(ctx)
	if err != nil {
		log.Fatalf("Failed to list connections: %v", err)
	}
	if len(conns) == 0 {
		fmt.Println("No connections")
		return
	}

	for _, c := range conns {
		lastSync := "never"
		if c.LastSync != nil {
			lastSync = c.LastSync.Format(time.RFC3339)
		}
		fmt.Printf("\n=== %s (%s) ===\n", c.InstitutionName, c.ID)
		fmt.Printf("  Last sync:        %s\n", lastSync)
		fmt.Printf("  Requires relink:  %t\n", c.RequiresRelink)
		for _, a := range c.Accounts {
			link := "unlinked"
			switch {
			case a.LinkedCardID != "":
				link = "card " + a.LinkedCardID
			case a.LinkedBankAccountID != "":
				link = "bank account " + a.LinkedBankAccountID
			}
			fmt.Printf("  - %-32s %-10s %s\n", a.DisplayName(), a.Kind, link)
		}
	}
}

func runRefresh(args []string) {
	fs := flag.NewFlagSet("refresh", flag.ExitOnError)
	id := fs.String("id", "", "Connection ID to refresh")
	timeoutStr := fs.String("timeout", "2m", "Timeout for the operation (e.g., 30s, 5m)")
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	if *id == "" {
		fmt.Println("Error: must specify --id")
		fs.Usage()
		os.Exit(1)
	}

	services, ctx, cancel := setup(*timeoutStr)
	defer cancel()
	defer services.Close()

	outcome, err := services.Refresh.RefreshConnection(ctx, *id)
	printOutcome(*outcome)
	if err != nil {
		os.Exit(1)
	}
}

func runRefreshAll(args []string) {
	fs := flag.NewFlagSet("refresh-all", flag.ExitOnError)
	timeoutStr := fs.String("timeout", "10m", "Timeout for the operation (e.g., 5m, 1h)")
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	services, ctx, cancel := setup(*timeoutStr)
	defer cancel()
	defer services.Close()

	startTime := time.Now()
	outcomes, err := services.Refresh.RefreshAll(ctx)
	if err != nil {
		log.Fatalf("Refresh failed: %v", err)
	}

	failed := 0
	for _, o := range outcomes {
		printOutcome(o)
		if !o.OK() {
			failed++
		}
	}
	log.Printf("Refreshed %d connection(s) in %v, %d failed", len(outcomes), time.Since(startTime), failed)
	if failed > 0 {
		os.Exit(1)
	}
}

func printOutcome(o openfinance.RefreshOutcome) {
	fmt.Printf("\n=== Connection %s ===\n", o.ConnectionID)
	if o.Institution != "" {
		fmt.Printf("  Institution:        %s\n", o.Institution)
	}
	fmt.Printf("  Balances attached:  %d\n", o.Attached)
	fmt.Printf("  Records updated:    %d\n", o.Updated)
	fmt.Printf("  Relinked:           %d\n", o.Relinked)
	fmt.Printf("  Skipped:            %d\n", o.Skipped)
	for _, line := range o.Summary {
		fmt.Printf("    - %-32s %-6s %10.2f (was %s)\n", line.Name, line.Type, line.Balance, formatAmount(line.PreviousBalance))
	}
	if o.RequiresRelink {
		fmt.Println("  Requires relink:    true")
	}
	if o.Error != "" {
		fmt.Printf("  Error:              %s\n", o.Error)
	}
}

func runRemove(args []string) {
	fs := flag.NewFlagSet("remove", flag.ExitOnError)
	id := fs.String("id", "", "Connection ID to remove")
	timeoutStr := fs.String("timeout", "1m", "Timeout for the operation (e.g., 30s, 5m)")
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	if *id == "" {
		fmt.Println("Error: must specify --id")
		fs.Usage()
		os.Exit(1)
	}

	services, ctx, cancel := setup(*timeoutStr)
	defer cancel()
	defer services.Close()

	outcome, err := services.Link.RemoveConnection(ctx, *id)
	if err != nil {
		log.Fatalf("Failed to remove connection %s: %v", *id, err)
	}
	fmt.Printf("Removed %s (revoked=%t)\n", outcome.ConnectionID, outcome.Revoked)
	if outcome.RevokeError != "" {
		fmt.Printf("  Revoke error: %s\n", outcome.RevokeError)
	}
}

func runAutoFill(args []string) {
	fs := flag.NewFlagSet("autofill", flag.ExitOnError)
	export := fs.Bool("export", false, "Append the figures to the configured sheet")
	weekStr := fs.String("week", "", "Week start date for export (YYYY-MM-DD, default: this week's Monday)")
	timeoutStr := fs.String("timeout", "1m", "Timeout for the operation (e.g., 30s, 5m)")
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	weekOf := httphandlers.WeekStart(time.Now())
	if *weekStr != "" {
		parsed, err := time.Parse("2006-01-02", *weekStr)
		if err != nil {
			log.Fatalf("Invalid week format: %v", err)
		}
		weekOf = parsed
	}

	services, ctx, cancel := setup(*timeoutStr)
	defer cancel()
	defer services.Close()

	var (
		suggestion *reconcile.AutoFillSuggestion
		err        error
	)
	if *export {
		suggestion, err = services.AutoFill.Export(ctx, weekOf)
	} else {
		suggestion, err = services.AutoFill.Suggest(ctx)
	}
	if err != nil {
		log.Fatalf("Auto-fill failed: %v", err)
	}

	fmt.Printf("\n=== Auto-fill (week of %s) ===\n", weekOf.Format("2006-01-02"))
	fmt.Printf("  Checking:  %s\n", formatAmount(suggestion.Checking))
	fmt.Printf("  Vault:     %s\n", formatAmount(suggestion.Vault))
	fmt.Printf("  Debts:     %d\n", len(suggestion.Debts))
	for _, d := range suggestion.Debts {
		fmt.Printf("    - %-32s %10.2f\n", d.Name, d.Balance)
	}
	if suggestion.LastSync != nil {
		fmt.Printf("  Last sync: %s\n", suggestion.LastSync.Format(time.RFC3339))
	}
}

func formatAmount(v *float64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%.2f", *v)
}

func runHashToken(args []string) {
	fs := flag.NewFlagSet("hash-token", flag.ExitOnError)
	token := fs.String("token", "", "Existing token to hash (default: generate a new one)")
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	if *token == "" {
		generated, err := auth.GenerateToken()
		if err != nil {
			log.Fatalf("Failed to generate token: %v", err)
		}
		*token = generated
		fmt.Printf("Token:          %s\n", generated)
	}

	hash, err := auth.HashToken(*token)
	if err != nil {
		log.Fatalf("Failed to hash token: %v", err)
	}
	fmt.Printf("API_TOKEN_HASH: %s\n", hash)
}
