// ABOUTME: Admin CLI for dxchart operating directly on the SQLite store
// ABOUTME: Handles account approval, listing, and backup export/restore

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/joho/godotenv"

	"github.com/sjoekim64/dxchart/internal/config"
	"github.com/sjoekim64/dxchart/internal/store"
)

func main() {
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var err error
	switch os.Args[1] {
	case "accounts":
		err = runAccounts(ctx)
	case "pending":
		err = runPending(ctx)
	case "approve":
		err = runApprove(ctx, os.Args[2:])
	case "reject":
		err = runReject(ctx, os.Args[2:])
	case "delete":
		err = runDelete(ctx, os.Args[2:])
	case "export":
		err = runExport(ctx, os.Args[2:])
	case "restore":
		err = runRestore(ctx, os.Args[2:])
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		usage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Println("Usage: dxchart-admin <command>")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  accounts                    List all accounts")
	fmt.Println("  pending                     List accounts awaiting approval")
	fmt.Println("  approve <account-id>        Approve a pending account")
	fmt.Println("  reject <account-id>         Reject and remove a pending account")
	fmt.Println("  delete <account-id>         Delete an account")
	fmt.Println("  export <account-id> <file>  Export an account's data to a JSON file")
	fmt.Println("  restore <account-id> <file> Restore an account's data from a JSON file")
}

// openStore loads config the same way the server does and opens the database.
func openStore() (*store.SQLiteStore, error) {
	configPath := os.Getenv("DXCHART_CONFIG")
	if configPath == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("finding home directory: %w", err)
		}
		configDir := os.Getenv("XDG_CONFIG_HOME")
		if configDir == "" {
			configDir = homeDir + "/.config"
		}
		configPath = configDir + "/dxchart/server.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	return store.NewSQLiteStore(cfg.Database.Path)
}

func runAccounts(ctx context.Context) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	accts, err := st.ListAccounts(ctx)
	if err != nil {
		return fmt.Errorf("listing accounts: %w", err)
	}

	printAccounts(accts)
	return nil
}

func runPending(ctx context.Context) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	accts, err := st.ListPendingAccounts(ctx)
	if err != nil {
		return fmt.Errorf("listing pending accounts: %w", err)
	}

	if len(accts) == 0 {
		fmt.Println("No pending accounts.")
		return nil
	}

	printAccounts(accts)
	return nil
}

func printAccounts(accts []*store.Account) {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tUSERNAME\tCLINIC\tSTATUS\tROLE\tCREATED")

	for _, a := range accts {
		status := "pending"
		if a.IsApproved {
			status = color.GreenString("approved")
		} else {
			status = color.YellowString(status)
		}
		role := "therapist"
		if a.IsAdmin {
			role = color.CyanString("admin")
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			a.ID, a.Username, a.ClinicName, status, role,
			a.CreatedAt.Format("2006-01-02"))
	}
	w.Flush()
}

func runApprove(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: dxchart-admin approve <account-id>")
	}

	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	if err := st.ApproveAccount(ctx, args[0], "cli"); err != nil {
		return fmt.Errorf("approving account: %w", err)
	}

	color.Green("Approved %s", args[0])
	return nil
}

func runReject(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: dxchart-admin reject <account-id>")
	}

	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	acct, err := st.GetAccount(ctx, args[0])
	if err != nil {
		return fmt.Errorf("loading account: %w", err)
	}
	if acct.IsApproved {
		return fmt.Errorf("account %s is already approved; use delete instead", acct.Username)
	}

	if err := st.DeleteAccount(ctx, acct.ID); err != nil {
		return fmt.Errorf("rejecting account: %w", err)
	}

	color.Green("Rejected %s", acct.Username)
	return nil
}

func runDelete(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: dxchart-admin delete <account-id>")
	}

	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	if err := st.DeleteAccount(ctx, args[0]); err != nil {
		return fmt.Errorf("deleting account: %w", err)
	}

	color.Green("Deleted %s", args[0])
	return nil
}

func runExport(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("usage: dxchart-admin export <account-id> <file>")
	}

	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	doc, err := st.ExportUserData(ctx, args[0])
	if err != nil {
		return fmt.Errorf("exporting data: %w", err)
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding backup: %w", err)
	}

	if err := os.WriteFile(args[1], data, 0600); err != nil {
		return fmt.Errorf("writing backup file: %w", err)
	}

	color.Green("Exported %d chart(s) to %s", len(doc.Charts), args[1])
	return nil
}

func runRestore(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("usage: dxchart-admin restore <account-id> <file>")
	}

	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	data, err := os.ReadFile(args[1])
	if err != nil {
		return fmt.Errorf("reading backup file: %w", err)
	}

	var doc store.BackupDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("parsing backup: %w", err)
	}
	doc.UserID = args[0]

	restored, err := st.RestoreUserData(ctx, &doc)
	if err != nil {
		return fmt.Errorf("restoring data: %w", err)
	}

	color.Green("Restored %d chart(s) for %s", restored, args[0])
	return nil
}
