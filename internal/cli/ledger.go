package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"mijob/internal/db"
	"mijob/internal/ledger"
	"mijob/internal/server"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(ledgerCmd)
	ledgerCmd.AddCommand(ledgerVerifyCmd)
	ledgerCmd.AddCommand(ledgerHistoryCmd)

	ledgerCmd.PersistentFlags().Int("user", 0, "User whose ledger to inspect")
	_ = ledgerCmd.MarkPersistentFlagRequired("user")
	ledgerHistoryCmd.Flags().Int("limit", 20, "Number of transactions to show")
}

var ledgerCmd = &cobra.Command{
	Use:   "ledger",
	Short: "Inspect token ledgers",
}

var ledgerVerifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Replay a user's transaction log against the stored totals",
	Long: `Replays every transaction of the user's ledger and compares the result
with the stored balance and totals. Exits non-zero when they disagree.`,
	RunE: runLedgerVerify,
}

var ledgerHistoryCmd = &cobra.Command{
	Use:   "history",
	Short: "Print a user's most recent token transactions",
	RunE:  runLedgerHistory,
}

func ledgerService(cmd *cobra.Command) (*ledger.Service, int, func(), error) {
	userID, _ := cmd.Flags().GetInt("user")
	if userID <= 0 {
		return nil, 0, nil, fmt.Errorf("--user must be a positive id")
	}
	cfg, err := loadConfig()
	if err != nil {
		return nil, 0, nil, err
	}
	database, err := db.Connect(cfg.DatabaseURL)
	if err != nil {
		return nil, 0, nil, err
	}
	store, err := server.NewLedgerStore(database, cfg)
	if err != nil {
		database.Close()
		return nil, 0, nil, err
	}
	return ledger.NewService(store), userID, func() { database.Close() }, nil
}

func runLedgerVerify(cmd *cobra.Command, _ []string) error {
	svc, userID, done, err := ledgerService(cmd)
	if err != nil {
		return err
	}
	defer done()

	audit, err := svc.Verify(cmd.Context(), userID)
	if err != nil {
		return err
	}
	return writeAudit(cmd.OutOrStdout(), audit)
}

func writeAudit(w io.Writer, audit *ledger.Audit) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(audit); err != nil {
		return err
	}
	if !audit.Consistent {
		return fmt.Errorf("ledger for user %d is inconsistent: %s", audit.UserID, audit.Problem)
	}
	return nil
}

func runLedgerHistory(cmd *cobra.Command, _ []string) error {
	svc, userID, done, err := ledgerService(cmd)
	if err != nil {
		return err
	}
	defer done()

	limit, _ := cmd.Flags().GetInt("limit")
	txs, err := svc.History(cmd.Context(), userID, limit, 0)
	if err != nil {
		return err
	}
	return writeHistory(cmd.OutOrStdout(), txs)
}

func writeHistory(w io.Writer, txs []ledger.Transaction) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tKIND\tAMOUNT\tBALANCE\tREASON\tAT")
	for _, tx := range txs {
		fmt.Fprintf(tw, "%d\t%s\t%d\t%d\t%s\t%s\n",
			tx.ID, tx.Kind, tx.Amount, tx.BalanceAfter, tx.Reason, tx.CreatedAt.Format("2006-01-02 15:04"))
	}
	return tw.Flush()
}
