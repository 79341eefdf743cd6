package main

import (
	"github.com/spf13/cobra"

	"github.com/franz/media-librarian/internal/scan"
	"github.com/franz/media-librarian/internal/util"
)

var computerCmd = &cobra.Command{
	Use:   "computer <host>...",
	Short: "Inventory block devices on remote hosts over SSH",
	Long: `Computer connects to each host, lists its block devices and records
them as disk rows under an ssh:// playlist. Old rows for the host are
replaced so the inventory is authoritative per run.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runComputer,
}

func init() {
	computerCmd.Flags().StringP("user", "u", "", "SSH user (default: current user)")
	computerCmd.Flags().Int("port", 22, "SSH port")
	computerCmd.Flags().IntP("workers", "w", 4, "hosts inventoried in parallel")

	rootCmd.AddCommand(computerCmd)
}

func runComputer(cmd *cobra.Command, args []string) error {
	user, _ := cmd.Flags().GetString("user")
	port, _ := cmd.Flags().GetInt("port")
	workers, _ := cmd.Flags().GetInt("workers")

	store, err := openCatalog()
	if err != nil {
		return err
	}
	defer store.Close()

	if err := scan.Computers(cmd.Context(), store, args, scan.ComputerOpts{
		User:    user,
		Port:    port,
		Workers: workers,
	}); err != nil {
		return err
	}
	util.SuccessLog("Inventoried %d hosts", len(args))
	return nil
}
