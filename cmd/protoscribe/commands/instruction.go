package commands

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/protoscribe/protoscribe/pkg/convstore"
	"github.com/protoscribe/protoscribe/pkg/kv"
)

var instructionFile string

var instructionCmd = &cobra.Command{
	Use:   "instruction",
	Short: "Show or replace the assistant instruction",
}

var instructionGetCmd = &cobra.Command{
	Use:   "get",
	Short: "Print the current assistant instruction",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, closeStore, err := openConvStore()
		if err != nil {
			return err
		}
		defer closeStore()

		instr, err := store.Instruction(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), instr)
		return nil
	},
}

var instructionSetCmd = &cobra.Command{
	Use:   "set -f <file>",
	Short: "Replace the assistant instruction",
	Long: `Replace the assistant instruction with the contents of a file.
Use '-' to read from stdin.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if instructionFile == "" {
			return fmt.Errorf("flag -f is required")
		}
		var data []byte
		var err error
		if instructionFile == "-" {
			data, err = io.ReadAll(cmd.InOrStdin())
		} else {
			data, err = os.ReadFile(instructionFile)
		}
		if err != nil {
			return err
		}
		content := strings.TrimSpace(string(data))
		if content == "" {
			return fmt.Errorf("instruction content is empty")
		}

		store, closeStore, err := openConvStore()
		if err != nil {
			return err
		}
		defer closeStore()

		if err := store.UpdateInstruction(cmd.Context(), content); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Instruction updated.")
		return nil
	},
}

// openConvStore opens the conversation store in the configured data dir.
func openConvStore() (*convstore.Store, func(), error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	db, err := kv.NewBadger(kv.BadgerOptions{Dir: filepath.Join(cfg.DataDir, "db")})
	if err != nil {
		return nil, nil, err
	}
	return convstore.New(db), func() { db.Close() }, nil
}

func init() {
	instructionSetCmd.Flags().StringVarP(&instructionFile, "file", "f", "", "instruction file (use '-' for stdin)")
	instructionCmd.AddCommand(instructionGetCmd)
	instructionCmd.AddCommand(instructionSetCmd)
	rootCmd.AddCommand(instructionCmd)
}
