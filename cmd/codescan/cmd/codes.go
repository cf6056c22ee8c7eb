package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/MeKo-Tech/codescan/internal/ledger"
	"github.com/spf13/cobra"
)

// errNoCodes is returned by codes export when the list is empty.
var errNoCodes = errors.New("no codes to export")

type codesOutput struct {
	Codes []string `json:"codes"`
	Count int      `json:"count"`
}

// codesCmd represents the codes command.
var codesCmd = &cobra.Command{
	Use:   "codes",
	Short: "Manage the saved code list",
	Long: `List, delete and export the codes confirmed so far.

Examples:
  codescan codes list
  codescan codes delete AB12CD34
  codescan codes clear --yes
  codescan codes export --output coupons.txt`,
}

var codesListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List saved codes in the order they were confirmed",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		output, _ := cmd.Flags().GetString("output")
		if err := validateOutputFormat(output); err != nil {
			return err
		}

		sess, err := openSession(cmd.Context(), GetConfig(), sessionOptions{})
		if err != nil {
			return err
		}
		defer func() { _ = sess.Close() }()

		codes := sess.Codes()
		if output == outputFormatJSON {
			if codes == nil {
				codes = []string{}
			}
			return json.NewEncoder(cmd.OutOrStdout()).Encode(codesOutput{Codes: codes, Count: len(codes)})
		}

		w := cmd.OutOrStdout()
		if len(codes) == 0 {
			_, _ = fmt.Fprintln(w, sess.Export())
			return nil
		}
		for _, c := range codes {
			_, _ = fmt.Fprintln(w, c)
		}
		return nil
	},
}

var codesDeleteCmd = &cobra.Command{
	Use:     "delete CODE",
	Aliases: []string{"rm"},
	Short:   "Delete one saved code",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sess, err := openSession(cmd.Context(), GetConfig(), sessionOptions{})
		if err != nil {
			return err
		}
		defer func() { _ = sess.Close() }()

		if err := sess.DeleteCode(cmd.Context(), args[0]); err != nil {
			return err
		}
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s (%d codes left)\n", args[0], len(sess.Codes()))
		return nil
	},
}

var codesClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete every saved code",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		yes, _ := cmd.Flags().GetBool("yes")

		sess, err := openSession(cmd.Context(), GetConfig(), sessionOptions{})
		if err != nil {
			return err
		}
		defer func() { _ = sess.Close() }()

		w := cmd.OutOrStdout()
		n := len(sess.Codes())
		if n == 0 {
			_, _ = fmt.Fprintln(w, sess.Export())
			return nil
		}
		if !yes {
			return fmt.Errorf("refusing to delete %d codes without --yes", n)
		}

		deleted, err := sess.DeleteAll(cmd.Context())
		if err != nil {
			return err
		}
		_, _ = fmt.Fprintf(w, "Deleted %d codes\n", deleted)
		return nil
	},
}

var codesExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export saved codes as shareable text",
	Long: `Write the saved codes as a header line followed by one code per line.

Without --output the file is named coupons_YYYY-MM-DD.txt and placed in the
configured export directory.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := GetConfig()
		toStdout, _ := cmd.Flags().GetBool("stdout")
		path, _ := cmd.Flags().GetString("output")

		sess, err := openSession(cmd.Context(), cfg, sessionOptions{})
		if err != nil {
			return err
		}
		defer func() { _ = sess.Close() }()

		n := len(sess.Codes())
		if n == 0 {
			return errNoCodes
		}
		text := sess.Export()

		if toStdout {
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), text)
			return nil
		}

		if path == "" {
			path = filepath.Join(cfg.Export.Dir, ledger.ExportFilename(time.Now()))
		}
		if err := os.WriteFile(path, []byte(text+"\n"), 0o600); err != nil {
			return fmt.Errorf("failed to write export: %w", err)
		}
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Exported %d codes to %s\n", n, path)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(codesCmd)
	codesCmd.AddCommand(codesListCmd, codesDeleteCmd, codesClearCmd, codesExportCmd)

	codesListCmd.Flags().StringP("output", "o", outputFormatText, "output format: text or json")
	codesClearCmd.Flags().BoolP("yes", "y", false, "confirm deleting every saved code")
	codesExportCmd.Flags().StringP("output", "o", "", "file to write (default: coupons_YYYY-MM-DD.txt in export.dir)")
	codesExportCmd.Flags().Bool("stdout", false, "print the export instead of writing a file")
}
