package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/MeKo-Tech/codescan/internal/scanner"
	"github.com/spf13/cobra"
)

// settingsCmd represents the settings command.
var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Show or change the saved code format and length",
	Long: `The code format and length spec decide which recognized text becomes a
candidate. They are saved in the store and survive restarts; the scanner
section of the configuration only supplies the values used before anything
was saved.

Examples:
  codescan settings show
  codescan settings set --format alphanumeric_hyphen --length 8-16
  codescan settings set --length ""`,
}

var settingsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the active settings",
	Args:  cobra.NoArgs,
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

		return writeSettings(cmd.OutOrStdout(), sess.Settings(), output)
	},
}

var settingsSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Change and save the settings",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if !cmd.Flags().Changed("format") && !cmd.Flags().Changed("length") {
			return errors.New("nothing to change: pass --format and/or --length")
		}

		sess, err := openSession(cmd.Context(), GetConfig(), sessionOptions{})
		if err != nil {
			return err
		}
		defer func() { _ = sess.Close() }()

		next, _, err := settingsFromFlags(cmd, sess.Settings())
		if err != nil {
			return err
		}
		if err := sess.UpdateSettings(cmd.Context(), next); err != nil {
			return err
		}
		return writeSettings(cmd.OutOrStdout(), sess.Settings(), outputFormatText)
	},
}

func writeSettings(w io.Writer, s scanner.Settings, format string) error {
	if format == outputFormatJSON {
		return json.NewEncoder(w).Encode(s)
	}
	_, _ = fmt.Fprintf(w, "format: %s\n", s.Format)
	_, _ = fmt.Fprintf(w, "length: %s (%s)\n", describeLength(s.LengthSpec), s.Constraint())
	return nil
}

func init() {
	rootCmd.AddCommand(settingsCmd)
	settingsCmd.AddCommand(settingsShowCmd, settingsSetCmd)

	settingsShowCmd.Flags().StringP("output", "o", outputFormatText, "output format: text or json")
	addSettingsFlags(settingsSetCmd, "new")
}
