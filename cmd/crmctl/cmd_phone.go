package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/acme/crm-pro/pkg/phone"
)

func newPhoneCmd() *cobra.Command {
	var country string

	cmd := &cobra.Command{
		Use:   "phone",
		Short: "Normalize, validate and format phone numbers",
	}
	cmd.PersistentFlags().StringVar(&country, "country", phone.DefaultCountryCode, "country code prepended to national numbers")

	cmd.AddCommand(&cobra.Command{
		Use:   "normalize <number>...",
		Short: "Print the digit-only international form",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, raw := range args {
				fmt.Fprintln(cmd.OutOrStdout(), phone.Normalize(raw, country))
			}
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "validate <number>...",
		Short: "Report whether each number is usable for WhatsApp",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			invalid := 0
			for _, raw := range args {
				status := "valid"
				if !phone.IsValidNormalized(phone.Normalize(raw, country)) {
					status = "invalid"
					invalid++
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", raw, status)
			}
			if invalid > 0 {
				return fmt.Errorf("%d of %d numbers are invalid", invalid, len(args))
			}
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "format <number>...",
		Short: "Print numbers for display",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, raw := range args {
				normalized := phone.Normalize(raw, country)
				region := phone.Region(normalized)
				if region == "" {
					region = "-"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", phone.DisplayNormalized(normalized), region)
			}
			return nil
		},
	})

	return cmd
}
