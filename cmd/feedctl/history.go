package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"grimm.is/ipfeed/internal/api"
	"grimm.is/ipfeed/internal/client"
	"grimm.is/ipfeed/internal/notify"
)

func newVersionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "versions",
		Short: "List retained versions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			resp, err := getClient(cmd).Versions(cmd.Context())
			if err != nil {
				return err
			}

			rows := make([][]string, 0, len(resp.Versions))
			for _, v := range resp.Versions {
				mark := ""
				if v.Current {
					mark = "*"
				}
				rows = append(rows, []string{
					strconv.FormatUint(v.Version, 10),
					formatTime(v.CreatedAt),
					strconv.Itoa(v.Count),
					shortSum(v.Checksum),
					mark,
				})
			}
			renderTable(cmd.OutOrStdout(), []string{"Version", "Created", "Entries", "Checksum", "Current"}, rows)
			return nil
		},
	}
}

func newShowCmd() *cobra.Command {
	var version uint64

	c := &cobra.Command{
		Use:   "show",
		Short: "Print the rendered feed document",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			body, _, err := getClient(cmd).Feed(cmd.Context(), version)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(body)
			return err
		},
	}

	c.Flags().Uint64Var(&version, "version", 0, "historical version (default: live feed)")
	return c
}

func newDiffCmd() *cobra.Command {
	var (
		from, to uint64
		unified  bool
	)

	c := &cobra.Command{
		Use:   "diff",
		Short: "Compare two versions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			if unified {
				text, err := getClient(cmd).UnifiedDiff(cmd.Context(), from, to)
				if err != nil {
					return err
				}
				_, err = fmt.Fprint(out, text)
				return err
			}

			d, err := getClient(cmd).Diff(cmd.Context(), from, to)
			if err != nil {
				return err
			}
			if len(d.Added) == 0 && len(d.Removed) == 0 {
				fmt.Fprintf(out, "versions %d and %d hold the same entries\n", d.From, d.To)
				return nil
			}

			var rows [][]string
			for _, e := range d.Removed {
				rows = append(rows, []string{"-", e.Text, e.Comment})
			}
			for _, e := range d.Added {
				rows = append(rows, []string{"+", e.Text, e.Comment})
			}
			renderTable(out, []string{"Change", "Entry", "Comment"}, rows)
			return nil
		},
	}

	c.Flags().Uint64Var(&from, "from", 0, "older version")
	c.Flags().Uint64Var(&to, "to", 0, "newer version")
	c.Flags().BoolVar(&unified, "unified", false, "print a unified text diff of the rendered documents")
	_ = c.MarkFlagRequired("from")
	_ = c.MarkFlagRequired("to")
	return c
}

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the published version and pipeline state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := getClient(cmd).Status(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "State:     %s\n", s.State)
			fmt.Fprintf(out, "Version:   %d\n", s.Version)
			fmt.Fprintf(out, "Lines:     %d\n", s.Lines)
			fmt.Fprintf(out, "Checksum:  %s\n", s.Checksum)
			fmt.Fprintf(out, "Generated: %s\n", formatTime(s.GeneratedAt))
			fmt.Fprintf(out, "Uptime:    %s\n", s.Uptime)
			return nil
		},
	}
}

func newAuditCmd() *cobra.Command {
	var args client.AuditArgs

	c := &cobra.Command{
		Use:   "audit",
		Short: "Show recent publishes from the audit log",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			events, err := getClient(cmd).Audit(cmd.Context(), args)
			if err != nil {
				return err
			}
			rows := make([][]string, 0, len(events))
			for _, e := range events {
				rows = append(rows, []string{
					formatTime(e.Timestamp),
					e.Operation,
					strconv.FormatUint(e.Version, 10),
					"+" + strconv.Itoa(e.Added) + "/-" + strconv.Itoa(e.Removed),
					e.Batch,
				})
			}
			renderTable(cmd.OutOrStdout(), []string{"Time", "Operation", "Version", "Change", "Batch"}, rows)
			return nil
		},
	}

	c.Flags().StringVar(&args.Operation, "operation", "", "only this operation (submit|add|remove|rollback)")
	c.Flags().IntVar(&args.Limit, "limit", 20, "maximum events")
	return c
}

func newWatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Stream publish events until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			return getClient(cmd).Watch(cmd.Context(),
				func(s api.StatusResponse) {
					fmt.Fprintf(out, "connected: version %d (%s)\n", s.Version, s.State)
				},
				func(e notify.Event) {
					fmt.Fprintf(out, "%s %s version %d: %d ipv4, %d ipv6, %d lines\n",
						formatTime(e.PublishedAt), e.Operation, e.Version, e.V4Entries, e.V6Entries, e.Lines)
				})
		},
	}
}
