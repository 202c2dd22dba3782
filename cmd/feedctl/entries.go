package main

import (
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"grimm.is/ipfeed/internal/api"
)

// baseFlag returns the --base value when it was given.
func baseFlag(cmd *cobra.Command, base uint64) *uint64 {
	if !cmd.Flags().Changed("base") {
		return nil
	}
	return &base
}

func printPublished(cmd *cobra.Command, res *api.PublishResponse) {
	fmt.Fprintf(cmd.OutOrStdout(), "published version %d (%d entries, checksum %s)\n",
		res.Version, res.Count, shortSum(res.Checksum))
}

func newSubmitCmd() *cobra.Command {
	var (
		file string
		base uint64
	)

	c := &cobra.Command{
		Use:   "submit",
		Short: "Replace the whole list with the contents of a file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var r io.Reader
			if file == "-" {
				r = cmd.InOrStdin()
			} else {
				f, err := os.Open(file)
				if err != nil {
					return err
				}
				defer f.Close()
				r = f
			}

			res, err := getClient(cmd).SubmitList(cmd.Context(), r, baseFlag(cmd, base))
			if err != nil {
				return err
			}
			printPublished(cmd, res)
			return nil
		},
	}

	c.Flags().StringVarP(&file, "file", "f", "", "list file, one entry per line (- for stdin)")
	c.Flags().Uint64Var(&base, "base", 0, "fail unless this is the current version")
	_ = c.MarkFlagRequired("file")
	return c
}

type editSpec struct {
	use   string
	short string
	call  func(cmd *cobra.Command, req api.EditRequest) (*api.PublishResponse, error)
}

func newEditCmd(spec editSpec) *cobra.Command {
	var (
		req  api.EditRequest
		base uint64
	)

	c := &cobra.Command{
		Use:   spec.use + " <entry>",
		Short: spec.short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req.Text = args[0]
			req.BaseVersion = baseFlag(cmd, base)
			res, err := spec.call(cmd, req)
			if err != nil {
				return err
			}
			printPublished(cmd, res)
			return nil
		},
	}

	c.Flags().StringVar(&req.Family, "family", "", "expected address family (ipv4|ipv6)")
	c.Flags().Uint64Var(&base, "base", 0, "fail unless this is the current version")
	if spec.use == "add" {
		c.Flags().StringVar(&req.Comment, "comment", "", "comment stored with the entry")
	}
	return c
}

func newAddCmd() *cobra.Command {
	return newEditCmd(editSpec{
		use:   "add",
		short: "List an address, CIDR or range",
		call: func(cmd *cobra.Command, req api.EditRequest) (*api.PublishResponse, error) {
			return getClient(cmd).Add(cmd.Context(), req)
		},
	})
}

func newRemoveCmd() *cobra.Command {
	return newEditCmd(editSpec{
		use:   "remove",
		short: "Delist every address covered by an entry",
		call: func(cmd *cobra.Command, req api.EditRequest) (*api.PublishResponse, error) {
			return getClient(cmd).Remove(cmd.Context(), req)
		},
	})
}

func newRollbackCmd() *cobra.Command {
	var base uint64

	c := &cobra.Command{
		Use:   "rollback <version>",
		Short: "Publish the entries of an older version as a new version",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			version, err := strconv.ParseUint(args[0], 10, 64)
			if err != nil || version == 0 {
				return fmt.Errorf("invalid version %q", args[0])
			}
			res, err := getClient(cmd).Rollback(cmd.Context(), api.RollbackRequest{
				Version:     version,
				BaseVersion: baseFlag(cmd, base),
			})
			if err != nil {
				return err
			}
			printPublished(cmd, res)
			return nil
		},
	}

	c.Flags().Uint64Var(&base, "base", 0, "fail unless this is the current version")
	return c
}
