package main

import (
	"fmt"
	"io"
	"strconv"

	"github.com/karthikraju391/codecrush/models"
	"github.com/olekukonko/tablewriter"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
)

func newTable(out io.Writer, header ...string) *tablewriter.Table {
	table := tablewriter.NewWriter(out)
	table.SetHeader(header)
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t")
	table.SetNoWhiteSpace(true)
	return table
}

func (a *app) connectionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "connections",
		Short: "List accepted connections",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, client, err := a.authed()
			if err != nil {
				return err
			}
			contacts, err := client.Connections(cmd.Context())
			if err != nil {
				return a.expired(err)
			}
			if len(contacts) == 0 {
				fmt.Fprintln(a.out, "No Connections Found!")
				return nil
			}
			table := newTable(a.out, "ID", "Name", "Age", "About")
			table.AppendBulk(lo.Map(contacts, func(c models.Contact, _ int) []string {
				return []string{c.ID, c.FullName(), lo.Ternary(c.Age > 0, strconv.Itoa(c.Age), "-"), c.About}
			}))
			table.Render()
			return nil
		},
	}
}

func (a *app) requestsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "requests",
		Short: "List received connection requests",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, client, err := a.authed()
			if err != nil {
				return err
			}
			requests, err := client.ReceivedRequests(cmd.Context())
			if err != nil {
				return a.expired(err)
			}
			if len(requests) == 0 {
				fmt.Fprintln(a.out, "No Requests Found!")
				return nil
			}
			table := newTable(a.out, "Request", "From", "From ID")
			table.AppendBulk(lo.Map(requests, func(r models.ConnectionRequest, _ int) []string {
				return []string{r.ID, r.FromUserID.FullName(), r.FromUserID.ID}
			}))
			table.Render()
			return nil
		},
	}
	cmd.AddCommand(
		a.reviewCmd("accept", models.StatusAccepted),
		a.reviewCmd("reject", models.StatusRejected),
	)
	return cmd
}

func (a *app) reviewCmd(use, status string) *cobra.Command {
	return &cobra.Command{
		Use:   use + " REQUEST_ID",
		Short: "Mark a received request " + status,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, client, err := a.authed()
			if err != nil {
				return err
			}
			if _, err := client.ReviewRequest(cmd.Context(), status, args[0]); err != nil {
				return a.expired(err)
			}
			fmt.Fprintf(a.out, "Request %s %s\n", args[0], status)
			return nil
		},
	}
}
