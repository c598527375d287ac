package main

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/urfave/cli/v2"

	"github.com/poiesic/ragbook"
	"github.com/poiesic/ragbook/core"
)

func bookingsCommand() *cli.Command {
	return &cli.Command{
		Name:  "bookings",
		Usage: "Review interview bookings",
		Subcommands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List bookings, newest first",
				Action: func(c *cli.Context) error {
					return withService(c, func(ctx context.Context, svc *ragbook.Service) error {
						bookings, err := svc.Metadata().ListBookings(ctx)
						if err != nil {
							return err
						}
						w := tabwriter.NewWriter(c.App.Writer, 0, 4, 2, ' ', 0)
						fmt.Fprintln(w, "ID\tNAME\tEMAIL\tDATE\tTIME\tSTATUS")
						for _, b := range bookings {
							fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n", b.ID, b.Name, b.Email, b.Date, b.Time, b.Status)
						}
						return w.Flush()
					})
				},
			},
			{
				Name:      "get",
				Usage:     "Show one booking",
				ArgsUsage: "ID",
				Action: func(c *cli.Context) error {
					id := c.Args().First()
					if id == "" {
						return fmt.Errorf("booking id is required")
					}
					return withService(c, func(ctx context.Context, svc *ragbook.Service) error {
						b, err := svc.Metadata().GetBooking(ctx, id)
						if err != nil {
							return err
						}
						printBooking(c.App.Writer, b)
						return nil
					})
				},
			},
			{
				Name:      "status",
				Usage:     "Confirm or cancel a pending booking",
				ArgsUsage: "ID STATUS",
				Action: func(c *cli.Context) error {
					if c.NArg() != 2 {
						return fmt.Errorf("booking id and status are required")
					}
					id := c.Args().Get(0)
					status, err := core.ParseBookingStatus(c.Args().Get(1))
					if err != nil {
						return err
					}
					return withService(c, func(ctx context.Context, svc *ragbook.Service) error {
						b, err := svc.Metadata().UpdateBookingStatus(ctx, id, status)
						if err != nil {
							return err
						}
						printBooking(c.App.Writer, b)
						return nil
					})
				},
			},
		},
	}
}

func printBooking(w io.Writer, b *core.Booking) {
	fmt.Fprintf(w, "Booking ID: %s\n", b.ID)
	fmt.Fprintf(w, "Name: %s\n", b.Name)
	fmt.Fprintf(w, "Email: %s\n", b.Email)
	fmt.Fprintf(w, "Date: %s\n", b.Date)
	fmt.Fprintf(w, "Time: %s\n", b.Time)
	fmt.Fprintf(w, "Status: %s\n", b.Status)
	if b.SessionID != "" {
		fmt.Fprintf(w, "Session: %s\n", b.SessionID)
	}
}
