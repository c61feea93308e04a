package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"clinicbook/pkg/model"
)

func slotsCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "slots",
		Short: "List, count, add and release date slots",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.openSlots()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			c.close(cmd.Context())
		},
	}

	cmd.AddCommand(slotsListCmd(c))
	cmd.AddCommand(slotsCountCmd(c))
	cmd.AddCommand(slotsAddCmd(c))
	cmd.AddCommand(slotsReleaseCmd(c))
	return cmd
}

func addFilterFlags(cmd *cobra.Command) {
	cmd.Flags().String("therapist", "", "Only slots of this therapist")
	cmd.Flags().String("product", "", "Only slots allowing this product")
	cmd.Flags().Bool("free-only", false, "Only free slots")
}

func filterFromFlags(cmd *cobra.Command) model.SlotFilter {
	therapist, _ := cmd.Flags().GetString("therapist")
	product, _ := cmd.Flags().GetString("product")
	freeOnly, _ := cmd.Flags().GetBool("free-only")
	return model.SlotFilter{TherapistID: therapist, ProductID: product, FreeOnly: freeOnly}
}

func slotsListCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "Print slots as JSON lines in datetime order",
		RunE: func(cmd *cobra.Command, args []string) error {
			limit, _ := cmd.Flags().GetInt("limit")
			all, _ := cmd.Flags().GetBool("all")
			filter := filterFromFlags(cmd)

			enc := json.NewEncoder(cmd.OutOrStdout())
			var cursor *model.SlotCursor
			for {
				page, err := c.slots.List(cmd.Context(), "", filter, limit, cursor)
				if err != nil {
					return err
				}
				for _, s := range page.Slots {
					if err := enc.Encode(s); err != nil {
						return err
					}
				}
				if !all || page.Next == nil {
					return nil
				}
				cursor = page.Next
			}
		},
	}
	addFilterFlags(cmd)
	cmd.Flags().Int("limit", 0, "Page size (0 uses SLOT_PAGE_SIZE)")
	cmd.Flags().Bool("all", false, "Follow cursors until the last page")
	return cmd
}

func slotsCountCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "count",
		Short: "Count slots matching the filter",
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := c.slots.Count(cmd.Context(), filterFromFlags(cmd))
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), n)
			return nil
		},
	}
	addFilterFlags(cmd)
	return cmd
}

func slotsAddCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Create a free slot",
		RunE: func(cmd *cobra.Command, args []string) error {
			therapistID, _ := cmd.Flags().GetString("therapist")
			therapistName, _ := cmd.Flags().GetString("therapist-name")
			at, _ := cmd.Flags().GetString("at")
			products, _ := cmd.Flags().GetString("products")

			datetime, err := time.Parse(time.RFC3339, at)
			if err != nil {
				return fmt.Errorf("--at must be RFC3339: %w", err)
			}

			slot := &model.Slot{
				Datetime:          datetime,
				TherapistID:       therapistID,
				TherapistName:     therapistName,
				AllowedProductIDs: splitList(products),
				IsFree:            true,
			}
			if err := c.slots.Create(cmd.Context(), slot); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), slot.ID)
			return nil
		},
	}
	cmd.Flags().String("therapist", "", "Therapist ID")
	cmd.Flags().String("therapist-name", "", "Therapist display name")
	cmd.Flags().String("at", "", "Slot start, RFC3339")
	cmd.Flags().String("products", "", "Comma-separated allowed product IDs")
	_ = cmd.MarkFlagRequired("therapist")
	_ = cmd.MarkFlagRequired("at")
	_ = cmd.MarkFlagRequired("products")
	return cmd
}

// slotsReleaseCmd clears the occupant whoever holds the slot. Booked slots
// are left alone.
func slotsReleaseCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "release <slot-id>",
		Short: "Clear the occupying user of a slot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			slot, err := c.repo.FindByID(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if slot.VisitID != nil {
				return errors.New("slot is booked; cancel the visit instead")
			}
			if slot.OccupyingUserID == nil {
				fmt.Fprintln(cmd.OutOrStdout(), "slot is not held")
				return nil
			}
			if err := c.reserver.Release(cmd.Context(), *slot.OccupyingUserID, slot.ID); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "released from %s\n", *slot.OccupyingUserID)
			return nil
		},
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
