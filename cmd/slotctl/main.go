package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	slotsrepo "clinicbook/internal/slots/repository"
	"clinicbook/internal/slots/reservation"
	slotsservice "clinicbook/internal/slots/service"
	slotsvalidator "clinicbook/internal/slots/validator"
	"clinicbook/pkg/config"
)

const ServiceName = "slotctl"

// cli carries the state shared by every subcommand. Backends are opened
// lazily so that --help never dials a database.
type cli struct {
	cfg      *config.Config
	out      io.Writer
	repo     slotsrepo.SlotRepository
	slots    slotsservice.SlotService
	reserver *reservation.Reserver
}

func main() {
	c := &cli{out: os.Stdout}
	if err := newRootCmd(c).Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd(c *cli) *cobra.Command {
	root := &cobra.Command{
		Use:          "slotctl",
		Short:        "Administer clinic date slots",
		SilenceUsage: true,
	}
	root.SetOut(c.out)

	root.AddCommand(migrateCmd(c))
	root.AddCommand(slotsCmd(c))
	return root
}

func (c *cli) loadConfig() *config.Config {
	if c.cfg == nil {
		c.cfg = config.FromViper(config.NewViper(), ServiceName)
	}
	return c.cfg
}

// openSlots connects the configured slot store. Memory stores are refused
// because they would vanish when the command exits.
func (c *cli) openSlots() error {
	if c.slots != nil {
		return nil
	}

	cfg := c.loadConfig()
	switch cfg.StoreDriver {
	case config.StoreMongo:
		cfg.Client.SetMongo(cfg.MongoURI, cfg.MongoConnTimeout)
		c.repo = slotsrepo.NewMongoSlotRepository(cfg)
	case config.StoreFirestore:
		cfg.Client.SetFirebase(cfg.FirebaseProjectID, cfg.FirebaseCredentialsFile, cfg.MongoConnTimeout)
		c.repo = slotsrepo.NewFirestoreSlotRepository(cfg)
	default:
		return fmt.Errorf("store driver %q is not supported by slotctl", cfg.StoreDriver)
	}

	c.reserver = reservation.NewReserver(c.repo, nil, cfg.Log)
	c.slots = slotsservice.NewSlotService(c.repo, c.reserver, slotsvalidator.NewSlotValidator(cfg.Log), cfg)
	return nil
}

func (c *cli) close(ctx context.Context) {
	if c.cfg != nil {
		c.cfg.GracefulShutdown(ctx)
	}
}
