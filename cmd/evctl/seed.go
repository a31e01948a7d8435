package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/iliyamo/ev-charging-backend/internal/model"
	"github.com/iliyamo/ev-charging-backend/internal/repository"
)

var seedOwnerID uint64

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load reference and sample data",
}

var seedPlansCmd = &cobra.Command{
	Use:   "plans",
	Short: "Insert or refresh the basic, pro and enterprise plans",
	RunE:  runSeedPlans,
}

var seedChargersCmd = &cobra.Command{
	Use:   "chargers",
	Short: "Create sample chargers around New Delhi for a charger owner",
	Long: `Create a handful of sample chargers, each with two ports, owned by the
given charger_owner account. Plan limits are not applied.

Examples:
  evctl seed chargers --owner 42`,
	RunE: runSeedChargers,
}

func init() {
	seedChargersCmd.Flags().Uint64Var(&seedOwnerID, "owner", 0, "id of the charger_owner account")
	_ = seedChargersCmd.MarkFlagRequired("owner")
	seedCmd.AddCommand(seedPlansCmd, seedChargersCmd)
}

func limit(n uint32) *uint32 { return &n }

// DefaultPlans are the tiers offered to charger owners. A nil limit means
// unlimited.
var DefaultPlans = []model.Plan{
	{Name: "basic", Price: 1, MaxChargers: limit(2), MaxPortsPerCharger: limit(4), Description: "Up to 2 chargers with 4 ports each", IsActive: true, DurationDays: 30},
	{Name: "pro", Price: 2, MaxChargers: limit(5), MaxPortsPerCharger: limit(4), Description: "Up to 5 chargers with 4 ports each", IsActive: true, DurationDays: 30},
	{Name: "enterprise", Price: 3, Description: "Unlimited chargers and ports", IsActive: true, DurationDays: 30},
}

func runSeedPlans(cmd *cobra.Command, args []string) error {
	db, err := openDB()
	if err != nil {
		return err
	}
	defer db.Close()

	plans := repository.NewPlanRepo(db)
	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancel()
	for i := range DefaultPlans {
		p := DefaultPlans[i]
		if err := plans.Upsert(ctx, &p); err != nil {
			return fmt.Errorf("upsert plan %s: %w", p.Name, err)
		}
		log.Info("plan seeded", zap.String("name", p.Name))
	}
	return nil
}

type sampleCharger struct {
	name, address string
	lat, lng      float64
	kind          model.ChargerType
	powerKW       float64
	price         float64
	connectors    model.ConnectorList
}

var delhiChargers = []sampleCharger{
	{"Connaught Place Hub", "Block A, Connaught Place, New Delhi", 28.6315, 77.2167, model.ChargerDC, 60, 18, model.ConnectorList{model.ConnectorCCS2, model.ConnectorCHAdeMO}},
	{"India Gate Parking", "Rajpath Area, New Delhi", 28.6129, 77.2295, model.ChargerAC, 22, 12, model.ConnectorList{model.ConnectorType2}},
	{"Karol Bagh Metro", "Pusa Road, Karol Bagh, New Delhi", 28.6448, 77.1880, model.ChargerDC, 50, 17, model.ConnectorList{model.ConnectorCCS2, model.ConnectorGBT}},
	{"Lodhi Garden Gate 1", "Lodhi Road, New Delhi", 28.5931, 77.2197, model.ChargerAC, 7.4, 10, model.ConnectorList{model.ConnectorType2, model.ConnectorType1}},
	{"Saket Mall Basement", "Press Enclave Marg, Saket, New Delhi", 28.5286, 77.2193, model.ChargerDC, 120, 20, model.ConnectorList{model.ConnectorCCS2, model.ConnectorTesla}},
}

func runSeedChargers(cmd *cobra.Command, args []string) error {
	db, err := openDB()
	if err != nil {
		return err
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
	defer cancel()

	owner, err := repository.NewUserRepo(db).GetByID(ctx, seedOwnerID)
	if err != nil {
		return fmt.Errorf("load owner %d: %w", seedOwnerID, err)
	}
	if owner.Role != model.RoleChargerOwner {
		return fmt.Errorf("user %d is %s, not %s", owner.ID, owner.Role, model.RoleChargerOwner)
	}

	chargers := repository.NewChargerRepo(db)
	ports := repository.NewPortRepo(db)
	for _, s := range delhiChargers {
		ch := &model.Charger{
			OwnerID:            owner.ID,
			Name:               s.name,
			Address:            s.address,
			Location:           model.Location{Lat: s.lat, Lng: s.lng},
			Status:             model.ChargerActive,
			ChargerType:        s.kind,
			ConnectorTypes:     s.connectors,
			MaxChargingPowerKW: s.powerKW,
			PricePerKWh:        s.price,
		}
		if err := chargers.Create(ctx, ch); err != nil {
			return fmt.Errorf("create charger %q: %w", s.name, err)
		}
		for _, conn := range s.connectors[:min(2, len(s.connectors))] {
			p := &model.ChargerPort{ChargerID: ch.ID, ConnectorType: conn, MaxPowerKW: s.powerKW, PricePerKWh: s.price}
			if err := ports.Create(ctx, p); err != nil {
				return fmt.Errorf("create port on %q: %w", s.name, err)
			}
		}
		log.Info("charger seeded", zap.Uint64("id", ch.ID), zap.String("name", ch.Name))
	}
	return nil
}
