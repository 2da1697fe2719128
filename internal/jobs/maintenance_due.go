package jobs

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"fleetops/server/internal/config"
	"fleetops/server/internal/repository"
)

// StartMaintenanceDueJob periodically scans the fleet for trucks whose
// odometer has run past their maintenance interval and logs each one so
// operators can schedule service.
func StartMaintenanceDueJob(ctx context.Context, cfg config.Config, store *repository.Store, log zerolog.Logger) {
	if !cfg.MaintenanceDueJobEnabled {
		return
	}
	interval := cfg.MaintenanceDueJobInterval
	if interval <= 0 {
		interval = time.Hour
	}
	timeout := cfg.MaintenanceDueJobTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				tickCtx, cancel := context.WithTimeout(ctx, timeout)
				trucks, err := store.ListTrucksDueForMaintenance(tickCtx)
				cancel()
				if err != nil {
					log.Error().Err(err).Msg("maintenance due job scan failed")
					continue
				}
				for _, truck := range trucks {
					event := log.Warn().
						Str("truck_id", truck.ID).
						Str("unit_number", truck.UnitNumber)
					if truck.LastOdometerReading != nil {
						event = event.Int64("odometer", *truck.LastOdometerReading)
					}
					if truck.MaintenanceIntervalKm != nil {
						event = event.Int64("interval_km", *truck.MaintenanceIntervalKm)
					}
					event.Msg("truck due for maintenance")
				}
			}
		}
	}()
}
