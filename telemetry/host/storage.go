package host

import (
	"context"
	"fmt"

	"github.com/shirou/gopsutil/v3/disk"

	"github.com/spance/devpulse/telemetry/definitions"
)

func (r *HostDevice) usage(ctx context.Context) (*disk.UsageStat, error) {
	stat, err := usageWithContext(ctx, r.storagePath)
	if err != nil {
		return nil, fmt.Errorf("disk usage of %s: %w", r.storagePath, err)
	}
	return stat, nil
}

func (r *HostDevice) StorageAvailable(ctx context.Context) error {
	if _, err := r.usage(ctx); err != nil {
		return fmt.Errorf("%w: %v", definitions.ErrProviderUnavailable, err)
	}
	return nil
}

func (r *HostDevice) TotalSpace(ctx context.Context) (uint64, error) {
	stat, err := r.usage(ctx)
	if err != nil {
		return 0, err
	}
	return stat.Total, nil
}

// FreeSpace counts blocks reserved for root as free, unlike disk.UsageStat.Free.
func (r *HostDevice) FreeSpace(ctx context.Context) (uint64, error) {
	stat, err := r.usage(ctx)
	if err != nil {
		return 0, err
	}
	return stat.Total - stat.Used, nil
}

func (r *HostDevice) UsedSpace(ctx context.Context) (uint64, error) {
	stat, err := r.usage(ctx)
	if err != nil {
		return 0, err
	}
	return stat.Used, nil
}

func (r *HostDevice) AvailableSpace(ctx context.Context) (uint64, error) {
	stat, err := r.usage(ctx)
	if err != nil {
		return 0, err
	}
	return stat.Free, nil
}
