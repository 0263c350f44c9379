package android

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/spance/devpulse/telemetry/definitions"
)

const dataPartition = "/data"

// fsStats is the statfs view of the data partition.
type fsStats struct {
	Blocks    uint64
	Free      uint64
	Available uint64
	BlockSize uint64
}

func (r *ADBDevice) fsStats(ctx context.Context) (fsStats, error) {
	output, err := r.cachedShell(ctx, "Storage", "stat", "-f", "-c", "%b %f %a %S", dataPartition)
	if err != nil {
		return fsStats{}, err
	}
	return parseStatFS(output)
}

// parseStatFS parses `stat -f -c "%b %f %a %S"`.
func parseStatFS(output string) (fsStats, error) {
	fields := strings.Fields(strings.TrimSpace(output))
	if len(fields) != 4 {
		return fsStats{}, fmt.Errorf("unexpected stat output: %q", strings.TrimSpace(output))
	}
	values := make([]uint64, len(fields))
	for i, f := range fields {
		v, err := strconv.ParseUint(f, 10, 64)
		if err != nil {
			return fsStats{}, fmt.Errorf("parse stat field %q: %w", f, err)
		}
		values[i] = v
	}
	return fsStats{Blocks: values[0], Free: values[1], Available: values[2], BlockSize: values[3]}, nil
}

func (r *ADBDevice) StorageAvailable(ctx context.Context) error {
	if _, err := r.fsStats(ctx); err != nil {
		return fmt.Errorf("%w: %v", definitions.ErrProviderUnavailable, err)
	}
	return nil
}

func (r *ADBDevice) TotalSpace(ctx context.Context) (uint64, error) {
	st, err := r.fsStats(ctx)
	if err != nil {
		return 0, err
	}
	return st.Blocks * st.BlockSize, nil
}

func (r *ADBDevice) FreeSpace(ctx context.Context) (uint64, error) {
	st, err := r.fsStats(ctx)
	if err != nil {
		return 0, err
	}
	return st.Free * st.BlockSize, nil
}

func (r *ADBDevice) UsedSpace(ctx context.Context) (uint64, error) {
	st, err := r.fsStats(ctx)
	if err != nil {
		return 0, err
	}
	return (st.Blocks - st.Free) * st.BlockSize, nil
}

func (r *ADBDevice) AvailableSpace(ctx context.Context) (uint64, error) {
	st, err := r.fsStats(ctx)
	if err != nil {
		return 0, err
	}
	return st.Available * st.BlockSize, nil
}
