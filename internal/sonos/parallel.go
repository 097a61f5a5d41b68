package sonos

import (
	"context"
	"sync"
)

// volumeReading is one member's fetched volume.
type volumeReading struct {
	volume int
	ok     bool
}

// fetchVolumes reads the volume of every ip in parallel. Results are stored
// by index so they line up with ips regardless of completion order.
func fetchVolumes(ctx context.Context, controls VolumeControls, ips []string) []volumeReading {
	readings := make([]volumeReading, len(ips))
	var wg sync.WaitGroup
	for i, ip := range ips {
		wg.Add(1)
		go func(i int, ip string) {
			defer wg.Done()
			volume, ok := controls.GetVolume(ctx, ip)
			readings[i] = volumeReading{volume: volume, ok: ok}
		}(i, ip)
	}
	wg.Wait()
	return readings
}

// setVolumes writes targets[i] to ips[i] in parallel for every index where
// apply[i] is true and reports which writes succeeded.
func setVolumes(ctx context.Context, controls VolumeControls, ips []string, targets []int, apply []bool) []bool {
	done := make([]bool, len(ips))
	var wg sync.WaitGroup
	for i, ip := range ips {
		if !apply[i] {
			continue
		}
		wg.Add(1)
		go func(i int, ip string) {
			defer wg.Done()
			done[i] = controls.SetVolume(ctx, ip, targets[i])
		}(i, ip)
	}
	wg.Wait()
	return done
}
