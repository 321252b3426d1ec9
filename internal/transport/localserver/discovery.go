package localserver

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"
)

// defaultProbeHosts are common addresses a phone-local server tends to sit
// on. Discovery is best-effort convenience; correctness never depends on it.
var defaultProbeHosts = []string{
	"127.0.0.1",
	"localhost",
	"192.168.0.100",
	"192.168.1.100",
	"192.168.4.1",
	"10.0.0.100",
}

// Discover probes candidate addresses in parallel against the health
// endpoint and returns the subset that answered within the probe timeout.
// Every started probe settles before Discover returns; none are cancelled on
// first success. An empty candidates slice probes the default host list.
func (c *Client) Discover(ctx context.Context, candidates []string) []string {
	hosts := candidates
	if len(hosts) == 0 {
		hosts = defaultProbeHosts
	}

	var (
		mu    sync.Mutex
		found []string
		wg    sync.WaitGroup
	)

	for _, host := range hosts {
		wg.Add(1)
		go func(host string) {
			defer wg.Done()

			probeCtx, cancel := context.WithTimeout(ctx, c.cfg.ProbeTimeout)
			defer cancel()

			url := fmt.Sprintf("http://%s:%d%s", host, c.cfg.ServerPort, healthPath)
			resp, err := c.client.R().SetContext(probeCtx).Get(url)
			if err != nil || resp.StatusCode() != 200 {
				return
			}

			mu.Lock()
			found = append(found, host)
			mu.Unlock()
		}(host)
	}
	wg.Wait()

	log.Info().Strs("responders", found).Int("probed", len(hosts)).Msg("local server discovery finished")
	return found
}
