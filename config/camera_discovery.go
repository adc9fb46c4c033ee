package config

import (
	"context"
	"fmt"
	"log"
	"net"
	"time"

	"golang.org/x/sync/semaphore"
)

const (
	scanDialTimeout = 2 * time.Second
	scanConcurrency = 32
	// Hard cap on addresses per scan so a typo'd range cannot tie up the
	// caller for hours
	maxScanAddresses = 256
)

// ScanCamerasInRange probes every address in [start, end] for a listening
// RTSP port and returns a CameraConfig draft per hit. Drafts are not
// persisted; callers review them and save the ones that are real cameras.
func ScanCamerasInRange(start, end, username, password, port, path string) ([]CameraConfig, []string) {
	var cameras []CameraConfig
	var logLines []string

	startIP := net.ParseIP(start)
	endIP := net.ParseIP(end)
	if startIP == nil || endIP == nil {
		logLines = append(logLines, fmt.Sprintf("invalid scan range %q - %q", start, end))
		return cameras, logLines
	}
	if port == "" {
		port = "554"
	}

	var ips []net.IP
	reachedEnd := false
	for ip := startIP; len(ips) < maxScanAddresses; ip = incIP(ip) {
		ips = append(ips, ip)
		if ip.Equal(endIP) {
			reachedEnd = true
			break
		}
	}

	logLines = append(logLines, fmt.Sprintf("scanning %s to %s on port %s (%d addresses)...", start, end, port, len(ips)))
	log.Printf("[SCAN] Scanning %s to %s on port %s (%d addresses)", start, end, port, len(ips))

	// Probe concurrently; each goroutine owns its own index so no mutex is
	// needed for the results.
	ctx := context.Background()
	sem := semaphore.NewWeighted(scanConcurrency)
	found := make([]bool, len(ips))
	for i, ip := range ips {
		if err := sem.Acquire(ctx, 1); err != nil {
			break
		}
		go func(i int, ip net.IP) {
			defer sem.Release(1)
			addr := net.JoinHostPort(ip.String(), port)
			conn, err := net.DialTimeout("tcp", addr, scanDialTimeout)
			if err == nil {
				conn.Close()
				found[i] = true
				log.Printf("[SCAN]   Found camera at %s", addr)
			}
		}(i, ip)
	}
	// Acquiring the full weight waits for every probe in flight.
	if err := sem.Acquire(ctx, scanConcurrency); err != nil {
		return cameras, logLines
	}

	for i, ip := range ips {
		if !found[i] {
			continue
		}
		cameras = append(cameras, CameraConfig{
			Name:     fmt.Sprintf("camera_%s", ip.String()),
			IP:       ip.String(),
			Port:     port,
			Path:     path,
			Username: username,
			Password: password,
			Enabled:  true,
		})
		logLines = append(logLines, fmt.Sprintf("found camera at %s", ip.String()))
	}

	if !reachedEnd {
		logLines = append(logLines, fmt.Sprintf("stopped after %d addresses, narrow the range", maxScanAddresses))
	}
	logLines = append(logLines, fmt.Sprintf("Scan complete. Found %d camera(s).", len(cameras)))
	log.Printf("[SCAN] Scan complete. Found %d camera(s)", len(cameras))
	return cameras, logLines
}

// incIP increments an IP address by 1 (IPv4 only).
func incIP(ip net.IP) net.IP {
	res := make(net.IP, len(ip))
	copy(res, ip)
	for j := len(res) - 1; j >= 0; j-- {
		res[j]++
		if res[j] != 0 {
			break
		}
	}
	return res
}
