package service

import (
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)

	days := d / (24 * time.Hour)
	d -= days * 24 * time.Hour

	hours := d / time.Hour
	d -= hours * time.Hour

	minutes := d / time.Minute
	d -= minutes * time.Minute

	seconds := d / time.Second

	if days > 0 {
		return fmt.Sprintf("%dd %dh %dm", days, hours, minutes)
	}
	if hours > 0 {
		return fmt.Sprintf("%dh %dm %ds", hours, minutes, seconds)
	}
	if minutes > 0 {
		return fmt.Sprintf("%dm %ds", minutes, seconds)
	}
	return fmt.Sprintf("%ds", seconds)
}

// psField reads one field for pid from ps(1). Empty when unavailable.
func psField(pid int, field string) string {
	if pid <= 0 {
		return ""
	}
	out, err := exec.Command("ps", "-o", field+"=", "-p", strconv.Itoa(pid)).Output()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(out))
}

func processMemory(pid int) string {
	rssKB, err := strconv.ParseInt(psField(pid, "rss"), 10, 64)
	if err != nil {
		return "N/A"
	}
	return formatBytes(rssKB * 1024)
}

func processCPU(pid int) string {
	cpu, err := strconv.ParseFloat(psField(pid, "%cpu"), 64)
	if err != nil {
		return "N/A"
	}
	return fmt.Sprintf("%.1f%%", cpu)
}

func formatBytes(bytes int64) string {
	const (
		KB = 1024
		MB = KB * 1024
		GB = MB * 1024
	)

	switch {
	case bytes >= GB:
		return fmt.Sprintf("%.1f GB", float64(bytes)/float64(GB))
	case bytes >= MB:
		return fmt.Sprintf("%.1f MB", float64(bytes)/float64(MB))
	case bytes >= KB:
		return fmt.Sprintf("%.1f KB", float64(bytes)/float64(KB))
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}
