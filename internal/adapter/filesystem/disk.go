package filesystem

// DiskUsage represents disk usage statistics of the archive volume
type DiskUsage struct {
	Total   uint64  `json:"total_bytes"`
	Used    uint64  `json:"used_bytes"`
	Free    uint64  `json:"free_bytes"`
	UsedPct float64 `json:"used_pct"`
}

func newDiskUsage(total, free uint64) *DiskUsage {
	used := total - free
	usedPct := 0.0
	if total > 0 {
		usedPct = float64(used) / float64(total) * 100
	}
	return &DiskUsage{
		Total:   total,
		Used:    used,
		Free:    free,
		UsedPct: usedPct,
	}
}
