package domain

import (
	"regexp"
	"sort"
	"strings"
	"time"
)

const (
	dateCodeLayout  = "20060102"
	timestampLayout = "20060102150405"
)

var (
	dateCodePattern  = regexp.MustCompile(`^\d{8}$`)
	snapshotPattern  = regexp.MustCompile(`^snapshot_(\d{14})\.[A-Za-z0-9]+$`)
	timelapsePattern = regexp.MustCompile(`^timelapse_(\d{8})\.[A-Za-z0-9]+$`)
)

// DatePartition identifies one day's snapshot directory.
type DatePartition struct {
	DateCode string `json:"dateCode"`
}

// Date parses the partition's date code.
func (p DatePartition) Date() (time.Time, error) {
	return time.Parse(dateCodeLayout, p.DateCode)
}

// SnapshotFile is a single snapshot inside a date partition.
type SnapshotFile struct {
	File string `json:"file"`
}

// Timestamp returns the encoded capture time of the snapshot.
func (f SnapshotFile) Timestamp() (time.Time, error) {
	return time.Parse(timestampLayout, snapshotTimestamp(f.File))
}

// DateCode returns the partition the snapshot belongs to.
func (f SnapshotFile) DateCode() string {
	ts := snapshotTimestamp(f.File)
	if len(ts) < 8 {
		return ""
	}
	return ts[:8]
}

// TimelapseFile is a rendered timelapse video in the flat timelapse directory.
type TimelapseFile struct {
	File          string `json:"file"`
	DateCode      string `json:"dateCode"`
	FileSizeBytes int64  `json:"fileSizeBytes"`
}

// IsDateCode reports whether name is an 8-digit date code.
func IsDateCode(name string) bool {
	return dateCodePattern.MatchString(name)
}

// IsSnapshotFile reports whether name follows the snapshot naming scheme.
func IsSnapshotFile(name string) bool {
	return snapshotPattern.MatchString(name)
}

// IsTimelapseFile reports whether name follows the timelapse naming scheme.
func IsTimelapseFile(name string) bool {
	return timelapsePattern.MatchString(name)
}

// ParseTimelapseFile builds a TimelapseFile from a file name and size.
// Returns false if the name does not match the timelapse naming scheme.
func ParseTimelapseFile(name string, size int64) (TimelapseFile, bool) {
	m := timelapsePattern.FindStringSubmatch(name)
	if m == nil {
		return TimelapseFile{}, false
	}
	return TimelapseFile{File: name, DateCode: m[1], FileSizeBytes: size}, true
}

func snapshotTimestamp(name string) string {
	m := snapshotPattern.FindStringSubmatch(name)
	if m == nil {
		return ""
	}
	return m[1]
}

// SortDatePartitions sorts partitions most recent first.
func SortDatePartitions(dates []DatePartition) {
	sort.Slice(dates, func(i, j int) bool {
		return dates[i].DateCode > dates[j].DateCode
	})
}

// SortSnapshotFiles sorts snapshots by encoded timestamp, most recent first.
// Equal timestamps fall back to the file name.
func SortSnapshotFiles(files []SnapshotFile) {
	sort.Slice(files, func(i, j int) bool {
		ti, tj := snapshotTimestamp(files[i].File), snapshotTimestamp(files[j].File)
		if ti != tj {
			return ti > tj
		}
		return files[i].File > files[j].File
	})
}

// SortTimelapseFiles sorts timelapse files by name, most recent first.
func SortTimelapseFiles(files []TimelapseFile) {
	sort.Slice(files, func(i, j int) bool {
		return strings.Compare(files[i].File, files[j].File) > 0
	})
}
