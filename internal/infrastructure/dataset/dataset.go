// Package dataset reads the engagement CSV (timestamp, claps, comments) and
// computes per-hour engagement averages.
package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"engagement-advisor/internal/domain/entity"
)

var (
	ErrFileNotFound     = errors.New("dataset file not found")
	ErrPermissionDenied = errors.New("dataset permission denied")
	ErrMalformedData    = errors.New("malformed dataset")
)

const (
	columnTimestamp = "timestamp"
	columnClaps     = "claps"
	columnComments  = "comments"
)

// Naive timestamps (without an offset) are read in the dataset timezone.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04",
}

func Load(path string, loc *time.Location) ([]entity.EngagementRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		switch {
		case errors.Is(err, fs.ErrNotExist):
			return nil, fmt.Errorf("%w: %s", ErrFileNotFound, path)
		case errors.Is(err, fs.ErrPermission):
			return nil, fmt.Errorf("%w: %s", ErrPermissionDenied, path)
		default:
			return nil, fmt.Errorf("open dataset %s: %w", path, err)
		}
	}
	defer f.Close()

	info, err := f.Stat()
	if err == nil && info.IsDir() {
		return nil, fmt.Errorf("%w: %s is a directory", ErrFileNotFound, path)
	}

	return Read(f, loc)
}

func Read(r io.Reader, loc *time.Location) ([]entity.EngagementRecord, error) {
	if loc == nil {
		loc = time.UTC
	}

	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.ReuseRecord = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: empty file", ErrMalformedData)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: header: %v", ErrMalformedData, err)
	}

	columns, err := indexColumns(header)
	if err != nil {
		return nil, err
	}

	var records []entity.EngagementRecord
	for row := 2; ; row++ {
		fields, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: row %d: %v", ErrMalformedData, row, err)
		}

		rec, err := parseRow(fields, columns, loc)
		if err != nil {
			return nil, fmt.Errorf("%w: row %d: %v", ErrMalformedData, row, err)
		}
		records = append(records, rec)
	}

	if len(records) == 0 {
		return nil, fmt.Errorf("%w: no records", ErrMalformedData)
	}
	return records, nil
}

type columnIndex struct {
	timestamp, claps, comments int
}

func indexColumns(header []string) (columnIndex, error) {
	idx := columnIndex{timestamp: -1, claps: -1, comments: -1}
	for i, name := range header {
		switch strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))) {
		case columnTimestamp:
			idx.timestamp = i
		case columnClaps:
			idx.claps = i
		case columnComments:
			idx.comments = i
		}
	}

	var missing []string
	if idx.timestamp < 0 {
		missing = append(missing, columnTimestamp)
	}
	if idx.claps < 0 {
		missing = append(missing, columnClaps)
	}
	if idx.comments < 0 {
		missing = append(missing, columnComments)
	}
	if len(missing) > 0 {
		return idx, fmt.Errorf("%w: missing columns %s", ErrMalformedData, strings.Join(missing, ", "))
	}
	return idx, nil
}

func parseRow(fields []string, idx columnIndex, loc *time.Location) (entity.EngagementRecord, error) {
	ts, err := parseTimestamp(strings.TrimSpace(fields[idx.timestamp]), loc)
	if err != nil {
		return entity.EngagementRecord{}, err
	}

	claps, err := parseCount(columnClaps, fields[idx.claps])
	if err != nil {
		return entity.EngagementRecord{}, err
	}

	comments, err := parseCount(columnComments, fields[idx.comments])
	if err != nil {
		return entity.EngagementRecord{}, err
	}

	return entity.EngagementRecord{Timestamp: ts, Claps: claps, Comments: comments}, nil
}

func parseTimestamp(value string, loc *time.Location) (time.Time, error) {
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, value, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid timestamp %q", value)
}

func parseCount(column, value string) (int, error) {
	value = strings.TrimSpace(value)
	n, err := strconv.Atoi(value)
	if err != nil {
		// Exported spreadsheets sometimes write whole numbers as "12.0".
		f, ferr := strconv.ParseFloat(value, 64)
		if ferr != nil || f != float64(int(f)) {
			return 0, fmt.Errorf("%s: %q is not an integer", column, value)
		}
		n = int(f)
	}
	if n < 0 {
		return 0, fmt.Errorf("%s: %d is negative", column, n)
	}
	return n, nil
}

// HourlyAverages groups records by hour of day in loc, ordered by hour.
func HourlyAverages(records []entity.EngagementRecord, loc *time.Location) []entity.HourlyEngagement {
	if loc == nil {
		loc = time.UTC
	}

	type bucket struct {
		posts, claps, comments int
	}
	buckets := make(map[int]*bucket)
	for _, r := range records {
		hour := r.Timestamp.In(loc).Hour()
		b, ok := buckets[hour]
		if !ok {
			b = &bucket{}
			buckets[hour] = b
		}
		b.posts++
		b.claps += r.Claps
		b.comments += r.Comments
	}

	result := make([]entity.HourlyEngagement, 0, len(buckets))
	for hour, b := range buckets {
		n := float64(b.posts)
		result = append(result, entity.HourlyEngagement{
			Hour:              hour,
			Label:             HourLabel(hour),
			Posts:             b.posts,
			AverageClaps:      float64(b.claps) / n,
			AverageComments:   float64(b.comments) / n,
			AverageEngagement: float64(b.claps+b.comments) / n,
		})
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Hour < result[j].Hour
	})
	return result
}

// Best returns the hour with the highest average engagement. Ties go to the
// earliest hour.
func Best(hours []entity.HourlyEngagement) (entity.HourlyEngagement, bool) {
	if len(hours) == 0 {
		return entity.HourlyEngagement{}, false
	}

	best := hours[0]
	for _, h := range hours[1:] {
		if h.AverageEngagement > best.AverageEngagement ||
			(h.AverageEngagement == best.AverageEngagement && h.Hour < best.Hour) {
			best = h
		}
	}
	return best, true
}

func HourLabel(hour int) string {
	return fmt.Sprintf("%02d:00", hour)
}
