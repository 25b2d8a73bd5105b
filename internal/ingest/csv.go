// Package ingest reads brand and athlete catalogs from CSV files.
package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"nil-match/backend/internal/store"
)

// RowError describes a CSV row that could not be converted.
type RowError struct {
	Line int
	Err  error
}

func (e RowError) Error() string {
	return fmt.Sprintf("line %d: %v", e.Line, e.Err)
}

// Result holds parsed records and the rows that were skipped.
type Result[T any] struct {
	Records []T
	Skipped []RowError
}

type columns map[string]int

func (c columns) get(record []string, names ...string) string {
	for _, name := range names {
		if idx, ok := c[name]; ok && idx < len(record) {
			if value := strings.TrimSpace(record[idx]); value != "" {
				return value
			}
		}
	}
	return ""
}

// headerKey folds header spellings such as "Target Audience" and "target_audience" together.
func headerKey(value string) string {
	value = strings.TrimPrefix(value, "\ufeff")
	value = strings.ToLower(strings.TrimSpace(value))
	replacer := strings.NewReplacer(" ", "", "_", "", "-", "")
	return replacer.Replace(value)
}

func readRecords(r io.Reader, required []string, convert func(cols columns, record []string) error) ([]RowError, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, errors.New("csv is empty")
	}
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}
	cols := make(columns, len(header))
	for idx, name := range header {
		if key := headerKey(name); key != "" {
			if _, exists := cols[key]; !exists {
				cols[key] = idx
			}
		}
	}
	for _, name := range required {
		if _, ok := cols[name]; !ok {
			return nil, fmt.Errorf("csv header missing column %q", name)
		}
	}

	var skipped []RowError
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return skipped, fmt.Errorf("read csv: %w", err)
		}
		if len(record) == 0 || strings.TrimSpace(strings.Join(record, "")) == "" {
			continue
		}
		if err := convert(cols, record); err != nil {
			line, _ := reader.FieldPos(0)
			skipped = append(skipped, RowError{Line: line, Err: err})
		}
	}
	return skipped, nil
}

// ParseBrands reads brands from CSV. Required columns are name, category, location and budget.
// Rows without an id column value get a generated id.
func ParseBrands(r io.Reader) (*Result[store.Brand], error) {
	out := &Result[store.Brand]{}
	skipped, err := readRecords(r, []string{"name", "category", "location", "budget"}, func(cols columns, record []string) error {
		brand := store.Brand{
			ID:             cols.get(record, "id"),
			Name:           cols.get(record, "name"),
			Category:       cols.get(record, "category"),
			Location:       cols.get(record, "location"),
			TargetAudience: cols.get(record, "targetaudience", "audience"),
			Description:    cols.get(record, "description"),
		}
		if brand.Name == "" || brand.Category == "" || brand.Location == "" {
			return errors.New("name, category and location are required")
		}
		budget, err := parseAmount(cols.get(record, "budget"))
		if err != nil {
			return fmt.Errorf("budget: %w", err)
		}
		brand.Budget = budget
		if brand.ID == "" {
			brand.ID = newID()
		}
		out.Records = append(out.Records, brand)
		return nil
	})
	out.Skipped = skipped
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ParseAthletes reads athletes from CSV. Required columns are name, sport, location and
// followers. A missing engagement rate is estimated from the follower count.
func ParseAthletes(r io.Reader) (*Result[store.Athlete], error) {
	out := &Result[store.Athlete]{}
	skipped, err := readRecords(r, []string{"name", "sport", "location", "followers"}, func(cols columns, record []string) error {
		athlete := store.Athlete{
			ID:       cols.get(record, "id"),
			Name:     cols.get(record, "name"),
			Sport:    cols.get(record, "sport"),
			School:   cols.get(record, "school"),
			Location: cols.get(record, "location"),
			Bio:      cols.get(record, "bio"),
		}
		if athlete.Name == "" || athlete.Sport == "" || athlete.Location == "" {
			return errors.New("name, sport and location are required")
		}
		followers, err := parseAmount(cols.get(record, "followers"))
		if err != nil {
			return fmt.Errorf("followers: %w", err)
		}
		if followers != math.Trunc(followers) {
			return fmt.Errorf("followers: %v is not a whole number", followers)
		}
		athlete.Followers = int64(followers)

		if raw := cols.get(record, "engagementrate", "engagement"); raw != "" {
			rate, err := strconv.ParseFloat(strings.TrimSuffix(raw, "%"), 64)
			if err != nil || rate < 0 {
				return fmt.Errorf("invalid engagement rate %q", raw)
			}
			athlete.EngagementRate = rate
		} else {
			athlete.EngagementRate = store.DefaultEngagementRate(athlete.Followers)
		}
		if athlete.ID == "" {
			athlete.ID = newID()
		}
		out.Records = append(out.Records, athlete)
		return nil
	})
	out.Skipped = skipped
	if err != nil {
		return nil, err
	}
	return out, nil
}

// parseAmount accepts plain numbers with optional thousands separators and a leading dollar sign.
func parseAmount(raw string) (float64, error) {
	cleaned := strings.TrimSpace(raw)
	cleaned = strings.TrimPrefix(cleaned, "$")
	cleaned = strings.ReplaceAll(cleaned, ",", "")
	if cleaned == "" {
		return 0, errors.New("value is required")
	}
	value, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid number %q", raw)
	}
	if value < 0 {
		return 0, fmt.Errorf("negative value %q", raw)
	}
	return value, nil
}

func newID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}
