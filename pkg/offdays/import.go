package offdays

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/platinummonkey/lunchbox/pkg/calendar"
	"gopkg.in/yaml.v3"
)

// ClosureFile is the on-disk holiday calendar:
//
//	holidays:
//	  - date: 2025-11-11
//	    reason: Wapenstilstand
//	closures:
//	  - start: 2025-10-27
//	    end: 2025-10-31
//	    reason: Herfstvakantie
//	    schools: [school-1]
//
// Entries without schools apply to every active school.
type ClosureFile struct {
	Holidays []HolidayEntry `yaml:"holidays"`
	Closures []ClosureEntry `yaml:"closures"`
}

// HolidayEntry closes all schools on one date
type HolidayEntry struct {
	Date    string   `yaml:"date"`
	Reason  string   `yaml:"reason"`
	Schools []string `yaml:"schools,omitempty"`
}

// ClosureEntry closes schools over an inclusive date range
type ClosureEntry struct {
	Start   string   `yaml:"start"`
	End     string   `yaml:"end"`
	Reason  string   `yaml:"reason"`
	Schools []string `yaml:"schools,omitempty"`
}

// LoadClosureFile reads and parses a closure file
func LoadClosureFile(path string) (*ClosureFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read closure file: %w", err)
	}
	var file ClosureFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse closure file %s: %w", path, err)
	}
	return &file, nil
}

// ImportFile stores every entry of a closure file
func (s *Service) ImportFile(ctx context.Context, path string) (BulkResult, error) {
	file, err := LoadClosureFile(path)
	if err != nil {
		return BulkResult{}, err
	}

	var requests []BulkRequest
	for _, h := range file.Holidays {
		requests = append(requests, BulkRequest{StartDate: h.Date, EndDate: h.Date, Reason: h.Reason, SchoolIDs: h.Schools})
	}
	for _, c := range file.Closures {
		requests = append(requests, BulkRequest{StartDate: c.Start, EndDate: c.End, Reason: c.Reason, SchoolIDs: c.Schools})
	}

	var total BulkResult
	var allSchools []string
	for i, req := range requests {
		if len(req.SchoolIDs) == 0 {
			if allSchools == nil {
				if allSchools, err = s.store.ListSchoolIDs(ctx); err != nil {
					return total, err
				}
			}
			req.SchoolIDs = allSchools
		}
		if len(req.SchoolIDs) == 0 {
			continue
		}
		result, err := s.BulkCreate(ctx, req)
		if err != nil {
			return total, fmt.Errorf("entry %d (%s): %w", i+1, strings.TrimSpace(req.Reason), err)
		}
		total.Created += result.Created
		total.Skipped += result.Skipped
	}

	s.logger.WithFields(map[string]interface{}{
		"path":    path,
		"created": total.Created,
		"skipped": total.Skipped,
	}).Info("Closure file imported")
	return total, nil
}

// SeedHolidays closes every active school on the public holidays of a year
func (s *Service) SeedHolidays(ctx context.Context, year int) (BulkResult, error) {
	schoolIDs, err := s.store.ListSchoolIDs(ctx)
	if err != nil {
		return BulkResult{}, err
	}
	if len(schoolIDs) == 0 {
		return BulkResult{}, nil
	}

	var total BulkResult
	for _, h := range calendar.BelgianHolidays(year) {
		result, err := s.insert(ctx, schoolIDs, []calendar.Date{h.Date}, h.Name)
		if err != nil {
			return total, fmt.Errorf("failed to seed %s: %w", h.Name, err)
		}
		total.Created += result.Created
		total.Skipped += result.Skipped
	}
	return total, nil
}
