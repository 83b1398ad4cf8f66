package booking

import (
	"fmt"
	"strconv"
	"strings"

	"tinedy-api/res/store"
)

type catalogEntry struct {
	Name     string
	Duration int // Minutes
	Skills   []string
}

// catalog is keyed by "type-category"
var catalog = map[string]catalogEntry{
	"cleaning-deep":       {Name: "ทำความสะอาดแบบลึก", Duration: 240, Skills: []string{"ทำความสะอาดเชิงลึก", "ใช้เครื่องมือพิเศษ"}},
	"cleaning-regular":    {Name: "ทำความสะอาดทั่วไป", Duration: 120, Skills: []string{"ทำความสะอาดทั่วไป"}},
	"training-individual": {Name: "อบรมรายบุคคล", Duration: 60, Skills: []string{"การสอน", "การนำเสนอ"}},
	"training-corporate":  {Name: "อบรมองค์กร", Duration: 180, Skills: []string{"การสอน", "การนำเสนอ", "การจัดการกลุ่ม"}},
}

// serviceCategories lists the categories accepted on input
var serviceCategories = map[string]bool{"deep": true, "regular": true, "individual": true, "corporate": true}

var defaultCatalogEntry = catalogEntry{Name: "บริการ", Duration: 120}

func lookupService(serviceType store.ServiceType, category string) catalogEntry {
	if entry, ok := catalog[fmt.Sprintf("%s-%s", serviceType, category)]; ok {
		return entry
	}
	return defaultCatalogEntry
}

// ResolveService derives name, required skills and duration from the catalog
func ResolveService(serviceType store.ServiceType, category string) store.ServiceInfo {
	entry := lookupService(serviceType, category)
	return store.ServiceInfo{
		Type:              serviceType,
		Category:          category,
		Name:              entry.Name,
		RequiredSkills:    append([]string{}, entry.Skills...),
		EstimatedDuration: entry.Duration,
	}
}

// CalculateEndTime adds durationMinutes to an HH:MM start time, wrapping past midnight
func CalculateEndTime(startTime string, durationMinutes int) (string, error) {
	minutes, err := parseClock(startTime)
	if err != nil {
		return "", err
	}
	total := ((minutes+durationMinutes)%(24*60) + 24*60) % (24 * 60)
	return fmt.Sprintf("%02d:%02d", total/60, total%60), nil
}

func parseClock(s string) (int, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 2 || len(parts[0]) != 2 || len(parts[1]) != 2 {
		return 0, fmt.Errorf("invalid time %q, expected HH:MM", s)
	}
	hours, err := strconv.Atoi(parts[0])
	if err != nil || hours < 0 || hours > 23 {
		return 0, fmt.Errorf("invalid hour in %q", s)
	}
	mins, err := strconv.Atoi(parts[1])
	if err != nil || mins < 0 || mins > 59 {
		return 0, fmt.Errorf("invalid minute in %q", s)
	}
	return hours*60 + mins, nil
}
