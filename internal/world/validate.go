package world

import (
	"fmt"
	"strings"
)

// ValidateRegion checks a raw extracted region against the extraction
// contract and returns every violation found.
func ValidateRegion(region *Region) []error {
	if region == nil {
		return []error{fmt.Errorf("region is nil")}
	}
	var errs []error
	if strings.TrimSpace(region.LocationName) == "" {
		errs = append(errs, fmt.Errorf("LocationName is required"))
	}
	if region.LocationType == "" {
		errs = append(errs, fmt.Errorf("LocationType is required"))
	} else if !region.LocationType.Known() {
		errs = append(errs, fmt.Errorf("unknown LocationType %q", region.LocationType))
	}
	if strings.TrimSpace(region.ShortDescription) == "" {
		errs = append(errs, fmt.Errorf("ShortDescription is required"))
	}
	return errs
}

// ValidateWorld checks every region and reports violations keyed by index.
// Duplicate region names are reported as well since the renderer derives file
// names from them.
func ValidateWorld(w World) []error {
	var errs []error
	seen := map[string]int{}
	for index := range w.Regions {
		region := &w.Regions[index]
		for _, err := range ValidateRegion(region) {
			errs = append(errs, fmt.Errorf("regions[%d]: %w", index, err))
		}
		key := strings.ToLower(strings.TrimSpace(region.LocationName))
		if key == "" {
			continue
		}
		if first, exists := seen[key]; exists {
			errs = append(errs, fmt.Errorf("regions[%d]: LocationName duplicates regions[%d] %q", index, first, region.LocationName))
			continue
		}
		seen[key] = index
	}
	return errs
}

// Normalize trims extracted fields, coerces unknown types to Other and drops
// regions without a name. It returns the cleaned world and the names of the
// regions whose type was coerced.
func Normalize(w World) (World, []string) {
	var coerced []string
	regions := make([]Region, 0, len(w.Regions))
	for _, region := range w.Regions {
		region.LocationName = strings.TrimSpace(region.LocationName)
		region.ShortDescription = strings.TrimSpace(region.ShortDescription)
		if region.LocationName == "" {
			continue
		}
		region.LocationType = ParseLocationType(string(region.LocationType))
		if !region.LocationType.Known() {
			coerced = append(coerced, region.LocationName)
			region.LocationType = Other
		}
		regions = append(regions, region)
	}
	w.Regions = regions
	return w, coerced
}
