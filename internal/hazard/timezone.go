package hazard

import "time"

// Jakarta is the zone occurrence times are normalized to before comparison.
var Jakarta = mustLoad("Asia/Jakarta")

// Epoch is the cursor value when nothing has been ingested yet.
var Epoch = time.Unix(0, 0).In(Jakarta)

func mustLoad(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		// Western Indonesia Time has no daylight saving
		return time.FixedZone("WIB", 7*60*60)
	}
	return loc
}
