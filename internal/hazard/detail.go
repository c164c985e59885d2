package hazard

import "fmt"

// Detail is the classification specific sub-record of an event.
// The set of implementations is closed: exactly one per Classification.
type Detail interface {
	Classification() Classification
	isDetail()
}

// EarthquakeDetail carries the seismic parameters of an earthquake.
type EarthquakeDetail struct {
	Magnitude   float64
	Depth       float64 // kilometres
	Latitude    float64
	Longitude   float64
	ShakemapURL string
}

type (
	FloodDetail            struct{}
	StormDetail            struct{}
	LandslideDetail        struct{}
	WildfireDetail         struct{}
	AbrasionDetail         struct{}
	DroughtDetail          struct{}
	TsunamiDetail          struct{}
	VolcanicEruptionDetail struct{}
	OtherDetail            struct{}
)

func (EarthquakeDetail) Classification() Classification       { return Earthquake }
func (FloodDetail) Classification() Classification            { return Flood }
func (StormDetail) Classification() Classification            { return Storm }
func (LandslideDetail) Classification() Classification        { return Landslide }
func (WildfireDetail) Classification() Classification         { return Wildfire }
func (AbrasionDetail) Classification() Classification         { return Abrasion }
func (DroughtDetail) Classification() Classification          { return Drought }
func (TsunamiDetail) Classification() Classification          { return Tsunami }
func (VolcanicEruptionDetail) Classification() Classification { return VolcanicEruption }
func (OtherDetail) Classification() Classification            { return Other }

func (EarthquakeDetail) isDetail()       {}
func (FloodDetail) isDetail()            {}
func (StormDetail) isDetail()            {}
func (LandslideDetail) isDetail()        {}
func (WildfireDetail) isDetail()         {}
func (AbrasionDetail) isDetail()         {}
func (DroughtDetail) isDetail()          {}
func (TsunamiDetail) isDetail()          {}
func (VolcanicEruptionDetail) isDetail() {}
func (OtherDetail) isDetail()            {}

// EmptyDetail returns the zero sub-record for c.
func EmptyDetail(c Classification) (Detail, error) {
	switch c {
	case Flood:
		return FloodDetail{}, nil
	case Storm:
		return StormDetail{}, nil
	case Landslide:
		return LandslideDetail{}, nil
	case Wildfire:
		return WildfireDetail{}, nil
	case Earthquake:
		return EarthquakeDetail{}, nil
	case Abrasion:
		return AbrasionDetail{}, nil
	case Drought:
		return DroughtDetail{}, nil
	case Tsunami:
		return TsunamiDetail{}, nil
	case VolcanicEruption:
		return VolcanicEruptionDetail{}, nil
	case Other:
		return OtherDetail{}, nil
	default:
		return nil, fmt.Errorf("no detail record for classification %q", string(c))
	}
}
