package hazard

// ImpactIdentifier names what an impact measures.
type ImpactIdentifier string

const (
	ImpactDepth      ImpactIdentifier = "IDE101"
	ImpactScale      ImpactIdentifier = "IDE102"
	ImpactVisibility ImpactIdentifier = "IDE103"
	ImpactBuilding   ImpactIdentifier = "IDE104"
)

// ImpactMetric is the unit of an impact value.
type ImpactMetric string

const (
	MetricMMI     ImpactMetric = "MET101"
	MetricMeter   ImpactMetric = "MET102"
	MetricHectare ImpactMetric = "MET103"
	MetricUnit    ImpactMetric = "MET104"
)

// Attachment identifiers assigned by sources.
const (
	AttachmentShakemap = "shakemap"
)

// Event statuses.
const (
	StatusPublished = "published"
	StatusDraft     = "draft"
)
