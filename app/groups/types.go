package groups

// GroupType is the audience of a group, derived from its resolved
// Planning Center group type name.
type GroupType string

const (
	GroupTypeMixed GroupType = "Mixed"
	GroupTypeMen   GroupType = "Men"
	GroupTypeWomen GroupType = "Women"
)

// CampusLocation is inferred from the group's location string.
type CampusLocation string

const (
	CampusDowntown CampusLocation = "Downtown"
	CampusMidtown  CampusLocation = "Midtown"
	CampusHamilton CampusLocation = "Hamilton"
)

// Sentinel defaults for fields the upstream data cannot always provide.
const (
	MeetingDayTBD      = "TBD"
	MeetingTimeMorning = "Morning"
	MeetingTimeAfter   = "Afternoon"
	MeetingTimeEvening = "Evening"
	LocationTBD        = "Location TBD"
)

// Group is the transformed, classified domain entity published in the
// snapshot. A closed group (IsOpen=false) still carries full metadata;
// closed is a display state, not an exclusion.
type Group struct {
	ID                 string         `json:"id"`
	Name               string         `json:"name"`
	Description        string         `json:"description"`
	Location           string         `json:"location"`
	MeetingDay         string         `json:"meetingDay"`
	MeetingTime        string         `json:"meetingTime"`
	GroupType          GroupType      `json:"groupType"`
	Capacity           *int           `json:"capacity,omitempty"`
	CurrentMemberCount *int           `json:"currentMemberCount,omitempty"`
	IsOpen             bool           `json:"isOpen"`
	ImageURL           string         `json:"imageUrl,omitempty"`
	PlanningCenterURL  string         `json:"planningCenterUrl"`
	Latitude           *float64       `json:"latitude,omitempty"`
	Longitude          *float64       `json:"longitude,omitempty"`
	CampusLocation     CampusLocation `json:"campusLocation"`
}
