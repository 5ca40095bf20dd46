package groups

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/c3toronto/groups-sync/app/planningcenter"
)

func intPtr(v int) *int { return &v }

func setLocal(t *testing.T, loc *time.Location) {
	t.Helper()
	prev := time.Local
	time.Local = loc
	t.Cleanup(func() { time.Local = prev })
}

func coordPtr(v float64) *planningcenter.Coordinate {
	c := planningcenter.Coordinate(v)
	return &c
}

func fullRawGroup() *planningcenter.Resource {
	return &planningcenter.Resource{
		ID:   "g-100",
		Kind: planningcenter.KindGroup,
		Group: &planningcenter.GroupAttributes{
			Name:                     "Summer 2025 CG - Riverside",
			Description:              "<p>Dinner &amp; discussion every week.&nbsp;All welcome!</p>",
			EnrollmentOpen:           true,
			MembershipsCount:         intPtr(8),
			MaxMemberships:           intPtr(12),
			PublicChurchCenterWebURL: "https://c3toronto.churchcenter.com/groups/g-100",
		},
		Relationships: map[string][]planningcenter.Ref{
			"group_type": {{Kind: planningcenter.KindGroupType, ID: "gt-1"}},
			"location":   {{Kind: planningcenter.KindLocation, ID: "loc-1"}},
			"events": {
				{Kind: planningcenter.KindEvent, ID: "e-1"},
				{Kind: planningcenter.KindEvent, ID: "e-2"},
			},
		},
	}
}

func fullPool() *planningcenter.Pool {
	return planningcenter.NewPool([]planningcenter.Resource{
		{ID: "gt-1", Kind: planningcenter.KindGroupType, GroupType: &planningcenter.GroupTypeAttributes{Name: "Men's Groups"}},
		{ID: "loc-1", Kind: planningcenter.KindLocation, Location: &planningcenter.LocationAttributes{
			Name:      "Riverside Community Hall",
			Latitude:  coordPtr(43.65),
			Longitude: coordPtr(-79.38),
		}},
		// One-off event listed first; the repeating one must win
		{ID: "e-1", Kind: planningcenter.KindEvent, Event: &planningcenter.EventAttributes{
			StartsAt: "2025-06-07T14:00:00Z", Repeating: false,
		}},
		{ID: "e-2", Kind: planningcenter.KindEvent, Event: &planningcenter.EventAttributes{
			StartsAt: "2025-06-04T19:00:00Z", Repeating: true,
		}},
	})
}

func TestTransformer_FullRecord(t *testing.T) {
	setLocal(t, time.UTC)
	transformer := NewTransformer()

	group := transformer.Run(fullRawGroup(), fullPool())
	if group == nil {
		t.Fatal("Transform returned nil for a valid record")
	}

	if group.ID != "g-100" {
		t.Errorf("Unexpected id: %s", group.ID)
	}
	if group.Description != "Dinner & discussion every week. All welcome!" {
		t.Errorf("Description not sanitized: %q", group.Description)
	}
	if group.GroupType != GroupTypeMen {
		t.Errorf("Expected Men, got %s", group.GroupType)
	}
	if group.Location != "Riverside Community Hall" {
		t.Errorf("Unexpected location: %s", group.Location)
	}
	if group.Latitude == nil || *group.Latitude != 43.65 {
		t.Error("Latitude should come from the resolved location")
	}
	// 2025-06-04 was a Wednesday; 19:00 is Evening
	if group.MeetingDay != "Wednesday" {
		t.Errorf("Expected Wednesday from the repeating event, got %s", group.MeetingDay)
	}
	if group.MeetingTime != MeetingTimeEvening {
		t.Errorf("Expected Evening, got %s", group.MeetingTime)
	}
	if group.Capacity == nil || *group.Capacity != 12 {
		t.Error("Capacity should pass through verbatim")
	}
	if group.CurrentMemberCount == nil || *group.CurrentMemberCount != 8 {
		t.Error("Member count should pass through verbatim")
	}
	if !group.IsOpen {
		t.Error("Enrollment flag should pass through")
	}
}

func TestTransformer_Deterministic(t *testing.T) {
	transformer := NewTransformer()
	raw := fullRawGroup()
	pool := fullPool()

	first, err := json.Marshal(transformer.Run(raw, pool))
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	for i := 0; i < 5; i++ {
		again, err := json.Marshal(transformer.Run(raw, pool))
		if err != nil {
			t.Fatalf("Marshal failed: %v", err)
		}
		if string(first) != string(again) {
			t.Fatal("Identical inputs must yield byte-identical output")
		}
	}
}

func TestTransformer_MissingNameReturnsNil(t *testing.T) {
	transformer := NewTransformer()

	raw := &planningcenter.Resource{
		ID:    "g-bad",
		Kind:  planningcenter.KindGroup,
		Group: &planningcenter.GroupAttributes{Name: "   "},
	}

	if got := transformer.Run(raw, planningcenter.NewPool(nil)); got != nil {
		t.Error("Record without a name is structurally unusable, expected nil")
	}

	noAttrs := &planningcenter.Resource{ID: "g-worse", Kind: planningcenter.KindGroup}
	if got := transformer.Run(noAttrs, planningcenter.NewPool(nil)); got != nil {
		t.Error("Record without attributes is structurally unusable, expected nil")
	}
}

func TestTransformer_SanitizeDescription(t *testing.T) {
	transformer := NewTransformer()

	tests := []struct {
		in   string
		want string
	}{
		{"<p>Hello <b>world</b></p>", "Hello world"},
		{"Fish &amp; chips &lt;yum&gt;", "Fish & chips <yum>"},
		{"&quot;quoted&quot;", `"quoted"`},
		{"a&nbsp;b", "a b"},
		{"  plain text  ", "plain text"},
		{"", ""},
	}

	for _, test := range tests {
		if got := transformer.sanitizeDescription(test.in); got != test.want {
			t.Errorf("sanitizeDescription(%q): expected %q, got %q", test.in, test.want, got)
		}
	}
}

func TestTransformer_ResolveGroupType(t *testing.T) {
	transformer := NewTransformer()

	tests := []struct {
		typeName string
		want     GroupType
	}{
		{"Men's Groups", GroupTypeMen},
		{"Women's Groups", GroupTypeWomen},
		{"Men & Women", GroupTypeMixed},
		{"Connect Groups", GroupTypeMixed},
	}

	for _, test := range tests {
		raw := rawGroupWithType("gt-x")
		pool := poolWithGroupType("gt-x", test.typeName)
		if got := transformer.resolveGroupType(raw, pool); got != test.want {
			t.Errorf("Type name %q: expected %s, got %s", test.typeName, test.want, got)
		}
	}

	// No relationship at all defaults to Mixed
	if got := transformer.resolveGroupType(rawGroupWithType(""), planningcenter.NewPool(nil)); got != GroupTypeMixed {
		t.Errorf("Missing group type should default to Mixed, got %s", got)
	}

	// Relationship present but unresolvable defaults to Mixed
	if got := transformer.resolveGroupType(rawGroupWithType("gt-gone"), planningcenter.NewPool(nil)); got != GroupTypeMixed {
		t.Errorf("Unresolvable group type should default to Mixed, got %s", got)
	}
}

func TestTransformer_LocationFallbackChain(t *testing.T) {
	transformer := NewTransformer()

	// Tier 2: raw location attribute on the record
	raw := &planningcenter.Resource{
		ID:   "g-1",
		Kind: planningcenter.KindGroup,
		Group: &planningcenter.GroupAttributes{
			Name:     "Some Group",
			Location: "Backyard on Queen St",
		},
	}
	location, lat, _ := transformer.resolveLocation(raw, planningcenter.NewPool(nil))
	if location != "Backyard on Queen St" || lat != nil {
		t.Errorf("Expected raw attribute fallback without coordinates, got %q", location)
	}

	// Tier 3: sentinel
	raw.Group.Location = ""
	location, _, _ = transformer.resolveLocation(raw, planningcenter.NewPool(nil))
	if location != LocationTBD {
		t.Errorf("Expected %q sentinel, got %q", LocationTBD, location)
	}

	// Tier 1 beats tier 2 when the relationship resolves
	raw.Group.Location = "Backyard on Queen St"
	raw.Relationships = map[string][]planningcenter.Ref{
		"location": {{Kind: planningcenter.KindLocation, ID: "loc-1"}},
	}
	pool := planningcenter.NewPool([]planningcenter.Resource{
		{ID: "loc-1", Kind: planningcenter.KindLocation, Location: &planningcenter.LocationAttributes{Name: "Hall"}},
	})
	location, _, _ = transformer.resolveLocation(raw, pool)
	if location != "Hall" {
		t.Errorf("Resolved location should win over the raw attribute, got %q", location)
	}
}

func TestTransformer_InferCampus(t *testing.T) {
	transformer := NewTransformer()

	tests := []struct {
		location string
		want     CampusLocation
	}{
		{"Hamilton House", CampusHamilton},
		{"Midtown Cafe", CampusMidtown},
		{"North York Civic Centre", CampusMidtown},
		{"Eglinton & Yonge", CampusMidtown},
		{"Queen St W", CampusDowntown},
		{LocationTBD, CampusDowntown},
	}

	for _, test := range tests {
		if got := transformer.inferCampus(test.location); got != test.want {
			t.Errorf("inferCampus(%q): expected %s, got %s", test.location, test.want, got)
		}
	}
}

func TestTransformer_ScheduleBuckets(t *testing.T) {
	tests := []struct {
		hour int
		want string
	}{
		{9, MeetingTimeMorning},
		{11, MeetingTimeMorning},
		{12, MeetingTimeAfter},
		{16, MeetingTimeAfter},
		{17, MeetingTimeEvening},
		{21, MeetingTimeEvening},
	}

	for _, test := range tests {
		if got := bucketTimeOfDay(test.hour); got != test.want {
			t.Errorf("bucketTimeOfDay(%d): expected %s, got %s", test.hour, test.want, got)
		}
	}
}

func TestTransformer_ScheduleTextFallback(t *testing.T) {
	transformer := NewTransformer()

	raw := &planningcenter.Resource{
		ID:   "g-1",
		Kind: planningcenter.KindGroup,
		Group: &planningcenter.GroupAttributes{
			Name:        "Tuesday Lunch Hangs",
			Description: "We meet over lunch downtown.",
		},
	}

	day, timeOfDay := transformer.resolveSchedule(raw, planningcenter.NewPool(nil),
		raw.Group.Name, raw.Group.Description)

	if day != "Tuesday" {
		t.Errorf("Expected Tuesday from the name scan, got %s", day)
	}
	if timeOfDay != MeetingTimeAfter {
		t.Errorf("Expected Afternoon from the lunch keyword, got %s", timeOfDay)
	}
}

func TestTransformer_ScheduleSentinelsWhenUnknown(t *testing.T) {
	transformer := NewTransformer()

	raw := &planningcenter.Resource{
		ID:   "g-1",
		Kind: planningcenter.KindGroup,
		Group: &planningcenter.GroupAttributes{
			Name:        "Mystery Group",
			Description: "No schedule hints here.",
		},
	}

	day, timeOfDay := transformer.resolveSchedule(raw, planningcenter.NewPool(nil),
		raw.Group.Name, raw.Group.Description)

	if day != MeetingDayTBD {
		t.Errorf("Expected %q sentinel, got %s", MeetingDayTBD, day)
	}
	if timeOfDay != MeetingTimeEvening {
		t.Errorf("Expected %q default, got %s", MeetingTimeEvening, timeOfDay)
	}
}

func TestTransformer_ScheduleUsesConfiguredTimezone(t *testing.T) {
	toronto, err := time.LoadLocation("America/Toronto")
	if err != nil {
		t.Fatalf("LoadLocation failed: %v", err)
	}
	setLocal(t, toronto)

	transformer := NewTransformer()

	raw := &planningcenter.Resource{
		ID:    "g-1",
		Kind:  planningcenter.KindGroup,
		Group: &planningcenter.GroupAttributes{Name: "Riverside Crew"},
		Relationships: map[string][]planningcenter.Ref{
			"events": {{Kind: planningcenter.KindEvent, ID: "e-1"}},
		},
	}
	// 8:30pm Wednesday in Toronto is stored upstream as Thursday 00:30 UTC
	pool := planningcenter.NewPool([]planningcenter.Resource{
		{ID: "e-1", Kind: planningcenter.KindEvent, Event: &planningcenter.EventAttributes{
			StartsAt: "2025-06-12T00:30:00Z", Repeating: true,
		}},
	})

	day, timeOfDay := transformer.resolveSchedule(raw, pool, raw.Group.Name, "")
	if day != "Wednesday" {
		t.Errorf("Expected Wednesday in the configured timezone, got %s", day)
	}
	if timeOfDay != MeetingTimeEvening {
		t.Errorf("Expected Evening in the configured timezone, got %s", timeOfDay)
	}
}

func TestTransformer_ScheduleUnparseableEventFallsBack(t *testing.T) {
	transformer := NewTransformer()

	raw := &planningcenter.Resource{
		ID:   "g-1",
		Kind: planningcenter.KindGroup,
		Group: &planningcenter.GroupAttributes{
			Name: "Thursday Crew",
		},
		Relationships: map[string][]planningcenter.Ref{
			"events": {{Kind: planningcenter.KindEvent, ID: "e-1"}},
		},
	}
	pool := planningcenter.NewPool([]planningcenter.Resource{
		{ID: "e-1", Kind: planningcenter.KindEvent, Event: &planningcenter.EventAttributes{
			StartsAt: "not-a-timestamp", Repeating: true,
		}},
	})

	day, _ := transformer.resolveSchedule(raw, pool, raw.Group.Name, "")
	if day != "Thursday" {
		t.Errorf("Unparseable event start should fall back to text scan, got %s", day)
	}
}

func TestTransformer_ImageDirectAttributeWins(t *testing.T) {
	transformer := NewTransformer()

	raw := fullRawGroup()
	raw.Group.AvatarURL = "https://cdn.example.com/avatar.png"
	raw.Relationships["attachments"] = []planningcenter.Ref{
		{Kind: planningcenter.KindAttachment, ID: "att-1"},
	}

	if got := transformer.resolveImage(raw, fullPool()); got != "https://cdn.example.com/avatar.png" {
		t.Errorf("Direct avatar URL should win, got %q", got)
	}
}

func TestTransformer_ImageHeaderImagePriority(t *testing.T) {
	transformer := NewTransformer()

	raw := fullRawGroup()
	raw.Group.HeaderImage = &planningcenter.HeaderImage{
		Thumbnail: "https://cdn.example.com/thumb.jpg",
		Medium:    "https://cdn.example.com/medium.jpg",
		Original:  "https://cdn.example.com/original.jpg",
	}

	if got := transformer.resolveImage(raw, fullPool()); got != "https://cdn.example.com/original.jpg" {
		t.Errorf("Original header image should be preferred, got %q", got)
	}
}

func TestTransformer_ImageFromAttachment(t *testing.T) {
	transformer := NewTransformer()

	raw := fullRawGroup()
	raw.Relationships["attachments"] = []planningcenter.Ref{
		{Kind: planningcenter.KindAttachment, ID: "att-pdf"},
		{Kind: planningcenter.KindAttachment, ID: "att-img"},
	}
	pool := planningcenter.NewPool([]planningcenter.Resource{
		{ID: "att-pdf", Kind: planningcenter.KindAttachment, Attachment: &planningcenter.AttachmentAttributes{
			ContentType: "application/pdf", URL: "https://cdn.example.com/flyer.pdf",
		}},
		{ID: "att-img", Kind: planningcenter.KindAttachment, Attachment: &planningcenter.AttachmentAttributes{
			FileExtension: "JPG", ThumbnailURL: "https://cdn.example.com/photo-thumb.jpg",
		}},
	})

	got := transformer.resolveImage(raw, pool)
	if got != "https://cdn.example.com/photo-thumb.jpg" {
		t.Errorf("Expected the image attachment's thumbnail, got %q", got)
	}
}

func TestTransformer_ImageAbsentWithoutPlaceholder(t *testing.T) {
	transformer := NewTransformer()

	group := transformer.Run(fullRawGroup(), fullPool())
	if group == nil {
		t.Fatal("Transform returned nil")
	}
	if group.ImageURL != "" {
		t.Errorf("No placeholder may be substituted, got %q", group.ImageURL)
	}

	data, err := json.Marshal(group)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	var asMap map[string]interface{}
	if err := json.Unmarshal(data, &asMap); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if _, present := asMap["imageUrl"]; present {
		t.Error("Absent image should be omitted from the snapshot JSON")
	}
}

func TestTransformer_ClosedGroupKeepsFullMetadata(t *testing.T) {
	transformer := NewTransformer()

	raw := fullRawGroup()
	raw.Group.EnrollmentOpen = false

	group := transformer.Run(raw, fullPool())
	if group == nil {
		t.Fatal("Closed groups must still transform")
	}
	if group.IsOpen {
		t.Error("IsOpen should be false")
	}
	if group.Location == "" || group.MeetingDay == "" || group.GroupType == "" {
		t.Error("Closed groups must render with full metadata")
	}
}

func TestTransformer_DeepLinkFallback(t *testing.T) {
	transformer := NewTransformer()

	raw := fullRawGroup()
	raw.Group.PublicChurchCenterWebURL = ""

	group := transformer.Run(raw, fullPool())
	if group == nil {
		t.Fatal("Transform returned nil")
	}
	want := churchCenterBase + "g-100"
	if group.PlanningCenterURL != want {
		t.Errorf("Expected fallback deep link %q, got %q", want, group.PlanningCenterURL)
	}
}
