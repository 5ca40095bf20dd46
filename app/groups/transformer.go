package groups

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/c3toronto/groups-sync/app/planningcenter"
)

const churchCenterBase = "https://c3toronto.churchcenter.com/groups/"

var weekdayNames = []string{
	"sunday", "monday", "tuesday", "wednesday", "thursday", "friday", "saturday",
}

var imageExtensions = []string{"jpg", "jpeg", "png", "gif", "webp"}

var titleCaser = cases.Title(language.English)

// Transformer maps a raw Group resource, via the included-resource pool,
// into the domain Group. Every field with unreliable upstream data has an
// explicit fallback chain; a single unusable record yields nil and is
// logged, never aborting the batch.
type Transformer struct{}

func NewTransformer() *Transformer {
	return &Transformer{}
}

func (t *Transformer) Run(raw *planningcenter.Resource, pool *planningcenter.Pool) (result *Group) {
	defer func() {
		if r := recover(); r != nil {
			slog.Warn("Failed to transform group", "id", raw.ID, "panic", r)
			result = nil
		}
	}()

	if raw.Group == nil || strings.TrimSpace(raw.Group.Name) == "" {
		slog.Warn("Skipping structurally unusable group record", "id", raw.ID)
		return nil
	}

	attrs := raw.Group
	group := &Group{
		ID:                 raw.ID,
		Name:               attrs.Name,
		Description:        t.sanitizeDescription(attrs.Description),
		IsOpen:             attrs.EnrollmentOpen,
		Capacity:           attrs.MaxMemberships,
		CurrentMemberCount: attrs.MembershipsCount,
		MeetingDay:         MeetingDayTBD,
		MeetingTime:        MeetingTimeEvening,
		GroupType:          t.resolveGroupType(raw, pool),
		PlanningCenterURL:  t.resolveDeepLink(raw.ID, attrs.PublicChurchCenterWebURL),
		ImageURL:           t.resolveImage(raw, pool),
	}

	group.Location, group.Latitude, group.Longitude = t.resolveLocation(raw, pool)
	group.CampusLocation = t.inferCampus(group.Location)
	group.MeetingDay, group.MeetingTime = t.resolveSchedule(raw, pool, group.Name, group.Description)

	return group
}

// sanitizeDescription strips markup and decodes entities, leaving plain
// trimmed text. Non-breaking spaces become regular spaces.
func (t *Transformer) sanitizeDescription(raw string) string {
	if raw == "" {
		return ""
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(raw))
	if err != nil {
		return strings.TrimSpace(raw)
	}

	text := strings.ReplaceAll(doc.Text(), "\u00a0", " ")
	return strings.TrimSpace(text)
}

// resolveGroupType maps the resolved group type name to Men or Women when
// the name matches exactly one of them; everything else is Mixed.
func (t *Transformer) resolveGroupType(raw *planningcenter.Resource, pool *planningcenter.Pool) GroupType {
	ref, ok := raw.RelatedRef("group_type")
	if !ok {
		return GroupTypeMixed
	}

	res, ok := pool.Resolve(planningcenter.KindGroupType, ref.ID)
	if !ok || res.GroupType == nil {
		return GroupTypeMixed
	}

	name := strings.ToLower(res.GroupType.Name)
	hasWomen := strings.Contains(name, "women")
	// "women" contains "men"; strip it before checking so a women's group
	// doesn't register as both
	hasMen := strings.Contains(strings.ReplaceAll(name, "women", ""), "men")

	switch {
	case hasMen && !hasWomen:
		return GroupTypeMen
	case hasWomen && !hasMen:
		return GroupTypeWomen
	default:
		return GroupTypeMixed
	}
}

// resolveLocation prefers the side-loaded Location resource, then the raw
// location attribute on the group, then the TBD sentinel.
func (t *Transformer) resolveLocation(raw *planningcenter.Resource, pool *planningcenter.Pool) (string, *float64, *float64) {
	if ref, ok := raw.RelatedRef("location"); ok {
		if res, ok := pool.Resolve(planningcenter.KindLocation, ref.ID); ok && res.Location != nil {
			name := res.Location.Name
			if name == "" {
				name = LocationTBD
			}
			var lat, lng *float64
			if res.Location.Latitude != nil {
				v := float64(*res.Location.Latitude)
				lat = &v
			}
			if res.Location.Longitude != nil {
				v := float64(*res.Location.Longitude)
				lng = &v
			}
			return name, lat, lng
		}
	}

	if raw.Group.Location != "" {
		return raw.Group.Location, nil, nil
	}

	return LocationTBD, nil, nil
}

// inferCampus classifies the location string by place-name keywords.
// Downtown is the default.
func (t *Transformer) inferCampus(location string) CampusLocation {
	lower := strings.ToLower(location)
	switch {
	case strings.Contains(lower, "hamilton"):
		return CampusHamilton
	case strings.Contains(lower, "midtown"),
		strings.Contains(lower, "north york"),
		strings.Contains(lower, "eglinton"):
		return CampusMidtown
	default:
		return CampusDowntown
	}
}

// resolveSchedule derives meeting day and time-of-day from the group's
// events, preferring a repeating one. When no event yields a usable start
// time it scans the name and description for weekday and time keywords;
// unresolved fields keep their sentinels.
func (t *Transformer) resolveSchedule(raw *planningcenter.Resource, pool *planningcenter.Pool, name, description string) (string, string) {
	day := MeetingDayTBD
	timeOfDay := MeetingTimeEvening

	if startsAt, ok := t.eventStartTime(raw, pool); ok {
		// Upstream timestamps are UTC; day and time buckets follow the
		// configured timezone
		local := startsAt.In(time.Local)
		day = local.Weekday().String()
		timeOfDay = bucketTimeOfDay(local.Hour())
	}

	if day == MeetingDayTBD || timeOfDay == MeetingTimeEvening {
		day, timeOfDay = t.scanSchedule(name+" "+description, day, timeOfDay)
	}

	return day, timeOfDay
}

func (t *Transformer) eventStartTime(raw *planningcenter.Resource, pool *planningcenter.Pool) (time.Time, bool) {
	var events []*planningcenter.EventAttributes
	for _, ref := range raw.RelatedRefs("events") {
		if res, ok := pool.Resolve(planningcenter.KindEvent, ref.ID); ok && res.Event != nil {
			events = append(events, res.Event)
		}
	}
	if len(events) == 0 {
		return time.Time{}, false
	}

	picked := events[0]
	for _, event := range events {
		if event.Repeating {
			picked = event
			break
		}
	}

	if picked.StartsAt == "" {
		return time.Time{}, false
	}
	startsAt, err := time.Parse(time.RFC3339, picked.StartsAt)
	if err != nil {
		slog.Warn("Failed to parse event start time", "group", raw.ID, "starts_at", picked.StartsAt, "error", err)
		return time.Time{}, false
	}
	return startsAt, true
}

func bucketTimeOfDay(hour int) string {
	switch {
	case hour < 12:
		return MeetingTimeMorning
	case hour < 17:
		return MeetingTimeAfter
	default:
		return MeetingTimeEvening
	}
}

func (t *Transformer) scanSchedule(text, day, timeOfDay string) (string, string) {
	lower := strings.ToLower(text)

	if day == MeetingDayTBD {
		for _, weekday := range weekdayNames {
			if strings.Contains(lower, weekday) {
				day = titleCaser.String(weekday)
				break
			}
		}
	}

	switch {
	case strings.Contains(lower, "morning"),
		strings.Contains(lower, "9am"),
		strings.Contains(lower, "10am"):
		timeOfDay = MeetingTimeMorning
	case strings.Contains(lower, "afternoon"),
		strings.Contains(lower, "lunch"),
		strings.Contains(lower, "1pm"),
		strings.Contains(lower, "2pm"):
		timeOfDay = MeetingTimeAfter
	}

	return day, timeOfDay
}

// resolveImage tries the direct image URL attributes first, then the
// first image-typed attachment. No placeholder is substituted here; a
// missing image stays absent for the presentation layer to handle.
func (t *Transformer) resolveImage(raw *planningcenter.Resource, pool *planningcenter.Pool) string {
	attrs := raw.Group

	candidates := []string{attrs.AvatarURL}
	if attrs.HeaderImage != nil {
		candidates = append(candidates, attrs.HeaderImage.Original, attrs.HeaderImage.Medium, attrs.HeaderImage.Thumbnail)
	}
	candidates = append(candidates, attrs.PhotoURL, attrs.ImageURL)

	for _, url := range candidates {
		if url != "" {
			return url
		}
	}

	for _, ref := range raw.RelatedRefs("attachments") {
		res, ok := pool.Resolve(planningcenter.KindAttachment, ref.ID)
		if !ok || res.Attachment == nil {
			continue
		}
		if !isImageAttachment(res.Attachment) {
			continue
		}
		if res.Attachment.URL != "" {
			return res.Attachment.URL
		}
		if res.Attachment.ThumbnailURL != "" {
			return res.Attachment.ThumbnailURL
		}
	}

	return ""
}

func isImageAttachment(attachment *planningcenter.AttachmentAttributes) bool {
	if strings.HasPrefix(attachment.ContentType, "image/") {
		return true
	}
	ext := strings.ToLower(attachment.FileExtension)
	for _, allowed := range imageExtensions {
		if ext == allowed {
			return true
		}
	}
	return false
}

func (t *Transformer) resolveDeepLink(id, publicURL string) string {
	if publicURL != "" {
		return publicURL
	}
	return fmt.Sprintf("%s%s", churchCenterBase, id)
}
