package planningcenter

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// Resource kinds returned by the Planning Center Groups API
type ResourceKind string

const (
	KindGroup      ResourceKind = "Group"
	KindGroupType  ResourceKind = "GroupType"
	KindLocation   ResourceKind = "Location"
	KindEvent      ResourceKind = "Event"
	KindAttachment ResourceKind = "Attachment"
)

// Ref is a (kind, id) pointer from a resource to a side-loaded resource.
// The wire format never embeds related objects inline.
type Ref struct {
	Kind ResourceKind `json:"type"`
	ID   string       `json:"id"`
}

// Resource is the tagged union over the resource kinds the API returns.
// Exactly one of the attribute pointers is set, matching Kind; resources
// of a kind we do not model keep their tag with all payloads nil.
type Resource struct {
	ID            string                `json:"id"`
	Kind          ResourceKind          `json:"type"`
	Group         *GroupAttributes      `json:"group_attributes,omitempty"`
	GroupType     *GroupTypeAttributes  `json:"group_type_attributes,omitempty"`
	Location      *LocationAttributes   `json:"location_attributes,omitempty"`
	Event         *EventAttributes      `json:"event_attributes,omitempty"`
	Attachment    *AttachmentAttributes `json:"attachment_attributes,omitempty"`
	Relationships map[string][]Ref      `json:"relationships,omitempty"`
}

type HeaderImage struct {
	Thumbnail string `json:"thumbnail,omitempty"`
	Medium    string `json:"medium,omitempty"`
	Original  string `json:"original,omitempty"`
}

type GroupAttributes struct {
	Name                     string       `json:"name"`
	Description              string       `json:"description,omitempty"`
	Location                 string       `json:"location,omitempty"`
	EnrollmentOpen           bool         `json:"enrollment_open"`
	EnrollmentStrategy       string       `json:"enrollment_strategy,omitempty"`
	PublicChurchCenterWebURL string       `json:"public_church_center_web_url,omitempty"`
	MembershipsCount         *int         `json:"memberships_count,omitempty"`
	MaxMemberships           *int         `json:"max_memberships,omitempty"`
	AvatarURL                string       `json:"avatar_url,omitempty"`
	HeaderImage              *HeaderImage `json:"header_image,omitempty"`
	PhotoURL                 string       `json:"photo_url,omitempty"`
	ImageURL                 string       `json:"image_url,omitempty"`
	CreatedAt                string       `json:"created_at,omitempty"`
	UpdatedAt                string       `json:"updated_at,omitempty"`
}

type GroupTypeAttributes struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Color       string `json:"color,omitempty"`
}

// Coordinate tolerates the API returning latitude/longitude either as a
// JSON number or as a numeric string.
type Coordinate float64

func (c *Coordinate) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		if s == "" {
			return nil
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return fmt.Errorf("invalid coordinate %q: %w", s, err)
		}
		*c = Coordinate(f)
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	*c = Coordinate(f)
	return nil
}

type LocationAttributes struct {
	Name                 string      `json:"name,omitempty"`
	FullFormattedAddress string      `json:"full_formatted_address,omitempty"`
	Latitude             *Coordinate `json:"latitude,omitempty"`
	Longitude            *Coordinate `json:"longitude,omitempty"`
	Strategy             string      `json:"strategy,omitempty"`
}

type EventAttributes struct {
	Name                  string `json:"name,omitempty"`
	Description           string `json:"description,omitempty"`
	StartsAt              string `json:"starts_at,omitempty"`
	EndsAt                string `json:"ends_at,omitempty"`
	Repeating             bool   `json:"repeating"`
	MultiDay              bool   `json:"multi_day"`
	RecurrenceDescription string `json:"recurrence_description,omitempty"`
}

type AttachmentAttributes struct {
	Name          string `json:"name,omitempty"`
	Description   string `json:"description,omitempty"`
	FileExtension string `json:"file_extension,omitempty"`
	ContentType   string `json:"content_type,omitempty"`
	URL           string `json:"url,omitempty"`
	ThumbnailURL  string `json:"thumbnail_url,omitempty"`
}

// relationshipDoc handles the three shapes relationship data arrives in:
// a single {id, type} object, an array of them, or null.
type relationshipDoc struct {
	Data []Ref
}

func (d *relationshipDoc) UnmarshalJSON(data []byte) error {
	var wrapper struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(data, &wrapper); err != nil {
		return err
	}

	raw := bytes.TrimSpace(wrapper.Data)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil
	}

	if raw[0] == '[' {
		return json.Unmarshal(raw, &d.Data)
	}

	var ref Ref
	if err := json.Unmarshal(raw, &ref); err != nil {
		return err
	}
	d.Data = []Ref{ref}
	return nil
}

func (r *Resource) UnmarshalJSON(data []byte) error {
	var raw struct {
		ID            string                     `json:"id"`
		Type          string                     `json:"type"`
		Attributes    json.RawMessage            `json:"attributes"`
		Relationships map[string]relationshipDoc `json:"relationships"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	r.ID = raw.ID
	r.Kind = ResourceKind(raw.Type)

	if len(raw.Relationships) > 0 {
		r.Relationships = make(map[string][]Ref, len(raw.Relationships))
		for name, doc := range raw.Relationships {
			if len(doc.Data) > 0 {
				r.Relationships[name] = doc.Data
			}
		}
	}

	if len(raw.Attributes) == 0 {
		return nil
	}

	switch r.Kind {
	case KindGroup:
		r.Group = &GroupAttributes{}
		return unmarshalAttributes(raw.Attributes, r.Kind, raw.ID, r.Group)
	case KindGroupType:
		r.GroupType = &GroupTypeAttributes{}
		return unmarshalAttributes(raw.Attributes, r.Kind, raw.ID, r.GroupType)
	case KindLocation:
		r.Location = &LocationAttributes{}
		return unmarshalAttributes(raw.Attributes, r.Kind, raw.ID, r.Location)
	case KindEvent:
		r.Event = &EventAttributes{}
		return unmarshalAttributes(raw.Attributes, r.Kind, raw.ID, r.Event)
	case KindAttachment:
		r.Attachment = &AttachmentAttributes{}
		return unmarshalAttributes(raw.Attributes, r.Kind, raw.ID, r.Attachment)
	default:
		// Unknown kind, keep the tag so the pool key stays intact
		return nil
	}
}

func unmarshalAttributes(data []byte, kind ResourceKind, id string, dst interface{}) error {
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("failed to parse %s %s attributes: %w", kind, id, err)
	}
	return nil
}

// RelatedRefs returns the references under the named relationship, or nil.
func (r *Resource) RelatedRefs(name string) []Ref {
	if r.Relationships == nil {
		return nil
	}
	return r.Relationships[name]
}

// RelatedRef returns the first reference under the named relationship.
func (r *Resource) RelatedRef(name string) (Ref, bool) {
	refs := r.RelatedRefs(name)
	if len(refs) == 0 {
		return Ref{}, false
	}
	return refs[0], true
}

// page is one paginated response from the collection endpoint.
type page struct {
	Data     []Resource      `json:"data"`
	Included []Resource      `json:"included"`
	Links    pageLinks       `json:"links"`
	Meta     json.RawMessage `json:"meta"`
}

type pageLinks struct {
	Self string `json:"self,omitempty"`
	Next string `json:"next,omitempty"`
	Prev string `json:"prev,omitempty"`
}
