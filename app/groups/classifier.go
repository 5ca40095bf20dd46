package groups

import (
	"log/slog"
	"slices"
	"strings"

	"github.com/c3toronto/groups-sync/app/planningcenter"
)

// Classifier decides whether a group is a public, enrollable connect
// group or an internal/operational one. The rule set is ordered and
// first-match-wins; anything no rule recognizes is rejected, so an
// incomplete rule list hides legitimate groups rather than exposing
// internal rosters.
type Classifier struct {
	rules *Rules
}

func NewClassifier(rules *Rules) *Classifier {
	return &Classifier{rules: rules}
}

// IsPublic reports whether the transformed group should be published.
// Pure given identical inputs; exclusions are logged with the matched rule.
func (c *Classifier) IsPublic(group *Group, raw *planningcenter.Resource, pool *planningcenter.Pool) bool {
	public, reason := c.classify(group.Name, raw, pool)
	if !public {
		slog.Debug("Group excluded", "group", group.Name, "reason", reason)
	}
	return public
}

func (c *Classifier) classify(name string, raw *planningcenter.Resource, pool *planningcenter.Pool) (bool, string) {
	lowerName := strings.ToLower(name)
	typeID, typeName := c.resolveGroupType(raw, pool)

	type ruleFunc func() (decided bool, public bool, reason string)

	ruleSet := []ruleFunc{
		func() (bool, bool, string) { return c.matchInternalGroupType(typeID, typeName) },
		func() (bool, bool, string) { return c.matchDenylist(lowerName) },
		func() (bool, bool, string) { return c.matchPublicPrefix(lowerName) },
		func() (bool, bool, string) { return c.matchSeasonalLeadership(lowerName) },
	}

	for _, rule := range ruleSet {
		if decided, public, reason := rule(); decided {
			return public, reason
		}
	}

	return false, "unrecognized group, excluded by default"
}

// resolveGroupType follows the group_type relationship into the pool.
func (c *Classifier) resolveGroupType(raw *planningcenter.Resource, pool *planningcenter.Pool) (string, string) {
	ref, ok := raw.RelatedRef("group_type")
	if !ok {
		return "", ""
	}
	res, ok := pool.Resolve(planningcenter.KindGroupType, ref.ID)
	if !ok || res.GroupType == nil {
		return ref.ID, ""
	}
	return ref.ID, strings.ToLower(res.GroupType.Name)
}

func (c *Classifier) matchInternalGroupType(typeID, typeName string) (bool, bool, string) {
	if typeID != "" && slices.Contains(c.rules.InternalGroupType.IDs, typeID) {
		return true, false, "internal group type id: " + typeID
	}
	if typeName != "" && slices.Contains(c.rules.InternalGroupType.Names, typeName) {
		return true, false, "internal group type: " + typeName
	}
	return false, false, ""
}

func (c *Classifier) matchDenylist(lowerName string) (bool, bool, string) {
	for _, phrase := range c.rules.DenylistPhrases {
		if strings.Contains(lowerName, phrase) {
			return true, false, "name contains denylisted phrase: " + phrase
		}
	}
	return false, false, ""
}

func (c *Classifier) matchPublicPrefix(lowerName string) (bool, bool, string) {
	for _, prefix := range c.rules.PublicPrefixes {
		if strings.HasPrefix(lowerName, prefix) {
			if keyword, found := c.matchLeadershipKeyword(lowerName); found {
				return true, false, "public prefix but leadership keyword: " + keyword
			}
			return true, true, "public season prefix: " + prefix
		}
	}
	return false, false, ""
}

// matchSeasonalLeadership rejects seasonal groups carrying a leadership
// keyword; plain seasonal groups fall through to the default.
func (c *Classifier) matchSeasonalLeadership(lowerName string) (bool, bool, string) {
	for _, prefix := range c.rules.SeasonalPrefixes {
		if strings.HasPrefix(lowerName, prefix) {
			if keyword, found := c.matchLeadershipKeyword(lowerName); found {
				return true, false, "seasonal leadership group: " + keyword
			}
			return false, false, ""
		}
	}
	return false, false, ""
}

func (c *Classifier) matchLeadershipKeyword(lowerName string) (string, bool) {
	for _, keyword := range c.rules.LeadershipKeywords {
		if strings.Contains(lowerName, keyword) {
			return keyword, true
		}
	}
	return "", false
}
