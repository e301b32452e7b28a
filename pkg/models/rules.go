// Copyright (c) 2026 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

package models

import (
	"fmt"
	"os"
	"time"

	validator "github.com/AccelByte/justice-input-validation-go"
	"github.com/mitchellh/copystructure"
	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// ModeRule describes how one (activityType, mode) pair is matched.
type ModeRule struct {
	ActivityType string `yaml:"activity_type" json:"activity_type" valid:"stringlength(1|64)"`
	Mode         string `yaml:"mode"          json:"mode"          valid:"stringlength(1|64)"`

	TeamCount    int `yaml:"team_count"     json:"team_count"     valid:"range(1|64)"`
	TeamSize     int `yaml:"team_size"      json:"team_size"      valid:"range(1|64)"`
	MaxPartySize int `yaml:"max_party_size" json:"max_party_size" valid:"range(1|64)"`

	InitialRatingRange    int `yaml:"initial_rating_range"    json:"initial_rating_range"    valid:"range(0|2147483647)"`
	MaxRatingRange        int `yaml:"max_rating_range"        json:"max_rating_range"        valid:"range(0|2147483647)"`
	ExpansionStep         int `yaml:"expansion_step"          json:"expansion_step"          valid:"range(0|2147483647)"`
	ExpansionDelaySeconds int `yaml:"expansion_delay_seconds" json:"expansion_delay_seconds" valid:"range(0|2147483647)"` // how long a ticket waits before its range starts widening
	PlacementRangeBonus   int `yaml:"placement_range_bonus"   json:"placement_range_bonus"   valid:"range(0|2147483647)"`
	TicketTTLSeconds      int `yaml:"ticket_ttl_seconds"      json:"ticket_ttl_seconds"      valid:"range(0|2147483647)"`

	AllowConcurrentQueue bool `yaml:"allow_concurrent_queue" json:"allow_concurrent_queue"`
}

// Key returns the lookup key of the rule.
func (r ModeRule) Key() ModeKey {
	return ModeKey{ActivityType: r.ActivityType, Mode: r.Mode}
}

// MatchSize returns the number of players a full match needs.
func (r ModeRule) MatchSize() int {
	return r.TeamCount * r.TeamSize
}

func (r ModeRule) ExpansionDelay() time.Duration {
	return time.Duration(r.ExpansionDelaySeconds) * time.Second
}

func (r ModeRule) TicketTTL() time.Duration {
	return time.Duration(r.TicketTTLSeconds) * time.Second
}

func (r ModeRule) Validate() error {
	if _, err := validator.ValidateStruct(r); err != nil {
		return err
	}

	if r.MaxPartySize > r.TeamSize {
		return ValidationErrorPartyExceedsTeam
	}

	if r.InitialRatingRange > r.MaxRatingRange {
		return ValidationErrorRatingRange
	}

	return nil
}

// ModeKey identifies a mode rule.
type ModeKey struct {
	ActivityType string
	Mode         string
}

func (k ModeKey) String() string {
	return k.ActivityType + "/" + k.Mode
}

// ModeRules is the read-only set of configured modes.
type ModeRules struct {
	rules map[ModeKey]ModeRule
}

type modeRulesFile struct {
	Modes []ModeRule `yaml:"modes"`
}

// NewModeRules validates the rules and indexes them by key.
func NewModeRules(rules ...ModeRule) (*ModeRules, error) {
	indexed := make(map[ModeKey]ModeRule, len(rules))
	for _, rule := range rules {
		if err := rule.Validate(); err != nil {
			return nil, fmt.Errorf("invalid mode %s: %w", rule.Key(), err)
		}
		if _, exist := indexed[rule.Key()]; exist {
			return nil, fmt.Errorf("invalid mode %s: %w", rule.Key(), ValidationErrorDuplicateMode)
		}
		indexed[rule.Key()] = rule
	}

	return &ModeRules{rules: indexed}, nil
}

// ParseModeRules reads mode rules from yaml.
func ParseModeRules(data []byte) (*ModeRules, error) {
	var file modeRulesFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, eris.Wrap(err, "failed to parse mode rules")
	}

	return NewModeRules(file.Modes...)
}

// LoadModeRules reads mode rules from a yaml file.
func LoadModeRules(path string) (*ModeRules, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "failed to read mode rules %s", path)
	}

	return ParseModeRules(data)
}

// Lookup returns the rule of the activity/mode pair.
func (m *ModeRules) Lookup(activityType, mode string) (ModeRule, bool) {
	rule, ok := m.rules[ModeKey{ActivityType: activityType, Mode: mode}]
	return rule, ok
}

// All returns a copy of every configured rule.
func (m *ModeRules) All() []ModeRule {
	copied, err := copystructure.Copy(m.rules)
	if err != nil {
		logrus.Warn("failed copy mode rules:", err)
		copied = m.rules
	}
	rules := make([]ModeRule, 0, len(m.rules))
	for _, rule := range copied.(map[ModeKey]ModeRule) {
		rules = append(rules, rule)
	}

	return rules
}
