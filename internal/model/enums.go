package model

import (
	"fmt"
	"strings"
)

// Role is an account role.
type Role string

const (
	RoleUser      Role = "USER"
	RoleNGO       Role = "NGO"
	RoleNGOWorker Role = "NGO_WORKER"
	RoleAdmin     Role = "ADMIN"
)

// rolePrecedence orders roles for picking the default landing view.
var rolePrecedence = []Role{RoleAdmin, RoleNGO, RoleNGOWorker, RoleUser}

// ParseRole accepts a role name in any case.
func ParseRole(s string) (Role, error) {
	r := Role(strings.ToUpper(strings.TrimSpace(s)))
	for _, known := range rolePrecedence {
		if r == known {
			return r, nil
		}
	}
	return "", fmt.Errorf("unknown role %q", s)
}

// PrimaryRole picks the role that decides the landing view: ADMIN > NGO > NGO_WORKER > USER.
// An empty set falls back to USER.
func PrimaryRole(roles []Role) Role {
	for _, r := range rolePrecedence {
		for _, have := range roles {
			if have == r {
				return r
			}
		}
	}
	return RoleUser
}

// Status is the lifecycle state of a report.
type Status string

const (
	StatusSubmitted        Status = "SUBMITTED"
	StatusSearchingForHelp Status = "SEARCHING_FOR_HELP"
	StatusHelpOnTheWay     Status = "HELP_ON_THE_WAY"
	StatusTeamDispatched   Status = "TEAM_DISPATCHED"
	StatusAnimalRescued    Status = "ANIMAL_RESCUED"
	StatusCaseResolved     Status = "CASE_RESOLVED"
)

// Statuses lists every status in lifecycle order.
var Statuses = []Status{
	StatusSubmitted,
	StatusSearchingForHelp,
	StatusHelpOnTheWay,
	StatusTeamDispatched,
	StatusAnimalRescued,
	StatusCaseResolved,
}

var statusLabels = map[Status]string{
	StatusSubmitted:        "Report Submitted",
	StatusSearchingForHelp: "Searching for Help",
	StatusHelpOnTheWay:     "Help is on the Way",
	StatusTeamDispatched:   "Team Dispatched",
	StatusAnimalRescued:    "Animal Rescued",
	StatusCaseResolved:     "Case Resolved",
}

// ParseStatus rejects anything outside the lifecycle.
func ParseStatus(s string) (Status, error) {
	st := Status(strings.ToUpper(strings.TrimSpace(s)))
	if _, ok := statusLabels[st]; !ok {
		return "", fmt.Errorf("unknown status %q", s)
	}
	return st, nil
}

// Label returns the display text of the status.
func (s Status) Label() string {
	if l, ok := statusLabels[s]; ok {
		return l
	}
	return string(s)
}

// Index is the position of s in the lifecycle, -1 if unknown.
func (s Status) Index() int {
	for i, st := range Statuses {
		if st == s {
			return i
		}
	}
	return -1
}

// IsTerminal reports whether no further transition exists.
func (s Status) IsTerminal() bool { return s == StatusCaseResolved }

// AnimalType is the kind of animal reported.
type AnimalType string

const (
	AnimalDog     AnimalType = "DOG"
	AnimalCat     AnimalType = "CAT"
	AnimalCow     AnimalType = "COW"
	AnimalBuffalo AnimalType = "BUFFALO"
	AnimalHorse   AnimalType = "HORSE"
	AnimalBird    AnimalType = "BIRD"
	AnimalOther   AnimalType = "OTHER"
)

// AnimalTypes lists the selectable animal types in display order.
var AnimalTypes = []AnimalType{AnimalDog, AnimalCat, AnimalCow, AnimalBuffalo, AnimalHorse, AnimalBird, AnimalOther}

// ParseAnimalType accepts a type name in any case.
func ParseAnimalType(s string) (AnimalType, error) {
	a := AnimalType(strings.ToUpper(strings.TrimSpace(s)))
	for _, known := range AnimalTypes {
		if a == known {
			return a, nil
		}
	}
	return "", fmt.Errorf("unknown animal type %q", s)
}

// Condition is the observed state of the animal.
type Condition string

const (
	ConditionInjured    Condition = "INJURED"
	ConditionSick       Condition = "SICK"
	ConditionTrapped    Condition = "TRAPPED"
	ConditionAbandoned  Condition = "ABANDONED"
	ConditionAggressive Condition = "AGGRESSIVE"
	ConditionOther      Condition = "OTHER"
)

// Conditions lists the selectable conditions in display order.
var Conditions = []Condition{ConditionInjured, ConditionSick, ConditionTrapped, ConditionAbandoned, ConditionAggressive, ConditionOther}

// ParseCondition accepts a condition name in any case.
func ParseCondition(s string) (Condition, error) {
	c := Condition(strings.ToUpper(strings.TrimSpace(s)))
	for _, known := range Conditions {
		if c == known {
			return c, nil
		}
	}
	return "", fmt.Errorf("unknown condition %q", s)
}
