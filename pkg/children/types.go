package children

import (
	"time"

	"github.com/platinummonkey/lunchbox/pkg/orders"
)

const (
	maxNameLength      = 50
	maxGradeLength     = 50
	maxAllergiesLength = 500
)

// Preferences are the default sandwich options of a child
type Preferences struct {
	Allergies string           `json:"allergies"`
	BreadType orders.BreadType `json:"breadType"`
	Crust     bool             `json:"crust"`
	Butter    bool             `json:"butter"`
}

// Child is a pupil a parent orders for
type Child struct {
	ID          string      `json:"id"`
	ParentID    string      `json:"parentId"`
	SchoolID    string      `json:"schoolId"`
	SchoolName  string      `json:"schoolName"`
	FirstName   string      `json:"firstName"`
	LastName    string      `json:"lastName"`
	Grade       string      `json:"grade"`
	Preferences Preferences `json:"preferences"`
	CreatedAt   time.Time   `json:"createdAt"`
	UpdatedAt   time.Time   `json:"updatedAt"`
}

// FullName is the first and last name joined by a space
func (c *Child) FullName() string {
	return c.FirstName + " " + c.LastName
}

// School is a school children can be enrolled at
type School struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Address string `json:"address"`
}

// Request is the create and update form of a child
type Request struct {
	FirstName   string      `json:"firstName" validate:"required"`
	LastName    string      `json:"lastName" validate:"required"`
	SchoolID    string      `json:"schoolId" validate:"required"`
	Grade       string      `json:"grade,omitempty"`
	Preferences Preferences `json:"preferences"`
}
