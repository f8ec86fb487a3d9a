package domain

import "github.com/shopspring/decimal"

// Role gates what a team member can do in the back office.
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleManager Role = "manager"
	RoleAgent   Role = "agent"
)

// CommissionType describes how a commission value is read.
type CommissionType string

const (
	CommissionFixed  CommissionType = "fixed"
	CommissionAmount CommissionType = "$"
	CommissionNone   CommissionType = ""
)

// Commission is what a team member earns per confirmed order.
type Commission struct {
	Value decimal.Decimal `json:"value"`
	Type  CommissionType  `json:"type"`
	// Set is false when the sheet cell was blank.
	Set bool `json:"set"`
}

// Display renders the commission the way the team table shows it.
func (c Commission) Display() string {
	switch c.Type {
	case CommissionFixed:
		return c.Value.String() + " fixed"
	case CommissionAmount:
		return "$" + c.Value.String()
	default:
		if !c.Set || c.Value.IsZero() {
			return "N/A"
		}
		return c.Value.String()
	}
}

// User is a row of the Users sheet.
type User struct {
	Username   string     `json:"username"`
	Password   string     `json:"-"`
	Role       Role       `json:"role"`
	Name       string     `json:"name"`
	Commission Commission `json:"commission"`
}

// Public returns a copy without the password.
func (u User) Public() User {
	u.Password = ""
	return u
}
