package model

import "time"

// UserType identifies the role of the actor a notification is addressed to.
type UserType string

const (
	UserTypeStudent UserType = "student"
	UserTypeAdmin   UserType = "admin"
)

// Valid returns true if the user type is one that notifications can be addressed to.
func (t UserType) Valid() bool {
	return t == UserTypeStudent || t == UserTypeAdmin
}

// AllAdmins is the user ID that callers of the HTTP API use to address every administrator at once.
const AllAdmins = "all-admins"

// RecipientMode selects how the recipients of a new notification are determined.
type RecipientMode string

const (
	// RecipientSingle addresses exactly one user.
	RecipientSingle RecipientMode = "single"

	// RecipientAllAdmins addresses every administrator known to the user registry at the time of creation.
	RecipientAllAdmins RecipientMode = "broadcast-admins"
)

// Recipient describes who a new notification is addressed to.
type Recipient struct {
	Mode     RecipientMode
	UserID   string
	UserType UserType
}

// SingleRecipient returns a recipient that addresses one user.
func SingleRecipient(userID string, userType UserType) Recipient {
	return Recipient{Mode: RecipientSingle, UserID: userID, UserType: userType}
}

// AdminsRecipient returns a recipient that fans out to every administrator.
func AdminsRecipient() Recipient {
	return Recipient{Mode: RecipientAllAdmins, UserType: UserTypeAdmin}
}

// Notification represents a single notification stored in the database.
type Notification struct {
	ID        string                 `json:"id"`
	UserID    string                 `json:"userId"`
	UserType  UserType               `json:"userType"`
	Type      string                 `json:"type"`
	Title     string                 `json:"title"`
	Message   string                 `json:"message"`
	Data      map[string]interface{} `json:"data"`
	IsRead    bool                   `json:"isRead"`
	CreatedAt time.Time              `json:"createdAt"`
}

// Owner identifies the user a set of notifications belongs to.
type Owner struct {
	UserID   string
	UserType UserType
}

// IsZero returns true if neither field of the owner has been set.
func (o Owner) IsZero() bool {
	return o.UserID == "" && o.UserType == ""
}

// Filter describes the predicate used to select notifications in the store. Empty fields are not used.
type Filter struct {
	IDs           []string
	Owner         Owner
	UnreadOnly    bool
	CreatedBefore time.Time
}
