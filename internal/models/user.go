package models

import "strconv"

// User is the author record owned by the persistence layer. The realtime
// service only reads it to render author names.
type User struct {
	ID   uint   `gorm:"primaryKey" json:"id"`
	Name string `gorm:"type:text" json:"name"`
}

// DisplayName returns the user's name, or a stable placeholder when the name is
// empty or the user record was not loaded.
func (u *User) DisplayName(fallbackID uint) string {
	if u != nil && u.Name != "" {
		return u.Name
	}
	if u != nil && u.ID != 0 {
		fallbackID = u.ID
	}
	return "user " + strconv.FormatUint(uint64(fallbackID), 10)
}
