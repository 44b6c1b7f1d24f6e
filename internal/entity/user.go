package entity

import "encoding/json"

// UserRef identifies a user at the sync boundary. The gateway sometimes
// carries a bare user id string and sometimes a full object; both forms
// normalize into this type on ingestion and nothing downstream deals with
// the difference again.
type UserRef struct {
	Id       string `json:"id"`
	Nickname string `json:"nickname,omitempty"`
}

// UnmarshalJSON accepts either "user-id" or {"id": ..., "nickname": ...}
func (u *UserRef) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		var id string
		if err := json.Unmarshal(data, &id); err != nil {
			return err
		}
		u.Id = id
		u.Nickname = ""
		return nil
	}

	type alias UserRef
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	*u = UserRef(a)
	return nil
}

// DisplayName returns the nickname if known, otherwise the id
func (u UserRef) DisplayName() string {
	if u.Nickname != "" {
		return u.Nickname
	}
	return u.Id
}
