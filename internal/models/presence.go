package models

// PresenceMessage is pushed to every connected live viewer whenever the
// connected-user count changes. Count is the only payload; viewers carry no
// identity.
type PresenceMessage struct {
	Type  string `json:"type"` // always "userCount"
	Count int    `json:"count"`
}

// PresenceMessageType is the Type value for presence count pushes.
const PresenceMessageType = "userCount"
