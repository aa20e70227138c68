package schema

import (
	"strings"
	"time"
)

// QueueType names the lobby the queue rule creates.
type QueueType string

// Supported queue types.
const (
	QueueRankedSolo  QueueType = "RANKED_SOLO"
	QueueRankedFlex  QueueType = "RANKED_FLEX"
	QueueNormalDraft QueueType = "NORMAL_DRAFT"
	QueueARAM        QueueType = "ARAM"
)

var queueIDs = map[QueueType]int{
	QueueRankedSolo:  420,
	QueueRankedFlex:  440,
	QueueNormalDraft: 400,
	QueueARAM:        450,
}

// NormalizeQueueType uppercases and trims the queue type, defaulting to ranked solo.
func NormalizeQueueType(q QueueType) QueueType {
	trimmed := strings.ToUpper(strings.TrimSpace(string(q)))
	if trimmed == "" {
		return QueueRankedSolo
	}
	return QueueType(trimmed)
}

// QueueID returns the numeric lobby queue id. Unknown types map to ranked flex.
func (q QueueType) QueueID() int {
	if id, ok := queueIDs[NormalizeQueueType(q)]; ok {
		return id
	}
	return queueIDs[QueueRankedFlex]
}

// Account is a stored login profile plus its automation preferences.
type Account struct {
	Username          string    `json:"username"`
	EncryptedPassword string    `json:"password"`
	Label             string    `json:"label"`
	RiotID            string    `json:"riotId"`
	Region            string    `json:"region"`
	AutoPickChamp     string    `json:"autoPickChamp"`
	AutoBanChamp      string    `json:"autoBanChamp"`
	AutoQueue         bool      `json:"autoQueue"`
	QueueType         QueueType `json:"queueType"`
	PrimaryRole       string    `json:"primaryRole"`
	SecondaryRole     string    `json:"secondaryRole"`
	AppearOffline     bool      `json:"appearOffline"`
	AutoSkinRandom    bool      `json:"autoSkinRandom"`
	AutoSpells        bool      `json:"autoSpells"`
	Notes             string    `json:"notes"`
	CreatedAt         time.Time `json:"createdAt"`
	UpdatedAt         time.Time `json:"updatedAt"`
}

// DisplayName returns the label when set, otherwise the username.
func (a Account) DisplayName() string {
	if label := strings.TrimSpace(a.Label); label != "" {
		return label
	}
	return a.Username
}

// HasRoles reports whether both role preferences are configured.
func (a Account) HasRoles() bool {
	return strings.TrimSpace(a.PrimaryRole) != "" && strings.TrimSpace(a.SecondaryRole) != ""
}

// Redacted returns a copy safe to hand to UI consumers.
func (a Account) Redacted() Account {
	a.EncryptedPassword = ""
	return a
}
