// Package model defines the data structures used throughout the application.
package model

import "time"

// IntraUser is a member record mirrored from the intra API into our database.
//
// The natural key is Login — the intra guarantees logins are unique and
// stable, so we upsert on it during synchronization. We still generate our
// own internal string ID (xid) to avoid tying primary keys to a third
// party's naming scheme.
//
// FIELD MUTABILITY:
// Only Level and Rank change after the first sync. Name, Avatar, CampusID
// and Promo are written once at insert time and never revised by later
// syncs. That is the policy the extension has always shipped with — revisit
// only together with the frontend.
type IntraUser struct {
	ID        string    `json:"id"        db:"id"`
	Login     string    `json:"login"     db:"login"`
	Name      string    `json:"name"      db:"name"`   // display name, e.g. "Jane Doe"
	Avatar    string    `json:"avatar"    db:"avatar"` // medium image URL ("GG" when hidden)
	Level     float64   `json:"level"     db:"level"`  // cursus level, e.g. 11.42
	CampusID  int       `json:"campusId"  db:"campus_id"`
	Promo     int       `json:"promo"     db:"promo"` // enrollment year (0 = unknown)
	Rank      int       `json:"rank"      db:"rank"`  // 1-based rank within (campus, promo)
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
}

// CursusUser is one element of the upstream /v2/cursus_users listing.
// The intra returns a much larger object — we only unmarshal the nested
// fields we need, and we validate the required ones at the ingestion
// boundary instead of trusting the shape at every access.
type CursusUser struct {
	Level   float64 `json:"level"`
	BeginAt string  `json:"begin_at"` // RFC3339 date string, e.g. "2022-08-29T07:42:00.000Z"
	Grade   string  `json:"grade"`    // "Cadet", "Transcender", ...
	User    struct {
		Login       string `json:"login"`
		DisplayName string `json:"displayname"`
		Image       struct {
			Versions struct {
				Medium string `json:"medium"`
			} `json:"versions"`
		} `json:"image"`
	} `json:"user"`
}

// RankedUser is a CursusUser flattened and annotated with its cohort and
// rank, ready for reconciliation. It is ephemeral — never persisted as-is.
type RankedUser struct {
	Login    string
	Name     string
	Avatar   string
	Level    float64
	CampusID int
	Promo    int
	Rank     int
}
