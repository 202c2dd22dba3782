package api

import (
	"time"

	"grimm.is/ipfeed/internal/feed"
	"grimm.is/ipfeed/internal/versions"
)

// EntryRequest is one raw entry in a request body.
type EntryRequest struct {
	Text    string `json:"text"`
	Comment string `json:"comment,omitempty"`
	Family  string `json:"family,omitempty"` // ipv4 | ipv6 | "" (any)
}

// Raw converts the request into a feed.RawEntry.
func (e EntryRequest) Raw() (feed.RawEntry, error) {
	f, err := feed.ParseFamily(e.Family)
	if err != nil {
		return feed.RawEntry{}, err
	}
	return feed.RawEntry{Text: e.Text, Comment: e.Comment, Family: f}, nil
}

// SubmitRequest replaces the whole list.
type SubmitRequest struct {
	Entries     []EntryRequest `json:"entries"`
	BaseVersion *uint64        `json:"base_version,omitempty"`
	BatchID     string         `json:"batch_id,omitempty"`
}

// EditRequest adds or removes one entry.
type EditRequest struct {
	EntryRequest
	BaseVersion *uint64 `json:"base_version,omitempty"`
	BatchID     string  `json:"batch_id,omitempty"`
}

// RollbackRequest republishes an older version.
type RollbackRequest struct {
	Version     uint64  `json:"version"`
	BaseVersion *uint64 `json:"base_version,omitempty"`
	BatchID     string  `json:"batch_id,omitempty"`
}

// EntryResponse is one canonical entry.
type EntryResponse struct {
	Text     string `json:"text"`
	Kind     string `json:"kind"`
	Family   string `json:"family"`
	Original string `json:"original,omitempty"`
	Comment  string `json:"comment,omitempty"`
	Masked   bool   `json:"masked,omitempty"`
}

// SnapshotResponse is a full snapshot.
type SnapshotResponse struct {
	Version   uint64          `json:"version"`
	CreatedAt time.Time       `json:"created_at"`
	Checksum  string          `json:"checksum"`
	Count     int             `json:"count"`
	V4        []EntryResponse `json:"v4"`
	V6        []EntryResponse `json:"v6"`
}

// PublishResponse is returned by every write endpoint.
type PublishResponse struct {
	Version   uint64    `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	Checksum  string    `json:"checksum"`
	Count     int       `json:"count"`
}

// VersionInfo summarizes one retained version.
type VersionInfo struct {
	Version   uint64    `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	Checksum  string    `json:"checksum"`
	Count     int       `json:"count"`
	Current   bool      `json:"current,omitempty"`
}

// VersionsResponse lists retained versions, oldest first.
type VersionsResponse struct {
	Current  uint64        `json:"current"`
	Versions []VersionInfo `json:"versions"`
}

// DiffResponse is a structured diff between two versions.
type DiffResponse struct {
	From    uint64          `json:"from"`
	To      uint64          `json:"to"`
	Added   []EntryResponse `json:"added"`
	Removed []EntryResponse `json:"removed"`
}

// StatusResponse reports the pipeline state and the published version.
type StatusResponse struct {
	State       string    `json:"state"`
	Version     uint64    `json:"version"`
	Checksum    string    `json:"checksum,omitempty"`
	Lines       int       `json:"lines"`
	GeneratedAt time.Time `json:"generated_at,omitzero"`
	Subscribers int       `json:"subscribers"`
	Uptime      string    `json:"uptime"`
}

func entryResponse(e feed.Entry) EntryResponse {
	return EntryResponse{
		Text:     e.String(),
		Kind:     e.Kind.String(),
		Family:   e.Family.String(),
		Original: e.Original,
		Comment:  e.Comment,
		Masked:   e.Masked,
	}
}

func entryResponses(entries []feed.Entry) []EntryResponse {
	out := make([]EntryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, entryResponse(e))
	}
	return out
}

func snapshotResponse(snap *versions.Snapshot) SnapshotResponse {
	return SnapshotResponse{
		Version:   snap.Version(),
		CreatedAt: snap.CreatedAt(),
		Checksum:  snap.Checksum(),
		Count:     snap.Len(),
		V4:        entryResponses(snap.V4()),
		V6:        entryResponses(snap.V6()),
	}
}

func publishResponse(snap *versions.Snapshot) PublishResponse {
	return PublishResponse{
		Version:   snap.Version(),
		CreatedAt: snap.CreatedAt(),
		Checksum:  snap.Checksum(),
		Count:     snap.Len(),
	}
}
