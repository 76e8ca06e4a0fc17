// Package meetings turns raw Granola documents into canonical Meeting
// records and keeps the normalized collection for the query layer.
package meetings

// UntitledMeeting is the title used when a document carries none.
const UntitledMeeting = "Untitled Meeting"

// Meeting is the canonical view of one document. Empty strings mean absent.
type Meeting struct {
	ID           string   `json:"id"`
	Title        string   `json:"title"`
	StartTS      string   `json:"start_ts"`
	EndTS        string   `json:"end_ts,omitempty"`
	Participants []string `json:"participants"`
	Platform     string   `json:"platform,omitempty"`
	Notes        string   `json:"notes,omitempty"`
	Overview     string   `json:"overview,omitempty"`
	Summary      string   `json:"summary,omitempty"`
	FolderID     string   `json:"folder_id,omitempty"`
	FolderName   string   `json:"folder_name,omitempty"`
}
