package entities

// CandidateStatus labels how a ranked pharmacy is serving the public
type CandidateStatus string

const (
	CandidateStatusOpen   CandidateStatus = "open"
	CandidateStatusOnDuty CandidateStatus = "on_duty"
)

// CandidatePoint is one ranked pharmacy returned to the caller.
type CandidatePoint struct {
	Title          string          `json:"title"`
	Address        string          `json:"address,omitempty"`
	Status         CandidateStatus `json:"status"`
	Position       Location        `json:"position"`
	Distance       *float64        `json:"distance,omitempty"`
	TravelDistance *float64        `json:"travel_distance,omitempty"`
	TravelDuration *float64        `json:"travel_duration,omitempty"`
}
