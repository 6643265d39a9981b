package progress

import "time"

// SyncRequest is the body of POST /progress/sync. The same shape travels over
// the beacon transport and the progress.sync JetStream subject.
type SyncRequest struct {
	ContentItemID string   `json:"contentItemId" validate:"required,max=128"`
	Position      *float64 `json:"position" validate:"required,gte=0"`
	State         State    `json:"state" validate:"required,oneof=playing paused stopped"`
	DeviceID      string   `json:"deviceId,omitempty" validate:"max=128"`
	Immediate     bool     `json:"immediate,omitempty"`
	PlaybackSpeed *float64 `json:"playbackSpeed,omitempty" validate:"omitempty,gt=0,lte=16"`
	Duration      *float64 `json:"duration,omitempty" validate:"omitempty,gte=0"`
	Completed     bool     `json:"completed,omitempty"`
	// ClientTsMs is the client's wall clock at sampling time, in unix millis.
	ClientTsMs int64 `json:"clientTsMs,omitempty" validate:"gte=0"`
}

// Record is the stored progress of one user on one content item.
type Record struct {
	UserID          string
	ContentItemID   string
	PositionSeconds int
	DurationSeconds int
	Completed       bool
	DeviceID        string
	PlaybackState   State
	PlaybackSpeed   float64
	ClientTsMs      int64
	LastWatched     time.Time
	LastHeartbeat   time.Time
}

// View is the public projection of a Record returned to clients.
type View struct {
	ContentItemID   string    `json:"contentItemId,omitempty"`
	PositionSeconds int       `json:"positionSeconds"`
	DurationSeconds int       `json:"durationSeconds,omitempty"`
	Completed       bool      `json:"completed"`
	LastWatched     time.Time `json:"lastWatched"`
	DeviceID        string    `json:"deviceId"`
	PlaybackState   State     `json:"playbackState"`
	PlaybackSpeed   float64   `json:"playbackSpeed,omitempty"`
}

// ToView projects r for the sync write response.
func (r Record) ToView() View {
	return View{
		PositionSeconds: r.PositionSeconds,
		Completed:       r.Completed,
		LastWatched:     r.LastWatched,
		DeviceID:        r.DeviceID,
		PlaybackState:   r.PlaybackState,
	}
}

// ResumeView is the read projection; the position is clamped so a client can
// seek to it directly.
func (r Record) ResumeView() View {
	v := r.ToView()
	v.PositionSeconds = ClampPosition(r.PositionSeconds, r.DurationSeconds)
	v.PlaybackSpeed = r.PlaybackSpeed
	return v
}

// SyncResponse is the body of a successful POST /progress/sync.
type SyncResponse struct {
	Success  bool `json:"success"`
	Progress View `json:"progress"`
	// Applied is false when the incoming position lost reconciliation and the
	// stored value was kept.
	Applied bool `json:"applied"`
}

// ReadResponse is the body of GET /progress/sync.
type ReadResponse struct {
	Progress *View `json:"progress"`
}
