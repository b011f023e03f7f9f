package models

import (
	"time"

	"github.com/lib/pq"
)

// ApprovalChannel identifies one of the independent approval authorities.
type ApprovalChannel string

const (
	ChannelAdmin      ApprovalChannel = "admin"
	ChannelSupervisor ApprovalChannel = "supervisor"
	ChannelGEC        ApprovalChannel = "gec"
)

// AllChannels lists every approval channel a form may require.
var AllChannels = []ApprovalChannel{ChannelAdmin, ChannelSupervisor, ChannelGEC}

// FormType is a catalog entry describing a document template, its required
// approval channels, declared prerequisites and per-student submission quota.
type FormType struct {
	ID                 string         `db:"id" json:"id"`
	Code               string         `db:"code" json:"code"`
	Name               string         `db:"name" json:"name"`
	Stage              Stage          `db:"stage" json:"stage"`
	RequiresAdmin      bool           `db:"requires_admin" json:"requires_admin"`
	RequiresSupervisor bool           `db:"requires_supervisor" json:"requires_supervisor"`
	RequiresGEC        bool           `db:"requires_gec" json:"requires_gec"`
	Prerequisites      pq.StringArray `db:"prerequisites" json:"prerequisites"`
	MaxSubmissions     *int           `db:"max_submissions" json:"max_submissions,omitempty"`
	Active             bool           `db:"active" json:"active"`
	CreatedAt          time.Time      `db:"created_at" json:"created_at"`
}

// RequiredChannels returns the channels whose approval the form needs.
func (f *FormType) RequiredChannels() []ApprovalChannel {
	channels := make([]ApprovalChannel, 0, 3)
	if f.RequiresAdmin {
		channels = append(channels, ChannelAdmin)
	}
	if f.RequiresSupervisor {
		channels = append(channels, ChannelSupervisor)
	}
	if f.RequiresGEC {
		channels = append(channels, ChannelGEC)
	}
	return channels
}

// Requires reports whether the given channel must approve this form.
func (f *FormType) Requires(channel ApprovalChannel) bool {
	switch channel {
	case ChannelAdmin:
		return f.RequiresAdmin
	case ChannelSupervisor:
		return f.RequiresSupervisor
	case ChannelGEC:
		return f.RequiresGEC
	default:
		return false
	}
}
